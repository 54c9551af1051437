// Package testutil provides deterministic job-graph fixtures and assertion
// helpers shared by the package tests.
package testutil

import (
	"fmt"
	"math/rand"
	"strings"

	"github.com/vanderheijden86/jobwork/pkg/model"
)

// GraphFixture is an abstract producer->consumer graph. Each edge becomes a
// label produced by From and consumed by To.
type GraphFixture struct {
	Description string
	Nodes       int
	Edges       [][2]int // [producer, consumer]
	HasCycles   bool
}

// Generator creates fixtures with various topologies.
type Generator struct {
	rng *rand.Rand
}

// New creates a Generator. Seed 0 is replaced by a fixed seed so that every
// fixture stays reproducible.
func New(seed int64) *Generator {
	if seed == 0 {
		seed = 42
	}
	return &Generator{rng: rand.New(rand.NewSource(seed))}
}

// Chain: 0 -> 1 -> ... -> size-1.
func (g *Generator) Chain(size int) GraphFixture {
	gf := GraphFixture{Description: fmt.Sprintf("chain of %d", size), Nodes: size}
	for i := 0; i+1 < size; i++ {
		gf.Edges = append(gf.Edges, [2]int{i, i + 1})
	}
	return gf
}

// Diamond: 0 feeds width middle jobs, which all feed the last job.
func (g *Generator) Diamond(width int) GraphFixture {
	sink := width + 1
	gf := GraphFixture{Description: fmt.Sprintf("diamond of width %d", width), Nodes: width + 2}
	for i := 1; i <= width; i++ {
		gf.Edges = append(gf.Edges, [2]int{0, i}, [2]int{i, sink})
	}
	return gf
}

// Cycle: 0 -> 1 -> ... -> size-1 -> 0.
func (g *Generator) Cycle(size int) GraphFixture {
	gf := g.Chain(size)
	gf.Description = fmt.Sprintf("cycle of %d", size)
	if size > 0 {
		gf.Edges = append(gf.Edges, [2]int{size - 1, 0})
		gf.HasCycles = true
	}
	return gf
}

// Disconnected returns components independent chains of componentSize jobs.
func (g *Generator) Disconnected(components, componentSize int) GraphFixture {
	gf := GraphFixture{
		Description: fmt.Sprintf("%d chains of %d", components, componentSize),
		Nodes:       components * componentSize,
	}
	for c := 0; c < components; c++ {
		base := c * componentSize
		for i := 0; i+1 < componentSize; i++ {
			gf.Edges = append(gf.Edges, [2]int{base + i, base + i + 1})
		}
	}
	return gf
}

// Random returns a graph where each ordered pair is an edge with the given
// probability. Cycles are allowed.
func (g *Generator) Random(size int, density float64) GraphFixture {
	gf := GraphFixture{Description: fmt.Sprintf("random %d @ %.2f", size, density), Nodes: size}
	for from := 0; from < size; from++ {
		for to := 0; to < size; to++ {
			if from != to && g.rng.Float64() < density {
				gf.Edges = append(gf.Edges, [2]int{from, to})
				if to < from {
					gf.HasCycles = true
				}
			}
		}
	}
	return gf
}

// Marker is a token that appears in the text of job i and of no other
// fixture job.
func Marker(i int) string {
	return fmt.Sprintf("job#%d#", i)
}

// EdgeLabel is the label that carries the edge from -> to.
func EdgeLabel(from, to int) string {
	return fmt.Sprintf("e%d-%d", from, to)
}

// ToRecords converts a fixture into records. Job i carries Marker(i) in its
// description.
func (gf GraphFixture) ToRecords() []model.Record {
	return FromEdges(gf.Nodes, gf.Edges)
}

// FromEdges builds n records wired by the given edges.
func FromEdges(n int, edges [][2]int) []model.Record {
	produces := make([][]any, n)
	consumes := make([][]any, n)
	for _, e := range edges {
		l := EdgeLabel(e[0], e[1])
		produces[e[0]] = append(produces[e[0]], l)
		consumes[e[1]] = append(consumes[e[1]], l)
	}

	recs := make([]model.Record, n)
	for i := range recs {
		desc := Marker(i)
		recs[i] = model.Record{
			Desc:     &desc,
			T:        "task",
			I:        float64(i),
			Priority: float64(i % 3),
			Ts:       produces[i],
			Ds:       consumes[i],
		}
	}
	return recs
}

// Job builds a record producing and consuming the given labels.
func Job(desc string, produces, consumes []string) model.Record {
	d := desc
	ts := make([]any, len(produces))
	for i, p := range produces {
		ts[i] = p
	}
	ds := make([]any, len(consumes))
	for i, c := range consumes {
		ds[i] = c
	}
	return model.Record{Desc: &d, T: "task", Ts: ts, Ds: ds}
}

// ToJSONL renders records as JSONL content.
func ToJSONL(recs []model.Record) string {
	var b strings.Builder
	for _, r := range recs {
		b.WriteString(r.Canonical())
		b.WriteByte('\n')
	}
	return b.String()
}
