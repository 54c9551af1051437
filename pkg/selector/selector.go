// Package selector narrows a job graph with a chain of keyword selectors.
//
// Each selector is applied to the result of the previous one: jobs of the
// current working set that contain every keyword seed a closure over label
// edges, and the closure (bounded to the working set) becomes the working
// set for the next selector.
package selector

import (
	"fmt"
	"strings"
	"time"

	"github.com/vanderheijden86/jobwork/pkg/debug"
	"github.com/vanderheijden86/jobwork/pkg/jobgraph"
	"github.com/vanderheijden86/jobwork/pkg/metrics"
	"github.com/vanderheijden86/jobwork/pkg/model"
)

// ClosureMode controls which label edges the closure follows.
type ClosureMode int

const (
	// ClosureConnected follows edges in both directions from every reached
	// job: the result is the seeds' connected component within the bound.
	ClosureConnected ClosureMode = iota
	// ClosureLineage expands seeds both ways, but a walk that went
	// downstream keeps going downstream and one that went upstream keeps
	// going upstream. Siblings sharing an input are not pulled in.
	ClosureLineage
)

// String returns the config spelling of the mode.
func (m ClosureMode) String() string {
	switch m {
	case ClosureLineage:
		return "lineage"
	default:
		return "connected"
	}
}

// ParseClosureMode parses "connected" or "lineage". Empty means connected.
func ParseClosureMode(s string) (ClosureMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "connected":
		return ClosureConnected, nil
	case "lineage":
		return ClosureLineage, nil
	default:
		return ClosureConnected, fmt.Errorf("unknown closure mode %q (want connected|lineage)", s)
	}
}

// Options configures filtering.
type Options struct {
	Mode ClosureMode
}

// Tokenize splits a selector on whitespace. A blank selector has no tokens
// and matches everything.
func Tokenize(selector string) []string {
	return strings.Fields(selector)
}

// Stage records the outcome of applying one selector.
type Stage struct {
	Selector string
	// Matched are the jobs of the incoming working set that contain every token.
	Matched []*model.Job
	// Visible is the bounded closure of Matched; the next stage's working set.
	Visible []*model.Job
}

// VisibleJobs applies selectors in order to all jobs of g and returns the
// final working set, in first-discovery order.
func VisibleJobs(g *jobgraph.Graph, selectors []string, opts Options) []*model.Job {
	defer metrics.Timer(metrics.ClosureFilter)()

	working := g.Jobs()
	for _, sel := range selectors {
		if len(working) == 0 {
			break
		}
		_, working = Refine(g, working, sel, opts)
	}
	return working
}

// Stages is VisibleJobs with the intermediate result of every selector.
// len(result) == len(selectors); stages after an empty one are empty.
func Stages(g *jobgraph.Graph, selectors []string, opts Options) []Stage {
	defer metrics.Timer(metrics.ClosureFilter)()

	stages := make([]Stage, len(selectors))
	working := g.Jobs()
	for i, sel := range selectors {
		stages[i].Selector = sel
		if len(working) == 0 {
			continue
		}
		stages[i].Matched, stages[i].Visible = Refine(g, working, sel, opts)
		working = stages[i].Visible
	}
	return stages
}

// Refine applies one selector to the working set. It returns the jobs that
// matched the keywords and their closure within working.
func Refine(g *jobgraph.Graph, working []*model.Job, selector string, opts Options) (matched, visible []*model.Job) {
	start := time.Now()
	tokens := Tokenize(selector)

	for _, j := range working {
		if j.Contains(tokens) {
			matched = append(matched, j)
		}
	}
	visible = Closure(g, matched, working, opts)

	debug.Log("selector %q: %d/%d matched, %d visible (%v)", selector, len(matched), len(working), len(visible), time.Since(start))
	return matched, visible
}

// Closure returns the jobs reachable from seeds over label edges without
// leaving bound. Seeds outside bound are ignored. Each job is visited once;
// the result is in discovery order (depth first, seeds in the given order,
// produced labels before consumed labels).
func Closure(g *jobgraph.Graph, seeds, bound []*model.Job, opts Options) []*model.Job {
	c := closure{
		g:       g,
		lineage: opts.Mode == ClosureLineage,
		inBound: make([]bool, g.Len()),
		seen:    make([]bool, g.Len()),
	}
	for _, j := range bound {
		c.inBound[j.ID] = true
	}
	for _, s := range seeds {
		c.visit(s, true, true)
	}
	return c.out
}

type closure struct {
	g       *jobgraph.Graph
	lineage bool
	inBound []bool
	seen    []bool
	out     []*model.Job
}

func (c *closure) visit(j *model.Job, down, up bool) {
	if !c.inBound[j.ID] || c.seen[j.ID] {
		return
	}
	c.seen[j.ID] = true
	c.out = append(c.out, j)

	if down {
		c.g.EachDownstream(j, func(n *model.Job) bool {
			c.visit(n, true, !c.lineage)
			return true
		})
	}
	if up {
		c.g.EachUpstream(j, func(n *model.Job) bool {
			c.visit(n, !c.lineage, true)
			return true
		})
	}
}
