// Package layering arranges the neighbourhood of one job into columns:
// producers of its inputs to the left, consumers of its outputs to the
// right, one column per hop.
package layering

import (
	"errors"
	"fmt"
	"strings"

	"github.com/vanderheijden86/jobwork/pkg/debug"
	"github.com/vanderheijden86/jobwork/pkg/jobgraph"
	"github.com/vanderheijden86/jobwork/pkg/metrics"
	"github.com/vanderheijden86/jobwork/pkg/model"
)

// ErrUnknownJob is returned when the requested id is not in the graph.
var ErrUnknownJob = errors.New("unknown job")

// Policy decides the column a job lands in when it is reachable over
// several paths.
type Policy int

const (
	// PolicyFirstVisit pins a job to the depth at which the depth-first walk
	// first reaches it. A job reachable in 1 hop may end up further out if a
	// longer path is explored first.
	PolicyFirstVisit Policy = iota
	// PolicyShortest places every job at its minimum hop distance.
	PolicyShortest
)

func (p Policy) String() string {
	switch p {
	case PolicyShortest:
		return "shortest"
	default:
		return "first-visit"
	}
}

// ParsePolicy parses "first-visit" or "shortest". Empty means first-visit.
func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "first-visit", "firstvisit", "dfs":
		return PolicyFirstVisit, nil
	case "shortest", "bfs":
		return PolicyShortest, nil
	default:
		return PolicyFirstVisit, fmt.Errorf("unknown layout policy %q (want first-visit|shortest)", s)
	}
}

// Options configures layering.
type Options struct {
	Policy Policy
}

// Direction selects which edges a run follows.
type Direction int

const (
	// Upstream follows consumed labels to their producers.
	Upstream Direction = iota
	// Downstream follows produced labels to their consumers.
	Downstream
)

// Layout is the column arrangement around one job.
type Layout struct {
	Columns [][]*model.Job
	// Center is the index of the column holding only the selected job.
	Center int
}

// Columns returns the columns around job id: the furthest upstream hop
// first, the selected job, then downstream hops outwards.
func Columns(g *jobgraph.Graph, id int, opts Options) ([][]*model.Job, error) {
	l, err := Compute(g, id, opts)
	if err != nil {
		return nil, err
	}
	return l.Columns, nil
}

// Compute is Columns plus the position of the selected job.
func Compute(g *jobgraph.Graph, id int, opts Options) (Layout, error) {
	defer metrics.Timer(metrics.Layering)()

	j, ok := g.Job(id)
	if !ok {
		return Layout{}, fmt.Errorf("layering job %d: %w", id, ErrUnknownJob)
	}

	up := Run(g, j, Upstream, opts)
	down := Run(g, j, Downstream, opts)

	cols := make([][]*model.Job, 0, len(up)+len(down)-1)
	for i := len(up) - 1; i >= 0; i-- {
		cols = append(cols, up[i])
	}
	cols = append(cols, down[1:]...)

	debug.Log("layering job %d: %d upstream, %d downstream columns (%s)", id, len(up)-1, len(down)-1, opts.Policy)
	return Layout{Columns: cols, Center: len(up) - 1}, nil
}

// Run walks one direction from start. Column 0 holds only start; each job
// appears at most once across the run.
func Run(g *jobgraph.Graph, start *model.Job, dir Direction, opts Options) [][]*model.Job {
	each := g.EachDownstream
	if dir == Upstream {
		each = g.EachUpstream
	}
	visited := make([]bool, g.Len())

	if opts.Policy == PolicyShortest {
		return breadthFirst(start, each, visited)
	}

	var cols [][]*model.Job
	var visit func(j *model.Job, depth int)
	visit = func(j *model.Job, depth int) {
		visited[j.ID] = true
		if depth == len(cols) {
			cols = append(cols, nil)
		}
		cols[depth] = append(cols[depth], j)
		each(j, func(n *model.Job) bool {
			if !visited[n.ID] {
				visit(n, depth+1)
			}
			return true
		})
	}
	visit(start, 0)
	return cols
}

func breadthFirst(start *model.Job, each func(*model.Job, func(*model.Job) bool) bool, visited []bool) [][]*model.Job {
	visited[start.ID] = true
	cols := [][]*model.Job{{start}}
	for {
		var next []*model.Job
		for _, j := range cols[len(cols)-1] {
			each(j, func(n *model.Job) bool {
				if !visited[n.ID] {
					visited[n.ID] = true
					next = append(next, n)
				}
				return true
			})
		}
		if len(next) == 0 {
			return cols
		}
		cols = append(cols, next)
	}
}
