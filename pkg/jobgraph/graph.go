// Package jobgraph indexes jobs by the labels they produce and consume.
//
// An edge runs from a producer P to a consumer C whenever some label is in
// both P.Produces and C.Consumes. The graph may contain cycles. A Graph is
// built once and never mutated afterwards, so it can be shared freely.
package jobgraph

import (
	"time"

	"github.com/vanderheijden86/jobwork/pkg/debug"
	"github.com/vanderheijden86/jobwork/pkg/metrics"
	"github.com/vanderheijden86/jobwork/pkg/model"
)

// Graph is the label index over an ordered set of jobs.
type Graph struct {
	store []model.Job
	jobs  []*model.Job

	byProduced map[string][]*model.Job
	byConsumed map[string][]*model.Job
	labels     []string // every label, first-seen order
}

// Build assigns ids by position, flattens label containers and fills the
// reverse indexes. Buckets keep first-seen-job-first order.
func Build(records []model.Record) *Graph {
	defer metrics.Timer(metrics.GraphBuild)()
	start := time.Now()

	g := &Graph{
		store:      make([]model.Job, len(records)),
		jobs:       make([]*model.Job, len(records)),
		byProduced: make(map[string][]*model.Job),
		byConsumed: make(map[string][]*model.Job),
	}

	known := make(map[string]struct{})
	note := func(label string) {
		if _, ok := known[label]; !ok {
			known[label] = struct{}{}
			g.labels = append(g.labels, label)
		}
	}

	for i, rec := range records {
		g.store[i] = model.NewJob(i, rec)
		j := &g.store[i]
		g.jobs[i] = j
		for _, l := range j.Produces {
			g.byProduced[l] = append(g.byProduced[l], j)
			note(l)
		}
		for _, l := range j.Consumes {
			g.byConsumed[l] = append(g.byConsumed[l], j)
			note(l)
		}
	}

	debug.Log("jobgraph: built %d jobs, %d labels in %v", len(g.jobs), len(g.labels), time.Since(start))
	return g
}

// Jobs returns every job in id order. The slice is shared; do not modify it.
func (g *Graph) Jobs() []*model.Job {
	return g.jobs
}

// Len returns the number of jobs.
func (g *Graph) Len() int {
	return len(g.jobs)
}

// Job returns the job with the given id.
func (g *Graph) Job(id int) (*model.Job, bool) {
	if id < 0 || id >= len(g.jobs) {
		return nil, false
	}
	return g.jobs[id], true
}

// Has reports whether id addresses a job of this graph.
func (g *Graph) Has(id int) bool {
	return id >= 0 && id < len(g.jobs)
}

// Producers returns the jobs producing label, in input order.
func (g *Graph) Producers(label string) []*model.Job {
	return g.byProduced[label]
}

// Consumers returns the jobs consuming label, in input order.
func (g *Graph) Consumers(label string) []*model.Job {
	return g.byConsumed[label]
}

// Labels returns every label seen while building, in first-seen order.
func (g *Graph) Labels() []string {
	return g.labels
}

// EachDownstream calls fn for every consumer of a label j produces, walking
// j's labels in order and each bucket in order. A neighbour reachable
// through several labels is reported once per label. Iteration stops when
// fn returns false.
func (g *Graph) EachDownstream(j *model.Job, fn func(*model.Job) bool) bool {
	for _, l := range j.Produces {
		for _, n := range g.byConsumed[l] {
			if !fn(n) {
				return false
			}
		}
	}
	return true
}

// EachUpstream is EachDownstream in the other direction: every producer of a
// label j consumes.
func (g *Graph) EachUpstream(j *model.Job, fn func(*model.Job) bool) bool {
	for _, l := range j.Consumes {
		for _, n := range g.byProduced[l] {
			if !fn(n) {
				return false
			}
		}
	}
	return true
}
