// Package robot produces the machine-readable output of jw's --robot-*
// flags: the visible jobs of a selector chain, the columns around a job,
// graph statistics and timing metrics.
package robot

import (
	"io"
	"time"

	"github.com/goccy/go-json"

	"github.com/vanderheijden86/jobwork/pkg/jobgraph"
	"github.com/vanderheijden86/jobwork/pkg/layering"
	"github.com/vanderheijden86/jobwork/pkg/metrics"
	"github.com/vanderheijden86/jobwork/pkg/model"
	"github.com/vanderheijden86/jobwork/pkg/selector"
)

// Job is the robot view of one job.
type Job struct {
	ID       int      `json:"id"`
	Title    string   `json:"title"`
	Status   string   `json:"status"`
	Produces []string `json:"produces"`
	Consumes []string `json:"consumes"`
	Text     string   `json:"text"`
}

// NewJob converts a graph job.
func NewJob(j *model.Job) Job {
	return Job{
		ID:       j.ID,
		Title:    j.Title(),
		Status:   j.Status(),
		Produces: nonNil(j.Produces),
		Consumes: nonNil(j.Consumes),
		Text:     j.Text,
	}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func jobs(js []*model.Job) []Job {
	out := make([]Job, len(js))
	for i, j := range js {
		out[i] = NewJob(j)
	}
	return out
}

// Stage summarizes one selector of the chain.
type Stage struct {
	Selector string `json:"selector"`
	Matched  int    `json:"matched"`
	Visible  int    `json:"visible"`
}

// VisibleOutput is the payload of --robot-visible.
type VisibleOutput struct {
	GeneratedAt time.Time `json:"generated_at"`
	Source      string    `json:"source,omitempty"`
	Closure     string    `json:"closure"`
	Selectors   []string  `json:"selectors"`
	Stages      []Stage   `json:"stages"`
	Count       int       `json:"count"`
	Jobs        []Job     `json:"jobs"`
}

// Visible filters g with selectors.
func Visible(g *jobgraph.Graph, selectors []string, opts selector.Options) VisibleOutput {
	stages := selector.Stages(g, selectors, opts)
	visible := g.Jobs()
	if len(stages) > 0 {
		visible = stages[len(stages)-1].Visible
	}

	out := VisibleOutput{
		GeneratedAt: time.Now().UTC(),
		Closure:     opts.Mode.String(),
		Selectors:   nonNil(selectors),
		Stages:      make([]Stage, len(stages)),
		Count:       len(visible),
		Jobs:        jobs(visible),
	}
	for i, s := range stages {
		out.Stages[i] = Stage{Selector: s.Selector, Matched: len(s.Matched), Visible: len(s.Visible)}
	}
	return out
}

// ColumnsOutput is the payload of --robot-columns.
type ColumnsOutput struct {
	GeneratedAt time.Time `json:"generated_at"`
	Source      string    `json:"source,omitempty"`
	Job         int       `json:"job"`
	Policy      string    `json:"policy"`
	// Center indexes the column holding only Job.
	Center  int     `json:"center"`
	Columns [][]Job `json:"columns"`
}

// Columns lays out the columns around job id.
func Columns(g *jobgraph.Graph, id int, opts layering.Options) (ColumnsOutput, error) {
	lay, err := layering.Compute(g, id, opts)
	if err != nil {
		return ColumnsOutput{}, err
	}
	out := ColumnsOutput{
		GeneratedAt: time.Now().UTC(),
		Job:         id,
		Policy:      opts.Policy.String(),
		Center:      lay.Center,
		Columns:     make([][]Job, len(lay.Columns)),
	}
	for i, col := range lay.Columns {
		out.Columns[i] = jobs(col)
	}
	return out, nil
}

// StatsOutput is the payload of --robot-stats.
type StatsOutput struct {
	GeneratedAt time.Time `json:"generated_at"`
	Source      string    `json:"source,omitempty"`
	jobgraph.Stats
}

// Stats analyzes g.
func Stats(g *jobgraph.Graph) StatsOutput {
	return StatsOutput{GeneratedAt: time.Now().UTC(), Stats: jobgraph.Analyze(g)}
}

// MetricsOutput is the payload of --robot-metrics.
type MetricsOutput struct {
	GeneratedAt time.Time             `json:"generated_at"`
	Enabled     bool                  `json:"enabled"`
	Timing      []metrics.TimingStats `json:"timing"`
}

// Metrics snapshots the in-process timings.
func Metrics() MetricsOutput {
	return MetricsOutput{
		GeneratedAt: time.Now().UTC(),
		Enabled:     metrics.Enabled(),
		Timing:      metrics.Snapshot(),
	}
}

// Encode writes v as indented JSON.
func Encode(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
