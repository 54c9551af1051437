// Package session holds the browsing state of one graph: the selector
// chain and the selected job, the commands that edit them and the manager
// that records every edit for undo and redo.
package session

import (
	"github.com/vanderheijden86/jobwork/pkg/jobgraph"
	"github.com/vanderheijden86/jobwork/pkg/layering"
	"github.com/vanderheijden86/jobwork/pkg/model"
	"github.com/vanderheijden86/jobwork/pkg/selector"
)

// NoSelection is the Selection value when no job is selected.
const NoSelection = -1

// State is one point in a session's history. States are values: edits
// produce new States and never modify the Selectors backing array of an
// existing one.
type State struct {
	Graph     *jobgraph.Graph
	Selectors []string
	Selection int
}

// NewState returns the initial state for g: no selectors, nothing selected.
func NewState(g *jobgraph.Graph) State {
	return State{Graph: g, Selection: NoSelection}
}

// Selected returns the selected job id, if any.
func (s State) Selected() (int, bool) {
	return s.Selection, s.Selection != NoSelection
}

// SelectedJob returns the selected job, if any.
func (s State) SelectedJob() (*model.Job, bool) {
	if s.Selection == NoSelection || s.Graph == nil {
		return nil, false
	}
	return s.Graph.Job(s.Selection)
}

// Visible returns the jobs left after applying the selector chain.
func (s State) Visible(opts selector.Options) []*model.Job {
	return selector.VisibleJobs(s.Graph, s.Selectors, opts)
}

// Columns returns the layering columns around job id.
func (s State) Columns(id int, opts layering.Options) ([][]*model.Job, error) {
	return layering.Columns(s.Graph, id, opts)
}

// Rebase moves s onto a freshly loaded graph. Selectors carry over; the
// selection is dropped when its id no longer exists.
func (s State) Rebase(g *jobgraph.Graph) State {
	next := State{Graph: g, Selectors: s.Selectors, Selection: NoSelection}
	if s.Selection != NoSelection && g.Has(s.Selection) {
		next.Selection = s.Selection
	}
	return next
}
