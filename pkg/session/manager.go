package session

import (
	"github.com/vanderheijden86/jobwork/pkg/debug"
	"github.com/vanderheijden86/jobwork/pkg/history"
	"github.com/vanderheijden86/jobwork/pkg/metrics"
)

type entry struct {
	state State
	cause Command // nil for the initial state
}

// Manager owns the timeline of one session and serializes every command
// through it. It is not safe for concurrent use.
type Manager struct {
	timeline *history.Timeline[entry]
}

// NewManager starts a session at initial.
func NewManager(initial State) *Manager {
	return &Manager{timeline: history.New(entry{state: initial})}
}

// Apply runs cmd and returns the resulting current state.
//
// Undo and Redo move through the timeline and are no-ops at its ends.
// Edits are reduced against the current state and recorded after it,
// discarding anything that could have been redone. A failed edit leaves
// the timeline untouched.
func (m *Manager) Apply(cmd Command) (State, error) {
	defer metrics.Timer(metrics.HistoryApply)()

	switch cmd.(type) {
	case Undo:
		e, moved := m.timeline.Undo()
		debug.Log("history: undo moved=%v", moved)
		return e.state, nil
	case Redo:
		e, moved := m.timeline.Redo()
		debug.Log("history: redo moved=%v", moved)
		return e.state, nil
	}

	next, err := Reduce(m.State(), cmd)
	if err != nil {
		return m.State(), err
	}
	if dropped := m.timeline.Record(entry{state: next, cause: cmd}); dropped > 0 {
		debug.Log("history: %s discarded %d redo entries", cmd, dropped)
	}
	return next, nil
}

// State returns the current state.
func (m *Manager) State() State {
	return m.timeline.Current().state
}

// LastCommand returns the edit that produced the current state, or nil at
// the start of the session.
func (m *Manager) LastCommand() Command {
	return m.timeline.Current().cause
}

func (m *Manager) CanUndo() bool { return m.timeline.CanUndo() }
func (m *Manager) CanRedo() bool { return m.timeline.CanRedo() }

// Position reports the current history index and the number of entries.
func (m *Manager) Position() (pos, total int) {
	return m.timeline.Position()
}
