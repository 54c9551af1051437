package session

import (
	"errors"
	"fmt"
)

var (
	// ErrSelectorIndex is returned for an UpdateSelector or DeleteSelector
	// whose index is outside the selector list.
	ErrSelectorIndex = errors.New("selector index out of range")
	// ErrUnknownJob is returned when toggling an id that is not in the graph.
	ErrUnknownJob = errors.New("unknown job")
	// ErrNotReducible is returned by Reduce for Undo and Redo, which move
	// through history instead of deriving a new state.
	ErrNotReducible = errors.New("command is not a state edit")
)

// Command is a user edit or a history move.
type Command interface {
	fmt.Stringer
	command()
}

// AddSelector inserts an empty selector at the front of the chain.
type AddSelector struct{}

// UpdateSelector replaces the text of the selector at Index.
type UpdateSelector struct {
	Index int
	Text  string
}

// DeleteSelector removes the selector at Index.
type DeleteSelector struct {
	Index int
}

// ToggleSelection selects ID, or clears the selection if ID is already selected.
type ToggleSelection struct {
	ID int
}

// Undo moves back one edit.
type Undo struct{}

// Redo moves forward one edit.
type Redo struct{}

func (AddSelector) command()     {}
func (UpdateSelector) command()  {}
func (DeleteSelector) command()  {}
func (ToggleSelection) command() {}
func (Undo) command()            {}
func (Redo) command()            {}

func (AddSelector) String() string { return "add selector" }
func (c UpdateSelector) String() string {
	return fmt.Sprintf("update selector %d to %q", c.Index, c.Text)
}
func (c DeleteSelector) String() string  { return fmt.Sprintf("delete selector %d", c.Index) }
func (c ToggleSelection) String() string { return fmt.Sprintf("toggle job %d", c.ID) }
func (Undo) String() string              { return "undo" }
func (Redo) String() string              { return "redo" }

// Reduce applies an edit command to s and returns the new state. s is not
// modified. Invalid indices and ids return an error and the zero State.
func Reduce(s State, cmd Command) (State, error) {
	switch c := cmd.(type) {
	case AddSelector:
		sels := make([]string, 0, len(s.Selectors)+1)
		sels = append(sels, "")
		s.Selectors = append(sels, s.Selectors...)
		return s, nil

	case UpdateSelector:
		if c.Index < 0 || c.Index >= len(s.Selectors) {
			return State{}, fmt.Errorf("update selector %d of %d: %w", c.Index, len(s.Selectors), ErrSelectorIndex)
		}
		sels := make([]string, len(s.Selectors))
		copy(sels, s.Selectors)
		sels[c.Index] = c.Text
		s.Selectors = sels
		return s, nil

	case DeleteSelector:
		if c.Index < 0 || c.Index >= len(s.Selectors) {
			return State{}, fmt.Errorf("delete selector %d of %d: %w", c.Index, len(s.Selectors), ErrSelectorIndex)
		}
		sels := make([]string, 0, len(s.Selectors)-1)
		sels = append(sels, s.Selectors[:c.Index]...)
		s.Selectors = append(sels, s.Selectors[c.Index+1:]...)
		return s, nil

	case ToggleSelection:
		if s.Graph == nil || !s.Graph.Has(c.ID) {
			return State{}, fmt.Errorf("toggle job %d: %w", c.ID, ErrUnknownJob)
		}
		if s.Selection == c.ID {
			s.Selection = NoSelection
		} else {
			s.Selection = c.ID
		}
		return s, nil

	case Undo, Redo:
		return State{}, fmt.Errorf("reduce %s: %w", c, ErrNotReducible)

	default:
		return State{}, fmt.Errorf("reduce %T: %w", cmd, ErrNotReducible)
	}
}
