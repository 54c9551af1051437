// Package history keeps a linear undo/redo timeline of values.
//
// The timeline is a doubly linked chain with a current pointer. Recording a
// value after undoing replaces everything after the current node: there is
// never more than one redo path.
package history

type node[S any] struct {
	value      S
	prev, next *node[S]
}

// Timeline is a linear history of S values. The zero value is not usable;
// create one with New. A Timeline is not safe for concurrent use.
type Timeline[S any] struct {
	cur   *node[S]
	pos   int // index of cur from the first node
	total int // nodes reachable from the first node
}

// New returns a timeline holding initial as its only entry.
func New[S any](initial S) *Timeline[S] {
	return &Timeline[S]{cur: &node[S]{value: initial}, total: 1}
}

// Current returns the value at the current pointer.
func (t *Timeline[S]) Current() S {
	return t.cur.value
}

// Record appends v after the current entry, drops the redo branch and
// moves the pointer to v. It returns the number of discarded entries.
func (t *Timeline[S]) Record(v S) int {
	dropped := 0
	for n := t.cur.next; n != nil; {
		next := n.next
		n.prev, n.next = nil, nil
		n = next
		dropped++
	}

	n := &node[S]{value: v, prev: t.cur}
	t.cur.next = n
	t.cur = n
	t.pos++
	t.total = t.pos + 1
	return dropped
}

// Undo moves the pointer back one entry. At the first entry it does
// nothing and reports false. The returned value is the current one either way.
func (t *Timeline[S]) Undo() (S, bool) {
	if t.cur.prev == nil {
		return t.cur.value, false
	}
	t.cur = t.cur.prev
	t.pos--
	return t.cur.value, true
}

// Redo moves the pointer forward one entry. At the last entry it does
// nothing and reports false.
func (t *Timeline[S]) Redo() (S, bool) {
	if t.cur.next == nil {
		return t.cur.value, false
	}
	t.cur = t.cur.next
	t.pos++
	return t.cur.value, true
}

func (t *Timeline[S]) CanUndo() bool { return t.cur.prev != nil }
func (t *Timeline[S]) CanRedo() bool { return t.cur.next != nil }

// Position returns the zero-based index of the current entry and the
// number of entries in the timeline, including redoable ones.
func (t *Timeline[S]) Position() (pos, total int) {
	return t.pos, t.total
}
