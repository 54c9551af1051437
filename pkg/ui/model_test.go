package ui

import (
	"context"
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/vanderheijden86/jobwork/pkg/jobgraph"
	"github.com/vanderheijden86/jobwork/pkg/model"
	"github.com/vanderheijden86/jobwork/pkg/session"
	"github.com/vanderheijden86/jobwork/pkg/testutil"
)

// alpha feeds beta; gamma stands alone.
func browserRecords() []model.Record {
	return []model.Record{
		testutil.Job("alpha", []string{"a"}, nil),
		testutil.Job("beta", nil, []string{"a"}),
		testutil.Job("gamma", []string{"z"}, nil),
	}
}

func newTestModel(t *testing.T, opts Options) Model {
	t.Helper()
	m := NewModel(jobgraph.Build(browserRecords()), opts)
	next, _ := m.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	return next.(Model)
}

func keyMsg(k string) tea.KeyMsg {
	switch k {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "tab":
		return tea.KeyMsg{Type: tea.KeyTab}
	case "space":
		return tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}}
	case "ctrl+z":
		return tea.KeyMsg{Type: tea.KeyCtrlZ}
	case "ctrl+r":
		return tea.KeyMsg{Type: tea.KeyCtrlR}
	case "ctrl+c":
		return tea.KeyMsg{Type: tea.KeyCtrlC}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(k)}
}

func press(m Model, keys ...string) Model {
	for _, k := range keys {
		next, _ := m.Update(keyMsg(k))
		m = next.(Model)
	}
	return m
}

func typeText(m Model, s string) Model {
	for _, r := range s {
		next, _ := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
		m = next.(Model)
	}
	return m
}

func visibleIDs(m Model) []int {
	ids := make([]int, 0, len(m.Visible()))
	for _, j := range m.Visible() {
		ids = append(ids, j.ID)
	}
	return ids
}

func sameInts(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestNewModel_AllJobsVisible(t *testing.T) {
	m := newTestModel(t, Options{})
	if got := visibleIDs(m); !sameInts(got, []int{0, 1, 2}) {
		t.Errorf("visible = %v", got)
	}
	if _, ok := m.State().Selected(); ok {
		t.Error("nothing should be selected")
	}
	if m.focus != focusJobs {
		t.Errorf("focus = %s", m.focus)
	}
}

func TestAddAndEditSelector(t *testing.T) {
	m := newTestModel(t, Options{})

	m = press(m, "+")
	if !m.editing || m.focus != focusSelectors {
		t.Fatalf("add should start editing the new selector (editing=%v focus=%s)", m.editing, m.focus)
	}
	m = typeText(m, "gamma")
	m = press(m, "enter")

	if m.editing {
		t.Error("enter should commit the edit")
	}
	if sels := m.State().Selectors; len(sels) != 1 || sels[0] != "gamma" {
		t.Fatalf("selectors = %q", sels)
	}
	if got := visibleIDs(m); !sameInts(got, []int{2}) {
		t.Errorf("visible = %v, want [2]", got)
	}
	if pos, total := m.session.Position(); pos != 2 || total != 3 {
		t.Errorf("history position %d/%d, want one entry for add and one for the edit", pos, total)
	}
}

func TestEditCancelKeepsSelector(t *testing.T) {
	m := newTestModel(t, Options{})
	m = press(m, "+")
	m = typeText(m, "alpha")
	m = press(m, "esc")

	if sels := m.State().Selectors; len(sels) != 1 || sels[0] != "" {
		t.Errorf("selectors = %q", sels)
	}
	if len(m.Visible()) != 3 {
		t.Errorf("blank selector should keep all jobs, got %v", visibleIDs(m))
	}
}

func TestEditUnchangedTextRecordsNothing(t *testing.T) {
	m := newTestModel(t, Options{})
	m = press(m, "+", "enter")
	if _, total := m.session.Position(); total != 2 {
		t.Errorf("total = %d, want 2", total)
	}
}

func TestEditExistingSelector(t *testing.T) {
	m := newTestModel(t, Options{})
	m = press(m, "+")
	m = typeText(m, "alp")
	m = press(m, "enter", "e")
	if !m.editing || m.input.Value() != "alp" {
		t.Fatalf("editing=%v value=%q", m.editing, m.input.Value())
	}
	m = typeText(m, "ha")
	m = press(m, "enter")
	if sels := m.State().Selectors; sels[0] != "alpha" {
		t.Errorf("selectors = %q", sels)
	}
	if got := visibleIDs(m); !sameInts(got, []int{0, 1}) {
		t.Errorf("visible = %v, want closure [0 1]", got)
	}
}

func TestDeleteSelector(t *testing.T) {
	m := newTestModel(t, Options{})
	m = press(m, "+")
	m = typeText(m, "gamma")
	m = press(m, "enter", "x")

	if len(m.State().Selectors) != 0 {
		t.Errorf("selectors = %q", m.State().Selectors)
	}
	if len(m.Visible()) != 3 {
		t.Errorf("visible = %v", visibleIDs(m))
	}

	// Delete only acts on the selector pane.
	m = press(m, "+", "esc", "tab", "d")
	if len(m.State().Selectors) != 1 {
		t.Errorf("d outside the selector pane deleted a selector")
	}
}

func TestUndoRedo(t *testing.T) {
	m := newTestModel(t, Options{})
	m = press(m, "+")
	m = typeText(m, "gamma")
	m = press(m, "enter")

	m = press(m, "u")
	if sels := m.State().Selectors; len(sels) != 1 || sels[0] != "" {
		t.Errorf("after undo: %q", sels)
	}
	m = press(m, "U")
	if sels := m.State().Selectors; len(sels) != 1 || sels[0] != "gamma" {
		t.Errorf("after redo: %q", sels)
	}
	m = press(m, "ctrl+z", "ctrl+z")
	if len(m.State().Selectors) != 0 || len(m.Visible()) != 3 {
		t.Errorf("after two undos: %q", m.State().Selectors)
	}

	m = press(m, "u")
	if m.statusMsg != "Nothing to undo" || m.statusIsError {
		t.Errorf("status = %q", m.statusMsg)
	}
	m = press(m, "ctrl+r", "ctrl+r")
	m = press(m, "U")
	if m.statusMsg != "Nothing to redo" {
		t.Errorf("status = %q", m.statusMsg)
	}
}

func TestNewEditDropsRedo(t *testing.T) {
	m := newTestModel(t, Options{})
	m = press(m, "+")
	m = typeText(m, "gamma")
	m = press(m, "enter", "u")
	if !m.session.CanRedo() {
		t.Fatal("expected redo after undo")
	}
	m = press(m, "tab", "space")
	if m.session.CanRedo() {
		t.Error("a new edit should discard the redo branch")
	}
}

func TestToggleSelection(t *testing.T) {
	m := newTestModel(t, Options{})

	m = press(m, "space")
	if id, ok := m.State().Selected(); !ok || id != 0 {
		t.Fatalf("selected = %d, %v", id, ok)
	}
	m = press(m, "space")
	if _, ok := m.State().Selected(); ok {
		t.Error("second toggle should clear the selection")
	}

	m = press(m, "j", "enter")
	if id, _ := m.State().Selected(); id != 1 {
		t.Errorf("selected = %d, want 1", id)
	}
}

func TestReducerErrorShownInStatus(t *testing.T) {
	m := newTestModel(t, Options{})
	if m.apply(session.DeleteSelector{Index: 3}) {
		t.Fatal("expected failure")
	}
	if !m.statusIsError || !strings.Contains(m.statusMsg, "out of range") {
		t.Errorf("status = %q (error=%v)", m.statusMsg, m.statusIsError)
	}
	if _, total := m.session.Position(); total != 1 {
		t.Errorf("failed edit recorded in history")
	}
}

func TestFocusCycle(t *testing.T) {
	m := newTestModel(t, Options{})
	want := []focus{focusDetail, focusSelectors, focusJobs}
	for _, f := range want {
		m = press(m, "tab")
		if m.focus != f {
			t.Errorf("focus = %s, want %s", m.focus, f)
		}
	}
	next, _ := m.Update(tea.KeyMsg{Type: tea.KeyShiftTab})
	if next.(Model).focus != focusSelectors {
		t.Errorf("shift+tab focus = %s", next.(Model).focus)
	}
}

func TestNavigationClamps(t *testing.T) {
	m := newTestModel(t, Options{})
	m = press(m, "k")
	if m.jobCursor != 0 {
		t.Errorf("cursor = %d", m.jobCursor)
	}
	m = press(m, "j", "j", "j", "j")
	if m.jobCursor != 2 {
		t.Errorf("cursor = %d", m.jobCursor)
	}
	m = press(m, "g")
	if m.jobCursor != 0 {
		t.Errorf("cursor = %d", m.jobCursor)
	}
}

func TestCopyJob(t *testing.T) {
	var copied string
	orig := clipboardWriteAll
	t.Cleanup(func() { clipboardWriteAll = orig })
	clipboardWriteAll = func(s string) error {
		copied = s
		return nil
	}

	m := newTestModel(t, Options{})
	m = press(m, "j", "y")
	j, _ := m.State().Graph.Job(1)
	if copied != j.Text {
		t.Errorf("copied %q, want %q", copied, j.Text)
	}
	if m.statusIsError {
		t.Errorf("status = %q", m.statusMsg)
	}

	clipboardWriteAll = func(string) error { return errors.New("no clipboard") }
	m = press(m, "c")
	if !m.statusIsError || !strings.Contains(m.statusMsg, "no clipboard") {
		t.Errorf("status = %q", m.statusMsg)
	}
}

func TestColumnsView(t *testing.T) {
	m := newTestModel(t, Options{ShowColumns: true})

	_, content := m.rightContent()
	if !strings.Contains(content, "space selects a job") {
		t.Errorf("without a selection the detail is shown with a hint:\n%s", content)
	}

	m = press(m, "space")
	key, content := m.rightContent()
	if key != "columns:0" {
		t.Errorf("key = %q", key)
	}
	for _, want := range []string{"job #0", "downstream 1", "#1 task beta"} {
		if !strings.Contains(content, want) {
			t.Errorf("columns view missing %q:\n%s", want, content)
		}
	}

	m = press(m, "v")
	if key, _ := m.rightContent(); key != "detail:0" {
		t.Errorf("after v key = %q", key)
	}
}

func TestFileChangedReloads(t *testing.T) {
	recs := append(browserRecords(), testutil.Job("delta", nil, []string{"z"}))
	m := newTestModel(t, Options{
		Load: func(context.Context) ([]model.Record, error) { return recs, nil },
	})
	m = press(m, "+")
	m = typeText(m, "gamma")
	m = press(m, "enter", "tab", "space")

	next, cmd := m.Update(FileChangedMsg{})
	if cmd == nil {
		t.Fatal("expected reload command")
	}
	next, _ = next.Update(cmd())
	m = next.(Model)

	if m.State().Graph.Len() != 4 {
		t.Fatalf("graph has %d jobs", m.State().Graph.Len())
	}
	if sels := m.State().Selectors; len(sels) != 1 || sels[0] != "gamma" {
		t.Errorf("selectors not carried over: %q", sels)
	}
	if got := visibleIDs(m); !sameInts(got, []int{2, 3}) {
		t.Errorf("visible = %v, want [2 3]", got)
	}
	if id, ok := m.State().Selected(); !ok || id != 2 {
		t.Errorf("selection = %d, %v", id, ok)
	}
	if m.session.CanUndo() {
		t.Error("reload should start a new history")
	}
	if !strings.HasPrefix(m.statusMsg, "Reloaded: 4 jobs") {
		t.Errorf("status = %q", m.statusMsg)
	}
}

func TestReloadDropsMissingSelection(t *testing.T) {
	m := newTestModel(t, Options{})
	m = press(m, "j", "j", "space")

	next, _ := m.Update(DataReloadedMsg{Graph: jobgraph.Build(browserRecords()[:2])})
	m = next.(Model)
	if _, ok := m.State().Selected(); ok {
		t.Error("selection of a vanished job should be dropped")
	}
	if m.jobCursor != 1 {
		t.Errorf("cursor = %d, want clamped to 1", m.jobCursor)
	}
}

func TestReloadErrorShownInStatus(t *testing.T) {
	m := newTestModel(t, Options{})
	next, cmd := m.Update(DataReloadedMsg{Err: errors.New("disk gone")})
	m = next.(Model)
	if !m.statusIsError || !strings.Contains(m.statusMsg, "disk gone") {
		t.Errorf("status = %q", m.statusMsg)
	}
	if cmd != nil {
		t.Error("no watcher, no follow-up command")
	}
	if m.State().Graph.Len() != 3 {
		t.Error("failed reload replaced the graph")
	}
}

func TestFileChangedWithoutLoader(t *testing.T) {
	m := newTestModel(t, Options{})
	if _, cmd := m.Update(FileChangedMsg{}); cmd != nil {
		t.Error("expected no command without a loader or watcher")
	}
}

func TestQuit(t *testing.T) {
	for _, k := range []string{"q", "ctrl+c"} {
		m := newTestModel(t, Options{})
		_, cmd := m.Update(keyMsg(k))
		if cmd == nil {
			t.Fatalf("%s: no command", k)
		}
		if _, ok := cmd().(tea.QuitMsg); !ok {
			t.Errorf("%s did not quit", k)
		}
	}

	// q while editing is text.
	m := newTestModel(t, Options{})
	m = press(m, "+", "q")
	if m.input.Value() != "q" {
		t.Errorf("input = %q", m.input.Value())
	}
}

func TestView(t *testing.T) {
	m := newTestModel(t, Options{Source: "data/defined.jsonl"})
	m = press(m, "space")
	out := m.View()
	for _, want := range []string{"history 2/2", "3/3 visible", "selected #0", "data/defined.jsonl", "No selectors"} {
		if !strings.Contains(out, want) {
			t.Errorf("view missing %q", want)
		}
	}

	// Narrow terminals show one body pane at a time.
	next, _ := m.Update(tea.WindowSizeMsg{Width: 60, Height: 20})
	m = next.(Model)
	if m.isSplitView() {
		t.Error("60 columns should not split")
	}
	_ = m.View()
	m = press(m, "tab")
	_ = m.View()
}
