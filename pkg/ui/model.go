// Package ui is the interactive job browser: a selector chain on top, the
// visible jobs on the left and the selected job's columns or details on the
// right.
package ui

import (
	"context"
	"fmt"
	"strings"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/vanderheijden86/jobwork/pkg/debug"
	"github.com/vanderheijden86/jobwork/pkg/jobgraph"
	"github.com/vanderheijden86/jobwork/pkg/layering"
	"github.com/vanderheijden86/jobwork/pkg/metrics"
	"github.com/vanderheijden86/jobwork/pkg/model"
	"github.com/vanderheijden86/jobwork/pkg/selector"
	"github.com/vanderheijden86/jobwork/pkg/session"
	"github.com/vanderheijden86/jobwork/pkg/watcher"
)

const (
	defaultWidth       = 120
	defaultHeight      = 40
	splitViewThreshold = 100
	defaultSplitRatio  = 0.4
	maxSelectorRows    = 6
)

// clipboardWriteAll is swapped out in tests.
var clipboardWriteAll = clipboard.WriteAll

// FileChangedMsg is sent when the data file changes on disk.
type FileChangedMsg struct{}

// DataReloadedMsg carries the graph rebuilt after a file change.
type DataReloadedMsg struct {
	Graph *jobgraph.Graph
	Err   error
}

// WatchFileCmd waits for the next change reported by w.
func WatchFileCmd(w *watcher.Watcher) tea.Cmd {
	return func() tea.Msg {
		<-w.Changed()
		return FileChangedMsg{}
	}
}

// Options configures the browser.
type Options struct {
	Selector selector.Options
	Layering layering.Options

	// ShowColumns starts the right pane on the columns view.
	ShowColumns bool
	// SplitRatio is the share of the width given to the job list.
	SplitRatio float64

	// Source is shown in the header (file path or URL).
	Source string
	// Load re-reads the records on a file change. Nil disables reload.
	Load func(ctx context.Context) ([]model.Record, error)
	// Watcher reports file changes. Nil disables live reload.
	Watcher *watcher.Watcher
}

type focus int

const (
	focusSelectors focus = iota
	focusJobs
	focusDetail
	focusCount
)

func (f focus) String() string {
	switch f {
	case focusSelectors:
		return "selectors"
	case focusJobs:
		return "jobs"
	default:
		return "detail"
	}
}

// Model is the bubbletea model of the browser.
type Model struct {
	session *session.Manager
	opts    Options
	theme   Theme
	md      *MarkdownRenderer
	stats   jobgraph.Stats

	stages  []selector.Stage
	visible []*model.Job

	focus     focus
	selCursor int
	jobCursor int
	jobOffset int

	editing bool
	input   textinput.Model

	viewport    viewport.Model
	showColumns bool
	rightKey    string

	width, height int

	statusMsg     string
	statusIsError bool
}

// NewModel starts a browsing session over g.
func NewModel(g *jobgraph.Graph, opts Options) Model {
	if opts.SplitRatio <= 0 || opts.SplitRatio >= 1 {
		opts.SplitRatio = defaultSplitRatio
	}

	ti := textinput.New()
	ti.Prompt = "› "
	ti.Placeholder = "keywords (blank matches everything)"
	ti.CharLimit = 256

	m := Model{
		session:     session.NewManager(session.NewState(g)),
		opts:        opts,
		theme:       DefaultTheme(lipgloss.DefaultRenderer()),
		md:          NewMarkdownRenderer(defaultWidth / 2),
		stats:       jobgraph.Analyze(g),
		focus:       focusJobs,
		input:       ti,
		viewport:    viewport.New(defaultWidth/2, defaultHeight-8),
		showColumns: opts.ShowColumns,
		width:       defaultWidth,
		height:      defaultHeight,
	}
	m.refresh()
	return m
}

func (m Model) Init() tea.Cmd {
	if m.opts.Watcher != nil {
		return WatchFileCmd(m.opts.Watcher)
	}
	return nil
}

// State returns the current session state.
func (m Model) State() session.State {
	return m.session.State()
}

// Visible returns the jobs left by the selector chain.
func (m Model) Visible() []*model.Job {
	return m.visible
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.input.Width = max(10, m.width-8)
		m.refresh()
		return m, nil

	case FileChangedMsg:
		if m.opts.Load == nil {
			return m, m.watchCmd()
		}
		return m, reloadCmd(m.opts.Load)

	case DataReloadedMsg:
		if msg.Err != nil {
			m.setError(fmt.Sprintf("Reload failed: %v", msg.Err))
		} else {
			// A reload starts a new session; selectors carry over.
			m.session = session.NewManager(m.session.State().Rebase(msg.Graph))
			m.stats = jobgraph.Analyze(msg.Graph)
			m.refresh()
			m.setStatus(fmt.Sprintf("Reloaded: %d jobs", msg.Graph.Len()))
		}
		return m, m.watchCmd()

	case tea.KeyMsg:
		if m.editing {
			return m.updateEditing(msg)
		}
		return m.updateKeys(msg)
	}

	if m.editing {
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m Model) watchCmd() tea.Cmd {
	if m.opts.Watcher == nil {
		return nil
	}
	return WatchFileCmd(m.opts.Watcher)
}

func reloadCmd(load func(context.Context) ([]model.Record, error)) tea.Cmd {
	return func() tea.Msg {
		recs, err := load(context.Background())
		if err != nil {
			return DataReloadedMsg{Err: err}
		}
		return DataReloadedMsg{Graph: jobgraph.Build(recs)}
	}
}

func (m Model) updateEditing(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		return m, tea.Quit
	case "esc":
		m.stopEditing()
		m.setStatus("Edit cancelled")
		return m, nil
	case "enter":
		text := m.input.Value()
		m.stopEditing()
		if sels := m.State().Selectors; m.selCursor < len(sels) && sels[m.selCursor] == text {
			return m, nil
		}
		m.apply(session.UpdateSelector{Index: m.selCursor, Text: text})
		return m, nil
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) updateKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit

	case "tab":
		m.focus = (m.focus + 1) % focusCount
		return m, nil
	case "shift+tab":
		m.focus = (m.focus + focusCount - 1) % focusCount
		return m, nil

	case "+", "a":
		if m.apply(session.AddSelector{}) {
			m.focus = focusSelectors
			m.selCursor = 0
			return m, m.startEditing()
		}
		return m, nil

	case "enter", "e":
		if m.focus == focusSelectors && len(m.State().Selectors) > 0 {
			return m, m.startEditing()
		}
		if msg.String() == "enter" && m.focus == focusJobs {
			m.toggleCursorJob()
		}
		return m, nil

	case "x", "d":
		if m.focus == focusSelectors && len(m.State().Selectors) > 0 {
			m.apply(session.DeleteSelector{Index: m.selCursor})
		}
		return m, nil

	case " ":
		if m.focus == focusJobs {
			m.toggleCursorJob()
		}
		return m, nil

	case "u", "ctrl+z":
		if !m.session.CanUndo() {
			m.setStatus("Nothing to undo")
			return m, nil
		}
		m.apply(session.Undo{})
		return m, nil

	case "ctrl+r", "U":
		if !m.session.CanRedo() {
			m.setStatus("Nothing to redo")
			return m, nil
		}
		m.apply(session.Redo{})
		return m, nil

	case "c", "y":
		m.copyJob()
		return m, nil

	case "v":
		m.showColumns = !m.showColumns
		m.refresh()
		return m, nil
	}

	return m.navigate(msg)
}

func (m Model) navigate(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.focus == focusDetail {
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	}

	n := len(m.visible)
	cursor := &m.jobCursor
	if m.focus == focusSelectors {
		n = len(m.State().Selectors)
		cursor = &m.selCursor
	}

	switch msg.String() {
	case "j", "down":
		*cursor++
	case "k", "up":
		*cursor--
	case "g", "home":
		*cursor = 0
	case "G", "end":
		*cursor = n - 1
	case "pgdown", "ctrl+d":
		*cursor += max(1, m.listHeight()/2)
	case "pgup", "ctrl+u":
		*cursor -= max(1, m.listHeight()/2)
	default:
		return m, nil
	}
	*cursor = clamp(*cursor, 0, n-1)
	m.refresh()
	return m, nil
}

// apply runs cmd through the session and refreshes the views. Errors from
// the reducer go to the status bar.
func (m *Model) apply(cmd session.Command) bool {
	if _, err := m.session.Apply(cmd); err != nil {
		debug.Log("ui: %s failed: %v", cmd, err)
		m.setError(err.Error())
		return false
	}
	pos, total := m.session.Position()
	m.setStatus(fmt.Sprintf("%s (%d/%d)", cmd, pos+1, total))
	m.refresh()
	return true
}

func (m *Model) toggleCursorJob() {
	if m.jobCursor < len(m.visible) {
		m.apply(session.ToggleSelection{ID: m.visible[m.jobCursor].ID})
	}
}

// focusedJob is the selected job, or the job under the cursor.
func (m Model) focusedJob() (*model.Job, bool) {
	if j, ok := m.State().SelectedJob(); ok {
		return j, true
	}
	if m.jobCursor < len(m.visible) {
		return m.visible[m.jobCursor], true
	}
	return nil, false
}

func (m *Model) copyJob() {
	j, ok := m.focusedJob()
	if !ok {
		m.setError("No job to copy")
		return
	}
	if err := clipboardWriteAll(j.Text); err != nil {
		m.setError(fmt.Sprintf("Clipboard error: %v", err))
		return
	}
	m.setStatus(fmt.Sprintf("Copied #%d to clipboard", j.ID))
}

func (m *Model) startEditing() tea.Cmd {
	sels := m.State().Selectors
	if m.selCursor >= len(sels) {
		return nil
	}
	m.editing = true
	m.input.SetValue(sels[m.selCursor])
	m.input.CursorEnd()
	return m.input.Focus()
}

func (m *Model) stopEditing() {
	m.editing = false
	m.input.Blur()
	m.input.Reset()
}

func (m *Model) setStatus(s string) {
	m.statusMsg, m.statusIsError = s, false
}

func (m *Model) setError(s string) {
	m.statusMsg, m.statusIsError = s, true
}

// refresh recomputes everything derived from the current state.
func (m *Model) refresh() {
	st := m.State()
	m.stages = selector.Stages(st.Graph, st.Selectors, m.opts.Selector)
	if len(m.stages) == 0 {
		m.visible = st.Graph.Jobs()
	} else {
		m.visible = m.stages[len(m.stages)-1].Visible
	}

	m.selCursor = clamp(m.selCursor, 0, len(st.Selectors)-1)
	m.jobCursor = clamp(m.jobCursor, 0, len(m.visible)-1)
	m.jobOffset = scrollOffset(m.jobCursor, m.jobOffset, m.listHeight())

	_, right := m.paneWidths()
	m.viewport.Width = max(1, right-2)
	m.viewport.Height = max(1, m.bodyHeight()-2)
	m.md.SetWidth(m.viewport.Width - 2)

	key, content := m.rightContent()
	m.viewport.SetContent(content)
	if key != m.rightKey {
		m.viewport.GotoTop()
		m.rightKey = key
	}
}

// rightContent renders the right pane and a key identifying what it shows.
func (m *Model) rightContent() (string, string) {
	st := m.State()
	if j, ok := st.SelectedJob(); ok && m.showColumns {
		lay, err := layering.Compute(st.Graph, j.ID, m.opts.Layering)
		if err != nil {
			return "error", m.theme.ErrorText.Render(err.Error())
		}
		return fmt.Sprintf("columns:%d", j.ID), renderColumns(m.theme, lay, m.viewport.Width)
	}

	j, ok := m.focusedJob()
	if !ok {
		return "empty", m.theme.MutedText.Render("No jobs match the selectors.")
	}
	out, err := m.md.Render(jobMarkdown(j))
	if err != nil {
		debug.Log("ui: markdown: %v", err)
	}
	if m.showColumns {
		out = m.theme.MutedText.Render("space selects a job to show its columns") + "\n\n" + out
	}
	return fmt.Sprintf("detail:%d", j.ID), out
}

func (m Model) selectorRows() int {
	return clamp(len(m.State().Selectors), 1, maxSelectorRows)
}

// bodyHeight is the outer height of the job list and right pane: the
// window minus header, selector pane and two footer lines.
func (m Model) bodyHeight() int {
	return max(3, m.height-1-(m.selectorRows()+2)-2)
}

func (m Model) listHeight() int {
	return max(1, m.bodyHeight()-2)
}

func (m Model) isSplitView() bool {
	return m.width >= splitViewThreshold
}

func (m Model) paneWidths() (left, right int) {
	if !m.isSplitView() {
		return m.width, m.width
	}
	left = int(float64(m.width) * m.opts.SplitRatio)
	return left, m.width - left
}

func (m Model) View() string {
	defer metrics.Timer(metrics.UIRender)()

	body := m.renderJobs()
	if m.isSplitView() {
		body = lipgloss.JoinHorizontal(lipgloss.Top, body, m.renderRight())
	} else if m.focus == focusDetail {
		body = m.renderRight()
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		m.renderHeader(),
		m.renderSelectors(),
		body,
		m.renderFooter(),
	)
}

func (m Model) pane(f focus) lipgloss.Style {
	if m.focus == f {
		return m.theme.FocusedPane
	}
	return m.theme.Pane
}

func (m Model) renderHeader() string {
	title := m.theme.Header.Render("jw")
	info := fmt.Sprintf(" %d jobs · %d labels · %d edges", m.stats.Jobs, m.stats.Labels, m.stats.Edges)
	if n := len(m.stats.CyclicGroups); n > 0 {
		info += fmt.Sprintf(" · %d cycles", n)
	}
	if m.opts.Source != "" {
		info += " · " + m.opts.Source
	}
	return title + m.theme.MutedText.Render(truncate(info, max(0, m.width-lipgloss.Width(title))))
}

func (m Model) renderSelectors() string {
	inner := max(1, m.width-2)
	sels := m.State().Selectors

	var lines []string
	if len(sels) == 0 {
		lines = append(lines, m.theme.MutedText.Render(fit("No selectors. Press + to add one.", inner)))
	}

	start := scrollOffset(m.selCursor, 0, maxSelectorRows)
	for i := start; i < len(sels) && i < start+maxSelectorRows; i++ {
		count := fmt.Sprintf(" %d/%d", len(m.stages[i].Matched), len(m.stages[i].Visible))
		if m.editing && i == m.selCursor {
			lines = append(lines, m.input.View())
			continue
		}
		text := sels[i]
		if text == "" {
			text = "(blank)"
		}
		line := fit(fmt.Sprintf("%d  %s", i+1, text), max(1, inner-len(count))) + count
		switch {
		case i == m.selCursor && m.focus == focusSelectors:
			line = m.theme.Selected.Render(line)
		case sels[i] == "":
			line = m.theme.MutedText.Render(line)
		default:
			line = m.theme.Base.Render(line)
		}
		lines = append(lines, line)
	}

	return m.pane(focusSelectors).Width(inner).Render(strings.Join(lines, "\n"))
}

func (m Model) renderJobs() string {
	left, _ := m.paneWidths()
	inner := max(1, left-2)
	height := m.listHeight()
	sel, hasSel := m.State().Selected()

	lines := make([]string, 0, height)
	if len(m.visible) == 0 {
		lines = append(lines, m.theme.MutedText.Render("No jobs visible"))
	}
	for i := m.jobOffset; i < len(m.visible) && i < m.jobOffset+height; i++ {
		j := m.visible[i]
		marker := "  "
		if hasSel && j.ID == sel {
			marker = "● "
		}
		icon := m.theme.StatusIcon(j.Status())
		line := fit(marker+icon+" "+j.Title(), inner)
		switch {
		case i == m.jobCursor && m.focus == focusJobs:
			line = m.theme.Selected.Render(line)
		case hasSel && j.ID == sel:
			line = m.theme.PrimaryBold.Render(line)
		default:
			line = m.theme.Renderer.NewStyle().Foreground(m.theme.StatusColor(j.Status())).Render(line)
		}
		lines = append(lines, line)
	}

	return m.pane(focusJobs).Width(inner).Height(height).Render(strings.Join(lines, "\n"))
}

func (m Model) renderRight() string {
	_, right := m.paneWidths()
	return m.pane(focusDetail).
		Width(max(1, right-2)).
		Height(m.listHeight()).
		Render(m.viewport.View())
}

func (m Model) renderFooter() string {
	pos, total := m.session.Position()
	info := fmt.Sprintf("history %d/%d · %d/%d visible · %d selectors · focus %s",
		pos+1, total, len(m.visible), m.stats.Jobs, len(m.State().Selectors), m.focus)
	if id, ok := m.State().Selected(); ok {
		info += fmt.Sprintf(" · selected #%d", id)
	}
	if m.opts.Watcher != nil && m.opts.Watcher.IsPolling() {
		info += " · polling"
	}
	infoLine := m.theme.MutedText.Render(truncate(info, m.width))

	if m.statusMsg != "" {
		style := m.theme.PrimaryBold
		if m.statusIsError {
			style = m.theme.ErrorText
		}
		return infoLine + "\n" + style.Render(truncate(m.statusMsg, m.width))
	}

	hints := []struct{ key, label string }{
		{"+", "add"}, {"e", "edit"}, {"x", "delete"}, {"space", "select"},
		{"u", "undo"}, {"U", "redo"}, {"v", "columns"}, {"y", "copy"},
		{"tab", "focus"}, {"q", "quit"},
	}
	parts := make([]string, 0, len(hints))
	for _, h := range hints {
		parts = append(parts, m.theme.Key.Render(h.key)+":"+h.label)
	}
	return infoLine + "\n" + strings.Join(parts, " ")
}
