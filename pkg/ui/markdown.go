package ui

import (
	"strings"

	"github.com/charmbracelet/colorprofile"
	"github.com/charmbracelet/glamour"
)

// MarkdownRenderer renders the detail pane. The glamour renderer is rebuilt
// lazily when the width changes.
type MarkdownRenderer struct {
	width    int
	style    string
	renderer *glamour.TermRenderer
}

// NewMarkdownRenderer returns a renderer wrapping at width cells. Terminals
// without color get glamour's notty style.
func NewMarkdownRenderer(width int) *MarkdownRenderer {
	style := "dracula"
	if TermProfile < colorprofile.ANSI {
		style = "notty"
	}
	return &MarkdownRenderer{width: width, style: style}
}

// SetWidth changes the wrap width.
func (m *MarkdownRenderer) SetWidth(width int) {
	if width != m.width {
		m.width = width
		m.renderer = nil
	}
}

// Render returns md rendered for the terminal. On failure the source text
// is returned along with the error.
func (m *MarkdownRenderer) Render(md string) (string, error) {
	if m.renderer == nil {
		r, err := glamour.NewTermRenderer(
			glamour.WithStandardStyle(m.style),
			glamour.WithWordWrap(max(m.width, 20)),
		)
		if err != nil {
			return md, err
		}
		m.renderer = r
	}
	out, err := m.renderer.Render(md)
	if err != nil {
		return md, err
	}
	return strings.TrimRight(out, " \n"), nil
}
