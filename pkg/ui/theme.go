package ui

import (
	"os"

	"github.com/charmbracelet/colorprofile"
	"github.com/charmbracelet/lipgloss"
)

// TermProfile holds the detected terminal color profile, computed once at
// package init.
var TermProfile colorprofile.Profile

func init() {
	TermProfile = colorprofile.Detect(os.Stdout, os.Environ())
}

// ThemeBg returns hex on TrueColor terminals and lipgloss.NoColor{}
// otherwise, so lower-depth terminals keep their own background.
func ThemeBg(hex string) lipgloss.TerminalColor {
	if TermProfile < colorprofile.TrueColor {
		return lipgloss.NoColor{}
	}
	return lipgloss.Color(hex)
}

// ThemeFg returns hex on ANSI256+ terminals and ANSI white otherwise.
func ThemeFg(hex string) lipgloss.TerminalColor {
	if TermProfile < colorprofile.ANSI256 {
		return lipgloss.ANSIColor(7)
	}
	return lipgloss.Color(hex)
}

type Theme struct {
	Renderer *lipgloss.Renderer

	Primary   lipgloss.AdaptiveColor
	Secondary lipgloss.AdaptiveColor
	Subtext   lipgloss.AdaptiveColor

	// Job status
	Done    lipgloss.AdaptiveColor
	Pending lipgloss.AdaptiveColor
	Center  lipgloss.AdaptiveColor

	Border    lipgloss.AdaptiveColor
	Highlight lipgloss.AdaptiveColor
	Muted     lipgloss.AdaptiveColor
	Error     lipgloss.AdaptiveColor

	Base     lipgloss.Style
	Selected lipgloss.Style
	Header   lipgloss.Style

	// Pane frames; the focused pane gets the primary border.
	Pane        lipgloss.Style
	FocusedPane lipgloss.Style

	MutedText   lipgloss.Style
	PrimaryBold lipgloss.Style
	ErrorText   lipgloss.Style
	Key         lipgloss.Style
}

// DefaultTheme returns the Dracula-inspired adaptive theme.
func DefaultTheme(r *lipgloss.Renderer) Theme {
	t := Theme{
		Renderer: r,

		Primary:   lipgloss.AdaptiveColor{Light: "#6B47D9", Dark: "#BD93F9"},
		Secondary: lipgloss.AdaptiveColor{Light: "#555555", Dark: "#6272A4"},
		Subtext:   lipgloss.AdaptiveColor{Light: "#666666", Dark: "#BFBFBF"},

		Done:    lipgloss.AdaptiveColor{Light: "#007700", Dark: "#50FA7B"},
		Pending: lipgloss.AdaptiveColor{Light: "#B06800", Dark: "#FFB86C"},
		Center:  lipgloss.AdaptiveColor{Light: "#006080", Dark: "#8BE9FD"},

		Border:    lipgloss.AdaptiveColor{Light: "#AAAAAA", Dark: "#44475A"},
		Highlight: lipgloss.AdaptiveColor{Light: "#E0E0E0", Dark: "#44475A"},
		Muted:     lipgloss.AdaptiveColor{Light: "#555555", Dark: "#6272A4"},
		Error:     lipgloss.AdaptiveColor{Light: "#CC0000", Dark: "#FF5555"},
	}

	t.Base = r.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#000000", Dark: "#F8F8F2"})

	t.Selected = r.NewStyle().
		Background(t.Highlight).
		Foreground(t.Primary).
		Bold(true)

	t.Header = r.NewStyle().
		Background(t.Primary).
		Foreground(lipgloss.AdaptiveColor{Light: "#FFFFFF", Dark: "#282A36"}).
		Bold(true).
		Padding(0, 1)

	t.Pane = r.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(t.Border)
	t.FocusedPane = t.Pane.BorderForeground(t.Primary)

	t.MutedText = r.NewStyle().Foreground(t.Muted)
	t.PrimaryBold = r.NewStyle().Foreground(t.Primary).Bold(true)
	t.ErrorText = r.NewStyle().Foreground(t.Error).Bold(true)
	t.Key = r.NewStyle().Foreground(ThemeFg("#8BE9FD")).Bold(true)

	return t
}

// StatusColor maps a job status ("ok", "pending") to its color.
func (t Theme) StatusColor(status string) lipgloss.AdaptiveColor {
	switch status {
	case "ok":
		return t.Done
	case "pending":
		return t.Pending
	default:
		return t.Subtext
	}
}

// StatusIcon is the one-cell marker shown before a job in lists.
func (t Theme) StatusIcon(status string) string {
	switch status {
	case "ok":
		return "✓"
	case "pending":
		return "○"
	default:
		return "·"
	}
}

// TestTheme returns a theme for tests.
func TestTheme() Theme {
	return DefaultTheme(lipgloss.NewRenderer(os.Stdout))
}
