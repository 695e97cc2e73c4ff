// Package toaster shows short-lived notices over the bottom of the screen.
package toaster

import (
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"

	"github.com/zjrosen/replpane/internal/ui/styles"
)

// DefaultDuration is how long a notice stays up.
const DefaultDuration = 3 * time.Second

// Style selects the border color and marker of a notice.
type Style int

const (
	StyleSuccess Style = iota
	StyleError
	StyleInfo
)

// Model holds the current notice. The zero value shows nothing.
type Model struct {
	message string
	style   Style
	seq     int
}

// New creates an empty toaster.
func New() Model {
	return Model{}
}

// Show replaces the current notice and returns a command that dismisses it
// after d.
func (m Model) Show(message string, style Style, d time.Duration) (Model, tea.Cmd) {
	m.message = message
	m.style = style
	m.seq++
	seq := m.seq
	return m, tea.Tick(d, func(time.Time) tea.Msg { return DismissMsg{seq: seq} })
}

// Update hides the notice when its own dismiss timer fires. Timers of
// replaced notices are ignored.
func (m Model) Update(msg DismissMsg) Model {
	if msg.seq == m.seq {
		m.message = ""
	}
	return m
}

// Visible reports whether a notice is showing.
func (m Model) Visible() bool {
	return m.message != ""
}

// Message returns the notice text, or "".
func (m Model) Message() string {
	return m.message
}

// View renders the notice box, or "" when hidden.
func (m Model) View() string {
	if m.message == "" {
		return ""
	}

	box := lipgloss.NewStyle().Padding(0, 1).Border(lipgloss.RoundedBorder())
	switch m.style {
	case StyleError:
		return box.BorderForeground(styles.ToastBorderErrorColor).Render("✗ " + m.message)
	case StyleInfo:
		return box.BorderForeground(styles.ToastBorderInfoColor).Render("• " + m.message)
	default:
		return box.BorderForeground(styles.ToastBorderSuccessColor).Render("✓ " + m.message)
	}
}

// Overlay draws the notice centered near the bottom of bg, which is
// width x height cells. bg is returned as is when nothing is showing.
func (m Model) Overlay(bg string, width, height int) string {
	fg := m.View()
	if fg == "" {
		return bg
	}
	return place(fg, bg, width, height, 1)
}

// place splices fg into bg line by line, padY rows above the bottom edge.
// Both strings may contain ANSI styling.
func place(fg, bg string, width, height, padY int) string {
	fgLines := strings.Split(fg, "\n")
	bgLines := strings.Split(bg, "\n")
	for len(bgLines) < height {
		bgLines = append(bgLines, strings.Repeat(" ", width))
	}

	x := max((width-lipgloss.Width(fg))/2, 0)
	y := max(height-len(fgLines)-padY, 0)

	for i, line := range fgLines {
		row := y + i
		if row >= len(bgLines) {
			break
		}
		under := bgLines[row]

		left := ansi.Truncate(under, x, "")
		if w := ansi.StringWidth(left); w < x {
			left += strings.Repeat(" ", x-w)
		}
		var right string
		if end := x + ansi.StringWidth(line); end < ansi.StringWidth(under) {
			right = ansi.TruncateLeft(under, end, "")
		}
		bgLines[row] = left + line + right
	}
	return strings.Join(bgLines, "\n")
}

// DismissMsg hides the notice that scheduled it.
type DismissMsg struct {
	seq int
}
