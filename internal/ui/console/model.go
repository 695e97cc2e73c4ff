// Package console renders the interpreter's log sink as a scrolling,
// bordered Bubble Tea panel.
package console

import (
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"

	"github.com/zjrosen/replpane/internal/logsink"
	"github.com/zjrosen/replpane/internal/ui/styles"
)

const systemPrefix = "» "

// Model is the console panel state. It mirrors the sink's entries by index.
type Model struct {
	mailbox  *Mailbox
	viewport viewport.Model
	entries  []logsink.Entry
	title    string
	width    int
	height   int
	focused  bool
	follow   bool
	dirty    bool
}

// New creates a console panel fed by mailbox.
func New(mailbox *Mailbox) Model {
	return Model{
		mailbox:  mailbox,
		viewport: viewport.New(0, 0),
		title:    "Console",
		follow:   true,
	}
}

// Init starts listening to the mailbox.
func (m Model) Init() tea.Cmd {
	return m.mailbox.Listen()
}

// Update applies mailbox deliveries and scroll keys.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case OpsMsg:
		m.Apply(msg.Ops)
		return m, m.mailbox.Listen()
	case tea.MouseMsg:
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		m.follow = m.viewport.AtBottom()
		return m, cmd
	}
	return m, nil
}

// Apply replays surface ops onto the panel.
func (m *Model) Apply(ops []Op) {
	for _, op := range ops {
		switch op.Kind {
		case OpClear:
			m.entries = nil
			m.follow = true
		case OpRender:
			switch {
			case op.Index == len(m.entries):
				m.entries = append(m.entries, op.Entry)
			case op.Index >= 0 && op.Index < len(m.entries):
				m.entries[op.Index] = op.Entry
			default:
				// Slot beyond the end; keep the mirror dense.
				m.entries = append(m.entries, op.Entry)
			}
		case OpScroll:
			if op.Index >= len(m.entries)-1 {
				m.follow = true
			}
		}
	}
	m.dirty = true
	m.refresh()
}

// PageUp scrolls the console up one page and stops following output.
func (m *Model) PageUp() {
	m.viewport.PageUp()
	m.follow = m.viewport.AtBottom()
}

// PageDown scrolls the console down one page. Reaching the bottom resumes
// following output.
func (m *Model) PageDown() {
	m.viewport.PageDown()
	m.follow = m.viewport.AtBottom()
}

// SetSize sets the outer panel dimensions, border included.
func (m *Model) SetSize(width, height int) {
	m.width, m.height = width, height
	m.viewport.Width = max(width-2, 1)
	m.viewport.Height = max(height-2, 1)
	m.dirty = true
	m.refresh()
}

// SetFocused controls the border highlight.
func (m *Model) SetFocused(focused bool) {
	m.focused = focused
}

// SetTitle replaces the border title.
func (m *Model) SetTitle(title string) {
	m.title = title
}

// Len returns the mirrored entry count.
func (m Model) Len() int {
	return len(m.entries)
}

// Following reports whether the view tracks the latest entry.
func (m Model) Following() bool {
	return m.follow
}

// View renders the bordered panel.
func (m Model) View() string {
	if m.width <= 0 || m.height <= 0 {
		return ""
	}
	return styles.RenderPanel(m.viewport.View(), m.title, m.width, m.height, m.focused)
}

func (m *Model) refresh() {
	if !m.dirty || m.viewport.Width <= 0 {
		return
	}
	m.dirty = false
	m.viewport.SetContent(Render(m.entries, m.viewport.Width))
	if m.follow {
		m.viewport.GotoBottom()
	}
}

// Render formats entries for a column of the given width. Chunks are joined
// as the interpreter wrote them; system notices always occupy their own
// line.
func Render(entries []logsink.Entry, width int) string {
	var b strings.Builder
	atLineStart := true

	for _, e := range entries {
		text := strings.ReplaceAll(e.Text, "\r\n", "\n")
		style := originStyle(e.Origin)

		if e.Origin == logsink.OriginSystem {
			if !atLineStart {
				b.WriteString("\n")
			}
			text = systemPrefix + strings.TrimRight(text, "\n") + "\n"
		}

		writeStyled(&b, style, text)
		atLineStart = strings.HasSuffix(text, "\n")
	}

	out := strings.TrimSuffix(b.String(), "\n")
	if width > 0 {
		out = ansi.Hardwrap(out, width, true)
	}
	return out
}

// writeStyled styles each line segment separately so that a style never
// spans a newline.
func writeStyled(b *strings.Builder, style lipgloss.Style, text string) {
	for i, seg := range strings.Split(text, "\n") {
		if i > 0 {
			b.WriteString("\n")
		}
		if seg != "" {
			b.WriteString(style.Render(seg))
		}
	}
}

func originStyle(o logsink.Origin) lipgloss.Style {
	switch o {
	case logsink.OriginStderr:
		return styles.ConsoleStderrStyle
	case logsink.OriginSystem:
		return styles.ConsoleSystemStyle
	default:
		return styles.ConsoleStdoutStyle
	}
}
