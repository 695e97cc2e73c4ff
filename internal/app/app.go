// Package app contains the root application model: a code editor, the
// interpreter console and a status line.
package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textarea"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"

	"github.com/zjrosen/replpane/internal/config"
	"github.com/zjrosen/replpane/internal/keys"
	"github.com/zjrosen/replpane/internal/log"
	"github.com/zjrosen/replpane/internal/logsink"
	"github.com/zjrosen/replpane/internal/pubsub"
	"github.com/zjrosen/replpane/internal/supervisor"
	"github.com/zjrosen/replpane/internal/ui/console"
	"github.com/zjrosen/replpane/internal/ui/styles"
	"github.com/zjrosen/replpane/internal/ui/toaster"
)

// Interpreter is the part of *supervisor.Supervisor the UI drives.
type Interpreter interface {
	Start(ctx context.Context) error
	Submit(ctx context.Context, code string) error
	Stop(ctx context.Context) error
	Events() pubsub.Subscriber[supervisor.StateEvent]
}

// Options wires the model to its collaborators.
type Options struct {
	Interpreter Interpreter
	Sink        *logsink.Sink
	// Store is optional. When set, reloads update the panel placement.
	Store *config.Store
	// ConfigPath is where placement changes are saved. Empty disables saving.
	ConfigPath string
	Placement  config.Placement
}

// settingSavedMsg reports the outcome of a config write.
type settingSavedMsg struct {
	err error
}

// Model is the root application state.
type Model struct {
	interp     Interpreter
	sink       *logsink.Sink
	mailbox    *console.Mailbox
	configPath string

	editor  textarea.Model
	console console.Model
	keys    keys.KeyMap
	help    help.Model
	toaster toaster.Model

	placement config.Placement
	showHelp  bool
	width     int
	height    int

	state  supervisor.State
	pid    int
	status string

	ctx            context.Context
	cancel         context.CancelFunc
	stateListener  *pubsub.ContinuousListener[supervisor.StateEvent]
	configListener *pubsub.ContinuousListener[config.Config]
}

// New creates the root model and attaches the sink to the console panel.
func New(opts Options) Model {
	ta := textarea.New()
	ta.Placeholder = "Type code; ctrl+e evaluates the current line"
	ta.CharLimit = 0
	ta.ShowLineNumbers = true
	ta.Focus()

	mailbox := console.NewMailbox()
	opts.Sink.Attach(mailbox)

	placement := opts.Placement
	if placement == "" {
		placement = config.PlacementBelow
	}

	ctx, cancel := context.WithCancel(context.Background())
	m := Model{
		interp:        opts.Interpreter,
		sink:          opts.Sink,
		mailbox:       mailbox,
		configPath:    opts.ConfigPath,
		editor:        ta,
		console:       console.New(mailbox),
		keys:          keys.DefaultKeyMap(),
		help:          help.New(),
		toaster:       toaster.New(),
		placement:     placement,
		ctx:           ctx,
		cancel:        cancel,
		stateListener: pubsub.NewContinuousListener[supervisor.StateEvent](ctx, opts.Interpreter.Events()),
	}
	if opts.Store != nil {
		m.configListener = pubsub.NewContinuousListener[config.Config](ctx, opts.Store.Changes())
	}
	return m
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{
		textarea.Blink,
		m.console.Init(),
		m.stateListener.Listen(),
	}
	if m.configListener != nil {
		cmds = append(cmds, m.configListener.Listen())
	}
	return tea.Batch(cmds...)
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.layout()
		return m, nil

	case console.OpsMsg:
		var cmd tea.Cmd
		m.console, cmd = m.console.Update(msg)
		return m, cmd

	case pubsub.Event[supervisor.StateEvent]:
		m.state = msg.Payload.To
		m.pid = msg.Payload.PID
		if msg.Payload.Err != nil {
			m.status = msg.Payload.Err.Error()
		}
		return m, m.stateListener.Listen()

	case pubsub.Event[config.Config]:
		if p := msg.Payload.UI.Placement(); p != m.placement {
			log.Debug(log.CatUI, "Placement changed by config reload", "placement", p)
			m.placement = p
			m.layout()
		}
		var toastCmd tea.Cmd
		m.toaster, toastCmd = m.toaster.Show("config reloaded", toaster.StyleInfo, toaster.DefaultDuration)
		return m, tea.Batch(m.configListener.Listen(), toastCmd)

	case settingSavedMsg:
		var cmd tea.Cmd
		if msg.err != nil {
			log.ErrorErr(log.CatConfig, "Saving placement failed", msg.err)
			m.toaster, cmd = m.toaster.Show("could not save placement: "+msg.err.Error(), toaster.StyleError, toaster.DefaultDuration)
		} else {
			m.toaster, cmd = m.toaster.Show("console placement saved", toaster.StyleSuccess, toaster.DefaultDuration)
		}
		return m, cmd

	case toaster.DismissMsg:
		m.toaster = m.toaster.Update(msg)
		return m, nil

	case tea.KeyMsg:
		if cmd, handled := m.handleKey(msg); handled {
			return m, cmd
		}
	}

	var cmd tea.Cmd
	m.editor, cmd = m.editor.Update(msg)
	if mouse, ok := msg.(tea.MouseMsg); ok {
		var consoleCmd tea.Cmd
		m.console, consoleCmd = m.console.Update(mouse)
		cmd = tea.Batch(cmd, consoleCmd)
	}
	return m, cmd
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Cmd, bool) {
	switch {
	case key.Matches(msg, m.keys.SendLine):
		m.submit(CurrentLine(m.editor.Value(), m.editor.Line()))
		return nil, true

	case key.Matches(msg, m.keys.SendBuffer):
		m.submit(FlattenBuffer(m.editor.Value()))
		return nil, true

	case key.Matches(msg, m.keys.Start):
		m.call("start", m.interp.Start)
		return nil, true

	case key.Matches(msg, m.keys.Stop):
		m.call("stop", m.interp.Stop)
		return nil, true

	case key.Matches(msg, m.keys.ClearConsole):
		m.sink.Clear()
		return nil, true

	case key.Matches(msg, m.keys.TogglePlacement):
		m.placement = m.placement.Toggle()
		m.layout()
		return m.savePlacement(), true

	case key.Matches(msg, m.keys.ScrollUp):
		m.console.PageUp()
		return nil, true

	case key.Matches(msg, m.keys.ScrollDown):
		m.console.PageDown()
		return nil, true

	case key.Matches(msg, m.keys.Help):
		m.showHelp = !m.showHelp
		m.layout()
		return nil, true

	case key.Matches(msg, m.keys.Quit):
		// Stop only writes the directives and arms the kill timer; Close
		// reaps the process after the program exits.
		if err := m.interp.Stop(m.ctx); err != nil {
			log.ErrorErr(log.CatUI, "Stop on quit failed", err)
		}
		return tea.Quit, true
	}
	return nil, false
}

// submit sends code and records the outcome in the status line. Calls run
// on the update loop so submissions reach stdin in keypress order. Blank
// input is not sent.
func (m *Model) submit(code string) {
	if strings.TrimSpace(code) == "" {
		return
	}
	m.call("submit", func(ctx context.Context) error { return m.interp.Submit(ctx, code) })
}

func (m *Model) call(op string, fn func(context.Context) error) {
	m.status = describeResult(op, fn(m.ctx))
}

func (m *Model) savePlacement() tea.Cmd {
	if m.configPath == "" {
		return nil
	}
	path, value := m.configPath, string(m.placement)
	return func() tea.Msg {
		return settingSavedMsg{err: config.SaveSetting(path, "ui.panel_placement", value)}
	}
}

func describeResult(op string, err error) string {
	var notReady *supervisor.NotReadyError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &notReady):
		return fmt.Sprintf("interpreter is %s; try again", notReady.State)
	default:
		return op + ": " + err.Error()
	}
}

// CurrentLine returns line row of text, or "" when row is out of range.
func CurrentLine(text string, row int) string {
	lines := strings.Split(text, "\n")
	if row < 0 || row >= len(lines) {
		return ""
	}
	return strings.TrimSuffix(lines[row], "\r")
}

// FlattenBuffer joins every line of text with single spaces, so a
// multi-line block reaches a line-oriented interpreter as one statement.
func FlattenBuffer(text string) string {
	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	return strings.Join(lines, " ")
}

// layout sizes the editor and console for the current placement.
func (m *Model) layout() {
	if m.width <= 0 || m.height <= 0 {
		return
	}

	avail := max(m.height-m.footerHeight(), 2)
	edW, edH, conW, conH := m.width, avail/2, m.width, avail-avail/2
	if m.placement == config.PlacementBeside {
		edW, edH, conW, conH = m.width/2, avail, m.width-m.width/2, avail
	}

	m.editor.SetWidth(max(edW-2, 1))
	m.editor.SetHeight(max(edH-2, 1))
	m.console.SetSize(conW, conH)
}

func (m Model) footerHeight() int {
	if !m.showHelp {
		return 1
	}
	rows := 0
	for _, group := range m.keys.FullHelp() {
		rows = max(rows, len(group))
	}
	return 1 + rows
}

// View implements tea.Model.
func (m Model) View() string {
	if m.width <= 0 || m.height <= 0 {
		return ""
	}

	avail := max(m.height-m.footerHeight(), 2)
	edW, edH := m.width, avail/2
	if m.placement == config.PlacementBeside {
		edW, edH = m.width/2, avail
	}
	editor := styles.RenderPanel(m.editor.View(), "Editor", edW, edH, true)

	var body string
	if m.placement == config.PlacementBeside {
		body = lipgloss.JoinHorizontal(lipgloss.Top, editor, m.console.View())
	} else {
		body = lipgloss.JoinVertical(lipgloss.Left, editor, m.console.View())
	}

	footer := m.statusLine()
	if m.showHelp {
		m.help.ShowAll = true
		m.help.Width = m.width
		footer = lipgloss.JoinVertical(lipgloss.Left, footer, m.help.View(m.keys))
	}
	return m.toaster.Overlay(lipgloss.JoinVertical(lipgloss.Left, body, footer), m.width, m.height)
}

func (m Model) statusLine() string {
	state := stateStyle(m.state).Render("● " + m.state.String())
	if m.state == supervisor.StateRunning && m.pid > 0 {
		state += styles.StatusBarStyle.Render(fmt.Sprintf(" pid %d", m.pid))
	}

	line := state
	if m.status != "" {
		line += "  " + styles.StatusErrStyle.Render(m.status)
	}
	hint := styles.StatusBarStyle.Render("  " + m.keys.Help.Help().Key + " help")
	return ansi.Truncate(line, max(m.width-lipgloss.Width(hint), 0), "...") + hint
}

func stateStyle(s supervisor.State) lipgloss.Style {
	var c lipgloss.AdaptiveColor
	switch s {
	case supervisor.StateStarting:
		c = styles.StateStartingColor
	case supervisor.StateRunning:
		c = styles.StateRunningColor
	case supervisor.StateStopping:
		c = styles.StateStoppingColor
	default:
		c = styles.StateStoppedColor
	}
	return lipgloss.NewStyle().Foreground(c).Bold(true)
}

// PanelPlacement returns the current layout.
func (m Model) PanelPlacement() config.Placement {
	return m.placement
}

// Close detaches the console and stops background listeners. It does not
// close the interpreter.
func (m *Model) Close() error {
	m.sink.Detach()
	m.mailbox.Close()
	m.cancel()
	return nil
}
