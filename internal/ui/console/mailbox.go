package console

import (
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/zjrosen/replpane/internal/logsink"
)

// OpKind identifies a queued surface call.
type OpKind int

const (
	OpRender OpKind = iota
	OpScroll
	OpClear
)

// Op is one surface call recorded by a Mailbox.
type Op struct {
	Kind  OpKind
	Index int
	Entry logsink.Entry
}

// OpsMsg carries every op queued since the previous delivery.
type OpsMsg struct {
	Ops []Op
}

// Mailbox is a logsink.Surface that queues calls for the Bubble Tea update
// loop. Its methods never block, so the sink can call them from any
// goroutine.
type Mailbox struct {
	mu     sync.Mutex
	ops    []Op
	wake   chan struct{}
	done   chan struct{}
	closed bool
}

// NewMailbox returns an empty mailbox.
func NewMailbox() *Mailbox {
	return &Mailbox{
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
}

// Render implements logsink.Surface.
func (m *Mailbox) Render(index int, e logsink.Entry) {
	m.push(Op{Kind: OpRender, Index: index, Entry: e})
}

// ScrollTo implements logsink.Surface.
func (m *Mailbox) ScrollTo(index int) {
	m.push(Op{Kind: OpScroll, Index: index})
}

// Clear implements logsink.Surface. Pending ops are superseded.
func (m *Mailbox) Clear() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.ops = append(m.ops[:0], Op{Kind: OpClear})
	m.mu.Unlock()
	m.signal()
}

func (m *Mailbox) push(op Op) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.ops = append(m.ops, op)
	m.mu.Unlock()
	m.signal()
}

func (m *Mailbox) signal() {
	select {
	case m.wake <- struct{}{}:
	default:
	}
}

// Drain removes and returns every queued op.
func (m *Mailbox) Drain() []Op {
	m.mu.Lock()
	defer m.mu.Unlock()
	ops := m.ops
	m.ops = nil
	return ops
}

// Listen returns a command that waits for queued ops and delivers them as
// an OpsMsg. It returns nil once the mailbox is closed.
func (m *Mailbox) Listen() tea.Cmd {
	return func() tea.Msg {
		for {
			select {
			case <-m.done:
				return nil
			case <-m.wake:
				if ops := m.Drain(); len(ops) > 0 {
					return OpsMsg{Ops: ops}
				}
			}
		}
	}
}

// Close stops pending and future Listen commands. Later surface calls are
// discarded.
func (m *Mailbox) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	m.closed = true
	m.ops = nil
	close(m.done)
}

var _ logsink.Surface = (*Mailbox)(nil)
