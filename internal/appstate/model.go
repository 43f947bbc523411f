package appstate

import (
	"strings"
	"sync"
)

// ChangeKind identifies which mutation produced a notification.
type ChangeKind int

// Change kinds.
const (
	StateChanged ChangeKind = iota
	MessageReceived
	HistoryCleared
)

// String returns the change kind name.
func (k ChangeKind) String() string {
	switch k {
	case StateChanged:
		return "state_changed"
	case MessageReceived:
		return "message_received"
	case HistoryCleared:
		return "history_cleared"
	default:
		return "unknown"
	}
}

// Change describes one mutation of the Model.
type Change struct {
	Kind ChangeKind

	// State is the state after the change.
	State ConnectionState

	// Message is the appended payload for MessageReceived.
	Message string
}

// Snapshot is a consistent copy of the Model.
type Snapshot struct {
	State   ConnectionState
	History []string
}

// HistoryText joins the history payloads with newlines.
func (s Snapshot) HistoryText() string {
	return strings.Join(s.History, "\n")
}

// Observer is called after each mutation.
type Observer func(Change, Snapshot)

// Model is the observable connection state and message history.
type Model struct {
	// writeMu serialises mutations together with their notifications.
	writeMu sync.Mutex

	mu        sync.RWMutex
	state     ConnectionState
	history   *History
	observers map[int]Observer
	nextID    int
}

// NewModel creates a Model in the Disconnected state whose history keeps
// at most maxEntries payloads.
func NewModel(maxEntries int) *Model {
	return &Model{
		state:     Disconnected,
		history:   NewHistory(maxEntries),
		observers: make(map[int]Observer),
	}
}

// SetState replaces the connection state.
func (m *Model) SetState(s ConnectionState) {
	m.mutate(Change{Kind: StateChanged}, func() {
		m.state = s
	})
}

// SetReceivedMessage appends a payload to the history.
func (m *Model) SetReceivedMessage(text string) {
	m.mutate(Change{Kind: MessageReceived, Message: text}, func() {
		m.history.Append(text)
	})
}

// ClearData empties the history.
func (m *Model) ClearData() {
	m.mutate(Change{Kind: HistoryCleared}, func() {
		m.history.Clear()
	})
}

// Observe registers fn and returns a function that unregisters it.
func (m *Model) Observe(fn Observer) (cancel func()) {
	m.mu.Lock()
	id := m.nextID
	m.nextID++
	m.observers[id] = fn
	m.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			delete(m.observers, id)
			m.mu.Unlock()
		})
	}
}

// Snapshot returns a copy of the current state and history.
func (m *Model) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snapshotLocked()
}

// State returns the current connection state.
func (m *Model) State() ConnectionState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// HistoryText returns the retained payloads joined with newlines.
func (m *Model) HistoryText() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.history.Text()
}

// MaxEntries returns the history retention limit.
func (m *Model) MaxEntries() int {
	return m.history.Cap()
}

func (m *Model) mutate(c Change, apply func()) {
	m.writeMu.Lock()
	defer m.writeMu.Unlock()

	m.mu.Lock()
	apply()
	c.State = m.state
	snap := m.snapshotLocked()
	observers := make([]Observer, 0, len(m.observers))
	for _, fn := range m.observers {
		observers = append(observers, fn)
	}
	m.mu.Unlock()

	for _, fn := range observers {
		fn(c, snap)
	}
}

func (m *Model) snapshotLocked() Snapshot {
	return Snapshot{
		State:   m.state,
		History: m.history.Entries(),
	}
}
