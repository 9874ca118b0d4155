// Package session implements the scan-session coordinator: it owns the
// identity of the single current scan, routes engine events by session
// id, discards anything stale, and derives the read-only state the rest
// of the program observes. It also houses the reconfiguration debouncer
// and the filesystem change watcher that both funnel into restarts.
package session

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pureportal/voxara/pkg/voxara/engine"
	"github.com/pureportal/voxara/pkg/voxara/logging"
	"github.com/pureportal/voxara/pkg/voxara/types"
)

// Mode says where a scan runs.
type Mode string

// Scan modes.
const (
	ModeLocal  Mode = "local"
	ModeRemote Mode = "remote"
)

// Status is the lifecycle state of the current session.
type Status string

// Session statuses. The only transitions are
// idle -> scanning -> {complete|error|cancelled}; complete decays back
// to idle after a grace period, error and cancelled decay immediately.
const (
	StatusIdle      Status = "idle"
	StatusScanning  Status = "scanning"
	StatusComplete  Status = "complete"
	StatusError     Status = "error"
	StatusCancelled Status = "cancelled"
)

// DefaultDecayDelay is how long a completed session stays in the
// complete status before decaying to idle.
const DefaultDecayDelay = 1500 * time.Millisecond

// DefaultHistoryLimit caps the recently-scanned path list.
const DefaultHistoryLimit = 10

// ErrNoRunner is returned when starting a scan in a mode that has no
// registered runner.
var ErrNoRunner = errors.New("session: no runner registered for mode")

// Runner launches and cancels scans for one mode. The local runner
// drives the in-process engine; the remote runner sends scan and cancel
// actions over the wire. Outcomes are only ever observed through events
// delivered to Manager.Apply.
type Runner interface {
	Start(sessionID, path string, opts types.ScanOptions) error
	Cancel(sessionID string) error
}

// HistoryStore persists the recently-scanned path list between runs.
type HistoryStore interface {
	LoadHistory() ([]string, error)
	SaveHistory(paths []string) error
}

// State is a read-only snapshot of the current session.
type State struct {
	ID         string
	Mode       Mode
	TargetPath string
	Status     Status
	LastError  string
	Summary    *types.ScanSummary
}

// session is the mutable record behind the current State.
type session struct {
	id         string
	mode       Mode
	targetPath string
	status     Status
	lastError  string
	summary    *types.ScanSummary
	terminal   bool
	seeded     bool
}

// Config configures a Manager. Zero values select the defaults.
type Config struct {
	DecayDelay   time.Duration
	HistoryLimit int
	HistoryStore HistoryStore
}

// Manager coordinates exactly one active scan session. It is the single
// writer of the current session id; every other component only reads
// the derived State.
type Manager struct {
	mu       sync.Mutex
	runners  map[Mode]Runner
	cur      *session
	history  []string
	expanded map[string]struct{}
	decay    *Task

	decayDelay   time.Duration
	historyLimit int
	store        HistoryStore
}

// NewManager creates a Manager. When a history store is configured, the
// persisted history is loaded immediately.
func NewManager(cfg Config) *Manager {
	if cfg.DecayDelay <= 0 {
		cfg.DecayDelay = DefaultDecayDelay
	}
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = DefaultHistoryLimit
	}

	m := &Manager{
		runners:      make(map[Mode]Runner),
		expanded:     make(map[string]struct{}),
		decayDelay:   cfg.DecayDelay,
		historyLimit: cfg.HistoryLimit,
		store:        cfg.HistoryStore,
	}

	if m.store != nil {
		if history, err := m.store.LoadHistory(); err != nil {
			logging.Get("session").Warn("failed to load history", "error", err)
		} else {
			m.history = history
		}
	}

	return m
}

// SetRunner registers the runner for a mode.
func (m *Manager) SetRunner(mode Mode, r Runner) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runners[mode] = r
}

// Start begins a new scan session and returns its id. Any previous
// session is superseded immediately: events bearing its id are discarded
// from this point on, whether or not the old scan has noticed yet.
func (m *Manager) Start(path string, opts types.ScanOptions, mode Mode) (string, error) {
	m.mu.Lock()
	runner, ok := m.runners[mode]
	if !ok {
		m.mu.Unlock()
		return "", fmt.Errorf("%w: %s", ErrNoRunner, mode)
	}

	if m.decay != nil {
		m.decay.Cancel()
	}

	id := uuid.NewString()
	m.cur = &session{
		id:         id,
		mode:       mode,
		targetPath: path,
		status:     StatusScanning,
	}
	m.expanded = make(map[string]struct{})
	m.mu.Unlock()

	logging.Get("session").Info("session started", "id", id, "mode", mode, "path", path)

	// Runner invocation happens outside the lock: a failing runner may
	// apply an event synchronously.
	if err := runner.Start(id, path, opts.Normalize()); err != nil {
		m.mu.Lock()
		if m.cur != nil && m.cur.id == id {
			m.cur.status = StatusIdle
			m.cur.lastError = err.Error()
			m.cur.terminal = true
		}
		m.mu.Unlock()
		return id, err
	}

	return id, nil
}

// Cancel optimistically cancels the current scan: the session leaves
// the scanning state right away, without waiting for the engine to
// acknowledge. A terminal event that arrives afterwards for the same id
// is a no-op.
func (m *Manager) Cancel() {
	m.mu.Lock()
	if m.cur == nil || m.cur.status != StatusScanning {
		m.mu.Unlock()
		return
	}
	id := m.cur.id
	mode := m.cur.mode
	m.cur.status = StatusIdle
	m.cur.terminal = true
	runner := m.runners[mode]
	m.mu.Unlock()

	logging.Get("session").Info("session cancelled", "id", id)
	if runner != nil {
		if err := runner.Cancel(id); err != nil {
			logging.Get("session").Warn("cancel request failed", "id", id, "error", err)
		}
	}
}

// Restart cancels any in-flight scan and starts a new session at the
// same target path with fresh options. Used by the debouncer.
func (m *Manager) Restart(path string, opts types.ScanOptions, mode Mode) (string, error) {
	m.Cancel()
	return m.Start(path, opts, mode)
}

// Apply routes one engine event into the session state machine. Events
// whose session id is not the current one, and any event after a
// terminal one, change nothing.
func (m *Manager) Apply(ev engine.Event) {
	m.mu.Lock()
	defer m.mu.Unlock()

	log := logging.Get("session")

	if m.cur == nil || ev.SessionID != m.cur.id {
		log.Debug("dropping stale event", "kind", ev.Kind, "id", ev.SessionID)
		return
	}
	if m.cur.terminal {
		log.Debug("dropping event for finished session", "kind", ev.Kind, "id", ev.SessionID)
		return
	}

	switch ev.Kind {
	case engine.EventProgress:
		if m.cur.status != StatusScanning || ev.Summary == nil {
			return
		}
		m.cur.summary = ev.Summary
		if !m.cur.seeded {
			m.seedExpanded(ev.Summary.Root)
			m.cur.seeded = true
		}

	case engine.EventComplete:
		if ev.Summary != nil {
			m.cur.summary = ev.Summary
			if !m.cur.seeded {
				m.seedExpanded(ev.Summary.Root)
				m.cur.seeded = true
			}
		}
		m.cur.status = StatusComplete
		m.cur.terminal = true
		m.recordHistory(m.cur.targetPath)
		m.scheduleDecay(m.cur.id)

	case engine.EventError:
		m.cur.lastError = ev.Message
		m.cur.status = StatusIdle
		m.cur.terminal = true

	case engine.EventCancelled:
		m.cur.status = StatusIdle
		m.cur.terminal = true
	}
}

// seedExpanded marks the root and its direct children as the initially
// expanded node set. Called with the lock held.
func (m *Manager) seedExpanded(root *types.ScanNode) {
	if root == nil {
		return
	}
	m.expanded[root.Path] = struct{}{}
	for _, child := range root.Children {
		m.expanded[child.Path] = struct{}{}
	}
}

// scheduleDecay arms the complete-to-idle decay for the given session.
// Called with the lock held.
func (m *Manager) scheduleDecay(id string) {
	m.decay = NewTask(func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		if m.cur != nil && m.cur.id == id && m.cur.status == StatusComplete {
			m.cur.status = StatusIdle
		}
	})
	m.decay.Schedule(m.decayDelay)
}

// recordHistory prepends path to the most-recently-used history,
// de-duplicated and capped. Called with the lock held.
func (m *Manager) recordHistory(path string) {
	next := make([]string, 0, len(m.history)+1)
	next = append(next, path)
	for _, p := range m.history {
		if p != path {
			next = append(next, p)
		}
	}
	if len(next) > m.historyLimit {
		next = next[:m.historyLimit]
	}
	m.history = next

	if m.store != nil {
		if err := m.store.SaveHistory(next); err != nil {
			logging.Get("session").Warn("failed to persist history", "error", err)
		}
	}
}

// State returns a snapshot of the current session. With no session yet
// started, the state is idle with an empty id.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.cur == nil {
		return State{Status: StatusIdle}
	}
	return State{
		ID:         m.cur.id,
		Mode:       m.cur.mode,
		TargetPath: m.cur.targetPath,
		Status:     m.cur.status,
		LastError:  m.cur.lastError,
		Summary:    m.cur.summary,
	}
}

// History returns a copy of the recently-scanned path list, most recent
// first.
func (m *Manager) History() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.history))
	copy(out, m.history)
	return out
}

// Expanded reports whether a node path is in the expanded set.
func (m *Manager) Expanded(path string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.expanded[path]
	return ok
}

// HasSessionFor reports whether the current session targets path. The
// debouncer only restarts when the path being edited has actually been
// scanned.
func (m *Manager) HasSessionFor(path string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cur != nil && m.cur.targetPath == path
}
