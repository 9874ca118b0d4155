package session

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pureportal/voxara/pkg/voxara/engine"
	"github.com/pureportal/voxara/pkg/voxara/types"
)

// fakeRunner records start and cancel calls without running anything.
type fakeRunner struct {
	mu       sync.Mutex
	started  []startCall
	cancels  []string
	startErr error
}

type startCall struct {
	id   string
	path string
	opts types.ScanOptions
}

func (f *fakeRunner) Start(sessionID, path string, opts types.ScanOptions) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.startErr != nil {
		return f.startErr
	}
	f.started = append(f.started, startCall{id: sessionID, path: path, opts: opts})
	return nil
}

func (f *fakeRunner) Cancel(sessionID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancels = append(f.cancels, sessionID)
	return nil
}

func (f *fakeRunner) startCalls() []startCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]startCall, len(f.started))
	copy(out, f.started)
	return out
}

func newTestManager(t *testing.T, decay time.Duration) (*Manager, *fakeRunner) {
	t.Helper()
	m := NewManager(Config{DecayDelay: decay})
	r := &fakeRunner{}
	m.SetRunner(ModeLocal, r)
	m.SetRunner(ModeRemote, r)
	return m, r
}

func summaryFor(id, root string, total int64) *types.ScanSummary {
	return &types.ScanSummary{
		ID: id,
		Root: &types.ScanNode{
			Path: root,
			Name: "data",
			Children: []*types.ScanNode{
				{Path: root + "/a", Name: "a"},
				{Path: root + "/b", Name: "b"},
			},
		},
		TotalBytes: total,
	}
}

func TestStartSetsScanning(t *testing.T) {
	m, r := newTestManager(t, time.Hour)

	id, err := m.Start("/data", types.DefaultOptions(), ModeLocal)
	require.NoError(t, err)
	require.NotEmpty(t, id)

	st := m.State()
	assert.Equal(t, StatusScanning, st.Status)
	assert.Equal(t, id, st.ID)
	assert.Equal(t, "/data", st.TargetPath)
	require.Len(t, r.startCalls(), 1)
	assert.Equal(t, id, r.startCalls()[0].id)
}

func TestScanLifecycleWithDecay(t *testing.T) {
	m, _ := newTestManager(t, 30*time.Millisecond)

	id, err := m.Start("/data", types.DefaultOptions(), ModeLocal)
	require.NoError(t, err)

	m.Apply(engine.Event{Kind: engine.EventProgress, SessionID: id, Summary: summaryFor(id, "/data", 500)})
	st := m.State()
	assert.Equal(t, StatusScanning, st.Status)
	assert.Equal(t, int64(500), st.Summary.TotalBytes)

	m.Apply(engine.Event{Kind: engine.EventComplete, SessionID: id, Summary: summaryFor(id, "/data", 1000)})
	st = m.State()
	assert.Equal(t, StatusComplete, st.Status)
	assert.Equal(t, int64(1000), st.Summary.TotalBytes)
	assert.Equal(t, []string{"/data"}, m.History())

	// Complete decays back to idle after the grace period.
	assert.Eventually(t, func() bool {
		return m.State().Status == StatusIdle
	}, time.Second, 5*time.Millisecond)
}

func TestTerminalEventsAreIdempotent(t *testing.T) {
	m, _ := newTestManager(t, time.Hour)

	id, err := m.Start("/data", types.DefaultOptions(), ModeLocal)
	require.NoError(t, err)

	m.Apply(engine.Event{Kind: engine.EventComplete, SessionID: id, Summary: summaryFor(id, "/data", 1000)})
	before := m.State()

	// Any further event for the same id leaves the state unchanged.
	m.Apply(engine.Event{Kind: engine.EventProgress, SessionID: id, Summary: summaryFor(id, "/data", 9999)})
	m.Apply(engine.Event{Kind: engine.EventError, SessionID: id, Message: "late failure"})
	m.Apply(engine.Event{Kind: engine.EventComplete, SessionID: id, Summary: summaryFor(id, "/data", 1)})

	after := m.State()
	assert.Equal(t, before, after)
	assert.Equal(t, []string{"/data"}, m.History())
}

func TestStaleSessionEventsDiscarded(t *testing.T) {
	m, _ := newTestManager(t, time.Hour)

	old, err := m.Start("/data", types.DefaultOptions(), ModeLocal)
	require.NoError(t, err)
	current, err := m.Start("/data", types.DefaultOptions(), ModeLocal)
	require.NoError(t, err)
	require.NotEqual(t, old, current)

	// Events for the superseded id produce no observable change.
	m.Apply(engine.Event{Kind: engine.EventProgress, SessionID: old, Summary: summaryFor(old, "/data", 500)})
	m.Apply(engine.Event{Kind: engine.EventComplete, SessionID: old, Summary: summaryFor(old, "/data", 500)})

	st := m.State()
	assert.Equal(t, StatusScanning, st.Status)
	assert.Nil(t, st.Summary)
	assert.Empty(t, m.History())

	// Unknown ids are discarded too.
	m.Apply(engine.Event{Kind: engine.EventError, SessionID: "no-such-session", Message: "boom"})
	assert.Equal(t, StatusScanning, m.State().Status)
}

func TestErrorEventGoesIdleWithoutHistory(t *testing.T) {
	m, _ := newTestManager(t, time.Hour)

	id, err := m.Start("/data", types.DefaultOptions(), ModeLocal)
	require.NoError(t, err)

	m.Apply(engine.Event{Kind: engine.EventError, SessionID: id, Message: "permission denied"})

	st := m.State()
	assert.Equal(t, StatusIdle, st.Status)
	assert.Equal(t, "permission denied", st.LastError)
	assert.Empty(t, m.History())
}

func TestOptimisticCancel(t *testing.T) {
	m, r := newTestManager(t, time.Hour)

	id, err := m.Start("/data", types.DefaultOptions(), ModeLocal)
	require.NoError(t, err)

	m.Cancel()

	// Status leaves scanning immediately, before any acknowledgement.
	assert.Equal(t, StatusIdle, m.State().Status)
	assert.Equal(t, []string{id}, r.cancels)

	// A late progress event for the cancelled id is discarded.
	m.Apply(engine.Event{Kind: engine.EventProgress, SessionID: id, Summary: summaryFor(id, "/data", 500)})
	assert.Nil(t, m.State().Summary)
}

func TestCancelWithoutScanIsNoop(t *testing.T) {
	m, r := newTestManager(t, time.Hour)
	m.Cancel()
	assert.Empty(t, r.cancels)
}

func TestFirstProgressSeedsExpandedSet(t *testing.T) {
	m, _ := newTestManager(t, time.Hour)

	id, err := m.Start("/data", types.DefaultOptions(), ModeLocal)
	require.NoError(t, err)

	assert.False(t, m.Expanded("/data"))

	m.Apply(engine.Event{Kind: engine.EventProgress, SessionID: id, Summary: summaryFor(id, "/data", 100)})

	assert.True(t, m.Expanded("/data"))
	assert.True(t, m.Expanded("/data/a"))
	assert.True(t, m.Expanded("/data/b"))
	assert.False(t, m.Expanded("/data/a/deep"))
}

func TestHistoryDeduplicatesAndCaps(t *testing.T) {
	m, _ := newTestManager(t, time.Hour)

	paths := []string{
		"/p0", "/p1", "/p2", "/p3", "/p4", "/p5",
		"/p6", "/p7", "/p8", "/p9", "/p10", "/p1",
	}
	for _, p := range paths {
		id, err := m.Start(p, types.DefaultOptions(), ModeLocal)
		require.NoError(t, err)
		m.Apply(engine.Event{Kind: engine.EventComplete, SessionID: id, Summary: summaryFor(id, p, 1)})
	}

	got := m.History()
	require.Len(t, got, DefaultHistoryLimit)
	assert.Equal(t, "/p1", got[0])
	assert.Equal(t, "/p10", got[1])
	// Each entry appears once.
	seen := map[string]bool{}
	for _, p := range got {
		assert.False(t, seen[p], "duplicate %s", p)
		seen[p] = true
	}
}

func TestStartWithUnknownModeFails(t *testing.T) {
	m := NewManager(Config{})
	_, err := m.Start("/data", types.DefaultOptions(), ModeLocal)
	require.ErrorIs(t, err, ErrNoRunner)
}

func TestRunnerStartFailureForcesIdle(t *testing.T) {
	m := NewManager(Config{})
	r := &fakeRunner{startErr: assert.AnError}
	m.SetRunner(ModeRemote, r)

	_, err := m.Start("/data", types.DefaultOptions(), ModeRemote)
	require.Error(t, err)

	st := m.State()
	assert.Equal(t, StatusIdle, st.Status)
	assert.NotEmpty(t, st.LastError)
}
