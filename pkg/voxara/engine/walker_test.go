package engine

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pureportal/voxara/pkg/voxara/types"
)

// collector gathers emitted events for assertions.
type collector struct {
	mu     sync.Mutex
	events []Event
}

func (c *collector) emit(ev Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, ev)
}

func (c *collector) all() []Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Event, len(c.events))
	copy(out, c.events)
	return out
}

func (c *collector) last() Event {
	all := c.all()
	return all[len(all)-1]
}

func writeFile(t *testing.T, path string, size int) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, make([]byte, size), 0o644))
}

func TestScanBuildsAggregatedTree(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "big.bin"), 4096)
	writeFile(t, filepath.Join(dir, "media", "clip.mov"), 2048)
	writeFile(t, filepath.Join(dir, "media", "old", "archive.zip"), 1024)

	eng, err := NewLocal(nil)
	require.NoError(t, err)

	var c collector
	eng.Scan(context.Background(), "s1", dir, types.DefaultOptions(), c.emit)

	last := c.last()
	require.Equal(t, EventComplete, last.Kind)
	assert.Equal(t, "s1", last.SessionID)

	summary := last.Summary
	require.NotNil(t, summary)
	assert.Equal(t, int64(7168), summary.TotalBytes)
	assert.Equal(t, int64(3), summary.FileCount)
	assert.Equal(t, int64(2), summary.DirCount)

	// Root aggregates match the whole tree; children are largest-first.
	root := summary.Root
	require.NotNil(t, root)
	assert.Equal(t, summary.TotalBytes, root.SizeBytes)
	require.Len(t, root.Children, 1)
	media := root.Children[0]
	assert.Equal(t, "media", media.Name)
	assert.Equal(t, int64(3072), media.SizeBytes)
	assert.Equal(t, int64(2), media.FileCount)

	// Largest files descend by size.
	require.Len(t, summary.LargestFiles, 3)
	assert.Equal(t, "big.bin", summary.LargestFiles[0].Name)
	assert.Equal(t, "clip.mov", summary.LargestFiles[1].Name)
}

func TestScanAppliesFilters(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "keep.mov"), 2048)
	writeFile(t, filepath.Join(dir, "skip.txt"), 4096)

	opts := types.DefaultOptions()
	opts.Filters.IncludeExtensions = []string{"mov"}

	eng, err := NewLocal(nil)
	require.NoError(t, err)

	var c collector
	eng.Scan(context.Background(), "s1", dir, opts, c.emit)

	last := c.last()
	require.Equal(t, EventComplete, last.Kind)
	assert.Equal(t, int64(2048), last.Summary.TotalBytes)
	assert.Equal(t, int64(1), last.Summary.FileCount)
	require.Len(t, last.Summary.LargestFiles, 1)
	assert.Equal(t, "keep.mov", last.Summary.LargestFiles[0].Name)
}

func TestScanExcludesGlobPatterns(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "src", "main.go"), 512)
	writeFile(t, filepath.Join(dir, "node_modules", "dep", "index.js"), 8192)

	eng, err := NewLocal([]string{"node_modules"})
	require.NoError(t, err)

	var c collector
	eng.Scan(context.Background(), "s1", dir, types.DefaultOptions(), c.emit)

	last := c.last()
	require.Equal(t, EventComplete, last.Kind)
	assert.Equal(t, int64(512), last.Summary.TotalBytes)
	assert.Equal(t, int64(1), last.Summary.FileCount)
}

func TestScanInvalidRootEmitsError(t *testing.T) {
	eng, err := NewLocal(nil)
	require.NoError(t, err)

	var c collector
	eng.Scan(context.Background(), "s1", filepath.Join(t.TempDir(), "missing"),
		types.DefaultOptions(), c.emit)

	events := c.all()
	require.Len(t, events, 1)
	assert.Equal(t, EventError, events[0].Kind)
	assert.NotEmpty(t, events[0].Message)
}

func TestScanInvalidFilterEmitsErrorBeforeWalking(t *testing.T) {
	opts := types.DefaultOptions()
	opts.Filters.IncludeRegex = "[unclosed"

	eng, err := NewLocal(nil)
	require.NoError(t, err)

	var c collector
	eng.Scan(context.Background(), "s1", t.TempDir(), opts, c.emit)

	events := c.all()
	require.Len(t, events, 1)
	assert.Equal(t, EventError, events[0].Kind)
}

func TestScanCancellationEmitsCancelled(t *testing.T) {
	dir := t.TempDir()
	for i := range 50 {
		writeFile(t, filepath.Join(dir, "d", "f"+string(rune('a'+i%26))+".bin"), 64)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	eng, err := NewLocal(nil)
	require.NoError(t, err)

	var c collector
	eng.Scan(ctx, "s1", dir, types.DefaultOptions(), c.emit)

	last := c.last()
	assert.Equal(t, EventCancelled, last.Kind)
}

func TestScanEmitsExactlyOneTerminalEvent(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.bin"), 128)

	eng, err := NewLocal(nil)
	require.NoError(t, err)

	var c collector
	eng.Scan(context.Background(), "s1", dir, types.DefaultOptions(), c.emit)

	terminal := 0
	for _, ev := range c.all() {
		if ev.Kind.Terminal() {
			terminal++
		}
	}
	assert.Equal(t, 1, terminal)
}

func TestProgressTotalsNeverShrink(t *testing.T) {
	dir := t.TempDir()
	for i := range 30 {
		writeFile(t, filepath.Join(dir, "d", "sub", "f"+string(rune('a'+i%26))+".bin"), 256)
	}

	opts := types.DefaultOptions()
	opts.PriorityMode = types.PriorityLow // tightest emit cadence

	eng, err := NewLocal(nil)
	require.NoError(t, err)

	var c collector
	eng.Scan(context.Background(), "s1", dir, opts, c.emit)

	var prev int64
	for _, ev := range c.all() {
		if ev.Summary == nil {
			continue
		}
		assert.GreaterOrEqual(t, ev.Summary.TotalBytes, prev)
		prev = ev.Summary.TotalBytes
	}
}

func TestBuildConfigCadence(t *testing.T) {
	tests := []struct {
		priority     types.PriorityMode
		workers      int
		emitEvery    int64
		emitInterval time.Duration
	}{
		{types.PriorityPerformance, 2 * runtime.NumCPU(), 2500, 900 * time.Millisecond},
		{types.PriorityBalanced, runtime.NumCPU(), 1500, 600 * time.Millisecond},
		{types.PriorityLow, max(runtime.NumCPU()/2, 1), 600, 350 * time.Millisecond},
	}

	for _, tt := range tests {
		t.Run(string(tt.priority), func(t *testing.T) {
			opts := types.DefaultOptions()
			opts.PriorityMode = tt.priority
			cfg, err := buildConfig(opts)
			require.NoError(t, err)
			assert.Equal(t, tt.workers, cfg.workers)
			assert.Equal(t, tt.emitEvery, cfg.emitEvery)
			assert.Equal(t, tt.emitInterval, cfg.emitInterval)
		})
	}
}

func TestBuildConfigThrottlePause(t *testing.T) {
	tests := []struct {
		level types.ThrottleLevel
		pause time.Duration
	}{
		{types.ThrottleOff, 0},
		{types.ThrottleLow, 2 * time.Millisecond},
		{types.ThrottleMedium, 5 * time.Millisecond},
		{types.ThrottleHigh, 10 * time.Millisecond},
	}

	for _, tt := range tests {
		t.Run(string(tt.level), func(t *testing.T) {
			opts := types.DefaultOptions()
			opts.ThrottleLevel = tt.level
			cfg, err := buildConfig(opts)
			require.NoError(t, err)
			assert.Equal(t, tt.pause, cfg.pause)
		})
	}
}
