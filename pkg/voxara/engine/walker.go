package engine

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charlievieth/fastwalk"
	"github.com/gobwas/glob"

	"github.com/pureportal/voxara/pkg/voxara/logging"
	"github.com/pureportal/voxara/pkg/voxara/topk"
	"github.com/pureportal/voxara/pkg/voxara/types"
)

// Local is the in-process scan engine.
type Local struct {
	exclude []glob.Glob
}

// NewLocal creates a local engine. Exclude patterns are glob expressions
// matched against full paths and base names; matching directories are
// skipped wholesale.
func NewLocal(excludePatterns []string) (*Local, error) {
	globs := make([]glob.Glob, 0, len(excludePatterns))
	for _, pattern := range excludePatterns {
		g, err := glob.Compile(pattern)
		if err != nil {
			return nil, err
		}
		globs = append(globs, g)
	}
	return &Local{exclude: globs}, nil
}

// Scan walks root and streams progress snapshots through emit, finishing
// with exactly one terminal event. It blocks until the walk ends; run it
// on its own goroutine. Cancelling ctx stops the walk and produces a
// cancelled event.
func (l *Local) Scan(ctx context.Context, sessionID, root string, opts types.ScanOptions, emit Emitter) {
	log := logging.Get("engine")

	cfg, err := buildConfig(opts)
	if err != nil {
		emit(Event{Kind: EventError, SessionID: sessionID, Message: err.Error()})
		return
	}

	absRoot, err := filepath.Abs(root)
	if err == nil {
		var info os.FileInfo
		if info, err = os.Stat(absRoot); err == nil && !info.IsDir() {
			err = errors.New("not a directory: " + absRoot)
		}
	}
	if err != nil {
		emit(Event{Kind: EventError, SessionID: sessionID, Message: err.Error()})
		return
	}

	log.Info("scan started", "session", sessionID, "root", absRoot, "workers", cfg.workers)

	w := &walk{
		cfg:       cfg,
		exclude:   l.exclude,
		root:      absRoot,
		sessionID: sessionID,
		emit:      emit,
		started:   time.Now(),
		dirs:      map[string]*dirAccum{absRoot: {name: filepath.Base(absRoot)}},
	}
	w.lastEmit.Store(time.Now().UnixNano())

	conf := fastwalk.Config{
		Follow:     false,
		NumWorkers: cfg.workers,
	}

	done := make(chan struct{})
	stop := context.AfterFunc(ctx, func() { close(done) })
	defer stop()

	walkErr := fastwalk.Walk(&conf, absRoot, w.callback(done))

	if ctx.Err() != nil {
		log.Info("scan cancelled", "session", sessionID)
		emit(Event{Kind: EventCancelled, SessionID: sessionID, Message: "Scan cancelled"})
		return
	}
	if walkErr != nil && !errors.Is(walkErr, fastwalk.ErrSkipFiles) {
		log.Error("scan failed", "session", sessionID, "error", walkErr)
		emit(Event{Kind: EventError, SessionID: sessionID, Message: walkErr.Error()})
		return
	}

	summary := w.snapshot()
	log.Info("scan complete", "session", sessionID,
		"files", summary.FileCount, "bytes", summary.TotalBytes,
		"elapsed", time.Since(w.started))
	emit(Event{Kind: EventComplete, SessionID: sessionID, Summary: summary})
}

// DiskUsage reports capacity and free space for the volume containing
// path.
func (l *Local) DiskUsage(path string) (types.DiskUsage, error) {
	return DiskUsage(path)
}

// dirAccum accumulates direct file entries for one directory during the
// walk.
type dirAccum struct {
	name  string
	files []types.ScanFile
}

// walk carries the shared state of one traversal.
type walk struct {
	cfg       scanConfig
	exclude   []glob.Glob
	root      string
	sessionID string
	emit      Emitter
	started   time.Time

	mu   sync.Mutex
	dirs map[string]*dirAccum

	processed        atomic.Int64
	lastEmit         atomic.Int64 // unix nanos of the last progress emission
	lastEmittedBytes atomic.Int64

	emitMu sync.Mutex
}

func (w *walk) callback(done <-chan struct{}) fs.WalkDirFunc {
	return func(path string, d fs.DirEntry, err error) error {
		select {
		case <-done:
			return fastwalk.ErrSkipFiles
		default:
		}

		if err != nil {
			// Unreadable entries are skipped, not fatal.
			return nil
		}

		if w.cfg.pause > 0 {
			time.Sleep(w.cfg.pause)
		}

		if path != w.root && w.isExcluded(path) {
			if d.IsDir() {
				return fastwalk.SkipDir
			}
			return nil
		}

		if d.IsDir() {
			if path != w.root {
				w.addDir(path)
			}
		} else if d.Type().IsRegular() {
			w.addFile(path, d)
		}

		if w.shouldEmit() {
			w.emitProgress()
		}
		return nil
	}
}

func (w *walk) isExcluded(path string) bool {
	base := filepath.Base(path)
	for _, g := range w.exclude {
		if g.Match(path) || g.Match(base) {
			return true
		}
	}
	return false
}

func (w *walk) addDir(path string) {
	w.mu.Lock()
	if _, ok := w.dirs[path]; !ok {
		w.dirs[path] = &dirAccum{name: filepath.Base(path)}
	}
	w.mu.Unlock()
	w.processed.Add(1)
}

func (w *walk) addFile(path string, d fs.DirEntry) {
	w.processed.Add(1)

	info, err := d.Info()
	if err != nil {
		return
	}
	size := info.Size()
	name := d.Name()
	if !w.cfg.matcher.Match(name, path, size) {
		return
	}

	parent := filepath.Dir(path)
	w.mu.Lock()
	accum, ok := w.dirs[parent]
	if !ok {
		// Parent not seen yet (workers race); register it now.
		accum = &dirAccum{name: filepath.Base(parent)}
		w.dirs[parent] = accum
	}
	accum.files = append(accum.files, types.ScanFile{Path: path, Name: name, SizeBytes: size})
	w.mu.Unlock()
}

// shouldEmit applies the cadence rules: every N processed entries, or
// when the emit interval has elapsed.
func (w *walk) shouldEmit() bool {
	if w.processed.Load()%w.cfg.emitEvery == 0 {
		return true
	}
	last := time.Unix(0, w.lastEmit.Load())
	return time.Since(last) >= w.cfg.emitInterval
}

// emitProgress builds and emits a progress snapshot. Snapshots whose
// total would appear smaller than an earlier emission are suppressed so
// observers never see totals shrink mid-scan.
func (w *walk) emitProgress() {
	w.emitMu.Lock()
	defer w.emitMu.Unlock()

	summary := w.snapshot()
	if summary.TotalBytes < w.lastEmittedBytes.Load() {
		return
	}
	w.lastEmittedBytes.Store(summary.TotalBytes)
	w.lastEmit.Store(time.Now().UnixNano())
	w.emit(Event{Kind: EventProgress, SessionID: w.sessionID, Summary: summary})
}

// snapshot assembles a fresh immutable tree from the accumulated state.
func (w *walk) snapshot() *types.ScanSummary {
	w.mu.Lock()
	nodes := make(map[string]*types.ScanNode, len(w.dirs))
	for path, accum := range w.dirs {
		files := make([]types.ScanFile, len(accum.files))
		copy(files, accum.files)
		nodes[path] = &types.ScanNode{Path: path, Name: accum.name, Files: files}
	}
	w.mu.Unlock()

	root := nodes[w.root]
	for path, node := range nodes {
		if path == w.root {
			continue
		}
		parent, ok := nodes[filepath.Dir(path)]
		if !ok {
			parent = root
		}
		parent.Children = append(parent.Children, node)
	}
	aggregate(root)

	return &types.ScanSummary{
		ID:           w.sessionID,
		Root:         root,
		TotalBytes:   root.SizeBytes,
		FileCount:    root.FileCount,
		DirCount:     root.DirCount,
		LargestFiles: topk.Largest(root, topk.DefaultK, nil),
		DurationMs:   time.Since(w.started).Milliseconds(),
	}
}

// aggregate fills recursive sizes and counts bottom-up and orders
// children largest-first.
func aggregate(node *types.ScanNode) {
	for _, f := range node.Files {
		node.SizeBytes += f.SizeBytes
	}
	node.FileCount = int64(len(node.Files))

	for _, child := range node.Children {
		aggregate(child)
		node.SizeBytes += child.SizeBytes
		node.FileCount += child.FileCount
		node.DirCount += 1 + child.DirCount
	}
	sort.SliceStable(node.Children, func(i, j int) bool {
		return node.Children[i].SizeBytes > node.Children[j].SizeBytes
	})
}
