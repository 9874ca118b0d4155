package session

import (
	"io/fs"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/pureportal/voxara/pkg/voxara/logging"
)

// DefaultWatchWindow is the quiet period after the last filesystem
// event before a watched path triggers a rescan.
const DefaultWatchWindow = 2 * time.Second

// Watcher observes a scanned directory tree for changes and, after a
// quiet window, invokes its callback (typically a session restart).
// Bursts of filesystem activity collapse into a single invocation.
type Watcher struct {
	fsw    *fsnotify.Watcher
	task   *Task
	window time.Duration

	mu     sync.Mutex
	closed bool
}

// NewWatcher creates a watcher that calls onQuiet once per burst of
// changes. A window of zero uses DefaultWatchWindow.
func NewWatcher(window time.Duration, onQuiet func()) (*Watcher, error) {
	if window <= 0 {
		window = DefaultWatchWindow
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		fsw:    fsw,
		task:   NewTask(onQuiet),
		window: window,
	}
	go w.run()
	return w, nil
}

// Watch starts watching root and its subdirectories. Unreadable
// subtrees are skipped. Symlinks are not followed.
func (w *Watcher) Watch(root string) error {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return err
	}

	log := logging.Get("watcher")
	return filepath.WalkDir(absRoot, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return nil //nolint:nilerr // Skip entries with errors
		}
		if !d.IsDir() {
			return nil
		}
		if err := w.fsw.Add(path); err != nil {
			log.Debug("cannot watch directory", "path", path, "error", err)
		}
		return nil
	})
}

// run drains filesystem events, restarting the quiet window on each.
func (w *Watcher) run() {
	log := logging.Get("watcher")
	for {
		select {
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			log.Debug("filesystem change", "op", ev.Op.String(), "path", ev.Name)
			// New directories need their own watch for nested changes.
			if ev.Op.Has(fsnotify.Create) {
				_ = w.fsw.Add(ev.Name)
			}
			w.task.Schedule(w.window)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			log.Warn("watch error", "error", err)
		}
	}
}

// Close stops watching and disarms any pending callback.
func (w *Watcher) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}
	w.closed = true
	w.task.Cancel()
	return w.fsw.Close()
}
