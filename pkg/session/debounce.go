package session

import (
	"sync"
	"time"

	"github.com/pureportal/voxara/pkg/voxara/logging"
	"github.com/pureportal/voxara/pkg/voxara/query"
	"github.com/pureportal/voxara/pkg/voxara/types"
)

// Debounce windows: remote restarts use a slightly shorter quiet period
// because the round trip itself adds latency.
const (
	DefaultLocalDebounce  = 350 * time.Millisecond
	DefaultRemoteDebounce = 300 * time.Millisecond
)

// restarter is the slice of the Manager the debouncer needs.
type restarter interface {
	HasSessionFor(path string) bool
	Restart(path string, opts types.ScanOptions, mode Mode) (string, error)
}

// Debouncer coalesces rapid option and search edits into a single
// cancel-and-restart. Every change restarts the quiet window; when it
// finally elapses, the last-seen option set wins. Invalid inputs
// (unparsable regex, min size above max) suppress the restart entirely:
// the applied signature is left untouched so the next valid edit
// triggers normally.
type Debouncer struct {
	mu          sync.Mutex
	task        *Task
	mgr         restarter
	localDelay  time.Duration
	remoteDelay time.Duration

	lastApplied string

	// pending holds the latest observed change, consumed when the
	// window elapses.
	pending struct {
		path   string
		opts   types.ScanOptions
		search string
		mode   Mode
		sig    string
	}
}

// NewDebouncer creates a debouncer driving restarts through mgr.
func NewDebouncer(mgr restarter) *Debouncer {
	d := &Debouncer{
		mgr:         mgr,
		localDelay:  DefaultLocalDebounce,
		remoteDelay: DefaultRemoteDebounce,
	}
	d.task = NewTask(d.fire)
	return d
}

// SetDelays overrides the debounce windows; used in tests.
func (d *Debouncer) SetDelays(local, remote time.Duration) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.localDelay = local
	d.remoteDelay = remote
}

// NoteApplied records the option set of a scan started outside the
// debouncer, so an identical later edit does not trigger a redundant
// restart.
func (d *Debouncer) NoteApplied(opts types.ScanOptions, search string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.lastApplied = signature(opts, search)
}

// Observe reports one option or search change. If the combined
// signature differs from the last applied one and the path has a
// session, the quiet window is (re)started.
func (d *Debouncer) Observe(path string, opts types.ScanOptions, search string, mode Mode) {
	sig := signature(opts, search)

	d.mu.Lock()
	defer d.mu.Unlock()

	if sig == d.lastApplied {
		return
	}
	if !d.mgr.HasSessionFor(path) {
		return
	}

	d.pending.path = path
	d.pending.opts = opts
	d.pending.search = search
	d.pending.mode = mode
	d.pending.sig = sig

	delay := d.localDelay
	if mode == ModeRemote {
		delay = d.remoteDelay
	}
	d.task.Schedule(delay)
}

// fire runs when the quiet window elapses.
func (d *Debouncer) fire() {
	d.mu.Lock()
	path := d.pending.path
	opts := d.pending.opts
	search := d.pending.search
	mode := d.pending.mode
	sig := d.pending.sig
	d.mu.Unlock()

	log := logging.Get("session")

	if err := validate(opts, search); err != nil {
		// Restart only proceeds once inputs are valid; the applied
		// signature stays as-is.
		log.Debug("debounced restart suppressed", "error", err)
		return
	}

	if _, err := d.mgr.Restart(path, opts, mode); err != nil {
		log.Warn("debounced restart failed", "path", path, "error", err)
		return
	}

	d.mu.Lock()
	d.lastApplied = sig
	d.mu.Unlock()
	log.Info("debounced restart applied", "path", path, "mode", mode)
}

// signature combines the option signature with the search text.
func signature(opts types.ScanOptions, search string) string {
	return opts.Signature() + "|q=" + search
}

// validate reproduces the validation gate: compile the filters and the
// search query, rejecting unparsable regexes and inverted size bounds.
func validate(opts types.ScanOptions, search string) error {
	if _, err := query.Compile(opts.Filters); err != nil {
		return err
	}
	if invalid := query.Parse(search).InvalidPatterns(); len(invalid) > 0 {
		return &invalidSearchError{patterns: invalid}
	}
	return nil
}

type invalidSearchError struct {
	patterns []string
}

func (e *invalidSearchError) Error() string {
	return "invalid search regex: " + e.patterns[0]
}
