package session

import (
	"sync"
	"time"
)

// Task is a cancellable delayed task: a named replacement for ad-hoc
// timer juggling. Schedule arms the task; scheduling again before it
// fires restarts the delay; Cancel disarms it. The callback runs on a
// timer goroutine.
type Task struct {
	mu    sync.Mutex
	timer *time.Timer
	fn    func()
}

// NewTask creates a task around fn. The task starts disarmed.
func NewTask(fn func()) *Task {
	return &Task{fn: fn}
}

// Schedule arms the task to fire after d, replacing any pending delay.
func (t *Task) Schedule(d time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.timer != nil {
		t.timer.Stop()
	}
	t.timer = time.AfterFunc(d, func() {
		t.mu.Lock()
		t.timer = nil
		t.mu.Unlock()
		t.fn()
	})
}

// Cancel disarms the task if it is pending. A task that already fired
// is unaffected.
func (t *Task) Cancel() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
}

// Pending reports whether the task is armed.
func (t *Task) Pending() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.timer != nil
}
