package session

import (
	"context"
	"sync"

	"github.com/pureportal/voxara/pkg/voxara/engine"
	"github.com/pureportal/voxara/pkg/voxara/types"
)

// LocalRunner drives the in-process scan engine, owning one cancellable
// context per session.
type LocalRunner struct {
	eng  *engine.Local
	emit engine.Emitter

	mu      sync.Mutex
	cancels map[string]context.CancelFunc
}

// NewLocalRunner creates a runner that streams engine events into emit
// (normally Manager.Apply).
func NewLocalRunner(eng *engine.Local, emit engine.Emitter) *LocalRunner {
	return &LocalRunner{
		eng:     eng,
		emit:    emit,
		cancels: make(map[string]context.CancelFunc),
	}
}

// Start launches the scan on its own goroutine and returns immediately.
func (r *LocalRunner) Start(sessionID, path string, opts types.ScanOptions) error {
	ctx, cancel := context.WithCancel(context.Background())

	r.mu.Lock()
	r.cancels[sessionID] = cancel
	r.mu.Unlock()

	go func() {
		defer func() {
			r.mu.Lock()
			delete(r.cancels, sessionID)
			r.mu.Unlock()
			cancel()
		}()
		r.eng.Scan(ctx, sessionID, path, opts, r.emit)
	}()

	return nil
}

// Cancel stops the scan with the given session id, if it is still
// running.
func (r *LocalRunner) Cancel(sessionID string) error {
	r.mu.Lock()
	cancel, ok := r.cancels[sessionID]
	r.mu.Unlock()
	if ok {
		cancel()
	}
	return nil
}
