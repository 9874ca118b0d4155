// Package engine implements the local scan engine: a parallel directory
// walker built on fastwalk that streams whole-tree snapshots as tagged
// session events. The session manager consumes the engine purely through
// its event stream; it never inspects engine internals.
package engine

import (
	"github.com/pureportal/voxara/pkg/voxara/types"
)

// Kind identifies the type of a scan event.
type Kind string

// Scan event kinds. Progress events may arrive in any order; complete,
// error, and cancelled are terminal for their session.
const (
	EventProgress  Kind = "progress"
	EventComplete  Kind = "complete"
	EventError     Kind = "error"
	EventCancelled Kind = "cancelled"
)

// Terminal reports whether the kind ends its session.
func (k Kind) Terminal() bool {
	return k == EventComplete || k == EventError || k == EventCancelled
}

// Event is one scan engine notification, tagged with the session id it
// belongs to. Progress and complete events carry a full summary; error
// and cancelled events carry a message instead.
type Event struct {
	Kind      Kind
	SessionID string
	Summary   *types.ScanSummary
	Message   string
}

// Emitter receives engine events. It must be safe to call from the
// engine's walker goroutines.
type Emitter func(Event)
