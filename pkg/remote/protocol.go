// Package remote implements the client side of the voxara agent
// protocol: newline-delimited JSON messages over TCP, with
// client-generated correlation ids pairing each request with its
// eventual response. The package houses the request correlator, the
// lazily-populated remote directory tree cache, and the connection
// itself.
package remote

import (
	"encoding/json"

	"github.com/pureportal/voxara/pkg/voxara/engine"
	"github.com/pureportal/voxara/pkg/voxara/types"
)

// MaxLineBytes caps a single protocol line. Lines beyond this are a
// protocol violation.
const MaxLineBytes = 10 * 1024 * 1024

// Request actions.
const (
	ActionPing     = "ping"
	ActionList     = "list"
	ActionRead     = "read"
	ActionDisk     = "disk"
	ActionScan     = "scan"
	ActionCancel   = "cancel"
	ActionShutdown = "shutdown"
)

// Response events.
const (
	EventPong            = "pong"
	EventListComplete    = "list-complete"
	EventListError       = "list-error"
	EventReadComplete    = "read-complete"
	EventDiskInfo        = "disk-info"
	EventDiskError       = "disk-error"
	EventError           = "error"
	EventScanStarted     = "scan-started"
	EventScanProgress    = "scan-progress"
	EventScanComplete    = "scan-complete"
	EventScanError       = "scan-error"
	EventScanCancelled   = "scan-cancelled"
	EventCancelRequested = "cancel-requested"
	EventNoActiveScan    = "no-active-scan"
	EventShutdown        = "shutdown"
)

// Request is one client-to-agent message. A nil Path on a list request
// asks for the filesystem roots.
type Request struct {
	Action  string             `json:"action"`
	ID      string             `json:"id,omitempty"`
	Token   string             `json:"token,omitempty"`
	Path    *string            `json:"path,omitempty"`
	Options *types.ScanOptions `json:"options,omitempty"`
}

// Response is one agent-to-client message. The id echoes the request
// that caused it; unsolicited notifications omit it.
type Response struct {
	Event   string          `json:"event"`
	ID      string          `json:"id,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
	Message string          `json:"message,omitempty"`
}

// ListEntry is one directory in a listing.
type ListEntry struct {
	Name  string `json:"name"`
	Path  string `json:"path"`
	IsDir bool   `json:"isDir"`
}

// ListData is the payload of a list-complete response. A nil Path means
// the listing covers the filesystem roots.
type ListData struct {
	Path    *string     `json:"path"`
	Entries []ListEntry `json:"entries"`
	OS      string      `json:"os"`
}

// ReadData is the payload of a read-complete response. Content is
// base64-encoded.
type ReadData struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

// SessionEvent maps scan-scoped responses onto engine events for the
// session manager. Responses that are not session-scoped, or whose
// payload cannot be decoded, return false and are left to the
// correlator (fail-closed: malformed payloads never reach the session
// state machine).
func (r Response) SessionEvent() (engine.Event, bool) {
	switch r.Event {
	case EventScanProgress, EventScanComplete:
		var summary types.ScanSummary
		if err := json.Unmarshal(r.Data, &summary); err != nil {
			return engine.Event{}, false
		}
		kind := engine.EventProgress
		if r.Event == EventScanComplete {
			kind = engine.EventComplete
		}
		return engine.Event{Kind: kind, SessionID: r.ID, Summary: &summary}, true

	case EventScanError:
		return engine.Event{Kind: engine.EventError, SessionID: r.ID, Message: r.Message}, true

	case EventScanCancelled:
		return engine.Event{Kind: engine.EventCancelled, SessionID: r.ID, Message: r.Message}, true
	}
	return engine.Event{}, false
}
