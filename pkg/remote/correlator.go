package remote

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pureportal/voxara/pkg/voxara/logging"
)

// Per-kind response deadlines. Scan and cancel deliberately carry no
// client-side timeout: their outcome is only ever learned from an
// explicit terminal event, and long scans should not be guessed at.
const (
	ListTimeout = 5 * time.Second
	ReadTimeout = 5 * time.Second
	DiskTimeout = 5 * time.Second
	PingTimeout = 4 * time.Second
)

// TimeoutError is the client-synthesized failure for a request that
// received no response within its deadline.
type TimeoutError struct {
	Action string
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("Remote %s request timed out.", e.Action)
}

// ProtocolError is an agent-reported failure for a single request.
type ProtocolError struct {
	Event   string
	Message string
}

func (e *ProtocolError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Event
}

// Callback receives the matched response, or an error when the request
// failed or timed out. Exactly one of the two is set.
type Callback func(resp Response, err error)

// pending tracks one in-flight request.
type pending struct {
	id       string
	action   string
	issuedAt time.Time
	timer    *time.Timer
	cb       Callback
}

// Correlator assigns process-unique ids to outgoing requests, tracks
// the pending ones, enforces per-kind deadlines, and matches inbound
// responses back to their callbacks. It is the single writer of the
// pending map. Responses for ids no longer pending are dropped: once a
// request has timed out, a late answer is never applied.
type Correlator struct {
	mu      sync.Mutex
	pending map[string]*pending
	send    func(Request) error
}

// NewCorrelator creates a correlator transmitting through send.
func NewCorrelator(send func(Request) error) *Correlator {
	return &Correlator{
		pending: make(map[string]*pending),
		send:    send,
	}
}

// Send assigns the request an id (unless the caller pre-set one, as
// scan does with its session id), registers a pending entry for
// deadline-bearing kinds, and transmits. The id is returned either way.
func (c *Correlator) Send(req Request, cb Callback) (string, error) {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}

	timeout := timeoutFor(req.Action)
	if timeout > 0 && cb != nil {
		p := &pending{
			id:       req.ID,
			action:   req.Action,
			issuedAt: time.Now(),
			cb:       cb,
		}
		p.timer = time.AfterFunc(timeout, func() { c.onTimeout(p.id) })

		c.mu.Lock()
		c.pending[req.ID] = p
		c.mu.Unlock()
	}

	if err := c.send(req); err != nil {
		c.remove(req.ID)
		return req.ID, err
	}
	return req.ID, nil
}

// Dispatch matches a response to its pending request. It reports false
// for unmatched responses, which the caller drops.
func (c *Correlator) Dispatch(resp Response) bool {
	p := c.remove(resp.ID)
	if p == nil {
		return false
	}

	if isErrorEvent(resp.Event) {
		p.cb(Response{}, &ProtocolError{Event: resp.Event, Message: resp.Message})
	} else {
		p.cb(resp, nil)
	}
	return true
}

// FailAll rejects every pending request, used when the connection goes
// down.
func (c *Correlator) FailAll(err error) {
	c.mu.Lock()
	all := make([]*pending, 0, len(c.pending))
	for _, p := range c.pending {
		p.timer.Stop()
		all = append(all, p)
	}
	c.pending = make(map[string]*pending)
	c.mu.Unlock()

	for _, p := range all {
		p.cb(Response{}, err)
	}
}

// PendingCount returns the number of in-flight requests.
func (c *Correlator) PendingCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

func (c *Correlator) onTimeout(id string) {
	p := c.remove(id)
	if p == nil {
		return
	}
	logging.Get("remote").Warn("request timed out", "action", p.action, "id", id,
		"elapsed", time.Since(p.issuedAt))
	p.cb(Response{}, &TimeoutError{Action: p.action})
}

// remove takes a pending entry out of the map, stopping its timer.
func (c *Correlator) remove(id string) *pending {
	if id == "" {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	p, ok := c.pending[id]
	if !ok {
		return nil
	}
	p.timer.Stop()
	delete(c.pending, id)
	return p
}

func timeoutFor(action string) time.Duration {
	switch action {
	case ActionList:
		return ListTimeout
	case ActionRead:
		return ReadTimeout
	case ActionDisk:
		return DiskTimeout
	case ActionPing:
		return PingTimeout
	default:
		return 0
	}
}

// isErrorEvent reports whether a response event means failure for the
// request it answers.
func isErrorEvent(event string) bool {
	return event == EventError || strings.HasSuffix(event, "-error")
}
