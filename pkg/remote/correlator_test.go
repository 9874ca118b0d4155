package remote

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// capturingSend records outgoing requests for assertions.
type capturingSend struct {
	mu   sync.Mutex
	reqs []Request
	err  error
}

func (s *capturingSend) send(req Request) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reqs = append(s.reqs, req)
	return s.err
}

func (s *capturingSend) sent() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Request, len(s.reqs))
	copy(out, s.reqs)
	return out
}

func TestCorrelatorResolvesMatchedResponse(t *testing.T) {
	sender := &capturingSend{}
	c := NewCorrelator(sender.send)

	got := make(chan Response, 1)
	id, err := c.Send(Request{Action: ActionList}, func(resp Response, err error) {
		require.NoError(t, err)
		got <- resp
	})
	require.NoError(t, err)
	require.NotEmpty(t, id)
	assert.Equal(t, 1, c.PendingCount())

	ok := c.Dispatch(Response{
		Event: EventListComplete,
		ID:    id,
		Data:  json.RawMessage(`{"path":null,"entries":[],"os":"unix"}`),
	})
	assert.True(t, ok)
	assert.Equal(t, 0, c.PendingCount())

	select {
	case resp := <-got:
		assert.Equal(t, EventListComplete, resp.Event)
	case <-time.After(time.Second):
		t.Fatal("callback never ran")
	}
}

func TestCorrelatorErrorEventBecomesProtocolError(t *testing.T) {
	sender := &capturingSend{}
	c := NewCorrelator(sender.send)

	got := make(chan error, 1)
	id, err := c.Send(Request{Action: ActionDisk}, func(_ Response, err error) {
		got <- err
	})
	require.NoError(t, err)

	c.Dispatch(Response{Event: EventDiskError, ID: id, Message: "no such path"})

	select {
	case err := <-got:
		var perr *ProtocolError
		require.ErrorAs(t, err, &perr)
		assert.Equal(t, "no such path", perr.Message)
	case <-time.After(time.Second):
		t.Fatal("callback never ran")
	}
}

func TestCorrelatorTimeoutThenLateResponseDropped(t *testing.T) {
	sender := &capturingSend{}
	c := NewCorrelator(sender.send)

	got := make(chan error, 1)
	id, err := c.Send(Request{Action: ActionList}, func(_ Response, err error) {
		got <- err
	})
	require.NoError(t, err)

	// Force the deadline instead of waiting five seconds.
	c.onTimeout(id)

	select {
	case err := <-got:
		var terr *TimeoutError
		require.ErrorAs(t, err, &terr)
		assert.Equal(t, "Remote list request timed out.", err.Error())
	case <-time.After(time.Second):
		t.Fatal("timeout callback never ran")
	}

	// The answer arriving after the deadline is never applied.
	ok := c.Dispatch(Response{Event: EventListComplete, ID: id})
	assert.False(t, ok)
	select {
	case <-got:
		t.Fatal("late response reached the callback")
	default:
	}
}

func TestCorrelatorScanCarriesCallerID(t *testing.T) {
	sender := &capturingSend{}
	c := NewCorrelator(sender.send)

	id, err := c.Send(Request{Action: ActionScan, ID: "session-42"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "session-42", id)

	// Scan has no client-side deadline and registered no pending entry.
	assert.Equal(t, 0, c.PendingCount())

	sent := sender.sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "session-42", sent[0].ID)
}

func TestCorrelatorSendFailureDeregisters(t *testing.T) {
	sender := &capturingSend{err: assert.AnError}
	c := NewCorrelator(sender.send)

	_, err := c.Send(Request{Action: ActionPing}, func(Response, error) {
		t.Fatal("callback must not run on send failure")
	})
	require.Error(t, err)
	assert.Equal(t, 0, c.PendingCount())
}

func TestCorrelatorFailAllRejectsEverything(t *testing.T) {
	sender := &capturingSend{}
	c := NewCorrelator(sender.send)

	errs := make(chan error, 2)
	cb := func(_ Response, err error) { errs <- err }
	_, err := c.Send(Request{Action: ActionList}, cb)
	require.NoError(t, err)
	_, err = c.Send(Request{Action: ActionDisk}, cb)
	require.NoError(t, err)

	c.FailAll(ErrClosed)
	assert.Equal(t, 0, c.PendingCount())

	for range 2 {
		select {
		case err := <-errs:
			assert.ErrorIs(t, err, ErrClosed)
		case <-time.After(time.Second):
			t.Fatal("pending request was not rejected")
		}
	}
}
