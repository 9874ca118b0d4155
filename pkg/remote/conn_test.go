package remote

import (
	"bufio"
	"encoding/json"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pureportal/voxara/pkg/voxara/engine"
	"github.com/pureportal/voxara/pkg/voxara/types"
)

// lineServer is a scripted agent: each accepted request is answered by
// the handler, and the test can push unsolicited events.
type lineServer struct {
	t        *testing.T
	listener net.Listener
	handler  func(Request) []Response

	mu   sync.Mutex
	conn net.Conn
}

func newLineServer(t *testing.T, handler func(Request) []Response) *lineServer {
	t.Helper()
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	s := &lineServer{t: t, listener: listener, handler: handler}
	go s.serve()
	t.Cleanup(func() { listener.Close() })
	return s
}

func (s *lineServer) serve() {
	conn, err := s.listener.Accept()
	if err != nil {
		return
	}
	s.mu.Lock()
	s.conn = conn
	s.mu.Unlock()

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 64*1024), MaxLineBytes)
	for scanner.Scan() {
		var req Request
		if err := json.Unmarshal(scanner.Bytes(), &req); err != nil {
			continue
		}
		if s.handler == nil {
			continue
		}
		for _, resp := range s.handler(req) {
			s.push(resp)
		}
	}
}

func (s *lineServer) push(resp Response) {
	line, err := json.Marshal(resp)
	require.NoError(s.t, err)
	line = append(line, '\n')

	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if conn != nil {
		conn.Write(line) //nolint:errcheck
	}
}

func (s *lineServer) waitConn(t *testing.T) {
	t.Helper()
	require.Eventually(t, func() bool {
		s.mu.Lock()
		defer s.mu.Unlock()
		return s.conn != nil
	}, time.Second, 5*time.Millisecond)
}

func echoPong(req Request) []Response {
	if req.Action == ActionPing {
		return []Response{{Event: EventPong, ID: req.ID}}
	}
	return nil
}

func TestClientPingRoundTrip(t *testing.T) {
	var tokens []string
	var mu sync.Mutex
	srv := newLineServer(t, func(req Request) []Response {
		mu.Lock()
		tokens = append(tokens, req.Token)
		mu.Unlock()
		return echoPong(req)
	})

	c, err := Dial(srv.listener.Addr().String(), "hunter2", nil, nil)
	require.NoError(t, err)
	defer c.Close()

	require.NoError(t, c.Ping())

	// Every request carries the shared token.
	mu.Lock()
	defer mu.Unlock()
	require.NotEmpty(t, tokens)
	assert.Equal(t, "hunter2", tokens[0])
}

func TestClientRoutesScanEventsToEmitter(t *testing.T) {
	srv := newLineServer(t, nil)

	events := make(chan engine.Event, 8)
	c, err := Dial(srv.listener.Addr().String(), "", func(ev engine.Event) {
		events <- ev
	}, nil)
	require.NoError(t, err)
	defer c.Close()
	srv.waitConn(t)

	srv.push(Response{
		Event: EventScanProgress,
		ID:    "s1",
		Data:  json.RawMessage(`{"root":null,"totalBytes":512,"fileCount":2,"dirCount":0,"largestFiles":[],"durationMs":3}`),
	})
	srv.push(Response{Event: EventScanError, ID: "s1", Message: "disk gone"})

	ev := <-events
	assert.Equal(t, engine.EventProgress, ev.Kind)
	assert.Equal(t, "s1", ev.SessionID)
	require.NotNil(t, ev.Summary)
	assert.Equal(t, int64(512), ev.Summary.TotalBytes)

	ev = <-events
	assert.Equal(t, engine.EventError, ev.Kind)
	assert.Equal(t, "disk gone", ev.Message)
}

func TestClientScanRequestCarriesSessionID(t *testing.T) {
	reqs := make(chan Request, 8)
	srv := newLineServer(t, func(req Request) []Response {
		reqs <- req
		return nil
	})

	c, err := Dial(srv.listener.Addr().String(), "", nil, nil)
	require.NoError(t, err)
	defer c.Close()

	require.NoError(t, c.Start("session-7", "/data", types.DefaultOptions()))
	require.NoError(t, c.Cancel("session-7"))

	req := <-reqs
	assert.Equal(t, ActionScan, req.Action)
	assert.Equal(t, "session-7", req.ID)
	require.NotNil(t, req.Path)
	assert.Equal(t, "/data", *req.Path)

	req = <-reqs
	assert.Equal(t, ActionCancel, req.Action)
	assert.Equal(t, "session-7", req.ID)
}

func TestClientDisconnectFailsPendingAndReportsStatus(t *testing.T) {
	srv := newLineServer(t, nil)

	status := make(chan bool, 4)
	c, err := Dial(srv.listener.Addr().String(), "", nil, func(connected bool, err error) {
		status <- connected
	})
	require.NoError(t, err)
	defer c.Close()
	srv.waitConn(t)

	assert.True(t, <-status)

	// An in-flight request dies with the connection.
	errs := make(chan error, 1)
	go func() { errs <- c.Ping() }()
	require.Eventually(t, func() bool { return c.Correlator().PendingCount() == 1 },
		time.Second, 5*time.Millisecond)

	srv.conn.Close()

	select {
	case connected := <-status:
		assert.False(t, connected)
	case <-time.After(2 * time.Second):
		t.Fatal("status callback never reported the disconnect")
	}
	select {
	case err := <-errs:
		assert.Error(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("pending ping was never failed")
	}

	// Sends on the dead connection fail fast.
	assert.Error(t, c.Ping())
}
