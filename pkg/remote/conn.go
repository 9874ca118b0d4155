package remote

import (
	"bufio"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/pureportal/voxara/pkg/voxara/engine"
	"github.com/pureportal/voxara/pkg/voxara/logging"
	"github.com/pureportal/voxara/pkg/voxara/types"
)

// Connection timings.
const (
	DialTimeout  = 5 * time.Second
	PingInterval = 15 * time.Second
)

// ErrClosed is returned when sending on a closed connection.
var ErrClosed = errors.New("remote: connection closed")

// StatusFunc is notified when the connection's health changes:
// connected=true after a successful dial, connected=false with the
// cause once the connection is lost.
type StatusFunc func(connected bool, err error)

// Client is one live connection to a voxara agent. It owns the socket,
// the background read loop and the ping keepalive, and exposes the
// request correlator and the remote directory tree cache built on top
// of it. Client implements session.Runner for remote scans.
type Client struct {
	addr  string
	token string

	emit   engine.Emitter
	status StatusFunc

	corr *Correlator
	tree *TreeCache

	writeMu sync.Mutex
	conn    net.Conn

	closeOnce sync.Once
	closed    chan struct{}
}

// Dial connects to an agent and starts the read and keepalive loops.
// Scan-scoped events are delivered to emit; connection health changes
// to status. Both may be nil.
func Dial(addr, token string, emit engine.Emitter, status StatusFunc) (*Client, error) {
	conn, err := net.DialTimeout("tcp", addr, DialTimeout)
	if err != nil {
		return nil, fmt.Errorf("dial agent %s: %w", addr, err)
	}

	c := &Client{
		addr:   addr,
		token:  token,
		emit:   emit,
		status: status,
		conn:   conn,
		closed: make(chan struct{}),
	}
	c.corr = NewCorrelator(c.write)
	c.tree = NewTreeCache(c.corr)

	go c.readLoop()
	go c.pingLoop()

	if c.status != nil {
		c.status(true, nil)
	}
	logging.Get("remote").Info("connected to agent", "addr", addr)
	return c, nil
}

// Tree returns the remote directory tree cache for this connection.
func (c *Client) Tree() *TreeCache { return c.tree }

// Correlator returns the request correlator for this connection.
func (c *Client) Correlator() *Correlator { return c.corr }

// write marshals one request and sends it as a single newline-terminated
// line, injecting the shared token. It is the only writer on the socket.
func (c *Client) write(req Request) error {
	select {
	case <-c.closed:
		return ErrClosed
	default:
	}

	req.Token = c.token
	line, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("encode %s request: %w", req.Action, err)
	}
	line = append(line, '\n')

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if _, err := c.conn.Write(line); err != nil {
		return fmt.Errorf("send %s request: %w", req.Action, err)
	}
	return nil
}

// readLoop decodes agent lines and routes them: scan-scoped events to
// the session emitter, correlated responses to their callbacks, and
// everything else to the debug log.
func (c *Client) readLoop() {
	log := logging.Get("remote")

	scanner := bufio.NewScanner(c.conn)
	scanner.Buffer(make([]byte, 64*1024), MaxLineBytes)

	for scanner.Scan() {
		var resp Response
		if err := json.Unmarshal(scanner.Bytes(), &resp); err != nil {
			log.Warn("dropping malformed line", "error", err)
			continue
		}

		if ev, ok := resp.SessionEvent(); ok {
			if c.emit != nil {
				c.emit(ev)
			}
			continue
		}
		if c.corr.Dispatch(resp) {
			continue
		}
		// Unsolicited or late: scan-started acks and responses that
		// already timed out land here.
		log.Debug("unmatched event", "event", resp.Event, "id", resp.ID)
	}

	err := scanner.Err()
	if err == nil {
		err = errors.New("agent closed connection")
	}
	c.teardown(err)
}

// pingLoop sends a ping every interval. A ping that fails or times out
// tears the connection down.
func (c *Client) pingLoop() {
	ticker := time.NewTicker(PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.closed:
			return
		case <-ticker.C:
			if err := c.Ping(); err != nil {
				logging.Get("remote").Warn("keepalive failed", "addr", c.addr, "error", err)
				c.teardown(fmt.Errorf("keepalive: %w", err))
				return
			}
		}
	}
}

// teardown closes the socket once and fails every pending request.
func (c *Client) teardown(cause error) {
	c.closeOnce.Do(func() {
		close(c.closed)
		c.conn.Close()
		c.corr.FailAll(cause)
		if c.status != nil {
			c.status(false, cause)
		}
		logging.Get("remote").Info("disconnected from agent", "addr", c.addr, "cause", cause)
	})
}

// Close shuts the connection down.
func (c *Client) Close() error {
	c.teardown(ErrClosed)
	return nil
}

// Start implements session.Runner: the scan request carries the session
// id as its correlation id, so scan events stream back already tagged
// for the session manager. No callback is registered; outcomes arrive
// as scan events.
func (c *Client) Start(sessionID, path string, opts types.ScanOptions) error {
	p := path
	_, err := c.corr.Send(Request{
		Action:  ActionScan,
		ID:      sessionID,
		Path:    &p,
		Options: &opts,
	}, nil)
	return err
}

// Cancel implements session.Runner.
func (c *Client) Cancel(sessionID string) error {
	_, err := c.corr.Send(Request{Action: ActionCancel, ID: sessionID}, nil)
	return err
}

// call sends one request and blocks for its response or failure.
func (c *Client) call(req Request) (Response, error) {
	type outcome struct {
		resp Response
		err  error
	}
	done := make(chan outcome, 1)

	if _, err := c.corr.Send(req, func(resp Response, err error) {
		done <- outcome{resp, err}
	}); err != nil {
		return Response{}, err
	}

	out := <-done
	return out.resp, out.err
}

// Ping checks agent liveness.
func (c *Client) Ping() error {
	_, err := c.call(Request{Action: ActionPing})
	return err
}

// List fetches the directory listing for path; an empty path lists the
// filesystem roots.
func (c *Client) List(path string) (ListData, error) {
	req := Request{Action: ActionList}
	if path != "" {
		p := path
		req.Path = &p
	}

	resp, err := c.call(req)
	if err != nil {
		return ListData{}, err
	}
	var data ListData
	if err := json.Unmarshal(resp.Data, &data); err != nil {
		return ListData{}, fmt.Errorf("decode list response: %w", err)
	}
	return data, nil
}

// Disk fetches capacity and free space for the volume containing path.
func (c *Client) Disk(path string) (types.DiskUsage, error) {
	p := path
	resp, err := c.call(Request{Action: ActionDisk, Path: &p})
	if err != nil {
		return types.DiskUsage{}, err
	}
	var usage types.DiskUsage
	if err := json.Unmarshal(resp.Data, &usage); err != nil {
		return types.DiskUsage{}, fmt.Errorf("decode disk response: %w", err)
	}
	return usage, nil
}

// Read fetches and decodes the contents of a remote file.
func (c *Client) Read(path string) ([]byte, error) {
	p := path
	resp, err := c.call(Request{Action: ActionRead, Path: &p})
	if err != nil {
		return nil, err
	}
	var data ReadData
	if err := json.Unmarshal(resp.Data, &data); err != nil {
		return nil, fmt.Errorf("decode read response: %w", err)
	}
	content, err := base64.StdEncoding.DecodeString(data.Content)
	if err != nil {
		return nil, fmt.Errorf("decode file content: %w", err)
	}
	return content, nil
}

// Shutdown asks the agent process to exit. The agent only honors this
// when running headless.
func (c *Client) Shutdown() error {
	_, err := c.corr.Send(Request{Action: ActionShutdown}, nil)
	return err
}
