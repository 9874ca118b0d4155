// Package agent implements the voxara remote agent: a TCP server
// speaking newline-delimited JSON, serving directory listings, disk
// info, file reads, and at most one scan at a time to any number of
// connected clients. Scan events are broadcast to every client so a
// reconnecting viewer picks the stream back up.
package agent

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"sync"

	"github.com/pureportal/voxara/pkg/remote"
	"github.com/pureportal/voxara/pkg/voxara/engine"
	"github.com/pureportal/voxara/pkg/voxara/logging"
)

// DefaultMaxConns caps simultaneous client connections.
const DefaultMaxConns = 50

// Config configures a Server.
type Config struct {
	// Bind is the TCP listen address, e.g. "127.0.0.1:7474".
	Bind string

	// Token, when non-empty, must accompany every request.
	Token string

	// MaxConns caps simultaneous clients; zero selects the default.
	MaxConns int

	// Headless permits the shutdown action. A desktop-embedded agent
	// refuses remote shutdown.
	Headless bool

	// Exclude holds glob patterns pruned from every scan.
	Exclude []string
}

// client is one connected peer. All writes go through its out channel
// so the writer goroutine is the only one touching the socket.
type client struct {
	conn net.Conn
	out  chan []byte
	done chan struct{}
}

// Server accepts connections and serves the agent protocol.
type Server struct {
	cfg      Config
	listener net.Listener
	eng      *engine.Local

	mu      sync.Mutex
	clients map[*client]struct{}
	scan    *activeScan

	closeOnce  sync.Once
	closed     chan struct{}
	onShutdown func()
}

// activeScan tracks the single scan the agent will run at a time.
type activeScan struct {
	id     string
	cancel context.CancelFunc
}

// NewServer binds the listen address and prepares the server; Serve
// starts accepting. onShutdown is invoked when a headless agent honors
// a shutdown request; nil means shutdown only closes the server.
func NewServer(cfg Config, onShutdown func()) (*Server, error) {
	if cfg.MaxConns <= 0 {
		cfg.MaxConns = DefaultMaxConns
	}

	listener, err := net.Listen("tcp", cfg.Bind)
	if err != nil {
		return nil, fmt.Errorf("bind %s: %w", cfg.Bind, err)
	}

	eng, err := engine.NewLocal(cfg.Exclude)
	if err != nil {
		listener.Close()
		return nil, err
	}

	return &Server{
		cfg:        cfg,
		listener:   listener,
		eng:        eng,
		clients:    make(map[*client]struct{}),
		closed:     make(chan struct{}),
		onShutdown: onShutdown,
	}, nil
}

// Addr returns the bound listen address.
func (s *Server) Addr() string {
	return s.listener.Addr().String()
}

// Serve accepts connections until the server is closed. Connections
// beyond the cap are turned away immediately.
func (s *Server) Serve() error {
	log := logging.Get("agent")
	log.Info("agent listening", "addr", s.Addr(), "auth", s.cfg.Token != "")

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.closed:
				return nil
			default:
				return fmt.Errorf("accept: %w", err)
			}
		}

		s.mu.Lock()
		if len(s.clients) >= s.cfg.MaxConns {
			s.mu.Unlock()
			log.Warn("connection limit reached, rejecting", "peer", conn.RemoteAddr())
			conn.Close()
			continue
		}
		c := &client{
			conn: conn,
			out:  make(chan []byte, 64),
			done: make(chan struct{}),
		}
		s.clients[c] = struct{}{}
		s.mu.Unlock()

		log.Debug("client connected", "peer", conn.RemoteAddr())
		go s.writeLoop(c)
		go s.readLoop(c)
	}
}

// Close stops accepting, disconnects every client, and cancels any
// running scan.
func (s *Server) Close() error {
	s.closeOnce.Do(func() {
		close(s.closed)
		s.listener.Close()

		s.mu.Lock()
		if s.scan != nil {
			s.scan.cancel()
		}
		clients := make([]*client, 0, len(s.clients))
		for c := range s.clients {
			clients = append(clients, c)
		}
		s.mu.Unlock()

		for _, c := range clients {
			c.conn.Close()
		}
	})
	return nil
}

// readLoop decodes request lines from one client and dispatches them.
func (s *Server) readLoop(c *client) {
	defer s.dropClient(c)
	log := logging.Get("agent")

	scanner := bufio.NewScanner(c.conn)
	scanner.Buffer(make([]byte, 64*1024), remote.MaxLineBytes)

	for scanner.Scan() {
		var req remote.Request
		if err := json.Unmarshal(scanner.Bytes(), &req); err != nil {
			log.Warn("malformed request line", "peer", c.conn.RemoteAddr(), "error", err)
			s.sendTo(c, remote.Response{Event: remote.EventError, Message: "malformed request"})
			continue
		}
		s.handle(c, req)
	}

	if err := scanner.Err(); err != nil && !errors.Is(err, net.ErrClosed) {
		log.Debug("client read ended", "peer", c.conn.RemoteAddr(), "error", err)
	}
}

// writeLoop is the only writer on a client's socket.
func (s *Server) writeLoop(c *client) {
	for {
		select {
		case <-c.done:
			return
		case line := <-c.out:
			if _, err := c.conn.Write(line); err != nil {
				c.conn.Close()
				return
			}
		}
	}
}

// dropClient unregisters a client and releases its writer.
func (s *Server) dropClient(c *client) {
	s.mu.Lock()
	_, ok := s.clients[c]
	delete(s.clients, c)
	s.mu.Unlock()
	if !ok {
		return
	}
	close(c.done)
	c.conn.Close()
	logging.Get("agent").Debug("client disconnected", "peer", c.conn.RemoteAddr())
}

// sendTo queues a response for one client. A client whose queue is full
// is too slow to keep; it gets dropped rather than stalling the agent.
func (s *Server) sendTo(c *client, resp remote.Response) {
	line, err := json.Marshal(resp)
	if err != nil {
		logging.Get("agent").Error("encode response", "event", resp.Event, "error", err)
		return
	}
	line = append(line, '\n')

	select {
	case c.out <- line:
	case <-c.done:
	default:
		logging.Get("agent").Warn("client write queue full, dropping client", "peer", c.conn.RemoteAddr())
		go s.dropClient(c)
	}
}

// broadcast queues a response for every connected client.
func (s *Server) broadcast(resp remote.Response) {
	s.mu.Lock()
	clients := make([]*client, 0, len(s.clients))
	for c := range s.clients {
		clients = append(clients, c)
	}
	s.mu.Unlock()

	for _, c := range clients {
		s.sendTo(c, resp)
	}
}
