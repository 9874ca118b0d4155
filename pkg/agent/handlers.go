package agent

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"time"

	"github.com/pureportal/voxara/pkg/remote"
	"github.com/pureportal/voxara/pkg/voxara/engine"
	"github.com/pureportal/voxara/pkg/voxara/logging"
	"github.com/pureportal/voxara/pkg/voxara/types"
)

// MaxReadBytes caps the size of a file served over the read action.
const MaxReadBytes = 5 * 1024 * 1024

// authDelay slows down token guessing.
var authDelay = 2 * time.Second

// handle routes one authenticated request to its handler.
func (s *Server) handle(c *client, req remote.Request) {
	if s.cfg.Token != "" && req.Token != s.cfg.Token {
		logging.Get("agent").Warn("rejected request with bad token",
			"peer", c.conn.RemoteAddr(), "action", req.Action)
		time.Sleep(authDelay)
		s.sendTo(c, remote.Response{Event: remote.EventError, ID: req.ID, Message: "unauthorized"})
		return
	}

	switch req.Action {
	case remote.ActionPing:
		s.sendTo(c, remote.Response{Event: remote.EventPong, ID: req.ID})
	case remote.ActionList:
		s.handleList(c, req)
	case remote.ActionDisk:
		s.handleDisk(c, req)
	case remote.ActionRead:
		s.handleRead(c, req)
	case remote.ActionScan:
		s.handleScan(c, req)
	case remote.ActionCancel:
		s.handleCancel(c, req)
	case remote.ActionShutdown:
		s.handleShutdown(c, req)
	default:
		s.sendTo(c, remote.Response{
			Event:   remote.EventError,
			ID:      req.ID,
			Message: fmt.Sprintf("unknown action: %s", req.Action),
		})
	}
}

// handleList serves a directory listing: directories only, sorted
// case-insensitively. A nil path asks for the filesystem roots.
func (s *Server) handleList(c *client, req remote.Request) {
	if req.Path == nil {
		s.sendData(c, remote.EventListComplete, req.ID, remote.ListData{
			Entries: []remote.ListEntry{{Name: "/", Path: "/", IsDir: true}},
			OS:      osFlavor(),
		})
		return
	}

	dir := *req.Path
	entries, err := os.ReadDir(dir)
	if err != nil {
		s.sendTo(c, remote.Response{Event: remote.EventListError, ID: req.ID, Message: err.Error()})
		return
	}

	listed := make([]remote.ListEntry, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		listed = append(listed, remote.ListEntry{
			Name:  entry.Name(),
			Path:  filepath.Join(dir, entry.Name()),
			IsDir: true,
		})
	}
	sort.Slice(listed, func(i, j int) bool {
		return strings.ToLower(listed[i].Name) < strings.ToLower(listed[j].Name)
	})

	s.sendData(c, remote.EventListComplete, req.ID, remote.ListData{
		Path:    req.Path,
		Entries: listed,
		OS:      osFlavor(),
	})
}

func (s *Server) handleDisk(c *client, req remote.Request) {
	if req.Path == nil {
		s.sendTo(c, remote.Response{Event: remote.EventDiskError, ID: req.ID, Message: "path required"})
		return
	}

	usage, err := engine.DiskUsage(*req.Path)
	if err != nil {
		s.sendTo(c, remote.Response{Event: remote.EventDiskError, ID: req.ID, Message: err.Error()})
		return
	}
	s.sendData(c, remote.EventDiskInfo, req.ID, usage)
}

// handleRead serves small files base64-encoded; anything over the cap
// is refused rather than truncated.
func (s *Server) handleRead(c *client, req remote.Request) {
	if req.Path == nil {
		s.sendTo(c, remote.Response{Event: remote.EventError, ID: req.ID, Message: "path required"})
		return
	}

	path := *req.Path
	info, err := os.Stat(path)
	if err != nil {
		s.sendTo(c, remote.Response{Event: remote.EventError, ID: req.ID, Message: err.Error()})
		return
	}
	if info.IsDir() {
		s.sendTo(c, remote.Response{Event: remote.EventError, ID: req.ID, Message: "path is a directory"})
		return
	}
	if info.Size() > MaxReadBytes {
		s.sendTo(c, remote.Response{
			Event: remote.EventError,
			ID:    req.ID,
			Message: fmt.Sprintf("file too large: %s exceeds %s", types.FormatSize(info.Size()),
				types.FormatSize(MaxReadBytes)),
		})
		return
	}

	content, err := os.ReadFile(path)
	if err != nil {
		s.sendTo(c, remote.Response{Event: remote.EventError, ID: req.ID, Message: err.Error()})
		return
	}
	s.sendData(c, remote.EventReadComplete, req.ID, remote.ReadData{
		Path:    path,
		Content: base64.StdEncoding.EncodeToString(content),
	})
}

// handleScan starts the single scan. The request id doubles as the scan
// id; every scan event echoes it so clients can correlate the stream.
func (s *Server) handleScan(c *client, req remote.Request) {
	if req.Path == nil {
		s.sendTo(c, remote.Response{Event: remote.EventScanError, ID: req.ID, Message: "path required"})
		return
	}
	path := *req.Path
	if info, err := os.Stat(path); err != nil || !info.IsDir() {
		s.sendTo(c, remote.Response{Event: remote.EventScanError, ID: req.ID,
			Message: fmt.Sprintf("path not found: %s", path)})
		return
	}

	opts := types.DefaultOptions()
	if req.Options != nil {
		opts = req.Options.Normalize()
	}

	s.mu.Lock()
	if s.scan != nil {
		s.mu.Unlock()
		s.sendTo(c, remote.Response{Event: remote.EventScanError, ID: req.ID, Message: "scan-in-progress"})
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.scan = &activeScan{id: req.ID, cancel: cancel}
	s.mu.Unlock()

	s.sendTo(c, remote.Response{Event: remote.EventScanStarted, ID: req.ID})
	logging.Get("agent").Info("scan started", "id", req.ID, "path", path)

	go func() {
		defer func() {
			cancel()
			s.mu.Lock()
			if s.scan != nil && s.scan.id == req.ID {
				s.scan = nil
			}
			s.mu.Unlock()
		}()
		s.eng.Scan(ctx, req.ID, path, opts, s.broadcastScanEvent)
	}()
}

func (s *Server) handleCancel(c *client, req remote.Request) {
	s.mu.Lock()
	scan := s.scan
	s.mu.Unlock()

	if scan == nil {
		s.sendTo(c, remote.Response{Event: remote.EventNoActiveScan, ID: req.ID})
		return
	}
	scan.cancel()
	s.sendTo(c, remote.Response{Event: remote.EventCancelRequested, ID: req.ID})
}

// handleShutdown stops the agent process. Only a headless agent honors
// it; an embedded one reports the refusal.
func (s *Server) handleShutdown(c *client, req remote.Request) {
	if !s.cfg.Headless {
		s.sendTo(c, remote.Response{Event: remote.EventError, ID: req.ID,
			Message: "shutdown not permitted"})
		return
	}

	logging.Get("agent").Info("shutdown requested", "peer", c.conn.RemoteAddr())
	s.sendTo(c, remote.Response{Event: remote.EventShutdown, ID: req.ID})
	go func() {
		// Give the ack a moment to flush before the sockets go away.
		time.Sleep(100 * time.Millisecond)
		s.Close()
		if s.onShutdown != nil {
			s.onShutdown()
		}
	}()
}

// broadcastScanEvent fans one engine event out to every client as a
// wire response carrying the scan id.
func (s *Server) broadcastScanEvent(ev engine.Event) {
	switch ev.Kind {
	case engine.EventProgress, engine.EventComplete:
		event := remote.EventScanProgress
		if ev.Kind == engine.EventComplete {
			event = remote.EventScanComplete
		}
		data, err := json.Marshal(ev.Summary)
		if err != nil {
			logging.Get("agent").Error("encode scan summary", "id", ev.SessionID, "error", err)
			return
		}
		s.broadcast(remote.Response{Event: event, ID: ev.SessionID, Data: data})

	case engine.EventError:
		s.broadcast(remote.Response{Event: remote.EventScanError, ID: ev.SessionID, Message: ev.Message})

	case engine.EventCancelled:
		s.broadcast(remote.Response{Event: remote.EventScanCancelled, ID: ev.SessionID})
	}
}

// sendData marshals a payload into a response's data field.
func (s *Server) sendData(c *client, event, id string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		logging.Get("agent").Error("encode payload", "event", event, "error", err)
		s.sendTo(c, remote.Response{Event: remote.EventError, ID: id, Message: "internal error"})
		return
	}
	s.sendTo(c, remote.Response{Event: event, ID: id, Data: data})
}

func osFlavor() string {
	if runtime.GOOS == "windows" {
		return "windows"
	}
	return "unix"
}
