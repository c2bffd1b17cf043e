// Copyright 2026 The Galactica Authors
// SPDX-License-Identifier: Apache-2.0

package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"

	"github.com/LiterallyKirby/Galactica/compositor"
	"github.com/LiterallyKirby/Galactica/config"
	"github.com/LiterallyKirby/Galactica/output"
	"github.com/LiterallyKirby/Galactica/protocol"
	"github.com/LiterallyKirby/Galactica/render"
	"github.com/LiterallyKirby/Galactica/security"
)

// Server owns the display socket and all compositor state. All state
// mutation happens on the dispatch goroutine inside Serve; other
// goroutines reach the state only through the ops channel.
type Server struct {
	cfg      *config.Config
	sec      *security.Context
	registry *compositor.Registry
	outputs  []*output.Output
	logger   *slog.Logger

	requests chan request
	ops      chan func()
	clients  map[*client]struct{}
	done     chan struct{}
}

// New assembles a server from configuration. The security context and
// outputs are created here; Serve starts the listener.
func New(cfg *config.Config, logger *slog.Logger) (*Server, error) {
	sec, err := security.NewContext(logger)
	if err != nil {
		return nil, fmt.Errorf("creating security context: %w", err)
	}

	renderer := render.New(logger)
	outputs := make([]*output.Output, 0, len(cfg.Outputs))
	for _, oc := range cfg.Outputs {
		// Each output captures into its own directory so frame
		// numbering and duplicate detection stay per-output.
		var capture *output.Capture
		if cfg.Capture.Enabled {
			capture, err = output.NewCapture(
				filepath.Join(cfg.Capture.Dir, oc.Name),
				cfg.Capture.Every, cfg.Capture.Compress, logger,
			)
			if err != nil {
				sec.Close()
				return nil, fmt.Errorf("creating frame capture for %s: %w", oc.Name, err)
			}
		}
		outputs = append(outputs, output.New(oc.Name, oc.Width, oc.Height, renderer, capture, logger))
	}

	return &Server{
		cfg:      cfg,
		sec:      sec,
		registry: compositor.NewRegistry(sec, logger),
		outputs:  outputs,
		logger:   logger.With("component", "server"),
		requests: make(chan request, 64),
		ops:      make(chan func()),
		clients:  make(map[*client]struct{}),
		done:     make(chan struct{}),
	}, nil
}

// SocketPath returns the display socket's filesystem path.
func (s *Server) SocketPath() string {
	return filepath.Join(config.RuntimeDir(), s.cfg.Display.Socket)
}

// Serve listens on the display socket and runs the dispatch loop until
// ctx is cancelled. On return every client is torn down, outputs are
// dropped, and the security context is wiped.
func (s *Server) Serve(ctx context.Context) error {
	socketPath := s.SocketPath()
	if err := os.Remove(socketPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing stale socket %s: %w", socketPath, err)
	}
	listener, err := net.ListenUnix("unix", &net.UnixAddr{Name: socketPath, Net: "unix"})
	if err != nil {
		return fmt.Errorf("listening on %s: %w", socketPath, err)
	}
	defer func() {
		listener.Close()
		os.Remove(socketPath)
	}()

	go func() {
		<-ctx.Done()
		listener.Close()
	}()

	s.logger.Info("display server listening",
		"socket", socketPath,
		"session", s.sec.SessionFingerprint(),
		"outputs", len(s.outputs),
	)

	go s.acceptLoop(ctx, listener)

	// Dispatch loop: the one goroutine that owns compositor state.
	for {
		select {
		case <-ctx.Done():
			s.shutdown()
			close(s.done)
			return nil
		case op := <-s.ops:
			op()
		case req := <-s.requests:
			s.handleRequest(req)
		}
	}
}

func (s *Server) acceptLoop(ctx context.Context, listener *net.UnixListener) {
	for {
		uc, err := listener.AcceptUnix()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return
			}
			s.logger.Error("accept failed", "error", err)
			continue
		}
		s.startClient(uc)
	}
}

// startClient authenticates the peer and hands the connection to the
// dispatch loop. Rejected peers are disconnected immediately.
func (s *Server) startClient(uc *net.UnixConn) {
	creds, err := security.PeerCredentials(uc)
	if err != nil {
		s.logger.Warn("rejecting connection without credentials", "error", err)
		uc.Close()
		return
	}

	conn := protocol.NewConn(uc)
	c := newClient(conn, creds, s.logger)

	s.runOp(func() {
		if _, err := s.sec.ValidateClient(creds); err != nil {
			s.logger.Warn("rejecting client", "pid", creds.PID, "error", err)
			conn.Close()
			return
		}
		s.clients[c] = struct{}{}
		c.sendFormats()
		go c.readLoop(s.requests)
	})
}

// runOp executes fn on the dispatch goroutine and waits for it. After
// the dispatch loop has exited, runOp returns without running fn so
// late control-socket queries cannot hang shutdown.
func (s *Server) runOp(fn func()) {
	finished := make(chan struct{})
	wrapped := func() {
		fn()
		close(finished)
	}
	select {
	case s.ops <- wrapped:
		<-finished
	case <-s.done:
	}
}

// handleRequest applies one forwarded request. Protocol violations get
// a display.error event and terminate the connection.
func (s *Server) handleRequest(req request) {
	c := req.client
	if _, ok := s.clients[c]; !ok {
		// Already torn down; release a descriptor that raced in.
		if req.fd >= 0 {
			unix.Close(req.fd)
		}
		return
	}
	if req.err != nil {
		s.teardownClient(c)
		return
	}
	if perr := s.dispatch(c, req.msg, req.fd); perr != nil {
		c.logger.Warn("protocol error",
			"object", perr.Object,
			"code", perr.Code.String(),
			"message", perr.Message,
		)
		c.sendError(perr)
		s.teardownClient(c)
	}
}

// teardownClient destroys everything the client owns: surfaces leave
// the paint order, buffers detach, pools unmap, and the security entry
// is wiped. The connection is closed last.
func (s *Server) teardownClient(c *client) {
	if _, ok := s.clients[c]; !ok {
		return
	}
	delete(s.clients, c)
	c.closed = true

	s.registry.DestroyClientSurfaces(c.creds.PID)
	for id, pool := range c.pools {
		s.destroyPool(c, id, pool)
	}
	c.surfaces = nil
	c.regions = nil
	s.sec.ReleaseClient(c.creds.PID)
	c.conn.Close()

	// Repaint without the departed client's surfaces.
	surfaces := s.registry.Surfaces()
	for _, out := range s.outputs {
		out.MarkAllDamage()
		out.Repaint(surfaces)
	}
	c.logger.Info("client disconnected", "remaining", len(s.clients))
}

// shutdown tears down all clients and wipes the security context.
func (s *Server) shutdown() {
	s.logger.Info("shutting down", "clients", len(s.clients))
	for c := range s.clients {
		s.teardownClient(c)
	}
	if err := s.sec.Close(); err != nil {
		s.logger.Warn("security context close failed", "error", err)
	}
}

// Status is a point-in-time snapshot for the control socket.
type Status struct {
	Clients  int            `cbor:"clients"`
	Surfaces int            `cbor:"surfaces"`
	Session  string         `cbor:"session"`
	Outputs  []OutputStatus `cbor:"outputs"`
}

// OutputStatus describes one output in a status snapshot.
type OutputStatus struct {
	Name   string `cbor:"name"`
	Width  int32  `cbor:"width"`
	Height int32  `cbor:"height"`
	Frames uint64 `cbor:"frames"`
}

// SnapshotStatus collects a status snapshot on the dispatch goroutine.
func (s *Server) SnapshotStatus() Status {
	var st Status
	s.runOp(func() {
		st = Status{
			Clients:  len(s.clients),
			Surfaces: s.registry.Len(),
			Session:  s.sec.SessionFingerprint(),
		}
		for _, out := range s.outputs {
			w, h := out.Size()
			st.Outputs = append(st.Outputs, OutputStatus{
				Name:   out.Name(),
				Width:  w,
				Height: h,
				Frames: out.FrameCount(),
			})
		}
	})
	return st
}

// CaptureOutput forces a frame capture for the named output and
// returns the written path. An empty path means the frame matched the
// previous capture and was skipped.
func (s *Server) CaptureOutput(name string) (string, error) {
	var (
		path string
		err  error
	)
	s.runOp(func() {
		for _, out := range s.outputs {
			if out.Name() == name {
				path, err = out.ForceCapture()
				return
			}
		}
		err = fmt.Errorf("unknown output %q", name)
	})
	return path, err
}
