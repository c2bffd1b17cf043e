// Copyright 2026 The Galactica Authors
// SPDX-License-Identifier: Apache-2.0

package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"sync"
	"time"

	"github.com/LiterallyKirby/Galactica/lib/codec"
)

// ActionFunc processes one control request. The raw parameter is the
// full CBOR request including the "action" field; handlers decode
// their own fields from it. A non-nil return value is marshaled into
// the response's "data" field.
type ActionFunc func(ctx context.Context, raw []byte) (any, error)

// ControlResponse is the wire envelope for control socket responses.
type ControlResponse struct {
	OK    bool             `cbor:"ok"`
	Error string           `cbor:"error,omitempty"`
	Data  codec.RawMessage `cbor:"data,omitempty"`
}

// Control serves the management protocol on a second Unix socket: one
// CBOR request per connection, one CBOR response back. It never
// touches compositor state directly; every query goes through the
// server's dispatch goroutine.
type Control struct {
	socketPath string
	handlers   map[string]ActionFunc
	logger     *slog.Logger

	// active tracks in-flight handlers so Serve can drain them before
	// returning.
	active sync.WaitGroup
}

// NewControl builds the control server for a display server. shutdown
// is invoked by the "shutdown" action and must cancel the root
// context.
func NewControl(socketPath string, srv *Server, shutdown func(), logger *slog.Logger) *Control {
	c := &Control{
		socketPath: socketPath,
		handlers:   make(map[string]ActionFunc),
		logger:     logger.With("component", "control"),
	}

	c.handle("status", func(ctx context.Context, raw []byte) (any, error) {
		return srv.SnapshotStatus(), nil
	})

	c.handle("capture", func(ctx context.Context, raw []byte) (any, error) {
		var req struct {
			Output string `cbor:"output"`
		}
		if err := codec.Unmarshal(raw, &req); err != nil {
			return nil, fmt.Errorf("invalid capture request: %w", err)
		}
		if req.Output == "" {
			return nil, fmt.Errorf("missing required field: output")
		}
		path, err := srv.CaptureOutput(req.Output)
		if err != nil {
			return nil, err
		}
		return struct {
			Path string `cbor:"path"`
		}{Path: path}, nil
	})

	c.handle("shutdown", func(ctx context.Context, raw []byte) (any, error) {
		shutdown()
		return nil, nil
	})

	return c
}

func (c *Control) handle(action string, handler ActionFunc) {
	if _, exists := c.handlers[action]; exists {
		panic(fmt.Sprintf("server.Control: duplicate handler for action %q", action))
	}
	c.handlers[action] = handler
}

// Serve accepts control connections until ctx is cancelled, then
// drains active handlers. Any stale socket file is removed first.
func (c *Control) Serve(ctx context.Context) error {
	if err := os.Remove(c.socketPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing stale socket %s: %w", c.socketPath, err)
	}
	listener, err := net.Listen("unix", c.socketPath)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", c.socketPath, err)
	}
	defer func() {
		listener.Close()
		os.Remove(c.socketPath)
	}()

	go func() {
		<-ctx.Done()
		listener.Close()
	}()

	c.logger.Info("control socket listening", "path", c.socketPath)

	for {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				break
			}
			c.logger.Error("accept failed", "error", err)
			continue
		}
		c.active.Add(1)
		go func() {
			defer c.active.Done()
			c.handleConnection(ctx, conn)
		}()
	}

	c.active.Wait()
	return nil
}

// controlReadTimeout bounds how long a client may take to send its
// request after connecting.
const controlReadTimeout = 30 * time.Second

const controlWriteTimeout = 10 * time.Second

// maxControlRequestSize bounds a single CBOR request.
const maxControlRequestSize = 64 * 1024

// handleConnection processes one request-response cycle.
func (c *Control) handleConnection(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(controlReadTimeout))

	// CBOR is self-delimiting, so one Decode reads exactly one
	// request. LimitReader keeps a hostile client from exhausting
	// memory.
	var raw codec.RawMessage
	if err := codec.NewDecoder(io.LimitReader(conn, maxControlRequestSize)).Decode(&raw); err != nil {
		if errors.Is(err, io.EOF) {
			return
		}
		c.writeError(conn, fmt.Sprintf("invalid request: %v", err))
		return
	}

	var header struct {
		Action string `cbor:"action"`
	}
	if err := codec.Unmarshal(raw, &header); err != nil {
		c.writeError(conn, fmt.Sprintf("invalid request: %v", err))
		return
	}
	if header.Action == "" {
		c.writeError(conn, "missing required field: action")
		return
	}

	handler, exists := c.handlers[header.Action]
	if !exists {
		c.writeError(conn, fmt.Sprintf("unknown action %q", header.Action))
		return
	}

	result, err := handler(ctx, []byte(raw))
	if err != nil {
		c.logger.Debug("action failed", "action", header.Action, "error", err)
		c.writeError(conn, err.Error())
		return
	}
	c.writeSuccess(conn, result)
}

func (c *Control) writeError(conn net.Conn, message string) {
	conn.SetWriteDeadline(time.Now().Add(controlWriteTimeout))
	if err := codec.NewEncoder(conn).Encode(ControlResponse{OK: false, Error: message}); err != nil {
		c.logger.Debug("failed to write error response", "error", err)
	}
}

func (c *Control) writeSuccess(conn net.Conn, result any) {
	conn.SetWriteDeadline(time.Now().Add(controlWriteTimeout))
	response := ControlResponse{OK: true}
	if result != nil {
		data, err := codec.Marshal(result)
		if err != nil {
			c.writeError(conn, fmt.Sprintf("internal: marshaling response: %v", err))
			return
		}
		response.Data = data
	}
	if err := codec.NewEncoder(conn).Encode(response); err != nil {
		c.logger.Debug("failed to write success response", "error", err)
	}
}
