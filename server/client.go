// Copyright 2026 The Galactica Authors
// SPDX-License-Identifier: Apache-2.0

package server

import (
	"io"
	"log/slog"

	"github.com/LiterallyKirby/Galactica/compositor"
	"github.com/LiterallyKirby/Galactica/protocol"
	"github.com/LiterallyKirby/Galactica/security"
	"github.com/LiterallyKirby/Galactica/shm"
)

// request is one decoded client message, forwarded from a reader
// goroutine to the dispatch loop. A non-nil err means the connection
// is gone and the client must be torn down; msg is meaningless then.
type request struct {
	client *client
	msg    protocol.Message
	fd     int // claimed descriptor, -1 when the message carries none
	err    error
}

// bufferEntry ties a buffer to the pool object it was carved from, so
// destroying the pool can destroy its buffers.
type bufferEntry struct {
	buffer *shm.Buffer
	poolID uint32
}

// client is the per-connection state: the wire connection, the peer's
// verified credentials, and the object tables mapping client-allocated
// IDs to server objects. Only the dispatch goroutine touches the
// tables.
type client struct {
	conn  *protocol.Conn
	creds security.Credentials

	pools    map[uint32]*shm.Pool
	buffers  map[uint32]*bufferEntry
	surfaces map[uint32]*compositor.Surface
	regions  map[uint32]*compositor.Region

	logger *slog.Logger
	closed bool
}

func newClient(conn *protocol.Conn, creds security.Credentials, logger *slog.Logger) *client {
	return &client{
		conn:     conn,
		creds:    creds,
		pools:    make(map[uint32]*shm.Pool),
		buffers:  make(map[uint32]*bufferEntry),
		surfaces: make(map[uint32]*compositor.Surface),
		regions:  make(map[uint32]*compositor.Region),
		logger:   logger.With("pid", creds.PID),
	}
}

// knownID reports whether the client already uses the object ID for
// anything.
func (c *client) knownID(id uint32) bool {
	if _, ok := c.pools[id]; ok {
		return true
	}
	if _, ok := c.buffers[id]; ok {
		return true
	}
	if _, ok := c.surfaces[id]; ok {
		return true
	}
	_, ok := c.regions[id]
	return ok
}

// checkNewID validates a client-allocated object ID.
func (c *client) checkNewID(id uint32) *protocol.Error {
	if id < protocol.MinClientID {
		return protocol.Errorf(protocol.ErrInvalidObject, id, "id %d is reserved", id)
	}
	if c.knownID(id) {
		return protocol.Errorf(protocol.ErrInvalidObject, id, "id %d already in use", id)
	}
	return nil
}

// readLoop decodes messages and forwards them to the dispatch loop.
// For create_pool the carried descriptor is claimed here so the fd
// queue stays aligned with the request stream. Runs until the
// connection fails, then delivers the error and exits.
func (c *client) readLoop(requests chan<- request) {
	for {
		msg, err := c.conn.ReadMessage()
		if err != nil {
			if err != io.EOF {
				c.logger.Debug("connection read failed", "error", err)
			}
			requests <- request{client: c, err: err}
			return
		}

		fd := -1
		if msg.Object == protocol.ObjectShm && msg.Opcode == protocol.ShmCreatePool {
			if f, err := c.conn.TakeFD(); err == nil {
				fd = f
			}
		}
		requests <- request{client: c, msg: msg, fd: fd}
	}
}

// sendEvent writes an event to the client. Write failures are logged
// only; the reader goroutine will notice the dead connection and
// trigger teardown.
func (c *client) sendEvent(m protocol.Message) {
	if c.closed {
		return
	}
	if err := c.conn.WriteMessage(m); err != nil {
		c.logger.Debug("event write failed", "object", m.Object, "opcode", m.Opcode, "error", err)
	}
}

// sendError reports a protocol violation via display.error.
func (c *client) sendError(perr *protocol.Error) {
	var enc protocol.ArgEncoder
	enc.PutUint32(perr.Object)
	enc.PutUint32(uint32(perr.Code))
	enc.PutString(perr.Message)
	c.sendEvent(protocol.Message{
		Object:  protocol.ObjectDisplay,
		Opcode:  protocol.DisplayError,
		Payload: enc.Bytes(),
	})
}

// sendFormats advertises the supported pixel formats, sent once at
// connection setup.
func (c *client) sendFormats() {
	for _, format := range shm.SupportedFormats {
		var enc protocol.ArgEncoder
		enc.PutUint32(uint32(format))
		c.sendEvent(protocol.Message{
			Object:  protocol.ObjectShm,
			Opcode:  protocol.ShmFormat,
			Payload: enc.Bytes(),
		})
	}
}
