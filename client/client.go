// Copyright 2026 The Galactica Authors
// SPDX-License-Identifier: Apache-2.0

// Package client is the Galactica display protocol client library. It
// wraps the wire protocol in typed objects: a Display connection,
// shared-memory Pools the client draws into, Buffers carved from
// pools, and Surfaces the compositor paints.
//
// The library is not goroutine-safe; a client drives its connection
// from one goroutine, matching the protocol's request-ordered design.
package client

import (
	"fmt"
	"net"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"

	"github.com/LiterallyKirby/Galactica/lib/geometry"
	"github.com/LiterallyKirby/Galactica/protocol"
	"github.com/LiterallyKirby/Galactica/shm"
)

// DisplayEnv is the environment variable naming the display socket.
const DisplayEnv = "GALLIUM_DISPLAY"

// DefaultDisplay is the socket name used when DisplayEnv is unset.
const DefaultDisplay = "gallium-0"

// Display is a connection to the display server.
type Display struct {
	conn   *protocol.Conn
	nextID uint32
}

// Connect dials the display named by GALLIUM_DISPLAY (default
// gallium-0) under XDG_RUNTIME_DIR.
func Connect() (*Display, error) {
	name := os.Getenv(DisplayEnv)
	if name == "" {
		name = DefaultDisplay
	}
	dir := os.Getenv("XDG_RUNTIME_DIR")
	if dir == "" {
		dir = "/tmp"
	}
	return ConnectPath(filepath.Join(dir, name))
}

// ConnectPath dials a display socket at an explicit path.
func ConnectPath(path string) (*Display, error) {
	uc, err := net.DialUnix("unix", nil, &net.UnixAddr{Name: path, Net: "unix"})
	if err != nil {
		return nil, fmt.Errorf("connecting to display %s: %w", path, err)
	}
	return &Display{
		conn:   protocol.NewConn(uc),
		nextID: protocol.MinClientID,
	}, nil
}

// Close terminates the connection. Server-side objects are destroyed
// by the server's teardown.
func (d *Display) Close() error {
	return d.conn.Close()
}

func (d *Display) allocID() uint32 {
	id := d.nextID
	d.nextID++
	return id
}

// Event is a server-to-client notification: one of [FormatEvent],
// [ErrorEvent], or [DoneEvent].
type Event any

// FormatEvent advertises a pixel format the server accepts.
type FormatEvent struct {
	Format shm.Format
}

// ErrorEvent reports a fatal protocol error; the server closes the
// connection after sending it.
type ErrorEvent struct {
	Object  uint32
	Code    protocol.ErrorCode
	Message string
}

// DoneEvent completes a frame callback.
type DoneEvent struct {
	Callback uint32
	Serial   uint32
}

// ReadEvent blocks for the next server event. Returns io.EOF when the
// server closed the connection.
func (d *Display) ReadEvent() (Event, error) {
	msg, err := d.conn.ReadMessage()
	if err != nil {
		return nil, err
	}
	dec := protocol.NewArgDecoder(msg.Payload)
	switch {
	case msg.Object == protocol.ObjectShm && msg.Opcode == protocol.ShmFormat:
		ev := FormatEvent{Format: shm.Format(dec.Uint32())}
		return ev, dec.Err()
	case msg.Object == protocol.ObjectDisplay && msg.Opcode == protocol.DisplayError:
		ev := ErrorEvent{
			Object:  dec.Uint32(),
			Code:    protocol.ErrorCode(dec.Uint32()),
			Message: dec.String(),
		}
		return ev, dec.Err()
	case msg.Opcode == protocol.CallbackDone:
		ev := DoneEvent{Callback: msg.Object, Serial: dec.Uint32()}
		return ev, dec.Err()
	}
	return nil, fmt.Errorf("unexpected event: object %d opcode %d", msg.Object, msg.Opcode)
}

// Pool is a client-owned shared memory region. The client draws into
// Data; the server maps the same pages through the descriptor sent at
// creation.
type Pool struct {
	display *Display
	id      uint32
	fd      int
	data    []byte
}

// CreatePool allocates a memfd of the given size, maps it, and
// registers it with the server.
func (d *Display) CreatePool(size int32) (*Pool, error) {
	if size <= 0 {
		return nil, fmt.Errorf("invalid pool size %d", size)
	}
	fd, err := unix.MemfdCreate("gallium-pool", unix.MFD_CLOEXEC)
	if err != nil {
		return nil, fmt.Errorf("creating pool memfd: %w", err)
	}
	if err := unix.Ftruncate(fd, int64(size)); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("sizing pool: %w", err)
	}
	data, err := unix.Mmap(fd, 0, int(size), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("mapping pool: %w", err)
	}

	id := d.allocID()
	var enc protocol.ArgEncoder
	enc.PutUint32(id)
	enc.PutInt32(size)
	msg := protocol.Message{Object: protocol.ObjectShm, Opcode: protocol.ShmCreatePool, Payload: enc.Bytes()}
	if err := d.conn.WriteMessageWithFD(msg, fd); err != nil {
		unix.Munmap(data)
		unix.Close(fd)
		return nil, err
	}
	return &Pool{display: d, id: id, fd: fd, data: data}, nil
}

// Data returns the client-side mapping to draw into.
func (p *Pool) Data() []byte {
	return p.data
}

// Resize grows the pool: the backing file is extended, the local
// mapping replaced, and the server told to remap.
func (p *Pool) Resize(size int32) error {
	if int(size) < len(p.data) {
		return fmt.Errorf("pool shrink from %d to %d not supported", len(p.data), size)
	}
	if err := unix.Ftruncate(p.fd, int64(size)); err != nil {
		return fmt.Errorf("growing pool file: %w", err)
	}
	data, err := unix.Mmap(p.fd, 0, int(size), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return fmt.Errorf("remapping pool: %w", err)
	}
	unix.Munmap(p.data)
	p.data = data

	var enc protocol.ArgEncoder
	enc.PutInt32(size)
	return p.display.conn.WriteMessage(protocol.Message{
		Object: p.id, Opcode: protocol.PoolResize, Payload: enc.Bytes(),
	})
}

// Destroy releases the pool on both sides. Local resources go away
// immediately; the server keeps its mapping alive until any in-flight
// composite pass finishes.
func (p *Pool) Destroy() error {
	err := p.display.conn.WriteMessage(protocol.Message{Object: p.id, Opcode: protocol.PoolDestroy})
	unix.Munmap(p.data)
	unix.Close(p.fd)
	p.data = nil
	p.fd = -1
	return err
}

// Buffer is a rectangular view into a pool, usable for surface
// attachment.
type Buffer struct {
	display *Display
	id      uint32

	// Offset and Stride locate the buffer's pixels in the pool's Data.
	Offset int32
	Stride int32
	Width  int32
	Height int32
}

// CreateBuffer registers a buffer view over the pool.
func (p *Pool) CreateBuffer(offset, width, height, stride int32, format shm.Format) (*Buffer, error) {
	id := p.display.allocID()
	var enc protocol.ArgEncoder
	enc.PutUint32(id)
	enc.PutInt32(offset)
	enc.PutInt32(width)
	enc.PutInt32(height)
	enc.PutInt32(stride)
	enc.PutUint32(uint32(format))
	err := p.display.conn.WriteMessage(protocol.Message{
		Object: p.id, Opcode: protocol.PoolCreateBuffer, Payload: enc.Bytes(),
	})
	if err != nil {
		return nil, err
	}
	return &Buffer{
		display: p.display,
		id:      id,
		Offset:  offset,
		Stride:  stride,
		Width:   width,
		Height:  height,
	}, nil
}

// Destroy releases the buffer. The server detaches it from any
// surface still showing it.
func (b *Buffer) Destroy() error {
	return b.display.conn.WriteMessage(protocol.Message{Object: b.id, Opcode: protocol.BufferDestroy})
}

// Surface is a compositor drawable.
type Surface struct {
	display *Display
	id      uint32
}

// CreateSurface allocates a surface. New surfaces paint above existing
// ones.
func (d *Display) CreateSurface() (*Surface, error) {
	id := d.allocID()
	var enc protocol.ArgEncoder
	enc.PutUint32(id)
	err := d.conn.WriteMessage(protocol.Message{
		Object: protocol.ObjectCompositor, Opcode: protocol.CompositorCreateSurface, Payload: enc.Bytes(),
	})
	if err != nil {
		return nil, err
	}
	return &Surface{display: d, id: id}, nil
}

// Attach stages a buffer at a position; nil detaches. Takes effect on
// Commit.
func (s *Surface) Attach(b *Buffer, x, y int32) error {
	var enc protocol.ArgEncoder
	if b != nil {
		enc.PutUint32(b.id)
	} else {
		enc.PutUint32(0)
	}
	enc.PutInt32(x)
	enc.PutInt32(y)
	return s.display.conn.WriteMessage(protocol.Message{
		Object: s.id, Opcode: protocol.SurfaceAttach, Payload: enc.Bytes(),
	})
}

// Damage stages a damaged rectangle in surface coordinates.
func (s *Surface) Damage(r geometry.Rect) error {
	var enc protocol.ArgEncoder
	enc.PutInt32(r.X)
	enc.PutInt32(r.Y)
	enc.PutInt32(r.Width)
	enc.PutInt32(r.Height)
	return s.display.conn.WriteMessage(protocol.Message{
		Object: s.id, Opcode: protocol.SurfaceDamage, Payload: enc.Bytes(),
	})
}

// Frame requests a callback after the next commit's repaint, returning
// the callback ID to match against [DoneEvent].
func (s *Surface) Frame() (uint32, error) {
	id := s.display.allocID()
	var enc protocol.ArgEncoder
	enc.PutUint32(id)
	err := s.display.conn.WriteMessage(protocol.Message{
		Object: s.id, Opcode: protocol.SurfaceFrame, Payload: enc.Bytes(),
	})
	return id, err
}

// Commit applies all staged state atomically.
func (s *Surface) Commit() error {
	return s.display.conn.WriteMessage(protocol.Message{Object: s.id, Opcode: protocol.SurfaceCommit})
}

// Destroy removes the surface from the compositor.
func (s *Surface) Destroy() error {
	return s.display.conn.WriteMessage(protocol.Message{Object: s.id, Opcode: protocol.SurfaceDestroy})
}

// Region is a server-side region object.
type Region struct {
	display *Display
	id      uint32
}

// CreateRegion allocates an empty region object.
func (d *Display) CreateRegion() (*Region, error) {
	id := d.allocID()
	var enc protocol.ArgEncoder
	enc.PutUint32(id)
	err := d.conn.WriteMessage(protocol.Message{
		Object: protocol.ObjectCompositor, Opcode: protocol.CompositorCreateRegion, Payload: enc.Bytes(),
	})
	if err != nil {
		return nil, err
	}
	return &Region{display: d, id: id}, nil
}

// Add grows the region by a rectangle.
func (r *Region) Add(rect geometry.Rect) error {
	return r.op(protocol.RegionAdd, rect)
}

// Subtract removes a rectangle from the region.
func (r *Region) Subtract(rect geometry.Rect) error {
	return r.op(protocol.RegionSubtract, rect)
}

func (r *Region) op(opcode uint16, rect geometry.Rect) error {
	var enc protocol.ArgEncoder
	enc.PutInt32(rect.X)
	enc.PutInt32(rect.Y)
	enc.PutInt32(rect.Width)
	enc.PutInt32(rect.Height)
	return r.display.conn.WriteMessage(protocol.Message{
		Object: r.id, Opcode: opcode, Payload: enc.Bytes(),
	})
}

// Destroy releases the region object.
func (r *Region) Destroy() error {
	return r.display.conn.WriteMessage(protocol.Message{Object: r.id, Opcode: protocol.RegionDestroy})
}

// WaitCallback reads events until the frame callback completes. Other
// events are discarded; an ErrorEvent is returned as an error.
func (d *Display) WaitCallback(id uint32) (uint32, error) {
	for {
		ev, err := d.ReadEvent()
		if err != nil {
			return 0, err
		}
		switch e := ev.(type) {
		case DoneEvent:
			if e.Callback == id {
				return e.Serial, nil
			}
		case ErrorEvent:
			return 0, &protocol.Error{Code: e.Code, Object: e.Object, Message: e.Message}
		}
	}
}
