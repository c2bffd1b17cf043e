// Copyright 2026 The Galactica Authors
// SPDX-License-Identifier: Apache-2.0

package server

import (
	"errors"

	"golang.org/x/sys/unix"

	"github.com/LiterallyKirby/Galactica/compositor"
	"github.com/LiterallyKirby/Galactica/lib/geometry"
	"github.com/LiterallyKirby/Galactica/protocol"
	"github.com/LiterallyKirby/Galactica/security"
	"github.com/LiterallyKirby/Galactica/shm"
)

// dispatch applies one client request. A returned *protocol.Error is a
// protocol violation: the dispatch loop reports it via display.error
// and terminates the connection.
func (s *Server) dispatch(c *client, msg protocol.Message, fd int) *protocol.Error {
	switch msg.Object {
	case protocol.ObjectCompositor:
		return s.dispatchCompositor(c, msg)
	case protocol.ObjectShm:
		return s.dispatchShm(c, msg, fd)
	case protocol.ObjectDisplay:
		return protocol.Errorf(protocol.ErrInvalidMethod, msg.Object, "display has no requests")
	}

	if pool, ok := c.pools[msg.Object]; ok {
		return s.dispatchPool(c, msg, pool)
	}
	if entry, ok := c.buffers[msg.Object]; ok {
		return s.dispatchBuffer(c, msg, entry)
	}
	if surface, ok := c.surfaces[msg.Object]; ok {
		return s.dispatchSurface(c, msg, surface)
	}
	if region, ok := c.regions[msg.Object]; ok {
		return s.dispatchRegion(c, msg, region)
	}
	return protocol.Errorf(protocol.ErrInvalidObject, msg.Object, "unknown object")
}

func (s *Server) dispatchCompositor(c *client, msg protocol.Message) *protocol.Error {
	dec := protocol.NewArgDecoder(msg.Payload)
	switch msg.Opcode {
	case protocol.CompositorCreateSurface:
		id := dec.Uint32()
		if err := dec.Err(); err != nil {
			return protocol.Errorf(protocol.ErrInvalidMethod, msg.Object, "create_surface: %v", err)
		}
		if perr := c.checkNewID(id); perr != nil {
			return perr
		}
		surface, err := s.registry.CreateSurface(c.creds.PID, id)
		if err != nil {
			if errors.Is(err, security.ErrSurfaceLimit) {
				return protocol.Errorf(protocol.ErrSurfaceLimitExceeded, id, "surface limit reached")
			}
			return protocol.Errorf(protocol.ErrInvalidCredentials, id, "%v", err)
		}
		c.surfaces[id] = surface
		return nil

	case protocol.CompositorCreateRegion:
		id := dec.Uint32()
		if err := dec.Err(); err != nil {
			return protocol.Errorf(protocol.ErrInvalidMethod, msg.Object, "create_region: %v", err)
		}
		if perr := c.checkNewID(id); perr != nil {
			return perr
		}
		c.regions[id] = compositor.NewRegion(id)
		return nil
	}
	return protocol.Errorf(protocol.ErrInvalidMethod, msg.Object, "unknown compositor request %d", msg.Opcode)
}

func (s *Server) dispatchShm(c *client, msg protocol.Message, fd int) *protocol.Error {
	if msg.Opcode != protocol.ShmCreatePool {
		if fd >= 0 {
			unix.Close(fd)
		}
		return protocol.Errorf(protocol.ErrInvalidMethod, msg.Object, "unknown shm request %d", msg.Opcode)
	}

	dec := protocol.NewArgDecoder(msg.Payload)
	id := dec.Uint32()
	size := dec.Int32()
	if err := dec.Err(); err != nil {
		if fd >= 0 {
			unix.Close(fd)
		}
		return protocol.Errorf(protocol.ErrInvalidMethod, msg.Object, "create_pool: %v", err)
	}
	if perr := c.checkNewID(id); perr != nil {
		if fd >= 0 {
			unix.Close(fd)
		}
		return perr
	}
	if fd < 0 {
		return protocol.Errorf(protocol.ErrInvalidFd, id, "create_pool without descriptor")
	}

	pool, err := shm.CreatePool(fd, size)
	if err != nil {
		// CreatePool closed the descriptor.
		return protocol.Errorf(protocol.ErrInvalidFd, id, "%v", err)
	}
	c.pools[id] = pool
	c.logger.Debug("pool created", "pool", id, "size", size)
	return nil
}

func (s *Server) dispatchPool(c *client, msg protocol.Message, pool *shm.Pool) *protocol.Error {
	dec := protocol.NewArgDecoder(msg.Payload)
	switch msg.Opcode {
	case protocol.PoolCreateBuffer:
		id := dec.Uint32()
		offset := dec.Int32()
		width := dec.Int32()
		height := dec.Int32()
		stride := dec.Int32()
		format := shm.Format(dec.Uint32())
		if err := dec.Err(); err != nil {
			return protocol.Errorf(protocol.ErrInvalidMethod, msg.Object, "create_buffer: %v", err)
		}
		if perr := c.checkNewID(id); perr != nil {
			return perr
		}
		buffer, err := pool.CreateBuffer(offset, width, height, stride, format)
		if err != nil {
			code := protocol.ErrInvalidStride
			if errors.Is(err, shm.ErrInvalidFormat) {
				code = protocol.ErrInvalidFormat
			}
			return protocol.Errorf(code, id, "%v", err)
		}
		c.buffers[id] = &bufferEntry{buffer: buffer, poolID: msg.Object}
		return nil

	case protocol.PoolResize:
		size := dec.Int32()
		if err := dec.Err(); err != nil {
			return protocol.Errorf(protocol.ErrInvalidMethod, msg.Object, "resize: %v", err)
		}
		if err := pool.Resize(size); err != nil {
			return protocol.Errorf(protocol.ErrInvalidStride, msg.Object, "%v", err)
		}
		return nil

	case protocol.PoolDestroy:
		s.destroyPool(c, msg.Object, pool)
		return nil
	}
	return protocol.Errorf(protocol.ErrInvalidMethod, msg.Object, "unknown pool request %d", msg.Opcode)
}

// destroyPool tears down a pool and every buffer carved from it,
// detaching those buffers from any surface first.
func (s *Server) destroyPool(c *client, poolID uint32, pool *shm.Pool) {
	for id, entry := range c.buffers {
		if entry.poolID == poolID {
			s.registry.DetachBuffer(entry.buffer)
			delete(c.buffers, id)
		}
	}
	pool.Destroy()
	delete(c.pools, poolID)
}

func (s *Server) dispatchBuffer(c *client, msg protocol.Message, entry *bufferEntry) *protocol.Error {
	if msg.Opcode != protocol.BufferDestroy {
		return protocol.Errorf(protocol.ErrInvalidMethod, msg.Object, "unknown buffer request %d", msg.Opcode)
	}
	s.registry.DetachBuffer(entry.buffer)
	delete(c.buffers, msg.Object)
	return nil
}

func (s *Server) dispatchSurface(c *client, msg protocol.Message, surface *compositor.Surface) *protocol.Error {
	dec := protocol.NewArgDecoder(msg.Payload)
	switch msg.Opcode {
	case protocol.SurfaceAttach:
		bufferID := dec.Uint32()
		x := dec.Int32()
		y := dec.Int32()
		if err := dec.Err(); err != nil {
			return protocol.Errorf(protocol.ErrInvalidMethod, msg.Object, "attach: %v", err)
		}
		var buffer *shm.Buffer
		if bufferID != 0 {
			entry, ok := c.buffers[bufferID]
			if !ok {
				return protocol.Errorf(protocol.ErrInvalidObject, bufferID, "attach of unknown buffer")
			}
			buffer = entry.buffer
		}
		surface.Attach(buffer, x, y)
		return nil

	case protocol.SurfaceDamage:
		x := dec.Int32()
		y := dec.Int32()
		width := dec.Int32()
		height := dec.Int32()
		if err := dec.Err(); err != nil {
			return protocol.Errorf(protocol.ErrInvalidMethod, msg.Object, "damage: %v", err)
		}
		if !security.ValidateGeometry(x, y, width, height) {
			return protocol.Errorf(protocol.ErrInvalidStride, msg.Object,
				"damage rectangle %dx%d at (%d,%d) out of bounds", width, height, x, y)
		}
		surface.AddDamage(geometry.Rect{X: x, Y: y, Width: width, Height: height})
		return nil

	case protocol.SurfaceFrame:
		id := dec.Uint32()
		if err := dec.Err(); err != nil {
			return protocol.Errorf(protocol.ErrInvalidMethod, msg.Object, "frame: %v", err)
		}
		if perr := c.checkNewID(id); perr != nil {
			return perr
		}
		surface.Frame(id)
		return nil

	case protocol.SurfaceCommit:
		s.commit(c, surface)
		return nil

	case protocol.SurfaceDestroy:
		s.registry.DestroySurface(surface)
		delete(c.surfaces, msg.Object)
		return nil
	}
	return protocol.Errorf(protocol.ErrInvalidMethod, msg.Object, "unknown surface request %d", msg.Opcode)
}

// commit promotes the surface's pending state, repaints every output,
// and completes the surface's frame callbacks.
func (s *Server) commit(c *client, surface *compositor.Surface) {
	callbacks := surface.Commit()

	x, y := surface.Position()
	for _, out := range s.outputs {
		for _, r := range surface.Damage().Rects() {
			out.MarkDamage(geometry.Rect{X: r.X + x, Y: r.Y + y, Width: r.Width, Height: r.Height})
		}
	}
	surface.Damage().Clear()

	surfaces := s.registry.Surfaces()
	for _, out := range s.outputs {
		out.Repaint(surfaces)
	}

	for _, id := range callbacks {
		var enc protocol.ArgEncoder
		enc.PutUint32(uint32(s.outputs[0].FrameCount()))
		c.sendEvent(protocol.Message{
			Object:  id,
			Opcode:  protocol.CallbackDone,
			Payload: enc.Bytes(),
		})
	}
}

func (s *Server) dispatchRegion(c *client, msg protocol.Message, region *compositor.Region) *protocol.Error {
	dec := protocol.NewArgDecoder(msg.Payload)
	switch msg.Opcode {
	case protocol.RegionAdd, protocol.RegionSubtract:
		x := dec.Int32()
		y := dec.Int32()
		width := dec.Int32()
		height := dec.Int32()
		if err := dec.Err(); err != nil {
			return protocol.Errorf(protocol.ErrInvalidMethod, msg.Object, "region: %v", err)
		}
		if !security.ValidateGeometry(x, y, width, height) {
			return protocol.Errorf(protocol.ErrInvalidStride, msg.Object,
				"region rectangle %dx%d at (%d,%d) out of bounds", width, height, x, y)
		}
		rect := geometry.Rect{X: x, Y: y, Width: width, Height: height}
		if msg.Opcode == protocol.RegionAdd {
			region.Add(rect)
		} else {
			region.Subtract(rect)
		}
		return nil

	case protocol.RegionDestroy:
		delete(c.regions, msg.Object)
		return nil
	}
	return protocol.Errorf(protocol.ErrInvalidMethod, msg.Object, "unknown region request %d", msg.Opcode)
}
