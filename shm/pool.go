// Copyright 2026 The Galactica Authors
// SPDX-License-Identifier: Apache-2.0

package shm

import (
	"errors"
	"fmt"
	"sync/atomic"

	"golang.org/x/sys/unix"
)

// ErrMapFailed means the client-supplied descriptor could not be
// memory-mapped. The descriptor is always closed before this is
// returned, so a failed create_pool never leaks an fd.
var ErrMapFailed = errors.New("shm: mapping pool descriptor failed")

// ErrPoolDestroyed means an operation referenced a pool after the
// client released it.
var ErrPoolDestroyed = errors.New("shm: pool destroyed")

// ErrPoolShrink means a resize request asked for a smaller mapping.
// Pools only grow; shrinking would invalidate existing buffer views.
var ErrPoolShrink = errors.New("shm: pool shrink not supported")

// ErrPoolBusy means a resize arrived while a composite pass held a
// view into the pool. Cannot happen from the single-threaded dispatch
// loop; the check guards against misuse.
var ErrPoolBusy = errors.New("shm: pool has active pixel views")

// Pool is a client-supplied shared-memory region. It exclusively owns
// the mapping and the descriptor. Buffers reference pool memory but
// never own it.
//
// The mapping is released when the pool has been destroyed AND no
// PixelView is pinned into it, whichever happens last. The reference
// count is atomic because view release is the one operation that may
// race with teardown paths.
type Pool struct {
	data []byte
	fd   int

	// refs counts the pool's own liveness (1) plus every pinned view.
	refs      atomic.Int32
	destroyed bool
}

// CreatePool maps size bytes of fd read-write and shared, taking
// ownership of the descriptor. On mapping failure the descriptor is
// closed and a wrapped [ErrMapFailed] returned; no object is created.
func CreatePool(fd int, size int32) (*Pool, error) {
	if size <= 0 {
		unix.Close(fd)
		return nil, fmt.Errorf("%w: invalid size %d", ErrMapFailed, size)
	}

	data, err := unix.Mmap(fd, 0, int(size), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("%w: %v", ErrMapFailed, err)
	}

	pool := &Pool{data: data, fd: fd}
	pool.refs.Store(1)
	return pool, nil
}

// Size returns the current mapped size in bytes.
func (p *Pool) Size() int32 {
	return int32(len(p.data))
}

// Resize grows the mapping to the new size after the client has grown
// the underlying file. Shrinking fails with [ErrPoolShrink]. The old
// mapping is replaced; existing Buffer views stay valid because they
// re-resolve pool memory on each access.
func (p *Pool) Resize(size int32) error {
	if p.destroyed {
		return ErrPoolDestroyed
	}
	if size < p.Size() {
		return fmt.Errorf("%w: %d -> %d", ErrPoolShrink, p.Size(), size)
	}
	if size == p.Size() {
		return nil
	}
	if p.refs.Load() > 1 {
		return ErrPoolBusy
	}

	data, err := unix.Mmap(p.fd, 0, int(size), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMapFailed, err)
	}
	unix.Munmap(p.data)
	p.data = data
	return nil
}

// Destroy releases the client's reference to the pool. Safe to call
// more than once; the second call is a no-op. The mapping and
// descriptor are released immediately unless a composite pass still
// holds a view, in which case release happens when the last view
// closes.
func (p *Pool) Destroy() {
	if p.destroyed {
		return
	}
	p.destroyed = true
	p.unref()
}

// pin takes a reference for a PixelView. Fails once destroyed: new
// reads must not start against a released pool.
func (p *Pool) pin() error {
	if p.destroyed {
		return ErrPoolDestroyed
	}
	p.refs.Add(1)
	return nil
}

func (p *Pool) unref() {
	if p.refs.Add(-1) > 0 {
		return
	}
	unix.Munmap(p.data)
	unix.Close(p.fd)
	p.data = nil
	p.fd = -1
}
