// Copyright 2026 The Galactica Authors
// SPDX-License-Identifier: Apache-2.0

package shm

import (
	"errors"
	"fmt"

	"github.com/LiterallyKirby/Galactica/security"
)

// ErrInvalidFormat means the requested pixel format is not one of the
// two supported formats.
var ErrInvalidFormat = errors.New("shm: unsupported pixel format")

// ErrInvalidStride means the requested buffer geometry is unacceptable:
// dimensions out of bounds, stride too small for the width, or a view
// that extends past the pool's mapping.
var ErrInvalidStride = errors.New("shm: invalid buffer geometry")

// Buffer describes one rectangular pixel view inside a pool. It does
// not own the memory; the pool does. Multiple buffers may reference
// disjoint regions of the same pool.
type Buffer struct {
	pool   *Pool
	offset int32
	width  int32
	height int32
	stride int32
	format Format
}

// CreateBuffer validates and records a buffer view into the pool.
// Offset and stride are byte quantities; stride is the distance
// between row starts. The view must lie entirely inside the pool's
// current mapping: the compositor reads pool memory directly during
// composition, so an unchecked view would let a client walk the
// compositor off the end of the mapping.
func (p *Pool) CreateBuffer(offset, width, height, stride int32, format Format) (*Buffer, error) {
	if p.destroyed {
		return nil, ErrPoolDestroyed
	}
	if !format.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidFormat, uint32(format))
	}
	if !security.ValidateBufferSize(width, height) {
		return nil, fmt.Errorf("%w: %dx%d out of bounds", ErrInvalidStride, width, height)
	}
	if offset < 0 || stride < width*4 {
		return nil, fmt.Errorf("%w: offset=%d stride=%d width=%d", ErrInvalidStride, offset, stride, width)
	}
	end := int64(offset) + int64(stride)*int64(height-1) + int64(width)*4
	if end > int64(p.Size()) {
		return nil, fmt.Errorf("%w: view ends at %d, pool is %d bytes", ErrInvalidStride, end, p.Size())
	}

	return &Buffer{
		pool:   p,
		offset: offset,
		width:  width,
		height: height,
		stride: stride,
		format: format,
	}, nil
}

// Width returns the buffer width in pixels.
func (b *Buffer) Width() int32 { return b.width }

// Height returns the buffer height in pixels.
func (b *Buffer) Height() int32 { return b.height }

// Format returns the buffer's pixel format.
func (b *Buffer) Format() Format { return b.format }

// Acquire pins the pool mapping and returns a read-only pixel view for
// the duration of one composite pass. The caller must Close the view
// on every exit path; until then the pool's memory cannot be unmapped
// even if the client destroys the pool mid-pass. Fails with
// [ErrPoolDestroyed] when the pool was already released.
func (b *Buffer) Acquire() (*PixelView, error) {
	if err := b.pool.pin(); err != nil {
		return nil, err
	}
	return &PixelView{
		data:   b.pool.data,
		offset: b.offset,
		width:  b.width,
		height: b.height,
		stride: b.stride,
		format: b.format,
		pool:   b.pool,
	}, nil
}

// PixelView is a pinned, read-only window into pool memory, scoped to
// a single composite pass. Close releases the pin; Close is
// idempotent so defer plus explicit early release are both safe.
type PixelView struct {
	data   []byte
	offset int32
	width  int32
	height int32
	stride int32
	format Format
	pool   *Pool
	closed bool
}

// Width returns the view width in pixels.
func (v *PixelView) Width() int32 { return v.width }

// Height returns the view height in pixels.
func (v *PixelView) Height() int32 { return v.height }

// Format returns the view's pixel format.
func (v *PixelView) Format() Format { return v.format }

// Row returns the raw bytes of one row: width*4 bytes starting at the
// row's offset. The slice aliases shared memory a client may be
// writing concurrently; callers read it once per pass and tolerate
// torn values.
func (v *PixelView) Row(y int32) []byte {
	start := int64(v.offset) + int64(v.stride)*int64(y)
	return v.data[start : start+int64(v.width)*4]
}

// Close releases the pin on the pool mapping. Idempotent.
func (v *PixelView) Close() {
	if v.closed {
		return
	}
	v.closed = true
	v.data = nil
	v.pool.unref()
}
