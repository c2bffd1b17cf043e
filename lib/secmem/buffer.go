// Copyright 2026 The Galactica Authors
// SPDX-License-Identifier: Apache-2.0

package secmem

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"

	"github.com/zeebo/blake3"
	"golang.org/x/sys/unix"
)

// ErrEntropyUnavailable means the system random source could not be
// read. Callers treat this as fatal at startup: a compositor without a
// session token has no way to tag its diagnostics.
var ErrEntropyUnavailable = errors.New("secmem: system entropy source unavailable")

// Buffer holds sensitive data in memory that is locked against
// swapping, excluded from core dumps, and zeroed on close. The backing
// memory is allocated via mmap outside the Go heap.
//
// A Buffer must not be copied after creation. After Close, any access
// to the buffer's contents panics.
type Buffer struct {
	mu     sync.Mutex
	data   []byte
	length int
	closed bool
}

// New allocates a zero-filled buffer of the given size. The buffer is
// backed by an anonymous mmap region that is locked into physical RAM
// (mlock) and excluded from core dumps (MADV_DONTDUMP). The caller
// must Close the buffer when the material is no longer needed.
func New(size int) (*Buffer, error) {
	if size <= 0 {
		return nil, fmt.Errorf("secmem: buffer size must be positive, got %d", size)
	}

	data, err := unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANONYMOUS)
	if err != nil {
		return nil, fmt.Errorf("secmem: mmap failed: %w", err)
	}

	if err := unix.Mlock(data); err != nil {
		unix.Munmap(data)
		return nil, fmt.Errorf("secmem: mlock failed: %w", err)
	}

	if err := unix.Madvise(data, unix.MADV_DONTDUMP); err != nil {
		unix.Munlock(data)
		unix.Munmap(data)
		return nil, fmt.Errorf("secmem: madvise(MADV_DONTDUMP) failed: %w", err)
	}

	return &Buffer{
		data:   data,
		length: size,
	}, nil
}

// NewRandom allocates a buffer of the given size filled from the
// system's cryptographic random source. Returns a wrapped
// [ErrEntropyUnavailable] if the source cannot be read.
func NewRandom(size int) (*Buffer, error) {
	buffer, err := New(size)
	if err != nil {
		return nil, err
	}
	if _, err := rand.Read(buffer.data); err != nil {
		buffer.Close()
		return nil, fmt.Errorf("%w: %v", ErrEntropyUnavailable, err)
	}
	return buffer, nil
}

// Bytes returns the protected data. The returned slice points directly
// into the mmap region; do not hold references to it beyond the
// lifetime of the Buffer. Panics if the buffer has been closed.
func (b *Buffer) Bytes() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		panic("secmem: read from closed buffer")
	}

	return b.data[:b.length]
}

// Len returns the size of the protected data.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.length
}

// Fingerprint returns the first 8 hex characters of the BLAKE3 hash of
// the contents. Suitable for log lines and status reports: it
// identifies the secret without revealing it. Panics if closed.
func (b *Buffer) Fingerprint() string {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		panic("secmem: fingerprint of closed buffer")
	}

	sum := blake3.Sum256(b.data[:b.length])
	return hex.EncodeToString(sum[:4])
}

// Close zeros the buffer contents, unlocks and unmaps the memory.
// Close is idempotent.
func (b *Buffer) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true

	Zero(b.data)

	var firstError error
	if err := unix.Munlock(b.data); err != nil && firstError == nil {
		firstError = fmt.Errorf("secmem: munlock failed: %w", err)
	}
	if err := unix.Munmap(b.data); err != nil && firstError == nil {
		firstError = fmt.Errorf("secmem: munmap failed: %w", err)
	}

	b.data = nil
	return firstError
}

// Zero overwrites a byte slice in place. Use on transient copies of
// sensitive data held outside a Buffer.
func Zero(data []byte) {
	for index := range data {
		data[index] = 0
	}
}
