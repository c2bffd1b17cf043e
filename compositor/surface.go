// Copyright 2026 The Galactica Authors
// SPDX-License-Identifier: Apache-2.0

package compositor

import (
	"github.com/LiterallyKirby/Galactica/lib/geometry"
	"github.com/LiterallyKirby/Galactica/shm"
)

// pendingState is the double-buffered half of a surface: everything a
// client has requested since its last commit.
type pendingState struct {
	buffer    *shm.Buffer
	x, y      int32
	hasAttach bool
	damage    geometry.Region
	callbacks []uint32
}

// Surface is one drawable. The renderer reads only the committed
// fields; requests between commits accumulate in pending.
type Surface struct {
	id     uint32
	client int32

	pending pendingState

	// Committed state.
	buffer *shm.Buffer
	x, y   int32
	damage geometry.Region
}

// ID returns the client-assigned object ID.
func (s *Surface) ID() uint32 { return s.id }

// Client returns the pid of the owning client.
func (s *Surface) Client() int32 { return s.client }

// Buffer returns the committed buffer, or nil when nothing is attached.
func (s *Surface) Buffer() *shm.Buffer { return s.buffer }

// Position returns the committed surface position on the output.
func (s *Surface) Position() (x, y int32) { return s.x, s.y }

// Damage returns the committed damage region. The caller may clear it
// after folding it into the output's damage.
func (s *Surface) Damage() *geometry.Region { return &s.damage }

// Attach stages a buffer and position for the next commit. A nil
// buffer stages a detach: on commit the surface stops being painted.
func (s *Surface) Attach(buffer *shm.Buffer, x, y int32) {
	s.pending.buffer = buffer
	s.pending.x = x
	s.pending.y = y
	s.pending.hasAttach = true
}

// AddDamage stages a damaged rectangle in surface-local coordinates.
func (s *Surface) AddDamage(r geometry.Rect) {
	s.pending.damage.AddRect(r)
}

// Frame stages a frame callback. The callback fires once, after the
// repaint triggered by the next commit.
func (s *Surface) Frame(callbackID uint32) {
	s.pending.callbacks = append(s.pending.callbacks, callbackID)
}

// Commit promotes all pending state to committed state and returns the
// frame callback IDs the caller must complete after the repaint.
// Pending state is reset; an attach is consumed by exactly one commit.
func (s *Surface) Commit() []uint32 {
	if s.pending.hasAttach {
		s.buffer = s.pending.buffer
		s.x = s.pending.x
		s.y = s.pending.y
	}
	for _, r := range s.pending.damage.Rects() {
		s.damage.AddRect(r)
	}
	callbacks := s.pending.callbacks
	s.pending = pendingState{}
	return callbacks
}

// detachBuffer drops every reference to the buffer, committed or
// pending. Reports whether the surface referenced it at all.
func (s *Surface) detachBuffer(buffer *shm.Buffer) bool {
	detached := false
	if s.buffer == buffer {
		s.buffer = nil
		detached = true
	}
	if s.pending.buffer == buffer {
		s.pending.buffer = nil
		detached = true
	}
	return detached
}
