// Copyright 2026 The Galactica Authors
// SPDX-License-Identifier: Apache-2.0

// Package shm manages client-supplied shared memory: pools mapped from
// client descriptors and the buffer views carved out of them.
//
// Ownership is strict. A [Pool] exclusively owns its mapping and the
// descriptor it was created from. A [Buffer] is a typed rectangular
// view into a pool and owns nothing; multiple buffers may reference
// the same pool. The renderer never touches pool memory directly; it
// takes a [PixelView] for the duration of one composite pass, which
// pins the mapping so a concurrent pool destroy cannot unmap memory
// out from under the read.
//
// The pinning only guarantees the read stays within valid mapped
// memory. It does not serialize against the client writing into the
// pool during composition; that can tear visually and is an accepted,
// documented property of unsynchronized shared-memory clients.
package shm
