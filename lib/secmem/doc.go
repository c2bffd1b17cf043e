// Copyright 2026 The Galactica Authors
// SPDX-License-Identifier: Apache-2.0

// Package secmem provides memory for sensitive material such as the
// compositor's session token.
//
// [Buffer] allocates memory outside the Go heap via mmap(MAP_ANONYMOUS),
// locks it into physical RAM via mlock (preventing swap), and marks it
// excluded from core dumps via madvise(MADV_DONTDUMP). On Close, the
// memory is zeroed, unlocked, and unmapped. Because the memory lives
// outside the Go heap, the garbage collector cannot copy or relocate
// it, so wiped material leaves no stray copies behind.
//
// [NewRandom] fills a fresh buffer from crypto/rand; a failure to read
// the system entropy source is reported as [ErrEntropyUnavailable].
// [Buffer.Fingerprint] gives a short non-reversible identifier for
// logging a secret without disclosing it.
//
// Depends on golang.org/x/sys/unix and zeebo/blake3 only.
package secmem
