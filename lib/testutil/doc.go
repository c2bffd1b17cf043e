// Copyright 2026 The Galactica Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil provides shared test helpers for Galactica packages.
//
// [SocketDir] creates a temporary directory in /tmp suitable for Unix
// domain sockets. This exists because Unix domain sockets have a
// 108-byte path limit (sun_path in sockaddr_un) and deeply nested test
// temp directories can exceed it, making t.TempDir() unsuitable for
// socket files. The directory is removed when the test completes.
//
// [RequireReceive] and [RequireClosed] encapsulate the timeout safety
// valve pattern (select with time.After fallback) so that individual
// tests do not need direct time.After calls.
//
// [ShmFile] creates an anonymous memfd of a given size, the same kind
// of descriptor a display client passes to create_pool. Server and shm
// tests use it to stand in for client-supplied shared memory.
//
// All helpers call t.Fatalf on failure rather than returning errors,
// since test setup failures are not recoverable.
package testutil
