// Copyright 2026 The Galactica Authors
// SPDX-License-Identifier: Apache-2.0

// Package security holds the compositor's process-wide security state
// and the input-validation policy applied to every client request.
//
// A [Context] is created once at startup and destroyed at shutdown. It
// owns a random session token (diagnostics only, held in mlock'd
// memory) and the registry of per-client [Client] entries. Entries are
// created lazily when a client's first surface is created, keyed by
// the pid reported by SO_PEERCRED, and wiped before release.
//
// Validation functions ([ValidateGeometry], [ValidateBufferSize]) are
// pure: they report acceptability and never mutate state. All failures
// surface to the caller as values; a malformed request must never
// crash the compositor.
//
// VM classification is a best-effort heuristic over the client
// process's command line, not a security boundary: failure to read or
// match the command line silently classifies the client as non-VM.
package security
