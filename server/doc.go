// Copyright 2026 The Galactica Authors
// SPDX-License-Identifier: Apache-2.0

// Package server runs the display server: the protocol listener, the
// single-threaded dispatch loop that owns all compositor state, and
// the CBOR control socket for management queries.
//
// Every client connection gets a reader goroutine that decodes framed
// requests and forwards them over a channel; one dispatch goroutine
// applies them. No locks guard compositor state because only the
// dispatch goroutine touches it.
package server
