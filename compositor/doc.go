// Copyright 2026 The Galactica Authors
// SPDX-License-Identifier: Apache-2.0

// Package compositor holds the server-side surface state: the registry
// of drawable surfaces in paint order, their attached buffers and
// accumulated damage, and client-defined region objects.
//
// Surfaces use double-buffered state in the Wayland style: attach,
// damage, and frame requests land in pending state, and commit
// atomically promotes pending to current. The renderer only ever sees
// committed state.
package compositor
