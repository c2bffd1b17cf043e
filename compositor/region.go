// Copyright 2026 The Galactica Authors
// SPDX-License-Identifier: Apache-2.0

package compositor

import "github.com/LiterallyKirby/Galactica/lib/geometry"

// Region is a client-defined region object. Clients build regions with
// add and subtract requests; the server accumulates them but the
// renderer does not consult them, matching the original protocol where
// regions exist for input and opacity hints that were never
// implemented.
type Region struct {
	id    uint32
	rects geometry.Region
}

// NewRegion creates an empty region with the client-assigned ID.
func NewRegion(id uint32) *Region {
	return &Region{id: id}
}

// ID returns the client-assigned object ID.
func (r *Region) ID() uint32 { return r.id }

// Add grows the region by a rectangle.
func (r *Region) Add(rect geometry.Rect) {
	r.rects.AddRect(rect)
}

// Subtract removes a rectangle from the region.
func (r *Region) Subtract(rect geometry.Rect) {
	r.rects.SubtractRect(rect)
}

// Contains reports whether the point is inside the region.
func (r *Region) Contains(x, y int32) bool {
	return r.rects.Contains(x, y)
}
