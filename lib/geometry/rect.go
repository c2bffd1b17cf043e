// Copyright 2026 The Galactica Authors
// SPDX-License-Identifier: Apache-2.0

package geometry

import "fmt"

// Rect is an axis-aligned rectangle with integer position and size.
// Width and Height are always non-negative in a valid Rect; a Rect
// with zero width or height is empty.
type Rect struct {
	X, Y          int32
	Width, Height int32
}

// String returns the conventional "WxH+X+Y" form.
func (r Rect) String() string {
	return fmt.Sprintf("%dx%d+%d+%d", r.Width, r.Height, r.X, r.Y)
}

// Empty reports whether the rectangle covers no pixels.
func (r Rect) Empty() bool {
	return r.Width <= 0 || r.Height <= 0
}

// right and bottom are exclusive edges. Callers have already rejected
// coordinate overflow via security.ValidateGeometry, so the additions
// here are safe.
func (r Rect) right() int32  { return r.X + r.Width }
func (r Rect) bottom() int32 { return r.Y + r.Height }

// Contains reports whether other lies entirely inside r.
func (r Rect) Contains(other Rect) bool {
	if other.Empty() {
		return true
	}
	if r.Empty() {
		return false
	}
	return other.X >= r.X && other.Y >= r.Y &&
		other.right() <= r.right() && other.bottom() <= r.bottom()
}

// Intersects reports whether r and other share at least one pixel.
func (r Rect) Intersects(other Rect) bool {
	if r.Empty() || other.Empty() {
		return false
	}
	return r.X < other.right() && other.X < r.right() &&
		r.Y < other.bottom() && other.Y < r.bottom()
}

// Intersect returns the overlap of r and other, or an empty Rect when
// they do not intersect.
func (r Rect) Intersect(other Rect) Rect {
	if !r.Intersects(other) {
		return Rect{}
	}
	x := max(r.X, other.X)
	y := max(r.Y, other.Y)
	return Rect{
		X:      x,
		Y:      y,
		Width:  min(r.right(), other.right()) - x,
		Height: min(r.bottom(), other.bottom()) - y,
	}
}

// Union returns the smallest rectangle covering both r and other.
func (r Rect) Union(other Rect) Rect {
	if r.Empty() {
		return other
	}
	if other.Empty() {
		return r
	}
	x := min(r.X, other.X)
	y := min(r.Y, other.Y)
	return Rect{
		X:      x,
		Y:      y,
		Width:  max(r.right(), other.right()) - x,
		Height: max(r.bottom(), other.bottom()) - y,
	}
}
