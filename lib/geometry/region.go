// Copyright 2026 The Galactica Authors
// SPDX-License-Identifier: Apache-2.0

package geometry

// Region is a set of pixels represented as non-overlapping rectangles.
// The zero value is an empty region ready for use.
//
// Region is not safe for concurrent use; in the compositor every region
// is owned by the dispatch goroutine.
type Region struct {
	rects []Rect
}

// Empty reports whether the region covers no pixels.
func (g *Region) Empty() bool {
	return len(g.rects) == 0
}

// Rects returns the region's rectangles. The slice is owned by the
// region; callers must not modify it.
func (g *Region) Rects() []Rect {
	return g.rects
}

// Bounds returns the smallest single rectangle covering the region.
func (g *Region) Bounds() Rect {
	var bounds Rect
	for _, r := range g.rects {
		bounds = bounds.Union(r)
	}
	return bounds
}

// AddRect unions a rectangle into the region. Adding an empty
// rectangle, or one already covered, is a no-op: damaging the same
// area twice is equivalent to damaging it once.
func (g *Region) AddRect(r Rect) {
	if r.Empty() {
		return
	}
	for _, existing := range g.rects {
		if existing.Contains(r) {
			return
		}
	}
	// Drop rectangles the new one swallows, then merge with any
	// rectangle it touches. Merging coalesces overlapping damage so
	// the region stays small under repeated partial updates.
	kept := g.rects[:0]
	for _, existing := range g.rects {
		if r.Contains(existing) {
			continue
		}
		if r.Intersects(existing) {
			r = r.Union(existing)
			continue
		}
		kept = append(kept, existing)
	}
	g.rects = append(kept, r)
}

// SubtractRect removes a rectangle from the region. Only exact
// containment splits are performed on the remainder: each existing
// rectangle overlapping r is split into up to four non-overlapping
// pieces around the removed area.
func (g *Region) SubtractRect(r Rect) {
	if r.Empty() || g.Empty() {
		return
	}
	var result []Rect
	for _, existing := range g.rects {
		if !existing.Intersects(r) {
			result = append(result, existing)
			continue
		}
		// Top band.
		if existing.Y < r.Y {
			result = append(result, Rect{
				X: existing.X, Y: existing.Y,
				Width: existing.Width, Height: r.Y - existing.Y,
			})
		}
		// Bottom band.
		if existing.bottom() > r.bottom() {
			result = append(result, Rect{
				X: existing.X, Y: r.bottom(),
				Width: existing.Width, Height: existing.bottom() - r.bottom(),
			})
		}
		midTop := max(existing.Y, r.Y)
		midBottom := min(existing.bottom(), r.bottom())
		// Left band.
		if existing.X < r.X {
			result = append(result, Rect{
				X: existing.X, Y: midTop,
				Width: r.X - existing.X, Height: midBottom - midTop,
			})
		}
		// Right band.
		if existing.right() > r.right() {
			result = append(result, Rect{
				X: r.right(), Y: midTop,
				Width: existing.right() - r.right(), Height: midBottom - midTop,
			})
		}
	}
	g.rects = result
}

// Contains reports whether the given pixel is covered by the region.
func (g *Region) Contains(x, y int32) bool {
	for _, r := range g.rects {
		if x >= r.X && x < r.right() && y >= r.Y && y < r.bottom() {
			return true
		}
	}
	return false
}

// Clear empties the region, retaining capacity for reuse. Repaint
// calls this after each frame.
func (g *Region) Clear() {
	g.rects = g.rects[:0]
}

// Equal reports whether two regions cover exactly the same pixels.
// Representation-sensitive: regions built by the same sequence of
// operations compare equal; this is what the damage tests need.
func (g *Region) Equal(other *Region) bool {
	if len(g.rects) != len(other.rects) {
		return false
	}
	for i, r := range g.rects {
		if r != other.rects[i] {
			return false
		}
	}
	return true
}
