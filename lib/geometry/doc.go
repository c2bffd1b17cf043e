// Copyright 2026 The Galactica Authors
// SPDX-License-Identifier: Apache-2.0

// Package geometry provides the integer rectangle and region types used
// throughout the compositor for surface placement and damage tracking.
//
// A [Region] is a normalized set of non-overlapping rectangles. Union
// is idempotent: adding a rectangle that is already covered leaves the
// region unchanged, so repeated damage reports from a client do not
// grow the region. Normalization is by pairwise merge and containment
// pruning rather than full band decomposition: damage regions in this
// compositor are consumed whole at repaint and never iterated for
// minimal spans, so the cheaper representation suffices.
//
// This package has no dependencies outside the standard library: it is
// pure integer arithmetic with no concern a third-party library would
// cover (the pixman region the original system used is a C library
// with no Go counterpart in use here).
package geometry
