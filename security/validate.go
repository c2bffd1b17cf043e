// Copyright 2026 The Galactica Authors
// SPDX-License-Identifier: Apache-2.0

package security

import "math"

// Resource limits applied to untrusted clients. Buffer bounds cap the
// largest view a client can ask the compositor to read (4K UHD); the
// surface limit caps per-client object growth.
const (
	MaxSurfacesPerClient = 100
	MaxBufferWidth       = 3840
	MaxBufferHeight      = 2160
)

// ValidateGeometry reports whether a client-supplied rectangle is
// acceptable: positive dimensions, within the maximum buffer bounds,
// and with x+width and y+height representable in a signed 32-bit
// integer. Used for damage reports and any placement arithmetic.
func ValidateGeometry(x, y, width, height int32) bool {
	if width <= 0 || height <= 0 {
		return false
	}
	if width > MaxBufferWidth || height > MaxBufferHeight {
		return false
	}
	if int64(x)+int64(width) > math.MaxInt32 {
		return false
	}
	if int64(y)+int64(height) > math.MaxInt32 {
		return false
	}
	return true
}

// ValidateBufferSize reports whether buffer dimensions are acceptable:
// positive, within the maximum bounds, and with a pixel byte count
// (width*height*4) that cannot overflow the platform size type.
func ValidateBufferSize(width, height int32) bool {
	if width <= 0 || height <= 0 {
		return false
	}
	if width > MaxBufferWidth || height > MaxBufferHeight {
		return false
	}
	bytes := uint64(width) * uint64(height) * 4
	return bytes <= uint64(math.MaxInt)
}
