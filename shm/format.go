// Copyright 2026 The Galactica Authors
// SPDX-License-Identifier: Apache-2.0

package shm

// Format identifies the pixel layout of a buffer. Exactly two 32-bit
// packed little-endian formats are supported; advertising or accepting
// anything else is a protocol violation.
type Format uint32

const (
	// FormatARGB8888 is 32-bit ARGB, [31:0] A:R:G:B 8:8:8:8 little
	// endian, premultiplied alpha.
	FormatARGB8888 Format = 0

	// FormatXRGB8888 is 32-bit RGB, [31:0] x:R:G:B 8:8:8:8 little
	// endian. The x byte is ignored; pixels composite as opaque.
	FormatXRGB8888 Format = 1
)

// SupportedFormats lists every format the compositor advertises, in
// advertisement order.
var SupportedFormats = []Format{FormatARGB8888, FormatXRGB8888}

// Valid reports whether f is one of the supported formats.
func (f Format) Valid() bool {
	return f == FormatARGB8888 || f == FormatXRGB8888
}

// HasAlpha reports whether the format carries an alpha channel.
func (f Format) HasAlpha() bool {
	return f == FormatARGB8888
}

func (f Format) String() string {
	switch f {
	case FormatARGB8888:
		return "ARGB8888"
	case FormatXRGB8888:
		return "XRGB8888"
	default:
		return "unknown"
	}
}
