// Copyright 2026 The Galactica Authors
// SPDX-License-Identifier: Apache-2.0

// Package render composites committed surfaces into a software
// framebuffer. Pixels are 32-bit ARGB words with premultiplied alpha;
// compositing is source-over, back to front in surface paint order.
package render

import (
	"encoding/binary"
	"log/slog"

	"github.com/LiterallyKirby/Galactica/compositor"
	"github.com/LiterallyKirby/Galactica/shm"
)

// BackgroundColor is the opaque dark gray painted under all surfaces.
const BackgroundColor = 0xFF202020

// Renderer paints surfaces into framebuffers. It holds no pixel state
// of its own; one renderer serves every output.
type Renderer struct {
	logger *slog.Logger
}

// New creates a renderer.
func New(logger *slog.Logger) *Renderer {
	return &Renderer{logger: logger.With("component", "render")}
}

// Composite repaints the full framebuffer: background fill, then every
// surface in paint order. Surfaces without a committed buffer are
// skipped, as are surfaces whose pool vanished between commit and
// repaint. Surface rectangles are clipped to the framebuffer.
func (r *Renderer) Composite(fb []uint32, width, height int32, surfaces []*compositor.Surface) {
	for i := range fb {
		fb[i] = BackgroundColor
	}
	for _, surface := range surfaces {
		buffer := surface.Buffer()
		if buffer == nil {
			continue
		}
		view, err := buffer.Acquire()
		if err != nil {
			r.logger.Warn("skipping surface with unreadable buffer",
				"surface", surface.ID(), "error", err)
			continue
		}
		x, y := surface.Position()
		blitOver(fb, width, height, view, x, y)
		view.Close()
	}
}

// blitOver composites one pixel view at (dstX, dstY), clipped to the
// framebuffer bounds.
func blitOver(fb []uint32, fbWidth, fbHeight int32, view *shm.PixelView, dstX, dstY int32) {
	srcX0, srcY0 := int32(0), int32(0)
	w, h := view.Width(), view.Height()

	if dstX < 0 {
		srcX0 = -dstX
		w -= srcX0
		dstX = 0
	}
	if dstY < 0 {
		srcY0 = -dstY
		h -= srcY0
		dstY = 0
	}
	if dstX+w > fbWidth {
		w = fbWidth - dstX
	}
	if dstY+h > fbHeight {
		h = fbHeight - dstY
	}
	if w <= 0 || h <= 0 {
		return
	}

	opaque := !view.Format().HasAlpha()
	for sy := int32(0); sy < h; sy++ {
		row := view.Row(srcY0 + sy)
		dstRow := fb[(dstY+sy)*fbWidth+dstX:]
		for sx := int32(0); sx < w; sx++ {
			src := binary.LittleEndian.Uint32(row[(srcX0+sx)*4:])
			if opaque {
				dstRow[sx] = src | 0xFF000000
				continue
			}
			dstRow[sx] = over(src, dstRow[sx])
		}
	}
}

// over blends premultiplied src onto dst: out = src + dst*(255-a)/255
// per channel.
func over(src, dst uint32) uint32 {
	a := src >> 24
	switch a {
	case 255:
		return src
	case 0:
		return dst
	}
	inv := 255 - a
	outA := (src >> 24 & 0xFF) + (dst>>24&0xFF)*inv/255
	outR := (src >> 16 & 0xFF) + (dst>>16&0xFF)*inv/255
	outG := (src >> 8 & 0xFF) + (dst>>8&0xFF)*inv/255
	outB := (src & 0xFF) + (dst&0xFF)*inv/255
	return outA<<24 | outR<<16 | outG<<8 | outB
}
