// Copyright 2026 The Galactica Authors
// SPDX-License-Identifier: Apache-2.0

// Package output models display outputs: a fixed-size software
// framebuffer, accumulated damage, and repaint driven by surface
// commits. Outputs optionally capture frames to disk for inspection.
package output

import (
	"log/slog"

	"github.com/LiterallyKirby/Galactica/compositor"
	"github.com/LiterallyKirby/Galactica/lib/geometry"
	"github.com/LiterallyKirby/Galactica/render"
)

// Output is one display head. The framebuffer is owned by the dispatch
// goroutine; nothing else touches it.
type Output struct {
	name   string
	width  int32
	height int32
	fb     []uint32
	damage geometry.Region
	frames uint64

	renderer *render.Renderer
	capture  *Capture
	logger   *slog.Logger
}

// New creates an output with an opaque black framebuffer. capture may
// be nil to disable frame capture.
func New(name string, width, height int32, renderer *render.Renderer, capture *Capture, logger *slog.Logger) *Output {
	fb := make([]uint32, int(width)*int(height))
	for i := range fb {
		fb[i] = 0xFF000000
	}
	return &Output{
		name:     name,
		width:    width,
		height:   height,
		fb:       fb,
		renderer: renderer,
		capture:  capture,
		logger:   logger.With("component", "output", "output", name),
	}
}

// Name returns the output's configured name.
func (o *Output) Name() string { return o.name }

// Size returns the output dimensions in pixels.
func (o *Output) Size() (width, height int32) { return o.width, o.height }

// FrameCount returns the number of completed repaints.
func (o *Output) FrameCount() uint64 { return o.frames }

// Framebuffer exposes the pixel storage for tests and capture. The
// slice is the output's own; callers must not hold it across repaints.
func (o *Output) Framebuffer() []uint32 { return o.fb }

// Damaged reports whether any damage is pending.
func (o *Output) Damaged() bool { return !o.damage.Empty() }

// MarkDamage accumulates a damaged rectangle in output coordinates.
func (o *Output) MarkDamage(r geometry.Rect) {
	o.damage.AddRect(r)
}

// MarkAllDamage damages the whole output.
func (o *Output) MarkAllDamage() {
	o.damage.AddRect(geometry.Rect{Width: o.width, Height: o.height})
}

// Repaint composites the surfaces into the framebuffer, clears the
// accumulated damage, and snapshots the frame when capture is on.
// Capture failures are logged, never fatal.
func (o *Output) Repaint(surfaces []*compositor.Surface) {
	o.renderer.Composite(o.fb, o.width, o.height, surfaces)
	o.damage.Clear()
	o.frames++
	if o.capture != nil {
		if err := o.capture.Snapshot(o.fb, o.width, o.height, o.frames); err != nil {
			o.logger.Warn("frame capture failed", "frame", o.frames, "error", err)
		}
	}
}

// ForceCapture snapshots the current framebuffer regardless of the
// capture interval. Used by the control socket's capture action.
func (o *Output) ForceCapture() (string, error) {
	if o.capture == nil {
		return "", ErrCaptureDisabled
	}
	return o.capture.write(o.fb, o.width, o.height)
}
