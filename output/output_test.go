// Copyright 2026 The Galactica Authors
// SPDX-License-Identifier: Apache-2.0

package output

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/zstd"

	"github.com/LiterallyKirby/Galactica/lib/geometry"
	"github.com/LiterallyKirby/Galactica/render"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNew_FramebufferIsOpaqueBlack(t *testing.T) {
	out := New("main", 64, 48, render.New(testLogger()), nil, testLogger())
	for i, p := range out.Framebuffer() {
		if p != 0xFF000000 {
			t.Fatalf("pixel %d = %#x, want opaque black", i, p)
		}
	}
}

func TestRepaint_ClearsDamageAndCounts(t *testing.T) {
	out := New("main", 64, 48, render.New(testLogger()), nil, testLogger())
	out.MarkDamage(geometry.Rect{X: 0, Y: 0, Width: 10, Height: 10})
	if !out.Damaged() {
		t.Fatalf("damage not recorded")
	}

	out.Repaint(nil)
	if out.Damaged() {
		t.Errorf("damage survived repaint")
	}
	if out.FrameCount() != 1 {
		t.Errorf("frame count = %d, want 1", out.FrameCount())
	}
	// No surfaces: framebuffer shows only background.
	if got := out.Framebuffer()[0]; got != render.BackgroundColor {
		t.Errorf("pixel = %#x, want background", got)
	}
}

func TestForceCapture_DisabledWithoutConfig(t *testing.T) {
	out := New("main", 8, 8, render.New(testLogger()), nil, testLogger())
	if _, err := out.ForceCapture(); !errors.Is(err, ErrCaptureDisabled) {
		t.Errorf("got %v, want ErrCaptureDisabled", err)
	}
}

// parsePPM reads back a P6 file and returns its dimensions and the
// first pixel as 0xRRGGBB.
func parsePPM(t *testing.T, data []byte) (width, height int, first uint32) {
	t.Helper()
	var maxval int
	n, err := fmt.Fscanf(bytes.NewReader(data), "P6\n%d %d\n%d\n", &width, &height, &maxval)
	if err != nil || n != 3 {
		t.Fatalf("bad PPM header: %v", err)
	}
	header := fmt.Sprintf("P6\n%d %d\n%d\n", width, height, maxval)
	body := data[len(header):]
	if len(body) != width*height*3 {
		t.Fatalf("PPM body is %d bytes, want %d", len(body), width*height*3)
	}
	return width, height, uint32(body[0])<<16 | uint32(body[1])<<8 | uint32(body[2])
}

func TestCapture_WritesDecodablePPM(t *testing.T) {
	dir := t.TempDir()
	capture, err := NewCapture(dir, 1, false, testLogger())
	if err != nil {
		t.Fatalf("NewCapture: %v", err)
	}
	out := New("main", 16, 8, render.New(testLogger()), capture, testLogger())
	out.Repaint(nil)

	data, err := os.ReadFile(filepath.Join(dir, "frame_000000.ppm"))
	if err != nil {
		t.Fatalf("reading capture: %v", err)
	}
	width, height, first := parsePPM(t, data)
	if width != 16 || height != 8 {
		t.Errorf("dimensions %dx%d, want 16x8", width, height)
	}
	if first != render.BackgroundColor&0xFFFFFF {
		t.Errorf("first pixel = %#x, want background RGB", first)
	}
}

func TestCapture_SkipsIdenticalFrames(t *testing.T) {
	dir := t.TempDir()
	capture, err := NewCapture(dir, 1, false, testLogger())
	if err != nil {
		t.Fatalf("NewCapture: %v", err)
	}
	out := New("main", 16, 8, render.New(testLogger()), capture, testLogger())

	// Nothing changes between repaints; only one file should exist.
	out.Repaint(nil)
	out.Repaint(nil)
	out.Repaint(nil)

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("found %d capture files, want 1", len(entries))
	}
}

func TestCapture_Interval(t *testing.T) {
	dir := t.TempDir()
	capture, err := NewCapture(dir, 100, false, testLogger())
	if err != nil {
		t.Fatalf("NewCapture: %v", err)
	}
	out := New("main", 16, 8, render.New(testLogger()), capture, testLogger())

	for i := 0; i < 99; i++ {
		out.Repaint(nil)
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Fatalf("captured before interval elapsed: %d files", len(entries))
	}
	out.Repaint(nil) // frame 100
	entries, _ = os.ReadDir(dir)
	if len(entries) != 1 {
		t.Errorf("found %d capture files after interval, want 1", len(entries))
	}
}

func TestCapture_Compressed(t *testing.T) {
	dir := t.TempDir()
	capture, err := NewCapture(dir, 1, true, testLogger())
	if err != nil {
		t.Fatalf("NewCapture: %v", err)
	}
	out := New("main", 16, 8, render.New(testLogger()), capture, testLogger())
	out.Repaint(nil)

	raw, err := os.ReadFile(filepath.Join(dir, "frame_000000.ppm.zst"))
	if err != nil {
		t.Fatalf("reading capture: %v", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		t.Fatalf("zstd reader: %v", err)
	}
	defer dec.Close()
	data, err := dec.DecodeAll(raw, nil)
	if err != nil {
		t.Fatalf("decompressing: %v", err)
	}
	width, height, _ := parsePPM(t, data)
	if width != 16 || height != 8 {
		t.Errorf("dimensions %dx%d, want 16x8", width, height)
	}
}
