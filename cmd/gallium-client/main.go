// Copyright 2026 The Galactica Authors
// SPDX-License-Identifier: Apache-2.0

// Gallium-client is a demo and smoke-test client for the Galactica
// display server. It draws a handful of test scenes into shared-memory
// buffers and commits them, pacing itself with frame callbacks. With
// frame capture enabled on the server, the resulting frame_*.ppm files
// show the composited output.
package main

import (
	"encoding/binary"
	"flag"
	"fmt"
	"math"
	"os"
	"time"

	"github.com/LiterallyKirby/Galactica/client"
	"github.com/LiterallyKirby/Galactica/lib/geometry"
	"github.com/LiterallyKirby/Galactica/lib/version"
	"github.com/LiterallyKirby/Galactica/shm"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		scene       string
		width       int
		height      int
		frames      int
		showVersion bool
	)
	flag.StringVar(&scene, "scene", "gradient", "scene to draw: gradient, checkerboard, circles, wave")
	flag.IntVar(&width, "width", 400, "surface width in pixels")
	flag.IntVar(&height, "height", 300, "surface height in pixels")
	flag.IntVar(&frames, "frames", 60, "animation frames (wave scene only)")
	flag.BoolVar(&showVersion, "version", false, "print version information and exit")
	flag.Parse()

	if showVersion {
		fmt.Printf("gallium-client %s\n", version.Info())
		return nil
	}

	display, err := client.Connect()
	if err != nil {
		return err
	}
	defer display.Close()

	w, h := int32(width), int32(height)
	pool, err := display.CreatePool(w * h * 4)
	if err != nil {
		return fmt.Errorf("creating pool: %w", err)
	}
	defer pool.Destroy()

	buffer, err := pool.CreateBuffer(0, w, h, w*4, shm.FormatARGB8888)
	if err != nil {
		return fmt.Errorf("creating buffer: %w", err)
	}

	surface, err := display.CreateSurface()
	if err != nil {
		return fmt.Errorf("creating surface: %w", err)
	}
	defer surface.Destroy()

	pixels := pixelWriter{data: pool.Data(), width: w, height: h}
	switch scene {
	case "gradient":
		drawGradient(pixels)
	case "checkerboard":
		drawCheckerboard(pixels, 32)
	case "circles":
		drawCircles(pixels)
	case "wave":
		return animateWave(display, surface, buffer, pixels, frames)
	default:
		return fmt.Errorf("unknown scene %q", scene)
	}

	if err := present(display, surface, buffer, w, h); err != nil {
		return err
	}
	fmt.Printf("presented %q at %dx%d\n", scene, width, height)
	return nil
}

// present attaches, damages the whole surface, commits, and waits for
// the repaint.
func present(display *client.Display, surface *client.Surface, buffer *client.Buffer, w, h int32) error {
	if err := surface.Attach(buffer, 0, 0); err != nil {
		return err
	}
	if err := surface.Damage(geometry.Rect{Width: w, Height: h}); err != nil {
		return err
	}
	callback, err := surface.Frame()
	if err != nil {
		return err
	}
	if err := surface.Commit(); err != nil {
		return err
	}
	_, err = display.WaitCallback(callback)
	return err
}

// pixelWriter writes ARGB pixels into a pool mapping.
type pixelWriter struct {
	data   []byte
	width  int32
	height int32
}

func (p pixelWriter) set(x, y int32, argb uint32) {
	binary.LittleEndian.PutUint32(p.data[(y*p.width+x)*4:], argb)
}

func drawGradient(p pixelWriter) {
	for y := int32(0); y < p.height; y++ {
		for x := int32(0); x < p.width; x++ {
			r := uint32(x*255/p.width) << 16
			g := uint32(y*255/p.height) << 8
			p.set(x, y, 0xFF000000|r|g|0x80)
		}
	}
}

func drawCheckerboard(p pixelWriter, square int32) {
	for y := int32(0); y < p.height; y++ {
		for x := int32(0); x < p.width; x++ {
			if (x/square+y/square)%2 == 0 {
				p.set(x, y, 0xFF000000)
			} else {
				p.set(x, y, 0xFFFFFFFF)
			}
		}
	}
}

func drawCircles(p pixelWriter) {
	fill(p, 0xFF102040)
	cx, cy := p.width/2, p.height/2
	radii := []int32{p.height / 3, p.height / 4, p.height / 6}
	colors := []uint32{0xFFE04040, 0xFF40E040, 0xFF4040E0}
	for i, radius := range radii {
		drawCircle(p, cx, cy, radius, colors[i])
	}
}

func drawCircle(p pixelWriter, cx, cy, radius int32, color uint32) {
	for y := int32(0); y < p.height; y++ {
		for x := int32(0); x < p.width; x++ {
			dx, dy := x-cx, y-cy
			if dx*dx+dy*dy <= radius*radius {
				p.set(x, y, color)
			}
		}
	}
}

func fill(p pixelWriter, color uint32) {
	for y := int32(0); y < p.height; y++ {
		for x := int32(0); x < p.width; x++ {
			p.set(x, y, color)
		}
	}
}

// animateWave redraws a scrolling sine wave, one commit per frame,
// paced by the server's frame callbacks.
func animateWave(display *client.Display, surface *client.Surface, buffer *client.Buffer, p pixelWriter, frames int) error {
	start := time.Now()
	for i := 0; i < frames; i++ {
		t := time.Since(start).Seconds()
		fill(p, 0xFF000020)
		for x := int32(0); x < p.width; x++ {
			phase := float64(x)/40 + t*4
			y := p.height/2 + int32(math.Sin(phase)*float64(p.height)/4)
			for dy := int32(-2); dy <= 2; dy++ {
				if y+dy >= 0 && y+dy < p.height {
					p.set(x, y+dy, 0xFF00C0FF)
				}
			}
		}
		if err := present(display, surface, buffer, p.width, p.height); err != nil {
			return fmt.Errorf("frame %d: %w", i, err)
		}
	}
	fmt.Printf("animated %d frames in %s\n", frames, time.Since(start).Round(time.Millisecond))
	return nil
}
