// Copyright 2026 The Galactica Authors
// SPDX-License-Identifier: Apache-2.0

package output

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"
	"github.com/zeebo/blake3"
)

// ErrCaptureDisabled means a capture was requested on an output that
// has no capture configured.
var ErrCaptureDisabled = errors.New("output: frame capture disabled")

// Capture writes framebuffer snapshots as binary PPM files, optionally
// zstd-compressed. Consecutive identical frames are detected by
// content hash and written only once.
type Capture struct {
	dir      string
	every    uint64
	compress bool

	seq      uint64
	lastHash [32]byte
	haveLast bool
	logger   *slog.Logger
}

// NewCapture creates the capture directory and returns a capture
// writer. every controls the interval: 1 captures each frame, N every
// Nth, 0 disables automatic capture (manual ForceCapture still works).
func NewCapture(dir string, every uint64, compress bool, logger *slog.Logger) (*Capture, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating capture directory: %w", err)
	}
	return &Capture{
		dir:      dir,
		every:    every,
		compress: compress,
		logger:   logger.With("component", "capture"),
	}, nil
}

// Snapshot writes the frame if it is due per the interval and differs
// from the previously written frame.
func (c *Capture) Snapshot(fb []uint32, width, height int32, frame uint64) error {
	if c.every == 0 || frame%c.every != 0 {
		return nil
	}
	_, err := c.write(fb, width, height)
	return err
}

// write encodes and stores one frame, returning the file path. An
// empty path with nil error means the frame matched the previous one
// and was skipped.
func (c *Capture) write(fb []uint32, width, height int32) (string, error) {
	payload := encodePPM(fb, width, height)

	hash := blake3.Sum256(payload)
	if c.haveLast && hash == c.lastHash {
		return "", nil
	}

	name := fmt.Sprintf("frame_%06d.ppm", c.seq)
	if c.compress {
		name += ".zst"
		compressed, err := compressZstd(payload)
		if err != nil {
			return "", fmt.Errorf("compressing frame: %w", err)
		}
		payload = compressed
	}
	path := filepath.Join(c.dir, name)
	if err := os.WriteFile(path, payload, 0o644); err != nil {
		return "", fmt.Errorf("writing frame: %w", err)
	}

	c.lastHash = hash
	c.haveLast = true
	c.seq++
	c.logger.Debug("frame captured", "path", path, "bytes", len(payload))
	return path, nil
}

// encodePPM renders the framebuffer as a binary P6 PPM. Alpha is
// dropped; the framebuffer is already composited over an opaque
// background.
func encodePPM(fb []uint32, width, height int32) []byte {
	header := fmt.Sprintf("P6\n%d %d\n255\n", width, height)
	out := make([]byte, 0, len(header)+len(fb)*3)
	out = append(out, header...)
	for _, p := range fb {
		out = append(out, byte(p>>16), byte(p>>8), byte(p))
	}
	return out
}

func compressZstd(data []byte) ([]byte, error) {
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, err
	}
	defer enc.Close()
	return enc.EncodeAll(data, nil), nil
}
