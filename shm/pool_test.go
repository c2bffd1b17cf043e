// Copyright 2026 The Galactica Authors
// SPDX-License-Identifier: Apache-2.0

package shm

import (
	"encoding/binary"
	"errors"
	"testing"

	"golang.org/x/sys/unix"

	"github.com/LiterallyKirby/Galactica/lib/testutil"
)

// newTestPool creates a pool over a memfd and returns it along with a
// duplicated descriptor the test keeps for writing, mimicking a client
// that retains its own fd after handing one to the server.
func newTestPool(t *testing.T, size int32) (*Pool, int) {
	t.Helper()
	fd := testutil.ShmFile(t, int64(size))
	clientFD, err := unix.Dup(fd)
	if err != nil {
		t.Fatalf("dup: %v", err)
	}
	t.Cleanup(func() { unix.Close(clientFD) })

	pool, err := CreatePool(fd, size)
	if err != nil {
		t.Fatalf("CreatePool: %v", err)
	}
	t.Cleanup(pool.Destroy)
	return pool, clientFD
}

// writePixel writes a single 32-bit pixel into the shared file at the
// given byte offset, through the client's own descriptor.
func writePixel(t *testing.T, fd int, offset int64, pixel uint32) {
	t.Helper()
	var raw [4]byte
	binary.LittleEndian.PutUint32(raw[:], pixel)
	if _, err := unix.Pwrite(fd, raw[:], offset); err != nil {
		t.Fatalf("pwrite: %v", err)
	}
}

func TestCreatePool_BadDescriptor(t *testing.T) {
	// -1 is never a mappable descriptor.
	_, err := CreatePool(-1, 4096)
	if !errors.Is(err, ErrMapFailed) {
		t.Errorf("got %v, want ErrMapFailed", err)
	}
}

func TestCreatePool_InvalidSize(t *testing.T) {
	fd := testutil.ShmFile(t, 4096)
	_, err := CreatePool(fd, 0)
	if !errors.Is(err, ErrMapFailed) {
		t.Errorf("got %v, want ErrMapFailed", err)
	}
}

func TestCreateBuffer_Validation(t *testing.T) {
	pool, _ := newTestPool(t, 4096)

	tests := []struct {
		name                          string
		offset, width, height, stride int32
		format                        Format
		wantErr                       error
	}{
		{"valid", 0, 16, 16, 64, FormatARGB8888, nil},
		{"valid xrgb", 0, 16, 16, 64, FormatXRGB8888, nil},
		{"unknown format", 0, 16, 16, 64, Format(7), ErrInvalidFormat},
		{"oversized width", 0, 3841, 1, 3841 * 4, FormatARGB8888, ErrInvalidStride},
		{"stride below width", 0, 16, 16, 32, FormatARGB8888, ErrInvalidStride},
		{"negative offset", -4, 16, 16, 64, FormatARGB8888, ErrInvalidStride},
		// 32 rows of stride 128 end exactly at byte 4096 and are legal;
		// one more row overruns the pool.
		{"view ends at pool end", 0, 32, 32, 128, FormatARGB8888, nil},
		{"view past pool end", 0, 32, 33, 128, FormatARGB8888, ErrInvalidStride},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := pool.CreateBuffer(tt.offset, tt.width, tt.height, tt.stride, tt.format)
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("CreateBuffer: %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("got %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestPixelView_ReadsClientWrites(t *testing.T) {
	pool, clientFD := newTestPool(t, 4096)
	buffer, err := pool.CreateBuffer(0, 4, 4, 16, FormatARGB8888)
	if err != nil {
		t.Fatalf("CreateBuffer: %v", err)
	}

	writePixel(t, clientFD, 0, 0xFFFF0000) // opaque red at (0,0)

	view, err := buffer.Acquire()
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	defer view.Close()

	got := binary.LittleEndian.Uint32(view.Row(0)[:4])
	if got != 0xFFFF0000 {
		t.Errorf("pixel (0,0) = %#x, want 0xFFFF0000", got)
	}
}

func TestDestroy_DefersUnmapUntilViewCloses(t *testing.T) {
	pool, clientFD := newTestPool(t, 4096)
	buffer, err := pool.CreateBuffer(0, 4, 4, 16, FormatARGB8888)
	if err != nil {
		t.Fatalf("CreateBuffer: %v", err)
	}
	writePixel(t, clientFD, 16, 0xFF00FF00) // row 1, pixel 0

	view, err := buffer.Acquire()
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}

	// Destroy with the view still pinned: memory must stay readable.
	pool.Destroy()

	got := binary.LittleEndian.Uint32(view.Row(1)[:4])
	if got != 0xFF00FF00 {
		t.Errorf("pixel after destroy = %#x, want 0xFF00FF00", got)
	}
	view.Close()

	// New access against the destroyed pool must fail.
	if _, err := buffer.Acquire(); !errors.Is(err, ErrPoolDestroyed) {
		t.Errorf("Acquire after destroy: got %v, want ErrPoolDestroyed", err)
	}
}

func TestDestroy_Idempotent(t *testing.T) {
	pool, _ := newTestPool(t, 4096)
	pool.Destroy()
	pool.Destroy() // must be a no-op
}

func TestResize_Grow(t *testing.T) {
	pool, clientFD := newTestPool(t, 4096)

	// A buffer needing 8192 bytes does not fit yet.
	if _, err := pool.CreateBuffer(0, 32, 64, 32*4, FormatARGB8888); !errors.Is(err, ErrInvalidStride) {
		t.Fatalf("expected out-of-bounds before resize, got %v", err)
	}

	if err := unix.Ftruncate(clientFD, 8192); err != nil {
		t.Fatalf("ftruncate: %v", err)
	}
	if err := pool.Resize(8192); err != nil {
		t.Fatalf("Resize: %v", err)
	}
	if pool.Size() != 8192 {
		t.Errorf("size after resize = %d, want 8192", pool.Size())
	}

	buffer, err := pool.CreateBuffer(0, 32, 64, 32*4, FormatARGB8888)
	if err != nil {
		t.Fatalf("CreateBuffer after resize: %v", err)
	}

	// Writes land in the grown region and are visible through a view.
	writePixel(t, clientFD, 32*4*63, 0xFF0000FF)
	view, err := buffer.Acquire()
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	defer view.Close()
	got := binary.LittleEndian.Uint32(view.Row(63)[:4])
	if got != 0xFF0000FF {
		t.Errorf("pixel in grown region = %#x, want 0xFF0000FF", got)
	}
}

func TestResize_ShrinkRejected(t *testing.T) {
	pool, _ := newTestPool(t, 4096)
	if err := pool.Resize(2048); !errors.Is(err, ErrPoolShrink) {
		t.Errorf("got %v, want ErrPoolShrink", err)
	}
}

func TestResize_SameSizeIsNoOp(t *testing.T) {
	pool, _ := newTestPool(t, 4096)
	if err := pool.Resize(4096); err != nil {
		t.Errorf("Resize to same size: %v", err)
	}
}

func TestBufferCreatedBeforeResizeStillWorks(t *testing.T) {
	pool, clientFD := newTestPool(t, 4096)
	buffer, err := pool.CreateBuffer(0, 4, 4, 16, FormatARGB8888)
	if err != nil {
		t.Fatalf("CreateBuffer: %v", err)
	}

	if err := unix.Ftruncate(clientFD, 8192); err != nil {
		t.Fatalf("ftruncate: %v", err)
	}
	if err := pool.Resize(8192); err != nil {
		t.Fatalf("Resize: %v", err)
	}

	writePixel(t, clientFD, 0, 0xFFABCDEF)
	view, err := buffer.Acquire()
	if err != nil {
		t.Fatalf("Acquire after resize: %v", err)
	}
	defer view.Close()
	got := binary.LittleEndian.Uint32(view.Row(0)[:4])
	if got != 0xFFABCDEF {
		t.Errorf("pixel through pre-resize buffer = %#x, want 0xFFABCDEF", got)
	}
}
