// Copyright 2026 The Galactica Authors
// SPDX-License-Identifier: Apache-2.0

package compositor

import (
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/LiterallyKirby/Galactica/lib/geometry"
	"github.com/LiterallyKirby/Galactica/lib/testutil"
	"github.com/LiterallyKirby/Galactica/security"
	"github.com/LiterallyKirby/Galactica/shm"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestRegistry(t *testing.T) (*Registry, *security.Context) {
	t.Helper()
	sec, err := security.NewContext(testLogger())
	if err != nil {
		t.Fatalf("NewContext: %v", err)
	}
	t.Cleanup(func() { sec.Close() })
	return NewRegistry(sec, testLogger()), sec
}

func registerClient(t *testing.T, sec *security.Context, pid int32) {
	t.Helper()
	if _, err := sec.ValidateClient(security.Credentials{PID: pid, UID: 1000, GID: 1000}); err != nil {
		t.Fatalf("ValidateClient: %v", err)
	}
}

func newTestBuffer(t *testing.T) *shm.Buffer {
	t.Helper()
	fd := testutil.ShmFile(t, 4096)
	pool, err := shm.CreatePool(fd, 4096)
	if err != nil {
		t.Fatalf("CreatePool: %v", err)
	}
	t.Cleanup(pool.Destroy)
	buffer, err := pool.CreateBuffer(0, 16, 16, 64, shm.FormatARGB8888)
	if err != nil {
		t.Fatalf("CreateBuffer: %v", err)
	}
	return buffer
}

func TestCreateSurface_PaintOrder(t *testing.T) {
	reg, sec := newTestRegistry(t)
	registerClient(t, sec, 100)

	first, err := reg.CreateSurface(100, 10)
	if err != nil {
		t.Fatalf("CreateSurface: %v", err)
	}
	second, err := reg.CreateSurface(100, 11)
	if err != nil {
		t.Fatalf("CreateSurface: %v", err)
	}

	surfaces := reg.Surfaces()
	if len(surfaces) != 2 || surfaces[0] != first || surfaces[1] != second {
		t.Errorf("paint order does not match creation order")
	}
}

func TestCreateSurface_LimitEnforced(t *testing.T) {
	reg, sec := newTestRegistry(t)
	registerClient(t, sec, 100)

	for i := 0; i < security.MaxSurfacesPerClient; i++ {
		if _, err := reg.CreateSurface(100, uint32(i+10)); err != nil {
			t.Fatalf("surface %d: %v", i, err)
		}
	}
	if _, err := reg.CreateSurface(100, 9999); !errors.Is(err, security.ErrSurfaceLimit) {
		t.Errorf("got %v, want ErrSurfaceLimit", err)
	}

	// Destroying one frees a slot.
	reg.DestroySurface(reg.Surfaces()[0])
	if _, err := reg.CreateSurface(100, 9999); err != nil {
		t.Errorf("create after destroy: %v", err)
	}
}

func TestCreateSurface_UnregisteredClient(t *testing.T) {
	reg, _ := newTestRegistry(t)
	if _, err := reg.CreateSurface(100, 10); !errors.Is(err, security.ErrInvalidCredentials) {
		t.Errorf("got %v, want ErrInvalidCredentials", err)
	}
}

func TestDestroyClientSurfaces(t *testing.T) {
	reg, sec := newTestRegistry(t)
	registerClient(t, sec, 100)
	registerClient(t, sec, 200)

	reg.CreateSurface(100, 10)
	kept, _ := reg.CreateSurface(200, 20)
	reg.CreateSurface(100, 11)

	reg.DestroyClientSurfaces(100)

	surfaces := reg.Surfaces()
	if len(surfaces) != 1 || surfaces[0] != kept {
		t.Errorf("expected only the other client's surface to survive")
	}
}

func TestCommit_PromotesPendingState(t *testing.T) {
	reg, sec := newTestRegistry(t)
	registerClient(t, sec, 100)
	surface, _ := reg.CreateSurface(100, 10)
	buffer := newTestBuffer(t)

	surface.Attach(buffer, 30, 40)
	surface.AddDamage(geometry.Rect{X: 0, Y: 0, Width: 16, Height: 16})
	surface.Frame(55)

	// Nothing visible before commit.
	if surface.Buffer() != nil {
		t.Fatalf("buffer visible before commit")
	}
	if !surface.Damage().Empty() {
		t.Fatalf("damage visible before commit")
	}

	callbacks := surface.Commit()
	if surface.Buffer() != buffer {
		t.Errorf("buffer not committed")
	}
	if x, y := surface.Position(); x != 30 || y != 40 {
		t.Errorf("position = (%d,%d), want (30,40)", x, y)
	}
	if surface.Damage().Empty() {
		t.Errorf("damage not committed")
	}
	if len(callbacks) != 1 || callbacks[0] != 55 {
		t.Errorf("callbacks = %v, want [55]", callbacks)
	}

	// A second commit without a new attach keeps the buffer and fires
	// no callbacks.
	if callbacks := surface.Commit(); len(callbacks) != 0 {
		t.Errorf("stale callbacks fired: %v", callbacks)
	}
	if surface.Buffer() != buffer {
		t.Errorf("buffer lost on empty commit")
	}
}

func TestCommit_NilAttachDetaches(t *testing.T) {
	reg, sec := newTestRegistry(t)
	registerClient(t, sec, 100)
	surface, _ := reg.CreateSurface(100, 10)
	buffer := newTestBuffer(t)

	surface.Attach(buffer, 0, 0)
	surface.Commit()
	surface.Attach(nil, 0, 0)
	surface.Commit()

	if surface.Buffer() != nil {
		t.Errorf("nil attach did not detach buffer")
	}
}

func TestDetachBuffer(t *testing.T) {
	reg, sec := newTestRegistry(t)
	registerClient(t, sec, 100)
	committed, _ := reg.CreateSurface(100, 10)
	pending, _ := reg.CreateSurface(100, 11)
	buffer := newTestBuffer(t)

	committed.Attach(buffer, 0, 0)
	committed.Commit()
	pending.Attach(buffer, 0, 0) // not committed

	reg.DetachBuffer(buffer)

	if committed.Buffer() != nil {
		t.Errorf("committed reference survived detach")
	}
	pending.Commit()
	if pending.Buffer() != nil {
		t.Errorf("pending reference survived detach")
	}
}
