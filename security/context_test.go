// Copyright 2026 The Galactica Authors
// SPDX-License-Identifier: Apache-2.0

package security

import (
	"errors"
	"io"
	"log/slog"
	"testing"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestContext(t *testing.T) *Context {
	t.Helper()
	ctx, err := NewContext(testLogger())
	if err != nil {
		t.Fatalf("NewContext: %v", err)
	}
	t.Cleanup(func() { ctx.Close() })
	return ctx
}

func TestValidateClient_RejectsBadPID(t *testing.T) {
	ctx := newTestContext(t)

	for _, pid := range []int32{0, -1} {
		_, err := ctx.ValidateClient(Credentials{PID: pid, UID: 1000, GID: 1000})
		if !errors.Is(err, ErrInvalidCredentials) {
			t.Errorf("pid %d: got %v, want ErrInvalidCredentials", pid, err)
		}
	}
	if ctx.ClientCount() != 0 {
		t.Errorf("failed validation registered a client: count=%d", ctx.ClientCount())
	}
}

func TestValidateClient_RegistersOncePerPID(t *testing.T) {
	ctx := newTestContext(t)
	creds := Credentials{PID: 4242, UID: 1000, GID: 1000}

	first, err := ctx.ValidateClient(creds)
	if err != nil {
		t.Fatalf("ValidateClient: %v", err)
	}
	second, err := ctx.ValidateClient(creds)
	if err != nil {
		t.Fatalf("ValidateClient: %v", err)
	}
	if first != second {
		t.Error("second validation created a new entry for the same pid")
	}
	if ctx.ClientCount() != 1 {
		t.Errorf("client count = %d, want 1", ctx.ClientCount())
	}
}

func TestCheckSurfaceLimit(t *testing.T) {
	ctx := newTestContext(t)
	client, err := ctx.ValidateClient(Credentials{PID: 100, UID: 1, GID: 1})
	if err != nil {
		t.Fatalf("ValidateClient: %v", err)
	}

	client.SurfaceCount = MaxSurfacesPerClient - 1
	if !ctx.CheckSurfaceLimit(client) {
		t.Error("limit check failed below the limit")
	}

	client.SurfaceCount = MaxSurfacesPerClient
	if ctx.CheckSurfaceLimit(client) {
		t.Error("limit check passed at the limit")
	}

	if ctx.CheckSurfaceLimit(nil) {
		t.Error("limit check passed for nil client")
	}
}

func TestReleaseClient_WipesEntry(t *testing.T) {
	ctx := newTestContext(t)
	client, err := ctx.ValidateClient(Credentials{PID: 55, UID: 1, GID: 1})
	if err != nil {
		t.Fatalf("ValidateClient: %v", err)
	}
	client.SurfaceCount = 7

	ctx.ReleaseClient(55)

	if _, ok := ctx.Client(55); ok {
		t.Error("client still registered after release")
	}
	if client.PID != 0 || client.SurfaceCount != 0 {
		t.Errorf("entry not wiped: %+v", *client)
	}

	// Releasing an unknown pid is a no-op.
	ctx.ReleaseClient(55)
}

func TestSessionFingerprint_Stable(t *testing.T) {
	ctx := newTestContext(t)
	if ctx.SessionFingerprint() != ctx.SessionFingerprint() {
		t.Error("fingerprint changed between calls")
	}
	if len(ctx.SessionFingerprint()) != 8 {
		t.Errorf("fingerprint length = %d, want 8", len(ctx.SessionFingerprint()))
	}
}

func TestClose_WipesClients(t *testing.T) {
	ctx, err := NewContext(testLogger())
	if err != nil {
		t.Fatalf("NewContext: %v", err)
	}
	client, err := ctx.ValidateClient(Credentials{PID: 9, UID: 1, GID: 1})
	if err != nil {
		t.Fatalf("ValidateClient: %v", err)
	}

	if err := ctx.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if client.PID != 0 {
		t.Error("client entry not wiped on Close")
	}
	if ctx.ClientCount() != 0 {
		t.Error("clients remain after Close")
	}
}
