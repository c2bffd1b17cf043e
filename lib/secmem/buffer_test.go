// Copyright 2026 The Galactica Authors
// SPDX-License-Identifier: Apache-2.0

package secmem

import "testing"

func TestNew_ValidSize(t *testing.T) {
	buffer, err := New(64)
	if err != nil {
		t.Fatalf("New(64) failed: %v", err)
	}
	defer buffer.Close()

	if buffer.Len() != 64 {
		t.Errorf("expected length 64, got %d", buffer.Len())
	}

	// Memory should be zero-initialized by mmap.
	for index, value := range buffer.Bytes() {
		if value != 0 {
			t.Fatalf("expected zero at index %d, got %d", index, value)
		}
	}
}

func TestNew_ZeroSize(t *testing.T) {
	if _, err := New(0); err == nil {
		t.Fatal("expected error for zero size")
	}
}

func TestNew_NegativeSize(t *testing.T) {
	if _, err := New(-1); err == nil {
		t.Fatal("expected error for negative size")
	}
}

func TestNewRandom(t *testing.T) {
	buffer, err := NewRandom(32)
	if err != nil {
		t.Fatalf("NewRandom failed: %v", err)
	}
	defer buffer.Close()

	// 32 random bytes being all zero has probability 2^-256; treat it
	// as a failed fill.
	allZero := true
	for _, value := range buffer.Bytes() {
		if value != 0 {
			allZero = false
			break
		}
	}
	if allZero {
		t.Error("NewRandom returned all-zero contents")
	}
}

func TestFingerprint(t *testing.T) {
	buffer, err := New(16)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer buffer.Close()

	copy(buffer.Bytes(), []byte("session-token-ab"))

	fp := buffer.Fingerprint()
	if len(fp) != 8 {
		t.Errorf("fingerprint length = %d, want 8", len(fp))
	}

	// Same contents, same fingerprint.
	other, err := New(16)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer other.Close()
	copy(other.Bytes(), []byte("session-token-ab"))

	if other.Fingerprint() != fp {
		t.Error("fingerprints differ for identical contents")
	}
}

func TestClose_Idempotent(t *testing.T) {
	buffer, err := New(8)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if err := buffer.Close(); err != nil {
		t.Fatalf("first Close failed: %v", err)
	}
	if err := buffer.Close(); err != nil {
		t.Fatalf("second Close failed: %v", err)
	}
}

func TestBytes_PanicsAfterClose(t *testing.T) {
	buffer, err := New(8)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	buffer.Close()

	defer func() {
		if recover() == nil {
			t.Error("expected panic reading closed buffer")
		}
	}()
	buffer.Bytes()
}

func TestZero(t *testing.T) {
	data := []byte{1, 2, 3, 4}
	Zero(data)
	for index, value := range data {
		if value != 0 {
			t.Errorf("byte %d not zeroed: %d", index, value)
		}
	}
}
