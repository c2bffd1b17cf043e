// Copyright 2026 The Galactica Authors
// SPDX-License-Identifier: Apache-2.0

package protocol

import (
	"errors"
	"io"
	"net"
	"os"
	"testing"

	"golang.org/x/sys/unix"

	"github.com/LiterallyKirby/Galactica/lib/testutil"
)

// connPair builds two protocol connections over a socketpair.
func connPair(t *testing.T) (*Conn, *Conn) {
	t.Helper()
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		t.Fatalf("socketpair: %v", err)
	}
	toConn := func(fd int) *Conn {
		file := os.NewFile(uintptr(fd), "socketpair")
		defer file.Close()
		netConn, err := net.FileConn(file)
		if err != nil {
			t.Fatalf("FileConn: %v", err)
		}
		uc, ok := netConn.(*net.UnixConn)
		if !ok {
			t.Fatalf("not a UnixConn: %T", netConn)
		}
		conn := NewConn(uc)
		t.Cleanup(func() { conn.Close() })
		return conn
	}
	return toConn(fds[0]), toConn(fds[1])
}

func TestConn_RoundTrip(t *testing.T) {
	client, server := connPair(t)

	var enc ArgEncoder
	enc.PutUint32(7)
	enc.PutInt32(-3)
	if err := client.WriteMessage(Message{Object: ObjectCompositor, Opcode: CompositorCreateSurface, Payload: enc.Bytes()}); err != nil {
		t.Fatalf("WriteMessage: %v", err)
	}

	got, err := server.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage: %v", err)
	}
	if got.Object != ObjectCompositor || got.Opcode != CompositorCreateSurface {
		t.Errorf("header = (%d, %d)", got.Object, got.Opcode)
	}
}

func TestConn_CoalescedMessages(t *testing.T) {
	client, server := connPair(t)

	// Two messages in one stream write must come out separately.
	for i := uint32(10); i < 12; i++ {
		if err := client.WriteMessage(Message{Object: i, Opcode: SurfaceCommit}); err != nil {
			t.Fatalf("WriteMessage: %v", err)
		}
	}
	for i := uint32(10); i < 12; i++ {
		got, err := server.ReadMessage()
		if err != nil {
			t.Fatalf("ReadMessage: %v", err)
		}
		if got.Object != i {
			t.Errorf("object = %d, want %d", got.Object, i)
		}
	}
}

func TestConn_FDPassing(t *testing.T) {
	client, server := connPair(t)

	memfd := testutil.ShmFile(t, 4096)

	var enc ArgEncoder
	enc.PutUint32(20)   // new pool id
	enc.PutUint32(4096) // size
	msg := Message{Object: ObjectShm, Opcode: ShmCreatePool, Payload: enc.Bytes()}
	if err := client.WriteMessageWithFD(msg, memfd); err != nil {
		t.Fatalf("WriteMessageWithFD: %v", err)
	}

	got, err := server.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage: %v", err)
	}
	if got.Object != ObjectShm || got.Opcode != ShmCreatePool {
		t.Fatalf("unexpected message (%d, %d)", got.Object, got.Opcode)
	}

	fd, err := server.TakeFD()
	if err != nil {
		t.Fatalf("TakeFD: %v", err)
	}
	defer unix.Close(fd)

	// The received descriptor refers to the same 4096-byte file.
	var st unix.Stat_t
	if err := unix.Fstat(fd, &st); err != nil {
		t.Fatalf("fstat: %v", err)
	}
	if st.Size != 4096 {
		t.Errorf("received fd size = %d, want 4096", st.Size)
	}

	if _, err := server.TakeFD(); !errors.Is(err, ErrNoFD) {
		t.Errorf("second TakeFD: got %v, want ErrNoFD", err)
	}
}

func TestConn_EOFOnClose(t *testing.T) {
	client, server := connPair(t)
	client.Close()

	if _, err := server.ReadMessage(); err != io.EOF {
		t.Errorf("got %v, want io.EOF", err)
	}
}
