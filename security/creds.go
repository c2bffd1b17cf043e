// Copyright 2026 The Galactica Authors
// SPDX-License-Identifier: Apache-2.0

package security

import (
	"fmt"
	"net"

	"golang.org/x/sys/unix"
)

// PeerCredentials reads the connecting process's pid/uid/gid from the
// socket via SO_PEERCRED. The kernel fills these in at connect time;
// they cannot be forged by the client.
func PeerCredentials(conn *net.UnixConn) (Credentials, error) {
	raw, err := conn.SyscallConn()
	if err != nil {
		return Credentials{}, fmt.Errorf("getting raw connection: %w", err)
	}

	var ucred *unix.Ucred
	var sockoptErr error
	if err := raw.Control(func(fd uintptr) {
		ucred, sockoptErr = unix.GetsockoptUcred(int(fd), unix.SOL_SOCKET, unix.SO_PEERCRED)
	}); err != nil {
		return Credentials{}, fmt.Errorf("reading peer credentials: %w", err)
	}
	if sockoptErr != nil {
		return Credentials{}, fmt.Errorf("SO_PEERCRED: %w", sockoptErr)
	}

	return Credentials{
		PID: ucred.Pid,
		UID: ucred.Uid,
		GID: ucred.Gid,
	}, nil
}
