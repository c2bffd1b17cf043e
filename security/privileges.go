// Copyright 2026 The Galactica Authors
// SPDX-License-Identifier: Apache-2.0

package security

import (
	"fmt"
	"log/slog"
	"os"

	"golang.org/x/sys/unix"
)

// DropPrivileges gives up root if the compositor was started with it,
// reverting to the invoking user's real uid/gid. After dropping, it
// verifies that re-escalation fails; a compositor that can silently
// regain root is worse than one that refuses to start.
//
// No-op when not running as root.
func DropPrivileges(logger *slog.Logger) error {
	if os.Geteuid() != 0 {
		return nil
	}

	uid := os.Getuid()
	gid := os.Getgid()
	logger.Warn("running as root, dropping privileges", "uid", uid, "gid", gid)

	if err := unix.Setgroups([]int{}); err != nil {
		return fmt.Errorf("clearing supplementary groups: %w", err)
	}
	if err := unix.Setgid(gid); err != nil {
		return fmt.Errorf("setgid(%d): %w", gid, err)
	}
	if err := unix.Setuid(uid); err != nil {
		return fmt.Errorf("setuid(%d): %w", uid, err)
	}

	if err := unix.Setuid(0); err == nil {
		return fmt.Errorf("privilege drop did not stick: setuid(0) succeeded")
	}

	logger.Info("privileges dropped")
	return nil
}

// LockMemory locks the process's pages into RAM so shared-memory
// mappings and the session token never hit swap. Failure is reported
// but callers treat it as a warning: the compositor still functions,
// just without the swap guarantee.
func LockMemory() error {
	if err := unix.Mlockall(unix.MCL_CURRENT | unix.MCL_FUTURE); err != nil {
		return fmt.Errorf("mlockall: %w", err)
	}
	return nil
}

// DisableCoreDumps marks the process non-dumpable so client pixel data
// and the session token cannot leak through a core file.
func DisableCoreDumps() error {
	if err := unix.Prctl(unix.PR_SET_DUMPABLE, 0, 0, 0, 0); err != nil {
		return fmt.Errorf("prctl(PR_SET_DUMPABLE, 0): %w", err)
	}
	return nil
}
