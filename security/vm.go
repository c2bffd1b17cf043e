// Copyright 2026 The Galactica Authors
// SPDX-License-Identifier: Apache-2.0

package security

import (
	"strings"

	"github.com/shirou/gopsutil/process"
)

// hypervisorToolMarkers are command-line substrings that identify a
// client process as a hypervisor tool whose window should be tagged as
// VM-owned. The list matches what the VM management layer launches.
var hypervisorToolMarkers = []string{
	"qemu-system",
	"xen",
	"xl",
}

// isVMProcess reports whether the process looks like a hypervisor
// tool. Best-effort: an unreadable or vanished process classifies as
// non-VM, never as an error.
func isVMProcess(pid int32) bool {
	proc, err := process.NewProcess(pid)
	if err != nil {
		return false
	}
	cmdline, err := proc.Cmdline()
	if err != nil {
		return false
	}
	return matchesHypervisorTool(cmdline)
}

// matchesHypervisorTool applies the substring heuristic to a command
// line. Split out from the /proc read so the matching rules are
// testable without spawning processes.
func matchesHypervisorTool(cmdline string) bool {
	for _, marker := range hypervisorToolMarkers {
		if strings.Contains(cmdline, marker) {
			return true
		}
	}
	return false
}
