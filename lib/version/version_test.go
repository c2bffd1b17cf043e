// Copyright 2026 The Galactica Authors
// SPDX-License-Identifier: Apache-2.0

package version

import (
	"runtime"
	"strings"
	"testing"
)

func TestInfo_MarksDirtyBuilds(t *testing.T) {
	defer func(d string) { GitDirty = d }(GitDirty)

	GitDirty = "false"
	if strings.Contains(Info(), "-dirty") {
		t.Errorf("clean build marked dirty: %q", Info())
	}

	GitDirty = "true"
	if !strings.Contains(Info(), "-dirty") {
		t.Errorf("dirty build not marked: %q", Info())
	}
}

func TestFull_IncludesPlatform(t *testing.T) {
	full := Full()
	if !strings.Contains(full, Info()) {
		t.Errorf("Full() missing Info(): %q", full)
	}
	if !strings.Contains(full, runtime.Version()) {
		t.Errorf("Full() missing Go version: %q", full)
	}
	if !strings.Contains(full, runtime.GOOS+"/"+runtime.GOARCH) {
		t.Errorf("Full() missing platform: %q", full)
	}
}
