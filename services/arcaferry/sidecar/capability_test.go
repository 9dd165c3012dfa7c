// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package sidecar

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetectCapabilityReportsMissingScript(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("ARCAFERRY_SIDECAR_SCRIPT_PATH", filepath.Join(dir, "nope.py"))

	cap := DetectCapability()
	assert.False(t, cap.Available)
	assert.False(t, cap.IsError)
	assert.Contains(t, cap.Reason, "not found")
}

func TestScriptPathHonorsEnvOverride(t *testing.T) {
	t.Setenv("ARCAFERRY_SIDECAR_SCRIPT_PATH", "/tmp/custom.py")
	assert.Equal(t, "/tmp/custom.py", ScriptPath())
}

func TestScriptPathDefaultsUnderScriptsDir(t *testing.T) {
	t.Setenv("ARCAFERRY_SIDECAR_SCRIPT_PATH", "")
	assert.Equal(t, filepath.Join("scripts", "extract_hidden.py"), ScriptPath())
}

func TestCachedProbeMemoizes(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("ARCAFERRY_SIDECAR_SCRIPT_PATH", filepath.Join(dir, "nope.py"))

	probe := &CachedProbe{}
	first := probe.Get()
	second := probe.Get()
	assert.Equal(t, first, second)
}
