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
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/arcaferry/arcaferry/services/arcaferry/apierrors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// requirePython3 skips a test when python3 isn't on PATH, since these
// tests exercise the real subprocess plumbing rather than a mock.
func requirePython3(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("python3"); err != nil {
		t.Skip("python3 not available")
	}
}

func writeScript(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "script.py")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o755))
	return path
}

func TestSidecarTimeoutIsReported(t *testing.T) {
	requirePython3(t)

	script := writeScript(t, "import time\ntime.sleep(30)\n")
	t.Setenv("ARCAFERRY_SIDECAR_SCRIPT_PATH", script)
	t.Setenv("ARCAFERRY_SIDECAR_TIMEOUT_SECS", "1")

	_, err := ExtractHiddenSettings(context.Background(), nil, "https://example.invalid/share", []string{"Body"}, InvokeParams{})
	require.Error(t, err)

	apiErr, ok := apierrors.As(err)
	require.True(t, ok)
	assert.Equal(t, apierrors.KindBrowserError, apiErr.Kind)
	assert.Contains(t, strings.ToLower(apiErr.Message), "timeout")
}

func TestSidecarMissingScriptIsReported(t *testing.T) {
	dir := t.TempDir()
	missing := filepath.Join(dir, "does-not-exist.py")
	t.Setenv("ARCAFERRY_SIDECAR_SCRIPT_PATH", missing)

	_, err := ExtractHiddenSettings(context.Background(), nil, "https://example.invalid/share", []string{"Body"}, InvokeParams{})
	require.Error(t, err)

	apiErr, ok := apierrors.As(err)
	require.True(t, ok)
	assert.Contains(t, strings.ToLower(apiErr.Message), "script")
}

func TestSidecarParsesJSONAttributes(t *testing.T) {
	requirePython3(t)

	script := writeScript(t, `
import sys
print('[{"label":"Body","value":"tall"}]')
`)
	t.Setenv("ARCAFERRY_SIDECAR_SCRIPT_PATH", script)

	result, err := ExtractHiddenSettings(context.Background(), nil, "https://example.invalid/share", []string{"Body"}, InvokeParams{})
	require.NoError(t, err)
	require.Len(t, result.Attrs, 1)
	assert.Equal(t, "Body", result.Attrs[0].Label)
	assert.Equal(t, "tall", result.Attrs[0].Value)
}

func TestSidecarNonZeroExitIsBrowserError(t *testing.T) {
	requirePython3(t)

	script := writeScript(t, "import sys\nsys.exit(1)\n")
	t.Setenv("ARCAFERRY_SIDECAR_SCRIPT_PATH", script)

	_, err := ExtractHiddenSettings(context.Background(), nil, "https://example.invalid/share", []string{"Body"}, InvokeParams{})
	require.Error(t, err)

	apiErr, ok := apierrors.As(err)
	require.True(t, ok)
	assert.Equal(t, apierrors.KindBrowserError, apiErr.Kind)
}
