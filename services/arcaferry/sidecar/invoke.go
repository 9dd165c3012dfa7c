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
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/arcaferry/arcaferry/services/arcaferry/apierrors"
	"github.com/arcaferry/arcaferry/services/arcaferry/quack"
)

const defaultTimeout = 300 * time.Second

// InvokeParams carries the optional credential and steering material
// forwarded to the extraction script as flags.
type InvokeParams struct {
	Cookies      string
	BearerToken  string
	GeminiAPIKey string
	UserAgent    string
	DreamURL     string
	Headed       bool // alias of --no-headless, from ARCAFERRY_SIDECAR_HEADED
	Trace        bool // enables --trace and dual-reader stderr streaming
}

// Result is what the script reported back: the harvested attributes plus
// whatever it logged to stderr along the way.
type Result struct {
	Attrs  []quack.Attribute
	Stderr string
}

func envFlag(name string) bool {
	v := strings.TrimSpace(os.Getenv(name))
	return v != "" && v != "0" && v != "false" && v != "False"
}

func sidecarTimeout() time.Duration {
	if s := os.Getenv("ARCAFERRY_SIDECAR_TIMEOUT_SECS"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			return time.Duration(n) * time.Second
		}
	}
	return defaultTimeout
}

// ExtractHiddenSettings spawns the extraction script against shareURL,
// asking it to fill in hiddenLabels, and waits for its result under a
// timeout. In trace mode stderr is streamed to logger line-by-line as the
// script runs; otherwise output is collected only after the process exits.
func ExtractHiddenSettings(ctx context.Context, logger *slog.Logger, shareURL string, hiddenLabels []string, params InvokeParams) (*Result, error) {
	scriptPath := ScriptPath()
	if _, err := os.Stat(scriptPath); err != nil {
		return nil, apierrors.New(apierrors.KindBrowserError, "Sidecar script not found: %s", scriptPath)
	}

	labelsJSON, err := json.Marshal(hiddenLabels)
	if err != nil {
		return nil, apierrors.New(apierrors.KindInvalidJSON, "Failed to encode labels: %v", err)
	}

	timeout := sidecarTimeout()
	headed := params.Headed || envFlag("ARCAFERRY_SIDECAR_HEADED")
	trace := params.Trace || envFlag("ARCAFERRY_SIDECAR_TRACE")

	args := []string{scriptPath, "--url", shareURL, "--labels", string(labelsJSON)}
	if headed {
		args = append(args, "--headed")
	}
	if trace {
		args = append(args, "--trace")
	}
	if strings.TrimSpace(params.Cookies) != "" {
		args = append(args, "--cookies", params.Cookies)
	}
	if strings.TrimSpace(params.BearerToken) != "" {
		args = append(args, "--token", params.BearerToken)
	}
	if strings.TrimSpace(params.GeminiAPIKey) != "" {
		args = append(args, "--gemini-api-key", params.GeminiAPIKey)
	}
	if strings.TrimSpace(params.UserAgent) != "" {
		args = append(args, "--user-agent", params.UserAgent)
	}
	if strings.TrimSpace(params.DreamURL) != "" {
		args = append(args, "--dream-url", params.DreamURL)
	}

	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, "python3", args...)
	cmd.Env = append(os.Environ(), "PYTHONUNBUFFERED=1")
	cmd.Stdin = nil
	cmd.Cancel = func() error { return cmd.Process.Kill() }

	var stdout, stderr []byte
	if !trace {
		stdout, stderr, err = runAndCollect(cmd)
	} else {
		stdout, stderr, err = runWithStreamingStderr(cmd, logger)
	}

	if runCtx.Err() == context.DeadlineExceeded {
		return nil, apierrors.New(apierrors.KindBrowserError, "Sidecar timeout (%ds)", int(timeout.Seconds()))
	}
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return nil, apierrors.New(apierrors.KindBrowserError, "Sidecar exited with %s: %s", exitErr, strings.TrimSpace(string(stderr)))
		}
		return nil, apierrors.New(apierrors.KindBrowserError, "Failed to spawn python sidecar: %v", err)
	}

	stderrStr := strings.TrimSpace(string(stderr))

	var attrs []quack.Attribute
	if err := json.Unmarshal(stdout, &attrs); err != nil {
		return nil, apierrors.New(apierrors.KindBrowserError, "Failed to parse sidecar JSON output: %v (stdout: %s)", err, strings.TrimSpace(string(stdout)))
	}

	return &Result{Attrs: attrs, Stderr: stderrStr}, nil
}

func runAndCollect(cmd *exec.Cmd) (stdout, stderr []byte, err error) {
	var outBuf, errBuf bytes.Buffer
	cmd.Stdout = &outBuf
	cmd.Stderr = &errBuf
	err = cmd.Run()
	return outBuf.Bytes(), errBuf.Bytes(), err
}

// runWithStreamingStderr mirrors trace mode's cooperative dual readers:
// stderr is scanned line-by-line and logged as it arrives, stdout is
// collected in full, and both drain concurrently with the process exit.
func runWithStreamingStderr(cmd *exec.Cmd, logger *slog.Logger) (stdout, stderr []byte, err error) {
	stdoutPipe, err := cmd.StdoutPipe()
	if err != nil {
		return nil, nil, fmt.Errorf("sidecar stdout not captured: %w", err)
	}
	stderrPipe, err := cmd.StderrPipe()
	if err != nil {
		return nil, nil, fmt.Errorf("sidecar stderr not captured: %w", err)
	}

	if startErr := cmd.Start(); startErr != nil {
		return nil, nil, startErr
	}

	stderrDone := make(chan string, 1)
	go func() {
		var collected strings.Builder
		scanner := bufio.NewScanner(stderrPipe)
		for scanner.Scan() {
			line := strings.TrimRight(scanner.Text(), "\r\n")
			if line == "" {
				continue
			}
			if logger != nil {
				logger.Info("sidecar", "line", line)
			}
			collected.WriteString(line)
			collected.WriteByte('\n')
		}
		stderrDone <- collected.String()
	}()

	stdoutBuf, readErr := io.ReadAll(stdoutPipe)

	waitErr := cmd.Wait()
	stderrStr := <-stderrDone

	if readErr != nil && waitErr == nil {
		waitErr = readErr
	}
	return stdoutBuf, []byte(stderrStr), waitErr
}
