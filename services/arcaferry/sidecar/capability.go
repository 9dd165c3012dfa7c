// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package sidecar drives an external Python process that puppets a real
// browser to harvest character attributes a studio card marks hidden but
// leaves empty. It is an optional capability: when the interpreter, its
// browser-automation modules, or the browser binary itself aren't present,
// the server degrades to returning cards without those values filled in.
package sidecar

import (
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// Capability is the outcome of probing for a working browser-automation
// environment.
type Capability struct {
	Available bool
	Reason    string // populated when Available is false
	IsError   bool   // true if the probe itself failed, vs. a clean "not installed"
}

func notInstalled(reason string) Capability { return Capability{Reason: reason} }
func probeError(reason string) Capability   { return Capability{Reason: reason, IsError: true} }

// ScriptPath resolves the extraction script's location: the
// ARCAFERRY_SIDECAR_SCRIPT_PATH override if set, else the relative path
// scripts/extract_hidden.py, resolved against the working directory.
func ScriptPath() string {
	if p := strings.TrimSpace(os.Getenv("ARCAFERRY_SIDECAR_SCRIPT_PATH")); p != "" {
		return p
	}
	return filepath.Join("scripts", "extract_hidden.py")
}

func runPythonCheck(args ...string) ([]byte, []byte, error) {
	cmd := exec.Command("python3", args...)
	cmd.Stdin = nil
	var stdout, stderr strings.Builder
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	return []byte(stdout.String()), []byte(stderr.String()), err
}

const firefoxCheckScript = `
import os
import sys
from playwright.sync_api import sync_playwright

p = sync_playwright().start()
path = p.firefox.executable_path
p.stop()
sys.exit(0 if path and os.path.exists(path) else 1)
`

// DetectCapability probes for python3, the camoufox and playwright modules,
// and a Playwright-managed Firefox executable, without launching a browser.
func DetectCapability() Capability {
	scriptPath := ScriptPath()
	if _, err := os.Stat(scriptPath); err != nil {
		return notInstalled(fmt.Sprintf("Sidecar script not found: %s", scriptPath))
	}

	_, stderr, err := runPythonCheck("--version")
	if err != nil {
		if _, isExit := err.(*exec.ExitError); !isExit {
			return notInstalled(fmt.Sprintf("python3 not found: %v", err))
		}
		return probeError(fmt.Sprintf("python3 failed: %s", strings.TrimSpace(string(stderr))))
	}

	if _, _, err := runPythonCheck("-c", "import camoufox.async_api"); err != nil {
		if _, isExit := err.(*exec.ExitError); !isExit {
			return probeError(fmt.Sprintf("Failed to execute python3 import check: %v", err))
		}
		return notInstalled("Python module missing: camoufox")
	}

	if _, _, err := runPythonCheck("-c", "import playwright.async_api"); err != nil {
		if _, isExit := err.(*exec.ExitError); !isExit {
			return probeError(fmt.Sprintf("Failed to execute python3 import check: %v", err))
		}
		return notInstalled("Python module missing: playwright")
	}

	if _, _, err := runPythonCheck("-c", firefoxCheckScript); err != nil {
		if _, ok := err.(*exec.ExitError); !ok {
			return probeError(fmt.Sprintf("Failed to execute firefox check: %v", err))
		}
		return notInstalled("Playwright Firefox not installed (run: python -m playwright install firefox)")
	}

	return Capability{Available: true}
}

// CachedProbe memoizes the most recent DetectCapability result, since the
// probe shells out several times. A watcher on the script's parent
// directory invalidates the cache when the script itself is written,
// created, removed or renamed, so installing or replacing the script after
// server start needs no restart. Installing the Python modules or the
// browser alone does not touch the script and does not invalidate the cache.
type CachedProbe struct {
	mu     sync.RWMutex
	result *Capability
}

// Get runs the probe if nothing is cached yet, and returns the cached
// result otherwise.
func (p *CachedProbe) Get() Capability {
	p.mu.RLock()
	if p.result != nil {
		defer p.mu.RUnlock()
		return *p.result
	}
	p.mu.RUnlock()

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.result == nil {
		result := DetectCapability()
		p.result = &result
	}
	return *p.result
}

// Invalidate clears the cached result so the next Get re-probes.
func (p *CachedProbe) Invalidate() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.result = nil
}

// WatchScript starts an fsnotify watcher on the script path's parent
// directory and invalidates the cache whenever that path is written,
// created, removed, or renamed. The watcher runs until the returned stop
// function is called.
func (p *CachedProbe) WatchScript(logger *slog.Logger) (stop func(), err error) {
	scriptPath := ScriptPath()
	dir := filepath.Dir(scriptPath)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create sidecar script watcher: %w", err)
	}
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("watch sidecar script directory %s: %w", dir, err)
	}

	done := make(chan struct{})
	go func() {
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != filepath.Clean(scriptPath) {
					continue
				}
				p.Invalidate()
				if logger != nil {
					logger.Info("sidecar script changed, invalidating capability cache", "path", scriptPath, "op", event.Op.String())
				}
			case werr, ok := <-watcher.Errors:
				if !ok {
					return
				}
				if logger != nil {
					logger.Warn("sidecar script watcher error", "error", werr)
				}
			case <-done:
				return
			}
		}
	}()

	return func() {
		close(done)
		watcher.Close()
	}, nil
}
