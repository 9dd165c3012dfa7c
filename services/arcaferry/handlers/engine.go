// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package handlers implements the HTTP API surface (§4.J): status,
// scrape, batch, import, preview, and a debug/tls diagnostic endpoint,
// all bound to a single gin.Engine by routes.SetupRoutes.
package handlers

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/arcaferry/arcaferry/services/arcaferry/httpclient"
	"github.com/arcaferry/arcaferry/services/arcaferry/session"
	"github.com/arcaferry/arcaferry/services/arcaferry/sidecar"
)

// Config holds the runtime knobs §6's environment variables translate
// into.
type Config struct {
	Port               int
	AvatarTimeout      time.Duration
	SidecarHeaded      bool
	SidecarTrace       bool
	GeminiAPIKey       string
	ArcamageBaseURL    string
	ArcamageAPIToken   string
}

// Engine holds the process-lifetime state shared by every handler:
// the session store, the cached sidecar capability probe (serialized by a
// single mutex across concurrent scrapes, since each invocation owns a
// real browser instance), and configuration.
type Engine struct {
	Config    Config
	Logger    *slog.Logger
	StartedAt time.Time

	Sessions     *session.Manager
	SidecarProbe *sidecar.CachedProbe
	sidecarMu    sync.Mutex
}

// NewEngine constructs an Engine ready to be wired into routes.SetupRoutes.
func NewEngine(cfg Config, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		Config:       cfg,
		Logger:       logger,
		StartedAt:    time.Now(),
		Sessions:     session.NewManager(),
		SidecarProbe: &sidecar.CachedProbe{},
	}
}

// runSidecarSerialized wraps an invocation of the sidecar merge so that at
// most one browser session runs at a time, per §5's "the sidecar is
// additionally serialized across all concurrent scrapes via a process-wide
// mutex."
func (e *Engine) runSidecarSerialized(fn func() (int, string)) (int, string) {
	e.sidecarMu.Lock()
	defer e.sidecarMu.Unlock()
	return fn()
}

func (e *Engine) avatarTimeout() time.Duration {
	if e.Config.AvatarTimeout > 0 {
		return e.Config.AvatarTimeout
	}
	return avatarTimeoutFromEnv()
}

func (e *Engine) sidecarInvokeParams(cookies, bearerToken, userAgent string) sidecar.InvokeParams {
	return sidecar.InvokeParams{
		Cookies:      cookies,
		BearerToken:  bearerToken,
		GeminiAPIKey: e.Config.GeminiAPIKey,
		UserAgent:    userAgent,
		Headed:       e.Config.SidecarHeaded,
		Trace:        e.Config.SidecarTrace,
	}
}

// newHTTPClient is a small indirection point so tests can observe the
// options an acquisition step built its client with, without reaching
// into httpclient internals.
func newHTTPClient(opts ...httpclient.Option) (*httpclient.Client, error) {
	return httpclient.New(opts...)
}

// backgroundContext returns a context detached from any gin request. No
// handler calls it; handlers thread c.Request.Context() straight through.
func backgroundContext() context.Context {
	return context.Background()
}
