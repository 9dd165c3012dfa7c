// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/arcaferry/arcaferry/services/arcaferry/httpclient"
)

// Version is the server's reported facade version, surfaced in /api/status.
const Version = "1.0"

// Status handles GET /api/status: a liveness check that also reports
// whether the optional browser-extraction capability is currently usable,
// so a caller can decide up front whether hidden-attribute extraction will
// work for a scrape.
func (e *Engine) Status(c *gin.Context) {
	defer observeDuration("status", time.Now())

	capability := e.SidecarProbe.Get()

	c.JSON(http.StatusOK, StatusResponse{
		Status:                     "ok",
		Version:                    Version,
		Ready:                      true,
		Port:                       e.Config.Port,
		UptimeSeconds:              int64(time.Since(e.StartedAt).Seconds()),
		SupportedBrowsers:          httpclient.GetSupportedBrowsers(),
		BrowserExtractionAvailable: capability.Available,
		BrowserExtractionReason:    capability.Reason,
	})

	observeOutcome("status", "success", "")
}
