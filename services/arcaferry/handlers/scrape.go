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
)

// Scrape handles POST /api/scrape: a single end-to-end acquisition of one
// character URL, mapped to CCv3 and optionally embedded into a PNG.
func (e *Engine) Scrape(c *gin.Context) {
	defer observeDuration("scrape", time.Now())

	var req ScrapeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, "scrape", parseError(err))
		return
	}

	result, err := e.resolveAndMap(c.Request.Context(), req.URL, req.credentials)
	if err != nil {
		abortWithError(c, "scrape", err)
		return
	}

	avatarB64, pngB64, warnings := e.exportOutput(c.Request.Context(), result.Card, result.AvatarURL, req.OutputFormat)
	warnings = append(result.Warnings, warnings...)

	c.JSON(http.StatusOK, ScrapeResponse{
		Success:        true,
		Card:           &result.Card,
		AvatarBase64:   avatarB64,
		PNGBase64:      pngB64,
		Warnings:       warnings,
		VersionWarning: versionWarningFor(req.UserAgent),
	})

	observeOutcome("scrape", "success", "")
}
