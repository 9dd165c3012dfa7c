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
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/arcaferry/arcaferry/services/arcaferry/apierrors"
	"github.com/arcaferry/arcaferry/services/arcaferry/quack"
)

const modeOnlyLorebook = "only_lorebook"

// stripBOM removes a leading UTF-8 byte-order mark, which some editors
// prepend to pasted JSON and which would otherwise make the leading-brace
// sniff below misfire.
func stripBOM(s string) string {
	return strings.TrimPrefix(s, "﻿")
}

// isJSONPaste reports whether input looks like a pasted JSON object rather
// than a share URL or raw id: BOM-stripped and trimmed, it starts with '{'.
func isJSONPaste(input string) bool {
	trimmed := strings.TrimSpace(stripBOM(input))
	return strings.HasPrefix(trimmed, "{")
}

// Import handles POST /api/import. The source is either a share URL (full
// network acquisition) or a pasted JSON character payload (mapped
// directly, no network call). The sidecar is invoked only when the source
// is a URL ("api") and mode is "full" — a pasted JSON payload never
// triggers a browser, and an only_lorebook request never needs one either.
func (e *Engine) Import(c *gin.Context) {
	defer observeDuration("import", time.Now())

	var req ImportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, "import", parseError(err))
		return
	}

	mode := req.Mode
	if mode == "" {
		mode = "full"
	}

	quackInput := strings.TrimSpace(stripBOM(req.QuackInput))
	source := "api"
	if quackInput != "" || isJSONPaste(req.QuackInput) {
		source = "json"
	}

	var info *quack.CharacterInfo
	var lorebookEntries []quack.LorebookEntryRaw

	if source == "json" {
		var parsed quack.CharacterInfo
		if err := json.Unmarshal([]byte(quackInput), &parsed); err != nil {
			abortWithError(c, "import", apierrors.New(apierrors.KindInvalidJSON, "%v", err))
			return
		}
		info = &parsed
		lorebookEntries = parsed.CharacterBooks
	} else {
		if strings.TrimSpace(req.URL) == "" {
			abortWithError(c, "import", apierrors.New(apierrors.KindMissingField, "url"))
			return
		}

		fetched, entries, _, err := e.fetchRaw(c.Request.Context(), req.URL, req.credentials)
		if err != nil {
			abortWithError(c, "import", err)
			return
		}
		info, lorebookEntries = fetched, entries

		if mode == "full" {
			e.fillHidden(c.Request.Context(), info, req.URL, req.credentials)
		}
	}

	card := quack.MapToCard(*info, nil, lorebookEntries)

	if mode == modeOnlyLorebook {
		if card.Data.CharacterBook == nil {
			abortWithError(c, "import", apierrors.New(apierrors.KindValidationError, "No lorebook data found"))
			return
		}
		c.JSON(http.StatusOK, ImportResponse{Success: true, Lorebook: card.Data.CharacterBook})
		observeOutcome("import", "success", "")
		return
	}

	avatarURL := quack.AvatarURL(info.Picture)
	avatarB64, pngB64, warnings := e.exportOutput(c.Request.Context(), card, avatarURL, req.OutputFormat)

	c.JSON(http.StatusOK, ImportResponse{
		Success:        true,
		Card:           &card,
		AvatarBase64:   avatarB64,
		PNGBase64:      pngB64,
		Warnings:       warnings,
		VersionWarning: versionWarningFor(req.UserAgent),
	})
	observeOutcome("import", "success", "")
}
