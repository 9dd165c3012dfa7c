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
	"github.com/arcaferry/arcaferry/services/arcaferry/ccv3"
	"github.com/arcaferry/arcaferry/services/arcaferry/httpclient"
)

// credentials is embedded in every request DTO that can authenticate
// against the upstream API directly.
type credentials struct {
	Cookies     string `json:"cookies,omitempty"`
	BearerToken string `json:"bearer_token,omitempty"`
	UserAgent   string `json:"user_agent,omitempty"`
	GeminiKey   string `json:"gemini_api_key,omitempty"`
}

// StatusResponse answers GET /api/status.
type StatusResponse struct {
	Status                     string                       `json:"status"`
	Version                    string                       `json:"version"`
	Ready                      bool                          `json:"ready"`
	Port                       int                           `json:"port"`
	UptimeSeconds              int64                         `json:"uptime_seconds"`
	SupportedBrowsers          httpclient.SupportedBrowsers `json:"supported_browsers"`
	BrowserExtractionAvailable bool                          `json:"browser_extraction_available"`
	BrowserExtractionReason    string                        `json:"browser_extraction_reason,omitempty"`
}

// ScrapeRequest is the body of POST /api/scrape.
type ScrapeRequest struct {
	URL          string `json:"url" binding:"required"`
	OutputFormat string `json:"output_format,omitempty"` // "json" (default) or "png"
	credentials
}

// ScrapeResponse is the body of every scrape-shaped response (scrape,
// batch items, and the url-driven branch of import).
type ScrapeResponse struct {
	Success         bool                     `json:"success"`
	Card            *ccv3.Card               `json:"card,omitempty"`
	AvatarBase64    string                   `json:"avatar_base64,omitempty"`
	PNGBase64       string                   `json:"png_base64,omitempty"`
	Warnings        []string                 `json:"warnings,omitempty"`
	Error           string                   `json:"error,omitempty"`
	ErrorCode       string                   `json:"error_code,omitempty"`
	VersionWarning  *httpclient.VersionWarning `json:"version_warning,omitempty"`
}

// BatchRequest is the body of POST /api/batch.
type BatchRequest struct {
	URLs         []string `json:"urls" binding:"required"`
	Concurrency  int      `json:"concurrency,omitempty"`
	OutputFormat string   `json:"output_format,omitempty"`
	credentials
}

// BatchItemResult pairs one URL's outcome with the URL itself.
type BatchItemResult struct {
	URL string `json:"url"`
	ScrapeResponse
}

// BatchResponse is the body of POST /api/batch's response.
type BatchResponse struct {
	Success   bool              `json:"success"`
	Total     int               `json:"total"`
	Succeeded int               `json:"succeeded"`
	Failed    int               `json:"failed"`
	Results   []BatchItemResult `json:"results"`
}

// ImportRequest is the body of POST /api/import. A non-empty QuackInput
// (pasted JSON) is the source; otherwise URL is; see Engine.Import.
type ImportRequest struct {
	URL          string `json:"url,omitempty"`
	QuackInput   string `json:"quack_input,omitempty"`
	Mode         string `json:"mode,omitempty"` // "full" (default) or "only_lorebook"
	OutputFormat string `json:"output_format,omitempty"`
	credentials
}

// ImportResponse is the body of POST /api/import's response. Shares the
// scrape shape, plus Lorebook for the only_lorebook mode.
type ImportResponse struct {
	Success        bool                       `json:"success"`
	Card           *ccv3.Card                 `json:"card,omitempty"`
	Lorebook       *ccv3.Lorebook             `json:"lorebook,omitempty"`
	AvatarBase64   string                     `json:"avatar_base64,omitempty"`
	PNGBase64      string                     `json:"png_base64,omitempty"`
	Warnings       []string                   `json:"warnings,omitempty"`
	Error          string                     `json:"error,omitempty"`
	ErrorCode      string                     `json:"error_code,omitempty"`
	VersionWarning *httpclient.VersionWarning `json:"version_warning,omitempty"`
}

// PreviewRequest is the body of POST /api/preview.
type PreviewRequest struct {
	URL        string `json:"url,omitempty"`
	QuackInput string `json:"quack_input,omitempty"`
	credentials
}

// PreviewResponse is the body of POST /api/preview's response.
type PreviewResponse struct {
	Success       bool     `json:"success"`
	Name          string   `json:"name,omitempty"`
	Creator       string   `json:"creator,omitempty"`
	Intro         string   `json:"intro,omitempty"`
	Tags          []string `json:"tags,omitempty"`
	AttrCount     int      `json:"attr_count"`
	LorebookCount int      `json:"lorebook_count"`
	Source        string   `json:"source,omitempty"` // "api" or "json"
	Error         string   `json:"error,omitempty"`
	ErrorCode     string   `json:"error_code,omitempty"`
}

// errorResponse is the shared shape any handler emits alongside a non-2xx
// status, per §4.L.
type errorResponse struct {
	Error     string `json:"error"`
	ErrorCode string `json:"error_code"`
}
