// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package forwarding implements a client for pushing an already-acquired
// card onward to a downstream character-card library ("Arcamage"), as a
// convenience for callers who want scraped cards to land directly in their
// own collection instead of round-tripping through a file download.
//
// This package is library-only: nothing in the HTTP API surface wires it
// to an inbound route, since forwarding a card to a third-party service is
// an opt-in action a caller takes deliberately, not a side effect of
// calling /api/scrape.
package forwarding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/arcaferry/arcaferry/services/arcaferry/apierrors"
	"github.com/arcaferry/arcaferry/services/arcaferry/ccv3"
)

const (
	clientVersion  = "1.0"
	defaultTimeout = 30 * time.Second
)

// ImportResponse is the downstream service's response to an import
// attempt.
type ImportResponse struct {
	Success   bool   `json:"success"`
	CardID    string `json:"card_id,omitempty"`
	Message   string `json:"message,omitempty"`
	ErrorCode string `json:"error_code,omitempty"`
}

// Client pushes CCv3 cards to a downstream Arcamage instance.
type Client struct {
	baseURL  string
	apiToken string
	http     *http.Client
}

// New builds a Client against baseURL (trailing slash trimmed), optionally
// authenticated with apiToken.
func New(baseURL, apiToken string) *Client {
	return &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		apiToken: apiToken,
		http:     &http.Client{Timeout: defaultTimeout},
	}
}

// BaseURL returns the configured downstream base URL.
func (c *Client) BaseURL() string { return c.baseURL }

// SetBaseURL updates the downstream base URL.
func (c *Client) SetBaseURL(baseURL string) { c.baseURL = strings.TrimRight(baseURL, "/") }

// SetAPIToken updates the bearer token used for authenticated requests.
func (c *Client) SetAPIToken(token string) { c.apiToken = token }

func (c *Client) authorize(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Arcaferry-Version", clientVersion)
	if c.apiToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiToken)
	}
}

// SendJSON posts a CCv3 card as JSON to the downstream import endpoint.
func (c *Client) SendJSON(ctx context.Context, card ccv3.Card) (*ImportResponse, error) {
	body, err := json.Marshal(card)
	if err != nil {
		return nil, apierrors.New(apierrors.KindInvalidJSON, "marshal card: %v", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/import/remote", bytes.NewReader(body))
	if err != nil {
		return nil, apierrors.New(apierrors.KindNetworkError, "build request: %v", err)
	}
	c.authorize(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, apierrors.New(apierrors.KindNetworkError, "%v", err)
	}
	defer resp.Body.Close()

	return c.handleResponse(resp)
}

// SendPNG posts a card-embedded PNG as a multipart upload to the
// downstream import endpoint.
func (c *Client) SendPNG(ctx context.Context, pngData []byte, filename string) (*ImportResponse, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return nil, apierrors.New(apierrors.KindIOError, "build multipart body: %v", err)
	}
	if _, err := part.Write(pngData); err != nil {
		return nil, apierrors.New(apierrors.KindIOError, "write PNG body: %v", err)
	}
	if err := writer.Close(); err != nil {
		return nil, apierrors.New(apierrors.KindIOError, "close multipart writer: %v", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/import/remote", &buf)
	if err != nil {
		return nil, apierrors.New(apierrors.KindNetworkError, "build request: %v", err)
	}
	c.authorize(req)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, apierrors.New(apierrors.KindNetworkError, "%v", err)
	}
	defer resp.Body.Close()

	return c.handleResponse(resp)
}

// TestConnection pings the downstream health endpoint, swallowing any
// error into a plain false.
func (c *Client) TestConnection(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/health", nil)
	if err != nil {
		return false
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode >= 200 && resp.StatusCode < 300
}

func (c *Client) handleResponse(resp *http.Response) (*ImportResponse, error) {
	var parsed ImportResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, apierrors.New(apierrors.KindInvalidJSON, "decode import response: %v", err)
	}

	switch parsed.ErrorCode {
	case "":
		return &parsed, nil
	case "VERSION_MISMATCH":
		return &parsed, apierrors.VersionMismatch(clientVersion, parsed.Message)
	case "UNAUTHORIZED":
		return &parsed, apierrors.New(apierrors.KindUnauthorized, "%s", parsed.Message)
	default:
		return &parsed, apierrors.New(apierrors.KindImportRejected, "%s", fmt.Sprintf("%s: %s", parsed.ErrorCode, parsed.Message))
	}
}
