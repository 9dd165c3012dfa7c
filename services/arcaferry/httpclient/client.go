// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package httpclient

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/arcaferry/arcaferry/services/arcaferry/apierrors"
	"github.com/arcaferry/arcaferry/services/arcaferry/cookies"
)

const defaultTimeout = 30 * time.Second

// Client is an HTTP client configured with a browser emulation Profile,
// optional cookie jar, and optional bearer token. It centralizes the
// response classification (Cloudflare detection, HTML-instead-of-JSON,
// status-code mapping) every upstream call needs.
type Client struct {
	http    *http.Client
	profile Profile
	jar     *cookies.Jar
	token   string
	limiter *rate.Limiter
}

// Option configures a Client constructed via New.
type Option func(*config)

type config struct {
	jar       *cookies.Jar
	token     string
	timeout   time.Duration
	userAgent string
	rps       float64
	burst     int
}

// WithRatePacing throttles outbound requests from this Client to at most
// rps requests per second, bursting up to burst at a time. Unset (the
// zero value), the Client issues requests unthrottled.
func WithRatePacing(rps float64, burst int) Option {
	return func(c *config) { c.rps = rps; c.burst = burst }
}

// WithCookies attaches a cookie jar whose contents are sent as the Cookie
// header on every request.
func WithCookies(jar *cookies.Jar) Option {
	return func(c *config) { c.jar = jar }
}

// WithBearerToken attaches an Authorization: Bearer header, stripping any
// existing "Bearer "/"bearer " prefix the caller already included.
func WithBearerToken(token string) Option {
	return func(c *config) { c.token = token }
}

// WithTimeout overrides the default 30s request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *config) { c.timeout = d }
}

// WithUserAgent selects the browser emulation profile closest to the given
// User-Agent string. An empty string selects the newest known Chrome
// profile.
func WithUserAgent(ua string) Option {
	return func(c *config) { c.userAgent = ua }
}

// New builds a Client from the given options.
func New(opts ...Option) (*Client, error) {
	cfg := &config{timeout: defaultTimeout}
	for _, opt := range opts {
		opt(cfg)
	}

	token := cfg.token
	if token != "" {
		token = strings.TrimPrefix(token, "Bearer ")
		token = strings.TrimPrefix(token, "bearer ")
		token = strings.TrimSpace(token)
	}

	var limiter *rate.Limiter
	if cfg.rps > 0 {
		burst := cfg.burst
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.rps), burst)
	}

	return &Client{
		http:    &http.Client{Timeout: cfg.timeout},
		profile: ParseUserAgent(cfg.userAgent),
		jar:     cfg.jar,
		token:   token,
		limiter: limiter,
	}, nil
}

// wait blocks until the rate limiter, if configured, admits the next
// outbound request.
func (c *Client) wait(ctx context.Context) error {
	if c.limiter == nil {
		return nil
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return apierrors.New(apierrors.KindTimeout, "rate limiter: %v", err)
	}
	return nil
}

func (c *Client) newRequest(ctx context.Context, method, url string, body []byte) (*http.Request, error) {
	var reader *bytes.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, apierrors.New(apierrors.KindNetworkError, "build request: %v", err)
	}

	req.Header.Set("Accept", "application/json, text/plain, */*")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	req.Header.Set("User-Agent", c.profile.UserAgent)
	if c.profile.SecChUA != "" {
		req.Header.Set("sec-ch-ua", c.profile.SecChUA)
		req.Header.Set("sec-ch-ua-mobile", c.profile.SecChUAMobil)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	if c.jar != nil && !c.jar.IsEmpty() {
		req.Header.Set("Cookie", c.jar.ToHeaderString())
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	return req, nil
}

// GetJSON issues a GET and unmarshals a successful JSON response into out.
func (c *Client) GetJSON(ctx context.Context, url string, out any) error {
	body, err := c.doRequest(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return apierrors.New(apierrors.KindInvalidJSON, "%v", err)
	}
	return nil
}

// GetText issues a GET and returns the successful response body verbatim.
func (c *Client) GetText(ctx context.Context, url string) (string, error) {
	body, err := c.doRequest(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	return string(body), nil
}

// PostJSON issues a POST with a JSON-encoded payload and unmarshals a
// successful JSON response into out.
func (c *Client) PostJSON(ctx context.Context, url string, payload, out any) error {
	encoded, err := json.Marshal(payload)
	if err != nil {
		return apierrors.New(apierrors.KindInvalidJSON, "encode request body: %v", err)
	}
	body, err := c.doRequest(ctx, http.MethodPost, url, encoded)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return apierrors.New(apierrors.KindInvalidJSON, "%v", err)
	}
	return nil
}

// PostText issues a POST with a JSON-encoded payload and returns the
// successful response body verbatim.
func (c *Client) PostText(ctx context.Context, url string, payload any) (string, error) {
	encoded, err := json.Marshal(payload)
	if err != nil {
		return "", apierrors.New(apierrors.KindInvalidJSON, "encode request body: %v", err)
	}
	body, err := c.doRequest(ctx, http.MethodPost, url, encoded)
	if err != nil {
		return "", err
	}
	return string(body), nil
}

// doRequest performs the request and applies the shared
// success/HTML-sniffing/status-code classification.
func (c *Client) doRequest(ctx context.Context, method, url string, payload []byte) ([]byte, error) {
	if err := c.wait(ctx); err != nil {
		return nil, err
	}

	req, err := c.newRequest(ctx, method, url, payload)
	if err != nil {
		return nil, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, classifyTransportError(err)
	}
	defer resp.Body.Close()

	body, readErr := io.ReadAll(resp.Body)
	if readErr != nil {
		return nil, apierrors.New(apierrors.KindNetworkError, "read response body: %v", readErr)
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if looksLikeHTML(body) {
			if looksLikeCloudflare(body) {
				return nil, apierrors.New(apierrors.KindCloudflareBlocked, "Cloudflare challenge detected")
			}
			return nil, apierrors.New(apierrors.KindInvalidJSON, "Received HTML instead of JSON")
		}
		return body, nil
	}

	return nil, statusToError(resp.StatusCode, string(body))
}

func looksLikeHTML(body []byte) bool {
	trimmed := strings.TrimSpace(string(body))
	lower := strings.ToLower(trimmed)
	return strings.HasPrefix(lower, "<!doctype") || strings.HasPrefix(lower, "<html")
}

func looksLikeCloudflare(body []byte) bool {
	s := string(body)
	return strings.Contains(s, "Just a moment") || strings.Contains(s, "cf_chl_opt") || strings.Contains(s, "cloudflare")
}

func classifyTransportError(err error) error {
	msg := err.Error()
	switch {
	case strings.Contains(msg, "timeout") || strings.Contains(msg, "deadline exceeded"):
		return apierrors.New(apierrors.KindTimeout, "%v", err)
	case strings.Contains(msg, "connect"):
		return apierrors.New(apierrors.KindNetworkError, "Connection failed: %v", err)
	default:
		return apierrors.New(apierrors.KindNetworkError, "%v", err)
	}
}

// statusToError maps a non-2xx status code and response body onto the
// apierrors taxonomy, matching the original scraper's Cloudflare-aware
// heuristics.
func statusToError(status int, body string) error {
	display := body
	if strings.TrimSpace(display) == "" {
		display = "Authentication required. Provide cookies and/or bearer_token (Cloudflare may require cf_clearance)."
	}

	looksLikeCF := strings.Contains(body, "Just a moment") ||
		strings.Contains(body, "cf_chl_opt") ||
		strings.Contains(body, "cloudflare") ||
		strings.Contains(body, "cf-")

	switch status {
	case 401:
		return apierrors.New(apierrors.KindUnauthorized, "%s", display)
	case 403:
		if looksLikeCF {
			return apierrors.New(apierrors.KindCloudflareBlocked, "Cloudflare challenge detected")
		}
		return apierrors.New(apierrors.KindUnauthorized, "%s", display)
	case 429:
		return apierrors.RateLimited(60)
	default:
		if looksLikeCF {
			return apierrors.New(apierrors.KindCloudflareBlocked, "Cloudflare challenge detected")
		}
		return apierrors.New(apierrors.KindNetworkError, "HTTP %d: %s", status, display)
	}
}

// PostSSEStream posts a JSON payload and collects a Server-Sent Events
// response into a single string, extracting the "content" delta from each
// OpenAI-style or Quack-style data frame.
func (c *Client) PostSSEStream(ctx context.Context, url string, payload any) (string, error) {
	encoded, err := json.Marshal(payload)
	if err != nil {
		return "", apierrors.New(apierrors.KindInvalidJSON, "encode request body: %v", err)
	}

	if err := c.wait(ctx); err != nil {
		return "", err
	}

	req, err := c.newRequest(ctx, http.MethodPost, url, encoded)
	if err != nil {
		return "", err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", classifyTransportError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return "", statusToError(resp.StatusCode, string(body))
	}

	var collected strings.Builder
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := scanner.Text()
		data, ok := strings.CutPrefix(line, "data: ")
		if !ok {
			continue
		}
		if strings.TrimSpace(data) == "[DONE]" {
			continue
		}

		var frame map[string]any
		if err := json.Unmarshal([]byte(data), &frame); err != nil {
			continue
		}

		if content, ok := extractOpenAIDelta(frame); ok {
			collected.WriteString(content)
			continue
		}
		if content, ok := frame["content"].(string); ok {
			collected.WriteString(content)
		}
	}

	return collected.String(), nil
}

func extractOpenAIDelta(frame map[string]any) (string, bool) {
	choices, ok := frame["choices"].([]any)
	if !ok || len(choices) == 0 {
		return "", false
	}
	choice, ok := choices[0].(map[string]any)
	if !ok {
		return "", false
	}
	delta, ok := choice["delta"].(map[string]any)
	if !ok {
		return "", false
	}
	content, ok := delta["content"].(string)
	return content, ok
}
