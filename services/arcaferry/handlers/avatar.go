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
	"context"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/arcaferry/arcaferry/services/arcaferry/httpclient"
)

const (
	avatarDefaultTimeout = 30 * time.Second
	avatarMinTimeout     = 5 * time.Second
	avatarMaxTimeout     = 180 * time.Second
	avatarAttempts       = 3
	avatarBackoffUnit    = 250 * time.Millisecond
)

var avatarRetryableSubstrings = []string{"timed out", "timeout", "body error", "connection"}

// avatarTimeoutFromEnv resolves ARCAFERRY_AVATAR_TIMEOUT_SECS, clamped to
// [5, 180] seconds, defaulting to 30s.
func avatarTimeoutFromEnv() time.Duration {
	raw := strings.TrimSpace(os.Getenv("ARCAFERRY_AVATAR_TIMEOUT_SECS"))
	if raw == "" {
		return avatarDefaultTimeout
	}
	secs, err := strconv.Atoi(raw)
	if err != nil {
		return avatarDefaultTimeout
	}
	d := time.Duration(secs) * time.Second
	if d < avatarMinTimeout {
		return avatarMinTimeout
	}
	if d > avatarMaxTimeout {
		return avatarMaxTimeout
	}
	return d
}

// fetchAvatarWithBackoff downloads a cover image using a client distinct
// from the one used for the upstream scrape API, since avatar CDN hosts
// have their own reliability characteristics. A transient failure (per
// isRetryableAvatarError) is retried up to avatarAttempts times with a
// 250ms*attempt linear backoff, matching §4.J.
func (e *Engine) fetchAvatarWithBackoff(ctx context.Context, avatarURL string) ([]byte, error) {
	client, err := newHTTPClient(httpclient.WithTimeout(e.avatarTimeout()))
	if err != nil {
		return nil, err
	}

	var lastErr error
	for attempt := 1; attempt <= avatarAttempts; attempt++ {
		text, err := client.GetText(ctx, avatarURL)
		if err == nil {
			return []byte(text), nil
		}
		lastErr = err

		if attempt == avatarAttempts || !isRetryableAvatarError(err) {
			break
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(avatarBackoffUnit * time.Duration(attempt)):
		}
	}

	return nil, lastErr
}

func isRetryableAvatarError(err error) bool {
	msg := strings.ToLower(err.Error())
	for _, substr := range avatarRetryableSubstrings {
		if strings.Contains(msg, substr) {
			return true
		}
	}
	return false
}
