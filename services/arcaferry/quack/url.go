// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package quack implements the upstream acquisition protocol: identifying
// a share/dream/raw-id input, resolving it against the correct API host,
// driving the multi-step fetch, and mapping the result onto the CCv3
// schema.
package quack

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/arcaferry/arcaferry/services/arcaferry/apierrors"
)

const (
	PurrlyAPIBase = "https://purrly.ai"
	QuackAPIBase  = "https://quack.im"
)

var rawIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// URLType classifies an input string as pointing to a dream (chat-style)
// share, a plain character share, or neither recognizable shape.
type URLType int

const (
	Unknown URLType = iota
	Share
	Dream
)

var pathKeywords = []string{"dream", "chat", "share", "character", "card"}

// ExtractID implements §4.E's extract_id: pulls the identifying segment
// out of a pasted URL or raw ID string.
func ExtractID(input string) (string, error) {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return "", apierrors.New(apierrors.KindInvalidURL, "Empty input")
	}

	lower := strings.ToLower(trimmed)
	looksLikeURL := strings.Contains(lower, "purrly") || strings.Contains(lower, "quack") || strings.HasPrefix(lower, "http")

	if looksLikeURL {
		parsed, err := url.Parse(trimmed)
		if err == nil {
			segments := splitPath(parsed.Path)

			for _, keyword := range pathKeywords {
				for i, seg := range segments {
					if strings.EqualFold(seg, keyword) && i+1 < len(segments) {
						return segments[i+1], nil
					}
				}
			}

			if len(segments) == 1 {
				return segments[0], nil
			}
		}
	}

	if rawIDPattern.MatchString(trimmed) {
		return trimmed, nil
	}

	return "", apierrors.New(apierrors.KindInvalidURL, "Could not extract an ID from input")
}

func splitPath(path string) []string {
	parts := strings.Split(path, "/")
	segments := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			segments = append(segments, p)
		}
	}
	return segments
}

// ClassifyURL implements §4.E's classify_url.
func ClassifyURL(input string) URLType {
	lower := strings.ToLower(input)

	if strings.Contains(lower, "/dream/") {
		return Dream
	}

	if strings.Contains(lower, "/discovery/share/") || strings.Contains(lower, "/studio/card/") || strings.Contains(lower, "/character/") {
		return Share
	}

	if strings.Contains(lower, "purrly") || strings.Contains(lower, "quack") || strings.HasPrefix(lower, "http") {
		return Share
	}

	return Unknown
}

// SelectAPIBase implements §4.E's select_api_base.
func SelectAPIBase(input string) string {
	lower := strings.ToLower(input)
	if strings.Contains(lower, "quack.im") || strings.Contains(lower, "quack.work") || strings.Contains(lower, "quack.icu") {
		return QuackAPIBase
	}
	return PurrlyAPIBase
}
