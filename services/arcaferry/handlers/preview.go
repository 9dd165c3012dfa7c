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
	"github.com/arcaferry/arcaferry/services/arcaferry/cookies"
	"github.com/arcaferry/arcaferry/services/arcaferry/quack"
)

const (
	previewIntroRuneLimit = 200
	previewIntroEllipsis  = "..."
	previewTagLimit       = 10
)

// truncateRunes truncates s to at most n runes, the appended ellipsis
// included, if s is longer than n runes. Operating on the rune slice (not
// byte indices) avoids splitting a multi-byte UTF-8 character mid-sequence.
func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	keep := n - len([]rune(previewIntroEllipsis))
	if keep < 0 {
		keep = 0
	}
	return string(runes[:keep]) + previewIntroEllipsis
}

// Preview handles POST /api/preview: a lightweight, share-info-only look
// at a character ahead of a full scrape, so a caller can show a confirm
// dialog without paying for lorebook/hidden-attribute resolution.
func (e *Engine) Preview(c *gin.Context) {
	defer observeDuration("preview", time.Now())

	var req PreviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, "preview", parseError(err))
		return
	}

	var info *quack.CharacterInfo
	var lorebookCount int
	source := "api"

	if quackInput := strings.TrimSpace(stripBOM(req.QuackInput)); quackInput != "" {
		source = "json"
		var parsed quack.CharacterInfo
		if err := json.Unmarshal([]byte(quackInput), &parsed); err != nil {
			abortWithError(c, "preview", apierrors.New(apierrors.KindInvalidJSON, "%v", err))
			return
		}
		info = &parsed
		lorebookCount = len(parsed.CharacterBooks)
	} else {
		if strings.TrimSpace(req.URL) == "" {
			abortWithError(c, "preview", apierrors.New(apierrors.KindMissingField, "url"))
			return
		}
		id, err := quack.ExtractID(req.URL)
		if err != nil {
			abortWithError(c, "preview", err)
			return
		}
		apiBase := quack.SelectAPIBase(req.URL)

		bearerToken := req.BearerToken
		var jar *cookies.Jar
		if strings.TrimSpace(req.Cookies) != "" {
			jar, err = cookies.Parse(req.Cookies)
			if err != nil {
				abortWithError(c, "preview", err)
				return
			}
		} else if remembered := e.Sessions.Get(apiBase); remembered != nil {
			jar, err = remembered.GetCookieJar()
			if err != nil {
				abortWithError(c, "preview", err)
				return
			}
			if bearerToken == "" {
				bearerToken = remembered.BearerToken()
			}
		}
		client, err := quack.NewClientWithTimeout(apiBase, jar, bearerToken, scrapeTimeout, req.UserAgent)
		if err != nil {
			abortWithError(c, "preview", err)
			return
		}
		fetched, err := client.FetchShareInfo(c.Request.Context(), id)
		if err != nil {
			abortWithError(c, "preview", err)
			return
		}
		info = fetched
		lorebookCount = len(fetched.CharacterBooks)
	}

	c.JSON(http.StatusOK, PreviewResponse{
		Success:       true,
		Name:          info.Name,
		Creator:       firstNonEmpty(info.Creator, info.AuthorName),
		Intro:         truncateRunes(firstNonEmpty(info.Intro, info.Description), previewIntroRuneLimit),
		Tags:          capTags(info.Extra.Tags, previewTagLimit),
		AttrCount:     countAttrs(*info),
		LorebookCount: lorebookCount,
		Source:        source,
	})

	observeOutcome("preview", "success", "")
}

// countAttrs tallies the attribute entries carried across every char_list
// item, matching the three sequences the upstream API emits per item.
func countAttrs(info quack.CharacterInfo) int {
	total := 0
	for _, item := range info.CharList {
		total += len(item.Attrs) + len(item.AdviseAttrs) + len(item.CustomAttrs)
	}
	return total
}

func capTags(tags []string, limit int) []string {
	if len(tags) <= limit {
		return tags
	}
	return tags[:limit]
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
