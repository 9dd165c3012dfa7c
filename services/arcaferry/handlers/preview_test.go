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
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arcaferry/arcaferry/services/arcaferry/quack"
)

func TestPreview_JSONPasteSource(t *testing.T) {
	engine := newTestEngine()
	router := gin.New()
	router.POST("/api/preview", engine.Preview)

	body, err := json.Marshal(PreviewRequest{QuackInput: pastedCharacterJSON})
	require.NoError(t, err)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/preview", bytes.NewReader(body)))

	require.Equal(t, http.StatusOK, w.Code)

	var resp PreviewResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, "Momo", resp.Name)
	assert.Equal(t, "json", resp.Source)
	assert.Equal(t, 1, resp.LorebookCount)
}

func TestPreview_MissingURLAndQuackInput(t *testing.T) {
	engine := newTestEngine()
	router := gin.New()
	router.POST("/api/preview", engine.Preview)

	body, err := json.Marshal(PreviewRequest{})
	require.NoError(t, err)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/preview", bytes.NewReader(body)))

	assert.Equal(t, http.StatusBadGateway, w.Code)
}

func TestTruncateRunes(t *testing.T) {
	assert.Equal(t, "hello", truncateRunes("hello", 10))

	long := strings.Repeat("a", 205)
	truncated := truncateRunes(long, previewIntroRuneLimit)
	assert.True(t, strings.HasSuffix(truncated, "..."))
	assert.Len(t, []rune(truncated), previewIntroRuneLimit)

	multibyte := strings.Repeat("望", 205)
	truncated = truncateRunes(multibyte, previewIntroRuneLimit)
	assert.Equal(t, previewIntroRuneLimit, len([]rune(truncated)))
}

func TestCountAttrs(t *testing.T) {
	info := quack.CharacterInfo{
		CharList: []quack.CharListItem{
			{Attrs: []quack.Attribute{{Name: "a"}, {Name: "b"}}, AdviseAttrs: []quack.Attribute{{Name: "c"}}},
			{CustomAttrs: []quack.Attribute{{Name: "d"}}},
		},
	}
	assert.Equal(t, 4, countAttrs(info))
}

func TestCapTags(t *testing.T) {
	tags := []string{"a", "b", "c", "d", "e"}
	assert.Equal(t, []string{"a", "b", "c"}, capTags(tags, 3))
	assert.Equal(t, tags, capTags(tags, 10))
}

func TestFirstNonEmpty(t *testing.T) {
	assert.Equal(t, "b", firstNonEmpty("", "b", "c"))
	assert.Equal(t, "", firstNonEmpty("", ""))
}
