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
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const pastedCharacterJSON = `{
	"name": "Momo",
	"description": "A curious fox spirit.",
	"firstMes": "Hello there!",
	"characterbooks": [
		{"keys": "fox,spirit", "content": "Momo is a fox spirit.", "name": "lore"}
	]
}`

const pastedCharacterJSONNoBook = `{"name": "Momo", "description": "No lorebook here."}`

func TestImport_JSONPasteSource(t *testing.T) {
	engine := newTestEngine()
	router := gin.New()
	router.POST("/api/import", engine.Import)

	body, err := json.Marshal(ImportRequest{QuackInput: pastedCharacterJSON})
	require.NoError(t, err)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/import", bytes.NewReader(body)))

	require.Equal(t, http.StatusOK, w.Code)

	var resp ImportResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	require.NotNil(t, resp.Card)
	assert.Equal(t, "Momo", resp.Card.Data.Name)
}

func TestImport_OnlyLorebookMode(t *testing.T) {
	engine := newTestEngine()
	router := gin.New()
	router.POST("/api/import", engine.Import)

	body, err := json.Marshal(ImportRequest{QuackInput: pastedCharacterJSON, Mode: modeOnlyLorebook})
	require.NoError(t, err)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/import", bytes.NewReader(body)))

	require.Equal(t, http.StatusOK, w.Code)

	var resp ImportResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Nil(t, resp.Card)
	require.NotNil(t, resp.Lorebook)
}

func TestImport_OnlyLorebookMode_NoLorebookData(t *testing.T) {
	engine := newTestEngine()
	router := gin.New()
	router.POST("/api/import", engine.Import)

	body, err := json.Marshal(ImportRequest{QuackInput: pastedCharacterJSONNoBook, Mode: modeOnlyLorebook})
	require.NoError(t, err)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/import", bytes.NewReader(body)))

	assert.Equal(t, http.StatusBadRequest, w.Code)

	var resp errorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "PARSE_ERROR", resp.ErrorCode)
}

func TestImport_MissingURLAndQuackInput(t *testing.T) {
	engine := newTestEngine()
	router := gin.New()
	router.POST("/api/import", engine.Import)

	body, err := json.Marshal(ImportRequest{})
	require.NoError(t, err)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/import", bytes.NewReader(body)))

	// KindMissingField isn't one of §4.L's explicitly mapped kinds, so it
	// falls to the default 502/NETWORK_ERROR mapping.
	assert.Equal(t, http.StatusBadGateway, w.Code)
}

func TestStripBOM(t *testing.T) {
	assert.Equal(t, "{}", stripBOM("﻿{}"))
	assert.Equal(t, "{}", stripBOM("{}"))
}

func TestIsJSONPaste(t *testing.T) {
	assert.True(t, isJSONPaste(`{"name":"x"}`))
	assert.True(t, isJSONPaste("﻿  {\"name\":\"x\"}"))
	assert.False(t, isJSONPaste("https://quack.im/share/abc123"))
	assert.False(t, isJSONPaste(""))
}
