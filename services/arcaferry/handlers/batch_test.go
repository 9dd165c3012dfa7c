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

func TestClampConcurrency(t *testing.T) {
	assert.Equal(t, defaultBatchConcurrency, clampConcurrency(0))
	assert.Equal(t, defaultBatchConcurrency, clampConcurrency(-3))
	assert.Equal(t, 1, clampConcurrency(1))
	assert.Equal(t, 5, clampConcurrency(9))
	assert.Equal(t, 4, clampConcurrency(4))
}

func TestBatch_RejectsEmptyURLs(t *testing.T) {
	engine := newTestEngine()
	router := gin.New()
	router.POST("/api/batch", engine.Batch)

	body, err := json.Marshal(BatchRequest{URLs: nil})
	require.NoError(t, err)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/batch", bytes.NewReader(body)))

	assert.Equal(t, http.StatusBadRequest, w.Code)

	var resp errorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "PARSE_ERROR", resp.ErrorCode)
}

func TestBatch_AllItemsFailFastOnBadInput(t *testing.T) {
	engine := newTestEngine()
	router := gin.New()
	router.POST("/api/batch", engine.Batch)

	// Neither URL resolves to an id or a recognizable share/dream path, so
	// every item fails during fetchRaw's ExtractID step with no network
	// call, letting this test run without a live upstream.
	body, err := json.Marshal(BatchRequest{URLs: []string{"   ", "\t"}})
	require.NoError(t, err)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/batch", bytes.NewReader(body)))

	require.Equal(t, http.StatusOK, w.Code)

	var resp BatchResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.False(t, resp.Success)
	assert.Equal(t, 2, resp.Total)
	assert.Equal(t, 2, resp.Failed)
	assert.Equal(t, 0, resp.Succeeded)
	for _, r := range resp.Results {
		assert.False(t, r.Success)
		assert.NotEmpty(t, r.ErrorCode)
	}
}
