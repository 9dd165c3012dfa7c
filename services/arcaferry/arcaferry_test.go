// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package arcaferry

import (
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// =============================================================================
// Config Tests
// =============================================================================

func TestApplyConfigDefaults_AllDefaults(t *testing.T) {
	result := applyConfigDefaults(Config{})

	assert.Equal(t, 17236, result.Port, "default port should be 17236")
	assert.Equal(t, "localhost:4317", result.OTelEndpoint,
		"default OTel endpoint should be localhost:4317")
}

func TestApplyConfigDefaults_PreservesCustomValues(t *testing.T) {
	cfg := Config{Port: 9000, OTelEndpoint: "custom-collector:4317", SidecarHeaded: true}

	result := applyConfigDefaults(cfg)

	assert.Equal(t, 9000, result.Port, "custom port should be preserved")
	assert.Equal(t, "custom-collector:4317", result.OTelEndpoint,
		"custom OTel endpoint should be preserved")
	assert.True(t, result.SidecarHeaded, "custom sidecar-headed flag should be preserved")
}
