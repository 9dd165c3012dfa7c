// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package middleware provides HTTP middleware for the Arcaferry API: a
// request-id tag for log correlation and a permissive CORS policy, since
// the facade is meant to be called directly from a browser extension or
// desktop companion app running on an arbitrary origin.
package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// =============================================================================
// Context Keys
// =============================================================================

const requestIDHeader = "X-Request-Id"
const requestIDContextKey = "arcaferry.request_id"

// RequestID assigns a uuid to every request (reusing one supplied via
// X-Request-Id, if present) and echoes it back on the response, so a
// caller and the server's logs can be correlated.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(requestIDContextKey, id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

// GetRequestID retrieves the request id set by RequestID, or "" if the
// middleware wasn't installed.
func GetRequestID(c *gin.Context) string {
	id, _ := c.Get(requestIDContextKey)
	s, _ := id.(string)
	return s
}

// CORS allows any origin, method, and header: the facade has no
// browser-session cookies of its own to protect, and is meant to be
// callable from any companion UI regardless of where it's hosted.
func CORS() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "*")
		c.Header("Access-Control-Max-Age", "86400")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
