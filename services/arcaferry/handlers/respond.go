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
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/arcaferry/arcaferry/services/arcaferry/apierrors"
	"github.com/arcaferry/arcaferry/services/arcaferry/observability"
)

// abortWithError maps err onto an HTTP status and body per §4.L and
// records the outcome in the endpoint's request/error counters.
func abortWithError(c *gin.Context, endpoint string, err error) {
	status, code := apierrors.ToHTTP(err)
	observeOutcome(endpoint, "error", code)

	var retryAfter int
	if apiErr, ok := apierrors.As(err); ok {
		retryAfter = apiErr.RetryAfter
	}
	if retryAfter > 0 {
		c.Header("Retry-After", strconv.Itoa(retryAfter))
	}

	c.JSON(status, errorResponse{Error: err.Error(), ErrorCode: code})
}

func observeOutcome(endpoint, outcome, errorCode string) {
	if observability.Default == nil {
		return
	}
	observability.Default.RequestsTotal.WithLabelValues(endpoint, outcome).Inc()
	if outcome == "error" {
		observability.Default.ErrorsTotal.WithLabelValues(endpoint, errorCode).Inc()
	}
}

// observeDuration records handler latency; call via defer at the top of a
// handler, after resolving the endpoint name.
func observeDuration(endpoint string, start time.Time) {
	if observability.Default == nil {
		return
	}
	observability.Default.RequestDurationSeconds.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
}
