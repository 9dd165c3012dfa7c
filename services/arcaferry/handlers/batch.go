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
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/semaphore"

	"github.com/arcaferry/arcaferry/services/arcaferry/apierrors"
	"github.com/arcaferry/arcaferry/services/arcaferry/observability"
)

// defaultBatchConcurrency is used when a batch request omits concurrency.
const defaultBatchConcurrency = 3

const batchItemStagger = 200 * time.Millisecond

func clampConcurrency(requested int) int {
	if requested <= 0 {
		requested = defaultBatchConcurrency
	}
	if requested < 1 {
		return 1
	}
	if requested > 5 {
		return 5
	}
	return requested
}

// Batch handles POST /api/batch: fans a list of URLs out onto a bounded
// worker pool. Every item runs the same acquire-then-map pipeline as
// Scrape; the sidecar mutex inside resolveAndMap still serializes browser
// invocations across the whole batch regardless of how many items run
// concurrently, since only one real browser session can run at a time.
func (e *Engine) Batch(c *gin.Context) {
	defer observeDuration("batch", time.Now())

	var req BatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, "batch", parseError(err))
		return
	}
	if len(req.URLs) == 0 {
		abortWithError(c, "batch", apierrors.New(apierrors.KindValidationError, "urls must be non-empty"))
		return
	}

	concurrency := clampConcurrency(req.Concurrency)
	results := make([]BatchItemResult, len(req.URLs))

	sem := semaphore.NewWeighted(int64(concurrency))
	var wg sync.WaitGroup

	if observability.Default != nil {
		observability.Default.BatchConcurrency.Set(float64(concurrency))
		defer observability.Default.BatchConcurrency.Set(0)
	}

	ctx := c.Request.Context()
	for i, url := range req.URLs {
		if err := sem.Acquire(ctx, 1); err != nil {
			results[i] = BatchItemResult{URL: url, ScrapeResponse: ScrapeResponse{Error: err.Error(), ErrorCode: "TIMEOUT"}}
			continue
		}

		wg.Add(1)
		go func(i int, url string) {
			defer wg.Done()
			defer sem.Release(1)

			time.Sleep(batchItemStagger)
			results[i] = e.batchItem(ctx, url, req)
		}(i, url)
	}

	wg.Wait()

	succeeded, failed := 0, 0
	for _, r := range results {
		if r.Success {
			succeeded++
			recordBatchItemOutcome("success")
		} else {
			failed++
			recordBatchItemOutcome("error")
		}
	}

	c.JSON(http.StatusOK, BatchResponse{
		Success:   failed == 0,
		Total:     len(results),
		Succeeded: succeeded,
		Failed:    failed,
		Results:   results,
	})

	switch {
	case failed == 0:
		observeOutcome("batch", "success", "")
	case succeeded == 0:
		observeOutcome("batch", "error", "")
	default:
		observeOutcome("batch", "partial", "")
	}
}

func recordBatchItemOutcome(outcome string) {
	if observability.Default == nil {
		return
	}
	observability.Default.BatchItemsTotal.WithLabelValues(outcome).Inc()
}

func (e *Engine) batchItem(ctx context.Context, url string, req BatchRequest) BatchItemResult {
	acq, err := e.resolveAndMap(ctx, url, req.credentials)
	if err != nil {
		_, code := apierrors.ToHTTP(err)
		return BatchItemResult{URL: url, ScrapeResponse: ScrapeResponse{Error: err.Error(), ErrorCode: code}}
	}

	avatarB64, pngB64, warnings := e.exportOutput(ctx, acq.Card, acq.AvatarURL, req.OutputFormat)
	warnings = append(acq.Warnings, warnings...)

	return BatchItemResult{
		URL: url,
		ScrapeResponse: ScrapeResponse{
			Success:      true,
			Card:         &acq.Card,
			AvatarBase64: avatarB64,
			PNGBase64:    pngB64,
			Warnings:     warnings,
		},
	}
}
