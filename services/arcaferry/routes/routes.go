// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package routes

import (
	"github.com/gin-gonic/gin"

	"github.com/arcaferry/arcaferry/services/arcaferry/handlers"
	"github.com/arcaferry/arcaferry/services/arcaferry/middleware"
)

// SetupRoutes wires every endpoint in §4.J's HTTP API surface onto router.
func SetupRoutes(router *gin.Engine, engine *handlers.Engine) {
	router.Use(middleware.CORS(), middleware.RequestID())

	api := router.Group("/api")
	{
		api.GET("/status", engine.Status)
		api.POST("/scrape", engine.Scrape)
		api.POST("/batch", engine.Batch)
		api.POST("/import", engine.Import)
		api.POST("/preview", engine.Preview)

		debug := api.Group("/debug")
		{
			debug.GET("/tls", engine.DebugTLS)
		}
	}
}
