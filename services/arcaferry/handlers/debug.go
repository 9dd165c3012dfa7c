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
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/arcaferry/arcaferry/services/arcaferry/httpclient"
)

// debugTLSResponse reports this server's locally-computed header/UA
// emulation profile table.
//
// # Limitations
//
// This is NOT a live TLS ClientHello fingerprint proxy: the reference
// client's debug-tls diagnostic forwards a probe through tls.peet.ws to
// report the actual JA3/JA4 hash a connection presents at the TCP/TLS
// layer. net/http gives this module no hook into the TLS handshake's
// cipher/extension ordering, and no vetted Go library in this module's
// dependency set exposes one either, so the honest thing to report here
// is the header-shape emulation table this module actually implements,
// not a fingerprint it cannot produce.
type debugTLSResponse struct {
	Note              string                      `json:"note"`
	SupportedBrowsers httpclient.SupportedBrowsers `json:"supported_browsers"`
}

// DebugTLS handles GET /api/debug/tls.
func (e *Engine) DebugTLS(c *gin.Context) {
	defer observeDuration("debug_tls", time.Now())

	c.JSON(http.StatusOK, debugTLSResponse{
		Note:              "This server emulates browser request headers over net/http; it does not perform TLS ClientHello fingerprinting and cannot report a live JA3/JA4 hash.",
		SupportedBrowsers: httpclient.GetSupportedBrowsers(),
	})

	observeOutcome("debug_tls", "success", "")
}
