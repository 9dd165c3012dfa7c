// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package sidecar

import (
	"context"
	"log/slog"

	"github.com/arcaferry/arcaferry/services/arcaferry/quack"
)

// FillHiddenAttributes runs the full capability-gated merge: if no hidden
// labels need filling, or the probe reports the browser environment isn't
// available, info is returned unchanged. Otherwise the sidecar is invoked
// and whatever it reports is merged back into info's hidden, empty
// attribute slots.
//
// probe is shared across calls so the (possibly slow) capability check
// runs once and is reused until the probe's cache is invalidated.
func FillHiddenAttributes(ctx context.Context, logger *slog.Logger, probe *CachedProbe, info *quack.CharacterInfo, shareURL string, params InvokeParams) (applied int, warning string) {
	labels := quack.GetHiddenAttrLabels(*info)
	if len(labels) == 0 {
		return 0, ""
	}

	capability := probe.Get()
	if !capability.Available {
		return 0, capability.Reason
	}

	result, err := ExtractHiddenSettings(ctx, logger, shareURL, labels, params)
	if err != nil {
		return 0, err.Error()
	}

	applied = quack.ApplyHiddenSettings(info, result.Attrs)
	return applied, ""
}
