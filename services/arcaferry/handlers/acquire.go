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
	"encoding/base64"
	"strings"
	"time"

	"github.com/arcaferry/arcaferry/services/arcaferry/apierrors"
	"github.com/arcaferry/arcaferry/services/arcaferry/ccv3"
	"github.com/arcaferry/arcaferry/services/arcaferry/cookies"
	"github.com/arcaferry/arcaferry/services/arcaferry/httpclient"
	"github.com/arcaferry/arcaferry/services/arcaferry/observability"
	"github.com/arcaferry/arcaferry/services/arcaferry/png"
	"github.com/arcaferry/arcaferry/services/arcaferry/quack"
	"github.com/arcaferry/arcaferry/services/arcaferry/session"
	"github.com/arcaferry/arcaferry/services/arcaferry/sidecar"
)

const scrapeTimeout = 45 * time.Second

// sessionTTL bounds how long a remembered credential set is reused
// without the caller repasting it. Quack/Purrly cookies are themselves
// short-lived bearer material, so this errs well under typical browser
// session-cookie lifetimes rather than trying to match them exactly.
const sessionTTL = 6 * time.Hour

// acquisition is the outcome of resolveAndMap: a mapped card, the
// upstream-relative avatar URL (if any), and any non-fatal warnings
// accumulated along the way.
type acquisition struct {
	Card      ccv3.Card
	AvatarURL string
	Warnings  []string
}

// fetchRaw drives the upstream multi-step fetch (§4.F) for a pasted URL or
// raw id, returning the resolved character info and any lorebook entries
// surfaced along the way, prior to any sidecar fill or CCv3 mapping.
func (e *Engine) fetchRaw(ctx context.Context, rawURL string, creds credentials) (*quack.CharacterInfo, []quack.LorebookEntryRaw, *cookies.Jar, error) {
	id, err := quack.ExtractID(rawURL)
	if err != nil {
		return nil, nil, nil, err
	}
	urlType := quack.ClassifyURL(rawURL)
	apiBase := quack.SelectAPIBase(rawURL)

	bearerToken := creds.BearerToken
	var jar *cookies.Jar
	if strings.TrimSpace(creds.Cookies) != "" {
		jar, err = cookies.Parse(creds.Cookies)
		if err != nil {
			return nil, nil, nil, err
		}
	} else if remembered := e.Sessions.Get(apiBase); remembered != nil {
		jar, err = remembered.GetCookieJar()
		if err != nil {
			return nil, nil, nil, err
		}
		if bearerToken == "" {
			bearerToken = remembered.BearerToken()
		}
	}

	client, err := quack.NewClientWithTimeout(apiBase, jar, bearerToken, scrapeTimeout, creds.UserAgent)
	if err != nil {
		return nil, nil, jar, err
	}

	info, lorebookEntries, _, err := client.FetchComplete(ctx, id, urlType)
	if err != nil {
		return nil, nil, jar, augmentCloudflareError(err, jar, creds)
	}

	if jar != nil && !jar.IsEmpty() || bearerToken != "" {
		e.Sessions.Set(session.New(apiBase).WithCookies(jar).WithBearerToken(bearerToken).WithExpiry(sessionTTL))
	}

	return info, lorebookEntries, jar, nil
}

// fillHidden runs the sidecar against info when it carries hidden,
// unfilled attributes and a capability probe reports the browser
// automation environment is usable. It mutates info in place, matching
// sidecar.FillHiddenAttributes, and is serialized process-wide since only
// one real browser session can run at a time.
func (e *Engine) fillHidden(ctx context.Context, info *quack.CharacterInfo, rawURL string, creds credentials) (warnings []string) {
	if !quack.NeedsHidden(*info) {
		return nil
	}
	labels := quack.GetHiddenAttrLabels(*info)
	if len(labels) == 0 {
		return nil
	}

	capability := e.SidecarProbe.Get()
	if !capability.Available {
		recordSidecarOutcome("unavailable")
		return []string{capability.Reason}
	}

	_, warning := e.runSidecarSerialized(func() (int, string) {
		params := e.sidecarInvokeParams(creds.Cookies, creds.BearerToken, creds.UserAgent)
		if creds.GeminiKey != "" {
			params.GeminiAPIKey = creds.GeminiKey
		}
		return sidecar.FillHiddenAttributes(ctx, e.Logger, e.SidecarProbe, info, rawURL, params)
	})
	if warning != "" {
		recordSidecarOutcome("error")
		return []string{warning}
	}
	recordSidecarOutcome("success")
	return nil
}

// resolveAndMap implements the shared acquire-then-map pipeline behind
// scrape and batch items: fetch, fill hidden attributes via the sidecar
// when available, and map the result onto a CCv3 card.
func (e *Engine) resolveAndMap(ctx context.Context, rawURL string, creds credentials) (*acquisition, error) {
	info, lorebookEntries, _, err := e.fetchRaw(ctx, rawURL, creds)
	if err != nil {
		return nil, err
	}

	warnings := e.fillHidden(ctx, info, rawURL, creds)

	card := quack.MapToCard(*info, nil, lorebookEntries)
	return &acquisition{Card: card, AvatarURL: quack.AvatarURL(info.Picture), Warnings: warnings}, nil
}

func recordSidecarOutcome(outcome string) {
	if observability.Default == nil {
		return
	}
	observability.Default.SidecarInvocationsTotal.WithLabelValues(outcome).Inc()
}

// augmentCloudflareError appends actionable guidance (mentioning the
// cf_clearance cookie and whether a user_agent was supplied) to a
// Cloudflare-blocked error, per §4.J.
func augmentCloudflareError(err error, jar *cookies.Jar, creds credentials) error {
	apiErr, ok := apierrors.As(err)
	if !ok || apiErr.Kind != apierrors.KindCloudflareBlocked {
		return err
	}

	if observability.Default != nil {
		observability.Default.CloudflareBlocksTotal.WithLabelValues("upstream").Inc()
	}

	hasClearance := false
	if jar != nil {
		_, hasClearance = jar.Get("cf_clearance")
	}

	var guidance strings.Builder
	guidance.WriteString(apiErr.Message)
	guidance.WriteString(". ")
	if hasClearance {
		guidance.WriteString("A cf_clearance cookie was present but the challenge still triggered; it may have expired or be bound to a different user_agent. ")
	} else {
		guidance.WriteString("No cf_clearance cookie was supplied; capture one from a real browser session and include it in cookies. ")
	}
	if strings.TrimSpace(creds.UserAgent) == "" {
		guidance.WriteString("No user_agent was supplied either; the cf_clearance cookie is usually bound to the browser that minted it, so pass the matching user_agent too.")
	} else {
		guidance.WriteString("A user_agent was supplied; make sure it matches the browser that minted the cf_clearance cookie.")
	}

	return apierrors.New(apierrors.KindCloudflareBlocked, "%s", guidance.String())
}

// exportOutput resolves the optional avatar and PNG payloads for a mapped
// card, base64-encoding both for direct JSON embedding. A failed avatar
// download is non-fatal: it downgrades to a warning and, for PNG output,
// a flat placeholder cover.
func (e *Engine) exportOutput(ctx context.Context, card ccv3.Card, avatarURL, outputFormat string) (avatarB64, pngB64 string, warnings []string) {
	if avatarURL == "" {
		if outputFormat == "png" {
			if pngBytes, err := png.CreateCardPNG(card, ""); err == nil {
				pngB64 = base64.StdEncoding.EncodeToString(pngBytes)
			}
		}
		return "", pngB64, nil
	}

	avatarBytes, err := e.fetchAvatarWithBackoff(ctx, avatarURL)
	if err != nil {
		warnings = append(warnings, "封面图片下载失败")
		if outputFormat != "png" {
			return "", "", warnings
		}
		if pngBytes, pngErr := png.CreateCardPNG(card, ""); pngErr == nil {
			pngB64 = base64.StdEncoding.EncodeToString(pngBytes)
		}
		return "", pngB64, warnings
	}

	avatarB64 = base64.StdEncoding.EncodeToString(avatarBytes)
	if outputFormat != "png" {
		return avatarB64, "", warnings
	}

	if pngBytes, err := png.CreateCardPNG(card, avatarB64); err == nil {
		pngB64 = base64.StdEncoding.EncodeToString(pngBytes)
	} else {
		warnings = append(warnings, err.Error())
	}
	return "", pngB64, warnings
}

func versionWarningFor(ua string) *httpclient.VersionWarning {
	if strings.TrimSpace(ua) == "" {
		return nil
	}
	return httpclient.CheckVersionWarning(ua)
}
