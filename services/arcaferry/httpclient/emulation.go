// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package httpclient wraps net/http with the header shape and error
// classification a scraper pointed at a browser-gated upstream needs.
//
// # Description
//
// Genuine TLS ClientHello fingerprinting (the kind that defeats JA3/JA4
// fingerprint checks at the edge) has no counterpart in the Go standard
// library and no vetted equivalent among this module's dependencies, so
// this package does not attempt it — see the debug-tls endpoint's doc
// comment for the resulting user-facing limitation. What it does provide is
// a User-Agent/Sec-CH-UA emulation profile keyed by browser family and
// version. net/http's Transport always writes headers in sorted order
// (see http.Header.Write) regardless of insertion order, so this package
// does not also claim to emulate wire-level header ordering.
package httpclient

import (
	"regexp"
	"strconv"
)

// Profile describes one browser emulation target: the User-Agent and
// Sec-CH-UA header values it sends. Header order is not part of it.
type Profile struct {
	Browser      string
	Version      int
	OS           string
	UserAgent    string
	SecChUA      string
	SecChUAMobil string
}

// knownVersions enumerates the (browser, version) pairs this module knows
// profiles for, mirroring the set of emulation variants the reference
// client ships. Only Chrome and Edge carry the Sec-CH-UA client-hints
// headers real Chromium browsers send.
var knownVersions = map[string][]int{
	"Chrome":  {120, 124, 131, 133, 136, 139, 141, 143},
	"Edge":    {120, 124, 131, 136, 141},
	"Firefox": {121, 128, 133, 140},
	"Safari":  {17, 18},
}

var edgeVersionRe = regexp.MustCompile(`Edg/(\d+)`)
var chromeVersionRe = regexp.MustCompile(`Chrome/(\d+)`)
var firefoxVersionRe = regexp.MustCompile(`Firefox/(\d+)`)
var safariVersionRe = regexp.MustCompile(`Version/(\d+)`)

// VersionRange is the [min, max] supported version span for one browser
// family, reported by SupportedBrowsers for client-side "you're newer than
// we emulate" warnings.
type VersionRange struct {
	Min int `json:"min"`
	Max int `json:"max"`
}

// SupportedBrowsers reports the version range known for each browser
// family this module carries an emulation profile for.
type SupportedBrowsers struct {
	Chrome  *VersionRange `json:"chrome,omitempty"`
	Edge    *VersionRange `json:"edge,omitempty"`
	Firefox *VersionRange `json:"firefox,omitempty"`
	Safari  *VersionRange `json:"safari,omitempty"`
}

// GetSupportedBrowsers computes the min/max version known per browser
// family from knownVersions.
func GetSupportedBrowsers() SupportedBrowsers {
	rangeFor := func(versions []int) *VersionRange {
		if len(versions) == 0 {
			return nil
		}
		min, max := versions[0], versions[0]
		for _, v := range versions {
			if v < min {
				min = v
			}
			if v > max {
				max = v
			}
		}
		return &VersionRange{Min: min, Max: max}
	}

	return SupportedBrowsers{
		Chrome:  rangeFor(knownVersions["Chrome"]),
		Edge:    rangeFor(knownVersions["Edge"]),
		Firefox: rangeFor(knownVersions["Firefox"]),
		Safari:  rangeFor(knownVersions["Safari"]),
	}
}

// VersionWarning flags that a caller's browser is newer than any emulation
// profile this module carries, so the emulated User-Agent/Sec-CH-UA headers
// won't match the caller's browser at a Cloudflare-protected edge.
type VersionWarning struct {
	Browser       string `json:"browser"`
	UserVersion   int    `json:"user_version"`
	MaxSupported  int    `json:"max_supported"`
	Message       string `json:"message"`
	UpdateCommand string `json:"update_command"`
}

func buildWarning(browser string, userVersion, maxSupported int) VersionWarning {
	return VersionWarning{
		Browser:      browser,
		UserVersion:  userVersion,
		MaxSupported: maxSupported,
		Message: browser + " version " + strconv.Itoa(userVersion) +
			" is newer than the maximum emulated version (" + strconv.Itoa(maxSupported) +
			"). Header/fingerprint mismatch may cause upstream blocks.",
		UpdateCommand: "go get -u github.com/arcaferry/arcaferry/...",
	}
}

// CheckVersionWarning inspects a caller-supplied User-Agent and returns a
// VersionWarning if its browser version exceeds the newest profile known
// for that family.
func CheckVersionWarning(ua string) *VersionWarning {
	supported := GetSupportedBrowsers()

	if m := edgeVersionRe.FindStringSubmatch(ua); m != nil {
		if ver, err := strconv.Atoi(m[1]); err == nil && supported.Edge != nil && ver > supported.Edge.Max {
			w := buildWarning("Edge", ver, supported.Edge.Max)
			return &w
		}
	}

	if m := chromeVersionRe.FindStringSubmatch(ua); m != nil {
		if ver, err := strconv.Atoi(m[1]); err == nil && supported.Chrome != nil && ver > supported.Chrome.Max {
			w := buildWarning("Chrome", ver, supported.Chrome.Max)
			return &w
		}
	}

	return nil
}

func closestVersion(versions []int, target int) int {
	best := versions[0]
	bestDist := abs(versions[0] - target)
	for _, v := range versions[1:] {
		if d := abs(v - target); d < bestDist {
			best, bestDist = v, d
		}
	}
	return best
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

func latest(browser string) int {
	versions := knownVersions[browser]
	max := versions[0]
	for _, v := range versions[1:] {
		if v > max {
			max = v
		}
	}
	return max
}

// ParseUserAgent maps a caller-supplied User-Agent string to the closest
// known emulation profile, falling back to the newest Chrome profile when
// the UA is empty, unrecognized, or omitted.
func ParseUserAgent(ua string) Profile {
	os := "Windows"
	if contains(ua, "Macintosh") || contains(ua, "Mac OS") {
		os = "macOS"
	} else if contains(ua, "Linux") && !contains(ua, "Android") {
		os = "Linux"
	} else if contains(ua, "Android") {
		os = "Android"
	}

	if m := edgeVersionRe.FindStringSubmatch(ua); m != nil {
		if ver, err := strconv.Atoi(m[1]); err == nil {
			return newProfile("Edge", closestVersion(knownVersions["Edge"], ver), os)
		}
	}

	if m := chromeVersionRe.FindStringSubmatch(ua); m != nil {
		if ver, err := strconv.Atoi(m[1]); err == nil {
			return newProfile("Chrome", closestVersion(knownVersions["Chrome"], ver), os)
		}
	}

	if contains(ua, "Firefox") {
		if m := firefoxVersionRe.FindStringSubmatch(ua); m != nil {
			if ver, err := strconv.Atoi(m[1]); err == nil {
				return newProfile("Firefox", closestVersion(knownVersions["Firefox"], ver), os)
			}
		}
		return newProfile("Firefox", latest("Firefox"), os)
	}

	if contains(ua, "Safari") && !contains(ua, "Chrome") {
		if m := safariVersionRe.FindStringSubmatch(ua); m != nil {
			if ver, err := strconv.Atoi(m[1]); err == nil {
				return newProfile("Safari", closestVersion(knownVersions["Safari"], ver), os)
			}
		}
		return newProfile("Safari", latest("Safari"), os)
	}

	return newProfile("Chrome", latest("Chrome"), os)
}

func contains(s, substr string) bool {
	return len(s) >= len(substr) && indexOf(s, substr) >= 0
}

func indexOf(s, substr string) int {
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			return i
		}
	}
	return -1
}

func newProfile(browser string, version int, os string) Profile {
	p := Profile{
		Browser: browser,
		Version: version,
		OS:      os,
	}

	osToken := map[string]string{
		"Windows": "Windows NT 10.0; Win64; x64",
		"macOS":   "Macintosh; Intel Mac OS X 10_15_7",
		"Linux":   "X11; Linux x86_64",
		"Android": "Linux; Android 14",
	}[os]

	switch browser {
	case "Chrome":
		p.UserAgent = "Mozilla/5.0 (" + osToken + ") AppleWebKit/537.36 (KHTML, like Gecko) Chrome/" +
			strconv.Itoa(version) + ".0.0.0 Safari/537.36"
		p.SecChUA = `"Not:A-Brand";v="24", "Chromium";v="` + strconv.Itoa(version) + `", "Google Chrome";v="` + strconv.Itoa(version) + `"`
		p.SecChUAMobil = "?0"
	case "Edge":
		p.UserAgent = "Mozilla/5.0 (" + osToken + ") AppleWebKit/537.36 (KHTML, like Gecko) Chrome/" +
			strconv.Itoa(version) + ".0.0.0 Safari/537.36 Edg/" + strconv.Itoa(version) + ".0.0.0"
		p.SecChUA = `"Not:A-Brand";v="24", "Chromium";v="` + strconv.Itoa(version) + `", "Microsoft Edge";v="` + strconv.Itoa(version) + `"`
		p.SecChUAMobil = "?0"
	case "Firefox":
		p.UserAgent = "Mozilla/5.0 (" + osToken + "; rv:" + strconv.Itoa(version) + ".0) Gecko/20100101 Firefox/" + strconv.Itoa(version) + ".0"
	case "Safari":
		p.UserAgent = "Mozilla/5.0 (" + osToken + ") AppleWebKit/605.1.15 (KHTML, like Gecko) Version/" +
			strconv.Itoa(version) + ".0 Safari/605.1.15"
	}

	return p
}
