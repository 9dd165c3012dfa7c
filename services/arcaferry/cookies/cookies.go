// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package cookies normalizes the three cookie wire formats an operator
// might paste into a scrape request (a browser extension's JSON export,
// a Netscape cookies.txt, or a raw `Cookie:` header string) into one jar
// keyed by cookie name.
package cookies

import (
	"encoding/json"
	"strings"
)

// Cookie is a single normalized cookie record.
type Cookie struct {
	Name     string `json:"name"`
	Value    string `json:"value"`
	Domain   string `json:"domain,omitempty"`
	Path     string `json:"path,omitempty"`
	HTTPOnly bool   `json:"httpOnly,omitempty"`
	Secure   bool   `json:"secure,omitempty"`
}

// Jar is a cookie store keyed by name; inserting a cookie with an existing
// name replaces the prior record.
type Jar struct {
	cookies map[string]Cookie
}

// New returns an empty Jar.
func New() *Jar {
	return &Jar{cookies: make(map[string]Cookie)}
}

// Parse detects the wire format of input and normalizes it into a Jar.
//
// # Description
//
// Detection order: a leading `[` means a JSON array export; a tab
// character or a leading `#` means Netscape cookies.txt; anything else is
// treated as a `Cookie:`-style header string.
func Parse(input string) (*Jar, error) {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return New(), nil
	}

	switch {
	case strings.HasPrefix(trimmed, "["):
		return parseJSON(trimmed)
	case strings.Contains(trimmed, "\t") || strings.HasPrefix(trimmed, "#"):
		return parseNetscape(trimmed), nil
	default:
		return parseHeaderString(trimmed), nil
	}
}

func parseJSON(input string) (*Jar, error) {
	var raw []map[string]any
	if err := json.Unmarshal([]byte(input), &raw); err != nil {
		return nil, err
	}

	jar := New()
	for _, obj := range raw {
		name, _ := obj["name"].(string)
		if name == "" {
			continue
		}
		value, _ := obj["value"].(string)
		c := Cookie{Name: name, Value: value}
		if d, ok := obj["domain"].(string); ok {
			c.Domain = d
		}
		if p, ok := obj["path"].(string); ok {
			c.Path = p
		}
		if h, ok := obj["httpOnly"].(bool); ok {
			c.HTTPOnly = h
		}
		if s, ok := obj["secure"].(bool); ok {
			c.Secure = s
		}
		jar.Insert(c)
	}
	return jar, nil
}

// parseNetscape parses the tab-separated cookies.txt format:
// domain, flag, path, secure, expiry, name, value.
func parseNetscape(input string) *Jar {
	jar := New()
	for _, line := range strings.Split(input, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.Split(line, "\t")
		if len(parts) < 7 {
			continue
		}
		name := parts[5]
		if name == "" {
			continue
		}
		jar.Insert(Cookie{
			Name:   name,
			Value:  parts[6],
			Domain: parts[0],
			Path:   parts[2],
			Secure: strings.EqualFold(parts[3], "true"),
		})
	}
	return jar
}

// parseHeaderString parses "Cookie: name=val; name2=val2" or bare
// "name=val; name2=val2".
func parseHeaderString(input string) *Jar {
	jar := New()

	body := input
	if len(body) >= 7 && strings.EqualFold(body[:7], "cookie:") {
		body = strings.TrimSpace(body[7:])
	}

	for _, pair := range strings.Split(body, ";") {
		pair = strings.TrimSpace(pair)
		idx := strings.Index(pair, "=")
		if idx < 0 {
			continue
		}
		name := strings.TrimSpace(pair[:idx])
		value := strings.TrimSpace(pair[idx+1:])
		if name == "" {
			continue
		}
		jar.Insert(Cookie{Name: name, Value: value})
	}
	return jar
}

// Insert adds or replaces a cookie by name.
func (j *Jar) Insert(c Cookie) {
	j.cookies[c.Name] = c
}

// Get returns the cookie with the given name, if present.
func (j *Jar) Get(name string) (Cookie, bool) {
	c, ok := j.cookies[name]
	return c, ok
}

// IsEmpty reports whether the jar holds no cookies.
func (j *Jar) IsEmpty() bool {
	return len(j.cookies) == 0
}

// Len reports the number of cookies in the jar.
func (j *Jar) Len() int {
	return len(j.cookies)
}

// ToHeaderString serializes the jar as a `Cookie:` header value:
// "name=value; name2=value2". Order is not guaranteed across calls.
func (j *Jar) ToHeaderString() string {
	parts := make([]string, 0, len(j.cookies))
	for _, c := range j.cookies {
		parts = append(parts, c.Name+"="+c.Value)
	}
	return strings.Join(parts, "; ")
}

// ToSimpleMap returns a name->value map suitable for feeding an HTTP
// client's cookie-jar layer.
func (j *Jar) ToSimpleMap() map[string]string {
	out := make(map[string]string, len(j.cookies))
	for name, c := range j.cookies {
		out[name] = c.Value
	}
	return out
}
