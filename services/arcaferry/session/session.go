// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package session holds the process-wide, platform-keyed record of
// cookies and bearer tokens a caller has already supplied, so repeat
// scrape/batch/import calls against the same platform don't need to
// re-paste credentials every time.
//
// # Description
//
// Credential material (the cookie header string, the bearer token) is
// kept in a memguard LockedBuffer rather than a plain Go string: once a
// Session is destroyed its secret bytes are wiped and the backing pages
// are unmapped, so they can't linger in a heap dump or get paged to swap.
package session

import (
	"strings"
	"sync"
	"time"

	"github.com/awnumar/memguard"

	"github.com/arcaferry/arcaferry/services/arcaferry/cookies"
)

// Session is one platform's stored credential material.
type Session struct {
	Platform  string
	CreatedAt time.Time
	ExpiresAt *time.Time

	cookieBuf *memguard.LockedBuffer
	tokenBuf  *memguard.LockedBuffer
}

// New starts building a Session for the given platform identifier.
func New(platform string) *Session {
	return &Session{Platform: platform, CreatedAt: time.Now()}
}

// WithCookies stores the jar's header-string form in locked memory.
func (s *Session) WithCookies(jar *cookies.Jar) *Session {
	if jar == nil || jar.IsEmpty() {
		return s
	}
	s.cookieBuf = memguard.NewBufferFromBytes([]byte(jar.ToHeaderString()))
	return s
}

// WithBearerToken stores the token in locked memory.
func (s *Session) WithBearerToken(token string) *Session {
	if token == "" {
		return s
	}
	s.tokenBuf = memguard.NewBufferFromBytes([]byte(token))
	return s
}

// WithExpiry sets an absolute expiry duration from now.
func (s *Session) WithExpiry(d time.Duration) *Session {
	expires := time.Now().Add(d)
	s.ExpiresAt = &expires
	return s
}

// IsExpired reports whether the session has a set, passed expiry.
func (s *Session) IsExpired() bool {
	return s.ExpiresAt != nil && time.Now().After(*s.ExpiresAt)
}

// CookieHeaderString returns the stored cookie header, or "" if none was
// set or the session's locked buffer has already been destroyed.
func (s *Session) CookieHeaderString() string {
	if s.cookieBuf == nil || s.cookieBuf.IsDestroyed() {
		return ""
	}
	return string(s.cookieBuf.Bytes())
}

// GetCookieJar parses the stored cookie header back into a Jar.
func (s *Session) GetCookieJar() (*cookies.Jar, error) {
	header := s.CookieHeaderString()
	if header == "" {
		return cookies.New(), nil
	}
	return cookies.Parse(header)
}

// BearerToken returns the stored bearer token, or "" if none was set or
// the session's locked buffer has already been destroyed.
func (s *Session) BearerToken() string {
	if s.tokenBuf == nil || s.tokenBuf.IsDestroyed() {
		return ""
	}
	return string(s.tokenBuf.Bytes())
}

// Destroy wipes the session's locked credential buffers. Safe to call
// more than once.
func (s *Session) Destroy() {
	if s.cookieBuf != nil {
		s.cookieBuf.Destroy()
	}
	if s.tokenBuf != nil {
		s.tokenBuf.Destroy()
	}
}

// Manager is the process-wide, reader-writer-lock-guarded session table.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewManager constructs an empty Manager.
func NewManager() *Manager {
	return &Manager{sessions: make(map[string]*Session)}
}

// Set stores (replacing any prior record) a session keyed by its
// platform, destroying whatever session previously occupied that slot.
func (m *Manager) Set(s *Session) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := strings.ToLower(s.Platform)
	if old, ok := m.sessions[key]; ok {
		old.Destroy()
	}
	m.sessions[key] = s
}

// Get returns the session for platform, or nil if absent or expired. An
// expired session is evicted (and destroyed) as a side effect.
func (m *Manager) Get(platform string) *Session {
	key := strings.ToLower(platform)

	m.mu.RLock()
	s, ok := m.sessions[key]
	m.mu.RUnlock()

	if !ok {
		return nil
	}
	if s.IsExpired() {
		m.mu.Lock()
		if current, stillThere := m.sessions[key]; stillThere && current == s {
			delete(m.sessions, key)
			s.Destroy()
		}
		m.mu.Unlock()
		return nil
	}
	return s
}

// HasValidSession reports whether Get would return a non-nil session.
func (m *Manager) HasValidSession(platform string) bool {
	return m.Get(platform) != nil
}

// Remove evicts and destroys a platform's session, if any.
func (m *Manager) Remove(platform string) {
	key := strings.ToLower(platform)

	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.sessions[key]; ok {
		delete(m.sessions, key)
		s.Destroy()
	}
}

// Clear evicts and destroys every stored session.
func (m *Manager) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for key, s := range m.sessions {
		delete(m.sessions, key)
		s.Destroy()
	}
}

// ListPlatforms returns the platform keys currently stored, expired or
// not.
func (m *Manager) ListPlatforms() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	platforms := make([]string, 0, len(m.sessions))
	for key := range m.sessions {
		platforms = append(platforms, key)
	}
	return platforms
}
