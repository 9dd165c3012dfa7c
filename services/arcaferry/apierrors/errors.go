// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package apierrors defines the canonical error taxonomy shared by every
// Arcaferry component and its mapping onto HTTP status codes and
// machine-readable error codes.
//
// # Description
//
// Every fallible operation in this module returns a plain Go error. When
// that error needs to be distinguished by kind (to decide an HTTP status,
// to choose a warning instead of a hard failure, to detect a Cloudflare
// challenge ahead of a generic auth failure) it is an *Error value, and
// callers use errors.As to recover it.
//
// # Assumptions
//
//   - Kind values are stable; new kinds may be added but existing ones are
//     never renumbered, since error_code strings are part of the wire
//     contract with HTTP clients.
package apierrors

import (
	"errors"
	"fmt"
)

// Kind enumerates the canonical error categories.
type Kind int

const (
	KindTimeout Kind = iota
	KindUnauthorized
	KindRateLimited
	KindCloudflareBlocked
	KindNetworkError
	KindInvalidJSON
	KindInvalidURL
	KindMissingField
	KindInvalidPNGSignature
	KindPNGChunkError
	KindNoCardData
	KindValidationError
	KindSessionExpired
	KindSessionNotFound
	KindImportRejected
	KindVersionMismatch
	KindIOError
	KindBrowserError
)

// Error is the discriminated error type propagated from every component
// down to the HTTP boundary.
//
// # Description
//
// Error carries a Kind plus a human-readable Message, and for the two
// kinds that need extra structured data (RateLimited's retry-after and
// VersionMismatch's expected/actual pair) the corresponding fields are
// populated.
type Error struct {
	Kind       Kind
	Message    string
	RetryAfter int // seconds; only meaningful for KindRateLimited
	Expected   string
	Actual     string
}

func (e *Error) Error() string {
	return e.Message
}

// New constructs an Error of the given kind with a formatted message.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// RateLimited constructs a KindRateLimited error with the given retry-after
// in seconds.
func RateLimited(retryAfterSecs int) *Error {
	return &Error{
		Kind:       KindRateLimited,
		Message:    fmt.Sprintf("Rate limited, retry after %ds", retryAfterSecs),
		RetryAfter: retryAfterSecs,
	}
}

// VersionMismatch constructs a KindVersionMismatch error.
func VersionMismatch(expected, actual string) *Error {
	return &Error{
		Kind:     KindVersionMismatch,
		Message:  fmt.Sprintf("Version mismatch: expected %s, got %s", expected, actual),
		Expected: expected,
		Actual:   actual,
	}
}

// As recovers an *Error from a wrapped error chain, following the standard
// errors.As convention used throughout this module.
func As(err error) (*Error, bool) {
	var target *Error
	if errors.As(err, &target) {
		return target, true
	}
	return nil, false
}

// HTTPStatus and ErrorCode report the HTTP mapping for a Kind, per §4.L.
func (k Kind) HTTPStatus() int {
	switch k {
	case KindUnauthorized:
		return 401
	case KindRateLimited:
		return 429
	case KindTimeout:
		return 504
	case KindCloudflareBlocked:
		return 503
	case KindInvalidURL:
		return 400
	case KindInvalidJSON, KindValidationError:
		return 400
	default:
		return 502
	}
}

func (k Kind) ErrorCode() string {
	switch k {
	case KindUnauthorized:
		return "UNAUTHORIZED"
	case KindRateLimited:
		return "RATE_LIMITED"
	case KindTimeout:
		return "TIMEOUT"
	case KindCloudflareBlocked:
		return "CLOUDFLARE_BLOCKED"
	case KindInvalidURL:
		return "INVALID_URL"
	case KindInvalidJSON, KindValidationError:
		return "PARSE_ERROR"
	default:
		return "NETWORK_ERROR"
	}
}

// ToHTTP maps any error to the (status, error_code) pair a handler should
// emit. Non-Error values default to a generic 502/NETWORK_ERROR, matching
// the original's fallback arm.
func ToHTTP(err error) (int, string) {
	if e, ok := As(err); ok {
		return e.Kind.HTTPStatus(), e.Kind.ErrorCode()
	}
	return 502, "NETWORK_ERROR"
}
