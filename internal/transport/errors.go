// Deskmirror - Helpdesk Client State Synchronization
// Copyright 2026 Deskmirror Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/deskmirror/deskmirror

package transport

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/goccy/go-json"
)

// APIError is a non-2xx gateway response, normalized to a human-readable
// message. Network and timeout failures are NOT APIErrors; they surface as
// the underlying wrapped error.
type APIError struct {
	StatusCode int
	Message    string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return fmt.Sprintf("gateway returned %d: %s", e.StatusCode, e.Message)
}

// IsStatus reports whether err is an APIError with the given status code.
func IsStatus(err error, code int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == code
}

// IsUnauthorized reports whether err is a 401 response.
func IsUnauthorized(err error) bool {
	return IsStatus(err, http.StatusUnauthorized)
}

// IsNotFound reports whether err is a 404 response. Delete operations treat
// this as success (idempotent delete semantics).
func IsNotFound(err error) bool {
	return IsStatus(err, http.StatusNotFound)
}

// detailEnvelope is the gateway's error body. The detail field is either a
// plain string or an array of structured validation errors.
type detailEnvelope struct {
	Detail json.RawMessage `json:"detail"`
}

// fieldError is one entry of a structured validation detail array.
type fieldError struct {
	Msg string `json:"msg"`
}

// normalizeDetail extracts a single human-readable message from an error
// response body. Arrays of validation errors use the first entry's message.
// Falls back to the standard status text when the body is empty or
// unparseable.
func normalizeDetail(body []byte, status int) string {
	fallback := http.StatusText(status)
	if fallback == "" {
		fallback = fmt.Sprintf("HTTP %d", status)
	}
	if len(body) == 0 {
		return fallback
	}

	var envelope detailEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil || len(envelope.Detail) == 0 {
		return fallback
	}

	// Plain string detail.
	var msg string
	if err := json.Unmarshal(envelope.Detail, &msg); err == nil && msg != "" {
		return msg
	}

	// Structured validation errors: use the first entry's message.
	var fields []fieldError
	if err := json.Unmarshal(envelope.Detail, &fields); err == nil && len(fields) > 0 && fields[0].Msg != "" {
		return fields[0].Msg
	}

	// Single structured object.
	var field fieldError
	if err := json.Unmarshal(envelope.Detail, &field); err == nil && field.Msg != "" {
		return field.Msg
	}

	return fallback
}
