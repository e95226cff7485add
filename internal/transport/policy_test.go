// Deskmirror - Helpdesk Client State Synchronization
// Copyright 2026 Deskmirror Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/deskmirror/deskmirror

package transport

import (
	"net/http"
	"testing"
)

func TestCacheControlFor(t *testing.T) {
	tests := []struct {
		method   string
		path     string
		expected string
	}{
		{http.MethodPost, "tickets", directiveNoStore},
		{http.MethodPut, "categories/3", directiveNoStore},
		{http.MethodDelete, "equipment/9", directiveNoStore},
		{http.MethodGet, "users/me", directiveNoStore},
		{http.MethodGet, "users", directiveSlowMoving},
		{http.MethodGet, "categories", directiveSlowMoving},
		{http.MethodGet, "tickets", directiveNoCache},
		{http.MethodGet, "equipment/5/history", directiveNoCache},
		{http.MethodGet, "audit-logs", directiveNoCache},
	}

	for _, tt := range tests {
		if got := cacheControlFor(tt.method, tt.path); got != tt.expected {
			t.Errorf("cacheControlFor(%s, %s) = %q, want %q", tt.method, tt.path, got, tt.expected)
		}
	}
}

func TestIsBulkPath(t *testing.T) {
	tests := []struct {
		path     string
		expected bool
	}{
		{"audit-logs", true},
		{"audit-logs/action-types", true},
		{"statistics/dashboard", true},
		{"tickets", false},
		{"users/me", false},
	}

	for _, tt := range tests {
		if got := isBulkPath(tt.path); got != tt.expected {
			t.Errorf("isBulkPath(%s) = %v, want %v", tt.path, got, tt.expected)
		}
	}
}

func TestFirstSegment(t *testing.T) {
	tests := []struct {
		path     string
		expected string
	}{
		{"tickets", "tickets"},
		{"tickets/3/assign", "tickets"},
		{"/equipment/1", "equipment"},
		{"", ""},
	}

	for _, tt := range tests {
		if got := firstSegment(tt.path); got != tt.expected {
			t.Errorf("firstSegment(%q) = %q, want %q", tt.path, got, tt.expected)
		}
	}
}
