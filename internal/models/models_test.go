// Deskmirror - Helpdesk Client State Synchronization
// Copyright 2026 Deskmirror Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/deskmirror/deskmirror

package models

import (
	"testing"
	"time"
)

func TestRoleCanBeAssignee(t *testing.T) {
	tests := []struct {
		role     Role
		expected bool
	}{
		{RoleUser, false},
		{RoleAgent, true},
		{RoleAdmin, true},
		{Role("unknown"), false},
	}

	for _, tt := range tests {
		if got := tt.role.CanBeAssignee(); got != tt.expected {
			t.Errorf("Role(%q).CanBeAssignee() = %v, want %v", tt.role, got, tt.expected)
		}
	}
}

func TestTicketStatusValid(t *testing.T) {
	for _, s := range []TicketStatus{TicketStatusNew, TicketStatusInProgress, TicketStatusClosed} {
		if !s.Valid() {
			t.Errorf("expected %q to be valid", s)
		}
	}
	if TicketStatus("resolved").Valid() {
		t.Error("expected unknown status to be invalid")
	}
}

func TestTicketFiltersValues(t *testing.T) {
	tests := []struct {
		name     string
		filters  TicketFilters
		expected map[string]string
	}{
		{
			name:     "empty filters produce no parameters",
			filters:  TicketFilters{},
			expected: map[string]string{},
		},
		{
			name: "all fields encoded",
			filters: TicketFilters{
				Status:     TicketStatusNew,
				Priority:   PriorityHigh,
				CategoryID: 3,
				AssigneeID: 7,
				CreatorID:  12,
				Room:       "B204",
				Search:     "printer",
			},
			expected: map[string]string{
				"status":      "new",
				"priority":    "high",
				"category_id": "3",
				"assignee_id": "7",
				"creator_id":  "12",
				"room":        "B204",
				"search":      "printer",
			},
		},
		{
			name:    "zero ids omitted",
			filters: TicketFilters{Status: TicketStatusClosed},
			expected: map[string]string{
				"status": "closed",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := tt.filters.Values()
			if len(v) != len(tt.expected) {
				t.Errorf("expected %d parameters, got %d (%v)", len(tt.expected), len(v), v)
			}
			for key, want := range tt.expected {
				if got := v.Get(key); got != want {
					t.Errorf("parameter %s = %q, want %q", key, got, want)
				}
			}
		})
	}
}

func TestUserFiltersActivePointer(t *testing.T) {
	active := false
	v := UserFilters{Active: &active}.Values()
	if got := v.Get("active"); got != "false" {
		t.Errorf("active = %q, want %q", got, "false")
	}

	v = UserFilters{}.Values()
	if v.Has("active") {
		t.Error("nil Active should not be encoded")
	}
}

func TestAuditFiltersMatches(t *testing.T) {
	entityType := "ticket"
	entityID := int64(42)
	userID := int64(9)
	entry := AuditLogEntry{
		ID:         1,
		UserID:     &userID,
		ActionType: ActionCreate,
		EntityType: &entityType,
		EntityID:   &entityID,
		CreatedAt:  time.Now(),
	}

	tests := []struct {
		name     string
		filters  AuditFilters
		expected bool
	}{
		{"empty filters match everything", AuditFilters{}, true},
		{"matching action type", AuditFilters{ActionType: ActionCreate}, true},
		{"mismatched action type", AuditFilters{ActionType: ActionDelete}, false},
		{"matching entity", AuditFilters{EntityType: "ticket", EntityID: 42}, true},
		{"mismatched entity id", AuditFilters{EntityType: "ticket", EntityID: 41}, false},
		{"mismatched entity type", AuditFilters{EntityType: "equipment"}, false},
		{"matching user", AuditFilters{UserID: 9}, true},
		{"mismatched user", AuditFilters{UserID: 10}, false},
		{"role is not checked client-side", AuditFilters{Role: RoleAdmin}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.filters.Matches(entry); got != tt.expected {
				t.Errorf("Matches() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestAuditFiltersMatchesSystemEntry(t *testing.T) {
	// System entries have no acting user; a user filter must exclude them.
	entry := AuditLogEntry{ID: 2, ActionType: ActionDelete}

	if !(AuditFilters{}).Matches(entry) {
		t.Error("empty filters should match a system entry")
	}
	if (AuditFilters{UserID: 1}).Matches(entry) {
		t.Error("user filter should exclude system entries")
	}
	if (AuditFilters{EntityType: "ticket"}).Matches(entry) {
		t.Error("entity filter should exclude entries without an entity")
	}
}
