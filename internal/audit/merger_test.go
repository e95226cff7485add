// Deskmirror - Helpdesk Client State Synchronization
// Copyright 2026 Deskmirror Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/deskmirror/deskmirror

package audit

import (
	"context"
	"testing"

	"github.com/deskmirror/deskmirror/internal/cache"
	"github.com/deskmirror/deskmirror/internal/models"
)

func entityPtr(s string) *string { return &s }

func newTestMerger(t *testing.T, gw *fakeGateway) *Merger {
	t.Helper()
	svc := NewService(gw, cache.New())
	stream := NewStream(StreamConfig{BaseURL: "http://gateway.invalid"})
	return NewMerger(svc, stream)
}

func TestMergerRefreshReplacesWholesale(t *testing.T) {
	t.Parallel()

	gw := newFakeGateway()
	gw.pages["audit-logs"] = models.AuditLogPage{
		Entries: []models.AuditLogEntry{{ID: 10}, {ID: 9}},
		Total:   2,
	}
	m := newTestMerger(t, gw)

	if err := m.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if got := m.Entries(); len(got) != 2 || got[0].ID != 10 {
		t.Fatalf("entries = %v", got)
	}

	// A later snapshot replaces everything, including push-merged entries.
	m.merge(models.AuditLogEntry{ID: 11, ActionType: models.ActionCreate})
	gw.mu.Lock()
	gw.pages["audit-logs"] = models.AuditLogPage{
		Entries: []models.AuditLogEntry{{ID: 12}},
		Total:   1,
	}
	gw.mu.Unlock()

	if err := m.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	got := m.Entries()
	if len(got) != 1 || got[0].ID != 12 {
		t.Fatalf("entries after second snapshot = %v", got)
	}
	if m.Total() != 1 {
		t.Fatalf("total = %d, want 1", m.Total())
	}
}

func TestMergerPrependsMatchingEvent(t *testing.T) {
	t.Parallel()

	gw := newFakeGateway()
	gw.pages["audit-logs"] = models.AuditLogPage{
		Entries: []models.AuditLogEntry{{ID: 5, ActionType: models.ActionUpdate}},
		Total:   1,
	}
	m := newTestMerger(t, gw)
	if err := m.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}

	var updates int
	m.OnUpdate(func() { updates++ })

	m.merge(models.AuditLogEntry{ID: 6, ActionType: models.ActionCreate})

	got := m.Entries()
	if len(got) != 2 {
		t.Fatalf("entries = %d, want 2", len(got))
	}
	if got[0].ID != 6 {
		t.Fatalf("head = %d, want the pushed entry at index 0", got[0].ID)
	}
	if m.Total() != 2 {
		t.Fatalf("total = %d, want 2", m.Total())
	}
	if updates != 1 {
		t.Fatalf("update notifications = %d, want 1", updates)
	}
}

func TestMergerDropsMismatchedEvent(t *testing.T) {
	t.Parallel()

	gw := newFakeGateway()
	gw.pages["audit-logs"] = models.AuditLogPage{Total: 0}
	m := newTestMerger(t, gw)
	if err := m.SetFilters(context.Background(), models.AuditFilters{
		ActionType: models.ActionDelete,
	}); err != nil {
		t.Fatalf("SetFilters: %v", err)
	}

	// Wrong action type: dropped.
	m.merge(models.AuditLogEntry{ID: 1, ActionType: models.ActionCreate})
	if got := m.Entries(); len(got) != 0 {
		t.Fatalf("mismatched event merged: %v", got)
	}

	// Matching action type: prepended.
	m.merge(models.AuditLogEntry{ID: 2, ActionType: models.ActionDelete})
	if got := m.Entries(); len(got) != 1 || got[0].ID != 2 {
		t.Fatalf("matching event not merged: %v", got)
	}
}

func TestMergerEntityFilterDimensions(t *testing.T) {
	t.Parallel()

	gw := newFakeGateway()
	gw.pages["audit-logs"] = models.AuditLogPage{}
	m := newTestMerger(t, gw)
	if err := m.SetFilters(context.Background(), models.AuditFilters{
		EntityType: "ticket",
		EntityID:   42,
	}); err != nil {
		t.Fatalf("SetFilters: %v", err)
	}

	tests := []struct {
		name  string
		entry models.AuditLogEntry
		want  int
	}{
		{"wrong entity type", models.AuditLogEntry{ID: 1, EntityType: entityPtr("equipment")}, 0},
		{"missing entity id", models.AuditLogEntry{ID: 2, EntityType: entityPtr("ticket")}, 0},
		{"full match", models.AuditLogEntry{ID: 3, EntityType: entityPtr("ticket"), EntityID: int64Ptr(42)}, 1},
	}
	for _, tt := range tests {
		m.merge(tt.entry)
		if got := len(m.Entries()); got != tt.want {
			t.Fatalf("%s: entries = %d, want %d", tt.name, got, tt.want)
		}
	}
}

func int64Ptr(v int64) *int64 { return &v }

func TestMergerSetFiltersRequeriesSnapshot(t *testing.T) {
	t.Parallel()

	gw := newFakeGateway()
	gw.pages["audit-logs"] = models.AuditLogPage{}
	m := newTestMerger(t, gw)

	if err := m.SetFilters(context.Background(), models.AuditFilters{UserID: 3}); err != nil {
		t.Fatalf("SetFilters: %v", err)
	}
	if got := gw.count("audit-logs"); got != 1 {
		t.Fatalf("snapshot queries = %d, want 1", got)
	}
	if got := gw.queries["audit-logs"].Get("user_id"); got != "3" {
		t.Fatalf("snapshot query user_id = %q", got)
	}
}

func TestMergerCapsCollection(t *testing.T) {
	t.Parallel()

	gw := newFakeGateway()
	gw.pages["audit-logs"] = models.AuditLogPage{}
	m := newTestMerger(t, gw)

	for i := 0; i < maxMergedEntries+10; i++ {
		m.merge(models.AuditLogEntry{ID: int64(i), ActionType: models.ActionLogin})
	}
	got := m.Entries()
	if len(got) != maxMergedEntries {
		t.Fatalf("entries = %d, want cap %d", len(got), maxMergedEntries)
	}
	if got[0].ID != int64(maxMergedEntries+9) {
		t.Fatalf("head = %d, want the newest entry", got[0].ID)
	}
}
