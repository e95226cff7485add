// Deskmirror - Helpdesk Client State Synchronization
// Copyright 2026 Deskmirror Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/deskmirror/deskmirror

package audit

import (
	"context"
	"net/url"
	"sync"
	"testing"

	"github.com/deskmirror/deskmirror/internal/cache"
	"github.com/deskmirror/deskmirror/internal/models"
)

// fakeGateway scripts GET responses per path and records queries.
type fakeGateway struct {
	mu      sync.Mutex
	calls   map[string]int
	queries map[string]url.Values
	pages   map[string]models.AuditLogPage
	types   []models.ActionType
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		calls:   make(map[string]int),
		queries: make(map[string]url.Values),
		pages:   make(map[string]models.AuditLogPage),
	}
}

func (g *fakeGateway) Get(_ context.Context, path string, query url.Values, out any) error {
	g.mu.Lock()
	g.calls[path]++
	g.queries[path] = query
	g.mu.Unlock()

	switch path {
	case "audit-logs":
		*out.(*models.AuditLogPage) = g.pages[path]
	case "audit-logs/action-types":
		*out.(*[]models.ActionType) = g.types
	}
	return nil
}

func (g *fakeGateway) count(path string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls[path]
}

func TestServiceListPagination(t *testing.T) {
	t.Parallel()

	gw := newFakeGateway()
	gw.pages["audit-logs"] = models.AuditLogPage{
		Entries: []models.AuditLogEntry{{ID: 1, ActionType: models.ActionCreate}},
		Total:   1, Page: 2, Pages: 3,
	}
	svc := NewService(gw, cache.New())

	page, err := svc.List(context.Background(), models.AuditFilters{ActionType: models.ActionCreate}, 2, 50)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(page.Entries) != 1 || page.Page != 2 {
		t.Fatalf("page = %+v", page)
	}

	q := gw.queries["audit-logs"]
	if q.Get("page") != "2" || q.Get("per_page") != "50" {
		t.Fatalf("pagination query = %v", q)
	}
	if q.Get("action_type") != "CREATE" {
		t.Fatalf("filter query = %v", q)
	}
}

func TestServiceListDefaultsOmitPagination(t *testing.T) {
	t.Parallel()

	gw := newFakeGateway()
	svc := NewService(gw, cache.New())

	if _, err := svc.List(context.Background(), models.AuditFilters{}, 0, 0); err != nil {
		t.Fatalf("List: %v", err)
	}
	q := gw.queries["audit-logs"]
	if q.Has("page") || q.Has("per_page") {
		t.Fatalf("query carries pagination for defaults: %v", q)
	}
}

func TestServiceActionTypesCached(t *testing.T) {
	t.Parallel()

	gw := newFakeGateway()
	gw.types = []models.ActionType{models.ActionCreate, models.ActionDelete}
	svc := NewService(gw, cache.New())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		types, err := svc.ActionTypes(ctx)
		if err != nil {
			t.Fatalf("ActionTypes #%d: %v", i, err)
		}
		if len(types) != 2 {
			t.Fatalf("ActionTypes #%d = %v", i, types)
		}
	}
	if got := gw.count("audit-logs/action-types"); got != 1 {
		t.Fatalf("fetches = %d, want 1 (cached)", got)
	}
}
