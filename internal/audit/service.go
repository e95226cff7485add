// Deskmirror - Helpdesk Client State Synchronization
// Copyright 2026 Deskmirror Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/deskmirror/deskmirror

// Package audit mirrors the helpdesk audit log. Two sources feed it: the
// paginated REST snapshot, which is authoritative, and the WebSocket push
// channel, which delivers new entries live. The Merger owns the displayed
// collection and reconciles the two: snapshot refreshes replace it
// wholesale, push events are prepended when they pass the active filters.
package audit

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/deskmirror/deskmirror/internal/cache"
	"github.com/deskmirror/deskmirror/internal/models"
)

const auditEntity = "audit"

// actionTypesTTL governs the cached action type list; the set of action
// types only changes with gateway releases.
const actionTypesTTL = 5 * time.Minute

// Gateway is the subset of the transport client the audit service uses.
type Gateway interface {
	Get(ctx context.Context, path string, query url.Values, out any) error
}

// Service reads the audit log snapshot from the gateway.
type Service struct {
	gw    Gateway
	store *cache.Store
}

// NewService creates an audit Service.
func NewService(gw Gateway, store *cache.Store) *Service {
	return &Service{gw: gw, store: store}
}

// List fetches one page of the audit log snapshot. Pages are 1-based; a
// page or perPage of 0 leaves the gateway default in place. The snapshot is
// authoritative and never served from cache.
func (s *Service) List(ctx context.Context, filters models.AuditFilters, page, perPage int) (*models.AuditLogPage, error) {
	query := filters.Values()
	if page > 0 {
		query.Set("page", strconv.Itoa(page))
	}
	if perPage > 0 {
		query.Set("per_page", strconv.Itoa(perPage))
	}

	var out models.AuditLogPage
	if err := s.gw.Get(ctx, "audit-logs", query, &out); err != nil {
		return nil, fmt.Errorf("list audit logs: %w", err)
	}
	return &out, nil
}

// ActionTypes returns the known audit action types, cached briefly since the
// set is effectively static.
func (s *Service) ActionTypes(ctx context.Context) ([]models.ActionType, error) {
	const key = auditEntity + ":action-types"

	if entry, status := s.store.Get(key); status == cache.Fresh {
		if types, ok := entry.Value.([]models.ActionType); ok {
			return types, nil
		}
	}

	gen := s.store.Begin(key)
	var types []models.ActionType
	if err := s.gw.Get(ctx, "audit-logs/action-types", nil, &types); err != nil {
		return nil, fmt.Errorf("list action types: %w", err)
	}
	s.store.SetList(key, gen, types, actionTypesTTL)
	return types, nil
}
