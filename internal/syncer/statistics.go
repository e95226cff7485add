// Deskmirror - Helpdesk Client State Synchronization
// Copyright 2026 Deskmirror Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/deskmirror/deskmirror

package syncer

import (
	"context"

	"github.com/deskmirror/deskmirror/internal/cache"
	"github.com/deskmirror/deskmirror/internal/models"
)

const statisticsEntity = "statistics"

// StatisticsService mirrors the read-only dashboard aggregates. These are
// bulk endpoints on the gateway side and use the transport's longer bulk
// timeout.
type StatisticsService struct {
	gw    Gateway
	store *cache.Store
}

// NewStatisticsService creates a StatisticsService.
func NewStatisticsService(gw Gateway, store *cache.Store) *StatisticsService {
	return &StatisticsService{gw: gw, store: store}
}

// Dashboard returns the overall helpdesk activity summary.
func (s *StatisticsService) Dashboard(ctx context.Context) (*models.DashboardStatistics, error) {
	key := statisticsEntity + ":dashboard"
	return itemThrough[models.DashboardStatistics](ctx, s.store, s.gw, statisticsEntity, key, "statistics/dashboard", statisticsTTL)
}

// Tickets returns ticket volume broken down by status, priority and
// category.
func (s *StatisticsService) Tickets(ctx context.Context) (*models.TicketStatistics, error) {
	key := statisticsEntity + ":tickets"
	return itemThrough[models.TicketStatistics](ctx, s.store, s.gw, statisticsEntity, key, "statistics/tickets", statisticsTTL)
}

// Invalidate drops the cached aggregates, typically after a burst of
// mutations when the dashboard should reflect them immediately.
func (s *StatisticsService) Invalidate() {
	invalidateEntity(s.store, statisticsEntity)
}
