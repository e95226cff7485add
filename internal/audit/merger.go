// Deskmirror - Helpdesk Client State Synchronization
// Copyright 2026 Deskmirror Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/deskmirror/deskmirror

package audit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/deskmirror/deskmirror/internal/logging"
	"github.com/deskmirror/deskmirror/internal/metrics"
	"github.com/deskmirror/deskmirror/internal/models"
)

// defaultRefreshInterval drives the periodic snapshot refresh.
const defaultRefreshInterval = 30 * time.Second

// defaultPageSize is how many entries each snapshot refresh requests.
const defaultPageSize = 100

// maxMergedEntries bounds the merged collection between refreshes. Push
// prepends beyond the cap evict the oldest entries; the snapshot remains
// the source of truth for anything older.
const maxMergedEntries = 500

// Merger owns the displayed audit collection. The periodic snapshot
// replaces it wholesale; push events from the stream are prepended at the
// head when they pass the active client-side filters. Mismatched push
// events are counted and dropped, never merged.
type Merger struct {
	svc      *Service
	stream   *Stream
	interval time.Duration
	pageSize int

	mu          sync.RWMutex
	filters     models.AuditFilters
	entries     []models.AuditLogEntry
	total       int
	lastRefresh time.Time

	updateMu sync.Mutex
	onUpdate []func()
}

// NewMerger creates a Merger over the snapshot service and the push stream.
func NewMerger(svc *Service, stream *Stream) *Merger {
	return &Merger{
		svc:      svc,
		stream:   stream,
		interval: defaultRefreshInterval,
		pageSize: defaultPageSize,
	}
}

// String implements fmt.Stringer for supervisor logs.
func (m *Merger) String() string {
	return "audit-merger"
}

// SetRefreshInterval overrides the snapshot refresh cadence. Call before
// Serve.
func (m *Merger) SetRefreshInterval(d time.Duration) {
	if d > 0 {
		m.interval = d
	}
}

// SetPageSize overrides how many entries each snapshot refresh requests.
// Call before Serve.
func (m *Merger) SetPageSize(n int) {
	if n > 0 {
		m.pageSize = n
	}
}

// Entries returns a copy of the merged collection, newest first.
func (m *Merger) Entries() []models.AuditLogEntry {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.AuditLogEntry, len(m.entries))
	copy(out, m.entries)
	return out
}

// Total returns the gateway-reported total from the last snapshot.
func (m *Merger) Total() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.total
}

// LastRefresh returns when the last successful snapshot landed.
func (m *Merger) LastRefresh() time.Time {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastRefresh
}

// Filters returns the active filters.
func (m *Merger) Filters() models.AuditFilters {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.filters
}

// OnUpdate registers a listener invoked after every collection change.
func (m *Merger) OnUpdate(fn func()) {
	m.updateMu.Lock()
	defer m.updateMu.Unlock()
	m.onUpdate = append(m.onUpdate, fn)
}

func (m *Merger) notifyUpdate() {
	m.updateMu.Lock()
	listeners := make([]func(), len(m.onUpdate))
	copy(listeners, m.onUpdate)
	m.updateMu.Unlock()
	for _, fn := range listeners {
		fn()
	}
}

// SetFilters replaces the active filters, retargets the stream's role
// filter when it changed, and re-queries the snapshot so the collection
// reflects the new view immediately.
func (m *Merger) SetFilters(ctx context.Context, filters models.AuditFilters) error {
	m.mu.Lock()
	roleChanged := m.filters.Role != filters.Role
	m.filters = filters
	m.mu.Unlock()

	if roleChanged && m.stream != nil {
		var role *models.Role
		if filters.Role != "" {
			role = &filters.Role
		}
		if err := m.stream.SetRoleFilter(role); err != nil {
			// The dial query carries the role on the next reconnect; the
			// snapshot below is filtered correctly either way.
			logging.Warn().Err(err).Msg("failed to retarget stream role filter")
		}
	}

	return m.Refresh(ctx)
}

// Refresh replaces the merged collection with a fresh snapshot page.
func (m *Merger) Refresh(ctx context.Context) error {
	m.mu.RLock()
	filters := m.filters
	m.mu.RUnlock()

	page, err := m.svc.List(ctx, filters, 1, m.pageSize)
	if err != nil {
		return fmt.Errorf("refresh audit snapshot: %w", err)
	}

	m.mu.Lock()
	m.entries = page.Entries
	m.total = page.Total
	m.lastRefresh = time.Now()
	m.mu.Unlock()

	m.notifyUpdate()
	return nil
}

// merge prepends a push event at the head iff it passes the active
// client-side filters.
func (m *Merger) merge(entry models.AuditLogEntry) {
	m.mu.Lock()
	if !m.filters.Matches(entry) {
		m.mu.Unlock()
		return
	}
	m.entries = append([]models.AuditLogEntry{entry}, m.entries...)
	if len(m.entries) > maxMergedEntries {
		m.entries = m.entries[:maxMergedEntries]
	}
	m.total++
	m.mu.Unlock()

	metrics.StreamEventsMerged.Inc()
	m.notifyUpdate()
}

// Serve runs the refresh ticker and consumes push events until the context
// is canceled. It implements suture.Service.
func (m *Merger) Serve(ctx context.Context) error {
	if err := m.Refresh(ctx); err != nil {
		logging.Warn().Err(err).Msg("initial audit snapshot failed, will retry on next tick")
	}

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	events := m.stream.Events()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case <-ticker.C:
			if err := m.Refresh(ctx); err != nil {
				logging.Warn().Err(err).Msg("audit snapshot refresh failed")
			}

		case entry, ok := <-events:
			if !ok {
				// Stream stopped; keep refreshing from the snapshot alone.
				events = nil
				continue
			}
			m.merge(entry)
		}
	}
}
