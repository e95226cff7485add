// Deskmirror - Helpdesk Client State Synchronization
// Copyright 2026 Deskmirror Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/deskmirror/deskmirror

package syncer

import (
	"context"
	"fmt"
	"time"

	"github.com/deskmirror/deskmirror/internal/cache"
	"github.com/deskmirror/deskmirror/internal/logging"
	"github.com/deskmirror/deskmirror/internal/metrics"
	"github.com/deskmirror/deskmirror/internal/models"
	"github.com/deskmirror/deskmirror/internal/transport"
)

const equipmentEntity = "equipment"

// equipmentCategoriesKey caches the categories-with-equipment derived view.
// Category edits invalidate it too, since a rename or deactivation changes
// what the view should show.
const equipmentCategoriesKey = equipmentEntity + ":view:categories"

// settleDelay is how long a successful optimistic delete waits before the
// reconciling invalidation, long enough for list responses already in flight
// to land and be superseded.
const settleDelay = 2 * time.Second

// EquipmentService mirrors the equipment inventory. Delete is optimistic:
// the item disappears from every cached list before the gateway confirms,
// and reappears only if the gateway rejects the delete with something other
// than not-found.
type EquipmentService struct {
	gw    Gateway
	store *cache.Store

	// overridable in tests
	settle time.Duration
}

// NewEquipmentService creates an EquipmentService.
func NewEquipmentService(gw Gateway, store *cache.Store) *EquipmentService {
	return &EquipmentService{gw: gw, store: store, settle: settleDelay}
}

// List returns the equipment matching the filters.
func (s *EquipmentService) List(ctx context.Context, filters models.EquipmentFilters) ([]models.Equipment, error) {
	key := cache.Fingerprint(equipmentEntity, filters)
	return listThrough[models.Equipment](ctx, s.store, s.gw, equipmentEntity, key, "equipment", filters.Values(), equipmentTTL)
}

// Get returns a single piece of equipment by id.
func (s *EquipmentService) Get(ctx context.Context, id int64) (*models.Equipment, error) {
	key := cache.ItemFingerprint(equipmentEntity, id)
	return itemThrough[models.Equipment](ctx, s.store, s.gw, equipmentEntity, key, fmt.Sprintf("equipment/%d", id), equipmentTTL)
}

// Create registers a piece of equipment.
func (s *EquipmentService) Create(ctx context.Context, in models.EquipmentCreateInput) (*models.Equipment, error) {
	if err := checkInput(in); err != nil {
		return nil, err
	}
	var created models.Equipment
	if err := s.gw.Post(ctx, "equipment", in, &created); err != nil {
		return nil, fmt.Errorf("create equipment: %w", err)
	}
	invalidateEntity(s.store, equipmentEntity)
	return &created, nil
}

// Update edits a piece of equipment.
func (s *EquipmentService) Update(ctx context.Context, id int64, in models.EquipmentUpdateInput) (*models.Equipment, error) {
	if err := checkInput(in); err != nil {
		return nil, err
	}
	var updated models.Equipment
	if err := s.gw.Put(ctx, fmt.Sprintf("equipment/%d", id), in, &updated); err != nil {
		return nil, fmt.Errorf("update equipment %d: %w", id, err)
	}
	invalidateEntity(s.store, equipmentEntity)
	return &updated, nil
}

// Delete removes a piece of equipment optimistically: every cached equipment
// list drops the item immediately, then the gateway call runs.
//
//   - gateway success: the removal stands; a reconciling invalidation runs
//     after a settle delay to absorb responses already in flight.
//   - gateway not-found: the item was already gone, so the removal stands and
//     the entity is invalidated to reconcile with whatever else changed.
//   - any other failure: the previous list contents are restored and the
//     error is returned.
func (s *EquipmentService) Delete(ctx context.Context, id int64) error {
	snapshot := s.removeFromLists(id)

	err := s.gw.Delete(ctx, fmt.Sprintf("equipment/%d", id))
	switch {
	case err == nil:
		time.AfterFunc(s.settle, func() {
			invalidateEntity(s.store, equipmentEntity)
		})
		return nil
	case transport.IsNotFound(err):
		logging.Debug().Int64("id", id).Msg("equipment already deleted on gateway")
		invalidateEntity(s.store, equipmentEntity)
		return nil
	default:
		s.restoreLists(snapshot)
		metrics.OptimisticRollbacks.Inc()
		metrics.SyncErrors.WithLabelValues(equipmentEntity).Inc()
		return fmt.Errorf("delete equipment %d: %w", id, err)
	}
}

// removeFromLists drops the item from every cached equipment list and
// returns the previous list values keyed by cache key, for rollback.
func (s *EquipmentService) removeFromLists(id int64) map[string][]models.Equipment {
	snapshot := make(map[string][]models.Equipment)
	for key, entry := range s.store.Entries(equipmentEntity + ":") {
		if entry.Kind != cache.KindList {
			continue
		}
		items, ok := entry.Value.([]models.Equipment)
		if !ok {
			// Mixed derived views live under the same prefix; anything that
			// is not an equipment list is left alone.
			continue
		}
		trimmed := make([]models.Equipment, 0, len(items))
		removed := false
		for _, item := range items {
			if item.ID == id {
				removed = true
				continue
			}
			trimmed = append(trimmed, item)
		}
		if !removed {
			continue
		}
		snapshot[key] = items
		s.store.Replace(key, trimmed)
	}
	// The per-id view must not survive the optimistic removal either.
	s.store.Delete(cache.ItemFingerprint(equipmentEntity, id))
	return snapshot
}

// restoreLists puts the pre-delete list contents back.
func (s *EquipmentService) restoreLists(snapshot map[string][]models.Equipment) {
	for key, items := range snapshot {
		if !s.store.Replace(key, items) {
			// The entry was invalidated while the delete was in flight; a
			// fresh fetch will repopulate it, nothing to restore into.
			logging.Debug().Str("key", key).Msg("skipping rollback for evicted entry")
		}
	}
}

// Categories returns the categories that currently have equipment, a derived
// view cached under the equipment entity.
func (s *EquipmentService) Categories(ctx context.Context) ([]models.Category, error) {
	return listThrough[models.Category](ctx, s.store, s.gw, equipmentEntity, equipmentCategoriesKey, "equipment/categories", nil, categoryTTL)
}

// Locations returns the distinct locations in use, a derived view cached
// under the equipment entity.
func (s *EquipmentService) Locations(ctx context.Context) ([]string, error) {
	key := equipmentEntity + ":view:locations"
	return listThrough[string](ctx, s.store, s.gw, equipmentEntity, key, "equipment/locations", nil, equipmentTTL)
}

// Maintenance returns the equipment's service records.
func (s *EquipmentService) Maintenance(ctx context.Context, id int64) ([]models.MaintenanceRecord, error) {
	key := fmt.Sprintf("%s:maintenance:%d", equipmentEntity, id)
	return listThrough[models.MaintenanceRecord](ctx, s.store, s.gw, equipmentEntity, key, fmt.Sprintf("equipment/%d/maintenance", id), nil, equipmentTTL)
}

// History returns the tickets filed against the equipment.
func (s *EquipmentService) History(ctx context.Context, id int64) ([]models.Ticket, error) {
	key := fmt.Sprintf("%s:history:%d", equipmentEntity, id)
	return listThrough[models.Ticket](ctx, s.store, s.gw, equipmentEntity, key, fmt.Sprintf("equipment/%d/history", id), nil, equipmentTTL)
}
