// Deskmirror - Helpdesk Client State Synchronization
// Copyright 2026 Deskmirror Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/deskmirror/deskmirror

package syncer

import (
	"context"
	"fmt"

	"github.com/deskmirror/deskmirror/internal/cache"
	"github.com/deskmirror/deskmirror/internal/models"
)

const categoriesEntity = "categories"

// CategoryService mirrors the category reference data. Categories referenced
// by existing tickets or equipment are deactivated, never removed.
type CategoryService struct {
	gw    Gateway
	store *cache.Store
}

// NewCategoryService creates a CategoryService.
func NewCategoryService(gw Gateway, store *cache.Store) *CategoryService {
	return &CategoryService{gw: gw, store: store}
}

// List returns all categories.
func (s *CategoryService) List(ctx context.Context) ([]models.Category, error) {
	key := cache.Fingerprint(categoriesEntity, nil)
	return listThrough[models.Category](ctx, s.store, s.gw, categoriesEntity, key, "categories", nil, categoryTTL)
}

// Get returns a category by id, cached as a derived per-id view so a coarse
// category invalidation covers it.
func (s *CategoryService) Get(ctx context.Context, id int64) (*models.Category, error) {
	key := cache.ItemFingerprint(categoriesEntity, id)
	return itemThrough[models.Category](ctx, s.store, s.gw, categoriesEntity, key, fmt.Sprintf("categories/%d", id), categoryTTL)
}

// Create adds a category.
func (s *CategoryService) Create(ctx context.Context, in models.CategoryCreateInput) (*models.Category, error) {
	if err := checkInput(in); err != nil {
		return nil, err
	}
	var created models.Category
	if err := s.gw.Post(ctx, "categories", in, &created); err != nil {
		return nil, fmt.Errorf("create category: %w", err)
	}
	invalidateEntity(s.store, categoriesEntity)
	return &created, nil
}

// Update edits a category.
func (s *CategoryService) Update(ctx context.Context, id int64, in models.CategoryUpdateInput) (*models.Category, error) {
	if err := checkInput(in); err != nil {
		return nil, err
	}
	var updated models.Category
	if err := s.gw.Put(ctx, fmt.Sprintf("categories/%d", id), in, &updated); err != nil {
		return nil, fmt.Errorf("update category %d: %w", id, err)
	}
	invalidateEntity(s.store, categoriesEntity)
	// The equipment-categories derived view embeds category names and
	// active flags, so an edit makes it wrong, not just stale.
	s.store.Delete(equipmentCategoriesKey)
	return &updated, nil
}

// Deactivate soft-deletes a category. The record stays resolvable for
// historical tickets and equipment; it just stops being offered for new ones.
func (s *CategoryService) Deactivate(ctx context.Context, id int64) (*models.Category, error) {
	inactive := false
	return s.Update(ctx, id, models.CategoryUpdateInput{Active: &inactive})
}
