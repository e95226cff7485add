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

const usersEntity = "users"

// UserService mirrors the user directory.
type UserService struct {
	gw    Gateway
	store *cache.Store
}

// NewUserService creates a UserService.
func NewUserService(gw Gateway, store *cache.Store) *UserService {
	return &UserService{gw: gw, store: store}
}

// List returns the users matching the filters.
func (s *UserService) List(ctx context.Context, filters models.UserFilters) ([]models.User, error) {
	key := cache.Fingerprint(usersEntity, filters)
	return listThrough[models.User](ctx, s.store, s.gw, usersEntity, key, "users", filters.Values(), userTTL)
}

// Agents returns the active users that can be assigned tickets, a derived
// view cached under the users entity.
func (s *UserService) Agents(ctx context.Context) ([]models.User, error) {
	active := true
	users, err := s.List(ctx, models.UserFilters{Active: &active})
	if err != nil {
		return nil, err
	}
	agents := make([]models.User, 0, len(users))
	for _, u := range users {
		if u.Role.CanBeAssignee() {
			agents = append(agents, u)
		}
	}
	return agents, nil
}

// Create registers a user account.
func (s *UserService) Create(ctx context.Context, in models.UserCreateInput) (*models.User, error) {
	if err := checkInput(in); err != nil {
		return nil, err
	}
	var created models.User
	if err := s.gw.Post(ctx, "users", in, &created); err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	invalidateEntity(s.store, usersEntity)
	return &created, nil
}

// Update edits a user account.
func (s *UserService) Update(ctx context.Context, id int64, in models.UserUpdateInput) (*models.User, error) {
	if err := checkInput(in); err != nil {
		return nil, err
	}
	var updated models.User
	if err := s.gw.Put(ctx, fmt.Sprintf("users/%d", id), in, &updated); err != nil {
		return nil, fmt.Errorf("update user %d: %w", id, err)
	}
	invalidateEntity(s.store, usersEntity)
	return &updated, nil
}

// Delete removes a user account. An account that is already gone counts as
// success.
func (s *UserService) Delete(ctx context.Context, id int64) error {
	if err := deleteIdempotent(ctx, s.gw, usersEntity, fmt.Sprintf("users/%d", id)); err != nil {
		return err
	}
	invalidateEntity(s.store, usersEntity)
	return nil
}
