// Deskmirror - Helpdesk Client State Synchronization
// Copyright 2026 Deskmirror Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/deskmirror/deskmirror

// Package syncer implements the per-entity read-through services on top of
// the fingerprinted cache and the gateway transport.
//
// Reads follow one engine: a fresh cache entry is served without network
// traffic; a stale or missing entry triggers a generation-guarded fetch; a
// fetch failure with stale data present serves the stale data and logs a
// warning; a fetch failure with nothing cached returns the error. Mutations
// go to the network first and coarsely invalidate the entity's cached
// collections only after the response is observed, so a failed mutation
// never perturbs local state. The one documented exception is the optimistic
// equipment delete in this package.
package syncer

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/deskmirror/deskmirror/internal/cache"
	"github.com/deskmirror/deskmirror/internal/logging"
	"github.com/deskmirror/deskmirror/internal/metrics"
	"github.com/deskmirror/deskmirror/internal/transport"
)

// Staleness horizon per entity class. Operational entities change often and
// revalidate aggressively; reference data is allowed to drift for minutes.
const (
	ticketTTL     = 30 * time.Second
	equipmentTTL  = 30 * time.Second
	userTTL       = 5 * time.Minute
	categoryTTL   = 5 * time.Minute
	statisticsTTL = 60 * time.Second
)

// Gateway is the subset of the transport client the services use.
type Gateway interface {
	Get(ctx context.Context, path string, query url.Values, out any) error
	Post(ctx context.Context, path string, body, out any) error
	Put(ctx context.Context, path string, body, out any) error
	Delete(ctx context.Context, path string) error
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// checkInput runs client-side validation on a mutation input. Invalid input
// is rejected before any network traffic.
func checkInput(in any) error {
	if err := validate.Struct(in); err != nil {
		return fmt.Errorf("invalid input: %w", err)
	}
	return nil
}

// invalidateEntity coarsely drops every cached collection and derived view
// of the entity.
func invalidateEntity(store *cache.Store, entity string) {
	store.Invalidate(entity + ":")
}

// listThrough is the shared cached-list read path.
func listThrough[T any](ctx context.Context, store *cache.Store, gw Gateway, entity, key, path string, query url.Values, ttl time.Duration) ([]T, error) {
	entry, status := store.Get(key)

	if status != cache.Missing {
		items, ok := entry.Value.([]T)
		if !ok {
			// A foreign value under our key means a bookkeeping bug
			// somewhere; drop the whole entity rather than guessing.
			logging.Error().Str("key", key).Msg("cached value has unexpected type, invalidating entity")
			invalidateEntity(store, entity)
			status = cache.Missing
		} else if status == cache.Fresh {
			return items, nil
		}
	}

	gen := store.Begin(key)

	var fetched []T
	if err := gw.Get(ctx, path, query, &fetched); err != nil {
		metrics.SyncErrors.WithLabelValues(entity).Inc()
		if status == cache.Stale {
			items := entry.Value.([]T)
			metrics.CacheStaleServed.WithLabelValues(entity).Inc()
			logging.Warn().Err(err).Str("key", key).Msg("fetch failed, serving stale data")
			return items, nil
		}
		return nil, fmt.Errorf("list %s: %w", entity, err)
	}

	if !store.SetList(key, gen, fetched, ttl) {
		// Superseded by a newer fetch or an invalidation; the response is
		// still correct for this caller, it just must not enter the cache.
		metrics.StaleResponsesDropped.Inc()
		logging.Debug().Str("key", key).Msg("dropping superseded list response")
	}
	return fetched, nil
}

// itemThrough is listThrough for single objects fetched by id or name.
func itemThrough[T any](ctx context.Context, store *cache.Store, gw Gateway, entity, key, path string, ttl time.Duration) (*T, error) {
	entry, status := store.Get(key)

	if status != cache.Missing {
		item, ok := entry.Value.(*T)
		if !ok {
			logging.Error().Str("key", key).Msg("cached value has unexpected type, invalidating entity")
			invalidateEntity(store, entity)
			status = cache.Missing
		} else if status == cache.Fresh {
			return item, nil
		}
	}

	gen := store.Begin(key)

	fetched := new(T)
	if err := gw.Get(ctx, path, nil, fetched); err != nil {
		metrics.SyncErrors.WithLabelValues(entity).Inc()
		if status == cache.Stale {
			metrics.CacheStaleServed.WithLabelValues(entity).Inc()
			logging.Warn().Err(err).Str("key", key).Msg("fetch failed, serving stale data")
			return entry.Value.(*T), nil
		}
		return nil, fmt.Errorf("get %s: %w", entity, err)
	}

	if !store.SetItem(key, gen, fetched, ttl) {
		metrics.StaleResponsesDropped.Inc()
	}
	return fetched, nil
}

// deleteIdempotent issues a DELETE and treats gateway not-found as success:
// the entity being gone is the state the caller asked for.
func deleteIdempotent(ctx context.Context, gw Gateway, entity, path string) error {
	err := gw.Delete(ctx, path)
	if err == nil {
		return nil
	}
	if transport.IsNotFound(err) {
		logging.Debug().Str("path", path).Msg("delete target already gone, treating as success")
		return nil
	}
	metrics.SyncErrors.WithLabelValues(entity).Inc()
	return fmt.Errorf("delete %s: %w", entity, err)
}
