// Deskmirror - Helpdesk Client State Synchronization
// Copyright 2026 Deskmirror Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/deskmirror/deskmirror

// Package cache implements the shared entity cache: a thread-safe, in-memory
// store of fetched collections keyed by request fingerprint, with coarse
// per-entity invalidation, publish/subscribe change notification, and a
// monotonic request-generation guard.
//
// The store is constructed explicitly and passed to its consumers; there is
// no package-level singleton. Entries carry a kind tag (list or item) so
// optimistic update paths never have to guess the shape of cached data.
//
// Staleness versus eviction: an entry past its TTL is reported as stale but
// kept, so callers can serve it while a revalidation is in flight. A janitor
// loop evicts entries that have been stale for longer than the configured
// retention.
package cache

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/deskmirror/deskmirror/internal/logging"
	"github.com/deskmirror/deskmirror/internal/metrics"
)

// Kind tags the shape of a cached value.
type Kind uint8

const (
	// KindList marks a cached collection (a []T stored as any).
	KindList Kind = iota + 1
	// KindItem marks a single cached entity.
	KindItem
)

// Status classifies a Get result.
type Status int

const (
	// Missing means no entry exists for the key.
	Missing Status = iota
	// Fresh means the entry exists and is within its TTL.
	Fresh
	// Stale means the entry exists but its TTL has elapsed; callers should
	// revalidate but may serve the value meanwhile.
	Stale
)

// Entry is a cached value with its freshness metadata.
type Entry struct {
	Kind       Kind
	Value      any
	FetchedAt  time.Time
	TTL        time.Duration
	Generation uint64
}

// freshAt reports whether the entry is within its TTL at the given instant.
func (e Entry) freshAt(now time.Time) bool {
	return now.Before(e.FetchedAt.Add(e.TTL))
}

// EventType distinguishes cache change notifications.
type EventType int

const (
	// EventSet fires when an entry is stored or replaced.
	EventSet EventType = iota
	// EventInvalidate fires when a prefix is coarsely invalidated.
	EventInvalidate
)

// Event describes a cache change delivered to subscribers.
type Event struct {
	Type   EventType
	Key    string // set events: the affected key; invalidations: empty
	Prefix string // the entity prefix the event falls under
}

type subscription struct {
	prefix string
	fn     func(Event)
}

// Store is the shared entity cache.
type Store struct {
	mu      sync.RWMutex
	entries map[string]Entry
	gens    map[string]uint64

	subMu   sync.RWMutex
	subs    map[uint64]subscription
	nextSub uint64

	retention time.Duration
}

// DefaultRetention is how long a stale entry is kept before the janitor
// evicts it.
const DefaultRetention = 30 * time.Minute

// New creates an empty store. Call RunJanitor in a goroutine (or supervise
// it) to enable background eviction of long-stale entries.
func New() *Store {
	return &Store{
		entries:   make(map[string]Entry),
		gens:      make(map[string]uint64),
		subs:      make(map[uint64]subscription),
		retention: DefaultRetention,
	}
}

// SetRetention overrides how long stale entries are retained.
func (s *Store) SetRetention(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if d > 0 {
		s.retention = d
	}
}

// Get returns the entry for key and its freshness status. Stale entries are
// returned so the caller can serve them while revalidating.
func (s *Store) Get(key string) (Entry, Status) {
	s.mu.RLock()
	entry, ok := s.entries[key]
	s.mu.RUnlock()

	entity := EntityOf(key)
	if !ok {
		metrics.CacheMisses.WithLabelValues(entity).Inc()
		return Entry{}, Missing
	}
	if !entry.freshAt(time.Now()) {
		// Stale-served is counted by the caller, which alone knows whether
		// the stale value is actually delivered or just revalidated.
		return entry, Stale
	}
	metrics.CacheHits.WithLabelValues(entity).Inc()
	return entry, Fresh
}

// Begin registers intent to fetch for key and returns the fetch's
// generation. A later SetList/SetItem with this generation succeeds only if
// no newer fetch was begun and no invalidation occurred in between, so a
// response from a superseded request can never overwrite newer data.
func (s *Store) Begin(key string) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gens[key]++
	return s.gens[key]
}

// SetList stores a fetched collection under key if gen is still current.
// Returns false when the write was discarded as superseded.
func (s *Store) SetList(key string, gen uint64, value any, ttl time.Duration) bool {
	return s.set(key, gen, Entry{Kind: KindList, Value: value, TTL: ttl})
}

// SetItem stores a fetched single entity under key if gen is still current.
func (s *Store) SetItem(key string, gen uint64, value any, ttl time.Duration) bool {
	return s.set(key, gen, Entry{Kind: KindItem, Value: value, TTL: ttl})
}

func (s *Store) set(key string, gen uint64, entry Entry) bool {
	s.mu.Lock()
	if current := s.gens[key]; gen != current {
		s.mu.Unlock()
		metrics.StaleResponsesDropped.Inc()
		logging.Debug().Str("key", key).Uint64("gen", gen).Uint64("current", current).
			Msg("dropping superseded response")
		return false
	}
	entry.FetchedAt = time.Now()
	entry.Generation = gen
	s.entries[key] = entry
	size := len(s.entries)
	s.mu.Unlock()

	metrics.CacheSize.Set(float64(size))
	s.notify(Event{Type: EventSet, Key: key, Prefix: EntityOf(key)})
	return true
}

// Replace swaps the value of an existing entry in place, preserving its
// freshness metadata and generation. Used by optimistic mutations to apply
// a speculative change or restore a snapshot. Returns false if the key is
// no longer present.
func (s *Store) Replace(key string, value any) bool {
	s.mu.Lock()
	entry, ok := s.entries[key]
	if !ok {
		s.mu.Unlock()
		return false
	}
	entry.Value = value
	s.entries[key] = entry
	s.mu.Unlock()

	s.notify(Event{Type: EventSet, Key: key, Prefix: EntityOf(key)})
	return true
}

// Entries returns a snapshot of all entries whose key starts with prefix.
func (s *Store) Entries(prefix string) map[string]Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]Entry)
	for key, entry := range s.entries {
		if strings.HasPrefix(key, prefix) {
			out[key] = entry
		}
	}
	return out
}

// Invalidate coarsely removes every entry whose key starts with prefix and
// bumps the generation of each touched key so in-flight fetches begun before
// the invalidation cannot resurrect removed data. Returns the number of
// evicted entries.
func (s *Store) Invalidate(prefix string) int {
	s.mu.Lock()
	evicted := 0
	for key := range s.entries {
		if strings.HasPrefix(key, prefix) {
			delete(s.entries, key)
			s.gens[key]++
			evicted++
		}
	}
	// In-flight fetches for keys not currently cached are superseded too.
	for key := range s.gens {
		if _, cached := s.entries[key]; !cached && strings.HasPrefix(key, prefix) {
			s.gens[key]++
		}
	}
	size := len(s.entries)
	s.mu.Unlock()

	metrics.CacheSize.Set(float64(size))
	metrics.CacheInvalidations.WithLabelValues(prefix).Inc()
	s.notify(Event{Type: EventInvalidate, Prefix: prefix})
	return evicted
}

// Delete removes a single entry without touching its siblings.
func (s *Store) Delete(key string) {
	s.mu.Lock()
	delete(s.entries, key)
	s.gens[key]++
	size := len(s.entries)
	s.mu.Unlock()

	metrics.CacheSize.Set(float64(size))
}

// Clear removes everything. Used on logout and credential purge.
func (s *Store) Clear() {
	s.mu.Lock()
	for key := range s.entries {
		s.gens[key]++
	}
	s.entries = make(map[string]Entry)
	s.mu.Unlock()

	metrics.CacheSize.Set(0)
	s.notify(Event{Type: EventInvalidate, Prefix: ""})
}

// Len returns the number of cached entries.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Subscribe registers fn for events under prefix (an empty prefix receives
// everything). The returned function unsubscribes. Callbacks run
// synchronously on the mutating goroutine and must not call back into the
// store while handling an event.
func (s *Store) Subscribe(prefix string, fn func(Event)) func() {
	s.subMu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = subscription{prefix: prefix, fn: fn}
	s.subMu.Unlock()

	return func() {
		s.subMu.Lock()
		delete(s.subs, id)
		s.subMu.Unlock()
	}
}

// notify delivers an event to every matching subscriber.
func (s *Store) notify(ev Event) {
	s.subMu.RLock()
	matched := make([]func(Event), 0, len(s.subs))
	for _, sub := range s.subs {
		if sub.prefix == "" || strings.HasPrefix(ev.Prefix, sub.prefix) || ev.Prefix == "" {
			matched = append(matched, sub.fn)
		}
	}
	s.subMu.RUnlock()

	for _, fn := range matched {
		fn(ev)
	}
}

// RunJanitor evicts entries that have been stale for longer than the
// retention period. It blocks until ctx is canceled, so it can run directly
// under the supervisor.
func (s *Store) RunJanitor(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.evictExpired(time.Now())
		}
	}
}

func (s *Store) evictExpired(now time.Time) {
	s.mu.Lock()
	evicted := 0
	for key, entry := range s.entries {
		if now.After(entry.FetchedAt.Add(entry.TTL + s.retention)) {
			delete(s.entries, key)
			s.gens[key]++
			evicted++
		}
	}
	size := len(s.entries)
	s.mu.Unlock()

	metrics.CacheSize.Set(float64(size))
	if evicted > 0 {
		logging.Debug().Int("evicted", evicted).Msg("cache janitor pass")
	}
}
