// Deskmirror - Helpdesk Client State Synchronization
// Copyright 2026 Deskmirror Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/deskmirror/deskmirror

package cache

import (
	"crypto/sha256"
	"fmt"
	"strings"

	"github.com/goccy/go-json"
)

// Fingerprint builds the cache key for a collection request: the entity name
// plus a hash of the filter parameters. Keys for the same entity share the
// entity prefix, which is what coarse invalidation operates on.
//
// Filters are serialized to JSON before hashing; filter structs omit
// zero-valued fields so an empty filter and an absent filter produce the
// same key. A nil params value addresses the unfiltered collection.
func Fingerprint(entity string, params any) string {
	if params == nil {
		return entity + ":all"
	}

	data, err := json.Marshal(params)
	if err != nil {
		// Marshal failure is effectively impossible for the filter types;
		// fall back to a formatted key rather than failing the lookup.
		return fmt.Sprintf("%s:%v", entity, params)
	}
	if string(data) == "{}" {
		return entity + ":all"
	}

	hash := sha256.Sum256(data)
	return fmt.Sprintf("%s:%x", entity, hash[:16])
}

// ItemFingerprint builds the cache key for a single entity fetched by id,
// e.g. the category-by-id derived view. It shares the entity prefix with the
// collection keys so a coarse invalidation covers both.
func ItemFingerprint(entity string, id int64) string {
	return fmt.Sprintf("%s:id:%d", entity, id)
}

// EntityOf extracts the entity prefix from a fingerprint key.
func EntityOf(key string) string {
	if i := strings.IndexByte(key, ':'); i >= 0 {
		return key[:i]
	}
	return key
}
