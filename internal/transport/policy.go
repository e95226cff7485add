// Deskmirror - Helpdesk Client State Synchronization
// Copyright 2026 Deskmirror Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/deskmirror/deskmirror

package transport

import (
	"net/http"
	"strings"
)

// Cache-Control policy table. The directive is chosen from the request
// method and the first path segment: mutations must never be served from any
// intermediary cache, the identity endpoint must always hit the origin
// (plus a timestamp cache-buster, see Client.Do), and slow-moving resources
// may be revalidated lazily.
const (
	directiveNoStore    = "no-store"
	directiveNoCache    = "no-cache"
	directiveSlowMoving = "max-age=300, stale-while-revalidate=600"
)

// identityPath is the current-identity endpoint; 401s on it are the signal
// that the session itself is gone rather than a single resource being
// forbidden.
const identityPath = "users/me"

// cacheControlFor returns the Cache-Control directive for a request.
func cacheControlFor(method, path string) string {
	if method != http.MethodGet {
		return directiveNoStore
	}
	if path == identityPath {
		return directiveNoStore
	}

	switch firstSegment(path) {
	case "categories", "users":
		// Rarely-changing resources.
		return directiveSlowMoving
	default:
		return directiveNoCache
	}
}

// isBulkPath reports whether the path belongs to the heavyweight query
// family that gets the longer request timeout.
func isBulkPath(path string) bool {
	switch firstSegment(path) {
	case "audit-logs", "statistics":
		return true
	}
	return false
}

func firstSegment(path string) string {
	path = strings.TrimPrefix(path, "/")
	if i := strings.IndexByte(path, '/'); i >= 0 {
		return path[:i]
	}
	return path
}
