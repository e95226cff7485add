// Deskmirror - Helpdesk Client State Synchronization
// Copyright 2026 Deskmirror Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/deskmirror/deskmirror

package session

import (
	"os"
	"path/filepath"
	"time"

	"github.com/goccy/go-json"

	"github.com/deskmirror/deskmirror/internal/models"
)

// identitySnapshot is the short-lived mirror of the current identity written
// on shutdown and restored on the next startup before the identity fetch
// resolves, so consumers don't observe a spurious "anonymous" window during
// a restart. The restored value is provisional and is overwritten as soon
// as the network fetch completes.
type identitySnapshot struct {
	User    models.User `json:"user"`
	SavedAt time.Time   `json:"saved_at"`
}

// snapshotMaxAge bounds how old a snapshot may be before it is ignored.
const snapshotMaxAge = 5 * time.Minute

// writeSnapshot persists the identity snapshot to path.
func writeSnapshot(path string, user models.User) error {
	data, err := json.Marshal(identitySnapshot{User: user, SavedAt: time.Now()})
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

// readSnapshot loads a snapshot from path if it exists and is younger than
// snapshotMaxAge. The file is removed after a successful read so a stale
// identity can never be restored twice.
func readSnapshot(path string) (*models.User, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, false
	}
	_ = os.Remove(path)

	var snap identitySnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, false
	}
	if time.Since(snap.SavedAt) > snapshotMaxAge {
		return nil, false
	}
	return &snap.User, true
}

// removeSnapshot deletes any persisted snapshot, e.g. on logout.
func removeSnapshot(path string) {
	_ = os.Remove(path)
}
