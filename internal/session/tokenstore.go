// Deskmirror - Helpdesk Client State Synchronization
// Copyright 2026 Deskmirror Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/deskmirror/deskmirror

package session

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// FileTokenStore persists the bearer credential across restarts, the way a
// browser client keeps it in local storage. It implements
// transport.CredentialSource.
//
// The token lives in a single file with 0600 permissions. Reads are served
// from memory after the first load; Save and Clear write through.
type FileTokenStore struct {
	path string

	mu     sync.RWMutex
	token  string
	loaded bool
}

// NewFileTokenStore creates a token store backed by the given file path.
func NewFileTokenStore(path string) *FileTokenStore {
	return &FileTokenStore{path: path}
}

// Token returns the persisted credential, if any.
func (s *FileTokenStore) Token() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.loaded {
		s.load()
	}
	return s.token, s.token != ""
}

// load reads the token file into memory (must be called with mu held).
func (s *FileTokenStore) load() {
	s.loaded = true
	data, err := os.ReadFile(s.path)
	if err != nil {
		return // no token persisted
	}
	s.token = strings.TrimSpace(string(data))
}

// Save persists a new credential.
func (s *FileTokenStore) Save(token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return err
	}
	if err := os.WriteFile(s.path, []byte(token), 0o600); err != nil {
		return err
	}
	s.token = token
	s.loaded = true
	return nil
}

// Clear removes the persisted credential. Removing an already-absent file
// is not an error.
func (s *FileTokenStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.token = ""
	s.loaded = true
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
