// Deskmirror - Helpdesk Client State Synchronization
// Copyright 2026 Deskmirror Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/deskmirror/deskmirror

// Package session holds the authenticated identity and its lifecycle: login,
// logout, bounded-retry initialization from a persisted credential, and the
// short-lived identity snapshot that bridges restarts.
//
// State machine:
//
//	StateUnknown (initial, identity unresolved)
//	    -> StateAuthenticated (identity fetched)
//	    -> StateAnonymous     (no credential, or credential rejected)
//
// Operations return errors as values; nothing escapes this boundary as a
// panic.
package session

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/golang-jwt/jwt/v5"

	"github.com/deskmirror/deskmirror/internal/logging"
	"github.com/deskmirror/deskmirror/internal/models"
	"github.com/deskmirror/deskmirror/internal/transport"
)

// State is the session lifecycle state.
type State int

const (
	// StateUnknown means the identity has not been resolved yet.
	StateUnknown State = iota
	// StateAuthenticated means the identity fetch succeeded.
	StateAuthenticated
	// StateAnonymous means there is no usable credential.
	StateAnonymous
)

// String implements fmt.Stringer.
func (s State) String() string {
	switch s {
	case StateAuthenticated:
		return "authenticated"
	case StateAnonymous:
		return "anonymous"
	default:
		return "unknown"
	}
}

// initRetries bounds identity-fetch retries during initialization. Transient
// failures are retried with a fixed short backoff; an unauthorized response
// is terminal immediately.
const (
	initRetries      = 2
	initRetryBackoff = 500 * time.Millisecond
)

// Gateway is the subset of the transport client the session store uses.
type Gateway interface {
	Get(ctx context.Context, path string, query url.Values, out any) error
	Post(ctx context.Context, path string, body, out any) error
}

// TokenStore persists the bearer credential.
type TokenStore interface {
	Token() (string, bool)
	Save(token string) error
	Clear() error
}

// Purger drops cached entity data on logout.
type Purger interface {
	Clear()
}

// tokenResponse is the gateway's auth/token response.
type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// Store is the session store.
type Store struct {
	gw           Gateway
	tokens       TokenStore
	purger       Purger
	snapshotPath string

	mu          sync.RWMutex
	state       State
	user        *models.User
	provisional bool
	lastErr     error

	changeMu  sync.Mutex
	listeners []func(State, *models.User)
}

// New creates a session store. snapshotPath may be empty to disable the
// identity snapshot.
func New(gw Gateway, tokens TokenStore, purger Purger, snapshotPath string) *Store {
	return &Store{
		gw:           gw,
		tokens:       tokens,
		purger:       purger,
		snapshotPath: snapshotPath,
		state:        StateUnknown,
	}
}

// State returns the current lifecycle state.
func (s *Store) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Current returns the current identity, which may be a provisional snapshot
// restore while the state is still StateUnknown. The boolean reports
// whether the identity is network-confirmed.
func (s *Store) Current() (*models.User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user, s.user != nil && !s.provisional
}

// LastError returns the most recent initialization or login error.
func (s *Store) LastError() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastErr
}

// OnChange registers a listener invoked after every state transition.
func (s *Store) OnChange(fn func(State, *models.User)) {
	s.changeMu.Lock()
	defer s.changeMu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// transition updates the state and notifies listeners.
func (s *Store) transition(state State, user *models.User, provisional bool, err error) {
	s.mu.Lock()
	s.state = state
	s.user = user
	s.provisional = provisional
	s.lastErr = err
	s.mu.Unlock()

	s.changeMu.Lock()
	listeners := make([]func(State, *models.User), len(s.listeners))
	copy(listeners, s.listeners)
	s.changeMu.Unlock()

	for _, fn := range listeners {
		fn(state, user)
	}
}

// Login exchanges credentials for a bearer token, persists it, and fetches
// the current identity. On identity-fetch failure the token is kept but the
// session is not upgraded, and a descriptive error is returned.
func (s *Store) Login(ctx context.Context, username, password string) error {
	var tok tokenResponse
	err := s.gw.Post(ctx, "auth/token", map[string]string{
		"username": username,
		"password": password,
	}, &tok)
	if err != nil {
		return fmt.Errorf("login: %w", err)
	}
	if tok.AccessToken == "" {
		return errors.New("login: gateway returned an empty token")
	}

	if err := s.tokens.Save(tok.AccessToken); err != nil {
		return fmt.Errorf("login: persist token: %w", err)
	}

	user, err := s.fetchIdentity(ctx)
	if err != nil {
		// Token stays persisted; the next Init or Refresh may succeed.
		s.mu.Lock()
		s.lastErr = err
		s.mu.Unlock()
		return fmt.Errorf("login succeeded but identity fetch failed: %w", err)
	}

	logging.Info().Str("username", user.Username).Str("role", string(user.Role)).Msg("session authenticated")
	s.transition(StateAuthenticated, user, false, nil)
	return nil
}

// Init resolves the session from a persisted credential at startup.
//
// Behavior:
//   - no persisted token: transition to anonymous.
//   - persisted token already expired (unverified claim peek): clear it and
//     transition to anonymous without a network round-trip.
//   - otherwise fetch the identity, retrying transient failures up to
//     initRetries times with a fixed backoff. An unauthorized response is
//     terminal: the transport has already purged the credential, so the
//     session goes anonymous with no retry.
//
// Before the fetch resolves, a recent identity snapshot (if any) is restored
// provisionally so Current() has a plausible answer during the round-trip.
func (s *Store) Init(ctx context.Context) error {
	token, ok := s.tokens.Token()
	if !ok {
		s.transition(StateAnonymous, nil, false, nil)
		return nil
	}

	if expired, expiry := tokenExpired(token); expired {
		logging.Warn().Time("expiry", expiry).Msg("persisted token already expired, skipping identity fetch")
		if err := s.tokens.Clear(); err != nil {
			logging.Error().Err(err).Msg("failed to clear expired token")
		}
		s.transition(StateAnonymous, nil, false, nil)
		return nil
	}

	if s.snapshotPath != "" {
		if user, ok := readSnapshot(s.snapshotPath); ok {
			logging.Debug().Str("username", user.Username).Msg("restored provisional identity snapshot")
			s.mu.Lock()
			s.user = user
			s.provisional = true
			s.mu.Unlock()
		}
	}

	var user *models.User
	attempt := 0
	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(initRetryBackoff), initRetries),
		ctx,
	)
	err := backoff.Retry(func() error {
		attempt++
		fetched, err := s.fetchIdentity(ctx)
		if err != nil {
			if transport.IsUnauthorized(err) {
				return backoff.Permanent(err)
			}
			logging.Warn().Err(err).Int("attempt", attempt).Msg("identity fetch failed, will retry")
			return err
		}
		user = fetched
		return nil
	}, policy)

	if err != nil {
		if transport.IsUnauthorized(err) {
			// Credential already purged by the transport layer.
			s.transition(StateAnonymous, nil, false, nil)
			return nil
		}
		err = fmt.Errorf("session init: %w", err)
		s.transition(StateAnonymous, nil, false, err)
		return err
	}

	s.transition(StateAuthenticated, user, false, nil)
	return nil
}

// Refresh re-fetches the identity for an existing credential, overwriting
// any provisional snapshot value.
func (s *Store) Refresh(ctx context.Context) error {
	if _, ok := s.tokens.Token(); !ok {
		s.transition(StateAnonymous, nil, false, nil)
		return nil
	}

	user, err := s.fetchIdentity(ctx)
	if err != nil {
		if transport.IsUnauthorized(err) {
			s.transition(StateAnonymous, nil, false, nil)
			return nil
		}
		return fmt.Errorf("session refresh: %w", err)
	}

	s.transition(StateAuthenticated, user, false, nil)
	return nil
}

// Logout best-effort notifies the gateway, then unconditionally clears the
// credential, the snapshot and the entity cache.
func (s *Store) Logout(ctx context.Context) {
	if err := s.gw.Post(ctx, "auth/logout", nil, nil); err != nil {
		logging.Warn().Err(err).Msg("logout notification failed, clearing local state anyway")
	}

	if err := s.tokens.Clear(); err != nil {
		logging.Error().Err(err).Msg("failed to clear token on logout")
	}
	if s.snapshotPath != "" {
		removeSnapshot(s.snapshotPath)
	}
	if s.purger != nil {
		s.purger.Clear()
	}

	s.transition(StateAnonymous, nil, false, nil)
	logging.Info().Msg("session logged out")
}

// Shutdown mirrors the confirmed identity into the snapshot file so the
// next startup can restore it before its identity fetch resolves.
func (s *Store) Shutdown() {
	s.mu.RLock()
	user := s.user
	confirmed := s.state == StateAuthenticated && !s.provisional
	s.mu.RUnlock()

	if !confirmed || user == nil || s.snapshotPath == "" {
		return
	}
	if err := writeSnapshot(s.snapshotPath, *user); err != nil {
		logging.Warn().Err(err).Msg("failed to write identity snapshot")
	}
}

// fetchIdentity retrieves the current identity from the gateway.
func (s *Store) fetchIdentity(ctx context.Context) (*models.User, error) {
	var user models.User
	if err := s.gw.Get(ctx, "users/me", nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// tokenExpired peeks at the token's exp claim without verifying the
// signature (verification is the gateway's job; this only avoids a doomed
// round-trip). Tokens that cannot be parsed are treated as not expired and
// left for the gateway to judge.
func tokenExpired(token string) (bool, time.Time) {
	parser := jwt.NewParser()
	parsed, _, err := parser.ParseUnverified(token, jwt.MapClaims{})
	if err != nil {
		return false, time.Time{}
	}
	expiry, err := parsed.Claims.GetExpirationTime()
	if err != nil || expiry == nil {
		return false, time.Time{}
	}
	return expiry.Before(time.Now()), expiry.Time
}
