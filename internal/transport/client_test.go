// Deskmirror - Helpdesk Client State Synchronization
// Copyright 2026 Deskmirror Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/deskmirror/deskmirror

package transport

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
)

func asAPIError(err error, target **APIError) bool {
	return errors.As(err, target)
}

// fakeCreds is an in-memory CredentialSource.
type fakeCreds struct {
	mu    sync.Mutex
	token string
}

func (f *fakeCreds) Token() (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.token, f.token != ""
}

func (f *fakeCreds) Clear() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.token = ""
	return nil
}

// fakePurger records cache purges.
type fakePurger struct {
	mu     sync.Mutex
	purges int
}

func (f *fakePurger) Clear() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.purges++
}

func (f *fakePurger) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.purges
}

func newTestClient(t *testing.T, handler http.Handler, token string, hook func()) (*Client, *fakeCreds, *fakePurger) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	creds := &fakeCreds{token: token}
	purger := &fakePurger{}
	client := New(Config{BaseURL: server.URL}, creds, purger, hook)
	return client, creds, purger
}

func TestClientAttachesBearerToken(t *testing.T) {
	var gotAuth string
	client, _, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Write([]byte(`{}`))
	}), "secret-token", nil)

	var out map[string]any
	if err := client.Get(context.Background(), "tickets", nil, &out); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotAuth != "Bearer secret-token" {
		t.Errorf("Authorization = %q, want bearer token", gotAuth)
	}
}

func TestClientOmitsBearerWhenAnonymous(t *testing.T) {
	var gotAuth string
	client, _, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Write([]byte(`{}`))
	}), "", nil)

	_ = client.Post(context.Background(), "auth/token", map[string]string{"username": "u"}, nil)
	if gotAuth != "" {
		t.Errorf("Authorization = %q, want empty for anonymous request", gotAuth)
	}
}

func TestClientCacheControlPolicy(t *testing.T) {
	var gotCC string
	var gotURL string
	client, _, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotCC = r.Header.Get("Cache-Control")
		gotURL = r.URL.String()
		w.Write([]byte(`{}`))
	}), "tok", nil)

	ctx := context.Background()

	if err := client.Get(ctx, "categories", nil, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotCC != directiveSlowMoving {
		t.Errorf("categories Cache-Control = %q, want %q", gotCC, directiveSlowMoving)
	}

	if err := client.Post(ctx, "tickets", map[string]string{"title": "x"}, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotCC != directiveNoStore {
		t.Errorf("mutation Cache-Control = %q, want %q", gotCC, directiveNoStore)
	}

	if err := client.Get(ctx, "users/me", nil, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotCC != directiveNoStore {
		t.Errorf("identity Cache-Control = %q, want %q", gotCC, directiveNoStore)
	}
	if !containsParam(gotURL, "_ts") {
		t.Errorf("identity request %q should carry a timestamp cache-buster", gotURL)
	}
}

func containsParam(rawURL, key string) bool {
	req := httptest.NewRequest(http.MethodGet, rawURL, nil)
	return req.URL.Query().Has(key)
}

func TestClientUnauthorizedPurgesSession(t *testing.T) {
	hookCalls := 0
	client, creds, purger := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"detail": "token expired"}`))
	}), "expired-token", nil)
	client.onSessionInvalid = func() { hookCalls++ }

	err := client.Get(context.Background(), "users/me", nil, nil)
	if !IsUnauthorized(err) {
		t.Fatalf("expected unauthorized error, got %v", err)
	}

	if _, ok := creds.Token(); ok {
		t.Error("credential should be cleared after 401")
	}
	if purger.count() != 1 {
		t.Errorf("cache should be purged once, got %d", purger.count())
	}
	if hookCalls != 1 {
		t.Errorf("session-invalidated hook should fire once, got %d", hookCalls)
	}
}

func TestClientUnauthorizedHookFiresOncePerIncident(t *testing.T) {
	hookCalls := 0
	fail := true
	client, _, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if fail {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Write([]byte(`{}`))
	}), "tok", nil)
	client.onSessionInvalid = func() { hookCalls++ }

	ctx := context.Background()

	// Two consecutive identity 401s are one incident.
	_ = client.Get(ctx, "users/me", nil, nil)
	_ = client.Get(ctx, "users/me", nil, nil)
	if hookCalls != 1 {
		t.Fatalf("expected 1 hook call for a single incident, got %d", hookCalls)
	}

	// A successful response closes the incident; the next 401 is a new one.
	fail = false
	if err := client.Get(ctx, "tickets", nil, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	fail = true
	_ = client.Get(ctx, "users/me", nil, nil)
	if hookCalls != 2 {
		t.Errorf("expected a second hook call for a new incident, got %d", hookCalls)
	}
}

func TestClientUnauthorizedOnOtherEndpointDoesNotFireHook(t *testing.T) {
	hookCalls := 0
	client, creds, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}), "tok", nil)
	client.onSessionInvalid = func() { hookCalls++ }

	_ = client.Get(context.Background(), "tickets", nil, nil)

	if _, ok := creds.Token(); ok {
		t.Error("credential should be cleared after any 401")
	}
	if hookCalls != 0 {
		t.Errorf("hook must only fire for the identity endpoint, got %d calls", hookCalls)
	}
}

func TestClientNotFoundOnDelete(t *testing.T) {
	client, _, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"detail": "equipment not found"}`))
	}), "tok", nil)

	err := client.Delete(context.Background(), "equipment/99")
	if !IsNotFound(err) {
		t.Fatalf("expected not-found error, got %v", err)
	}
}

func TestClientValidationDetailNormalized(t *testing.T) {
	client, _, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		w.Write([]byte(`{"detail": [{"loc": ["body", "title"], "msg": "title too short", "type": "value_error"}]}`))
	}), "tok", nil)

	err := client.Post(context.Background(), "tickets", map[string]string{"title": "x"}, nil)
	if !IsStatus(err, http.StatusUnprocessableEntity) {
		t.Fatalf("expected 422 error, got %v", err)
	}
	var apiErr *APIError
	if !asAPIError(err, &apiErr) || apiErr.Message != "title too short" {
		t.Errorf("expected first field error message, got %v", err)
	}
}

func TestClientServerErrorSurfaces(t *testing.T) {
	client, _, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"detail": "database unavailable"}`))
	}), "tok", nil)

	err := client.Get(context.Background(), "tickets", nil, nil)
	if !IsStatus(err, http.StatusInternalServerError) {
		t.Fatalf("expected 500 error, got %v", err)
	}
}

func TestClientDecodesResponse(t *testing.T) {
	client, _, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"id": 1, "title": "Printer jam"}]`))
	}), "tok", nil)

	var out []struct {
		ID    int64  `json:"id"`
		Title string `json:"title"`
	}
	if err := client.Get(context.Background(), "tickets", nil, &out); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 1 || out[0].Title != "Printer jam" {
		t.Errorf("unexpected decode result %+v", out)
	}
}
