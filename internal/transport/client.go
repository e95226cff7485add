// Deskmirror - Helpdesk Client State Synchronization
// Copyright 2026 Deskmirror Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/deskmirror/deskmirror

// Package transport is the single point of outbound communication with the
// helpdesk gateway. It attaches bearer credentials, applies a per-endpoint
// Cache-Control policy, throttles outbound traffic, wraps the gateway in a
// circuit breaker, and centralizes failure handling.
//
// Session-expiry handling lives here and only here: a 401 response clears
// the persisted credential and purges the entity cache, and a 401 on the
// identity endpoint additionally fires the session-invalidated hook (once
// per incident). No other component is permitted to clear credentials as a
// side effect of a failed call.
//
// There is no automatic retry at this layer; retry policy belongs to
// callers (bounded identity-fetch retry in the session store, reconnect
// backoff in the audit stream).
package transport

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/deskmirror/deskmirror/internal/logging"
	"github.com/deskmirror/deskmirror/internal/metrics"
)

// maxErrorBodySize limits how much of an error response body is read for
// diagnostics, preventing unbounded allocation on large error pages.
const maxErrorBodySize = 64 * 1024 // 64KB

// CredentialSource provides and clears the persisted bearer credential.
// Implemented by the session store's token file.
type CredentialSource interface {
	Token() (string, bool)
	Clear() error
}

// CachePurger drops all cached entity data. Implemented by cache.Store.
type CachePurger interface {
	Clear()
}

// Config holds transport settings, populated from config.GatewayConfig.
type Config struct {
	// BaseURL is the API root, e.g. "https://helpdesk.example.com/api".
	BaseURL string

	// Timeout is the per-request timeout for ordinary endpoints.
	// Default: 30s.
	Timeout time.Duration

	// BulkTimeout is the per-request timeout for audit/statistics queries.
	// Default: 60s.
	BulkTimeout time.Duration

	// RateLimit is the maximum sustained outbound requests per second.
	// Zero disables throttling.
	RateLimit float64

	// RateBurst is the throttle burst size. Default: 10 when RateLimit > 0.
	RateBurst int
}

// Client is the outbound HTTP client for the gateway.
//
// Thread safety: safe for concurrent use; every request builds its own
// http.Request and the embedded limiter and breaker are concurrency-safe.
type Client struct {
	baseURL    string
	httpClient *http.Client
	bulkClient *http.Client

	creds CredentialSource
	purge CachePurger

	// onSessionInvalid fires when a 401 on the identity endpoint proves the
	// session is gone. hookFired guards against repeat firing for the same
	// incident; it resets on the next successful response.
	onSessionInvalid func()
	hookFired        atomic.Bool

	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker[*http.Response]
}

// New creates a gateway client. creds and purge are required; hook may be
// nil when no session-invalidated handling is wanted (tests).
func New(cfg Config, creds CredentialSource, purge CachePurger, onSessionInvalid func()) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.BulkTimeout <= 0 {
		cfg.BulkTimeout = 60 * time.Second
	}

	var limiter *rate.Limiter
	if cfg.RateLimit > 0 {
		burst := cfg.RateBurst
		if burst <= 0 {
			burst = 10
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}

	return &Client{
		baseURL:          strings.TrimRight(cfg.BaseURL, "/"),
		httpClient:       &http.Client{Timeout: cfg.Timeout},
		bulkClient:       &http.Client{Timeout: cfg.BulkTimeout},
		creds:            creds,
		purge:            purge,
		onSessionInvalid: onSessionInvalid,
		limiter:          limiter,
		breaker:          newBreaker("helpdesk-gateway"),
	}
}

// newBreaker builds a circuit breaker with the standard settings: opens at a
// 60% failure ratio with at least 10 observed requests, recovers after two
// minutes via a half-open probe window of 3 requests.
func newBreaker(name string) *gobreaker.CircuitBreaker[*http.Response] {
	metrics.CircuitBreakerState.WithLabelValues(name).Set(0)

	return gobreaker.NewCircuitBreaker[*http.Response](gobreaker.Settings{
		Name:        name,
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     2 * time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 10 {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= 0.6
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Info().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("circuit breaker state transition")
			metrics.CircuitBreakerState.WithLabelValues(name).Set(breakerStateValue(to))
			metrics.CircuitBreakerTransitions.WithLabelValues(name, from.String(), to.String()).Inc()
		},
	})
}

func breakerStateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateOpen:
		return 1
	case gobreaker.StateHalfOpen:
		return 2
	default:
		return 0
	}
}

// Get issues a GET request and decodes the JSON response into out.
func (c *Client) Get(ctx context.Context, path string, query url.Values, out any) error {
	return c.Do(ctx, http.MethodGet, path, query, nil, out)
}

// Post issues a POST request with a JSON body.
func (c *Client) Post(ctx context.Context, path string, body, out any) error {
	return c.Do(ctx, http.MethodPost, path, nil, body, out)
}

// Put issues a PUT request with a JSON body.
func (c *Client) Put(ctx context.Context, path string, body, out any) error {
	return c.Do(ctx, http.MethodPut, path, nil, body, out)
}

// Delete issues a DELETE request. Callers decide whether a 404 outcome is an
// error; see transport.IsNotFound.
func (c *Client) Delete(ctx context.Context, path string) error {
	return c.Do(ctx, http.MethodDelete, path, nil, nil, nil)
}

// Do performs a gateway request. body (if non-nil) is JSON-encoded; out (if
// non-nil) receives the decoded JSON response. Non-2xx responses return an
// *APIError; transport failures return the underlying error wrapped with
// method and path context. Neither is ever swallowed here.
func (c *Client) Do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("%s %s: %w", method, path, err)
		}
	}

	req, err := c.buildRequest(ctx, method, path, query, body)
	if err != nil {
		return fmt.Errorf("%s %s: build request: %w", method, path, err)
	}

	endpoint := firstSegment(path)
	start := time.Now()

	resp, err := c.breaker.Execute(func() (*http.Response, error) {
		return c.execute(req, path)
	})
	metrics.GatewayRequestDuration.WithLabelValues(method, endpoint).Observe(time.Since(start).Seconds())

	if err != nil {
		metrics.GatewayRequestsTotal.WithLabelValues(method, endpoint, "error").Inc()
		logging.Error().Err(err).Str("method", method).Str("path", path).Msg("gateway request failed")
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	metrics.GatewayRequestsTotal.WithLabelValues(method, endpoint, strconv.Itoa(resp.StatusCode)).Inc()

	if resp.StatusCode == http.StatusUnauthorized {
		c.handleUnauthorized(path)
		return &APIError{StatusCode: resp.StatusCode, Message: normalizeDetail(readErrorBody(resp.Body), resp.StatusCode)}
	}

	if resp.StatusCode >= 400 {
		apiErr := &APIError{
			StatusCode: resp.StatusCode,
			Message:    normalizeDetail(readErrorBody(resp.Body), resp.StatusCode),
		}
		logging.Warn().
			Str("method", method).
			Str("path", path).
			Int("status", apiErr.StatusCode).
			Str("detail", apiErr.Message).
			Msg("gateway rejected request")
		return apiErr
	}

	// A successful response closes any prior session-invalidated incident.
	c.hookFired.Store(false)

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s %s: decode response: %w", method, path, err)
	}
	return nil
}

// buildRequest assembles the outbound request: URL with query parameters
// (plus the identity cache-buster), bearer credential, request id and
// Cache-Control directive.
func (c *Client) buildRequest(ctx context.Context, method, path string, query url.Values, body any) (*http.Request, error) {
	path = strings.TrimPrefix(path, "/")

	if query == nil {
		query = url.Values{}
	}
	if path == identityPath {
		// Bypass any intermediary cache by making the URL unique.
		query.Set("_ts", strconv.FormatInt(time.Now().UnixMilli(), 10))
	}

	reqURL := c.baseURL + "/" + path
	if encoded := query.Encode(); encoded != "" {
		reqURL += "?" + encoded
	}

	var reader io.Reader = http.NoBody
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, reader)
	if err != nil {
		return nil, err
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Cache-Control", cacheControlFor(method, path))
	req.Header.Set("X-Request-ID", uuid.NewString())

	if token, ok := c.creds.Token(); ok {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	return req, nil
}

// execute runs the request on the timeout-appropriate client. Responses with
// server-error status count as breaker failures; client errors (4xx) do not,
// since they say nothing about gateway health.
func (c *Client) execute(req *http.Request, path string) (*http.Response, error) {
	client := c.httpClient
	if isBulkPath(path) {
		client = c.bulkClient
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 500 {
		detail := normalizeDetail(readErrorBody(resp.Body), resp.StatusCode)
		_ = resp.Body.Close()
		return nil, &APIError{StatusCode: resp.StatusCode, Message: detail}
	}
	return resp, nil
}

// handleUnauthorized purges the credential and all cached entity data, and
// fires the session-invalidated hook when the failing request targeted the
// identity endpoint. The hook fires at most once per incident.
func (c *Client) handleUnauthorized(path string) {
	metrics.GatewayUnauthorizedTotal.Inc()

	if err := c.creds.Clear(); err != nil {
		logging.Error().Err(err).Msg("failed to clear credential after 401")
	}
	c.purge.Clear()

	logging.Warn().Str("path", path).Msg("credential rejected, session purged")

	if path == identityPath && c.onSessionInvalid != nil {
		if c.hookFired.CompareAndSwap(false, true) {
			c.onSessionInvalid()
		}
	}
}

// readErrorBody reads at most maxErrorBodySize bytes of an error response.
func readErrorBody(r io.Reader) []byte {
	body, err := io.ReadAll(io.LimitReader(r, maxErrorBodySize))
	if err != nil {
		return nil
	}
	return body
}
