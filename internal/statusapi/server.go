// Deskmirror - Helpdesk Client State Synchronization
// Copyright 2026 Deskmirror Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/deskmirror/deskmirror

// Package statusapi serves the local operator endpoints: liveness,
// readiness, Prometheus metrics and a JSON status summary. It is read-only
// and binds localhost by default.
package statusapi

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/deskmirror/deskmirror/internal/audit"
	"github.com/deskmirror/deskmirror/internal/cache"
	"github.com/deskmirror/deskmirror/internal/config"
	"github.com/deskmirror/deskmirror/internal/logging"
	"github.com/deskmirror/deskmirror/internal/models"
	"github.com/deskmirror/deskmirror/internal/session"
)

// SessionInfo exposes the session state to the status endpoints.
type SessionInfo interface {
	State() session.State
	Current() (*models.User, bool)
}

// StreamInfo exposes the push channel state.
type StreamInfo interface {
	State() audit.StreamState
	Connected() bool
}

// MergerInfo exposes the audit mirror's freshness.
type MergerInfo interface {
	LastRefresh() time.Time
	Total() int
}

// Status is the /api/status response body.
type Status struct {
	SessionState     string       `json:"session_state"`
	User             *models.User `json:"user,omitempty"`
	StreamState      string       `json:"stream_state,omitempty"`
	StreamConnected  bool         `json:"stream_connected"`
	CacheEntries     int          `json:"cache_entries"`
	AuditTotal       int          `json:"audit_total"`
	LastAuditRefresh *time.Time   `json:"last_audit_refresh,omitempty"`
	Uptime           string       `json:"uptime"`
}

// Server is the local operator HTTP server.
type Server struct {
	cfg     config.StatusConfig
	session SessionInfo
	stream  StreamInfo
	merger  MergerInfo
	store   *cache.Store
	started time.Time

	// set in tests to claim an ephemeral port
	listener net.Listener
}

// New creates a status Server. stream and merger may be nil when the audit
// mirror is disabled.
func New(cfg config.StatusConfig, sess SessionInfo, stream StreamInfo, merger MergerInfo, store *cache.Store) *Server {
	return &Server{
		cfg:     cfg,
		session: sess,
		stream:  stream,
		merger:  merger,
		store:   store,
		started: time.Now(),
	}
}

// String implements fmt.Stringer for supervisor logs.
func (s *Server) String() string {
	return "status-api"
}

// Router builds the chi handler tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(requestLogger)
	r.Use(chimiddleware.Recoverer)
	if len(s.cfg.CORSOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: s.cfg.CORSOrigins,
			AllowedMethods: []string{http.MethodGet},
			MaxAge:         300,
		}))
	}
	if s.cfg.RateLimit > 0 {
		r.Use(httprate.LimitByIP(s.cfg.RateLimit, time.Minute))
	}

	r.Get("/healthz", s.handleHealthz)
	r.Get("/readyz", s.handleReadyz)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	r.Get("/api/status", s.handleStatus)

	return r
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// handleReadyz reports ready once the session has resolved one way or the
// other. An anonymous mirror is still a working mirror; only an unresolved
// session means startup has not finished.
func (s *Server) handleReadyz(w http.ResponseWriter, _ *http.Request) {
	if s.session.State() == session.StateUnknown {
		http.Error(w, "session unresolved", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	status := Status{
		SessionState: s.session.State().String(),
		CacheEntries: s.store.Len(),
		Uptime:       time.Since(s.started).Round(time.Second).String(),
	}
	if user, confirmed := s.session.Current(); confirmed {
		status.User = user
	}
	if s.stream != nil {
		status.StreamState = s.stream.State().String()
		status.StreamConnected = s.stream.Connected()
	}
	if s.merger != nil {
		status.AuditTotal = s.merger.Total()
		if last := s.merger.LastRefresh(); !last.IsZero() {
			status.LastAuditRefresh = &last
		}
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(status); err != nil {
		logging.Error().Err(err).Msg("failed to encode status response")
	}
}

// Serve runs the HTTP server until the context is canceled. It implements
// suture.Service.
func (s *Server) Serve(ctx context.Context) error {
	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		var err error
		if s.listener != nil {
			err = srv.Serve(s.listener)
		} else {
			err = srv.ListenAndServe()
		}
		errCh <- err
	}()
	logging.Info().Str("addr", addr).Msg("status API listening")

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("status API shutdown: %w", err)
		}
		return ctx.Err()
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("status API: %w", err)
	}
}

// requestLogger logs each request through the global zerolog logger.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		logging.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration", time.Since(start)).
			Msg("status API request")
	})
}
