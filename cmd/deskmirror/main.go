// Deskmirror - Helpdesk Client State Synchronization
// Copyright 2026 Deskmirror Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/deskmirror/deskmirror

// Deskmirror is a headless mirror of a helpdesk gateway: it maintains a
// local, invalidated-on-demand copy of the gateway's entities, follows the
// audit log live over WebSocket, and exposes a read-only status API for
// operators.
//
// Configuration comes from deskmirror.yaml (or DESKMIRROR_CONFIG) with
// DESKMIRROR_* environment overrides, e.g.:
//
//	DESKMIRROR_GATEWAY_URL=https://helpdesk.example.com/api \
//	DESKMIRROR_AUTH_TOKEN_PATH=/data/deskmirror/token \
//	deskmirror
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/deskmirror/deskmirror/internal/audit"
	"github.com/deskmirror/deskmirror/internal/cache"
	"github.com/deskmirror/deskmirror/internal/config"
	"github.com/deskmirror/deskmirror/internal/logging"
	"github.com/deskmirror/deskmirror/internal/session"
	"github.com/deskmirror/deskmirror/internal/statusapi"
	"github.com/deskmirror/deskmirror/internal/supervisor"
	"github.com/deskmirror/deskmirror/internal/transport"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	logging.Info().
		Str("gateway", cfg.Gateway.URL).
		Bool("audit", cfg.Audit.Enabled).
		Bool("status_api", cfg.Status.Enabled).
		Msg("starting deskmirror")

	store := cache.New()
	store.SetRetention(cfg.Sync.Retention)

	tokens := session.NewFileTokenStore(cfg.Auth.TokenPath)
	client := transport.New(transport.Config{
		BaseURL:     cfg.Gateway.URL,
		Timeout:     cfg.Gateway.Timeout,
		BulkTimeout: cfg.Gateway.BulkTimeout,
		RateLimit:   cfg.Gateway.RateLimit,
		RateBurst:   cfg.Gateway.RateBurst,
	}, tokens, store, func() {
		logging.Warn().Msg("gateway invalidated the session, credential purged")
	})

	sess := session.New(client, tokens, store, cfg.Auth.SnapshotPath)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := sess.Init(ctx); err != nil {
		logging.Warn().Err(err).Msg("session initialization failed, continuing anonymously")
	}
	if sess.State() != session.StateAuthenticated && cfg.Auth.Username != "" {
		if err := sess.Login(ctx, cfg.Auth.Username, cfg.Auth.Password); err != nil {
			logging.Error().Err(err).Msg("configured login failed")
		}
	}
	logging.Info().Str("session", sess.State().String()).Msg("session resolved")

	tree := supervisor.NewTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())

	tree.AddMirrorService(supervisor.Func("cache-janitor", func(ctx context.Context) error {
		return store.RunJanitor(ctx, cfg.Sync.JanitorInterval)
	}))

	var (
		stream *audit.Stream
		merger *audit.Merger
	)
	if cfg.Audit.Enabled {
		auditSvc := audit.NewService(client, store)
		stream = audit.NewStream(audit.StreamConfig{
			BaseURL: cfg.Gateway.URL,
			Token:   tokens.Token,
		})
		merger = audit.NewMerger(auditSvc, stream)
		merger.SetRefreshInterval(cfg.Audit.RefreshInterval)
		merger.SetPageSize(cfg.Audit.PageSize)
		tree.AddMirrorService(stream)
		tree.AddMirrorService(merger)
	}

	if cfg.Status.Enabled {
		// Leave the interfaces nil when audit is disabled; a typed nil
		// would defeat the server's nil checks.
		var (
			streamInfo statusapi.StreamInfo
			mergerInfo statusapi.MergerInfo
		)
		if cfg.Audit.Enabled {
			streamInfo = stream
			mergerInfo = merger
		}
		tree.AddAPIService(statusapi.New(cfg.Status, sess, streamInfo, mergerInfo, store))
	}

	err = tree.Serve(ctx)
	if err != nil && ctx.Err() == nil {
		logging.Error().Err(err).Msg("supervisor tree exited")
	}

	sess.Shutdown()
	logging.Info().Msg("deskmirror stopped")

	if err != nil && ctx.Err() == nil {
		os.Exit(1)
	}
}
