// Deskmirror - Helpdesk Client State Synchronization
// Copyright 2026 Deskmirror Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/deskmirror/deskmirror

// Package supervisor builds the suture tree that keeps the mirror's
// long-running services alive: the audit stream and merger, the cache
// janitor and the status API. A crash in the mirror layer restarts that
// service without taking the operator endpoints down, and vice versa.
package supervisor

import (
	"context"
	"log/slog"
	"time"

	"github.com/thejerf/suture/v4"
	"github.com/thejerf/sutureslog"
)

// TreeConfig holds the restart parameters shared by every node.
type TreeConfig struct {
	// FailureThreshold is the number of failures before entering backoff.
	FailureThreshold float64
	// FailureDecay is the rate at which failures decay, in seconds.
	FailureDecay float64
	// FailureBackoff is how long to wait once the threshold is exceeded.
	FailureBackoff time.Duration
	// ShutdownTimeout bounds graceful shutdown per service.
	ShutdownTimeout time.Duration
}

// DefaultTreeConfig matches suture's built-in defaults.
func DefaultTreeConfig() TreeConfig {
	return TreeConfig{
		FailureThreshold: 5.0,
		FailureDecay:     30.0,
		FailureBackoff:   15 * time.Second,
		ShutdownTimeout:  10 * time.Second,
	}
}

// Tree is the two-layer supervisor: a mirror layer for the data services
// and an api layer for the operator endpoints.
type Tree struct {
	root   *suture.Supervisor
	mirror *suture.Supervisor
	api    *suture.Supervisor
}

// NewTree creates the supervisor tree. Events are logged through the given
// slog logger via sutureslog.
func NewTree(logger *slog.Logger, cfg TreeConfig) *Tree {
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = 5.0
	}
	if cfg.FailureDecay == 0 {
		cfg.FailureDecay = 30.0
	}
	if cfg.FailureBackoff == 0 {
		cfg.FailureBackoff = 15 * time.Second
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}

	handler := &sutureslog.Handler{Logger: logger}
	rootSpec := suture.Spec{
		EventHook:        handler.MustHook(),
		FailureThreshold: cfg.FailureThreshold,
		FailureDecay:     cfg.FailureDecay,
		FailureBackoff:   cfg.FailureBackoff,
		Timeout:          cfg.ShutdownTimeout,
	}
	childSpec := suture.Spec{
		FailureThreshold: cfg.FailureThreshold,
		FailureDecay:     cfg.FailureDecay,
		FailureBackoff:   cfg.FailureBackoff,
		Timeout:          cfg.ShutdownTimeout,
	}

	root := suture.New("deskmirror", rootSpec)
	mirror := suture.New("mirror-layer", childSpec)
	api := suture.New("api-layer", childSpec)
	root.Add(mirror)
	root.Add(api)

	return &Tree{root: root, mirror: mirror, api: api}
}

// AddMirrorService supervises a data service: audit stream, merger, cache
// janitor.
func (t *Tree) AddMirrorService(svc suture.Service) suture.ServiceToken {
	return t.mirror.Add(svc)
}

// AddAPIService supervises an operator-facing service.
func (t *Tree) AddAPIService(svc suture.Service) suture.ServiceToken {
	return t.api.Add(svc)
}

// Serve runs the tree until the context is canceled.
func (t *Tree) Serve(ctx context.Context) error {
	return t.root.Serve(ctx)
}

// ServeBackground runs the tree in a goroutine and returns its exit
// channel.
func (t *Tree) ServeBackground(ctx context.Context) <-chan error {
	return t.root.ServeBackground(ctx)
}

// UnstoppedServiceReport lists services that missed the shutdown timeout.
func (t *Tree) UnstoppedServiceReport() ([]suture.UnstoppedService, error) {
	return t.root.UnstoppedServiceReport()
}

// Func adapts a plain run function into a named suture service. Used for
// loops that do not warrant their own type, like the cache janitor.
func Func(name string, run func(context.Context) error) suture.Service {
	return &funcService{name: name, run: run}
}

type funcService struct {
	name string
	run  func(context.Context) error
}

func (s *funcService) Serve(ctx context.Context) error {
	return s.run(ctx)
}

func (s *funcService) String() string {
	return s.name
}
