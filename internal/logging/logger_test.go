// Deskmirror - Helpdesk Client State Synchronization
// Copyright 2026 Deskmirror Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/deskmirror/deskmirror

package logging

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected zerolog.Level
	}{
		{"trace", zerolog.TraceLevel},
		{"debug", zerolog.DebugLevel},
		{"info", zerolog.InfoLevel},
		{"warn", zerolog.WarnLevel},
		{"warning", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"fatal", zerolog.FatalLevel},
		{"disabled", zerolog.Disabled},
		{"INFO", zerolog.InfoLevel},
		{"bogus", zerolog.InfoLevel},
		{"", zerolog.InfoLevel},
	}

	for _, tt := range tests {
		if got := parseLevel(tt.input); got != tt.expected {
			t.Errorf("parseLevel(%q) = %v, want %v", tt.input, got, tt.expected)
		}
	}
}

func TestTestLoggerCapturesOutput(t *testing.T) {
	var buf bytes.Buffer
	logger := NewTestLogger(&buf)

	logger.Info().Str("entity", "tickets").Msg("cache invalidated")

	out := buf.String()
	if !strings.Contains(out, `"entity":"tickets"`) {
		t.Errorf("expected entity field in output, got %s", out)
	}
	if !strings.Contains(out, "cache invalidated") {
		t.Errorf("expected message in output, got %s", out)
	}
}

func TestSetLoggerReplacesGlobal(t *testing.T) {
	prev := Logger()
	defer SetLogger(prev)

	var buf bytes.Buffer
	SetLogger(NewTestLogger(&buf))

	Info().Msg("hello from test")

	if !strings.Contains(buf.String(), "hello from test") {
		t.Errorf("expected global logger to write to buffer, got %q", buf.String())
	}
}

func TestSlogHandlerRoutesToZerolog(t *testing.T) {
	var buf bytes.Buffer
	handler := NewSlogHandlerWithLogger(NewTestLogger(&buf))
	logger := slog.New(handler)

	logger.Info("service started", "service", "audit-stream", "attempt", int64(3))

	out := buf.String()
	if !strings.Contains(out, "service started") {
		t.Errorf("expected message in output, got %s", out)
	}
	if !strings.Contains(out, `"service":"audit-stream"`) {
		t.Errorf("expected string attr in output, got %s", out)
	}
	if !strings.Contains(out, `"attempt":3`) {
		t.Errorf("expected int attr in output, got %s", out)
	}
}

func TestSlogHandlerWithAttrsAndGroups(t *testing.T) {
	var buf bytes.Buffer
	handler := NewSlogHandlerWithLogger(NewTestLogger(&buf))
	base := slog.New(handler).With("component", "supervisor")
	base.Warn("restarting")

	if !strings.Contains(buf.String(), `"component":"supervisor"`) {
		t.Errorf("expected pre-configured attr, got %s", buf.String())
	}

	buf.Reset()
	grouped := slog.New(handler).WithGroup("tree")
	grouped.Warn("restarting", "service", "poller")

	if !strings.Contains(buf.String(), `"tree.service":"poller"`) {
		t.Errorf("expected group-prefixed attr, got %s", buf.String())
	}
}
