// Deskmirror - Helpdesk Client State Synchronization
// Copyright 2026 Deskmirror Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/deskmirror/deskmirror

package audit

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"github.com/deskmirror/deskmirror/internal/logging"
	"github.com/deskmirror/deskmirror/internal/metrics"
	"github.com/deskmirror/deskmirror/internal/models"
)

// StreamState is the push channel's connection state.
type StreamState int32

const (
	// StreamConnecting means the first dial has not completed yet.
	StreamConnecting StreamState = iota
	// StreamConnected means the channel is live.
	StreamConnected
	// StreamReconnecting means the channel dropped and a redial is pending.
	StreamReconnecting
	// StreamStopped means Serve has returned.
	StreamStopped
)

// String implements fmt.Stringer.
func (s StreamState) String() string {
	switch s {
	case StreamConnecting:
		return "connecting"
	case StreamConnected:
		return "connected"
	case StreamReconnecting:
		return "reconnecting"
	default:
		return "stopped"
	}
}

const (
	handshakeTimeout = 10 * time.Second
	pingInterval     = 30 * time.Second
	readWait         = 60 * time.Second
	writeWait        = 10 * time.Second

	// Reconnect backoff bounds. Jittered exponential so a gateway restart
	// does not see every mirror redial in lockstep.
	reconnectInitial = 1 * time.Second
	reconnectMax     = 32 * time.Second
)

// eventBuffer is the push channel's delivery buffer. When the consumer
// falls this far behind, newest events are dropped; the next snapshot
// refresh repairs the collection.
const eventBuffer = 64

// StreamConfig configures the push channel.
type StreamConfig struct {
	// BaseURL is the gateway base URL; http(s) is converted to ws(s).
	BaseURL string
	// Token supplies the bearer credential for the dial, if any.
	Token func() (string, bool)
}

// roleControl is the in-band message that retargets the server-side role
// filter without redialing.
type roleControl struct {
	RoleFilter *models.Role `json:"role_filter"`
}

// Stream is the audit log push channel: a WebSocket client that delivers
// new audit entries as they happen and redials with jittered exponential
// backoff when the connection drops.
type Stream struct {
	cfg    StreamConfig
	events chan models.AuditLogEntry
	state  atomic.Int32

	connMu sync.RWMutex
	conn   *websocket.Conn

	roleMu sync.RWMutex
	role   *models.Role
}

// NewStream creates a Stream. Call Serve to connect.
func NewStream(cfg StreamConfig) *Stream {
	return &Stream{
		cfg:    cfg,
		events: make(chan models.AuditLogEntry, eventBuffer),
	}
}

// Events returns the delivery channel. It is closed when Serve returns; no
// events are delivered after that.
func (s *Stream) Events() <-chan models.AuditLogEntry {
	return s.events
}

// State returns the current connection state.
func (s *Stream) State() StreamState {
	return StreamState(s.state.Load())
}

// Connected reports whether the channel is live.
func (s *Stream) Connected() bool {
	return s.State() == StreamConnected
}

// String implements fmt.Stringer for supervisor logs.
func (s *Stream) String() string {
	return "audit-stream"
}

// SetRoleFilter retargets the server-side role filter. A nil role clears
// it. The new value applies to the live connection via an in-band control
// message and to every subsequent redial via the dial query.
func (s *Stream) SetRoleFilter(role *models.Role) error {
	s.roleMu.Lock()
	s.role = role
	s.roleMu.Unlock()

	s.connMu.RLock()
	conn := s.conn
	s.connMu.RUnlock()
	if conn == nil {
		return nil
	}

	if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return fmt.Errorf("set write deadline: %w", err)
	}
	if err := conn.WriteJSON(roleControl{RoleFilter: role}); err != nil {
		return fmt.Errorf("send role filter: %w", err)
	}
	return nil
}

// Serve runs the connect/read/redial loop until the context is canceled.
// It implements suture.Service.
func (s *Stream) Serve(ctx context.Context) error {
	defer func() {
		s.state.Store(int32(StreamStopped))
		metrics.StreamConnected.Set(0)
		close(s.events)
	}()

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = reconnectInitial
	policy.MaxInterval = reconnectMax
	policy.MaxElapsedTime = 0 // redial for as long as we run

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		conn, err := s.dial(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			s.state.Store(int32(StreamReconnecting))
			metrics.StreamReconnects.Inc()
			wait := policy.NextBackOff()
			logging.Warn().Err(err).Dur("retry_in", wait).Msg("audit stream dial failed")
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return ctx.Err()
			}
			continue
		}

		s.setConn(conn)
		s.state.Store(int32(StreamConnected))
		metrics.StreamConnected.Set(1)
		policy.Reset()
		logging.Info().Msg("audit stream connected")

		err = s.readLoop(ctx, conn)
		s.setConn(nil)
		metrics.StreamConnected.Set(0)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		s.state.Store(int32(StreamReconnecting))
		metrics.StreamReconnects.Inc()
		logging.Warn().Err(err).Msg("audit stream disconnected")
	}
}

// dial opens the WebSocket connection with the current credential and role
// filter in the query.
func (s *Stream) dial(ctx context.Context) (*websocket.Conn, error) {
	wsURL, err := s.buildURL()
	if err != nil {
		return nil, err
	}

	dialer := websocket.Dialer{
		HandshakeTimeout:  handshakeTimeout,
		EnableCompression: true,
	}
	conn, resp, err := dialer.DialContext(ctx, wsURL, nil)
	if resp != nil {
		defer resp.Body.Close()
	}
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("websocket dial (HTTP %d): %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("websocket dial: %w", err)
	}
	return conn, nil
}

// buildURL converts the gateway base URL to the ws(s) audit endpoint and
// attaches the credential and role filter.
func (s *Stream) buildURL() (string, error) {
	parsed, err := url.Parse(s.cfg.BaseURL)
	if err != nil {
		return "", fmt.Errorf("parse base url: %w", err)
	}

	scheme := "ws"
	if parsed.Scheme == "https" || parsed.Scheme == "wss" {
		scheme = "wss"
	}

	endpoint := url.URL{Scheme: scheme, Host: parsed.Host, Path: "/ws/audit-logs"}
	q := endpoint.Query()
	if s.cfg.Token != nil {
		if token, ok := s.cfg.Token(); ok {
			q.Set("token", token)
		}
	}
	s.roleMu.RLock()
	if s.role != nil {
		q.Set("role", string(*s.role))
	}
	s.roleMu.RUnlock()
	endpoint.RawQuery = q.Encode()

	return endpoint.String(), nil
}

// readLoop consumes messages until the connection fails or the context is
// canceled. A companion goroutine sends pings; a missed pong trips the read
// deadline and surfaces here as a read error.
func (s *Stream) readLoop(ctx context.Context, conn *websocket.Conn) error {
	done := make(chan struct{})
	defer close(done)
	go s.pingLoop(ctx, conn, done)

	_ = conn.SetReadDeadline(time.Now().Add(readWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(readWait))
	})

	defer s.closeConn(conn)

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return fmt.Errorf("server closed the stream: %w", err)
			}
			return err
		}
		_ = conn.SetReadDeadline(time.Now().Add(readWait))
		s.handleMessage(message)
	}
}

// handleMessage parses one frame and hands the entry to the consumer. A
// slow consumer costs us the newest events, never the read loop; snapshot
// refreshes repair the gap.
func (s *Stream) handleMessage(data []byte) {
	var entry models.AuditLogEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		logging.Error().Err(err).Msg("failed to parse audit stream message")
		return
	}
	metrics.StreamEventsReceived.Inc()

	select {
	case s.events <- entry:
	default:
		logging.Warn().Int64("entry_id", entry.ID).Msg("audit event buffer full, dropping event")
	}
}

// pingLoop keeps the connection alive until the connection's read loop
// finishes or the context is canceled.
func (s *Stream) pingLoop(ctx context.Context, conn *websocket.Conn, done <-chan struct{}) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-done:
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				logging.Debug().Err(err).Msg("audit stream ping failed")
				return
			}
		}
	}
}

func (s *Stream) setConn(conn *websocket.Conn) {
	s.connMu.Lock()
	s.conn = conn
	s.connMu.Unlock()
}

// closeConn sends a close frame and tears the connection down.
func (s *Stream) closeConn(conn *websocket.Conn) {
	_ = conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second),
	)
	_ = conn.Close()
}
