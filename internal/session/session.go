// Package session owns the venue WebSocket connection lifecycle:
// connect, authenticate, subscribe, heartbeat, and re-authentication on
// credential refresh without reconnecting. A Session is disposable per
// connection attempt; the aggregation engine it feeds lives longer.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/vadiminshakov/perpdash/internal/domain"
	"github.com/vadiminshakov/perpdash/internal/feed"
)

const (
	defaultHeartbeat = 20 * time.Second
	writeWait        = 10 * time.Second
)

// State of the session's connection state machine.
type State string

const (
	StateDisconnected   State = "disconnected"
	StateConnecting     State = "connecting"
	StateAuthenticating State = "authenticating"
	StateSubscribed     State = "subscribed"
)

// Engine consumes decoded feed events. Implemented by the aggregation
// engine; declared here so tests can observe dispatch.
type Engine interface {
	ApplyFills([]domain.Fill)
	ApplyOrders([]domain.Order)
	ApplyPositions([]domain.Position)
	ApplyAccount(domain.AccountSummary)
	SetConnection(state, authErr string)
}

// Bootstrapper seeds the stores with authoritative snapshots once
// authentication succeeds.
type Bootstrapper interface {
	Bootstrap(ctx context.Context)
}

// Config wires a session.
type Config struct {
	URL       string
	Heartbeat time.Duration
	Engine    Engine
	Bootstrap Bootstrapper
	Logger    *zap.Logger
}

// Session is a single connection attempt to the venue feed.
type Session struct {
	cfg    Config
	logger *zap.Logger

	mu    sync.Mutex
	state State
	conn  *websocket.Conn
	token string

	// gorilla allows one concurrent writer; auth refresh, subscribes
	// and heartbeats serialize here.
	wmu sync.Mutex
}

// New creates a session in the Disconnected state.
func New(cfg Config) *Session {
	if cfg.Heartbeat <= 0 {
		cfg.Heartbeat = defaultHeartbeat
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Session{cfg: cfg, logger: logger, state: StateDisconnected}
}

// State returns the current connection state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Run dials the venue, sends the auth frame carrying token and
// processes frames until the transport closes or ctx is cancelled.
// Duplicate Run calls while the session is already live are ignored.
// Reconnection is the caller's responsibility: a fresh credential may
// be needed first.
func (s *Session) Run(ctx context.Context, token string) error {
	s.mu.Lock()
	if s.state != StateDisconnected {
		s.mu.Unlock()
		return nil
	}
	s.state = StateConnecting
	s.token = token
	s.mu.Unlock()
	s.cfg.Engine.SetConnection(string(StateConnecting), "")

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, s.cfg.URL, nil)
	if err != nil {
		s.setState(StateDisconnected)
		s.cfg.Engine.SetConnection(string(StateDisconnected), "")
		return errors.Wrapf(err, "dial %s", s.cfg.URL)
	}

	s.mu.Lock()
	s.conn = conn
	s.state = StateAuthenticating
	s.mu.Unlock()
	s.cfg.Engine.SetConnection(string(StateAuthenticating), "")

	if err := s.writeJSON(feed.AuthRequest(token)); err != nil {
		s.teardown(conn)
		return errors.Wrap(err, "send auth frame")
	}

	done := make(chan struct{})
	defer close(done)

	go s.heartbeat(conn, done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			s.teardown(conn)
			if ctx.Err() != nil {
				return nil
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return errors.Wrap(err, "read frame")
		}
		s.handleFrame(ctx, raw)
	}
}

// Refresh re-sends the auth frame with a new bearer on the live
// transport. The connection and its subscriptions stay intact, so no
// in-flight stream continuity is lost. A no-op when not connected.
func (s *Session) Refresh(token string) error {
	s.mu.Lock()
	s.token = token
	connected := s.conn != nil && (s.state == StateSubscribed || s.state == StateAuthenticating)
	s.mu.Unlock()

	if !connected {
		return nil
	}
	if err := s.writeJSON(feed.AuthRequest(token)); err != nil {
		return errors.Wrap(err, "re-auth frame")
	}
	s.logger.Info("re-authenticated on live connection")
	return nil
}

// Close tears the transport down.
func (s *Session) Close() error {
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if conn == nil {
		return nil
	}
	return conn.Close()
}

func (s *Session) handleFrame(ctx context.Context, raw []byte) {
	msg, err := feed.Decode(raw)
	if err != nil {
		// one bad frame never stops the stream
		s.logger.Debug("dropping frame", zap.Error(err), zap.ByteString("raw", raw))
		return
	}

	switch m := msg.(type) {
	case feed.AuthReply:
		s.handleAuthReply(ctx, m)
	case feed.SubscribeReply:
		s.logger.Debug("subscription confirmed", zap.Int64("id", m.ID))
	case feed.FillsMessage:
		s.cfg.Engine.ApplyFills(m.Fills)
	case feed.OrdersMessage:
		s.cfg.Engine.ApplyOrders(m.Orders)
	case feed.PositionsMessage:
		s.cfg.Engine.ApplyPositions(m.Positions)
	case feed.AccountMessage:
		s.cfg.Engine.ApplyAccount(m.Account)
	case feed.BalanceEventsMessage:
		// informational only, no state mutation
		for _, event := range m.Events {
			s.logger.Info("balance event",
				zap.String("kind", event.Kind),
				zap.String("amount", event.Amount.String()))
		}
	}
}

func (s *Session) handleAuthReply(ctx context.Context, reply feed.AuthReply) {
	if reply.Err != nil {
		// reported, transport stays open: its own close handling
		// governs reconnection
		s.logger.Warn("authentication rejected", zap.Error(reply.Err))
		s.cfg.Engine.SetConnection(string(StateAuthenticating), reply.Err.Error())
		return
	}

	s.mu.Lock()
	resubscribed := s.state == StateSubscribed
	s.state = StateSubscribed
	s.mu.Unlock()
	s.cfg.Engine.SetConnection(string(StateSubscribed), "")

	// a successful re-auth on a live connection keeps its subscriptions
	if resubscribed {
		return
	}

	for _, req := range feed.SubscribeRequests() {
		if err := s.writeJSON(req); err != nil {
			s.logger.Error("subscribe failed", zap.String("channel", req.Params.Channel), zap.Error(err))
			return
		}
	}

	if s.cfg.Bootstrap != nil {
		go s.cfg.Bootstrap.Bootstrap(ctx)
	}
}

func (s *Session) heartbeat(conn *websocket.Conn, done <-chan struct{}) {
	ticker := time.NewTicker(s.cfg.Heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			s.wmu.Lock()
			err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
			s.wmu.Unlock()
			if err != nil {
				s.logger.Debug("heartbeat failed", zap.Error(err))
				return
			}
		}
	}
}

func (s *Session) writeJSON(v any) error {
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if conn == nil {
		return errors.New("not connected")
	}

	s.wmu.Lock()
	defer s.wmu.Unlock()
	return conn.WriteJSON(v)
}

func (s *Session) setState(state State) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
}

func (s *Session) teardown(conn *websocket.Conn) {
	conn.Close()
	s.mu.Lock()
	s.conn = nil
	s.state = StateDisconnected
	s.mu.Unlock()
	s.cfg.Engine.SetConnection(string(StateDisconnected), "")
}
