// Package simulator runs a self-contained synthetic venue speaking the
// production wire contract: the JSON-RPC WebSocket feed plus the REST
// auth/bootstrap endpoints. It exists for local demo mode and as a
// reference implementation of the protocol; nothing here touches the
// aggregation engine directly.
package simulator

import (
	"context"
	"encoding/json"
	"errors"
	"math/rand"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/vadiminshakov/perpdash/internal/domain"
	"github.com/vadiminshakov/perpdash/internal/feed"
)

const defaultTickInterval = 400 * time.Millisecond

type market struct {
	symbol string
	price  decimal.Decimal
	step   decimal.Decimal
}

// Simulator is the synthetic venue server.
type Simulator struct {
	addr     string
	interval time.Duration
	logger   *zap.Logger
	upgrader websocket.Upgrader
	rng      *rand.Rand

	mu      sync.Mutex
	markets []*market
}

// New creates a simulator listening on addr.
func New(addr string, tickInterval time.Duration, logger *zap.Logger) *Simulator {
	if tickInterval <= 0 {
		tickInterval = defaultTickInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Simulator{
		addr:     addr,
		interval: tickInterval,
		logger:   logger,
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
		markets: []*market{
			{symbol: "BTC-USD-PERP", price: decimal.NewFromInt(90000), step: decimal.NewFromInt(50)},
			{symbol: "ETH-USD-PERP", price: decimal.NewFromInt(3200), step: decimal.NewFromInt(4)},
			{symbol: "SOL-USD-PERP", price: decimal.NewFromInt(150), step: decimal.NewFromFloat(0.5)},
		},
	}
}

// Start runs the simulator (blocking) until ctx is cancelled.
func (s *Simulator) Start(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWS)
	mux.HandleFunc("/auth", s.handleAuth)
	mux.HandleFunc("/positions", s.handleList)
	mux.HandleFunc("/orders", s.handleList)

	server := &http.Server{Addr: s.addr, Handler: mux}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	s.logger.Info("simulator listening", zap.String("addr", s.addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Simulator) handleAuth(w http.ResponseWriter, r *http.Request) {
	_ = json.NewEncoder(w).Encode(map[string]string{"jwt_token": "simulated-" + uuid.NewString()})
}

// handleList serves empty bootstrap sets: the demo account starts flat.
func (s *Simulator) handleList(w http.ResponseWriter, r *http.Request) {
	_, _ = w.Write([]byte(`{"results":[]}`))
}

func (s *Simulator) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	var wmu sync.Mutex
	write := func(v any) error {
		wmu.Lock()
		defer wmu.Unlock()
		return conn.WriteJSON(v)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			var req feed.Request
			if err := conn.ReadJSON(&req); err != nil {
				return
			}
			// every auth succeeds and every subscribe is confirmed
			reply := map[string]any{"jsonrpc": "2.0", "id": req.ID, "result": map[string]any{}}
			if req.Method == "subscribe" {
				reply["result"] = map[string]string{"channel": req.Params.Channel}
			}
			if err := write(reply); err != nil {
				return
			}
		}
	}()

	equity := decimal.NewFromInt(10000)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-r.Context().Done():
			return
		case <-ticker.C:
			for _, frame := range s.tick(&equity) {
				if err := write(frame); err != nil {
					return
				}
			}
		}
	}
}

// tick produces one burst of synthetic account activity.
func (s *Simulator) tick(equity *decimal.Decimal) []feed.Envelope {
	s.mu.Lock()
	defer s.mu.Unlock()

	m := s.markets[s.rng.Intn(len(s.markets))]
	drift := m.step.Mul(decimal.NewFromInt(int64(s.rng.Intn(7) - 3)))
	m.price = m.price.Add(drift)

	now := time.Now().UnixMilli()
	side := domain.SideBuy
	if s.rng.Intn(2) == 0 {
		side = domain.SideSell
	}
	size := decimal.NewFromFloat(0.01 * float64(1+s.rng.Intn(5)))
	orderID := uuid.NewString()

	order := domain.Order{
		ID:        orderID,
		Market:    m.symbol,
		Side:      side,
		Type:      "LIMIT",
		Size:      size,
		Price:     m.price,
		Status:    domain.OrderStatusOpen,
		CreatedAt: now,
	}

	fill := domain.Fill{
		ID:          uuid.NewString(),
		Market:      m.symbol,
		Side:        side,
		Size:        size,
		Price:       m.price,
		RealizedPnL: drift.Mul(size).Round(4),
		Fee:         m.price.Mul(size).Mul(decimal.NewFromFloat(0.0002)).Round(4),
		CreatedAt:   now,
		OrderID:     orderID,
	}

	closed := order
	closed.Status = domain.OrderStatusClosed
	closed.UpdatedAt = now

	posSide := domain.PositionSideLong
	if side == domain.SideSell {
		posSide = domain.PositionSideShort
	}
	position := domain.Position{
		Market:            m.symbol,
		Side:              posSide,
		Size:              size,
		AverageEntryPrice: m.price,
		UnrealizedPnL:     drift.Mul(size).Round(4),
	}

	*equity = equity.Add(fill.RealizedPnL).Sub(fill.Fee)
	account := domain.AccountSummary{
		AccountValue:  *equity,
		UnrealizedPnL: position.UnrealizedPnL,
	}

	return []feed.Envelope{
		push(feed.ChannelOrdersAll, order),
		push(feed.ChannelFillsAll, fill),
		push(feed.ChannelOrdersAll, closed),
		push(feed.ChannelPositions, position),
		push(feed.ChannelAccount, account),
	}
}

func push(channel string, data any) feed.Envelope {
	payload, _ := json.Marshal(data)
	return feed.Envelope{
		JSONRPC: "2.0",
		Method:  "subscription",
		Params:  &feed.PushParams{Channel: channel, Data: payload},
	}
}
