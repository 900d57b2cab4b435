package session

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/vadiminshakov/perpdash/internal/domain"
	"github.com/vadiminshakov/perpdash/pkg/retrier"
)

// VenueAPI is the REST surface used to seed the stores on (re)connect.
type VenueAPI interface {
	OpenPositions(ctx context.Context) ([]domain.Position, error)
	OpenOrders(ctx context.Context) ([]domain.Order, error)
}

// Bootstrap fetches authoritative open positions and open orders after
// authentication and merges them through the same engine paths the live
// handlers use, so whichever write lands last wins and streamed deltas
// can be trusted as complete afterwards. Each fetch is retried a few
// times; after that the failure is logged and live deltas accumulate
// from empty.
type Bootstrap struct {
	client  VenueAPI
	engine  Engine
	retrier *retrier.Retrier
	logger  *zap.Logger
}

// NewBootstrap creates a snapshot bootstrapper.
func NewBootstrap(client VenueAPI, engine Engine, logger *zap.Logger) *Bootstrap {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bootstrap{
		client:  client,
		engine:  engine,
		retrier: retrier.New(
			retrier.WithMaxRetries(2),
			retrier.WithInitialInterval(200*time.Millisecond),
			retrier.WithMaxInterval(time.Second),
		),
		logger:  logger,
	}
}

// Bootstrap runs one seeding cycle.
func (b *Bootstrap) Bootstrap(ctx context.Context) {
	positions, err := retrier.DoWithData(b.retrier, ctx, b.client.OpenPositions)
	if err != nil {
		b.logger.Warn("bootstrap: open positions fetch failed", zap.Error(err))
	} else {
		b.engine.ApplyPositions(positions)
		b.logger.Info("bootstrap: positions seeded", zap.Int("count", len(positions)))
	}

	orders, err := retrier.DoWithData(b.retrier, ctx, b.client.OpenOrders)
	if err != nil {
		b.logger.Warn("bootstrap: open orders fetch failed", zap.Error(err))
		return
	}
	b.engine.ApplyOrders(orders)
	b.logger.Info("bootstrap: orders seeded", zap.Int("count", len(orders)))
}
