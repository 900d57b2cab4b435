package engine

import (
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/vadiminshakov/perpdash/internal/domain"
)

const (
	defaultFlushInterval   = 100 * time.Millisecond
	defaultHistoryLimit    = 1000
	defaultRecentFillLimit = 200
)

// Config tunes the engine's batching and retention.
type Config struct {
	// FlushInterval bounds how often a new state is published.
	FlushInterval time.Duration
	// HistoryLimit caps each time series, drop-oldest.
	HistoryLimit int
	// RecentFillLimit caps the recent-fills list, drop-oldest.
	RecentFillLimit int
}

func (c Config) withDefaults() Config {
	if c.FlushInterval <= 0 {
		c.FlushInterval = defaultFlushInterval
	}
	if c.HistoryLimit <= 0 {
		c.HistoryLimit = defaultHistoryLimit
	}
	if c.RecentFillLimit <= 0 {
		c.RecentFillLimit = defaultRecentFillLimit
	}
	return c
}

// Publisher consumes published dashboard states. The state is a deep
// copy owned by the consumer.
type Publisher func(domain.DashboardState)

// Engine is the state-aggregation core. All mutation paths (live
// deltas, bootstrap merges, the flush timer) serialize on one mutex, so
// handlers never interleave mid-mutation. Aggregates survive reconnects
// and credential refreshes; only the transport session is disposable.
type Engine struct {
	logger  *zap.Logger
	publish Publisher

	mu         sync.Mutex
	closed     bool
	store      *store
	hist       *history
	batch      *batcher
	equity     decimal.Decimal
	account    domain.AccountSummary
	hasAccount bool
	conn       domain.ConnectionStatus
}

// New creates an engine publishing batched states through publish.
func New(cfg Config, logger *zap.Logger, publish Publisher) *Engine {
	cfg = cfg.withDefaults()
	e := &Engine{
		logger:  logger,
		publish: publish,
		store:   newStore(cfg.RecentFillLimit),
		hist:    newHistory(cfg.HistoryLimit),
		conn:    domain.ConnectionStatus{State: "disconnected"},
	}
	e.batch = newBatcher(cfg.FlushInterval, e.flush)
	return e
}

// ApplyFills ingests trade executions.
func (e *Engine) ApplyFills(fills []domain.Fill) {
	if len(fills) == 0 {
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}

	for _, fill := range fills {
		e.store.applyFill(fill)
		agg := project(e.store)
		e.hist.addPnL(fill.Time(), e.totalPnLLocked(agg))
		e.hist.addVolume(fill.Time(), agg.totalVolume)
	}
	e.batch.mark()
}

// ApplyOrders ingests order lifecycle updates. Bootstrap seeding and
// live deltas go through the same path, so whichever write lands last
// wins and duplicate OPEN deliveries cannot double count.
func (e *Engine) ApplyOrders(orders []domain.Order) {
	if len(orders) == 0 {
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}

	for _, order := range orders {
		if created := e.store.applyOrder(order); created {
			e.hist.addOrderCreated(order.Time())
		}
	}
	e.batch.mark()
}

// ApplyPositions ingests position snapshots.
func (e *Engine) ApplyPositions(positions []domain.Position) {
	if len(positions) == 0 {
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}

	for _, position := range positions {
		e.store.applyPosition(position)
	}
	e.hist.addPnL(time.Now(), e.totalPnLLocked(project(e.store)))
	e.batch.mark()
}

// ApplyAccount ingests the account-wide summary. Equity only moves on a
// positive snapshot value; it is never silently reset to zero.
func (e *Engine) ApplyAccount(account domain.AccountSummary) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}

	e.account = account
	e.hasAccount = true
	if account.Value().IsPositive() {
		e.equity = account.Value()
		e.hist.addEquity(time.Now(), e.equity)
	}
	e.batch.mark()
}

// SetConnection updates the connectivity indicator surfaced to the UI.
// Auth failures land here; they never touch accumulated aggregates.
func (e *Engine) SetConnection(state, authErr string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}

	e.conn = domain.ConnectionStatus{State: state, AuthError: authErr}
	e.batch.mark()
}

// Snapshot returns a point-in-time consistent copy of the current
// state without waiting for the next flush.
func (e *Engine) Snapshot() domain.DashboardState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshotLocked()
}

// Close stops the flush timer. No publish happens after Close returns.
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	e.batch.stop()
}

func (e *Engine) flush() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.batch.settle()
	state := e.snapshotLocked()
	publish := e.publish
	e.mu.Unlock()

	if publish != nil {
		publish(state)
	}
}

// totalPnLLocked picks the unrealized component: the venue's account
// snapshot is authoritative when one has been seen, otherwise the sum
// of per-market gauges.
func (e *Engine) totalPnLLocked(agg aggregate) decimal.Decimal {
	unrealized := agg.unrealizedPnL
	if e.hasAccount {
		unrealized = e.account.UnrealizedPnL
	}
	return agg.realizedPnL.Sub(agg.totalFees).Add(unrealized)
}

// snapshotLocked deep-copies the mutable stores into an immutable
// value-typed state. Nothing in the result aliases engine internals.
func (e *Engine) snapshotLocked() domain.DashboardState {
	agg := project(e.store)

	unrealized := agg.unrealizedPnL
	if e.hasAccount {
		unrealized = e.account.UnrealizedPnL
	}

	markets := e.store.sortedMarkets()
	state := domain.DashboardState{
		Timestamp:     time.Now(),
		RealizedPnL:   agg.realizedPnL,
		UnrealizedPnL: unrealized,
		TotalPnL:      agg.realizedPnL.Sub(agg.totalFees).Add(unrealized),
		TotalFees:     agg.totalFees,
		TotalVolume:   agg.totalVolume,
		Equity:        e.equity,
		OrdersCreated: agg.ordersCreated,
		TotalFills:    agg.totalFills,
		Markets:       make([]domain.MarketStats, 0, len(markets)),
		PnLHistory:    copyPoints(e.hist.pnl),
		EquityHistory: copyPoints(e.hist.equity),
		VolumeHistory: copyPoints(e.hist.volume),
		OrderHistory:  copyPoints(e.hist.orders),
		Connection:    e.conn,
	}

	for _, market := range markets {
		state.Markets = append(state.Markets, *e.store.stats[market])

		if position, ok := e.store.positions[market]; ok {
			state.Positions = append(state.Positions, position)
			if exit, ok := e.store.exitOrder(position); ok {
				if state.ExitOrders == nil {
					state.ExitOrders = make(map[string]domain.Order)
				}
				state.ExitOrders[market] = exit
			}
		}

		if open, ok := e.store.openOrders[market]; ok {
			ids := make([]string, 0, len(open))
			for id := range open {
				ids = append(ids, id)
			}
			sort.Strings(ids)
			for _, id := range ids {
				state.OpenOrders = append(state.OpenOrders, open[id])
			}
		}
	}

	if len(e.store.recentFills) > 0 {
		state.RecentFills = make([]domain.Fill, len(e.store.recentFills))
		copy(state.RecentFills, e.store.recentFills)
	}

	return state
}
