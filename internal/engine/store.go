// Package engine ingests the venue's unordered event stream and
// maintains a consistent, incrementally updated view of derived account
// metrics, publishing immutable snapshots on a fixed cadence.
package engine

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vadiminshakov/perpdash/internal/domain"
)

// store owns the mutable per-market aggregates. It is not safe for
// concurrent use; the Engine serializes access behind its mutex. The
// store's lifetime spans the whole user session and survives transport
// reconnects and credential refreshes.
type store struct {
	stats       map[string]*domain.MarketStats
	positions   map[string]domain.Position
	openOrders  map[string]map[string]domain.Order
	lastOpenID  map[string]string
	counted     map[string]map[string]struct{}
	lastFillAt  map[string]time.Time
	lastOrderAt map[string]time.Time

	recentFills     []domain.Fill
	recentFillLimit int
}

func newStore(recentFillLimit int) *store {
	return &store{
		stats:           make(map[string]*domain.MarketStats),
		positions:       make(map[string]domain.Position),
		openOrders:      make(map[string]map[string]domain.Order),
		lastOpenID:      make(map[string]string),
		counted:         make(map[string]map[string]struct{}),
		lastFillAt:      make(map[string]time.Time),
		lastOrderAt:     make(map[string]time.Time),
		recentFillLimit: recentFillLimit,
	}
}

func (s *store) marketStats(market string) *domain.MarketStats {
	stats, ok := s.stats[market]
	if !ok {
		stats = &domain.MarketStats{Market: market}
		s.stats[market] = stats
	}
	return stats
}

// applyFill accumulates the fill into the market's counters and the
// bounded recent-fills list. Fills are immutable; their realized pnl,
// fee and notional only ever add.
func (s *store) applyFill(fill domain.Fill) {
	stats := s.marketStats(fill.Market)
	stats.Volume = stats.Volume.Add(fill.Notional())
	stats.RealizedPnL = stats.RealizedPnL.Add(fill.RealizedPnL)
	stats.Fees = stats.Fees.Add(fill.Fee)
	stats.FillCount++

	// a fill marks the moment position size changed, even before the
	// corresponding position snapshot arrives.
	s.lastFillAt[fill.Market] = fill.Time()

	s.recentFills = append(s.recentFills, fill)
	if len(s.recentFills) > s.recentFillLimit {
		s.recentFills = s.recentFills[len(s.recentFills)-s.recentFillLimit:]
	}
}

// applyOrder tracks the market's open-order set and creation counter.
// Returns true when the order was counted as newly created, so the
// caller can extend the order-count history.
func (s *store) applyOrder(order domain.Order) bool {
	s.lastOrderAt[order.Market] = time.Now()

	if order.Status.IsOpen() {
		open, ok := s.openOrders[order.Market]
		if !ok {
			open = make(map[string]domain.Order)
			s.openOrders[order.Market] = open
		}
		open[order.ID] = order
		s.lastOpenID[order.Market] = order.ID

		// count each order id once, no matter how many times the venue
		// redelivers its OPEN state.
		seen, ok := s.counted[order.Market]
		if !ok {
			seen = make(map[string]struct{})
			s.counted[order.Market] = seen
		}
		if _, dup := seen[order.ID]; dup {
			return false
		}
		seen[order.ID] = struct{}{}
		s.marketStats(order.Market).OrderCount++
		return true
	}

	if order.Status.IsTerminal() {
		if open, ok := s.openOrders[order.Market]; ok {
			delete(open, order.ID)
			if len(open) == 0 {
				delete(s.openOrders, order.Market)
			}
		}
		if s.lastOpenID[order.Market] == order.ID {
			delete(s.lastOpenID, order.Market)
		}
	}
	return false
}

// applyPosition replaces the market's position wholesale. A snapshot
// with zero size or CLOSED status removes the position and zeroes the
// market's unrealized pnl gauge.
func (s *store) applyPosition(position domain.Position) {
	stats := s.marketStats(position.Market)
	if position.IsClosed() {
		delete(s.positions, position.Market)
		stats.UnrealizedPnL = decimal.Zero
		return
	}

	s.positions[position.Market] = position
	stats.UnrealizedPnL = position.UnrealizedPnL
}

// exitOrder returns the open order that would reduce the position: the
// most recently tracked open order on the opposite side. When several
// opposite-side orders are open, the last tracked one wins; this is a
// display simplification, not a trading guarantee.
func (s *store) exitOrder(position domain.Position) (domain.Order, bool) {
	open, ok := s.openOrders[position.Market]
	if !ok {
		return domain.Order{}, false
	}

	exitSide := position.Side.ExitSide()
	if id, ok := s.lastOpenID[position.Market]; ok {
		if order, ok := open[id]; ok && order.Side == exitSide {
			return order, true
		}
	}

	ids := make([]string, 0, len(open))
	for id := range open {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for i := len(ids) - 1; i >= 0; i-- {
		if order := open[ids[i]]; order.Side == exitSide {
			return order, true
		}
	}
	return domain.Order{}, false
}

// sortedMarkets returns market symbols in stable order for publishing.
func (s *store) sortedMarkets() []string {
	markets := make([]string, 0, len(s.stats))
	for market := range s.stats {
		markets = append(markets, market)
	}
	sort.Strings(markets)
	return markets
}
