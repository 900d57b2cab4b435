package engine

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vadiminshakov/perpdash/internal/domain"
)

// history accumulates bounded time series for the dashboard charts.
// Retention is drop-oldest truncation: recent history is exact, very
// old history is discarded, nothing is sampled or interpolated.
type history struct {
	limit int

	pnl    []domain.TimePoint
	equity []domain.TimePoint
	volume []domain.TimePoint

	// order-creation timestamps may arrive out of causal order, so the
	// series is rebuilt from sorted event times on every insertion and
	// each point's value is its rank. The displayed series stays
	// monotonically non-decreasing under network reordering.
	orderTimes []time.Time
	orders     []domain.TimePoint
}

func newHistory(limit int) *history {
	return &history{limit: limit}
}

func (h *history) addPnL(t time.Time, v decimal.Decimal) {
	h.pnl = appendBounded(h.pnl, domain.TimePoint{Time: t, Value: v}, h.limit)
}

func (h *history) addEquity(t time.Time, v decimal.Decimal) {
	h.equity = appendBounded(h.equity, domain.TimePoint{Time: t, Value: v}, h.limit)
}

func (h *history) addVolume(t time.Time, v decimal.Decimal) {
	h.volume = appendBounded(h.volume, domain.TimePoint{Time: t, Value: v}, h.limit)
}

// addOrderCreated inserts an order-creation event and re-sequences the
// whole retained buffer by event timestamp. O(n log n) per batch,
// acceptable at the bounded retention size.
func (h *history) addOrderCreated(t time.Time) {
	h.orderTimes = append(h.orderTimes, t)
	sort.Slice(h.orderTimes, func(i, j int) bool {
		return h.orderTimes[i].Before(h.orderTimes[j])
	})
	if len(h.orderTimes) > h.limit {
		h.orderTimes = h.orderTimes[len(h.orderTimes)-h.limit:]
	}

	h.orders = h.orders[:0]
	for i, ts := range h.orderTimes {
		h.orders = append(h.orders, domain.TimePoint{
			Time:  ts,
			Value: decimal.NewFromInt(int64(i + 1)),
		})
	}
}

func appendBounded(points []domain.TimePoint, p domain.TimePoint, limit int) []domain.TimePoint {
	points = append(points, p)
	if len(points) > limit {
		points = points[len(points)-limit:]
	}
	return points
}

func copyPoints(points []domain.TimePoint) []domain.TimePoint {
	if len(points) == 0 {
		return nil
	}
	out := make([]domain.TimePoint, len(points))
	copy(out, points)
	return out
}
