package engine

import (
	"github.com/shopspring/decimal"
)

// aggregate is the account-wide projection of per-market stats.
type aggregate struct {
	realizedPnL   decimal.Decimal
	unrealizedPnL decimal.Decimal
	totalFees     decimal.Decimal
	totalVolume   decimal.Decimal
	ordersCreated int
	totalFills    int
}

// project sums the per-market counters into account-wide totals. It is
// a pure function of the store: equity is handled by the caller because
// it cannot be derived from fills alone (margin and collateral are not
// visible client-side) and comes only from account snapshots.
func project(s *store) aggregate {
	var agg aggregate
	for _, stats := range s.stats {
		agg.realizedPnL = agg.realizedPnL.Add(stats.RealizedPnL)
		agg.unrealizedPnL = agg.unrealizedPnL.Add(stats.UnrealizedPnL)
		agg.totalFees = agg.totalFees.Add(stats.Fees)
		agg.totalVolume = agg.totalVolume.Add(stats.Volume)
		agg.ordersCreated += stats.OrderCount
		agg.totalFills += stats.FillCount
	}
	return agg
}

// totalPnL applies the published-state invariant:
// total = realized - fees + unrealized.
func (a aggregate) totalPnL() decimal.Decimal {
	return a.realizedPnL.Sub(a.totalFees).Add(a.unrealizedPnL)
}
