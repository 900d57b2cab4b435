package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// MarketStats holds running totals for a single market.
// Counters only ever grow; UnrealizedPnL is a gauge replaced on every
// position snapshot.
type MarketStats struct {
	Market        string          `json:"market"`
	RealizedPnL   decimal.Decimal `json:"realized_pnl"`
	UnrealizedPnL decimal.Decimal `json:"unrealized_pnl"`
	Fees          decimal.Decimal `json:"fees"`
	Volume        decimal.Decimal `json:"volume"`
	OrderCount    int             `json:"order_count"`
	FillCount     int             `json:"fill_count"`
}

// TimePoint is one sample of a dashboard time series.
type TimePoint struct {
	Time  time.Time       `json:"t"`
	Value decimal.Decimal `json:"v"`
}

// ConnectionStatus is the connectivity indicator surfaced to the UI.
type ConnectionStatus struct {
	State     string `json:"state"`
	AuthError string `json:"auth_error,omitempty"`
}

// DashboardState is the immutable snapshot published per batch flush.
// It holds no references into the engine's internal maps, so consumers
// may keep it indefinitely.
//
// Invariant: TotalPnL = RealizedPnL - TotalFees + UnrealizedPnL.
type DashboardState struct {
	Timestamp     time.Time        `json:"ts"`
	RealizedPnL   decimal.Decimal  `json:"realized_pnl"`
	UnrealizedPnL decimal.Decimal  `json:"unrealized_pnl"`
	TotalPnL      decimal.Decimal  `json:"total_pnl"`
	TotalFees     decimal.Decimal  `json:"total_fees"`
	TotalVolume   decimal.Decimal  `json:"total_volume"`
	Equity        decimal.Decimal  `json:"equity"`
	OrdersCreated int              `json:"orders_created"`
	TotalFills    int              `json:"total_fills"`
	Markets       []MarketStats    `json:"markets"`
	Positions     []Position       `json:"positions"`
	OpenOrders    []Order          `json:"open_orders"`
	ExitOrders    map[string]Order `json:"exit_orders,omitempty"`
	RecentFills   []Fill           `json:"recent_fills"`
	PnLHistory    []TimePoint      `json:"pnl_history"`
	EquityHistory []TimePoint      `json:"equity_history"`
	VolumeHistory []TimePoint      `json:"volume_history"`
	OrderHistory  []TimePoint      `json:"order_history"`
	Connection    ConnectionStatus `json:"connection"`
}

// StateRecord bundles a published state with the journal index it was
// written at, for SSE resume via Last-Event-ID.
type StateRecord struct {
	Index uint64
	State DashboardState
}
