package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Fill is an immutable trade execution record pushed by the venue.
// Quantities arrive as decimal strings on the wire and decode straight
// into decimal.Decimal to avoid float drift.
type Fill struct {
	ID          string          `json:"id"`
	Market      string          `json:"market"`
	Side        Side            `json:"side"`
	Size        decimal.Decimal `json:"size"`
	Price       decimal.Decimal `json:"price"`
	RealizedPnL decimal.Decimal `json:"realized_pnl"`
	Fee         decimal.Decimal `json:"fee"`
	CreatedAt   int64           `json:"created_at"`
	OrderID     string          `json:"order_id"`
}

// Notional returns price multiplied by size.
func (f Fill) Notional() decimal.Decimal {
	return f.Price.Mul(f.Size)
}

// Time converts the venue's millisecond timestamp.
func (f Fill) Time() time.Time {
	return time.UnixMilli(f.CreatedAt)
}

// OrderStatus is the lifecycle state of an order.
// NEW/OPEN are live; CLOSED, CANCELED and REJECTED are terminal.
type OrderStatus string

const (
	OrderStatusNew      OrderStatus = "NEW"
	OrderStatusOpen     OrderStatus = "OPEN"
	OrderStatusClosed   OrderStatus = "CLOSED"
	OrderStatusCanceled OrderStatus = "CANCELED"
	OrderStatusRejected OrderStatus = "REJECTED"
)

// String returns the string representation.
func (s OrderStatus) String() string {
	return string(s)
}

// IsOpen reports whether the order is still live on the book.
func (s OrderStatus) IsOpen() bool {
	return s == OrderStatusNew || s == OrderStatusOpen
}

// IsTerminal reports whether the order reached a final state.
func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusClosed || s == OrderStatusCanceled || s == OrderStatusRejected
}

// Order is an order lifecycle update pushed by the venue.
type Order struct {
	ID            string          `json:"id"`
	Market        string          `json:"market"`
	Side          Side            `json:"side"`
	Type          string          `json:"type"`
	Size          decimal.Decimal `json:"size"`
	RemainingSize decimal.Decimal `json:"remaining_size,omitempty"`
	Price         decimal.Decimal `json:"price"`
	Status        OrderStatus     `json:"status"`
	CreatedAt     int64           `json:"created_at"`
	UpdatedAt     int64           `json:"updated_at,omitempty"`
}

// Time converts the venue's millisecond creation timestamp.
func (o Order) Time() time.Time {
	return time.UnixMilli(o.CreatedAt)
}

// Position is the venue's current exposure snapshot for one market.
// Snapshots replace each other wholesale; there is no field-level diffing.
type Position struct {
	Market            string          `json:"market"`
	Side              PositionSide    `json:"side"`
	Size              decimal.Decimal `json:"size"`
	Leverage          decimal.Decimal `json:"leverage,omitempty"`
	AverageEntryPrice decimal.Decimal `json:"average_entry_price"`
	LiquidationPrice  decimal.Decimal `json:"liquidation_price,omitempty"`
	UnrealizedPnL     decimal.Decimal `json:"unrealized_pnl"`
	RealizedPnL       decimal.Decimal `json:"realized_positional_pnl,omitempty"`
	Cost              decimal.Decimal `json:"cost,omitempty"`
	Status            string          `json:"status,omitempty"`
}

// IsClosed reports whether the snapshot closes the market's position.
func (p Position) IsClosed() bool {
	return p.Size.IsZero() || p.Status == "CLOSED"
}

// AccountSummary is the venue's authoritative account-wide snapshot.
// Some venues name the equity field account_value, others equity;
// Value picks whichever is populated.
type AccountSummary struct {
	AccountValue  decimal.Decimal `json:"account_value"`
	Equity        decimal.Decimal `json:"equity"`
	UnrealizedPnL decimal.Decimal `json:"unrealized_pnl"`
}

// Value returns the account equity reported by the venue.
func (a AccountSummary) Value() decimal.Decimal {
	if !a.AccountValue.IsZero() {
		return a.AccountValue
	}
	return a.Equity
}

// BalanceEvent is an informational transfer/funding notification.
// It is logged for operators and never mutates aggregate state.
type BalanceEvent struct {
	ID        string          `json:"id"`
	Kind      string          `json:"kind"`
	Amount    decimal.Decimal `json:"amount"`
	CreatedAt int64           `json:"created_at"`
}
