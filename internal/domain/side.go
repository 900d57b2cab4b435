// Package domain defines core data structures shared across the dashboard.
package domain

// Side of an order or fill.
type Side string

const (
	// SideBuy buy order or fill.
	SideBuy Side = "BUY"
	// SideSell sell order or fill.
	SideSell Side = "SELL"
)

// String returns the string representation.
func (s Side) String() string {
	return string(s)
}

// IsValid checks if the Side value is valid.
func (s Side) IsValid() bool {
	return s == SideBuy || s == SideSell
}

// PositionSide is the direction of an open position.
type PositionSide string

const (
	// PositionSideLong long exposure (profits when price rises).
	PositionSideLong PositionSide = "LONG"
	// PositionSideShort short exposure (profits when price falls).
	PositionSideShort PositionSide = "SHORT"
)

// String returns the string representation.
func (p PositionSide) String() string {
	return string(p)
}

// IsValid checks if the PositionSide value is valid.
func (p PositionSide) IsValid() bool {
	return p == PositionSideLong || p == PositionSideShort
}

// ExitSide returns the order side that reduces the position:
// a long closes with a sell, a short closes with a buy.
func (p PositionSide) ExitSide() Side {
	if p == PositionSideShort {
		return SideBuy
	}
	return SideSell
}
