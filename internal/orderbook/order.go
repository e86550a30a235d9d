// Package orderbook implements a price-time priority limit order book
// with continuous matching.
package orderbook

import (
	"time"

	"github.com/google/uuid"
)

// Side is the direction of an order.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Type is the order execution type.
type Type string

const (
	TypeMarket    Type = "MARKET"
	TypeLimit     Type = "LIMIT"
	TypeStop      Type = "STOP"
	TypeStopLimit Type = "STOP_LIMIT"
)

// Status is the lifecycle state of an order. It advances monotonically;
// FILLED, CANCELLED and REJECTED are terminal.
type Status string

const (
	StatusPending       Status = "PENDING"
	StatusPartialFilled Status = "PARTIAL_FILLED"
	StatusFilled        Status = "FILLED"
	StatusCancelled     Status = "CANCELLED"
	StatusRejected      Status = "REJECTED"
)

// IsTerminal reports whether the status is final.
func (s Status) IsTerminal() bool {
	return s == StatusFilled || s == StatusCancelled || s == StatusRejected
}

// Order is a resting or incoming order. Price carries the matching price:
// market orders match as a limit at the side-extreme price.
type Order struct {
	ID       string
	Symbol   string
	Side     Side
	Type     Type
	Price    float64
	Quantity float64
	Filled   float64
	Status   Status
	Time     time.Time
	ClientID string

	// seq is the admission sequence number, the definitive time-priority
	// tie-break within a price level.
	seq uint64
}

// Remaining returns the unfilled quantity.
func (o Order) Remaining() float64 {
	return o.Quantity - o.Filled
}

// IsComplete reports whether the order is fully filled.
func (o Order) IsComplete() bool {
	return o.Remaining() <= 0
}

// Trade records a match between a buy and a sell order. Immutable.
type Trade struct {
	ID          string
	Symbol      string
	BuyOrderID  string
	SellOrderID string
	Price       float64
	Quantity    float64
	Time        time.Time
}

// NewOrderID returns a globally-unique order id.
func NewOrderID() string {
	return uuid.New().String()
}
