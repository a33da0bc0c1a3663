package api

import (
	"time"

	"github.com/0xtitan6/binmaker/pkg/types"
)

// DashboardEvent wraps every message pushed to connected dashboard clients.
type DashboardEvent struct {
	Type      string      `json:"type"` // "snapshot", "fill", "quote", "book"
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data"`
}

// FillEvent reports one execution against our resting orders.
type FillEvent struct {
	OrderID       string  `json:"order_id"`
	Side          string  `json:"side"`
	Price         float64 `json:"price"`
	Size          float64 `json:"size"`
	YesQty        float64 `json:"yes_qty"`
	NoQty         float64 `json:"no_qty"`
	RealizedPnL   float64 `json:"realized_pnl"`
	UnrealizedPnL float64 `json:"unrealized_pnl"`
}

// QuoteEvent reports the ladder's top-of-book levels after a requote.
type QuoteEvent struct {
	BidPrice         float64 `json:"bid_price"`
	BidSize          float64 `json:"bid_size"`
	AskPrice         float64 `json:"ask_price"`
	AskSize          float64 `json:"ask_size"`
	ReservationPrice float64 `json:"reservation_price"`
	MidPrice         float64 `json:"mid_price"`
}

// BookUpdateEvent reports a change to the locally tracked order book.
type BookUpdateEvent struct {
	BestBid  float64 `json:"best_bid"`
	BestAsk  float64 `json:"best_ask"`
	MidPrice float64 `json:"mid_price"`
}

// NewFillEvent builds a FillEvent from a normalized fill and the resulting
// position snapshot.
func NewFillEvent(f types.Fill, pos PositionStatus) FillEvent {
	return FillEvent{
		OrderID:       f.ID,
		Side:          string(f.Side),
		Price:         f.Price,
		Size:          f.Size,
		YesQty:        pos.YesQty,
		NoQty:         pos.NoQty,
		RealizedPnL:   pos.RealizedPnL,
		UnrealizedPnL: pos.UnrealizedPnL,
	}
}
