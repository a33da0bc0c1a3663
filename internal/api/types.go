package api

import (
	"time"

	"github.com/0xtitan6/binmaker/internal/config"
)

// DashboardSnapshot is the complete read-only status view for the single
// market this process trades.
type DashboardSnapshot struct {
	Timestamp time.Time `json:"timestamp"`

	Book     BookStatus     `json:"book"`
	Position PositionStatus `json:"position"`
	Quote    QuoteStatus    `json:"quote"`
	Risk     RiskStatus     `json:"risk"`
	Config   ConfigSummary  `json:"config"`
}

// BookStatus is the current order book view for the traded asset.
type BookStatus struct {
	BestBid     float64   `json:"best_bid"`
	BestAsk     float64   `json:"best_ask"`
	MidPrice    float64   `json:"mid_price"`
	TickSize    float64   `json:"tick_size"`
	LastUpdated time.Time `json:"last_updated"`
	IsStale     bool      `json:"is_stale"`
}

// PositionStatus mirrors position.Snapshot plus a computed skew for the
// dashboard's directional-exposure gauge.
type PositionStatus struct {
	YesQty        float64   `json:"yes_qty"`
	NoQty         float64   `json:"no_qty"`
	AvgEntryYes   float64   `json:"avg_entry_yes"`
	AvgEntryNo    float64   `json:"avg_entry_no"`
	RealizedPnL   float64   `json:"realized_pnl"`
	UnrealizedPnL float64   `json:"unrealized_pnl"`
	ExposureUSD   float64   `json:"exposure_usd"`
	Skew          float64   `json:"skew"` // YesQty - NoQty, in tokens
	LastUpdated   time.Time `json:"last_updated"`
}

// QuoteStatus is the currently resting ladder's top-of-book levels and the
// reservation price/spread that produced them.
type QuoteStatus struct {
	BidPrice         float64   `json:"bid_price"`
	BidSize          float64   `json:"bid_size"`
	AskPrice         float64   `json:"ask_price"`
	AskSize          float64   `json:"ask_size"`
	ReservationPrice float64   `json:"reservation_price"`
	HalfSpread       float64   `json:"half_spread"`
	GeneratedAt      time.Time `json:"generated_at"`
}

// RiskStatus surfaces the sizing/toxicity engine's current read.
type RiskStatus struct {
	Sigma      float64 `json:"sigma"`
	WarmReady  bool    `json:"warm_ready"`
	NumReturns int     `json:"num_returns"`
	QHat       float64 `json:"q_hat"`
	Gamma      float64 `json:"gamma"`
}

// ConfigSummary surfaces the operator-relevant subset of the live config.
type ConfigSummary struct {
	DryRun               bool    `json:"dry_run"`
	BankrollUSD          float64 `json:"bankroll_usd"`
	NumConcurrentPlays   int     `json:"num_concurrent_plays"`
	LadderMaxLevels      int     `json:"ladder_max_levels"`
	MaxOrderNotionalSide float64 `json:"max_order_notional_side"`
	RefreshInterval      string  `json:"refresh_interval"`
}

// NewConfigSummary builds a ConfigSummary from the live config.
func NewConfigSummary(cfg config.Config) ConfigSummary {
	return ConfigSummary{
		DryRun:               cfg.DryRun,
		BankrollUSD:          cfg.Risk.BankrollUSD,
		NumConcurrentPlays:   cfg.Risk.NumConcurrent,
		LadderMaxLevels:      cfg.Quote.LadderMaxLevels,
		MaxOrderNotionalSide: cfg.Quote.MaxOrderNotionalSide,
		RefreshInterval:      cfg.Quote.RefreshInterval.String(),
	}
}
