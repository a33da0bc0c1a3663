package api

import (
	"time"

	"github.com/0xtitan6/binmaker/internal/config"
)

// StatusProvider is the read-only view the dashboard needs from the running
// orchestrator. It is deliberately narrow: no control operations, since the
// dashboard is observe-only.
type StatusProvider interface {
	BookStatus() BookStatus
	PositionStatus() PositionStatus
	QuoteStatus() QuoteStatus
	RiskStatus() RiskStatus
	DashboardEvents() <-chan DashboardEvent
}

// BuildSnapshot aggregates state from the orchestrator into one dashboard
// snapshot, suitable for both the REST endpoint and a client's initial push.
func BuildSnapshot(provider StatusProvider, cfg config.Config) DashboardSnapshot {
	return DashboardSnapshot{
		Timestamp: time.Now(),
		Book:      provider.BookStatus(),
		Position:  provider.PositionStatus(),
		Quote:     provider.QuoteStatus(),
		Risk:      provider.RiskStatus(),
		Config:    NewConfigSummary(cfg),
	}
}
