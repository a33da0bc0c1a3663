// Package position tracks local realized/unrealized P&L for the single
// market this process trades. The core quoting algorithm gets its YES/NO
// holdings straight from the exchange's balance endpoint, so this tracker is
// not load-bearing for quoting — it exists to give the status line and the
// telemetry snapshot a running P&L figure without round-tripping to the
// venue on every tick.
package position

import (
	"sync"
	"time"

	"github.com/0xtitan6/binmaker/pkg/types"
)

// Snapshot is a point-in-time read of the tracked position.
type Snapshot struct {
	YesQty        float64
	NoQty         float64
	AvgEntryYes   float64
	AvgEntryNo    float64
	RealizedPnL   float64
	UnrealizedPnL float64
	LastUpdated   time.Time
}

// Tracker accumulates fills into a running position and weighted-average
// entry price per side, marking unrealized P&L to the current mid on demand.
type Tracker struct {
	mu sync.Mutex

	noAssetID string // distinguishes NO fills from YES fills by asset ID

	yesQty      float64
	noQty       float64
	avgEntryYes float64
	avgEntryNo  float64
	realizedPnL float64
	lastMid     float64
	lastUpdated time.Time
}

// New creates a tracker for a market whose NO token is noAssetID; any fill
// whose AssetID differs is treated as a YES fill.
func New(noAssetID string) *Tracker {
	return &Tracker{noAssetID: noAssetID, lastMid: 0.5}
}

// OnFill applies one execution to the tracked position, updating the
// weighted-average entry price on adds and realizing P&L on reductions.
func (t *Tracker) OnFill(f types.Fill) {
	t.mu.Lock()
	defer t.mu.Unlock()

	signedSize := f.Size
	if f.Side == types.SELL {
		signedSize = -signedSize
	}

	// A binary market's two tokens are fungible with each other via
	// complementary pricing (price_yes + price_no ~= 1), but fills arrive
	// per-token so YES and NO are tracked as independent lots.
	if f.AssetID == t.noAssetID {
		t.applyFill(&t.noQty, &t.avgEntryNo, signedSize, f.Price)
	} else {
		t.applyFill(&t.yesQty, &t.avgEntryYes, signedSize, f.Price)
	}

	t.lastUpdated = f.Timestamp
}

func (t *Tracker) applyFill(qty, avgEntry *float64, signedSize, price float64) {
	switch {
	case *qty == 0 || sameSign(*qty, signedSize):
		// Adding to (or opening) a position: extend the weighted average.
		newQty := *qty + signedSize
		if newQty != 0 {
			*avgEntry = (*avgEntry**qty + price*signedSize) / newQty
		}
		*qty = newQty
	default:
		// Reducing or flipping: realize P&L on the portion that closes.
		closing := signedSize
		if abs(signedSize) > abs(*qty) {
			closing = -*qty
		}
		t.realizedPnL += closing * (*avgEntry - price)
		*qty += signedSize
		if sameSign(*qty, signedSize) && *qty != 0 && abs(signedSize) > abs(closing) {
			// Flipped through zero: the remainder opens a fresh lot at price.
			*avgEntry = price
		}
	}
}

// UpdateMarkToMarket records the latest mid price used for unrealized P&L.
func (t *Tracker) UpdateMarkToMarket(mid float64) {
	t.mu.Lock()
	t.lastMid = mid
	t.mu.Unlock()
}

// NetDelta returns the net directional exposure in YES-equivalent tokens:
// long YES and short NO both count as positive YES exposure.
func (t *Tracker) NetDelta() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.yesQty - t.noQty
}

// TotalExposureUSD returns the gross notional currently at risk across both
// legs, valued at the tracker's last recorded mid.
func (t *Tracker) TotalExposureUSD() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return abs(t.yesQty)*t.lastMid + abs(t.noQty)*(1-t.lastMid)
}

func (t *Tracker) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	unrealized := t.yesQty*(t.lastMid-t.avgEntryYes) + t.noQty*((1-t.lastMid)-t.avgEntryNo)
	return Snapshot{
		YesQty:        t.yesQty,
		NoQty:         t.noQty,
		AvgEntryYes:   t.avgEntryYes,
		AvgEntryNo:    t.avgEntryNo,
		RealizedPnL:   t.realizedPnL,
		UnrealizedPnL: unrealized,
		LastUpdated:   t.lastUpdated,
	}
}

// SetPosition forcibly overwrites the tracked YES/NO quantities (average
// entry prices and realized P&L are left as they are); the orchestrator uses
// it on startup to restore the position persisted by the telemetry store.
func (t *Tracker) SetPosition(yesQty, noQty float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.yesQty = yesQty
	t.noQty = noQty
}

func sameSign(a, b float64) bool {
	return (a >= 0) == (b >= 0)
}

func sign(a float64) float64 {
	if a < 0 {
		return -1
	}
	return 1
}

func abs(a float64) float64 {
	if a < 0 {
		return -a
	}
	return a
}
