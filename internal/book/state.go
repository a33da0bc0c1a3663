// Package book maintains a local mirror of a single binary market's YES
// order book plus a trailing trade timeline, kept current from venue
// stream frames. State is the only writer of its own fields; callers only
// ever see it through the RWMutex-guarded accessor methods below, never a
// raw pointer into its internals.
package book

import (
	"math"
	"strconv"
	"sync"
	"time"

	"github.com/0xtitan6/binmaker/pkg/types"
)

const tradeTimelineCap = 5000

// Snapshot is a point-in-time, lock-free copy of the book's derived state,
// safe to pass across goroutine boundaries and hold onto.
type Snapshot struct {
	BestBid        float64
	BestAsk        float64
	Mid            float64
	TickSize       float64
	LastTradePrice float64
	LastBookAt     time.Time
	LastTradeAt    time.Time
}

// State is the local mirror of one token's order book, updated from
// venue stream frames. Only the YES token book is tracked: for a binary
// market NO's price is always 1 - YES, so the quoter only ever needs one
// side's book.
type State struct {
	mu sync.RWMutex

	assetID string

	bestBid  float64
	bestAsk  float64
	mid      float64
	tick     float64
	lastHash string

	lastTradePrice float64
	lastBookAt     time.Time
	lastTradeAt    time.Time

	trades []tradeRecord // FIFO ring, capped at tradeTimelineCap
}

type tradeRecord struct {
	at    time.Time
	price float64
}

// New creates book state for the given YES asset ID, defaulting best_ask to
// 1 and tick size to initialTick until the first snapshot arrives — matching the
// reference implementation's initial (best_bid=0, best_ask=1, mid=0.5)
// state so mid-price computations never divide against a zero-width book
// before any data has been seen.
func New(assetID string, initialTick float64) *State {
	return &State{
		assetID: assetID,
		bestAsk: 1.0,
		mid:     0.5,
		tick:    initialTick,
	}
}

// ApplyBook replaces the book with a full snapshot from a "book" frame.
// An empty side (no bid levels, or no ask levels) leaves that side's prior
// state unchanged rather than resetting it to 0/1 — a one-sided snapshot is
// not the same thing as a cleared book.
func (s *State) ApplyBook(event types.WSBookEvent) {
	if event.AssetID != s.assetID {
		return
	}
	bid, bidOK := bestOf(event.Buys, true)
	ask, askOK := bestOf(event.Sells, false)

	s.mu.Lock()
	defer s.mu.Unlock()
	if bidOK {
		s.bestBid = bid
	}
	if askOK {
		s.bestAsk = ask
	}
	s.lastHash = event.Hash
	s.lastBookAt = time.Now()
	s.updateMidLocked()
}

// ApplyPriceChange folds an incremental "price_change" frame into the book.
// Each change may optionally carry the venue's own recomputed best_bid/
// best_ask; when present those are authoritative and applied directly
// (this is what the reference implementation does — it never tries to
// replay individual level deltas against its own book copy).
func (s *State) ApplyPriceChange(event types.WSPriceChangeEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, pc := range event.PriceChanges {
		if pc.AssetID != "" && pc.AssetID != s.assetID {
			continue
		}
		if pc.BestBid != "" {
			if v, ok := parseFloat(pc.BestBid); ok {
				s.bestBid = v
			}
		}
		if pc.BestAsk != "" {
			if v, ok := parseFloat(pc.BestAsk); ok {
				s.bestAsk = v
			}
		}
		if pc.Hash != "" {
			s.lastHash = pc.Hash
		}
	}
	s.lastBookAt = time.Now()
	s.updateMidLocked()
}

// ApplyTickSizeChange replaces the book's tick size when the venue tightens
// (or widens) the market's price grid.
func (s *State) ApplyTickSizeChange(event types.WSTickSizeChangeEvent) {
	if event.AssetID != "" && event.AssetID != s.assetID {
		return
	}
	v, ok := parseFloat(event.NewTickSize)
	if !ok {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tick = v
}

// ApplyLastTradePrice records a "last_trade_price" frame into the trade
// timeline and updates LastTradePrice, independent of the order book.
func (s *State) ApplyLastTradePrice(event types.WSLastTradePriceEvent) {
	if event.AssetID != "" && event.AssetID != s.assetID {
		return
	}
	price, ok := parseFloat(event.Price)
	if !ok {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	s.lastTradePrice = price
	s.lastTradeAt = now
	s.trades = append(s.trades, tradeRecord{at: now, price: price})
	if len(s.trades) > tradeTimelineCap {
		s.trades = s.trades[len(s.trades)-tradeTimelineCap:]
	}
}

// updateMidLocked recomputes mid only when both sides are in a valid
// crossed-free state: best_bid > 0, best_ask < 1, and best_bid < best_ask.
// Ported from the reference implementation's _update_mid — it deliberately
// refuses to update mid from a one-sided or crossed book, leaving the
// previous mid in place rather than publishing a misleading value.
func (s *State) updateMidLocked() {
	b, a := s.bestBid, s.bestAsk
	if b > 0 && a < 1 && b < a {
		s.mid = (b + a) / 2
	}
}

// Snapshot returns a consistent point-in-time copy of the book's state.
func (s *State) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{
		BestBid:        s.bestBid,
		BestAsk:        s.bestAsk,
		Mid:            s.mid,
		TickSize:       s.tick,
		LastTradePrice: s.lastTradePrice,
		LastBookAt:     s.lastBookAt,
		LastTradeAt:    s.lastTradeAt,
	}
}

// IsStale reports whether neither a book update nor a trade has been seen
// within maxAge.
func (s *State) IsStale(maxAge time.Duration) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	last := s.lastBookAt
	if s.lastTradeAt.After(last) {
		last = s.lastTradeAt
	}
	if last.IsZero() {
		return true
	}
	return time.Since(last) > maxAge
}

// TradeRatePerSec returns the number of trades observed in the trailing
// window divided by the window length, matching the reference
// implementation's trade_rate_per_s — it feeds the risk engine's
// trade-intensity factor and the quoter's kappa scaling (the liquidity
// proxy U comes from TradeCountInWindow instead).
func (s *State) TradeRatePerSec(window time.Duration) float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if window <= 0 || len(s.trades) == 0 {
		return 0
	}
	cutoff := time.Now().Add(-window)
	count := 0
	for i := len(s.trades) - 1; i >= 0; i-- {
		if s.trades[i].at.Before(cutoff) {
			break
		}
		count++
	}
	return float64(count) / window.Seconds()
}

// TradeCountInWindow returns the raw count of trades within the trailing
// window, used by the liquidity proxy estimator (sqrt of count).
func (s *State) TradeCountInWindow(window time.Duration) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if window <= 0 || len(s.trades) == 0 {
		return 0
	}
	cutoff := time.Now().Add(-window)
	count := 0
	for i := len(s.trades) - 1; i >= 0; i-- {
		if s.trades[i].at.Before(cutoff) {
			break
		}
		count++
	}
	return count
}

// bestOf scans one side's levels for the best price, dropping any level
// whose price is malformed, non-finite, or outside [0,1] rather than
// letting a single bad field corrupt the whole book. ok is false when no
// level on this side carried a usable price — including an empty side —
// so callers can leave that side's prior state untouched instead of
// defaulting to 0/1.
func bestOf(levels []types.PriceLevel, isBid bool) (best float64, ok bool) {
	for _, lvl := range levels {
		p, valid := parseFloat(lvl.Price)
		if !valid {
			continue
		}
		if !ok {
			best, ok = p, true
			continue
		}
		if isBid && p > best {
			best = p
		} else if !isBid && p < best {
			best = p
		}
	}
	return best, ok
}

// parseFloat parses a venue-supplied numeric string, rejecting malformed,
// non-finite, and out-of-range (outside [0,1], a valid probability/price)
// values — the stream ingestor's boundary for dropping a single bad field
// without discarding the rest of the frame.
func parseFloat(s string) (float64, bool) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) || v < 0 || v > 1 {
		return 0, false
	}
	return v, true
}
