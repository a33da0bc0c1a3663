// Package quote computes risk-adjusted reservation prices and builds the
// resulting order ladder, pure functions of a book/risk snapshot and
// config — no shared mutable state, so Compute can run on its own goroutine
// tick without coordinating with the ingestor or risk engine beyond reading
// their snapshots.
package quote

import (
	"math"

	"github.com/0xtitan6/binmaker/internal/config"
	"github.com/0xtitan6/binmaker/internal/quant"
	"github.com/0xtitan6/binmaker/pkg/types"
)

// RiskInputs is the subset of the risk engine's interface the quoter needs.
// Kept narrow and interface-typed so tests can fake it without spinning up
// a real engine.
type RiskInputs interface {
	QHat(q, p float64, tMs int64) float64
	Gamma(qhat float64) float64
	LambdaStruct(p, U float64) float64
	Sigma() float64
	BSide() float64
	TimeFactor(tMs int64) float64
}

// Metrics records the intermediate values behind one Compute call, for
// logging/telemetry and tests.
type Metrics struct {
	PMid           float64
	QHat           float64
	Gamma          float64
	Lambda         float64
	Sigma          float64
	DeltaLogit     float64
	ReservationLogit float64
	NumBids        int
	NumAsks        int
}

// Quote is the full output of one quoting pass: the ladder plus the
// metrics that produced it.
type Quote struct {
	Metrics Metrics
	Bids    []types.DesiredOrder
	Asks    []types.DesiredOrder
}

// Compute runs the full quoting pipeline for the given position (qYes,
// signed — positive means long YES) against the current book (mid, tick)
// and liquidity proxy U. assetID is stamped onto every emitted order.
func Compute(cfg config.QuoteConfig, risk RiskInputs, assetID string, qYes, mid, tick, U, tradeRatePerSec float64, tMs int64) Quote {
	p := quant.Clip(mid, 1e-6, 1-1e-6)

	qhat := risk.QHat(qYes, p, tMs)
	gamma := risk.Gamma(qhat)
	lam := risk.LambdaStruct(p, U)
	sigma := risk.Sigma()

	delta := qhat * gamma * lam * sigma
	m := quant.Logit(p, 1e-6)
	rX := m - delta

	deltaRisk := cfg.RiskSpreadCoeff * gamma * lam * sigma

	kappaScale := 1.0 + (tradeRatePerSec / math.Max(cfg.RateRefPerSec, 1e-9))
	kappa := cfg.Kappa0 * kappaScale
	deltaLiq := (1.0 / gamma) * math.Log(1.0+gamma/math.Max(kappa, 1e-9))

	baseHalfSpread := quant.Clip(deltaRisk+deltaLiq, 0.0, cfg.MaxHalfSpreadLogit)

	bSide := risk.BSide() * risk.TimeFactor(tMs)

	bidLevels, askLevels := BuildLadder(LadderParams{
		ReferenceLogit: rX,
		HalfSpreadBid:  baseHalfSpread,
		HalfSpreadAsk:  baseHalfSpread,
		Tick:           tick,
		BSide:          bSide,
		Decay:          cfg.LadderDecay,
		StepMult:       cfg.LadderStepMult,
		MinStepLogit:   cfg.LadderMinStepLogit,
		MaxLevels:      cfg.LadderMaxLevels,
	})

	bids := cleanOrders(bidLevels, assetID, types.BUY, cfg.MinOrderSize, cfg.MaxOrderNotionalSide)
	asks := cleanOrders(askLevels, assetID, types.SELL, cfg.MinOrderSize, cfg.MaxOrderNotionalSide)

	return Quote{
		Metrics: Metrics{
			PMid:             p,
			QHat:             qhat,
			Gamma:            gamma,
			Lambda:           lam,
			Sigma:            sigma,
			DeltaLogit:       delta,
			ReservationLogit: rX,
			NumBids:          len(bids),
			NumAsks:          len(asks),
		},
		Bids: bids,
		Asks: asks,
	}
}

// cleanOrders enforces the minimum order size and truncates a side the
// moment its cumulative notional impact would exceed the configured cap,
// using exact decimal arithmetic for the running total so float drift
// never silently admits one extra level.
func cleanOrders(levels []LadderLevel, assetID string, side types.Side, minSize, maxNotional float64) []types.DesiredOrder {
	var acc quant.NotionalAccumulator
	out := make([]types.DesiredOrder, 0, len(levels))

	for _, lvl := range levels {
		size := math.Max(minSize, lvl.Size)
		price := lvl.Price
		impactPrice := sideImpactPrice(side, price)

		if acc.WouldExceed(impactPrice, size, maxNotional) {
			break
		}
		acc.Add(impactPrice, size)

		out = append(out, types.DesiredOrder{
			AssetID: assetID,
			Side:    side,
			Price:   price,
			Size:    size,
		})
	}
	return out
}

// sideImpactPrice returns the per-unit notional impact price used for the
// cap accumulator: the price itself for BUY (cost to acquire), or 1-price
// for SELL (opportunity cost of giving up the complementary outcome).
func sideImpactPrice(side types.Side, price float64) float64 {
	if side == types.SELL {
		return 1.0 - price
	}
	return price
}
