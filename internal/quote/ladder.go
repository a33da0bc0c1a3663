package quote

import (
	"math"
	"sort"

	"github.com/0xtitan6/binmaker/internal/quant"
)

// LadderLevel is one price/size pair at a given distance from the
// reference price, before per-side notional-cap trimming.
type LadderLevel struct {
	Level int
	Price float64
	Size  float64
}

// LadderParams are the inputs to BuildLadder, one call per refresh cycle.
type LadderParams struct {
	ReferenceLogit float64 // r_x: optimal quote location in logit space
	HalfSpreadBid  float64 // half_b: logit-space half-spread below reference
	HalfSpreadAsk  float64 // half_a: logit-space half-spread above reference
	Tick           float64
	BSide          float64 // available capital for this side, time-decayed
	Decay          float64 // per-level size decay (e.g. 0.8 = 20% smaller each level)
	StepMult       float64 // logit-space step size multiplier
	MinStepLogit   float64
	MaxLevels      int
}

// BuildLadder constructs geometrically spaced bid and ask levels around the
// reference price. Prices are generated in logit space, converted back to
// probability space and snapped to the tick grid, then sized with
// Kelly-style "risk / win-probability" sizing that decays per level.
// Ported from the reference build_v1_ladder implementation this engine's
// spread/sizing math is modeled on.
func BuildLadder(p LadderParams) (bids, asks []LadderLevel) {
	xB0 := p.ReferenceLogit - p.HalfSpreadBid
	xA0 := p.ReferenceLogit + p.HalfSpreadAsk

	baseStep := math.Max(p.StepMult*(p.HalfSpreadBid+p.HalfSpreadAsk)/2.0, p.MinStepLogit)

	minTickPrice := math.Max(p.Tick, 0.001)
	maxTickPrice := math.Min(1.0-p.Tick, 0.999)
	xMin := quant.Logit(minTickPrice, 1e-6)
	xMax := quant.Logit(maxTickPrice, 1e-6)

	var nBid, nAsk int
	if baseStep > 1e-9 {
		nBid = clampLevels(int(math.Max(0, (xB0-xMin)/baseStep)), p.MaxLevels)
		nAsk = clampLevels(int(math.Max(0, (xMax-xA0)/baseStep)), p.MaxLevels)
	}

	baseRiskUnit := p.BSide * 0.10

	for i := 0; i < nBid; i++ {
		x := xB0 - float64(i)*baseStep
		px := quant.Sigmoid(x)
		px = quant.SnapToTick(px, p.Tick)
		if px <= 0.001 {
			break
		}
		levelRisk := baseRiskUnit * math.Pow(p.Decay, float64(i))
		size := levelRisk / math.Max(px, 1e-3)
		bids = append(bids, LadderLevel{Level: i, Price: px, Size: size})
	}

	for i := 0; i < nAsk; i++ {
		x := xA0 + float64(i)*baseStep
		px := quant.Sigmoid(x)
		px = quant.CeilToTick(px, p.Tick)
		if px >= 0.999 {
			break
		}
		levelRisk := baseRiskUnit * math.Pow(p.Decay, float64(i))
		size := levelRisk / math.Max(1.0-px, 1e-3)
		asks = append(asks, LadderLevel{Level: i, Price: px, Size: size})
	}

	return dedupe(bids, true), dedupe(asks, false)
}

func clampLevels(n, max int) int {
	if n > max {
		return max
	}
	if n < 0 {
		return 0
	}
	return n
}

// dedupe removes duplicate prices (which can occur once tick-snapping
// collapses two nearby logit levels onto the same grid point), keeping
// whichever level is closest to the reference price, then sorts the result
// descending for bids / ascending for asks.
func dedupe(levels []LadderLevel, descending bool) []LadderLevel {
	best := make(map[float64]LadderLevel, len(levels))
	for _, l := range levels {
		existing, ok := best[l.Price]
		if !ok || l.Level < existing.Level {
			best[l.Price] = l
		}
	}
	out := make([]LadderLevel, 0, len(best))
	for _, l := range best {
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool {
		if descending {
			return out[i].Price > out[j].Price
		}
		return out[i].Price < out[j].Price
	})
	return out
}
