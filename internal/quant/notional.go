package quant

import "github.com/shopspring/decimal"

// NotionalAccumulator tracks the running notional value committed to one
// side of the ladder (price × size, summed level by level) using exact
// decimal arithmetic. The ladder builder truncates a side the instant the
// running total would exceed the configured cap; doing that comparison in
// float64 risks admitting one extra level when repeated addition drifts a
// few ULPs below the cap. Decimal arithmetic closes that gap.
type NotionalAccumulator struct {
	total decimal.Decimal
}

// Add records one more level's notional (price * size) and reports the new
// running total as a float64 for the caller's cap comparison.
func (n *NotionalAccumulator) Add(price, size float64) float64 {
	levelNotional := decimal.NewFromFloat(price).Mul(decimal.NewFromFloat(size))
	n.total = n.total.Add(levelNotional)
	f, _ := n.total.Float64()
	return f
}

// WouldExceed reports whether adding one more level at (price, size) would
// push the running total above cap, without mutating the accumulator.
func (n *NotionalAccumulator) WouldExceed(price, size, cap float64) bool {
	levelNotional := decimal.NewFromFloat(price).Mul(decimal.NewFromFloat(size))
	projected := n.total.Add(levelNotional)
	f, _ := projected.Float64()
	return f > cap
}

// SnapToTick rounds a price down to the tick grid using decimal arithmetic
// and returns the result as float64. The ladder builder uses this (rather
// than FloorToTick's plain float division) for bid prices: a bid must round
// down to stay a maker's price, and doing that in decimal space guarantees
// the emitted price is exactly representable on the venue's grid instead of
// a float64 that merely lands close to a tick multiple.
func SnapToTick(price, tick float64) float64 {
	p := decimal.NewFromFloat(price)
	t := decimal.NewFromFloat(tick)
	steps := p.Div(t).Floor()
	snapped := steps.Mul(t)
	f, _ := snapped.Float64()
	return f
}
