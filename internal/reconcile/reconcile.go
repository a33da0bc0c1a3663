// Package reconcile diffs the quoter's desired ladder against the
// exchange's actual open orders and produces the minimal set of
// place/cancel actions to converge, without ever cancelling and
// re-placing an order that's already correct.
package reconcile

import (
	"math"

	"github.com/0xtitan6/binmaker/pkg/types"
)

const (
	priceMatchTolerance = 1e-9
	sizeResizeThreshold  = 0.25 // >25% size delta triggers cancel+replace
)

// Plan is the full set of actions to take to converge the book from its
// current open orders to the desired ladder.
type Plan struct {
	Cancels  []types.Action // ActionCancel, OrderID set — unclaimed orders, pruned outright
	Places   []types.Action // ActionPlace, Order set — no existing order claims this price
	Replaces []types.Action // ActionReplace, OrderID+Order set — resize: cancel OrderID, then place Order
}

// Reconcile computes the cancel/place actions needed to bring the open
// orders in line with the desired ladder; desired and existing may hold
// both sides. An existing order matches a desired level only when its side
// and asset ID are the level's and its price is within priceMatchTolerance
// (the caller need not pre-round); a matched order is resized
// (ActionReplace) only if the size differs by more than
// sizeResizeThreshold, otherwise it is left untouched. Existing orders
// whose price claims no desired level are pruned (ActionCancel).
//
// A resize's cancel and its replacement place are kept together in one
// ActionReplace rather than split across Cancels/Places: a caller must not
// place the replacement if the cancel fails, or the level doubles up.
func Reconcile(desired []types.DesiredOrder, existing []types.OpenOrder, priceOf func(types.OpenOrder) float64, sizeOf func(types.OpenOrder) float64) Plan {
	var plan Plan
	claimed := make([]bool, len(existing))

	for _, want := range desired {
		idx := findByPrice(existing, priceOf, want)
		if idx < 0 {
			plan.Places = append(plan.Places, types.Action{Kind: types.ActionPlace, Order: want})
			continue
		}
		claimed[idx] = true
		current := sizeOf(existing[idx])
		sizeDiff := math.Abs(want.Size-current) / math.Max(current, 1e-9)
		if sizeDiff > sizeResizeThreshold {
			plan.Replaces = append(plan.Replaces, types.Action{
				Kind:    types.ActionReplace,
				OrderID: existing[idx].ID,
				Order:   want,
			})
		}
	}

	for i, o := range existing {
		if !claimed[i] {
			plan.Cancels = append(plan.Cancels, types.Action{Kind: types.ActionCancel, OrderID: o.ID})
		}
	}

	return plan
}

func findByPrice(existing []types.OpenOrder, priceOf func(types.OpenOrder) float64, want types.DesiredOrder) int {
	for i, o := range existing {
		if o.Side != string(want.Side) || o.AssetID != want.AssetID {
			continue
		}
		if math.Abs(priceOf(o)-want.Price) < priceMatchTolerance {
			return i
		}
	}
	return -1
}
