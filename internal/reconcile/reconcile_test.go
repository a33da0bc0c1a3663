package reconcile

import (
	"strconv"
	"testing"

	"github.com/0xtitan6/binmaker/pkg/types"
)

func priceOf(o types.OpenOrder) float64 {
	v, _ := strconv.ParseFloat(o.Price, 64)
	return v
}

func sizeOf(o types.OpenOrder) float64 {
	orig, _ := strconv.ParseFloat(o.OriginalSize, 64)
	matched, _ := strconv.ParseFloat(o.SizeMatched, 64)
	return orig - matched
}

func TestReconcilePlacesNewWhenNoneExist(t *testing.T) {
	desired := []types.DesiredOrder{{Price: 0.45, Size: 10}}
	plan := Reconcile(desired, nil, priceOf, sizeOf)
	if len(plan.Places) != 1 || len(plan.Cancels) != 0 {
		t.Fatalf("expected one place and zero cancels, got %+v", plan)
	}
}

func TestReconcileKeepsMatchingPriceAndSize(t *testing.T) {
	desired := []types.DesiredOrder{{Price: 0.45, Size: 10}}
	existing := []types.OpenOrder{{ID: "o1", Price: "0.45", OriginalSize: "10", SizeMatched: "0"}}
	plan := Reconcile(desired, existing, priceOf, sizeOf)
	if len(plan.Places) != 0 || len(plan.Cancels) != 0 {
		t.Fatalf("expected no actions for an already-correct order, got %+v", plan)
	}
}

func TestReconcileResizesOnLargeSizeDelta(t *testing.T) {
	desired := []types.DesiredOrder{{Price: 0.45, Size: 20}} // >25% different from 10
	existing := []types.OpenOrder{{ID: "o1", Price: "0.45", OriginalSize: "10", SizeMatched: "0"}}
	plan := Reconcile(desired, existing, priceOf, sizeOf)
	if len(plan.Cancels) != 0 || len(plan.Places) != 0 {
		t.Fatalf("expected no bare cancels/places, resize should be a Replace, got %+v", plan)
	}
	if len(plan.Replaces) != 1 || plan.Replaces[0].OrderID != "o1" || plan.Replaces[0].Order.Size != 20 {
		t.Fatalf("expected replace of o1 with size 20, got %+v", plan.Replaces)
	}
}

func TestReconcileToleratesSmallSizeDelta(t *testing.T) {
	desired := []types.DesiredOrder{{Price: 0.45, Size: 10.5}} // 5% different from 10
	existing := []types.OpenOrder{{ID: "o1", Price: "0.45", OriginalSize: "10", SizeMatched: "0"}}
	plan := Reconcile(desired, existing, priceOf, sizeOf)
	if len(plan.Cancels) != 0 || len(plan.Places) != 0 || len(plan.Replaces) != 0 {
		t.Fatalf("small size delta should not trigger resize, got %+v", plan)
	}
}

func TestReconcilePrunesUnclaimedOrders(t *testing.T) {
	desired := []types.DesiredOrder{{Price: 0.45, Size: 10}}
	existing := []types.OpenOrder{
		{ID: "o1", Price: "0.45", OriginalSize: "10", SizeMatched: "0"},
		{ID: "stale", Price: "0.30", OriginalSize: "5", SizeMatched: "0"},
	}
	plan := Reconcile(desired, existing, priceOf, sizeOf)
	if len(plan.Cancels) != 1 || plan.Cancels[0].OrderID != "stale" {
		t.Fatalf("expected only 'stale' cancelled, got %+v", plan.Cancels)
	}
}

func TestReconcileAccountsForPartialFillsViaRemainingSize(t *testing.T) {
	desired := []types.DesiredOrder{{Price: 0.45, Size: 10}}
	existing := []types.OpenOrder{{ID: "o1", Price: "0.45", OriginalSize: "10", SizeMatched: "9.5"}}
	// remaining size = 0.5, vs desired 10 -> massive diff, should resize
	plan := Reconcile(desired, existing, priceOf, sizeOf)
	if len(plan.Replaces) != 1 {
		t.Fatalf("expected resize for near-fully-filled order, got %+v", plan)
	}
}

func TestReconcileSkipsReplacePlaceWhenCallerTracksCancelFailure(t *testing.T) {
	// Reconcile itself only builds the plan; this test documents that a
	// resize's cancel and place stay paired in one Replace action so a
	// caller can skip the place on cancel failure without extra bookkeeping.
	desired := []types.DesiredOrder{{Price: 0.45, Size: 20}}
	existing := []types.OpenOrder{{ID: "o1", Price: "0.45", OriginalSize: "10", SizeMatched: "0"}}
	plan := Reconcile(desired, existing, priceOf, sizeOf)
	if len(plan.Replaces) != 1 {
		t.Fatalf("expected one replace action, got %+v", plan)
	}
	r := plan.Replaces[0]
	if r.OrderID != "o1" || r.Order.Price != 0.45 || r.Order.Size != 20 {
		t.Fatalf("replace action should carry both the cancel target and the new order, got %+v", r)
	}
}
