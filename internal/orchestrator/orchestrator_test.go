package orchestrator

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/0xtitan6/binmaker/pkg/types"
)

func TestCalibrationVerdictBuckets(t *testing.T) {
	cases := []struct {
		sigma float64
		want  string
	}{
		{0.001, "low"},
		{0.05, "moderate"},
		{0.5, "high"},
	}
	for _, tc := range cases {
		if got := calibrationVerdict(tc.sigma); got != tc.want {
			t.Errorf("calibrationVerdict(%v) = %q, want %q", tc.sigma, got, tc.want)
		}
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestApplyReplacesSkipsPlaceWhenCancelFails(t *testing.T) {
	replaces := []types.Action{
		{Kind: types.ActionReplace, OrderID: "o1", Order: types.DesiredOrder{Price: 0.45, Size: 20}},
		{Kind: types.ActionReplace, OrderID: "o2", Order: types.DesiredOrder{Price: 0.55, Size: 15}},
	}

	var placed []float64
	cancel := func(ctx context.Context, orderID string) error {
		if orderID == "o1" {
			return errors.New("cancel rejected")
		}
		return nil
	}
	place := func(ctx context.Context, order types.DesiredOrder) {
		placed = append(placed, order.Price)
	}

	skipped := applyReplaces(context.Background(), replaces, cancel, place, discardLogger())

	if skipped != 1 {
		t.Fatalf("expected 1 skipped replace, got %d", skipped)
	}
	if len(placed) != 1 || placed[0] != 0.55 {
		t.Fatalf("expected only o2's replacement placed, got %+v", placed)
	}
}

func TestApplyReplacesPlacesAllWhenCancelsSucceed(t *testing.T) {
	replaces := []types.Action{
		{Kind: types.ActionReplace, OrderID: "o1", Order: types.DesiredOrder{Price: 0.45, Size: 20}},
		{Kind: types.ActionReplace, OrderID: "o2", Order: types.DesiredOrder{Price: 0.55, Size: 15}},
	}

	var placed int
	cancel := func(ctx context.Context, orderID string) error { return nil }
	place := func(ctx context.Context, order types.DesiredOrder) { placed++ }

	skipped := applyReplaces(context.Background(), replaces, cancel, place, discardLogger())

	if skipped != 0 {
		t.Fatalf("expected 0 skipped replaces, got %d", skipped)
	}
	if placed != 2 {
		t.Fatalf("expected both replacements placed, got %d", placed)
	}
}
