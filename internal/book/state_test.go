package book

import (
	"testing"
	"time"

	"github.com/0xtitan6/binmaker/pkg/types"
)

func TestApplyBookUpdatesMid(t *testing.T) {
	s := New("yes-token", 0.01)
	s.ApplyBook(types.WSBookEvent{
		AssetID: "yes-token",
		Buys:    []types.PriceLevel{{Price: "0.40", Size: "100"}},
		Sells:   []types.PriceLevel{{Price: "0.45", Size: "100"}},
	})
	snap := s.Snapshot()
	if snap.BestBid != 0.40 || snap.BestAsk != 0.45 {
		t.Fatalf("got bid=%v ask=%v", snap.BestBid, snap.BestAsk)
	}
	if want := (snap.BestBid + snap.BestAsk) / 2; snap.Mid != want {
		t.Fatalf("mid = %v, want (bid+ask)/2 = %v", snap.Mid, want)
	}
}

func TestApplyBookToleratesEmptySideWithoutWipingState(t *testing.T) {
	s := New("yes-token", 0.01)
	s.ApplyBook(types.WSBookEvent{
		AssetID: "yes-token",
		Buys:    []types.PriceLevel{{Price: "0.40", Size: "100"}},
		Sells:   []types.PriceLevel{{Price: "0.45", Size: "100"}},
	})

	// A later frame with an empty bid side must not reset best bid to 0.
	s.ApplyBook(types.WSBookEvent{
		AssetID: "yes-token",
		Buys:    nil,
		Sells:   []types.PriceLevel{{Price: "0.46", Size: "50"}},
	})

	snap := s.Snapshot()
	if snap.BestBid != 0.40 {
		t.Fatalf("empty-sided frame should leave prior best bid unchanged, got %v", snap.BestBid)
	}
	if snap.BestAsk != 0.46 {
		t.Fatalf("non-empty ask side should still update, got %v", snap.BestAsk)
	}
}

func TestApplyBookDropsInvalidPriceLevelsButKeepsValidOnes(t *testing.T) {
	s := New("yes-token", 0.01)
	s.ApplyBook(types.WSBookEvent{
		AssetID: "yes-token",
		Buys:    []types.PriceLevel{{Price: "not-a-number", Size: "1"}, {Price: "0.38", Size: "1"}},
		Sells:   []types.PriceLevel{{Price: "0.45", Size: "1"}},
	})
	snap := s.Snapshot()
	if snap.BestBid != 0.38 {
		t.Fatalf("malformed level should be dropped, leaving the valid one: got %v", snap.BestBid)
	}
}

func TestApplyBookIgnoresOtherAsset(t *testing.T) {
	s := New("yes-token", 0.01)
	s.ApplyBook(types.WSBookEvent{
		AssetID: "other-token",
		Buys:    []types.PriceLevel{{Price: "0.10", Size: "1"}},
		Sells:   []types.PriceLevel{{Price: "0.20", Size: "1"}},
	})
	snap := s.Snapshot()
	if snap.BestBid != 0 {
		t.Fatalf("cross-asset event should be ignored, got bestBid=%v", snap.BestBid)
	}
}

func TestUpdateMidRefusesCrossedBook(t *testing.T) {
	s := New("yes-token", 0.01)
	s.ApplyBook(types.WSBookEvent{
		AssetID: "yes-token",
		Buys:    []types.PriceLevel{{Price: "0.40", Size: "1"}},
		Sells:   []types.PriceLevel{{Price: "0.45", Size: "1"}},
	})
	before := s.Snapshot().Mid

	// A crossed update (bid >= ask) must not move mid.
	s.ApplyPriceChange(types.WSPriceChangeEvent{
		PriceChanges: []types.WSPriceChange{
			{AssetID: "yes-token", BestBid: "0.60", BestAsk: "0.55"},
		},
	})
	after := s.Snapshot().Mid
	if after != before {
		t.Fatalf("mid changed on crossed book: before=%v after=%v", before, after)
	}
}

func TestApplyTickSizeChange(t *testing.T) {
	s := New("yes-token", 0.01)
	s.ApplyTickSizeChange(types.WSTickSizeChangeEvent{AssetID: "yes-token", NewTickSize: "0.001"})
	if s.Snapshot().TickSize != 0.001 {
		t.Fatalf("tick size not updated: %v", s.Snapshot().TickSize)
	}
}

func TestTradeRatePerSec(t *testing.T) {
	s := New("yes-token", 0.01)
	for i := 0; i < 5; i++ {
		s.ApplyLastTradePrice(types.WSLastTradePriceEvent{AssetID: "yes-token", Price: "0.5"})
	}
	rate := s.TradeRatePerSec(time.Minute)
	if rate <= 0 {
		t.Fatalf("expected positive trade rate, got %v", rate)
	}
}

func TestIsStaleWithNoData(t *testing.T) {
	s := New("yes-token", 0.01)
	if !s.IsStale(time.Second) {
		t.Fatal("fresh state with no updates should be stale")
	}
}
