package quote

import "testing"

func TestBuildLadderProducesDescendingBidsAscendingAsks(t *testing.T) {
	bids, asks := BuildLadder(LadderParams{
		ReferenceLogit: 0.0,
		HalfSpreadBid:  0.2,
		HalfSpreadAsk:  0.2,
		Tick:           0.01,
		BSide:          10.0,
		Decay:          0.8,
		StepMult:       0.5,
		MinStepLogit:   0.05,
		MaxLevels:      5,
	})

	if len(bids) == 0 || len(asks) == 0 {
		t.Fatal("expected non-empty bid and ask ladders")
	}
	for i := 1; i < len(bids); i++ {
		if bids[i].Price >= bids[i-1].Price {
			t.Errorf("bids not strictly descending at %d: %v >= %v", i, bids[i].Price, bids[i-1].Price)
		}
	}
	for i := 1; i < len(asks); i++ {
		if asks[i].Price <= asks[i-1].Price {
			t.Errorf("asks not strictly ascending at %d: %v <= %v", i, asks[i].Price, asks[i-1].Price)
		}
	}
}

func TestBuildLadderRespectsMaxLevels(t *testing.T) {
	bids, asks := BuildLadder(LadderParams{
		ReferenceLogit: 0.0,
		HalfSpreadBid:  5.0,
		HalfSpreadAsk:  5.0,
		Tick:           0.0001,
		BSide:          10.0,
		Decay:          0.8,
		StepMult:       0.01,
		MinStepLogit:   0.001,
		MaxLevels:      3,
	})
	if len(bids) > 3 || len(asks) > 3 {
		t.Errorf("ladder exceeded max levels: bids=%d asks=%d", len(bids), len(asks))
	}
}

func TestBuildLadderSizesDecayAcrossLevels(t *testing.T) {
	bids, _ := BuildLadder(LadderParams{
		ReferenceLogit: 0.0,
		HalfSpreadBid:  0.3,
		HalfSpreadAsk:  0.3,
		Tick:           0.001,
		BSide:          10.0,
		Decay:          0.5,
		StepMult:       0.3,
		MinStepLogit:   0.02,
		MaxLevels:      5,
	})
	if len(bids) < 2 {
		t.Skip("not enough levels generated to check decay")
	}
	// Levels are sorted by price descending, not necessarily by distance-
	// from-reference level index, so compare against the map of level->size
	// indirectly: risk (and thus size at the same price distance) should
	// shrink as level index increases.
	byLevel := map[int]float64{}
	for _, b := range bids {
		byLevel[b.Level] = b.Size
	}
	if s0, ok0 := byLevel[0]; ok0 {
		if s1, ok1 := byLevel[1]; ok1 {
			if s1 >= s0 {
				t.Errorf("level 1 size %v should be smaller than level 0 size %v under decay<1", s1, s0)
			}
		}
	}
}

func TestBuildLadderNeverCrossesOneOrZero(t *testing.T) {
	bids, asks := BuildLadder(LadderParams{
		ReferenceLogit: 0.0,
		HalfSpreadBid:  10.0,
		HalfSpreadAsk:  10.0,
		Tick:           0.01,
		BSide:          10.0,
		Decay:          0.8,
		StepMult:       0.5,
		MinStepLogit:   0.05,
		MaxLevels:      10,
	})
	for _, b := range bids {
		if b.Price <= 0 || b.Price >= 1 {
			t.Errorf("bid price out of (0,1): %v", b.Price)
		}
	}
	for _, a := range asks {
		if a.Price <= 0 || a.Price >= 1 {
			t.Errorf("ask price out of (0,1): %v", a.Price)
		}
	}
}
