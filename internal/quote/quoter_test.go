package quote

import (
	"testing"

	"github.com/0xtitan6/binmaker/internal/config"
)

// fakeRisk is a minimal stand-in for the risk engine, letting tests pin
// down qhat/gamma/lambda/sigma without warming up a real engine.
type fakeRisk struct {
	qhat   float64
	gamma  float64
	lambda float64
	sigma  float64
	bSide  float64
	tf     float64
}

func (f fakeRisk) QHat(q, p float64, tMs int64) float64     { return f.qhat }
func (f fakeRisk) Gamma(qhat float64) float64                { return f.gamma }
func (f fakeRisk) LambdaStruct(p, U float64) float64         { return f.lambda }
func (f fakeRisk) Sigma() float64                            { return f.sigma }
func (f fakeRisk) BSide() float64                            { return f.bSide }
func (f fakeRisk) TimeFactor(tMs int64) float64              { return f.tf }

func testQuoteConfig() config.QuoteConfig {
	return config.QuoteConfig{
		RiskSpreadCoeff:      0.2,
		Kappa0:               1.0,
		RateRefPerSec:        0.05,
		MinHalfSpreadProb:    0.01,
		MaxHalfSpreadLogit:   1.5,
		LadderDecay:          0.8,
		LadderStepMult:       0.5,
		LadderMinStepLogit:   0.05,
		LadderMaxLevels:      5,
		MinOrderSize:         1.0,
		MaxOrderNotionalSide: 100.0,
	}
}

func TestComputeFlatInventoryIsSymmetric(t *testing.T) {
	risk := fakeRisk{qhat: 0, gamma: 1.0, lambda: 1.0, sigma: 1.0, bSide: 10, tf: 1.0}
	q := Compute(testQuoteConfig(), risk, "yes-token", 0, 0.5, 0.01, 10, 0.1, 1000)
	if q.Metrics.QHat != 0 {
		t.Fatalf("expected qhat 0, got %v", q.Metrics.QHat)
	}
	if len(q.Bids) == 0 || len(q.Asks) == 0 {
		t.Fatal("expected both sides populated at flat inventory")
	}
	if q.Metrics.DeltaLogit != 0 || q.Metrics.ReservationLogit != 0 {
		t.Fatalf("expected no skew and reservation at logit(0.5)=0, got delta=%v r=%v", q.Metrics.DeltaLogit, q.Metrics.ReservationLogit)
	}
}

func TestComputeLongInventorySkewsReservationDown(t *testing.T) {
	risk := fakeRisk{qhat: 0.5, gamma: 2.0, lambda: 1.0, sigma: 1.0, bSide: 10, tf: 1.0}
	q := Compute(testQuoteConfig(), risk, "yes-token", 5, 0.5, 0.01, 10, 0.1, 1000)
	if q.Metrics.DeltaLogit <= 0 {
		t.Fatalf("long inventory should produce positive delta (downward skew), got %v", q.Metrics.DeltaLogit)
	}
}

func TestCleanOrdersEnforcesNotionalCap(t *testing.T) {
	cfg := testQuoteConfig()
	cfg.MaxOrderNotionalSide = 1.0 // tiny cap forces early truncation
	risk := fakeRisk{qhat: 0, gamma: 1.0, lambda: 1.0, sigma: 1.0, bSide: 1000, tf: 1.0}
	q := Compute(cfg, risk, "yes-token", 0, 0.5, 0.01, 10, 0.1, 1000)

	var total float64
	for _, b := range q.Bids {
		total += b.Price * b.Size
	}
	if total > cfg.MaxOrderNotionalSide+1e-6 {
		t.Errorf("bid notional %v exceeds cap %v", total, cfg.MaxOrderNotionalSide)
	}
}

func TestCleanOrdersEnforcesMinSize(t *testing.T) {
	cfg := testQuoteConfig()
	cfg.MinOrderSize = 50.0
	risk := fakeRisk{qhat: 0, gamma: 1.0, lambda: 1.0, sigma: 1.0, bSide: 1, tf: 1.0}
	q := Compute(cfg, risk, "yes-token", 0, 0.5, 0.01, 10, 0.1, 1000)
	for _, b := range q.Bids {
		if b.Size < cfg.MinOrderSize {
			t.Errorf("bid size %v below configured minimum %v", b.Size, cfg.MinOrderSize)
		}
	}
}
