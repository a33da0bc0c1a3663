// Package risk implements the volatility, toxicity, and Kelly-style sizing
// engine that drives the quoter's risk adjustments. It is a single-writer,
// mutex-guarded struct: private fields, mutated under one lock, exposed
// only through snapshot-returning methods.
package risk

import (
	"math"
	"sort"
	"sync"
	"time"

	"github.com/0xtitan6/binmaker/internal/config"
	"github.com/0xtitan6/binmaker/internal/quant"
)

const (
	returnsCap     = 5000
	fillsCap       = 2000
	logitEps       = 1e-6
)

// pendingFill is a trade awaiting markout evaluation.
type pendingFill struct {
	tsMs    int64
	price   float64
	isBuy   bool
	xFill   float64
	h1Done  bool
	h2Done  bool
}

// Snapshot is the set of volatility/warm-up indicators shown on the
// dashboard, taken under lock in one consistent pass.
type Snapshot struct {
	Sigma      float64
	WarmReady  bool
	NumReturns int
}

// CalibrationSnapshot summarizes the warm-up period for persistence, using
// robust (median/MAD) statistics to resist outliers.
type CalibrationSnapshot struct {
	NumReturns         int     `json:"n_returns"`
	DtSampleSeconds    float64 `json:"dt_sample_s"`
	SigmaBaseLogitPerDt float64 `json:"sigma_base_logit_per_dt"`
	EmaFastAbs         float64 `json:"ema_fast_abs"`
	EmaSlowAbs         float64 `json:"ema_slow_abs"`
}

// Engine tracks the volatility/toxicity/sizing state for a single market.
type Engine struct {
	risk   config.RiskConfig
	warmup config.WarmupConfig
	rateRef float64 // quote.rate_ref_per_sec — shared with the quoter's kappa scaling

	marketStartMs   int64
	marketResolveMs int64

	mu sync.Mutex

	sigmaSmoothed float64
	emaFastAbs    float64
	emaSlowAbs    float64
	emaFastR      float64
	emaFastAbsR   float64
	emaSlowAbsR   float64

	returns         []float64
	lastSampleTsMs  int64
	hasLastSample   bool
	lastX           float64

	fillsPending []pendingFill

	toxEmaPosH1 float64
	toxEmaPosH2 float64
}

// New creates a risk engine for the given market window and parameters.
func New(risk config.RiskConfig, warmup config.WarmupConfig, rateRefPerSec float64, marketStartMs, marketResolveMs int64) *Engine {
	return &Engine{
		risk:            risk,
		warmup:          warmup,
		rateRef:         rateRefPerSec,
		marketStartMs:   marketStartMs,
		marketResolveMs: marketResolveMs,
		sigmaSmoothed:   1.0,
	}
}

func ema(prev, x, tauS, dtS float64) float64 {
	if tauS <= 0 {
		return x
	}
	a := 1.0 - math.Exp(-dtS/tauS)
	return prev + a*(x-prev)
}

// TimeFactor returns the [0,1] risk-decay multiplier as resolution
// approaches: (time remaining / total duration) ^ eta_time.
func (e *Engine) TimeFactor(tMs int64) float64 {
	total := float64(e.marketResolveMs-e.marketStartMs) / 1000.0
	if total <= 0 {
		return 1.0
	}
	tau := float64(e.marketResolveMs-tMs) / 1000.0
	if tau < 0 {
		tau = 0
	}
	return math.Pow(tau/total, e.risk.EtaTime)
}

// BSide returns the bankroll allocated to one side of the book, split
// evenly across the configured number of concurrent plays.
func (e *Engine) BSide() float64 {
	w := 1.0 / math.Max(float64(e.risk.NumConcurrent), 1)
	return 0.5 * e.risk.BankrollUSD * w
}

// QMax returns the Kelly-optimal maximum position size for probability p
// and current signed position q at time tMs.
func (e *Engine) QMax(p, q float64, tMs int64) float64 {
	pOpp := p
	if q >= 0 {
		pOpp = 1.0 - p
	}
	denom := math.Max(pOpp*(1.0+e.risk.SlippageBuffer), 1e-9)
	return (e.BSide() * e.TimeFactor(tMs)) / denom
}

// QHat normalizes q against QMax into [-1, 1].
func (e *Engine) QHat(q, p float64, tMs int64) float64 {
	qm := e.QMax(p, q, tMs)
	if qm <= 0 {
		return 0
	}
	return quant.Clip(q/qm, -1.0, 1.0)
}

// Gamma is the power-law spread-scaling factor driven by normalized
// position size, clipped to [1, gamma_max].
func (e *Engine) Gamma(qhat float64) float64 {
	u := quant.Clip(math.Abs(qhat), 0.0, 0.999999)
	g := 1.0 / math.Pow(1.0-u, e.risk.GammaA)
	return quant.Clip(g, 1.0, e.risk.GammaMax)
}

// Ap is the probability-weighting factor: variance of a Bernoulli(p),
// normalized by its maximum (0.25 at p=0.5), raised to beta_p.
func (e *Engine) Ap(p float64) float64 {
	p = quant.Clip(p, 1e-6, 1-1e-6)
	uncertainty := (p * (1.0 - p)) / 0.25
	return math.Pow(uncertainty, e.risk.BetaP)
}

// LU is the liquidity-adjustment factor: (U_ref / (U + U_ref)) ^ alpha_U.
func (e *Engine) LU(U float64) float64 {
	uRef := math.Max(e.risk.URef, 1e-9)
	return math.Pow(uRef/(U+uRef), e.risk.AlphaU)
}

// LambdaStruct combines the probability and liquidity regime factors into
// a single multiplier clamped to [lambda_min, lambda_max].
func (e *Engine) LambdaStruct(p, U float64) float64 {
	a := e.Ap(p)
	l := e.LU(U)
	s := e.risk.WeightA*(a-1.0) + e.risk.WeightL*(l-1.0)
	g := quant.Clip(s/math.Max(e.risk.StructScale, 1e-9), -1.0, 1.0)

	lamMin, lamMax := e.risk.LambdaMin, e.risk.LambdaMax
	var lam float64
	if g > 0 {
		lam = 1.0 + (lamMax-1.0)*g
	} else {
		lam = 1.0 + (1.0-lamMin)*g
	}
	return quant.Clip(lam, lamMin, lamMax)
}

// RecordFill queues a fill for markout evaluation at the two configured
// horizons. side true = BUY (our resting bid got hit), false = SELL.
func (e *Engine) RecordFill(tsMs int64, price float64, isBuy bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.fillsPending = append(e.fillsPending, pendingFill{
		tsMs:  tsMs,
		price: price,
		isBuy: isBuy,
		xFill: quant.Logit(price, logitEps),
	})
	if len(e.fillsPending) > fillsCap {
		e.fillsPending = e.fillsPending[len(e.fillsPending)-fillsCap:]
	}
}

// UpdateMarkouts evaluates any pending fills that have reached either
// markout horizon, folding positive markout into the two toxicity EMAs and
// dropping fills once both horizons are done.
func (e *Engine) UpdateMarkouts(tMs int64, pMid float64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	xNow := quant.Logit(pMid, logitEps)
	h1Ms := int64(e.warmup.MarkoutHorizon1 / time.Millisecond)
	h2Ms := int64(e.warmup.MarkoutHorizon2 / time.Millisecond)

	kept := e.fillsPending[:0:0]
	for _, f := range e.fillsPending {
		sign := -1.0
		if f.isBuy {
			sign = 1.0
		}

		if (tMs-f.tsMs) >= h1Ms && !f.h1Done {
			mo := sign * (xNow - f.xFill)
			pos := math.Max(0.0, mo)
			e.toxEmaPosH1 = ema(e.toxEmaPosH1, pos, float64(e.warmup.TauFast/time.Second), float64(e.warmup.SampleInterval/time.Second))
			f.h1Done = true
		}
		if (tMs-f.tsMs) >= h2Ms && !f.h2Done {
			mo := sign * (xNow - f.xFill)
			pos := math.Max(0.0, mo)
			e.toxEmaPosH2 = ema(e.toxEmaPosH2, pos, float64(e.warmup.TauFast/time.Second), float64(e.warmup.SampleInterval/time.Second))
			f.h2Done = true
		}
		if !(f.h1Done && f.h2Done) {
			kept = append(kept, f)
		}
	}
	e.fillsPending = kept
}

// OnTimeSample folds one periodic (mid, trade-rate) observation into the
// return history and updates the smoothed volatility estimate. Samples
// closer together than the configured sample interval (minus 10ms jitter
// tolerance) are dropped, matching the reference implementation's guard
// against noisy back-to-back ticks.
func (e *Engine) OnTimeSample(tMs int64, pMid, tradeRatePerSec float64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	dtS := float64(e.warmup.SampleInterval / time.Second)
	x := quant.Logit(pMid, logitEps)

	if !e.hasLastSample {
		e.hasLastSample = true
		e.lastSampleTsMs = tMs
		e.lastX = x
		return
	}
	if (tMs - e.lastSampleTsMs) < int64(dtS*1000)-10 {
		return
	}

	r := x - e.lastX
	e.returns = append(e.returns, r)
	if len(e.returns) > returnsCap {
		e.returns = e.returns[len(e.returns)-returnsCap:]
	}
	e.lastSampleTsMs = tMs
	e.lastX = x
	absR := math.Abs(r)

	tauFastS := float64(e.warmup.TauFast / time.Second)
	tauSlowS := float64(e.warmup.TauSlow / time.Second)

	e.emaFastAbs = ema(e.emaFastAbs, absR, tauFastS, dtS)
	e.emaSlowAbs = ema(e.emaSlowAbs, absR, tauSlowS, dtS)
	e.emaFastR = ema(e.emaFastR, r, tauFastS, dtS)
	e.emaFastAbsR = ema(e.emaFastAbsR, absR, tauFastS, dtS)
	e.emaSlowAbsR = ema(e.emaSlowAbsR, absR, tauSlowS, dtS)

	I := quant.Clip(tradeRatePerSec/math.Max(e.rateRef, 1e-9), 1.0, e.risk.ToxicityIMax)
	J := e.emaFastAbs / math.Max(e.emaSlowAbs, 1e-9)
	D := math.Abs(e.emaFastR) / math.Max(e.emaFastAbsR, 1e-9)
	sSigma := math.Max(math.Log(math.Max(J, 1.0)), 0.0) * quant.Clip(D, 0.0, 1.0) * I

	T := e.warmup.MarkoutWeight1*e.toxEmaPosH1 + e.warmup.MarkoutWeight2*e.toxEmaPosH2
	zTox := T / math.Max(e.emaSlowAbsR, 1e-9)

	s := sSigma + e.risk.ToxicityWeight*zTox
	sigmaRaw := 1.0 + e.risk.SigmaWeight*math.Pow(s, e.risk.SigmaExponent)
	sigmaRaw = quant.Clip(sigmaRaw, 1.0, e.risk.SigmaMax)

	tau := float64(e.risk.SigmaTauDown / time.Second)
	if sigmaRaw > e.sigmaSmoothed {
		tau = float64(e.risk.SigmaTauUp / time.Second)
	}
	e.sigmaSmoothed = ema(e.sigmaSmoothed, sigmaRaw, tau, dtS)
}

// Sigma returns the current smoothed volatility multiplier (>= 1.0).
func (e *Engine) Sigma() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sigmaSmoothed
}

// WarmReady reports whether enough return samples have accumulated to
// trust the volatility estimate.
func (e *Engine) WarmReady() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.returns) >= e.warmup.MinReturnSamples
}

// Snapshot returns a consistent view of sigma and the warm-up state.
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return Snapshot{
		Sigma:      e.sigmaSmoothed,
		WarmReady:  len(e.returns) >= e.warmup.MinReturnSamples,
		NumReturns: len(e.returns),
	}
}

// CalibrationSnapshot produces a robust (median/MAD-based) summary of the
// accumulated return history, for persistence at the end of warm-up.
func (e *Engine) CalibrationSnapshot() CalibrationSnapshot {
	e.mu.Lock()
	defer e.mu.Unlock()

	if len(e.returns) == 0 {
		return CalibrationSnapshot{}
	}
	rs := append([]float64(nil), e.returns...)
	sort.Float64s(rs)
	med := rs[len(rs)/2]

	devs := make([]float64, len(rs))
	for i, x := range rs {
		devs[i] = math.Abs(x - med)
	}
	sort.Float64s(devs)
	mad := devs[len(devs)/2]

	return CalibrationSnapshot{
		NumReturns:          len(rs),
		DtSampleSeconds:     float64(e.warmup.SampleInterval / time.Second),
		SigmaBaseLogitPerDt: 1.4826 * mad,
		EmaFastAbs:          e.emaFastAbs,
		EmaSlowAbs:           e.emaSlowAbs,
	}
}
