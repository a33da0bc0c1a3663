// Package orchestrator is the central coordinator of the market-making bot.
//
// It wires together all subsystems for the single preconfigured market this
// process trades:
//
//  1. Two WebSocket feeds run: market-data events are dispatched into the
//     local book mirror; the user feed is connected and subscribed, but its
//     trade/order events are not consumed here.
//  2. A warm-up phase samples the book until the risk engine has enough
//     return history to trust its volatility estimate, or until the
//     configured warm-up ceiling elapses.
//  3. After warm-up, a quote loop periodically computes the desired ladder
//     and reconciles it against the exchange's live open orders.
//  4. Also after warm-up, a fill poller pulls executions from the exchange,
//     feeding both the position tracker and the risk engine's
//     markout/toxicity model.
//
// Lifecycle: New() → Run(ctx) → blocks until ctx is cancelled → shutdown.
package orchestrator

import (
	"context"
	"log/slog"
	"math"
	"strconv"
	"sync"
	"time"

	"github.com/0xtitan6/binmaker/internal/api"
	"github.com/0xtitan6/binmaker/internal/book"
	"github.com/0xtitan6/binmaker/internal/config"
	"github.com/0xtitan6/binmaker/internal/exchange"
	"github.com/0xtitan6/binmaker/internal/position"
	"github.com/0xtitan6/binmaker/internal/quote"
	"github.com/0xtitan6/binmaker/internal/reconcile"
	"github.com/0xtitan6/binmaker/internal/risk"
	"github.com/0xtitan6/binmaker/internal/stream"
	"github.com/0xtitan6/binmaker/internal/telemetry"
	"github.com/0xtitan6/binmaker/pkg/types"
)

const (
	liquidityWindow    = 6 * time.Hour // trailing window for the U liquidity proxy
	fillPollInterval   = 2 * time.Second
	shutdownCancelWait = 10 * time.Second
)

// Orchestrator owns the lifecycle of every goroutine trading the
// preconfigured market and is the single place that sees both the Exchange
// port and every internal subsystem.
type Orchestrator struct {
	cfg    config.Config
	ex     exchange.Exchange
	mktFeed *stream.Feed
	usrFeed *stream.Feed

	book  *book.State
	risk  *risk.Engine
	pos   *position.Tracker
	tele  *telemetry.Store
	logger *slog.Logger

	lastFillTsMs int64

	mu          sync.Mutex
	lastQuote   quote.Quote
	lastQuoteAt time.Time

	dashboardEvents chan api.DashboardEvent
}

// New wires an orchestrator for the market named in cfg.Market, using ex as
// the exchange port (a live client or a dry-run no-op).
func New(cfg config.Config, ex exchange.Exchange, mktFeed, usrFeed *stream.Feed, tele *telemetry.Store, logger *slog.Logger) *Orchestrator {
	riskEngine := risk.New(cfg.Risk, cfg.Warmup, cfg.Quote.RateRefPerSec, cfg.Market.StartTimeMs, cfg.Market.ResolveTimeMs)
	bookState := book.New(cfg.Market.AssetIDYes, 0.01)
	posTracker := position.New(cfg.Market.AssetIDNo)

	var dashEvents chan api.DashboardEvent
	if cfg.Dashboard.Enabled {
		dashEvents = make(chan api.DashboardEvent, 100)
	}

	return &Orchestrator{
		cfg:             cfg,
		ex:              ex,
		mktFeed:         mktFeed,
		usrFeed:         usrFeed,
		book:            bookState,
		risk:            riskEngine,
		pos:             posTracker,
		tele:            tele,
		logger:          logger.With("component", "orchestrator"),
		dashboardEvents: dashEvents,
	}
}

// Run starts every background goroutine and blocks until ctx is cancelled,
// then tears everything down: cancels all resting orders as a safety net,
// persists the final position, and waits for every goroutine.
func (o *Orchestrator) Run(ctx context.Context) error {
	if pos, err := o.tele.LoadPosition(); err != nil {
		o.logger.Warn("failed to load persisted position", "error", err)
	} else {
		o.pos.SetPosition(pos.YesQty, pos.NoQty)
	}

	if err := o.mktFeed.Subscribe(ctx, []string{o.cfg.Market.AssetIDYes, o.cfg.Market.AssetIDNo}); err != nil {
		return err
	}
	if err := o.usrFeed.Subscribe(ctx, []string{o.cfg.Market.ConditionID}); err != nil {
		return err
	}

	var wg sync.WaitGroup
	runGoroutine := func(fn func(context.Context)) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			fn(ctx)
		}()
	}

	runGoroutine(func(ctx context.Context) {
		if err := o.mktFeed.Run(ctx); err != nil && ctx.Err() == nil {
			o.logger.Error("market feed error", "error", err)
		}
	})
	runGoroutine(func(ctx context.Context) {
		if err := o.usrFeed.Run(ctx); err != nil && ctx.Err() == nil {
			o.logger.Error("user feed error", "error", err)
		}
	})
	runGoroutine(o.dispatchMarketEvents)

	o.warmUp(ctx)

	runGoroutine(o.runFillPoller)
	runGoroutine(o.runQuoteLoop)

	<-ctx.Done()
	o.shutdown()
	wg.Wait()

	o.mktFeed.Close()
	o.usrFeed.Close()
	return ctx.Err()
}

// warmUp samples the book on the configured interval until the risk engine
// has enough return history or the warm-up ceiling elapses, logging a
// calibration verdict either way.
func (o *Orchestrator) warmUp(ctx context.Context) {
	deadline := time.Now().Add(o.cfg.Warmup.MaxWarmup)
	ticker := time.NewTicker(o.cfg.Warmup.SampleInterval)
	defer ticker.Stop()

	for {
		if o.risk.WarmReady() || time.Now().After(deadline) {
			break
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			o.sampleOnce()
		}
	}

	cal := o.risk.CalibrationSnapshot()
	if err := o.tele.SaveCalibration(cal); err != nil {
		o.logger.Warn("failed to persist calibration snapshot", "error", err)
	}
	o.logger.Info("calibration_complete",
		"n_returns", cal.NumReturns,
		"sigma_base_logit_per_dt", cal.SigmaBaseLogitPerDt,
		"verdict", calibrationVerdict(cal.SigmaBaseLogitPerDt),
	)
}

// calibrationVerdict mirrors the original warm-up phase's human-readable
// volatility read: a quick low/moderate/high label an operator can act on
// without parsing the raw sigma figure.
func calibrationVerdict(sigmaBasePerDt float64) string {
	switch {
	case sigmaBasePerDt < 0.02:
		return "low"
	case sigmaBasePerDt < 0.08:
		return "moderate"
	default:
		return "high"
	}
}

func (o *Orchestrator) sampleOnce() {
	snap := o.book.Snapshot()
	rate := o.book.TradeRatePerSec(o.cfg.Warmup.SampleInterval)
	o.risk.OnTimeSample(nowMs(), snap.Mid, rate)
	o.risk.UpdateMarkouts(nowMs(), snap.Mid)
}

// runQuoteLoop periodically recomputes the desired ladder and reconciles it
// against the exchange's live open orders.
func (o *Orchestrator) runQuoteLoop(ctx context.Context) {
	ticker := time.NewTicker(o.cfg.Quote.RefreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			o.sampleOnce()
			o.requote(ctx)
		}
	}
}

func (o *Orchestrator) requote(ctx context.Context) {
	snap := o.book.Snapshot()
	if snap.Mid <= 0 || snap.Mid >= 1 {
		return
	}

	tMs := nowMs()
	bal, err := o.ex.GetBalances(ctx)
	if err != nil {
		o.logger.Warn("get balances failed, skipping requote", "error", err)
		return
	}
	qYes := bal.YES - bal.NO

	count := o.book.TradeCountInWindow(liquidityWindow)
	U := math.Sqrt(float64(count))

	q := quote.Compute(o.cfg.Quote, o.risk, o.cfg.Market.AssetIDYes, qYes, snap.Mid, snap.TickSize, U, o.book.TradeRatePerSec(time.Minute), tMs)

	o.mu.Lock()
	o.lastQuote = q
	o.lastQuoteAt = time.Now()
	o.mu.Unlock()

	o.pos.UpdateMarkToMarket(snap.Mid)

	live, err := o.ex.ListOpenOrders(ctx)
	if err != nil {
		o.logger.Warn("list open orders failed, skipping reconcile", "error", err)
		return
	}
	existing := liveToOpenOrders(live)

	var desired []types.DesiredOrder
	desired = append(desired, q.Bids...)
	desired = append(desired, q.Asks...)

	plan := reconcile.Reconcile(desired, existing, reconcilePriceOf, reconcileSizeOf)

	for _, cancel := range plan.Cancels {
		if err := o.ex.CancelOrder(ctx, cancel.OrderID); err != nil {
			o.logger.Warn("cancel order failed", "order_id", cancel.OrderID, "error", err)
		}
	}
	for _, place := range plan.Places {
		o.placeOrder(ctx, place.Order)
	}

	skippedReplaces := applyReplaces(ctx, plan.Replaces, o.ex.CancelOrder, func(ctx context.Context, order types.DesiredOrder) {
		o.placeOrder(ctx, order)
	}, o.logger)

	o.tele.LogEvent("quote_cycle", map[string]interface{}{
		"mid":               snap.Mid,
		"reservation_logit": q.Metrics.ReservationLogit,
		"sigma":             q.Metrics.Sigma,
		"gamma":             q.Metrics.Gamma,
		"lambda":            q.Metrics.Lambda,
		"q_hat":             q.Metrics.QHat,
		"num_bids":          q.Metrics.NumBids,
		"num_asks":          q.Metrics.NumAsks,
		"cancels":           len(plan.Cancels),
		"places":            len(plan.Places),
		"replaces":          len(plan.Replaces),
		"replaces_skipped":  skippedReplaces,
	})
	o.emitQuoteEvent(q, snap.Mid)
}

func (o *Orchestrator) placeOrder(ctx context.Context, order types.DesiredOrder) {
	if _, err := o.ex.PlaceLimitOrder(ctx, order.AssetID, string(order.Side), order.Price, order.Size); err != nil {
		o.logger.Warn("place order failed", "side", order.Side, "price", order.Price, "error", err)
	}
}

// applyReplaces executes each resize's cancel-then-place pair, skipping the
// place whenever its cancel fails: doubling a level's exposure is worse
// than a resting order briefly drifting stale. Kept as a free function of
// cancel/place funcs so it's testable without a live Exchange.
func applyReplaces(
	ctx context.Context,
	replaces []types.Action,
	cancel func(ctx context.Context, orderID string) error,
	place func(ctx context.Context, order types.DesiredOrder),
	logger *slog.Logger,
) (skipped int) {
	for _, replace := range replaces {
		if err := cancel(ctx, replace.OrderID); err != nil {
			logger.Warn("replace cancel failed, skipping paired place", "order_id", replace.OrderID, "error", err)
			skipped++
			continue
		}
		place(ctx, replace.Order)
	}
	return skipped
}

func reconcilePriceOf(o types.OpenOrder) float64 {
	v, _ := strconv.ParseFloat(o.Price, 64)
	return v
}

func reconcileSizeOf(o types.OpenOrder) float64 {
	orig, _ := strconv.ParseFloat(o.OriginalSize, 64)
	matched, _ := strconv.ParseFloat(o.SizeMatched, 64)
	return orig - matched
}

// liveToOpenOrders adapts the exchange port's already-parsed LiveOrder shape
// to the string-encoded types.OpenOrder that reconcile operates on.
// strconv.FormatFloat with precision -1 round-trips the price exactly
// through reconcilePriceOf; the remaining size is re-derived as
// Size-(Size-SizeRemaining), which can differ from SizeRemaining in the
// last float64 bits.
func liveToOpenOrders(live []exchange.LiveOrder) []types.OpenOrder {
	out := make([]types.OpenOrder, len(live))
	for i, l := range live {
		out[i] = types.OpenOrder{
			ID:           l.OrderID,
			Status:       "live",
			AssetID:      l.AssetID,
			Side:         l.Side,
			Price:        strconv.FormatFloat(l.Price, 'f', -1, 64),
			OriginalSize: strconv.FormatFloat(l.Size, 'f', -1, 64),
			SizeMatched:  strconv.FormatFloat(l.Size-l.SizeRemaining, 'f', -1, 64),
		}
	}
	return out
}

// runFillPoller pulls new executions from the exchange on a fixed interval,
// feeding both the position tracker and the risk engine's markout model.
func (o *Orchestrator) runFillPoller(ctx context.Context) {
	ticker := time.NewTicker(fillPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			o.pollFills(ctx)
		}
	}
}

func (o *Orchestrator) pollFills(ctx context.Context) {
	reports, err := o.ex.GetFills(ctx, o.lastFillTsMs)
	if err != nil {
		o.logger.Warn("get fills failed", "error", err)
		return
	}
	for _, r := range reports {
		fill := types.Fill{
			ID:        r.OrderID,
			AssetID:   r.AssetID,
			Side:      types.Side(r.Side),
			Price:     r.Price,
			Size:      r.Size,
			Timestamp: time.UnixMilli(r.TsMs),
		}
		o.pos.OnFill(fill)
		o.risk.RecordFill(r.TsMs, r.Price, r.Side == string(types.BUY))
		if r.TsMs > o.lastFillTsMs {
			o.lastFillTsMs = r.TsMs
		}

		snap := o.pos.Snapshot()
		if err := o.tele.SavePosition(snap); err != nil {
			o.logger.Warn("failed to persist position", "error", err)
		}
		o.tele.LogEvent("fill", map[string]interface{}{
			"order_id": r.OrderID,
			"side":     r.Side,
			"price":    r.Price,
			"size":     r.Size,
		})
		o.emitFillEvent(fill, snap)
	}
}

// dispatchMarketEvents routes market-channel WS events into the book and
// mirrors top-of-book changes out to the dashboard.
func (o *Orchestrator) dispatchMarketEvents(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case evt := <-o.mktFeed.BookEvents():
			o.book.ApplyBook(evt)
			o.emitBookUpdateEvent()
		case evt := <-o.mktFeed.PriceChangeEvents():
			o.book.ApplyPriceChange(evt)
			o.emitBookUpdateEvent()
		case evt := <-o.mktFeed.TickSizeEvents():
			o.book.ApplyTickSizeChange(evt)
		case evt := <-o.mktFeed.LastTradeEvents():
			o.book.ApplyLastTradePrice(evt)
		}
	}
}

func (o *Orchestrator) emitBookUpdateEvent() {
	snap := o.book.Snapshot()
	o.emitDashboardEvent(api.DashboardEvent{
		Type: "book",
		Data: api.BookUpdateEvent{
			BestBid:  snap.BestBid,
			BestAsk:  snap.BestAsk,
			MidPrice: snap.Mid,
		},
	})
}

// shutdown cancels every resting order as a safety net and persists final
// state. Called once, after the run context is cancelled.
func (o *Orchestrator) shutdown() {
	o.logger.Info("shutting down, cancelling resting orders")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownCancelWait)
	defer cancel()

	orders, err := o.ex.ListOpenOrders(ctx)
	if err != nil {
		o.logger.Error("failed to list open orders on shutdown", "error", err)
	}
	for _, order := range orders {
		if err := o.ex.CancelOrder(ctx, order.OrderID); err != nil {
			o.logger.Error("failed to cancel order on shutdown", "order_id", order.OrderID, "error", err)
		}
	}

	if err := o.tele.SavePosition(o.pos.Snapshot()); err != nil {
		o.logger.Error("failed to save final position", "error", err)
	}
	if err := o.tele.Close(); err != nil {
		o.logger.Error("failed to close telemetry store", "error", err)
	}

	o.logger.Info("shutdown complete")
}

func nowMs() int64 {
	return time.Now().UnixMilli()
}

// emitFillEvent and emitQuoteEvent push dashboard updates (non-blocking; a
// slow/absent dashboard consumer never backs up the trading loop).
func (o *Orchestrator) emitFillEvent(f types.Fill, pos position.Snapshot) {
	o.emitDashboardEvent(api.DashboardEvent{
		Type: "fill",
		Data: api.NewFillEvent(f, toPositionStatus(pos)),
	})
}

func (o *Orchestrator) emitQuoteEvent(q quote.Quote, mid float64) {
	evt := api.QuoteEvent{ReservationPrice: q.Metrics.ReservationLogit, MidPrice: mid}
	if len(q.Bids) > 0 {
		evt.BidPrice, evt.BidSize = q.Bids[0].Price, q.Bids[0].Size
	}
	if len(q.Asks) > 0 {
		evt.AskPrice, evt.AskSize = q.Asks[0].Price, q.Asks[0].Size
	}
	o.emitDashboardEvent(api.DashboardEvent{Type: "quote", Data: evt})
}

func (o *Orchestrator) emitDashboardEvent(evt api.DashboardEvent) {
	if o.dashboardEvents == nil {
		return
	}
	evt.Timestamp = time.Now()
	select {
	case o.dashboardEvents <- evt:
	default:
	}
}

// ———————————————————————————————————————————————————————————————————————
// api.StatusProvider implementation — the dashboard's read-only view.
// ———————————————————————————————————————————————————————————————————————

func (o *Orchestrator) DashboardEvents() <-chan api.DashboardEvent {
	return o.dashboardEvents
}

func (o *Orchestrator) BookStatus() api.BookStatus {
	snap := o.book.Snapshot()
	return api.BookStatus{
		BestBid:     snap.BestBid,
		BestAsk:     snap.BestAsk,
		MidPrice:    snap.Mid,
		TickSize:    snap.TickSize,
		LastUpdated: snap.LastBookAt,
		IsStale:     o.book.IsStale(o.cfg.Quote.RefreshInterval * 5),
	}
}

func (o *Orchestrator) PositionStatus() api.PositionStatus {
	return toPositionStatus(o.pos.Snapshot())
}

func toPositionStatus(p position.Snapshot) api.PositionStatus {
	return api.PositionStatus{
		YesQty:        p.YesQty,
		NoQty:         p.NoQty,
		AvgEntryYes:   p.AvgEntryYes,
		AvgEntryNo:    p.AvgEntryNo,
		RealizedPnL:   p.RealizedPnL,
		UnrealizedPnL: p.UnrealizedPnL,
		Skew:          p.YesQty - p.NoQty,
		LastUpdated:   p.LastUpdated,
	}
}

func (o *Orchestrator) QuoteStatus() api.QuoteStatus {
	o.mu.Lock()
	defer o.mu.Unlock()
	q := o.lastQuote
	status := api.QuoteStatus{
		ReservationPrice: q.Metrics.ReservationLogit,
		HalfSpread:       q.Metrics.DeltaLogit,
		GeneratedAt:      o.lastQuoteAt,
	}
	if len(q.Bids) > 0 {
		status.BidPrice, status.BidSize = q.Bids[0].Price, q.Bids[0].Size
	}
	if len(q.Asks) > 0 {
		status.AskPrice, status.AskSize = q.Asks[0].Price, q.Asks[0].Size
	}
	return status
}

func (o *Orchestrator) RiskStatus() api.RiskStatus {
	snap := o.risk.Snapshot()
	bookSnap := o.book.Snapshot()
	return api.RiskStatus{
		Sigma:      snap.Sigma,
		WarmReady:  snap.WarmReady,
		NumReturns: snap.NumReturns,
		QHat:       o.risk.QHat(o.pos.NetDelta(), bookSnap.Mid, nowMs()),
		Gamma:      o.risk.Gamma(o.risk.QHat(o.pos.NetDelta(), bookSnap.Mid, nowMs())),
	}
}

var _ api.StatusProvider = (*Orchestrator)(nil)
