// binmaker is an automated market maker for a single Polymarket binary
// prediction market, quoting both sides around a logit-space reservation
// price derived from inventory, realized toxicity, and trailing liquidity.
//
// Architecture:
//
//	main.go                  — entry point: loads config, wires the orchestrator, waits for SIGINT/SIGTERM
//	orchestrator/orchestrator.go — wires feeds → book → risk → quoter → reconcile → exchange
//	quote/quoter.go          — builds the bid/ask ladder from the risk engine's reservation price
//	risk/engine.go           — inventory/toxicity/liquidity-aware spread and sizing model
//	book/state.go            — local order book mirror fed by WebSocket snapshots + price changes
//	position/position.go     — supplemental YES/NO position and P&L tracker for telemetry
//	reconcile/reconcile.go   — diffs the desired ladder against live orders into cancel/place actions
//	exchange/client.go       — REST client for the CLOB API (place/cancel orders, fetch book)
//	exchange/auth.go         — L1 (EIP-712) and L2 (HMAC) authentication
//	stream/stream.go         — WebSocket feeds (market data + user fills/orders) with auto-reconnect
//	telemetry/telemetry.go   — JSON snapshot persistence + JSON-lines event log
//	api/                     — read-only dashboard server (REST snapshot + WebSocket push)
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/0xtitan6/binmaker/internal/api"
	"github.com/0xtitan6/binmaker/internal/config"
	"github.com/0xtitan6/binmaker/internal/exchange"
	"github.com/0xtitan6/binmaker/internal/orchestrator"
	"github.com/0xtitan6/binmaker/internal/stream"
	"github.com/0xtitan6/binmaker/internal/telemetry"
)

func main() {
	cfgPath := "configs/config.yaml"
	if p := os.Getenv("MAKER_CONFIG"); p != "" {
		cfgPath = p
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		slog.Error("failed to load config", "error", err, "path", cfgPath)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	var handler slog.Handler
	opts := &slog.HandlerOptions{Level: parseLogLevel(cfg.Logging.Level)}
	if cfg.Logging.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	logger := slog.New(handler)

	auth, err := exchange.NewAuth(*cfg)
	if err != nil {
		logger.Error("failed to create auth", "error", err)
		os.Exit(1)
	}

	var ex exchange.Exchange
	if cfg.DryRun {
		ex = exchange.NewNoopExchange()
		logger.Warn("DRY-RUN MODE — no real orders will be placed")
	} else {
		client := exchange.NewClient(*cfg, auth, logger)
		if !auth.HasL2Credentials() {
			if _, err := client.DeriveAPIKey(context.Background()); err != nil {
				logger.Error("failed to derive L2 API credentials", "error", err)
				os.Exit(1)
			}
		}
		ex = client
	}

	tele, err := telemetry.Open(filepath.Dir(cfg.Telemetry.EventLogPath), cfg.Telemetry.EventLogPath, cfg.Telemetry.CalibrationPath)
	if err != nil {
		logger.Error("failed to open telemetry store", "error", err)
		os.Exit(1)
	}

	mktFeed := stream.NewMarketFeed(cfg.API.WSMarketURL, logger)
	usrFeed := stream.NewUserFeed(cfg.API.WSUserURL, auth, logger)

	orch := orchestrator.New(*cfg, ex, mktFeed, usrFeed, tele, logger)

	var apiServer *api.Server
	if cfg.Dashboard.Enabled {
		apiServer = api.NewServer(cfg.Dashboard, orch, *cfg, logger)
		go func() {
			if err := apiServer.Start(); err != nil {
				logger.Error("dashboard server failed", "error", err)
			}
		}()
		logger.Info("dashboard started", "url", fmt.Sprintf("http://localhost:%d", cfg.Dashboard.Port))
	}

	logger.Info("binmaker started",
		"condition_id", cfg.Market.ConditionID,
		"bankroll_usd", cfg.Risk.BankrollUSD,
		"num_concurrent_plays", cfg.Risk.NumConcurrent,
		"dry_run", cfg.DryRun,
	)

	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig.String())
		cancel()
	}()

	runErr := orch.Run(ctx)

	if apiServer != nil {
		if err := apiServer.Stop(); err != nil {
			logger.Error("failed to stop dashboard", "error", err)
		}
	}

	if runErr != nil && runErr != context.Canceled {
		logger.Error("orchestrator exited with error", "error", runErr)
		os.Exit(1)
	}
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
