// Package exchange implements the Exchange port and the Polymarket CLOB REST
// client (the WebSocket feeds live in package stream).
//
// The REST client (Client) talks to the Polymarket CLOB API for order management:
//   - GetOrderBook:       GET  /book               — fetch L2 book for a token
//   - PostOrders:         POST /orders              — batch-place up to 15 signed orders
//   - CancelOrders:       DELETE /orders            — cancel specific orders by ID
//   - CancelAll:          DELETE /cancel-all         — emergency cancel everything
//   - CancelMarketOrders: DELETE /cancel-market-orders — cancel one market's orders
//   - DeriveAPIKey:       GET  /auth/derive-api-key — bootstrap L2 creds from L1 wallet
//
// Order posts, cancels and book reads wait on per-category TokenBuckets; other
// calls are not rate-limited. Requests are retried on transport errors and 5xx
// responses. Requests carry L2 HMAC headers, except book reads (no auth) and
// DeriveAPIKey (L1 headers).
package exchange

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/0xtitan6/binmaker/internal/config"
	"github.com/0xtitan6/binmaker/pkg/types"
)

// Client is the Polymarket CLOB REST API client.
// It wraps a resty HTTP client with rate limiting, retry, and auth.
type Client struct {
	http   *resty.Client  // HTTP client with retry + base URL
	auth   *Auth          // L1/L2 auth provider for request signing
	rl     *RateLimiter   // per-endpoint-category rate limiting
	dryRun bool           // when true, mutating methods return fake success without HTTP calls
	logger *slog.Logger
}

// NewClient creates a REST client with rate limiting and retry.
func NewClient(cfg config.Config, auth *Auth, logger *slog.Logger) *Client {
	httpClient := resty.New().
		SetBaseURL(cfg.API.CLOBBaseURL).
		SetTimeout(10 * time.Second).
		SetRetryCount(3).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(5 * time.Second).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			if err != nil {
				return true
			}
			return r.StatusCode() >= 500
		}).
		SetHeader("Content-Type", "application/json")

	return &Client{
		http:   httpClient,
		auth:   auth,
		rl:     NewRateLimiter(),
		dryRun: cfg.DryRun,
		logger: logger,
	}
}

// GetOrderBook fetches the order book for a single token.
func (c *Client) GetOrderBook(ctx context.Context, tokenID string) (*types.BookResponse, error) {
	if err := c.rl.Book.Wait(ctx); err != nil {
		return nil, err
	}

	var result types.BookResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("token_id", tokenID).
		SetResult(&result).
		Get("/book")
	if err != nil {
		return nil, fmt.Errorf("get book: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("get book: status %d: %s", resp.StatusCode(), resp.String())
	}
	return &result, nil
}

// buildOrderPayload converts a high-level UserOrder into the on-chain
// SignedOrder + metadata the REST API expects. It converts human-readable
// price/size to big.Int maker/taker amounts at the market's tick precision,
// sets the maker to the funder wallet (proxy), the signer to the EOA,
// and the taker to the zero address (open order, anyone can fill).
func (c *Client) buildOrderPayload(order types.UserOrder) types.OrderPayload {
	tickSize := order.TickSize
	if tickSize == "" {
		tickSize = types.Tick001
	}
	makerAmt, takerAmt := PriceToAmounts(order.Price, order.Size, order.Side, tickSize)

	return types.OrderPayload{
		Order: types.SignedOrder{
			Maker:         c.auth.FunderAddress().Hex(),
			Signer:        c.auth.Address().Hex(),
			Taker:         "0x0000000000000000000000000000000000000000",
			TokenID:       order.TokenID,
			MakerAmount:   makerAmt,
			TakerAmount:   takerAmt,
			Side:          order.Side,
			Expiration:    fmt.Sprintf("%d", order.Expiration),
			Nonce:         "0",
			FeeRateBps:    fmt.Sprintf("%d", order.FeeRateBps),
			SignatureType: c.auth.sigType,
		},
		Owner:     c.auth.creds.ApiKey,
		OrderType: order.OrderType,
	}
}

// PostOrders places up to 15 orders in a batch.
func (c *Client) PostOrders(ctx context.Context, orders []types.UserOrder, negRisk bool) ([]types.OrderResponse, error) {
	if len(orders) == 0 {
		return nil, nil
	}
	if len(orders) > 15 {
		return nil, fmt.Errorf("batch limit is 15 orders, got %d", len(orders))
	}
	if c.dryRun {
		c.logger.Info("DRY-RUN: would post orders", "count", len(orders))
		results := make([]types.OrderResponse, len(orders))
		for i := range orders {
			results[i] = types.OrderResponse{Success: true, OrderID: fmt.Sprintf("dry-run-%d", i), Status: "live"}
		}
		return results, nil
	}
	if err := c.rl.Order.Wait(ctx); err != nil {
		return nil, err
	}

	payloads := make([]types.OrderPayload, len(orders))
	for i, order := range orders {
		payloads[i] = c.buildOrderPayload(order)
	}

	body, err := json.Marshal(payloads)
	if err != nil {
		return nil, fmt.Errorf("marshal orders: %w", err)
	}
	headers, err := c.auth.L2Headers("POST", "/orders", string(body))
	if err != nil {
		return nil, fmt.Errorf("l2 headers: %w", err)
	}

	var results []types.OrderResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeaders(headers).
		SetBody(payloads).
		SetResult(&results).
		Post("/orders")
	if err != nil {
		return nil, fmt.Errorf("post orders: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("post orders: status %d: %s", resp.StatusCode(), resp.String())
	}

	return results, nil
}

// CancelOrders cancels multiple orders by ID.
func (c *Client) CancelOrders(ctx context.Context, orderIDs []string) (*types.CancelResponse, error) {
	if len(orderIDs) == 0 {
		return &types.CancelResponse{}, nil
	}
	if c.dryRun {
		c.logger.Info("DRY-RUN: would cancel orders", "count", len(orderIDs))
		return &types.CancelResponse{Canceled: orderIDs}, nil
	}
	if err := c.rl.Cancel.Wait(ctx); err != nil {
		return nil, err
	}

	payload := struct {
		OrderIDs []string `json:"orderIDs"`
	}{OrderIDs: orderIDs}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal cancel request: %w", err)
	}
	headers, err := c.auth.L2Headers("DELETE", "/orders", string(body))
	if err != nil {
		return nil, fmt.Errorf("l2 headers: %w", err)
	}

	var result types.CancelResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeaders(headers).
		SetBody(json.RawMessage(body)).
		SetResult(&result).
		Delete("/orders")
	if err != nil {
		return nil, fmt.Errorf("cancel orders: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("cancel orders: status %d: %s", resp.StatusCode(), resp.String())
	}

	c.logger.Info("orders cancelled", "count", len(result.Canceled))
	return &result, nil
}

// CancelAll cancels every open order across all markets.
func (c *Client) CancelAll(ctx context.Context) (*types.CancelResponse, error) {
	if c.dryRun {
		c.logger.Info("DRY-RUN: would cancel all orders")
		return &types.CancelResponse{}, nil
	}
	if err := c.rl.Cancel.Wait(ctx); err != nil {
		return nil, err
	}

	headers, err := c.auth.L2Headers("DELETE", "/cancel-all", "")
	if err != nil {
		return nil, fmt.Errorf("l2 headers: %w", err)
	}

	var result types.CancelResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeaders(headers).
		SetResult(&result).
		Delete("/cancel-all")
	if err != nil {
		return nil, fmt.Errorf("cancel all: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("cancel all: status %d: %s", resp.StatusCode(), resp.String())
	}

	c.logger.Warn("all orders cancelled", "count", len(result.Canceled))
	return &result, nil
}

// CancelMarketOrders cancels all orders for a specific market.
func (c *Client) CancelMarketOrders(ctx context.Context, conditionID string) (*types.CancelResponse, error) {
	if c.dryRun {
		c.logger.Info("DRY-RUN: would cancel market orders", "market", conditionID)
		return &types.CancelResponse{}, nil
	}
	if err := c.rl.Cancel.Wait(ctx); err != nil {
		return nil, err
	}

	body := fmt.Sprintf(`{"market":"%s"}`, conditionID)
	headers, err := c.auth.L2Headers("DELETE", "/cancel-market-orders", body)
	if err != nil {
		return nil, fmt.Errorf("l2 headers: %w", err)
	}

	var result types.CancelResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeaders(headers).
		SetBody(json.RawMessage(body)).
		SetResult(&result).
		Delete("/cancel-market-orders")
	if err != nil {
		return nil, fmt.Errorf("cancel market orders: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("cancel market orders: status %d: %s", resp.StatusCode(), resp.String())
	}
	return &result, nil
}

// DeriveAPIKey derives L2 API credentials via L1 authentication.
func (c *Client) DeriveAPIKey(ctx context.Context) (*Credentials, error) {
	headers, err := c.auth.L1Headers(0)
	if err != nil {
		return nil, fmt.Errorf("l1 headers: %w", err)
	}

	var result Credentials
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeaders(headers).
		SetResult(&result).
		Get("/auth/derive-api-key")
	if err != nil {
		return nil, fmt.Errorf("derive api key: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("derive api key: status %d: %s", resp.StatusCode(), resp.String())
	}

	c.auth.SetCredentials(result)
	c.logger.Info("API key derived", "api_key", result.ApiKey)
	return &result, nil
}

// GetBalances fetches USDC and YES/NO token balances for the signing
// wallet. Implements the Exchange port.
func (c *Client) GetBalances(ctx context.Context) (Balances, error) {
	if c.dryRun {
		return Balances{}, nil
	}
	headers, err := c.auth.L2Headers("GET", "/balances", "")
	if err != nil {
		return Balances{}, fmt.Errorf("l2 headers: %w", err)
	}

	var result struct {
		USDC string `json:"usdc"`
		YES  string `json:"yes"`
		NO   string `json:"no"`
	}
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeaders(headers).
		SetResult(&result).
		Get("/balances")
	if err != nil {
		return Balances{}, fmt.Errorf("get balances: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return Balances{}, fmt.Errorf("get balances: status %d: %s", resp.StatusCode(), resp.String())
	}

	return Balances{
		USDC: parseAmount(result.USDC),
		YES:  parseAmount(result.YES),
		NO:   parseAmount(result.NO),
	}, nil
}

// ListOpenOrders fetches every resting order for the signing wallet; no
// market or asset filter is applied. Implements the Exchange port.
func (c *Client) ListOpenOrders(ctx context.Context) ([]LiveOrder, error) {
	headers, err := c.auth.L2Headers("GET", "/orders", "")
	if err != nil {
		return nil, fmt.Errorf("l2 headers: %w", err)
	}

	var raw []types.OpenOrder
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeaders(headers).
		SetResult(&raw).
		Get("/orders")
	if err != nil {
		return nil, fmt.Errorf("list open orders: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("list open orders: status %d: %s", resp.StatusCode(), resp.String())
	}

	out := make([]LiveOrder, 0, len(raw))
	for _, o := range raw {
		orig := parseAmount(o.OriginalSize)
		matched := parseAmount(o.SizeMatched)
		out = append(out, LiveOrder{
			OrderID:       o.ID,
			Side:          o.Side,
			AssetID:       o.AssetID,
			Price:         parseAmount(o.Price),
			Size:          orig,
			SizeRemaining: orig - matched,
		})
	}
	return out, nil
}

// PlaceLimitOrder signs and places a single GTC limit order, returning the
// venue-assigned order ID. Implements the Exchange port.
func (c *Client) PlaceLimitOrder(ctx context.Context, assetID, side string, price, size float64) (string, error) {
	results, err := c.PostOrders(ctx, []types.UserOrder{{
		TokenID:   assetID,
		Price:     price,
		Size:      size,
		Side:      types.Side(side),
		OrderType: types.OrderTypeGTC,
		TickSize:  types.Tick001,
	}}, false)
	if err != nil {
		return "", err
	}
	if len(results) == 0 || !results[0].Success {
		if len(results) > 0 {
			return "", fmt.Errorf("order rejected: %s", results[0].ErrorMsg)
		}
		return "", fmt.Errorf("order rejected: empty response")
	}
	return results[0].OrderID, nil
}

// CancelOrder cancels a single order by ID. Implements the Exchange port.
func (c *Client) CancelOrder(ctx context.Context, orderID string) error {
	_, err := c.CancelOrders(ctx, []string{orderID})
	return err
}

// GetFills returns fills strictly newer than sinceTsMs, newest-aware
// callers are expected to track the high-water mark themselves and poll
// again. The venue caps a single page at 20 entries (§6 of the external
// interfaces note); callers relying on this for completeness during fast
// bursts should prefer a streaming fills channel if the venue exposes one.
func (c *Client) GetFills(ctx context.Context, sinceTsMs int64) ([]FillReport, error) {
	headers, err := c.auth.L2Headers("GET", "/data/trades", "")
	if err != nil {
		return nil, fmt.Errorf("l2 headers: %w", err)
	}

	var raw []struct {
		TsMs    int64  `json:"ts_ms"`
		Side    string `json:"side"`
		AssetID string `json:"asset_id"`
		Price   string `json:"price"`
		Size    string `json:"size"`
		OrderID string `json:"order_id"`
	}
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeaders(headers).
		SetQueryParam("since_ts_ms", fmt.Sprintf("%d", sinceTsMs)).
		SetResult(&raw).
		Get("/data/trades")
	if err != nil {
		return nil, fmt.Errorf("get fills: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("get fills: status %d: %s", resp.StatusCode(), resp.String())
	}

	out := make([]FillReport, 0, len(raw))
	for _, f := range raw {
		if f.TsMs <= sinceTsMs {
			continue
		}
		out = append(out, FillReport{
			TsMs:    f.TsMs,
			Side:    f.Side,
			AssetID: f.AssetID,
			Price:   parseAmount(f.Price),
			Size:    parseAmount(f.Size),
			OrderID: f.OrderID,
		})
	}
	return out, nil
}

func parseAmount(s string) float64 {
	v, _ := strconv.ParseFloat(s, 64)
	return v
}

var _ Exchange = (*Client)(nil)
