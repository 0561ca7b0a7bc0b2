package market

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"

	"fintwit-analyzer/internal/logger"
	"fintwit-analyzer/internal/store"
	itrace "fintwit-analyzer/internal/trace"
	"fintwit-analyzer/internal/types"
)

const maxRetries = 3

// Client resolves historical and current quotes through the market
// data server.
type Client struct {
	baseURL string
	limiter *rate.Limiter
	client  *http.Client
}

func NewClient(cfg *store.Config) *Client {
	interval := time.Duration(cfg.Market.MinIntervalMS) * time.Millisecond
	return &Client{
		baseURL: cfg.Market.BaseURL,
		limiter: rate.NewLimiter(rate.Every(interval), 1),
		client:  &http.Client{Timeout: time.Duration(cfg.Market.TimeoutSec) * time.Second},
	}
}

type batchResponse struct {
	Data   []types.PriceResponse `json:"data"`
	Errors []struct {
		Message string `json:"message"`
		Symbol  string `json:"symbol"`
		Type    string `json:"type"`
	} `json:"errors"`
}

// BatchResolve resolves a set of price requests in one round trip,
// retrying transient failures. Duplicate requests for the same
// (symbol, type, trading day) collapse to a single upstream request.
// Per-symbol failures are reported in the batch error list and logged
// here; only resolved prices come back.
func (c *Client) BatchResolve(ctx context.Context, reqs []types.PriceRequest) ([]types.PriceResponse, error) {
	ctx, span := itrace.StartSpan(ctx, "market-batch-resolve")
	defer span.End()

	deduped := dedupeRequests(reqs)
	if len(deduped) == 0 {
		return nil, nil
	}

	body, _ := json.Marshal(map[string]any{"requests": deduped})

	var out batchResponse
	err := c.doRetry(ctx, "batch quotes", func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/quotes/batch", bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	}, &out)
	if err != nil {
		return nil, err
	}

	for _, e := range out.Errors {
		logger.Warn(ctx, "Quote resolution error", "symbol", e.Symbol, "type", e.Type, "message", e.Message)
	}
	logger.Debug(ctx, "Batch quotes resolved", "requested", len(reqs), "deduped", len(deduped), "resolved", len(out.Data))

	return out.Data, nil
}

// Dividends lists cash dividends for a symbol over the given range
// (e.g. "1y", "5y").
func (c *Client) Dividends(ctx context.Context, symbol, rng string) ([]types.Dividend, error) {
	endpoint := fmt.Sprintf("%s/api/dividends?symbol=%s&range=%s",
		c.baseURL, url.QueryEscape(symbol), url.QueryEscape(rng))

	var divs []types.Dividend
	err := c.doRetry(ctx, "dividends "+symbol, func() (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	}, &divs)
	if err != nil {
		return nil, err
	}
	return divs, nil
}

// doRetry runs one request with bounded retries on transport errors
// and 5xx responses. Client errors fail immediately. The successful
// body is decoded into out.
func (c *Client) doRetry(ctx context.Context, op string, build func() (*http.Request, error), out any) error {
	var lastErr error
	for attempt := 1; attempt <= maxRetries; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}

		req, err := build()
		if err != nil {
			return err
		}

		resp, err := c.client.Do(req)
		if err != nil {
			lastErr = err
			logger.Warn(ctx, "Market request failed", "op", op, "attempt", attempt, "error", err.Error())
			c.sleepBackoff(ctx, attempt)
			continue
		}

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			err := json.NewDecoder(resp.Body).Decode(out)
			resp.Body.Close()
			if err != nil {
				return fmt.Errorf("decode %s: %w", op, err)
			}
			return nil
		}
		resp.Body.Close()

		if resp.StatusCode >= 400 && resp.StatusCode < 500 {
			return fmt.Errorf("%s: http %d", op, resp.StatusCode)
		}

		lastErr = fmt.Errorf("%s: http %d", op, resp.StatusCode)
		logger.Warn(ctx, "Market server error", "op", op, "status", resp.StatusCode, "attempt", attempt)
		c.sleepBackoff(ctx, attempt)
	}

	return fmt.Errorf("%s failed after %d attempts: %w", op, maxRetries, lastErr)
}

// sleepBackoff waits attempt-scaled before the next retry.
func (c *Client) sleepBackoff(ctx context.Context, attempt int) {
	if attempt >= maxRetries {
		return
	}
	select {
	case <-time.After(time.Duration(attempt) * time.Second):
	case <-ctx.Done():
	}
}

// dedupeRequests keeps the first request per (symbol, type, trading
// day). Two entry requests inside the same day resolve to the same
// close, so one is enough.
func dedupeRequests(reqs []types.PriceRequest) []types.PriceRequest {
	seen := make(map[string]bool, len(reqs))
	out := make([]types.PriceRequest, 0, len(reqs))
	for _, r := range reqs {
		day := ""
		if r.Timestamp != nil {
			day = r.Timestamp.Format("2006-01-02")
		}
		key := r.Symbol + "|" + string(r.Type) + "|" + day
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, r)
	}
	return out
}
