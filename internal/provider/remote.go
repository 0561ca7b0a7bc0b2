package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"fintwit-analyzer/internal/logger"
	"fintwit-analyzer/internal/perf"
	"fintwit-analyzer/internal/store"
	"fintwit-analyzer/internal/types"
)

// Remote delegates analysis to a running analysis server. The server
// answers the initial request with a first batch of trades and a
// session id; when more tweets remain, Remote polls the session until
// the background pass finishes.
type Remote struct {
	base         string
	client       *http.Client
	pollInterval time.Duration
	pollTimeout  time.Duration
}

func NewRemote(cfg *store.Config) *Remote {
	return &Remote{
		base:         cfg.Server.RemoteBase,
		client:       &http.Client{Timeout: 60 * time.Second},
		pollInterval: 2 * time.Second,
		pollTimeout:  10 * time.Minute,
	}
}

type analyzeResponse struct {
	SessionID   string              `json:"sessionId"`
	Handle      string              `json:"handle"`
	Months      int                 `json:"months"`
	TotalTweets int                 `json:"totalTweets"`
	StockTweets int                 `json:"stockTweets"`
	Trades      []types.TradeRecord `json:"trades"`
	Stats       types.Stats         `json:"stats"`
	HasMore     bool                `json:"hasMore"`
}

type sessionResponse struct {
	SessionID   string              `json:"sessionId"`
	Handle      string              `json:"handle"`
	Status      string              `json:"status"`
	TotalTweets int                 `json:"totalTweets"`
	StockTweets int                 `json:"stockTweets"`
	Trades      []types.TradeRecord `json:"trades"`
	Stats       types.Stats         `json:"stats"`
	Error       string              `json:"error"`
}

func (r *Remote) Analyze(ctx context.Context, handle string, months int) (*types.AnalysisResult, error) {
	endpoint := fmt.Sprintf("%s/api/analyze?handle=%s&months=%d",
		r.base, url.QueryEscape(handle), months)

	var first analyzeResponse
	if err := r.getJSON(ctx, endpoint, &first); err != nil {
		return nil, fmt.Errorf("remote analyze: %w", err)
	}

	if !first.HasMore {
		return r.toResult(first.Handle, first.Stats, first.Trades, first.TotalTweets, first.StockTweets), nil
	}

	logger.Info(ctx, "Remote analysis continuing in background, polling session",
		"session_id", first.SessionID, "handle", handle)

	deadline := time.Now().Add(r.pollTimeout)
	for time.Now().Before(deadline) {
		select {
		case <-time.After(r.pollInterval):
		case <-ctx.Done():
			return nil, ctx.Err()
		}

		var s sessionResponse
		sessEndpoint := fmt.Sprintf("%s/api/analyze/results/%s", r.base, first.SessionID)
		if err := r.getJSON(ctx, sessEndpoint, &s); err != nil {
			return nil, fmt.Errorf("remote session poll: %w", err)
		}

		switch s.Status {
		case "complete":
			return r.toResult(s.Handle, s.Stats, s.Trades, s.TotalTweets, s.StockTweets), nil
		case "error":
			return nil, fmt.Errorf("remote analysis failed: %s", s.Error)
		}
	}

	return nil, fmt.Errorf("remote analysis timed out after %s", r.pollTimeout)
}

func (r *Remote) toResult(handle string, stats types.Stats, trades []types.TradeRecord, total, stock int) *types.AnalysisResult {
	// Older servers omit stats on the session endpoint; recompute.
	if stats.TotalTrades == 0 && len(trades) > 0 {
		stats = perf.Aggregate(trades, perf.PerTradeAlpha)
	}
	return &types.AnalysisResult{
		Handle:        handle,
		Stats:         stats,
		RecentTrades:  trades,
		TweetsScanned: total,
		StockMentions: stock,
		LastUpdated:   time.Now(),
		DataSource:    "remote",
	}
}

func (r *Remote) getJSON(ctx context.Context, endpoint string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("http %d from %s", resp.StatusCode, endpoint)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
