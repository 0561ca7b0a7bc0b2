package provider

import (
	"context"
	"time"

	"fintwit-analyzer/internal/perf"
	"fintwit-analyzer/internal/pipeline"
	"fintwit-analyzer/internal/types"
)

// Mock serves deterministic canned data for UI work and tests, so no
// API keys or network are needed.
type Mock struct{}

func (m *Mock) Analyze(ctx context.Context, handle string, months int) (*types.AnalysisResult, error) {
	trades := []types.TradeRecord{
		{
			ID:               "1877001",
			Ticker:           "TSLA",
			Company:          "TESLA",
			TweetText:        "Adding to my TSLA position here, energy storage is still underappreciated",
			DateMentioned:    "2025-01-15",
			TweetURL:         "https://twitter.com/i/web/status/1877001",
			BeginningValue:   242.84,
			LastValue:        273.14,
			StockReturn:      12.48,
			AlphaVsBenchmark: 11.28,
			HitOrMiss:        types.Hit,
		},
		{
			ID:               "1875002",
			Ticker:           "NVDA",
			Company:          "NVIDIA",
			TweetText:        "Going long NVDA into the datacenter buildout",
			DateMentioned:    "2025-01-08",
			TweetURL:         "https://twitter.com/i/web/status/1875002",
			BeginningValue:   512.30,
			LastValue:        554.85,
			StockReturn:      8.31,
			AlphaVsBenchmark: 7.51,
			HitOrMiss:        types.Hit,
		},
		{
			ID:               "1869003",
			Ticker:           "COIN",
			Company:          "COINBASE GLOBAL",
			TweetText:        "Buying COIN, the cycle is turning",
			DateMentioned:    "2024-12-20",
			TweetURL:         "https://twitter.com/i/web/status/1869003",
			BeginningValue:   98.42,
			LastValue:        93.30,
			StockReturn:      -5.20,
			AlphaVsBenchmark: -7.30,
			HitOrMiss:        types.Miss,
		},
	}

	return &types.AnalysisResult{
		Handle:        "@" + pipeline.NormalizeHandle(handle),
		Stats:         perf.Aggregate(trades, perf.PerTradeAlpha),
		RecentTrades:  trades,
		TweetsScanned: 312,
		StockMentions: 9,
		LastUpdated:   time.Date(2025, 8, 1, 12, 0, 0, 0, time.UTC),
		DataSource:    "mock",
	}, nil
}
