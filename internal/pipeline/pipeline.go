package pipeline

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"fintwit-analyzer/internal/cache"
	"fintwit-analyzer/internal/logger"
	"fintwit-analyzer/internal/mention"
	"fintwit-analyzer/internal/metrics"
	"fintwit-analyzer/internal/perf"
	"fintwit-analyzer/internal/sentiment"
	"fintwit-analyzer/internal/store"
	itrace "fintwit-analyzer/internal/trace"
	"fintwit-analyzer/internal/types"
)

// Stage labels the phase an analysis is in, for session reporting and
// log correlation.
type Stage string

const (
	StageFetching    Stage = "FETCHING"
	StageFiltering   Stage = "FILTERING"
	StageClassifying Stage = "CLASSIFYING"
	StagePricing     Stage = "PRICING"
	StageAggregating Stage = "AGGREGATING"
	StageDone        Stage = "DONE"
	StageFailed      Stage = "FAILED"
)

// Tweets are truncated to this many characters before storage.
const tradeTextLimit = 200

// Pause between incremental batches so downstream services get
// breathing room.
const interBatchDelay = 100 * time.Millisecond

// TweetFetcher pulls a user's tweet history.
type TweetFetcher interface {
	FetchUserTweets(ctx context.Context, handle string, months, maxTweets int) ([]types.Post, error)
}

// PriceResolver resolves trading-day prices and dividend history.
type PriceResolver interface {
	BatchResolve(ctx context.Context, reqs []types.PriceRequest) ([]types.PriceResponse, error)
	Dividends(ctx context.Context, symbol, rng string) ([]types.Dividend, error)
}

// Pipeline runs the tweet-to-trade extraction for one handle at a
// time. It is safe for concurrent use; the caches carry results across
// runs for the configured TTL.
type Pipeline struct {
	cfg        *store.Config
	fetcher    TweetFetcher
	matcher    *mention.Matcher
	classifier sentiment.Classifier
	prices     PriceResolver

	tweetCache    *cache.Cache[string, []types.Post]
	analysisCache *cache.Cache[string, types.AnalysisResult]
	now           func() time.Time
}

func New(cfg *store.Config, fetcher TweetFetcher, matcher *mention.Matcher, classifier sentiment.Classifier, prices PriceResolver) *Pipeline {
	ttl := time.Duration(cfg.Pipeline.CacheTTLHours) * time.Hour
	return &Pipeline{
		cfg:           cfg,
		fetcher:       fetcher,
		matcher:       matcher,
		classifier:    classifier,
		prices:        prices,
		tweetCache:    cache.New[string, []types.Post](ttl),
		analysisCache: cache.New[string, types.AnalysisResult](ttl),
		now:           time.Now,
	}
}

// NormalizeHandle strips a leading @ and lowercases, so cache keys are
// stable across input spellings.
func NormalizeHandle(handle string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(handle), "@"))
}

func cacheKey(handle string, months int) string {
	return fmt.Sprintf("%s_%d", NormalizeHandle(handle), months)
}

// Analyze runs the full pipeline for a handle and returns aggregate
// performance. Results are cached; a cached analysis is returned as-is
// with its original LastUpdated.
func (p *Pipeline) Analyze(ctx context.Context, handle string, months int) (*types.AnalysisResult, error) {
	ctx, span := itrace.StartSpan(ctx, "analyze-handle")
	defer span.End()

	started := p.now()
	key := cacheKey(handle, months)

	if cached, ok := p.analysisCache.Get(key); ok {
		metrics.CacheHits.WithLabelValues("analysis").Inc()
		logger.Info(ctx, "Returning cached analysis", "handle", handle, "months", months)
		return &cached, nil
	}

	mentions, scanned, err := p.collectMentions(ctx, handle, months)
	if err != nil {
		metrics.AnalysisErrors.WithLabelValues(string(StageFetching)).Inc()
		return nil, err
	}

	logger.Stage(ctx, handle, string(StageClassifying), "mentions", len(mentions))
	bullish := p.filterBullish(ctx, mentions)

	// One call per ticker: keep the earliest mention of each.
	deduped := dedupeByTickerEarliest(bullish)

	logger.Stage(ctx, handle, string(StagePricing), "bullish", len(bullish), "unique_tickers", len(deduped))
	trades, err := p.buildTrades(ctx, handle, deduped, true)
	if err != nil {
		metrics.AnalysisErrors.WithLabelValues(string(StagePricing)).Inc()
		return nil, err
	}

	logger.Stage(ctx, handle, string(StageAggregating), "trades", len(trades))
	stats := perf.Aggregate(trades, perf.BenchmarkPolicy(p.cfg.Pipeline.HitRatioPolicy))

	result := types.AnalysisResult{
		Handle:        "@" + NormalizeHandle(handle),
		Stats:         stats,
		RecentTrades:  trades,
		TweetsScanned: scanned,
		StockMentions: len(mentions),
		LastUpdated:   p.now(),
		DataSource:    "tweets-live",
	}

	p.analysisCache.Set(key, result)
	metrics.AnalysisDuration.Observe(p.now().Sub(started).Seconds())
	logger.Stage(ctx, handle, string(StageDone), "trades", len(trades), "tweets_scanned", scanned)

	return &result, nil
}

// AnalyzeIncremental processes stock mentions in fixed batches and
// invokes onBatch with cumulative results after each one. A failing
// batch is skipped; the run carries on with the next. The incremental
// path prices each batch on its own, with no benchmark series, so its
// stats use the flat-benchmark policy.
func (p *Pipeline) AnalyzeIncremental(ctx context.Context, handle string, months int, onBatch func(types.BatchResult)) (*types.AnalysisResult, error) {
	ctx, span := itrace.StartSpan(ctx, "analyze-handle-incremental")
	defer span.End()

	mentions, scanned, err := p.collectMentions(ctx, handle, months)
	if err != nil {
		metrics.AnalysisErrors.WithLabelValues(string(StageFetching)).Inc()
		return nil, err
	}

	batchSize := p.cfg.Pipeline.BatchSize
	totalBatches := (len(mentions) + batchSize - 1) / batchSize

	var allTrades []types.TradeRecord
	for start := 0; start < len(mentions); start += batchSize {
		end := start + batchSize
		if end > len(mentions) {
			end = len(mentions)
		}
		batch := mentions[start:end]
		batchNum := start/batchSize + 1

		bullish := p.filterBullish(ctx, batch)
		trades, err := p.buildTrades(ctx, handle, bullish, false)
		if err != nil {
			metrics.AnalysisErrors.WithLabelValues(string(StagePricing)).Inc()
			logger.ErrorWithErr(ctx, "Batch failed, continuing", err, "batch", batchNum)
			continue
		}
		allTrades = append(allTrades, trades...)

		stats := perf.Aggregate(allTrades, perf.FixedBenchmark)
		done := end >= len(mentions)
		if onBatch != nil {
			onBatch(types.BatchResult{
				BatchNumber:     batchNum,
				TotalBatches:    totalBatches,
				TweetsProcessed: end,
				TotalTweets:     len(mentions),
				TradesFound:     len(allTrades),
				RecentTrades:    allTrades,
				Stats:           stats,
				IsComplete:      done,
			})
		}

		if !done {
			select {
			case <-time.After(interBatchDelay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
	}

	stats := perf.Aggregate(allTrades, perf.FixedBenchmark)
	result := types.AnalysisResult{
		Handle:        "@" + NormalizeHandle(handle),
		Stats:         stats,
		RecentTrades:  allTrades,
		TweetsScanned: scanned,
		StockMentions: len(mentions),
		LastUpdated:   p.now(),
		DataSource:    "tweets-incremental",
	}
	logger.Stage(ctx, handle, string(StageDone), "trades", len(allTrades), "batches", totalBatches)
	return &result, nil
}

// collectMentions fetches the handle's tweets (through the cache) and
// keeps the ones that name a known company.
func (p *Pipeline) collectMentions(ctx context.Context, handle string, months int) ([]types.Mention, int, error) {
	key := cacheKey(handle, months)

	posts, ok := p.tweetCache.Get(key)
	if ok {
		metrics.CacheHits.WithLabelValues("tweets").Inc()
		logger.Info(ctx, "Using cached tweets", "handle", handle, "count", len(posts))
	} else {
		logger.Stage(ctx, handle, string(StageFetching), "months", months)
		maxTweets := p.maxTweets(months)
		var err error
		posts, err = p.fetcher.FetchUserTweets(ctx, NormalizeHandle(handle), months, maxTweets)
		if err != nil {
			return nil, 0, fmt.Errorf("fetch tweets for %s: %w", handle, err)
		}
		p.tweetCache.Set(key, posts)
	}
	metrics.TweetsScanned.Add(float64(len(posts)))

	logger.Stage(ctx, handle, string(StageFiltering), "tweets", len(posts))
	var mentions []types.Mention
	for _, post := range posts {
		entry, found := p.matcher.FindFirstMatch(post.Text)
		if !found {
			continue
		}
		mentions = append(mentions, types.Mention{
			Post:        post,
			Ticker:      entry.Ticker,
			CompanyName: entry.CleanedName,
		})
	}
	metrics.StockMentions.Add(float64(len(mentions)))

	return mentions, len(posts), nil
}

func (p *Pipeline) maxTweets(months int) int {
	if p.cfg.Twitter.MaxTweets > 0 {
		return p.cfg.Twitter.MaxTweets
	}
	return 3000
}

// filterBullish keeps the mentions whose text the classifier accepts.
func (p *Pipeline) filterBullish(ctx context.Context, mentions []types.Mention) []types.Mention {
	if len(mentions) == 0 {
		return nil
	}

	items := make([]sentiment.Item, len(mentions))
	for i, m := range mentions {
		items[i] = sentiment.Item{Ticker: m.Ticker, Company: m.CompanyName, Text: m.Post.Text}
	}

	verdicts := p.classifier.Classify(ctx, items)

	var bullish []types.Mention
	for i, ok := range verdicts {
		if ok {
			bullish = append(bullish, mentions[i])
		}
	}
	metrics.BullishMentions.Add(float64(len(bullish)))
	return bullish
}

// dedupeByTickerEarliest keeps one mention per ticker, preferring the
// earliest dated one. Mentions without a timestamp lose to dated ones.
func dedupeByTickerEarliest(mentions []types.Mention) []types.Mention {
	byTicker := make(map[string]int)
	var order []string

	for i, m := range mentions {
		prev, seen := byTicker[m.Ticker]
		if !seen {
			byTicker[m.Ticker] = i
			order = append(order, m.Ticker)
			continue
		}
		if earlier(m, mentions[prev]) {
			byTicker[m.Ticker] = i
		}
	}

	out := make([]types.Mention, 0, len(order))
	for _, ticker := range order {
		out = append(out, mentions[byTicker[ticker]])
	}
	return out
}

func earlier(a, b types.Mention) bool {
	if a.Post.CreatedAt == nil {
		return false
	}
	if b.Post.CreatedAt == nil {
		return true
	}
	return a.Post.CreatedAt.Before(*b.Post.CreatedAt)
}

// buildTrades prices each mention and turns the resolvable ones into
// trade records. With alignBenchmark set, the benchmark symbol is
// priced over each trade's own window and alpha is the spread of the
// two returns; otherwise alpha falls back to the raw stock return.
func (p *Pipeline) buildTrades(ctx context.Context, handle string, mentions []types.Mention, alignBenchmark bool) ([]types.TradeRecord, error) {
	if len(mentions) == 0 {
		return nil, nil
	}

	benchmark := p.cfg.Pipeline.BenchmarkSymbol

	var reqs []types.PriceRequest
	for _, m := range mentions {
		ts := p.mentionTime(m)
		reqs = append(reqs,
			types.PriceRequest{Symbol: m.Ticker, Type: types.PriceEntry, Timestamp: &ts},
			types.PriceRequest{Symbol: m.Ticker, Type: types.PriceLatest},
		)
		if alignBenchmark {
			reqs = append(reqs, types.PriceRequest{Symbol: benchmark, Type: types.PriceEntry, Timestamp: &ts})
		}
	}
	if alignBenchmark {
		reqs = append(reqs, types.PriceRequest{Symbol: benchmark, Type: types.PriceLatest})
	}

	resolved, err := p.prices.BatchResolve(ctx, reqs)
	if err != nil {
		return nil, err
	}

	prices := indexPrices(resolved)

	var trades []types.TradeRecord
	for _, m := range mentions {
		ts := p.mentionTime(m)
		day := ts.Format("2006-01-02")

		entry := prices.get(m.Ticker, types.PriceEntry, day)
		latest := prices.get(m.Ticker, types.PriceLatest, "")

		// Same-day tweets have no prior close yet; fall back to the
		// latest price for the entry.
		if entry == nil {
			entry = latest
		}
		if entry == nil || latest == nil {
			logger.Warn(ctx, "Missing price data, skipping mention", "ticker", m.Ticker, "date", day)
			continue
		}

		stockReturn := 0.0
		if *entry > 0 {
			stockReturn = (*latest - *entry) / *entry * 100
		}

		alpha := stockReturn
		if alignBenchmark {
			benchEntry := prices.get(benchmark, types.PriceEntry, day)
			benchLatest := prices.get(benchmark, types.PriceLatest, "")
			if benchEntry != nil && benchLatest != nil && *benchEntry > 0 {
				benchReturn := (*benchLatest - *benchEntry) / *benchEntry * 100
				alpha = stockReturn - benchReturn
			}
		}

		hitOrMiss := types.Miss
		if stockReturn > 0 {
			hitOrMiss = types.Hit
		}

		dividends := 0.0
		if p.cfg.Pipeline.IncludeDividends {
			dividends = p.dividendsSince(ctx, m.Ticker, day)
		}

		trades = append(trades, types.TradeRecord{
			ID:               m.Post.ID,
			Ticker:           m.Ticker,
			Company:          m.CompanyName,
			TweetText:        truncate(m.Post.Text, tradeTextLimit),
			DateMentioned:    day,
			TweetURL:         "https://twitter.com/i/web/status/" + m.Post.ID,
			BeginningValue:   round2(*entry),
			LastValue:        round2(*latest),
			StockReturn:      round2(stockReturn),
			AlphaVsBenchmark: round2(alpha),
			HitOrMiss:        hitOrMiss,
			Dividends:        round2(dividends),
		})
	}

	metrics.TradesBuilt.Add(float64(len(trades)))
	return trades, nil
}

func (p *Pipeline) mentionTime(m types.Mention) time.Time {
	if m.Post.CreatedAt != nil {
		return *m.Post.CreatedAt
	}
	return p.now()
}

// dividendsSince sums the per-share dividends paid on or after the
// mention date. Dividend lookups are best effort.
func (p *Pipeline) dividendsSince(ctx context.Context, symbol, sinceDay string) float64 {
	divs, err := p.prices.Dividends(ctx, symbol, "5y")
	if err != nil {
		logger.Warn(ctx, "Dividend lookup failed", "symbol", symbol, "error", err.Error())
		return 0
	}

	total := 0.0
	for _, d := range divs {
		if d.Date >= sinceDay {
			total += d.Amount
		}
	}
	return total
}

// priceIndex joins resolved prices back to mentions. Entry prices
// carry an asof of the first trading day after the tweet, so entry
// lookups find the nearest resolved day at or after the mention date.
type priceIndex struct {
	entries map[string][]datedPrice
	latest  map[string]*float64
}

type datedPrice struct {
	asof  string
	price *float64
}

func indexPrices(resolved []types.PriceResponse) priceIndex {
	idx := priceIndex{
		entries: make(map[string][]datedPrice),
		latest:  make(map[string]*float64),
	}
	for _, r := range resolved {
		if r.Price == nil {
			continue
		}
		switch r.Type {
		case types.PriceLatest:
			idx.latest[r.Symbol] = r.Price
		case types.PriceEntry:
			idx.entries[r.Symbol] = append(idx.entries[r.Symbol], datedPrice{asof: r.AsOf, price: r.Price})
		}
	}
	for _, prices := range idx.entries {
		sort.Slice(prices, func(i, j int) bool { return prices[i].asof < prices[j].asof })
	}
	return idx
}

func (idx priceIndex) get(symbol string, t types.PriceType, day string) *float64 {
	if t == types.PriceLatest {
		return idx.latest[symbol]
	}

	prices := idx.entries[symbol]
	for _, p := range prices {
		if p.asof >= day {
			return p.price
		}
	}
	// A single resolved entry for the symbol can only belong to this
	// mention, whatever day it settled on.
	if len(prices) == 1 {
		return prices[0].price
	}
	return nil
}

func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
