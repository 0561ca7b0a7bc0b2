package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	TweetsScanned = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fintwit_tweets_scanned_total",
		Help: "Tweets fetched and scanned for stock mentions.",
	})

	StockMentions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fintwit_stock_mentions_total",
		Help: "Tweets that matched a company in the directory.",
	})

	BullishMentions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fintwit_bullish_mentions_total",
		Help: "Mentions classified as genuinely bullish.",
	})

	TradesBuilt = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fintwit_trades_built_total",
		Help: "Trade records built with resolved prices.",
	})

	CacheHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fintwit_cache_hits_total",
		Help: "Cache hits by cache name.",
	}, []string{"cache"})

	AnalysisErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fintwit_analysis_errors_total",
		Help: "Analysis failures by pipeline stage.",
	}, []string{"stage"})

	AnalysisDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "fintwit_analysis_duration_seconds",
		Help:    "Wall time of a full handle analysis.",
		Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
	})
)
