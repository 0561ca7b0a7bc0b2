package types

import "time"

// Post is a single social post as returned by the tweet search API.
// The pipeline never mutates a Post; derived fields live on Mention.
type Post struct {
	ID        string     `json:"id"`
	Text      string     `json:"text"`
	CreatedAt *time.Time `json:"created_at,omitempty"`
}

// Mention is a post paired with the company it names.
type Mention struct {
	Post        Post
	Ticker      string
	CompanyName string
}

// PriceType selects which price a quote request resolves.
type PriceType string

const (
	PriceEntry  PriceType = "entry"
	PriceLatest PriceType = "latest"
)

// PriceRequest asks for one resolved trading-day price.
// Timestamp is required for entry requests and ignored for latest.
type PriceRequest struct {
	Symbol    string     `json:"symbol"`
	Type      PriceType  `json:"type"`
	Timestamp *time.Time `json:"tweetTimestamp,omitempty"`
}

// PriceResponse is one resolved price. For entry requests AsOf is the
// trading day the price was taken from, which is the first trading day
// after the tweet. Unresolvable requests are reported in the batch
// error list and never appear here.
type PriceResponse struct {
	Symbol string    `json:"symbol"`
	Type   PriceType `json:"type"`
	Price  *float64  `json:"price"`
	AsOf   string    `json:"asof"`
}

// Dividend is a single cash dividend payment.
type Dividend struct {
	Date   string  `json:"date"`
	Amount float64 `json:"amount"`
}

type HitOrMiss string

const (
	Hit  HitOrMiss = "Hit"
	Miss HitOrMiss = "Miss"
)

// TradeRecord is one scored stock call. Immutable once built; mentions
// whose prices cannot be resolved never become TradeRecords.
type TradeRecord struct {
	ID               string    `json:"id"`
	Ticker           string    `json:"ticker"`
	Company          string    `json:"company"`
	TweetText        string    `json:"tweetText"`
	DateMentioned    string    `json:"dateMentioned"`
	TweetURL         string    `json:"tweetUrl"`
	BeginningValue   float64   `json:"beginningValue"`
	LastValue        float64   `json:"lastValue"`
	StockReturn      float64   `json:"stockReturn"`
	AlphaVsBenchmark float64   `json:"alphaVsBenchmark"`
	HitOrMiss        HitOrMiss `json:"hitOrMiss"`
	Dividends        float64   `json:"dividends"`
}

// Stats are aggregate performance numbers over a set of trades.
// Rates are fractions in [0,1].
type Stats struct {
	AvgReturn   float64      `json:"avgReturn"`
	Alpha       float64      `json:"alpha"`
	WinRate     float64      `json:"winRate"`
	HitRatio    float64      `json:"hitRatio"`
	BestTrade   *TradeRecord `json:"bestTrade"`
	WorstTrade  *TradeRecord `json:"worstTrade"`
	TotalTrades int          `json:"totalTrades"`
}

// AnalysisResult is the full output for one handle.
type AnalysisResult struct {
	Handle        string        `json:"handle"`
	Stats         Stats         `json:"stats"`
	RecentTrades  []TradeRecord `json:"recentTrades"`
	TweetsScanned int           `json:"tweetsScanned"`
	StockMentions int           `json:"stockMentions"`
	LastUpdated   time.Time     `json:"lastUpdated"`
	DataSource    string        `json:"dataSource"`
}

// BatchResult is delivered to the progress callback after each
// incremental batch with cumulative results so far.
type BatchResult struct {
	BatchNumber     int           `json:"batchNumber"`
	TotalBatches    int           `json:"totalBatches"`
	TweetsProcessed int           `json:"tweetsProcessed"`
	TotalTweets     int           `json:"totalTweets"`
	TradesFound     int           `json:"tradesFound"`
	RecentTrades    []TradeRecord `json:"recentTrades"`
	Stats           Stats         `json:"stats"`
	IsComplete      bool          `json:"isComplete"`
}
