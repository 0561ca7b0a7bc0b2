package twitterapi

import (
	"strings"
	"time"
)

// Query builds the advanced-search query DSL. Zero-value fields are
// omitted from the output.
type Query struct {
	From            string
	HasCashtags     bool
	ExcludeRetweets bool
	ExcludeReplies  bool
	Since           time.Time
	Until           time.Time
	MaxID           string
}

func (q Query) String() string {
	var parts []string
	if q.From != "" {
		parts = append(parts, "from:"+q.From)
	}
	if q.HasCashtags {
		parts = append(parts, "has:cashtags")
	}
	if q.ExcludeRetweets {
		parts = append(parts, "-is:retweet")
	}
	if q.ExcludeReplies {
		parts = append(parts, "-is:reply")
	}
	if !q.Since.IsZero() {
		parts = append(parts, "since:"+q.Since.Format("2006-01-02"))
	}
	if !q.Until.IsZero() {
		parts = append(parts, "until:"+q.Until.Format("2006-01-02"))
	}
	if q.MaxID != "" {
		parts = append(parts, "max_id:"+q.MaxID)
	}
	return strings.Join(parts, " ")
}

// MaxTweetsFor scales the fetch budget with the requested history:
// 1500 for a year, +500 per additional year, capped at 3000.
func MaxTweetsFor(months int) int {
	if months < 1 {
		months = 1
	}
	years := (months + 11) / 12
	n := 1000 + years*500
	if n > 3000 {
		n = 3000
	}
	return n
}
