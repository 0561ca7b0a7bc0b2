package twitterapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"sort"
	"time"

	"golang.org/x/time/rate"

	"fintwit-analyzer/internal/logger"
	"fintwit-analyzer/internal/store"
	itrace "fintwit-analyzer/internal/trace"
	"fintwit-analyzer/internal/types"
)

const (
	queryTypeLatest = "Latest"

	backfillWindowDays = 14
	maxBackfillWindows = 30
	maxRetries         = 3
)

// Client talks to the twitterapi.io search endpoints. All requests go
// through a shared limiter so pagination loops respect the provider's
// per-key throttle.
type Client struct {
	baseURL   string
	apiKeyEnv string
	limiter   *rate.Limiter
	client    *http.Client
	now       func() time.Time
}

func NewClient(cfg *store.Config) *Client {
	interval := time.Duration(cfg.Twitter.MinIntervalMS) * time.Millisecond
	return &Client{
		baseURL:   cfg.Twitter.BaseURL,
		apiKeyEnv: cfg.Twitter.APIKeyEnv,
		limiter:   rate.NewLimiter(rate.Every(interval), 1),
		client:    &http.Client{Timeout: time.Duration(cfg.Twitter.TimeoutSec) * time.Second},
		now:       time.Now,
	}
}

type tweetJSON struct {
	ID        string `json:"id"`
	Text      string `json:"text"`
	CreatedAt string `json:"createdAt"`
}

type searchResponse struct {
	Tweets      []tweetJSON `json:"tweets"`
	HasNextPage bool        `json:"has_next_page"`
	NextCursor  string      `json:"next_cursor"`
}

// FetchUserTweets pulls up to maxTweets of a user's history over the
// given number of months. It runs two passes over the recent window (a
// narrow cashtag query, then a broad one), merges and dedupes them,
// and walks back through fixed date windows on the archive endpoint
// when the recent window comes up short.
func (c *Client) FetchUserTweets(ctx context.Context, handle string, months, maxTweets int) ([]types.Post, error) {
	ctx, span := itrace.StartSpan(ctx, "twitter-fetch-user")
	defer span.End()

	// Scale the budget with the window; the caller's cap still wins.
	if scaled := MaxTweetsFor(months); maxTweets <= 0 || scaled < maxTweets {
		maxTweets = scaled
	}

	since := c.now().AddDate(0, -months, 0)

	cashtagQ := Query{From: handle, HasCashtags: true, ExcludeRetweets: true, ExcludeReplies: true, Since: since}
	withCashtags, err := c.Search(ctx, cashtagQ.String(), maxTweets)
	if err != nil {
		return nil, err
	}

	broadQ := Query{From: handle, ExcludeRetweets: true, ExcludeReplies: true, Since: since}
	broad, err := c.Search(ctx, broadQ.String(), maxTweets)
	if err != nil {
		return nil, err
	}

	posts := dedupeByID(append(withCashtags, broad...))
	logger.Info(ctx, "Merged tweet passes",
		"handle", handle, "cashtag_pass", len(withCashtags), "broad_pass", len(broad), "merged", len(posts))

	// The recent window often caps out well short of the requested
	// history. Walk backwards in date windows to extend it.
	if len(posts) < maxTweets {
		posts = c.backfill(ctx, handle, since, posts, maxTweets)
	}

	sort.Slice(posts, func(i, j int) bool {
		ti, tj := posts[i].CreatedAt, posts[j].CreatedAt
		if ti == nil || tj == nil {
			return ti != nil
		}
		return ti.After(*tj)
	})

	if len(posts) > maxTweets {
		posts = posts[:maxTweets]
	}
	return posts, nil
}

func (c *Client) backfill(ctx context.Context, handle string, since time.Time, posts []types.Post, maxTweets int) []types.Post {
	seen := make(map[string]bool, len(posts))
	for _, p := range posts {
		seen[p.ID] = true
	}

	windowEnd := c.now()
	for w := 0; w < maxBackfillWindows && len(posts) < maxTweets && windowEnd.After(since); w++ {
		windowStart := windowEnd.AddDate(0, 0, -backfillWindowDays)
		if windowStart.Before(since) {
			windowStart = since
		}

		q := Query{From: handle, ExcludeRetweets: true, Since: windowStart, Until: windowEnd}
		window := c.SearchArchive(ctx, q.String(), min(1000, maxTweets-len(posts)))

		added := 0
		for _, p := range window {
			if seen[p.ID] {
				continue
			}
			seen[p.ID] = true
			posts = append(posts, p)
			added++
			if len(posts) >= maxTweets {
				break
			}
		}
		logger.Debug(ctx, "Backfill window complete",
			"handle", handle, "window_start", windowStart.Format("2006-01-02"),
			"window_end", windowEnd.Format("2006-01-02"), "added", added, "total", len(posts))

		windowEnd = windowStart
	}
	return posts
}

// Search pages through the advanced-search endpoint until max tweets
// are collected or results run out. Pagination rides the provider
// cursor while it lasts, then falls back to max_id walking.
func (c *Client) Search(ctx context.Context, query string, max int) ([]types.Post, error) {
	apiKey := os.Getenv(c.apiKeyEnv)
	if apiKey == "" {
		return nil, fmt.Errorf("%s missing", c.apiKeyEnv)
	}

	var all []types.Post
	seen := make(map[string]bool)
	cursor := ""
	lastMinID := ""

	for len(all) < max {
		params := url.Values{}
		params.Set("queryType", queryTypeLatest)
		switch {
		case cursor != "":
			params.Set("cursor", cursor)
			params.Set("query", query)
		case lastMinID != "":
			params.Set("query", query+" max_id:"+lastMinID)
		default:
			params.Set("query", query)
		}

		page, err := c.searchPage(ctx, apiKey, params)
		if err != nil {
			return all, err
		}
		cursor = page.NextCursor

		newCount := 0
		for _, tw := range page.Tweets {
			if tw.ID == "" || seen[tw.ID] {
				continue
			}
			seen[tw.ID] = true
			newCount++
			lastMinID = tw.ID
			all = append(all, toPost(tw))
			if len(all) >= max {
				break
			}
		}

		if len(page.Tweets) == 0 && !page.HasNextPage {
			break
		}
		if !page.HasNextPage {
			if newCount == 0 {
				break
			}
			// Continue with max_id pagination.
			cursor = ""
		}
	}

	return all, nil
}

func (c *Client) searchPage(ctx context.Context, apiKey string, params url.Values) (*searchResponse, error) {
	endpoint := c.baseURL + "/twitter/tweet/advanced_search?" + params.Encode()

	var lastErr error
	for attempt := 1; attempt <= maxRetries; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("x-api-key", apiKey)

		resp, err := c.client.Do(req)
		if err != nil {
			lastErr = err
			logger.Warn(ctx, "Twitter request failed", "attempt", attempt, "error", err.Error())
			c.sleepBackoff(ctx, attempt)
			continue
		}

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			var page searchResponse
			err := json.NewDecoder(resp.Body).Decode(&page)
			resp.Body.Close()
			if err != nil {
				return nil, fmt.Errorf("decode search response: %w", err)
			}
			return &page, nil
		}
		resp.Body.Close()

		// Client errors never succeed on retry. An exhausted or
		// missing account reads as no results, not a pipeline failure.
		if resp.StatusCode >= 400 && resp.StatusCode < 500 {
			if resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusTooManyRequests {
				logger.Warn(ctx, "Twitter request not retriable, treating as empty", "status", resp.StatusCode)
				return &searchResponse{}, nil
			}
			return nil, fmt.Errorf("twitter http %d", resp.StatusCode)
		}

		lastErr = fmt.Errorf("twitter http %d", resp.StatusCode)
		logger.Warn(ctx, "Twitter server error", "status", resp.StatusCode, "attempt", attempt)
		c.sleepBackoff(ctx, attempt)
	}

	return nil, fmt.Errorf("twitter search failed after %d attempts: %w", maxRetries, lastErr)
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

// SearchArchive hits the full-archive endpoint for one date window.
// Archive failures degrade to an empty window so the backfill loop can
// keep walking.
func (c *Client) SearchArchive(ctx context.Context, query string, limit int) []types.Post {
	apiKey := os.Getenv(c.apiKeyEnv)
	if apiKey == "" {
		return nil
	}
	if limit < 1 {
		limit = 1
	}
	if limit > 1000 {
		limit = 1000
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil
	}

	body, _ := json.Marshal(map[string]any{
		"query":             query,
		"limit":             limit,
		"include_metrics":   false,
		"include_user_data": false,
	})

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/search/tweets", bytes.NewReader(body))
	if err != nil {
		return nil
	}
	req.Header.Set("X-API-Key", apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		logger.Warn(ctx, "Archive window fetch failed", "error", err.Error())
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		logger.Warn(ctx, "Archive window fetch failed", "status", resp.StatusCode)
		return nil
	}

	var page struct {
		Tweets []tweetJSON `json:"tweets"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		logger.Warn(ctx, "Archive window decode failed", "error", err.Error())
		return nil
	}

	posts := make([]types.Post, 0, len(page.Tweets))
	for _, tw := range page.Tweets {
		posts = append(posts, toPost(tw))
	}
	return posts
}

func toPost(tw tweetJSON) types.Post {
	return types.Post{
		ID:        tw.ID,
		Text:      tw.Text,
		CreatedAt: parseCreatedAt(tw.CreatedAt),
	}
}

// parseCreatedAt accepts both the classic Twitter timestamp format
// ("Fri Sep 12 13:48:25 +0000 2025") and RFC 3339.
func parseCreatedAt(s string) *time.Time {
	if s == "" {
		return nil
	}
	for _, layout := range []string{time.RubyDate, time.RFC3339} {
		if t, err := time.Parse(layout, s); err == nil {
			return &t
		}
	}
	return nil
}

func dedupeByID(posts []types.Post) []types.Post {
	seen := make(map[string]bool, len(posts))
	out := make([]types.Post, 0, len(posts))
	for _, p := range posts {
		if p.ID == "" || seen[p.ID] {
			continue
		}
		seen[p.ID] = true
		out = append(out, p)
	}
	return out
}
