package directory

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// HTTPSource fetches the SEC company tickers dataset. The payload is a
// JSON object keyed by row index: {"0": {"cik_str":..., "ticker":...,
// "title":...}, ...}.
type HTTPSource struct {
	url    string
	client *http.Client
}

// NewHTTPSource creates a source for the given dataset URL.
func NewHTTPSource(url string, timeout time.Duration) *HTTPSource {
	return &HTTPSource{
		url:    url,
		client: &http.Client{Timeout: timeout},
	}
}

func (s *HTTPSource) Fetch(ctx context.Context) ([]RawEntry, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch company tickers: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch company tickers: http %d", resp.StatusCode)
	}

	var keyed map[string]RawEntry
	if err := json.NewDecoder(resp.Body).Decode(&keyed); err != nil {
		return nil, fmt.Errorf("decode company tickers: %w", err)
	}

	entries := make([]RawEntry, 0, len(keyed))
	for _, e := range keyed {
		entries = append(entries, e)
	}
	return entries, nil
}

// StaticSource serves a fixed entry list. Used by tests and the mock
// provider.
type StaticSource struct {
	Records []RawEntry
	Err     error
}

func (s *StaticSource) Fetch(ctx context.Context) ([]RawEntry, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	return s.Records, nil
}
