package market

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"fintwit-analyzer/internal/store"
	"fintwit-analyzer/internal/types"
)

func testClient(baseURL string) *Client {
	cfg := &store.Config{}
	cfg.Market.BaseURL = baseURL
	cfg.Market.MinIntervalMS = 0
	cfg.Market.TimeoutSec = 5
	return NewClient(cfg)
}

func ptrTime(t time.Time) *time.Time { return &t }

func TestBatchResolveDedupes(t *testing.T) {
	var received struct {
		Requests []types.PriceRequest `json:"requests"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		fmt.Fprint(w, `{"data":[],"errors":[]}`)
	}))
	defer srv.Close()

	c := testClient(srv.URL)

	day := time.Date(2025, 6, 2, 9, 30, 0, 0, time.UTC)
	sameDay := time.Date(2025, 6, 2, 15, 45, 0, 0, time.UTC)
	otherDay := time.Date(2025, 6, 3, 9, 30, 0, 0, time.UTC)

	reqs := []types.PriceRequest{
		{Symbol: "AMZN", Type: types.PriceEntry, Timestamp: ptrTime(day)},
		{Symbol: "AMZN", Type: types.PriceEntry, Timestamp: ptrTime(sameDay)},
		{Symbol: "AMZN", Type: types.PriceEntry, Timestamp: ptrTime(otherDay)},
		{Symbol: "AMZN", Type: types.PriceLatest},
		{Symbol: "AMZN", Type: types.PriceLatest},
		{Symbol: "SPY", Type: types.PriceEntry, Timestamp: ptrTime(day)},
	}

	if _, err := c.BatchResolve(context.Background(), reqs); err != nil {
		t.Fatalf("BatchResolve: %v", err)
	}

	// Same symbol+type+day collapses; distinct days and symbols survive.
	if len(received.Requests) != 4 {
		t.Fatalf("Expected 4 deduped requests, got %d", len(received.Requests))
	}
}

func TestBatchResolveEmptyInput(t *testing.T) {
	c := testClient("http://localhost:0")

	got, err := c.BatchResolve(context.Background(), nil)
	if err != nil {
		t.Fatalf("BatchResolve: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("Expected no responses for empty input, got %d", len(got))
	}
}

func TestBatchResolveReturnsData(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{
			"data": [
				{"symbol":"AMZN","type":"entry","price":180.5,"asof":"2025-06-03"},
				{"symbol":"AMZN","type":"latest","price":200.0,"asof":"2025-08-29"}
			],
			"errors": [{"message":"unknown symbol","symbol":"XXXX","type":"entry"}]
		}`)
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	got, err := c.BatchResolve(context.Background(), []types.PriceRequest{
		{Symbol: "AMZN", Type: types.PriceEntry, Timestamp: ptrTime(time.Now())},
	})
	if err != nil {
		t.Fatalf("BatchResolve: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("Expected 2 responses, got %d", len(got))
	}
	if got[0].Price == nil || *got[0].Price != 180.5 {
		t.Errorf("Unexpected entry price: %v", got[0].Price)
	}
	if got[0].AsOf != "2025-06-03" {
		t.Errorf("Unexpected asof: %q", got[0].AsOf)
	}
}

func TestBatchResolveRetriesServerErrors(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		fmt.Fprint(w, `{"data":[{"symbol":"AMZN","type":"latest","price":200.0,"asof":"2025-08-29"}],"errors":[]}`)
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	got, err := c.BatchResolve(context.Background(), []types.PriceRequest{
		{Symbol: "AMZN", Type: types.PriceLatest},
	})
	if err != nil {
		t.Fatalf("Expected retry to succeed, got: %v", err)
	}
	if calls != 2 {
		t.Errorf("Expected 2 requests, got %d", calls)
	}
	if len(got) != 1 {
		t.Fatalf("Expected 1 response, got %d", len(got))
	}
}

func TestBatchResolveClientErrorFailsFast(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	_, err := c.BatchResolve(context.Background(), []types.PriceRequest{
		{Symbol: "AMZN", Type: types.PriceLatest},
	})
	if err == nil {
		t.Error("Expected error on client failure")
	}
	if calls != 1 {
		t.Errorf("Expected no retries on 4xx, got %d requests", calls)
	}
}

func TestDividendsRetriesServerErrors(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		fmt.Fprint(w, `[{"date":"2025-02-10","amount":0.25}]`)
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	divs, err := c.Dividends(context.Background(), "AAPL", "1y")
	if err != nil {
		t.Fatalf("Expected retry to succeed, got: %v", err)
	}
	if calls != 2 {
		t.Errorf("Expected 2 requests, got %d", calls)
	}
	if len(divs) != 1 {
		t.Fatalf("Expected 1 dividend, got %d", len(divs))
	}
}

func TestDividends(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("symbol") != "AAPL" {
			t.Errorf("Expected symbol AAPL, got %q", r.URL.Query().Get("symbol"))
		}
		if r.URL.Query().Get("range") != "1y" {
			t.Errorf("Expected range 1y, got %q", r.URL.Query().Get("range"))
		}
		fmt.Fprint(w, `[{"date":"2025-02-10","amount":0.25},{"date":"2025-05-12","amount":0.26}]`)
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	divs, err := c.Dividends(context.Background(), "AAPL", "1y")
	if err != nil {
		t.Fatalf("Dividends: %v", err)
	}
	if len(divs) != 2 {
		t.Fatalf("Expected 2 dividends, got %d", len(divs))
	}
	if divs[1].Amount != 0.26 {
		t.Errorf("Unexpected amount: %v", divs[1].Amount)
	}
}
