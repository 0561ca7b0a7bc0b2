package twitterapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"fintwit-analyzer/internal/store"
)

func testClient(baseURL string) *Client {
	cfg := &store.Config{}
	cfg.Twitter.BaseURL = baseURL
	cfg.Twitter.APIKeyEnv = "TEST_TWITTER_KEY"
	cfg.Twitter.MinIntervalMS = 0
	cfg.Twitter.TimeoutSec = 5
	return NewClient(cfg)
}

func writePage(w http.ResponseWriter, tweets []tweetJSON, hasNext bool, cursor string) {
	json.NewEncoder(w).Encode(searchResponse{
		Tweets:      tweets,
		HasNextPage: hasNext,
		NextCursor:  cursor,
	})
}

func TestQueryString(t *testing.T) {
	since := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	until := time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC)

	q := Query{From: "buccocapital", HasCashtags: true, ExcludeRetweets: true, ExcludeReplies: true, Since: since}
	want := "from:buccocapital has:cashtags -is:retweet -is:reply since:2025-03-01"
	if got := q.String(); got != want {
		t.Errorf("Query.String() = %q, want %q", got, want)
	}

	q2 := Query{From: "buccocapital", ExcludeRetweets: true, Since: since, Until: until}
	want2 := "from:buccocapital -is:retweet since:2025-03-01 until:2025-03-15"
	if got := q2.String(); got != want2 {
		t.Errorf("Query.String() = %q, want %q", got, want2)
	}
}

func TestMaxTweetsFor(t *testing.T) {
	cases := []struct {
		months int
		want   int
	}{
		{12, 1500},
		{24, 2000},
		{36, 2500},
		{48, 3000},
		{120, 3000},
		{1, 1500},
	}
	for _, tc := range cases {
		if got := MaxTweetsFor(tc.months); got != tc.want {
			t.Errorf("MaxTweetsFor(%d) = %d, want %d", tc.months, got, tc.want)
		}
	}
}

func TestSearchCursorPagination(t *testing.T) {
	t.Setenv("TEST_TWITTER_KEY", "test-key")

	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if r.Header.Get("x-api-key") != "test-key" {
			t.Error("Expected api key header")
		}
		switch calls {
		case 1:
			writePage(w, []tweetJSON{{ID: "3", Text: "c"}, {ID: "2", Text: "b"}}, true, "cur1")
		case 2:
			if r.URL.Query().Get("cursor") != "cur1" {
				t.Errorf("Expected cursor cur1, got %q", r.URL.Query().Get("cursor"))
			}
			writePage(w, []tweetJSON{{ID: "1", Text: "a"}}, false, "")
		default:
			// max_id continuation finds nothing new
			writePage(w, nil, false, "")
		}
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	posts, err := c.Search(context.Background(), "from:x -is:retweet", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(posts) != 3 {
		t.Fatalf("Expected 3 posts, got %d", len(posts))
	}
	if posts[0].ID != "3" || posts[2].ID != "1" {
		t.Errorf("Unexpected order: %v", posts)
	}
}

func TestSearchMaxIDFallback(t *testing.T) {
	t.Setenv("TEST_TWITTER_KEY", "test-key")

	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		switch calls {
		case 1:
			// Page with results but no next cursor: client should walk
			// back with max_id.
			writePage(w, []tweetJSON{{ID: "9", Text: "x"}}, false, "")
		case 2:
			q := r.URL.Query().Get("query")
			if q != "from:x max_id:9" {
				t.Errorf("Expected max_id continuation, got query %q", q)
			}
			writePage(w, []tweetJSON{{ID: "8", Text: "y"}}, false, "")
		default:
			writePage(w, nil, false, "")
		}
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	posts, err := c.Search(context.Background(), "from:x", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(posts) != 2 {
		t.Fatalf("Expected 2 posts, got %d", len(posts))
	}
}

func TestSearchStopsAtMax(t *testing.T) {
	t.Setenv("TEST_TWITTER_KEY", "test-key")

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writePage(w, []tweetJSON{{ID: "1"}, {ID: "2"}, {ID: "3"}}, true, "cur")
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	posts, err := c.Search(context.Background(), "from:x", 2)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(posts) != 2 {
		t.Errorf("Expected max 2 posts, got %d", len(posts))
	}
}

func TestSearchNotFoundIsEmpty(t *testing.T) {
	t.Setenv("TEST_TWITTER_KEY", "test-key")

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	posts, err := c.Search(context.Background(), "from:ghost", 10)
	if err != nil {
		t.Fatalf("Expected 404 to read as empty, got error: %v", err)
	}
	if len(posts) != 0 {
		t.Errorf("Expected 0 posts, got %d", len(posts))
	}
}

func TestSearchRetriesServerErrors(t *testing.T) {
	t.Setenv("TEST_TWITTER_KEY", "test-key")

	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		writePage(w, []tweetJSON{{ID: "1", Text: "ok"}}, false, "")
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	posts, err := c.Search(context.Background(), "from:x", 1)
	if err != nil {
		t.Fatalf("Expected retry to succeed, got: %v", err)
	}
	if len(posts) != 1 {
		t.Errorf("Expected 1 post, got %d", len(posts))
	}
	if calls != 2 {
		t.Errorf("Expected 2 requests, got %d", calls)
	}
}

func TestSearchMissingKey(t *testing.T) {
	t.Setenv("TEST_TWITTER_KEY", "")

	c := testClient("http://localhost:0")
	if _, err := c.Search(context.Background(), "from:x", 1); err == nil {
		t.Error("Expected error when api key env is unset")
	}
}

func TestParseCreatedAt(t *testing.T) {
	classic := parseCreatedAt("Fri Sep 12 13:48:25 +0000 2025")
	if classic == nil {
		t.Fatal("Expected classic Twitter timestamp to parse")
	}
	if classic.Year() != 2025 || classic.Month() != time.September || classic.Day() != 12 {
		t.Errorf("Unexpected parse result: %v", classic)
	}

	iso := parseCreatedAt("2025-09-12T13:48:25Z")
	if iso == nil {
		t.Fatal("Expected RFC 3339 timestamp to parse")
	}

	if parseCreatedAt("") != nil {
		t.Error("Expected empty timestamp to parse to nil")
	}
	if parseCreatedAt("not a date") != nil {
		t.Error("Expected garbage timestamp to parse to nil")
	}
}

func TestSearchArchiveDegradesToEmpty(t *testing.T) {
	t.Setenv("TEST_TWITTER_KEY", "test-key")

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	posts := c.SearchArchive(context.Background(), "from:x since:2025-01-01 until:2025-01-15", 100)
	if len(posts) != 0 {
		t.Errorf("Expected empty window on server error, got %d posts", len(posts))
	}
}
