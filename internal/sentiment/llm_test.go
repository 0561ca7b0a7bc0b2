package sentiment

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"fintwit-analyzer/internal/store"
)

func llmTestConfig(baseURL string) *store.Config {
	cfg := &store.Config{}
	cfg.LLM.Enabled = true
	cfg.LLM.BaseURL = baseURL
	cfg.LLM.Model = "deepseek-chat"
	cfg.LLM.APIKeyEnv = "TEST_LLM_KEY"
	cfg.LLM.BatchSize = 2
	cfg.LLM.RequestsPerMin = 6000
	cfg.LLM.TimeoutSec = 5
	return cfg
}

func chatResponse(content string) string {
	resp := map[string]any{
		"choices": []map[string]any{
			{"message": map[string]string{"content": content}},
		},
	}
	b, _ := json.Marshal(resp)
	return string(b)
}

func TestLLMClassifyBatches(t *testing.T) {
	t.Setenv("TEST_LLM_KEY", "test-key")

	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		// First batch: tweet 1 bullish. Second batch: tweet 2 bullish.
		if calls == 1 {
			fmt.Fprint(w, chatResponse("[1]"))
		} else {
			fmt.Fprint(w, chatResponse("[2]"))
		}
	}))
	defer srv.Close()

	c := NewLLMClassifier(llmTestConfig(srv.URL))

	items := []Item{
		{Ticker: "AMZN", Text: "Buying AMZN"},
		{Ticker: "TSLA", Text: "TSLA chart"},
		{Ticker: "AAPL", Text: "AAPL meh"},
		{Ticker: "NVDA", Text: "Long NVDA"},
	}
	got := c.Classify(context.Background(), items)

	if calls != 2 {
		t.Errorf("Expected 2 batch calls, got %d", calls)
	}
	want := []bool{true, false, false, true}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Item %d: expected %v, got %v", i, want[i], got[i])
		}
	}
}

func TestLLMClassifyIncludesCompanyInPrompt(t *testing.T) {
	t.Setenv("TEST_LLM_KEY", "test-key")

	var prompt string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Messages []struct {
				Content string `json:"content"`
			} `json:"messages"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		prompt = req.Messages[0].Content
		fmt.Fprint(w, chatResponse("[]"))
	}))
	defer srv.Close()

	c := NewLLMClassifier(llmTestConfig(srv.URL))
	c.Classify(context.Background(), []Item{
		{Ticker: "AMZN", Company: "AMAZON", Text: "Buying AMZN"},
	})

	if !strings.Contains(prompt, "[AMZN (AMAZON)]") {
		t.Errorf("Expected ticker and company in prompt, got %q", prompt)
	}
}

func TestLLMClassifyStripsCodeFences(t *testing.T) {
	t.Setenv("TEST_LLM_KEY", "test-key")

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, chatResponse("```json\n[1, 2]\n```"))
	}))
	defer srv.Close()

	c := NewLLMClassifier(llmTestConfig(srv.URL))

	got := c.Classify(context.Background(), []Item{
		{Ticker: "AMZN", Text: "a"},
		{Ticker: "TSLA", Text: "b"},
	})

	if !got[0] || !got[1] {
		t.Errorf("Expected both bullish after fence stripping, got %v", got)
	}
}

func TestLLMClassifyIgnoresOutOfRangeIndices(t *testing.T) {
	t.Setenv("TEST_LLM_KEY", "test-key")

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, chatResponse("[0, 2, 7]"))
	}))
	defer srv.Close()

	c := NewLLMClassifier(llmTestConfig(srv.URL))

	got := c.Classify(context.Background(), []Item{
		{Ticker: "AMZN", Text: "a"},
		{Ticker: "TSLA", Text: "b"},
	})

	if got[0] {
		t.Error("Index 0 is out of range for 1-indexed replies")
	}
	if !got[1] {
		t.Error("Expected index 2 to mark the second item bullish")
	}
}

func TestLLMClassifyFallsBackPerBatch(t *testing.T) {
	t.Setenv("TEST_LLM_KEY", "test-key")

	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		fmt.Fprint(w, chatResponse("[]"))
	}))
	defer srv.Close()

	c := NewLLMClassifier(llmTestConfig(srv.URL))

	// First batch fails and falls back to rules: "Buying AMZN" is
	// bullish by keyword, "lol TSLA" is not. Second batch succeeds.
	items := []Item{
		{Ticker: "AMZN", Text: "Buying AMZN here"},
		{Ticker: "TSLA", Text: "lol TSLA bagholders"},
		{Ticker: "AAPL", Text: "Buying AAPL here"},
		{Ticker: "NVDA", Text: "Buying NVDA here"},
	}
	got := c.Classify(context.Background(), items)

	if !got[0] {
		t.Error("Expected fallback rules to mark first item bullish")
	}
	if got[1] {
		t.Error("Expected fallback rules to mark sarcastic item not bullish")
	}
	if got[2] || got[3] {
		t.Error("Expected second batch to follow the LLM's empty reply")
	}
}

func TestLLMClassifyUnparseableReplyFallsBack(t *testing.T) {
	t.Setenv("TEST_LLM_KEY", "test-key")

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, chatResponse("Let me analyze these tweets for you..."))
	}))
	defer srv.Close()

	c := NewLLMClassifier(llmTestConfig(srv.URL))

	got := c.Classify(context.Background(), []Item{
		{Ticker: "AMZN", Text: "Buying AMZN here"},
	})

	if !got[0] {
		t.Error("Expected fallback rules after unparseable reply")
	}
}

func TestParseIndices(t *testing.T) {
	cases := []struct {
		in   string
		want []int
		ok   bool
	}{
		{"[1, 4, 6]", []int{1, 4, 6}, true},
		{"[]", []int{}, true},
		{"```json\n[2]\n```", []int{2}, true},
		{"  [3]  ", []int{3}, true},
		{"Based on my analysis: [1]", nil, false},
	}

	for _, tc := range cases {
		got, err := parseIndices(tc.in)
		if tc.ok && err != nil {
			t.Errorf("parseIndices(%q) unexpected error: %v", tc.in, err)
			continue
		}
		if !tc.ok {
			if err == nil {
				t.Errorf("parseIndices(%q) expected error", tc.in)
			}
			continue
		}
		if len(got) != len(tc.want) {
			t.Errorf("parseIndices(%q) = %v, want %v", tc.in, got, tc.want)
			continue
		}
		for i := range tc.want {
			if got[i] != tc.want[i] {
				t.Errorf("parseIndices(%q) = %v, want %v", tc.in, got, tc.want)
				break
			}
		}
	}
}
