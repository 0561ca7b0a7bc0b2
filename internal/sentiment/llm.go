package sentiment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"fintwit-analyzer/internal/logger"
	"fintwit-analyzer/internal/store"
	itrace "fintwit-analyzer/internal/trace"
)

// LLMClassifier asks an OpenAI-compatible chat model whether each
// tweet expresses genuine bullish conviction. Tweets go up in batches;
// the model replies with a JSON array of 1-indexed positions of the
// bullish ones. Any batch failure falls back to the rule-based
// classifier for that batch only.
type LLMClassifier struct {
	baseURL   string
	model     string
	apiKeyEnv string
	batchSize int
	limiter   *rate.Limiter
	client    *http.Client
	fallback  *Heuristic
}

func NewLLMClassifier(cfg *store.Config) *LLMClassifier {
	rpm := cfg.LLM.RequestsPerMin
	return &LLMClassifier{
		baseURL:   strings.TrimRight(cfg.LLM.BaseURL, "/"),
		model:     cfg.LLM.Model,
		apiKeyEnv: cfg.LLM.APIKeyEnv,
		batchSize: cfg.LLM.BatchSize,
		limiter:   rate.NewLimiter(rate.Limit(float64(rpm)/60.0), 1),
		client:    &http.Client{Timeout: time.Duration(cfg.LLM.TimeoutSec) * time.Second},
		fallback:  NewHeuristic(),
	}
}

const promptHeader = `You are an expert in financial sentiment analysis. Analyze each tweet below and determine if:
1) The ticker mentioned is ACTUALLY referring to a stock (not a common word)
2) The AUTHOR expresses BULLISH sentiment toward that stock

%s

For each tweet, apply strict contextual reasoning:
- Reject tickers that are really common English words in context (apply the substitution test: replace the word with a stock name and check the sentence still makes sense).
- Reject sarcasm, mockery, or theatrical descriptions of losses.
- Reject reports of someone else's trade without personal endorsement.
- Accept only explicit personal conviction: direct ownership action, strong conviction language, or a concrete thesis with upside.
- When in doubt, mark NOT bullish.

Respond with ONLY a JSON array of the 1-indexed positions of the bullish tweets, e.g. [1, 4, 6] or []. No explanations, no other text.`

// Classify implements Classifier.
func (c *LLMClassifier) Classify(ctx context.Context, items []Item) []bool {
	results := make([]bool, len(items))

	totalBatches := (len(items) + c.batchSize - 1) / c.batchSize
	for start := 0; start < len(items); start += c.batchSize {
		end := start + c.batchSize
		if end > len(items) {
			end = len(items)
		}
		batch := items[start:end]
		batchNum := start/c.batchSize + 1

		indices, err := c.classifyBatch(ctx, batch)
		if err != nil {
			logger.Warn(ctx, "LLM batch failed, falling back to rules",
				"batch", batchNum, "total_batches", totalBatches, "error", err.Error())
			for i, item := range batch {
				v := c.fallback.Evaluate(item.Text)
				results[start+i] = v.Bullish
				logger.Verdict(ctx, item.Ticker, v.Bullish, "fallback_"+v.Rule, "company", item.Company)
			}
			continue
		}

		for _, idx := range indices {
			if idx >= 1 && idx <= len(batch) {
				results[start+idx-1] = true
			}
		}
		logger.Debug(ctx, "LLM batch classified",
			"batch", batchNum, "total_batches", totalBatches, "bullish", len(indices))
	}

	return results
}

func (c *LLMClassifier) classifyBatch(ctx context.Context, batch []Item) ([]int, error) {
	apiKey := os.Getenv(c.apiKeyEnv)
	if apiKey == "" {
		return nil, fmt.Errorf("%s missing", c.apiKeyEnv)
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	ctx, span := itrace.StartSpan(ctx, "llm-sentiment-batch")
	defer span.End()

	var sb strings.Builder
	for i, item := range batch {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		if item.Company != "" {
			fmt.Fprintf(&sb, "%d. [%s (%s)] %q", i+1, item.Ticker, item.Company, item.Text)
		} else {
			fmt.Fprintf(&sb, "%d. [%s] %q", i+1, item.Ticker, item.Text)
		}
	}
	prompt := fmt.Sprintf(promptHeader, sb.String())

	body := map[string]any{
		"model":       c.model,
		"messages":    []map[string]string{{"role": "user", "content": prompt}},
		"temperature": 0.0,
		"max_tokens":  500,
	}
	bb, _ := json.Marshal(body)

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/chat/completions", bytes.NewReader(bb))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("llm http %d", resp.StatusCode)
	}

	var r struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&r); err != nil {
		return nil, err
	}
	if len(r.Choices) == 0 {
		return nil, fmt.Errorf("no choices")
	}

	return parseIndices(r.Choices[0].Message.Content)
}

// parseIndices extracts the 1-indexed bullish positions from the model
// reply, tolerating markdown code fences around the JSON.
func parseIndices(content string) ([]int, error) {
	out := strings.TrimSpace(content)
	if strings.Contains(out, "```") {
		out = strings.ReplaceAll(out, "```json", "")
		out = strings.ReplaceAll(out, "```", "")
		out = strings.TrimSpace(out)
	}

	var indices []int
	if err := json.Unmarshal([]byte(out), &indices); err != nil {
		return nil, fmt.Errorf("unparseable llm response: %w", err)
	}
	return indices, nil
}
