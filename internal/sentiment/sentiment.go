package sentiment

import "context"

// Item is one classification input: a tweet text paired with the
// ticker and company it was matched to.
type Item struct {
	Ticker  string
	Company string
	Text    string
}

// Classifier decides, per item, whether the author expresses genuine
// bullish conviction toward the matched stock. The result slice is
// aligned with the input.
type Classifier interface {
	Classify(ctx context.Context, items []Item) []bool
}
