package sentiment

import (
	"context"
	"regexp"
	"strings"

	"fintwit-analyzer/internal/logger"
)

// Verdict is a single classification outcome with the rule that
// produced it, for log correlation.
type Verdict struct {
	Bullish bool
	Rule    string
}

// Stories about someone else's trade carry no authorial conviction.
var thirdPartyPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(?:he|she|they|my (?:friend|buddy|boy|girl|pal|colleague)|someone)\s+(?:just\s+)?(?:told me|said|bought|sold|owns|thinks)`),
	regexp.MustCompile(`(?i)(?:told me|heard|was told)\s+(?:he|she|they)`),
	regexp.MustCompile(`(?i)out to (?:dinner|lunch|breakfast)\s+with.*(?:bought|sold|told|said)`),
	regexp.MustCompile(`(?i)talked to.*(?:bought|sold|told|said)`),
	regexp.MustCompile(`(?i)(?:because|since)\s+(?:he|she|they)\s+thought.*(?:funny|ridiculous|silly|joke)`),
	regexp.MustCompile(`(?i)thought.*was\s+(?:funny|ridiculous|silly|a joke)`),
}

// Matched case-insensitively as substrings of the lowered text.
var sarcasticIndicators = []string{
	"lol", "lmao", "rofl", "😂", "🤡", "clown", "cope", "copium",
	"making fun", "ridiculous", "insane that", "crazy that", "hilarious", "joke",
	"good luck to you all", "my favorite genre", "odd strategy", "what an", "in the dark",
	"absolute boy", "funny",
}

var skepticalPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)up \d+% .*(on|after).*(guide|guidance).*(2030|2035|2040)`),
	regexp.MustCompile(`(?i)guide.*(far away|distant|years? away)`),
	regexp.MustCompile(`(?i)pumping on.*nothing`),
	regexp.MustCompile(`(?i)bubble`),
	regexp.MustCompile(`(?i)overvalued`),
	regexp.MustCompile(`(?i)overhyped`),
	regexp.MustCompile(`(?i)nonsense`),
	regexp.MustCompile(`(?i)as they (go|drop|fall) down`),
	regexp.MustCompile(`(?i)tweeting about buying.*as they`),
}

var strongBullishPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(?:have to|need to|must|should) own`),
	regexp.MustCompile(`(?i)irresponsible not to`),
	regexp.MustCompile(`(?i)literally what are you doing`),
	regexp.MustCompile(`(?i)if you (?:don't|do not) own.*what are you doing`),
	regexp.MustCompile(`(?i)(?:buying|bought|added to|accumulating)`),
	regexp.MustCompile(`(?i)going long`),
	regexp.MustCompile(`(?i)loading up`),
	regexp.MustCompile(`(?i)doubling down`),
	regexp.MustCompile(`(?i)national emergency`),
	regexp.MustCompile(`(?i)bullish (?:on|about)`),
	regexp.MustCompile(`(?i)love this`),
	regexp.MustCompile(`(?i)top pick`),
	regexp.MustCompile(`(?i)favorite`),
	regexp.MustCompile(`(?i)best (?:in class|idea)`),
	regexp.MustCompile(`(?i)(?:works|will work) from here`),
	regexp.MustCompile(`(?i)(?:huge|big|massive) (?:opportunity|upside|potential)`),
	regexp.MustCompile(`(?i)(?:undervalued|underpriced|cheap here)`),
	regexp.MustCompile(`(?i)(?:going higher|heading to|target)`),
	regexp.MustCompile(`(?i)(?:strong|great|huge) growth`),
	regexp.MustCompile(`(?i)game[- ]changer`),
	regexp.MustCompile(`(?i)catalysts`),
	regexp.MustCompile(`(?i)momentum`),
}

// Price reporting without a position is not a recommendation.
var neutralPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(?:trading|sitting) at`),
	regexp.MustCompile(`(?i)closed at`),
	regexp.MustCompile(`(?i)reached`),
	regexp.MustCompile(`(?i)broke through`),
	regexp.MustCompile(`(?i)currently`),
}

var uncertaintyPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(?:might|maybe|possibly|could be)`),
	regexp.MustCompile(`(?i)watching`),
	regexp.MustCompile(`(?i)monitoring`),
	regexp.MustCompile(`(?i)waiting for`),
	regexp.MustCompile(`(?i)depends on`),
}

// Heuristic is the rule-based classifier. It is deliberately
// conservative: disqualifiers run before bullish signals, and anything
// without an explicit conviction signal is not bullish.
type Heuristic struct{}

func NewHeuristic() *Heuristic {
	return &Heuristic{}
}

// Evaluate classifies one text. Rule groups run in a fixed order;
// the first group that fires decides.
func (h *Heuristic) Evaluate(text string) Verdict {
	if strings.TrimSpace(text) == "" {
		return Verdict{Bullish: false, Rule: "empty"}
	}

	lower := strings.ToLower(text)

	for _, re := range thirdPartyPatterns {
		if re.MatchString(text) {
			return Verdict{Bullish: false, Rule: "third_party"}
		}
	}

	for _, ind := range sarcasticIndicators {
		if strings.Contains(lower, ind) {
			return Verdict{Bullish: false, Rule: "sarcasm"}
		}
	}

	for _, re := range skepticalPatterns {
		if re.MatchString(text) {
			return Verdict{Bullish: false, Rule: "skeptical"}
		}
	}

	for _, re := range strongBullishPatterns {
		if re.MatchString(text) {
			return Verdict{Bullish: true, Rule: "strong_bullish"}
		}
	}

	for _, re := range neutralPatterns {
		if re.MatchString(text) {
			return Verdict{Bullish: false, Rule: "neutral"}
		}
	}

	for _, re := range uncertaintyPatterns {
		if re.MatchString(text) {
			return Verdict{Bullish: false, Rule: "uncertainty"}
		}
	}

	return Verdict{Bullish: false, Rule: "no_signal"}
}

// Classify implements Classifier.
func (h *Heuristic) Classify(ctx context.Context, items []Item) []bool {
	results := make([]bool, len(items))
	for i, item := range items {
		v := h.Evaluate(item.Text)
		results[i] = v.Bullish
		logger.Verdict(ctx, item.Ticker, v.Bullish, v.Rule, "company", item.Company)
	}
	return results
}
