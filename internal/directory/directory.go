package directory

import (
	"context"
	"regexp"
	"strings"

	"fintwit-analyzer/internal/logger"
)

// Entry is one company in the reference directory.
type Entry struct {
	Ticker      string // uppercase, unique key
	RawName     string // title as published
	CleanedName string // suffix-stripped, uppercase
}

// Source supplies raw {ticker, title} pairs.
type Source interface {
	Fetch(ctx context.Context) ([]RawEntry, error)
}

// RawEntry mirrors one record of the SEC company tickers dataset.
type RawEntry struct {
	CIK    int    `json:"cik_str"`
	Ticker string `json:"ticker"`
	Title  string `json:"title"`
}

// Directory is the loaded, immutable company list. Matching iterates
// entries in load order; earlier entries win ties.
type Directory struct {
	Entries []Entry
}

// State designations appear with slashes and no word boundaries,
// e.g. "PNC FINANCIAL SERVICES GROUP /PA/".
var stateDesignations = []string{"/DE/", "/PA/", "/MD/", "/NV/", "/CA/", "/TX/", "/NY/", "/FL/"}

// Longer suffixes first so CORPORATION is stripped before CORP would
// leave "ORATION" behind.
var suffixPatterns = buildSuffixPatterns([]string{
	"CORPORATION", "INCORPORATED", "COMPANY", "HOLDINGS", "PLATFORMS",
	"CORP", "INC", "COM", "LLC", "LTD", "LIMITED",
	"PLC", "CO", "LP", `L\.P\.`, "GROUP",
	"SA", "AG", "NV", "BV", "SE",
})

var (
	whitespaceRE = regexp.MustCompile(`\s+`)
	trailingRE   = regexp.MustCompile(`[,.\-\s]+$`)
	allNumericRE = regexp.MustCompile(`^\d+$`)
)

func buildSuffixPatterns(suffixes []string) []*regexp.Regexp {
	patterns := make([]*regexp.Regexp, 0, len(suffixes))
	for _, s := range suffixes {
		// Comma/spaces before the suffix plus an optional trailing period.
		patterns = append(patterns, regexp.MustCompile(`(?i)[,\s]+\b`+s+`\b\.?|\b`+s+`\b\.?`))
	}
	return patterns
}

// CleanName derives the matchable company name from a raw SEC title.
// Pure and idempotent: CleanName(CleanName(x)) == CleanName(x).
func CleanName(title string) string {
	cleaned := strings.ToUpper(strings.TrimSpace(title))

	for _, state := range stateDesignations {
		cleaned = strings.ReplaceAll(cleaned, state, "")
	}

	for _, re := range suffixPatterns {
		cleaned = re.ReplaceAllString(cleaned, "")
	}

	cleaned = whitespaceRE.ReplaceAllString(cleaned, " ")
	cleaned = strings.TrimSpace(cleaned)
	cleaned = trailingRE.ReplaceAllString(cleaned, "")

	return cleaned
}

// Load fetches the directory from the source. A fetch failure degrades
// to an empty directory so downstream matching returns no matches
// instead of failing the pipeline.
func Load(ctx context.Context, src Source) *Directory {
	raw, err := src.Fetch(ctx)
	if err != nil {
		logger.ErrorWithErr(ctx, "Failed to load company directory", err)
		return &Directory{}
	}

	entries := make([]Entry, 0, len(raw))
	for _, r := range raw {
		if r.Ticker == "" || r.Title == "" {
			continue
		}
		cleaned := CleanName(r.Title)
		// Skip names that cleaned down to nothing meaningful.
		if len(cleaned) <= 1 || allNumericRE.MatchString(cleaned) {
			continue
		}
		entries = append(entries, Entry{
			Ticker:      strings.ToUpper(r.Ticker),
			RawName:     r.Title,
			CleanedName: cleaned,
		})
	}

	logger.Info(ctx, "Loaded company directory", "companies", len(entries))
	return &Directory{Entries: entries}
}
