package mention

import (
	"regexp"

	"fintwit-analyzer/internal/directory"
)

// Words that double as company names in the SEC dataset but are too
// generic to treat as a mention on their own.
var commonWords = map[string]bool{
	"CORP": true, "INC": true, "COM": true, "LLC": true, "LTD": true,
	"CO": true, "THE": true, "AND": true, "FOR": true, "GROUP": true,
	"HOLDINGS": true, "CAPITAL": true, "FINANCIAL": true,
	"SERVICES": true, "BANK": true,
}

type candidate struct {
	entry     directory.Entry
	cashtagRE *regexp.Regexp
	tickerRE  *regexp.Regexp // nil for single-letter tickers
	nameRE    *regexp.Regexp // nil for short or generic names
}

// Matcher finds company mentions in tweet text. Each entry is checked
// with three rules in turn: explicit cashtag, bare ticker as a whole
// word, then the cleaned company name. Entries are checked in
// directory order, so the first entry matching any rule wins.
type Matcher struct {
	candidates []candidate
}

// NewMatcher precompiles match patterns for every directory entry.
func NewMatcher(dir *directory.Directory) *Matcher {
	m := &Matcher{candidates: make([]candidate, 0, len(dir.Entries))}

	for _, e := range dir.Entries {
		c := candidate{
			entry:     e,
			cashtagRE: regexp.MustCompile(`(?i)\$` + regexp.QuoteMeta(e.Ticker) + `\b`),
		}

		// Single-letter tickers like F or A appear constantly in prose.
		// Those only match through a cashtag.
		if len(e.Ticker) > 1 {
			c.tickerRE = regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(e.Ticker) + `\b`)
		}

		// Name matching needs enough length and specificity to be
		// meaningful, with an optional possessive ("Amazon's").
		if len(e.CleanedName) >= 4 && !commonWords[e.CleanedName] {
			c.nameRE = regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(e.CleanedName) + `(?:'S)?\b`)
		}

		m.candidates = append(m.candidates, c)
	}

	return m
}

// FindFirstMatch returns the first company in directory order that the
// text mentions through any of the three rules.
func (m *Matcher) FindFirstMatch(text string) (directory.Entry, bool) {
	for _, c := range m.candidates {
		if c.cashtagRE.MatchString(text) {
			return c.entry, true
		}
		if c.tickerRE != nil && c.tickerRE.MatchString(text) {
			return c.entry, true
		}
		if c.nameRE != nil && c.nameRE.MatchString(text) {
			return c.entry, true
		}
	}
	return directory.Entry{}, false
}

// ContainsAnyMatch reports whether the text mentions any company.
func (m *Matcher) ContainsAnyMatch(text string) bool {
	_, found := m.FindFirstMatch(text)
	return found
}
