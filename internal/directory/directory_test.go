package directory

import (
	"context"
	"errors"
	"testing"
)

func TestCleanName(t *testing.T) {
	cases := []struct {
		title string
		want  string
	}{
		{"AMAZON COM INC", "AMAZON"},
		{"Apple Inc.", "APPLE"},
		{"DANAHER CORP /DE/", "DANAHER"},
		{"Tesla, Inc.", "TESLA"},
		{"Meta Platforms, Inc.", "META"},
		{"MICROSOFT CORPORATION", "MICROSOFT"},
		{"PNC FINANCIAL SERVICES GROUP /PA/", "PNC FINANCIAL SERVICES"},
		{"NETFLIX INC", "NETFLIX"},
	}

	for _, tc := range cases {
		got := CleanName(tc.title)
		if got != tc.want {
			t.Errorf("CleanName(%q) = %q, want %q", tc.title, got, tc.want)
		}
	}
}

func TestCleanNameIdempotent(t *testing.T) {
	titles := []string{
		"AMAZON COM INC",
		"DANAHER CORP /DE/",
		"Apple Inc.",
		"Alphabet Inc.",
		"BERKSHIRE HATHAWAY INC",
		"JPMORGAN CHASE & CO",
	}

	for _, title := range titles {
		once := CleanName(title)
		twice := CleanName(once)
		if once != twice {
			t.Errorf("CleanName not idempotent for %q: %q != %q", title, once, twice)
		}
	}
}

func TestLoadFiltersDegenerate(t *testing.T) {
	// One valid entry plus names that clean down to digits, to a single
	// character, or carry no ticker at all.
	src := &StaticSource{Records: []RawEntry{
		{CIK: 1, Ticker: "amzn", Title: "AMAZON COM INC"},
		{CIK: 2, Ticker: "NUM", Title: "12345 INC"},
		{CIK: 3, Ticker: "SHRT", Title: "X CORP"},
		{CIK: 4, Ticker: "", Title: "NO TICKER HOLDINGS"},
	}}

	dir := Load(context.Background(), src)

	if len(dir.Entries) != 1 {
		t.Fatalf("Expected 1 entry, got %d", len(dir.Entries))
	}
	e := dir.Entries[0]
	if e.Ticker != "AMZN" {
		t.Errorf("Expected uppercased ticker AMZN, got %s", e.Ticker)
	}
	if e.CleanedName != "AMAZON" {
		t.Errorf("Expected cleaned name AMAZON, got %s", e.CleanedName)
	}
}

func TestLoadDegradesOnError(t *testing.T) {
	src := &StaticSource{Err: errors.New("network down")}

	dir := Load(context.Background(), src)

	if dir == nil {
		t.Fatal("Expected non-nil directory on fetch failure")
	}
	if len(dir.Entries) != 0 {
		t.Errorf("Expected empty directory on fetch failure, got %d entries", len(dir.Entries))
	}
}
