package linking

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/gryn010/inception/pkg/common"
)

func entity(id, label string, mutate func(*Features)) *CandidateEntity {
	c := NewCandidateEntity(common.KBHandle{Identifier: id, Label: label}, "", "", nil, "en")
	if mutate != nil {
		mutate(&c.Features)
	}
	return c
}

func TestCompareCandidates_KeyOrder(t *testing.T) {
	tests := []struct {
		name   string
		first  *CandidateEntity
		second *CandidateEntity
	}{
		{
			name:   "closer to query or mention",
			first:  entity("b", "b", func(f *Features) { f.LevQuery = 5; f.LevMention = 1 }),
			second: entity("a", "a", func(f *Features) { f.LevQuery = 2; f.LevMention = 3; f.SignatureOverlapScore = 1 }),
		},
		{
			name:   "higher signature overlap",
			first:  entity("b", "b", func(f *Features) { f.SignatureOverlapScore = 0.5 }),
			second: entity("a", "a", func(f *Features) { f.SignatureOverlapScore = 0.25; f.LevContext = 0 }),
		},
		{
			name:   "closer context",
			first:  entity("b", "b", func(f *Features) { f.LevContext = 3 }),
			second: entity("a", "a", func(f *Features) { f.LevContext = 4; f.Frequency = 100 }),
		},
		{
			name:   "more frequent",
			first:  entity("b", "b", func(f *Features) { f.Frequency = 10 }),
			second: entity("a", "a", func(f *Features) { f.Frequency = 9; f.NumRelatedRelations = 100 }),
		},
		{
			name:   "more relations",
			first:  entity("b", "b", func(f *Features) { f.NumRelatedRelations = 2 }),
			second: entity("a", "a", func(f *Features) { f.NumRelatedRelations = 1; f.IDRank = 1 }),
		},
		{
			name:   "lower id rank",
			first:  entity("b", "b", func(f *Features) { f.IDRank = 42 }),
			second: entity("a", "a", func(f *Features) { f.IDRank = 4711 }),
		},
		{
			name:   "lowercased label",
			first:  entity("b", "alpha", nil),
			second: entity("a", "Beta", nil),
		},
		{
			name:   "identifier when labels tie",
			first:  entity("a", "Paris", nil),
			second: entity("b", "paris", nil),
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if c := CompareCandidates(tc.first, tc.second); c >= 0 {
				t.Fatalf("expected first to rank before second, got %d", c)
			}
			if c := CompareCandidates(tc.second, tc.first); c <= 0 {
				t.Fatalf("comparison is not antisymmetric, got %d", c)
			}
		})
	}
}

func TestCompareCandidates_TotalOrderOnLabel(t *testing.T) {
	a := entity("x", "Zürich", nil)
	b := entity("y", "amsterdam", nil)
	candidates := []*CandidateEntity{a, b}
	SortCandidates(candidates)
	if candidates[0] != b {
		t.Fatalf("expected amsterdam first, got %s", candidates[0].Handle().Label)
	}
	if CompareCandidates(a, a) != 0 {
		t.Fatal("candidate must compare equal to itself")
	}
}

func TestToResults_TruncatesAndSnapshots(t *testing.T) {
	candidates := make([]*CandidateEntity, 0, 10)
	for i := range 10 {
		id := fmt.Sprintf("kb:%02d", i)
		candidates = append(candidates, entity(id, id, func(f *Features) {
			f.Frequency = int64(i)
			f.SetExtra("source", "test")
		}))
	}
	SortCandidates(candidates)

	results := toResults(candidates, 3)
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	if results[0].Handle.Identifier != "kb:09" {
		t.Fatalf("expected most frequent first, got %s", results[0].Handle.Identifier)
	}

	var snapshot map[string]any
	if err := json.Unmarshal([]byte(results[0].DebugInfo), &snapshot); err != nil {
		t.Fatalf("debug info is not json: %v", err)
	}
	if snapshot["frequency"] != float64(9) {
		t.Fatalf("unexpected snapshot %v", snapshot)
	}
	extras, _ := snapshot["extras"].(map[string]any)
	if extras["source"] != "test" {
		t.Fatalf("extras missing from snapshot %v", snapshot)
	}

	if got := len(toResults(candidates, 100)); got != 10 {
		t.Fatalf("expected all 10 results, got %d", got)
	}
}

func TestSanitizeQuery(t *testing.T) {
	tests := map[string]string{
		"Ber*?lin":  "Berlin",
		"  Paris* ": "Paris",
		"??":        "",
		"":          "",
		"New York":  "New York",
	}
	for in, want := range tests {
		if got := SanitizeQuery(in); got != want {
			t.Fatalf("SanitizeQuery(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestCandidateLocale(t *testing.T) {
	h := common.KBHandle{Identifier: "x", Label: "ISTANBUL"}
	if got := NewCandidateEntity(h, "", "", nil, "").Locale; got != DefaultLocale {
		t.Fatalf("expected default locale, got %q", got)
	}
	h.Language = "tr"
	c := NewCandidateEntity(h, "", "", nil, "de")
	if c.Locale != "tr" || c.LowerLabel() != "ıstanbul" {
		t.Fatalf("unexpected locale %q label %q", c.Locale, c.LowerLabel())
	}
}
