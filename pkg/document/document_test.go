package document

import (
	"reflect"
	"testing"
)

func tokenTexts(tokens []Token) []string {
	out := make([]string, 0, len(tokens))
	for _, t := range tokens {
		out = append(out, t.Text)
	}
	return out
}

func TestNew_Segmentation(t *testing.T) {
	tests := []struct {
		name          string
		text          string
		wantSentences int
		wantTokens    []string
	}{
		{
			name:          "empty input",
			text:          "",
			wantSentences: 0,
			wantTokens:    []string{},
		},
		{
			name:          "single sentence",
			text:          "Paris is the capital of France.",
			wantSentences: 1,
			wantTokens:    []string{"Paris", "is", "the", "capital", "of", "France"},
		},
		{
			name:          "multiple sentences",
			text:          "I live in Paris. It is big! Do you?",
			wantSentences: 3,
			wantTokens:    []string{"I", "live", "in", "Paris", "It", "is", "big", "Do", "you"},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			d := New(tc.text)
			if got := len(d.Sentences()); got != tc.wantSentences {
				t.Fatalf("got %d sentences, want %d", got, tc.wantSentences)
			}
			if got := tokenTexts(d.Tokens()); !reflect.DeepEqual(got, tc.wantTokens) {
				t.Fatalf("got tokens %v, want %v", got, tc.wantTokens)
			}
		})
	}
}

func TestTokenOffsetsMatchText(t *testing.T) {
	text := "Grüße aus Köln, sagte sie."
	d := New(text)
	for _, tok := range d.Tokens() {
		if got := text[tok.Begin:tok.End]; got != tok.Text {
			t.Fatalf("token %q has span text %q", tok.Text, got)
		}
	}
}

func TestSentenceCovering(t *testing.T) {
	text := "I live in Paris. Berlin is far away."
	d := New(text)

	s, ok := d.SentenceCovering(10)
	if !ok {
		t.Fatal("expected sentence for offset 10")
	}
	if got := d.CoveredText(s); got != "I live in Paris." {
		t.Fatalf("got sentence %q", got)
	}

	s, ok = d.SentenceCovering(17)
	if !ok {
		t.Fatal("expected sentence for offset 17")
	}
	if got := tokenTexts(d.TokensCovered(s)); !reflect.DeepEqual(got, []string{"Berlin", "is", "far", "away"}) {
		t.Fatalf("got tokens %v", got)
	}

	if _, ok := d.SentenceCovering(len(text) + 5); ok {
		t.Fatal("expected no sentence past the end of the text")
	}
}
