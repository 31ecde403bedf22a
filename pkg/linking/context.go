package linking

import (
	"sort"

	"github.com/gryn010/inception/pkg/document"
)

// ContextProvider gives access to the sentences and tokens of the document a
// mention was found in. *document.Document implements it.
type ContextProvider interface {
	SentenceCovering(offset int) (document.Span, bool)
	TokensCovered(span document.Span) []document.Token
}

// ExtractContext returns the mention context: up to windowSize tokens left of
// the mention, nearest first, followed by up to windowSize tokens right of
// it, in text order. Tokens are lowercased for locale and stopwords removed
// after the window is applied. The boolean is false when no sentence covers
// begin; the context is empty then.
func ExtractContext(doc ContextProvider, begin, mentionLength, windowSize int, stopwords StopwordSet, locale string) ([]string, bool) {
	if doc == nil {
		return []string{}, false
	}
	sentence, ok := doc.SentenceCovering(begin)
	if !ok {
		return []string{}, false
	}
	tokens := doc.TokensCovered(sentence)

	left := make([]document.Token, 0, windowSize)
	right := make([]document.Token, 0, windowSize)
	end := begin + mentionLength
	for _, t := range tokens {
		switch {
		case t.End <= begin:
			left = append(left, t)
		case t.Begin >= end:
			right = append(right, t)
		}
	}
	sort.SliceStable(left, func(i, j int) bool {
		return left[i].Begin > left[j].Begin
	})

	out := make([]string, 0, 2*max(windowSize, 0))
	out = appendContext(out, left, windowSize, stopwords, locale)
	out = appendContext(out, right, windowSize, stopwords, locale)
	return out, true
}

func appendContext(out []string, tokens []document.Token, limit int, stopwords StopwordSet, locale string) []string {
	if limit <= 0 {
		return out
	}
	if len(tokens) > limit {
		tokens = tokens[:limit]
	}
	for _, t := range tokens {
		word := Lower(locale, t.Text)
		if stopwords.Contains(word) {
			continue
		}
		out = append(out, word)
	}
	return out
}
