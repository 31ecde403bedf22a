package feature

import (
	"context"
	"unicode"
	"unicode/utf8"

	"github.com/clipperhouse/uax29/v2/words"
	"golang.org/x/text/unicode/norm"

	"github.com/gryn010/inception/pkg/linking"
)

// Signature scores how many distinct mention-context tokens also occur in the
// label or description of the candidate, relative to the number of distinct
// context tokens.
type Signature struct{}

func (Signature) Name() string { return NameSignature }

func (Signature) Apply(_ context.Context, c *linking.CandidateEntity) error {
	if len(c.MentionContext) == 0 {
		return nil
	}

	h := c.Handle()
	signature := make(map[string]struct{})
	for _, text := range []string{h.Label, h.Description} {
		for _, tok := range Tokenize(c.Locale, text) {
			signature[tok] = struct{}{}
		}
	}

	distinct := make(map[string]struct{}, len(c.MentionContext))
	overlap := 0
	for _, tok := range c.MentionContext {
		tok = norm.NFKC.String(tok)
		if _, ok := distinct[tok]; ok {
			continue
		}
		distinct[tok] = struct{}{}
		if _, ok := signature[tok]; ok {
			overlap++
		}
	}

	c.Features.SignatureOverlapScore = float64(overlap) / float64(len(distinct))
	return nil
}

// Tokenize splits text into NFKC-normalized, lowercased words.
func Tokenize(locale, text string) []string {
	if text == "" {
		return nil
	}
	text = norm.NFKC.String(linking.Lower(locale, text))

	var out []string
	seg := words.FromString(text)
	for seg.Next() {
		w := seg.Value()
		r, _ := utf8.DecodeRuneInString(w)
		if unicode.IsLetter(r) || unicode.IsNumber(r) {
			out = append(out, w)
		}
	}
	return out
}
