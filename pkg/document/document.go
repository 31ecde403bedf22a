// Package document segments plain text into sentences and word tokens so that
// the tokens around a mention can be looked up by character offset.
package document

import (
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/clipperhouse/uax29/v2/sentences"
	"github.com/clipperhouse/uax29/v2/words"
)

// Span is a half-open byte range [Begin, End) of the document text.
type Span struct {
	Begin int `json:"begin"`
	End   int `json:"end"`
}

// Covers reports whether offset lies inside the span.
func (s Span) Covers(offset int) bool {
	return offset >= s.Begin && offset < s.End
}

// Token is a word of the document together with its span.
type Token struct {
	Span
	Text string `json:"text"`
}

// Document is an immutable, segmented text. It is safe for concurrent use.
type Document struct {
	text      string
	sentences []Span
	tokens    []Token
}

// New segments text using the Unicode sentence and word boundary rules.
// Whitespace and punctuation segments are not kept as tokens.
func New(text string) *Document {
	d := &Document{text: text}

	pos := 0
	sents := sentences.FromString(text)
	for sents.Next() {
		seg := sents.Value()
		trimmed := strings.TrimRightFunc(seg, unicode.IsSpace)
		lead := len(trimmed) - len(strings.TrimLeftFunc(trimmed, unicode.IsSpace))
		if len(trimmed) > lead {
			d.sentences = append(d.sentences, Span{Begin: pos + lead, End: pos + len(trimmed)})
		}
		pos += len(seg)
	}

	pos = 0
	toks := words.FromString(text)
	for toks.Next() {
		seg := toks.Value()
		if isWord(seg) {
			d.tokens = append(d.tokens, Token{
				Span: Span{Begin: pos, End: pos + len(seg)},
				Text: seg,
			})
		}
		pos += len(seg)
	}

	return d
}

func isWord(seg string) bool {
	r, _ := utf8.DecodeRuneInString(seg)
	return unicode.IsLetter(r) || unicode.IsNumber(r)
}

func (d *Document) Text() string {
	return d.text
}

func (d *Document) Sentences() []Span {
	return d.sentences
}

func (d *Document) Tokens() []Token {
	return d.tokens
}

// SentenceCovering returns the sentence that contains offset.
func (d *Document) SentenceCovering(offset int) (Span, bool) {
	i := sort.Search(len(d.sentences), func(i int) bool {
		return d.sentences[i].End > offset
	})
	if i < len(d.sentences) && d.sentences[i].Covers(offset) {
		return d.sentences[i], true
	}
	return Span{}, false
}

// TokensCovered returns the tokens lying completely inside s, in text order.
func (d *Document) TokensCovered(s Span) []Token {
	start := sort.Search(len(d.tokens), func(i int) bool {
		return d.tokens[i].Begin >= s.Begin
	})
	out := make([]Token, 0)
	for _, t := range d.tokens[start:] {
		if t.Begin >= s.End {
			break
		}
		if t.End <= s.End {
			out = append(out, t)
		}
	}
	return out
}

// CoveredText returns the text of s, clamped to the document bounds.
func (d *Document) CoveredText(s Span) string {
	begin := max(0, min(s.Begin, len(d.text)))
	end := max(begin, min(s.End, len(d.text)))
	return d.text[begin:end]
}
