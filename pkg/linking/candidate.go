package linking

import (
	"context"
	"encoding/json"
	"fmt"
	"math"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/gryn010/inception/pkg/common"
)

const DefaultLocale = "en"

// FeatureGenerator computes one or more features of a candidate. Generators
// are invoked concurrently for different candidates and must only write to
// the candidate they are given.
type FeatureGenerator interface {
	Apply(ctx context.Context, candidate *CandidateEntity) error
}

// FeatureGeneratorFunc adapts a function to FeatureGenerator.
type FeatureGeneratorFunc func(ctx context.Context, candidate *CandidateEntity) error

func (f FeatureGeneratorFunc) Apply(ctx context.Context, candidate *CandidateEntity) error {
	return f(ctx, candidate)
}

// Features is the feature bag of a candidate. Baseline features have fixed
// fields; generator-specific values go into Extras.
type Features struct {
	LevQuery              int            `json:"levQuery"`
	LevMention            int            `json:"levMention"`
	LevContext            int            `json:"levContext"`
	SignatureOverlapScore float64        `json:"signatureOverlapScore"`
	Frequency             int64          `json:"frequency"`
	NumRelatedRelations   int64          `json:"numRelatedRelations"`
	IDRank                int64          `json:"idRank"`
	Extras                map[string]any `json:"extras,omitempty"`
}

// DefaultFeatures returns a bag where every baseline feature ranks a
// candidate last.
func DefaultFeatures() Features {
	return Features{
		LevQuery:   math.MaxInt,
		LevMention: math.MaxInt,
		LevContext: math.MaxInt,
		IDRank:     math.MaxInt64,
	}
}

// SetExtra stores a generator-defined feature, overwriting any earlier value.
func (f *Features) SetExtra(name string, value any) {
	if f.Extras == nil {
		f.Extras = make(map[string]any)
	}
	f.Extras[name] = value
}

// Snapshot serializes the bag for debug display.
func (f Features) Snapshot() string {
	b, err := json.Marshal(f)
	if err != nil {
		return fmt.Sprintf(`{"error":%q}`, err.Error())
	}
	return string(b)
}

// CandidateEntity wraps a retrieved handle for the duration of one ranking
// pass. The handle is never modified; generators write to Features only.
type CandidateEntity struct {
	handle     common.KBHandle
	lowerLabel string

	Query          string
	Mention        string
	MentionContext []string
	Locale         string
	Features       Features
}

// NewCandidateEntity builds a candidate with default features. The locale is
// the handle language, then requestLocale, then DefaultLocale.
func NewCandidateEntity(handle common.KBHandle, query, mention string, mentionContext []string, requestLocale string) *CandidateEntity {
	locale := handle.Language
	if locale == "" {
		locale = requestLocale
	}
	if locale == "" {
		locale = DefaultLocale
	}
	return &CandidateEntity{
		handle:         handle,
		lowerLabel:     Lower(locale, handle.Label),
		Query:          query,
		Mention:        mention,
		MentionContext: mentionContext,
		Locale:         locale,
		Features:       DefaultFeatures(),
	}
}

func (c *CandidateEntity) Handle() common.KBHandle {
	return c.handle
}

// LowerLabel returns the handle label lowercased for the candidate locale.
func (c *CandidateEntity) LowerLabel() string {
	return c.lowerLabel
}

// Lower lowercases s using the rules of locale. A Caser is stateful, so a new
// one is created per call.
func Lower(locale, s string) string {
	if s == "" {
		return s
	}
	tag, err := language.Parse(locale)
	if err != nil {
		tag = language.Und
	}
	return cases.Lower(tag).String(s)
}
