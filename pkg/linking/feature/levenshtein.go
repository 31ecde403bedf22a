package feature

import (
	"context"
	"strings"

	"github.com/agnivade/levenshtein"

	"github.com/gryn010/inception/pkg/linking"
)

// Levenshtein sets levQuery, levMention and levContext to the edit distance
// between the lowercased label and the query, the mention and the joined
// mention context. Empty inputs leave the feature untouched.
type Levenshtein struct{}

func (Levenshtein) Name() string { return NameLevenshtein }

func (Levenshtein) Apply(_ context.Context, c *linking.CandidateEntity) error {
	label := c.LowerLabel()
	if c.Query != "" {
		c.Features.LevQuery = levenshtein.ComputeDistance(label, linking.Lower(c.Locale, c.Query))
	}
	if c.Mention != "" {
		c.Features.LevMention = levenshtein.ComputeDistance(label, linking.Lower(c.Locale, c.Mention))
	}
	if len(c.MentionContext) > 0 {
		c.Features.LevContext = levenshtein.ComputeDistance(label, strings.Join(c.MentionContext, " "))
	}
	return nil
}
