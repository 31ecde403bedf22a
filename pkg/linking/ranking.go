package linking

import (
	"cmp"
	"sort"

	"github.com/gryn010/inception/pkg/common"
)

// Result is one ranked candidate. DebugInfo holds the JSON feature snapshot.
type Result struct {
	Handle    common.KBHandle `json:"handle"`
	DebugInfo string          `json:"debug_info"`
}

type rankingKey func(a, b *CandidateEntity) int

func ascending[T cmp.Ordered](extract func(*CandidateEntity) T) rankingKey {
	return func(a, b *CandidateEntity) int {
		return cmp.Compare(extract(a), extract(b))
	}
}

func descending[T cmp.Ordered](extract func(*CandidateEntity) T) rankingKey {
	return func(a, b *CandidateEntity) int {
		return cmp.Compare(extract(b), extract(a))
	}
}

var baselineRanking = []rankingKey{
	ascending(func(c *CandidateEntity) int { return min(c.Features.LevQuery, c.Features.LevMention) }),
	descending(func(c *CandidateEntity) float64 { return c.Features.SignatureOverlapScore }),
	ascending(func(c *CandidateEntity) int { return c.Features.LevContext }),
	descending(func(c *CandidateEntity) int64 { return c.Features.Frequency }),
	descending(func(c *CandidateEntity) int64 { return c.Features.NumRelatedRelations }),
	ascending(func(c *CandidateEntity) int64 { return c.Features.IDRank }),
	ascending(func(c *CandidateEntity) string { return c.LowerLabel() }),
	// distinct handles never tie
	ascending(func(c *CandidateEntity) string { return c.handle.Identifier }),
}

// CompareCandidates orders candidates by the baseline ranking keys. It
// returns a negative number when a ranks before b.
func CompareCandidates(a, b *CandidateEntity) int {
	for _, key := range baselineRanking {
		if c := key(a, b); c != 0 {
			return c
		}
	}
	return 0
}

func SortCandidates(candidates []*CandidateEntity) {
	sort.SliceStable(candidates, func(i, j int) bool {
		return CompareCandidates(candidates[i], candidates[j]) < 0
	})
}

func toResults(sorted []*CandidateEntity, limit int) []Result {
	if limit >= 0 && len(sorted) > limit {
		sorted = sorted[:limit]
	}
	results := make([]Result, 0, len(sorted))
	for _, c := range sorted {
		results = append(results, Result{
			Handle:    c.handle,
			DebugInfo: c.Features.Snapshot(),
		})
	}
	return results
}
