package feature

import (
	"context"
	"fmt"

	"github.com/gryn010/inception/pkg/linking"
	"github.com/gryn010/inception/pkg/store"
)

// EntityStats copies the usage frequency and relation count the store keeps
// for the candidate.
type EntityStats struct {
	Lookup store.StatsLookup
}

func (EntityStats) Name() string { return NameEntityStats }

func (g EntityStats) Apply(ctx context.Context, c *linking.CandidateEntity) error {
	if g.Lookup == nil {
		return nil
	}
	h := c.Handle()
	stats, err := g.Lookup.EntityStats(ctx, h.KB, h.Identifier)
	if err != nil {
		return fmt.Errorf("failed to load stats of %s: %w", h.Identifier, err)
	}
	c.Features.Frequency = stats.Frequency
	c.Features.NumRelatedRelations = stats.RelatedRelations
	return nil
}
