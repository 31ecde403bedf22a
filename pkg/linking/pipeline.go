package linking

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/gryn010/inception/pkg/common"
	"github.com/gryn010/inception/pkg/logger"
	trace "github.com/gryn010/inception/pkg/query"
)

// RankCandidates scores every handle with the configured feature generators,
// sorts them and returns at most CandidateDisplayLimit results. The mention
// context is extracted once from doc around begin; a nil doc means no context.
func (s *Service) RankCandidates(
	ctx context.Context,
	query string,
	mention string,
	candidates []common.KBHandle,
	doc ContextProvider,
	begin int,
	locale string,
) ([]Result, error) {
	return s.rankCandidates(ctx, query, mention, candidates, doc, begin, locale, nil)
}

func (s *Service) rankCandidates(
	ctx context.Context,
	query string,
	mention string,
	candidates []common.KBHandle,
	doc ContextProvider,
	begin int,
	locale string,
	tracer trace.Tracer,
) ([]Result, error) {
	if len(candidates) == 0 {
		return []Result{}, nil
	}

	start := time.Now()
	mentionContext := s.mentionContext(doc, begin, mention, locale, tracer)

	entities, err := s.scoreCandidates(ctx, candidates, query, mention, mentionContext, locale)
	if err != nil {
		return nil, err
	}

	SortCandidates(entities)
	results := toResults(entities, s.props.CandidateDisplayLimit)

	elapsed := time.Since(start)
	s.metrics.ObserveRanking(len(candidates))
	trace.RecordRanked(tracer, len(results), elapsed.Milliseconds())
	logger.Debug("[Linking][Ranking] Ranked candidates", "candidates", len(candidates), "returned", len(results))

	return results, nil
}

func (s *Service) mentionContext(doc ContextProvider, begin int, mention, locale string, tracer trace.Tracer) []string {
	if doc == nil {
		return []string{}
	}
	if locale == "" {
		locale = DefaultLocale
	}
	tokens, ok := ExtractContext(doc, begin, len(mention), s.props.MentionContextSize, s.stopwords, locale)
	if !ok {
		logger.Warn("[Linking][Context] No sentence covers mention", "offset", begin, "mention", mention)
		s.metrics.IncMissingContext()
		trace.RecordMissingContext(tracer)
	}
	return tokens
}

// scoreCandidates runs the generators over each candidate. Candidates are
// processed in parallel; the generators of one candidate run in order.
func (s *Service) scoreCandidates(
	ctx context.Context,
	handles []common.KBHandle,
	query string,
	mention string,
	mentionContext []string,
	locale string,
) ([]*CandidateEntity, error) {
	entities := make([]*CandidateEntity, len(handles))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.props.MaxParallel)
	for i, h := range handles {
		g.Go(func() error {
			c := NewCandidateEntity(h, query, mention, mentionContext, locale)
			for _, gen := range s.generators {
				if err := gctx.Err(); err != nil {
					return err
				}
				if err := gen.Apply(gctx, c); err != nil {
					if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
						return err
					}
					logger.Warn("[Linking][Pipeline] Feature generator failed", "generator", generatorName(gen), "identifier", h.Identifier, "err", err)
					s.metrics.IncGeneratorErrors(generatorName(gen))
				}
			}
			entities[i] = c
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return entities, nil
}

// NamedGenerator is implemented by generators that report a name for logs
// and metrics.
type NamedGenerator interface {
	Name() string
}

func generatorName(g FeatureGenerator) string {
	if n, ok := g.(NamedGenerator); ok {
		return n.Name()
	}
	return "unnamed"
}
