package linking

import (
	"context"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/gryn010/inception/pkg/common"
	"github.com/gryn010/inception/pkg/logger"
	trace "github.com/gryn010/inception/pkg/query"
	"github.com/gryn010/inception/pkg/store"
)

// GenerateCandidates retrieves the handles of kb that may denote mention or
// the user-typed query. Exact matches are always asked for separately, then
// prefix and substring matches for queries longer than the KB threshold. All
// passes share one connection. Errors are returned as they are, without retry.
func (s *Service) GenerateCandidates(
	ctx context.Context,
	kb common.KnowledgeBase,
	conceptScope string,
	valueType common.ValueType,
	query string,
	mention string,
) ([]common.KBHandle, error) {
	return s.generateCandidates(ctx, kb, conceptScope, valueType, query, mention, nil)
}

type retrievalPass struct {
	mode   store.MatchMode
	labels []string
}

// retrievalPasses lays out the label sets of the exact, starting-with and
// containing passes for a query and mention.
func retrievalPasses(threshold int, query, mention string) []retrievalPass {
	queryLen := utf8.RuneCountInString(query)
	longQuery := query != "" && queryLen > threshold

	exact := make([]string, 0, 2)
	containing := make([]string, 0, 2)
	if query != "" && !longQuery {
		exact = append(exact, query)
	}
	if longQuery {
		containing = append(containing, query)
	}
	if mention != "" {
		exact = append(exact, mention)
		containing = append(containing, mention)
	}

	passes := []retrievalPass{{mode: store.MatchExactly, labels: exact}}
	if longQuery {
		passes = append(passes, retrievalPass{mode: store.MatchStartingWith, labels: []string{query}})
	}
	return append(passes, retrievalPass{mode: store.MatchContaining, labels: containing})
}

func (s *Service) generateCandidates(
	ctx context.Context,
	kb common.KnowledgeBase,
	conceptScope string,
	valueType common.ValueType,
	query string,
	mention string,
	tracer trace.Tracer,
) ([]common.KBHandle, error) {
	if _, err := store.NewQueryBuilder(valueType); err != nil {
		return nil, err
	}

	passes := retrievalPasses(QueryThreshold(kb), query, mention)

	conn, err := s.store.Open(ctx, kb)
	if err != nil {
		return nil, fmt.Errorf("failed to open knowledge base %s: %w", kb.ID, err)
	}
	defer func() {
		if cerr := conn.Close(); cerr != nil {
			logger.Warn("[Linking][Candidates] Failed to close connection", "kb", kb.ID, "err", cerr)
		}
	}()

	result := make([]common.KBHandle, 0)
	seen := make(map[string]struct{})
	for _, pass := range passes {
		if len(pass.labels) == 0 {
			continue
		}

		b, _ := store.NewQueryBuilder(valueType)
		if conceptScope != "" {
			b.ChildrenOf(conceptScope)
		}
		switch pass.mode {
		case store.MatchExactly:
			b.WithLabelMatchingExactlyAnyOf(pass.labels...)
		case store.MatchStartingWith:
			b.WithLabelStartingWith(pass.labels[0])
		case store.MatchContaining:
			b.WithLabelContainingAnyOf(pass.labels...)
		}

		start := time.Now()
		hits, err := b.RetrieveLabel().RetrieveDescription().AsHandles(ctx, conn)
		elapsed := time.Since(start)
		if err != nil {
			return nil, fmt.Errorf("%s query on knowledge base %s failed: %w", pass.mode, kb.ID, err)
		}

		s.metrics.ObserveRetrieval(kb, pass.mode, elapsed.Seconds())
		trace.RecordCandidates(tracer, kb.ID, pass.mode.String(), pass.labels, len(hits), elapsed.Milliseconds())
		logger.Debug("[Linking][Candidates] Pass finished", "kb", kb.ID, "pass", pass.mode.String(), "labels", pass.labels, "hits", len(hits))

		result = store.MergeHandles(result, seen, hits)
	}

	return result, nil
}
