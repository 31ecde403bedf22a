// Package linking generates and ranks knowledge-base candidates for a
// mention in a document.
package linking

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/gryn010/inception/pkg/common"
	"github.com/gryn010/inception/pkg/logger"
	trace "github.com/gryn010/inception/pkg/query"
	"github.com/gryn010/inception/pkg/store"
)

var ErrAllKnowledgeBasesFailed = errors.New("all knowledge bases failed")

const (
	DefaultMentionContextSize    = 5
	DefaultCandidateDisplayLimit = 100
	DefaultMaxParallel           = 8
)

// Properties are read once at startup and never change afterwards.
type Properties struct {
	MentionContextSize    int
	CandidateDisplayLimit int
	MaxParallel           int
}

func DefaultProperties() Properties {
	return Properties{
		MentionContextSize:    DefaultMentionContextSize,
		CandidateDisplayLimit: DefaultCandidateDisplayLimit,
		MaxParallel:           DefaultMaxParallel,
	}
}

type Service struct {
	store      store.KnowledgeBaseStore
	registry   store.Registry
	props      Properties
	stopwords  StopwordSet
	generators []FeatureGenerator
	metrics    *Metrics
}

type NewServiceParams struct {
	Store    store.KnowledgeBaseStore
	Registry store.Registry
	// Properties falls back to DefaultProperties for non-positive values.
	Properties Properties
	Stopwords  StopwordSet
	// Generators run in the given order for every candidate.
	Generators []FeatureGenerator
	Metrics    *Metrics
}

func NewService(params NewServiceParams) (*Service, error) {
	if params.Store == nil {
		return nil, fmt.Errorf("linking service requires a knowledge base store")
	}
	if params.Registry == nil {
		return nil, fmt.Errorf("linking service requires a knowledge base registry")
	}

	props := params.Properties
	defaults := DefaultProperties()
	if props.MentionContextSize < 0 {
		props.MentionContextSize = defaults.MentionContextSize
	}
	if props.CandidateDisplayLimit <= 0 {
		props.CandidateDisplayLimit = defaults.CandidateDisplayLimit
	}
	if props.MaxParallel <= 0 {
		props.MaxParallel = defaults.MaxParallel
	}

	return &Service{
		store:      params.Store,
		registry:   params.Registry,
		props:      props,
		stopwords:  params.Stopwords,
		generators: append([]FeatureGenerator(nil), params.Generators...),
		metrics:    params.Metrics,
	}, nil
}

func (s *Service) Properties() Properties {
	return s.props
}

// LinkRequest describes one mention to link. RepositoryID restricts linking
// to a single knowledge base of the project; ConceptScope restricts it to the
// descendants of a concept.
type LinkRequest struct {
	ProjectID    int64
	RepositoryID string
	ConceptScope string
	ValueType    common.ValueType
	Query        string
	Mention      string
	MentionBegin int
	Document     ContextProvider
	Locale       string
	Tracer       trace.Tracer
}

var wildcards = strings.NewReplacer("*", "", "?", "")

// SanitizeQuery removes the wildcard characters '*' and '?' and surrounding
// whitespace. The stores match labels literally.
func SanitizeQuery(raw string) string {
	return strings.TrimSpace(wildcards.Replace(raw))
}

// Link retrieves candidates from the selected knowledge bases of the project
// and ranks them. When several knowledge bases are queried, a failing one is
// skipped; the request only fails when every one of them fails. A failing
// knowledge base named by RepositoryID fails the request.
func (s *Service) Link(ctx context.Context, req LinkRequest) (results []Result, err error) {
	start := time.Now()
	defer func() {
		s.metrics.ObserveRequest(err, time.Since(start).Seconds())
	}()

	valueType := req.ValueType
	if valueType == "" {
		valueType = common.ValueTypeAnyObject
	}
	if _, err := store.NewQueryBuilder(valueType); err != nil {
		return nil, err
	}
	query := SanitizeQuery(req.Query)

	kbs, err := s.selectKnowledgeBases(ctx, req.ProjectID, req.RepositoryID)
	if err != nil {
		return nil, err
	}
	if len(kbs) == 0 {
		logger.Debug("[Linking][Link] No enabled knowledge base", "project", req.ProjectID, "repository", req.RepositoryID)
		return []Result{}, nil
	}

	handles, err := s.retrieveAll(ctx, kbs, req.ConceptScope, valueType, query, req.Mention, req.Tracer, req.RepositoryID != "")
	if err != nil {
		return nil, err
	}

	return s.rankCandidates(ctx, query, req.Mention, handles, req.Document, req.MentionBegin, req.Locale, req.Tracer)
}

// SearchItems runs a free-text search over kb: no mention, no concept scope
// and any item kind.
func (s *Service) SearchItems(ctx context.Context, kb common.KnowledgeBase, query string) ([]Result, error) {
	query = SanitizeQuery(query)
	handles, err := s.GenerateCandidates(ctx, kb, "", common.ValueTypeAnyObject, query, "")
	if err != nil {
		return nil, err
	}
	return s.RankCandidates(ctx, query, "", handles, nil, 0, kb.DefaultLanguage)
}

// Disambiguate links a mention against a single knowledge base.
func (s *Service) Disambiguate(
	ctx context.Context,
	kb common.KnowledgeBase,
	conceptScope string,
	valueType common.ValueType,
	query string,
	mention string,
	begin int,
	doc ContextProvider,
	locale string,
) ([]Result, error) {
	handles, err := s.GenerateCandidates(ctx, kb, conceptScope, valueType, query, mention)
	if err != nil {
		return nil, err
	}
	return s.RankCandidates(ctx, query, mention, handles, doc, begin, locale)
}

func (s *Service) selectKnowledgeBases(ctx context.Context, projectID int64, repositoryID string) ([]common.KnowledgeBase, error) {
	if repositoryID == "" {
		kbs, err := s.registry.EnabledKnowledgeBases(ctx, projectID)
		if err != nil {
			return nil, fmt.Errorf("failed to list knowledge bases of project %d: %w", projectID, err)
		}
		return kbs, nil
	}

	kb, err := s.registry.KnowledgeBaseByID(ctx, projectID, repositoryID)
	if errors.Is(err, store.ErrKnowledgeBaseNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load knowledge base %s: %w", repositoryID, err)
	}
	if !kb.Enabled {
		return nil, nil
	}
	return []common.KnowledgeBase{kb}, nil
}

// retrieveAll queries every knowledge base in parallel and merges the
// results in knowledge base order.
func (s *Service) retrieveAll(
	ctx context.Context,
	kbs []common.KnowledgeBase,
	conceptScope string,
	valueType common.ValueType,
	query string,
	mention string,
	tracer trace.Tracer,
	strict bool,
) ([]common.KBHandle, error) {
	batches := make([][]common.KBHandle, len(kbs))
	errs := make([]error, len(kbs))

	var g errgroup.Group
	g.SetLimit(s.props.MaxParallel)
	for i, kb := range kbs {
		trace.RecordKnowledgeBase(tracer, kb.ID)
		g.Go(func() error {
			batches[i], errs[i] = s.generateCandidates(ctx, kb, conceptScope, valueType, query, mention, tracer)
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var failed []error
	for i, err := range errs {
		if err == nil {
			continue
		}
		if strict {
			return nil, err
		}
		kb := kbs[i]
		logger.Warn("[Linking][Link] Skipping failed knowledge base", "kb", kb.ID, "err", err)
		s.metrics.IncKnowledgeBaseFailure(kb)
		trace.RecordKnowledgeBaseFailed(tracer, kb.ID, err)
		failed = append(failed, err)
	}
	if len(failed) == len(kbs) {
		return nil, fmt.Errorf("%w: %w", ErrAllKnowledgeBasesFailed, errors.Join(failed...))
	}

	merged := make([]common.KBHandle, 0)
	seen := make(map[string]struct{})
	for _, batch := range batches {
		merged = store.MergeHandles(merged, seen, batch)
	}
	return merged, nil
}
