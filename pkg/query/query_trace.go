package query

import (
	"slices"
	"strings"
	"sync"
)

// PassTrace summarizes one retrieval pass against one knowledge base.
type PassTrace struct {
	KnowledgeBaseID string   `json:"kb"`
	Pass            string   `json:"pass"`
	Labels          []string `json:"labels"`
	Count           int      `json:"count"`
	DurationMs      int64    `json:"duration_ms"`
}

// LinkTrace collects what happened during one linking request: which
// knowledge bases were queried, what each retrieval pass returned, which
// knowledge bases failed and how many results were ranked.
//
// LinkTrace is safe for concurrent use.
type LinkTrace struct {
	mu sync.Mutex

	knowledgeBases map[string]struct{}
	failed         map[string]string
	passes         []PassTrace
	missingContext bool
	ranked         int
	rankMs         int64
}

type LinkTraceSnapshot struct {
	KnowledgeBases  []string          `json:"knowledge_bases"`
	FailedKBs       map[string]string `json:"failed_knowledge_bases,omitempty"`
	Passes          []PassTrace       `json:"passes"`
	MissingContext  bool              `json:"missing_context"`
	Ranked          int               `json:"ranked"`
	RankingDuration int64             `json:"ranking_duration_ms"`
}

func NewLinkTrace() *LinkTrace {
	return &LinkTrace{
		knowledgeBases: make(map[string]struct{}),
		failed:         make(map[string]string),
	}
}

func (t *LinkTrace) Record(event TraceEvent) {
	if t == nil {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	switch event.Kind {
	case TraceEventKnowledgeBase:
		if event.KnowledgeBaseID != "" {
			t.knowledgeBases[event.KnowledgeBaseID] = struct{}{}
		}
	case TraceEventKnowledgeBaseKO:
		if event.KnowledgeBaseID != "" {
			t.failed[event.KnowledgeBaseID] = event.Error
		}
	case TraceEventCandidates:
		t.passes = append(t.passes, PassTrace{
			KnowledgeBaseID: event.KnowledgeBaseID,
			Pass:            event.Pass,
			Labels:          event.Labels,
			Count:           event.Count,
			DurationMs:      event.DurationMs,
		})
	case TraceEventMissingContext:
		t.missingContext = true
	case TraceEventRanked:
		t.ranked = event.Count
		t.rankMs = event.DurationMs
	}
}

// Snapshot returns a copy of the trace with deterministic ordering.
func (t *LinkTrace) Snapshot() LinkTraceSnapshot {
	if t == nil {
		return LinkTraceSnapshot{}
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	s := LinkTraceSnapshot{
		KnowledgeBases:  make([]string, 0, len(t.knowledgeBases)),
		Passes:          slices.Clone(t.passes),
		MissingContext:  t.missingContext,
		Ranked:          t.ranked,
		RankingDuration: t.rankMs,
	}
	for id := range t.knowledgeBases {
		s.KnowledgeBases = append(s.KnowledgeBases, id)
	}
	if len(t.failed) > 0 {
		s.FailedKBs = make(map[string]string, len(t.failed))
		for id, msg := range t.failed {
			s.FailedKBs[id] = msg
		}
	}

	slices.Sort(s.KnowledgeBases)
	slices.SortStableFunc(s.Passes, func(a, b PassTrace) int {
		return strings.Compare(a.KnowledgeBaseID, b.KnowledgeBaseID)
	})

	return s
}
