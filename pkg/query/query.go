package query

type TraceEventKind string

const (
	TraceEventCandidates      TraceEventKind = "candidates"
	TraceEventKnowledgeBase   TraceEventKind = "knowledge_base"
	TraceEventKnowledgeBaseKO TraceEventKind = "knowledge_base_failed"
	TraceEventMissingContext  TraceEventKind = "missing_context"
	TraceEventRanked          TraceEventKind = "ranked"
)

// TraceEvent is an extensible event envelope for linking traces.
// Additive changes to this struct are backward compatible for implementers.
type TraceEvent struct {
	Kind TraceEventKind

	KnowledgeBaseID string
	// Pass names the retrieval pass ("exact", "starting-with", "containing").
	Pass   string
	Labels []string
	Count  int

	DurationMs int64
	Error      string
}

// Tracer is a sink for linking trace events.
//
// Implementers can forward events to logs, telemetry, or custom post-processing
// pipelines.
type Tracer interface {
	Record(event TraceEvent)
}

// MultiTracer fan-outs trace events to multiple tracers.
type MultiTracer []Tracer

func (m MultiTracer) Record(event TraceEvent) {
	for _, t := range m {
		if t == nil {
			continue
		}
		t.Record(event)
	}
}

func RecordCandidates(t Tracer, kbID, pass string, labels []string, count int, durationMs int64) {
	if t == nil {
		return
	}
	t.Record(TraceEvent{
		Kind:            TraceEventCandidates,
		KnowledgeBaseID: kbID,
		Pass:            pass,
		Labels:          append([]string(nil), labels...),
		Count:           count,
		DurationMs:      durationMs,
	})
}

func RecordKnowledgeBase(t Tracer, kbID string) {
	if t == nil {
		return
	}
	t.Record(TraceEvent{Kind: TraceEventKnowledgeBase, KnowledgeBaseID: kbID})
}

func RecordKnowledgeBaseFailed(t Tracer, kbID string, err error) {
	if t == nil || err == nil {
		return
	}
	t.Record(TraceEvent{Kind: TraceEventKnowledgeBaseKO, KnowledgeBaseID: kbID, Error: err.Error()})
}

func RecordMissingContext(t Tracer) {
	if t == nil {
		return
	}
	t.Record(TraceEvent{Kind: TraceEventMissingContext})
}

func RecordRanked(t Tracer, count int, durationMs int64) {
	if t == nil {
		return
	}
	t.Record(TraceEvent{Kind: TraceEventRanked, Count: count, DurationMs: durationMs})
}
