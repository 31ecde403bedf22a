package linking

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/gryn010/inception/pkg/common"
	"github.com/gryn010/inception/pkg/store"
)

const (
	MetricLinkRequestsTotal          = "linking_requests_total"
	MetricLinkRequestDuration        = "linking_request_duration_seconds"
	MetricRetrievalDuration          = "linking_retrieval_duration_seconds"
	MetricRankedCandidates           = "linking_ranked_candidates"
	MetricKnowledgeBaseFailuresTotal = "linking_knowledge_base_failures_total"
	MetricGeneratorErrorsTotal       = "linking_feature_generator_errors_total"
	MetricMissingContextTotal        = "linking_missing_context_total"
)

const (
	StatusSuccess = "success"
	StatusFailure = "failure"
)

// Metrics holds the Prometheus collectors of the linking service. A nil
// *Metrics is valid and records nothing.
type Metrics struct {
	requests          *prometheus.CounterVec
	requestDuration   prometheus.Histogram
	retrievalDuration *prometheus.HistogramVec
	rankedCandidates  prometheus.Histogram
	kbFailures        *prometheus.CounterVec
	generatorErrors   *prometheus.CounterVec
	missingContext    prometheus.Counter
}

// NewMetrics creates the collectors without registering them.
func NewMetrics() *Metrics {
	return &Metrics{
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricLinkRequestsTotal,
				Help: "Total number of linking requests by status",
			},
			[]string{"status"},
		),
		requestDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    MetricLinkRequestDuration,
				Help:    "Histogram of linking request duration in seconds",
				Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			},
		),
		retrievalDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    MetricRetrievalDuration,
				Help:    "Histogram of label query duration in seconds by repository type and pass",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			},
			[]string{"repo_type", "pass"},
		),
		rankedCandidates: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    MetricRankedCandidates,
				Help:    "Histogram of candidate set sizes entering ranking",
				Buckets: prometheus.ExponentialBuckets(1, 4, 8),
			},
		),
		kbFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricKnowledgeBaseFailuresTotal,
				Help: "Total number of knowledge bases skipped because retrieval failed",
			},
			[]string{"kb"},
		),
		generatorErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricGeneratorErrorsTotal,
				Help: "Total number of feature generator errors by generator",
			},
			[]string{"generator"},
		),
		missingContext: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: MetricMissingContextTotal,
				Help: "Total number of mentions without a covering sentence",
			},
		),
	}
}

func (m *Metrics) Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.requests,
		m.requestDuration,
		m.retrievalDuration,
		m.rankedCandidates,
		m.kbFailures,
		m.generatorErrors,
		m.missingContext,
	}
}

// Register registers all collectors with reg.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	for _, c := range m.Collectors() {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

func (m *Metrics) ObserveRequest(err error, seconds float64) {
	if m == nil {
		return
	}
	status := StatusSuccess
	if err != nil {
		status = StatusFailure
	}
	m.requests.WithLabelValues(status).Inc()
	m.requestDuration.Observe(seconds)
}

func (m *Metrics) ObserveRetrieval(kb common.KnowledgeBase, mode store.MatchMode, seconds float64) {
	if m == nil {
		return
	}
	m.retrievalDuration.WithLabelValues(string(kb.Type), mode.String()).Observe(seconds)
}

func (m *Metrics) ObserveRanking(candidates int) {
	if m == nil {
		return
	}
	m.rankedCandidates.Observe(float64(candidates))
}

func (m *Metrics) IncKnowledgeBaseFailure(kb common.KnowledgeBase) {
	if m == nil {
		return
	}
	m.kbFailures.WithLabelValues(kb.ID).Inc()
}

func (m *Metrics) IncGeneratorErrors(generator string) {
	if m == nil {
		return
	}
	m.generatorErrors.WithLabelValues(generator).Inc()
}

func (m *Metrics) IncMissingContext() {
	if m == nil {
		return
	}
	m.missingContext.Inc()
}
