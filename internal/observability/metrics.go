package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains all Prometheus metrics for the arXiv Pulse service.
// Metrics are organized by subsystem: ingestion cycles, source requests,
// enrichment, and notifications. All counters and histograms are registered
// via promauto against the default Prometheus registry.
type Metrics struct {
	// IngestionCycles counts ingestion cycle runs, labeled by outcome
	// ("ok" or "error").
	IngestionCycles *prometheus.CounterVec

	// IngestionDuration observes the end-to-end duration of ingestion
	// cycles in seconds.
	IngestionDuration prometheus.Histogram

	// PapersFetched counts papers returned by the source across all
	// categories, before deduplication.
	PapersFetched prometheus.Counter

	// PapersAdded counts new rows inserted by ingestion cycles.
	PapersAdded prometheus.Counter

	// PapersDuplicate counts papers dropped as already stored or as
	// cross-category duplicates.
	PapersDuplicate prometheus.Counter

	// PaperErrors counts records skipped due to per-row failures.
	PaperErrors prometheus.Counter

	// SourceRequests counts fetches against the paper source, labeled
	// by category.
	SourceRequests *prometheus.CounterVec

	// SourceFailures counts failed fetches, labeled by category.
	SourceFailures *prometheus.CounterVec

	// SourceDuration observes per-category fetch duration in seconds.
	SourceDuration *prometheus.HistogramVec

	// EnrichmentCycles counts enrichment cycle runs, labeled by outcome.
	EnrichmentCycles *prometheus.CounterVec

	// EnrichmentDuration observes the duration of enrichment cycles in
	// seconds.
	EnrichmentDuration prometheus.Histogram

	// SummariesGenerated counts summaries generated and persisted.
	SummariesGenerated prometheus.Counter

	// SummariesFailed counts summarizer calls that returned empty or
	// errored. The affected rows stay candidates for the next cycle.
	SummariesFailed prometheus.Counter

	// NotificationsSent counts webhook notifications accepted for
	// delivery.
	NotificationsSent prometheus.Counter

	// NotificationsFailed counts webhook notifications rejected or
	// errored.
	NotificationsFailed prometheus.Counter
}

// NewMetrics creates a new Metrics instance with all metrics initialized.
// The namespace is used as a prefix for all metric names.
func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		IngestionCycles: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ingestion_cycles_total",
			Help:      "Total number of ingestion cycles by outcome",
		}, []string{"outcome"}),
		IngestionDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "ingestion_cycle_duration_seconds",
			Help:      "Duration of ingestion cycles in seconds",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		}),
		PapersFetched: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "papers_fetched_total",
			Help:      "Total number of papers fetched from the source",
		}),
		PapersAdded: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "papers_added_total",
			Help:      "Total number of new papers inserted",
		}),
		PapersDuplicate: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "papers_duplicate_total",
			Help:      "Total number of papers dropped as duplicates",
		}),
		PaperErrors: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "paper_errors_total",
			Help:      "Total number of records skipped due to per-row failures",
		}),
		SourceRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "source_requests_total",
			Help:      "Total number of source fetches by category",
		}, []string{"category"}),
		SourceFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "source_failures_total",
			Help:      "Total number of failed source fetches by category",
		}, []string{"category"}),
		SourceDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "source_request_duration_seconds",
			Help:      "Duration of source fetches in seconds by category",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"category"}),
		EnrichmentCycles: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "enrichment_cycles_total",
			Help:      "Total number of enrichment cycles by outcome",
		}, []string{"outcome"}),
		EnrichmentDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "enrichment_cycle_duration_seconds",
			Help:      "Duration of enrichment cycles in seconds",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300, 600},
		}),
		SummariesGenerated: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "summaries_generated_total",
			Help:      "Total number of summaries generated and persisted",
		}),
		SummariesFailed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "summaries_failed_total",
			Help:      "Total number of summarizer calls that failed",
		}),
		NotificationsSent: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_sent_total",
			Help:      "Total number of notifications accepted for delivery",
		}),
		NotificationsFailed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_failed_total",
			Help:      "Total number of failed notifications",
		}),
	}
}

// RecordIngestionCycle records one completed ingestion cycle.
func (m *Metrics) RecordIngestionCycle(outcome string, durationSeconds float64) {
	m.IngestionCycles.WithLabelValues(outcome).Inc()
	m.IngestionDuration.Observe(durationSeconds)
}

// RecordSourceFetch records one source fetch for a category.
func (m *Metrics) RecordSourceFetch(category string, paperCount int, durationSeconds float64) {
	m.SourceRequests.WithLabelValues(category).Inc()
	m.SourceDuration.WithLabelValues(category).Observe(durationSeconds)
	m.PapersFetched.Add(float64(paperCount))
}

// RecordSourceFailure records one failed source fetch for a category.
func (m *Metrics) RecordSourceFailure(category string, durationSeconds float64) {
	m.SourceFailures.WithLabelValues(category).Inc()
	m.SourceDuration.WithLabelValues(category).Observe(durationSeconds)
}

// RecordIngestionResult records the row-level counters of one cycle.
func (m *Metrics) RecordIngestionResult(added, duplicate, errors int) {
	m.PapersAdded.Add(float64(added))
	m.PapersDuplicate.Add(float64(duplicate))
	m.PaperErrors.Add(float64(errors))
}

// RecordEnrichmentCycle records one completed enrichment cycle.
func (m *Metrics) RecordEnrichmentCycle(outcome string, durationSeconds float64) {
	m.EnrichmentCycles.WithLabelValues(outcome).Inc()
	m.EnrichmentDuration.Observe(durationSeconds)
}

// RecordSummaryGenerated records a summary that was generated and persisted.
func (m *Metrics) RecordSummaryGenerated() {
	m.SummariesGenerated.Inc()
}

// RecordSummaryFailed records a summarizer call that failed.
func (m *Metrics) RecordSummaryFailed() {
	m.SummariesFailed.Inc()
}

// RecordNotificationSent records a notification accepted for delivery.
func (m *Metrics) RecordNotificationSent() {
	m.NotificationsSent.Inc()
}

// RecordNotificationFailed records a failed notification.
func (m *Metrics) RecordNotificationFailed() {
	m.NotificationsFailed.Inc()
}
