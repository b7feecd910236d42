package observability

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Note: prometheus/promauto registers metrics globally, so tests use
// unique namespaces to avoid registration conflicts.

func TestNewMetrics(t *testing.T) {
	m := NewMetrics("test_pulse_new")

	assert.NotNil(t, m.IngestionCycles)
	assert.NotNil(t, m.IngestionDuration)
	assert.NotNil(t, m.PapersFetched)
	assert.NotNil(t, m.PapersAdded)
	assert.NotNil(t, m.PapersDuplicate)
	assert.NotNil(t, m.PaperErrors)
	assert.NotNil(t, m.SourceRequests)
	assert.NotNil(t, m.SourceFailures)
	assert.NotNil(t, m.EnrichmentCycles)
	assert.NotNil(t, m.SummariesGenerated)
	assert.NotNil(t, m.SummariesFailed)
	assert.NotNil(t, m.NotificationsSent)
	assert.NotNil(t, m.NotificationsFailed)
}

func TestRecordIngestionCycle(t *testing.T) {
	m := NewMetrics("test_pulse_ingestion_cycle")

	m.RecordIngestionCycle("ok", 1.5)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.IngestionCycles.WithLabelValues("ok")))
	assert.Equal(t, float64(0), testutil.ToFloat64(m.IngestionCycles.WithLabelValues("error")))

	count, err := getHistogramSampleCount(m.IngestionDuration)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), count)
}

func TestRecordSourceFetch(t *testing.T) {
	m := NewMetrics("test_pulse_source_fetch")

	m.RecordSourceFetch("cs.AI", 42, 0.3)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.SourceRequests.WithLabelValues("cs.AI")))
	assert.Equal(t, float64(42), testutil.ToFloat64(m.PapersFetched))

	m.RecordSourceFailure("cs.LG", 0.1)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.SourceFailures.WithLabelValues("cs.LG")))
}

func TestRecordIngestionResult(t *testing.T) {
	m := NewMetrics("test_pulse_ingestion_result")

	m.RecordIngestionResult(3, 2, 1)
	assert.Equal(t, float64(3), testutil.ToFloat64(m.PapersAdded))
	assert.Equal(t, float64(2), testutil.ToFloat64(m.PapersDuplicate))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.PaperErrors))
}

func TestRecordEnrichment(t *testing.T) {
	m := NewMetrics("test_pulse_enrichment")

	m.RecordEnrichmentCycle("ok", 2.0)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.EnrichmentCycles.WithLabelValues("ok")))

	m.RecordSummaryGenerated()
	m.RecordSummaryFailed()
	assert.Equal(t, float64(1), testutil.ToFloat64(m.SummariesGenerated))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.SummariesFailed))

	m.RecordNotificationSent()
	m.RecordNotificationFailed()
	assert.Equal(t, float64(1), testutil.ToFloat64(m.NotificationsSent))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.NotificationsFailed))
}

// getHistogramSampleCount extracts the sample count from a histogram.
func getHistogramSampleCount(h prometheus.Histogram) (uint64, error) {
	var metric dto.Metric
	if err := h.Write(&metric); err != nil {
		return 0, err
	}
	return metric.GetHistogram().GetSampleCount(), nil
}
