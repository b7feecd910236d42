// Package observability provides logging and metrics support for the
// arXiv Pulse service.
//
// # Logging
//
// Create a logger from configuration:
//
//	cfg := observability.LoggingConfig{
//	    Level:  "info",
//	    Format: "json",
//	    Output: "stdout",
//	}
//
//	logger := observability.NewLogger(cfg)
//	logger.Info().Str("arxiv_id", id).Msg("paper ingested")
//
// Add cycle context to a logger:
//
//	logger = observability.WithCycleContext(logger, "ingestion", runID)
//
// # Metrics
//
// Initialize metrics once at startup and pass them to the pipeline:
//
//	metrics := observability.NewMetrics("arxiv_pulse")
//	metrics.RecordIngestionCycle("ok", elapsed.Seconds())
//
// # Standard Fields
//
// Common fields used across the service:
//
//   - job: which periodic job emitted the line (ingestion, enrichment)
//   - run_id: identifier of one cycle run
//   - category: arXiv category being fetched (cs.AI, cs.LG, ...)
//   - arxiv_id: paper identifier
//
// # Thread Safety
//
// All components are safe for concurrent use from multiple goroutines.
package observability
