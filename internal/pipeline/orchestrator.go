// Package pipeline implements the two periodic jobs of the arXiv Pulse
// service: the ingestion cycle, which polls configured arXiv categories and
// persists new papers, and the enrichment cycle, which summarizes and
// announces papers matching the keyword watchlist.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/arxivpulse/pulse-service/internal/domain"
	"github.com/arxivpulse/pulse-service/internal/llm"
	"github.com/arxivpulse/pulse-service/internal/notify"
	"github.com/arxivpulse/pulse-service/internal/observability"
	"github.com/arxivpulse/pulse-service/internal/papersources"
	"github.com/arxivpulse/pulse-service/internal/repository"
)

const (
	// watermarkBackoff is subtracted from the stored maximum published
	// timestamp when computing the fetch window. The overlap re-fetches
	// papers near the watermark so late-arriving entries are not lost;
	// idempotent inserts make the overlap harmless.
	watermarkBackoff = time.Hour

	// bootstrapLookback is the fetch window used when the store is empty.
	bootstrapLookback = 7 * 24 * time.Hour

	// candidateLimit bounds how many papers one enrichment cycle will
	// attempt to summarize. Anything beyond the limit is picked up by
	// the next cycle.
	candidateLimit = 100
)

// Metric outcome label values.
const (
	outcomeOK    = "ok"
	outcomeError = "error"
)

// Config holds the pipeline settings.
type Config struct {
	// Categories is the list of arXiv categories to poll.
	Categories []string

	// MaxResultsPerCategory caps records fetched per category per cycle.
	MaxResultsPerCategory int

	// PageSize is the page size passed to the source.
	PageSize int

	// Keywords is the watchlist driving enrichment. Empty disables
	// enrichment entirely.
	Keywords []string

	// Lookback bounds enrichment candidates to recently published
	// papers.
	Lookback time.Duration
}

// IngestionStats summarizes one ingestion cycle.
type IngestionStats struct {
	// Fetched is the number of records returned by the source across
	// all categories, before any deduplication.
	Fetched int

	// Duplicates is the number of records dropped as cross-category
	// duplicates or as already stored.
	Duplicates int

	// Added is the number of new rows inserted.
	Added int

	// Errors counts failed categories and invalid records skipped.
	Errors int
}

// EnrichmentStats summarizes one enrichment cycle.
type EnrichmentStats struct {
	// Processed is the number of candidates examined.
	Processed int

	// Summarized is the number of summaries generated and persisted.
	Summarized int

	// Notified is the number of webhook notifications delivered.
	Notified int

	// Failed counts candidates whose summary could not be generated or
	// persisted. They stay candidates for the next cycle.
	Failed int
}

// Orchestrator runs the ingestion and enrichment cycles against its
// injected dependencies. It holds no mutable state of its own; all
// coordination lives in the store, so concurrent cycles stay safe.
type Orchestrator struct {
	source     papersources.PaperSource
	store      repository.PaperStore
	summarizer llm.Summarizer
	notifier   notify.Notifier
	clock      Clock
	metrics    *observability.Metrics
	logger     zerolog.Logger
	config     Config
}

// NewOrchestrator creates a pipeline orchestrator. summarizer and notifier
// may be nil when enrichment is disabled (no keywords configured).
func NewOrchestrator(
	source papersources.PaperSource,
	store repository.PaperStore,
	summarizer llm.Summarizer,
	notifier notify.Notifier,
	clock Clock,
	metrics *observability.Metrics,
	logger zerolog.Logger,
	cfg Config,
) *Orchestrator {
	if clock == nil {
		clock = SystemClock()
	}

	return &Orchestrator{
		source:     source,
		store:      store,
		summarizer: summarizer,
		notifier:   notifier,
		clock:      clock,
		metrics:    metrics,
		logger:     logger,
		config:     cfg,
	}
}

// RunIngestionCycle polls every configured category for papers updated
// since the watermark, deduplicates the merged batch, and inserts the new
// rows in one transaction.
//
// A failed category is logged and counted but does not abort the cycle;
// only a failed batch commit does. Running the cycle twice over the same
// window adds nothing the second time.
func (o *Orchestrator) RunIngestionCycle(ctx context.Context) (IngestionStats, error) {
	start := o.clock.Now()
	logger := observability.WithCycleContext(o.logger, "ingestion", uuid.NewString())
	logger.Info().Int("categories", len(o.config.Categories)).Msg("starting ingestion cycle")

	var stats IngestionStats

	watermark, err := o.fetchWatermark(ctx)
	if err != nil {
		o.recordIngestion(outcomeError, start)
		return stats, fmt.Errorf("computing watermark: %w", err)
	}
	now := o.clock.Now()

	merged := make(map[string]*domain.Paper)
	order := make([]string, 0)

	for _, category := range o.config.Categories {
		if err := ctx.Err(); err != nil {
			o.recordIngestion(outcomeError, start)
			return stats, err
		}

		catLogger := observability.WithSourceContext(logger, o.source.Name(), category)
		fetchStart := time.Now()

		result, err := o.source.Search(ctx, papersources.SearchParams{
			Category:      category,
			UpdatedAfter:  &watermark,
			UpdatedBefore: &now,
			MaxResults:    o.config.MaxResultsPerCategory,
			PageSize:      o.config.PageSize,
		})
		if err != nil {
			stats.Errors++
			if o.metrics != nil {
				o.metrics.RecordSourceFailure(category, time.Since(fetchStart).Seconds())
			}
			catLogger.Warn().Err(err).Msg("category fetch failed, continuing cycle")
			continue
		}

		stats.Fetched += len(result.Papers)
		if o.metrics != nil {
			o.metrics.RecordSourceFetch(category, len(result.Papers), result.SearchDuration.Seconds())
		}
		catLogger.Debug().
			Int("fetched", len(result.Papers)).
			Int("total_available", result.TotalResults).
			Msg("category fetched")

		// Merge across categories, last occurrence wins. Papers carry
		// identical payloads regardless of which category listed them,
		// so this only collapses cross-listings.
		for _, paper := range result.Papers {
			if !paper.Valid() {
				stats.Errors++
				continue
			}
			if _, seen := merged[paper.ArxivID]; !seen {
				order = append(order, paper.ArxivID)
			} else {
				stats.Duplicates++
			}
			merged[paper.ArxivID] = paper
		}
	}

	existing, err := o.store.ExistingIDs(ctx, order)
	if err != nil {
		o.recordIngestion(outcomeError, start)
		return stats, fmt.Errorf("checking existing papers: %w", err)
	}

	batch := make([]*domain.Paper, 0, len(order))
	for _, id := range order {
		if _, ok := existing[id]; ok {
			stats.Duplicates++
			continue
		}
		batch = append(batch, merged[id])
	}

	added, err := o.store.InsertNew(ctx, batch)
	if err != nil {
		o.recordIngestion(outcomeError, start)
		return stats, fmt.Errorf("inserting batch: %w", err)
	}
	stats.Added = added
	// Rows that hit the unique constraint despite the pre-check (a
	// concurrent cycle won the race) count as duplicates too.
	stats.Duplicates += len(batch) - added

	if o.metrics != nil {
		o.metrics.RecordIngestionResult(stats.Added, stats.Duplicates, stats.Errors)
	}
	o.recordIngestion(outcomeOK, start)

	logger.Info().
		Int("fetched", stats.Fetched).
		Int("duplicates", stats.Duplicates).
		Int("added", stats.Added).
		Int("errors", stats.Errors).
		Time("watermark", watermark).
		Msg("ingestion cycle complete")

	return stats, nil
}

// fetchWatermark computes the lower bound of the fetch window.
func (o *Orchestrator) fetchWatermark(ctx context.Context) (time.Time, error) {
	maxPublished, ok, err := o.store.MaxPublishedAt(ctx)
	if err != nil {
		return time.Time{}, err
	}
	if !ok {
		return o.clock.Now().Add(-bootstrapLookback), nil
	}
	return maxPublished.Add(-watermarkBackoff), nil
}

// RunEnrichmentCycle summarizes and announces stored papers that match the
// keyword watchlist. Each paper is committed individually; a failure on one
// paper never affects the others, and a failed notification never unwinds
// the committed summary.
func (o *Orchestrator) RunEnrichmentCycle(ctx context.Context) (EnrichmentStats, error) {
	start := o.clock.Now()
	var stats EnrichmentStats

	if len(o.config.Keywords) == 0 {
		o.logger.Debug().Msg("no keywords configured, skipping enrichment cycle")
		return stats, nil
	}

	logger := observability.WithCycleContext(o.logger, "enrichment", uuid.NewString())
	cutoff := o.clock.Now().Add(-o.config.Lookback)

	candidates, err := o.store.FindCandidates(ctx, o.config.Keywords, cutoff, candidateLimit)
	if err != nil {
		o.recordEnrichment(outcomeError, start)
		return stats, fmt.Errorf("finding candidates: %w", err)
	}

	logger.Info().
		Int("candidates", len(candidates)).
		Time("cutoff", cutoff).
		Msg("starting enrichment cycle")

	for _, paper := range candidates {
		if err := ctx.Err(); err != nil {
			o.recordEnrichment(outcomeError, start)
			return stats, err
		}

		stats.Processed++
		paperLogger := observability.WithPaperContext(logger, paper.ArxivID)

		// The store pre-filter and the watchlist can drift (config
		// reloads, SQL pattern semantics), so matching is re-checked
		// here before any money is spent on the summarizer.
		if !paper.MatchesKeywords(o.config.Keywords) {
			paperLogger.Debug().Msg("candidate no longer matches watchlist, skipping")
			continue
		}

		summary, err := o.summarizer.Summarize(ctx, paper.Title, paper.Abstract)
		if err != nil {
			stats.Failed++
			if o.metrics != nil {
				o.metrics.RecordSummaryFailed()
			}
			paperLogger.Warn().Err(err).Msg("summary generation failed, paper stays a candidate")
			continue
		}

		if err := o.store.SetSummary(ctx, paper.ArxivID, summary); err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				// Another cycle summarized it first.
				paperLogger.Debug().Msg("paper already summarized, skipping notification")
				continue
			}
			stats.Failed++
			if o.metrics != nil {
				o.metrics.RecordSummaryFailed()
			}
			paperLogger.Error().Err(err).Msg("failed to persist summary")
			continue
		}

		stats.Summarized++
		if o.metrics != nil {
			o.metrics.RecordSummaryGenerated()
		}
		paper.LocalSummary = &summary

		if o.notifier == nil {
			continue
		}
		if err := o.notifier.NotifyPaper(ctx, paper); err != nil {
			// The summary is already committed and stays committed.
			if o.metrics != nil {
				o.metrics.RecordNotificationFailed()
			}
			paperLogger.Warn().Err(err).Msg("notification failed")
			continue
		}
		stats.Notified++
		if o.metrics != nil {
			o.metrics.RecordNotificationSent()
		}
	}

	o.recordEnrichment(outcomeOK, start)

	logger.Info().
		Int("processed", stats.Processed).
		Int("summarized", stats.Summarized).
		Int("notified", stats.Notified).
		Int("failed", stats.Failed).
		Msg("enrichment cycle complete")

	return stats, nil
}

func (o *Orchestrator) recordIngestion(outcome string, start time.Time) {
	if o.metrics == nil {
		return
	}
	o.metrics.RecordIngestionCycle(outcome, o.clock.Now().Sub(start).Seconds())
}

func (o *Orchestrator) recordEnrichment(outcome string, start time.Time) {
	if o.metrics == nil {
		return
	}
	o.metrics.RecordEnrichmentCycle(outcome, o.clock.Now().Sub(start).Seconds())
}
