package repository

import (
	"context"
	"time"

	"github.com/arxivpulse/pulse-service/internal/domain"
)

// PaperStore handles paper persistence for the ingestion and enrichment
// pipelines.
type PaperStore interface {
	// MaxPublishedAt returns the newest published_at timestamp in the
	// store. ok is false when the store holds no papers.
	MaxPublishedAt(ctx context.Context) (maxPublished time.Time, ok bool, err error)

	// ExistingIDs returns the subset of the given arXiv IDs that are
	// already stored, as a set. Returns an empty set for empty input.
	ExistingIDs(ctx context.Context, ids []string) (map[string]struct{}, error)

	// InsertNew inserts the given papers in a single transaction and
	// returns the number of rows actually added. Rows whose arxiv_id
	// already exists are skipped without error, so re-inserting an
	// overlapping batch is idempotent. A failed commit adds nothing.
	InsertNew(ctx context.Context, papers []*domain.Paper) (added int, err error)

	// FindCandidates returns unsummarized papers published on or after
	// the given instant whose title or abstract matches any of the
	// keywords, case-insensitively, oldest first. An empty keyword list
	// returns no candidates.
	FindCandidates(ctx context.Context, keywords []string, publishedAfter time.Time, limit int) ([]*domain.Paper, error)

	// SetSummary stores the generated summary for a paper that does not
	// have one yet. Returns domain.ErrNotFound (wrapped) when the paper
	// is missing or already summarized, which keeps summaries
	// write-once.
	SetSummary(ctx context.Context, arxivID, summary string) error
}
