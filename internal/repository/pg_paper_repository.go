package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/arxivpulse/pulse-service/internal/domain"
)

// Compile-time interface verification.
var _ PaperStore = (*PgPaperRepository)(nil)

// paperColumns is the column list shared by all row scans.
const paperColumns = `arxiv_id, title, abstract, authors, categories, link,
	published_at, updated_at, local_summary, ingested_at`

// PgPaperRepository is a PostgreSQL implementation of PaperStore.
type PgPaperRepository struct {
	db TxDB
}

// NewPgPaperRepository creates a new PostgreSQL paper repository.
func NewPgPaperRepository(db TxDB) *PgPaperRepository {
	return &PgPaperRepository{db: db}
}

// MaxPublishedAt returns the newest published_at timestamp in the store.
func (r *PgPaperRepository) MaxPublishedAt(ctx context.Context) (time.Time, bool, error) {
	query := `SELECT max(published_at) FROM papers`

	var maxPublished *time.Time
	if err := r.db.QueryRow(ctx, query).Scan(&maxPublished); err != nil {
		return time.Time{}, false, fmt.Errorf("failed to query max published_at: %w", err)
	}

	// max() over an empty table yields NULL.
	if maxPublished == nil {
		return time.Time{}, false, nil
	}

	return maxPublished.UTC(), true, nil
}

// ExistingIDs returns the subset of the given arXiv IDs that are already stored.
func (r *PgPaperRepository) ExistingIDs(ctx context.Context, ids []string) (map[string]struct{}, error) {
	existing := make(map[string]struct{}, len(ids))
	if len(ids) == 0 {
		return existing, nil
	}

	query := `SELECT arxiv_id FROM papers WHERE arxiv_id = ANY($1)`

	rows, err := r.db.Query(ctx, query, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to query existing IDs: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan existing ID: %w", err)
		}
		existing[id] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read existing IDs: %w", err)
	}

	return existing, nil
}

// InsertNew inserts the given papers in a single transaction, skipping rows
// whose arxiv_id already exists.
func (r *PgPaperRepository) InsertNew(ctx context.Context, papers []*domain.Paper) (int, error) {
	if len(papers) == 0 {
		return 0, nil
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("%w: failed to begin transaction: %v", domain.ErrPersistenceFatal, err)
	}
	defer func() {
		// No-op after a successful commit.
		_ = tx.Rollback(ctx)
	}()

	query := `
		INSERT INTO papers (
			arxiv_id, title, abstract, authors, categories, link,
			published_at, updated_at, local_summary, ingested_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, now())
		ON CONFLICT (arxiv_id) DO NOTHING`

	added := 0
	for _, paper := range papers {
		if paper == nil {
			continue
		}
		tag, err := tx.Exec(ctx, query,
			paper.ArxivID,
			paper.Title,
			paper.Abstract,
			paper.Authors,
			paper.Categories,
			paper.Link,
			paper.PublishedAt,
			paper.UpdatedAt,
			paper.LocalSummary,
		)
		if err != nil {
			return 0, fmt.Errorf("%w: failed to insert paper %s: %v", domain.ErrPersistenceFatal, paper.ArxivID, err)
		}
		added += int(tag.RowsAffected())
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("%w: failed to commit batch: %v", domain.ErrPersistenceFatal, err)
	}

	return added, nil
}

// FindCandidates returns unsummarized papers published on or after the given
// instant whose title or abstract matches any of the keywords.
func (r *PgPaperRepository) FindCandidates(ctx context.Context, keywords []string, publishedAfter time.Time, limit int) ([]*domain.Paper, error) {
	patterns := keywordPatterns(keywords)
	if len(patterns) == 0 {
		return nil, nil
	}
	if limit <= 0 {
		limit = 100
	}

	query := `
		SELECT ` + paperColumns + `
		FROM papers
		WHERE local_summary IS NULL
		  AND published_at >= $1
		  AND (title ILIKE ANY($2) OR abstract ILIKE ANY($2))
		ORDER BY published_at ASC
		LIMIT $3`

	rows, err := r.db.Query(ctx, query, publishedAfter, patterns, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query candidates: %w", err)
	}
	defer rows.Close()

	var papers []*domain.Paper
	for rows.Next() {
		paper, err := scanPaper(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan candidate: %w", err)
		}
		papers = append(papers, paper)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read candidates: %w", err)
	}

	return papers, nil
}

// SetSummary stores the generated summary for a paper that does not have
// one yet.
func (r *PgPaperRepository) SetSummary(ctx context.Context, arxivID, summary string) error {
	if arxivID == "" {
		return domain.NewValidationError("arxiv_id", "arxiv ID is required")
	}
	if summary == "" {
		return domain.NewValidationError("summary", "summary cannot be empty")
	}

	query := `
		UPDATE papers
		SET local_summary = $2
		WHERE arxiv_id = $1 AND local_summary IS NULL`

	tag, err := r.db.Exec(ctx, query, arxivID, summary)
	if err != nil {
		return fmt.Errorf("failed to set summary: %w", err)
	}

	// Zero rows means the paper is gone or was summarized concurrently;
	// either way the summary must not be rewritten.
	if tag.RowsAffected() == 0 {
		return domain.NewNotFoundError("unsummarized paper", arxivID)
	}

	return nil
}

// GetByID retrieves a paper by its arXiv ID.
func (r *PgPaperRepository) GetByID(ctx context.Context, arxivID string) (*domain.Paper, error) {
	if arxivID == "" {
		return nil, domain.NewValidationError("arxiv_id", "arxiv ID is required")
	}

	query := `
		SELECT ` + paperColumns + `
		FROM papers
		WHERE arxiv_id = $1`

	paper, err := scanPaper(r.db.QueryRow(ctx, query, arxivID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewNotFoundError("paper", arxivID)
		}
		return nil, fmt.Errorf("failed to get paper: %w", err)
	}

	return paper, nil
}

// Count returns the total number of stored papers.
func (r *PgPaperRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.QueryRow(ctx, `SELECT count(*) FROM papers`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count papers: %w", err)
	}
	return count, nil
}

// scanPaper scans one paper row. The column order must match paperColumns.
func scanPaper(row pgx.Row) (*domain.Paper, error) {
	var paper domain.Paper
	err := row.Scan(
		&paper.ArxivID,
		&paper.Title,
		&paper.Abstract,
		&paper.Authors,
		&paper.Categories,
		&paper.Link,
		&paper.PublishedAt,
		&paper.UpdatedAt,
		&paper.LocalSummary,
		&paper.IngestedAt,
	)
	if err != nil {
		return nil, err
	}
	return &paper, nil
}

// keywordPatterns turns keywords into ILIKE substring patterns, dropping
// blanks and escaping pattern metacharacters.
func keywordPatterns(keywords []string) []string {
	patterns := make([]string, 0, len(keywords))
	for _, kw := range keywords {
		kw = strings.TrimSpace(kw)
		if kw == "" {
			continue
		}
		kw = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(kw)
		patterns = append(patterns, "%"+kw+"%")
	}
	return patterns
}
