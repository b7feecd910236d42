// Package papersources provides clients for polling academic paper feeds.
//
// Each upstream feed implements the PaperSource interface, allowing the
// ingestion pipeline to poll multiple categories through a unified API.
//
// Example usage:
//
//	source := arxiv.New(cfg)
//	params := papersources.SearchParams{
//		Category:     "cs.AI",
//		UpdatedAfter: &watermark,
//		MaxResults:   200,
//	}
//	result, err := source.Search(ctx, params)
package papersources

import (
	"context"
	"time"

	"github.com/arxivpulse/pulse-service/internal/domain"
)

// SearchParams defines the parameters for polling a paper source.
type SearchParams struct {
	// Category is the subject category to poll (required),
	// e.g. "cs.AI" for arXiv.
	Category string

	// UpdatedAfter filters papers updated on or after this instant.
	// If nil, no lower bound is applied.
	UpdatedAfter *time.Time

	// UpdatedBefore filters papers updated on or before this instant.
	// If nil, the source uses the current time.
	UpdatedBefore *time.Time

	// MaxResults caps the total number of papers returned across all
	// pages. A value of 0 uses the source's default limit.
	MaxResults int

	// PageSize is the number of results requested per API call.
	// A value of 0 uses the source's default page size.
	PageSize int
}

// SearchResult contains the results from a paper source poll.
type SearchResult struct {
	// Papers contains the papers returned by the search.
	// May be empty if no papers match the window.
	Papers []*domain.Paper

	// TotalResults is the total number of papers matching the query
	// as reported by the source API, regardless of MaxResults.
	TotalResults int

	// Source identifies which paper source provided these results.
	Source string

	// SearchDuration is the time taken to execute the poll,
	// including network latency, pagination, and response parsing.
	SearchDuration time.Duration
}

// PaperSource defines the interface that all paper source clients must implement.
type PaperSource interface {
	// Search polls the source for papers in the given category updated
	// within the given window. Implementations fetch as many pages as
	// needed up to MaxResults, respect context cancellation, apply rate
	// limiting, and transform source responses to domain.Paper.
	Search(ctx context.Context, params SearchParams) (*SearchResult, error)

	// Name returns a human-readable name for this paper source.
	// Used for logging, metrics, and error attribution.
	Name() string
}
