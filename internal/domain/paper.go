package domain

import (
	"strings"
	"time"
)

// Paper represents one arXiv catalog entry stored by the service.
//
// ArxivID is the stable external identifier (e.g. "2301.00001") and the
// primary key in the store. LocalSummary starts as nil and is set exactly
// once by the enrichment cycle; a paper with a non-nil summary is never
// summarized again.
type Paper struct {
	// ArxivID is the arXiv identifier without the version suffix.
	ArxivID string

	// Title is the paper title with whitespace normalized.
	Title string

	// Abstract is the paper abstract with whitespace normalized.
	Abstract string

	// Authors is the ordered author list rendered as a single
	// comma-separated string.
	Authors string

	// PublishedAt is the submission timestamp assigned by arXiv.
	// It is the sole ordering key for incremental-fetch watermarking.
	PublishedAt time.Time

	// UpdatedAt is the last-updated timestamp assigned by arXiv.
	UpdatedAt time.Time

	// Categories is the set of subject tags rendered as a
	// comma-separated string (e.g. "cs.AI,cs.LG").
	Categories string

	// Link is the canonical abstract page URL.
	Link string

	// LocalSummary is the generated Chinese summary. Nil until the
	// enrichment cycle populates it.
	LocalSummary *string

	// IngestedAt records when the row was inserted.
	IngestedAt time.Time
}

// Valid reports whether the paper carries the minimum fields required for
// insertion. Records failing this check are skipped and counted as errors
// by the ingestion cycle instead of aborting the batch.
func (p *Paper) Valid() bool {
	return p != nil && p.ArxivID != "" && p.Title != ""
}

// HasSummary reports whether the enrichment cycle already populated the
// local summary.
func (p *Paper) HasSummary() bool {
	return p.LocalSummary != nil && *p.LocalSummary != ""
}

// MatchesKeywords reports whether the title or abstract contains any of the
// given keywords as a case-insensitive substring. An empty keyword list
// never matches.
func (p *Paper) MatchesKeywords(keywords []string) bool {
	if len(keywords) == 0 {
		return false
	}
	title := strings.ToLower(p.Title)
	abstract := strings.ToLower(p.Abstract)
	for _, kw := range keywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw == "" {
			continue
		}
		if strings.Contains(title, kw) || strings.Contains(abstract, kw) {
			return true
		}
	}
	return false
}

// NormalizeWhitespace trims a string and collapses runs of whitespace
// (including newlines, which arXiv embeds in titles and abstracts) into
// single spaces.
func NormalizeWhitespace(s string) string {
	return strings.Join(strings.Fields(strings.TrimSpace(s)), " ")
}

// SplitList splits a comma-separated configuration value into trimmed,
// non-empty elements.
func SplitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
