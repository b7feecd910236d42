// Package arxiv implements the papersources.PaperSource interface for the
// arXiv Atom API.
package arxiv

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/arxivpulse/pulse-service/internal/domain"
	"github.com/arxivpulse/pulse-service/internal/papersources"
)

const (
	// DefaultBaseURL is the default arXiv API base URL.
	DefaultBaseURL = "https://export.arxiv.org/api"

	// DefaultRateLimit is the default rate limit (3 requests per second,
	// the maximum arXiv asks automated clients to observe).
	DefaultRateLimit = 3.0

	// DefaultBurstSize is the default burst size for rate limiting.
	DefaultBurstSize = 3

	// DefaultTimeout is the default request timeout.
	DefaultTimeout = 30 * time.Second

	// DefaultPageSize is the default number of results per API request.
	DefaultPageSize = 100

	// DefaultMaxResults is the default cap on results per search.
	DefaultMaxResults = 200

	// sourceName is the human-readable name for this source.
	sourceName = "arXiv"

	// queryTimeFormat is the timestamp layout the arXiv query language
	// accepts in lastUpdatedDate range filters (YYYYMMDDHHMM, UTC).
	queryTimeFormat = "200601021504"
)

// arxivIDRegex extracts the arXiv ID from the full entry URL, dropping any
// version suffix. Matches "http://arxiv.org/abs/2301.12345v1" and legacy
// IDs like "http://arxiv.org/abs/hep-th/9901001v1".
var arxivIDRegex = regexp.MustCompile(`arxiv\.org/abs/(.+?)(?:v\d+)?$`)

// Config holds configuration for the arXiv client.
type Config struct {
	// BaseURL is the arXiv API base URL.
	BaseURL string

	// Timeout is the request timeout.
	Timeout time.Duration

	// RateLimit is the maximum requests per second.
	RateLimit float64

	// BurstSize is the maximum burst of requests allowed.
	BurstSize int

	// PageSize is the number of results requested per API call.
	PageSize int

	// MaxResults caps the total results returned per search.
	MaxResults int
}

// applyDefaults sets default values for unset configuration fields.
func (c *Config) applyDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	if c.Timeout == 0 {
		c.Timeout = DefaultTimeout
	}
	if c.RateLimit == 0 {
		c.RateLimit = DefaultRateLimit
	}
	if c.BurstSize == 0 {
		c.BurstSize = DefaultBurstSize
	}
	if c.PageSize == 0 {
		c.PageSize = DefaultPageSize
	}
	if c.MaxResults == 0 {
		c.MaxResults = DefaultMaxResults
	}
}

// Client implements the papersources.PaperSource interface for arXiv.
type Client struct {
	config     Config
	httpClient *papersources.HTTPClient
}

// Ensure Client implements PaperSource interface.
var _ papersources.PaperSource = (*Client)(nil)

// New creates a new arXiv client with the given configuration.
func New(cfg Config) *Client {
	cfg.applyDefaults()

	httpClient := papersources.NewHTTPClient(papersources.HTTPClientConfig{
		Timeout:   cfg.Timeout,
		RateLimit: cfg.RateLimit,
		BurstSize: cfg.BurstSize,
		UserAgent: "arXiv-Pulse/1.0",
	})

	return &Client{
		config:     cfg,
		httpClient: httpClient,
	}
}

// NewWithHTTPClient creates a new arXiv client with a custom HTTP client.
// This is useful for testing with mock servers.
func NewWithHTTPClient(cfg Config, httpClient *papersources.HTTPClient) *Client {
	cfg.applyDefaults()

	return &Client{
		config:     cfg,
		httpClient: httpClient,
	}
}

// Name returns the human-readable name for this source.
func (c *Client) Name() string {
	return sourceName
}

// Search polls arXiv for papers in the given category updated within the
// given window. It pages through results until MaxResults is reached or
// the feed is exhausted.
func (c *Client) Search(ctx context.Context, params papersources.SearchParams) (*papersources.SearchResult, error) {
	startTime := time.Now()

	if params.Category == "" {
		return nil, domain.NewValidationError("category", "category is required")
	}

	maxResults := params.MaxResults
	if maxResults <= 0 {
		maxResults = c.config.MaxResults
	}
	pageSize := params.PageSize
	if pageSize <= 0 {
		pageSize = c.config.PageSize
	}
	if pageSize > maxResults {
		pageSize = maxResults
	}

	papers := make([]*domain.Paper, 0, pageSize)
	totalResults := 0

	for offset := 0; len(papers) < maxResults; {
		remaining := maxResults - len(papers)
		if remaining < pageSize {
			pageSize = remaining
		}

		feed, err := c.fetchPage(ctx, params, offset, pageSize)
		if err != nil {
			return nil, err
		}

		totalResults = feed.TotalResults
		if len(feed.Entries) == 0 {
			break
		}

		for i := range feed.Entries {
			paper := c.entryToPaper(&feed.Entries[i])
			if paper != nil {
				papers = append(papers, paper)
			}
		}

		offset += len(feed.Entries)
		if offset >= feed.TotalResults {
			break
		}
	}

	return &papersources.SearchResult{
		Papers:         papers,
		TotalResults:   totalResults,
		Source:         sourceName,
		SearchDuration: time.Since(startTime),
	}, nil
}

// fetchPage executes a single query against the arXiv API.
func (c *Client) fetchPage(ctx context.Context, params papersources.SearchParams, offset, pageSize int) (*Feed, error) {
	searchURL, err := c.buildSearchURL(params, offset, pageSize)
	if err != nil {
		return nil, fmt.Errorf("building search URL: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, searchURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		return nil, domain.NewExternalAPIError(
			sourceName,
			resp.StatusCode,
			string(body),
			nil,
		)
	}

	// Parse the Atom XML response (limit body to 10MB).
	var feed Feed
	if err := xml.NewDecoder(io.LimitReader(resp.Body, 10<<20)).Decode(&feed); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}

	return &feed, nil
}

// buildSearchURL constructs the arXiv search API URL for one page.
func (c *Client) buildSearchURL(params papersources.SearchParams, offset, pageSize int) (string, error) {
	baseURL, err := url.Parse(c.config.BaseURL)
	if err != nil {
		return "", fmt.Errorf("parsing base URL: %w", err)
	}

	baseURL.Path = strings.TrimRight(baseURL.Path, "/") + "/query"

	searchQuery := "cat:" + params.Category
	if filter := buildUpdatedFilter(params.UpdatedAfter, params.UpdatedBefore); filter != "" {
		searchQuery = searchQuery + " AND " + filter
	}

	query := url.Values{}
	query.Set("search_query", searchQuery)
	query.Set("max_results", strconv.Itoa(pageSize))
	if offset > 0 {
		query.Set("start", strconv.Itoa(offset))
	}

	// Newest updates first so a bounded fetch never misses the head of
	// the window.
	query.Set("sortBy", "lastUpdatedDate")
	query.Set("sortOrder", "descending")

	baseURL.RawQuery = query.Encode()
	return baseURL.String(), nil
}

// buildUpdatedFilter constructs the arXiv lastUpdatedDate range filter.
// The query language wants minute-resolution UTC timestamps and accepts
// "*" for an open bound.
func buildUpdatedFilter(from, to *time.Time) string {
	if from == nil && to == nil {
		return ""
	}

	fromStr := "*"
	if from != nil {
		fromStr = from.UTC().Format(queryTimeFormat)
	}

	toStr := time.Now().UTC().Format(queryTimeFormat)
	if to != nil {
		toStr = to.UTC().Format(queryTimeFormat)
	}

	return fmt.Sprintf("lastUpdatedDate:[%s TO %s]", fromStr, toStr)
}

// entryToPaper converts an arXiv Atom entry to a domain Paper.
// Entries without a recognizable ID are dropped.
func (c *Client) entryToPaper(entry *Entry) *domain.Paper {
	if entry == nil {
		return nil
	}

	arxivID := extractArXivID(entry.ID)
	if arxivID == "" {
		return nil
	}

	var publishedAt, updatedAt time.Time
	if t, err := time.Parse(time.RFC3339, entry.Published); err == nil {
		publishedAt = t.UTC()
	}
	if t, err := time.Parse(time.RFC3339, entry.Updated); err == nil {
		updatedAt = t.UTC()
	}

	authors := make([]string, 0, len(entry.Authors))
	for _, a := range entry.Authors {
		if name := strings.TrimSpace(a.Name); name != "" {
			authors = append(authors, name)
		}
	}

	categories := make([]string, 0, len(entry.Categories))
	for _, cat := range entry.Categories {
		if cat.Term != "" {
			categories = append(categories, cat.Term)
		}
	}

	// Prefer the alternate link; fall back to the entry ID, which is the
	// abstract page URL.
	link := entry.ID
	for _, l := range entry.Links {
		if l.Rel == "alternate" && l.Href != "" {
			link = l.Href
			break
		}
	}

	// arXiv pads titles and abstracts with newlines and runs of spaces.
	return &domain.Paper{
		ArxivID:     arxivID,
		Title:       domain.NormalizeWhitespace(entry.Title),
		Abstract:    domain.NormalizeWhitespace(entry.Summary),
		Authors:     strings.Join(authors, ", "),
		Categories:  strings.Join(categories, ","),
		Link:        link,
		PublishedAt: publishedAt,
		UpdatedAt:   updatedAt,
	}
}

// extractArXivID extracts the arXiv ID from the full entry URL.
// Input: "http://arxiv.org/abs/2301.12345v1" -> "2301.12345"
func extractArXivID(entryURL string) string {
	matches := arxivIDRegex.FindStringSubmatch(entryURL)
	if len(matches) < 2 {
		return ""
	}
	return matches[1]
}
