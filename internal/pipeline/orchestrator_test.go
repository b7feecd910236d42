package pipeline

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arxivpulse/pulse-service/internal/domain"
	"github.com/arxivpulse/pulse-service/internal/papersources"
)

var testNow = time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

// fakeSource serves canned results per category and records the params of
// every call.
type fakeSource struct {
	results map[string][]*domain.Paper
	errs    map[string]error
	calls   []papersources.SearchParams
}

func (s *fakeSource) Name() string { return "arXiv" }

func (s *fakeSource) Search(ctx context.Context, params papersources.SearchParams) (*papersources.SearchResult, error) {
	s.calls = append(s.calls, params)
	if err := s.errs[params.Category]; err != nil {
		return nil, err
	}
	papers := s.results[params.Category]
	return &papersources.SearchResult{
		Papers:       papers,
		TotalResults: len(papers),
		Source:       "arXiv",
	}, nil
}

// fakeStore is an in-memory PaperStore.
type fakeStore struct {
	papers     map[string]*domain.Paper
	insertErr  error
	setErr     map[string]error
	summaries  map[string]string
	candidates []*domain.Paper
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		papers:    make(map[string]*domain.Paper),
		setErr:    make(map[string]error),
		summaries: make(map[string]string),
	}
}

func (s *fakeStore) MaxPublishedAt(ctx context.Context) (time.Time, bool, error) {
	var newest time.Time
	found := false
	for _, p := range s.papers {
		if p.PublishedAt.After(newest) {
			newest = p.PublishedAt
			found = true
		}
	}
	return newest, found, nil
}

func (s *fakeStore) ExistingIDs(ctx context.Context, ids []string) (map[string]struct{}, error) {
	existing := make(map[string]struct{})
	for _, id := range ids {
		if _, ok := s.papers[id]; ok {
			existing[id] = struct{}{}
		}
	}
	return existing, nil
}

func (s *fakeStore) InsertNew(ctx context.Context, papers []*domain.Paper) (int, error) {
	if s.insertErr != nil {
		return 0, s.insertErr
	}
	added := 0
	for _, p := range papers {
		if _, ok := s.papers[p.ArxivID]; ok {
			continue
		}
		s.papers[p.ArxivID] = p
		added++
	}
	return added, nil
}

func (s *fakeStore) FindCandidates(ctx context.Context, keywords []string, publishedAfter time.Time, limit int) ([]*domain.Paper, error) {
	if s.candidates != nil {
		return s.candidates, nil
	}
	var out []*domain.Paper
	for _, p := range s.papers {
		if p.LocalSummary == nil && !p.PublishedAt.Before(publishedAfter) && p.MatchesKeywords(keywords) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *fakeStore) SetSummary(ctx context.Context, arxivID, summary string) error {
	if err := s.setErr[arxivID]; err != nil {
		return err
	}
	s.summaries[arxivID] = summary
	if p, ok := s.papers[arxivID]; ok {
		p.LocalSummary = &summary
	}
	return nil
}

// fakeSummarizer returns a fixed Chinese summary, or an error per ID.
type fakeSummarizer struct {
	errs  map[string]error
	calls []string
}

func (f *fakeSummarizer) Summarize(ctx context.Context, title, abstract string) (string, error) {
	f.calls = append(f.calls, title)
	if err := f.errs[title]; err != nil {
		return "", err
	}
	return "摘要：" + title, nil
}

func (f *fakeSummarizer) Provider() string { return "fake" }
func (f *fakeSummarizer) Model() string    { return "fake-model" }

// fakeNotifier records notified papers, or fails per ID.
type fakeNotifier struct {
	errs     map[string]error
	notified []string
}

func (f *fakeNotifier) NotifyPaper(ctx context.Context, paper *domain.Paper) error {
	if err := f.errs[paper.ArxivID]; err != nil {
		return err
	}
	f.notified = append(f.notified, paper.ArxivID)
	return nil
}

func paper(id, title string, published time.Time) *domain.Paper {
	return &domain.Paper{
		ArxivID:     id,
		Title:       title,
		Abstract:    "Abstract of " + title + ".",
		Authors:     "Alice Chen",
		Categories:  "cs.AI",
		Link:        "http://arxiv.org/abs/" + id + "v1",
		PublishedAt: published,
		UpdatedAt:   published,
	}
}

func newOrchestrator(source *fakeSource, store *fakeStore, summarizer *fakeSummarizer, notifier *fakeNotifier, cfg Config) *Orchestrator {
	o := NewOrchestrator(source, store, nil, nil, fixedClock{testNow}, nil, zerolog.Nop(), cfg)
	if summarizer != nil {
		o.summarizer = summarizer
	}
	if notifier != nil {
		o.notifier = notifier
	}
	return o
}

func TestRunIngestionCycle(t *testing.T) {
	ctx := context.Background()

	t.Run("empty store bootstraps a seven day window", func(t *testing.T) {
		source := &fakeSource{results: map[string][]*domain.Paper{}}
		store := newFakeStore()
		o := newOrchestrator(source, store, nil, nil, Config{Categories: []string{"cs.AI"}})

		_, err := o.RunIngestionCycle(ctx)
		require.NoError(t, err)

		require.Len(t, source.calls, 1)
		require.NotNil(t, source.calls[0].UpdatedAfter)
		assert.Equal(t, testNow.Add(-7*24*time.Hour), *source.calls[0].UpdatedAfter)
	})

	t.Run("watermark backs off one hour from stored maximum", func(t *testing.T) {
		source := &fakeSource{results: map[string][]*domain.Paper{}}
		store := newFakeStore()
		newest := testNow.Add(-3 * time.Hour)
		store.papers["2608.00001"] = paper("2608.00001", "Old Paper", newest)

		o := newOrchestrator(source, store, nil, nil, Config{Categories: []string{"cs.AI"}})
		_, err := o.RunIngestionCycle(ctx)
		require.NoError(t, err)

		require.Len(t, source.calls, 1)
		require.NotNil(t, source.calls[0].UpdatedAfter)
		assert.Equal(t, newest.Add(-time.Hour), *source.calls[0].UpdatedAfter)
	})

	t.Run("cross category duplicates collapse to one row", func(t *testing.T) {
		shared := paper("2608.01001", "Shared Paper", testNow.Add(-time.Hour))
		source := &fakeSource{results: map[string][]*domain.Paper{
			"cs.AI": {shared, paper("2608.01002", "AI Paper", testNow.Add(-time.Hour))},
			"cs.LG": {shared},
		}}
		store := newFakeStore()

		o := newOrchestrator(source, store, nil, nil, Config{Categories: []string{"cs.AI", "cs.LG"}})
		stats, err := o.RunIngestionCycle(ctx)
		require.NoError(t, err)

		assert.Equal(t, 3, stats.Fetched)
		assert.Equal(t, 2, stats.Added)
		assert.Equal(t, 1, stats.Duplicates)
		assert.Zero(t, stats.Errors)
		assert.Len(t, store.papers, 2)
	})

	t.Run("second run over the same window adds nothing", func(t *testing.T) {
		results := map[string][]*domain.Paper{
			"cs.AI": {paper("2608.01001", "Paper One", testNow.Add(-time.Hour))},
		}
		source := &fakeSource{results: results}
		store := newFakeStore()
		cfg := Config{Categories: []string{"cs.AI"}}

		o := newOrchestrator(source, store, nil, nil, cfg)
		first, err := o.RunIngestionCycle(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, first.Added)

		second, err := o.RunIngestionCycle(ctx)
		require.NoError(t, err)
		assert.Zero(t, second.Added)
		assert.Equal(t, 1, second.Duplicates)
		assert.Len(t, store.papers, 1)
	})

	t.Run("failed category does not abort the cycle", func(t *testing.T) {
		source := &fakeSource{
			results: map[string][]*domain.Paper{
				"cs.LG": {paper("2608.01002", "LG Paper", testNow.Add(-time.Hour))},
			},
			errs: map[string]error{"cs.AI": errors.New("upstream 503")},
		}
		store := newFakeStore()

		o := newOrchestrator(source, store, nil, nil, Config{Categories: []string{"cs.AI", "cs.LG"}})
		stats, err := o.RunIngestionCycle(ctx)
		require.NoError(t, err)

		assert.Equal(t, 1, stats.Added)
		assert.Equal(t, 1, stats.Errors)
		assert.Len(t, store.papers, 1)
	})

	t.Run("invalid records are skipped and counted", func(t *testing.T) {
		invalid := paper("", "", testNow)
		source := &fakeSource{results: map[string][]*domain.Paper{
			"cs.AI": {invalid, paper("2608.01001", "Good Paper", testNow.Add(-time.Hour))},
		}}
		store := newFakeStore()

		o := newOrchestrator(source, store, nil, nil, Config{Categories: []string{"cs.AI"}})
		stats, err := o.RunIngestionCycle(ctx)
		require.NoError(t, err)

		assert.Equal(t, 1, stats.Added)
		assert.Equal(t, 1, stats.Errors)
	})

	t.Run("failed batch insert fails the cycle", func(t *testing.T) {
		source := &fakeSource{results: map[string][]*domain.Paper{
			"cs.AI": {paper("2608.01001", "Paper", testNow.Add(-time.Hour))},
		}}
		store := newFakeStore()
		store.insertErr = fmt.Errorf("%w: disk full", domain.ErrPersistenceFatal)

		o := newOrchestrator(source, store, nil, nil, Config{Categories: []string{"cs.AI"}})
		_, err := o.RunIngestionCycle(ctx)
		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrPersistenceFatal)
		assert.Empty(t, store.papers)
	})
}

func TestRunEnrichmentCycle(t *testing.T) {
	ctx := context.Background()

	t.Run("no keywords is a no-op", func(t *testing.T) {
		store := newFakeStore()
		store.candidates = []*domain.Paper{paper("2608.01001", "An Agent Framework", testNow)}
		summarizer := &fakeSummarizer{}

		o := newOrchestrator(&fakeSource{}, store, summarizer, &fakeNotifier{}, Config{Keywords: nil})
		stats, err := o.RunEnrichmentCycle(ctx)
		require.NoError(t, err)

		assert.Zero(t, stats.Processed)
		assert.Empty(t, summarizer.calls)
	})

	t.Run("matching paper is summarized and notified", func(t *testing.T) {
		store := newFakeStore()
		store.candidates = []*domain.Paper{paper("2608.01001", "An Agent Framework", testNow.Add(-24*time.Hour))}
		summarizer := &fakeSummarizer{}
		notifier := &fakeNotifier{}

		o := newOrchestrator(&fakeSource{}, store, summarizer, notifier, Config{
			Keywords: []string{"agent"},
			Lookback: 30 * 24 * time.Hour,
		})
		stats, err := o.RunEnrichmentCycle(ctx)
		require.NoError(t, err)

		assert.Equal(t, 1, stats.Processed)
		assert.Equal(t, 1, stats.Summarized)
		assert.Equal(t, 1, stats.Notified)
		assert.Equal(t, "摘要：An Agent Framework", store.summaries["2608.01001"])
		assert.Equal(t, []string{"2608.01001"}, notifier.notified)
	})

	t.Run("keyword matching is case insensitive", func(t *testing.T) {
		store := newFakeStore()
		store.candidates = []*domain.Paper{paper("2608.01001", "An AGENT Framework", testNow.Add(-24*time.Hour))}
		summarizer := &fakeSummarizer{}

		o := newOrchestrator(&fakeSource{}, store, summarizer, &fakeNotifier{}, Config{
			Keywords: []string{"Agent"},
			Lookback: 30 * 24 * time.Hour,
		})
		stats, err := o.RunEnrichmentCycle(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, stats.Summarized)
	})

	t.Run("non-matching candidate skips the summarizer", func(t *testing.T) {
		store := newFakeStore()
		store.candidates = []*domain.Paper{paper("2608.01001", "Graph Neural Networks", testNow.Add(-24*time.Hour))}
		summarizer := &fakeSummarizer{}

		o := newOrchestrator(&fakeSource{}, store, summarizer, &fakeNotifier{}, Config{
			Keywords: []string{"agent"},
			Lookback: 30 * 24 * time.Hour,
		})
		stats, err := o.RunEnrichmentCycle(ctx)
		require.NoError(t, err)

		assert.Equal(t, 1, stats.Processed)
		assert.Zero(t, stats.Summarized)
		assert.Empty(t, summarizer.calls)
	})

	t.Run("summarizer failure isolates to one paper", func(t *testing.T) {
		store := newFakeStore()
		store.candidates = []*domain.Paper{
			paper("2608.01001", "Agent Paper One", testNow.Add(-24*time.Hour)),
			paper("2608.01002", "Agent Paper Two", testNow.Add(-24*time.Hour)),
		}
		summarizer := &fakeSummarizer{errs: map[string]error{
			"Agent Paper One": errors.New("llm timeout"),
		}}
		notifier := &fakeNotifier{}

		o := newOrchestrator(&fakeSource{}, store, summarizer, notifier, Config{
			Keywords: []string{"agent"},
			Lookback: 30 * 24 * time.Hour,
		})
		stats, err := o.RunEnrichmentCycle(ctx)
		require.NoError(t, err)

		assert.Equal(t, 2, stats.Processed)
		assert.Equal(t, 1, stats.Summarized)
		assert.Equal(t, 1, stats.Failed)
		assert.NotContains(t, store.summaries, "2608.01001")
		assert.Contains(t, store.summaries, "2608.01002")
		assert.Equal(t, []string{"2608.01002"}, notifier.notified)
	})

	t.Run("notification failure keeps the committed summary", func(t *testing.T) {
		store := newFakeStore()
		store.candidates = []*domain.Paper{paper("2608.01001", "An Agent Framework", testNow.Add(-24*time.Hour))}
		notifier := &fakeNotifier{errs: map[string]error{
			"2608.01001": domain.ErrNotificationFailed,
		}}

		o := newOrchestrator(&fakeSource{}, store, &fakeSummarizer{}, notifier, Config{
			Keywords: []string{"agent"},
			Lookback: 30 * 24 * time.Hour,
		})
		stats, err := o.RunEnrichmentCycle(ctx)
		require.NoError(t, err)

		assert.Equal(t, 1, stats.Summarized)
		assert.Zero(t, stats.Notified)
		assert.Contains(t, store.summaries, "2608.01001", "notifier failure must not unwind the summary")
	})

	t.Run("concurrently summarized paper is not notified again", func(t *testing.T) {
		store := newFakeStore()
		store.candidates = []*domain.Paper{paper("2608.01001", "An Agent Framework", testNow.Add(-24*time.Hour))}
		store.setErr["2608.01001"] = domain.NewNotFoundError("unsummarized paper", "2608.01001")
		notifier := &fakeNotifier{}

		o := newOrchestrator(&fakeSource{}, store, &fakeSummarizer{}, notifier, Config{
			Keywords: []string{"agent"},
			Lookback: 30 * 24 * time.Hour,
		})
		stats, err := o.RunEnrichmentCycle(ctx)
		require.NoError(t, err)

		assert.Zero(t, stats.Summarized)
		assert.Zero(t, stats.Failed)
		assert.Empty(t, notifier.notified)
	})

	t.Run("summarized paper is never enriched again", func(t *testing.T) {
		store := newFakeStore()
		store.papers["2608.01001"] = paper("2608.01001", "An Agent Framework", testNow.Add(-24*time.Hour))
		summarizer := &fakeSummarizer{}

		o := newOrchestrator(&fakeSource{}, store, summarizer, &fakeNotifier{}, Config{
			Keywords: []string{"agent"},
			Lookback: 30 * 24 * time.Hour,
		})

		_, err := o.RunEnrichmentCycle(ctx)
		require.NoError(t, err)
		_, err = o.RunEnrichmentCycle(ctx)
		require.NoError(t, err)

		assert.Len(t, summarizer.calls, 1, "a paper with a summary must never reach the summarizer again")
	})

	t.Run("cancelled context stops the cycle", func(t *testing.T) {
		store := newFakeStore()
		store.candidates = []*domain.Paper{paper("2608.01001", "An Agent Framework", testNow)}

		cancelled, cancel := context.WithCancel(ctx)
		cancel()

		o := newOrchestrator(&fakeSource{}, store, &fakeSummarizer{}, &fakeNotifier{}, Config{
			Keywords: []string{"agent"},
			Lookback: 30 * 24 * time.Hour,
		})
		_, err := o.RunEnrichmentCycle(cancelled)
		require.Error(t, err)
	})
}

func TestIngestThenEnrich(t *testing.T) {
	ctx := context.Background()

	published := testNow.Add(-2 * time.Hour)
	source := &fakeSource{results: map[string][]*domain.Paper{
		"cs.AI": {
			paper("2608.0000a", "An Agent Framework", published),
			paper("2608.0000b", "Convex Optimization Notes", published),
			paper("2608.0000c", "A Survey of Compilers", published),
		},
	}}
	store := newFakeStore()
	notifier := &fakeNotifier{}

	o := newOrchestrator(source, store, &fakeSummarizer{}, notifier, Config{
		Categories: []string{"cs.AI"},
		Keywords:   []string{"agent"},
		Lookback:   30 * 24 * time.Hour,
	})

	ingest, err := o.RunIngestionCycle(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, ingest.Added)
	assert.Len(t, store.papers, 3)

	enrich, err := o.RunEnrichmentCycle(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, enrich.Processed)
	assert.Equal(t, 1, enrich.Summarized)
	assert.Equal(t, 1, enrich.Notified)

	assert.Equal(t, "摘要：An Agent Framework", store.summaries["2608.0000a"])
	assert.NotContains(t, store.summaries, "2608.0000b")
	assert.NotContains(t, store.summaries, "2608.0000c")
	assert.Equal(t, []string{"2608.0000a"}, notifier.notified)
}
