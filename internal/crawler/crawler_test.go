package crawler

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pricewatch/comparator/internal/config"
	"pricewatch/comparator/internal/domain"
	"pricewatch/comparator/internal/fetch"
	"pricewatch/comparator/internal/repository"
	"pricewatch/comparator/internal/state"
)

// stubFetcher serves canned pages by URL. Unknown URLs report the end of
// pagination, the way a live site with no more results does.
type stubFetcher struct {
	pages map[string]string
	errs  map[string]error
	calls []string
}

func (f *stubFetcher) FetchPage(_ context.Context, p fetch.Params) (string, error) {
	f.calls = append(f.calls, p.URL)
	if err, ok := f.errs[p.URL]; ok {
		return "", err
	}
	if html, ok := f.pages[p.URL]; ok {
		return html, nil
	}
	return "", fetch.ErrNoResults
}

func (f *stubFetcher) Close() error { return nil }

func testCrawlerConfig(maxTerms int) config.CrawlerConfig {
	return config.CrawlerConfig{
		MaxSearchTerms:     maxTerms,
		MaxPagesPerTerm:    3,
		ErrorRateThreshold: 0.5,
	}
}

func pageURL(term string, page int) string {
	return buildSearchURL(testRetailer.SearchURL, term, page)
}

func TestCrawlRetailer(t *testing.T) {
	ctx := context.Background()

	t.Run("stores extracted products and records a successful run", func(t *testing.T) {
		store := repository.NewMemoryStore()
		fetcher := &stubFetcher{pages: map[string]string{
			pageURL("milk", 1): resultsPage,
		}}
		c := New(store, fetcher, nil, nil, testCrawlerConfig(1), []string{"milk"})

		run, err := c.CrawlRetailer(ctx, testRetailer)
		require.NoError(t, err)

		assert.True(t, run.Success)
		assert.Equal(t, 2, run.ProductsScraped)
		assert.Empty(t, run.Errors)

		products, err := store.GetProducts(ctx, domain.RetailerTesco)
		require.NoError(t, err)
		assert.Len(t, products, 2)

		runs, err := store.ScrapeRuns(ctx, domain.RetailerTesco, 10)
		require.NoError(t, err)
		require.Len(t, runs, 1)
		assert.True(t, runs[0].Success)
		assert.GreaterOrEqual(t, runs[0].DurationMS, int64(0))
		assert.Less(t, runs[0].DurationMS, int64(60_000), "duration is millisecond-scaled")
	})

	t.Run("re-crawl is idempotent", func(t *testing.T) {
		store := repository.NewMemoryStore()
		fetcher := &stubFetcher{pages: map[string]string{
			pageURL("milk", 1): resultsPage,
		}}
		c := New(store, fetcher, nil, nil, testCrawlerConfig(1), []string{"milk"})

		_, err := c.CrawlRetailer(ctx, testRetailer)
		require.NoError(t, err)
		_, err = c.CrawlRetailer(ctx, testRetailer)
		require.NoError(t, err)

		products, err := store.GetProducts(ctx, domain.RetailerTesco)
		require.NoError(t, err)
		assert.Len(t, products, 2, "same catalog entries after a second crawl")
	})

	t.Run("pagination stops when a page has no results", func(t *testing.T) {
		store := repository.NewMemoryStore()
		fetcher := &stubFetcher{pages: map[string]string{
			pageURL("milk", 1): resultsPage,
			// page 2 missing: the stub reports end of results
		}}
		c := New(store, fetcher, nil, nil, testCrawlerConfig(1), []string{"milk"})

		run, err := c.CrawlRetailer(ctx, testRetailer)
		require.NoError(t, err)
		assert.True(t, run.Success)
		assert.Equal(t, []string{pageURL("milk", 1), pageURL("milk", 2)}, fetcher.calls)
	})

	t.Run("term failures are collected, not fatal", func(t *testing.T) {
		store := repository.NewMemoryStore()
		fetcher := &stubFetcher{
			pages: map[string]string{pageURL("milk", 1): resultsPage},
			errs:  map[string]error{pageURL("bread", 1): errors.New("connection reset")},
		}
		c := New(store, fetcher, nil, nil, testCrawlerConfig(2), []string{"milk", "bread"})

		run, err := c.CrawlRetailer(ctx, testRetailer)
		require.NoError(t, err)
		assert.Equal(t, 2, run.ProductsScraped)
		require.Len(t, run.Errors, 1)
		assert.Contains(t, run.Errors[0], "bread")
	})

	t.Run("rendered retailer without a browser fails the run", func(t *testing.T) {
		store := repository.NewMemoryStore()
		rendered := testRetailer
		rendered.RenderJS = true
		c := New(store, &stubFetcher{}, nil, nil, testCrawlerConfig(1), []string{"milk"})

		run, err := c.CrawlRetailer(ctx, rendered)
		assert.Error(t, err)
		assert.False(t, run.Success)

		runs, err := store.ScrapeRuns(ctx, domain.RetailerTesco, 10)
		require.NoError(t, err)
		require.Len(t, runs, 1, "a failed run is still recorded")
		assert.False(t, runs[0].Success)
	})

	t.Run("limits terms to the configured prefix", func(t *testing.T) {
		store := repository.NewMemoryStore()
		fetcher := &stubFetcher{}
		c := New(store, fetcher, nil, nil, testCrawlerConfig(2), []string{"a", "b", "c", "d"})

		_, err := c.CrawlRetailer(ctx, testRetailer)
		require.NoError(t, err)
		assert.Equal(t, []string{pageURL("a", 1), pageURL("b", 1)}, fetcher.calls)
	})
}

func TestCrawlRetailerSuccessThreshold(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name        string
		failing     int
		wantSuccess bool
	}{
		{"4 of 10 terms failing succeeds", 4, true},
		{"5 of 10 terms failing fails", 5, false},
		{"6 of 10 terms failing fails", 6, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			terms := make([]string, 10)
			fetcher := &stubFetcher{
				pages: make(map[string]string),
				errs:  make(map[string]error),
			}
			for i := range terms {
				terms[i] = fmt.Sprintf("term%d", i)
				if i < tt.failing {
					fetcher.errs[pageURL(terms[i], 1)] = errors.New("http 500")
				} else {
					fetcher.pages[pageURL(terms[i], 1)] = resultsPage
				}
			}

			store := repository.NewMemoryStore()
			c := New(store, fetcher, nil, nil, testCrawlerConfig(10), terms)

			run, err := c.CrawlRetailer(ctx, testRetailer)
			require.NoError(t, err)
			assert.Len(t, run.Errors, tt.failing)
			assert.Equal(t, tt.wantSuccess, run.Success)
		})
	}
}

func TestCrawlRetailerRecordsLastRun(t *testing.T) {
	ctx := context.Background()
	manager := state.NewMemoryManager()

	store := repository.NewMemoryStore()
	fetcher := &stubFetcher{pages: map[string]string{
		pageURL("milk", 1): resultsPage,
	}}
	c := New(store, fetcher, nil, manager, testCrawlerConfig(1), []string{"milk"})

	before := time.Now()
	_, err := c.CrawlRetailer(ctx, testRetailer)
	require.NoError(t, err)

	last, err := manager.LastRun(ctx, domain.RetailerTesco)
	require.NoError(t, err)
	assert.False(t, last.IsZero())
	assert.False(t, last.Before(before.Truncate(time.Second)))
}

func TestCrawlAll(t *testing.T) {
	ctx := context.Background()

	asda := testRetailer
	asda.Name = domain.RetailerAsda
	asda.SearchURL = "https://groceries.asda.test/search?q={query}&page={page}"

	store := repository.NewMemoryStore()
	fetcher := &stubFetcher{
		pages: map[string]string{
			pageURL("milk", 1): resultsPage,
		},
		errs: map[string]error{
			buildSearchURL(asda.SearchURL, "milk", 1): errors.New("http 500"),
		},
	}
	c := New(store, fetcher, nil, nil, testCrawlerConfig(1), []string{"milk"})

	runs := c.CrawlAll(ctx, []config.RetailerConfig{testRetailer, asda})
	require.Len(t, runs, 2, "one retailer failing never stops the others")
	assert.True(t, runs[0].Success)
	assert.False(t, runs[1].Success)
}
