package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pricewatch/comparator/internal/comparator"
	"pricewatch/comparator/internal/config"
	"pricewatch/comparator/internal/crawler"
	"pricewatch/comparator/internal/domain"
	"pricewatch/comparator/internal/fetch"
	"pricewatch/comparator/internal/matcher"
	"pricewatch/comparator/internal/repository"
)

type noopFetcher struct{}

func (noopFetcher) FetchPage(context.Context, fetch.Params) (string, error) {
	return "", fetch.ErrNoResults
}
func (noopFetcher) Close() error { return nil }

func testServer(t *testing.T) (http.Handler, repository.CatalogStore) {
	t.Helper()

	store := repository.NewMemoryStore()
	retailers := []config.RetailerConfig{
		{Name: domain.RetailerTesco, DisplayName: "Tesco", PriceMultiplier: 1.0,
			SearchURL: "https://tesco.test/search?q={query}&page={page}"},
	}

	mcfg := config.MatcherConfig{IndexTTLMinutes: 30, ScoreThreshold: 0.6, MaxResults: 10}
	m := matcher.New(store, matcher.NewStoreProvider(store, mcfg), mcfg)
	cmp := comparator.New(m, retailers)
	c := crawler.New(store, noopFetcher{}, nil, nil, config.CrawlerConfig{MaxSearchTerms: 1, MaxPagesPerTerm: 1}, []string{"milk"})

	s := New(config.ServerConfig{Host: "localhost", Port: 0}, cmp, c, m, store, retailers)
	return s.httpServer.Handler, store
}

func seedMilk(t *testing.T, store repository.CatalogStore) {
	t.Helper()
	url := "https://tesco.test/p/milk"
	require.NoError(t, store.UpsertProducts(context.Background(), domain.RetailerTesco, []domain.Product{{
		ID:           domain.ProductID(domain.RetailerTesco, url),
		Name:         "Whole Milk 2L",
		Price:        1.20,
		Currency:     "GBP",
		Availability: domain.AvailabilityInStock,
		Retailer:     domain.RetailerTesco,
		ProductURL:   url,
	}}))
}

func TestHandleCompare(t *testing.T) {
	t.Run("valid basket returns ranked stores", func(t *testing.T) {
		handler, store := testServer(t)
		seedMilk(t, store)

		body := `{"ingredients": ["milk"], "postcode": "SW1A 1AA"}`
		req := httptest.NewRequest(http.MethodPost, "/api/compare", strings.NewReader(body))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)

		var result domain.ComparisonResult
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
		require.Len(t, result.Stores, 1)
		assert.Equal(t, domain.RetailerTesco, result.Stores[0].Retailer)
		assert.Equal(t, 1.20, result.Stores[0].TotalCost)
	})

	t.Run("empty basket is a 400", func(t *testing.T) {
		handler, _ := testServer(t)

		body := `{"ingredients": [], "postcode": "SW1A 1AA"}`
		req := httptest.NewRequest(http.MethodPost, "/api/compare", strings.NewReader(body))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "ingredients")
	})

	t.Run("invalid postcode is a 400", func(t *testing.T) {
		handler, _ := testServer(t)

		body := `{"ingredients": ["milk"], "postcode": "nope"}`
		req := httptest.NewRequest(http.MethodPost, "/api/compare", strings.NewReader(body))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "postcode")
	})

	t.Run("malformed JSON is a 400", func(t *testing.T) {
		handler, _ := testServer(t)

		req := httptest.NewRequest(http.MethodPost, "/api/compare", strings.NewReader("{"))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestHandleCrawl(t *testing.T) {
	t.Run("accepted and runs in the background", func(t *testing.T) {
		handler, _ := testServer(t)

		req := httptest.NewRequest(http.MethodPost, "/api/admin/crawl", nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusAccepted, rec.Code)
	})

	t.Run("unknown retailer is a 400", func(t *testing.T) {
		handler, _ := testServer(t)

		req := httptest.NewRequest(http.MethodPost, "/api/admin/crawl?retailer=lidl", nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestHandleRefreshIndexes(t *testing.T) {
	handler, _ := testServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/admin/refresh-indexes", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusAccepted, rec.Code)
}

func TestHandleStats(t *testing.T) {
	handler, store := testServer(t)
	seedMilk(t, store)

	req := httptest.NewRequest(http.MethodGet, "/api/stats", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var stats map[domain.Retailer]repository.RetailerStats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, 1, stats[domain.RetailerTesco].Products)
}

func TestHandleRuns(t *testing.T) {
	handler, store := testServer(t)
	require.NoError(t, store.RecordScrapeRun(context.Background(), domain.ScrapeRun{
		Retailer: domain.RetailerTesco,
		Success:  true,
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/runs?retailer=tesco", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var runs []domain.ScrapeRun
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &runs))
	require.Len(t, runs, 1)
	assert.True(t, runs[0].Success)
}

func TestHandlePriceHistory(t *testing.T) {
	handler, store := testServer(t)
	seedMilk(t, store)

	id := domain.ProductID(domain.RetailerTesco, "https://tesco.test/p/milk")
	req := httptest.NewRequest(http.MethodGet, "/api/products/"+id+"/history", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var entries []domain.PriceHistoryEntry
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &entries))
	require.Len(t, entries, 1)
	assert.Equal(t, 1.20, entries[0].Price)
}

func TestHandleHealth(t *testing.T) {
	handler, _ := testServer(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "ok")
}
