// Package server exposes the comparison pipeline over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	log "github.com/sirupsen/logrus"

	"pricewatch/comparator/internal/comparator"
	"pricewatch/comparator/internal/config"
	"pricewatch/comparator/internal/crawler"
	"pricewatch/comparator/internal/domain"
	"pricewatch/comparator/internal/matcher"
	"pricewatch/comparator/internal/repository"
)

type Server struct {
	httpServer *http.Server
	comparator *comparator.Comparator
	crawler    *crawler.Crawler
	matcher    *matcher.Matcher
	store      repository.CatalogStore
	retailers  []config.RetailerConfig
}

func New(
	cfg config.ServerConfig,
	cmp *comparator.Comparator,
	c *crawler.Crawler,
	m *matcher.Matcher,
	store repository.CatalogStore,
	retailers []config.RetailerConfig,
) *Server {
	s := &Server{
		comparator: cmp,
		crawler:    c,
		matcher:    m,
		store:      store,
		retailers:  retailers,
	}

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(60 * time.Second))

	router.Get("/health", s.handleHealth)
	router.Route("/api", func(r chi.Router) {
		r.Post("/compare", s.handleCompare)
		r.Get("/stats", s.handleStats)
		r.Get("/runs", s.handleRuns)
		r.Get("/products/{productID}/history", s.handlePriceHistory)
		r.Route("/admin", func(r chi.Router) {
			r.Post("/crawl", s.handleCrawl)
			r.Post("/refresh-indexes", s.handleRefreshIndexes)
		})
	})

	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		log.Infof("🚀 HTTP server listening on %s", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server failed: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http server shutdown failed: %w", err)
	}
	return nil
}

type compareRequest struct {
	Ingredients []string `json:"ingredients"`
	Postcode    string   `json:"postcode"`
}

func (s *Server) handleCompare(w http.ResponseWriter, r *http.Request) {
	var req compareRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := s.comparator.CompareBasket(r.Context(), req.Ingredients, req.Postcode)
	if err != nil {
		switch {
		case errors.Is(err, comparator.ErrNoIngredients):
			writeError(w, http.StatusBadRequest, "ingredients list is empty")
		case errors.Is(err, comparator.ErrInvalidPostcode):
			writeError(w, http.StatusBadRequest, "postcode is not a valid UK postcode")
		default:
			log.Errorf("Comparison failed: %v", err)
			writeError(w, http.StatusInternalServerError, "comparison failed")
		}
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// handleCrawl starts a full crawl in the background and returns
// immediately. A manual crawl ignores the minimum recrawl interval.
func (s *Server) handleCrawl(w http.ResponseWriter, r *http.Request) {
	retailers := s.retailers
	if name := r.URL.Query().Get("retailer"); name != "" {
		rc, ok := s.retailerByName(name)
		if !ok {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown retailer %q", name))
			return
		}
		retailers = []config.RetailerConfig{rc}
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Hour)
		defer cancel()
		s.crawler.CrawlAll(ctx, retailers)
		s.matcher.RefreshAllIndexes(ctx, retailerNames(retailers))
	}()

	writeJSON(w, http.StatusAccepted, map[string]string{"status": "crawl started"})
}

// handleRefreshIndexes rebuilds in the background: a large-catalog rebuild
// must not be cut short by the request timeout.
func (s *Server) handleRefreshIndexes(w http.ResponseWriter, _ *http.Request) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
		defer cancel()
		s.matcher.RefreshAllIndexes(ctx, retailerNames(s.retailers))
	}()

	writeJSON(w, http.StatusAccepted, map[string]string{"status": "index refresh started"})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.store.Stats(r.Context())
	if err != nil {
		log.Errorf("Failed to load stats: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to load stats")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	var retailer domain.Retailer
	if name := r.URL.Query().Get("retailer"); name != "" {
		rc, ok := s.retailerByName(name)
		if !ok {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown retailer %q", name))
			return
		}
		retailer = rc.Name
	}

	runs, err := s.store.ScrapeRuns(r.Context(), retailer, 20)
	if err != nil {
		log.Errorf("Failed to load scrape runs: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to load scrape runs")
		return
	}
	writeJSON(w, http.StatusOK, runs)
}

func (s *Server) handlePriceHistory(w http.ResponseWriter, r *http.Request) {
	productID := chi.URLParam(r, "productID")

	entries, err := s.store.GetLatestPriceHistory(r.Context(), productID, 50)
	if err != nil {
		log.Errorf("Failed to load price history for %s: %v", productID, err)
		writeError(w, http.StatusInternalServerError, "failed to load price history")
		return
	}
	if entries == nil {
		entries = []domain.PriceHistoryEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) retailerByName(name string) (config.RetailerConfig, bool) {
	for _, rc := range s.retailers {
		if string(rc.Name) == name {
			return rc, true
		}
	}
	return config.RetailerConfig{}, false
}

func retailerNames(retailers []config.RetailerConfig) []domain.Retailer {
	names := make([]domain.Retailer, 0, len(retailers))
	for _, rc := range retailers {
		names = append(names, rc.Name)
	}
	return names
}
