// Package crawler builds per-retailer product catalogs by walking a bounded
// prefix of the shared search vocabulary against each retailer's search
// endpoint. Crawling is strictly sequential across retailers and terms to
// respect per-site and aggregate rate limits.
package crawler

import (
	"context"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"pricewatch/comparator/internal/config"
	"pricewatch/comparator/internal/domain"
	"pricewatch/comparator/internal/fetch"
	"pricewatch/comparator/internal/repository"
	"pricewatch/comparator/internal/state"
)

type Crawler struct {
	store   repository.CatalogStore
	http    fetch.Fetcher
	browser fetch.Fetcher // nil when no retailer needs rendering
	state   state.Manager // nil disables run bookkeeping
	cfg     config.CrawlerConfig
	terms   []string
}

func New(
	store repository.CatalogStore,
	httpFetcher fetch.Fetcher,
	browserFetcher fetch.Fetcher,
	stateManager state.Manager,
	cfg config.CrawlerConfig,
	terms []string,
) *Crawler {
	return &Crawler{
		store:   store,
		http:    httpFetcher,
		browser: browserFetcher,
		state:   stateManager,
		cfg:     cfg,
		terms:   terms,
	}
}

// CrawlAll crawls the given retailers sequentially with an inter-retailer
// delay. One retailer's total failure is recorded as a zero-product failed
// run and never stops the others.
func (c *Crawler) CrawlAll(ctx context.Context, retailers []config.RetailerConfig) []domain.ScrapeRun {
	runs := make([]domain.ScrapeRun, 0, len(retailers))

	for i, rc := range retailers {
		if i > 0 {
			if err := sleepCtx(ctx, time.Duration(c.cfg.RetailerDelayMS)*time.Millisecond); err != nil {
				log.Warnf("Crawl aborted before %s: %v", rc.Name, err)
				break
			}
		}

		log.Infof("🔄 Starting crawl for %s", rc.Name)
		run, err := c.CrawlRetailer(ctx, rc)
		if err != nil {
			log.Errorf("❌ Failed to crawl %s: %v", rc.Name, err)
		} else {
			log.Infof("✅ Completed %s: %d products, %d errors, success=%v",
				rc.Name, run.ProductsScraped, len(run.Errors), run.Success)
		}
		runs = append(runs, run)
	}

	return runs
}

// CrawlRetailer runs one retailer's crawl: a bounded prefix of the search
// vocabulary, up to a few result pages per term. Per-term failures are
// collected into the run's error list; only a retailer-level failure
// (fetcher unavailable, storage write) returns an error. A ScrapeRun is
// recorded in every case.
func (c *Crawler) CrawlRetailer(ctx context.Context, rc config.RetailerConfig) (domain.ScrapeRun, error) {
	start := time.Now()
	run := domain.ScrapeRun{
		Retailer:  rc.Name,
		StartedAt: start,
	}

	terms := c.terms
	if len(terms) > c.cfg.MaxSearchTerms {
		terms = terms[:c.cfg.MaxSearchTerms]
	}

	fetcher, err := c.fetcherFor(rc)
	if err != nil {
		c.finishRun(ctx, &run, 0, false)
		return run, err
	}

	var products []domain.Product
	for i, term := range terms {
		if ctx.Err() != nil {
			run.Errors = append(run.Errors, fmt.Sprintf("crawl cancelled: %v", ctx.Err()))
			break
		}

		termProducts, err := c.crawlTerm(ctx, fetcher, rc, term)
		products = append(products, termProducts...)
		if err != nil {
			msg := fmt.Sprintf("error scraping %q: %v", term, err)
			run.Errors = append(run.Errors, msg)
			log.Warnf("%s: %s", rc.Name, msg)
		}

		if i < len(terms)-1 {
			if err := sleepCtx(ctx, time.Duration(rc.RateLimitMS)*time.Millisecond); err != nil {
				run.Errors = append(run.Errors, fmt.Sprintf("crawl cancelled: %v", err))
				break
			}
		}
	}

	if len(products) > 0 {
		if err := c.store.UpsertProducts(ctx, rc.Name, products); err != nil {
			c.finishRun(ctx, &run, len(products), false)
			return run, fmt.Errorf("failed to save products for %s: %w", rc.Name, err)
		}
		log.Infof("Saved %d products for %s", len(products), rc.Name)
	}

	// Policy constant: a run succeeds when fewer than the configured share
	// of its terms errored.
	success := float64(len(run.Errors)) < c.cfg.ErrorRateThreshold*float64(len(terms))
	c.finishRun(ctx, &run, len(products), success)

	if success && c.state != nil {
		if err := c.state.SetLastRun(ctx, rc.Name, time.Now()); err != nil {
			log.Warnf("Failed to record last run for %s: %v", rc.Name, err)
		}
	}

	return run, nil
}

func (c *Crawler) finishRun(ctx context.Context, run *domain.ScrapeRun, products int, success bool) {
	run.CompletedAt = time.Now()
	run.DurationMS = run.CompletedAt.Sub(run.StartedAt).Milliseconds()
	run.ProductsScraped = products
	run.Success = success

	if err := c.store.RecordScrapeRun(ctx, *run); err != nil {
		log.Errorf("Failed to record scrape run for %s: %v", run.Retailer, err)
	}
}

// crawlTerm pages through one term's search results. A page with no
// extractable products, or one whose result container never appears, ends
// pagination cleanly; fetch and parse failures surface as the term's error
// alongside whatever was already collected.
func (c *Crawler) crawlTerm(ctx context.Context, fetcher fetch.Fetcher, rc config.RetailerConfig, term string) ([]domain.Product, error) {
	var products []domain.Product

	for page := 1; page <= c.cfg.MaxPagesPerTerm; page++ {
		pageURL := buildSearchURL(rc.SearchURL, term, page)
		log.Debugf("Fetching %s page %d for %q", rc.Name, page, term)

		html, err := fetcher.FetchPage(ctx, fetch.Params{
			URL:          pageURL,
			WaitSelector: rc.Selectors.ProductContainer,
		})
		if errors.Is(err, fetch.ErrNoResults) {
			log.Debugf("No results on %s page %d for %q", rc.Name, page, term)
			break
		}
		if err != nil {
			return products, err
		}

		records, err := extractRecords(html, rc.Selectors)
		if err != nil {
			return products, err
		}
		if len(records) == 0 {
			break
		}

		now := time.Now()
		dropped := 0
		promotedAny := false
		for _, rec := range records {
			product, ok := promote(rec, rc, now)
			if !ok {
				dropped++
				continue
			}
			products = append(products, product)
			promotedAny = true
		}
		if dropped > 0 {
			log.Warnf("Dropped %d unusable records on %s page %d for %q", dropped, rc.Name, page, term)
		}
		if !promotedAny {
			break
		}

		if page < c.cfg.MaxPagesPerTerm {
			if err := sleepCtx(ctx, time.Duration(c.cfg.PageDelayMS)*time.Millisecond); err != nil {
				return products, err
			}
		}
	}

	return products, nil
}

func (c *Crawler) fetcherFor(rc config.RetailerConfig) (fetch.Fetcher, error) {
	if rc.RenderJS {
		if c.browser == nil {
			return nil, fmt.Errorf("retailer %s requires a browser fetcher but none is configured", rc.Name)
		}
		return c.browser, nil
	}
	return c.http, nil
}

// sleepCtx waits for d or until the context is cancelled. The delay is a
// politeness floor, never skipped on the happy path.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
