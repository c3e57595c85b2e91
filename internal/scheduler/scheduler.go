// Package scheduler runs the periodic jobs: crawl-then-refresh, catalog
// retention cleanup and search index refresh.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"

	"pricewatch/comparator/internal/config"
	"pricewatch/comparator/internal/crawler"
	"pricewatch/comparator/internal/domain"
	"pricewatch/comparator/internal/matcher"
	"pricewatch/comparator/internal/repository"
	"pricewatch/comparator/internal/state"
)

type Scheduler struct {
	cron      *cron.Cron
	cfg       config.SchedulerConfig
	crawlCfg  config.CrawlerConfig
	crawler   *crawler.Crawler
	matcher   *matcher.Matcher
	store     repository.CatalogStore
	state     state.Manager
	retailers []config.RetailerConfig
}

func New(
	cfg config.SchedulerConfig,
	crawlCfg config.CrawlerConfig,
	c *crawler.Crawler,
	m *matcher.Matcher,
	store repository.CatalogStore,
	stateManager state.Manager,
	retailers []config.RetailerConfig,
) *Scheduler {
	return &Scheduler{
		cron:      cron.New(),
		cfg:       cfg,
		crawlCfg:  crawlCfg,
		crawler:   c,
		matcher:   m,
		store:     store,
		state:     stateManager,
		retailers: retailers,
	}
}

func (s *Scheduler) Start() error {
	jobs := []struct {
		name     string
		schedule string
		run      func()
	}{
		{"crawl", s.cfg.CrawlSchedule, s.runCrawl},
		{"cleanup", s.cfg.CleanupSchedule, s.runCleanup},
		{"index-refresh", s.cfg.RefreshSchedule, s.runRefresh},
	}
	for _, job := range jobs {
		if _, err := s.cron.AddFunc(job.schedule, job.run); err != nil {
			return fmt.Errorf("failed to schedule %s job (%q): %w", job.name, job.schedule, err)
		}
		log.Infof("Scheduled %s job: %s", job.name, job.schedule)
	}

	s.cron.Start()
	return nil
}

// Stop halts scheduling and waits for any running job to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

func (s *Scheduler) runContext() (context.Context, context.CancelFunc) {
	timeout := time.Duration(s.cfg.RunTimeoutMinutes) * time.Minute
	if timeout <= 0 {
		timeout = 2 * time.Hour
	}
	return context.WithTimeout(context.Background(), timeout)
}

// runCrawl crawls retailers due for a re-crawl and refreshes the search
// indexes afterwards so matches pick up the new catalog.
func (s *Scheduler) runCrawl() {
	ctx, cancel := s.runContext()
	defer cancel()

	due := s.dueRetailers(ctx)
	if len(due) == 0 {
		log.Info("Scheduled crawl: no retailers due")
		return
	}

	log.Infof("Starting scheduled crawl for %d retailers", len(due))
	runs := s.crawler.CrawlAll(ctx, due)

	scraped, failed := 0, 0
	for _, run := range runs {
		scraped += run.ProductsScraped
		if !run.Success {
			failed++
		}
	}
	log.Infof("Scheduled crawl completed: %d products, %d/%d retailers failed", scraped, failed, len(runs))

	s.matcher.RefreshAllIndexes(ctx, s.retailerNames())
}

// dueRetailers filters out retailers crawled successfully inside the
// minimum recrawl interval.
func (s *Scheduler) dueRetailers(ctx context.Context) []config.RetailerConfig {
	if s.state == nil || s.crawlCfg.MinRecrawlMinutes <= 0 {
		return s.retailers
	}

	minInterval := time.Duration(s.crawlCfg.MinRecrawlMinutes) * time.Minute
	due := make([]config.RetailerConfig, 0, len(s.retailers))
	for _, rc := range s.retailers {
		last, err := s.state.LastRun(ctx, rc.Name)
		if err != nil {
			log.Warnf("Failed to read last run for %s: %v", rc.Name, err)
			due = append(due, rc)
			continue
		}
		if !last.IsZero() && time.Since(last) < minInterval {
			log.Infof("Skipping %s: crawled %v ago", rc.Name, time.Since(last).Round(time.Minute))
			continue
		}
		due = append(due, rc)
	}
	return due
}

func (s *Scheduler) runCleanup() {
	ctx, cancel := s.runContext()
	defer cancel()

	log.Infof("Starting scheduled cleanup (retention %d days)", s.crawlCfg.RetentionDays)
	if err := s.store.PurgeOlderThan(ctx, s.crawlCfg.RetentionDays); err != nil {
		log.Errorf("Scheduled cleanup failed: %v", err)
		return
	}
	log.Info("Scheduled cleanup completed")
}

func (s *Scheduler) runRefresh() {
	ctx, cancel := s.runContext()
	defer cancel()

	log.Info("Refreshing search indexes")
	s.matcher.RefreshAllIndexes(ctx, s.retailerNames())
}

func (s *Scheduler) retailerNames() []domain.Retailer {
	names := make([]domain.Retailer, 0, len(s.retailers))
	for _, rc := range s.retailers {
		names = append(names, rc.Name)
	}
	return names
}
