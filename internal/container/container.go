package container

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"pricewatch/comparator/internal/comparator"
	"pricewatch/comparator/internal/config"
	"pricewatch/comparator/internal/crawler"
	"pricewatch/comparator/internal/fetch"
	"pricewatch/comparator/internal/matcher"
	"pricewatch/comparator/internal/repository"
	"pricewatch/comparator/internal/scheduler"
	"pricewatch/comparator/internal/server"
	"pricewatch/comparator/internal/state"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

// Container holds all initialized components
type Container struct {
	Config     *config.Config
	Store      repository.CatalogStore
	Crawler    *crawler.Crawler
	Matcher    *matcher.Matcher
	Comparator *comparator.Comparator
	Server     *server.Server
	Scheduler  *scheduler.Scheduler

	redis   *redis.Client
	http    *fetch.HTTPFetcher
	browser *fetch.BrowserFetcher
}

// New creates a new container with all dependencies initialized
func New(cfg *config.Config) (*Container, error) {
	container := &Container{
		Config: cfg,
	}

	store, err := container.initStore(cfg)
	if err != nil {
		return nil, err
	}
	container.Store = store

	stateManager, err := container.initState(cfg)
	if err != nil {
		return nil, err
	}

	navTimeout := time.Duration(cfg.Crawler.NavigationTimeout) * time.Second
	selTimeout := time.Duration(cfg.Crawler.SelectorTimeout) * time.Second

	container.http = fetch.NewHTTPFetcher(cfg.Crawler.MaxRequestsPerSecond, navTimeout)

	var browserFetcher fetch.Fetcher
	if anyRendered(cfg.Retailers) {
		container.browser = fetch.NewBrowserFetcher(navTimeout, selTimeout)
		browserFetcher = container.browser
	}

	container.Crawler = crawler.New(store, container.http, browserFetcher, stateManager, cfg.Crawler, cfg.SearchTerms)

	provider := matcher.NewStoreProvider(store, cfg.Matcher)
	container.Matcher = matcher.New(store, provider, cfg.Matcher)

	container.Comparator = comparator.New(container.Matcher, cfg.Retailers)

	container.Server = server.New(cfg.Server, container.Comparator, container.Crawler, container.Matcher, store, cfg.Retailers)

	container.Scheduler = scheduler.New(cfg.Scheduler, cfg.Crawler, container.Crawler, container.Matcher, store, stateManager, cfg.Retailers)

	return container, nil
}

func (c *Container) initStore(cfg *config.Config) (repository.CatalogStore, error) {
	if cfg.Database.Driver == "memory" {
		log.Info("Using in-memory catalog store")
		return repository.NewMemoryStore(), nil
	}

	db, err := pgxpool.New(context.Background(),
		fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
			cfg.Database.Host,
			cfg.Database.Port,
			cfg.Database.User,
			cfg.Database.Password,
			cfg.Database.Name,
		))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	store, err := repository.NewPostgresStore(context.Background(), db)
	if err != nil {
		return nil, err
	}

	log.Info("✅ Connected to Postgres successfully")
	return store, nil
}

func (c *Container) initState(cfg *config.Config) (state.Manager, error) {
	if !cfg.Redis.Enabled {
		return state.NewMemoryManager(), nil
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.Database,
	})

	// Test connection
	if _, err := rdb.Ping(context.Background()).Result(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	log.Info("✅ Connected to Redis successfully")

	c.redis = rdb
	return state.NewRedisManager(rdb), nil
}

// Run serves HTTP and runs the cron jobs until ctx is cancelled.
func (c *Container) Run(ctx context.Context) error {
	if c.Config.Scheduler.Enabled {
		if err := c.Scheduler.Start(); err != nil {
			return err
		}
	} else {
		log.Info("Scheduler disabled")
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return c.Server.Run(ctx)
	})

	g.Go(func() error {
		<-ctx.Done()
		if c.Config.Scheduler.Enabled {
			c.Scheduler.Stop()
		}
		return nil
	})

	return g.Wait()
}

// Close performs cleanup when shutting down
func (c *Container) Close() error {
	log.Info("Shutting down container...")

	if c.browser != nil {
		if err := c.browser.Close(); err != nil {
			log.Warnf("Failed to close browser: %v", err)
		}
	}
	if c.http != nil {
		_ = c.http.Close()
	}
	c.Store.Close()
	if c.redis != nil {
		_ = c.redis.Close()
	}

	log.Info("Container shut down successfully")
	return nil
}

func anyRendered(retailers []config.RetailerConfig) bool {
	for _, rc := range retailers {
		if rc.RenderJS {
			return true
		}
	}
	return false
}
