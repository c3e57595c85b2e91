package repository

import (
	"context"
	"time"

	"pricewatch/comparator/internal/domain"
)

// RetailerStats summarises one retailer's current catalog.
type RetailerStats struct {
	Products    int       `json:"total_products"`
	AvgPrice    float64   `json:"avg_price"`
	LastUpdated time.Time `json:"last_updated"`
}

// CatalogStore is the durable keyed storage the pipeline runs against:
// per-retailer product rows, price history, the ingredient match cache and
// scrape run audit records. Pure data access, no business logic.
type CatalogStore interface {
	// UpsertProducts writes one crawl's products for a retailer as a single
	// all-or-nothing unit. A price or availability change against the stored
	// row appends a price history entry inside the same transaction.
	UpsertProducts(ctx context.Context, retailer domain.Retailer, products []domain.Product) error

	GetProducts(ctx context.Context, retailer domain.Retailer) ([]domain.Product, error)

	// SearchProductsByName does a plain substring lookup. An empty retailer
	// searches all catalogs.
	SearchProductsByName(ctx context.Context, query string, retailer domain.Retailer) ([]domain.Product, error)

	AppendPriceHistory(ctx context.Context, productID string, price float64, availability domain.Availability) error

	// GetLatestPriceHistory returns up to limit observations, newest first.
	GetLatestPriceHistory(ctx context.Context, productID string, limit int) ([]domain.PriceHistoryEntry, error)

	// GetCachedMatches returns memoized match results joined with their
	// products, best score first. The ingredient key is literal text.
	GetCachedMatches(ctx context.Context, ingredient string, retailer domain.Retailer) ([]domain.ProductMatch, error)

	PutCachedMatch(ctx context.Context, match domain.CachedMatch) error

	RecordScrapeRun(ctx context.Context, run domain.ScrapeRun) error

	ScrapeRuns(ctx context.Context, retailer domain.Retailer, limit int) ([]domain.ScrapeRun, error)

	// PurgeOlderThan removes stale products, price history, cached matches
	// and scrape runs by age.
	PurgeOlderThan(ctx context.Context, days int) error

	Stats(ctx context.Context) (map[domain.Retailer]RetailerStats, error)

	Close()
}
