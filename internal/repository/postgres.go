package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"pricewatch/comparator/internal/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS products (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	price DOUBLE PRECISION NOT NULL,
	currency TEXT NOT NULL DEFAULT 'GBP',
	availability TEXT NOT NULL,
	image_url TEXT,
	category TEXT,
	subcategory TEXT,
	brand TEXT,
	size TEXT,
	unit TEXT,
	retailer TEXT NOT NULL,
	product_url TEXT NOT NULL,
	scraped_at TIMESTAMPTZ NOT NULL,
	last_updated TIMESTAMPTZ NOT NULL,
	UNIQUE (retailer, product_url)
);
CREATE INDEX IF NOT EXISTS idx_products_retailer ON products (retailer);

CREATE TABLE IF NOT EXISTS price_history (
	id BIGSERIAL PRIMARY KEY,
	product_id TEXT NOT NULL REFERENCES products (id) ON DELETE CASCADE,
	price DOUBLE PRECISION NOT NULL,
	availability TEXT NOT NULL,
	recorded_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_price_history_product ON price_history (product_id, recorded_at DESC);

CREATE TABLE IF NOT EXISTS ingredient_matches (
	ingredient_name TEXT NOT NULL,
	product_id TEXT NOT NULL REFERENCES products (id) ON DELETE CASCADE,
	confidence DOUBLE PRECISION NOT NULL,
	score DOUBLE PRECISION NOT NULL,
	retailer TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (ingredient_name, product_id, retailer)
);

CREATE TABLE IF NOT EXISTS scrape_runs (
	id BIGSERIAL PRIMARY KEY,
	retailer TEXT NOT NULL,
	started_at TIMESTAMPTZ NOT NULL,
	completed_at TIMESTAMPTZ NOT NULL,
	products_scraped INT NOT NULL,
	errors TEXT[],
	success BOOLEAN NOT NULL,
	duration_ms BIGINT NOT NULL
);
`

type postgresStore struct {
	db *pgxpool.Pool
}

// NewPostgresStore creates the pgx-backed catalog store and ensures the
// schema exists.
func NewPostgresStore(ctx context.Context, db *pgxpool.Pool) (CatalogStore, error) {
	if _, err := db.Exec(ctx, schema); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return &postgresStore{db: db}, nil
}

func (s *postgresStore) UpsertProducts(ctx context.Context, retailer domain.Retailer, products []domain.Product) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin upsert transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, p := range products {
		var prevPrice float64
		var prevAvail domain.Availability
		known := true
		err := tx.QueryRow(ctx,
			`SELECT price, availability FROM products WHERE id = $1`, p.ID,
		).Scan(&prevPrice, &prevAvail)
		if errors.Is(err, pgx.ErrNoRows) {
			known = false
		} else if err != nil {
			return fmt.Errorf("failed to read existing product %s: %w", p.ID, err)
		}

		_, err = tx.Exec(ctx, `
			INSERT INTO products (id, name, price, currency, availability, image_url, category,
				subcategory, brand, size, unit, retailer, product_url, scraped_at, last_updated)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
			ON CONFLICT (id) DO UPDATE SET
				name = EXCLUDED.name,
				price = EXCLUDED.price,
				availability = EXCLUDED.availability,
				image_url = EXCLUDED.image_url,
				category = EXCLUDED.category,
				subcategory = EXCLUDED.subcategory,
				brand = EXCLUDED.brand,
				size = EXCLUDED.size,
				unit = EXCLUDED.unit,
				last_updated = EXCLUDED.last_updated`,
			p.ID, p.Name, p.Price, p.Currency, string(p.Availability), p.ImageURL, p.Category,
			p.Subcategory, p.Brand, p.Size, p.Unit, string(retailer), p.ProductURL, p.ScrapedAt, p.LastUpdated,
		)
		if err != nil {
			return fmt.Errorf("failed to upsert product %s: %w", p.ID, err)
		}

		// Price history is change-detected, not written every crawl.
		if !known || prevPrice != p.Price || prevAvail != p.Availability {
			_, err = tx.Exec(ctx,
				`INSERT INTO price_history (product_id, price, availability) VALUES ($1, $2, $3)`,
				p.ID, p.Price, string(p.Availability))
			if err != nil {
				return fmt.Errorf("failed to append price history for %s: %w", p.ID, err)
			}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit upsert transaction: %w", err)
	}
	return nil
}

const productColumns = `id, name, price, currency, availability, image_url, category,
	subcategory, brand, size, unit, retailer, product_url, scraped_at, last_updated`

func scanProduct(row pgx.Row) (domain.Product, error) {
	var p domain.Product
	var availability, retailer string
	err := row.Scan(&p.ID, &p.Name, &p.Price, &p.Currency, &availability, &p.ImageURL,
		&p.Category, &p.Subcategory, &p.Brand, &p.Size, &p.Unit, &retailer,
		&p.ProductURL, &p.ScrapedAt, &p.LastUpdated)
	if err != nil {
		return domain.Product{}, err
	}
	p.Availability = domain.Availability(availability)
	p.Retailer = domain.Retailer(retailer)
	return p, nil
}

func collectProducts(rows pgx.Rows) ([]domain.Product, error) {
	defer rows.Close()
	var products []domain.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

func (s *postgresStore) GetProducts(ctx context.Context, retailer domain.Retailer) ([]domain.Product, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+productColumns+` FROM products WHERE retailer = $1 ORDER BY name`,
		string(retailer))
	if err != nil {
		return nil, fmt.Errorf("failed to query products for %s: %w", retailer, err)
	}
	return collectProducts(rows)
}

func (s *postgresStore) SearchProductsByName(ctx context.Context, query string, retailer domain.Retailer) ([]domain.Product, error) {
	sql := `SELECT ` + productColumns + ` FROM products WHERE name ILIKE $1`
	args := []any{"%" + query + "%"}
	if retailer != "" {
		sql += ` AND retailer = $2`
		args = append(args, string(retailer))
	}
	sql += ` ORDER BY name LIMIT 100`

	rows, err := s.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to search products: %w", err)
	}
	return collectProducts(rows)
}

func (s *postgresStore) AppendPriceHistory(ctx context.Context, productID string, price float64, availability domain.Availability) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO price_history (product_id, price, availability) VALUES ($1, $2, $3)`,
		productID, price, string(availability))
	if err != nil {
		return fmt.Errorf("failed to append price history: %w", err)
	}
	return nil
}

func (s *postgresStore) GetLatestPriceHistory(ctx context.Context, productID string, limit int) ([]domain.PriceHistoryEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query(ctx,
		`SELECT product_id, price, availability, recorded_at FROM price_history
		WHERE product_id = $1 ORDER BY recorded_at DESC LIMIT $2`,
		productID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query price history: %w", err)
	}
	defer rows.Close()

	var entries []domain.PriceHistoryEntry
	for rows.Next() {
		var e domain.PriceHistoryEntry
		var availability string
		if err := rows.Scan(&e.ProductID, &e.Price, &availability, &e.RecordedAt); err != nil {
			return nil, fmt.Errorf("failed to scan price history entry: %w", err)
		}
		e.Availability = domain.Availability(availability)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (s *postgresStore) GetCachedMatches(ctx context.Context, ingredient string, retailer domain.Retailer) ([]domain.ProductMatch, error) {
	sql := `SELECT im.confidence, im.score, ` + qualifiedProductColumns("p") + `
		FROM ingredient_matches im
		JOIN products p ON im.product_id = p.id
		WHERE im.ingredient_name = $1`
	args := []any{ingredient}
	if retailer != "" {
		sql += ` AND im.retailer = $2`
		args = append(args, string(retailer))
	}
	sql += ` ORDER BY im.score ASC, im.confidence DESC LIMIT 10`

	rows, err := s.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query cached matches: %w", err)
	}
	defer rows.Close()

	var matches []domain.ProductMatch
	for rows.Next() {
		var m domain.ProductMatch
		var availability, ret string
		err := rows.Scan(&m.Confidence, &m.Score,
			&m.Product.ID, &m.Product.Name, &m.Product.Price, &m.Product.Currency,
			&availability, &m.Product.ImageURL, &m.Product.Category, &m.Product.Subcategory,
			&m.Product.Brand, &m.Product.Size, &m.Product.Unit, &ret,
			&m.Product.ProductURL, &m.Product.ScrapedAt, &m.Product.LastUpdated)
		if err != nil {
			return nil, fmt.Errorf("failed to scan cached match: %w", err)
		}
		m.Product.Availability = domain.Availability(availability)
		m.Product.Retailer = domain.Retailer(ret)
		matches = append(matches, m)
	}
	return matches, rows.Err()
}

func qualifiedProductColumns(alias string) string {
	return alias + `.id, ` + alias + `.name, ` + alias + `.price, ` + alias + `.currency, ` +
		alias + `.availability, ` + alias + `.image_url, ` + alias + `.category, ` +
		alias + `.subcategory, ` + alias + `.brand, ` + alias + `.size, ` + alias + `.unit, ` +
		alias + `.retailer, ` + alias + `.product_url, ` + alias + `.scraped_at, ` + alias + `.last_updated`
}

func (s *postgresStore) PutCachedMatch(ctx context.Context, match domain.CachedMatch) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO ingredient_matches (ingredient_name, product_id, confidence, score, retailer, created_at)
		VALUES ($1, $2, $3, $4, $5, now())
		ON CONFLICT (ingredient_name, product_id, retailer)
		DO UPDATE SET confidence = EXCLUDED.confidence, score = EXCLUDED.score, created_at = now()`,
		match.Ingredient, match.ProductID, match.Confidence, match.Score, string(match.Retailer))
	if err != nil {
		return fmt.Errorf("failed to cache ingredient match: %w", err)
	}
	return nil
}

func (s *postgresStore) RecordScrapeRun(ctx context.Context, run domain.ScrapeRun) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO scrape_runs (retailer, started_at, completed_at, products_scraped, errors, success, duration_ms)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		string(run.Retailer), run.StartedAt, run.CompletedAt, run.ProductsScraped,
		run.Errors, run.Success, run.DurationMS)
	if err != nil {
		return fmt.Errorf("failed to record scrape run: %w", err)
	}
	return nil
}

func (s *postgresStore) ScrapeRuns(ctx context.Context, retailer domain.Retailer, limit int) ([]domain.ScrapeRun, error) {
	if limit <= 0 {
		limit = 20
	}
	sql := `SELECT retailer, started_at, completed_at, products_scraped, errors, success, duration_ms
		FROM scrape_runs`
	args := []any{}
	if retailer != "" {
		sql += ` WHERE retailer = $1`
		args = append(args, string(retailer))
	}
	sql += fmt.Sprintf(` ORDER BY started_at DESC LIMIT %d`, limit)

	rows, err := s.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query scrape runs: %w", err)
	}
	defer rows.Close()

	var runs []domain.ScrapeRun
	for rows.Next() {
		var run domain.ScrapeRun
		var ret string
		if err := rows.Scan(&ret, &run.StartedAt, &run.CompletedAt, &run.ProductsScraped,
			&run.Errors, &run.Success, &run.DurationMS); err != nil {
			return nil, fmt.Errorf("failed to scan scrape run: %w", err)
		}
		run.Retailer = domain.Retailer(ret)
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

func (s *postgresStore) PurgeOlderThan(ctx context.Context, days int) error {
	cutoff := time.Now().AddDate(0, 0, -days)

	statements := []struct {
		name string
		sql  string
	}{
		{"price history", `DELETE FROM price_history WHERE recorded_at < $1`},
		{"ingredient matches", `DELETE FROM ingredient_matches WHERE created_at < $1`},
		{"scrape runs", `DELETE FROM scrape_runs WHERE started_at < $1`},
		{"products", `DELETE FROM products WHERE last_updated < $1`},
	}
	for _, st := range statements {
		if _, err := s.db.Exec(ctx, st.sql, cutoff); err != nil {
			return fmt.Errorf("failed to purge %s: %w", st.name, err)
		}
	}
	return nil
}

func (s *postgresStore) Stats(ctx context.Context) (map[domain.Retailer]RetailerStats, error) {
	rows, err := s.db.Query(ctx, `
		SELECT retailer, COUNT(*), COALESCE(AVG(price), 0), COALESCE(MAX(last_updated), 'epoch'::timestamptz)
		FROM products GROUP BY retailer`)
	if err != nil {
		return nil, fmt.Errorf("failed to query stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[domain.Retailer]RetailerStats)
	for rows.Next() {
		var ret string
		var st RetailerStats
		if err := rows.Scan(&ret, &st.Products, &st.AvgPrice, &st.LastUpdated); err != nil {
			return nil, fmt.Errorf("failed to scan stats: %w", err)
		}
		stats[domain.Retailer(ret)] = st
	}
	return stats, rows.Err()
}

func (s *postgresStore) Close() {
	s.db.Close()
}
