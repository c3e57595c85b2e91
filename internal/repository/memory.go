package repository

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"pricewatch/comparator/internal/domain"
)

// memoryStore is a mutex-guarded in-process CatalogStore. It backs the
// "memory" database driver and the component tests; semantics mirror the
// postgres store, including change-detected price history.
type memoryStore struct {
	mu       sync.RWMutex
	products map[string]domain.Product
	history  map[string][]domain.PriceHistoryEntry
	matches  map[string]domain.CachedMatch
	runs     []domain.ScrapeRun
}

// NewMemoryStore creates an empty in-process catalog store.
func NewMemoryStore() CatalogStore {
	return &memoryStore{
		products: make(map[string]domain.Product),
		history:  make(map[string][]domain.PriceHistoryEntry),
		matches:  make(map[string]domain.CachedMatch),
	}
}

func matchKey(ingredient, productID string, retailer domain.Retailer) string {
	return ingredient + "|" + productID + "|" + string(retailer)
}

func (s *memoryStore) UpsertProducts(_ context.Context, retailer domain.Retailer, products []domain.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, p := range products {
		p.Retailer = retailer
		prev, known := s.products[p.ID]
		if known {
			p.ScrapedAt = prev.ScrapedAt
		}
		s.products[p.ID] = p

		if !known || prev.Price != p.Price || prev.Availability != p.Availability {
			s.history[p.ID] = append(s.history[p.ID], domain.PriceHistoryEntry{
				ProductID:    p.ID,
				Price:        p.Price,
				Availability: p.Availability,
				RecordedAt:   time.Now(),
			})
		}
	}
	return nil
}

func (s *memoryStore) GetProducts(_ context.Context, retailer domain.Retailer) ([]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var products []domain.Product
	for _, p := range s.products {
		if p.Retailer == retailer {
			products = append(products, p)
		}
	}
	sort.Slice(products, func(i, j int) bool { return products[i].Name < products[j].Name })
	return products, nil
}

func (s *memoryStore) SearchProductsByName(_ context.Context, query string, retailer domain.Retailer) ([]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	q := strings.ToLower(query)
	var products []domain.Product
	for _, p := range s.products {
		if retailer != "" && p.Retailer != retailer {
			continue
		}
		if strings.Contains(strings.ToLower(p.Name), q) {
			products = append(products, p)
		}
	}
	sort.Slice(products, func(i, j int) bool { return products[i].Name < products[j].Name })
	if len(products) > 100 {
		products = products[:100]
	}
	return products, nil
}

func (s *memoryStore) AppendPriceHistory(_ context.Context, productID string, price float64, availability domain.Availability) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.history[productID] = append(s.history[productID], domain.PriceHistoryEntry{
		ProductID:    productID,
		Price:        price,
		Availability: availability,
		RecordedAt:   time.Now(),
	})
	return nil
}

func (s *memoryStore) GetLatestPriceHistory(_ context.Context, productID string, limit int) ([]domain.PriceHistoryEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 50
	}
	entries := s.history[productID]
	var latest []domain.PriceHistoryEntry
	for i := len(entries) - 1; i >= 0 && len(latest) < limit; i-- {
		latest = append(latest, entries[i])
	}
	return latest, nil
}

func (s *memoryStore) GetCachedMatches(_ context.Context, ingredient string, retailer domain.Retailer) ([]domain.ProductMatch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matches []domain.ProductMatch
	for _, m := range s.matches {
		if m.Ingredient != ingredient {
			continue
		}
		if retailer != "" && m.Retailer != retailer {
			continue
		}
		p, ok := s.products[m.ProductID]
		if !ok {
			continue
		}
		matches = append(matches, domain.ProductMatch{
			Product:    p,
			Confidence: m.Confidence,
			Score:      m.Score,
		})
	}
	sort.SliceStable(matches, func(i, j int) bool { return matches[i].Score < matches[j].Score })
	if len(matches) > 10 {
		matches = matches[:10]
	}
	return matches, nil
}

func (s *memoryStore) PutCachedMatch(_ context.Context, match domain.CachedMatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	match.CreatedAt = time.Now()
	s.matches[matchKey(match.Ingredient, match.ProductID, match.Retailer)] = match
	return nil
}

func (s *memoryStore) RecordScrapeRun(_ context.Context, run domain.ScrapeRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs = append(s.runs, run)
	return nil
}

func (s *memoryStore) ScrapeRuns(_ context.Context, retailer domain.Retailer, limit int) ([]domain.ScrapeRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 20
	}
	var runs []domain.ScrapeRun
	for i := len(s.runs) - 1; i >= 0 && len(runs) < limit; i-- {
		if retailer != "" && s.runs[i].Retailer != retailer {
			continue
		}
		runs = append(runs, s.runs[i])
	}
	return runs, nil
}

func (s *memoryStore) PurgeOlderThan(_ context.Context, days int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := time.Now().AddDate(0, 0, -days)

	for id, p := range s.products {
		if p.LastUpdated.Before(cutoff) {
			delete(s.products, id)
			delete(s.history, id)
		}
	}
	for id, entries := range s.history {
		kept := entries[:0]
		for _, e := range entries {
			if !e.RecordedAt.Before(cutoff) {
				kept = append(kept, e)
			}
		}
		s.history[id] = kept
	}
	for key, m := range s.matches {
		if m.CreatedAt.Before(cutoff) {
			delete(s.matches, key)
		}
	}
	keptRuns := s.runs[:0]
	for _, r := range s.runs {
		if !r.StartedAt.Before(cutoff) {
			keptRuns = append(keptRuns, r)
		}
	}
	s.runs = keptRuns
	return nil
}

func (s *memoryStore) Stats(_ context.Context) (map[domain.Retailer]RetailerStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sums := make(map[domain.Retailer]float64)
	stats := make(map[domain.Retailer]RetailerStats)
	for _, p := range s.products {
		st := stats[p.Retailer]
		st.Products++
		sums[p.Retailer] += p.Price
		if p.LastUpdated.After(st.LastUpdated) {
			st.LastUpdated = p.LastUpdated
		}
		stats[p.Retailer] = st
	}
	for retailer, st := range stats {
		st.AvgPrice = sums[retailer] / float64(st.Products)
		stats[retailer] = st
	}
	return stats, nil
}

func (s *memoryStore) Close() {}
