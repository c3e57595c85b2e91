package matcher

import (
	"context"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"pricewatch/comparator/internal/config"
	"pricewatch/comparator/internal/domain"
	"pricewatch/comparator/internal/repository"
)

// Searcher is the read side of an index. It exists as an interface so tests
// can instrument search calls.
type Searcher interface {
	Search(query string, limit int) []ScoredProduct
}

// IndexProvider owns the per-retailer searchable indexes: lazy build on
// first use, rebuild after the staleness window, forced rebuild on demand.
type IndexProvider interface {
	Index(ctx context.Context, retailer domain.Retailer) (Searcher, error)
	RefreshAll(ctx context.Context, retailers []domain.Retailer)
}

type storeProvider struct {
	store     repository.CatalogStore
	ttl       time.Duration
	threshold float64

	mu      sync.RWMutex
	indexes map[domain.Retailer]*Index
}

// NewStoreProvider creates an IndexProvider backed by the catalog store.
func NewStoreProvider(store repository.CatalogStore, cfg config.MatcherConfig) IndexProvider {
	return &storeProvider{
		store:     store,
		ttl:       time.Duration(cfg.IndexTTLMinutes) * time.Minute,
		threshold: cfg.ScoreThreshold,
		indexes:   make(map[domain.Retailer]*Index),
	}
}

func (p *storeProvider) Index(ctx context.Context, retailer domain.Retailer) (Searcher, error) {
	p.mu.RLock()
	ix := p.indexes[retailer]
	p.mu.RUnlock()

	if ix != nil && time.Since(ix.BuiltAt()) < p.ttl {
		return ix, nil
	}
	return p.rebuild(ctx, retailer)
}

// rebuild constructs a fresh index and swaps the reference in. Readers keep
// the old snapshot until the swap; nobody ever observes a partial index.
func (p *storeProvider) rebuild(ctx context.Context, retailer domain.Retailer) (*Index, error) {
	products, err := p.store.GetProducts(ctx, retailer)
	if err != nil {
		return nil, err
	}

	ix := NewIndex(retailer, products, p.threshold)

	p.mu.Lock()
	p.indexes[retailer] = ix
	p.mu.Unlock()

	log.Infof("Search index updated for %s with %d products", retailer, ix.Size())
	return ix, nil
}

func (p *storeProvider) RefreshAll(ctx context.Context, retailers []domain.Retailer) {
	for _, retailer := range retailers {
		if _, err := p.rebuild(ctx, retailer); err != nil {
			log.Errorf("Failed to refresh index for %s: %v", retailer, err)
		}
	}
}
