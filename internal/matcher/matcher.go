// Package matcher resolves free-text ingredient names to catalog products
// per retailer: multi-strategy fuzzy search over an in-memory index with
// confidence scoring and a persistent result cache.
package matcher

import (
	"context"
	"sort"
	"strings"

	log "github.com/sirupsen/logrus"

	"pricewatch/comparator/internal/config"
	"pricewatch/comparator/internal/domain"
	"pricewatch/comparator/internal/repository"
)

// unknownIngredient labels blank or unusable ingredient inputs, which are
// never searched but still produce an empty-match result.
const unknownIngredient = "Unknown"

// Search strategy result caps: normalized text gets the widest net.
const (
	normalizedLimit = 5
	rawLimit        = 3
	strippedLimit   = 3
)

type Matcher struct {
	store      repository.CatalogStore
	provider   IndexProvider
	maxResults int
}

func New(store repository.CatalogStore, provider IndexProvider, cfg config.MatcherConfig) *Matcher {
	maxResults := cfg.MaxResults
	if maxResults <= 0 {
		maxResults = 10
	}
	return &Matcher{
		store:      store,
		provider:   provider,
		maxResults: maxResults,
	}
}

// MatchIngredients resolves every ingredient against every retailer. A
// retailer whose index is unavailable yields an empty match list for that
// retailer only; matching for the others continues.
func (m *Matcher) MatchIngredients(ctx context.Context, ingredients []string, retailers []domain.Retailer) map[domain.Retailer][]domain.IngredientMatch {
	results := make(map[domain.Retailer][]domain.IngredientMatch, len(retailers))
	for _, retailer := range retailers {
		matches, err := m.MatchForRetailer(ctx, ingredients, retailer)
		if err != nil {
			log.Errorf("Error matching ingredients for %s: %v", retailer, err)
			results[retailer] = []domain.IngredientMatch{}
			continue
		}
		results[retailer] = matches
	}
	return results
}

// MatchForRetailer resolves a batch of ingredients against one retailer's
// index. The returned error reports retailer-level failure (no index); an
// ingredient with no candidates is a normal empty-match result.
func (m *Matcher) MatchForRetailer(ctx context.Context, ingredients []string, retailer domain.Retailer) ([]domain.IngredientMatch, error) {
	index, err := m.provider.Index(ctx, retailer)
	if err != nil {
		return nil, err
	}

	matches := make([]domain.IngredientMatch, 0, len(ingredients))
	for _, ingredient := range ingredients {
		matches = append(matches, m.resolve(ctx, index, ingredient, retailer))
	}
	return matches, nil
}

// MatchIngredient is the single-ingredient variant of MatchForRetailer.
func (m *Matcher) MatchIngredient(ctx context.Context, ingredient string, retailer domain.Retailer) (domain.IngredientMatch, error) {
	matches, err := m.MatchForRetailer(ctx, []string{ingredient}, retailer)
	if err != nil {
		return domain.IngredientMatch{}, err
	}
	return matches[0], nil
}

// RefreshAllIndexes forces an immediate rebuild of every retailer's index,
// typically right after a crawl.
func (m *Matcher) RefreshAllIndexes(ctx context.Context, retailers []domain.Retailer) {
	m.provider.RefreshAll(ctx, retailers)
}

func (m *Matcher) resolve(ctx context.Context, index Searcher, ingredient string, retailer domain.Retailer) domain.IngredientMatch {
	if strings.TrimSpace(ingredient) == "" {
		log.Warnf("Skipping invalid ingredient for %s", retailer)
		return domain.IngredientMatch{Ingredient: unknownIngredient, Matches: []domain.ProductMatch{}}
	}

	// The cache key is the literal ingredient text; a hit skips the fuzzy
	// search entirely.
	cached, err := m.store.GetCachedMatches(ctx, ingredient, retailer)
	if err != nil {
		log.Warnf("Cache lookup failed for %q at %s: %v", ingredient, retailer, err)
	}
	if len(cached) > 0 {
		return domain.IngredientMatch{Ingredient: ingredient, Matches: cached}
	}

	hits := m.search(index, ingredient)

	matches := make([]domain.ProductMatch, 0, len(hits))
	for _, hit := range hits {
		match := domain.ProductMatch{
			Product:    hit.Product,
			Confidence: confidenceFor(hit.Score),
			Score:      hit.Score,
		}
		matches = append(matches, match)

		err := m.store.PutCachedMatch(ctx, domain.CachedMatch{
			Ingredient: ingredient,
			ProductID:  hit.Product.ID,
			Confidence: match.Confidence,
			Score:      hit.Score,
			Retailer:   retailer,
		})
		if err != nil {
			log.Warnf("Failed to cache match for %q at %s: %v", ingredient, retailer, err)
		}
	}

	return domain.IngredientMatch{Ingredient: ingredient, Matches: matches}
}

// search runs the three fuzzy strategies (normalized, raw, normalized minus
// stopwords), unions them keeping the first occurrence per product, and
// returns the best results sorted ascending by score.
func (m *Matcher) search(index Searcher, ingredient string) []ScoredProduct {
	normalized := normalizeIngredient(ingredient)

	var combined []ScoredProduct
	combined = append(combined, index.Search(normalized, normalizedLimit)...)
	combined = append(combined, index.Search(ingredient, rawLimit)...)
	combined = append(combined, index.Search(removeStopwords(normalized), strippedLimit)...)

	seen := make(map[string]bool, len(combined))
	unique := combined[:0]
	for _, hit := range combined {
		if seen[hit.Product.ID] {
			continue
		}
		seen[hit.Product.ID] = true
		unique = append(unique, hit)
	}

	sort.SliceStable(unique, func(i, j int) bool { return unique[i].Score < unique[j].Score })
	if len(unique) > m.maxResults {
		unique = unique[:m.maxResults]
	}
	return unique
}

// confidenceFor buckets a raw score into a coarse quality label. The
// boundaries are policy constants, not a calibrated probability.
func confidenceFor(score float64) float64 {
	switch {
	case score <= 0.1:
		return 0.95
	case score <= 0.2:
		return 0.85
	case score <= 0.3:
		return 0.75
	case score <= 0.4:
		return 0.65
	case score <= 0.5:
		return 0.55
	default:
		return 0.45
	}
}
