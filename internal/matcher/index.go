package matcher

import (
	"sort"
	"strings"
	"time"

	"github.com/agnivade/levenshtein"

	"pricewatch/comparator/internal/domain"
)

// Field weights for scoring: the product name counts most, then the derived
// searchable text, category and brand. A match in a lighter field scores
// worse than the same match in a heavier one.
const (
	weightName       = 0.7
	weightSearchText = 0.5
	weightCategory   = 0.3
	weightBrand      = 0.2
)

// substringScore is the distance assigned when a query token appears inside
// a field without being a whole token ("tomato" in "tomatoes").
const substringScore = 0.1

// ScoredProduct is one index hit. Score is in [0,1]; lower is better.
type ScoredProduct struct {
	Product domain.Product
	Score   float64
}

type indexedField struct {
	text   string
	tokens []string
	weight float64
}

type indexedProduct struct {
	product domain.Product
	fields  []indexedField
}

// Index is an immutable fuzzy-search view over one retailer's catalog.
// Rebuild replaces the whole index; it is never patched in place, so readers
// always see a consistent snapshot.
type Index struct {
	retailer  domain.Retailer
	products  []indexedProduct
	threshold float64
	builtAt   time.Time
}

// NewIndex builds the searchable view. Each product carries a derived
// searchable text field: name, category, subcategory, brand, size and unit
// joined and lower-cased.
func NewIndex(retailer domain.Retailer, products []domain.Product, scoreThreshold float64) *Index {
	indexed := make([]indexedProduct, 0, len(products))
	for _, p := range products {
		name := strings.ToLower(p.Name)
		searchText := searchableText(p)
		category := strings.ToLower(p.Category)
		brand := strings.ToLower(p.Brand)

		indexed = append(indexed, indexedProduct{
			product: p,
			fields: []indexedField{
				{text: name, tokens: strings.Fields(name), weight: weightName},
				{text: searchText, tokens: strings.Fields(searchText), weight: weightSearchText},
				{text: category, tokens: strings.Fields(category), weight: weightCategory},
				{text: brand, tokens: strings.Fields(brand), weight: weightBrand},
			},
		})
	}

	return &Index{
		retailer:  retailer,
		products:  indexed,
		threshold: scoreThreshold,
		builtAt:   time.Now(),
	}
}

func searchableText(p domain.Product) string {
	parts := make([]string, 0, 6)
	for _, part := range []string{p.Name, p.Category, p.Subcategory, p.Brand, p.Size, p.Unit} {
		if part != "" {
			parts = append(parts, part)
		}
	}
	return strings.ToLower(strings.Join(parts, " "))
}

func (ix *Index) Retailer() domain.Retailer { return ix.retailer }
func (ix *Index) Size() int                 { return len(ix.products) }
func (ix *Index) BuiltAt() time.Time        { return ix.builtAt }

// Search scores every product against the query and returns up to limit
// candidates sorted ascending by score. Candidates above the noise threshold
// are discarded.
func (ix *Index) Search(query string, limit int) []ScoredProduct {
	tokens := strings.Fields(strings.ToLower(strings.TrimSpace(query)))
	if len(tokens) == 0 {
		return nil
	}

	var hits []ScoredProduct
	for _, ip := range ix.products {
		score := scoreProduct(tokens, ip)
		if score > ix.threshold {
			continue
		}
		hits = append(hits, ScoredProduct{Product: ip.product, Score: score})
	}

	// Stable sort keeps catalog order for ties.
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score < hits[j].Score })
	if limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}
	return hits
}

// scoreProduct takes the best field score, penalised by field weight so a
// brand-only hit never outranks a name hit of equal quality.
func scoreProduct(queryTokens []string, ip indexedProduct) float64 {
	best := 1.0
	for _, f := range ip.fields {
		fs := fieldScore(queryTokens, f)
		effective := fs * (weightName / f.weight)
		if effective > 1 {
			effective = 1
		}
		if effective < best {
			best = effective
		}
	}
	return best
}

// fieldScore averages, over the query tokens, each token's distance to its
// closest field token. Exact token hits score 0, substring hits a small
// constant, everything else normalized edit distance.
func fieldScore(queryTokens []string, f indexedField) float64 {
	if len(f.tokens) == 0 {
		return 1
	}

	total := 0.0
	for _, qt := range queryTokens {
		best := 1.0
		if strings.Contains(f.text, qt) {
			best = substringScore
		}
		for _, ft := range f.tokens {
			if qt == ft {
				best = 0
				break
			}
			if d := normalizedDistance(qt, ft); d < best {
				best = d
			}
		}
		total += best
	}
	return total / float64(len(queryTokens))
}

func normalizedDistance(a, b string) float64 {
	longest := len([]rune(a))
	if l := len([]rune(b)); l > longest {
		longest = l
	}
	if longest == 0 {
		return 0
	}
	return float64(levenshtein.ComputeDistance(a, b)) / float64(longest)
}
