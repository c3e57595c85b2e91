// Package comparator aggregates per-retailer ingredient matches into ranked
// basket totals, estimating prices for unmatched ingredients so a comparison
// always produces a usable answer.
package comparator

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"math"
	"regexp"
	"sort"
	"strings"
	"time"

	"pricewatch/comparator/internal/config"
	"pricewatch/comparator/internal/domain"
	"pricewatch/comparator/internal/matcher"
)

// Client errors: rejected synchronously before any matching work begins.
var (
	ErrNoIngredients   = errors.New("comparator: no ingredients provided")
	ErrInvalidPostcode = errors.New("comparator: invalid postcode")
)

// UK postcode shape, e.g. "SW1A 1AA".
var postcodeRegex = regexp.MustCompile(`(?i)^[A-Z]{1,2}[0-9R][0-9A-Z]? [0-9][ABD-HJLNP-UW-Z]{2}$`)

type Comparator struct {
	matcher   *matcher.Matcher
	retailers []config.RetailerConfig
}

func New(m *matcher.Matcher, retailers []config.RetailerConfig) *Comparator {
	return &Comparator{
		matcher:   m,
		retailers: retailers,
	}
}

// CompareBasket prices the ingredient list at every configured retailer and
// returns the results sorted ascending by total cost; index 0 is always the
// cheapest basket. A retailer-level matcher failure fails the whole
// comparison: a result silently missing a retailer would be misleading.
func (c *Comparator) CompareBasket(ctx context.Context, ingredients []string, postcode string) (*domain.ComparisonResult, error) {
	if len(ingredients) == 0 {
		return nil, ErrNoIngredients
	}
	postcode = strings.TrimSpace(postcode)
	if !postcodeRegex.MatchString(postcode) {
		return nil, ErrInvalidPostcode
	}

	stores := make([]domain.RetailerTotal, 0, len(c.retailers))
	for _, rc := range c.retailers {
		matches, err := c.matcher.MatchForRetailer(ctx, ingredients, rc.Name)
		if err != nil {
			return nil, fmt.Errorf("matching failed for %s: %w", rc.Name, err)
		}
		stores = append(stores, c.storeTotal(rc, matches, ingredients, postcode))
	}

	sort.SliceStable(stores, func(i, j int) bool {
		return stores[i].TotalCost < stores[j].TotalCost
	})

	return &domain.ComparisonResult{
		Postcode:   postcode,
		Stores:     stores,
		ComparedAt: time.Now(),
	}, nil
}

// storeTotal sums one retailer's basket: the best-confidence match per
// ingredient, or the fallback estimate when matching came up empty.
func (c *Comparator) storeTotal(rc config.RetailerConfig, matches []domain.IngredientMatch, ingredients []string, postcode string) domain.RetailerTotal {
	byIngredient := make(map[string]domain.IngredientMatch, len(matches))
	for _, m := range matches {
		byIngredient[m.Ingredient] = m
	}

	total := 0.0
	estimated := false
	var matched []domain.IngredientMatch
	var missing []string

	for _, ingredient := range ingredients {
		match, ok := byIngredient[ingredient]
		if !ok || len(match.Matches) == 0 {
			total += estimateBasePrice(ingredient) * rc.PriceMultiplier
			estimated = true
			missing = append(missing, ingredient)
			continue
		}

		best := bestMatch(match.Matches)
		total += best.Product.Price
		matched = append(matched, domain.IngredientMatch{
			Ingredient: match.Ingredient,
			Matches:    []domain.ProductMatch{best},
		})
	}

	return domain.RetailerTotal{
		Retailer:           rc.Name,
		TotalCost:          round2(total),
		EstimatedTotal:     estimated,
		IngredientMatches:  matched,
		MissingIngredients: missing,
		StoreLocation:      storeLocation(rc, postcode),
	}
}

// bestMatch picks the highest-confidence candidate; ties keep the original
// match order.
func bestMatch(candidates []domain.ProductMatch) domain.ProductMatch {
	best := candidates[0]
	for _, candidate := range candidates[1:] {
		if candidate.Confidence > best.Confidence {
			best = candidate
		}
	}
	return best
}

// storeLocation produces the mock per-retailer store descriptor. Distance is
// a deterministic function of retailer and postcode so repeated comparisons
// agree; it is an estimate, not geolocation.
func storeLocation(rc config.RetailerConfig, postcode string) domain.StoreLocation {
	h := fnv.New32a()
	h.Write([]byte(string(rc.Name) + ":" + strings.ToUpper(postcode)))
	distance := 1.0 + float64(h.Sum32()%80)/10.0 // 1.0 to 8.9 miles

	name := rc.DisplayName
	if name == "" {
		name = rc.Name.DisplayName()
	}
	return domain.StoreLocation{
		Name:          name + " Superstore",
		Address:       "Near " + strings.ToUpper(postcode),
		DistanceMiles: distance,
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
