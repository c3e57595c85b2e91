package matcher

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pricewatch/comparator/internal/domain"
)

func catalogProduct(name, category, brand string) domain.Product {
	url := "https://tesco.example.com/products/" + name
	return domain.Product{
		ID:           domain.ProductID(domain.RetailerTesco, url),
		Name:         name,
		Price:        1.50,
		Currency:     "GBP",
		Availability: domain.AvailabilityInStock,
		Category:     category,
		Brand:        brand,
		Retailer:     domain.RetailerTesco,
		ProductURL:   url,
	}
}

func TestIndexSearch(t *testing.T) {
	products := []domain.Product{
		catalogProduct("Fresh Spinach 250g", "Fresh Produce", ""),
		catalogProduct("Baby Spinach Leaves", "Fresh Produce", ""),
		catalogProduct("Whole Milk 2L", "Dairy & Eggs", "Tesco"),
		catalogProduct("Chopped Tomatoes 400g", "Pantry & Canned", ""),
	}
	ix := NewIndex(domain.RetailerTesco, products, 0.6)

	t.Run("exact token match ranks both spinach products first", func(t *testing.T) {
		hits := ix.Search("spinach", 10)
		require.GreaterOrEqual(t, len(hits), 2)

		names := []string{hits[0].Product.Name, hits[1].Product.Name}
		assert.Contains(t, names, "Fresh Spinach 250g")
		assert.Contains(t, names, "Baby Spinach Leaves")
		assert.Equal(t, 0.0, hits[0].Score)
		assert.Equal(t, 0.0, hits[1].Score)
	})

	t.Run("unrelated query scores above threshold and is discarded", func(t *testing.T) {
		hits := ix.Search("xylophone", 10)
		assert.Empty(t, hits)
	})

	t.Run("empty query returns nothing", func(t *testing.T) {
		assert.Empty(t, ix.Search("   ", 10))
	})

	t.Run("results are sorted ascending by score", func(t *testing.T) {
		hits := ix.Search("milk", 10)
		for i := 1; i < len(hits); i++ {
			assert.LessOrEqual(t, hits[i-1].Score, hits[i].Score)
		}
	})

	t.Run("limit truncates the result set", func(t *testing.T) {
		hits := ix.Search("fresh", 1)
		assert.Len(t, hits, 1)
	})

	t.Run("substring match scores better than edit distance", func(t *testing.T) {
		hits := ix.Search("tomato", 10)
		require.NotEmpty(t, hits)
		assert.Equal(t, "Chopped Tomatoes 400g", hits[0].Product.Name)
		assert.LessOrEqual(t, hits[0].Score, substringScore)
	})
}

func TestScoreProductFieldWeighting(t *testing.T) {
	// A near-miss in a lighter field must score worse than the same
	// near-miss in the product name.
	nameHit := NewIndex(domain.RetailerTesco, []domain.Product{
		catalogProduct("Heinz Beans", "", ""),
	}, 1.0)
	brandHit := NewIndex(domain.RetailerTesco, []domain.Product{
		catalogProduct("Baked Beans", "", "Heinz"),
	}, 1.0)

	nameHits := nameHit.Search("heinx", 1)
	brandHits := brandHit.Search("heinx", 1)
	require.Len(t, nameHits, 1)
	require.Len(t, brandHits, 1)
	assert.Less(t, nameHits[0].Score, brandHits[0].Score)
}

func TestNormalizedDistance(t *testing.T) {
	tests := []struct {
		a, b string
		want float64
	}{
		{"milk", "milk", 0},
		{"", "", 0},
		{"abcd", "wxyz", 1},
		{"milk", "silk", 0.25},
	}
	for _, tt := range tests {
		assert.InDelta(t, tt.want, normalizedDistance(tt.a, tt.b), 1e-9, "distance(%q, %q)", tt.a, tt.b)
	}
}

func TestSearchableText(t *testing.T) {
	p := domain.Product{Name: "Whole Milk", Category: "Dairy & Eggs", Brand: "Arla", Size: "2", Unit: "L"}
	assert.Equal(t, "whole milk dairy & eggs arla 2 l", searchableText(p))
}
