package domain

import "time"

// ProductMatch is one fuzzy-search candidate for an ingredient. Score is the
// raw match score where lower is better; Confidence is the bucketed quality
// label derived from it.
type ProductMatch struct {
	Product    Product `json:"product"`
	Confidence float64 `json:"confidence"`
	Score      float64 `json:"score"`
}

// IngredientMatch holds the ranked candidates for one ingredient against one
// retailer's catalog. An empty Matches slice is the "no product found"
// terminal outcome, not an error.
type IngredientMatch struct {
	Ingredient string         `json:"ingredient"`
	Matches    []ProductMatch `json:"matches"`
}

// CachedMatch is the memoized result of resolving one ingredient against one
// retailer. The ingredient text is the literal query, not normalized.
type CachedMatch struct {
	Ingredient string    `json:"ingredient"`
	ProductID  string    `json:"product_id"`
	Confidence float64   `json:"confidence"`
	Score      float64   `json:"score"`
	Retailer   Retailer  `json:"retailer"`
	CreatedAt  time.Time `json:"created_at"`
}
