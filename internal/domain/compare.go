package domain

import "time"

// StoreLocation is a coarse per-retailer location descriptor. Distance is an
// estimate, not load-bearing for comparison correctness.
type StoreLocation struct {
	Name          string  `json:"name"`
	Address       string  `json:"address"`
	DistanceMiles float64 `json:"distance_miles"`
}

// RetailerTotal is one retailer's basket quote. EstimatedTotal is true when
// any ingredient price came from the fallback estimator rather than a match.
type RetailerTotal struct {
	Retailer           Retailer          `json:"retailer"`
	TotalCost          float64           `json:"total_cost"`
	EstimatedTotal     bool              `json:"estimated_total"`
	IngredientMatches  []IngredientMatch `json:"ingredient_matches"`
	MissingIngredients []string          `json:"missing_ingredients"`
	StoreLocation      StoreLocation     `json:"store_location"`
}

// ComparisonResult is the ranked basket comparison. Stores are sorted
// ascending by total cost; index 0 is always the cheapest basket.
type ComparisonResult struct {
	Postcode   string          `json:"postcode"`
	Stores     []RetailerTotal `json:"stores"`
	ComparedAt time.Time       `json:"comparison_timestamp"`
}
