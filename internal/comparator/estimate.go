package comparator

import "strings"

// categoryPrice pairs an ingredient keyword with a base price estimate in
// GBP. Ordered: the first keyword found in the ingredient wins, so specific
// proteins sit above generic pantry terms.
type categoryPrice struct {
	keyword string
	price   float64
}

var categoryPrices = []categoryPrice{
	// Meat & fish
	{"chicken", 5.50}, {"beef", 8.00}, {"pork", 6.00}, {"salmon", 7.50}, {"fish", 6.00},

	// Dairy
	{"milk", 1.20}, {"cheese", 3.50}, {"butter", 2.50}, {"cream", 2.00}, {"yogurt", 2.80},

	// Vegetables
	{"onion", 1.00}, {"potato", 1.50}, {"carrot", 1.20}, {"tomato", 2.50}, {"pepper", 2.00},
	{"garlic", 0.80}, {"ginger", 1.50},

	// Fruits
	{"apple", 2.50}, {"banana", 1.50}, {"orange", 2.00}, {"lemon", 1.50}, {"lime", 1.50},

	// Pantry
	{"rice", 2.00}, {"pasta", 1.50}, {"flour", 1.20}, {"sugar", 1.50}, {"salt", 0.80},
	{"oil", 3.00}, {"vinegar", 2.00}, {"sauce", 2.50},
}

const defaultBasePrice = 2.50

// estimateBasePrice guesses an ingredient's price from its category keyword.
// Always positive: unmatched ingredients fall back to the default base.
func estimateBasePrice(ingredient string) float64 {
	lower := strings.ToLower(ingredient)
	for _, cp := range categoryPrices {
		if strings.Contains(lower, cp.keyword) {
			return cp.price
		}
	}
	return defaultBasePrice
}
