package config

import "pricewatch/comparator/internal/domain"

// DefaultRetailers returns the built-in retailer set used when config.yaml
// does not override it. Selectors track each retailer's current markup and
// are expected to rot; they are data, not code.
func DefaultRetailers() []RetailerConfig {
	return []RetailerConfig{
		{
			Name:        domain.RetailerTesco,
			DisplayName: "Tesco",
			BaseURL:     "https://www.tesco.com",
			SearchURL:   "https://www.tesco.com/groceries/en-GB/search?query={query}&page={page}",
			Selectors: SelectorSet{
				ProductContainer: `[data-auto="product-tile"]`,
				Name:             `[data-auto="product-tile--title"]`,
				Price:            `[data-auto="price-details"]`,
				Image:            `[data-auto="product-tile--image"] img`,
				ProductLink:      `a[data-auto="product-tile--link"]`,
			},
			RateLimitMS:     2000,
			PriceMultiplier: 1.0,
			RenderJS:        true,
		},
		{
			Name:        domain.RetailerAsda,
			DisplayName: "ASDA",
			BaseURL:     "https://groceries.asda.com",
			SearchURL:   "https://groceries.asda.com/search/{query}?page={page}",
			Selectors: SelectorSet{
				ProductContainer: `[data-auto-id="pod"]`,
				Name:             `[data-auto-id="pod-link"] h3`,
				Price:            `[data-auto-id="pod-price"]`,
				Image:            `[data-auto-id="pod-image"] img`,
				ProductLink:      `[data-auto-id="pod-link"]`,
			},
			RateLimitMS:     2500,
			PriceMultiplier: 0.95,
			RenderJS:        true,
		},
		{
			Name:        domain.RetailerSainsburys,
			DisplayName: "Sainsbury's",
			BaseURL:     "https://www.sainsburys.co.uk",
			SearchURL:   "https://www.sainsburys.co.uk/gol-ui/SearchResults/{query}/{page}",
			Selectors: SelectorSet{
				ProductContainer: `[data-test-id="product-tile"]`,
				Name:             `[data-test-id="product-tile-description"] a`,
				Price:            `[data-test-id="product-tile-price"]`,
				Image:            `[data-test-id="product-tile-image"] img`,
				ProductLink:      `[data-test-id="product-tile-description"] a`,
			},
			RateLimitMS:     3000,
			PriceMultiplier: 1.05,
			RenderJS:        true,
		},
		{
			Name:        domain.RetailerMorrisons,
			DisplayName: "Morrisons",
			BaseURL:     "https://groceries.morrisons.com",
			SearchURL:   "https://groceries.morrisons.com/search?entry={query}&page={page}",
			Selectors: SelectorSet{
				ProductContainer: ".fops-item",
				Name:             ".fops-item-details h4 a",
				Price:            ".fops-price",
				Image:            ".fops-item-image img",
				ProductLink:      ".fops-item-details h4 a",
			},
			RateLimitMS:     2000,
			PriceMultiplier: 0.98,
			RenderJS:        false,
		},
	}
}

// DefaultSearchTerms is the shared crawl vocabulary. Ordering matters: the
// crawler only visits a bounded prefix, so staples come first.
func DefaultSearchTerms() []string {
	return []string{
		// Basic ingredients
		"milk", "bread", "eggs", "butter", "cheese", "flour", "sugar", "salt", "pepper",
		"olive oil", "vegetable oil", "onions", "garlic", "tomatoes", "potatoes", "carrots",
		"chicken", "beef", "pork", "fish", "salmon", "rice", "pasta", "lentils", "beans",

		// Dairy & alternatives
		"yogurt", "cream", "cottage cheese", "cheddar", "mozzarella", "parmesan",
		"almond milk", "oat milk", "soy milk", "coconut milk",

		// Fruits & vegetables
		"apples", "bananas", "oranges", "lemons", "limes", "strawberries", "blueberries",
		"spinach", "lettuce", "broccoli", "cauliflower", "bell peppers", "mushrooms",
		"avocado", "cucumber", "celery", "ginger", "herbs", "basil", "parsley",

		// Pantry staples
		"canned tomatoes", "coconut oil", "honey", "maple syrup", "vanilla extract",
		"baking powder", "baking soda", "vinegar", "soy sauce", "stock", "broth",

		// Proteins
		"chicken breast", "chicken thighs", "ground beef", "pork chops", "bacon",
		"tofu", "tempeh", "nuts", "almonds", "walnuts", "cashews", "seeds",

		// Grains & carbs
		"quinoa", "brown rice", "white rice", "oats", "barley", "couscous",
		"whole wheat bread", "sourdough", "bagels", "tortillas", "noodles",
	}
}
