package crawler

import (
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"pricewatch/comparator/internal/config"
	"pricewatch/comparator/internal/domain"
)

// rawRecord is the strict intermediate shape of one extracted product tile.
// It is validated before promotion to a domain.Product; invalid records are
// dropped with a counted warning, never a failure.
type rawRecord struct {
	name      string
	priceText string
	imageRef  string
	linkRef   string
}

// priceRegex tolerates "£1.20", "1.20", "£2" and ignores surrounding clutter.
// Text with no currency-prefixed decimal parses to zero, which callers must
// treat as "not usable".
var priceRegex = regexp.MustCompile(`£?(\d+\.?\d*)`)

func parsePrice(text string) float64 {
	m := priceRegex.FindStringSubmatch(text)
	if len(m) < 2 {
		return 0
	}
	price, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0
	}
	return price
}

// buildSearchURL substitutes the {query} and {page} placeholders of a
// retailer's search endpoint template.
func buildSearchURL(template, term string, page int) string {
	u := strings.ReplaceAll(template, "{query}", url.QueryEscape(term))
	return strings.ReplaceAll(u, "{page}", strconv.Itoa(page))
}

// extractRecords pulls raw product records out of a search results page using
// the retailer's selector set. The extraction only knows the shape of the
// result, never the retailer.
func extractRecords(html string, sel config.SelectorSet) ([]rawRecord, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	var records []rawRecord
	doc.Find(sel.ProductContainer).Each(func(_ int, tile *goquery.Selection) {
		rec := rawRecord{
			name:      strings.TrimSpace(tile.Find(sel.Name).First().Text()),
			priceText: strings.TrimSpace(tile.Find(sel.Price).First().Text()),
		}

		img := tile.Find(sel.Image).First()
		if src, ok := img.Attr("src"); ok && src != "" {
			rec.imageRef = src
		} else if src, ok := img.Attr("data-src"); ok {
			rec.imageRef = src
		}

		if href, ok := tile.Find(sel.ProductLink).First().Attr("href"); ok {
			rec.linkRef = href
		}

		records = append(records, rec)
	})

	return records, nil
}

// promote validates a raw record and turns it into a Product. The second
// return value reports whether the record was usable.
func promote(rec rawRecord, rc config.RetailerConfig, now time.Time) (domain.Product, bool) {
	price := parsePrice(rec.priceText)
	if rec.name == "" || rec.linkRef == "" || price <= 0 {
		return domain.Product{}, false
	}

	productURL := rec.linkRef
	if !strings.HasPrefix(productURL, "http") {
		productURL = strings.TrimRight(rc.BaseURL, "/") + "/" + strings.TrimLeft(productURL, "/")
	}

	return domain.Product{
		ID:           domain.ProductID(rc.Name, productURL),
		Name:         rec.name,
		Price:        price,
		Currency:     "GBP",
		Availability: domain.AvailabilityInStock, // search results only show purchasable items
		ImageURL:     rec.imageRef,
		Category:     categorize(rec.name),
		Retailer:     rc.Name,
		ProductURL:   productURL,
		ScrapedAt:    now,
		LastUpdated:  now,
	}, true
}

// categoryKeywords maps name fragments to coarse catalog categories. First
// match wins, so more specific groups come before generic ones.
var categoryKeywords = []struct {
	keywords []string
	category string
}{
	{[]string{"milk", "cheese", "yogurt", "butter", "egg"}, "Dairy & Eggs"},
	{[]string{"chicken", "beef", "pork", "fish", "salmon", "meat"}, "Meat & Fish"},
	{[]string{"apple", "banana", "orange", "potato", "carrot", "onion"}, "Fresh Produce"},
	{[]string{"bread", "cake", "muffin", "pastry"}, "Bakery"},
	{[]string{"frozen"}, "Frozen"},
	{[]string{"drink", "juice", "water", "coffee", "tea"}, "Beverages"},
}

func categorize(productName string) string {
	name := strings.ToLower(productName)
	for _, group := range categoryKeywords {
		for _, kw := range group.keywords {
			if strings.Contains(name, kw) {
				return group.category
			}
		}
	}
	return "Pantry & Canned"
}
