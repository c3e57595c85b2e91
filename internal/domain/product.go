package domain

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"time"
)

// Availability of a catalog product as observed at crawl time.
type Availability string

const (
	AvailabilityInStock    Availability = "in_stock"
	AvailabilityOutOfStock Availability = "out_of_stock"
	AvailabilityLimited    Availability = "limited"
)

// Product is one retailer's catalog entry. (Retailer, ProductURL) is unique
// and the ID is a pure function of that pair, so re-crawls upsert in place.
type Product struct {
	ID           string       `json:"id"`
	Name         string       `json:"name"`
	Price        float64      `json:"price"`
	Currency     string       `json:"currency"`
	Availability Availability `json:"availability"`
	ImageURL     string       `json:"image_url,omitempty"`
	Category     string       `json:"category,omitempty"`
	Subcategory  string       `json:"subcategory,omitempty"`
	Brand        string       `json:"brand,omitempty"`
	Size         string       `json:"size,omitempty"`
	Unit         string       `json:"unit,omitempty"`
	Retailer     Retailer     `json:"retailer"`
	ProductURL   string       `json:"product_url"`
	ScrapedAt    time.Time    `json:"scraped_at"`
	LastUpdated  time.Time    `json:"last_updated"`
}

// ProductID derives the stable product identifier from retailer and product URL.
func ProductID(retailer Retailer, productURL string) string {
	sum := md5.Sum([]byte(fmt.Sprintf("%s:%s", retailer, productURL)))
	return fmt.Sprintf("%s_%s", retailer, hex.EncodeToString(sum[:])[:12])
}

// PriceHistoryEntry is an immutable price/availability observation. One is
// appended only when the value differs from the product's most recent entry.
type PriceHistoryEntry struct {
	ProductID    string       `json:"product_id"`
	Price        float64      `json:"price"`
	Availability Availability `json:"availability"`
	RecordedAt   time.Time    `json:"recorded_at"`
}
