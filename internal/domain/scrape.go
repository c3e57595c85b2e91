package domain

import "time"

// ScrapeRun is the append-only audit record of one crawler invocation for
// one retailer. DurationMS is wall-clock milliseconds, matching the wire
// field name. Never mutated once completion is recorded.
type ScrapeRun struct {
	Retailer        Retailer  `json:"retailer"`
	StartedAt       time.Time `json:"started_at"`
	CompletedAt     time.Time `json:"completed_at"`
	ProductsScraped int       `json:"products_scraped"`
	Errors          []string  `json:"errors,omitempty"`
	Success         bool      `json:"success"`
	DurationMS      int64     `json:"duration_ms"`
}
