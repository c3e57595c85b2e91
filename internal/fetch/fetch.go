// Package fetch retrieves retailer search pages. Two implementations exist:
// a plain HTTP client for retailers that serve server-rendered markup, and a
// headless browser for retailers that need JavaScript to paint results.
package fetch

import (
	"context"
	"errors"
)

// ErrNoResults reports a page where the awaited result container never
// appeared. Callers treat it as "reached the end of pagination", not as a
// failure.
var ErrNoResults = errors.New("fetch: no results on page")

// Params describes one page fetch. WaitSelector, when set, is the element
// that must appear before the page is considered loaded; only the browser
// fetcher honours it.
type Params struct {
	URL          string
	WaitSelector string
}

// Fetcher retrieves one page of HTML.
type Fetcher interface {
	FetchPage(ctx context.Context, p Params) (string, error)
	Close() error
}
