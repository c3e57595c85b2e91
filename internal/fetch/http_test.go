package fetch

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPFetcherCancelledContext(t *testing.T) {
	f := NewHTTPFetcher(1, 5*time.Second)
	defer f.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// A cancelled crawl must bail out before spending a rate-limit token
	// or issuing a request.
	start := time.Now()
	_, err := f.FetchPage(ctx, Params{URL: "https://retailer.test/search"})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, time.Since(start), time.Second)
}

func TestHTTPFetcherBreaker(t *testing.T) {
	f := NewHTTPFetcher(1, 5*time.Second)
	defer f.Close()

	f.tripBreaker()
	_, err := f.FetchPage(context.Background(), Params{URL: "https://retailer.test/search"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "circuit breaker")
}
