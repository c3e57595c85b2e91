package fetch

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"go.uber.org/ratelimit"
	"resty.dev/v3"
)

// HTTPFetcher fetches pages with a rate-limited resty client. Sub-resources
// (images, stylesheets, fonts) are never requested because only the document
// itself is fetched.
type HTTPFetcher struct {
	rl         ratelimit.Limiter
	httpClient *resty.Client
	navTimeout time.Duration

	// Circuit breaker: a retailer answering 429/403 gets left alone for a
	// cool-off window instead of being hammered further.
	breakerMutex sync.RWMutex
	blockedUntil time.Time
	breakerDelay time.Duration
}

// NewHTTPFetcher creates an HTTP fetcher capped at requestsPerSecond with the
// given navigation timeout.
func NewHTTPFetcher(requestsPerSecond int, navTimeout time.Duration) *HTTPFetcher {
	if requestsPerSecond <= 0 {
		requestsPerSecond = 1
	}
	client := resty.New().
		SetTimeout(navTimeout).
		SetRetryCount(2).
		SetRetryWaitTime(2*time.Second).
		SetRetryMaxWaitTime(10*time.Second).
		SetHeader("User-Agent", "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36").
		SetHeader("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8").
		SetHeader("Accept-Language", "en-GB,en;q=0.5").
		SetTLSClientConfig(&tls.Config{
			InsecureSkipVerify: true,
		})

	return &HTTPFetcher{
		rl:           ratelimit.New(requestsPerSecond),
		httpClient:   client,
		navTimeout:   navTimeout,
		breakerDelay: 30 * time.Minute,
	}
}

func (f *HTTPFetcher) FetchPage(ctx context.Context, p Params) (string, error) {
	if f.isBreakerOpen() {
		remaining := f.remainingBreakerTime()
		return "", fmt.Errorf("circuit breaker is open - requests disabled for %v more", remaining.Round(time.Second))
	}

	// The limiter blocks without watching ctx, so check cancellation on
	// both sides of the token.
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("request cancelled: %w", err)
	}
	f.rl.Take()
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("request cancelled: %w", err)
	}

	reqCtx, cancel := context.WithTimeout(ctx, f.navTimeout)
	defer cancel()

	resp, err := f.httpClient.R().
		SetContext(reqCtx).
		Get(p.URL)
	if err != nil {
		if ctx.Err() != nil {
			return "", fmt.Errorf("request cancelled: %w", ctx.Err())
		}
		return "", fmt.Errorf("failed to fetch URL: %w", err)
	}

	if resp.StatusCode() == http.StatusTooManyRequests || resp.StatusCode() == http.StatusForbidden {
		f.tripBreaker()
		return "", fmt.Errorf("blocked by retailer (HTTP %d) - backing off for %v", resp.StatusCode(), f.breakerDelay)
	}
	if resp.IsError() {
		return "", fmt.Errorf("HTTP error: %d %s", resp.StatusCode(), resp.Status())
	}

	return resp.String(), nil
}

func (f *HTTPFetcher) isBreakerOpen() bool {
	f.breakerMutex.RLock()
	now := time.Now()
	wasOpen := now.Before(f.blockedUntil)
	wasTripped := !f.blockedUntil.IsZero()
	f.breakerMutex.RUnlock()

	if !wasOpen && wasTripped {
		f.breakerMutex.Lock()
		if !f.blockedUntil.IsZero() && now.After(f.blockedUntil) {
			f.blockedUntil = time.Time{}
			log.Info("✅ Circuit breaker re-enabled - requests are allowed again")
		}
		f.breakerMutex.Unlock()
	}

	return wasOpen
}

func (f *HTTPFetcher) tripBreaker() {
	f.breakerMutex.Lock()
	defer f.breakerMutex.Unlock()

	f.blockedUntil = time.Now().Add(f.breakerDelay)
	log.Warnf("🚫 Circuit breaker activated! Requests disabled until %v", f.blockedUntil.Format("15:04:05"))
}

func (f *HTTPFetcher) remainingBreakerTime() time.Duration {
	f.breakerMutex.RLock()
	defer f.breakerMutex.RUnlock()

	remaining := time.Until(f.blockedUntil)
	if remaining < 0 {
		return 0
	}
	return remaining
}

func (f *HTTPFetcher) Close() error {
	return f.httpClient.Close()
}
