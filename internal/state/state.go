// Package state tracks crawl bookkeeping that outlives a single process:
// when each retailer was last crawled successfully. The scheduler uses it to
// skip retailers re-crawled inside the minimum recrawl interval.
package state

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"pricewatch/comparator/internal/domain"
)

type Manager interface {
	// LastRun returns the zero time when no run has been recorded.
	LastRun(ctx context.Context, retailer domain.Retailer) (time.Time, error)
	SetLastRun(ctx context.Context, retailer domain.Retailer, t time.Time) error
}

type redisManager struct {
	redisClient *redis.Client
	keyPrefix   string
}

func NewRedisManager(redisClient *redis.Client) Manager {
	return &redisManager{
		redisClient: redisClient,
		keyPrefix:   "pricewatch:crawl:lastrun:",
	}
}

func (m *redisManager) LastRun(ctx context.Context, retailer domain.Retailer) (time.Time, error) {
	val, err := m.redisClient.Get(ctx, m.keyPrefix+retailer.String()).Result()
	if err != nil {
		if err == redis.Nil {
			return time.Time{}, nil // never crawled
		}
		return time.Time{}, fmt.Errorf("failed to get last run for %s: %w", retailer, err)
	}

	t, err := time.Parse(time.RFC3339, val)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse last run for %s: %w", retailer, err)
	}
	return t, nil
}

func (m *redisManager) SetLastRun(ctx context.Context, retailer domain.Retailer, t time.Time) error {
	err := m.redisClient.Set(ctx, m.keyPrefix+retailer.String(), t.Format(time.RFC3339), 0).Err()
	if err != nil {
		return fmt.Errorf("failed to set last run for %s: %w", retailer, err)
	}
	return nil
}

type memoryManager struct {
	mu   sync.RWMutex
	runs map[domain.Retailer]time.Time
}

// NewMemoryManager creates an in-process Manager for runs without Redis.
func NewMemoryManager() Manager {
	return &memoryManager{runs: make(map[domain.Retailer]time.Time)}
}

func (m *memoryManager) LastRun(_ context.Context, retailer domain.Retailer) (time.Time, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.runs[retailer], nil
}

func (m *memoryManager) SetLastRun(_ context.Context, retailer domain.Retailer, t time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs[retailer] = t
	return nil
}
