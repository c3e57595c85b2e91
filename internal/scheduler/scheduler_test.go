package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pricewatch/comparator/internal/config"
	"pricewatch/comparator/internal/domain"
	"pricewatch/comparator/internal/state"
)

func TestDueRetailers(t *testing.T) {
	ctx := context.Background()
	retailers := []config.RetailerConfig{
		{Name: domain.RetailerTesco},
		{Name: domain.RetailerAsda},
	}

	t.Run("never-crawled retailers are always due", func(t *testing.T) {
		s := New(config.SchedulerConfig{}, config.CrawlerConfig{MinRecrawlMinutes: 360},
			nil, nil, nil, state.NewMemoryManager(), retailers)

		assert.Len(t, s.dueRetailers(ctx), 2)
	})

	t.Run("recently crawled retailer is skipped", func(t *testing.T) {
		manager := state.NewMemoryManager()
		require.NoError(t, manager.SetLastRun(ctx, domain.RetailerTesco, time.Now().Add(-time.Hour)))
		require.NoError(t, manager.SetLastRun(ctx, domain.RetailerAsda, time.Now().Add(-12*time.Hour)))

		s := New(config.SchedulerConfig{}, config.CrawlerConfig{MinRecrawlMinutes: 360},
			nil, nil, nil, manager, retailers)

		due := s.dueRetailers(ctx)
		require.Len(t, due, 1)
		assert.Equal(t, domain.RetailerAsda, due[0].Name)
	})

	t.Run("zero interval disables skipping", func(t *testing.T) {
		manager := state.NewMemoryManager()
		require.NoError(t, manager.SetLastRun(ctx, domain.RetailerTesco, time.Now()))

		s := New(config.SchedulerConfig{}, config.CrawlerConfig{},
			nil, nil, nil, manager, retailers)

		assert.Len(t, s.dueRetailers(ctx), 2)
	})
}

func TestStartRejectsBadSchedule(t *testing.T) {
	s := New(config.SchedulerConfig{
		CrawlSchedule:   "not a cron expression",
		CleanupSchedule: "0 3 * * 0",
		RefreshSchedule: "0 */6 * * *",
	}, config.CrawlerConfig{}, nil, nil, nil, state.NewMemoryManager(), nil)

	assert.Error(t, s.Start())
}
