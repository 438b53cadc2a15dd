package cron

import (
	"context"
	"log/slog"
	"time"
)

// Job names
const (
	JobTaxConfigurationRefresh = "tax-configuration-refresh"
	JobRateLimiterCleanup      = "rate-limiter-cleanup"
)

// Refresher reloads a cached snapshot from its source
type Refresher interface {
	Refresh(ctx context.Context) error
}

// RegisterTaxConfigurationRefresh reloads tax configurations on every tick.
// A failed refresh keeps the previous snapshot.
func RegisterTaxConfigurationRefresh(s *Scheduler, catalog Refresher, interval time.Duration) {
	s.AddJob(JobTaxConfigurationRefresh, interval, func(ctx context.Context) error {
		if err := catalog.Refresh(ctx); err != nil {
			slog.Warn("Tax configuration refresh failed, keeping previous snapshot", "error", err)
			return err
		}
		return nil
	})
}

// RegisterCleanup runs fn on every tick
func RegisterCleanup(s *Scheduler, name string, interval time.Duration, fn func()) {
	s.AddJob(name, interval, func(ctx context.Context) error {
		fn()
		return nil
	})
}
