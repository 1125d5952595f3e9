package app

import (
	"context"
	"time"

	"github.com/garyellow/guildbot-go/internal/config"
	"github.com/garyellow/guildbot-go/internal/storage"
)

// startBackgroundJobs starts all background goroutines tracked by WaitGroup.
func (a *Application) startBackgroundJobs(ctx context.Context) {
	a.wg.Go(func() {
		a.paginationSweep(ctx)
	})
	a.wg.Go(func() {
		a.maintenance(ctx)
	})
	a.wg.Go(func() {
		a.updateGaugeMetrics(ctx)
	})
}

// paginationSweep expires idle pagination sessions until ctx is done.
func (a *Application) paginationSweep(ctx context.Context) {
	a.logger.Debug("Pagination sweep job started")
	defer a.logger.Debug("Pagination sweep job stopped")
	a.pages.Run(ctx)
}

// maintenance runs database housekeeping whenever it is due.
func (a *Application) maintenance(ctx context.Context) {
	a.logger.Debug("Maintenance job started")
	defer a.logger.Debug("Maintenance job stopped")

	ticker := time.NewTicker(config.MaintenanceCheckInterval)
	defer ticker.Stop()

	for {
		if isMaintenanceDue(a.lastOptimize.Load(), config.DatabaseOptimizeInterval, time.Now()) {
			a.runOptimize(ctx)
		}
		select {
		case <-ctx.Done():
			a.logger.Debug("Maintenance received shutdown signal")
			return
		case <-ticker.C:
		}
	}
}

// isMaintenanceDue reports whether a task last run at lastUnix is due again.
// A non-positive interval disables the task.
func isMaintenanceDue(lastUnix int64, interval time.Duration, now time.Time) bool {
	if interval <= 0 {
		return false
	}
	if lastUnix == 0 {
		return true
	}
	return now.Sub(time.Unix(lastUnix, 0)) >= interval
}

func (a *Application) runOptimize(ctx context.Context) {
	start := time.Now()
	if err := a.db.Optimize(ctx); err != nil {
		if ctx.Err() == nil {
			a.logger.WithError(err).Warn("Database optimize failed")
		}
		return
	}
	a.lastOptimize.Store(start.Unix())

	duration := time.Since(start)
	a.logger.WithField("duration_ms", duration.Milliseconds()).Debug("Database optimized")
	if a.metrics != nil {
		a.metrics.RecordJob("storage_optimize", duration.Seconds())
	}
}

// updateGaugeMetrics periodically refreshes gauges that nothing else updates.
func (a *Application) updateGaugeMetrics(ctx context.Context) {
	a.logger.Debug("Gauge metrics job started")
	defer a.logger.Debug("Gauge metrics job stopped")

	ticker := time.NewTicker(config.MetricsUpdateInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			a.logger.Debug("Gauge metrics received shutdown signal")
			return
		case <-ticker.C:
			a.recordGaugeMetrics(ctx)
		}
	}
}

func (a *Application) recordGaugeMetrics(ctx context.Context) {
	if a.metrics == nil {
		return
	}

	if a.scheduler != nil {
		stats := a.scheduler.Stats()
		a.metrics.SetSchedulerState("anilist", stats.Queued, stats.InFlight)
	}
	if a.pages != nil {
		a.metrics.SetPaginationSessions(a.pages.Len())
	}
	if a.userLimiter != nil {
		a.metrics.SetRateLimiterActiveKeys("user", a.userLimiter.GetActiveCount())
	}

	for _, collection := range []string{storage.CollectionGuildConfig, storage.CollectionSubscriptions} {
		count, err := a.db.Count(ctx, collection)
		if err != nil {
			a.logger.WithError(err).WithField("collection", collection).Debug("Failed to count documents")
			continue
		}
		a.metrics.SetStorageDocuments(collection, count)
	}
}
