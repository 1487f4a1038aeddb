package jobs

import (
	"context"
	"time"

	"github.com/fenilmodi00/market-quotes/services"
	"github.com/sirupsen/logrus"
)

type CacheCleanupJob struct {
	CacheService *services.CacheService
}

func NewCacheCleanupJob(cacheService *services.CacheService) *CacheCleanupJob {
	return &CacheCleanupJob{CacheService: cacheService}
}

// Start runs Run on every tick until ctx is cancelled
func (j *CacheCleanupJob) Start(ctx context.Context, interval time.Duration) {
	logrus.WithField("interval", interval).Info("Starting Cache Cleanup Job")
	ticker := time.NewTicker(interval)

	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				logrus.Info("Cache Cleanup Job stopped")
				return
			case <-ticker.C:
				j.Run()
			}
		}
	}()
}

func (j *CacheCleanupJob) Run() int {
	removed := j.CacheService.CleanupExpired()
	logrus.WithFields(logrus.Fields{
		"component": "CacheCleanupJob",
		"removed":   removed,
	}).Debug("Cache Cleanup Job completed")
	return removed
}
