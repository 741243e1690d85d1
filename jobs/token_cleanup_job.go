package jobs

import (
	"context"
	"time"

	"go.uber.org/zap"

	"vehicle-service-server/logger"
	"vehicle-service-server/store"
)

// TokenCleanupJob deletes refresh tokens that expired.
type TokenCleanupJob struct {
	store    store.Store
	interval time.Duration
	now      func() time.Time
	stopChan chan struct{}
	done     chan struct{}
}

func NewTokenCleanupJob(s store.Store, interval time.Duration) *TokenCleanupJob {
	return &TokenCleanupJob{
		store:    s,
		interval: interval,
		now:      time.Now,
		stopChan: make(chan struct{}),
		done:     make(chan struct{}),
	}
}

func (j *TokenCleanupJob) Start() {
	go j.run()
	logger.Info("🚀 Token cleanup job started")
}

func (j *TokenCleanupJob) Stop() {
	close(j.stopChan)
	<-j.done
	logger.Info("🛑 Token cleanup job stopped")
}

func (j *TokenCleanupJob) run() {
	defer close(j.done)
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if _, err := j.RunOnce(context.Background()); err != nil {
				logger.Error("❌ Token cleanup failed", zap.Error(err))
			}
		case <-j.stopChan:
			return
		}
	}
}

// RunOnce deletes expired tokens and returns how many were removed.
func (j *TokenCleanupJob) RunOnce(ctx context.Context) (int64, error) {
	var removed int64
	err := j.store.Transaction(ctx, func(repo store.Repository) error {
		n, err := repo.DeleteExpiredRefreshTokens(ctx, j.now())
		removed = n
		return err
	})
	if err == nil && removed > 0 {
		logger.Info("🧹 Expired refresh tokens removed", zap.Int64("count", removed))
	}
	return removed, err
}
