package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/link-access-service/internal/observability"
	"github.com/spec-kit/link-access-service/internal/repository"
)

// EvictionWorker periodically purges expired access tokens. Redemption checks
// expiry itself, so a missed sweep only costs storage.
type EvictionWorker struct {
	tokens   repository.AccessTokenRepository
	interval time.Duration
	metrics  *observability.Metrics
	logger   *zap.Logger
}

// NewEvictionWorker creates the worker.
func NewEvictionWorker(tokens repository.AccessTokenRepository, interval time.Duration, metrics *observability.Metrics, logger *zap.Logger) *EvictionWorker {
	return &EvictionWorker{tokens: tokens, interval: interval, metrics: metrics, logger: logger}
}

// Run sweeps every interval until ctx is cancelled. A non-positive interval
// returns immediately.
func (w *EvictionWorker) Run(ctx context.Context) {
	if w.interval <= 0 {
		w.logger.Info("token eviction disabled")
		return
	}
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.Sweep(ctx)
		}
	}
}

// Sweep runs one eviction pass.
func (w *EvictionWorker) Sweep(ctx context.Context) int64 {
	n, err := w.tokens.EvictExpired(ctx)
	if err != nil {
		w.logger.Warn("evict expired tokens", zap.Error(err))
		return 0
	}
	w.metrics.RecordEvicted(n)
	if n > 0 {
		w.logger.Info("evicted expired tokens", zap.Int64("count", n))
	}
	return n
}
