package checkout

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Sweeper fails checkout attempts that never came back from the gateway.
type Sweeper struct {
	store  *Store
	ttl    time.Duration
	logger *zap.Logger
}

func NewSweeper(store *Store, ttl time.Duration, logger *zap.Logger) *Sweeper {
	return &Sweeper{store: store, ttl: ttl, logger: logger}
}

func (s *Sweeper) Sweep(ctx context.Context, now time.Time) (int64, error) {
	n, err := s.store.ExpirePending(ctx, now.Add(-s.ttl))
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.logger.Info("expired pending payments", zap.Int64("count", n), zap.Duration("ttl", s.ttl))
	}
	return n, nil
}
