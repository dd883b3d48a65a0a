package worker

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// BreachSweeper is the part of the SLA service the sweeper drives.
type BreachSweeper interface {
	SweepBreaches(ctx context.Context) (int, error)
}

// RunBreachSweeper marks overdue tickets every interval until ctx is done.
// A non-positive interval disables the loop.
func RunBreachSweeper(ctx context.Context, sweeper BreachSweeper, interval time.Duration, logger *zap.Logger) {
	if sweeper == nil || interval <= 0 {
		return
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("component", "breach_sweeper"))

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	logger.Info("breach sweeper started", zap.Duration("interval", interval))
	for {
		select {
		case <-ctx.Done():
			logger.Info("breach sweeper stopped")
			return
		case <-ticker.C:
			sweepOnce(ctx, sweeper, logger)
		}
	}
}

func sweepOnce(ctx context.Context, sweeper BreachSweeper, logger *zap.Logger) {
	marked, err := sweeper.SweepBreaches(ctx)
	if err != nil {
		logger.Warn("breach sweep incomplete", zap.Int("marked", marked), zap.Error(err))
		return
	}
	if marked > 0 {
		logger.Info("tickets marked breached", zap.Int("marked", marked))
	}
}
