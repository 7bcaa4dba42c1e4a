package exstore

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/abhisek/lingua/internal/clock"
	"github.com/abhisek/lingua/internal/exercise"
)

// RunSweeper calls store.Sweep every interval until ctx is done.
// Sweep errors are logged and do not stop the loop.
func RunSweeper(ctx context.Context, store exercise.Store, interval time.Duration, clk clock.Clock, log *zap.Logger) error {
	if clk == nil {
		clk = clock.Real()
	}
	if log == nil {
		log = zap.NewNop()
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			n, err := store.Sweep(ctx, clk.Now())
			if err != nil {
				log.Warn("exercise sweep failed", zap.Error(err))
				continue
			}
			if n > 0 {
				log.Debug("swept expired exercises", zap.Int("removed", n))
			}
		}
	}
}
