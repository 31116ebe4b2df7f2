package worker

import (
	"context"
	"github.com/rookgm/tableorder/internal/logger"
	"go.uber.org/zap"
	"time"
)

const defaultCloseInterval = 5 * time.Minute

type ReadyCompleter interface {
	// CompleteStaleReady completes orders left in ready for too long
	CompleteStaleReady(ctx context.Context) (int, error)
}

// ReadyOrderCloser is worker completes orders nobody picked up after they were ready
type ReadyOrderCloser struct {
	svc      ReadyCompleter
	interval time.Duration
}

// NewReadyOrderCloser create new ready order closer
func NewReadyOrderCloser(svc ReadyCompleter, interval time.Duration) *ReadyOrderCloser {
	if interval <= 0 {
		interval = defaultCloseInterval
	}
	return &ReadyOrderCloser{svc: svc, interval: interval}
}

// Run completes stale orders on every tick until ctx is done
func (rc *ReadyOrderCloser) Run(ctx context.Context) {
	ticker := time.NewTicker(rc.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Log.Debug("ready order closer is done")
			return
		case <-ticker.C:
			n, err := rc.svc.CompleteStaleReady(ctx)
			if err != nil {
				logger.Log.Error("error completing ready orders", zap.Error(err))
				continue
			}
			if n > 0 {
				logger.Log.Info("ready orders completed", zap.Int("count", n))
			}
		}
	}
}
