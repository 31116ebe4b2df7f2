package worker

import (
	"context"
	"github.com/rookgm/tableorder/internal/logger"
	"go.uber.org/zap"
	"time"
)

const defaultReconcileInterval = time.Minute

type OrderService interface {
	// ReconcileNotifications writes missing transition notifications
	ReconcileNotifications(ctx context.Context) (int, error)
}

// NotificationReconciler is worker repairs notifications lost after a status change
type NotificationReconciler struct {
	svc      OrderService
	interval time.Duration
}

// NewNotificationReconciler create new notification reconciler
func NewNotificationReconciler(svc OrderService, interval time.Duration) *NotificationReconciler {
	if interval <= 0 {
		interval = defaultReconcileInterval
	}
	return &NotificationReconciler{svc: svc, interval: interval}
}

// Run reconciles on every tick until ctx is done
func (nr *NotificationReconciler) Run(ctx context.Context) {
	ticker := time.NewTicker(nr.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Log.Debug("notification reconciler is done")
			return
		case <-ticker.C:
			n, err := nr.svc.ReconcileNotifications(ctx)
			if err != nil {
				logger.Log.Error("error reconciling notifications", zap.Error(err))
				continue
			}
			if n > 0 {
				logger.Log.Info("notifications reconciled", zap.Int("count", n))
			}
		}
	}
}
