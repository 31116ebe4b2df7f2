package worker

import (
	"context"
	"errors"
	"github.com/stretchr/testify/assert"
	"sync/atomic"
	"testing"
	"time"
)

type countingService struct {
	calls atomic.Int32
	err   error
}

func (cs *countingService) ReconcileNotifications(ctx context.Context) (int, error) {
	cs.calls.Add(1)
	return 1, cs.err
}

func (cs *countingService) CompleteStaleReady(ctx context.Context) (int, error) {
	cs.calls.Add(1)
	return 1, cs.err
}

func TestNotificationReconciler_Run(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{name: "reconciles_on_tick"},
		{name: "keeps_running_after_error", err: errors.New("db down")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &countingService{err: tt.err}
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			done := make(chan struct{})
			go func() {
				NewNotificationReconciler(svc, 5*time.Millisecond).Run(ctx)
				close(done)
			}()

			assert.Eventually(t, func() bool { return svc.calls.Load() >= 2 }, time.Second, time.Millisecond)

			cancel()
			select {
			case <-done:
			case <-time.After(time.Second):
				t.Fatal("reconciler did not stop")
			}
		})
	}
}

func TestNewNotificationReconciler_DefaultInterval(t *testing.T) {
	nr := NewNotificationReconciler(&countingService{}, 0)
	assert.Equal(t, defaultReconcileInterval, nr.interval)
}

func TestReadyOrderCloser_Run(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{name: "completes_on_tick"},
		{name: "keeps_running_after_error", err: errors.New("db down")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &countingService{err: tt.err}
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			done := make(chan struct{})
			go func() {
				NewReadyOrderCloser(svc, 5*time.Millisecond).Run(ctx)
				close(done)
			}()

			assert.Eventually(t, func() bool { return svc.calls.Load() >= 2 }, time.Second, time.Millisecond)

			cancel()
			select {
			case <-done:
			case <-time.After(time.Second):
				t.Fatal("closer did not stop")
			}
		})
	}
}

func TestNewReadyOrderCloser_DefaultInterval(t *testing.T) {
	rc := NewReadyOrderCloser(&countingService{}, -time.Second)
	assert.Equal(t, defaultCloseInterval, rc.interval)
}
