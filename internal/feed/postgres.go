package feed

import (
	"context"
	"errors"
	"fmt"
	"github.com/goccy/go-json"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
	"time"
)

const (
	// NotifyChannel is the LISTEN/NOTIFY channel carrying row events
	NotifyChannel = "tableorder_changes"
	// payloads at or above 8000 bytes are refused by NOTIFY
	maxNotifyPayload = 7900
	relistenDelay    = time.Second
)

// PGConnector is the part of a pgx pool PGFeed needs
type PGConnector interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Acquire(ctx context.Context) (*pgxpool.Conn, error)
}

// PGFeed spreads events across instances with Postgres LISTEN/NOTIFY
type PGFeed struct {
	db     PGConnector
	local  *Broker
	logger *zap.Logger
}

// NewPGFeed creates new PGFeed instance
func NewPGFeed(db PGConnector, logger *zap.Logger) *PGFeed {
	return &PGFeed{
		db:     db,
		local:  NewBroker(logger, defaultBufferSize),
		logger: logger,
	}
}

// Publish sends ev with pg_notify. Local subscribers receive it through the listener.
func (f *PGFeed) Publish(ctx context.Context, ev RowEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	if len(payload) > maxNotifyPayload {
		ev.Record = nil
		if payload, err = json.Marshal(ev); err != nil {
			return err
		}
	}

	if _, err := f.db.Exec(ctx, "SELECT pg_notify($1, $2)", NotifyChannel, string(payload)); err != nil {
		return fmt.Errorf("notify %s: %w", ev.Key(), err)
	}

	return nil
}

// Subscribe registers a subscription on this instance
func (f *PGFeed) Subscribe(filter Filter) (*Subscription, error) {
	return f.local.Subscribe(filter)
}

// Run listens for notifications until ctx is done, reconnecting on failures
func (f *PGFeed) Run(ctx context.Context) error {
	defer f.local.Close()

	for {
		err := f.listen(ctx)
		if ctx.Err() != nil {
			f.logger.Debug("change listener is done")
			return nil
		}
		f.logger.Error("change listener failed", zap.Error(err))

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(relistenDelay):
		}
	}
}

func (f *PGFeed) listen(ctx context.Context) error {
	conn, err := f.db.Acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, "LISTEN "+NotifyChannel); err != nil {
		return err
	}

	for {
		n, err := conn.Conn().WaitForNotification(ctx)
		if err != nil {
			return err
		}

		var ev RowEvent
		if err := json.Unmarshal([]byte(n.Payload), &ev); err != nil {
			f.logger.Warn("malformed change notification", zap.Error(err))
			continue
		}
		if err := f.local.Publish(ctx, ev); err != nil && !errors.Is(err, ErrClosed) {
			return err
		}
	}
}
