package feed

import (
	"context"
	"errors"
	"github.com/rookgm/tableorder/internal/metrics"
	"go.uber.org/zap"
	"sync"
)

const defaultBufferSize = 64

// ErrClosed is returned when the feed no longer accepts work
var ErrClosed = errors.New("change feed closed")

// ChangeFeed publishes committed row changes and fans them out to subscribers
type ChangeFeed interface {
	Publish(ctx context.Context, ev RowEvent) error
	Subscribe(f Filter) (*Subscription, error)
}

// Subscription is a live registration on a feed
type Subscription struct {
	id     uint64
	filter Filter
	ch     chan RowEvent
	broker *Broker
	once   sync.Once
}

// Events returns the channel of matching events. It is closed on Unsubscribe.
func (s *Subscription) Events() <-chan RowEvent {
	return s.ch
}

// Filter returns the subscription filter
func (s *Subscription) Filter() Filter {
	return s.filter
}

// Unsubscribe stops delivery. It is safe to call more than once.
func (s *Subscription) Unsubscribe() {
	s.once.Do(func() {
		s.broker.remove(s)
	})
}

// Broker is an in-process ChangeFeed.
// Publishes are serialized, so every subscriber sees events in publish order.
// A subscriber whose buffer is full misses the event; the writer never blocks.
type Broker struct {
	mu         sync.Mutex
	subs       map[uint64]*Subscription
	nextID     uint64
	bufferSize int
	closed     bool
	logger     *zap.Logger
}

// NewBroker creates new Broker instance
func NewBroker(logger *zap.Logger, bufferSize int) *Broker {
	if bufferSize <= 0 {
		bufferSize = defaultBufferSize
	}
	return &Broker{
		subs:       make(map[uint64]*Subscription),
		bufferSize: bufferSize,
		logger:     logger,
	}
}

// Subscribe registers a new subscription
func (b *Broker) Subscribe(f Filter) (*Subscription, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, ErrClosed
	}

	b.nextID++
	sub := &Subscription{
		id:     b.nextID,
		filter: f,
		ch:     make(chan RowEvent, b.bufferSize),
		broker: b,
	}
	b.subs[sub.id] = sub
	metrics.FeedSubscribers.Inc()

	return sub, nil
}

// Publish delivers ev to every matching subscriber
func (b *Broker) Publish(_ context.Context, ev RowEvent) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrClosed
	}

	metrics.FeedEventsPublished.WithLabelValues(string(ev.Table), string(ev.Type)).Inc()

	for _, sub := range b.subs {
		if !sub.filter.Match(ev) {
			continue
		}
		select {
		case sub.ch <- ev:
		default:
			metrics.FeedEventsDropped.Inc()
			b.logger.Warn("subscriber is behind, event dropped",
				zap.Uint64("subscription", sub.id),
				zap.String("row", ev.Key()),
			)
		}
	}

	return nil
}

// Close unsubscribes everyone and rejects further work
func (b *Broker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true
	for id, sub := range b.subs {
		delete(b.subs, id)
		close(sub.ch)
		metrics.FeedSubscribers.Dec()
	}

	return nil
}

func (b *Broker) remove(sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.subs[sub.id]; !ok {
		return
	}
	delete(b.subs, sub.id)
	close(sub.ch)
	metrics.FeedSubscribers.Dec()
}
