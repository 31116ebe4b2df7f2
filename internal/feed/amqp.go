package feed

import (
	"context"
	"errors"
	"github.com/goccy/go-json"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
	"sync"
	"time"
)

// Exchange is the fanout exchange carrying row events
const Exchange = "tableorder.changes"

var (
	// ErrNack is returned when the broker refuses a published event
	ErrNack = errors.New("publish NACK from broker")

	errDeliveriesClosed = errors.New("amqp delivery channel closed")
)

// confirmation is the broker answer to one published message
type confirmation interface {
	WaitContext(ctx context.Context) (bool, error)
}

// amqpSession is one connection to the broker with its publishing channel
type amqpSession interface {
	publish(ctx context.Context, msg amqp.Publishing) (confirmation, error)
	// consume binds a fresh exclusive queue to the exchange. stop releases it.
	consume() (deliveries <-chan amqp.Delivery, stop func(), err error)
	closed() bool
	close() error
}

// AMQPFeed spreads events across instances through a RabbitMQ fanout exchange
type AMQPFeed struct {
	dial       func() (amqpSession, error)
	retryDelay time.Duration

	mu      sync.RWMutex
	session amqpSession

	local  *Broker
	logger *zap.Logger
}

// DialAMQP connects to the broker and declares the exchange
func DialAMQP(url string, logger *zap.Logger) (*AMQPFeed, error) {
	return newAMQPFeed(func() (amqpSession, error) { return dialRabbit(url) }, logger)
}

func newAMQPFeed(dial func() (amqpSession, error), logger *zap.Logger) (*AMQPFeed, error) {
	s, err := dial()
	if err != nil {
		return nil, err
	}

	return &AMQPFeed{
		dial:       dial,
		retryDelay: relistenDelay,
		session:    s,
		local:      NewBroker(logger, defaultBufferSize),
		logger:     logger,
	}, nil
}

func (f *AMQPFeed) current() amqpSession {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.session
}

// Publish sends ev to the exchange and waits for the broker confirm of that message
func (f *AMQPFeed) Publish(ctx context.Context, ev RowEvent) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return err
	}

	conf, err := f.current().publish(ctx, amqp.Publishing{
		DeliveryMode: amqp.Transient,
		ContentType:  "application/json",
		Timestamp:    time.Now(),
		Type:         string(ev.Type),
		Body:         body,
	})
	if err != nil {
		return err
	}

	ack, err := conf.WaitContext(ctx)
	if err != nil {
		return err
	}
	if !ack {
		return ErrNack
	}
	return nil
}

// Subscribe registers a subscription on this instance
func (f *AMQPFeed) Subscribe(filter Filter) (*Subscription, error) {
	return f.local.Subscribe(filter)
}

// Run consumes the exchange into local subscribers until ctx is done.
// A lost connection is redialled; local subscriptions survive it.
func (f *AMQPFeed) Run(ctx context.Context) error {
	defer f.local.Close()

	for {
		err := f.consume(ctx)
		if ctx.Err() != nil {
			f.logger.Debug("change consumer is done")
			return nil
		}
		f.logger.Error("change consumer failed", zap.Error(err))

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(f.retryDelay):
		}

		if err := f.reconnect(); err != nil {
			f.logger.Error("amqp reconnect failed", zap.Error(err))
		}
	}
}

// reconnect replaces the session when the broker dropped it
func (f *AMQPFeed) reconnect() error {
	if !f.current().closed() {
		return nil
	}

	s, err := f.dial()
	if err != nil {
		return err
	}

	f.mu.Lock()
	old := f.session
	f.session = s
	f.mu.Unlock()

	_ = old.close()
	f.logger.Info("amqp connection restored")
	return nil
}

func (f *AMQPFeed) consume(ctx context.Context) error {
	deliveries, stop, err := f.current().consume()
	if err != nil {
		return err
	}
	defer stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-deliveries:
			if !ok {
				return errDeliveriesClosed
			}
			var ev RowEvent
			if err := json.Unmarshal(d.Body, &ev); err != nil {
				f.logger.Warn("malformed change message", zap.Error(err))
				continue
			}
			if err := f.local.Publish(ctx, ev); err != nil && !errors.Is(err, ErrClosed) {
				return err
			}
		}
	}
}

// Close releases the connection
func (f *AMQPFeed) Close() error {
	return f.current().close()
}

// rabbitSession is an amqpSession over amqp091
type rabbitSession struct {
	conn *amqp.Connection
	ch   *amqp.Channel
}

func dialRabbit(url string) (*rabbitSession, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, err
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, err
	}

	if err := ch.ExchangeDeclare(Exchange, amqp.ExchangeFanout, true, false, false, false, nil); err != nil {
		_ = conn.Close()
		return nil, err
	}

	if err := ch.Confirm(false); err != nil {
		_ = conn.Close()
		return nil, err
	}

	return &rabbitSession{conn: conn, ch: ch}, nil
}

func (s *rabbitSession) publish(ctx context.Context, msg amqp.Publishing) (confirmation, error) {
	dc, err := s.ch.PublishWithDeferredConfirmWithContext(ctx, Exchange, "", false, false, msg)
	if err != nil {
		return nil, err
	}
	if dc == nil {
		return nil, errors.New("amqp channel is not in confirm mode")
	}
	return dc, nil
}

func (s *rabbitSession) consume() (<-chan amqp.Delivery, func(), error) {
	ch, err := s.conn.Channel()
	if err != nil {
		return nil, nil, err
	}
	stop := func() { _ = ch.Close() }

	q, err := ch.QueueDeclare("", false, true, true, false, nil)
	if err != nil {
		stop()
		return nil, nil, err
	}
	if err := ch.QueueBind(q.Name, "", Exchange, false, nil); err != nil {
		stop()
		return nil, nil, err
	}

	deliveries, err := ch.Consume(q.Name, "", true, true, false, false, nil)
	if err != nil {
		stop()
		return nil, nil, err
	}

	return deliveries, stop, nil
}

func (s *rabbitSession) closed() bool {
	return s.conn.IsClosed() || s.ch.IsClosed()
}

func (s *rabbitSession) close() error {
	_ = s.ch.Close()
	return s.conn.Close()
}
