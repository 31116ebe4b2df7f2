package websocket

import (
	"context"
	"errors"
	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/rookgm/tableorder/internal/feed"
	"go.uber.org/zap"
	"sync"
	"sync/atomic"
	"time"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4 * 1024
	snapshotWait   = 15 * time.Second
)

// ErrHubStopped is returned when a client connects after shutdown began
var ErrHubStopped = errors.New("websocket hub stopped")

var clientIDCounter atomic.Uint64

// SnapshotFunc loads the rows currently in scope of a subscription
type SnapshotFunc func(ctx context.Context) (any, error)

// Client streams one feed subscription to one websocket connection.
// The client gets a snapshot on connect and every resync interval,
// so events dropped by the feed are repaired by the next snapshot.
type Client struct {
	id       uint64
	hub      *Hub
	conn     *websocket.Conn
	sub      *feed.Subscription
	snapshot SnapshotFunc
	resync   time.Duration
	replies  chan Message
	done     chan struct{}
	once     sync.Once
	ctx      context.Context
	cancel   context.CancelFunc
	logger   *zap.Logger
}

// NewClient creates a Client. A zero resync disables periodic snapshots.
func NewClient(hub *Hub, conn *websocket.Conn, sub *feed.Subscription, snapshot SnapshotFunc, resync time.Duration) *Client {
	ctx, cancel := context.WithCancel(context.Background())
	id := clientIDCounter.Add(1)
	return &Client{
		id:       id,
		hub:      hub,
		conn:     conn,
		sub:      sub,
		snapshot: snapshot,
		resync:   resync,
		replies:  make(chan Message, 8),
		done:     make(chan struct{}),
		ctx:      ctx,
		cancel:   cancel,
		logger:   hub.logger.With(zap.Uint64("client", id), zap.String("filter", sub.Filter().String())),
	}
}

// ID returns the client's unique identifier
func (c *Client) ID() uint64 {
	return c.id
}

// Start registers the client and begins reading and writing
func (c *Client) Start() error {
	if !c.hub.register(c) {
		c.close()
		_ = c.conn.Close()
		return ErrHubStopped
	}

	go c.writePump()
	go c.readPump()

	return nil
}

// close stops delivery. It is safe to call more than once.
func (c *Client) close() {
	c.once.Do(func() {
		close(c.done)
		c.cancel()
		c.sub.Unsubscribe()
	})
}

// readPump handles control traffic from the browser
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister(c)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		return
	}
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				c.logger.Warn("unexpected websocket close", zap.Error(err))
			}
			return
		}

		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}
		if msg.Type == MessageTypePing {
			select {
			case c.replies <- Message{Type: MessageTypePong}:
			default:
			}
		}
	}
}

// writePump is the only writer of the connection
func (c *Client) writePump() {
	ping := time.NewTicker(pingPeriod)
	defer func() {
		ping.Stop()
		_ = c.conn.Close()
	}()

	var resync <-chan time.Time
	if c.resync > 0 {
		t := time.NewTicker(c.resync)
		defer t.Stop()
		resync = t.C
	}

	if err := c.sendSnapshot(); err != nil {
		return
	}

	for {
		select {
		case <-c.done:
			c.writeClose()
			return

		case ev, ok := <-c.sub.Events():
			if !ok {
				// unsubscribed or feed closed
				c.writeClose()
				return
			}
			if err := c.write(ChangeMessage(c.sub.Filter(), ev)); err != nil {
				return
			}

		case <-resync:
			if err := c.sendSnapshot(); err != nil {
				return
			}

		case msg := <-c.replies:
			if err := c.write(msg); err != nil {
				return
			}

		case <-ping.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) writeClose() {
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
}

func (c *Client) sendSnapshot() error {
	ctx, cancel := context.WithTimeout(c.ctx, snapshotWait)
	defer cancel()

	rows, err := c.snapshot(ctx)
	if err != nil {
		c.logger.Warn("snapshot failed", zap.Error(err))
		return c.write(Message{Type: MessageTypeError, Filter: c.sub.Filter().String(), Data: "snapshot unavailable"})
	}

	return c.write(Message{Type: MessageTypeSnapshot, Filter: c.sub.Filter().String(), Data: rows})
}

func (c *Client) write(msg Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		c.logger.Error("cannot encode message", zap.String("type", msg.Type), zap.Error(err))
		return nil
	}
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return c.conn.WriteMessage(websocket.TextMessage, data)
}
