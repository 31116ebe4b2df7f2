package service

import (
	"context"
	"errors"
	"fmt"
	"github.com/rookgm/tableorder/internal/feed"
	"github.com/rookgm/tableorder/internal/models"
	"sort"
	"sync"
	"time"
)

type memOrders struct {
	mu     sync.Mutex
	orders map[string]*models.Order
	seq    int
	// fail the next conditional update as if another writer got there first
	raceNext bool
}

func newMemOrders() *memOrders {
	return &memOrders{orders: map[string]*models.Order{}}
}

func (m *memOrders) CreateOrder(_ context.Context, order *models.Order) (*models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, o := range m.orders {
		if o.OrderNumber == order.OrderNumber {
			return nil, models.ErrConflictData
		}
	}
	m.seq++
	o := *order
	o.ID = fmt.Sprintf("0000000%d-aaaa-bbbb", m.seq)
	o.CreatedAt = time.Now()
	o.UpdatedAt = o.CreatedAt
	m.orders[o.ID] = &o
	cp := o
	return &cp, nil
}

func (m *memOrders) put(o models.Order) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.orders[o.ID] = &o
}

func (m *memOrders) GetOrderByID(_ context.Context, id string) (*models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return nil, models.ErrDataNotFound
	}
	cp := *o
	return &cp, nil
}

func (m *memOrders) GetOrderByNumber(_ context.Context, num string) (*models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, o := range m.orders {
		if o.OrderNumber == num {
			cp := *o
			return &cp, nil
		}
	}
	return nil, models.ErrDataNotFound
}

func (m *memOrders) GetOrdersByUserID(_ context.Context, userID string) ([]models.Order, error) {
	return m.filter(func(o *models.Order) bool { return o.UserID == userID }), nil
}

func (m *memOrders) GetOrders(_ context.Context, status models.OrderStatus) ([]models.Order, error) {
	return m.filter(func(o *models.Order) bool { return status == "" || o.Status == status }), nil
}

func (m *memOrders) filter(keep func(o *models.Order) bool) []models.Order {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.Order{}
	for _, o := range m.orders {
		if keep(o) {
			out = append(out, *o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (m *memOrders) UpdateOrderStatus(_ context.Context, id string, from, to models.OrderStatus, tracking models.Tracking) (*models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return nil, models.ErrDataNotFound
	}
	if m.raceNext {
		m.raceNext = false
		return nil, models.ErrConcurrentUpdate
	}
	if o.Status != from {
		return nil, models.ErrConcurrentUpdate
	}
	o.Status = to
	o.Tracking = tracking
	o.UpdatedAt = time.Now()
	cp := *o
	return &cp, nil
}

func (m *memOrders) GetOrderStats(_ context.Context, since time.Time) ([]models.StatusCount, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	by := map[models.OrderStatus]*models.StatusCount{}
	for _, o := range m.orders {
		if o.CreatedAt.Before(since) {
			continue
		}
		sc, ok := by[o.Status]
		if !ok {
			sc = &models.StatusCount{Status: o.Status}
			by[o.Status] = sc
		}
		sc.Count++
		sc.Revenue += o.Total
	}
	out := []models.StatusCount{}
	for _, sc := range by {
		out = append(out, *sc)
	}
	return out, nil
}

func (m *memOrders) GetMissedNotifications(_ context.Context, since, until time.Time, limit int) ([]models.MissedNotification, error) {
	return nil, errors.New("not used by memOrders")
}

type memCatalog map[string]models.FoodItem

func (m memCatalog) GetFoodItemsByIDs(_ context.Context, ids []string) (map[string]models.FoodItem, error) {
	out := map[string]models.FoodItem{}
	for _, id := range ids {
		if item, ok := m[id]; ok {
			out[id] = item
		}
	}
	return out, nil
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []models.Notification
	err  error
}

func (r *recordingNotifier) Notify(_ context.Context, n *models.Notification) (*models.Notification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	r.sent = append(r.sent, *n)
	return n, nil
}

func (r *recordingNotifier) ofType(typ string) []models.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Notification
	for _, n := range r.sent {
		if n.Type == typ {
			out = append(out, n)
		}
	}
	return out
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []feed.RowEvent
	err    error
}

func (r *recordingPublisher) Publish(_ context.Context, ev feed.RowEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.events = append(r.events, ev)
	return nil
}

func (r *recordingPublisher) all() []feed.RowEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]feed.RowEvent(nil), r.events...)
}
