package service

import (
	"context"
	"errors"
	"fmt"
	"github.com/rookgm/tableorder/internal/feed"
	"github.com/rookgm/tableorder/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"sync"
	"testing"
	"time"
)

type memNotifications struct {
	mu   sync.Mutex
	rows map[string]*models.Notification
	seq  int
}

func newMemNotifications() *memNotifications {
	return &memNotifications{rows: map[string]*models.Notification{}}
}

func (m *memNotifications) CreateNotification(_ context.Context, n *models.Notification) (*models.Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	row := *n
	row.ID = fmt.Sprintf("n-%d", m.seq)
	row.IsAdminNotification = row.UserID == nil
	row.CreatedAt = time.Now()
	m.rows[row.ID] = &row
	cp := row
	return &cp, nil
}

func (m *memNotifications) GetNotificationByID(_ context.Context, id string) (*models.Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.rows[id]
	if !ok {
		return nil, models.ErrDataNotFound
	}
	cp := *n
	return &cp, nil
}

func (m *memNotifications) GetNotificationsByUserID(_ context.Context, userID string, _ int) ([]models.Notification, error) {
	return m.where(func(n *models.Notification) bool { return n.UserID != nil && *n.UserID == userID }), nil
}

func (m *memNotifications) GetAdminNotifications(_ context.Context, _ int) ([]models.Notification, error) {
	return m.where(func(n *models.Notification) bool { return n.UserID == nil }), nil
}

func (m *memNotifications) GetNotifications(_ context.Context, _ int) ([]models.Notification, error) {
	return m.where(func(n *models.Notification) bool { return true }), nil
}

func (m *memNotifications) where(keep func(n *models.Notification) bool) []models.Notification {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.Notification{}
	for _, n := range m.rows {
		if keep(n) {
			out = append(out, *n)
		}
	}
	return out
}

func (m *memNotifications) MarkAsRead(_ context.Context, id string) (*models.Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.rows[id]
	if !ok {
		return nil, models.ErrDataNotFound
	}
	n.Read = true
	cp := *n
	return &cp, nil
}

func (m *memNotifications) MarkAllAsRead(_ context.Context, userID *string) ([]models.Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.Notification{}
	for _, n := range m.rows {
		mine := (userID == nil && n.UserID == nil) || (userID != nil && n.UserID != nil && *n.UserID == *userID)
		if mine && !n.Read {
			n.Read = true
			out = append(out, *n)
		}
	}
	return out, nil
}

func strp(s string) *string { return &s }

func TestNotificationService_Notify(t *testing.T) {
	repo := newMemNotifications()
	events := &recordingPublisher{}
	svc := NewNotificationService(repo, events, zap.NewNop())

	n, err := svc.Notify(context.Background(), &models.Notification{
		UserID:  strp("cust-1"),
		OrderID: strp("o-1"),
		Title:   "Order Ready",
		Type:    "order_ready",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, n.ID)

	got := events.all()
	require.Len(t, got, 1)
	assert.Equal(t, feed.TableNotifications, got[0].Table)
	assert.Equal(t, feed.EventInsert, got[0].Type)
	assert.Equal(t, "cust-1", got[0].Columns["user_id"])
	assert.Equal(t, "false", got[0].Columns["is_admin_notification"])
}

func TestNotificationService_MarkAsReadOnlyChangesReadFlag(t *testing.T) {
	repo := newMemNotifications()
	events := &recordingPublisher{}
	svc := NewNotificationService(repo, events, zap.NewNop())
	ctx := context.Background()

	orig, err := repo.CreateNotification(ctx, &models.Notification{
		UserID:   strp(customer.ID),
		OrderID:  strp("o-1"),
		Title:    "Order Ready",
		Message:  "Your order #o-1 is ready for serving",
		Type:     "order_ready",
		Metadata: map[string]any{"status": "ready"},
	})
	require.NoError(t, err)

	updated, err := svc.MarkAsRead(ctx, customer, orig.ID)
	require.NoError(t, err)

	want := *orig
	want.Read = true
	assert.Equal(t, &want, updated)
	require.Len(t, events.all(), 1)
	assert.Equal(t, "true", events.all()[0].Columns["read"])

	// already read: no new event
	_, err = svc.MarkAsRead(ctx, customer, orig.ID)
	require.NoError(t, err)
	assert.Len(t, events.all(), 1)
}

func TestNotificationService_MarkAsReadVisibility(t *testing.T) {
	repo := newMemNotifications()
	svc := NewNotificationService(repo, &recordingPublisher{}, zap.NewNop())
	ctx := context.Background()

	mine, err := repo.CreateNotification(ctx, &models.Notification{UserID: strp(customer.ID), Type: "order_ready"})
	require.NoError(t, err)
	broadcast, err := repo.CreateNotification(ctx, &models.Notification{Type: models.NotificationOrderReceived})
	require.NoError(t, err)

	_, err = svc.MarkAsRead(ctx, stranger, mine.ID)
	assert.True(t, errors.Is(err, models.ErrDataNotFound))

	_, err = svc.MarkAsRead(ctx, customer, broadcast.ID)
	assert.True(t, errors.Is(err, models.ErrDataNotFound))

	_, err = svc.MarkAsRead(ctx, admin, broadcast.ID)
	assert.NoError(t, err)

	_, err = svc.MarkAsRead(ctx, customer, "missing")
	assert.True(t, errors.Is(err, models.ErrDataNotFound))
}

func TestNotificationService_MarkAll(t *testing.T) {
	repo := newMemNotifications()
	events := &recordingPublisher{}
	svc := NewNotificationService(repo, events, zap.NewNop())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := repo.CreateNotification(ctx, &models.Notification{UserID: strp(customer.ID), Type: "order_ready"})
		require.NoError(t, err)
	}
	_, err := repo.CreateNotification(ctx, &models.Notification{UserID: strp(stranger.ID), Type: "order_ready"})
	require.NoError(t, err)
	_, err = repo.CreateNotification(ctx, &models.Notification{Type: models.NotificationOrderReceived})
	require.NoError(t, err)

	n, err := svc.MarkAllAsRead(ctx, customer)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Len(t, events.all(), 3)

	list, err := svc.ListForUser(ctx, stranger)
	require.NoError(t, err)
	assert.Equal(t, 1, UnreadCount(list))

	_, err = svc.MarkAllAdminAsRead(ctx, customer)
	assert.True(t, errors.Is(err, models.ErrForbidden))

	n, err = svc.MarkAllAdminAsRead(ctx, admin)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	adminList, err := svc.ListAdmin(ctx, admin)
	require.NoError(t, err)
	assert.Zero(t, UnreadCount(adminList))

	_, err = svc.ListAdmin(ctx, customer)
	assert.True(t, errors.Is(err, models.ErrForbidden))

	all, err := svc.ListAll(ctx, admin)
	require.NoError(t, err)
	assert.Len(t, all, len(adminList)+4)

	_, err = svc.ListAll(ctx, customer)
	assert.True(t, errors.Is(err, models.ErrForbidden))
}

func TestOrderTransitionWritesThroughNotificationService(t *testing.T) {
	repo := newMemNotifications()
	events := &recordingPublisher{}
	notifications := NewNotificationService(repo, events, zap.NewNop())

	f := newOrderFixture()
	orders := NewOrderService(f.repo, testMenu(), notifications, events, zap.NewNop())
	f.repo.put(models.Order{ID: "abcdef123456", UserID: customer.ID, Status: models.OrderStatusPending})

	_, err := orders.Transition(context.Background(), admin, "abcdef123456", "preparing")
	require.NoError(t, err)

	list, err := notifications.ListForUser(context.Background(), customer)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "order_preparing", list[0].Type)
	assert.Equal(t, "Your order #abcdef12 is now being prepared", list[0].Message)

	var tables []feed.Table
	for _, ev := range events.all() {
		tables = append(tables, ev.Table)
	}
	assert.Equal(t, []feed.Table{feed.TableOrders, feed.TableNotifications}, tables)
}
