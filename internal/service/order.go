package service

import (
	"context"
	"errors"
	"fmt"
	"github.com/rookgm/tableorder/internal/cart"
	"github.com/rookgm/tableorder/internal/feed"
	"github.com/rookgm/tableorder/internal/lifecycle"
	"github.com/rookgm/tableorder/internal/metrics"
	"github.com/rookgm/tableorder/internal/models"
	"github.com/rookgm/tableorder/internal/ordernum"
	"github.com/rookgm/tableorder/internal/validation"
	"go.uber.org/zap"
	"math"
	"time"
)

const (
	paymentStatusCompleted = "completed"
	orderNumberAttempts    = 3
	reconcileBatch         = 100
	// orders changed more recently than this are left to the transition that changed them
	reconcileGrace = 30 * time.Second

	systemActorID = "system"
)

// stats periods accepted by Stats, "" and "all" count every order
var statsPeriods = map[string]time.Duration{
	"":      0,
	"all":   0,
	"day":   24 * time.Hour,
	"week":  7 * 24 * time.Hour,
	"month": 30 * 24 * time.Hour,
}

// OrderRepository is interface for interacting with order-related data
type OrderRepository interface {
	// CreateOrder inserts new order to database
	CreateOrder(ctx context.Context, order *models.Order) (*models.Order, error)
	// GetOrderByID returns order by id
	GetOrderByID(ctx context.Context, id string) (*models.Order, error)
	// GetOrderByNumber returns order by number
	GetOrderByNumber(ctx context.Context, num string) (*models.Order, error)
	// GetOrdersByUserID gets user orders
	GetOrdersByUserID(ctx context.Context, userID string) ([]models.Order, error)
	// GetOrders returns orders, optionally only those in one status
	GetOrders(ctx context.Context, status models.OrderStatus) ([]models.Order, error)
	// UpdateOrderStatus moves an order from one status to another
	UpdateOrderStatus(ctx context.Context, id string, from, to models.OrderStatus, tracking models.Tracking) (*models.Order, error)
	// GetOrderStats returns order count and value per status of orders created since the given time
	GetOrderStats(ctx context.Context, since time.Time) ([]models.StatusCount, error)
	// GetMissedNotifications returns statuses changed orders went through without a notification
	GetMissedNotifications(ctx context.Context, since, until time.Time, limit int) ([]models.MissedNotification, error)
}

// CatalogRepository resolves menu items for pricing
type CatalogRepository interface {
	GetFoodItemsByIDs(ctx context.Context, ids []string) (map[string]models.FoodItem, error)
}

// Notifier writes notifications
type Notifier interface {
	Notify(ctx context.Context, n *models.Notification) (*models.Notification, error)
}

// EventPublisher publishes committed row changes
type EventPublisher interface {
	Publish(ctx context.Context, ev feed.RowEvent) error
}

// OrderService implements OrderService interface
type OrderService struct {
	repo            OrderRepository
	catalog         CatalogRepository
	notifier        Notifier
	events          EventPublisher
	logger          *zap.Logger
	reconcileWindow time.Duration
	// ready orders untouched this long are completed by the system; zero disables it
	autoCompleteAfter time.Duration
	now               func() time.Time
}

// NewOrderService creates new OrderService instance
func NewOrderService(repo OrderRepository, catalog CatalogRepository, notifier Notifier, events EventPublisher, logger *zap.Logger) *OrderService {
	return &OrderService{
		repo:            repo,
		catalog:         catalog,
		notifier:        notifier,
		events:          events,
		logger:          logger.Named("orders"),
		reconcileWindow: 24 * time.Hour,
		now:             time.Now,
	}
}

// SetReconcileWindow sets how far back the reconciler looks for missing notifications
func (os *OrderService) SetReconcileWindow(d time.Duration) {
	if d > 0 {
		os.reconcileWindow = d
	}
}

// SetAutoComplete sets how long an order may stay ready before the system completes it.
// Zero disables auto completion.
func (os *OrderService) SetAutoComplete(d time.Duration) {
	if d < 0 {
		d = 0
	}
	os.autoCompleteAfter = d
}

// Checkout places an order for the paid cart
func (os *OrderService) Checkout(ctx context.Context, user models.CurrentUser, req models.Checkout) (*models.Order, error) {
	if err := validation.Struct(&req); err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(req.Lines))
	for _, l := range req.Lines {
		ids = append(ids, l.FoodItemID)
	}
	menu, err := os.catalog.GetFoodItemsByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	// price from the menu, never from the client
	c := cart.New()
	for _, l := range req.Lines {
		item, ok := menu[l.FoodItemID]
		if !ok || !item.IsActive {
			return nil, fmt.Errorf("%w: item %s is not available", models.ErrValidation, l.FoodItemID)
		}
		category := l.Category
		if category == "" {
			category = item.Category
		}
		c.AddN(cart.Line{
			FoodItemID:    item.ID,
			Category:      category,
			Name:          item.Name,
			Image:         item.ImageURL,
			UnitPrice:     item.Price,
			DiscountType:  item.DiscountType,
			DiscountValue: item.DiscountValue,
		}, l.Quantity)
	}

	lines := c.Lines()
	totals := cart.Price(lines)

	var gross float64
	items := make([]models.Item, 0, len(lines))
	for _, l := range lines {
		gross += l.UnitPrice * float64(l.Quantity)
		items = append(items, models.Item{
			ID:            l.FoodItemID,
			Name:          l.Name,
			Category:      l.Category,
			Price:         l.UnitPrice,
			Quantity:      l.Quantity,
			DiscountType:  l.DiscountType,
			DiscountValue: l.DiscountValue,
			Image:         l.Image,
		})
	}

	order := &models.Order{
		UserID:         user.ID,
		RestaurantID:   req.RestaurantID,
		TableNumber:    req.TableNumber,
		Items:          items,
		Subtotal:       totals.Subtotal,
		GST:            totals.Tax,
		Discount:       math.Round((gross-totals.Subtotal)*100) / 100,
		Total:          totals.Total,
		PaymentMethod:  req.PaymentMethod,
		PaymentStatus:  paymentStatusCompleted,
		PaymentID:      req.PaymentID,
		PaymentOrderID: req.PaymentOrderID,
		Status:         models.OrderStatusPending,
		Tracking:       models.Tracking{}.Advance(models.OrderStatusPending, os.now().UTC()),
		CustomerName:   req.CustomerName,
		CustomerEmail:  user.Email,
		CustomerPhone:  req.CustomerPhone,
	}

	var created *models.Order
	for attempt := 0; attempt < orderNumberAttempts; attempt++ {
		order.OrderNumber = ordernum.Generate()
		created, err = os.repo.CreateOrder(ctx, order)
		if !errors.Is(err, models.ErrConflictData) {
			break
		}
	}
	if err != nil {
		return nil, err
	}

	metrics.OrdersPlaced.Inc()
	os.logger.Info("order placed",
		zap.String("order", created.ID),
		zap.String("table", created.TableNumber),
		zap.Float64("total", created.Total),
	)

	os.publish(ctx, feed.EventInsert, created)
	os.notify(ctx, receivedNotification(created))

	return created, nil
}

// Get returns an order visible to user
func (os *OrderService) Get(ctx context.Context, user models.CurrentUser, id string) (*models.Order, error) {
	order, err := os.repo.GetOrderByID(ctx, id)
	if err != nil {
		return nil, err
	}
	// other customers' orders do not exist for the caller
	if !user.IsAdmin && order.UserID != user.ID {
		return nil, models.ErrDataNotFound
	}

	return order, nil
}

// GetByNumber looks an order up by its printed number
func (os *OrderService) GetByNumber(ctx context.Context, user models.CurrentUser, num string) (*models.Order, error) {
	if !user.IsAdmin {
		return nil, models.ErrForbidden
	}
	if !ordernum.Valid(num) {
		return nil, fmt.Errorf("%w: malformed order number", models.ErrValidation)
	}

	return os.repo.GetOrderByNumber(ctx, ordernum.Normalize(num))
}

// ListUserOrders returns list of user orders
func (os *OrderService) ListUserOrders(ctx context.Context, user models.CurrentUser) ([]models.Order, error) {
	return os.repo.GetOrdersByUserID(ctx, user.ID)
}

// ListOrders returns every order, optionally filtered by status
func (os *OrderService) ListOrders(ctx context.Context, user models.CurrentUser, status string) ([]models.Order, error) {
	if !user.IsAdmin {
		return nil, models.ErrForbidden
	}

	var st models.OrderStatus
	if status != "" {
		var err error
		if st, err = lifecycle.Normalize(status); err != nil {
			return nil, err
		}
	}

	return os.repo.GetOrders(ctx, st)
}

// Transition moves an order to the target status.
// The status write is the source of truth: publishing the change and
// notifying the customer happen after it and never undo it.
func (os *OrderService) Transition(ctx context.Context, user models.CurrentUser, id string, target string) (*models.Order, error) {
	if !user.IsAdmin {
		metrics.OrderTransitionRejections.WithLabelValues("forbidden").Inc()
		return nil, models.ErrForbidden
	}

	to, err := lifecycle.Normalize(target)
	if err != nil {
		metrics.OrderTransitionRejections.WithLabelValues("unknown_status").Inc()
		return nil, err
	}

	current, err := os.repo.GetOrderByID(ctx, id)
	if err != nil {
		return nil, err
	}

	return os.apply(ctx, current, to, lifecycle.ActorAdmin, user.ID)
}

// apply checks and writes one transition, then publishes and notifies
func (os *OrderService) apply(ctx context.Context, current *models.Order, to models.OrderStatus, actor lifecycle.Actor, by string) (*models.Order, error) {
	if err := lifecycle.Check(current.Status, to, actor); err != nil {
		metrics.OrderTransitionRejections.WithLabelValues("illegal").Inc()
		return nil, err
	}

	id := current.ID
	updated, err := os.repo.UpdateOrderStatus(ctx, id, current.Status, to, current.Tracking.Advance(to, os.now().UTC()))
	if err != nil {
		if errors.Is(err, models.ErrConcurrentUpdate) {
			metrics.OrderTransitionRejections.WithLabelValues("concurrent").Inc()
		}
		return nil, err
	}

	metrics.OrderTransitions.WithLabelValues(string(current.Status), string(to)).Inc()
	os.logger.Info("order status changed",
		zap.String("order", id),
		zap.String("from", string(current.Status)),
		zap.String("to", string(to)),
		zap.String("by", by),
	)

	os.publish(ctx, feed.EventUpdate, updated)
	os.notify(ctx, statusNotification(updated, updated.Status))

	return updated, nil
}

// CompleteStaleReady completes orders left ready longer than the auto complete delay.
// It returns how many were completed.
func (os *OrderService) CompleteStaleReady(ctx context.Context) (int, error) {
	if os.autoCompleteAfter <= 0 {
		return 0, nil
	}

	ready, err := os.repo.GetOrders(ctx, models.OrderStatusReady)
	if err != nil {
		return 0, err
	}

	cutoff := os.now().Add(-os.autoCompleteAfter)
	completed := 0
	for i := range ready {
		if ready[i].UpdatedAt.After(cutoff) {
			continue
		}
		// an admin may complete it meanwhile, the conditional write then refuses
		if _, err := os.apply(ctx, &ready[i], models.OrderStatusCompleted, lifecycle.ActorSystem, systemActorID); err != nil {
			os.logger.Warn("auto completion failed", zap.String("order", ready[i].ID), zap.Error(err))
			continue
		}
		completed++
	}

	return completed, nil
}

// Stats summarizes orders per status and completed revenue over period:
// day, week, month, or all time when empty
func (os *OrderService) Stats(ctx context.Context, user models.CurrentUser, period string) (*models.OrderStats, error) {
	if !user.IsAdmin {
		return nil, models.ErrForbidden
	}

	window, ok := statsPeriods[period]
	if !ok {
		return nil, fmt.Errorf("%w: unknown stats period %q", models.ErrValidation, period)
	}

	stats := &models.OrderStats{Period: period, ByStatus: make(map[models.OrderStatus]int64, len(models.OrderStatuses))}
	if stats.Period == "" {
		stats.Period = "all"
	}

	var since time.Time
	if window > 0 {
		since = os.now().UTC().Add(-window)
		stats.Since = &since
	}

	counts, err := os.repo.GetOrderStats(ctx, since)
	if err != nil {
		return nil, err
	}

	for _, st := range models.OrderStatuses {
		stats.ByStatus[st] = 0
	}
	for _, c := range counts {
		stats.ByStatus[c.Status] = c.Count
		stats.Total += c.Count
		if c.Status == models.OrderStatusCompleted {
			stats.Completed = c.Count
			stats.Revenue = c.Revenue
		}
	}

	return stats, nil
}

// ReconcileNotifications writes the transition notifications that were lost
// after their status change committed, for every status the order went through.
// It returns how many were written.
func (os *OrderService) ReconcileNotifications(ctx context.Context) (int, error) {
	now := os.now()
	missed, err := os.repo.GetMissedNotifications(ctx, now.Add(-os.reconcileWindow), now.Add(-reconcileGrace), reconcileBatch)
	if err != nil {
		return 0, err
	}

	written := 0
	for i := range missed {
		m := &missed[i]
		if _, err := os.notifier.Notify(ctx, statusNotification(&m.Order, m.Status)); err != nil {
			os.logger.Warn("notification backfill failed",
				zap.String("order", m.Order.ID),
				zap.String("status", string(m.Status)),
				zap.Error(err),
			)
			continue
		}
		written++
	}
	metrics.NotificationsReconciled.Add(float64(written))

	return written, nil
}

func (os *OrderService) publish(ctx context.Context, typ feed.EventType, order *models.Order) {
	ev, err := feed.NewEvent(feed.TableOrders, typ, order)
	if err == nil {
		err = os.events.Publish(ctx, ev)
	}
	if err != nil {
		os.logger.Error("publish order change", zap.String("order", order.ID), zap.Error(err))
	}
}

func (os *OrderService) notify(ctx context.Context, n *models.Notification) {
	if _, err := os.notifier.Notify(ctx, n); err != nil {
		metrics.NotificationFailures.Inc()
		os.logger.Error("notification not written",
			zap.String("type", n.Type),
			zap.Stringp("order", n.OrderID),
			zap.Error(err),
		)
	}
}

var statusTitles = map[models.OrderStatus]string{
	models.OrderStatusPreparing: "Order Accepted",
	models.OrderStatusReady:     "Order Ready",
	models.OrderStatusCompleted: "Order Completed",
	models.OrderStatusRejected:  "Order Rejected",
}

var statusMessages = map[models.OrderStatus]string{
	models.OrderStatusPreparing: "Your order #%s is now being prepared",
	models.OrderStatusReady:     "Your order #%s is ready for serving",
	models.OrderStatusCompleted: "Your order #%s has been completed",
	models.OrderStatusRejected:  "Unfortunately, your order #%s has been rejected",
}

// statusNotification tells the owner that order entered status
func statusNotification(order *models.Order, status models.OrderStatus) *models.Notification {
	title, ok := statusTitles[status]
	if !ok {
		title = "Order Updated"
	}
	msg, ok := statusMessages[status]
	if !ok {
		msg = "Order #%s has been " + string(status)
	}
	userID, orderID := order.UserID, order.ID

	return &models.Notification{
		UserID:  &userID,
		OrderID: &orderID,
		Title:   title,
		Message: fmt.Sprintf(msg, order.ShortID()),
		Type:    models.NotificationTypeFor(status),
		Metadata: map[string]any{
			"order_number": order.OrderNumber,
			"status":       status,
			"table_number": order.TableNumber,
		},
	}
}

func receivedNotification(order *models.Order) *models.Notification {
	orderID := order.ID
	items := make([]map[string]any, 0, len(order.Items))
	for _, it := range order.Items {
		items = append(items, map[string]any{"name": it.Name, "quantity": it.Quantity, "price": it.Price})
	}

	return &models.Notification{
		OrderID: &orderID,
		Title:   "New Order Received",
		Message: fmt.Sprintf("Order #%s - Table %s - ₹%.2f", order.ShortID(), order.TableNumber, order.Total),
		Type:    models.NotificationOrderReceived,
		Metadata: map[string]any{
			"order_number":   order.OrderNumber,
			"table_number":   order.TableNumber,
			"total":          order.Total,
			"items":          items,
			"customer_name":  order.CustomerName,
			"customer_email": order.CustomerEmail,
			"created_at":     order.CreatedAt,
		},
	}
}
