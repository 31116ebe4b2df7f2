package repository

import (
	"context"
	"errors"
	"fmt"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rookgm/tableorder/internal/models"
	"github.com/rookgm/tableorder/internal/repository/postgres"
	"time"
)

const pgErrUniqueViolationCode = "23505"

const orderColumns = `id, order_number, user_id, restaurant_id, table_number, items,
						subtotal::float8, gst::float8, discount::float8, total::float8,
						payment_method, payment_status, payment_id, payment_order_id,
						status, tracking, customer_name, customer_email, customer_phone,
						created_at, updated_at`

const (
	insertOrderQuery = `
						INSERT INTO orders (id, order_number, user_id, restaurant_id, table_number, items,
						                    subtotal, gst, discount, total,
						                    payment_method, payment_status, payment_id, payment_order_id,
						                    status, tracking, customer_name, customer_email, customer_phone)
						VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
						RETURNING ` + orderColumns

	selectOrderByIDQuery = `
						SELECT ` + orderColumns + ` FROM orders
						WHERE id = $1
`
	selectOrderByNumberQuery = `
						SELECT ` + orderColumns + ` FROM orders
						WHERE order_number = $1
`
	selectOrdersByUserIDQuery = `
						SELECT ` + orderColumns + ` FROM orders
						WHERE user_id = $1
						ORDER BY created_at DESC
`
	selectOrdersQuery = `
						SELECT ` + orderColumns + ` FROM orders
						ORDER BY created_at DESC
`
	selectOrdersByStatusQuery = `
						SELECT ` + orderColumns + ` FROM orders
						WHERE status = $1
						ORDER BY created_at DESC
`
	updateOrderStatusQuery = `
						UPDATE orders
						SET status = $1, tracking = $2, updated_at = now()
						WHERE id = $3 AND status = $4
						RETURNING ` + orderColumns

	selectOrderStatsQuery = `
						SELECT status, count(*), COALESCE(sum(total), 0)::float8 FROM orders
						WHERE created_at >= $1
						GROUP BY status
`
	// every non-pending status the order went through, taken from its tracking
	// milestones and current status, that has no notification yet
	selectMissedNotificationsQuery = `
						SELECT ` + orderColumns + `, m.missed FROM orders
						CROSS JOIN LATERAL (
							SELECT v.missed, min(v.pos) AS pos FROM (VALUES
								(1, CASE WHEN (tracking->'preparing'->>'status')::boolean THEN 'preparing' END),
								(2, CASE WHEN (tracking->'ready'->>'status')::boolean THEN 'ready' END),
								(3, CASE WHEN (tracking->'delivered'->>'status')::boolean THEN 'completed' END),
								(4, status)
							) AS v(pos, missed)
							WHERE v.missed IS NOT NULL AND v.missed <> 'pending'
							GROUP BY v.missed
						) m
						WHERE updated_at BETWEEN $1 AND $2
						AND NOT EXISTS (
							SELECT 1 FROM notifications n
							WHERE n.order_id = orders.id AND n.type = 'order_' || m.missed
						)
						ORDER BY updated_at, m.pos
						LIMIT $3
`
)

// OrderRepository implements OrderRepository interface
type OrderRepository struct {
	db *postgres.DB
}

// NewOrderRepository creates new OrderRepository instance
func NewOrderRepository(db *postgres.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

// CreateOrder inserts new order to database
func (or *OrderRepository) CreateOrder(ctx context.Context, order *models.Order) (*models.Order, error) {
	id := uuid.NewString()

	items, err := json.Marshal(order.Items)
	if err != nil {
		return nil, err
	}
	tracking, err := json.Marshal(order.Tracking)
	if err != nil {
		return nil, err
	}

	created, err := scanOrder(or.db.QueryRow(ctx, insertOrderQuery,
		id, order.OrderNumber, order.UserID, order.RestaurantID, order.TableNumber, items,
		order.Subtotal, order.GST, order.Discount, order.Total,
		order.PaymentMethod, order.PaymentStatus, order.PaymentID, order.PaymentOrderID,
		order.Status, tracking, order.CustomerName, order.CustomerEmail, order.CustomerPhone,
	))
	if err != nil {
		if errCode := or.db.ErrorCode(err); errCode == pgErrUniqueViolationCode {
			return nil, models.ErrConflictData
		}
		return nil, err
	}

	return created, nil
}

// GetOrderByID returns order by id
func (or *OrderRepository) GetOrderByID(ctx context.Context, id string) (*models.Order, error) {
	order, err := scanOrder(or.db.QueryRow(ctx, selectOrderByIDQuery, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrDataNotFound
		}
		return nil, err
	}

	return order, nil
}

// GetOrderByNumber returns order by number
func (or *OrderRepository) GetOrderByNumber(ctx context.Context, num string) (*models.Order, error) {
	order, err := scanOrder(or.db.QueryRow(ctx, selectOrderByNumberQuery, num))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrDataNotFound
		}
		return nil, err
	}

	return order, nil
}

// GetOrdersByUserID gets user orders, newest first
func (or *OrderRepository) GetOrdersByUserID(ctx context.Context, userID string) ([]models.Order, error) {
	return or.list(ctx, selectOrdersByUserIDQuery, userID)
}

// GetOrders returns all orders, or only those in status when it is not empty
func (or *OrderRepository) GetOrders(ctx context.Context, status models.OrderStatus) ([]models.Order, error) {
	if status == "" {
		return or.list(ctx, selectOrdersQuery)
	}
	return or.list(ctx, selectOrdersByStatusQuery, status)
}

// UpdateOrderStatus moves an order from one status to another.
// It returns models.ErrConcurrentUpdate when the order is no longer in the expected status.
func (or *OrderRepository) UpdateOrderStatus(ctx context.Context, id string, from, to models.OrderStatus, tracking models.Tracking) (*models.Order, error) {
	tr, err := json.Marshal(tracking)
	if err != nil {
		return nil, err
	}

	order, err := scanOrder(or.db.QueryRow(ctx, updateOrderStatusQuery, to, tr, id, from))
	if err == nil {
		return order, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}

	// nothing updated: either the order is gone or someone changed it first
	if _, err := or.GetOrderByID(ctx, id); err != nil {
		return nil, err
	}

	return nil, models.ErrConcurrentUpdate
}

// GetOrderStats returns order count and value per status of orders created since the given time
func (or *OrderRepository) GetOrderStats(ctx context.Context, since time.Time) ([]models.StatusCount, error) {
	rows, err := or.db.Query(ctx, selectOrderStatsQuery, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	stats := []models.StatusCount{}

	for rows.Next() {
		sc := models.StatusCount{}
		if err := rows.Scan(&sc.Status, &sc.Count, &sc.Revenue); err != nil {
			return nil, err
		}
		stats = append(stats, sc)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return stats, nil
}

// GetMissedNotifications returns, for orders changed between since and until,
// the statuses they went through that have no notification
func (or *OrderRepository) GetMissedNotifications(ctx context.Context, since, until time.Time, limit int) ([]models.MissedNotification, error) {
	rows, err := or.db.Query(ctx, selectMissedNotificationsQuery, since, until, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	missed := []models.MissedNotification{}

	for rows.Next() {
		var status models.OrderStatus
		order, err := scanOrder(rows, &status)
		if err != nil {
			return nil, err
		}
		missed = append(missed, models.MissedNotification{Order: *order, Status: status})
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return missed, nil
}

func (or *OrderRepository) list(ctx context.Context, query string, args ...any) ([]models.Order, error) {
	rows, err := or.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	orders := []models.Order{}

	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, *order)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return orders, nil
}

// scanOrder scans the order columns followed by extra
func scanOrder(row pgx.Row, extra ...any) (*models.Order, error) {
	var (
		order    models.Order
		items    []byte
		tracking []byte
	)

	dest := []any{&order.ID, &order.OrderNumber, &order.UserID, &order.RestaurantID, &order.TableNumber, &items,
		&order.Subtotal, &order.GST, &order.Discount, &order.Total,
		&order.PaymentMethod, &order.PaymentStatus, &order.PaymentID, &order.PaymentOrderID,
		&order.Status, &tracking, &order.CustomerName, &order.CustomerEmail, &order.CustomerPhone,
		&order.CreatedAt, &order.UpdatedAt}

	err := row.Scan(append(dest, extra...)...)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(items, &order.Items); err != nil {
		return nil, fmt.Errorf("decode items of order %s: %w", order.ID, err)
	}
	if err := json.Unmarshal(tracking, &order.Tracking); err != nil {
		return nil, fmt.Errorf("decode tracking of order %s: %w", order.ID, err)
	}

	return &order, nil
}
