package repository

import (
	"context"
	"errors"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rookgm/tableorder/internal/models"
	"github.com/rookgm/tableorder/internal/repository/postgres"
)

const notificationColumns = `id, user_id, order_id, title, message, type, read, metadata, created_at`

const (
	insertNotificationQuery = `
						INSERT INTO notifications (id, user_id, order_id, title, message, type, metadata)
						VALUES ($1, $2, $3, $4, $5, $6, $7)
						RETURNING ` + notificationColumns

	selectNotificationByIDQuery = `
						SELECT ` + notificationColumns + ` FROM notifications
						WHERE id = $1
`
	selectNotificationsByUserIDQuery = `
						SELECT ` + notificationColumns + ` FROM notifications
						WHERE user_id = $1
						ORDER BY created_at DESC
						LIMIT $2
`
	selectAdminNotificationsQuery = `
						SELECT ` + notificationColumns + ` FROM notifications
						WHERE user_id IS NULL
						ORDER BY created_at DESC
						LIMIT $1
`
	selectNotificationsQuery = `
						SELECT ` + notificationColumns + ` FROM notifications
						ORDER BY created_at DESC
						LIMIT $1
`
	markNotificationReadQuery = `
						UPDATE notifications
						SET read = TRUE
						WHERE id = $1
						RETURNING ` + notificationColumns

	markUserNotificationsReadQuery = `
						UPDATE notifications
						SET read = TRUE
						WHERE user_id = $1 AND read = FALSE
						RETURNING ` + notificationColumns

	markAdminNotificationsReadQuery = `
						UPDATE notifications
						SET read = TRUE
						WHERE user_id IS NULL AND read = FALSE
						RETURNING ` + notificationColumns
)

// NotificationRepository stores notifications
type NotificationRepository struct {
	db *postgres.DB
}

// NewNotificationRepository creates new NotificationRepository instance
func NewNotificationRepository(db *postgres.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

// CreateNotification inserts new notification
func (nr *NotificationRepository) CreateNotification(ctx context.Context, n *models.Notification) (*models.Notification, error) {
	var metadata []byte
	if n.Metadata != nil {
		var err error
		if metadata, err = json.Marshal(n.Metadata); err != nil {
			return nil, err
		}
	}

	return scanNotification(nr.db.QueryRow(ctx, insertNotificationQuery,
		uuid.NewString(), n.UserID, n.OrderID, n.Title, n.Message, n.Type, metadata))
}

// GetNotificationByID returns notification by id
func (nr *NotificationRepository) GetNotificationByID(ctx context.Context, id string) (*models.Notification, error) {
	n, err := scanNotification(nr.db.QueryRow(ctx, selectNotificationByIDQuery, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrDataNotFound
		}
		return nil, err
	}

	return n, nil
}

// GetNotificationsByUserID returns latest notifications of a user
func (nr *NotificationRepository) GetNotificationsByUserID(ctx context.Context, userID string, limit int) ([]models.Notification, error) {
	return nr.list(ctx, selectNotificationsByUserIDQuery, userID, limit)
}

// GetAdminNotifications returns latest admin broadcast notifications
func (nr *NotificationRepository) GetAdminNotifications(ctx context.Context, limit int) ([]models.Notification, error) {
	return nr.list(ctx, selectAdminNotificationsQuery, limit)
}

// GetNotifications returns latest notifications of every recipient
func (nr *NotificationRepository) GetNotifications(ctx context.Context, limit int) ([]models.Notification, error) {
	return nr.list(ctx, selectNotificationsQuery, limit)
}

// MarkAsRead sets the read flag of one notification
func (nr *NotificationRepository) MarkAsRead(ctx context.Context, id string) (*models.Notification, error) {
	n, err := scanNotification(nr.db.QueryRow(ctx, markNotificationReadQuery, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrDataNotFound
		}
		return nil, err
	}

	return n, nil
}

// MarkAllAsRead sets the read flag of every unread notification of a user,
// or of the admin broadcast when userID is nil. It returns the changed rows.
func (nr *NotificationRepository) MarkAllAsRead(ctx context.Context, userID *string) ([]models.Notification, error) {
	if userID == nil {
		return nr.list(ctx, markAdminNotificationsReadQuery)
	}
	return nr.list(ctx, markUserNotificationsReadQuery, *userID)
}

func (nr *NotificationRepository) list(ctx context.Context, query string, args ...any) ([]models.Notification, error) {
	rows, err := nr.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	notifications := []models.Notification{}

	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, err
		}
		notifications = append(notifications, *n)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return notifications, nil
}

func scanNotification(row pgx.Row) (*models.Notification, error) {
	var (
		n        models.Notification
		metadata []byte
	)

	err := row.Scan(&n.ID, &n.UserID, &n.OrderID, &n.Title, &n.Message, &n.Type, &n.Read, &metadata, &n.CreatedAt)
	if err != nil {
		return nil, err
	}

	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &n.Metadata); err != nil {
			return nil, err
		}
	}
	n.IsAdminNotification = n.UserID == nil

	return &n, nil
}
