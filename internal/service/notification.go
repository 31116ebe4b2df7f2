package service

import (
	"context"
	"github.com/rookgm/tableorder/internal/feed"
	"github.com/rookgm/tableorder/internal/models"
	"go.uber.org/zap"
)

const (
	userNotificationLimit  = 50
	adminNotificationLimit = 100
)

// NotificationRepository is interface for interacting with notification data
type NotificationRepository interface {
	// CreateNotification inserts new notification
	CreateNotification(ctx context.Context, n *models.Notification) (*models.Notification, error)
	// GetNotificationByID returns notification by id
	GetNotificationByID(ctx context.Context, id string) (*models.Notification, error)
	// GetNotificationsByUserID returns latest notifications of a user
	GetNotificationsByUserID(ctx context.Context, userID string, limit int) ([]models.Notification, error)
	// GetAdminNotifications returns latest admin broadcast notifications
	GetAdminNotifications(ctx context.Context, limit int) ([]models.Notification, error)
	// GetNotifications returns latest notifications of every recipient
	GetNotifications(ctx context.Context, limit int) ([]models.Notification, error)
	// MarkAsRead sets the read flag of one notification
	MarkAsRead(ctx context.Context, id string) (*models.Notification, error)
	// MarkAllAsRead sets the read flag of all unread notifications of a user or of the admin broadcast
	MarkAllAsRead(ctx context.Context, userID *string) ([]models.Notification, error)
}

// NotificationService implements NotificationService interface
type NotificationService struct {
	repo   NotificationRepository
	events EventPublisher
	logger *zap.Logger
}

// NewNotificationService creates new NotificationService instance
func NewNotificationService(repo NotificationRepository, events EventPublisher, logger *zap.Logger) *NotificationService {
	return &NotificationService{
		repo:   repo,
		events: events,
		logger: logger.Named("notifications"),
	}
}

// Notify stores a notification and publishes it
func (ns *NotificationService) Notify(ctx context.Context, n *models.Notification) (*models.Notification, error) {
	created, err := ns.repo.CreateNotification(ctx, n)
	if err != nil {
		return nil, err
	}

	ns.publish(ctx, feed.EventInsert, created)

	return created, nil
}

// ListForUser returns notifications addressed to user
func (ns *NotificationService) ListForUser(ctx context.Context, user models.CurrentUser) ([]models.Notification, error) {
	return ns.repo.GetNotificationsByUserID(ctx, user.ID, userNotificationLimit)
}

// ListAdmin returns the admin broadcast notifications
func (ns *NotificationService) ListAdmin(ctx context.Context, user models.CurrentUser) ([]models.Notification, error) {
	if !user.IsAdmin {
		return nil, models.ErrForbidden
	}
	return ns.repo.GetAdminNotifications(ctx, adminNotificationLimit)
}

// ListAll returns the latest notifications of every recipient
func (ns *NotificationService) ListAll(ctx context.Context, user models.CurrentUser) ([]models.Notification, error) {
	if !user.IsAdmin {
		return nil, models.ErrForbidden
	}
	return ns.repo.GetNotifications(ctx, adminNotificationLimit)
}

// MarkAsRead marks one notification read. Only the read flag changes.
func (ns *NotificationService) MarkAsRead(ctx context.Context, user models.CurrentUser, id string) (*models.Notification, error) {
	n, err := ns.repo.GetNotificationByID(ctx, id)
	if err != nil {
		return nil, err
	}

	switch {
	case n.UserID == nil && !user.IsAdmin:
		return nil, models.ErrDataNotFound
	case n.UserID != nil && *n.UserID != user.ID:
		return nil, models.ErrDataNotFound
	}

	if n.Read {
		return n, nil
	}

	updated, err := ns.repo.MarkAsRead(ctx, id)
	if err != nil {
		return nil, err
	}
	ns.publish(ctx, feed.EventUpdate, updated)

	return updated, nil
}

// MarkAllAsRead marks every notification of user read and returns how many changed
func (ns *NotificationService) MarkAllAsRead(ctx context.Context, user models.CurrentUser) (int, error) {
	id := user.ID
	return ns.markAll(ctx, &id)
}

// MarkAllAdminAsRead marks the whole admin broadcast read
func (ns *NotificationService) MarkAllAdminAsRead(ctx context.Context, user models.CurrentUser) (int, error) {
	if !user.IsAdmin {
		return 0, models.ErrForbidden
	}
	return ns.markAll(ctx, nil)
}

func (ns *NotificationService) markAll(ctx context.Context, userID *string) (int, error) {
	changed, err := ns.repo.MarkAllAsRead(ctx, userID)
	if err != nil {
		return 0, err
	}

	for i := range changed {
		ns.publish(ctx, feed.EventUpdate, &changed[i])
	}

	return len(changed), nil
}

// UnreadCount returns how many of ns are unread
func UnreadCount(ns []models.Notification) int {
	count := 0
	for _, n := range ns {
		if !n.Read {
			count++
		}
	}
	return count
}

func (ns *NotificationService) publish(ctx context.Context, typ feed.EventType, n *models.Notification) {
	ev, err := feed.NewEvent(feed.TableNotifications, typ, n)
	if err == nil {
		err = ns.events.Publish(ctx, ev)
	}
	if err != nil {
		ns.logger.Error("publish notification change", zap.String("notification", n.ID), zap.Error(err))
	}
}
