package models

import "time"

// NotificationType values written for order events
const (
	NotificationOrderReceived = "order_received"
	notificationOrderPrefix   = "order_"
)

// NotificationTypeFor returns the notification type of a transition into status
func NotificationTypeFor(status OrderStatus) string {
	return notificationOrderPrefix + string(status)
}

// Notification is a message for a user, or for all admins when UserID is nil
type Notification struct {
	ID                  string         `json:"id"`
	UserID              *string        `json:"user_id"`
	IsAdminNotification bool           `json:"is_admin_notification"`
	OrderID             *string        `json:"order_id"`
	Title               string         `json:"title"`
	Message             string         `json:"message"`
	Type                string         `json:"type"`
	Read                bool           `json:"read"`
	Metadata            map[string]any `json:"metadata,omitempty"`
	CreatedAt           time.Time      `json:"created_at"`
}
