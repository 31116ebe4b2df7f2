package handler

import (
	"context"
	"github.com/go-chi/chi/v5"
	"github.com/rookgm/tableorder/internal/models"
	"github.com/rookgm/tableorder/internal/service"
	"net/http"
)

type NotificationService interface {
	// ListForUser returns notifications addressed to user
	ListForUser(ctx context.Context, user models.CurrentUser) ([]models.Notification, error)
	// ListAdmin returns broadcast notifications for admins
	ListAdmin(ctx context.Context, user models.CurrentUser) ([]models.Notification, error)
	// ListAll returns notifications of every recipient, admins only
	ListAll(ctx context.Context, user models.CurrentUser) ([]models.Notification, error)
	// MarkAsRead sets the read flag of one notification
	MarkAsRead(ctx context.Context, user models.CurrentUser, id string) (*models.Notification, error)
	// MarkAllAsRead sets the read flag of every notification of user
	MarkAllAsRead(ctx context.Context, user models.CurrentUser) (int, error)
	// MarkAllAdminAsRead sets the read flag of every broadcast notification
	MarkAllAdminAsRead(ctx context.Context, user models.CurrentUser) (int, error)
}

// NotificationHandler represents HTTP handler for notification-related requests
type NotificationHandler struct {
	svc NotificationService
}

// NewNotificationHandler creates new NotificationHandler instance
func NewNotificationHandler(svc NotificationService) *NotificationHandler {
	return &NotificationHandler{svc: svc}
}

type notificationsResponse struct {
	Notifications []models.Notification `json:"notifications"`
	Unread        int                   `json:"unread"`
}

type markAllResponse struct {
	Updated int `json:"updated"`
}

func listResponse(ns []models.Notification) notificationsResponse {
	if ns == nil {
		ns = []models.Notification{}
	}
	return notificationsResponse{Notifications: ns, Unread: service.UnreadCount(ns)}
}

// ListUserNotifications returns the caller's notifications with the unread count
func (nh *NotificationHandler) ListUserNotifications() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := currentUser(w, r)
		if !ok {
			return
		}

		ns, err := nh.svc.ListForUser(r.Context(), user)
		if err != nil {
			writeError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, listResponse(ns))
	}
}

// ListAdminNotifications returns broadcast notifications
func (nh *NotificationHandler) ListAdminNotifications() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := currentUser(w, r)
		if !ok {
			return
		}

		ns, err := nh.svc.ListAdmin(r.Context(), user)
		if err != nil {
			writeError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, listResponse(ns))
	}
}

// MarkAsRead marks one notification read
func (nh *NotificationHandler) MarkAsRead() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := currentUser(w, r)
		if !ok {
			return
		}

		n, err := nh.svc.MarkAsRead(r.Context(), user, chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, n)
	}
}

// MarkAllAsRead marks every notification of the caller read
func (nh *NotificationHandler) MarkAllAsRead() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := currentUser(w, r)
		if !ok {
			return
		}

		n, err := nh.svc.MarkAllAsRead(r.Context(), user)
		if err != nil {
			writeError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, markAllResponse{Updated: n})
	}
}

// MarkAllAdminAsRead marks every broadcast notification read
func (nh *NotificationHandler) MarkAllAdminAsRead() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := currentUser(w, r)
		if !ok {
			return
		}

		n, err := nh.svc.MarkAllAdminAsRead(r.Context(), user)
		if err != nil {
			writeError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, markAllResponse{Updated: n})
	}
}
