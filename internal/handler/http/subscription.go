package handler

import (
	"context"
	"fmt"
	"github.com/gorilla/websocket"
	"github.com/rookgm/tableorder/internal/feed"
	"github.com/rookgm/tableorder/internal/models"
	ws "github.com/rookgm/tableorder/internal/websocket"
	"go.uber.org/zap"
	"net/http"
	"time"
)

// SubscriptionHandler upgrades requests to websocket change streams
type SubscriptionHandler struct {
	feed          feed.ChangeFeed
	hub           *ws.Hub
	orders        OrderService
	notifications NotificationService
	upgrader      websocket.Upgrader
	resync        time.Duration
	logger        *zap.Logger
}

// NewSubscriptionHandler creates new SubscriptionHandler instance.
// Browsers from origins other than allowedOrigins are refused; an empty list allows same-host only.
func NewSubscriptionHandler(cf feed.ChangeFeed, hub *ws.Hub, orders OrderService, notifications NotificationService,
	allowedOrigins []string, resync time.Duration, logger *zap.Logger) *SubscriptionHandler {
	sh := &SubscriptionHandler{
		feed:          cf,
		hub:           hub,
		orders:        orders,
		notifications: notifications,
		resync:        resync,
		logger:        logger.Named("subscriptions"),
	}
	sh.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
	}
	if len(allowedOrigins) > 0 {
		sh.upgrader.CheckOrigin = func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			for _, o := range allowedOrigins {
				if o == "*" || o == origin {
					return true
				}
			}
			return false
		}
	}
	return sh
}

// Subscribe streams changes of one table to the caller.
// Query parameters: table, event (INSERT, UPDATE, DELETE or *) and filter ("column=eq.value").
// 400 — неверный фильтр;
// 401 — пользователь не авторизован;
// 403 — фильтр выходит за пределы данных пользователя.
func (sh *SubscriptionHandler) Subscribe() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := currentUser(w, r)
		if !ok {
			return
		}

		q := r.URL.Query()
		filter, err := feed.ParseFilter(q.Get("table"), q.Get("event"), q.Get("filter"))
		if err != nil {
			writeError(w, fmt.Errorf("%w: %v", models.ErrValidation, err))
			return
		}

		if err := sh.authorize(r.Context(), user, filter); err != nil {
			writeError(w, err)
			return
		}

		sub, err := sh.feed.Subscribe(filter)
		if err != nil {
			writeError(w, fmt.Errorf("%w: %v", models.ErrUnavailable, err))
			return
		}

		conn, err := sh.upgrader.Upgrade(w, r, nil)
		if err != nil {
			// the upgrader has answered already
			sub.Unsubscribe()
			return
		}

		client := ws.NewClient(sh.hub, conn, sub, sh.snapshot(user, filter), sh.resync)
		if err := client.Start(); err != nil {
			sh.logger.Info("subscription refused", zap.Error(err))
			return
		}
		sh.logger.Debug("subscribed", zap.String("user", user.ID), zap.String("filter", filter.String()))
	}
}

// authorize limits customers to their own rows
func (sh *SubscriptionHandler) authorize(ctx context.Context, user models.CurrentUser, f feed.Filter) error {
	if user.IsAdmin {
		return nil
	}

	switch {
	case f.Column == "user_id" && f.Value == user.ID:
		return nil
	case f.Table == feed.TableOrders && f.Column == "id":
		// Get hides other customers' orders
		if _, err := sh.orders.Get(ctx, user, f.Value); err != nil {
			if models.KindOf(err) == models.KindNotFound {
				return models.ErrForbidden
			}
			return err
		}
		return nil
	default:
		return models.ErrForbidden
	}
}

// snapshot returns the loader of the rows in scope of f
func (sh *SubscriptionHandler) snapshot(user models.CurrentUser, f feed.Filter) ws.SnapshotFunc {
	return func(ctx context.Context) (any, error) {
		switch f.Table {
		case feed.TableOrders:
			return sh.orderSnapshot(ctx, user, f)
		case feed.TableNotifications:
			return sh.notificationSnapshot(ctx, user, f)
		default:
			return nil, fmt.Errorf("unknown table %q", f.Table)
		}
	}
}

func (sh *SubscriptionHandler) orderSnapshot(ctx context.Context, user models.CurrentUser, f feed.Filter) ([]models.Order, error) {
	var (
		orders []models.Order
		err    error
	)
	switch {
	case f.Column == "id":
		order, gerr := sh.orders.Get(ctx, user, f.Value)
		if gerr != nil {
			if models.KindOf(gerr) == models.KindNotFound {
				return []models.Order{}, nil
			}
			return nil, gerr
		}
		orders = []models.Order{*order}
	case user.IsAdmin:
		orders, err = sh.orders.ListOrders(ctx, user, "")
	default:
		orders, err = sh.orders.ListUserOrders(ctx, user)
	}
	if err != nil {
		return nil, err
	}

	out := make([]models.Order, 0, len(orders))
	for _, o := range orders {
		if f.MatchRow(o) {
			out = append(out, o)
		}
	}
	return out, nil
}

func (sh *SubscriptionHandler) notificationSnapshot(ctx context.Context, user models.CurrentUser, f feed.Filter) ([]models.Notification, error) {
	var (
		ns  []models.Notification
		err error
	)
	switch {
	case !user.IsAdmin, f.Column == "user_id" && f.Value == user.ID:
		ns, err = sh.notifications.ListForUser(ctx, user)
	case f.Column == "is_admin_notification":
		ns, err = sh.notifications.ListAdmin(ctx, user)
	default:
		// the feed delivers every recipient's rows to admins
		ns, err = sh.notifications.ListAll(ctx, user)
	}
	if err != nil {
		return nil, err
	}

	out := make([]models.Notification, 0, len(ns))
	for _, n := range ns {
		if f.MatchRow(n) {
			out = append(out, n)
		}
	}
	return out, nil
}
