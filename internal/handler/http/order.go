package handler

import (
	"context"
	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
	"github.com/rookgm/tableorder/internal/models"
	"net/http"
)

type OrderService interface {
	// Checkout places an order for the paid cart
	Checkout(ctx context.Context, user models.CurrentUser, req models.Checkout) (*models.Order, error)
	// Get returns an order visible to user
	Get(ctx context.Context, user models.CurrentUser, id string) (*models.Order, error)
	// GetByNumber looks an order up by its printed number
	GetByNumber(ctx context.Context, user models.CurrentUser, num string) (*models.Order, error)
	// ListUserOrders returns orders of user
	ListUserOrders(ctx context.Context, user models.CurrentUser) ([]models.Order, error)
	// ListOrders returns every order, optionally filtered by status
	ListOrders(ctx context.Context, user models.CurrentUser, status string) ([]models.Order, error)
	// Transition moves an order to the target status
	Transition(ctx context.Context, user models.CurrentUser, id string, target string) (*models.Order, error)
	// Stats summarizes orders created within period
	Stats(ctx context.Context, user models.CurrentUser, period string) (*models.OrderStats, error)
}

// OrderHandler represents HTTP handler for order-related requests
type OrderHandler struct {
	svc OrderService
}

// NewOrderHandler creates new OrderHandler instance
func NewOrderHandler(svc OrderService) *OrderHandler {
	return &OrderHandler{svc: svc}
}

// PlaceOrder creates an order from a paid cart
// 201 — заказ создан;
// 400 — неверный формат запроса;
// 401 — пользователь не аутентифицирован;
// 500 — внутренняя ошибка сервера.
func (oh *OrderHandler) PlaceOrder() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := currentUser(w, r)
		if !ok {
			return
		}

		var req models.Checkout
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Message: "bad request", Code: models.KindValidation.String()})
			return
		}
		defer r.Body.Close()

		order, err := oh.svc.Checkout(r.Context(), user, req)
		if err != nil {
			writeError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, order)
	}
}

// ListUserOrders returns orders of the caller, newest first
// 200 — успешная обработка запроса;
// 204 — нет данных для ответа;
// 401 — пользователь не авторизован;
// 500 — внутренняя ошибка сервера.
func (oh *OrderHandler) ListUserOrders() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := currentUser(w, r)
		if !ok {
			return
		}

		orders, err := oh.svc.ListUserOrders(r.Context(), user)
		if err != nil {
			writeError(w, err)
			return
		}
		if len(orders) == 0 {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		writeJSON(w, http.StatusOK, orders)
	}
}

// GetOrder returns one order of the caller, or any order to an admin
func (oh *OrderHandler) GetOrder() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := currentUser(w, r)
		if !ok {
			return
		}

		order, err := oh.svc.Get(r.Context(), user, chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, order)
	}
}

// GetOrderByNumber finds an order by its printed number
func (oh *OrderHandler) GetOrderByNumber() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := currentUser(w, r)
		if !ok {
			return
		}

		order, err := oh.svc.GetByNumber(r.Context(), user, chi.URLParam(r, "number"))
		if err != nil {
			writeError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, order)
	}
}

// ListOrders returns all orders, filtered by the status query parameter when set
func (oh *OrderHandler) ListOrders() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := currentUser(w, r)
		if !ok {
			return
		}

		orders, err := oh.svc.ListOrders(r.Context(), user, r.URL.Query().Get("status"))
		if err != nil {
			writeError(w, err)
			return
		}
		if orders == nil {
			orders = []models.Order{}
		}

		writeJSON(w, http.StatusOK, orders)
	}
}

type statusRequest struct {
	Status string `json:"status"`
}

// UpdateOrderStatus moves an order through its lifecycle
// 200 — статус изменён;
// 400 — неизвестный статус;
// 403 — нет прав администратора;
// 404 — заказ не найден;
// 409 — переход недопустим или заказ изменён параллельно;
// 504 — истекло время ожидания.
func (oh *OrderHandler) UpdateOrderStatus() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := currentUser(w, r)
		if !ok {
			return
		}

		var req statusRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Status == "" {
			writeJSON(w, http.StatusBadRequest, errorResponse{Message: "bad request", Code: models.KindValidation.String()})
			return
		}
		defer r.Body.Close()

		order, err := oh.svc.Transition(r.Context(), user, chi.URLParam(r, "id"), req.Status)
		if err != nil {
			writeError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, order)
	}
}

// GetStats returns the admin dashboard counters, ?period=day|week|month narrows them
func (oh *OrderHandler) GetStats() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := currentUser(w, r)
		if !ok {
			return
		}

		stats, err := oh.svc.Stats(r.Context(), user, r.URL.Query().Get("period"))
		if err != nil {
			writeError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, stats)
	}
}
