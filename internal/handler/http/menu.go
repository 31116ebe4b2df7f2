package handler

import (
	"context"
	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
	"github.com/rookgm/tableorder/internal/middleware"
	"github.com/rookgm/tableorder/internal/models"
	"net/http"
)

type MenuService interface {
	List(ctx context.Context, user models.CurrentUser, category string) ([]models.FoodItem, error)
	Get(ctx context.Context, user models.CurrentUser, id string) (*models.FoodItem, error)
	Create(ctx context.Context, user models.CurrentUser, item *models.FoodItem) (*models.FoodItem, error)
	Update(ctx context.Context, user models.CurrentUser, item *models.FoodItem) (*models.FoodItem, error)
	Delete(ctx context.Context, user models.CurrentUser, id string) error
}

// MenuHandler represents HTTP handler for menu requests
type MenuHandler struct {
	svc MenuService
}

// NewMenuHandler creates new MenuHandler instance
func NewMenuHandler(svc MenuService) *MenuHandler {
	return &MenuHandler{svc: svc}
}

// ListMenu returns the menu, filtered by the category query parameter when set.
// Anonymous callers are served too.
func (mh *MenuHandler) ListMenu() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, _ := middleware.CurrentUser(r.Context())

		items, err := mh.svc.List(r.Context(), user, r.URL.Query().Get("category"))
		if err != nil {
			writeError(w, err)
			return
		}
		if items == nil {
			items = []models.FoodItem{}
		}

		writeJSON(w, http.StatusOK, items)
	}
}

// GetMenuItem returns one food item
func (mh *MenuHandler) GetMenuItem() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, _ := middleware.CurrentUser(r.Context())

		item, err := mh.svc.Get(r.Context(), user, chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, item)
	}
}

// CreateMenuItem adds a food item
func (mh *MenuHandler) CreateMenuItem() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := currentUser(w, r)
		if !ok {
			return
		}

		var item models.FoodItem
		if err := json.NewDecoder(r.Body).Decode(&item); err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Message: "bad request", Code: models.KindValidation.String()})
			return
		}
		defer r.Body.Close()

		created, err := mh.svc.Create(r.Context(), user, &item)
		if err != nil {
			writeError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, created)
	}
}

// UpdateMenuItem replaces a food item
func (mh *MenuHandler) UpdateMenuItem() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := currentUser(w, r)
		if !ok {
			return
		}

		var item models.FoodItem
		if err := json.NewDecoder(r.Body).Decode(&item); err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Message: "bad request", Code: models.KindValidation.String()})
			return
		}
		defer r.Body.Close()
		item.ID = chi.URLParam(r, "id")

		updated, err := mh.svc.Update(r.Context(), user, &item)
		if err != nil {
			writeError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, updated)
	}
}

// DeleteMenuItem removes a food item
func (mh *MenuHandler) DeleteMenuItem() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := currentUser(w, r)
		if !ok {
			return
		}

		if err := mh.svc.Delete(r.Context(), user, chi.URLParam(r, "id")); err != nil {
			writeError(w, err)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}
