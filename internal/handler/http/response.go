package handler

//go:generate mockgen -destination=mocks/mock_services.go -package=mocks . AuthService,MenuService,NotificationService,OrderService

import (
	"context"
	"errors"
	"github.com/goccy/go-json"
	"github.com/rookgm/tableorder/internal/middleware"
	"github.com/rookgm/tableorder/internal/models"
	"github.com/rookgm/tableorder/internal/validation"
	"net/http"
)

type errorResponse struct {
	Message string                  `json:"message"`
	Code    string                  `json:"code,omitempty"`
	Fields  []validation.FieldError `json:"fields,omitempty"`
	From    models.OrderStatus      `json:"from,omitempty"`
	To      models.OrderStatus      `json:"to,omitempty"`
}

// writeJSON writes v with status code
func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		return
	}
}

// statusOf maps an error to the HTTP status answered for it
func statusOf(err error) int {
	if errors.Is(err, context.DeadlineExceeded) {
		return http.StatusGatewayTimeout
	}

	switch models.KindOf(err) {
	case models.KindValidation:
		return http.StatusBadRequest
	case models.KindUnauthorized:
		return http.StatusUnauthorized
	case models.KindForbidden:
		return http.StatusForbidden
	case models.KindNotFound:
		return http.StatusNotFound
	case models.KindConflict:
		return http.StatusConflict
	case models.KindUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// writeError converts err to a JSON error response
func writeError(w http.ResponseWriter, err error) {
	code := statusOf(err)
	resp := errorResponse{
		Message: err.Error(),
		Code:    models.KindOf(err).String(),
	}

	var verr *validation.Error
	if errors.As(err, &verr) {
		resp.Message = "validation failed"
		resp.Fields = verr.Fields
	}

	var terr *models.InvalidTransitionError
	if errors.As(err, &terr) {
		resp.From = terr.From
		resp.To = terr.To
	}

	switch code {
	case http.StatusInternalServerError:
		resp.Message = "internal error"
	case http.StatusGatewayTimeout:
		resp.Message = "request timed out"
		resp.Code = "timeout"
	}

	writeJSON(w, code, resp)
}

// currentUser extracts the caller set by the auth middleware
func currentUser(w http.ResponseWriter, r *http.Request) (models.CurrentUser, bool) {
	user, ok := middleware.CurrentUser(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Message: "unauthorized", Code: models.KindUnauthorized.String()})
		return models.CurrentUser{}, false
	}
	return user, true
}
