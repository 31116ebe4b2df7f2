package middleware

import (
	"context"
	"github.com/rookgm/tableorder/internal/models"
	"github.com/rookgm/tableorder/internal/service"
	"net/http"
)

// TokenCookie is the name of the session cookie
const TokenCookie = "token"

type contextKey int

const (
	contextKeyAuthPayload contextKey = iota
)

// Auth gets the token from the cookie and passes its payload to the context
func Auth(ts service.TokenService) func(handler http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cookie, err := r.Cookie(TokenCookie)
			if err != nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			payload, err := ts.VerifyToken(cookie.Value)
			if err != nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithPayload(r.Context(), payload)))
		})
	}
}

// OptionalAuth passes the token payload to the context when a valid cookie is present
// and lets anonymous callers through
func OptionalAuth(ts service.TokenService) func(handler http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if cookie, err := r.Cookie(TokenCookie); err == nil {
				if payload, err := ts.VerifyToken(cookie.Value); err == nil {
					r = r.WithContext(WithPayload(r.Context(), payload))
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireAdmin refuses callers without admin rights
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		payload, ok := Payload(r.Context())
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		if !payload.IsAdmin {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// WithPayload returns ctx carrying the token payload
func WithPayload(ctx context.Context, payload *models.TokenPayload) context.Context {
	return context.WithValue(ctx, contextKeyAuthPayload, payload)
}

// Payload extracts the token payload from ctx
func Payload(ctx context.Context) (*models.TokenPayload, bool) {
	payload, ok := ctx.Value(contextKeyAuthPayload).(*models.TokenPayload)
	return payload, ok && payload != nil
}

// CurrentUser returns the caller stored in ctx
func CurrentUser(ctx context.Context) (models.CurrentUser, bool) {
	payload, ok := Payload(ctx)
	if !ok {
		return models.CurrentUser{}, false
	}
	return payload.User(), true
}
