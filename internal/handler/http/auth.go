package handler

import (
	"context"
	"errors"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/rookgm/tableorder/internal/auth"
	"github.com/rookgm/tableorder/internal/identity"
	"github.com/rookgm/tableorder/internal/middleware"
	"github.com/rookgm/tableorder/internal/models"
	"go.uber.org/zap"
	"net/http"
	"strings"
	"time"
)

const oauthStateCookie = "oauth_state"

type AuthService interface {
	Login(ctx context.Context, email, password string) (*models.Session, error)
	Signup(ctx context.Context, req models.SignUp) (*models.Session, error)
	Validate(ctx context.Context, token string) (*models.Session, error)
	CompleteProfile(ctx context.Context, token string, c models.ProfileCompletion) (*models.Profile, error)
	OAuthURL(state string) (string, error)
	OAuthCallback(ctx context.Context, code string) (*models.Session, error)
}

// AuthHandler serves /api/auth endpoints
type AuthHandler struct {
	svc       AuthService
	clientURL string
	secure    bool
	logger    *zap.Logger
}

// NewAuthHandler creates new AuthHandler instance.
// clientURL is the web client origin used for OAuth redirects,
// secure marks cookies Secure.
func NewAuthHandler(svc AuthService, clientURL string, secure bool, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{
		svc:       svc,
		clientURL: strings.TrimRight(clientURL, "/"),
		secure:    secure,
		logger:    logger.Named("auth_handler"),
	}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type userResponse struct {
	UID         string `json:"uid"`
	Email       string `json:"email"`
	DisplayName string `json:"displayName"`
}

type sessionResponse struct {
	User    userResponse `json:"user"`
	IsAdmin bool         `json:"isAdmin"`
}

type messageResponse struct {
	Message string `json:"message"`
}

func newSessionResponse(p *models.Profile) sessionResponse {
	return sessionResponse{
		User: userResponse{
			UID:         p.ID,
			Email:       p.Email,
			DisplayName: p.FullName,
		},
		IsAdmin: p.IsAdmin,
	}
}

func (ah *AuthHandler) setTokenCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.TokenCookie,
		Value:    token,
		Path:     "/",
		MaxAge:   int(auth.TokenTTL / time.Second),
		HttpOnly: true,
		Secure:   ah.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (ah *AuthHandler) clearCookie(w http.ResponseWriter, name string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   ah.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// Login signs a user in with email and password
// 200 — пользователь успешно аутентифицирован;
// 400 — неверный формат запроса;
// 401 — неверная пара логин/пароль;
// 500 — внутренняя ошибка сервера.
func (ah *AuthHandler) Login() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req loginRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, messageResponse{Message: "bad request"})
			return
		}
		defer r.Body.Close()

		session, err := ah.svc.Login(r.Context(), req.Email, req.Password)
		if err != nil {
			if models.KindOf(err) == models.KindUnauthorized {
				writeJSON(w, http.StatusUnauthorized, messageResponse{Message: "Invalid credentials"})
				return
			}
			ah.logger.Error("login failed", zap.Error(err))
			writeError(w, err)
			return
		}

		ah.setTokenCookie(w, session.Token)
		writeJSON(w, http.StatusOK, newSessionResponse(session.Profile))
	}
}

type signupErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Signup creates an account
// 201 — пользователь успешно зарегистрирован;
// 400 — регистрация отклонена, code поясняет причину.
func (ah *AuthHandler) Signup() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req models.SignUp
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, signupErrorResponse{Code: "invalid-argument", Message: "bad request"})
			return
		}
		defer r.Body.Close()

		session, err := ah.svc.Signup(r.Context(), req)
		if err != nil {
			ah.logger.Info("signup refused", zap.Error(err))
			writeJSON(w, http.StatusBadRequest, signupError(err))
			return
		}

		ah.setTokenCookie(w, session.Token)
		writeJSON(w, http.StatusCreated, newSessionResponse(session.Profile))
	}
}

func signupError(err error) signupErrorResponse {
	var perr *identity.ProviderError
	if errors.As(err, &perr) {
		return signupErrorResponse{Code: strings.ToLower(strings.ReplaceAll(perr.Code, "_", "-")), Message: err.Error()}
	}

	switch models.KindOf(err) {
	case models.KindValidation:
		return signupErrorResponse{Code: "invalid-argument", Message: err.Error()}
	case models.KindConflict:
		return signupErrorResponse{Code: "email-already-exists", Message: "The email address is already in use by another account."}
	default:
		return signupErrorResponse{Code: "unknown", Message: "Registration failed"}
	}
}

// Validate resolves the session cookie to the signed in user
func (ah *AuthHandler) Validate() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(middleware.TokenCookie)
		if err != nil {
			writeJSON(w, http.StatusUnauthorized, messageResponse{Message: "Invalid token"})
			return
		}

		session, err := ah.svc.Validate(r.Context(), cookie.Value)
		if err != nil {
			if models.KindOf(err) == models.KindUnauthorized {
				writeJSON(w, http.StatusUnauthorized, messageResponse{Message: "Invalid token"})
				return
			}
			writeError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, newSessionResponse(session.Profile))
	}
}

// Logout clears the session cookie
func (ah *AuthHandler) Logout() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ah.clearCookie(w, middleware.TokenCookie)
		writeJSON(w, http.StatusOK, messageResponse{Message: "Logged out successfully"})
	}
}

type completeProfileResponse struct {
	Success bool `json:"success"`
}

// CompleteProfile stores the profile fields missing after a social sign in
func (ah *AuthHandler) CompleteProfile() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(middleware.TokenCookie)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, messageResponse{Message: "Profile update failed"})
			return
		}

		var req models.ProfileCompletion
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, messageResponse{Message: "Profile update failed"})
			return
		}
		defer r.Body.Close()

		if _, err := ah.svc.CompleteProfile(r.Context(), cookie.Value, req); err != nil {
			ah.logger.Info("profile update refused", zap.Error(err))
			writeJSON(w, http.StatusBadRequest, messageResponse{Message: "Profile update failed"})
			return
		}

		writeJSON(w, http.StatusOK, completeProfileResponse{Success: true})
	}
}

// GoogleRedirect sends the browser to the consent screen
func (ah *AuthHandler) GoogleRedirect() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		state := uuid.NewString()

		url, err := ah.svc.OAuthURL(state)
		if err != nil {
			writeError(w, err)
			return
		}

		http.SetCookie(w, &http.Cookie{
			Name:     oauthStateCookie,
			Value:    state,
			Path:     "/",
			MaxAge:   int((10 * time.Minute) / time.Second),
			HttpOnly: true,
			Secure:   ah.secure,
			SameSite: http.SameSiteLaxMode,
		})
		http.Redirect(w, r, url, http.StatusFound)
	}
}

// GoogleCallback finishes a social sign in and redirects back to the web client
func (ah *AuthHandler) GoogleCallback() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		fail := func(reason string, err error) {
			ah.logger.Warn("google sign in failed", zap.String("reason", reason), zap.Error(err))
			http.Redirect(w, r, ah.clientURL+"/login?error=google_auth_failed", http.StatusFound)
		}

		state, err := r.Cookie(oauthStateCookie)
		if err != nil || state.Value == "" || state.Value != r.URL.Query().Get("state") {
			fail("state mismatch", err)
			return
		}

		code := r.URL.Query().Get("code")
		if code == "" {
			fail("missing code", nil)
			return
		}

		session, err := ah.svc.OAuthCallback(r.Context(), code)
		if err != nil {
			fail("exchange", err)
			return
		}

		ah.clearCookie(w, oauthStateCookie)
		ah.setTokenCookie(w, session.Token)

		target := "/complete-profile"
		if session.Profile.ProfileComplete {
			target = "/home"
		}
		http.Redirect(w, r, ah.clientURL+target, http.StatusFound)
	}
}
