package identity

import (
	"bytes"
	"context"
	"fmt"
	"github.com/goccy/go-json"
	"github.com/rookgm/tableorder/internal/models"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const defaultToolkitURL = "https://identitytoolkit.googleapis.com/v1"

// Toolkit is a client of the Identity Toolkit REST API
type Toolkit struct {
	client  *http.Client
	baseURL string
	apiKey  string
}

// NewToolkit creates new Toolkit instance. An empty baseURL selects the public endpoint.
func NewToolkit(baseURL, apiKey string) *Toolkit {
	if baseURL == "" {
		baseURL = defaultToolkitURL
	}
	return &Toolkit{
		client: &http.Client{
			Timeout: 5 * time.Second,
		},
		baseURL: baseURL,
		apiKey:  apiKey,
	}
}

type credentialsRequest struct {
	Email             string `json:"email"`
	Password          string `json:"password"`
	DisplayName       string `json:"displayName,omitempty"`
	ReturnSecureToken bool   `json:"returnSecureToken"`
}

type accountResponse struct {
	LocalID     string `json:"localId"`
	Email       string `json:"email"`
	DisplayName string `json:"displayName"`
}

type errorResponse struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// SignIn checks email and password
func (t *Toolkit) SignIn(ctx context.Context, email, password string) (*models.Identity, error) {
	return t.call(ctx, "accounts:signInWithPassword", credentialsRequest{
		Email:             email,
		Password:          password,
		ReturnSecureToken: true,
	})
}

// SignUp creates an account
func (t *Toolkit) SignUp(ctx context.Context, email, password, displayName string) (*models.Identity, error) {
	ident, err := t.call(ctx, "accounts:signUp", credentialsRequest{
		Email:             email,
		Password:          password,
		DisplayName:       displayName,
		ReturnSecureToken: true,
	})
	if err != nil {
		return nil, err
	}
	if ident.DisplayName == "" {
		ident.DisplayName = displayName
	}
	return ident, nil
}

// 200 — успешный вызов;
// 400 — ошибка в данных, код ошибки в теле;
// 5xx — сервис недоступен.
func (t *Toolkit) call(ctx context.Context, method string, body any) (*models.Identity, error) {
	endpoint, err := url.JoinPath(t.baseURL, method)
	if err != nil {
		return nil, err
	}
	endpoint += "?key=" + url.QueryEscape(t.apiKey)

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if resp != nil {
		defer resp.Body.Close()
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrUnavailable, err)
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		acc := accountResponse{}
		if err := json.NewDecoder(resp.Body).Decode(&acc); err != nil {
			return nil, err
		}
		return &models.Identity{UID: acc.LocalID, Email: acc.Email, DisplayName: acc.DisplayName}, nil
	case resp.StatusCode == http.StatusBadRequest:
		errResp := errorResponse{}
		if err := json.NewDecoder(resp.Body).Decode(&errResp); err != nil {
			return nil, err
		}
		return nil, toolkitError(errResp.Error.Message)
	case resp.StatusCode >= http.StatusInternalServerError:
		return nil, fmt.Errorf("%w: identity provider returned %d", models.ErrUnavailable, resp.StatusCode)
	default:
		return nil, fmt.Errorf("identity provider returned %d", resp.StatusCode)
	}
}

// ProviderError is a refusal reported by the identity provider
type ProviderError struct {
	Code string
	err  error
}

func (e *ProviderError) Error() string { return e.Code }

func (e *ProviderError) Unwrap() error { return e.err }

func toolkitError(message string) error {
	// messages look like "WEAK_PASSWORD : Password should be at least 6 characters"
	code, _, _ := strings.Cut(message, " ")
	switch code {
	case "EMAIL_NOT_FOUND", "INVALID_PASSWORD", "INVALID_LOGIN_CREDENTIALS", "USER_DISABLED":
		return &ProviderError{Code: code, err: models.ErrInvalidCredentials}
	case "EMAIL_EXISTS":
		return &ProviderError{Code: code, err: models.ErrConflictData}
	case "TOO_MANY_ATTEMPTS_TRY_LATER":
		return &ProviderError{Code: code, err: models.ErrUnavailable}
	default:
		return &ProviderError{Code: code, err: models.ErrValidation}
	}
}
