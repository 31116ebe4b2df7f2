package auth

import (
	"errors"
	"fmt"
	"github.com/golang-jwt/jwt/v4"
	"github.com/rookgm/tableorder/internal/models"
	"time"
)

// TokenTTL matches the lifetime of the session cookie
const TokenTTL = time.Hour

type claims struct {
	jwt.RegisteredClaims
	Email   string `json:"email"`
	IsAdmin bool   `json:"admin"`
}

// AuthToken issues and verifies HS256 session tokens
type AuthToken struct {
	key []byte
	now func() time.Time
}

// NewAuthToken creates new AuthToken instance
func NewAuthToken(key []byte) *AuthToken {
	return &AuthToken{key: key, now: time.Now}
}

// CreateToken signs a token for profile
func (a *AuthToken) CreateToken(profile *models.Profile) (string, error) {
	now := a.now()
	c := claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   profile.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(TokenTTL)),
		},
		Email:   profile.Email,
		IsAdmin: profile.IsAdmin,
	}

	return jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(a.key)
}

// VerifyToken checks signature and expiry and returns the payload
func (a *AuthToken) VerifyToken(tokenString string) (*models.TokenPayload, error) {
	c := claims{}
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	_, err := parser.ParseWithClaims(tokenString, &c, func(t *jwt.Token) (any, error) {
		return a.key, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrUnauthorized, err)
	}
	if c.Subject == "" {
		return nil, fmt.Errorf("%w: %v", models.ErrUnauthorized, errors.New("token has no subject"))
	}

	return &models.TokenPayload{
		UserID:  c.Subject,
		Email:   c.Email,
		IsAdmin: c.IsAdmin,
	}, nil
}
