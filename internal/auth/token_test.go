package auth

import (
	"errors"
	"github.com/golang-jwt/jwt/v4"
	"github.com/rookgm/tableorder/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"testing"
	"time"
)

func TestAuthToken_RoundTrip(t *testing.T) {
	a := NewAuthToken([]byte("secret"))

	token, err := a.CreateToken(&models.Profile{ID: "uid-1", Email: "chef@example.com", IsAdmin: true})
	require.NoError(t, err)

	payload, err := a.VerifyToken(token)
	require.NoError(t, err)
	assert.Equal(t, &models.TokenPayload{UserID: "uid-1", Email: "chef@example.com", IsAdmin: true}, payload)
}

func TestAuthToken_Rejects(t *testing.T) {
	a := NewAuthToken([]byte("secret"))
	profile := &models.Profile{ID: "uid-1"}

	expired := NewAuthToken([]byte("secret"))
	expired.now = func() time.Time { return time.Now().Add(-2 * TokenTTL) }
	expiredToken, err := expired.CreateToken(profile)
	require.NoError(t, err)

	otherKey, err := NewAuthToken([]byte("other")).CreateToken(profile)
	require.NoError(t, err)

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{Subject: "uid-1"}).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	noSubject, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{}).SignedString([]byte("secret"))
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
	}{
		{name: "garbage", token: "not-a-token"},
		{name: "expired", token: expiredToken},
		{name: "wrong_key", token: otherKey},
		{name: "alg_none", token: none},
		{name: "no_subject", token: noSubject},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := a.VerifyToken(tt.token)
			require.Error(t, err)
			assert.True(t, errors.Is(err, models.ErrUnauthorized))
		})
	}
}
