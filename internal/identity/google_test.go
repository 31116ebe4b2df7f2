package identity

import (
	"context"
	"errors"
	"github.com/rookgm/tableorder/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
)

func TestGoogle_AuthCodeURL(t *testing.T) {
	g := NewGoogle("client-1", "secret", "http://localhost:5000/api/auth/google/callback")

	u, err := url.Parse(g.AuthCodeURL("state-1"))
	require.NoError(t, err)
	assert.Equal(t, "accounts.google.com", u.Host)
	q := u.Query()
	assert.Equal(t, "client-1", q.Get("client_id"))
	assert.Equal(t, "code", q.Get("response_type"))
	assert.Equal(t, "email profile", q.Get("scope"))
	assert.Equal(t, "state-1", q.Get("state"))
}

func TestGoogle_Exchange(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		if r.Form.Get("code") != "good" {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"invalid_grant"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"at-1","token_type":"Bearer","expires_in":3600}`))
	})
	mux.HandleFunc("/userinfo", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer at-1", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{"id":"1234","email":"g@example.com","name":"Gita"}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	g := NewGoogle("client-1", "secret", "http://localhost/cb")
	g.config.Endpoint = oauth2.Endpoint{AuthURL: srv.URL + "/auth", TokenURL: srv.URL + "/token"}
	g.userInfoURL = srv.URL + "/userinfo"

	got, err := g.Exchange(context.Background(), "good")
	require.NoError(t, err)
	assert.Equal(t, &models.Identity{UID: "google:1234", Email: "g@example.com", DisplayName: "Gita"}, got)

	_, err = g.Exchange(context.Background(), "bad")
	assert.True(t, errors.Is(err, models.ErrUnauthorized))

	_, err = g.Exchange(context.Background(), "")
	assert.True(t, errors.Is(err, models.ErrUnauthorized))
}
