// Package identity talks to the identity providers accounts live in.
package identity

import (
	"context"
	"fmt"
	"github.com/goccy/go-json"
	"github.com/rookgm/tableorder/internal/models"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"
	"net/http"
)

const googleUserInfoURL = "https://www.googleapis.com/oauth2/v2/userinfo"

// Google signs users in with their Google account
type Google struct {
	config      *oauth2.Config
	userInfoURL string
}

// NewGoogle creates new Google instance
func NewGoogle(clientID, clientSecret, redirectURL string) *Google {
	return &Google{
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Scopes:       []string{"email", "profile"},
			Endpoint:     endpoints.Google,
		},
		userInfoURL: googleUserInfoURL,
	}
}

// AuthCodeURL returns the consent screen address
func (g *Google) AuthCodeURL(state string) string {
	return g.config.AuthCodeURL(state)
}

type googleUser struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

// Exchange trades the authorization code for the signed in account
func (g *Google) Exchange(ctx context.Context, code string) (*models.Identity, error) {
	if code == "" {
		return nil, fmt.Errorf("%w: missing authorization code", models.ErrUnauthorized)
	}

	tok, err := g.config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("%w: exchange code: %v", models.ErrUnauthorized, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.userInfoURL, nil)
	if err != nil {
		return nil, err
	}

	resp, err := g.config.Client(ctx, tok).Do(req)
	if resp != nil {
		defer resp.Body.Close()
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrUnavailable, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: user info returned %d", models.ErrUnavailable, resp.StatusCode)
	}

	u := googleUser{}
	if err := json.NewDecoder(resp.Body).Decode(&u); err != nil {
		return nil, err
	}

	return &models.Identity{
		UID:         "google:" + u.ID,
		Email:       u.Email,
		DisplayName: u.Name,
	}, nil
}
