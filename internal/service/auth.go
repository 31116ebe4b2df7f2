package service

import (
	"context"
	"errors"
	"fmt"
	"github.com/rookgm/tableorder/internal/models"
	"github.com/rookgm/tableorder/internal/validation"
	"go.uber.org/zap"
)

// CredentialProvider checks and creates email/password accounts
type CredentialProvider interface {
	SignIn(ctx context.Context, email, password string) (*models.Identity, error)
	SignUp(ctx context.Context, email, password, displayName string) (*models.Identity, error)
}

// OAuthProvider signs users in through a third party consent screen
type OAuthProvider interface {
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (*models.Identity, error)
}

// ProfileRepository is interface for interacting with profile data
type ProfileRepository interface {
	CreateProfile(ctx context.Context, p *models.Profile) (*models.Profile, error)
	GetProfileByID(ctx context.Context, id string) (*models.Profile, error)
	CompleteProfile(ctx context.Context, id string, c models.ProfileCompletion) (*models.Profile, error)
}

// AuthService implements the /api/auth use cases
type AuthService struct {
	creds    CredentialProvider
	oauth    OAuthProvider
	profiles ProfileRepository
	token    TokenService
	logger   *zap.Logger
}

// NewAuthService creates new AuthService instance. oauth may be nil when social sign in is off.
func NewAuthService(creds CredentialProvider, oauth OAuthProvider, profiles ProfileRepository, token TokenService, logger *zap.Logger) *AuthService {
	return &AuthService{
		creds:    creds,
		oauth:    oauth,
		profiles: profiles,
		token:    token,
		logger:   logger.Named("auth"),
	}
}

// Login signs a user in with email and password
func (as *AuthService) Login(ctx context.Context, email, password string) (*models.Session, error) {
	if email == "" || password == "" {
		return nil, models.ErrInvalidCredentials
	}

	ident, err := as.creds.SignIn(ctx, email, password)
	if err != nil {
		return nil, err
	}

	profile, err := as.ensureProfile(ctx, ident)
	if err != nil {
		return nil, err
	}

	return as.session(profile)
}

// Signup creates an account with a complete profile and signs it in
func (as *AuthService) Signup(ctx context.Context, req models.SignUp) (*models.Session, error) {
	if err := validation.Struct(&req); err != nil {
		return nil, err
	}

	ident, err := as.creds.SignUp(ctx, req.Email, req.Password, req.FullName)
	if err != nil {
		return nil, err
	}

	profile, err := as.profiles.CreateProfile(ctx, &models.Profile{
		ID:              ident.UID,
		Email:           ident.Email,
		FullName:        req.FullName,
		MobileNumber:    req.MobileNumber,
		DateOfBirth:     req.DateOfBirth,
		ProfileComplete: true,
	})
	if err != nil {
		return nil, fmt.Errorf("create profile: %w", err)
	}
	as.logger.Info("account created", zap.String("uid", profile.ID))

	return as.session(profile)
}

// Validate resolves a session token to the current profile
func (as *AuthService) Validate(ctx context.Context, token string) (*models.Session, error) {
	payload, err := as.token.VerifyToken(token)
	if err != nil {
		return nil, err
	}

	profile, err := as.profiles.GetProfileByID(ctx, payload.UserID)
	if err != nil {
		if errors.Is(err, models.ErrDataNotFound) {
			return nil, models.ErrUnauthorized
		}
		return nil, err
	}

	return &models.Session{Token: token, Profile: profile}, nil
}

// CompleteProfile stores the fields an OAuth sign in could not provide
func (as *AuthService) CompleteProfile(ctx context.Context, token string, c models.ProfileCompletion) (*models.Profile, error) {
	payload, err := as.token.VerifyToken(token)
	if err != nil {
		return nil, err
	}
	if err := validation.Struct(&c); err != nil {
		return nil, err
	}

	return as.profiles.CompleteProfile(ctx, payload.UserID, c)
}

// OAuthURL returns the consent screen address
func (as *AuthService) OAuthURL(state string) (string, error) {
	if as.oauth == nil {
		return "", models.ErrUnavailable
	}
	return as.oauth.AuthCodeURL(state), nil
}

// OAuthCallback finishes a social sign in, creating the profile on first visit
func (as *AuthService) OAuthCallback(ctx context.Context, code string) (*models.Session, error) {
	if as.oauth == nil {
		return nil, models.ErrUnavailable
	}

	ident, err := as.oauth.Exchange(ctx, code)
	if err != nil {
		return nil, err
	}

	profile, err := as.ensureProfile(ctx, ident)
	if err != nil {
		return nil, err
	}

	return as.session(profile)
}

func (as *AuthService) ensureProfile(ctx context.Context, ident *models.Identity) (*models.Profile, error) {
	profile, err := as.profiles.GetProfileByID(ctx, ident.UID)
	if err == nil {
		return profile, nil
	}
	if !errors.Is(err, models.ErrDataNotFound) {
		return nil, err
	}

	profile, err = as.profiles.CreateProfile(ctx, &models.Profile{
		ID:       ident.UID,
		Email:    ident.Email,
		FullName: ident.DisplayName,
	})
	if errors.Is(err, models.ErrConflictData) {
		// created concurrently
		return as.profiles.GetProfileByID(ctx, ident.UID)
	}
	if err != nil {
		return nil, err
	}
	as.logger.Info("profile created", zap.String("uid", profile.ID))

	return profile, nil
}

func (as *AuthService) session(profile *models.Profile) (*models.Session, error) {
	token, err := as.token.CreateToken(profile)
	if err != nil {
		return nil, err
	}
	return &models.Session{Token: token, Profile: profile}, nil
}
