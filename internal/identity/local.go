package identity

import (
	"context"
	"errors"
	"github.com/google/uuid"
	"github.com/rookgm/tableorder/internal/models"
	"github.com/rookgm/tableorder/internal/repository"
	"golang.org/x/crypto/bcrypt"
	"strings"
)

// CredentialStore keeps password hashes
type CredentialStore interface {
	CreateCredential(ctx context.Context, c repository.Credential) error
	GetCredentialByEmail(ctx context.Context, email string) (*repository.Credential, error)
}

// Local authenticates against password hashes in the application database
type Local struct {
	store CredentialStore
	cost  int
}

// NewLocal creates new Local instance
func NewLocal(store CredentialStore) *Local {
	return &Local{store: store, cost: bcrypt.DefaultCost}
}

// SignIn checks email and password
func (l *Local) SignIn(ctx context.Context, email, password string) (*models.Identity, error) {
	c, err := l.store.GetCredentialByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, models.ErrDataNotFound) {
			return nil, models.ErrInvalidCredentials
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(c.PasswordHash), []byte(password)); err != nil {
		return nil, models.ErrInvalidCredentials
	}

	return &models.Identity{UID: c.UID, Email: c.Email, DisplayName: c.DisplayName}, nil
}

// SignUp creates an account
func (l *Local) SignUp(ctx context.Context, email, password, displayName string) (*models.Identity, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), l.cost)
	if err != nil {
		return nil, err
	}

	c := repository.Credential{
		UID:          uuid.NewString(),
		Email:        strings.ToLower(strings.TrimSpace(email)),
		PasswordHash: string(hash),
		DisplayName:  displayName,
	}
	if err := l.store.CreateCredential(ctx, c); err != nil {
		if errors.Is(err, models.ErrConflictData) {
			return nil, &ProviderError{Code: "EMAIL_EXISTS", err: models.ErrConflictData}
		}
		return nil, err
	}

	return &models.Identity{UID: c.UID, Email: c.Email, DisplayName: c.DisplayName}, nil
}
