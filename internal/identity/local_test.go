package identity

import (
	"context"
	"errors"
	"github.com/rookgm/tableorder/internal/models"
	"github.com/rookgm/tableorder/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"testing"
)

type memCredentials map[string]repository.Credential

func (m memCredentials) CreateCredential(_ context.Context, c repository.Credential) error {
	if _, ok := m[c.Email]; ok {
		return models.ErrConflictData
	}
	m[c.Email] = c
	return nil
}

func (m memCredentials) GetCredentialByEmail(_ context.Context, email string) (*repository.Credential, error) {
	c, ok := m[email]
	if !ok {
		return nil, models.ErrDataNotFound
	}
	return &c, nil
}

func TestLocal(t *testing.T) {
	ctx := context.Background()
	l := NewLocal(memCredentials{})
	l.cost = bcrypt.MinCost

	created, err := l.SignUp(ctx, " Cook@Example.com", "s3cret!", "Cook")
	require.NoError(t, err)
	assert.NotEmpty(t, created.UID)
	assert.Equal(t, "cook@example.com", created.Email)

	_, err = l.SignUp(ctx, "cook@example.com", "other", "Cook")
	assert.True(t, errors.Is(err, models.ErrConflictData))

	got, err := l.SignIn(ctx, "cook@example.com", "s3cret!")
	require.NoError(t, err)
	assert.Equal(t, created, got)

	_, err = l.SignIn(ctx, "cook@example.com", "wrong")
	assert.True(t, errors.Is(err, models.ErrInvalidCredentials))

	_, err = l.SignIn(ctx, "nobody@example.com", "s3cret!")
	assert.True(t, errors.Is(err, models.ErrInvalidCredentials))
}
