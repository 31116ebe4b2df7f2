package repository

import (
	"context"
	"errors"
	"github.com/jackc/pgx/v5"
	"github.com/rookgm/tableorder/internal/models"
	"github.com/rookgm/tableorder/internal/repository/postgres"
)

const (
	insertCredentialQuery = `
						INSERT INTO credentials (uid, email, password_hash, display_name)
						VALUES ($1, $2, $3, $4)
`
	selectCredentialByEmailQuery = `
						SELECT uid, email, password_hash, display_name FROM credentials
						WHERE lower(email) = lower($1)
`
)

// Credential is a locally stored login
type Credential struct {
	UID          string
	Email        string
	PasswordHash string
	DisplayName  string
}

// CredentialRepository stores password hashes for the local identity backend
type CredentialRepository struct {
	db *postgres.DB
}

// NewCredentialRepository creates new CredentialRepository instance
func NewCredentialRepository(db *postgres.DB) *CredentialRepository {
	return &CredentialRepository{db: db}
}

// CreateCredential inserts a login. It returns models.ErrConflictData when the email is taken.
func (cr *CredentialRepository) CreateCredential(ctx context.Context, c Credential) error {
	_, err := cr.db.Exec(ctx, insertCredentialQuery, c.UID, c.Email, c.PasswordHash, c.DisplayName)
	if err != nil {
		if errCode := cr.db.ErrorCode(err); errCode == pgErrUniqueViolationCode {
			return models.ErrConflictData
		}
		return err
	}

	return nil
}

// GetCredentialByEmail returns the login registered for email
func (cr *CredentialRepository) GetCredentialByEmail(ctx context.Context, email string) (*Credential, error) {
	c := Credential{}
	err := cr.db.QueryRow(ctx, selectCredentialByEmailQuery, email).Scan(&c.UID, &c.Email, &c.PasswordHash, &c.DisplayName)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrDataNotFound
		}
		return nil, err
	}

	return &c, nil
}
