package repository

import (
	"context"
	"errors"
	"github.com/jackc/pgx/v5"
	"github.com/rookgm/tableorder/internal/models"
	"github.com/rookgm/tableorder/internal/repository/postgres"
)

const profileColumns = `id, email, full_name, mobile_number, date_of_birth, profile_complete, is_admin, created_at`

const (
	insertProfileQuery = `
						INSERT INTO profiles (id, email, full_name, mobile_number, date_of_birth, profile_complete)
						VALUES ($1, $2, $3, $4, $5, $6)
						ON CONFLICT (id) DO NOTHING
						RETURNING ` + profileColumns

	selectProfileByIDQuery = `
						SELECT ` + profileColumns + ` FROM profiles
						WHERE id = $1
`
	updateProfileCompletionQuery = `
						UPDATE profiles
						SET mobile_number = $2, date_of_birth = $3, profile_complete = TRUE
						WHERE id = $1
						RETURNING ` + profileColumns

	updateProfileAdminByEmailQuery = `
						UPDATE profiles
						SET is_admin = $2
						WHERE lower(email) = lower($1)
						RETURNING ` + profileColumns
)

// ProfileRepository stores application profiles of identity provider accounts
type ProfileRepository struct {
	db *postgres.DB
}

// NewProfileRepository creates new ProfileRepository instance
func NewProfileRepository(db *postgres.DB) *ProfileRepository {
	return &ProfileRepository{db: db}
}

// CreateProfile inserts a profile. It returns models.ErrConflictData when the id or email is taken.
func (pr *ProfileRepository) CreateProfile(ctx context.Context, p *models.Profile) (*models.Profile, error) {
	created, err := scanProfile(pr.db.QueryRow(ctx, insertProfileQuery,
		p.ID, p.Email, p.FullName, p.MobileNumber, p.DateOfBirth, p.ProfileComplete))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrConflictData
		}
		if errCode := pr.db.ErrorCode(err); errCode == pgErrUniqueViolationCode {
			return nil, models.ErrConflictData
		}
		return nil, err
	}

	return created, nil
}

// GetProfileByID returns profile by identity uid
func (pr *ProfileRepository) GetProfileByID(ctx context.Context, id string) (*models.Profile, error) {
	p, err := scanProfile(pr.db.QueryRow(ctx, selectProfileByIDQuery, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrDataNotFound
		}
		return nil, err
	}

	return p, nil
}

// CompleteProfile stores the missing profile fields
func (pr *ProfileRepository) CompleteProfile(ctx context.Context, id string, c models.ProfileCompletion) (*models.Profile, error) {
	p, err := scanProfile(pr.db.QueryRow(ctx, updateProfileCompletionQuery, id, c.MobileNumber, c.DateOfBirth))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrDataNotFound
		}
		return nil, err
	}

	return p, nil
}

// SetAdmin grants or revokes admin rights by email
func (pr *ProfileRepository) SetAdmin(ctx context.Context, email string, isAdmin bool) (*models.Profile, error) {
	p, err := scanProfile(pr.db.QueryRow(ctx, updateProfileAdminByEmailQuery, email, isAdmin))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrDataNotFound
		}
		return nil, err
	}

	return p, nil
}

func scanProfile(row pgx.Row) (*models.Profile, error) {
	p := models.Profile{}
	err := row.Scan(&p.ID, &p.Email, &p.FullName, &p.MobileNumber, &p.DateOfBirth, &p.ProfileComplete, &p.IsAdmin, &p.CreatedAt)
	if err != nil {
		return nil, err
	}

	return &p, nil
}
