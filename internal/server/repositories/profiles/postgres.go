// Package profiles provides the PostgreSQL repository for application
// profiles (display identity, not auth credentials).
package profiles

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/soundcircle/internal/common"
	"github.com/dmitrijs2005/soundcircle/internal/dbx"
	"github.com/dmitrijs2005/soundcircle/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, profile *models.Profile) (*models.Profile, error) {

	query :=
		`INSERT INTO profiles (id, username, display_name, role)
		 VALUES ($1, $2, $3, $4)
		 RETURNING created_at, updated_at
		 `

	role := profile.Role
	if role == "" {
		role = models.RoleMember
	}

	err := r.db.QueryRowContext(ctx, query,
		profile.ID, profile.Username, profile.DisplayName, role).
		Scan(&profile.CreatedAt, &profile.UpdatedAt)

	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	profile.Role = role
	return profile, nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.Profile, error) {
	query :=
		`SELECT id, username, display_name, avatar_key, role, created_at, updated_at FROM profiles
		 WHERE id = $1
		 `

	p := &models.Profile{}
	err := r.db.QueryRowContext(ctx, query, id).
		Scan(&p.ID, &p.Username, &p.DisplayName, &p.AvatarKey, &p.Role, &p.CreatedAt, &p.UpdatedAt)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return p, nil
}

func (r *PostgresRepository) Update(ctx context.Context, profile *models.Profile) (*models.Profile, error) {
	query :=
		`UPDATE profiles
		 SET display_name = $2, avatar_key = $3, updated_at = now()
		 WHERE id = $1
		 RETURNING username, role, created_at, updated_at
		 `

	err := r.db.QueryRowContext(ctx, query, profile.ID, profile.DisplayName, profile.AvatarKey).
		Scan(&profile.Username, &profile.Role, &profile.CreatedAt, &profile.UpdatedAt)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return profile, nil
}
