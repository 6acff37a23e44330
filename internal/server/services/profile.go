package services

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/soundcircle/internal/server/models"
	"github.com/dmitrijs2005/soundcircle/internal/server/repositories/repomanager"
)

// ProfileService reads and updates application profiles.
type ProfileService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
}

func NewProfileService(db *sql.DB, m repomanager.RepositoryManager) *ProfileService {
	return &ProfileService{db: db, repomanager: m}
}

func (s *ProfileService) GetByID(ctx context.Context, id string) (*models.Profile, error) {
	return s.repomanager.Profiles(s.db).GetByID(ctx, id)
}

// Update replaces the mutable display fields of the caller's own profile.
func (s *ProfileService) Update(ctx context.Context, id, displayName, avatarKey string) (*models.Profile, error) {
	p := &models.Profile{ID: id, DisplayName: displayName, AvatarKey: avatarKey}
	return s.repomanager.Profiles(s.db).Update(ctx, p)
}
