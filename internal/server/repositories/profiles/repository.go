package profiles

import (
	"context"

	"github.com/dmitrijs2005/soundcircle/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, profile *models.Profile) (*models.Profile, error)
	GetByID(ctx context.Context, id string) (*models.Profile, error)
	Update(ctx context.Context, profile *models.Profile) (*models.Profile, error)
}
