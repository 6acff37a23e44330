package wallets

import (
	"context"
	"time"

	"github.com/dmitrijs2005/soundcircle/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, userID string) (*models.Wallet, error)
	GetByUserID(ctx context.Context, userID string) (*models.Wallet, error)
	AdjustPoints(ctx context.Context, userID string, delta int64) (*models.Wallet, error)
	CreditEarnings(ctx context.Context, userID string, delta int64, lockedDelta int64) (*models.Wallet, error)
	SetNextTopupDue(ctx context.Context, userID string, due time.Time) (*models.Wallet, error)
	Notify(ctx context.Context, channel string, payload string) error
}
