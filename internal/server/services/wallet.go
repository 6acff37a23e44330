package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/soundcircle/internal/common"
	"github.com/dmitrijs2005/soundcircle/internal/dbx"
	"github.com/dmitrijs2005/soundcircle/internal/server/models"
	"github.com/dmitrijs2005/soundcircle/internal/server/repositories/repomanager"
)

// WalletEventsChannel is the LISTEN/NOTIFY channel carrying wallet changes.
const WalletEventsChannel = "wallet_events"

// WalletEvent is the NOTIFY payload. Only the fields changed by a mutation
// are set; subscribers must merge rather than replace.
type WalletEvent struct {
	UserID               string  `json:"user_id"`
	PointsBalance        *int64  `json:"points_balance,omitempty"`
	EarningsPoints       *int64  `json:"earnings_points,omitempty"`
	LockedEarningsPoints *int64  `json:"locked_earnings_points,omitempty"`
	NextTopupDueOn       *string `json:"next_topup_due_on,omitempty"`
}

// WalletService owns point-balance business rules. Every mutation happens in
// a transaction that also publishes a WalletEvent, so realtime subscribers
// only observe committed state.
type WalletService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
}

func NewWalletService(db *sql.DB, m repomanager.RepositoryManager) *WalletService {
	return &WalletService{db: db, repomanager: m}
}

func (s *WalletService) GetByUserID(ctx context.Context, userID string) (*models.Wallet, error) {
	return s.repomanager.Wallets(s.db).GetByUserID(ctx, userID)
}

// AdjustPoints credits (delta > 0) or debits (delta < 0) the points balance.
// A debit past zero returns ErrInsufficientPoints; an unknown wallet returns
// common.ErrorNotFound.
func (s *WalletService) AdjustPoints(ctx context.Context, userID string, delta int64) (*models.Wallet, error) {
	var wallet *models.Wallet

	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Wallets(tx)

		w, err := repo.AdjustPoints(ctx, userID, delta)
		if err != nil {
			if errors.Is(err, common.ErrorNotFound) {
				// Guarded update matched nothing: missing wallet or balance
				// would go negative. Disambiguate with a plain read.
				if _, getErr := repo.GetByUserID(ctx, userID); getErr != nil {
					return getErr
				}
				return common.ErrInsufficientPoints
			}
			return err
		}
		wallet = w

		return s.publish(ctx, repo.Notify, WalletEvent{
			UserID:        userID,
			PointsBalance: &w.PointsBalance,
		})
	})
	if err != nil {
		return nil, err
	}
	return wallet, nil
}

// CreditEarnings adds creator earnings, optionally locking part of them
// until the payout hold clears.
func (s *WalletService) CreditEarnings(ctx context.Context, userID string, delta, lockedDelta int64) (*models.Wallet, error) {
	if delta < 0 || lockedDelta < 0 || lockedDelta > delta {
		return nil, fmt.Errorf("invalid earnings credit: delta=%d locked=%d", delta, lockedDelta)
	}

	var wallet *models.Wallet
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Wallets(tx)

		w, err := repo.CreditEarnings(ctx, userID, delta, lockedDelta)
		if err != nil {
			return err
		}
		wallet = w

		return s.publish(ctx, repo.Notify, WalletEvent{
			UserID:               userID,
			EarningsPoints:       &w.EarningsPoints,
			LockedEarningsPoints: &w.LockedEarningsPoints,
		})
	})
	if err != nil {
		return nil, err
	}
	return wallet, nil
}

// ScheduleTopup sets the next mandatory top-up date.
func (s *WalletService) ScheduleTopup(ctx context.Context, userID string, due time.Time) (*models.Wallet, error) {
	var wallet *models.Wallet
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Wallets(tx)

		w, err := repo.SetNextTopupDue(ctx, userID, due)
		if err != nil {
			return err
		}
		wallet = w

		d := due.Format("2006-01-02")
		return s.publish(ctx, repo.Notify, WalletEvent{
			UserID:         userID,
			NextTopupDueOn: &d,
		})
	})
	if err != nil {
		return nil, err
	}
	return wallet, nil
}

func (s *WalletService) publish(ctx context.Context, notify func(context.Context, string, string) error, ev WalletEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("error encoding wallet event: %w", err)
	}
	return notify(ctx, WalletEventsChannel, string(payload))
}
