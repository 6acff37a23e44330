// Package wallets provides the PostgreSQL repository for point wallets.
// Balance mutations are guarded in SQL so concurrent adjustments can never
// drive a wallet negative.
package wallets

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/soundcircle/internal/common"
	"github.com/dmitrijs2005/soundcircle/internal/dbx"
	"github.com/dmitrijs2005/soundcircle/internal/server/models"
)

const walletColumns = `user_id, points_balance, earnings_points, locked_earnings_points, next_topup_due_on, updated_at`

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func scanWallet(row *sql.Row) (*models.Wallet, error) {
	w := &models.Wallet{}
	var due sql.NullTime
	err := row.Scan(&w.UserID, &w.PointsBalance, &w.EarningsPoints, &w.LockedEarningsPoints, &due, &w.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if due.Valid {
		t := due.Time
		w.NextTopupDueOn = &t
	}
	return w, nil
}

func (r *PostgresRepository) Create(ctx context.Context, userID string) (*models.Wallet, error) {
	query := `INSERT INTO wallets (user_id) VALUES ($1) RETURNING ` + walletColumns

	w, err := scanWallet(r.db.QueryRowContext(ctx, query, userID))
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return w, nil
}

func (r *PostgresRepository) GetByUserID(ctx context.Context, userID string) (*models.Wallet, error) {
	query := `SELECT ` + walletColumns + ` FROM wallets WHERE user_id = $1`

	w, err := scanWallet(r.db.QueryRowContext(ctx, query, userID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return w, nil
}

// AdjustPoints applies delta to points_balance. The WHERE guard makes a
// debit below zero return common.ErrorNotFound; callers that know the wallet
// exists should treat that as an insufficient balance.
func (r *PostgresRepository) AdjustPoints(ctx context.Context, userID string, delta int64) (*models.Wallet, error) {
	query := `
		UPDATE wallets
		SET points_balance = points_balance + $2, updated_at = now()
		WHERE user_id = $1 AND points_balance + $2 >= 0
		RETURNING ` + walletColumns

	w, err := scanWallet(r.db.QueryRowContext(ctx, query, userID, delta))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return w, nil
}

func (r *PostgresRepository) CreditEarnings(ctx context.Context, userID string, delta int64, lockedDelta int64) (*models.Wallet, error) {
	query := `
		UPDATE wallets
		SET earnings_points = earnings_points + $2,
		    locked_earnings_points = locked_earnings_points + $3,
		    updated_at = now()
		WHERE user_id = $1
		RETURNING ` + walletColumns

	w, err := scanWallet(r.db.QueryRowContext(ctx, query, userID, delta, lockedDelta))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return w, nil
}

func (r *PostgresRepository) SetNextTopupDue(ctx context.Context, userID string, due time.Time) (*models.Wallet, error) {
	query := `
		UPDATE wallets
		SET next_topup_due_on = $2, updated_at = now()
		WHERE user_id = $1
		RETURNING ` + walletColumns

	w, err := scanWallet(r.db.QueryRowContext(ctx, query, userID, due))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return w, nil
}

// Notify publishes payload on a LISTEN/NOTIFY channel. Called inside the
// same transaction as the balance mutation so subscribers only see
// committed changes.
func (r *PostgresRepository) Notify(ctx context.Context, channel string, payload string) error {
	if _, err := r.db.ExecContext(ctx, `SELECT pg_notify($1, $2)`, channel, payload); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}
