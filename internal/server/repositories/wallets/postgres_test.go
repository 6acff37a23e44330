package wallets

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/soundcircle/internal/common"
)

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return NewPostgresRepository(db), mock, db
}

func walletRows(due any) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"user_id", "points_balance", "earnings_points", "locked_earnings_points", "next_topup_due_on", "updated_at"}).
		AddRow("u-1", int64(100), int64(40), int64(10), due, time.Now())
}

func TestGetByUserID_NullDueDate(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`SELECT\s+user_id,\s*points_balance`).
		WithArgs("u-1").
		WillReturnRows(walletRows(nil))

	w, err := repo.GetByUserID(context.Background(), "u-1")
	if err != nil {
		t.Fatalf("GetByUserID error: %v", err)
	}
	if w.NextTopupDueOn != nil {
		t.Fatalf("expected nil due date, got %v", w.NextTopupDueOn)
	}
	if w.PointsBalance != 100 || w.EarningsPoints != 40 || w.LockedEarningsPoints != 10 {
		t.Fatalf("unexpected wallet: %+v", w)
	}
}

func TestGetByUserID_WithDueDate(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	due := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery(`SELECT\s+user_id,\s*points_balance`).
		WithArgs("u-1").
		WillReturnRows(walletRows(due))

	w, err := repo.GetByUserID(context.Background(), "u-1")
	if err != nil {
		t.Fatalf("GetByUserID error: %v", err)
	}
	if w.NextTopupDueOn == nil || !w.NextTopupDueOn.Equal(due) {
		t.Fatalf("expected due date %v, got %v", due, w.NextTopupDueOn)
	}
}

func TestAdjustPoints_GuardReturnsNotFound(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`UPDATE\s+wallets`).
		WithArgs("u-1", int64(-500)).
		WillReturnError(sql.ErrNoRows)

	_, err := repo.AdjustPoints(context.Background(), "u-1", -500)
	if !errors.Is(err, common.ErrorNotFound) {
		t.Fatalf("expected ErrorNotFound, got %v", err)
	}
}

func TestAdjustPoints_Success(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`UPDATE\s+wallets`).
		WithArgs("u-1", int64(25)).
		WillReturnRows(walletRows(nil))

	w, err := repo.AdjustPoints(context.Background(), "u-1", 25)
	if err != nil {
		t.Fatalf("AdjustPoints error: %v", err)
	}
	if w.UserID != "u-1" {
		t.Fatalf("unexpected wallet: %+v", w)
	}
}

func TestNotify_Publishes(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`SELECT\s+pg_notify\(\$1,\s*\$2\)`).
		WithArgs("wallet_events", `{"user_id":"u-1"}`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.Notify(context.Background(), "wallet_events", `{"user_id":"u-1"}`); err != nil {
		t.Fatalf("Notify error: %v", err)
	}
}
