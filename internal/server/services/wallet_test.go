package services

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/dmitrijs2005/soundcircle/internal/common"
	"github.com/dmitrijs2005/soundcircle/internal/server/models"
)

func TestAdjustPoints_PublishesOnlyPointsBalance(t *testing.T) {
	db, mock := newSQLMockDB(t)
	defer db.Close()
	mock.ExpectBegin()
	mock.ExpectCommit()

	w := &fakeWalletsRepo{adjustOut: &models.Wallet{UserID: "u-1", PointsBalance: 125}}
	s := NewWalletService(db, &fakeRepoManager{w: w})

	got, err := s.AdjustPoints(context.Background(), "u-1", 25)
	if err != nil {
		t.Fatalf("AdjustPoints error: %v", err)
	}
	if got.PointsBalance != 125 {
		t.Fatalf("unexpected wallet: %+v", got)
	}

	if w.notifiedChannel != WalletEventsChannel {
		t.Fatalf("expected notify on %q, got %q", WalletEventsChannel, w.notifiedChannel)
	}
	if len(w.notifiedPayloads) != 1 {
		t.Fatalf("expected 1 payload, got %d", len(w.notifiedPayloads))
	}

	var ev WalletEvent
	if err := json.Unmarshal([]byte(w.notifiedPayloads[0]), &ev); err != nil {
		t.Fatalf("payload is not valid json: %v", err)
	}
	if ev.UserID != "u-1" || ev.PointsBalance == nil || *ev.PointsBalance != 125 {
		t.Fatalf("unexpected event: %+v", ev)
	}
	if ev.EarningsPoints != nil || ev.LockedEarningsPoints != nil || ev.NextTopupDueOn != nil {
		t.Fatalf("event must only carry changed fields: %s", w.notifiedPayloads[0])
	}
}

func TestAdjustPoints_InsufficientBalance(t *testing.T) {
	db, mock := newSQLMockDB(t)
	defer db.Close()
	mock.ExpectBegin()
	mock.ExpectRollback()

	w := &fakeWalletsRepo{
		adjustErr: common.ErrorNotFound,
		getOut:    &models.Wallet{UserID: "u-1", PointsBalance: 5},
	}
	s := NewWalletService(db, &fakeRepoManager{w: w})

	_, err := s.AdjustPoints(context.Background(), "u-1", -100)
	if !errors.Is(err, common.ErrInsufficientPoints) {
		t.Fatalf("expected ErrInsufficientPoints, got %v", err)
	}
}

func TestAdjustPoints_UnknownWallet(t *testing.T) {
	db, mock := newSQLMockDB(t)
	defer db.Close()
	mock.ExpectBegin()
	mock.ExpectRollback()

	w := &fakeWalletsRepo{
		adjustErr: common.ErrorNotFound,
		getErr:    common.ErrorNotFound,
	}
	s := NewWalletService(db, &fakeRepoManager{w: w})

	_, err := s.AdjustPoints(context.Background(), "u-404", -100)
	if !errors.Is(err, common.ErrorNotFound) {
		t.Fatalf("expected ErrorNotFound, got %v", err)
	}
}

func TestCreditEarnings_RejectsInvalidLock(t *testing.T) {
	db, _ := newSQLMockDB(t)
	defer db.Close()

	s := NewWalletService(db, &fakeRepoManager{w: &fakeWalletsRepo{}})

	if _, err := s.CreditEarnings(context.Background(), "u-1", 10, 20); err == nil {
		t.Fatal("expected error for locked > delta")
	}
	if _, err := s.CreditEarnings(context.Background(), "u-1", -10, 0); err == nil {
		t.Fatal("expected error for negative delta")
	}
}

func TestScheduleTopup_PublishesDate(t *testing.T) {
	db, mock := newSQLMockDB(t)
	defer db.Close()
	mock.ExpectBegin()
	mock.ExpectCommit()

	due := time.Date(2026, 9, 15, 0, 0, 0, 0, time.UTC)
	w := &fakeWalletsRepo{adjustOut: &models.Wallet{UserID: "u-1", NextTopupDueOn: &due}}
	s := NewWalletService(db, &fakeRepoManager{w: w})

	if _, err := s.ScheduleTopup(context.Background(), "u-1", due); err != nil {
		t.Fatalf("ScheduleTopup error: %v", err)
	}

	var ev WalletEvent
	if err := json.Unmarshal([]byte(w.notifiedPayloads[0]), &ev); err != nil {
		t.Fatalf("payload is not valid json: %v", err)
	}
	if ev.NextTopupDueOn == nil || *ev.NextTopupDueOn != "2026-09-15" {
		t.Fatalf("unexpected event: %+v", ev)
	}
}
