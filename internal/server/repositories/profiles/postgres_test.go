package profiles

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/soundcircle/internal/common"
	"github.com/dmitrijs2005/soundcircle/internal/server/models"
)

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return NewPostgresRepository(db), mock, db
}

func TestCreate_DefaultsRole(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	rows := sqlmock.NewRows([]string{"created_at", "updated_at"}).AddRow(time.Now(), time.Now())
	mock.ExpectQuery(`INSERT\s+INTO\s+profiles`).
		WithArgs("u-1", "alice", "Alice", models.RoleMember).
		WillReturnRows(rows)

	p, err := repo.Create(context.Background(), &models.Profile{ID: "u-1", Username: "alice", DisplayName: "Alice"})
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if p.Role != models.RoleMember {
		t.Fatalf("expected default role, got %q", p.Role)
	}
}

func TestGetByID_Found(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	rows := sqlmock.NewRows([]string{"id", "username", "display_name", "avatar_key", "role", "created_at", "updated_at"}).
		AddRow("u-1", "alice", "Alice", "avatars/a.png", "member", time.Now(), time.Now())
	mock.ExpectQuery(`SELECT\s+id,\s*username,\s*display_name`).
		WithArgs("u-1").
		WillReturnRows(rows)

	p, err := repo.GetByID(context.Background(), "u-1")
	if err != nil {
		t.Fatalf("GetByID error: %v", err)
	}
	if p.Username != "alice" || p.AvatarKey != "avatars/a.png" {
		t.Fatalf("unexpected profile: %+v", p)
	}
}

func TestGetByID_NotFound(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`SELECT\s+id,\s*username`).
		WithArgs("u-404").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByID(context.Background(), "u-404")
	if !errors.Is(err, common.ErrorNotFound) {
		t.Fatalf("expected ErrorNotFound, got %v", err)
	}
}

func TestUpdate_NotFound(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`UPDATE\s+profiles`).
		WithArgs("u-404", "New Name", "").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.Update(context.Background(), &models.Profile{ID: "u-404", DisplayName: "New Name"})
	if !errors.Is(err, common.ErrorNotFound) {
		t.Fatalf("expected ErrorNotFound, got %v", err)
	}
}
