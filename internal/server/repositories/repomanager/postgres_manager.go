package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/soundcircle/internal/dbx"
	"github.com/dmitrijs2005/soundcircle/internal/server/migrations"
	"github.com/dmitrijs2005/soundcircle/internal/server/repositories/profiles"
	"github.com/dmitrijs2005/soundcircle/internal/server/repositories/refreshtokens"
	"github.com/dmitrijs2005/soundcircle/internal/server/repositories/users"
	"github.com/dmitrijs2005/soundcircle/internal/server/repositories/wallets"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

type PostgresRepositoryManager struct {
}

func NewPostgresRepositoryManager() *PostgresRepositoryManager {
	return &PostgresRepositoryManager{}
}

func (m *PostgresRepositoryManager) Users(db dbx.DBTX) users.Repository {
	return users.NewPostgresRepository(db)
}

func (m *PostgresRepositoryManager) Profiles(db dbx.DBTX) profiles.Repository {
	return profiles.NewPostgresRepository(db)
}

func (m *PostgresRepositoryManager) Wallets(db dbx.DBTX) wallets.Repository {
	return wallets.NewPostgresRepository(db)
}

func (m *PostgresRepositoryManager) RefreshTokens(db dbx.DBTX) refreshtokens.Repository {
	return refreshtokens.NewPostgresRepository(db)
}

func (m *PostgresRepositoryManager) RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("pgx"); err != nil {
		return err
	}

	if err := goose.UpContext(ctx, db, "."); err != nil {
		return err
	}

	return nil
}
