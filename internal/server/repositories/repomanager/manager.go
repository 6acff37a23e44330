package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/soundcircle/internal/dbx"
	"github.com/dmitrijs2005/soundcircle/internal/server/repositories/profiles"
	"github.com/dmitrijs2005/soundcircle/internal/server/repositories/refreshtokens"
	"github.com/dmitrijs2005/soundcircle/internal/server/repositories/users"
	"github.com/dmitrijs2005/soundcircle/internal/server/repositories/wallets"
)

// RepositoryManager hands out repositories bound to either *sql.DB or a
// transaction, so services can compose multi-repo transactions via dbx.WithTx.
type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Users(db dbx.DBTX) users.Repository
	Profiles(db dbx.DBTX) profiles.Repository
	Wallets(db dbx.DBTX) wallets.Repository
	RefreshTokens(db dbx.DBTX) refreshtokens.Repository
}
