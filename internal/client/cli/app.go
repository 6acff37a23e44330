// Package cli implements the interactive soundcircle client: a small REPL
// over the session provider and the HTTP API client.
package cli

import (
	"bufio"
	"context"
	"os"

	"github.com/dmitrijs2005/soundcircle/internal/client/api"
	"github.com/dmitrijs2005/soundcircle/internal/client/config"
	"github.com/dmitrijs2005/soundcircle/internal/client/localstore"
	"github.com/dmitrijs2005/soundcircle/internal/client/session"
	"github.com/dmitrijs2005/soundcircle/internal/logging"
)

type App struct {
	config   *config.Config
	logger   logging.Logger
	store    *localstore.Store
	api      *api.Client
	provider *session.Provider
	reader   *bufio.Reader
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	logger := logging.NewJSON(os.Stderr)

	store, err := localstore.Open(ctx, c.LocalStorePath)
	if err != nil {
		return nil, err
	}

	apiClient, err := api.NewClient(ctx, c.ServerEndpointAddr, store, logger)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	app := &App{
		config: c,
		logger: logger,
		store:  store,
		api:    apiClient,
		reader: bufio.NewReader(os.Stdin),
	}

	app.provider = session.New(apiClient, apiClient, apiClient, logger,
		session.WithReloadHook(func() {
			printlnFn("Signed out.")
		}))

	return app, nil
}

func (a *App) Run(ctx context.Context) {
	a.provider.Start(ctx)
	defer a.Close()

	scanner := bufio.NewScanner(os.Stdin)
	runREPL(ctx, a, a.status, scanner)
}

func (a *App) Close() {
	a.provider.Close()
	if err := a.store.Close(); err != nil {
		a.logger.Warn(context.Background(), "error closing local store", "error", err)
	}
}

func (a *App) isLoggedIn() bool {
	return a.provider.User() != nil
}

func (a *App) status() string {
	snapshot := a.provider.Snapshot()
	switch {
	case snapshot.Loading:
		return "loading"
	case snapshot.User == nil:
		return "anonymous"
	case snapshot.ProfileErr:
		return snapshot.User.Email + " (profile unavailable)"
	case snapshot.Profile != nil:
		return snapshot.Profile.DisplayName
	default:
		return snapshot.User.Email
	}
}
