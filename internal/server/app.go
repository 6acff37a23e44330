// Package server initializes and runs the soundcircle server: it opens the
// database, runs migrations, starts the wallet realtime hub, and serves the
// HTTP API with graceful shutdown.
package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/dmitrijs2005/soundcircle/internal/logging"
	"github.com/dmitrijs2005/soundcircle/internal/server/config"
	"github.com/dmitrijs2005/soundcircle/internal/server/httpapi"
	"github.com/dmitrijs2005/soundcircle/internal/server/metrics"
	"github.com/dmitrijs2005/soundcircle/internal/server/realtime"
	"github.com/dmitrijs2005/soundcircle/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/soundcircle/internal/server/services"
	"github.com/prometheus/client_golang/prometheus"

	_ "github.com/jackc/pgx/v5/stdlib"
)

const shutdownTimeout = 10 * time.Second

type App struct {
	config *config.Config
	logger logging.Logger

	db  *sql.DB
	hub *realtime.Hub
	api *httpapi.Server
}

func NewApp(cfg *config.Config) (*App, error) {
	logger := logging.NewJSON(os.Stdout)

	db, err := sql.Open("pgx", cfg.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	rm := repomanager.NewPostgresRepositoryManager()
	if err := rm.RunMigrations(context.Background(), db); err != nil {
		return nil, fmt.Errorf("migration error: %w", err)
	}

	reg := prometheus.NewRegistry()
	collector := metrics.NewCollector(reg)

	hub := realtime.NewHub(cfg.DatabaseDSN, logger, collector)

	userService := services.NewUserService(db, rm, cfg)
	profileService := services.NewProfileService(db, rm)
	walletService := services.NewWalletService(db, rm)
	avatarService := services.NewAvatarService(cfg)

	api := httpapi.NewServer(cfg, logger,
		userService, profileService, walletService, avatarService,
		hub, collector, metrics.Handler(reg))

	return &App{config: cfg, logger: logger, db: db, hub: hub, api: api}, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {
	srv := &http.Server{
		Addr:    app.config.EndpointAddr,
		Handler: app.api.Router(),
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			app.logger.Error(ctx, "error shutting down http server", "error", err)
		}
	}()

	app.logger.Info(ctx, "http server listening", "addr", app.config.EndpointAddr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		app.logger.Error(ctx, "http server error", "error", err)
		cancelFunc()
	}
}

func (app *App) Run(ctx context.Context) {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "starting app")

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := app.hub.Run(ctx); err != nil {
			app.logger.Error(ctx, "realtime hub stopped", "error", err)
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()

	wg.Wait()

	if err := app.db.Close(); err != nil {
		app.logger.Error(ctx, "error closing db", "error", err)
	}
}
