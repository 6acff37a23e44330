// Package httpapi exposes the public HTTP surface of the soundcircle server:
// auth endpoints, profile and wallet APIs, the SSE wallet-event stream, and
// avatar presign endpoints.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/dmitrijs2005/soundcircle/internal/logging"
	"github.com/dmitrijs2005/soundcircle/internal/server/config"
	"github.com/dmitrijs2005/soundcircle/internal/server/models"
	"github.com/dmitrijs2005/soundcircle/internal/server/services"
	"github.com/go-chi/chi/v5"
)

// The service contracts the HTTP layer depends on. The concrete services in
// internal/server/services satisfy them; tests substitute fakes.
type (
	UserAPI interface {
		Register(ctx context.Context, email, username string, password []byte) (*models.User, error)
		Login(ctx context.Context, email string, password []byte) (*services.TokenPair, error)
		RefreshToken(ctx context.Context, refreshToken string) (*services.TokenPair, error)
		Logout(ctx context.Context, userID string) error
		GetByID(ctx context.Context, userID string) (*models.User, error)
	}

	ProfileAPI interface {
		GetByID(ctx context.Context, id string) (*models.Profile, error)
		Update(ctx context.Context, id, displayName, avatarKey string) (*models.Profile, error)
	}

	WalletAPI interface {
		GetByUserID(ctx context.Context, userID string) (*models.Wallet, error)
		AdjustPoints(ctx context.Context, userID string, delta int64) (*models.Wallet, error)
		CreditEarnings(ctx context.Context, userID string, delta, lockedDelta int64) (*models.Wallet, error)
		ScheduleTopup(ctx context.Context, userID string, due time.Time) (*models.Wallet, error)
	}

	AvatarAPI interface {
		GetPresignedPutURL(ctx context.Context, userID string) (string, string, error)
		GetPresignedGetURL(ctx context.Context, key string) (string, error)
	}

	// WalletHub delivers committed wallet events for one user.
	WalletHub interface {
		Subscribe(userID string) (<-chan services.WalletEvent, func())
	}

	HTTPMetrics interface {
		RecordHTTPRequest(statusCode int, duration time.Duration)
	}
)

type Server struct {
	logger    logging.Logger
	jwtSecret []byte

	users    UserAPI
	profiles ProfileAPI
	wallets  WalletAPI
	avatars  AvatarAPI
	hub      WalletHub

	metrics        HTTPMetrics
	metricsHandler http.Handler
	authLimiter    *ipRateLimiter
}

func NewServer(cfg *config.Config, logger logging.Logger,
	users UserAPI, profiles ProfileAPI, wallets WalletAPI, avatars AvatarAPI,
	hub WalletHub, m HTTPMetrics, metricsHandler http.Handler) *Server {
	return &Server{
		logger:         logger.With("module", "httpapi"),
		jwtSecret:      []byte(cfg.SecretKey),
		users:          users,
		profiles:       profiles,
		wallets:        wallets,
		avatars:        avatars,
		hub:            hub,
		metrics:        m,
		metricsHandler: metricsHandler,
		authLimiter:    newIPRateLimiter(cfg.AuthRatePerMinute, cfg.AuthRateBurst),
	}
}

// Router wires every route with its middleware chain.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(s.observeMiddleware)

	r.Route("/auth", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(s.rateLimitMiddleware)
			r.Post("/register", s.handleRegister)
			r.Post("/login", s.handleLogin)
			r.Post("/refresh", s.handleRefresh)
		})
		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)
			r.Post("/logout", s.handleLogout)
			r.Get("/user", s.handleGetUser)
		})
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(s.authMiddleware)

		r.Get("/profiles/{id}", s.handleGetProfile)
		r.Put("/profiles/{id}", s.handleUpdateProfile)

		r.Get("/wallets/{userID}", s.handleGetWallet)
		r.Post("/wallets/{userID}/adjust", s.handleAdjustPoints)
		r.Post("/wallets/{userID}/earnings", s.handleCreditEarnings)
		r.Post("/wallets/{userID}/topup", s.handleScheduleTopup)

		r.Get("/realtime/wallet", s.handleWalletStream)

		r.Post("/avatars/presign-upload", s.handlePresignUpload)
		r.Get("/avatars/presign-download", s.handlePresignDownload)
	})

	if s.metricsHandler != nil {
		r.Handle("/metrics", s.metricsHandler)
	}

	return r
}
