// Package session maintains the client's single in-memory view of "who is
// signed in, what is their profile, what is their wallet balance", kept in
// sync with the server through auth events and realtime wallet pushes.
package session

import (
	"context"

	"github.com/dmitrijs2005/soundcircle/internal/client/models"
)

// AuthAPI is the authentication surface the provider consumes.
type AuthAPI interface {
	// GetSession returns the locally cached session, or nil when signed out.
	// It never performs a network round-trip.
	GetSession(ctx context.Context) (*models.Session, error)

	// GetUser revalidates the cached session against the server and returns
	// the identity behind it.
	GetUser(ctx context.Context) (*models.User, error)

	// SignOut invalidates the session server-side.
	SignOut(ctx context.Context) error

	// OnAuthStateChange registers a listener for auth transitions. The
	// returned func deregisters it.
	OnAuthStateChange(fn func(models.AuthEvent)) func()
}

// DataAPI reads the records the provider mirrors.
type DataAPI interface {
	ProfileByID(ctx context.Context, id string) (*models.Profile, error)
	WalletByUserID(ctx context.Context, userID string) (*models.WalletSnapshot, error)
}

// Subscription is an open realtime wallet stream.
type Subscription interface {
	// Updates delivers pushes until the subscription is closed; the channel
	// is closed afterwards.
	Updates() <-chan models.WalletUpdate

	// Close tears the stream down. Safe to call more than once.
	Close()
}

// RealtimeAPI opens wallet subscriptions.
type RealtimeAPI interface {
	SubscribeWallet(ctx context.Context, userID string) (Subscription, error)
}
