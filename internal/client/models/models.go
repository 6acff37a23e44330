// Package models defines the client-side views of server records plus the
// auth events the API client emits toward the session provider.
package models

import "time"

// User is the server-validated identity behind an access token.
type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

// Profile is the application-level user record.
type Profile struct {
	ID          string    `json:"id"`
	Username    string    `json:"username"`
	DisplayName string    `json:"display_name"`
	AvatarKey   string    `json:"avatar_key,omitempty"`
	Role        string    `json:"role"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// WalletSnapshot mirrors the server wallet row. Nil pointers mean the value
// has not been loaded yet, as opposed to a loaded zero.
type WalletSnapshot struct {
	PointsBalance        *int64
	EarningsPoints       *int64
	LockedEarningsPoints *int64
	NextTopupDueOn       *string
}

// WalletUpdate is one realtime push. Only fields changed by the originating
// mutation are non-nil; consumers merge, never replace.
type WalletUpdate struct {
	UserID               string  `json:"user_id"`
	PointsBalance        *int64  `json:"points_balance,omitempty"`
	EarningsPoints       *int64  `json:"earnings_points,omitempty"`
	LockedEarningsPoints *int64  `json:"locked_earnings_points,omitempty"`
	NextTopupDueOn       *string `json:"next_topup_due_on,omitempty"`
}

// Session is the locally cached proof of authentication. UserID is the token
// subject as last seen by the client; it is a hint only and must be
// revalidated server-side before the UI trusts it.
type Session struct {
	UserID       string
	AccessToken  string
	RefreshToken string
}

type AuthEventType string

const (
	SignedIn       AuthEventType = "SIGNED_IN"
	SignedOut      AuthEventType = "SIGNED_OUT"
	TokenRefreshed AuthEventType = "TOKEN_REFRESHED"
)

// AuthEvent notifies listeners of a session transition. Session is nil for
// SignedOut.
type AuthEvent struct {
	Type    AuthEventType
	Session *Session
}
