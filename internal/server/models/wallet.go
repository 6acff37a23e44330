package models

import "time"

// Wallet holds a user's point balances. NextTopupDueOn is nil until a
// mandatory top-up schedule has been assigned.
type Wallet struct {
	UserID               string
	PointsBalance        int64
	EarningsPoints       int64
	LockedEarningsPoints int64
	NextTopupDueOn       *time.Time
	UpdatedAt            time.Time
}
