package models

import "time"

// Role values stored in profiles.role.
const (
	RoleMember = "member"
	RoleAdmin  = "admin"
)

// Profile is the application-level user record, distinct from the auth
// identity. Its ID equals the owning user's ID.
type Profile struct {
	ID          string
	Username    string
	DisplayName string
	AvatarKey   string
	Role        string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
