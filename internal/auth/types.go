package auth

import "time"

// User is a persisted credential record scoped to one organization.
// Super admins carry no organization.
type User struct {
	ID                  string
	OrganizationID      string
	Email               string
	PasswordHash        string
	FirstName           string
	LastName            string
	UnitNumber          string
	Role                Role
	Status              string
	OnboardingCompleted bool
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

const (
	UserStatusActive   = "active"
	UserStatusDisabled = "disabled"
)

// RefreshToken is a persisted, rotating refresh credential. Only a sha256
// hash of the secret half is stored.
type RefreshToken struct {
	ID        string
	UserID    string
	TokenHash string
	ExpiresAt time.Time
	CreatedAt time.Time
	Revoked   bool
}
