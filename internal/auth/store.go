package auth

import (
	"context"
	"time"
)

// UserStore is the persistence collaborator for credential records.
type UserStore interface {
	Find(ctx context.Context, id string) (*User, error)
	FindByEmail(ctx context.Context, email string) (*User, error)
	ListByOrganization(ctx context.Context, orgID string) ([]*User, error)
}

// RefreshTokenStore manages the refresh-token lifecycle.
type RefreshTokenStore interface {
	Create(ctx context.Context, tok *RefreshToken) error
	Find(ctx context.Context, id string) (*RefreshToken, error)
	MarkRevoked(ctx context.Context, id string) error
	MarkRevokedByUser(ctx context.Context, userID string) error
}

// Revoker invalidates live access tokens ahead of their natural expiry.
// Token-level revocation backs logout; the organization cutoff forces
// re-issuance for every member when a tenant is suspended.
type Revoker interface {
	RevokeToken(ctx context.Context, tokenID string, until time.Time) error
	TokenRevoked(ctx context.Context, tokenID string) (bool, error)
	RevokeOrganizationBefore(ctx context.Context, orgID string, cutoff time.Time) error
	OrganizationCutoff(ctx context.Context, orgID string) (time.Time, bool, error)
}
