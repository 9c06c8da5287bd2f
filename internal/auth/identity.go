package auth

import (
	"context"
	"time"
)

// Identity is the authenticated caller for one request. It is populated from
// verified session-token claims and never mutated after resolution.
type Identity struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	Role   Role   `json:"role"`

	// OrganizationID is empty for platform-level super admins.
	OrganizationID string `json:"organization_id,omitempty"`

	OnboardingCompleted bool `json:"onboarding_completed"`
}

// Session carries the verified identity together with the access token's
// identifier and expiry, which logout needs for revocation.
type Session struct {
	Identity  Identity
	TokenID   string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

type identityContextKey struct{}
type sessionContextKey struct{}

// ContextWithIdentity attaches the authenticated identity to the context.
func ContextWithIdentity(ctx context.Context, identity Identity) context.Context {
	return context.WithValue(ctx, identityContextKey{}, &identity)
}

// IdentityFromContext extracts the authenticated identity from the context.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	if ctx == nil {
		return Identity{}, false
	}
	v, ok := ctx.Value(identityContextKey{}).(*Identity)
	if !ok || v == nil {
		return Identity{}, false
	}
	return *v, true
}

// ContextWithSession stores the verified session alongside the identity.
func ContextWithSession(ctx context.Context, session Session) context.Context {
	return context.WithValue(ctx, sessionContextKey{}, &session)
}

// SessionFromContext returns the session if it was previously attached.
func SessionFromContext(ctx context.Context) (Session, bool) {
	if ctx == nil {
		return Session{}, false
	}
	v, ok := ctx.Value(sessionContextKey{}).(*Session)
	if !ok || v == nil {
		return Session{}, false
	}
	return *v, true
}
