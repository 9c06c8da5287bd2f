// Package tenant resolves the active organization for a request from the Host
// header or from the caller's bound organization, and enforces suspension on
// every resolution.
package tenant

import (
	"errors"
	"time"
)

var (
	ErrNotFound  = errors.New("tenant: organization not found")
	ErrSuspended = errors.New("tenant: organization suspended")
	ErrConflict  = errors.New("tenant: conflict")
)

// Organization is one isolated customer account. All business data is scoped
// to exactly one organization.
type Organization struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	Slug         string          `json:"slug"`
	Subdomain    string          `json:"subdomain,omitempty"`
	CustomDomain string          `json:"custom_domain,omitempty"`
	PlanType     string          `json:"plan_type,omitempty"`
	Features     map[string]bool `json:"features,omitempty"`
	Active       bool            `json:"active"`
	Suspended    bool            `json:"suspended"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// Available reports whether requests may be served for this organization.
func (o *Organization) Available() bool {
	return o != nil && o.Active && !o.Suspended
}

// OrganizationUpdate carries the mutable settings an organization admin may
// change. Nil fields are left untouched.
type OrganizationUpdate struct {
	Name         *string
	Subdomain    *string
	CustomDomain *string
	Features     map[string]bool
}
