package tenant

import "context"

// Directory is the read side of the organization catalog consulted on every
// tenant resolution.
type Directory interface {
	// FindBySubdomain matches the bare subdomain label, already extracted
	// from the request host ("willowcreek", never "willowcreek.loomos.com").
	FindBySubdomain(ctx context.Context, subdomain string) (*Organization, error)
	// FindByCustomDomain matches the full lowercased hostname with any port
	// already stripped.
	FindByCustomDomain(ctx context.Context, domain string) (*Organization, error)
	FindByID(ctx context.Context, id string) (*Organization, error)
}

// AdminStore extends Directory with the mutations exposed by the admin
// console and the platform operator surface.
type AdminStore interface {
	Directory
	List(ctx context.Context) ([]*Organization, error)
	Update(ctx context.Context, id string, upd OrganizationUpdate) (*Organization, error)
	SetSuspended(ctx context.Context, id string, suspended bool) (*Organization, error)
}
