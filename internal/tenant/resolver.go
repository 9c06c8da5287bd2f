package tenant

import (
	"context"
	"errors"
	"net"
	"strings"

	"loomos.org/internal/auth"
)

// Resolver derives the active organization for one request. Resolution is a
// read-only lookup; a suspended or inactive organization fails resolution
// every time, not only at login.
type Resolver struct {
	directory Directory

	// appDomain is the apex domain tenant subdomains hang off. Hosts that do
	// not end in it are treated as candidate custom domains.
	appDomain string
}

// NewResolver constructs a Resolver over the organization directory.
func NewResolver(directory Directory, appDomain string) (*Resolver, error) {
	if directory == nil {
		return nil, errors.New("tenant: directory is required")
	}
	appDomain = strings.ToLower(strings.TrimSpace(appDomain))
	if appDomain == "" {
		return nil, errors.New("tenant: app domain is required")
	}
	return &Resolver{directory: directory, appDomain: appDomain}, nil
}

// ExtractSubdomain pulls the tenant subdomain out of a request host.
// Localhost, the apex domain and www carry no subdomain; hosts outside the
// app domain are custom domains and also return "".
func ExtractSubdomain(host, appDomain string) string {
	host = normalizeHost(host)
	appDomain = strings.ToLower(strings.TrimSpace(appDomain))
	if host == "" || host == "localhost" || host == "127.0.0.1" {
		return ""
	}
	if host == appDomain || host == "www."+appDomain {
		return ""
	}
	if !strings.HasSuffix(host, "."+appDomain) {
		return ""
	}
	sub := strings.TrimSuffix(host, "."+appDomain)
	if sub == "www" {
		return ""
	}
	return sub
}

// Resolve finds the organization for the request. Host-based resolution wins;
// the identity's bound organization is the fallback when the host is
// inconclusive (localhost, apex domain, unknown custom domain).
func (r *Resolver) Resolve(ctx context.Context, host string, identity auth.Identity) (*Organization, error) {
	if org, err := r.resolveFromHost(ctx, host); err != nil {
		return nil, err
	} else if org != nil {
		return r.checkAvailable(org, identity)
	}

	if identity.OrganizationID == "" {
		return nil, ErrNotFound
	}
	org, err := r.directory.FindByID(ctx, identity.OrganizationID)
	if err != nil {
		return nil, err
	}
	if org == nil {
		return nil, ErrNotFound
	}
	return r.checkAvailable(org, identity)
}

func (r *Resolver) resolveFromHost(ctx context.Context, host string) (*Organization, error) {
	host = normalizeHost(host)
	if host == "" || host == "localhost" || host == "127.0.0.1" {
		return nil, nil
	}
	if host == r.appDomain || host == "www."+r.appDomain {
		return nil, nil
	}
	if sub := ExtractSubdomain(host, r.appDomain); sub != "" {
		// A subdomain of the app domain names a tenant explicitly; an
		// unknown one must not fall back to the identity's organization.
		org, err := r.directory.FindBySubdomain(ctx, sub)
		if err != nil {
			return nil, err
		}
		return org, nil
	}
	org, err := r.directory.FindByCustomDomain(ctx, host)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			// Unknown custom domains fall through to the identity-bound
			// organization so apex-fronted API clients keep working.
			return nil, nil
		}
		return nil, err
	}
	return org, nil
}

// checkAvailable enforces the suspension invariant. SUPER_ADMIN deliberately
// sees suspended organizations: a platform operator must never be locked out
// by tenant-level state.
func (r *Resolver) checkAvailable(org *Organization, identity auth.Identity) (*Organization, error) {
	if org.Available() || identity.Role.IsSuperAdmin() {
		return org, nil
	}
	return nil, ErrSuspended
}

func normalizeHost(host string) string {
	host = strings.ToLower(strings.TrimSpace(host))
	if h, _, err := net.SplitHostPort(host); err == nil {
		return h
	}
	return host
}
