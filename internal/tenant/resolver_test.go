package tenant

import (
	"context"
	"errors"
	"testing"

	"loomos.org/internal/auth"
)

type memDirectory struct {
	orgs []*Organization
}

// memDirectory mirrors the postgres lookup contract exactly: bare subdomain
// labels on one side, full custom-domain hostnames on the other.
func (d *memDirectory) FindBySubdomain(_ context.Context, subdomain string) (*Organization, error) {
	for _, org := range d.orgs {
		if org.Subdomain != "" && org.Subdomain == subdomain {
			cp := *org
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (d *memDirectory) FindByCustomDomain(_ context.Context, domain string) (*Organization, error) {
	for _, org := range d.orgs {
		if org.CustomDomain != "" && org.CustomDomain == domain {
			cp := *org
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (d *memDirectory) FindByID(_ context.Context, id string) (*Organization, error) {
	for _, org := range d.orgs {
		if org.ID == id {
			cp := *org
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func acme(active, suspended bool) *Organization {
	return &Organization{
		ID:        "org-acme",
		Name:      "Acme Commons",
		Slug:      "acme",
		Subdomain: "acme",
		Active:    active,
		Suspended: suspended,
	}
}

func newResolver(t *testing.T, orgs ...*Organization) *Resolver {
	t.Helper()
	r, err := NewResolver(&memDirectory{orgs: orgs}, "loomos.com")
	if err != nil {
		t.Fatalf("new resolver: %v", err)
	}
	return r
}

func TestExtractSubdomain(t *testing.T) {
	cases := map[string]string{
		"acme.loomos.com":      "acme",
		"acme.loomos.com:8080": "acme",
		"ACME.Loomos.com":      "acme",
		"www.loomos.com":       "",
		"loomos.com":           "",
		"localhost:3000":       "",
		"127.0.0.1":            "",
		"montrecott.com":       "",
		"www.acme.loomos.com":  "www.acme",
	}
	for host, want := range cases {
		if got := ExtractSubdomain(host, "loomos.com"); got != want {
			t.Fatalf("ExtractSubdomain(%q)=%q, want %q", host, got, want)
		}
	}
}

func TestResolveBySubdomain(t *testing.T) {
	r := newResolver(t, acme(true, false))
	org, err := r.Resolve(context.Background(), "acme.loomos.com:443", auth.Identity{Role: auth.RoleResident})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if org.ID != "org-acme" {
		t.Fatalf("unexpected org: %+v", org)
	}
}

func TestResolveByCustomDomain(t *testing.T) {
	org := acme(true, false)
	org.CustomDomain = "montrecott.com"
	r := newResolver(t, org)

	got, err := r.Resolve(context.Background(), "montrecott.com", auth.Identity{Role: auth.RoleResident})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if got.ID != "org-acme" {
		t.Fatalf("unexpected org: %+v", got)
	}
}

func TestResolveFallsBackToIdentityOrganization(t *testing.T) {
	r := newResolver(t, acme(true, false))
	identity := auth.Identity{Role: auth.RoleResident, OrganizationID: "org-acme"}

	for _, host := range []string{"localhost:3000", "loomos.com", "unknown.example.com"} {
		org, err := r.Resolve(context.Background(), host, identity)
		if err != nil {
			t.Fatalf("resolve via %q: %v", host, err)
		}
		if org.ID != "org-acme" {
			t.Fatalf("unexpected org via %q: %+v", host, org)
		}
	}
}

func TestResolveSubdomainWinsOverIdentityOrganization(t *testing.T) {
	willow := &Organization{
		ID:        "org-willow",
		Name:      "Willow Creek",
		Slug:      "willow-creek",
		Subdomain: "willowcreek",
		Active:    true,
	}
	other := &Organization{
		ID:        "org-other",
		Name:      "Other Commons",
		Slug:      "other",
		Subdomain: "other",
		Active:    true,
	}
	r := newResolver(t, willow, other)
	identity := auth.Identity{Role: auth.RoleResident, OrganizationID: "org-other"}

	org, err := r.Resolve(context.Background(), "willowcreek.loomos.com:443", identity)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if org.ID != "org-willow" {
		t.Fatalf("host must win over the identity's organization, got %+v", org)
	}
}

func TestResolveUnknownSubdomainDoesNotFallBack(t *testing.T) {
	r := newResolver(t, acme(true, false))
	identity := auth.Identity{Role: auth.RoleResident, OrganizationID: "org-acme"}

	_, err := r.Resolve(context.Background(), "nosuch.loomos.com", identity)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestResolveNoMatch(t *testing.T) {
	r := newResolver(t, acme(true, false))
	_, err := r.Resolve(context.Background(), "loomos.com", auth.Identity{Role: auth.RoleSuperAdmin})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestResolveSuspendedFailsEveryTime(t *testing.T) {
	r := newResolver(t, acme(true, true))
	identity := auth.Identity{Role: auth.RoleAdmin, OrganizationID: "org-acme"}

	for i := 0; i < 2; i++ {
		if _, err := r.Resolve(context.Background(), "acme.loomos.com", identity); !errors.Is(err, ErrSuspended) {
			t.Fatalf("expected ErrSuspended, got %v", err)
		}
	}
}

func TestResolveInactiveFails(t *testing.T) {
	r := newResolver(t, acme(false, false))
	_, err := r.Resolve(context.Background(), "acme.loomos.com", auth.Identity{Role: auth.RoleResident, OrganizationID: "org-acme"})
	if !errors.Is(err, ErrSuspended) {
		t.Fatalf("expected ErrSuspended, got %v", err)
	}
}

func TestSuperAdminSeesSuspendedOrganization(t *testing.T) {
	r := newResolver(t, acme(true, true))
	org, err := r.Resolve(context.Background(), "acme.loomos.com", auth.Identity{Role: auth.RoleSuperAdmin})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if !org.Suspended {
		t.Fatalf("expected suspended org, got %+v", org)
	}
}
