package pg

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"loomos.org/internal/tenant"
)

// Organizations returns the tenant catalog sub-store.
func (s *Store) Organizations() tenant.AdminStore { return orgStore{db: s.db} }

type orgStore struct {
	db *sql.DB
}

var _ tenant.AdminStore = orgStore{}

const orgColumns = `
	id, name, slug, coalesce(subdomain, ''), coalesce(custom_domain, ''),
	coalesce(plan_type, ''), coalesce(features, '{}'::jsonb), active, suspended,
	created_at, updated_at`

func scanOrganization(row interface{ Scan(...any) error }) (*tenant.Organization, error) {
	var org tenant.Organization
	var rawFeatures []byte
	err := row.Scan(
		&org.ID, &org.Name, &org.Slug, &org.Subdomain, &org.CustomDomain,
		&org.PlanType, &rawFeatures, &org.Active, &org.Suspended,
		&org.CreatedAt, &org.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, tenant.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if len(rawFeatures) > 0 {
		if err := json.Unmarshal(rawFeatures, &org.Features); err != nil {
			return nil, fmt.Errorf("decode features: %w", err)
		}
	}
	return &org, nil
}

func (os orgStore) FindBySubdomain(ctx context.Context, subdomain string) (*tenant.Organization, error) {
	row := os.db.QueryRowContext(ctx, `
		select `+orgColumns+`
		from organizations
		where subdomain=$1
	`, strings.ToLower(subdomain))
	return scanOrganization(row)
}

func (os orgStore) FindByCustomDomain(ctx context.Context, domain string) (*tenant.Organization, error) {
	row := os.db.QueryRowContext(ctx, `
		select `+orgColumns+`
		from organizations
		where lower(custom_domain)=$1
	`, strings.ToLower(domain))
	return scanOrganization(row)
}

func (os orgStore) FindByID(ctx context.Context, id string) (*tenant.Organization, error) {
	row := os.db.QueryRowContext(ctx, `select `+orgColumns+` from organizations where id=$1`, id)
	return scanOrganization(row)
}

func (os orgStore) List(ctx context.Context) ([]*tenant.Organization, error) {
	rows, err := os.db.QueryContext(ctx, `select `+orgColumns+` from organizations order by name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orgs []*tenant.Organization
	for rows.Next() {
		org, err := scanOrganization(rows)
		if err != nil {
			return nil, err
		}
		orgs = append(orgs, org)
	}
	return orgs, rows.Err()
}

func (os orgStore) Update(ctx context.Context, id string, upd tenant.OrganizationUpdate) (*tenant.Organization, error) {
	set := []string{"updated_at = now()"}
	args := []any{id}
	next := 2
	add := func(clause string, val any) {
		set = append(set, fmt.Sprintf(clause, next))
		args = append(args, val)
		next++
	}
	if upd.Name != nil {
		add("name = $%d", strings.TrimSpace(*upd.Name))
	}
	if upd.Subdomain != nil {
		add("subdomain = nullif($%d, '')", strings.ToLower(strings.TrimSpace(*upd.Subdomain)))
	}
	if upd.CustomDomain != nil {
		add("custom_domain = nullif($%d, '')", strings.ToLower(strings.TrimSpace(*upd.CustomDomain)))
	}
	if upd.Features != nil {
		raw, err := json.Marshal(upd.Features)
		if err != nil {
			return nil, fmt.Errorf("encode features: %w", err)
		}
		add("features = $%d", raw)
	}

	row := os.db.QueryRowContext(ctx, `
		update organizations set `+strings.Join(set, ", ")+`
		where id = $1
		returning `+orgColumns, args...)
	org, err := scanOrganization(row)
	if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrUniqueViolation {
		return nil, tenant.ErrConflict
	}
	return org, err
}

func (os orgStore) SetSuspended(ctx context.Context, id string, suspended bool) (*tenant.Organization, error) {
	row := os.db.QueryRowContext(ctx, `
		update organizations set suspended=$2, updated_at=now()
		where id=$1
		returning `+orgColumns, id, suspended)
	return scanOrganization(row)
}
