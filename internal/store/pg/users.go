package pg

import (
	"context"
	"database/sql"
	"errors"

	"loomos.org/internal/auth"
)

// Users returns the credential sub-store.
func (s *Store) Users() auth.UserStore { return userStore{db: s.db} }

// RefreshTokens returns the refresh-token sub-store.
func (s *Store) RefreshTokens() auth.RefreshTokenStore { return refreshTokenStore{db: s.db} }

type userStore struct {
	db *sql.DB
}

var _ auth.UserStore = userStore{}

const userColumns = `
	id, coalesce(organization_id, ''), email, password_hash,
	first_name, last_name, coalesce(unit_number, ''), role, status,
	onboarding_completed, created_at, updated_at`

func scanUser(row interface{ Scan(...any) error }) (*auth.User, error) {
	var u auth.User
	var role string
	err := row.Scan(
		&u.ID, &u.OrganizationID, &u.Email, &u.PasswordHash,
		&u.FirstName, &u.LastName, &u.UnitNumber, &role, &u.Status,
		&u.OnboardingCompleted, &u.CreatedAt, &u.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, auth.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	u.Role, err = auth.ParseRole(role)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (us userStore) Find(ctx context.Context, id string) (*auth.User, error) {
	row := us.db.QueryRowContext(ctx, `select `+userColumns+` from users where id=$1`, id)
	return scanUser(row)
}

func (us userStore) FindByEmail(ctx context.Context, email string) (*auth.User, error) {
	row := us.db.QueryRowContext(ctx, `select `+userColumns+` from users where lower(email)=lower($1)`, email)
	return scanUser(row)
}

func (us userStore) ListByOrganization(ctx context.Context, orgID string) ([]*auth.User, error) {
	rows, err := us.db.QueryContext(ctx, `
		select `+userColumns+`
		from users
		where organization_id=$1 and status=$2
		order by last_name, first_name
	`, orgID, auth.UserStatusActive)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []*auth.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

type refreshTokenStore struct {
	db *sql.DB
}

var _ auth.RefreshTokenStore = refreshTokenStore{}

func (rs refreshTokenStore) Create(ctx context.Context, tok *auth.RefreshToken) error {
	_, err := rs.db.ExecContext(ctx, `
		insert into refresh_tokens (id, user_id, token_hash, expires_at, created_at, revoked)
		values ($1, $2, $3, $4, $5, $6)
	`, tok.ID, tok.UserID, tok.TokenHash, tok.ExpiresAt, tok.CreatedAt, tok.Revoked)
	if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrUniqueViolation {
		return auth.ErrInvalidInput
	}
	return err
}

func (rs refreshTokenStore) Find(ctx context.Context, id string) (*auth.RefreshToken, error) {
	var tok auth.RefreshToken
	err := rs.db.QueryRowContext(ctx, `
		select id, user_id, token_hash, expires_at, created_at, revoked
		from refresh_tokens where id=$1
	`, id).Scan(&tok.ID, &tok.UserID, &tok.TokenHash, &tok.ExpiresAt, &tok.CreatedAt, &tok.Revoked)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, auth.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &tok, nil
}

func (rs refreshTokenStore) MarkRevoked(ctx context.Context, id string) error {
	res, err := rs.db.ExecContext(ctx, `update refresh_tokens set revoked=true where id=$1`, id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return auth.ErrNotFound
	}
	return nil
}

func (rs refreshTokenStore) MarkRevokedByUser(ctx context.Context, userID string) error {
	_, err := rs.db.ExecContext(ctx, `update refresh_tokens set revoked=true where user_id=$1 and not revoked`, userID)
	return err
}
