package pg

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"

	"loomos.org/internal/auth"
	"loomos.org/internal/community"
	"loomos.org/internal/tenant"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return NewWithDB(db), mock
}

func userRow() *sqlmock.Rows {
	now := time.Now().UTC()
	return sqlmock.NewRows([]string{
		"id", "organization_id", "email", "password_hash",
		"first_name", "last_name", "unit_number", "role", "status",
		"onboarding_completed", "created_at", "updated_at",
	}).AddRow("u1", "acme", "jo@acme.test", "$2a$10$hash", "Jo", "Kim", "12B", "RESIDENT", "active", true, now, now)
}

func TestFindUserByEmail(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectQuery("select(.|\n)*from users where lower\\(email\\)=lower").
		WithArgs("jo@acme.test").
		WillReturnRows(userRow())

	u, err := store.Users().FindByEmail(context.Background(), "jo@acme.test")
	if err != nil {
		t.Fatalf("FindByEmail: %v", err)
	}
	if u.ID != "u1" || u.Role != auth.RoleResident || u.OrganizationID != "acme" {
		t.Fatalf("unexpected user: %+v", u)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestFindUserNotFound(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectQuery("select(.|\n)*from users where id").
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	if _, err := store.Users().Find(context.Background(), "missing"); !errors.Is(err, auth.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestListUsersByOrganizationFiltersActive(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectQuery("select(.|\n)*from users(.|\n)*where organization_id").
		WithArgs("acme", auth.UserStatusActive).
		WillReturnRows(userRow())

	users, err := store.Users().ListByOrganization(context.Background(), "acme")
	if err != nil {
		t.Fatalf("ListByOrganization: %v", err)
	}
	if len(users) != 1 || users[0].Email != "jo@acme.test" {
		t.Fatalf("unexpected result: %+v", users)
	}
}

func TestRefreshTokenLifecycle(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Now().UTC()
	tok := &auth.RefreshToken{
		ID: "rt1", UserID: "u1", TokenHash: "abc",
		ExpiresAt: now.Add(24 * time.Hour), CreatedAt: now,
	}

	mock.ExpectExec("insert into refresh_tokens").
		WithArgs(tok.ID, tok.UserID, tok.TokenHash, tok.ExpiresAt, tok.CreatedAt, false).
		WillReturnResult(sqlmock.NewResult(1, 1))
	if err := store.RefreshTokens().Create(context.Background(), tok); err != nil {
		t.Fatalf("Create: %v", err)
	}

	mock.ExpectQuery("select id, user_id, token_hash").
		WithArgs("rt1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "token_hash", "expires_at", "created_at", "revoked"}).
			AddRow("rt1", "u1", "abc", tok.ExpiresAt, tok.CreatedAt, false))
	got, err := store.RefreshTokens().Find(context.Background(), "rt1")
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if got.TokenHash != "abc" || got.Revoked {
		t.Fatalf("unexpected token: %+v", got)
	}

	mock.ExpectExec("update refresh_tokens set revoked=true where id").
		WithArgs("rt1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	if err := store.RefreshTokens().MarkRevoked(context.Background(), "rt1"); err != nil {
		t.Fatalf("MarkRevoked: %v", err)
	}

	mock.ExpectExec("update refresh_tokens set revoked=true where id").
		WithArgs("gone").
		WillReturnResult(sqlmock.NewResult(0, 0))
	if err := store.RefreshTokens().MarkRevoked(context.Background(), "gone"); !errors.Is(err, auth.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func orgRows() *sqlmock.Rows {
	now := time.Now().UTC()
	return sqlmock.NewRows([]string{
		"id", "name", "slug", "subdomain", "custom_domain",
		"plan_type", "features", "active", "suspended", "created_at", "updated_at",
	}).AddRow("acme", "Acme Commons", "acme", "acme", "", "standard", []byte(`{"announcements":true}`), true, false, now, now)
}

func TestFindOrganizationBySubdomain(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectQuery("select(.|\n)*from organizations(.|\n)*where subdomain").
		WithArgs("acme").
		WillReturnRows(orgRows())

	org, err := store.Organizations().FindBySubdomain(context.Background(), "ACME")
	if err != nil {
		t.Fatalf("FindBySubdomain: %v", err)
	}
	if org.ID != "acme" || !org.Features["announcements"] {
		t.Fatalf("unexpected organization: %+v", org)
	}
}

func TestFindOrganizationByCustomDomain(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectQuery("select(.|\n)*from organizations(.|\n)*where lower\\(custom_domain\\)").
		WithArgs("montrecott.com").
		WillReturnRows(orgRows())

	org, err := store.Organizations().FindByCustomDomain(context.Background(), "Montrecott.com")
	if err != nil {
		t.Fatalf("FindByCustomDomain: %v", err)
	}
	if org.ID != "acme" {
		t.Fatalf("unexpected organization: %+v", org)
	}
}

func TestFindOrganizationNotFound(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectQuery("select(.|\n)*from organizations where id").
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	if _, err := store.Organizations().FindByID(context.Background(), "missing"); !errors.Is(err, tenant.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestUpdateOrganizationSubdomainConflict(t *testing.T) {
	store, mock := newMockStore(t)
	sub := "taken"
	mock.ExpectQuery("update organizations set").
		WillReturnError(&pgconn.PgError{Code: pgErrUniqueViolation})

	_, err := store.Organizations().Update(context.Background(), "acme", tenant.OrganizationUpdate{Subdomain: &sub})
	if !errors.Is(err, tenant.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
}

func TestSetSuspended(t *testing.T) {
	store, mock := newMockStore(t)
	rows := orgRows()
	mock.ExpectQuery("update organizations set suspended").
		WithArgs("acme", true).
		WillReturnRows(rows)

	org, err := store.Organizations().SetSuspended(context.Background(), "acme", true)
	if err != nil {
		t.Fatalf("SetSuspended: %v", err)
	}
	if org.ID != "acme" {
		t.Fatalf("unexpected organization: %+v", org)
	}
}

func TestCreateAndListAnnouncements(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Now().UTC()
	a := community.Announcement{
		ID: "a1", OrganizationID: "acme", AuthorID: "u1",
		Title: "Pool closed", Body: "Maintenance on Friday.", Category: "maintenance",
		CreatedAt: now, UpdatedAt: now,
	}

	mock.ExpectExec("insert into announcements").
		WithArgs(a.ID, a.OrganizationID, a.AuthorID, a.Title, a.Body, a.Category, false, a.CreatedAt, a.UpdatedAt).
		WillReturnResult(sqlmock.NewResult(1, 1))
	if err := store.Announcements().Create(context.Background(), a); err != nil {
		t.Fatalf("Create: %v", err)
	}

	mock.ExpectQuery("select(.|\n)*from announcements a").
		WithArgs("acme", 50).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "organization_id", "author_id", "author_name",
			"title", "body", "category", "pinned", "created_at", "updated_at",
		}).AddRow("a1", "acme", "u1", "Jo Kim", "Pool closed", "Maintenance on Friday.", "maintenance", false, now, now))

	list, err := store.Announcements().ListByOrganization(context.Background(), "acme", 0)
	if err != nil {
		t.Fatalf("ListByOrganization: %v", err)
	}
	if len(list) != 1 || list[0].AuthorName != "Jo Kim" {
		t.Fatalf("unexpected list: %+v", list)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestCreateAnnouncementDuplicate(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectExec("insert into announcements").
		WillReturnError(&pgconn.PgError{Code: pgErrUniqueViolation})

	err := store.Announcements().Create(context.Background(), community.Announcement{ID: "a1"})
	if !errors.Is(err, community.ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}
}
