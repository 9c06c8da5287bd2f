package pg

import (
	"context"
	"database/sql"
	"errors"

	"loomos.org/internal/community"
)

// Announcements returns the announcement sub-store.
func (s *Store) Announcements() community.AnnouncementStore { return announcementStore{db: s.db} }

type announcementStore struct {
	db *sql.DB
}

var _ community.AnnouncementStore = announcementStore{}

const announcementColumns = `
	a.id, a.organization_id, a.author_id,
	coalesce(u.first_name || ' ' || u.last_name, ''),
	a.title, a.body, a.category, a.pinned, a.created_at, a.updated_at`

func scanAnnouncement(row interface{ Scan(...any) error }) (community.Announcement, error) {
	var a community.Announcement
	err := row.Scan(
		&a.ID, &a.OrganizationID, &a.AuthorID, &a.AuthorName,
		&a.Title, &a.Body, &a.Category, &a.Pinned, &a.CreatedAt, &a.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return community.Announcement{}, community.ErrNotFound
	}
	return a, err
}

func (as announcementStore) Create(ctx context.Context, a community.Announcement) error {
	_, err := as.db.ExecContext(ctx, `
		insert into announcements (id, organization_id, author_id, title, body, category, pinned, created_at, updated_at)
		values ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, a.ID, a.OrganizationID, a.AuthorID, a.Title, a.Body, a.Category, a.Pinned, a.CreatedAt, a.UpdatedAt)
	if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrUniqueViolation {
		return community.ErrDuplicate
	}
	return err
}

func (as announcementStore) ListByOrganization(ctx context.Context, orgID string, limit int) ([]community.Announcement, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	rows, err := as.db.QueryContext(ctx, `
		select `+announcementColumns+`
		from announcements a
		left join users u on u.id = a.author_id
		where a.organization_id = $1
		order by a.pinned desc, a.created_at desc
		limit $2
	`, orgID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []community.Announcement
	for rows.Next() {
		a, err := scanAnnouncement(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (as announcementStore) Find(ctx context.Context, orgID, id string) (community.Announcement, error) {
	row := as.db.QueryRowContext(ctx, `
		select `+announcementColumns+`
		from announcements a
		left join users u on u.id = a.author_id
		where a.organization_id = $1 and a.id = $2
	`, orgID, id)
	return scanAnnouncement(row)
}
