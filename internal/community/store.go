package community

import "context"

// AnnouncementStore persists announcements. Every method is scoped by
// organization id; there is deliberately no cross-organization listing.
type AnnouncementStore interface {
	Create(ctx context.Context, a Announcement) error
	ListByOrganization(ctx context.Context, orgID string, limit int) ([]Announcement, error)
	Find(ctx context.Context, orgID, id string) (Announcement, error)
}
