// Package community holds the organization-scoped resident-facing domain:
// announcements and the directory views built over them.
package community

import (
	"errors"
	"strings"
	"time"
)

var (
	ErrNotFound     = errors.New("community: not found")
	ErrInvalidInput = errors.New("community: invalid input")
	ErrDuplicate    = errors.New("community: duplicate entry")
)

// Announcement is a board or admin post visible to every member of one
// organization. It never crosses organization boundaries.
type Announcement struct {
	ID             string    `json:"id"`
	OrganizationID string    `json:"organization_id"`
	AuthorID       string    `json:"author_id"`
	AuthorName     string    `json:"author_name"`
	Title          string    `json:"title"`
	Body           string    `json:"body"`
	Category       string    `json:"category"`
	Pinned         bool      `json:"pinned"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Categories accepted on creation. Anything else is a validation error.
var announcementCategories = map[string]bool{
	"general":     true,
	"maintenance": true,
	"event":       true,
	"urgent":      true,
}

// NewAnnouncementInput is the caller-supplied part of an announcement.
type NewAnnouncementInput struct {
	Title    string `json:"title"`
	Body     string `json:"body"`
	Category string `json:"category"`
	Pinned   bool   `json:"pinned"`
}

// Validate normalizes and checks the input in place.
func (in *NewAnnouncementInput) Validate() error {
	in.Title = strings.TrimSpace(in.Title)
	in.Body = strings.TrimSpace(in.Body)
	in.Category = strings.ToLower(strings.TrimSpace(in.Category))
	if in.Category == "" {
		in.Category = "general"
	}
	switch {
	case in.Title == "":
		return errors.New("community: title is required")
	case len(in.Title) > 200:
		return errors.New("community: title exceeds 200 characters")
	case in.Body == "":
		return errors.New("community: body is required")
	case len(in.Body) > 10000:
		return errors.New("community: body exceeds 10000 characters")
	case !announcementCategories[in.Category]:
		return errors.New("community: unknown category")
	}
	return nil
}
