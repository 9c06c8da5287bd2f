package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"loomos.org/internal/audit"
	"loomos.org/internal/auth"
	"loomos.org/internal/community"
	"loomos.org/internal/gateway"
	"loomos.org/internal/ids"
	"loomos.org/internal/stream"
	"loomos.org/internal/tenant"
)

type residentView struct {
	ID                  string `json:"id"`
	FirstName           string `json:"first_name"`
	LastName            string `json:"last_name"`
	UnitNumber          string `json:"unit_number,omitempty"`
	Role                string `json:"role"`
	OnboardingCompleted bool   `json:"onboarding_completed"`
}

func (a *API) ListResidents(w http.ResponseWriter, r *http.Request) {
	org, _ := tenant.OrganizationFromContext(r.Context())
	if org == nil {
		gateway.WriteError(w, r, gateway.CodeTenantNotFound, "no organization in scope")
		return
	}
	users, err := a.deps.Users.ListByOrganization(r.Context(), org.ID)
	if err != nil {
		gateway.WriteError(w, r, gateway.CodeInternal, "directory lookup failed")
		return
	}
	out := make([]residentView, 0, len(users))
	for _, u := range users {
		out = append(out, residentView{
			ID:                  u.ID,
			FirstName:           u.FirstName,
			LastName:            u.LastName,
			UnitNumber:          u.UnitNumber,
			Role:                string(u.Role),
			OnboardingCompleted: u.OnboardingCompleted,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"residents": out})
}

func (a *API) ListAnnouncements(w http.ResponseWriter, r *http.Request) {
	org, _ := tenant.OrganizationFromContext(r.Context())
	if org == nil {
		gateway.WriteError(w, r, gateway.CodeTenantNotFound, "no organization in scope")
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	list, err := a.deps.Announcements.ListByOrganization(r.Context(), org.ID, limit)
	if err != nil {
		gateway.WriteError(w, r, gateway.CodeInternal, "announcement lookup failed")
		return
	}
	if list == nil {
		list = []community.Announcement{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"announcements": list})
}

func (a *API) CreateAnnouncement(w http.ResponseWriter, r *http.Request) {
	org, _ := tenant.OrganizationFromContext(r.Context())
	identity, _ := auth.IdentityFromContext(r.Context())
	if org == nil {
		gateway.WriteError(w, r, gateway.CodeTenantNotFound, "no organization in scope")
		return
	}
	var in community.NewAnnouncementInput
	if err := decodeJSON(r, &in); err != nil {
		badRequest(w, r, "malformed request body")
		return
	}
	if err := in.Validate(); err != nil {
		gateway.WriteRejection(w, r, gateway.RejectValidation("invalid announcement", []gateway.FieldError{
			{Field: "announcement", Message: err.Error()},
		}))
		return
	}

	now := time.Now().UTC()
	ann := community.Announcement{
		ID:             ids.New(),
		OrganizationID: org.ID,
		AuthorID:       identity.UserID,
		Title:          in.Title,
		Body:           in.Body,
		Category:       in.Category,
		Pinned:         in.Pinned,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := a.deps.Announcements.Create(r.Context(), ann); err != nil {
		if errors.Is(err, community.ErrDuplicate) {
			gateway.WriteError(w, r, gateway.CodeDuplicateEntry, "announcement already exists")
			return
		}
		gateway.WriteError(w, r, gateway.CodeInternal, "announcement create failed")
		return
	}
	_ = audit.LogEvent(r.Context(), "announcement.created", map[string]any{
		"announcement_id": ann.ID,
	})
	if a.deps.Stream != nil {
		a.deps.Stream.Publish(stream.Event{
			Type:           stream.EventAnnouncementCreated,
			OrganizationID: org.ID,
			ActorID:        identity.UserID,
			SubjectID:      ann.ID,
			Title:          ann.Title,
		})
	}
	writeJSON(w, http.StatusCreated, ann)
}

// StreamAnnouncements handles Server-Sent Events for the organization's live
// activity feed.
func (a *API) StreamAnnouncements(w http.ResponseWriter, r *http.Request) {
	org, _ := tenant.OrganizationFromContext(r.Context())
	if org == nil {
		gateway.WriteError(w, r, gateway.CodeTenantNotFound, "no organization in scope")
		return
	}
	if a.deps.Stream == nil {
		gateway.WriteError(w, r, gateway.CodeInternal, "streaming disabled")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	flusher, ok := w.(http.Flusher)
	if !ok {
		gateway.WriteError(w, r, gateway.CodeInternal, "streaming unsupported")
		return
	}

	// Lift the server write timeout for this response; a long-lived stream
	// must not be severed after the first deadline.
	_ = http.NewResponseController(w).SetWriteDeadline(time.Time{})

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	ch := a.deps.Stream.Subscribe(ctx, org.ID)

	// Send an initial comment to establish the stream
	_, _ = w.Write([]byte(": stream started\n\n"))
	flusher.Flush()

	for event := range ch {
		payload, err := json.Marshal(event)
		if err != nil {
			continue
		}
		_, _ = w.Write([]byte("data: "))
		_, _ = w.Write(payload)
		_, _ = w.Write([]byte("\n\n"))
		flusher.Flush()
	}
}
