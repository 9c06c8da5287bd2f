package httpapi

import (
	"errors"
	"net/http"
	"regexp"
	"strings"

	"loomos.org/internal/audit"
	"loomos.org/internal/auth"
	"loomos.org/internal/gateway"
	"loomos.org/internal/stream"
	"loomos.org/internal/tenant"
)

var subdomainPattern = regexp.MustCompile(`^[a-z0-9]([a-z0-9-]{0,61}[a-z0-9])?$`)

// Subdomains that can never be claimed by a tenant.
var reservedSubdomains = map[string]bool{
	"www": true, "api": true, "app": true, "admin": true, "platform": true,
}

func (a *API) GetOrgSettings(w http.ResponseWriter, r *http.Request) {
	org, _ := tenant.OrganizationFromContext(r.Context())
	if org == nil {
		gateway.WriteError(w, r, gateway.CodeTenantNotFound, "no organization in scope")
		return
	}
	if org.Features == nil {
		org.Features = a.deps.PlanDefaults.FeaturesFor(org.PlanType)
	}
	writeJSON(w, http.StatusOK, org)
}

type orgSettingsRequest struct {
	Name         *string         `json:"name"`
	Subdomain    *string         `json:"subdomain"`
	CustomDomain *string         `json:"custom_domain"`
	Features     map[string]bool `json:"features"`
}

func (settings *orgSettingsRequest) validate() []gateway.FieldError {
	var details []gateway.FieldError
	if settings.Name != nil && strings.TrimSpace(*settings.Name) == "" {
		details = append(details, gateway.FieldError{Field: "name", Message: "must not be empty"})
	}
	if settings.Subdomain != nil {
		sub := strings.ToLower(strings.TrimSpace(*settings.Subdomain))
		switch {
		case sub == "":
			// clearing the subdomain is allowed
		case !subdomainPattern.MatchString(sub):
			details = append(details, gateway.FieldError{Field: "subdomain", Message: "must be a valid DNS label"})
		case reservedSubdomains[sub]:
			details = append(details, gateway.FieldError{Field: "subdomain", Message: "is reserved"})
		}
	}
	return details
}

func (a *API) UpdateOrgSettings(w http.ResponseWriter, r *http.Request) {
	org, _ := tenant.OrganizationFromContext(r.Context())
	identity, _ := auth.IdentityFromContext(r.Context())
	if org == nil {
		gateway.WriteError(w, r, gateway.CodeTenantNotFound, "no organization in scope")
		return
	}
	var req orgSettingsRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, r, "malformed request body")
		return
	}
	if details := req.validate(); len(details) > 0 {
		gateway.WriteRejection(w, r, gateway.RejectValidation("invalid settings", details))
		return
	}

	updated, err := a.deps.Organizations.Update(r.Context(), org.ID, tenant.OrganizationUpdate{
		Name:         req.Name,
		Subdomain:    req.Subdomain,
		CustomDomain: req.CustomDomain,
		Features:     req.Features,
	})
	if err != nil {
		if errors.Is(err, tenant.ErrConflict) {
			gateway.WriteError(w, r, gateway.CodeDuplicateEntry, "subdomain or domain already in use")
			return
		}
		if errors.Is(err, tenant.ErrNotFound) {
			gateway.WriteError(w, r, gateway.CodeTenantNotFound, "organization not found")
			return
		}
		gateway.WriteError(w, r, gateway.CodeInternal, "settings update failed")
		return
	}
	_ = audit.LogEvent(r.Context(), "org.settings_updated", nil)
	if a.deps.Stream != nil {
		a.deps.Stream.Publish(stream.Event{
			Type:           stream.EventSettingsUpdated,
			OrganizationID: org.ID,
			ActorID:        identity.UserID,
		})
	}
	writeJSON(w, http.StatusOK, updated)
}
