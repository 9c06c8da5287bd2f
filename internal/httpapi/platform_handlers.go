package httpapi

import (
	"errors"
	"net/http"
	"time"

	"loomos.org/internal/audit"
	"loomos.org/internal/gateway"
	"loomos.org/internal/tenant"
)

func (a *API) ListOrganizations(w http.ResponseWriter, r *http.Request) {
	orgs, err := a.deps.Organizations.List(r.Context())
	if err != nil {
		gateway.WriteError(w, r, gateway.CodeInternal, "organization listing failed")
		return
	}
	if orgs == nil {
		orgs = []*tenant.Organization{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"organizations": orgs})
}

func (a *API) SuspendOrganization(w http.ResponseWriter, r *http.Request) {
	a.setSuspended(w, r, true)
}

func (a *API) ReinstateOrganization(w http.ResponseWriter, r *http.Request) {
	a.setSuspended(w, r, false)
}

func (a *API) setSuspended(w http.ResponseWriter, r *http.Request, suspended bool) {
	id := r.PathValue("id")
	if id == "" {
		badRequest(w, r, "organization id is required")
		return
	}
	org, err := a.deps.Organizations.SetSuspended(r.Context(), id, suspended)
	if err != nil {
		if errors.Is(err, tenant.ErrNotFound) {
			gateway.WriteError(w, r, gateway.CodeTenantNotFound, "organization not found")
			return
		}
		gateway.WriteError(w, r, gateway.CodeInternal, "suspension update failed")
		return
	}

	event := "org.reinstated"
	if suspended {
		event = "org.suspended"
		// Force every member to re-authenticate; live access tokens minted
		// before this instant stop verifying.
		if a.deps.Revoker != nil {
			if err := a.deps.Revoker.RevokeOrganizationBefore(r.Context(), id, time.Now().UTC()); err != nil {
				gateway.WriteError(w, r, gateway.CodeInternal, "session revocation failed")
				return
			}
		}
		// Also revoke persisted refresh tokens so suspended members cannot
		// mint fresh access tokens.
		if a.deps.RefreshTokens != nil {
			members, err := a.deps.Users.ListByOrganization(r.Context(), id)
			if err != nil {
				gateway.WriteError(w, r, gateway.CodeInternal, "session revocation failed")
				return
			}
			for _, member := range members {
				if err := a.deps.RefreshTokens.MarkRevokedByUser(r.Context(), member.ID); err != nil {
					gateway.WriteError(w, r, gateway.CodeInternal, "session revocation failed")
					return
				}
			}
		}
	}
	_ = audit.LogEvent(r.Context(), event, map[string]any{
		"target_organization_id": id,
	})
	writeJSON(w, http.StatusOK, org)
}
