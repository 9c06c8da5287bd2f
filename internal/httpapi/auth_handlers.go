package httpapi

import (
	"errors"
	"net/http"
	"time"

	"loomos.org/internal/audit"
	"loomos.org/internal/auth"
	"loomos.org/internal/gateway"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type sessionResponse struct {
	AccessToken      string       `json:"access_token"`
	RefreshToken     string       `json:"refresh_token"`
	AccessExpiresAt  time.Time    `json:"access_expires_at"`
	RefreshExpiresAt time.Time    `json:"refresh_expires_at"`
	User             identityView `json:"user"`
}

type identityView struct {
	ID                  string    `json:"id"`
	Email               string    `json:"email"`
	Role                auth.Role `json:"role"`
	OrganizationID      string    `json:"organization_id,omitempty"`
	OnboardingCompleted bool      `json:"onboarding_completed"`
}

func viewIdentity(id auth.Identity) identityView {
	return identityView{
		ID:                  id.UserID,
		Email:               id.Email,
		Role:                id.Role,
		OrganizationID:      id.OrganizationID,
		OnboardingCompleted: id.OnboardingCompleted,
	}
}

func (a *API) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, r, "malformed request body")
		return
	}
	pair, identity, err := a.deps.Sessions.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrUnauthorized) {
			gateway.WriteError(w, r, gateway.CodeUnauthenticated, "invalid credentials")
			return
		}
		gateway.WriteError(w, r, gateway.CodeInternal, "login failed")
		return
	}
	_ = audit.LogEvent(r.Context(), "auth.login", map[string]any{
		"user_id":         identity.UserID,
		"organization_id": identity.OrganizationID,
	})
	a.setSessionCookie(w, pair)
	writeJSON(w, http.StatusOK, sessionResponse{
		AccessToken:      pair.AccessToken,
		RefreshToken:     pair.RefreshToken,
		AccessExpiresAt:  pair.AccessExpiresAt,
		RefreshExpiresAt: pair.RefreshExpiresAt,
		User:             viewIdentity(identity),
	})
}

func (a *API) Refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := decodeJSON(r, &req); err != nil || req.RefreshToken == "" {
		badRequest(w, r, "refresh_token is required")
		return
	}
	pair, identity, err := a.deps.Sessions.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		if errors.Is(err, auth.ErrUnauthorized) || errors.Is(err, auth.ErrInvalidToken) {
			gateway.WriteError(w, r, gateway.CodeUnauthenticated, "invalid refresh token")
			return
		}
		gateway.WriteError(w, r, gateway.CodeInternal, "refresh failed")
		return
	}
	a.setSessionCookie(w, pair)
	writeJSON(w, http.StatusOK, sessionResponse{
		AccessToken:      pair.AccessToken,
		RefreshToken:     pair.RefreshToken,
		AccessExpiresAt:  pair.AccessExpiresAt,
		RefreshExpiresAt: pair.RefreshExpiresAt,
		User:             viewIdentity(identity),
	})
}

type logoutRequest struct {
	RefreshToken string `json:"refresh_token"`
}

func (a *API) Logout(w http.ResponseWriter, r *http.Request) {
	session, ok := auth.SessionFromContext(r.Context())
	if !ok {
		gateway.WriteError(w, r, gateway.CodeUnauthenticated, "no active session")
		return
	}
	var req logoutRequest
	_ = decodeJSON(r, &req) // body is optional; logout still kills the access token

	if err := a.deps.Sessions.Logout(r.Context(), session, req.RefreshToken); err != nil {
		gateway.WriteError(w, r, gateway.CodeInternal, "logout failed")
		return
	}
	_ = audit.LogEvent(r.Context(), "auth.logout", nil)
	a.clearSessionCookie(w)
	writeJSON(w, http.StatusOK, map[string]any{"status": "logged_out"})
}

func (a *API) Me(w http.ResponseWriter, r *http.Request) {
	identity, _ := auth.IdentityFromContext(r.Context())

	// Re-read the profile so the response reflects current state, not claims.
	user, err := a.deps.Users.Find(r.Context(), identity.UserID)
	if err != nil {
		if errors.Is(err, auth.ErrNotFound) {
			gateway.WriteError(w, r, gateway.CodeUnauthenticated, "account no longer exists")
			return
		}
		gateway.WriteError(w, r, gateway.CodeInternal, "profile lookup failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"id":                   user.ID,
		"email":                user.Email,
		"first_name":           user.FirstName,
		"last_name":            user.LastName,
		"unit_number":          user.UnitNumber,
		"role":                 user.Role,
		"organization_id":      user.OrganizationID,
		"onboarding_completed": user.OnboardingCompleted,
	})
}

func (a *API) setSessionCookie(w http.ResponseWriter, pair auth.TokenPair) {
	http.SetCookie(w, &http.Cookie{
		Name:     gateway.SessionCookie,
		Value:    pair.AccessToken,
		Path:     "/",
		Expires:  pair.AccessExpiresAt,
		HttpOnly: true,
		Secure:   a.deps.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (a *API) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     gateway.SessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   a.deps.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}
