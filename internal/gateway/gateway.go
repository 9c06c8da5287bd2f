// Package gateway composes identity resolution, tenant resolution and the
// role-authorization guard into one reusable request pipeline. Business
// handlers never perform their own session or role checks; they run only
// after the pipeline has injected a verified identity (and, for
// organization-scoped routes, a live organization) into the request context.
package gateway

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"loomos.org/internal/audit"
	"loomos.org/internal/auth"
	"loomos.org/internal/obs"
	"loomos.org/internal/tenant"
)

const (
	authorizationHeader = "Authorization"
	bearerPrefix        = "Bearer "

	// SessionCookie is the fallback token carrier for browser clients.
	SessionCookie = "loomos_session"
)

// SessionVerifier is the session-verification collaborator (internal/auth).
type SessionVerifier interface {
	VerifyAccess(ctx context.Context, token string) (auth.Session, error)
}

// TenantResolver is the organization-resolution collaborator (internal/tenant).
type TenantResolver interface {
	Resolve(ctx context.Context, host string, identity auth.Identity) (*tenant.Organization, error)
}

// Pipeline runs the three gateway stages strictly in order and
// short-circuits on the first rejection. It holds no per-request state.
type Pipeline struct {
	sessions SessionVerifier
	tenants  TenantResolver
}

// NewPipeline constructs the gateway over its two suspending collaborators.
func NewPipeline(sessions SessionVerifier, tenants TenantResolver) (*Pipeline, error) {
	if sessions == nil {
		return nil, errors.New("gateway: session verifier is required")
	}
	if tenants == nil {
		return nil, errors.New("gateway: tenant resolver is required")
	}
	return &Pipeline{sessions: sessions, tenants: tenants}, nil
}

// Wrap composes the pipeline in front of next for the given requirement.
// On success next runs with identity, session and organization attached to
// the request context; on rejection next is never invoked and the response
// is the normalized error body.
func (p *Pipeline) Wrap(req Requirement, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer p.recoverPanic(w, r)

		session, rej := p.resolveIdentity(r)
		if rej != nil {
			p.reject(w, r, "identity", rej)
			return
		}
		identity := session.Identity
		ctx := auth.ContextWithIdentity(r.Context(), identity)
		ctx = auth.ContextWithSession(ctx, session)

		org, rej := p.resolveTenant(ctx, r, req, identity)
		if rej != nil {
			p.reject(w, r.WithContext(ctx), "tenant", rej)
			return
		}
		if org != nil {
			ctx = tenant.ContextWithOrganization(ctx, org)
		}

		if rej := Authorize(identity, org, req); rej != nil {
			p.reject(w, r.WithContext(ctx), "authorize", rej)
			return
		}

		obs.ObserveGatewayOutcome("authorize", "OK")
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// WrapFunc is Wrap for plain handler functions.
func (p *Pipeline) WrapFunc(req Requirement, next http.HandlerFunc) http.Handler {
	return p.Wrap(req, next)
}

func (p *Pipeline) resolveIdentity(r *http.Request) (auth.Session, *Rejection) {
	token, err := extractToken(r)
	if err != nil {
		return auth.Session{}, Reject(CodeUnauthenticated, err.Error())
	}
	session, err := p.sessions.VerifyAccess(r.Context(), token)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidToken) {
			return auth.Session{}, Reject(CodeUnauthenticated, "invalid or expired session")
		}
		logInternal(r.Context(), "session verification failed", err)
		return auth.Session{}, Reject(CodeInternal, "authentication error")
	}
	return session, nil
}

func (p *Pipeline) resolveTenant(ctx context.Context, r *http.Request, req Requirement, identity auth.Identity) (*tenant.Organization, *Rejection) {
	if !req.NeedsTenant {
		return nil, nil
	}
	org, err := p.tenants.Resolve(ctx, r.Host, identity)
	if err == nil {
		return org, nil
	}
	// Break-glass: a platform operator proceeds with no tenant rather than
	// being locked out by tenant-level state.
	if identity.Role.IsSuperAdmin() {
		return nil, nil
	}
	switch {
	case errors.Is(err, tenant.ErrNotFound):
		return nil, Reject(CodeTenantNotFound, "organization not found")
	case errors.Is(err, tenant.ErrSuspended):
		return nil, Reject(CodeTenantSuspended, "organization is suspended")
	default:
		logInternal(ctx, "tenant resolution failed", err)
		return nil, Reject(CodeInternal, "tenant resolution error")
	}
}

// Authorize is the pure role-authorization guard. SUPER_ADMIN bypasses every
// check unconditionally, including tenant suspension.
func Authorize(identity auth.Identity, org *tenant.Organization, req Requirement) *Rejection {
	if identity.Role.IsSuperAdmin() {
		return nil
	}
	if org != nil && !org.Available() {
		return Reject(CodeTenantSuspended, "organization is suspended")
	}
	switch req.Access {
	case AccessAnyAuthenticated:
		return nil
	case AccessAdminOrAbove:
		if identity.Role.AtLeast(auth.RoleAdmin) {
			return nil
		}
	case AccessSuperAdminOnly:
		// Non-super-admin by definition here.
	}
	return Reject(CodeForbidden, "insufficient role")
}

func (p *Pipeline) reject(w http.ResponseWriter, r *http.Request, stage string, rej *Rejection) {
	obs.ObserveGatewayOutcome(stage, string(rej.Code))
	_ = audit.LogEvent(r.Context(), "gateway.rejected", map[string]any{
		"stage":  stage,
		"code":   string(rej.Code),
		"method": r.Method,
		"path":   r.URL.Path,
	})
	WriteRejection(w, r, rej)
}

func (p *Pipeline) recoverPanic(w http.ResponseWriter, r *http.Request) {
	rec := recover()
	if rec == nil {
		return
	}
	obs.LogRequest(map[string]any{
		"ts":         time.Now().UTC().Format(time.RFC3339Nano),
		"level":      "error",
		"msg":        "handler panic",
		"panic":      rec,
		"method":     r.Method,
		"path":       r.URL.Path,
		"request_id": obs.RequestIDFromContext(r.Context()),
	})
	obs.ObserveGatewayOutcome("handler", string(CodeInternal))
	WriteError(w, r, CodeInternal, "internal error")
}

func extractToken(r *http.Request) (string, error) {
	header := strings.TrimSpace(r.Header.Get(authorizationHeader))
	if header != "" {
		if !strings.HasPrefix(strings.ToLower(header), strings.ToLower(bearerPrefix)) {
			return "", errors.New("invalid authorization scheme")
		}
		token := strings.TrimSpace(header[len(bearerPrefix):])
		if token == "" {
			return "", errors.New("missing bearer token")
		}
		return token, nil
	}
	if cookie, err := r.Cookie(SessionCookie); err == nil && cookie.Value != "" {
		return cookie.Value, nil
	}
	return "", errors.New("missing session token")
}

// logInternal records the raw lower-layer error server-side only; the wire
// response for these cases is always a generic INTERNAL_ERROR body.
func logInternal(ctx context.Context, msg string, err error) {
	obs.LogRequest(map[string]any{
		"ts":         time.Now().UTC().Format(time.RFC3339Nano),
		"level":      "error",
		"msg":        msg,
		"error":      err.Error(),
		"request_id": obs.RequestIDFromContext(ctx),
	})
}
