// Package httpapi is the HTTP surface of loomos-api. Route handlers carry no
// session or role logic of their own; every protected route is composed
// through the gateway pipeline at registration time.
package httpapi

import (
	"context"
	"net/http"

	"loomos.org/internal/auth"
	"loomos.org/internal/community"
	"loomos.org/internal/config"
	"loomos.org/internal/gateway"
	"loomos.org/internal/obs"
	"loomos.org/internal/stream"
	"loomos.org/internal/tenant"
)

// ReadyProbe reports backend readiness for /readyz.
type ReadyProbe struct {
	Pinger interface {
		Ping(ctx context.Context) error
	}
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.Pinger == nil {
		return nil
	}
	return rp.Pinger.Ping(ctx)
}

// Deps bundles the collaborators the API routes over.
type Deps struct {
	Pipeline      *gateway.Pipeline
	Sessions      *auth.Service
	Users         auth.UserStore
	RefreshTokens auth.RefreshTokenStore
	Organizations tenant.AdminStore
	Announcements community.AnnouncementStore
	Revoker       auth.Revoker
	Stream        *stream.Stream
	PlanDefaults  config.PlanDefaults
	Ready         ReadyProbe
	Version       string
	CookieSecure  bool

	// Zero values fall back to the built-in limits.
	RateBurst     int
	RatePerSecond int
	MaxBodyBytes  int64
}

type API struct {
	mux  *http.ServeMux
	deps Deps
}

func New(deps Deps) *API {
	a := &API{mux: http.NewServeMux(), deps: deps}
	gw := deps.Pipeline

	// health/ready/info
	a.mux.HandleFunc("GET /healthz", a.Healthz)
	a.mux.HandleFunc("GET /readyz", a.Ready)
	a.mux.HandleFunc("GET /v1/info", a.Info)

	// Prometheus metrics
	a.mux.Handle("GET /metrics", obs.Handler())

	// session lifecycle; login and refresh are the only open routes
	a.mux.HandleFunc("POST /v1/auth/login", a.Login)
	a.mux.HandleFunc("POST /v1/auth/refresh", a.Refresh)
	a.mux.Handle("POST /v1/auth/logout", gw.WrapFunc(gateway.AnyAuthenticated.Platform(), a.Logout))
	a.mux.Handle("GET /v1/me", gw.WrapFunc(gateway.AnyAuthenticated.Platform(), a.Me))

	// organization-scoped routes
	a.mux.Handle("GET /v1/directory/residents", gw.WrapFunc(gateway.AnyAuthenticated, a.ListResidents))
	a.mux.Handle("GET /v1/announcements", gw.WrapFunc(gateway.AnyAuthenticated, a.ListAnnouncements))
	a.mux.Handle("POST /v1/announcements", gw.WrapFunc(gateway.AdminOrAbove, a.CreateAnnouncement))
	a.mux.Handle("GET /v1/announcements/stream", gw.WrapFunc(gateway.AnyAuthenticated, a.StreamAnnouncements))
	a.mux.Handle("GET /v1/org/settings", gw.WrapFunc(gateway.AdminOrAbove, a.GetOrgSettings))
	a.mux.Handle("PATCH /v1/org/settings", gw.WrapFunc(gateway.AdminOrAbove, a.UpdateOrgSettings))

	// platform operator surface; no tenant resolution
	a.mux.Handle("GET /v1/platform/organizations", gw.WrapFunc(gateway.SuperAdminOnly, a.ListOrganizations))
	a.mux.Handle("POST /v1/platform/organizations/{id}/suspend", gw.WrapFunc(gateway.SuperAdminOnly, a.SuspendOrganization))
	a.mux.Handle("POST /v1/platform/organizations/{id}/reinstate", gw.WrapFunc(gateway.SuperAdminOnly, a.ReinstateOrganization))

	a.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	return a
}

// Handler returns the fully wrapped handler chain for the server.
func (a *API) Handler() http.Handler {
	maxBody := a.deps.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = 1 << 20
	}
	burst, perSecond := a.deps.RateBurst, a.deps.RatePerSecond
	if burst <= 0 {
		burst = 20
	}
	if perSecond <= 0 {
		perSecond = 10
	}

	var h http.Handler = a.mux
	h = MaxBodyBytes(h, maxBody)
	h = RateLimit(h, burst, perSecond)
	h = CORS(h)
	h = SecurityHeaders(h)
	h = LoggingJSON(h)
	h = RequestID(h)
	return obs.Instrument(h)
}
