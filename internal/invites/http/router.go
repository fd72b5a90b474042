package http

import (
	"log/slog"
	"net/http"
	"time"

	_ "github.com/aussiebroadwan/realminvite/api/invites" // Swagger docs
	"github.com/aussiebroadwan/realminvite/internal/invites/metrics"
	"github.com/aussiebroadwan/realminvite/internal/invites/service"
	"github.com/aussiebroadwan/realminvite/internal/invites/store"
	"github.com/aussiebroadwan/realminvite/pkg/httpx"
	"github.com/aussiebroadwan/realminvite/pkg/jwtx"
	"github.com/aussiebroadwan/realminvite/pkg/slogx"

	httpSwagger "github.com/swaggo/http-swagger"
)

// Operator scopes.
const (
	ScopeInvitesRead  = "invites:read"
	ScopeInvitesWrite = "invites:write"
)

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	verifier     jwtx.Verifier
	buildVersion string
	startTime    time.Time
	logger       *slog.Logger
	store        store.Store
	metrics      *metrics.Metrics

	InviteService     *service.InviteService
	RedemptionService *service.RedemptionService
	Roles             RoleLister
}

// NewRouter builds a router. m may be nil, in which case /metrics is not
// served and requests are not counted.
func NewRouter(
	verifier jwtx.Verifier,
	buildVersion string,
	st store.Store,
	m *metrics.Metrics,
	logger *slog.Logger,
) *Router {
	r := &Router{
		Mux:          http.NewServeMux(),
		verifier:     verifier,
		buildVersion: buildVersion,
		startTime:    time.Now(),
		store:        st,
		metrics:      m,
		logger:       logger,
	}

	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger, "/livez", "/readyz", "/metrics"),
	}
	// Reads the pattern the mux stores on the request, so it has to sit
	// directly in front of the mux.
	if m != nil {
		r.middlewares = append(r.middlewares, m.Middleware)
	}

	return r
}

func (r *Router) ApplyRoutes() {
	r.registerInvites()
	r.registerRedemption()
	r.registerRoles()
	r.registerSystem()

	r.Mux.Handle("/swagger/", httpSwagger.Handler())
}

// ServeHTTP implements http.Handler for Router and applies the global middleware chain.
//
//	@title			Realm Invite Service API
//	@version		0.1.0
//	@description	Invite tokens for onboarding people into identity service realms.
//	@description
//	@description				Operators mint invites with a bearer token. Invitees validate and redeem them without one.
//
//	@contact.name				AussieBroadWAN Team
//	@contact.url				https://github.com/aussiebroadwan/realminvite
//
//	@license.name				MIT
//	@license.url				https://opensource.org/licenses/MIT
//
//	@host						localhost:8080
//	@BasePath					/
//
//	@schemes					http https
//
//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@description				Operator JWT. Format: "Bearer {token}".
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

func (r *Router) secured(h http.Handler, scope string, limit httpx.RateLimitConfig) http.Handler {
	return httpx.Chain(h,
		httpx.AuthnMiddleware(r.verifier),
		httpx.RequireAnyScope(scope),
		httpx.RateLimitByUser(limit),
	)
}

func (r *Router) registerInvites() {
	h := &InvitesHandler{InviteService: r.InviteService}

	r.Mux.Handle("POST /v1/realms/{realm}/invites",
		r.secured(http.HandlerFunc(h.HandleCreate), ScopeInvitesWrite, httpx.ModerateLimit))
	r.Mux.Handle("GET /v1/invites",
		r.secured(http.HandlerFunc(h.HandleList), ScopeInvitesRead, httpx.LenientLimit))
	r.Mux.Handle("GET /v1/invites/{id}",
		r.secured(http.HandlerFunc(h.HandleGet), ScopeInvitesRead, httpx.LenientLimit))
	r.Mux.Handle("POST /v1/invites/{id}/revoke",
		r.secured(http.HandlerFunc(h.HandleRevoke), ScopeInvitesWrite, httpx.ModerateLimit))
	r.Mux.Handle("POST /v1/invites/{id}/resend",
		r.secured(http.HandlerFunc(h.HandleResend), ScopeInvitesWrite, httpx.ModerateLimit))
	r.Mux.Handle("DELETE /v1/invites/{id}",
		r.secured(http.HandlerFunc(h.HandleDelete), ScopeInvitesWrite, httpx.ModerateLimit))
}

func (r *Router) registerRedemption() {
	h := &RedeemHandler{
		InviteService:     r.InviteService,
		RedemptionService: r.RedemptionService,
	}

	// Public: strict limit per IP and realm, the only place tokens can be guessed.
	r.Mux.Handle("POST /v1/realms/{realm}/invites/validate",
		httpx.Chain(http.HandlerFunc(h.HandleValidate),
			httpx.RateLimitByIPAndPathValue(httpx.StrictLimit, "realm"),
		),
	)
	r.Mux.Handle("POST /v1/realms/{realm}/invites/redeem",
		httpx.Chain(http.HandlerFunc(h.HandleRedeem),
			httpx.RateLimitByIPAndPathValue(httpx.StrictLimit, "realm"),
		),
	)
}

func (r *Router) registerRoles() {
	if r.Roles == nil {
		return
	}
	r.Mux.Handle("GET /v1/realms/{realm}/roles",
		r.secured(&RolesHandler{Roles: r.Roles}, ScopeInvitesRead, httpx.LenientLimit))
}

func (r *Router) registerSystem() {
	r.Mux.Handle("GET /livez",
		httpx.Chain(LivezHandler(r.startTime, r.buildVersion),
			httpx.RateLimitByIP(httpx.LenientLimit),
		),
	)
	r.Mux.Handle("GET /readyz",
		httpx.Chain(ReadyzHandler(r.startTime, r.buildVersion, r.store),
			httpx.RateLimitByIP(httpx.LenientLimit),
		),
	)
	if r.metrics != nil {
		r.Mux.Handle("GET /metrics", r.metrics.Handler())
	}
}
