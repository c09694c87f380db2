package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/veridianhq/tenancy/internal/tenancy/guard"
	"github.com/veridianhq/tenancy/internal/tenancy/service"
	"github.com/veridianhq/tenancy/internal/tenancy/store"
	"github.com/veridianhq/tenancy/pkg/httpx"
	"github.com/veridianhq/tenancy/pkg/jwtx"
	"github.com/veridianhq/tenancy/pkg/slogx"

	_ "github.com/veridianhq/tenancy/api/tenancy" // Swagger docs
	httpSwagger "github.com/swaggo/http-swagger"
)

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	sessions     *jwtx.Sessions
	buildVersion string
	startTime    time.Time
	logger       *slog.Logger

	store  store.Store
	guards *guard.Pipeline

	SessionService    *service.SessionService
	MFAService        *service.MFAService
	RedemptionService *service.RedemptionService
	TokenAdminService *service.TokenAdminService
}

func NewRouter(
	sessions *jwtx.Sessions,
	buildVersion string,
	st store.Store,
	guards *guard.Pipeline,
	logger *slog.Logger,
) *Router {
	r := &Router{
		Mux:          http.NewServeMux(),
		sessions:     sessions,
		buildVersion: buildVersion,
		startTime:    time.Now(),
		store:        st,
		guards:       guards,
		logger:       logger,
	}

	// Set default middleware chain
	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
		sessionMiddleware(r.sessions, r.store),
	}

	return r
}

func (r *Router) ApplyRoutes() {
	r.registerSessions()
	r.registerMFA()
	r.registerRedemption()
	r.registerTokenAdmin()
	r.registerTenants()
	r.registerProfile()
	r.registerSystem()

	r.Mux.Handle("/swagger/", httpSwagger.Handler())
}

// ServeHTTP implements http.Handler for Router and applies the global middleware chain.
//
//	@title			Veridian Tenancy Service API
//	@version		0.1.0
//	@description	Multi-tenant authorization and credential token redemption service.
//	@description
//	@description				Session tokens are EdDSA-signed JWTs issued by the sessions endpoint.
//
//	@contact.name				Veridian Platform Team
//	@contact.url				https://github.com/veridianhq/tenancy
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
//	@description				JWT session token. Format: "Bearer {token}".
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

func (r *Router) registerSessions() {
	h := &SessionHandler{SessionService: r.SessionService}

	// POST /sessions - strict rate limit by IP (password attempts)
	r.Mux.Handle("POST /v1/sessions",
		httpx.Chain(http.HandlerFunc(h.HandleLogin),
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)

	// POST /sessions/step-up - strict rate limit by IP (TOTP attempts)
	r.Mux.Handle("POST /v1/sessions/step-up",
		httpx.Chain(http.HandlerFunc(h.HandleStepUp),
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)

	// POST /me/step-up - authenticated challenge issuance
	r.Mux.Handle("POST /v1/me/step-up",
		httpx.Chain(http.HandlerFunc(h.HandleBeginStepUp),
			httpx.RateLimitByPrincipal(httpx.ModerateLimit),
		),
	)
}

func (r *Router) registerMFA() {
	h := &MFAHandler{MFAService: r.MFAService, Guards: r.guards}

	r.Mux.Handle("POST /v1/mfa/enroll",
		httpx.Chain(http.HandlerFunc(h.HandleEnroll),
			httpx.RateLimitByPrincipal(httpx.ModerateLimit),
		),
	)
	r.Mux.Handle("POST /v1/mfa/verify",
		httpx.Chain(http.HandlerFunc(h.HandleVerify),
			httpx.RateLimitByPrincipal(httpx.StrictLimit),
		),
	)
}

func (r *Router) registerRedemption() {
	h := &RedeemHandler{RedemptionService: r.RedemptionService, Guards: r.guards}

	// POST /tokens/redeem - strict rate limit by IP (public signup endpoint)
	r.Mux.Handle("POST /v1/tokens/redeem",
		httpx.Chain(http.HandlerFunc(h.HandleSignup),
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)

	// POST /me/tokens/redeem - authenticated redemption
	r.Mux.Handle("POST /v1/me/tokens/redeem",
		httpx.Chain(http.HandlerFunc(h.HandleRedeem),
			httpx.RateLimitByPrincipal(httpx.ModerateLimit),
		),
	)
}

func (r *Router) registerTokenAdmin() {
	h := &TokenAdminHandler{TokenAdminService: r.TokenAdminService, Guards: r.guards}

	r.Mux.Handle("POST /v1/tokens",
		httpx.Chain(http.HandlerFunc(h.HandleMint),
			httpx.RateLimitByPrincipal(httpx.ModerateLimit),
		),
	)
	r.Mux.Handle("GET /v1/tokens",
		httpx.Chain(http.HandlerFunc(h.HandleList),
			httpx.RateLimitByPrincipal(httpx.ModerateLimit),
		),
	)
	r.Mux.Handle("DELETE /v1/tokens/{id}",
		httpx.Chain(http.HandlerFunc(h.HandleRevoke),
			httpx.RateLimitByPrincipal(httpx.ModerateLimit),
		),
	)
	r.Mux.Handle("POST /v1/leads",
		httpx.Chain(http.HandlerFunc(h.HandleCreateLead),
			httpx.RateLimitByPrincipal(httpx.ModerateLimit),
		),
	)
}

func (r *Router) registerTenants() {
	h := &TenantHandler{Store: r.store, Guards: r.guards}

	r.Mux.Handle("GET /v1/tenants/{id}",
		httpx.Chain(http.HandlerFunc(h.HandleGet),
			httpx.RateLimitByPrincipal(httpx.LenientLimit),
		),
	)
	r.Mux.Handle("POST /v1/tenants/{id}/archive-export",
		httpx.Chain(http.HandlerFunc(h.HandleArchiveExport),
			httpx.RateLimitByPrincipal(httpx.ModerateLimit),
		),
	)
}

func (r *Router) registerProfile() {
	h := &ProfileHandler{Store: r.store, Guards: r.guards}

	r.Mux.Handle("GET /v1/me",
		httpx.Chain(http.HandlerFunc(h.HandleGet),
			httpx.RateLimitByPrincipal(httpx.LenientLimit),
		),
	)
}

func (r *Router) registerSystem() {
	r.Mux.Handle("GET /livez",
		httpx.Chain(LivezHandler(r.buildVersion, r.startTime),
			httpx.RateLimitByIP(httpx.PublicLimit),
		),
	)
	r.Mux.Handle("GET /readyz",
		httpx.Chain(ReadyzHandler(r.store),
			httpx.RateLimitByIP(httpx.PublicLimit),
		),
	)
}
