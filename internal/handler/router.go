package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/boddenberg/zillo-assist-go/internal/domain"
	"github.com/boddenberg/zillo-assist-go/internal/infra/cache"
	"github.com/boddenberg/zillo-assist-go/internal/infra/observability"
	"github.com/boddenberg/zillo-assist-go/internal/login"
	"github.com/boddenberg/zillo-assist-go/internal/port"
	"github.com/boddenberg/zillo-assist-go/internal/service"
	"github.com/boddenberg/zillo-assist-go/internal/session"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("handler")

// HealthCheck is one dependency reported by /healthz.
type HealthCheck struct {
	Name string
	Ping func(ctx context.Context) error
}

// Dependencies is everything the router serves.
type Dependencies struct {
	Auth      *service.AuthClient
	Identity  *service.AccountIdentity // nil disables /api/auth
	Directory *service.DirectoryService
	Sessions  *session.Registry
	// Flows holds one login wizard per client. Defaults to a 30 minute
	// in-memory cache.
	Flows   port.Cache[*login.Flow]
	Metrics *observability.Metrics
	Checks  []HealthCheck

	RedirectDelay time.Duration
	SecureCookies bool
	MaxInFlight   int
	Logger        *zap.Logger
}

// NewRouter creates the HTTP router with all routes and middleware.
func NewRouter(d Dependencies) http.Handler {
	logger := d.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if d.Flows == nil {
		d.Flows = cache.New[*login.Flow](30 * time.Minute)
	}

	flowOpts := []login.FlowOption{login.WithFlowLogger(logger), login.WithMetrics(d.Metrics)}
	if d.RedirectDelay > 0 {
		flowOpts = append(flowOpts, login.WithRedirectDelay(d.RedirectDelay))
	}
	flows := &flowRegistry{
		flows:    d.Flows,
		auth:     d.Auth,
		sessions: d.Sessions,
		opts:     flowOpts,
	}

	r := chi.NewRouter()

	// --- Middleware ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(ClientMiddleware(d.SecureCookies))
	r.Use(observability.ZapLoggerMiddleware(logger, ClientIDFromRequest))
	r.Use(observability.TracingMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/ping"))
	if d.MaxInFlight > 0 {
		r.Use(middleware.Throttle(d.MaxInFlight))
	}

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	// --- Operational endpoints ---
	r.Get("/healthz", healthzHandler(d.Checks, logger))
	r.Get("/readyz", readyzHandler())
	r.Handle("/metrics", promhttp.HandlerFor(d.Metrics.Registry, promhttp.HandlerOpts{}))
	r.Get("/v1/metrics/auth", authMetricsHandler(d.Metrics))

	// --- Public ---
	r.Get("/", landingHandler())

	r.Route("/sistema", func(r chi.Router) {
		r.Get("/", wizardViewHandler(flows, d.Sessions))
		r.Post("/input", wizardInputHandler(flows, logger))
		r.Post("/next", wizardNextHandler(flows, logger))
		r.Post("/back", wizardBackHandler(flows))
		r.Post("/reset", wizardResetHandler(flows))
		r.Post("/logout", logoutHandler(flows, d.Sessions, logger))
		r.Post("/recuperar-senha", recoverPasswordHandler(d.Auth, logger))
	})

	// --- REST auth fallback ---
	if d.Identity != nil {
		r.Route("/api/auth", func(r chi.Router) {
			r.Post("/identify", apiIdentifyHandler(d.Identity, logger))
			r.Post("/check-user", apiCheckUserHandler(d.Identity, logger))
			r.Post("/login", apiLoginHandler(d.Identity, logger))
			r.Post("/recover", apiRecoverHandler(d.Identity, logger))
		})
	}

	// --- Protected ---
	r.Group(func(r chi.Router) {
		r.Use(RequireSession(d.Sessions, logger))

		r.Get("/dashboard", dashboardHandler())
		r.Get("/dashboard/*", dashboardHandler())

		r.Route("/crm", func(r chi.Router) {
			r.Use(RequireRole(logger, domain.RoleAdmin))

			r.Get("/", crmHomeHandler())
			r.Get("/users", listUsersHandler(d.Directory, logger))
			r.Post("/users", registerUserHandler(d.Directory, logger))
			r.Patch("/users/{userId}", updateUserHandler(d.Directory, logger))
			r.Delete("/users/{userId}", deleteUserHandler(d.Directory, logger))
		})
	})

	return r
}
