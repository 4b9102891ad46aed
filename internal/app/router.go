package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	auditpkg "github.com/vulcan-erp/vulcan-erp/internal/audit"
	"github.com/vulcan-erp/vulcan-erp/internal/auth"
	"github.com/vulcan-erp/vulcan-erp/internal/authz"
	"github.com/vulcan-erp/vulcan-erp/internal/observability"
	"github.com/vulcan-erp/vulcan-erp/internal/shared"
	"github.com/vulcan-erp/vulcan-erp/internal/societes"
	"github.com/vulcan-erp/vulcan-erp/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger          *slog.Logger
	Config          *Config
	SessionManager  *shared.SessionManager
	CSRFManager     *shared.CSRFManager
	PrincipalLoader PrincipalLoader

	AuthHandler     *auth.Handler
	AuthzHandler    *authz.Handler
	SocietesHandler *societes.Handler
	AuditHandler    *auditpkg.Handler
	JobsHandler     *jobs.Handler

	Guard   authz.Middleware
	Metrics *observability.Metrics
}

// NewRouter constructs the chi.Router with Vulcan defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:          params.Logger,
		Config:          params.Config,
		SessionManager:  params.SessionManager,
		CSRFManager:     params.CSRFManager,
		PrincipalLoader: params.PrincipalLoader,
		Metrics:         params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/auth", params.AuthHandler.MountRoutes)

	r.Group(func(r chi.Router) {
		r.Use(params.Guard.Require(authz.Requirement{
			Permissions: []string{"permissions:read"},
		}))
		params.AuthzHandler.MountRoutes(r)
	})

	if params.SocietesHandler != nil {
		params.SocietesHandler.MountRoutes(r, params.Guard)
	}
	if params.AuditHandler != nil {
		r.Group(func(r chi.Router) {
			r.Use(params.Guard.Require(authz.Requirement{
				Permissions: []string{"audit:read"},
			}))
			params.AuditHandler.MountRoutes(r)
		})
	}

	if params.JobsHandler != nil {
		r.Route("/jobs", func(r chi.Router) {
			r.Use(params.Guard.Require(authz.Requirement{
				GlobalRoles: []authz.GlobalRole{authz.GlobalAdmin},
			}))
			params.JobsHandler.MountRoutes(r)
		})
	}

	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	return r
}
