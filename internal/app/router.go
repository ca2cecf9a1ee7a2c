package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/licensehub/licensehub/internal/auth"
	"github.com/licensehub/licensehub/internal/licensing"
	"github.com/licensehub/licensehub/internal/observability"
	"github.com/licensehub/licensehub/internal/staff"
	"github.com/licensehub/licensehub/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger         *slog.Logger
	Config         *Config
	AuthHandler    *auth.Handler
	CompanyHandler *licensing.Handler
	StaffHandler   *staff.Handler
	JobHandler     *jobs.Handler
	Metrics        *observability.Metrics
}

// NewRouter constructs the chi.Router with LicenseHub defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	verifyLimit, adminLimit := 120, 60
	if params.Config != nil {
		verifyLimit, adminLimit = params.Config.VerifyRateLimit, params.Config.AdminRateLimit
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	r.With(RateLimit(verifyLimit)).Post("/api/verify-license", params.CompanyHandler.Verify)

	r.Route("/auth", func(r chi.Router) {
		r.Use(RateLimit(adminLimit))
		params.AuthHandler.MountRoutes(r)
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(RateLimit(adminLimit))
		r.Use(params.AuthHandler.RequireActor)
		r.Route("/companies", params.CompanyHandler.MountRoutes)
		if params.StaffHandler != nil {
			r.Route("/staff", params.StaffHandler.MountRoutes)
		}
		if params.JobHandler != nil {
			r.Route("/jobs", params.JobHandler.MountRoutes)
		}
	})

	return r
}
