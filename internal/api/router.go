package api

import (
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/go-chi/chi/v5"

	"github.com/daap14/tenantgate/internal/api/handler"
	"github.com/daap14/tenantgate/internal/api/middleware"
	"github.com/daap14/tenantgate/internal/auth"
	"github.com/daap14/tenantgate/internal/gate"
	"github.com/daap14/tenantgate/internal/session"
	"github.com/daap14/tenantgate/internal/tenant"
)

// RouterDeps holds all dependencies needed by the router.
type RouterDeps struct {
	Gate          *gate.Gate
	AuthService   *auth.Service
	Codec         *session.Codec
	Resolver      *tenant.Resolver
	DBPinger      handler.DBPinger
	Version       string
	SecureCookies bool
}

// NewRouter creates and configures a Chi router with all middleware and routes.
func NewRouter(deps RouterDeps) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recovery)
	r.Use(chimiddleware.Logger)
	r.Use(middleware.Session(deps.Gate))

	paths := deps.Gate.Paths()

	healthHandler := handler.NewHealthHandler(deps.DBPinger, deps.Version)
	r.Get("/health", healthHandler.ServeHTTP)
	r.Handle("/metrics", promhttp.Handler())

	loginHandler := handler.NewLoginHandler(deps.AuthService, deps.Codec, deps.Resolver, paths.Login, deps.SecureCookies)
	r.Get(paths.Login, loginHandler.Page)
	r.Post(paths.Login, loginHandler.Submit)
	r.Get("/logout", loginHandler.Logout)
	r.Post("/logout", loginHandler.Logout)

	dashboardHandler := handler.NewDashboardHandler(deps.Resolver, deps.Gate.Enabled, paths.Login)
	r.Get(paths.DashboardAlias, dashboardHandler.Alias)
	r.Get(paths.DashboardAlias+"/{company}", dashboardHandler.Tenant)
	r.Get("/api/me", dashboardHandler.Me)

	return r
}
