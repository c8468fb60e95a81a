package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/storeconsole/api/controllers"
	analyticscontrollers "github.com/angelmondragon/storeconsole/api/controllers/analytics"
	"github.com/angelmondragon/storeconsole/api/middleware"
	"github.com/angelmondragon/storeconsole/internal/analytics"
	"github.com/angelmondragon/storeconsole/internal/stores"
	"github.com/angelmondragon/storeconsole/pkg/auth/session"
	"github.com/angelmondragon/storeconsole/pkg/config"
	"github.com/angelmondragon/storeconsole/pkg/logger"
	"github.com/angelmondragon/storeconsole/pkg/redis"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	limiter redis.RateLimiter,
	sessions session.AccessSessionChecker,
	storeService stores.Service,
	analyticsService analytics.Service,
	gatherer prometheus.Gatherer,
	dependencies ...controllers.Dependency,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.CORS(cfg.App.CORSOrigins),
		middleware.Logging(logg),
	)

	analyticsPolicy := middleware.NewRateLimitPolicy(
		"analytics",
		cfg.RateLimit.AnalyticsWindow,
		cfg.RateLimit.AnalyticsLimit,
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dependencies...))
	})

	if gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	r.Get("/api/public/ping", controllers.PublicPing())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, sessions, logg))
		r.Use(middleware.StoreContext(logg))

		r.Get("/ping", controllers.PrivatePing())
		r.Get("/store", controllers.StoreProfile(storeService, logg))

		r.Group(func(r chi.Router) {
			r.Use(middleware.RateLimit(analyticsPolicy, limiter, logg))
			r.Get("/analytics/{domain}", analyticscontrollers.Snapshot(analyticsService, logg))
		})
	})

	return r
}
