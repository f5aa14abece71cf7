package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/tebex-storefront/api/controllers"
	"github.com/angelmondragon/tebex-storefront/api/middleware"
	"github.com/angelmondragon/tebex-storefront/internal/handshake"
	"github.com/angelmondragon/tebex-storefront/pkg/config"
	"github.com/angelmondragon/tebex-storefront/pkg/logger"
)

// Deps are the collaborators the HTTP surface needs.
type Deps struct {
	Sessions    controllers.SessionProvider
	Catalog     controllers.CatalogService
	Responder   *handshake.Responder
	RateLimiter middleware.RateLimiterStore
	Readiness   map[string]controllers.Pinger
	Gatherer    prometheus.Gatherer
}

func NewRouter(cfg *config.Config, logg *logger.Logger, deps Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.CORS.AllowedOrigins),
	)

	currency := cfg.Tebex.Currency
	mutations := middleware.NewRateLimitPolicy("basket", cfg.RateLimit.Window, 0, cfg.RateLimit.Limit)
	messages := middleware.NewRateLimitPolicy("auth", cfg.RateLimit.Window, cfg.RateLimit.Limit, cfg.RateLimit.Limit)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, deps.Readiness))
	})

	if deps.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.PageContext())

		r.Get("/categories", controllers.CategoryList(deps.Catalog, currency, logg))
		r.Get("/packages/{packageId}", controllers.PackageGet(deps.Catalog, currency, logg))
		r.Get("/auth/callback", controllers.AuthCallback(deps.Responder, logg))

		r.Group(func(r chi.Router) {
			r.Use(middleware.Session(cfg.Session, logg), middleware.Recoverer(logg))

			r.Route("/basket", func(r chi.Router) {
				r.Get("/", controllers.BasketState(deps.Sessions, currency, logg))
				r.Group(func(r chi.Router) {
					r.Use(middleware.RateLimit(mutations, deps.RateLimiter, logg))
					r.Post("/items", controllers.BasketAddItem(deps.Sessions, currency, logg))
					r.Delete("/items/{packageId}", controllers.BasketRemoveItem(deps.Sessions, currency, logg))
					r.Post("/toggle", controllers.BasketToggle(deps.Sessions, currency, logg))
				})
			})

			r.Route("/auth", func(r chi.Router) {
				r.With(middleware.RateLimit(messages, deps.RateLimiter, logg)).Post("/messages", controllers.AuthMessage(deps.Sessions, logg))
				r.Post("/cancel", controllers.AuthCancel(deps.Sessions, currency, logg))
			})
		})
	})

	return r
}
