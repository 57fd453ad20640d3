package catalog

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/sharweng/LappyShoppy-sub000/pkg/kit"
)

type HTTPDeps struct {
	Log      *zap.Logger
	Service  string
	Registry *prometheus.Registry

	// AdminKeyHash is the bcrypt hash of the back-office API key; empty
	// disables the admin routes.
	AdminKeyHash string

	MetricsEnabled bool
	MetricsToken   string
}

const reviewLimitPerMin = 6

func NewHandler(s *Server, deps HTTPDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(kit.Recoverer)
	r.Use(kit.Logging(deps.Log))

	if deps.Registry != nil {
		metrics := kit.NewMetrics(deps.Registry)
		r.Use(metrics.Middleware(deps.Service, kit.ChiRoutePatternOrPath))

		if deps.MetricsEnabled {
			r.With(kit.MetricsAuth(deps.MetricsToken)).
				Handle("/metrics", promhttp.HandlerFor(deps.Registry, promhttp.HandlerOpts{}))
		}
	}

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })

	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 1*time.Second)
		defer cancel()

		if err := s.Store.Ping(ctx); err != nil {
			if s.Log != nil {
				s.Log.Warn("readyz failed", zap.Error(err))
			}
			kit.WriteError(w, r, http.StatusServiceUnavailable, "not ready", nil)
			return
		}
		w.WriteHeader(http.StatusOK)
	})

	reviewLimiter := kit.NewIPRateLimiter(reviewLimitPerMin, time.Minute)

	r.Get("/products", s.list)
	r.Get("/products/{id}", s.get)
	r.Post("/products/{id}/reserve", s.reserve)
	r.Get("/products/{id}/reviews", s.listReviews)
	r.With(reviewLimiter.Middleware).Post("/products/{id}/reviews", s.postReview)

	r.Group(func(ar chi.Router) {
		ar.Use(kit.AdminKeyAuth(deps.AdminKeyHash))
		ar.Post("/products", s.create)
		ar.Delete("/products/{id}", s.delete)
	})

	return r
}
