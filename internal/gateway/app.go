package gateway

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/sharweng/LappyShoppy-sub000/internal/platform"
	"github.com/sharweng/LappyShoppy-sub000/pkg/kit"
)

type HTTPDeps struct {
	Log      *zap.Logger
	Service  string
	Registry *prometheus.Registry

	MetricsEnabled bool
	MetricsToken   string
}

type Deps struct {
	// AuthURL points at the external identity provider; the gateway only
	// forwards to it.
	AuthURL    string
	CatalogURL string
	CartURL    string
	OrderURL   string
	JWTSecret  string
}

const (
	readyTimeout      = 2 * time.Second
	readyProbeTimeout = 700 * time.Millisecond

	loginLimitPerMin = 5
)

var readyClient = &http.Client{
	Transport: &http.Transport{
		MaxIdleConns:        50,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     30 * time.Second,
	},
}

func NewHandler(deps Deps, httpDeps HTTPDeps) (http.Handler, error) {
	proxies, err := buildProxies(deps, httpDeps.Log)
	if err != nil {
		return nil, err
	}

	verifier := platform.NewVerifier(deps.JWTSecret)

	r := chi.NewRouter()
	setupMiddleware(r, httpDeps)
	setupMetrics(r, httpDeps)

	r.Get("/healthz", healthz)
	r.Get("/readyz", readyz(deps, httpDeps.Log))

	loginLimiter := kit.NewIPRateLimiter(loginLimitPerMin, time.Minute)
	r.With(loginLimiter.Middleware).Handle("/auth/login", proxies.auth)
	r.Handle("/auth", proxies.auth)
	r.Handle("/auth/*", proxies.auth)

	// Catalog browsing and reviews; anonymous allowed, identity headers
	// must not pass through unverified.
	r.Group(func(pr chi.Router) {
		pr.Use(StripIdentityHeaders)
		pr.Handle("/products", proxies.catalog)
		pr.Handle("/products/*", proxies.catalog)
	})

	r.Group(func(pr chi.Router) {
		pr.Use(AuthJWT(verifier))
		pr.Use(InjectHeaders)

		pr.Handle("/cart", proxies.cart)
		pr.Handle("/cart/*", proxies.cart)
		pr.Handle("/orders", proxies.order)
		pr.Handle("/orders/*", proxies.order)
	})

	return r, nil
}

type proxySet struct {
	auth    http.Handler
	catalog http.Handler
	cart    http.Handler
	order   http.Handler
}

func buildProxies(deps Deps, log *zap.Logger) (proxySet, error) {
	var (
		ps  proxySet
		err error
	)

	if ps.auth, err = NewReverseProxy(deps.AuthURL, log); err != nil {
		return proxySet{}, err
	}
	if ps.catalog, err = NewReverseProxy(deps.CatalogURL, log); err != nil {
		return proxySet{}, err
	}
	if ps.cart, err = NewReverseProxy(deps.CartURL, log); err != nil {
		return proxySet{}, err
	}
	if ps.order, err = NewReverseProxy(deps.OrderURL, log); err != nil {
		return proxySet{}, err
	}

	return ps, nil
}

func setupMiddleware(r *chi.Mux, deps HTTPDeps) {
	r.Use(chimw.RequestID)
	r.Use(kit.Recoverer)
	r.Use(kit.Logging(deps.Log))
}

func setupMetrics(r *chi.Mux, deps HTTPDeps) {
	if deps.Registry == nil {
		return
	}

	metrics := kit.NewMetrics(deps.Registry)
	r.Use(metrics.Middleware(deps.Service, kit.ChiRoutePatternOrPath))

	if !deps.MetricsEnabled {
		return
	}

	r.With(kit.MetricsAuth(deps.MetricsToken)).
		Handle("/metrics", promhttp.HandlerFor(deps.Registry, promhttp.HandlerOpts{}))
}

func healthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func readyz(deps Deps, log *zap.Logger) http.HandlerFunc {
	probes := []struct {
		name string
		url  string
	}{
		{"catalog", deps.CatalogURL + "/readyz"},
		{"cart", deps.CartURL + "/readyz"},
		{"order", deps.OrderURL + "/readyz"},
	}

	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
		defer cancel()

		for _, p := range probes {
			if err := checkReady(ctx, p.url); err != nil {
				if log != nil {
					log.Warn("readyz failed: "+p.name, zap.Error(err))
				}
				kit.WriteError(w, r, http.StatusServiceUnavailable, p.name+" not ready", nil)
				return
			}
		}

		w.WriteHeader(http.StatusOK)
	}
}

func checkReady(ctx context.Context, url string) error {
	cctx, cancel := context.WithTimeout(ctx, readyProbeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(cctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}

	resp, err := readyClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("status=%d", resp.StatusCode)
	}

	return nil
}
