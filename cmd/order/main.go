package main

import (
	"database/sql"
	"os"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/sharweng/LappyShoppy-sub000/internal/order"
	"github.com/sharweng/LappyShoppy-sub000/internal/platform"
	"github.com/sharweng/LappyShoppy-sub000/pkg/kit"
)

func main() {
	service := "order"
	log := kit.NewLogger(service)
	defer func() { _ = log.Sync() }()

	port := getenv("PORT", "8083")
	catalogURL := getenv("CATALOG_URL", "http://localhost:8082")
	cartURL := getenv("CART_URL", "http://localhost:8084")

	jwtSecret := os.Getenv("JWT_SECRET")
	if len(jwtSecret) < 32 {
		log.Fatal("JWT_SECRET is required and must be at least 32 chars")
	}

	var store order.Store
	if dsn := os.Getenv("DATABASE_URL"); dsn != "" {
		db, err := sql.Open("pgx", dsn)
		if err != nil {
			log.Fatal("open database", zap.Error(err))
		}
		store = order.NewPostgresStore(db)
	} else {
		store = order.NewMemStore()
	}

	s := &order.Server{
		Store:   store,
		Catalog: order.NewCatalogClient(catalogURL),
		Cart:    order.NewCartClient(cartURL),
		Log:     log,
	}

	reg := prometheus.NewRegistry()
	h := order.NewHandler(s, order.HTTPDeps{
		Log:            log,
		Service:        service,
		Registry:       reg,
		Verifier:       platform.NewVerifier(jwtSecret),
		MetricsEnabled: os.Getenv("METRICS_TOKEN") != "",
		MetricsToken:   os.Getenv("METRICS_TOKEN"),
	})

	if err := kit.RunHTTPServer(":"+port, h, log); err != nil {
		log.Fatal("http server stopped", zap.Error(err))
	}
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
