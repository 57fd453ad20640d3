package main

import (
	"database/sql"
	"os"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/sharweng/LappyShoppy-sub000/internal/catalog"
	"github.com/sharweng/LappyShoppy-sub000/internal/platform"
	"github.com/sharweng/LappyShoppy-sub000/pkg/kit"
)

func main() {
	service := "catalog"
	log := kit.NewLogger(service)
	defer func() { _ = log.Sync() }()

	port := getenv("PORT", "8082")

	var store catalog.Store
	if dsn := os.Getenv("DATABASE_URL"); dsn != "" {
		db, err := sql.Open("pgx", dsn)
		if err != nil {
			log.Fatal("open database", zap.Error(err))
		}
		store = catalog.NewPostgresStore(db)
	} else {
		store = catalog.NewMemStore()
	}

	var verifier *platform.Verifier
	if secret := os.Getenv("JWT_SECRET"); secret != "" {
		verifier = platform.NewVerifier(secret)
	}

	s := &catalog.Server{Store: store, Log: log, Verifier: verifier}

	reg := prometheus.NewRegistry()
	h := catalog.NewHandler(s, catalog.HTTPDeps{
		Log:            log,
		Service:        service,
		Registry:       reg,
		AdminKeyHash:   os.Getenv("ADMIN_KEY_HASH"),
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
