package main

import (
	"database/sql"
	"os"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/sharweng/LappyShoppy-sub000/internal/cart"
	"github.com/sharweng/LappyShoppy-sub000/internal/platform"
	"github.com/sharweng/LappyShoppy-sub000/pkg/kit"
)

func main() {
	service := "cart"
	log := kit.NewLogger(service)
	defer func() { _ = log.Sync() }()

	port := getenv("PORT", "8084")

	jwtSecret := os.Getenv("JWT_SECRET")
	if len(jwtSecret) < 32 {
		log.Fatal("JWT_SECRET is required and must be at least 32 chars")
	}

	store := newStore(log)

	s := &cart.Server{
		Hub: cart.NewHub(store, log),
		Log: log,
	}

	reg := prometheus.NewRegistry()
	h := cart.NewHandler(s, cart.HTTPDeps{
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

// newStore picks the snapshot store: Postgres when DATABASE_URL is set,
// a file directory when CART_DIR is set, memory otherwise.
func newStore(log *zap.Logger) cart.Store {
	if dsn := os.Getenv("DATABASE_URL"); dsn != "" {
		db, err := sql.Open("pgx", dsn)
		if err != nil {
			log.Fatal("open database", zap.Error(err))
		}
		log.Info("using postgres snapshot store")
		return cart.NewPostgresStore(db)
	}

	if dir := os.Getenv("CART_DIR"); dir != "" {
		store, err := cart.NewFileStore(dir)
		if err != nil {
			log.Fatal("open cart dir", zap.Error(err))
		}
		log.Info("using file snapshot store", zap.String("dir", dir))
		return store
	}

	log.Info("using in-memory snapshot store")
	return cart.NewMemStore()
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
