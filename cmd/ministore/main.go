package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"MiniCart/internal/api"
	"MiniCart/internal/auth"
	"MiniCart/internal/cart"
	"MiniCart/internal/catalog"
	"MiniCart/internal/docstore"
	"MiniCart/pkg/kit"
)

const (
	service   = "ministore"
	minSecret = 32
	initWait  = 10 * time.Second
)

func main() {
	cfg := loadConfig()

	if len(os.Args) > 1 && os.Args[1] == "token" {
		if err := runToken(os.Args[2:], cfg.AdminJWTSecret, os.Stdout); err != nil {
			fmt.Fprintln(os.Stderr, "token:", err)
			os.Exit(2)
		}
		return
	}

	log := kit.NewLogger(service, cfg.LogLevel)
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	productsRepo, cartsRepo, closeDB := openRepositories(ctx, cfg, log, docstore.NewMetrics(reg))
	defer closeDB()

	products := catalog.NewStore(productsRepo, log.Named("catalog"))
	carts := cart.NewStore(cartsRepo, products, log.Named("carts"))

	initCtx, cancel := context.WithTimeout(ctx, initWait)
	defer cancel()

	// carts check their items against the catalog, so it loads first
	if err := products.Init(initCtx); err != nil {
		log.Fatal("init catalog failed", zap.Error(err))
	}
	if cfg.SeedCatalog {
		seed, err := catalog.SeedProducts()
		if err != nil {
			log.Fatal("load seed products failed", zap.Error(err))
		}
		if _, err := catalog.Seed(initCtx, products, seed, log.Named("seed")); err != nil {
			log.Fatal("seed catalog failed", zap.Error(err))
		}
	}
	if err := carts.Init(initCtx); err != nil {
		log.Fatal("init carts failed", zap.Error(err))
	}

	catalogSrv := &catalog.Server{Store: products, Log: log}
	if len(cfg.AdminJWTSecret) >= minSecret {
		catalogSrv.RequireAdmin = auth.RequireRole(auth.NewTokenMaker(cfg.AdminJWTSecret), auth.RoleAdmin)
	} else if cfg.AdminJWTSecret != "" {
		log.Fatal("ADMIN_JWT_SECRET must be at least 32 chars")
	} else {
		log.Warn("ADMIN_JWT_SECRET not set, catalog writes are open")
	}

	cartSrv := &cart.Server{
		Store:       carts,
		Log:         log,
		CreateLimit: kit.NewIPRateLimiter(cfg.CartCreatePerMin, time.Minute).Middleware,
	}

	h := api.NewHandler(api.Deps{Catalog: catalogSrv, Carts: cartSrv}, api.HTTPDeps{
		Log:            log,
		Service:        service,
		Registry:       reg,
		MetricsEnabled: cfg.MetricsEnabled,
		MetricsToken:   cfg.MetricsToken,
	})

	if err := kit.RunHTTPServer(ctx, ":"+cfg.Port, h, log); err != nil {
		log.Fatal("http server stopped", zap.Error(err))
	}
}

func openRepositories(ctx context.Context, cfg config, log *zap.Logger, m *docstore.Metrics) (
	docstore.Repository[catalog.Product], docstore.Repository[cart.Cart], func(),
) {
	switch cfg.StoreDriver {
	case driverFile:
		log.Info("using file document store",
			zap.String("products", cfg.ProductsFile),
			zap.String("carts", cfg.CartsFile),
		)
		return docstore.Instrument[catalog.Product](docstore.NewFileRepository[catalog.Product](cfg.ProductsFile), "products", m),
			docstore.Instrument[cart.Cart](docstore.NewFileRepository[cart.Cart](cfg.CartsFile), "carts", m),
			func() {}

	case driverPostgres:
		if cfg.DatabaseURL == "" {
			log.Fatal("DATABASE_URL is required for the postgres store")
		}
		db, err := docstore.OpenPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatal("open postgres failed", zap.Error(err))
		}
		log.Info("using postgres document store")
		return docstore.Instrument[catalog.Product](docstore.NewPostgresRepository[catalog.Product](db, "products"), "products", m),
			docstore.Instrument[cart.Cart](docstore.NewPostgresRepository[cart.Cart](db, "carts"), "carts", m),
			closer(db, log)

	default:
		log.Fatal("unknown STORE_DRIVER", zap.String("driver", cfg.StoreDriver))
		return nil, nil, nil
	}
}

func closer(db *sql.DB, log *zap.Logger) func() {
	return func() {
		if err := db.Close(); err != nil {
			log.Warn("close postgres failed", zap.Error(err))
		}
	}
}
