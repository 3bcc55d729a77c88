package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/mkastler/poolcart-backend/api"
	"github.com/mkastler/poolcart-backend/api/controllers"
	"github.com/mkastler/poolcart-backend/api/routes"
	"github.com/mkastler/poolcart-backend/internal/availability"
	"github.com/mkastler/poolcart-backend/internal/bids"
	"github.com/mkastler/poolcart-backend/internal/export"
	"github.com/mkastler/poolcart-backend/internal/notifications"
	"github.com/mkastler/poolcart-backend/internal/reassignment"
	"github.com/mkastler/poolcart-backend/internal/runs"
	"github.com/mkastler/poolcart-backend/internal/shopping"
	"github.com/mkastler/poolcart-backend/internal/storage"
	"github.com/mkastler/poolcart-backend/internal/storage/gormstore"
	"github.com/mkastler/poolcart-backend/internal/storage/memstore"
	"github.com/mkastler/poolcart-backend/pkg/config"
	"github.com/mkastler/poolcart-backend/pkg/db"
	"github.com/mkastler/poolcart-backend/pkg/logger"
	"github.com/mkastler/poolcart-backend/pkg/metrics"
	"github.com/mkastler/poolcart-backend/pkg/migrate"
	"github.com/mkastler/poolcart-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	pingers := map[string]controllers.Pinger{}

	var store storage.Store
	if cfg.FeatureFlags.UseMemoryStore {
		store = memstore.New()
		logg.Info(context.Background(), "using in-memory storage backend")
	} else {
		dbClient, dbErr := db.New(context.Background(), cfg.DB, cfg.FeatureFlags, logg)
		if dbErr != nil {
			logg.Error(context.Background(), "failed to bootstrap database", dbErr)
			os.Exit(1)
		}
		defer func() {
			if closeErr := dbClient.Close(); closeErr != nil {
				logg.Error(context.Background(), "error closing database", closeErr)
			}
		}()

		if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
			logg.Error(context.Background(), "failed to run dev migrations", err)
			os.Exit(1)
		}

		store = gormstore.New(dbClient.DB())
		pingers["database"] = dbClient
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if closeErr := redisClient.Close(); closeErr != nil {
			logg.Error(context.Background(), "error closing redis", closeErr)
		}
	}()
	pingers["redis"] = redisClient

	notifier, err := notifications.NewStoreNotifier(store, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create notifier", err)
		os.Exit(1)
	}

	shoppingSvc, err := shopping.NewService(store, notifier, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create shopping service", err)
		os.Exit(1)
	}
	runSvc, err := runs.NewService(store, shoppingSvc, notifier, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create runs service", err)
		os.Exit(1)
	}
	bidSvc, err := bids.NewService(store, notifier, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create bids service", err)
		os.Exit(1)
	}
	reassignSvc, err := reassignment.NewService(store, notifier, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create reassignment service", err)
		os.Exit(1)
	}
	availSvc, err := availability.NewService(store, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create availability service", err)
		os.Exit(1)
	}
	exportSvc, err := export.NewService(store, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create export service", err)
		os.Exit(1)
	}

	handler := routes.NewRouter(routes.Deps{
		Config:        cfg,
		Logger:        logg,
		Store:         store,
		Redis:         redisClient,
		Metrics:       metrics.NewHTTPMetrics(prometheus.DefaultRegisterer),
		Pingers:       pingers,
		Runs:          runSvc,
		Bids:          bidSvc,
		Shopping:      shoppingSvc,
		Reassignments: reassignSvc,
		Availability:  availSvc,
		Export:        exportSvc,
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	cfg.App.Port = port

	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": ":" + port,
	})
	logg.Info(ctx, "starting api server")

	server := api.NewServer(cfg, handler)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
