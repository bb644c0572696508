package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/gorilla/mux"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/sync/errgroup"

	"github.com/unicef-drp/geosight/pkg/auth"
	"github.com/unicef-drp/geosight/pkg/config"
	"github.com/unicef-drp/geosight/pkg/dashboard"
	"github.com/unicef-drp/geosight/pkg/middleware"
	"github.com/unicef-drp/geosight/pkg/migrate"
	"github.com/unicef-drp/geosight/pkg/observability"
	"github.com/unicef-drp/geosight/pkg/permission"
	"github.com/unicef-drp/geosight/pkg/resource"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		observability.NewLogger(observability.ErrorLevel, os.Stderr).
			WithError(err).Error("Failed to load configuration")
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.Observability.LogLevel, os.Stdout)
	if err := run(cfg, logger); err != nil {
		logger.WithError(err).Error("Server exited with error")
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *observability.Logger) error {
	ctx := context.Background()

	db, err := openDatabase(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()
	logger.Info("Database connection established")

	var redisClient *redis.Client
	if cfg.Redis.URL != "" {
		redisClient, err = openRedis(ctx, cfg.Redis, logger)
		if err != nil {
			return err
		}
		defer redisClient.Close()
	}

	var migrations []migrate.Migration
	migrations = append(migrations, auth.Migrations()...)
	migrations = append(migrations, permission.Migrations()...)
	migrations = append(migrations, resource.Migrations()...)
	migrations = append(migrations, dashboard.Migrations()...)
	if err := migrate.Run(ctx, db, migrations); err != nil {
		return err
	}
	logger.Info("Migrations applied")

	providers, err := observability.InitOTel(ctx, observability.OTelConfig{
		Enabled:        cfg.Observability.OTelEnabled,
		Endpoint:       cfg.Observability.OTelEndpoint,
		ServiceName:    cfg.Observability.OTelServiceName,
		ServiceVersion: cfg.Observability.OTelServiceVersion,
		Insecure:       cfg.Observability.OTelInsecure,
	}, logger)
	if err != nil {
		return err
	}

	promRegistry := prometheus.NewRegistry()
	metrics := observability.NewMetrics(promRegistry)

	// Permission layer.
	policy := permission.NewPolicy()
	if cfg.Permission.PolicyFile != "" {
		if err := policy.LoadFile(cfg.Permission.PolicyFile); err != nil {
			return err
		}
		logger.WithField("path", cfg.Permission.PolicyFile).Info("Permission policy loaded")
	}

	registry := permission.NewRegistry()
	permStore := permission.NewStore(db, policy, registry)
	authStore := auth.NewStore(db)

	observer := func(rt permission.ResourceType, check string, allowed bool) {
		metrics.ObservePermissionCheck(string(rt), check, allowed)
	}
	resolver := permission.NewResolver(permStore, authStore, observer)
	manager := permission.NewManager(permStore, resolver, authStore)

	if seeded, err := resource.SeedPermissions(ctx, db, permStore); err != nil {
		return err
	} else if seeded > 0 {
		logger.WithField("rows", seeded).Info("Seeded default permission rows")
	}

	catalog := resource.NewCatalog(db)
	stores := resource.NewStores(db, manager)

	cacheStore := dashboard.NewCacheStore(db, resolver, catalog)
	cacheStore.SetObservers(metrics.CacheBuildsTotal.Inc, metrics.CacheHitsTotal.Inc)
	registry.Subscribe(cacheStore)
	dashStore := dashboard.NewStore(db, manager, cacheStore)

	tokenManager, err := auth.NewTokenManager(authStore)
	if err != nil {
		return err
	}

	// Hot reload of the policy file.
	watchCtx, cancelWatch := context.WithCancel(ctx)
	defer cancelWatch()
	if cfg.Permission.PolicyFile != "" {
		onReload := func(err error) {
			status := "ok"
			if err != nil {
				status = "error"
			}
			metrics.PolicyReloadsTotal.WithLabelValues(status).Inc()
		}
		go func() {
			if err := permission.WatchPolicyFile(watchCtx, policy, cfg.Permission.PolicyFile, logger, onReload); err != nil {
				logger.WithError(err).Error("Policy watcher stopped")
			}
		}()
	}

	// Routing. Authentication is optional so anonymous callers reach
	// per-object public permissions.
	router := mux.NewRouter()
	router.Use(observability.RequestIDMiddleware(logger))
	if cfg.Observability.MetricsEnabled {
		router.Use(observability.HTTPMetricsMiddleware(metrics))
	}
	router.Use(auth.NewMiddleware(tokenManager, true).Handler)
	if redisClient != nil {
		router.Use(middleware.NewDistributedRateLimitMiddleware(redisClient).Handler)
	} else {
		router.Use(middleware.NewRateLimitMiddleware().Handler)
	}

	api := router.PathPrefix("/api/v1").Subrouter()
	permission.NewHandlers(permStore, resolver, catalog).RegisterRoutes(api)
	resource.NewHandlers(stores).RegisterRoutes(api)
	dashboard.NewHandlers(dashStore, cacheStore).RegisterRoutes(api)

	apiServer := &http.Server{
		Addr:         cfg.Server.Host + ":" + cfg.Server.Port,
		Handler:      otelhttp.NewHandler(router, "geosight-api"),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Health and metrics on a separate port for probes and scrapes.
	healthMux := http.NewServeMux()
	checker := observability.NewHealthChecker(db, redisClient)
	checker.SetVersion(cfg.Observability.OTelServiceVersion)
	observability.RegisterHealthRoutes(healthMux, checker)
	if cfg.Observability.MetricsEnabled {
		observability.RegisterMetricsEndpoint(healthMux, promRegistry)
	}
	healthServer := &http.Server{
		Addr:    cfg.Server.Host + ":" + cfg.Server.HealthPort,
		Handler: healthMux,
	}

	var janitor *dashboard.Janitor
	if cfg.Janitor.Enabled {
		janitor = dashboard.NewJanitor(db, authStore, logger)
		if err := janitor.Start(cfg.Janitor.Schedule); err != nil {
			return err
		}
		logger.WithField("schedule", cfg.Janitor.Schedule).Info("Cache janitor scheduled")
	}

	var group errgroup.Group
	group.Go(func() error {
		logger.WithField("addr", apiServer.Addr).Info("API server listening")
		if err := apiServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		logger.WithField("addr", healthServer.Addr).Info("Health server listening")
		if err := healthServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	shutdown := observability.NewShutdownManager(logger, apiServer, cfg.Server.ShutdownTimeout)
	shutdown.RegisterShutdownFunc(healthServer.Shutdown)
	shutdown.RegisterShutdownFunc(func(ctx context.Context) error {
		cancelWatch()
		if janitor != nil {
			janitor.Stop()
		}
		return nil
	})
	shutdown.RegisterShutdownFunc(func(ctx context.Context) error {
		return observability.ShutdownOTel(ctx, providers, logger)
	})

	if err := shutdown.WaitForShutdown(); err != nil {
		return err
	}
	return group.Wait()
}

func openDatabase(ctx context.Context, cfg config.DatabaseConfig) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.URL)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnLifetime)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func openRedis(ctx context.Context, cfg config.RedisConfig, logger *observability.Logger) (*redis.Client, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		// Bare host:port values are accepted too.
		opts = &redis.Options{Addr: cfg.URL}
	}
	if cfg.Password != "" {
		opts.Password = cfg.Password
	}
	if cfg.DB != 0 {
		opts.DB = cfg.DB
	}

	client := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, err
	}
	logger.Info("Redis connection established")
	return client, nil
}
