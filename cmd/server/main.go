// @title           Shared Lists API
// @version         0.1.0
// @description     Backend for shared shopping lists: accounts, API keys, lists, items and list membership.
// @license.name    Apache-2.0
// @basePath        /
// @schemes         http https
// @securityDefinitions.apiKey  AccountAPIKey
// @in                          header
// @name                        X-API-Key
// @description                 API key issued by login, sent together with X-Account-ID.
// @securityDefinitions.apiKey  AdminKey
// @in                          header
// @name                        X-Admin-Key
//
// @tag.name         System
// @tag.description  Health, readiness and version endpoints.
//
// @tag.name         Observability
// @tag.description  Prometheus metrics are served on a dedicated side port (default 9090) at GET /metrics, outside the Gin router.

// Package main is the entry point for the shared lists server binary. It dispatches
// the serve, migrate, sweep-keys and version subcommands with a switch on os.Args.
// serve runs migrations on startup.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sharedlists/sharedlists/internal/api"
	"github.com/sharedlists/sharedlists/internal/auth"
	"github.com/sharedlists/sharedlists/internal/config"
	"github.com/sharedlists/sharedlists/internal/db"
	"github.com/sharedlists/sharedlists/internal/db/repositories"
	"github.com/sharedlists/sharedlists/internal/jobs"
	"github.com/sharedlists/sharedlists/internal/telemetry"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Error: %v\n", err)
	}
}

func run() error {
	command := "serve"
	if len(os.Args) > 1 {
		command = os.Args[1]
	}

	if command == "version" {
		fmt.Printf("Shared Lists v%s\n", api.Version)
		return nil
	}

	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	telemetry.SetupLogger(cfg.Logging.Format, cfg.Logging.Level)

	switch command {
	case "serve":
		return serve(cfg)
	case "migrate":
		if len(os.Args) < 3 {
			return fmt.Errorf("usage: %s migrate <up|down>", os.Args[0])
		}
		return runMigrations(cfg, os.Args[2])
	case "sweep-keys":
		return sweepKeys(cfg)
	default:
		return fmt.Errorf("unknown command: %s\nAvailable commands: serve, migrate, sweep-keys, version", command)
	}
}

func serve(cfg *config.Config) error {
	if cfg.Logging.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	slog.Info("connecting to database",
		"host", cfg.Database.Host, "port", cfg.Database.Port,
		"user", cfg.Database.User, "dbname", cfg.Database.Name, "sslmode", cfg.Database.SSLMode)

	database, err := db.Connect(cfg.Database.GetDSN(), cfg.Database.MaxConnections, cfg.Database.MinIdleConnections)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer database.Close()

	telemetry.StartDBStatsCollector(database)

	slog.Info("running database migrations")
	if err := db.RunMigrations(database, "up"); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	if version, dirty, err := db.GetMigrationVersion(database); err != nil {
		slog.Warn("failed to get migration version", "error", err)
	} else {
		slog.Info("database schema ready", "version", version, "dirty", dirty)
	}

	if cfg.Telemetry.Metrics.Enabled {
		metricsAddr := fmt.Sprintf(":%d", cfg.Telemetry.Metrics.Port)
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			slog.Info("starting Prometheus metrics server", "addr", metricsAddr)
			srv := &http.Server{
				Addr:         metricsAddr,
				Handler:      mux,
				ReadTimeout:  10 * time.Second,
				WriteTimeout: 10 * time.Second,
			}
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("metrics server error", "error", err)
			}
		}()
	}

	secrets := config.NewSecretProvider(cfg.Auth.AdminSecret)
	if _, ok := secrets.AdminSecret(); !ok {
		slog.Warn("no admin secret configured, admin routes will answer service_unavailable")
	}
	if config.Watch(cfg, secrets) {
		slog.Info("watching config file for admin secret changes")
	}

	router, bgServices, err := api.NewRouter(cfg, sqlx.NewDb(database, "postgres"), secrets)
	if err != nil {
		return fmt.Errorf("failed to build router: %w", err)
	}

	sweeper := jobs.NewKeySweeper(bgServices.Accounts, cfg.Auth.APIKeys.SweepInterval)
	sweepCtx, stopSweep := context.WithCancel(context.Background())
	go sweeper.Start(sweepCtx)

	server := &http.Server{
		Addr:         cfg.Server.GetAddress(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		slog.Info("starting server", "addr", cfg.Server.GetAddress(), "tls", cfg.Security.TLS.Enabled,
			"key_ttl", cfg.Auth.APIKeys.TTL, "rate_limiting", cfg.Security.RateLimiting.Enabled)

		var err error
		if cfg.Security.TLS.Enabled {
			err = server.ListenAndServeTLS(cfg.Security.TLS.CertFile, cfg.Security.TLS.KeyFile)
		} else {
			err = server.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-serverErr:
		stopSweep()
		sweeper.Stop()
		bgServices.Shutdown()
		return fmt.Errorf("failed to start server: %w", err)
	}

	slog.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	stopSweep()
	sweeper.Stop()
	bgServices.Shutdown()

	slog.Info("server stopped gracefully")
	return nil
}

func runMigrations(cfg *config.Config, direction string) error {
	database, err := db.Connect(cfg.Database.GetDSN(), cfg.Database.MaxConnections, cfg.Database.MinIdleConnections)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer database.Close()

	slog.Info("running migrations", "direction", direction)
	if err := db.RunMigrations(database, direction); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	version, dirty, err := db.GetMigrationVersion(database)
	if err != nil {
		return fmt.Errorf("failed to get migration version: %w", err)
	}
	slog.Info("migration completed", "version", version, "dirty", dirty)
	return nil
}

// sweepKeys deletes invalid and expired API keys once and exits. Meant for cron.
func sweepKeys(cfg *config.Config) error {
	database, err := db.Connect(cfg.Database.GetDSN(), cfg.Database.MaxConnections, cfg.Database.MinIdleConnections)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer database.Close()

	keys := auth.NewKeyManager(repositories.NewAPIKeyRepository(database), cfg.Auth.APIKeys.Prefix, cfg.Auth.APIKeys.TTL)
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	n, err := keys.DeleteExpired(ctx)
	if err != nil {
		return fmt.Errorf("sweep failed: %w", err)
	}
	fmt.Printf("Deleted %d expired API keys\n", n)
	return nil
}
