// Package main is the entry point for the storefront tool API service.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/tomwolfe/storefront/api"
	"github.com/tomwolfe/storefront/internal/config"
	"github.com/tomwolfe/storefront/internal/dbutil"
	"github.com/tomwolfe/storefront/internal/identity"
	"github.com/tomwolfe/storefront/internal/inventory"
	"github.com/tomwolfe/storefront/internal/otel"
	"github.com/tomwolfe/storefront/internal/server"
	"github.com/tomwolfe/storefront/internal/store"
	"github.com/tomwolfe/storefront/internal/tools"
)

var (
	version   = "dev"
	commit    = "none"
	buildDate = "unknown"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.DevMode {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	} else {
		zerolog.TimeFieldFormat = zerolog.TimeFormatUnixMs
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Str("service", "storefront").Str("version", version).Logger()
	}

	logger := log.With().Str("component", "main").Logger()
	logger.Info().Str("version", version).Str("commit", commit).Str("build_date", buildDate).Msg("starting storefront")
	if cfg.DevMode {
		logger.Warn().Msg("DEV MODE ENABLED - using in-memory inventory with demo data; do not use in production")
	}
	if !cfg.ProviderConfigured() && cfg.InternalKey == "" {
		logger.Warn().Msg("no identity provider and no internal key configured; all tool calls will be rejected")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownOTel, err := otel.Init(ctx, otel.Config{
		ServiceName:    "storefront",
		ServiceVersion: version,
		MetricsEnabled: cfg.MetricsEnabled,
		TracesEnabled:  cfg.TracesEnabled,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize OpenTelemetry")
	}
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if shutdownErr := shutdownOTel(shutdownCtx); shutdownErr != nil {
			logger.Error().Err(shutdownErr).Msg("failed to shut down OpenTelemetry")
		}
	}()

	var st store.Store
	if cfg.DevMode && cfg.DBDSN == "" {
		st = seedDemoStore()
		logger.Info().Msg("using in-memory store with demo data")
	} else {
		db, connectErr := dbutil.Connect(ctx, dbutil.PoolConfig{DSN: cfg.DBDSN})
		if connectErr != nil {
			logger.Fatal().Err(connectErr).Msg("failed to connect to database")
		}
		defer db.Close()
		logger.Info().Msg("connected to PostgreSQL")

		result, migrateErr := dbutil.RunMigrations(db, "migrations/postgres")
		if migrateErr != nil {
			logger.Fatal().Err(migrateErr).Msg("failed to run database migrations")
		}
		logger.Info().Uint("version", result.Version).Bool("dirty", result.Dirty).Msg("database migration complete")

		st = store.NewPostgresStore(db)
	}

	registry, err := tools.NewRegistry(api.ToolsContract)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to parse tool contract")
	}

	var provider identity.SessionProvider
	if cfg.ProviderConfigured() {
		provider = identity.NewHTTPProvider(cfg.AuthSessionURL, cfg.AuthProjectID)
		logger.Info().Str("project_id", cfg.AuthProjectID).Msg("identity provider configured")
	} else {
		logger.Info().Msg("no identity provider configured; tool routes require the internal system key")
	}
	resolver := identity.NewResolver(provider, cfg.BridgeCookieName, log.Logger)

	dispatcher := tools.NewDispatcher(registry, inventory.NewService(st), log.Logger)
	srv := server.New(st, cfg, resolver, registry, dispatcher, log.Logger,
		version, commit, buildDate, server.WithToolContract(api.ToolsContract))

	httpServer := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", cfg.ListenAddr).Msg("HTTP server listening")
		if serveErr := httpServer.ListenAndServe(); serveErr != nil && serveErr != http.ErrServerClosed {
			errCh <- serveErr
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info().Str("signal", sig.String()).Msg("received shutdown signal")
	case serveErr := <-errCh:
		logger.Error().Err(serveErr).Msg("HTTP server error")
	}
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if shutdownErr := httpServer.Shutdown(shutdownCtx); shutdownErr != nil {
		logger.Error().Err(shutdownErr).Msg("HTTP server shutdown error")
	}
	logger.Info().Msg("server stopped gracefully")
}

// seedDemoStore builds the in-memory inventory used when dev mode runs
// without a database.
func seedDemoStore() *store.MemoryStore {
	st := store.NewMemoryStore()
	st.AddStore(store.StoreRecord{ID: "store-sf-01", Name: "Market Street", Latitude: 37.7749, Longitude: -122.4194, Address: "845 Market St, San Francisco, CA"})
	st.AddStore(store.StoreRecord{ID: "store-sf-02", Name: "Mission Bay", Latitude: 37.7706, Longitude: -122.3900, Address: "185 Berry St, San Francisco, CA"})
	st.AddStore(store.StoreRecord{ID: "store-oak-01", Name: "Oakland Broadway", Latitude: 37.8044, Longitude: -122.2712, Address: "1955 Broadway, Oakland, CA"})
	st.AddProduct(store.ProductRecord{ID: "prod-1001", Name: "Wireless Headphones", Price: 129.99})
	st.AddProduct(store.ProductRecord{ID: "prod-1002", Name: "USB-C Charger", Price: 24.99})
	st.AddProduct(store.ProductRecord{ID: "prod-1003", Name: "Portable Speaker", Price: 59.99})
	st.SetStock("store-sf-01", "prod-1001", 12)
	st.SetStock("store-sf-01", "prod-1002", 40)
	st.SetStock("store-sf-02", "prod-1001", 3)
	st.SetStock("store-sf-02", "prod-1003", 7)
	st.SetStock("store-oak-01", "prod-1002", 25)
	st.SetStock("store-oak-01", "prod-1003", 0)
	return st
}
