// Souq - Multilingual Storefront and Admin Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/souq

package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	_ "github.com/tomtom215/souq/docs" // Import generated swagger docs
	"github.com/tomtom215/souq/internal/api"
	"github.com/tomtom215/souq/internal/audit"
	"github.com/tomtom215/souq/internal/auth"
	"github.com/tomtom215/souq/internal/authz"
	"github.com/tomtom215/souq/internal/blog"
	"github.com/tomtom215/souq/internal/cart"
	"github.com/tomtom215/souq/internal/catalog"
	"github.com/tomtom215/souq/internal/config"
	"github.com/tomtom215/souq/internal/database"
	"github.com/tomtom215/souq/internal/i18n"
	"github.com/tomtom215/souq/internal/kv"
	"github.com/tomtom215/souq/internal/logging"
	"github.com/tomtom215/souq/internal/middleware"
	"github.com/tomtom215/souq/internal/orders"
	"github.com/tomtom215/souq/internal/payment"
	"github.com/tomtom215/souq/internal/supervisor"
	"github.com/tomtom215/souq/internal/supervisor/services"
	ws "github.com/tomtom215/souq/internal/websocket"
)

//nolint:gocyclo // sequential setup steps
func main() {
	// A missing .env is normal in containers; anything else is worth a warning.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		logging.Warn().Err(err).Msg("Failed to read .env file")
	}

	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	logging.Info().
		Str("store", cfg.Store.Name).
		Str("currency", cfg.Store.Currency).
		Str("environment", cfg.Server.Environment).
		Str("db_path", cfg.Database.Path).
		Msg("Starting Souq")

	db, err := database.New(&cfg.Database)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer func() {
		if err := db.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing database")
		}
	}()
	logging.Info().Msg("Database initialized successfully")

	store, err := kv.Open(&cfg.KV)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to open key-value store")
	}
	defer func() {
		if err := store.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing key-value store")
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	languages := i18n.NewRegistry(cfg.Store.DefaultLanguage)
	if err := languages.Reload(ctx, db); err != nil {
		logging.Fatal().Err(err).Msg("Failed to load languages")
	}
	logging.Info().
		Str("default", languages.Default()).
		Int("active", len(languages.Languages())).
		Msg("Languages loaded")

	products := catalog.NewService(db, languages, catalog.Config{
		Currency:          cfg.Store.Currency,
		LowStockThreshold: cfg.Store.LowStockThreshold,
		CacheTTL:          cfg.Store.CacheTTL,
	})
	defer products.Close()

	carts := cart.NewService(cart.NewBadgerStore(store), products, cfg.Store.CartTTL, cfg.Store.Currency)

	gateways := payment.NewRegistryFromConfig(&cfg.Payments, db)
	logging.Info().Strs("gateways", gateways.Configured()).Msg("Payment gateways configured")

	bus, natsServer, err := initEvents(cfg)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize event bus")
	}
	defer func() {
		if err := bus.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing event bus")
		}
	}()

	orderService := orders.NewService(db, carts, gateways, bus, orders.Config{
		Currency:  cfg.Store.Currency,
		BaseURL:   cfg.Server.BaseURL,
		StoreName: cfg.Store.Name,
		Pricing: orders.Pricing{
			TaxRateBasisPoints:    cfg.Store.TaxRateBasisPoints,
			ShippingFlat:          cfg.Store.ShippingFlat,
			FreeShippingThreshold: cfg.Store.FreeShippingThreshold,
		},
		PendingOrderTTL: cfg.Store.PendingOrderTTL,
	})

	authService, err := initAuth(ctx, cfg, db, store)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize authentication")
	}

	enforcer, err := authz.NewEnforcer(authz.EnforcerConfig{CacheTTL: cfg.Security.AuthzCacheTTL})
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize authorization")
	}
	defer enforcer.Close()

	auditLogger := audit.NewLogger(db, cfg.Audit)
	defer func() {
		if err := auditLogger.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing audit logger")
		}
	}()

	posts := blog.NewService(db, languages)
	letters, sched := initNewsletter(cfg, db, languages)

	if cfg.Security.SessionStore == "memory" && !cfg.Server.IsDevelopment() {
		logging.Warn().Msg("Session store is 'memory': sessions are lost on restart. Set SESSION_STORE=badger in production.")
	}

	hub := ws.NewHub()
	perf := middleware.NewPerformanceMonitor(1000, time.Second)

	handler, err := api.NewHandler(api.Deps{
		Config:     cfg,
		DB:         db,
		Languages:  languages,
		Catalog:    products,
		Carts:      carts,
		Orders:     orderService,
		Payments:   gateways,
		Blog:       posts,
		Newsletter: letters,
		Auth:       authService,
		Authz:      enforcer,
		Audit:      auditLogger,
		Hub:        hub,
		Perf:       perf,
	})
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create API handler")
	}

	server := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           handler.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.Server.Timeout,
		WriteTimeout:      cfg.Server.Timeout,
		IdleTimeout:       60 * time.Second,
	}

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.TreeConfig{
		FailureThreshold: 5,
		FailureBackoff:   15 * time.Second,
		ShutdownTimeout:  10 * time.Second,
	})
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create supervisor tree")
	}

	// === ADD SERVICES TO SUPERVISOR TREE ===

	tree.AddDataService(services.NewKVGCService(kv.NewGCLoop(store, cfg.KV.GCInterval)))
	jobs, err := services.NewJobsService(logging.Logger(), maintenanceJobs(cfg, orderService, authService, auditLogger)...)
	if err != nil {
		logging.Fatal().Err(err).Msg("Invalid maintenance job schedule")
	}
	tree.AddDataService(jobs)
	logging.Info().Int("jobs", len(jobs.Jobs())).Msg("Maintenance jobs added to supervisor tree")

	tree.AddMessagingService(services.NewWebSocketHubService(hub))
	addEventServices(tree, cfg, bus, natsServer, hub)
	if sched != nil {
		tree.AddMessagingService(services.NewNewsletterSchedulerService(sched))
		logging.Info().Msg("Newsletter scheduler added to supervisor tree")
	}

	tree.AddAPIService(services.NewHTTPServerService(server, 10*time.Second))
	logging.Info().Str("addr", server.Addr).Msg("HTTP server service added")

	// === START SUPERVISOR TREE ===

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	logging.Info().Msg("Starting supervisor tree...")
	errCh := tree.ServeBackground(ctx)

	select {
	case <-ctx.Done():
		logging.Info().Msg("Context canceled, waiting for supervisor to finish...")
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor tree error")
		}
	}

	for err := range errCh {
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor shutdown error")
		}
	}

	unstopped, _ := tree.UnstoppedServiceReport()
	if len(unstopped) > 0 {
		logging.Warn().Int("count", len(unstopped)).Msg("Services failed to stop within timeout")
		for _, svc := range unstopped {
			logging.Warn().Str("service", svc.Name).Msg("Service failed to stop")
		}
	}

	logging.Info().Msg("Souq stopped gracefully")
}

// initAuth builds the account service and makes sure the configured
// administrator exists.
func initAuth(ctx context.Context, cfg *config.Config, db *database.DB, store *kv.Store) (*auth.Service, error) {
	sessions, err := auth.NewSessionStore(cfg.Security.SessionStore, store)
	if err != nil {
		return nil, err
	}
	tokens, err := auth.NewTokenManager(cfg.Security.JWTSecret, cfg.Security.TokenTTL)
	if err != nil {
		return nil, err
	}
	service := auth.NewService(db, sessions, tokens, auth.NewLockoutManager(store, auth.DefaultLockoutConfig()), auth.ServiceConfig{
		MinPasswordLength: cfg.Security.MinPasswordLen,
		SessionTTL:        cfg.Security.SessionTimeout,
	})

	if cfg.Security.AdminEmail == "" {
		logging.Info().Msg("ADMIN_EMAIL not set, skipping administrator bootstrap")
		return service, nil
	}
	admin, created, err := service.EnsureAdmin(ctx, cfg.Security.AdminEmail, cfg.Security.AdminPassword, "Administrator")
	if err != nil {
		return nil, fmt.Errorf("ensure admin: %w", err)
	}
	if created {
		logging.Info().Str("email", admin.Email).Msg("Administrator account created")
	}
	return service, nil
}
