// Package app wires configuration, logging, observability, the license
// store, and the HTTP transport into a runnable service.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/promptrecall/licensing/internal/config"
	"github.com/promptrecall/licensing/internal/infrastructure"
	"github.com/promptrecall/licensing/internal/license"
	custommw "github.com/promptrecall/licensing/internal/middleware"
	"github.com/promptrecall/licensing/internal/services"
	handlers "github.com/promptrecall/licensing/internal/transport/http"
	"github.com/promptrecall/licensing/internal/webhook"
)

const (
	AppName = "PromptRecall Licensing"
	Version = "v1.0.0"
)

// Application is the dependency container for the licensing service
type Application struct {
	Config         *config.Config
	Logger         *slog.Logger
	Router         *chi.Mux
	Server         *http.Server
	Store          license.Store
	Provisioner    *license.Provisioner
	LicenseService services.LicenseService
	Verifier       webhook.Verifier
	OTelProviders  *infrastructure.OTelProviders

	closeStore func() error
}

// NewApplication builds the application from configuration
func NewApplication() (*Application, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	logger.Info("application starting",
		slog.String("name", AppName),
		slog.String("version", Version))

	return NewApplicationWithConfig(cfg, logger)
}

// NewApplicationWithConfig builds the application from an already
// loaded configuration and logger. Split out for tests.
func NewApplicationWithConfig(cfg *config.Config, logger *slog.Logger) (*Application, error) {
	otelProviders, err := infrastructure.InitializeOTel(nil, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize observability: %w", err)
	}

	app := &Application{
		Config:        cfg,
		Logger:        logger,
		OTelProviders: otelProviders,
	}

	if err := app.initializeStore(); err != nil {
		return nil, err
	}
	app.initializeServices()
	app.setupRouter()
	app.createServer()

	return app, nil
}

func (a *Application) initializeStore() error {
	if a.Config.Firestore.Emulator {
		a.Logger.Warn("using in-memory license store; records will not survive a restart")
		a.Store = license.NewMemoryStore()
		a.closeStore = func() error { return nil }
		return nil
	}

	store, err := license.NewFirestoreStore(context.Background(), a.Config.Firestore, a.Logger)
	if err != nil {
		return fmt.Errorf("failed to connect to license store: %w", err)
	}
	a.Store = store
	a.closeStore = store.Close
	return nil
}

func (a *Application) initializeServices() {
	metrics, err := license.InitializeMetrics(a.OTelProviders.Meter)
	if err != nil {
		// Metrics are observability, not correctness; run without them.
		a.Logger.Warn("failed to initialize license metrics", slog.String("error", err.Error()))
	}

	a.Verifier = webhook.NewStripeVerifier(a.Logger)
	a.Provisioner = license.NewProvisioner(a.Store, a.Logger)
	a.Provisioner.SetMetrics(metrics)
	a.LicenseService = services.NewLicenseServiceWithMetrics(a.Store, a.Logger, metrics)
}

func (a *Application) setupRouter() {
	r := chi.NewRouter()

	r.Use(custommw.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(custommw.StructuredLogger(a.Logger))
	r.Use(custommw.Recoverer(a.Logger))

	licenseHandler := handlers.NewLicenseHandler(a.LicenseService, a.Logger)
	webhookHandler := handlers.NewWebhookHandler(
		a.Verifier,
		a.Provisioner,
		a.Config.Stripe.WebhookSecret,
		a.Config.Stripe.MaxBodyBytes,
		a.Logger,
	)
	healthHandler := handlers.NewHealthHandler(a.Store, Version, a.Logger)

	r.Route("/verify", func(r chi.Router) {
		if a.Config.Security.EnableCORS {
			r.Use(custommw.CORS(custommw.CORSConfig{
				AllowedOrigins: a.Config.Security.AllowedOrigins,
				Logger:         a.Logger,
			}))
		}
		r.Mount("/", licenseHandler.Routes())
	})

	r.Mount("/webhook/stripe", webhookHandler.Routes())
	r.Get("/healthz", healthHandler.Health)

	if a.OTelProviders.PrometheusHTTP != nil {
		r.Method(http.MethodGet, "/metrics", a.OTelProviders.PrometheusHTTP)
	}

	a.Router = r
}

func (a *Application) createServer() {
	a.Server = &http.Server{
		Addr:           a.Config.GetServerAddress(),
		Handler:        a.Router,
		ReadTimeout:    a.Config.Server.ReadTimeout,
		WriteTimeout:   a.Config.Server.WriteTimeout,
		IdleTimeout:    a.Config.Server.IdleTimeout,
		MaxHeaderBytes: a.Config.Server.MaxHeaderBytes,
	}
}

// Run starts the server and blocks until shutdown completes
func (a *Application) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.Logger.Info("server listening",
			slog.String("addr", a.Server.Addr),
			slog.Bool("webhook_secret_configured", a.Config.Stripe.WebhookSecret != ""))
		if err := a.Server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		return a.Stop()
	})

	return g.Wait()
}

// Stop gracefully shuts the service down
func (a *Application) Stop() error {
	a.Logger.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), a.Config.Server.ShutdownTimeout)
	defer cancel()

	if err := a.Server.Shutdown(ctx); err != nil {
		a.Logger.Error("server shutdown failed", slog.String("error", err.Error()))
	}
	if err := a.closeStore(); err != nil {
		a.Logger.Error("store close failed", slog.String("error", err.Error()))
	}
	if err := a.OTelProviders.Shutdown(ctx); err != nil {
		a.Logger.Error("otel shutdown failed", slog.String("error", err.Error()))
	}
	infrastructure.CloseLogFile()

	a.Logger.Info("shutdown complete")
	return nil
}
