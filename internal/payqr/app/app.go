package app

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpapi "github.com/tabletap/payqr/internal/payqr/http"
	"github.com/tabletap/payqr/internal/payqr/notify"
	"github.com/tabletap/payqr/internal/payqr/service"
	"github.com/tabletap/payqr/internal/payqr/store"
	"github.com/tabletap/payqr/internal/payqr/store/drivers/sqlite"
	"github.com/tabletap/payqr/pkg/cryptox"
	"github.com/tabletap/payqr/pkg/jwtx"
	"github.com/tabletap/payqr/pkg/slogx"
)

const (
	// BuildVersion should be set at build time via ldflags.
	BuildVersion = "v0.1.0"
)

// Application wires the payment confirmation service together: store,
// signer, services, notification hub, housekeeping worker and HTTP server.
type Application struct {
	cfg    Config
	logger *slog.Logger

	db     store.Store
	signer *jwtx.HS256
	hub    *notify.Hub

	orderService  *service.OrderService
	issuerService *service.IssuerService
	validator     *service.ValidatorService
	confirmer     *service.ConfirmerService
	auditRecorder *service.AuditRecorder
	housekeeping  *service.HousekeepingService

	server *http.Server
	router *httpapi.Router
}

// New creates an Application with all dependencies initialized.
func New(cfg Config) (*Application, error) {
	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: "payqr",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
	}

	if err := app.initDatabase(); err != nil {
		return nil, err
	}
	if err := app.initSigner(); err != nil {
		_ = app.db.Close()
		return nil, err
	}
	if err := app.initServices(); err != nil {
		_ = app.db.Close()
		return nil, err
	}
	if err := app.initHTTP(); err != nil {
		_ = app.db.Close()
		return nil, err
	}

	return app, nil
}

// Run starts the application and blocks until shutdown is requested.
func (app *Application) Run() error {
	app.housekeeping.Start()

	app.logger.Info("payqr service starting", "port", app.cfg.Port, "version", BuildVersion)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- app.server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server failed: %w", err)
		}
	case sig := <-shutdown:
		app.logger.Info("shutdown signal received", "signal", sig)

		if err := app.Shutdown(); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}

	return nil
}

// Shutdown stops the server, the housekeeping worker and the store,
// giving outstanding requests a bounded window to finish.
func (app *Application) Shutdown() error {
	app.logger.Info("shutting down payqr service...")

	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", "error", err)
		if err := app.server.Close(); err != nil {
			app.logger.Error("error closing server", "error", err)
		}
	}

	app.housekeeping.Stop()

	if err := app.db.Close(); err != nil {
		app.logger.Error("error closing database", "error", err)
		return err
	}

	app.logger.Info("payqr service stopped")
	return nil
}

func (app *Application) initDatabase() error {
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", app.cfg.DatabaseFile)
	db, err := sqlite.NewStore(dsn)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	app.db = db

	if err := db.ApplyMigrations(); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to apply database migrations: %w", err)
	}

	app.logger.Info("database migrations applied successfully")
	return nil
}

func (app *Application) initSigner() error {
	secret, err := app.cfg.signingSecret()
	if err != nil {
		return fmt.Errorf("failed to load signing secret: %w", err)
	}
	if secret == nil {
		if app.cfg.Env != "dev" {
			return fmt.Errorf("PAYQR_SIGNING_SECRET or PAYQR_SIGNING_SECRET_FILE is required outside dev")
		}
		// Dev convenience: an ephemeral secret means all credentials die
		// with the process.
		buf := make([]byte, 32)
		if _, err := rand.Read(buf); err != nil {
			return fmt.Errorf("failed to generate dev signing secret: %w", err)
		}
		secret = []byte(base64.RawStdEncoding.EncodeToString(buf))
		app.logger.Warn("using ephemeral signing secret; issued credentials will not survive restarts")
	}

	signer, err := jwtx.NewHS256(secret, app.cfg.Issuer, app.cfg.Audience)
	if err != nil {
		return fmt.Errorf("failed to initialize signer: %w", err)
	}
	app.signer = signer
	return nil
}

func (app *Application) initServices() error {
	app.hub = notify.NewHub()
	app.auditRecorder = &service.AuditRecorder{Store: app.db}

	app.orderService = &service.OrderService{Store: app.db}
	app.issuerService = &service.IssuerService{
		Store:    app.db,
		Signer:   app.signer,
		TTL:      app.cfg.TokenTTL,
		Audience: app.cfg.Audience,
	}
	app.validator = &service.ValidatorService{
		Store:  app.db,
		Signer: app.signer,
		Audit:  app.auditRecorder,
	}
	app.confirmer = &service.ConfirmerService{
		Store:    app.db,
		Audit:    app.auditRecorder,
		Notifier: app.hub,
	}

	app.housekeeping = service.NewHousekeepingService(
		app.db,
		app.logger,
		app.cfg.HousekeepingInterval,
		app.cfg.AuditRetention,
	)

	return nil
}

func (app *Application) initHTTP() error {
	router := httpapi.NewRouter(BuildVersion, app.db, app.logger)

	if app.cfg.TerminalAPIKey != "" {
		hash, err := cryptox.HashAPIKey(app.cfg.TerminalAPIKey)
		if err != nil {
			return fmt.Errorf("failed to hash terminal API key: %w", err)
		}
		router.TerminalAPIKeyHash = hash
	} else {
		app.logger.Warn("terminal API key not set; terminal endpoints are unauthenticated")
	}

	router.OrderService = app.orderService
	router.IssuerService = app.issuerService
	router.Validator = app.validator
	router.Confirmer = app.confirmer
	router.AuditRecorder = app.auditRecorder
	router.Hub = app.hub
	router.ApplyRoutes()

	app.router = router

	app.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 3 * time.Second,
	}

	return nil
}
