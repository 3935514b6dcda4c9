package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpapi "github.com/lamplight/frontsession/internal/session/http"
	"github.com/lamplight/frontsession/internal/session/service"
	"github.com/lamplight/frontsession/internal/session/store"
	"github.com/lamplight/frontsession/internal/session/store/drivers/sqlite"
	"github.com/lamplight/frontsession/pkg/slogx"
)

const (
	// BuildVersion should be set at build time via ldflags. Later problem
	BuildVersion = "v0.1.0"
)

// Application encapsulates the session service with all its dependencies.
type Application struct {
	cfg    Config
	logger *slog.Logger

	db store.Store

	directory           *service.DirectoryService
	checker             *service.Checker
	mailer              *service.Mailer
	housekeepingService *service.HousekeepingService

	server *http.Server
	router *httpapi.Router
}

// New creates a new Application instance with all dependencies initialized.
func New(cfg Config) (*Application, error) {
	// The secret keys every fingerprint and token; running without one would
	// silently issue forgeable cookies.
	if cfg.Secret == "" {
		return nil, errors.New("SESSION_SECRET must be set")
	}

	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: "frontsession",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
	}

	if err := app.initDatabase(); err != nil {
		return nil, err
	}

	app.initServices()
	app.initHTTP()

	return app, nil
}

// Run starts the application and blocks until shutdown is requested.
func (app *Application) Run() error {
	app.housekeepingService.Start()

	app.logger.Info("session service starting", "port", app.cfg.Port, "version", BuildVersion)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- app.server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
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

// Shutdown gracefully shuts down the application.
func (app *Application) Shutdown() error {
	app.logger.Info("shutting down session service...")

	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", "error", err)
		if err := app.server.Close(); err != nil {
			app.logger.Error("error closing server", "error", err)
		}
	}

	app.housekeepingService.Stop()

	if err := app.db.Close(); err != nil {
		app.logger.Error("error closing database", "error", err)
		return err
	}

	app.logger.Info("session service stopped")
	return nil
}

// initDatabase initializes the database and applies migrations.
func (app *Application) initDatabase() error {
	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL", app.cfg.DatabaseFile)
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

// initServices initializes all business logic services.
func (app *Application) initServices() {
	secret := []byte(app.cfg.Secret)

	app.directory = &service.DirectoryService{
		Store:  app.db,
		Secret: secret,
	}

	app.checker = &service.Checker{
		Store:      app.db,
		Directory:  app.directory,
		Secret:     secret,
		SessionTTL: app.cfg.SessionTTL,
	}

	// No from-address means no Notifier; mail sends become no-ops.
	var notifier service.Notifier
	if app.cfg.MailFrom != "" {
		notifier = &service.SMTPNotifier{
			Addr: app.cfg.SMTPAddr,
			From: app.cfg.MailFrom,
		}
	} else if app.cfg.Env == "dev" {
		notifier = &service.LogNotifier{Logger: app.logger}
	}
	app.mailer = &service.Mailer{
		Notifier:   notifier,
		AdminRcpts: app.cfg.AdminRcpts,
	}

	app.housekeepingService = service.NewHousekeepingService(
		app.db,
		app.logger,
		app.cfg.HousekeepingInterval,
	)
}

// initHTTP initializes the HTTP router and server.
func (app *Application) initHTTP() {
	router := httpapi.NewRouter(BuildVersion, app.db, app.logger)

	router.SessionHandler = &httpapi.SessionHandler{
		Checker:   app.checker,
		Directory: app.directory,
		Mailer:    app.mailer,
		Store:     app.db,
		Sinks:     []service.AuthEventSink{&service.LogEventSink{Logger: app.logger}},
		Secret:    []byte(app.cfg.Secret),

		Active:            app.cfg.Active,
		Registration:      app.cfg.Registration,
		Recovery:          app.cfg.Recovery,
		PasswordMinLength: app.cfg.PasswordMinLength,

		Cookies: httpapi.CookieConfig{
			SessionName:  app.cfg.SessionCookieName,
			RememberName: app.cfg.RememberCookieName,
			Domain:       app.cfg.CookieDomain,
		},
	}
	router.ApplyRoutes()

	app.router = router

	app.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 3 * time.Second,
	}
}
