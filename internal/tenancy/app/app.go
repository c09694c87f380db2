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

	"github.com/veridianhq/tenancy/internal/tenancy/domain"
	"github.com/veridianhq/tenancy/internal/tenancy/guard"
	httpapi "github.com/veridianhq/tenancy/internal/tenancy/http"
	"github.com/veridianhq/tenancy/internal/tenancy/notify"
	"github.com/veridianhq/tenancy/internal/tenancy/service"
	"github.com/veridianhq/tenancy/internal/tenancy/store"
	"github.com/veridianhq/tenancy/internal/tenancy/store/drivers/sqlite"
	"github.com/veridianhq/tenancy/pkg/cryptox"
	"github.com/veridianhq/tenancy/pkg/idx"
	"github.com/veridianhq/tenancy/pkg/jwtx"
	"github.com/veridianhq/tenancy/pkg/slogx"
)

const (
	// BuildVersion should be set at build time via ldflags. Later problem
	BuildVersion = "v0.1.0"
)

// Application encapsulates the tenancy service with all its dependencies.
type Application struct {
	cfg    Config
	logger *slog.Logger

	db       store.Store
	sessions *jwtx.Sessions
	guards   *guard.Pipeline

	sessionService      *service.SessionService
	mfaService          *service.MFAService
	redemptionService   *service.RedemptionService
	tokenAdminService   *service.TokenAdminService
	housekeepingService *service.HousekeepingService

	server *http.Server
	router *httpapi.Router
}

// New creates an Application with all dependencies initialized.
func New(cfg Config) (*Application, error) {
	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: "tenancy",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
	}

	// Set pepper path for password hashing
	cryptox.SetPepperPath(app.cfg.PepperFile)

	if err := app.initDatabase(); err != nil {
		return nil, err
	}

	sessions, err := jwtx.LoadOrGenerateSessions(app.cfg.SessionKeyFile)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize session keys: %w", err)
	}
	app.sessions = sessions

	app.guards = &guard.Pipeline{
		Dir:             guard.NewStoreDirectory(app.db),
		PremiumDisabled: func() bool { return app.cfg.PremiumDisabled },
	}

	app.initServices()

	if err := app.bootstrap(context.Background()); err != nil {
		return nil, err
	}

	app.initHTTP()

	return app, nil
}

// Run starts the application and blocks until shutdown is requested.
func (app *Application) Run() error {
	app.housekeepingService.Start(context.Background())

	app.logger.Info("tenancy service starting", "port", app.cfg.Port, "version", BuildVersion)

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

// Shutdown gracefully shuts down the application.
func (app *Application) Shutdown() error {
	app.logger.Info("shutting down tenancy service...")

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

	app.logger.Info("tenancy service stopped")
	return nil
}

// initDatabase initializes the database and applies migrations.
func (app *Application) initDatabase() error {
	host := fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL", app.cfg.DatabaseFile)
	db, err := sqlite.NewStore(host)
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
	app.sessionService = &service.SessionService{
		Store:      app.db,
		Sessions:   app.sessions,
		Issuer:     app.cfg.Issuer,
		SessionTTL: app.cfg.SessionTTL,
	}

	app.mfaService = &service.MFAService{
		Store:  app.db,
		Issuer: app.cfg.Issuer,
	}

	app.redemptionService = &service.RedemptionService{
		Store:    app.db,
		Notifier: &notify.LogNotifier{},
	}

	app.tokenAdminService = &service.TokenAdminService{Store: app.db}

	app.housekeepingService = service.NewHousekeepingService(
		app.db,
		app.logger,
		app.cfg.HousekeepingInterval,
	)
}

// bootstrap creates the first platform owner when the store is empty and
// bootstrap credentials are configured. Idempotent across restarts.
func (app *Application) bootstrap(ctx context.Context) error {
	if app.cfg.BootstrapEmail == "" || app.cfg.BootstrapPassword == "" {
		return nil
	}

	empty, err := app.db.Principals().IsEmpty(ctx)
	if err != nil {
		return fmt.Errorf("bootstrap check failed: %w", err)
	}
	if !empty {
		return nil
	}

	hash, err := cryptox.HashPassword(app.cfg.BootstrapPassword)
	if err != nil {
		return fmt.Errorf("bootstrap password hashing failed: %w", err)
	}

	owner := domain.Principal{
		ID:           idx.New().String(),
		Email:        app.cfg.BootstrapEmail,
		Name:         "Platform Owner",
		PasswordHash: hash,
		GlobalRole:   domain.GlobalRolePlatformOwner,
		Plan:         domain.PlanEnterprise,
		Subscription: domain.SubscriptionActive,
	}
	if err := app.db.Principals().CreatePrincipal(ctx, owner); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return nil
		}
		return fmt.Errorf("bootstrap owner creation failed: %w", err)
	}

	app.logger.Info("bootstrapped platform owner", "principal_id", owner.ID)
	return nil
}

// initHTTP initializes the HTTP router and server.
func (app *Application) initHTTP() {
	router := httpapi.NewRouter(
		app.sessions,
		BuildVersion,
		app.db,
		app.guards,
		app.logger,
	)

	router.SessionService = app.sessionService
	router.MFAService = app.mfaService
	router.RedemptionService = app.redemptionService
	router.TokenAdminService = app.tokenAdminService
	router.ApplyRoutes()

	app.router = router

	app.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 3 * time.Second,
	}
}
