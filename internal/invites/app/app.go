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

	httpapi "github.com/aussiebroadwan/realminvite/internal/invites/http"
	"github.com/aussiebroadwan/realminvite/internal/invites/metrics"
	"github.com/aussiebroadwan/realminvite/internal/invites/service"
	"github.com/aussiebroadwan/realminvite/internal/invites/store"
	"github.com/aussiebroadwan/realminvite/internal/invites/store/drivers/postgres"
	"github.com/aussiebroadwan/realminvite/internal/invites/store/drivers/sqlite"
	"github.com/aussiebroadwan/realminvite/pkg/cryptox"
	"github.com/aussiebroadwan/realminvite/pkg/httpx"
	"github.com/aussiebroadwan/realminvite/pkg/idpclient"
	"github.com/aussiebroadwan/realminvite/pkg/jwtx"
	"github.com/aussiebroadwan/realminvite/pkg/slogx"
)

const (
	// BuildVersion is overridden at build time via ldflags.
	BuildVersion = "v0.1.0"

	serviceName = "invite-service"
)

// Application encapsulates the invite service with all its dependencies.
type Application struct {
	cfg    Config
	logger *slog.Logger

	db       store.Store
	codec    *cryptox.TokenCodec
	verifier jwtx.Verifier
	identity *idpclient.Client
	metrics  *metrics.Metrics

	inviteService       *service.InviteService
	redemptionService   *service.RedemptionService
	housekeepingService *service.HousekeepingService

	server *http.Server
	router *httpapi.Router
}

// New validates cfg and builds every dependency. Nothing is started.
func New(cfg Config) (*Application, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: serviceName,
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
		metrics: metrics.New(metrics.Config{
			ServiceName: serviceName,
			Environment: cfg.Env,
		}),
	}

	if err := app.initDatabase(); err != nil {
		return nil, err
	}
	if err := app.initSecurity(); err != nil {
		_ = app.db.Close()
		return nil, err
	}
	if err := app.initIdentity(); err != nil {
		_ = app.db.Close()
		return nil, err
	}
	if err := app.initServices(); err != nil {
		_ = app.db.Close()
		return nil, err
	}
	app.initHTTP()

	return app, nil
}

// Handler returns the fully wired HTTP handler.
func (app *Application) Handler() http.Handler {
	return app.router
}

// Close releases the database for an application that was never started.
func (app *Application) Close() error {
	return app.db.Close()
}

// Run starts the application and blocks until shutdown is requested
func (app *Application) Run() error {
	app.housekeepingService.Start()

	app.logger.Info("invite service starting", "port", app.cfg.Port, "version", BuildVersion)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- app.server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		app.housekeepingService.Stop()
		_ = app.db.Close()
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

// Shutdown gracefully shuts down the application
func (app *Application) Shutdown() error {
	app.logger.Info("shutting down invite service...")

	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", slogx.Err(err))
		if err := app.server.Close(); err != nil {
			app.logger.Error("error closing server", slogx.Err(err))
		}
	}

	app.housekeepingService.Stop()

	if err := app.db.Close(); err != nil {
		app.logger.Error("error closing database", slogx.Err(err))
		return err
	}

	app.logger.Info("invite service stopped")
	return nil
}

// initDatabase opens the configured store and applies migrations
func (app *Application) initDatabase() error {
	var (
		db  store.Store
		err error
	)
	switch app.cfg.DatabaseDriver {
	case DriverPostgres:
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		db, err = postgres.NewStore(ctx, app.cfg.DatabaseURL)
	default:
		dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", app.cfg.DatabaseFile)
		db, err = sqlite.NewStore(dsn)
	}
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	app.db = db

	if err := db.ApplyMigrations(); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to apply database migrations: %w", err)
	}

	app.logger.Info("database migrations applied successfully", "driver", app.cfg.DatabaseDriver)
	return nil
}

// initSecurity builds the token codec and the operator token verifier.
func (app *Application) initSecurity() error {
	secret := []byte(app.cfg.HMACSecret)
	if len(secret) == 0 {
		var err error
		secret, err = cryptox.LoadOrGenerateSecret(app.cfg.HMACSecretFile, cryptox.TokenSize256)
		if err != nil {
			return fmt.Errorf("failed to load invite secret: %w", err)
		}
	}

	codec, err := cryptox.NewTokenCodec(cryptox.TokenCodecConfig{
		TokenBytes: app.cfg.TokenBytes,
		SaltBytes:  app.cfg.SaltBytes,
		Algorithm:  app.cfg.HMACAlgorithm,
		Secret:     secret,
	})
	if err != nil {
		return fmt.Errorf("failed to build token codec: %w", err)
	}
	app.codec = codec

	verifier, err := jwtx.NewHS256Verifier([]byte(app.cfg.AdminJWTSecret), jwtx.VerifyOptions{
		Issuer: app.cfg.AdminJWTIssuer,
		Leeway: 30 * time.Second,
	})
	if err != nil {
		return fmt.Errorf("failed to build operator token verifier: %w", err)
	}
	app.verifier = verifier
	return nil
}

func (app *Application) initIdentity() error {
	client, err := idpclient.New(idpclient.Config{
		BaseURL:         app.cfg.IDPBaseURL,
		TokenRealm:      app.cfg.IDPTokenRealm,
		ClientID:        app.cfg.IDPClientID,
		ClientSecret:    app.cfg.IDPClientSecret,
		ConnectTimeout:  app.cfg.IDPConnectTimeout,
		ResponseTimeout: app.cfg.IDPResponseTimeout,
		MaxAttempts:     app.cfg.IDPMaxAttempts,
		BaseDelay:       app.cfg.IDPBaseDelay,
		DefaultActions:  app.cfg.IDPActions,
	},
		idpclient.WithLogger(app.logger),
		idpclient.WithObserver(app.metrics),
	)
	if err != nil {
		return fmt.Errorf("failed to build identity client: %w", err)
	}
	app.identity = client
	return nil
}

// initServices initializes all business logic services
func (app *Application) initServices() error {
	realmRoles, err := loadRealmRoles(app.cfg.RealmsFile, app.cfg.RealmRoles)
	if err != nil {
		return err
	}

	app.inviteService = service.NewInviteService(app.db, app.codec, service.InviteConfig{
		DefaultExpiry: app.cfg.DefaultExpiry,
		MinExpiry:     app.cfg.MinExpiry,
		MaxExpiry:     app.cfg.MaxExpiry,
		DefaultRoles:  realmRoles,
	})

	app.redemptionService = &service.RedemptionService{
		Invites:  app.inviteService,
		Identity: app.identity,
		Observer: app.metrics,
	}

	app.housekeepingService = service.NewHousekeepingService(
		app.inviteService,
		app.logger,
		app.cfg.HousekeepingInterval,
		app.cfg.Retention,
	)
	app.housekeepingService.Observe = app.metrics.ObserveCleanup

	app.logger.Info("realm defaults loaded", "realms", len(realmRoles))
	return nil
}

// initHTTP initializes the HTTP router and server
func (app *Application) initHTTP() {
	httpx.StrictLimit = httpx.ParseRateLimitFromEnv("STRICT", httpx.StrictLimit)
	httpx.ModerateLimit = httpx.ParseRateLimitFromEnv("MODERATE", httpx.ModerateLimit)
	httpx.LenientLimit = httpx.ParseRateLimitFromEnv("LENIENT", httpx.LenientLimit)

	router := httpapi.NewRouter(
		app.verifier,
		BuildVersion,
		app.db,
		app.metrics,
		app.logger,
	)
	router.InviteService = app.inviteService
	router.RedemptionService = app.redemptionService
	router.Roles = app.identity
	router.ApplyRoutes()

	app.router = router

	app.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 3 * time.Second,
	}
}
