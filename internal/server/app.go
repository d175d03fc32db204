// Package server wires the configuration, storage backend, services and the
// HTTP transport together and runs them until the process is told to stop.
package server

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/dmitrijs2005/securingai/internal/logging"
	"github.com/dmitrijs2005/securingai/internal/server/config"
	"github.com/dmitrijs2005/securingai/internal/server/httpapi"
	"github.com/dmitrijs2005/securingai/internal/server/password"
	"github.com/dmitrijs2005/securingai/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/securingai/internal/server/services"
	"github.com/dmitrijs2005/securingai/internal/server/session"
	"github.com/dmitrijs2005/securingai/internal/server/storage"
)

type App struct {
	config      *config.Config
	logger      logging.Logger
	repomanager repomanager.RepositoryManager
	services    *services.Services
	server      *httpapi.HTTPServer
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	logger := logging.NewJSONLogger(os.Stdout, c.LogLevel)

	rm, err := newRepositoryManager(ctx, c, logger)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	hasher, err := password.New(c.PasswordScheme, c.PasswordRounds)
	if err != nil {
		_ = rm.Close()
		return nil, fmt.Errorf("password context error: %w", err)
	}

	store, err := storage.NewS3Service(ctx, storage.Options{
		Region:       c.S3Region,
		AccessKey:    c.S3RootUser,
		SecretKey:    c.S3RootPassword,
		BaseEndpoint: c.S3BaseEndpoint,
		Timeout:      c.UploadTimeout,
	}, logger)
	if err != nil {
		_ = rm.Close()
		return nil, fmt.Errorf("s3 init error: %w", err)
	}

	sessions := session.NewManager(c.SecretKey, c.SessionValidityDuration)
	us := services.NewUserService(rm.Users(), hasher, logger)
	svc := &services.Services{
		Password: hasher,
		User:     us,
		Auth:     services.NewAuthService(us, sessions, logger),
		Storage:  store,
	}

	srv, err := httpapi.NewHTTPServer(httpapi.Options{
		Address:      c.EndpointAddrHTTP,
		UploadBucket: c.S3Bucket,
		Environment:  c.Environment,
	}, logger, svc, sessions)
	if err != nil {
		_ = rm.Close()
		return nil, fmt.Errorf("http server init error: %w", err)
	}

	return &App{config: c, logger: logger, repomanager: rm, services: svc, server: srv}, nil
}

// newRepositoryManager keeps users in memory unless a DSN is configured.
func newRepositoryManager(ctx context.Context, c *config.Config, logger logging.Logger) (repomanager.RepositoryManager, error) {
	if c.DatabaseDSN == "" {
		logger.Info(ctx, "using in-memory user store")
		return repomanager.NewInMemoryRepositoryManager(), nil
	}

	rm, err := repomanager.OpenPostgres(ctx, c.DatabaseDSN)
	if err != nil {
		return nil, err
	}
	if err := rm.RunMigrations(ctx); err != nil {
		_ = rm.Close()
		return nil, fmt.Errorf("migration error: %w", err)
	}
	return rm, nil
}

func (app *App) initSignalHandler(ctx context.Context, cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		defer signal.Stop(sigs)
		select {
		case <-sigs:
			cancelFunc()
		case <-ctx.Done():
		}
	}()
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {
	if err := app.server.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

// Run blocks until ctx is cancelled, a termination signal arrives or the
// HTTP server fails.
func (app *App) Run(ctx context.Context) {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(ctx, cancelFunc)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()

	wg.Wait()

	if err := app.repomanager.Close(); err != nil {
		app.logger.Error(ctx, "error closing storage", "error", err)
	}
	app.logger.Info(ctx, "App stopped")
}
