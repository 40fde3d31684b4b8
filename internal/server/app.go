// Package server wires the backend: it opens the configured document
// store, builds the account service and runs the gRPC and health listeners
// until a termination signal arrives.
package server

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/dmitrijs2005/duomatch/internal/docstore"
	"github.com/dmitrijs2005/duomatch/internal/docstore/memory"
	"github.com/dmitrijs2005/duomatch/internal/docstore/postgres"
	"github.com/dmitrijs2005/duomatch/internal/docstore/s3store"
	"github.com/dmitrijs2005/duomatch/internal/docstore/sqlite"
	"github.com/dmitrijs2005/duomatch/internal/logging"
	"github.com/dmitrijs2005/duomatch/internal/server/accounts"
	"github.com/dmitrijs2005/duomatch/internal/server/config"
	"github.com/dmitrijs2005/duomatch/internal/server/health"

	gs "github.com/dmitrijs2005/duomatch/internal/server/grpc"
)

// seams for tests
var (
	openSQLite   = func(ctx context.Context, path string) (docstore.Store, error) { return sqlite.Open(ctx, path) }
	openPostgres = func(ctx context.Context, dsn string) (docstore.Store, error) { return postgres.Open(ctx, dsn) }
	openS3       = func(ctx context.Context, c *config.Config) (docstore.Store, error) {
		client, err := s3store.NewClient(ctx, s3store.ClientOptions{
			Region:       c.S3Region,
			BaseEndpoint: c.S3BaseEndpoint,
			AccessKey:    c.S3RootUser,
			SecretKey:    c.S3RootPassword,
		})
		if err != nil {
			return nil, err
		}
		return s3store.New(client, c.S3Bucket, c.S3Prefix), nil
	}
)

type App struct {
	config   *config.Config
	logger   logging.Logger
	store    docstore.Store
	accounts *accounts.Service
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	logger := logging.NewJSON(os.Stdout, c.LogLevel)

	store, err := openStore(ctx, c)
	if err != nil {
		return nil, fmt.Errorf("store init error: %w", err)
	}
	logger.Info(ctx, "document store ready", "backend", c.StoreBackend)

	as := accounts.NewService(store, c.SecretKey, c.AccessTokenValidityDuration, logger)

	return &App{config: c, logger: logger, store: store, accounts: as}, nil
}

func openStore(ctx context.Context, c *config.Config) (docstore.Store, error) {
	switch c.StoreBackend {
	case config.StoreMemory:
		return memory.New(), nil
	case config.StoreSQLite:
		return openSQLite(ctx, c.SQLitePath)
	case config.StorePostgres:
		return openPostgres(ctx, c.DatabaseDSN)
	case config.StoreS3:
		return openS3(ctx, c)
	default:
		return nil, fmt.Errorf("unknown store backend %q", c.StoreBackend)
	}
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startGRPCServer(ctx context.Context, cancelFunc context.CancelFunc) {
	s := gs.NewGRPCServer(app.config.EndpointAddrGRPC, app.logger, app.accounts, app.store, app.config.SecretKey)
	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

func (app *App) startHealthServer(ctx context.Context, cancelFunc context.CancelFunc) {
	pinger, _ := app.store.(docstore.Pinger)
	h := health.New(app.config.EndpointAddrHealth, pinger, app.logger)
	if err := h.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

// Run serves until ctx is cancelled, a termination signal arrives or a
// listener fails, then closes the store.
func (app *App) Run(ctx context.Context) {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(2)
	go func() {
		defer wg.Done()
		app.startGRPCServer(ctx, cancelFunc)
	}()
	go func() {
		defer wg.Done()
		app.startHealthServer(ctx, cancelFunc)
	}()

	wg.Wait()

	if c, ok := app.store.(io.Closer); ok {
		if err := c.Close(); err != nil {
			app.logger.Error(ctx, "closing store", "error", err)
		}
	}
	app.logger.Info(ctx, "App stopped")
}
