// Package server wires the filehost components together and runs them.
// It opens the metadata store, applies migrations, selects the storage
// backend, and serves the REST API and the gRPC health endpoint until the
// context is cancelled.
package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/dmitrijs2005/filehost/internal/logging"
	"github.com/dmitrijs2005/filehost/internal/server/api"
	"github.com/dmitrijs2005/filehost/internal/server/auth"
	"github.com/dmitrijs2005/filehost/internal/server/config"
	"github.com/dmitrijs2005/filehost/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/filehost/internal/server/services"
	"github.com/dmitrijs2005/filehost/internal/server/storage"
	"github.com/labstack/echo/v4"

	gs "github.com/dmitrijs2005/filehost/internal/server/grpc"
)

const shutdownTimeout = 10 * time.Second

// Seams for tests.
var (
	openDB         = repomanager.Open
	newRepoManager = repomanager.NewPostgresRepositoryManager
	logOutput      io.Writer = os.Stdout
)

type App struct {
	config  *config.Config
	logger  logging.Logger
	db      *sql.DB
	storage *storage.Init
	http    *echo.Echo
	grpc    *gs.GRPCServer
}

// NewApp builds every component. Storage problems are downgraded to warnings
// by the storage package; database and migration failures are fatal.
func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	logger := logging.NewJSONLogger(logOutput, c.LogLevel)

	db, err := openDB(ctx, c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	rm := newRepoManager()
	if err := rm.RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db init error: %w", err)
	}

	st, err := storage.New(ctx, c, logger)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("storage init error: %w", err)
	}

	files := services.NewFileService(db, rm, st.Backend, services.FileServiceConfig{
		AllowedExtensions: c.AllowedExtensions,
		MaxFileSize:       c.MaxFileSize,
		DefaultPageSize:   c.ItemsPerPage,
	}, logger, nil)
	users := services.NewUserService(db, rm, c, logger)
	resolver := auth.NewResolver(db, rm, []byte(c.SecretKey), logger)

	handler := api.NewHandler(files, users, db, st.Backend.Mode(), logger)

	grpcServer := gs.NewGRPCServer(c.GRPCAddr, logger)
	grpcServer.SetStorageReady(true)

	return &App{
		config:  c,
		logger:  logger,
		db:      db,
		storage: st,
		http:    api.SetupRouter(handler, resolver, c, logger),
		grpc:    grpcServer,
	}, nil
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {
	go func() {
		<-ctx.Done()
		app.logger.Info(ctx, "Stopping HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := app.http.Shutdown(shutdownCtx); err != nil {
			app.logger.Error(ctx, "http shutdown", "error", err)
		}
	}()

	app.logger.Info(ctx, "Starting HTTP server", "address", app.config.HTTPAddr, "storage", string(app.storage.Backend.Mode()))

	if err := app.http.Start(app.config.HTTPAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

func (app *App) startGRPCServer(ctx context.Context, cancelFunc context.CancelFunc) {
	if err := app.grpc.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

// Run serves until ctx is cancelled or one of the servers fails, then
// closes the database.
func (app *App) Run(ctx context.Context) {

	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	var wg sync.WaitGroup

	wg.Add(2)
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()
	go func() {
		defer wg.Done()
		app.startGRPCServer(ctx, cancelFunc)
	}()

	wg.Wait()

	if err := app.db.Close(); err != nil {
		app.logger.Error(ctx, "db close", "error", err)
	}
	app.logger.Info(ctx, "App stopped")
}
