// Package server initializes and runs the sync server.
// It wires storage, the sync service, the live-connection registry and the
// HTTP endpoint, and handles graceful shutdown.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/scribelab/scribe/internal/logging"
	"github.com/scribelab/scribe/internal/server/config"
	"github.com/scribelab/scribe/internal/server/httpapi"
	"github.com/scribelab/scribe/internal/server/registry"
	"github.com/scribelab/scribe/internal/server/services"
	"github.com/scribelab/scribe/internal/server/shared/db"
)

type App struct {
	config      *config.Config
	logger      logging.Logger
	manager     db.RepositoryManager
	syncService *services.SyncService
	registry    *registry.Registry
	server      *http.Server
}

func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {

	logger := logging.NewSlogLogger(slog.New(slog.NewJSONHandler(logOutput(cfg), nil)))

	m, err := db.NewPostgresRepositoryManager(cfg.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	if err := m.RunMigrations(ctx); err != nil {
		return nil, fmt.Errorf("db migration error: %w", err)
	}

	svc := services.NewSyncService(m.Documents(), m.Folders(), logger)

	reg := registry.New(registry.Config{
		HeartbeatInterval: cfg.HeartbeatInterval,
		StaleAfter:        cfg.StaleAfter,
	}, logger, time.Now)

	h := httpapi.NewSyncHandler(svc, reg, logger)

	srv := &http.Server{
		Addr:    cfg.EndpointAddr,
		Handler: httpapi.NewRouter(h, []byte(cfg.SecretKey)),
	}

	return &App{
		config:      cfg,
		logger:      logger,
		manager:     m,
		syncService: svc,
		registry:    reg,
		server:      srv,
	}, nil
}

// logOutput returns the writer for the JSON log handler. When a log file is
// configured the output is duplicated to a size-rotated file.
func logOutput(cfg *config.Config) io.Writer {
	if cfg.LogFile == "" {
		return os.Stdout
	}
	return io.MultiWriter(os.Stdout, &lumberjack.Logger{
		Filename:   cfg.LogFile,
		MaxSize:    100, // megabytes
		MaxBackups: 3,
		MaxAge:     28, // days
		Compress:   true,
	})
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {
	app.logger.Info(ctx, "Listening on "+app.config.EndpointAddr)

	if err := app.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

func (app *App) Run(ctx context.Context) {

	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.registry.Run(ctx)
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.server.Shutdown(shutdownCtx); err != nil {
		app.logger.Error(shutdownCtx, err.Error())
	}

	wg.Wait()

	if conn := app.manager.Conn(); conn != nil {
		if err := conn.Close(); err != nil {
			app.logger.Error(shutdownCtx, err.Error())
		}
	}
}
