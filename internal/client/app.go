// Package client initializes and runs the sync agent: the local store, the
// HTTP api client, the connectivity watcher, the sync orchestrator and the
// websocket push channel.
package client

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	gosync "sync"
	"syscall"

	"github.com/google/uuid"
	"github.com/scribelab/scribe/internal/client/api"
	"github.com/scribelab/scribe/internal/client/config"
	"github.com/scribelab/scribe/internal/client/live"
	"github.com/scribelab/scribe/internal/client/netx"
	"github.com/scribelab/scribe/internal/client/relay"
	"github.com/scribelab/scribe/internal/client/storage"
	"github.com/scribelab/scribe/internal/client/sync"
	"github.com/scribelab/scribe/internal/logging"
)

const deviceIDKey = "device_id"

type App struct {
	config       *config.Config
	logger       logging.Logger
	store        *storage.Store
	relay        *relay.Relay
	watcher      *netx.Watcher
	orchestrator *sync.Orchestrator
	listener     *live.Listener
}

func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	sl := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	logger := logging.NewSlogLogger(sl)

	store, err := storage.Open(ctx, cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	deviceID, err := resolveDeviceID(ctx, cfg, store)
	if err != nil {
		store.Close()
		return nil, err
	}

	apiClient := api.NewHTTPClient(cfg.ServerURL, cfg.AuthToken, deviceID, cfg.RequestTimeout)
	watcher := netx.NewWatcher(apiClient, cfg.OnlineCheckInterval, logger)
	r := relay.New()

	orchestrator := sync.New(sync.Config{
		DebounceWindow: cfg.DebounceWindow,
		SyncInterval:   cfg.SyncInterval,
		RetryCeiling:   cfg.RetryCeiling,
		BackoffBase:    cfg.BackoffBase,
		BackoffCap:     cfg.BackoffCap,
	}, apiClient, store.Queue, store.Mirror, store.Metadata, r, watcher, logger, nil)

	listener := live.NewListener(pushChannelURL(cfg.ServerURL), cfg.AuthToken, deviceID, orchestrator, r, logger)

	return &App{
		config:       cfg,
		logger:       logger,
		store:        store,
		relay:        r,
		watcher:      watcher,
		orchestrator: orchestrator,
		listener:     listener,
	}, nil
}

// Orchestrator exposes the sync engine to front ends embedding the agent.
func (app *App) Orchestrator() *sync.Orchestrator {
	return app.orchestrator
}

// Relay exposes the cross-window relay to front ends embedding the agent.
func (app *App) Relay() *relay.Relay {
	return app.relay
}

// resolveDeviceID returns the configured device id, or the one persisted in
// the local store, generating and persisting a fresh one on first run.
func resolveDeviceID(ctx context.Context, cfg *config.Config, store *storage.Store) (string, error) {
	if cfg.DeviceID != "" {
		return cfg.DeviceID, nil
	}

	saved, err := store.Metadata.Get(ctx, deviceIDKey)
	if err != nil {
		return "", err
	}
	if saved != nil {
		return string(saved), nil
	}

	id := uuid.NewString()
	if err := store.Metadata.Set(ctx, deviceIDKey, []byte(id)); err != nil {
		return "", err
	}
	return id, nil
}

// pushChannelURL derives the websocket endpoint from the HTTP base URL.
func pushChannelURL(serverURL string) string {
	ws := serverURL
	switch {
	case strings.HasPrefix(ws, "https://"):
		ws = "wss://" + strings.TrimPrefix(ws, "https://")
	case strings.HasPrefix(ws, "http://"):
		ws = "ws://" + strings.TrimPrefix(ws, "http://")
	}
	return strings.TrimSuffix(ws, "/") + "/api/sync/ws"
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

func (app *App) Run(ctx context.Context) {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting agent...")

	app.initSignalHandler(cancelFunc)

	var wg gosync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.watcher.Run(ctx)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.orchestrator.Run(ctx)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.listener.Run(ctx)
	}()

	wg.Wait()

	if err := app.store.Close(); err != nil {
		app.logger.Error(ctx, "failed to close local store", "error", err)
	}
}
