// Package app wires the engine together: storage, directory, services,
// fanout hub, sweeper and the HTTP server, with ordered shutdown.
package app

import (
	"context"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"msgsync/internal/sweeper"
	"msgsync/pkg/api/handlers"
	"msgsync/pkg/banner"
	"msgsync/pkg/config"
	"msgsync/pkg/delivery"
	"msgsync/pkg/directory"
	"msgsync/pkg/fanout"
	"msgsync/pkg/logger"
	"msgsync/pkg/messages"
	"msgsync/pkg/presence"
	"msgsync/pkg/reactions"
	"msgsync/pkg/store"
	"msgsync/pkg/threads"
)

// App encapsulates the server components and lifecycle.
type App struct {
	cfg     config.Config
	version string

	hub      *fanout.Hub
	presence *presence.Tracker
	api      *handlers.API

	srv *http.Server
}

// New opens the store and builds all components. Call Run to start serving.
func New(cfg config.Config, version string) (*App, error) {
	if err := store.Open(cfg.Server.DBPath); err != nil {
		return nil, fmt.Errorf("open pebble at %s: %w", cfg.Server.DBPath, err)
	}

	static := directory.NewStatic()
	for _, u := range cfg.Directory.Users {
		static.Add(u.Tenant, directory.Profile{ID: u.ID, DisplayName: u.DisplayName, Role: u.Role})
	}
	dir := directory.NewCache(static, cfg.Directory.CacheSize)

	hub := fanout.NewHub(cfg.Fanout.QueueCapacity, cfg.Fanout.ReplayBatch, cfg.Fanout.MaxEventBytes.Int64(), nil)
	fanout.DefaultHub = hub

	pres := presence.NewTracker(cfg.Presence.TypingTTL.Duration(), dir)

	a := &App{
		cfg:      cfg,
		version:  version,
		hub:      hub,
		presence: pres,
		api: &handlers.API{
			Threads:   threads.New(dir),
			Messages:  messages.NewLog(),
			Delivery:  delivery.NewTracker(),
			Reactions: reactions.NewIndex(dir),
			Presence:  pres,
			Hub:       hub,
		},
	}
	return a, nil
}

// Run starts the hub, sweeper and HTTP server, and blocks until ctx is
// cancelled or a fatal server error occurs.
func (a *App) Run(ctx context.Context) error {
	banner.Print(a.cfg.Addr(), a.cfg.Server.DBPath, a.version)
	a.hub.Start()
	a.presence.StartSweeping(a.cfg.Presence.SweepInterval.Duration())

	stopSweeper, err := sweeper.Start(ctx, a.cfg.Sweeper)
	if err != nil {
		return err
	}
	defer stopSweeper()

	errCh := a.startHTTP()
	logger.Log.Info("server_started", zap.String("addr", a.cfg.Addr()), zap.String("version", a.version))

	select {
	case <-ctx.Done():
		a.shutdown()
		return nil
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		a.shutdown()
		return err
	}
}

// shutdown stops components in reverse dependency order: HTTP first so no new
// writes arrive, then the hub, then the store.
func (a *App) shutdown() {
	if a.srv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := a.srv.Shutdown(ctx); err != nil {
			logger.Log.Warn("http_shutdown_error", zap.Error(err))
		}
	}
	a.hub.Stop()
	a.presence.Stop()
	if err := store.Close(); err != nil {
		logger.Log.Error("store_close_error", zap.Error(err))
	}
	logger.Log.Info("server_stopped")
}
