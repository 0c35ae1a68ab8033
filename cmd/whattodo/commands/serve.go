package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/whattodo/core/internal/adapters/remote"
	"github.com/whattodo/core/internal/adapters/storage"
	"github.com/whattodo/core/internal/application/services"
	"github.com/whattodo/core/internal/infrastructure/server"
)

const shutdownTimeout = 10 * time.Second

// NewServeCommand creates the serve command
func NewServeCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the whattodo API server",
		Long:  "Start the HTTP API over the local document, with remote sync when it is enabled",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, runServer)
		},
	}
}

func runServer(ctx context.Context, a *app) error {
	deps := server.Deps{
		Documents: a.documents,
		Auth:      a.auth,
		Metrics:   a.metrics,
	}

	if a.cfg.Remote.Enabled {
		store, err := remote.Open(ctx, a.cfg, a.logger)
		if err != nil {
			return fmt.Errorf("failed to open remote store: %w", err)
		}
		defer store.Close()

		remoteSync := services.NewRemoteSync(store, a.coordinator, a.auth, a.cfg.Remote.PathPrefix, a.metrics, a.logger)
		remoteSync.Start(ctx)
		defer remoteSync.Stop()
		deps.Remote = remoteSync
	}

	if a.cfg.Storage.Watch && a.cfg.Storage.Backend != "memory" {
		events, err := storage.Watch(ctx, a.cfg.Storage.Path, storage.DefaultWatchDelay, a.logger)
		if err != nil {
			return err
		}
		go reloadOnChange(ctx, a, events)
	}

	srv, err := server.New(a.cfg, deps, a.logger)
	if err != nil {
		return fmt.Errorf("failed to initialize server: %w", err)
	}

	addr := fmt.Sprintf("%s:%d", a.cfg.Server.Host, a.cfg.Server.Port)
	a.logger.Infow("Starting whattodo API server",
		"address", addr,
		"environment", a.cfg.App.Environment,
		"storage", a.cfg.Storage.Backend,
		"remote", a.cfg.Remote.Enabled,
	)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start(addr)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	return nil
}

// reloadOnChange reloads the document when another process writes storage.
// Events for this process's own writes find storage matching the in-memory
// document and are skipped.
func reloadOnChange(ctx context.Context, a *app, events <-chan storage.Event) {
	for ev := range events {
		if ev.Area == storage.LegacyArea || a.documents.Busy() {
			continue
		}

		stale, err := a.documents.Stale(ctx)
		if err != nil {
			a.logger.WithError(err).Warn("Failed to read storage after change")
			continue
		}
		if !stale {
			continue
		}

		if _, err := a.documents.Load(ctx); err != nil {
			a.logger.WithError(err).Warn("Failed to reload document after storage change")
			continue
		}
		a.logger.Debugw("Reloaded document after storage change", "area", ev.Area)
	}
}
