package commands

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/cobra"

	"github.com/whattodo/core/internal/adapters/storage"
	"github.com/whattodo/core/internal/application/services"
	"github.com/whattodo/core/internal/infrastructure/config"
	"github.com/whattodo/core/internal/infrastructure/logger"
	"github.com/whattodo/core/internal/infrastructure/metrics"
)

// waitTimeout bounds how long a command waits for queued writes before exit.
const waitTimeout = 30 * time.Second

// rootOptions carries the persistent flags shared by every command.
type rootOptions struct {
	configFile string
}

// app is the wired application a command runs against.
type app struct {
	cfg         *config.Config
	logger      *logger.Logger
	metrics     *metrics.Metrics
	areas       *storage.Areas
	engine      *services.Engine
	coordinator *services.Coordinator
	documents   *services.DocumentService
	auth        *services.AuthService
	validate    *validator.Validate
}

func newApp(opts *rootOptions) (*app, error) {
	cfg, err := config.Load(opts.configFile)
	if err != nil {
		return nil, err
	}

	appLogger, err := logger.New(cfg.Logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	loc, err := cfg.App.Location()
	if err != nil {
		return nil, err
	}

	areas, err := storage.Open(cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("failed to open storage: %w", err)
	}

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New()
	}

	engine := services.NewEngine(loc, nil, nil)
	coordinator := services.NewCoordinator(areas.Current, areas.Legacy, engine, cfg.Storage.WriteTimeout, m, appLogger)

	return &app{
		cfg:         cfg,
		logger:      appLogger,
		metrics:     m,
		areas:       areas,
		engine:      engine,
		coordinator: coordinator,
		documents:   services.NewDocumentService(engine, coordinator, appLogger),
		auth:        services.NewAuthService(cfg.JWT, appLogger),
		validate:    validator.New(),
	}, nil
}

// close waits for queued writes, then releases storage.
func (a *app) close() error {
	ctx, cancel := context.WithTimeout(context.Background(), waitTimeout)
	defer cancel()

	waitErr := a.documents.Wait(ctx)
	closeErr := a.areas.Close()
	_ = a.logger.Close()

	if waitErr != nil {
		return fmt.Errorf("pending writes did not finish: %w", waitErr)
	}
	return closeErr
}

// withApp loads the document, runs fn and waits for every write fn issued.
func withApp(cmd *cobra.Command, opts *rootOptions, fn func(ctx context.Context, a *app) error) (err error) {
	a, err := newApp(opts)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := a.close(); err == nil {
			err = closeErr
		}
	}()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	if _, err := a.documents.Load(ctx); err != nil {
		return err
	}
	return fn(ctx, a)
}

func out(cmd *cobra.Command) io.Writer {
	return cmd.OutOrStdout()
}
