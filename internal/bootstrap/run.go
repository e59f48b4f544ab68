package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/target/review-harvester/config"
	"github.com/target/review-harvester/internal/adapters/scheduler"
	"golang.org/x/sync/errgroup"
)

// RunConfig contains everything the long-running service needs.
type RunConfig struct {
	Config   *config.AppConfig
	Services ServiceContainer
	DB       *sql.DB
	Logger   *slog.Logger
}

// RunWithShutdown serves the control surface (and the periodic trigger when enabled) until
// SIGINT/SIGTERM or a server failure, then asks a running harvest job to stop and waits for it up to ShutdownTimeout.
func RunWithShutdown(ctx context.Context, cfg *RunConfig) error {
	if cfg == nil || cfg.Config == nil || cfg.Services.Harvest == nil {
		return errors.New("run config with harvest service is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var trigger *scheduler.Trigger
	if cfg.Config.Harvest.ScheduleEnabled {
		var err error
		if trigger, err = newTrigger(cfg, logger); err != nil {
			return err
		}
	}

	sigCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var ping func(context.Context) error
	if cfg.DB != nil {
		ping = cfg.DB.PingContext
	}
	server := NewHTTPServer(HTTPServerConfig{
		HTTP:    cfg.Config.HTTP,
		Harvest: cfg.Services.Harvest,
		Ping:    ping,
		Logger:  logger,
	})

	g, gctx := errgroup.WithContext(sigCtx)
	g.Go(func() error {
		logger.Info("starting HTTP server", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	if trigger != nil {
		g.Go(func() error { return trigger.Run(gctx) })
	}
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down services...")
		return shutdown(context.WithoutCancel(ctx), cfg, server, logger)
	})
	return g.Wait()
}

func newTrigger(cfg *RunConfig, logger *slog.Logger) (*scheduler.Trigger, error) {
	opts := scheduler.TriggerOptions{
		Harvest:  cfg.Services.Harvest,
		Interval: cfg.Config.Harvest.ScheduleInterval,
		Logger:   logger,
	}
	if cfg.Services.MetricsSink != nil {
		opts.Metrics = cfg.Services.MetricsSink
	}
	trigger, err := scheduler.NewTrigger(opts)
	if err != nil {
		return nil, fmt.Errorf("build harvest trigger: %w", err)
	}
	return trigger, nil
}

func shutdown(ctx context.Context, cfg *RunConfig, server *http.Server, logger *slog.Logger) error {
	var errs []error
	if err := ShutdownHTTPServer(ctx, server, logger); err != nil {
		errs = append(errs, fmt.Errorf("shutdown http server: %w", err))
	}

	jobCtx, cancel := context.WithTimeout(ctx, cfg.Config.ShutdownTimeout)
	defer cancel()
	if err := cfg.Services.Harvest.Shutdown(jobCtx); err != nil {
		errs = append(errs, fmt.Errorf("stop harvest job: %w", err))
	}
	if err := cfg.Services.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close services: %w", err))
	}
	return errors.Join(errs...)
}
