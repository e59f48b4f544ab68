package bootstrap

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
	"github.com/target/review-harvester/config"
	"github.com/target/review-harvester/internal/adapters/session"
	"github.com/target/review-harvester/internal/adapters/sources"
	"github.com/target/review-harvester/internal/core"
	"github.com/target/review-harvester/internal/data"
	"github.com/target/review-harvester/internal/observability/statsd"
	"github.com/target/review-harvester/internal/service"
)

// ServiceContainer holds the constructed services and the repositories behind them.
type ServiceContainer struct {
	Harvest   *service.HarvestService
	Jobs      *data.JobRepo
	Companies *data.CompanyRepo
	Reviews   *data.ReviewRepo
	// Progress is nil when Redis is disabled.
	Progress *data.RedisProgressRepo
	// MetricsSink is nil when metrics are disabled.
	MetricsSink *statsd.Client
}

// ServiceDeps contains the infrastructure services are built on.
type ServiceDeps struct {
	Config      *config.AppConfig
	DB          *sql.DB
	RedisClient redis.UniversalClient
	Logger      *slog.Logger
}

// Close releases resources owned by the container.
func (c *ServiceContainer) Close() error {
	if c.MetricsSink == nil {
		return nil
	}
	return c.MetricsSink.Close()
}

func buildMetricsSink(logger *slog.Logger, cfg config.ObservabilityMetricsConfig) *statsd.Client {
	if !cfg.IsEnabled() {
		return nil
	}
	client, err := statsd.NewClient(statsd.Config{
		Enabled: true,
		Address: cfg.StatsdAddress,
		Prefix:  cfg.Prefix,
		Logger:  logger,
	})
	if err != nil {
		// Metrics are best-effort; the harvester keeps running without them.
		logger.Error("failed to initialise statsd client", "error", err)
		return nil
	}
	return client
}

func newSessionFactory(cfg config.SessionConfig, logger *slog.Logger) *session.Factory {
	return session.NewFactory(session.Options{
		UserAgent:      cfg.UserAgent,
		AcceptLanguage: cfg.AcceptLanguage,
		Timeout:        cfg.RequestTimeout,
		ProxyURL:       cfg.ProxyURL,
		MaxBodyBytes:   cfg.MaxBodyBytes,
		Logger:         logger.With("component", "session"),
	})
}

// NewServices builds repositories, portal adapters, and the harvest orchestrator.
func NewServices(deps *ServiceDeps) (ServiceContainer, error) {
	if deps == nil || deps.Config == nil {
		return ServiceContainer{}, errors.New("service deps with config are required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	cfg := deps.Config

	c := ServiceContainer{
		Jobs:      data.NewJobRepo(deps.DB, data.RepoConfig{Logger: logger}),
		Companies: data.NewCompanyRepo(deps.DB),
		Reviews:   data.NewReviewRepo(deps.DB),
	}
	var progress core.ProgressStore
	if deps.RedisClient != nil {
		c.Progress = data.NewRedisProgressRepo(deps.RedisClient, cfg.Redis.ProgressKey)
		progress = c.Progress
	}

	adapters, err := sources.LoadAdapters(cfg.Harvest.PortalsFile, cfg.Harvest.PortalOrder, logger.With("component", "sources"))
	if err != nil {
		return ServiceContainer{}, fmt.Errorf("load portal adapters: %w", err)
	}
	if len(adapters) == 0 {
		logger.Warn("no portals configured; jobs will complete without extracting", "portals_file", cfg.Harvest.PortalsFile)
	}

	c.MetricsSink = buildMetricsSink(logger, cfg.Observability.Metrics)
	opts := service.HarvestServiceOptions{
		Jobs:      c.Jobs,
		Companies: c.Companies,
		Reviews:   c.Reviews,
		Sessions:  newSessionFactory(cfg.Session, logger),
		Adapters:  adapters,
		Progress:  progress,
		Config:    cfg.Harvest,
		Logger:    logger,
	}
	if c.MetricsSink != nil {
		opts.Metrics = c.MetricsSink
	}
	c.Harvest, err = service.NewHarvestService(opts)
	if err != nil {
		if cerr := c.Close(); cerr != nil {
			err = errors.Join(err, cerr)
		}
		return ServiceContainer{}, fmt.Errorf("build harvest service: %w", err)
	}
	return c, nil
}
