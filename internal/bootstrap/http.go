package bootstrap

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/target/review-harvester/config"
	httpx "github.com/target/review-harvester/internal/http"
)

const httpShutdownTimeout = 10 * time.Second

// HTTPServerConfig contains configuration for HTTP server.
type HTTPServerConfig struct {
	HTTP    config.HTTPConfig
	Harvest httpx.HarvestController
	Ping    func(ctx context.Context) error
	Logger  *slog.Logger
}

// NewHTTPServer builds the control surface server. The caller starts it.
func NewHTTPServer(cfg HTTPServerConfig) *http.Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if !cfg.HTTP.AuthEnabled() {
		logger.Warn("control surface shared secret not configured; /api is unauthenticated")
	}

	handler := httpx.NewRouter(httpx.RouterServices{
		Harvest:            cfg.Harvest,
		Ping:               cfg.Ping,
		SharedSecret:       cfg.HTTP.SharedSecret,
		SharedSecretHeader: cfg.HTTP.SharedSecretHeader,
		Logger:             logger,
	})

	// Guard against empty addr to avoid listening on Go default
	addr := cfg.HTTP.Addr
	if addr == "" {
		addr = ":8080"
	}
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: cfg.HTTP.ReadHeaderTimeout,
		WriteTimeout:      cfg.HTTP.WriteTimeout,
		IdleTimeout:       cfg.HTTP.IdleTimeout,
	}
}

// ShutdownHTTPServer gracefully shuts down the HTTP server.
func ShutdownHTTPServer(ctx context.Context, server *http.Server, logger *slog.Logger) error {
	if server == nil {
		return nil
	}
	logger.Info("shutting down HTTP server")

	shutdownCtx, cancel := context.WithTimeout(ctx, httpShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}

	logger.Info("HTTP server stopped")
	return nil
}
