package httpx

import (
	"context"
	"log/slog"
	"net/http"
)

const healthPath = "/healthz"

// RouterServices holds everything the HTTP router needs.
type RouterServices struct {
	Harvest HarvestController
	// Ping backs /healthz. Optional.
	Ping func(ctx context.Context) error
	// SharedSecret protects /api routes when non-empty.
	SharedSecret       string
	SharedSecretHeader string
	Logger             *slog.Logger
}

// NewRouter creates the control surface router.
func NewRouter(services RouterServices) http.Handler {
	logger := services.Logger
	if logger == nil {
		logger = slog.Default()
	}

	api := http.NewServeMux()
	harvest := &HarvestHandlers{Svc: services.Harvest, Logger: logger}
	api.HandleFunc("POST /api/harvest/start", harvest.Start)
	api.HandleFunc("POST /api/harvest/stop", harvest.Stop)
	api.HandleFunc("GET /api/harvest/status", harvest.Status)
	api.HandleFunc("GET /api/harvest/jobs", harvest.ListJobs)
	api.HandleFunc("GET /api/harvest/jobs/{id}", harvest.GetJob)
	api.HandleFunc("GET /api/harvest/portals", harvest.Portals)

	mux := http.NewServeMux()
	health := &HealthHandlers{Ping: services.Ping, Logger: logger}
	// GET patterns also match HEAD.
	mux.HandleFunc("GET "+healthPath, health.Health)
	mux.Handle("/api/", RequireSharedSecret(services.SharedSecretHeader, services.SharedSecret)(api))

	return Recover(logger)(Logging(logger)(mux))
}
