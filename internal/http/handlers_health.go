package httpx

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"time"
)

const (
	healthResponse   = `{"status":"ok"}`
	unhealthyBody    = `{"status":"unavailable"}`
	healthPingTimeout = 2 * time.Second
)

// HealthHandlers answers liveness/readiness probes. Ping, when set, checks the job store.
type HealthHandlers struct {
	Ping   func(ctx context.Context) error
	Logger *slog.Logger
}

// Health returns 200 when the store answers, 503 otherwise.
func (h *HealthHandlers) Health(w http.ResponseWriter, r *http.Request) {
	body, status := healthResponse, http.StatusOK
	if h.Ping != nil {
		ctx, cancel := context.WithTimeout(r.Context(), healthPingTimeout)
		defer cancel()
		if err := h.Ping(ctx); err != nil {
			if h.Logger != nil {
				h.Logger.Warn("health check failed", "error", err)
			}
			body, status = unhealthyBody, http.StatusServiceUnavailable
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if r.Method == http.MethodHead {
		return
	}
	if _, err := io.WriteString(w, body); err != nil {
		// Nothing more to do if the client connection is gone.
		return
	}
}
