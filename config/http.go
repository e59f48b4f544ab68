package config

import (
	"net/http"
	"strings"
	"time"
)

// DefaultSharedSecretHeader carries the control surface shared secret.
const DefaultSharedSecretHeader = "X-Harvest-Secret"

// HTTPConfig contains control surface configuration.
type HTTPConfig struct {
	// Addr is the address to bind the HTTP server to.
	Addr string `env:"HTTP_ADDR" envDefault:":8080"`

	// SharedSecret gates every /api route when set. Leave empty to disable authentication
	// (development only).
	SharedSecret string `env:"HTTP_SHARED_SECRET"`

	// SharedSecretHeader names the request header that must carry SharedSecret.
	SharedSecretHeader string `env:"HTTP_SHARED_SECRET_HEADER" envDefault:"X-Harvest-Secret"`

	ReadHeaderTimeout time.Duration `env:"HTTP_READ_HEADER_TIMEOUT" envDefault:"5s"`
	WriteTimeout      time.Duration `env:"HTTP_WRITE_TIMEOUT"       envDefault:"30s"`
	IdleTimeout       time.Duration `env:"HTTP_IDLE_TIMEOUT"        envDefault:"60s"`
}

// Sanitize applies guardrails to HTTP configuration values.
func (h *HTTPConfig) Sanitize() {
	if h.Addr = strings.TrimSpace(h.Addr); h.Addr == "" {
		h.Addr = ":8080"
	}
	h.SharedSecret = strings.TrimSpace(h.SharedSecret)
	h.SharedSecretHeader = http.CanonicalHeaderKey(strings.TrimSpace(h.SharedSecretHeader))
	if h.SharedSecretHeader == "" {
		h.SharedSecretHeader = DefaultSharedSecretHeader
	}
	if h.ReadHeaderTimeout <= 0 {
		h.ReadHeaderTimeout = 5 * time.Second
	}
	if h.WriteTimeout <= 0 {
		h.WriteTimeout = 30 * time.Second
	}
	if h.IdleTimeout <= 0 {
		h.IdleTimeout = 60 * time.Second
	}
}

// AuthEnabled reports whether the shared-secret guard is active.
func (h *HTTPConfig) AuthEnabled() bool {
	return h.SharedSecret != ""
}
