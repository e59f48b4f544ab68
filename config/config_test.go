package config

import (
	"log/slog"
	"reflect"
	"testing"
	"time"

	env "github.com/caarlos0/env/v11"
)

func TestAppConfig_ParseDefaults(t *testing.T) {
	var cfg AppConfig
	if err := env.Parse(&cfg); err != nil {
		t.Fatalf("parse config: %v", err)
	}
	cfg.Sanitize()

	if cfg.Postgres.Name != "harvester" {
		t.Errorf("expected db name harvester, got %q", cfg.Postgres.Name)
	}
	if cfg.Harvest.MaxAttempts != 3 {
		t.Errorf("expected 3 attempts, got %d", cfg.Harvest.MaxAttempts)
	}
	if want := []time.Duration{2 * time.Second, 5 * time.Second}; !reflect.DeepEqual(cfg.Harvest.Backoff, want) {
		t.Errorf("expected backoff %v, got %v", want, cfg.Harvest.Backoff)
	}
	if cfg.Harvest.ErrorLogMaxChars != 10000 {
		t.Errorf("expected error log cap 10000, got %d", cfg.Harvest.ErrorLogMaxChars)
	}
	if cfg.HTTP.SharedSecretHeader != DefaultSharedSecretHeader {
		t.Errorf("expected default secret header, got %q", cfg.HTTP.SharedSecretHeader)
	}
	if cfg.HTTP.AuthEnabled() {
		t.Error("expected auth to be disabled without a shared secret")
	}
	if cfg.Redis.Enabled {
		t.Error("expected redis to be disabled by default")
	}
	if cfg.Harvest.ScheduleEnabled {
		t.Error("expected the schedule trigger to be disabled by default")
	}
	if cfg.Harvest.ScheduleInterval != 168*time.Hour {
		t.Errorf("expected weekly schedule interval, got %v", cfg.Harvest.ScheduleInterval)
	}
	if cfg.Harvest.HeartbeatInterval != 30*time.Second || cfg.Harvest.OrphanAfter != 3*time.Minute {
		t.Errorf("expected 30s heartbeat and 3m orphan window, got %v and %v", cfg.Harvest.HeartbeatInterval, cfg.Harvest.OrphanAfter)
	}
	if cfg.ShutdownTimeout != 30*time.Second {
		t.Errorf("expected 30s shutdown timeout, got %v", cfg.ShutdownTimeout)
	}
}

func TestAppConfig_ParseHarvestEnv(t *testing.T) {
	t.Setenv("HARVEST_MAX_ATTEMPTS", "5")
	t.Setenv("HARVEST_BACKOFF", "1s,3s,10s")
	t.Setenv("HARVEST_PORTAL_ORDER", " Kakao ,naver,,")
	t.Setenv("HTTP_SHARED_SECRET", " s3cret ")
	t.Setenv("HTTP_SHARED_SECRET_HEADER", "x-custom-secret")
	t.Setenv("SESSION_PROXY_URL", "http://proxy:3128")

	var cfg AppConfig
	if err := env.Parse(&cfg); err != nil {
		t.Fatalf("parse config: %v", err)
	}
	cfg.Sanitize()

	if cfg.Harvest.MaxAttempts != 5 {
		t.Errorf("expected 5 attempts, got %d", cfg.Harvest.MaxAttempts)
	}
	if want := []time.Duration{time.Second, 3 * time.Second, 10 * time.Second}; !reflect.DeepEqual(cfg.Harvest.Backoff, want) {
		t.Errorf("expected backoff %v, got %v", want, cfg.Harvest.Backoff)
	}
	if want := []string{"kakao", "naver"}; !reflect.DeepEqual(cfg.Harvest.PortalOrder, want) {
		t.Errorf("expected portal order %v, got %v", want, cfg.Harvest.PortalOrder)
	}
	if !cfg.HTTP.AuthEnabled() || cfg.HTTP.SharedSecret != "s3cret" {
		t.Errorf("expected trimmed shared secret, got %q", cfg.HTTP.SharedSecret)
	}
	if cfg.HTTP.SharedSecretHeader != "X-Custom-Secret" {
		t.Errorf("expected canonical header name, got %q", cfg.HTTP.SharedSecretHeader)
	}
	if cfg.Session.ProxyURL != "http://proxy:3128" {
		t.Errorf("expected proxy url, got %q", cfg.Session.ProxyURL)
	}
}

func TestHarvestConfig_Sanitize(t *testing.T) {
	tests := []struct {
		name  string
		input HarvestConfig
		check func(t *testing.T, c HarvestConfig)
	}{
		{
			name:  "attempts clamped to at least one",
			input: HarvestConfig{MaxAttempts: 0},
			check: func(t *testing.T, c HarvestConfig) {
				if c.MaxAttempts != 1 {
					t.Errorf("expected 1, got %d", c.MaxAttempts)
				}
			},
		},
		{
			name:  "attempts clamped to ceiling",
			input: HarvestConfig{MaxAttempts: 50},
			check: func(t *testing.T, c HarvestConfig) {
				if c.MaxAttempts != maxAttemptsCeiling {
					t.Errorf("expected %d, got %d", maxAttemptsCeiling, c.MaxAttempts)
				}
			},
		},
		{
			name:  "negative backoff becomes zero",
			input: HarvestConfig{MaxAttempts: 3, Backoff: []time.Duration{-time.Second, 2 * time.Second}},
			check: func(t *testing.T, c HarvestConfig) {
				if want := []time.Duration{0, 2 * time.Second}; !reflect.DeepEqual(c.Backoff, want) {
					t.Errorf("expected %v, got %v", want, c.Backoff)
				}
			},
		},
		{
			name:  "schedule interval has a floor",
			input: HarvestConfig{MaxAttempts: 3, ScheduleInterval: time.Second},
			check: func(t *testing.T, c HarvestConfig) {
				if c.ScheduleInterval != minScheduleInterval {
					t.Errorf("expected %v, got %v", minScheduleInterval, c.ScheduleInterval)
				}
			},
		},
		{
			name:  "error log cap has a floor",
			input: HarvestConfig{MaxAttempts: 3, ErrorLogMaxChars: 10},
			check: func(t *testing.T, c HarvestConfig) {
				if c.ErrorLogMaxChars != minErrorLogMaxChars {
					t.Errorf("expected %d, got %d", minErrorLogMaxChars, c.ErrorLogMaxChars)
				}
			},
		},
		{
			name:  "orphan window covers at least two heartbeats",
			input: HarvestConfig{MaxAttempts: 3, HeartbeatInterval: 20 * time.Second, OrphanAfter: 10 * time.Second},
			check: func(t *testing.T, c HarvestConfig) {
				if c.OrphanAfter != 40*time.Second {
					t.Errorf("expected 40s, got %v", c.OrphanAfter)
				}
			},
		},
		{
			name:  "heartbeat has a floor",
			input: HarvestConfig{MaxAttempts: 3},
			check: func(t *testing.T, c HarvestConfig) {
				if c.HeartbeatInterval != minHeartbeat {
					t.Errorf("expected %v, got %v", minHeartbeat, c.HeartbeatInterval)
				}
				if c.OrphanAfter != 2*minHeartbeat {
					t.Errorf("expected %v, got %v", 2*minHeartbeat, c.OrphanAfter)
				}
			},
		},
		{
			name:  "default list limit never exceeds max",
			input: HarvestConfig{MaxAttempts: 3, DefaultListLimit: 50, MaxListLimit: 10},
			check: func(t *testing.T, c HarvestConfig) {
				if c.DefaultListLimit != 10 {
					t.Errorf("expected 10, got %d", c.DefaultListLimit)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := tt.input
			cfg.Sanitize()
			tt.check(t, cfg)
		})
	}
}

func TestObservabilityMetricsConfig_Sanitize(t *testing.T) {
	cfg := ObservabilityMetricsConfig{
		Enabled:       true,
		StatsdAddress: " ",
	}

	cfg.Sanitize()

	if cfg.Enabled {
		t.Fatalf("expected enabled to be false when address is empty")
	}

	cfg = ObservabilityMetricsConfig{
		Enabled:       true,
		StatsdAddress: " statsd:1234 ",
	}

	cfg.Sanitize()

	if !cfg.IsEnabled() {
		t.Fatalf("expected metrics to remain enabled")
	}
	if cfg.StatsdAddress != "statsd:1234" {
		t.Fatalf("expected address to be trimmed, got %q", cfg.StatsdAddress)
	}
	if cfg.Prefix != defaultMetricsPrefix {
		t.Fatalf("expected default prefix, got %q", cfg.Prefix)
	}
}

func TestObservabilityLoggingConfig_Sanitize(t *testing.T) {
	cfg := ObservabilityLoggingConfig{Level: " DEBUG "}
	cfg.Sanitize()
	if cfg.SlogLevel() != slog.LevelDebug {
		t.Fatalf("expected debug level, got %v", cfg.SlogLevel())
	}

	cfg = ObservabilityLoggingConfig{Level: "verbose"}
	cfg.Sanitize()
	if cfg.Level != "info" || cfg.SlogLevel() != slog.LevelInfo {
		t.Fatalf("expected unknown level to fall back to info, got %q", cfg.Level)
	}
}

func TestSessionConfig_Sanitize(t *testing.T) {
	cfg := SessionConfig{RequestTimeout: -1, MaxBodyBytes: 0}
	cfg.Sanitize()

	if cfg.UserAgent == "" {
		t.Error("expected default user agent")
	}
	if cfg.RequestTimeout != 30*time.Second {
		t.Errorf("expected 30s timeout, got %v", cfg.RequestTimeout)
	}
	if cfg.MaxBodyBytes != defaultMaxBodyBytes {
		t.Errorf("expected default body cap, got %d", cfg.MaxBodyBytes)
	}
}
