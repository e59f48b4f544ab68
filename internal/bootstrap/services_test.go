package bootstrap

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/target/review-harvester/config"
	"github.com/target/review-harvester/internal/domain/model"
)

const testPortals = `{"portals":[
  {"id":"naver","kind":"html","requires_url":true,"url":"{source_url}?page={page}",
   "html":{"item":"li","date":".d","content":".c","nickname":".n"}},
  {"id":"kakao","kind":"json","url":"https://api.example/{company}",
   "json":{"items":"items","date":"d","content":"c","nickname":"n"}}
]}`

func testConfig(t *testing.T, portals string) *config.AppConfig {
	t.Helper()
	cfg := &config.AppConfig{}
	if portals != "" {
		path := filepath.Join(t.TempDir(), "portals.json")
		require.NoError(t, os.WriteFile(path, []byte(portals), 0o600))
		cfg.Harvest.PortalsFile = path
	}
	cfg.Harvest.PortalOrder = []string{"kakao"}
	cfg.Sanitize()
	return cfg
}

func TestNewServices(t *testing.T) {
	cfg := testConfig(t, testPortals)

	c, err := NewServices(&ServiceDeps{Config: cfg})
	require.NoError(t, err)
	require.NotNil(t, c.Harvest)
	assert.Nil(t, c.Progress, "redis disabled")
	assert.Nil(t, c.MetricsSink, "metrics disabled")
	assert.Equal(t, []model.Portal{"kakao", "naver"}, c.Harvest.Portals())
	require.NoError(t, c.Close())
}

func TestNewServices_BadPortalsFile(t *testing.T) {
	cfg := testConfig(t, `{"portals":[{"id":"x","kind":"yaml","url":"https://x"}]}`)

	_, err := NewServices(&ServiceDeps{Config: cfg})
	require.ErrorContains(t, err, "load portal adapters")
}

func TestNewServices_RequiresConfig(t *testing.T) {
	_, err := NewServices(nil)
	require.Error(t, err)
}

func TestBuildMetricsSink(t *testing.T) {
	cfg := config.ObservabilityMetricsConfig{Enabled: false, StatsdAddress: "127.0.0.1:8125"}
	assert.Nil(t, buildMetricsSink(nopLogger(), cfg))

	cfg.Enabled = true
	sink := buildMetricsSink(nopLogger(), cfg)
	require.NotNil(t, sink)
	assert.True(t, sink.Enabled())
	require.NoError(t, sink.Close())
}

func TestNewHTTPServer(t *testing.T) {
	cfg := testConfig(t, "")
	c, err := NewServices(&ServiceDeps{Config: cfg})
	require.NoError(t, err)

	srv := NewHTTPServer(HTTPServerConfig{HTTP: cfg.HTTP, Harvest: c.Harvest, Logger: nopLogger()})
	assert.Equal(t, ":8080", srv.Addr)
	assert.Equal(t, cfg.HTTP.ReadHeaderTimeout, srv.ReadHeaderTimeout)
	require.NotNil(t, srv.Handler)
}

func nopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
