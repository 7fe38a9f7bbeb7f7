package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := load("")
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.Primary.Env)
	assert.Equal(t, "3000", cfg.Server.Port)
	assert.Equal(t, "/api/v1", cfg.API.Prefix)
	assert.Equal(t, 30*time.Second, cfg.API.HandlerTimeout)
	assert.Equal(t, 1000, cfg.Render.Latex.MaxExpand)
	assert.True(t, cfg.Render.Image.Enabled)
	assert.Equal(t, 800, cfg.Render.Image.DefaultWidth)

	require.NotNil(t, cfg.Observability)
	assert.Equal(t, ServiceName, cfg.Observability.ServiceName)
	assert.Equal(t, "development", cfg.Observability.Environment)
	assert.Equal(t, "info", cfg.Observability.Logging.Level)
	assert.False(t, cfg.Observability.NewRelic.Enabled())
	assert.Equal(t, []string{CheckLatex}, cfg.Observability.HealthChecks.Checks)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("RENDERAPI_PRIMARY__ENV", "production")
	t.Setenv("RENDERAPI_SERVER__PORT", "8080")
	t.Setenv("RENDERAPI_API__PREFIX", "/api/v2")
	t.Setenv("RENDERAPI_API__HANDLER_TIMEOUT", "5s")
	t.Setenv("RENDERAPI_RENDER__IMAGE__ENABLED", "false")
	t.Setenv("RENDERAPI_OBSERVABILITY__LOGGING__LEVEL", "warn")

	cfg, err := load("")
	require.NoError(t, err)

	assert.Equal(t, "production", cfg.Primary.Env)
	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "/api/v2", cfg.API.Prefix)
	assert.Equal(t, 5*time.Second, cfg.API.HandlerTimeout)
	assert.False(t, cfg.Render.Image.Enabled)
	assert.Equal(t, "warn", cfg.Observability.Logging.Level)
	assert.True(t, cfg.Observability.IsProduction())
}

func TestLoadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: "9000"
render:
  image:
    control_url: ws://127.0.0.1:9222/devtools/browser/abc
observability:
  health_checks:
    checks: [latex, image]
`), 0o600))

	t.Setenv("RENDERAPI_SERVER__PORT", "9001")

	cfg, err := load(path)
	require.NoError(t, err)

	assert.Equal(t, "9001", cfg.Server.Port, "env wins over file")
	assert.Equal(t, "ws://127.0.0.1:9222/devtools/browser/abc", cfg.Render.Image.ControlURL)
	assert.Equal(t, []string{CheckLatex, CheckImage}, cfg.Observability.HealthChecks.Checks)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{"prefix without slash", "RENDERAPI_API__PREFIX", "api"},
		{"unknown env", "RENDERAPI_PRIMARY__ENV", "moon"},
		{"bad log level", "RENDERAPI_OBSERVABILITY__LOGGING__LEVEL", "loud"},
		{"bad log format", "RENDERAPI_OBSERVABILITY__LOGGING__FORMAT", "xml"},
		{"unknown health check", "RENDERAPI_OBSERVABILITY__HEALTH_CHECKS__CHECKS", "latex,db"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.val)
			_, err := load("")
			assert.Error(t, err)
		})
	}
}

func TestLoadMissingConfigFile(t *testing.T) {
	_, err := load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestGetLogLevel(t *testing.T) {
	c := &ObservabilityConfig{Environment: "development"}
	assert.Equal(t, "debug", c.GetLogLevel())

	c.Environment = "production"
	assert.Equal(t, "info", c.GetLogLevel())

	c.Logging.Level = "error"
	assert.Equal(t, "error", c.GetLogLevel())
}
