// Package config manages environment variables.
//
// It reads variables from the `.env` file and the process environment,
// loads them into structured Go types (struct), and
// validates that required values are present so they
// can be reused across the application runtime.
//
// Responsibilities:
//   - Provide defaults for every setting so the service starts with an empty environment.
//   - Optionally layer a YAML file (RENDERAPI_CONFIG_FILE) over the defaults.
//   - Layer environment variables over both.
//   - Validate the result so the app fails fast on bad config.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	// Side-effect import: triggers godotenv's autoload feature.
	// If a `.env` file exists, it gets loaded into process env
	// before any env var is read.
	_ "github.com/joho/godotenv/autoload"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

/*
	Env vars are read using the RENDERAPI_ prefix. The prefix is removed, the key is
	lowercased and a double underscore marks nesting:

		RENDERAPI_SERVER__PORT            -> server.port
		RENDERAPI_API__HANDLER_TIMEOUT    -> api.handler_timeout
		RENDERAPI_OBSERVABILITY__LOGGING__LEVEL -> observability.logging.level
*/

const (
	// EnvPrefix is the prefix shared by every environment variable the service reads.
	EnvPrefix = "RENDERAPI_"

	// ConfigFileEnv names an optional YAML file layered between defaults and env.
	ConfigFileEnv = EnvPrefix + "CONFIG_FILE"

	// ServiceName identifies the service in logs, traces and metrics.
	ServiceName = "render-api"
)

// Config is the root configuration object for the application.
type Config struct {
	Primary       Primary              `koanf:"primary" validate:"required"`
	Server        ServerConfig         `koanf:"server" validate:"required"`
	API           APIConfig            `koanf:"api" validate:"required"`
	Render        RenderConfig         `koanf:"render" validate:"required"`
	Observability *ObservabilityConfig `koanf:"observability"`
}

// Primary holds top-level information about the runtime environment.
type Primary struct {
	Env string `koanf:"env" validate:"required,oneof=development staging production test"`
}

// ServerConfig groups settings for the HTTP server runtime.
//
// Timeouts are whole seconds, as in the env.
type ServerConfig struct {
	Port               string   `koanf:"port" validate:"required"`
	ReadTimeout        int      `koanf:"read_timeout" validate:"required,min=1"`
	WriteTimeout       int      `koanf:"write_timeout" validate:"required,min=1"`
	IdleTimeout        int      `koanf:"idle_timeout" validate:"required,min=1"`
	ShutdownTimeout    int      `koanf:"shutdown_timeout" validate:"required,min=1"`
	BodyLimit          string   `koanf:"body_limit" validate:"required"`
	CORSAllowedOrigins []string `koanf:"cors_allowed_origins"`
}

// APIConfig controls the dispatch layer.
type APIConfig struct {
	// Prefix every route is registered under, e.g. "/api/v1".
	Prefix string `koanf:"prefix" validate:"required,startswith=/"`

	// HandlerTimeout bounds a single handler call. Zero disables the deadline.
	HandlerTimeout time.Duration `koanf:"handler_timeout" validate:"min=0"`
}

// RenderConfig groups the renderer backends.
type RenderConfig struct {
	Latex LatexConfig `koanf:"latex"`
	Image ImageConfig `koanf:"image"`
}

// LatexConfig holds server-side defaults for the LaTeX renderer.
type LatexConfig struct {
	// MaxExpand is the default macro expansion limit and the ceiling for a
	// request's maxExpand.
	MaxExpand int `koanf:"max_expand" validate:"min=0"`
}

// ImageConfig controls the HTML-to-image endpoint and its headless browser.
type ImageConfig struct {
	// Enabled registers POST {prefix}/html-image.
	Enabled bool `koanf:"enabled"`

	// ControlURL connects to an already running browser (DevTools websocket URL).
	// When empty a local browser is launched on first use.
	ControlURL string `koanf:"control_url"`

	// BrowserBin overrides the browser executable used when launching.
	BrowserBin string `koanf:"browser_bin"`

	// NoSandbox disables the Chrome sandbox, needed in most containers.
	NoSandbox bool `koanf:"no_sandbox"`

	DefaultWidth  int `koanf:"default_width" validate:"min=1"`
	DefaultHeight int `koanf:"default_height" validate:"min=1"`
}

// defaults is the base layer for every key the service reads.
func defaults() map[string]any {
	obs := DefaultObservabilityConfig()
	return map[string]any{
		"primary.env": "development",

		"server.port":             "3000",
		"server.read_timeout":     30,
		"server.write_timeout":    60,
		"server.idle_timeout":     120,
		"server.shutdown_timeout": 30,
		"server.body_limit":       "2M",

		"api.prefix":          "/api/v1",
		"api.handler_timeout": "30s",

		"render.latex.max_expand":     1000,
		"render.image.enabled":        true,
		"render.image.no_sandbox":     false,
		"render.image.default_width":  800,
		"render.image.default_height": 600,

		"observability.logging.level":                         obs.Logging.Level,
		"observability.logging.format":                        obs.Logging.Format,
		"observability.logging.slow_request_threshold":        obs.Logging.SlowRequestThreshold.String(),
		"observability.new_relic.app_log_forwarding_enabled":  obs.NewRelic.AppLogForwardingEnabled,
		"observability.new_relic.distributed_tracing_enabled": obs.NewRelic.DistributedTracingEnabled,
		"observability.new_relic.debug_logging":               obs.NewRelic.DebugLogging,
		"observability.health_checks.enabled":                 obs.HealthChecks.Enabled,
		"observability.health_checks.timeout":                 obs.HealthChecks.Timeout.String(),
		"observability.health_checks.checks":                  obs.HealthChecks.Checks,
	}
}

// envKey maps RENDERAPI_SERVER__PORT to server.port.
func envKey(s string) string {
	key := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	return strings.ReplaceAll(key, "__", ".")
}

// LoadConfig builds the configuration from defaults, the optional YAML file and
// the environment, then validates it.
func LoadConfig() (*Config, error) {
	return load(os.Getenv(ConfigFileEnv))
}

func load(configFile string) (*Config, error) {
	// The "." is the key-path delimiter koanf uses to represent nesting.
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("could not load config defaults: %w", err)
	}

	if configFile != "" {
		if err := k.Load(file.Provider(configFile), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("could not load config file %s: %w", configFile, err)
		}
	}

	err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		if s == ConfigFileEnv {
			return ""
		}
		return envKey(s)
	}), nil)
	if err != nil {
		return nil, fmt.Errorf("could not load env variables: %w", err)
	}

	mainConfig := &Config{}

	// koanf's default decoder is weakly typed: env strings become ints and bools,
	// "30s" becomes a time.Duration and "a,b" becomes a []string.
	if err := k.Unmarshal("", mainConfig); err != nil {
		return nil, fmt.Errorf("could not unmarshal main config: %w", err)
	}

	validate := validator.New()
	if err := validate.Struct(mainConfig); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	if mainConfig.Observability == nil {
		mainConfig.Observability = DefaultObservabilityConfig()
	}

	// Service name and environment always follow the primary config so tracing
	// and logging see consistent naming.
	mainConfig.Observability.ServiceName = ServiceName
	mainConfig.Observability.Environment = mainConfig.Primary.Env

	if err := mainConfig.Observability.Validate(); err != nil {
		return nil, fmt.Errorf("invalid observability config: %w", err)
	}

	return mainConfig, nil
}
