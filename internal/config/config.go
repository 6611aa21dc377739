// Package config loads application configuration from an optional YAML
// file and RELAY_-prefixed environment variables.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const envPrefix = "RELAY_"

// Config is the root application configuration.
type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Log      LogConfig      `koanf:"log"`
	CORS     CORSConfig     `koanf:"cors"`
	Webhook  WebhookConfig  `koanf:"webhook"`
	Queue    QueueConfig    `koanf:"queue"`
	Database DatabaseConfig `koanf:"database"`

	// Platforms overlays credentials and endpoint overrides onto the
	// built-in platform table. Keys are platform names.
	Platforms map[string]PlatformConfig `koanf:"platforms"`
}

// ServerConfig contains HTTP server configuration.
type ServerConfig struct {
	Host              string        `koanf:"host"`
	Port              string        `koanf:"port" validate:"required"`
	MetricsPort       string        `koanf:"metricsport" validate:"required"`
	ReadTimeout       time.Duration `koanf:"readtimeout"`
	ReadHeaderTimeout time.Duration `koanf:"readheadertimeout"`
	WriteTimeout      time.Duration `koanf:"writetimeout"`
	IdleTimeout       time.Duration `koanf:"idletimeout"`
}

// LogConfig contains logging configuration.
type LogConfig struct {
	Level  string `koanf:"level" validate:"oneof=debug info warn error"`
	Format string `koanf:"format" validate:"oneof=json text"`
}

// CORSConfig contains CORS configuration.
type CORSConfig struct {
	AllowedOrigins []string `koanf:"allowedorigins"`
}

// WebhookConfig contains inbound webhook configuration.
type WebhookConfig struct {
	// Secret enables HMAC signature verification when set. Empty means
	// verification is skipped, which is the accepted default.
	Secret string `koanf:"secret"`
}

// QueueConfig contains event queue configuration.
type QueueConfig struct {
	MaxRetries   int           `koanf:"maxretries" validate:"min=1,max=10"`
	DispatchRate float64       `koanf:"dispatchrate" validate:"gt=0"`
	KickInterval time.Duration `koanf:"kickinterval"`
}

// DatabaseConfig contains the optional delivery-history datastore
// configuration. An empty URL disables history entirely.
type DatabaseConfig struct {
	URL             string        `koanf:"url"`
	MaxOpenConns    int           `koanf:"maxopenconns"`
	MaxIdleConns    int           `koanf:"maxidleconns"`
	ConnMaxLifetime time.Duration `koanf:"connmaxlifetime"`
	ConnectTimeout  time.Duration `koanf:"connecttimeout"`
	ConnectAttempts int           `koanf:"connectattempts"`
}

// PlatformConfig is the per-platform configuration overlay. Credentials
// live here; a platform without the credentials its auth scheme requires
// is disabled, never an error.
type PlatformConfig struct {
	Category    string `koanf:"category"`
	API         string `koanf:"api"`
	Webhook     string `koanf:"webhook"`
	Auth        string `koanf:"auth"`
	Token       string `koanf:"token"`
	Key         string `koanf:"key"`
	Username    string `koanf:"username"`
	Password    string `koanf:"password"`
	Credentials string `koanf:"credentials"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:              "0.0.0.0",
			Port:              "8080",
			MetricsPort:       "9090",
			ReadTimeout:       15 * time.Second,
			ReadHeaderTimeout: 5 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       60 * time.Second,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		CORS: CORSConfig{
			AllowedOrigins: []string{"*"},
		},
		Queue: QueueConfig{
			MaxRetries:   3,
			DispatchRate: 10,
			KickInterval: 30 * time.Second,
		},
		Database: DatabaseConfig{
			MaxOpenConns:    10,
			MaxIdleConns:    2,
			ConnMaxLifetime: 30 * time.Minute,
			ConnectTimeout:  30 * time.Second,
			ConnectAttempts: 5,
		},
	}
}

// Load reads configuration from the optional YAML file at path, then
// overlays RELAY_-prefixed environment variables, and validates the
// result. An empty path skips file loading; a missing file at an
// explicit path is an error.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("config file: %w", err)
		}
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file: %w", err)
		}
	}

	// RELAY_SERVER_PORT becomes server.port; key segments are single
	// words so underscores map cleanly to delimiters.
	err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, envPrefix)), "_", ".")
	}), nil)
	if err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	cfg := Default()
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}
