package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/flashfusion/relay/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "9090", cfg.Server.MetricsPort)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 3, cfg.Queue.MaxRetries)
	assert.Equal(t, float64(10), cfg.Queue.DispatchRate)
	assert.Equal(t, 30*time.Second, cfg.Queue.KickInterval)
	assert.Empty(t, cfg.Webhook.Secret)
	assert.Empty(t, cfg.Database.URL)
}

func TestLoad_FromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
server:
  port: "9999"
log:
  level: debug
  format: text
webhook:
  secret: hush
queue:
  maxretries: 5
platforms:
  github:
    token: ghp_test
  custom:
    webhook: https://hooks.example.test/abc
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "9999", cfg.Server.Port)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "text", cfg.Log.Format)
	assert.Equal(t, "hush", cfg.Webhook.Secret)
	assert.Equal(t, 5, cfg.Queue.MaxRetries)
	assert.Equal(t, "ghp_test", cfg.Platforms["github"].Token)
	assert.Equal(t, "https://hooks.example.test/abc", cfg.Platforms["custom"].Webhook)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  port: \"9999\"\n"), 0o600))

	t.Setenv("RELAY_SERVER_PORT", "7070")
	t.Setenv("RELAY_LOG_LEVEL", "warn")
	t.Setenv("RELAY_WEBHOOK_SECRET", "from-env")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "7070", cfg.Server.Port)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, "from-env", cfg.Webhook.Secret)
}

func TestLoad_PlatformCredentialsFromEnv(t *testing.T) {
	t.Setenv("RELAY_PLATFORMS_GITHUB_TOKEN", "ghp_env")
	t.Setenv("RELAY_PLATFORMS_SUPABASE_KEY", "sb_env")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "ghp_env", cfg.Platforms["github"].Token)
	assert.Equal(t, "sb_env", cfg.Platforms["supabase"].Key)
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestLoad_ValidationFailure(t *testing.T) {
	t.Setenv("RELAY_LOG_LEVEL", "loud")

	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "validate config")
}

func TestBuildPlatforms_Builtins(t *testing.T) {
	cfg := Default()
	platforms := cfg.BuildPlatforms()

	byName := make(map[string]domain.Platform, len(platforms))
	for _, p := range platforms {
		byName[p.Name] = p
	}

	github, ok := byName["github"]
	require.True(t, ok)
	assert.Equal(t, "GitHub", github.DisplayName)
	assert.Equal(t, domain.CategoryDevelopment, github.Category)
	assert.Equal(t, "https://api.github.com", github.APIEndpoint)
	assert.Equal(t, domain.AuthToken, github.Auth.Scheme)
	assert.Empty(t, github.Auth.Token, "no credentials without overlay")

	zapier := byName["zapier"]
	assert.Equal(t, domain.AuthNone, zapier.Auth.Scheme)
}

func TestBuildPlatforms_OverlayMergesCredentials(t *testing.T) {
	cfg := Default()
	cfg.Platforms = map[string]PlatformConfig{
		"github": {Token: "ghp_x"},
		"zapier": {Webhook: "https://hooks.zapier.com/h/1"},
	}

	byName := make(map[string]domain.Platform)
	for _, p := range cfg.BuildPlatforms() {
		byName[p.Name] = p
	}

	assert.Equal(t, "ghp_x", byName["github"].Auth.Token)
	assert.Equal(t, "https://api.github.com", byName["github"].APIEndpoint)
	assert.Equal(t, "https://hooks.zapier.com/h/1", byName["zapier"].WebhookEndpoint)
}

func TestBuildPlatforms_UnknownOverlayBecomesPlatform(t *testing.T) {
	cfg := Default()
	cfg.Platforms = map[string]PlatformConfig{
		"internalbus": {
			Webhook: "https://bus.internal.test/events",
			Auth:    "bearer",
			Token:   "tok",
		},
	}

	byName := make(map[string]domain.Platform)
	for _, p := range cfg.BuildPlatforms() {
		byName[p.Name] = p
	}

	custom, ok := byName["internalbus"]
	require.True(t, ok)
	assert.Equal(t, domain.CategoryPlatform, custom.Category)
	assert.Equal(t, domain.AuthBearer, custom.Auth.Scheme)
	assert.Equal(t, "tok", custom.Auth.Token)
	assert.True(t, custom.Auth.HasCredentials())
}
