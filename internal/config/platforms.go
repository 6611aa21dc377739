package config

import (
	"github.com/flashfusion/relay/internal/domain"
)

// builtinPlatforms is the static table of known platforms: categories,
// default endpoints, and the auth scheme each expects. Credentials and
// account-specific endpoints (Zapier hook URLs, Supabase project URLs)
// come from the config overlay.
var builtinPlatforms = []domain.Platform{
	{Name: "openai", DisplayName: "OpenAI", Category: domain.CategoryAI,
		APIEndpoint: "https://api.openai.com", Auth: domain.AuthConfig{Scheme: domain.AuthBearer}},
	{Name: "anthropic", DisplayName: "Anthropic", Category: domain.CategoryAI,
		APIEndpoint: "https://api.anthropic.com", Auth: domain.AuthConfig{Scheme: domain.AuthAPIKey}},
	{Name: "github", DisplayName: "GitHub", Category: domain.CategoryDevelopment,
		APIEndpoint: "https://api.github.com", Auth: domain.AuthConfig{Scheme: domain.AuthToken}},
	{Name: "vercel", DisplayName: "Vercel", Category: domain.CategoryDeployment,
		APIEndpoint: "https://api.vercel.com", Auth: domain.AuthConfig{Scheme: domain.AuthBearer}},
	{Name: "dockerhub", DisplayName: "Docker Hub", Category: domain.CategoryDeployment,
		APIEndpoint: "https://hub.docker.com/v2", Auth: domain.AuthConfig{Scheme: domain.AuthBasic}},
	{Name: "notion", DisplayName: "Notion", Category: domain.CategoryProductivity,
		APIEndpoint: "https://api.notion.com", Auth: domain.AuthConfig{Scheme: domain.AuthBearer}},
	{Name: "zapier", DisplayName: "Zapier", Category: domain.CategoryAutomation,
		Auth: domain.AuthConfig{Scheme: domain.AuthNone}},
	{Name: "zendesk", DisplayName: "Zendesk", Category: domain.CategorySupport,
		Auth: domain.AuthConfig{Scheme: domain.AuthBasic}},
	{Name: "supabase", DisplayName: "Supabase", Category: domain.CategoryBackend,
		Auth: domain.AuthConfig{Scheme: domain.AuthAPIKey}},
	{Name: "firebase", DisplayName: "Firebase", Category: domain.CategoryBackend,
		Auth: domain.AuthConfig{Scheme: domain.AuthServiceAccount}},
	{Name: "replit", DisplayName: "Replit", Category: domain.CategoryAIDevelopment,
		Auth: domain.AuthConfig{Scheme: domain.AuthBearer}},
}

// BuildPlatforms merges the config overlay onto the built-in table and
// returns the descriptors the registry is built from. Unknown overlay
// entries become new platforms, so operators can add targets without a
// code change.
func (c *Config) BuildPlatforms() []domain.Platform {
	overlays := c.Platforms

	platforms := make([]domain.Platform, 0, len(builtinPlatforms))
	seen := make(map[string]bool, len(builtinPlatforms))

	for _, p := range builtinPlatforms {
		seen[p.Name] = true
		if o, ok := overlays[p.Name]; ok {
			applyOverlay(&p, o)
		}
		platforms = append(platforms, p)
	}

	for name, o := range overlays {
		if seen[name] {
			continue
		}
		p := domain.Platform{Name: name, Category: domain.CategoryPlatform}
		applyOverlay(&p, o)
		platforms = append(platforms, p)
	}

	return platforms
}

func applyOverlay(p *domain.Platform, o PlatformConfig) {
	if o.Category != "" {
		p.Category = domain.Category(o.Category)
	}
	if o.API != "" {
		p.APIEndpoint = o.API
	}
	if o.Webhook != "" {
		p.WebhookEndpoint = o.Webhook
	}
	if o.Auth != "" {
		p.Auth.Scheme = domain.AuthScheme(o.Auth)
	}
	if o.Token != "" {
		p.Auth.Token = o.Token
	}
	if o.Key != "" {
		p.Auth.Key = o.Key
	}
	if o.Username != "" {
		p.Auth.Username = o.Username
	}
	if o.Password != "" {
		p.Auth.Password = o.Password
	}
	if o.Credentials != "" {
		p.Auth.Credentials = o.Credentials
	}
}
