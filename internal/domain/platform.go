// Package domain contains shared types for the platform event relay.
package domain

// Category groups platforms by the kind of service they provide. The
// dispatcher selects its request-shaping strategy by category.
type Category string

// Platform categories.
const (
	CategoryAI            Category = "ai"
	CategoryDevelopment   Category = "development"
	CategoryProductivity  Category = "productivity"
	CategoryDeployment    Category = "deployment"
	CategoryAutomation    Category = "automation"
	CategorySupport       Category = "support"
	CategoryBackend       Category = "backend"
	CategoryAIDevelopment Category = "ai_development"
	CategoryPlatform      Category = "platform"
	CategoryBackup        Category = "backup"
)

// AuthScheme identifies how outbound requests to a platform are authenticated.
type AuthScheme string

// Auth schemes.
const (
	AuthNone           AuthScheme = "none"
	AuthBearer         AuthScheme = "bearer"
	AuthAPIKey         AuthScheme = "api_key"
	AuthBasic          AuthScheme = "basic"
	AuthToken          AuthScheme = "token"
	AuthServiceAccount AuthScheme = "service_account"
)

// AuthConfig is a tagged union of platform credentials. Only the fields
// relevant to Scheme are populated.
type AuthConfig struct {
	Scheme      AuthScheme `json:"scheme"`
	Token       string     `json:"token,omitempty"`
	Key         string     `json:"key,omitempty"`
	Username    string     `json:"username,omitempty"`
	Password    string     `json:"password,omitempty"`
	Credentials string     `json:"credentials,omitempty"` // service account blob (JSON)
}

// HasCredentials reports whether the credentials required by the scheme
// are present. A platform without credentials is disabled, never an error.
func (a AuthConfig) HasCredentials() bool {
	switch a.Scheme {
	case AuthBearer:
		return a.Token != ""
	case AuthAPIKey:
		return a.Key != ""
	case AuthBasic:
		return a.Username != "" && a.Password != ""
	case AuthToken:
		return a.Token != ""
	case AuthServiceAccount:
		return a.Credentials != ""
	case AuthNone:
		return true
	default:
		return false
	}
}

// Platform describes one external system the relay exchanges events with.
// Descriptors are immutable after startup; Enabled is derived once from
// credential presence and re-evaluated only on process restart.
type Platform struct {
	Name            string     `json:"name"`
	DisplayName     string     `json:"display_name"`
	Category        Category   `json:"category"`
	APIEndpoint     string     `json:"api_endpoint,omitempty"`
	WebhookEndpoint string     `json:"webhook_endpoint,omitempty"`
	Auth            AuthConfig `json:"-"`
	Enabled         bool       `json:"enabled"`
}

// HasWebhook reports whether the platform has a webhook delivery URL.
func (p Platform) HasWebhook() bool { return p.WebhookEndpoint != "" }

// HasAPI reports whether the platform has an API base URL.
func (p Platform) HasAPI() bool { return p.APIEndpoint != "" }
