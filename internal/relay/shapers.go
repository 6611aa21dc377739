package relay

import (
	"net/http"
	"strings"

	"github.com/flashfusion/relay/internal/domain"
)

// registerDefaultShapers installs the built-in per-category request
// shapers. Webhook-first platforms never reach these; they only apply
// when a platform has an API base URL and no webhook endpoint.
func (d *Dispatcher) registerDefaultShapers() {
	d.RegisterShaper(domain.CategoryAI, aiShaper)
	d.RegisterShaper(domain.CategoryAIDevelopment, aiShaper)
	d.RegisterShaper(domain.CategoryDevelopment, eventsShaper)
	d.RegisterShaper(domain.CategoryBackend, eventsShaper)
	d.RegisterShaper(domain.CategoryProductivity, productivityShaper)
}

// defaultShaper is the fallback for categories without a registered
// shaper: POST {api}/webhooks.
func defaultShaper(p domain.Platform, env Envelope) (string, string, any) {
	return http.MethodPost, joinURL(p.APIEndpoint, "/webhooks"), env
}

// aiShaper posts to the conversations/events sub-path AI platforms expose.
func aiShaper(p domain.Platform, env Envelope) (string, string, any) {
	return http.MethodPost, joinURL(p.APIEndpoint, "/v1/events"), env
}

// eventsShaper posts to a generic events sub-path.
func eventsShaper(p domain.Platform, env Envelope) (string, string, any) {
	return http.MethodPost, joinURL(p.APIEndpoint, "/events"), env
}

// productivityShaper branches per provider. Notion page creation and
// database updates use different verbs and paths; everything else gets
// the generic events sub-path.
func productivityShaper(p domain.Platform, env Envelope) (string, string, any) {
	if p.Name == "notion" {
		switch env.Event {
		case "page_created":
			return http.MethodPost, joinURL(p.APIEndpoint, "/v1/pages"), env
		case "database_updated":
			return http.MethodPatch, joinURL(p.APIEndpoint, "/v1/databases"), env
		}
	}
	return http.MethodPost, joinURL(p.APIEndpoint, "/events"), env
}

func joinURL(base, path string) string {
	return strings.TrimRight(base, "/") + path
}
