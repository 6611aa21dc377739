package ingress

import (
	"net/http"
	"strings"
)

// PlatformUnknown is the fallback when no detection rule matches.
const PlatformUnknown = "unknown"

// detectRule is one best-effort heuristic: predicate over the inbound
// request's headers and decoded body, and the platform it indicates.
type detectRule struct {
	platform string
	match    func(h http.Header, body map[string]any) bool
}

// detectRules are evaluated in order; the first match wins. Signature
// headers are the strongest signal, then user-agent substrings, then
// payload marker fields. Order is part of the contract: a GitHub
// delivery also carries a generic JSON body, so its header rules must
// run before any body sniffing.
var detectRules = []detectRule{
	{"github", func(h http.Header, _ map[string]any) bool {
		return h.Get("X-GitHub-Event") != "" || h.Get("X-GitHub-Delivery") != ""
	}},
	{"github", func(h http.Header, _ map[string]any) bool {
		return strings.HasPrefix(h.Get("User-Agent"), "GitHub-Hookshot")
	}},
	{"zendesk", func(h http.Header, _ map[string]any) bool {
		return h.Get("X-Zendesk-Webhook-Id") != ""
	}},
	{"vercel", func(h http.Header, _ map[string]any) bool {
		return h.Get("X-Vercel-Signature") != "" ||
			strings.Contains(strings.ToLower(h.Get("User-Agent")), "vercel")
	}},
	{"zapier", func(h http.Header, _ map[string]any) bool {
		return strings.Contains(strings.ToLower(h.Get("User-Agent")), "zapier")
	}},
	{"notion", func(_ http.Header, body map[string]any) bool {
		if body == nil {
			return false
		}
		_, hasPage := body["page"]
		_, hasDB := body["database_id"]
		return hasPage || hasDB
	}},
	{"github", func(_ http.Header, body map[string]any) bool {
		if body == nil {
			return false
		}
		_, hasRepo := body["repository"]
		return hasRepo
	}},
	{"zapier", func(_ http.Header, body map[string]any) bool {
		if body == nil {
			return false
		}
		_, ok := body["zap_id"]
		return ok
	}},
	{"openai", func(_ http.Header, body map[string]any) bool {
		if body == nil {
			return false
		}
		_, ok := body["model"]
		return ok
	}},
}

// DetectPlatform guesses the originating platform of an inbound webhook.
// An explicit path parameter takes precedence and bypasses detection
// entirely; this runs only for the generic ingress path. Unresolvable
// requests map to "unknown".
func DetectPlatform(h http.Header, body map[string]any) string {
	for _, rule := range detectRules {
		if rule.match(h, body) {
			return rule.platform
		}
	}
	return PlatformUnknown
}
