package ingress

import (
	"errors"
	"time"
)

// ErrMalformedPayload is returned when an extractor cannot make sense of
// the inbound body.
var ErrMalformedPayload = errors.New("malformed webhook payload")

// extractor pulls a canonical subset of fields out of a platform's raw
// webhook payload. Unknown platforms fall through to the passthrough
// extractor, which wraps the whole body.
type extractor func(raw map[string]any) (eventName string, payload map[string]any, err error)

var extractors = map[string]extractor{
	"github":  extractGitHub,
	"notion":  extractNotion,
	"zapier":  extractZapier,
	"zendesk": extractZendesk,
	"vercel":  extractVercel,
	"openai":  extractOpenAI,
}

// Normalize maps a raw inbound payload into a canonical (event, payload)
// pair for the given platform.
func Normalize(platform string, raw map[string]any) (string, map[string]any, error) {
	if raw == nil {
		return "", nil, ErrMalformedPayload
	}
	ex, ok := extractors[platform]
	if !ok {
		ex = extractPassthrough
	}
	return ex(raw)
}

func extractGitHub(raw map[string]any) (string, map[string]any, error) {
	payload := map[string]any{
		"repository": raw["repository"],
		"action":     raw["action"],
		"commits":    raw["commits"],
		"timestamp":  time.Now().UTC().Format(time.RFC3339),
	}

	event := "code_pushed"
	if pr, ok := raw["pull_request"]; ok {
		payload["pull_request"] = pr
		event = "pull_request"
	}
	if issue, ok := raw["issue"]; ok {
		payload["issue"] = issue
		event = "issue_updated"
	}

	return event, payload, nil
}

func extractNotion(raw map[string]any) (string, map[string]any, error) {
	payload := map[string]any{
		"page":        raw["page"],
		"database_id": raw["database_id"],
		"properties":  raw["properties"],
	}
	event := "page_updated"
	if _, ok := raw["database_id"]; ok {
		event = "database_updated"
	}
	return event, payload, nil
}

func extractZapier(raw map[string]any) (string, map[string]any, error) {
	// Zapier forwards arbitrary zap output; keep the body but surface
	// the zap identity as top-level fields.
	payload := map[string]any{
		"zap_id": raw["zap_id"],
		"data":   raw,
	}
	return "automation_triggered", payload, nil
}

func extractZendesk(raw map[string]any) (string, map[string]any, error) {
	ticket, ok := raw["ticket"].(map[string]any)
	if !ok {
		return "", nil, ErrMalformedPayload
	}
	payload := map[string]any{
		"ticket_id": ticket["id"],
		"status":    ticket["status"],
		"subject":   ticket["subject"],
		"priority":  ticket["priority"],
	}
	return "ticket_updated", payload, nil
}

func extractVercel(raw map[string]any) (string, map[string]any, error) {
	payload := map[string]any{
		"deployment": raw["deployment"],
		"name":       raw["name"],
		"url":        raw["url"],
		"state":      raw["state"],
	}
	return "deployment_updated", payload, nil
}

func extractOpenAI(raw map[string]any) (string, map[string]any, error) {
	payload := map[string]any{
		"model": raw["model"],
		"usage": raw["usage"],
		"data":  raw,
	}
	return "ai_completion", payload, nil
}

// extractPassthrough wraps the entire raw payload for platforms without
// a dedicated extractor.
func extractPassthrough(raw map[string]any) (string, map[string]any, error) {
	return "platform_event", map[string]any{"data": raw}, nil
}
