package ingress

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize_GitHub(t *testing.T) {
	tests := []struct {
		name      string
		raw       map[string]any
		wantEvent string
	}{
		{
			name:      "push",
			raw:       map[string]any{"repository": map[string]any{"full_name": "a/b"}, "commits": []any{}},
			wantEvent: "code_pushed",
		},
		{
			name:      "pull request",
			raw:       map[string]any{"pull_request": map[string]any{"number": float64(7)}, "action": "opened"},
			wantEvent: "pull_request",
		},
		{
			name:      "issue",
			raw:       map[string]any{"issue": map[string]any{"number": float64(1)}, "action": "closed"},
			wantEvent: "issue_updated",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			event, payload, err := Normalize("github", tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.wantEvent, event)
			assert.Contains(t, payload, "timestamp")
		})
	}
}

func TestNormalize_Notion(t *testing.T) {
	event, _, err := Normalize("notion", map[string]any{"page": map[string]any{"id": "p1"}})
	require.NoError(t, err)
	assert.Equal(t, "page_updated", event)

	event, payload, err := Normalize("notion", map[string]any{"database_id": "db1"})
	require.NoError(t, err)
	assert.Equal(t, "database_updated", event)
	assert.Equal(t, "db1", payload["database_id"])
}

func TestNormalize_Zapier(t *testing.T) {
	raw := map[string]any{"zap_id": "z9", "anything": true}
	event, payload, err := Normalize("zapier", raw)
	require.NoError(t, err)
	assert.Equal(t, "automation_triggered", event)
	assert.Equal(t, "z9", payload["zap_id"])
	assert.Equal(t, raw, payload["data"])
}

func TestNormalize_Zendesk(t *testing.T) {
	event, payload, err := Normalize("zendesk", map[string]any{
		"ticket": map[string]any{"id": float64(42), "status": "open", "subject": "help", "priority": "high"},
	})
	require.NoError(t, err)
	assert.Equal(t, "ticket_updated", event)
	assert.Equal(t, float64(42), payload["ticket_id"])
	assert.Equal(t, "open", payload["status"])

	_, _, err = Normalize("zendesk", map[string]any{"no_ticket": true})
	assert.ErrorIs(t, err, ErrMalformedPayload)
}

func TestNormalize_Vercel(t *testing.T) {
	event, payload, err := Normalize("vercel", map[string]any{"name": "site", "state": "READY", "url": "site.vercel.app"})
	require.NoError(t, err)
	assert.Equal(t, "deployment_updated", event)
	assert.Equal(t, "READY", payload["state"])
}

func TestNormalize_OpenAI(t *testing.T) {
	raw := map[string]any{"model": "gpt-4", "usage": map[string]any{"total_tokens": float64(10)}}
	event, payload, err := Normalize("openai", raw)
	require.NoError(t, err)
	assert.Equal(t, "ai_completion", event)
	assert.Equal(t, "gpt-4", payload["model"])
	assert.Equal(t, raw, payload["data"])
}

func TestNormalize_PassthroughForUnknownPlatform(t *testing.T) {
	raw := map[string]any{"custom": "value"}
	event, payload, err := Normalize("unknown", raw)
	require.NoError(t, err)
	assert.Equal(t, "platform_event", event)
	assert.Equal(t, raw, payload["data"])
}

func TestNormalize_NilBody(t *testing.T) {
	_, _, err := Normalize("github", nil)
	assert.ErrorIs(t, err, ErrMalformedPayload)
}

func TestRoutingTable_Targets(t *testing.T) {
	routes := DefaultRoutes()

	assert.Equal(t, []string{"notion", "zapier"}, routes.Targets("github"))
	assert.Equal(t, []string{"zapier"}, routes.Targets("notion"))
	assert.Nil(t, routes.Targets("unknown"), "unrouted source broadcasts")
}
