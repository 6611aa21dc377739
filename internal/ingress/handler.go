// Package ingress accepts inbound webhooks from external platforms and
// translates them into outbound fan-out events on the relay queue.
package ingress

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/flashfusion/relay/internal/pkg/ctxlog"
	"github.com/flashfusion/relay/internal/pkg/httputil"
	"github.com/flashfusion/relay/internal/registry"
	"github.com/flashfusion/relay/internal/relay"
	"github.com/go-chi/chi/v5"
)

// maxBodySize caps inbound webhook bodies at 1 MiB.
const maxBodySize = 1 << 20

// platformAliases get their own convenience ingress routes, e.g.
// POST /github as shorthand for POST /webhook/github.
var platformAliases = []string{"github", "zapier", "notion", "vercel", "zendesk", "openai"}

// DeadLetterLister exposes recent terminally failed events. Nil when the
// history store is disabled.
type DeadLetterLister interface {
	ListDeadLetters(ctx context.Context, limit int) ([]DeadLetterView, error)
}

// DeadLetterView is the HTTP listing shape for one dead-lettered event.
type DeadLetterView struct {
	EventID   string    `json:"event_id"`
	EventName string    `json:"event_name"`
	Retries   int       `json:"retries"`
	Errors    []string  `json:"errors"`
	DroppedAt time.Time `json:"dropped_at"`
}

// Handler handles inbound webhook HTTP traffic and the diagnostic
// endpoints.
type Handler struct {
	queue      *relay.Queue
	dispatcher *relay.Dispatcher
	registry   *registry.Registry
	routes     RoutingTable
	secret     string
	deadLetter DeadLetterLister
}

// NewHandler creates an ingress handler. secret enables signature
// verification when non-empty; deadLetter may be nil.
func NewHandler(queue *relay.Queue, dispatcher *relay.Dispatcher, reg *registry.Registry, routes RoutingTable, secret string, deadLetter DeadLetterLister) *Handler {
	return &Handler{
		queue:      queue,
		dispatcher: dispatcher,
		registry:   reg,
		routes:     routes,
		secret:     secret,
		deadLetter: deadLetter,
	}
}

// RegisterRoutes registers all ingress and diagnostic routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/webhook", h.ReceiveWebhook)
	r.Post("/webhook/{platform}", h.ReceiveWebhook)
	for _, alias := range platformAliases {
		r.Post("/"+alias, h.receiveAlias(alias))
	}

	r.Get("/status", h.GetStatus)
	r.Get("/platforms", h.ListPlatforms)
	r.Post("/test/{platform}", h.TestPlatform)
	r.Get("/history/deadletters", h.ListDeadLetters)
}

// ReceiveWebhook handles POST /webhook and POST /webhook/{platform}.
// It verifies, identifies, normalizes, routes, and answers immediately:
// the caller never waits on downstream platform health.
func (h *Handler) ReceiveWebhook(w http.ResponseWriter, r *http.Request) {
	h.receive(w, r, chi.URLParam(r, "platform"))
}

func (h *Handler) receiveAlias(platform string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h.receive(w, r, platform)
	}
}

func (h *Handler) receive(w http.ResponseWriter, r *http.Request, platform string) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		httputil.Error(w, http.StatusBadRequest, "read body")
		return
	}

	if !VerifySignature(h.secret, r.Header, body) {
		ctxlog.FromContext(r.Context()).Warn("webhook signature mismatch", "platform", platform)
		recordIngress(platform, "rejected")
		httputil.Error(w, http.StatusUnauthorized, "invalid webhook signature")
		return
	}

	var raw map[string]any
	if len(body) > 0 {
		if err := json.Unmarshal(body, &raw); err != nil {
			recordIngress(platform, "malformed")
			httputil.Error(w, http.StatusBadRequest, "invalid json")
			return
		}
	}

	// Explicit path parameter wins over header/body heuristics. Lowercase
	// it so extractor, routing table, and broadcast exclusion lookups all
	// match the registry's casing.
	if platform == "" {
		platform = DetectPlatform(r.Header, raw)
	} else {
		platform = strings.ToLower(platform)
	}

	eventName, payload, err := Normalize(platform, raw)
	if err != nil {
		ctxlog.FromContext(r.Context()).Warn("webhook normalization failed",
			"platform", platform,
			"error", err,
		)
		recordIngress(platform, "malformed")
		httputil.Error(w, http.StatusBadRequest, "unprocessable payload")
		return
	}

	targets := h.routes.Targets(platform)
	if targets == nil {
		h.queue.EnqueueBroadcast(eventName, payload, []string{platform})
	} else {
		h.queue.Enqueue(eventName, payload, targets)
	}

	recordIngress(platform, "accepted")
	httputil.JSON(w, http.StatusOK, map[string]any{
		"status":           "success",
		"platform":         platform,
		"event":            eventName,
		"processed_events": 1,
	})
}

// GetStatus handles GET /status: the registry diagnostic snapshot plus
// the live queue depth.
func (h *Handler) GetStatus(w http.ResponseWriter, _ *http.Request) {
	httputil.JSON(w, http.StatusOK, map[string]any{
		"platforms":   h.registry.Status(),
		"queue_depth": h.queue.Depth(),
	})
}

// ListPlatforms handles GET /platforms.
func (h *Handler) ListPlatforms(w http.ResponseWriter, _ *http.Request) {
	platforms := h.registry.EnabledPlatforms()
	httputil.JSON(w, http.StatusOK, map[string]any{
		"platforms": platforms,
		"count":     len(platforms),
	})
}

// TestPlatform handles POST /test/{platform}: a synchronous connectivity
// probe through the dispatcher, bypassing the queue.
func (h *Handler) TestPlatform(w http.ResponseWriter, r *http.Request) {
	platform := chi.URLParam(r, "platform")

	result := h.dispatcher.Send(r.Context(), platform, "connection_test", map[string]any{
		"message":      "connectivity test",
		"triggered_at": time.Now().UTC().Format(time.RFC3339),
	})

	status := http.StatusOK
	if !result.Success {
		status = http.StatusBadGateway
	}
	httputil.JSON(w, status, result)
}

// ListDeadLetters handles GET /history/deadletters.
func (h *Handler) ListDeadLetters(w http.ResponseWriter, r *http.Request) {
	if h.deadLetter == nil {
		httputil.Error(w, http.StatusNotFound, "delivery history is not enabled")
		return
	}

	letters, err := h.deadLetter.ListDeadLetters(r.Context(), 100)
	if err != nil {
		ctxlog.FromContext(r.Context()).Error("list dead letters", "error", err)
		httputil.Error(w, http.StatusInternalServerError, "internal error")
		return
	}

	httputil.JSON(w, http.StatusOK, map[string]any{
		"dead_letters": letters,
		"count":        len(letters),
	})
}
