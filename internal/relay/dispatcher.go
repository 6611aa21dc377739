// Package relay implements the platform event distribution layer: an
// in-memory fan-out queue with bounded retries and an HTTP dispatcher
// that delivers events to external platforms.
package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/flashfusion/relay/internal/domain"
	"github.com/flashfusion/relay/internal/registry"
)

const (
	defaultTimeout = 15 * time.Second
	defaultSource  = "flashfusion"
	userAgent      = "FlashFusion-Relay/1.0"
)

// Envelope is the JSON body delivered to platforms.
type Envelope struct {
	Event     string         `json:"event"`
	Data      map[string]any `json:"data"`
	Timestamp time.Time      `json:"timestamp"`
	Source    string         `json:"source"`
}

// ShapeFunc builds the method, URL and body for delivering an envelope to
// a platform through its API endpoint. Registered per category at startup
// so new platform categories don't touch the dispatcher loop.
type ShapeFunc func(p domain.Platform, env Envelope) (method, url string, body any)

// Dispatcher turns (event, platform) pairs into outbound HTTP calls and
// classifies the outcome. It never panics or propagates transport errors:
// every failure surfaces as a DispatchResult.
type Dispatcher struct {
	registry *registry.Registry
	client   *http.Client
	shapers  map[domain.Category]ShapeFunc
	source   string
}

// NewDispatcher creates a dispatcher with the default per-category
// request shapers registered.
func NewDispatcher(reg *registry.Registry) *Dispatcher {
	d := &Dispatcher{
		registry: reg,
		client:   &http.Client{Timeout: defaultTimeout},
		shapers:  make(map[domain.Category]ShapeFunc),
		source:   defaultSource,
	}
	d.registerDefaultShapers()
	return d
}

// RegisterShaper installs or replaces the request shaper for a category.
func (d *Dispatcher) RegisterShaper(category domain.Category, fn ShapeFunc) {
	d.shapers[category] = fn
}

// Send delivers one event to one platform. A missing or disabled platform
// yields a failed result without any network call.
func (d *Dispatcher) Send(ctx context.Context, platformName, eventName string, payload map[string]any) domain.DispatchResult {
	platform, ok := d.registry.Get(platformName)
	if !ok {
		return domain.DispatchResult{Platform: platformName, Error: "unknown platform"}
	}
	if !platform.Enabled {
		return domain.DispatchResult{Platform: platform.Name, Error: "platform disabled"}
	}

	env := Envelope{
		Event:     eventName,
		Data:      payload,
		Timestamp: time.Now().UTC(),
		Source:    d.source,
	}

	start := time.Now()
	err := d.deliver(ctx, platform, env)
	duration := time.Since(start)

	if err != nil {
		slog.Warn("dispatch failed",
			"platform", platform.Name,
			"event", eventName,
			"retryable", isRetryable(err),
			"duration", duration,
			"error", err,
		)
		recordDispatch(platform.Name, "failed", duration)
		return domain.DispatchResult{Platform: platform.Name, Error: err.Error()}
	}

	slog.Debug("dispatch succeeded", "platform", platform.Name, "event", eventName, "duration", duration)
	recordDispatch(platform.Name, "success", duration)
	return domain.DispatchResult{Platform: platform.Name, Success: true}
}

// Broadcast delivers one event to every enabled platform except the
// exclusions. One platform's failure never blocks another's delivery.
func (d *Dispatcher) Broadcast(ctx context.Context, eventName string, payload map[string]any, exclude []string) []domain.DispatchResult {
	excluded := make(map[string]bool, len(exclude))
	for _, name := range exclude {
		excluded[strings.ToLower(name)] = true
	}

	var results []domain.DispatchResult
	for _, p := range d.registry.EnabledPlatforms() {
		if excluded[p.Name] {
			continue
		}
		results = append(results, d.Send(ctx, p.Name, eventName, payload))
	}
	return results
}

// deliver routes the envelope to the platform's webhook URL when one is
// configured, otherwise through the category shaper against its API base.
// A platform with neither endpoint is a delivery no-op.
func (d *Dispatcher) deliver(ctx context.Context, platform domain.Platform, env Envelope) error {
	switch {
	case platform.HasWebhook():
		return d.post(ctx, platform, http.MethodPost, platform.WebhookEndpoint, env)

	case platform.HasAPI():
		shape := d.shapers[platform.Category]
		if shape == nil {
			shape = defaultShaper
		}
		method, url, body := shape(platform, env)
		return d.post(ctx, platform, method, url, body)

	default:
		slog.Debug("no endpoint configured, delivery skipped", "platform", platform.Name)
		return nil
	}
}

func (d *Dispatcher) post(ctx context.Context, platform domain.Platform, method, url string, body any) error {
	headers, err := registry.AuthHeaders(platform.Auth)
	if err != nil {
		return &PermanentError{Message: fmt.Sprintf("build auth headers: %v", err)}
	}

	raw, err := json.Marshal(body)
	if err != nil {
		return &PermanentError{Message: fmt.Sprintf("marshal envelope: %v", err)}
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(raw))
	if err != nil {
		return &PermanentError{Message: fmt.Sprintf("create request: %v", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return &RetryableError{Message: fmt.Sprintf("send request: %v", err)}
	}
	defer func() { _ = resp.Body.Close() }()

	return handleResponse(resp)
}

func handleResponse(resp *http.Response) error {
	body, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err != nil {
		return &RetryableError{Message: fmt.Sprintf("read response: %v", err)}
	}

	switch {
	case resp.StatusCode < 300:
		return nil

	case resp.StatusCode == http.StatusTooManyRequests:
		return &RetryableError{Code: resp.StatusCode, Message: "rate limited"}

	case resp.StatusCode >= 500:
		return &RetryableError{Code: resp.StatusCode, Message: fmt.Sprintf("server error: %s", string(body))}

	default:
		return &PermanentError{Code: resp.StatusCode, Message: fmt.Sprintf("rejected: %s", string(body))}
	}
}
