package relay

import (
	"context"
	"log/slog"
	"sync"

	"github.com/flashfusion/relay/internal/domain"
)

// Observer receives cross-cutting delivery notifications. Observers let
// callers react to terminal outcomes without coupling the queue or
// dispatcher to them.
type Observer interface {
	// EventDispatched fires once per event delivered to all its targets.
	EventDispatched(ctx context.Context, event *domain.QueuedEvent, results []domain.DispatchResult)
	// EventFailed fires exactly once when an event exhausts its retries
	// and is dropped.
	EventFailed(ctx context.Context, event *domain.QueuedEvent, results []domain.DispatchResult)
}

// Notifier fans delivery notifications out to subscribed observers.
type Notifier struct {
	mu        sync.RWMutex
	observers []Observer
}

// NewNotifier creates an empty notifier.
func NewNotifier() *Notifier {
	return &Notifier{}
}

// Subscribe registers an observer. Not safe to call concurrently with
// event processing only in the sense that late subscribers miss earlier
// notifications; registration itself is locked.
func (n *Notifier) Subscribe(o Observer) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.observers = append(n.observers, o)
}

// EventDispatched notifies all observers of a fully delivered event.
func (n *Notifier) EventDispatched(ctx context.Context, event *domain.QueuedEvent, results []domain.DispatchResult) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	for _, o := range n.observers {
		o.EventDispatched(ctx, event, results)
	}
}

// EventFailed notifies all observers of a terminally failed event.
func (n *Notifier) EventFailed(ctx context.Context, event *domain.QueuedEvent, results []domain.DispatchResult) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	for _, o := range n.observers {
		o.EventFailed(ctx, event, results)
	}
}

// LogObserver logs delivery outcomes. It is always subscribed so that
// terminal failures are visible even when no other observer is wired.
type LogObserver struct{}

// EventDispatched logs a successful fan-out.
func (LogObserver) EventDispatched(_ context.Context, event *domain.QueuedEvent, results []domain.DispatchResult) {
	slog.Info("event dispatched",
		"event_id", event.ID,
		"event", event.Name,
		"platforms", len(results),
		"retries", event.Retries,
	)
}

// EventFailed logs a terminal failure with per-platform errors.
func (LogObserver) EventFailed(_ context.Context, event *domain.QueuedEvent, results []domain.DispatchResult) {
	var failed []string
	for _, r := range results {
		if !r.Success {
			failed = append(failed, r.Platform)
		}
	}
	slog.Error("event failed",
		"event_id", event.ID,
		"event", event.Name,
		"retries", event.Retries,
		"failed_platforms", failed,
	)
}
