package relay

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/flashfusion/relay/internal/domain"
	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

// QueueConfig contains queue configuration.
type QueueConfig struct {
	MaxRetries   int
	DispatchRate rate.Limit // processed events per second
	KickInterval time.Duration
}

// DefaultQueueConfig returns default queue configuration: 3 retries,
// 10 events/s pacing, 30s self-healing kick interval.
func DefaultQueueConfig() QueueConfig {
	return QueueConfig{
		MaxRetries:   3,
		DispatchRate: 10,
		KickInterval: 30 * time.Second,
	}
}

// Queue decouples "something happened" from "who gets told, and when".
// It is an ordered in-memory list of pending fan-out events drained by a
// single worker with bounded retries. Nothing is persisted: a crash loses
// queued events, which is an accepted limitation of this design.
type Queue struct {
	config     QueueConfig
	dispatcher *Dispatcher
	notifier   *Notifier
	limiter    *rate.Limiter

	mu         sync.Mutex
	items      []*domain.QueuedEvent
	processing bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewQueue creates a queue. Start must be called before Enqueue.
func NewQueue(config QueueConfig, dispatcher *Dispatcher, notifier *Notifier) *Queue {
	if config.MaxRetries <= 0 {
		config.MaxRetries = DefaultQueueConfig().MaxRetries
	}
	if config.DispatchRate <= 0 {
		config.DispatchRate = DefaultQueueConfig().DispatchRate
	}
	if config.KickInterval <= 0 {
		config.KickInterval = DefaultQueueConfig().KickInterval
	}

	return &Queue{
		config:     config,
		dispatcher: dispatcher,
		notifier:   notifier,
		limiter:    rate.NewLimiter(config.DispatchRate, 1),
	}
}

// Start initialises the queue context and launches the periodic kick
// timer that re-triggers an idle drain when items are pending. The
// context fields are written under the mutex so an Enqueue racing with
// Start observes either nil or the final value.
func (q *Queue) Start(ctx context.Context) {
	q.mu.Lock()
	q.ctx, q.cancel = context.WithCancel(ctx)
	q.mu.Unlock()

	q.wg.Add(1)
	go func() {
		defer q.wg.Done()
		ticker := time.NewTicker(q.config.KickInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				if q.Depth() > 0 {
					q.kick()
				}
			case <-q.ctx.Done():
				return
			}
		}
	}()

	// Pick up anything enqueued before Start.
	q.kick()

	slog.Info("event queue started",
		"max_retries", q.config.MaxRetries,
		"dispatch_rate", float64(q.config.DispatchRate),
		"kick_interval", q.config.KickInterval,
	)
}

// Stop cancels the queue context and waits for the drain loop to finish.
// Events still pending are lost.
func (q *Queue) Stop() {
	q.mu.Lock()
	cancel := q.cancel
	q.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	q.wg.Wait()
	slog.Info("event queue stopped", "pending_lost", q.Depth())
}

// Enqueue appends a new event to the tail of the queue and wakes the
// drain loop if it is idle. Targets nil means broadcast to every enabled
// platform. Enqueue is fire-and-forget: delivery failures surface only
// through observers and metrics, never to the caller.
func (q *Queue) Enqueue(eventName string, payload map[string]any, targets []string) *domain.QueuedEvent {
	return q.enqueue(eventName, payload, targets, nil)
}

// EnqueueBroadcast appends a broadcast event excluding the given
// platforms, typically the one that originated it.
func (q *Queue) EnqueueBroadcast(eventName string, payload map[string]any, exclude []string) *domain.QueuedEvent {
	return q.enqueue(eventName, payload, nil, exclude)
}

func (q *Queue) enqueue(eventName string, payload map[string]any, targets, exclude []string) *domain.QueuedEvent {
	event := &domain.QueuedEvent{
		ID:         uuid.NewString(),
		Name:       eventName,
		Payload:    payload,
		Targets:    targets,
		Exclude:    exclude,
		MaxRetries: q.config.MaxRetries,
		EnqueuedAt: time.Now().UTC(),
	}

	q.mu.Lock()
	q.items = append(q.items, event)
	depth := len(q.items)
	q.mu.Unlock()

	recordEnqueued()
	recordQueueDepth(depth)

	slog.Debug("event enqueued",
		"event_id", event.ID,
		"event", eventName,
		"targets", targets,
		"depth", depth,
	)

	q.kick()
	return event
}

// Depth returns the number of pending events.
func (q *Queue) Depth() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// kick starts the drain loop unless one is already running. The
// processing flag guarantees at most one drain is active, so a second
// trigger while draining is a no-op and no event is popped twice.
func (q *Queue) kick() {
	q.mu.Lock()
	// A nil context means Start has not run; its initial kick will pick
	// pending items up.
	if q.ctx == nil || q.processing || len(q.items) == 0 {
		q.mu.Unlock()
		return
	}
	q.processing = true
	q.mu.Unlock()

	q.wg.Add(1)
	go q.drain()
}

// drain pops events FIFO until the queue is empty, pacing processed
// events through the rate limiter to avoid bursting downstream rate
// limits.
func (q *Queue) drain() {
	defer q.wg.Done()

	for {
		q.mu.Lock()
		if len(q.items) == 0 {
			q.processing = false
			q.mu.Unlock()
			return
		}
		event := q.items[0]
		q.items = q.items[1:]
		depth := len(q.items)
		q.mu.Unlock()

		recordQueueDepth(depth)

		if err := q.limiter.Wait(q.ctx); err != nil {
			// Shutting down: put the event back and stop.
			q.mu.Lock()
			q.items = append([]*domain.QueuedEvent{event}, q.items...)
			q.processing = false
			q.mu.Unlock()
			return
		}

		q.process(event)
	}
}

// process dispatches one event to its resolved target set and decides
// between success, re-queue, and terminal drop. A failed dispatch is
// re-appended to the tail, behind fresh events, with its full original
// target list: re-delivery to targets that already succeeded is an
// accepted tradeoff and recipients must tolerate duplicates.
func (q *Queue) process(event *domain.QueuedEvent) {
	var results []domain.DispatchResult
	if event.Targets == nil {
		results = q.dispatcher.Broadcast(q.ctx, event.Name, event.Payload, event.Exclude)
	} else {
		for _, target := range event.Targets {
			results = append(results, q.dispatcher.Send(q.ctx, target, event.Name, event.Payload))
		}
	}

	if !domain.Failed(results) {
		q.notifier.EventDispatched(q.ctx, event, results)
		return
	}

	if event.Retries < event.MaxRetries {
		event.Retries++
		q.mu.Lock()
		q.items = append(q.items, event)
		depth := len(q.items)
		q.mu.Unlock()

		recordQueueDepth(depth)
		recordRetry()
		slog.Warn("dispatch failed, event re-queued",
			"event_id", event.ID,
			"event", event.Name,
			"retries", event.Retries,
			"max_retries", event.MaxRetries,
		)
		return
	}

	recordDropped()
	slog.Error("retries exhausted, event dropped",
		"event_id", event.ID,
		"event", event.Name,
		"retries", event.Retries,
	)
	q.notifier.EventFailed(q.ctx, event, results)
}
