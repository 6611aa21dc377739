package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/flashfusion/relay/internal/domain"
	promtestutil "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type delivery struct {
	event   *domain.QueuedEvent
	results []domain.DispatchResult
}

// chanObserver exposes terminal queue outcomes to tests as channels.
type chanObserver struct {
	dispatched chan delivery
	failed     chan delivery
}

func newChanObserver() *chanObserver {
	return &chanObserver{
		dispatched: make(chan delivery, 16),
		failed:     make(chan delivery, 16),
	}
}

func (o *chanObserver) EventDispatched(_ context.Context, event *domain.QueuedEvent, results []domain.DispatchResult) {
	o.dispatched <- delivery{event, results}
}

func (o *chanObserver) EventFailed(_ context.Context, event *domain.QueuedEvent, results []domain.DispatchResult) {
	o.failed <- delivery{event, results}
}

func waitDelivery(t *testing.T, ch chan delivery) delivery {
	t.Helper()
	select {
	case d := <-ch:
		return d
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for queue notification")
		return delivery{}
	}
}

// hitLog records the event names a test server received, in arrival order.
type hitLog struct {
	mu    sync.Mutex
	order []string
}

func (h *hitLog) record(name string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.order = append(h.order, name)
	count := 0
	for _, n := range h.order {
		if n == name {
			count++
		}
	}
	return count
}

func (h *hitLog) snapshot() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.order...)
}

func eventServer(t *testing.T, log *hitLog, failFirst bool) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var env Envelope
		require.NoError(t, json.NewDecoder(r.Body).Decode(&env))
		attempt := log.record(env.Event)
		if failFirst && attempt == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
}

func startQueue(t *testing.T, config QueueConfig, platforms ...domain.Platform) (*Queue, *chanObserver) {
	t.Helper()
	observer := newChanObserver()
	notifier := NewNotifier()
	notifier.Subscribe(observer)

	q := NewQueue(config, NewDispatcher(newTestRegistry(platforms...)), notifier)
	q.Start(context.Background())
	t.Cleanup(q.Stop)
	return q, observer
}

func fastConfig() QueueConfig {
	return QueueConfig{MaxRetries: 3, DispatchRate: 1000, KickInterval: time.Hour}
}

func TestQueue_FailedEventRetriesBehindFreshOnes(t *testing.T) {
	log := &hitLog{}
	flaky := eventServer(t, log, true)
	defer flaky.Close()
	steady := eventServer(t, log, false)
	defer steady.Close()

	observer := newChanObserver()
	notifier := NewNotifier()
	notifier.Subscribe(observer)

	dispatcher := NewDispatcher(newTestRegistry(
		webhookPlatform("flaky", flaky.URL),
		webhookPlatform("steady", steady.URL),
	))
	q := NewQueue(fastConfig(), dispatcher, notifier)

	// Enqueue both before the drain starts so their relative order is fixed.
	q.Enqueue("first", nil, []string{"flaky"})
	q.Enqueue("second", nil, []string{"steady"})
	q.Start(context.Background())
	defer q.Stop()

	waitDelivery(t, observer.dispatched)
	waitDelivery(t, observer.dispatched)

	// The failed head goes to the tail: first fails, second runs, then
	// first retries and succeeds.
	assert.Equal(t, []string{"first", "second", "first"}, log.snapshot())
	assert.Equal(t, 0, q.Depth())
}

func TestQueue_RetryResendsToAllBroadcastTargets(t *testing.T) {
	flakyLog := &hitLog{}
	flaky := eventServer(t, flakyLog, true)
	defer flaky.Close()
	steadyLog := &hitLog{}
	steady := eventServer(t, steadyLog, false)
	defer steady.Close()

	q, observer := startQueue(t, fastConfig(),
		webhookPlatform("flaky", flaky.URL),
		webhookPlatform("steady", steady.URL),
	)

	q.Enqueue("workflow_completed", nil, nil)

	got := waitDelivery(t, observer.dispatched)
	assert.Equal(t, 1, got.event.Retries)

	// A partial failure retries the whole broadcast: the platform that
	// already succeeded is delivered to again.
	assert.Len(t, flakyLog.snapshot(), 2)
	assert.Len(t, steadyLog.snapshot(), 2)
	assert.Equal(t, 0, q.Depth())
}

func TestQueue_RetriesAreBounded(t *testing.T) {
	log := &hitLog{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var env Envelope
		require.NoError(t, json.NewDecoder(r.Body).Decode(&env))
		log.record(env.Event)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	config := fastConfig()
	config.MaxRetries = 2

	q, observer := startQueue(t, config, webhookPlatform("down", server.URL))
	q.Enqueue("doomed", nil, []string{"down"})

	got := waitDelivery(t, observer.failed)
	assert.Equal(t, "doomed", got.event.Name)
	assert.Equal(t, 2, got.event.Retries)
	require.Len(t, got.results, 1)
	assert.False(t, got.results[0].Success)

	// Initial attempt plus MaxRetries re-deliveries, then dropped.
	assert.Len(t, log.snapshot(), 3)
	select {
	case <-observer.failed:
		t.Fatal("event failed more than once")
	case <-time.After(100 * time.Millisecond):
	}
	assert.Equal(t, 0, q.Depth())
}

func TestQueue_ConcurrentEnqueueProcessesEachEventOnce(t *testing.T) {
	const total = 40

	log := &hitLog{}
	server := eventServer(t, log, false)
	defer server.Close()

	q, observer := startQueue(t, fastConfig(), webhookPlatform("sink", server.URL))

	var wg sync.WaitGroup
	for i := 0; i < total; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			q.Enqueue(fmt.Sprintf("event_%02d", i), nil, []string{"sink"})
		}(i)
	}
	wg.Wait()

	for i := 0; i < total; i++ {
		waitDelivery(t, observer.dispatched)
	}

	hits := log.snapshot()
	require.Len(t, hits, total)
	seen := make(map[string]int, total)
	for _, name := range hits {
		seen[name]++
	}
	for name, count := range seen {
		assert.Equal(t, 1, count, "event %s delivered %d times", name, count)
	}
	assert.Equal(t, 0, q.Depth())
}

func TestQueue_EnqueueBeforeStartIsPickedUp(t *testing.T) {
	log := &hitLog{}
	server := eventServer(t, log, false)
	defer server.Close()

	observer := newChanObserver()
	notifier := NewNotifier()
	notifier.Subscribe(observer)

	q := NewQueue(fastConfig(), NewDispatcher(newTestRegistry(webhookPlatform("sink", server.URL))), notifier)
	q.Enqueue("early", nil, []string{"sink"})
	assert.Equal(t, 1, q.Depth())

	q.Start(context.Background())
	defer q.Stop()

	got := waitDelivery(t, observer.dispatched)
	assert.Equal(t, "early", got.event.Name)
}

func TestQueue_StartConcurrentWithEnqueue(t *testing.T) {
	log := &hitLog{}
	server := eventServer(t, log, false)
	defer server.Close()

	observer := newChanObserver()
	notifier := NewNotifier()
	notifier.Subscribe(observer)

	q := NewQueue(fastConfig(), NewDispatcher(newTestRegistry(webhookPlatform("sink", server.URL))), notifier)
	t.Cleanup(q.Stop)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		q.Start(context.Background())
	}()
	go func() {
		defer wg.Done()
		q.Enqueue("racing", nil, []string{"sink"})
	}()
	wg.Wait()

	got := waitDelivery(t, observer.dispatched)
	assert.Equal(t, "racing", got.event.Name)
}

func TestQueue_RequeueUpdatesDepthGauge(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	q := NewQueue(fastConfig(), NewDispatcher(newTestRegistry(webhookPlatform("down", server.URL))), NewNotifier())
	q.ctx = context.Background()

	q.process(&domain.QueuedEvent{
		ID:         "e1",
		Name:       "doomed",
		Targets:    []string{"down"},
		MaxRetries: 3,
	})

	assert.Equal(t, 1, q.Depth())
	assert.Equal(t, float64(1), promtestutil.ToFloat64(queueDepth))
}

func TestQueue_BroadcastSkipsExcludedPlatform(t *testing.T) {
	log := &hitLog{}
	server := eventServer(t, log, false)
	defer server.Close()

	q, observer := startQueue(t, fastConfig(),
		webhookPlatform("origin", server.URL),
		webhookPlatform("other", server.URL),
	)

	q.EnqueueBroadcast("platform_event", nil, []string{"origin"})

	got := waitDelivery(t, observer.dispatched)
	require.Len(t, got.results, 1)
	assert.Equal(t, "other", got.results[0].Platform)
	assert.Len(t, log.snapshot(), 1)
}

func TestQueue_DisabledTargetFailsWithoutRetryBudgetLeft(t *testing.T) {
	p := domain.Platform{
		Name:     "locked",
		Category: domain.CategoryBackend,
		Auth:     domain.AuthConfig{Scheme: domain.AuthBearer}, // no token: disabled
	}

	config := fastConfig()
	config.MaxRetries = 1

	q, observer := startQueue(t, config, p)
	q.Enqueue("unreachable", nil, []string{"locked"})

	got := waitDelivery(t, observer.failed)
	require.Len(t, got.results, 1)
	assert.Equal(t, "platform disabled", got.results[0].Error)
}
