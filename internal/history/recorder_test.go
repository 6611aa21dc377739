package history

import (
	"context"
	"errors"
	"testing"

	"github.com/flashfusion/relay/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memStore struct {
	dispatches  []DispatchRecord
	deadLetters []DeadLetter
	err         error
}

func (s *memStore) RecordDispatches(_ context.Context, records []DispatchRecord) error {
	if s.err != nil {
		return s.err
	}
	s.dispatches = append(s.dispatches, records...)
	return nil
}

func (s *memStore) RecordDeadLetter(_ context.Context, letter DeadLetter) error {
	if s.err != nil {
		return s.err
	}
	s.deadLetters = append(s.deadLetters, letter)
	return nil
}

func (s *memStore) ListDeadLetters(context.Context, int) ([]DeadLetter, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.deadLetters, nil
}

func TestRecorder_EventDispatched(t *testing.T) {
	store := &memStore{}
	rec := NewRecorder(store)

	event := &domain.QueuedEvent{ID: "e1", Name: "code_pushed", Retries: 1}
	rec.EventDispatched(context.Background(), event, []domain.DispatchResult{
		{Platform: "notion", Success: true},
		{Platform: "zapier", Success: true},
	})

	require.Len(t, store.dispatches, 2)
	assert.Equal(t, "e1", store.dispatches[0].EventID)
	assert.Equal(t, "notion", store.dispatches[0].Platform)
	assert.True(t, store.dispatches[0].Success)
	assert.Equal(t, 1, store.dispatches[0].Retries)
	assert.Empty(t, store.deadLetters)
}

func TestRecorder_EventFailed(t *testing.T) {
	store := &memStore{}
	rec := NewRecorder(store)

	event := &domain.QueuedEvent{
		ID:      "e2",
		Name:    "deployment_updated",
		Payload: map[string]any{"state": "ERROR"},
		Retries: 3,
	}
	rec.EventFailed(context.Background(), event, []domain.DispatchResult{
		{Platform: "notion", Success: false, Error: "delivery error 503"},
		{Platform: "zapier", Success: true},
	})

	assert.Len(t, store.dispatches, 2)
	require.Len(t, store.deadLetters, 1)

	letter := store.deadLetters[0]
	assert.Equal(t, "e2", letter.EventID)
	assert.Equal(t, 3, letter.Retries)
	assert.Equal(t, []string{"notion: delivery error 503"}, letter.Errors)
	assert.Equal(t, event.Payload, letter.Payload)
}

func TestRecorder_StoreErrorsAreSwallowed(t *testing.T) {
	store := &memStore{err: errors.New("datastore down")}
	rec := NewRecorder(store)

	event := &domain.QueuedEvent{ID: "e3", Name: "ping"}
	assert.NotPanics(t, func() {
		rec.EventDispatched(context.Background(), event, []domain.DispatchResult{{Platform: "notion", Success: true}})
		rec.EventFailed(context.Background(), event, []domain.DispatchResult{{Platform: "notion"}})
	})
}

func TestRecorder_ListDeadLetters(t *testing.T) {
	store := &memStore{deadLetters: []DeadLetter{{EventID: "e4", EventName: "ping", Retries: 2, Errors: []string{"x"}}}}
	rec := NewRecorder(store)

	views, err := rec.ListDeadLetters(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, "e4", views[0].EventID)
	assert.Equal(t, "ping", views[0].EventName)
	assert.Equal(t, 2, views[0].Retries)
}
