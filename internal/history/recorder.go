package history

import (
	"context"
	"log/slog"
	"time"

	"github.com/flashfusion/relay/internal/domain"
	"github.com/flashfusion/relay/internal/ingress"
)

// writeTimeout bounds history writes so a slow datastore can never wedge
// the drain loop that notifies us.
const writeTimeout = 5 * time.Second

// Recorder implements the relay observer by writing delivery outcomes to
// the store, and serves dead-letter listings to the HTTP layer. Write
// failures are logged and swallowed: history is best-effort bookkeeping,
// never part of the delivery path.
type Recorder struct {
	store Store
}

// NewRecorder creates a recorder over a store.
func NewRecorder(store Store) *Recorder {
	return &Recorder{store: store}
}

// EventDispatched records one row per target platform.
func (r *Recorder) EventDispatched(ctx context.Context, event *domain.QueuedEvent, results []domain.DispatchResult) {
	r.recordResults(ctx, event, results)
}

// EventFailed records the final attempt's rows plus a dead letter.
func (r *Recorder) EventFailed(ctx context.Context, event *domain.QueuedEvent, results []domain.DispatchResult) {
	r.recordResults(ctx, event, results)

	var errs []string
	for _, res := range results {
		if !res.Success {
			errs = append(errs, res.Platform+": "+res.Error)
		}
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), writeTimeout)
	defer cancel()

	letter := DeadLetter{
		EventID:   event.ID,
		EventName: event.Name,
		Payload:   event.Payload,
		Retries:   event.Retries,
		Errors:    errs,
		DroppedAt: time.Now().UTC(),
	}
	if err := r.store.RecordDeadLetter(ctx, letter); err != nil {
		slog.Error("record dead letter", "event_id", event.ID, "error", err)
	}
}

func (r *Recorder) recordResults(ctx context.Context, event *domain.QueuedEvent, results []domain.DispatchResult) {
	now := time.Now().UTC()
	records := make([]DispatchRecord, 0, len(results))
	for _, res := range results {
		records = append(records, DispatchRecord{
			EventID:    event.ID,
			EventName:  event.Name,
			Platform:   res.Platform,
			Success:    res.Success,
			Error:      res.Error,
			Retries:    event.Retries,
			OccurredAt: now,
		})
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), writeTimeout)
	defer cancel()

	if err := r.store.RecordDispatches(ctx, records); err != nil {
		slog.Error("record dispatch results", "event_id", event.ID, "error", err)
	}
}

// ListDeadLetters serves the HTTP dead-letter listing.
func (r *Recorder) ListDeadLetters(ctx context.Context, limit int) ([]ingress.DeadLetterView, error) {
	letters, err := r.store.ListDeadLetters(ctx, limit)
	if err != nil {
		return nil, err
	}

	views := make([]ingress.DeadLetterView, 0, len(letters))
	for _, l := range letters {
		views = append(views, ingress.DeadLetterView{
			EventID:   l.EventID,
			EventName: l.EventName,
			Retries:   l.Retries,
			Errors:    l.Errors,
			DroppedAt: l.DroppedAt,
		})
	}
	return views, nil
}
