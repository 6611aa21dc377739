// Package history persists per-dispatch outcomes and dead-lettered
// events for operator forensics. It is an optional collaborator: the
// queue itself never depends on it and stays memory-only.
package history

import (
	"context"
	"time"
)

// DispatchRecord is one delivery attempt outcome.
type DispatchRecord struct {
	EventID    string
	EventName  string
	Platform   string
	Success    bool
	Error      string
	Retries    int
	OccurredAt time.Time
}

// DeadLetter is an event dropped after exhausting its retries.
type DeadLetter struct {
	EventID   string
	EventName string
	Payload   map[string]any
	Retries   int
	Errors    []string
	DroppedAt time.Time
}

// Store defines the interface for history data access.
type Store interface {
	RecordDispatches(ctx context.Context, records []DispatchRecord) error
	RecordDeadLetter(ctx context.Context, letter DeadLetter) error
	ListDeadLetters(ctx context.Context, limit int) ([]DeadLetter, error)
}
