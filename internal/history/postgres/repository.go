// Package postgres provides the PostgreSQL implementation of the history store.
package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/flashfusion/relay/internal/history"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository implements history.Store using PostgreSQL.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new PostgreSQL repository.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// RecordDispatches inserts one row per delivery attempt in a single batch.
func (r *Repository) RecordDispatches(ctx context.Context, records []history.DispatchRecord) error {
	if len(records) == 0 {
		return nil
	}

	query := `
		INSERT INTO dispatch_log (event_id, event_name, platform, success, error, retries, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	batch := &pgx.Batch{}
	for _, rec := range records {
		batch.Queue(query,
			rec.EventID,
			rec.EventName,
			rec.Platform,
			rec.Success,
			rec.Error,
			rec.Retries,
			rec.OccurredAt,
		)
	}

	results := r.db.SendBatch(ctx, batch)
	defer func() { _ = results.Close() }()

	for range records {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("insert dispatch record: %w", err)
		}
	}
	return nil
}

// RecordDeadLetter inserts a dead-lettered event.
func (r *Repository) RecordDeadLetter(ctx context.Context, letter history.DeadLetter) error {
	payload, err := json.Marshal(letter.Payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	errs, err := json.Marshal(letter.Errors)
	if err != nil {
		return fmt.Errorf("marshal errors: %w", err)
	}

	query := `
		INSERT INTO dead_letters (event_id, event_name, payload, retries, errors, dropped_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	if _, err := r.db.Exec(ctx, query,
		letter.EventID,
		letter.EventName,
		payload,
		letter.Retries,
		errs,
		letter.DroppedAt,
	); err != nil {
		return fmt.Errorf("insert dead letter: %w", err)
	}
	return nil
}

// ListDeadLetters returns the most recent dead letters, newest first.
func (r *Repository) ListDeadLetters(ctx context.Context, limit int) ([]history.DeadLetter, error) {
	if limit <= 0 {
		limit = 100
	}

	query := `
		SELECT event_id, event_name, payload, retries, errors, dropped_at
		FROM dead_letters
		ORDER BY dropped_at DESC
		LIMIT $1
	`
	rows, err := r.db.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list dead letters: %w", err)
	}
	defer rows.Close()

	var letters []history.DeadLetter
	for rows.Next() {
		var (
			letter  history.DeadLetter
			payload []byte
			errs    []byte
		)
		if err := rows.Scan(
			&letter.EventID,
			&letter.EventName,
			&payload,
			&letter.Retries,
			&errs,
			&letter.DroppedAt,
		); err != nil {
			return nil, fmt.Errorf("scan dead letter: %w", err)
		}
		if err := json.Unmarshal(payload, &letter.Payload); err != nil {
			return nil, fmt.Errorf("unmarshal payload: %w", err)
		}
		if err := json.Unmarshal(errs, &letter.Errors); err != nil {
			return nil, fmt.Errorf("unmarshal errors: %w", err)
		}
		letters = append(letters, letter)
	}
	return letters, rows.Err()
}
