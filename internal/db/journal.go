// ABOUTME: Run journal recording the outcome of every processed message
// ABOUTME: Audit trail only; ingestion never consults it to decide what to do

package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Outcome is one journal row.
type Outcome struct {
	ID          int64
	MessageID   string
	Outcome     string
	EntryID     string
	Detail      string
	ProcessedAt time.Time
}

// Journal writes and reads processed-message outcomes.
type Journal struct {
	db *sql.DB
}

// NewJournal wraps an initialized database.
func NewJournal(db *sql.DB) *Journal {
	return &Journal{db: db}
}

// OpenJournal initializes the database at path and returns a journal over it.
func OpenJournal(path string) (*Journal, error) {
	conn, err := InitDB(path)
	if err != nil {
		return nil, err
	}
	return NewJournal(conn), nil
}

// Close closes the underlying database.
func (j *Journal) Close() error {
	return j.db.Close()
}

// RecordOutcome appends one row.
func (j *Journal) RecordOutcome(ctx context.Context, o Outcome) error {
	if o.ProcessedAt.IsZero() {
		o.ProcessedAt = time.Now().UTC()
	}
	_, err := j.db.ExecContext(ctx, `
		INSERT INTO processed_messages (message_id, outcome, entry_id, detail, processed_at)
		VALUES (?, ?, ?, ?, ?)`,
		o.MessageID, o.Outcome, o.EntryID, o.Detail, o.ProcessedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record outcome: %w", err)
	}
	return nil
}

// ListOutcomes returns the most recent rows, newest first.
func (j *Journal) ListOutcomes(ctx context.Context, limit int) ([]Outcome, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := j.db.QueryContext(ctx, `
		SELECT id, message_id, outcome, entry_id, detail, processed_at
		FROM processed_messages
		ORDER BY processed_at DESC, id DESC
		LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list outcomes: %w", err)
	}
	defer rows.Close()

	var out []Outcome
	for rows.Next() {
		var o Outcome
		if err := rows.Scan(&o.ID, &o.MessageID, &o.Outcome, &o.EntryID, &o.Detail, &o.ProcessedAt); err != nil {
			return nil, fmt.Errorf("failed to scan outcome: %w", err)
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate outcomes: %w", err)
	}
	return out, nil
}

// OutcomesForMessage returns every row recorded for messageID, oldest first.
func (j *Journal) OutcomesForMessage(ctx context.Context, messageID string) ([]Outcome, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT id, message_id, outcome, entry_id, detail, processed_at
		FROM processed_messages
		WHERE message_id = ?
		ORDER BY id ASC`,
		messageID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list outcomes for %s: %w", messageID, err)
	}
	defer rows.Close()

	var out []Outcome
	for rows.Next() {
		var o Outcome
		if err := rows.Scan(&o.ID, &o.MessageID, &o.Outcome, &o.EntryID, &o.Detail, &o.ProcessedAt); err != nil {
			return nil, fmt.Errorf("failed to scan outcome: %w", err)
		}
		out = append(out, o)
	}
	return out, rows.Err()
}
