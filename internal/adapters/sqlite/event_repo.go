// Package sqlite implements the event audit log using SQLite.
package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/example/dlqwatch/internal/ports/secondary"
)

// EventRepository implements secondary.EventRepository using SQLite.
type EventRepository struct {
	db *sql.DB
}

// NewEventRepository creates a new EventRepository.
func NewEventRepository(db *sql.DB) *EventRepository {
	return &EventRepository{db: db}
}

// Append persists a new event.
func (r *EventRepository) Append(ctx context.Context, rec *secondary.EventRecord) error {
	if rec.CreatedAt == "" {
		rec.CreatedAt = time.Now().UTC().Format(time.RFC3339)
	}

	query := `INSERT INTO events (queue, kind, detail, message_count, created_at)
		VALUES (?, ?, ?, ?, ?)`

	var detail interface{}
	if rec.Detail != "" {
		detail = rec.Detail
	}

	result, err := r.db.ExecContext(ctx, query,
		rec.Queue,
		rec.Kind,
		detail,
		rec.MessageCount,
		rec.CreatedAt,
	)
	if err != nil {
		return err
	}

	rec.ID, err = result.LastInsertId()
	return err
}

// List retrieves events matching the given filters, newest first.
func (r *EventRepository) List(ctx context.Context, filters secondary.EventFilters) ([]*secondary.EventRecord, error) {
	query := `SELECT id, queue, kind, detail, message_count, created_at
		FROM events WHERE 1=1`
	args := []interface{}{}

	if filters.Queue != "" {
		query += " AND queue = ?"
		args = append(args, filters.Queue)
	}

	query += " ORDER BY id DESC"

	if filters.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filters.Limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return r.scanEvents(rows)
}

// scanEvents scans rows into event records.
func (r *EventRepository) scanEvents(rows *sql.Rows) ([]*secondary.EventRecord, error) {
	var events []*secondary.EventRecord

	for rows.Next() {
		var event secondary.EventRecord
		var detail sql.NullString

		if err := rows.Scan(
			&event.ID,
			&event.Queue,
			&event.Kind,
			&detail,
			&event.MessageCount,
			&event.CreatedAt,
		); err != nil {
			return nil, err
		}

		event.Detail = detail.String

		events = append(events, &event)
	}

	return events, rows.Err()
}

// Ensure EventRepository implements the interface.
var _ secondary.EventRepository = (*EventRepository)(nil)
