// internal/store/event.go
package store

import (
	"context"
	"fmt"

	"commit-monitor/internal/model"
)

// CreateIngestEvent persists the durable receipt of one webhook delivery
// with processed = false. This write happens before any interpretation so
// a crash between receipt and processing loses nothing.
func (p *Postgres) CreateIngestEvent(ctx context.Context, arg CreateIngestEventParams) (int64, error) {
	var id int64
	err := p.pool.QueryRow(ctx, `
		INSERT INTO ingest_events (kind, repository_ref, commit_hash, payload)
		VALUES ($1, $2, $3, $4)
		RETURNING id`,
		arg.Kind, arg.RepositoryRef, arg.CommitHash, arg.Payload,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("create ingest event: %w", err)
	}
	return id, nil
}

// ListUnprocessedEvents returns events awaiting interpretation, oldest
// first, for replay by the reconciliation scheduler.
func (p *Postgres) ListUnprocessedEvents(ctx context.Context) ([]model.IngestEvent, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT id, kind, repository_ref, commit_hash, payload, processed, received_at
		FROM ingest_events
		WHERE processed = FALSE
		ORDER BY received_at ASC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []model.IngestEvent
	for rows.Next() {
		var e model.IngestEvent
		if err := rows.Scan(&e.ID, &e.Kind, &e.RepositoryRef, &e.CommitHash, &e.Payload, &e.Processed, &e.ReceivedAt); err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// MarkEventProcessed flips the processed flag. The conditional update
// keeps the transition monotonic: once true the flag is never reset, and
// a duplicate flip from a concurrent path is a harmless no-op.
func (p *Postgres) MarkEventProcessed(ctx context.Context, eventID int64) error {
	_, err := p.pool.Exec(ctx, `
		UPDATE ingest_events SET processed = TRUE
		WHERE id = $1 AND processed = FALSE`,
		eventID,
	)
	if err != nil {
		return fmt.Errorf("mark event %d processed: %w", eventID, err)
	}
	return nil
}
