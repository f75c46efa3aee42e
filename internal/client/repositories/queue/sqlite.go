package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/scribelab/scribe/internal/client/models"
	"github.com/scribelab/scribe/internal/dbx"
)

// SQLiteRepository implements Repository using a DBTX (either *sql.DB or *sql.Tx).
type SQLiteRepository struct {
	db dbx.DBTX
}

// NewSQLiteRepository returns a new SQLiteRepository bound to the given DBTX.
func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Enqueue upserts the pending entry for (entity_type, entity_id). On conflict
// the payload, operation and enqueued-at mark are replaced and attempts reset.
func (r *SQLiteRepository) Enqueue(ctx context.Context, entry *models.QueueEntry) error {
	query := ` INSERT INTO mutation_queue (entity_type, entity_id, operation, payload, enqueued_at, attempts)
			VALUES (?, ?, ?, ?, ?, 0)
			ON CONFLICT(entity_type, entity_id) DO UPDATE SET operation = excluded.operation,
				payload = excluded.payload,
				enqueued_at = excluded.enqueued_at,
				attempts = 0
	`
	_, err := r.db.ExecContext(ctx, query,
		string(entry.EntityType), entry.EntityID, string(entry.Operation),
		[]byte(entry.Payload), entry.EnqueuedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("failed to enqueue mutation: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) Snapshot(ctx context.Context) ([]*models.QueueEntry, error) {
	query := `SELECT entity_type, entity_id, operation, payload, enqueued_at, attempts
		FROM mutation_queue ORDER BY enqueued_at ASC`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to snapshot queue: %w", err)
	}
	defer rows.Close()

	var result []*models.QueueEntry
	for rows.Next() {
		var (
			item       models.QueueEntry
			entityType string
			operation  string
			enqueuedAt int64
		)
		if err := rows.Scan(&entityType, &item.EntityID, &operation, &item.Payload, &enqueuedAt, &item.Attempts); err != nil {
			return nil, fmt.Errorf("failed to scan queue row: %w", err)
		}
		item.EntityType = models.EntityType(entityType)
		item.Operation = models.Operation(operation)
		item.EnqueuedAt = time.Unix(0, enqueuedAt).UTC()
		result = append(result, &item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate queue rows: %w", err)
	}
	return result, nil
}

func (r *SQLiteRepository) Remove(ctx context.Context, entityType models.EntityType, entityID string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM mutation_queue WHERE entity_type = ? AND entity_id = ?`,
		string(entityType), entityID)
	if err != nil {
		return fmt.Errorf("failed to remove queue entry: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) RemoveIfUnchanged(ctx context.Context, entityType models.EntityType, entityID string, enqueuedAt time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM mutation_queue WHERE entity_type = ? AND entity_id = ? AND enqueued_at = ?`,
		string(entityType), entityID, enqueuedAt.UnixNano())
	if err != nil {
		return false, fmt.Errorf("failed to remove queue entry: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected error: %w", err)
	}
	return n > 0, nil
}

func (r *SQLiteRepository) IncrementAttempts(ctx context.Context, entityType models.EntityType, entityID string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE mutation_queue SET attempts = attempts + 1 WHERE entity_type = ? AND entity_id = ?`,
		string(entityType), entityID)
	if err != nil {
		return fmt.Errorf("failed to increment attempts: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) Count(ctx context.Context) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM mutation_queue`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count queue entries: %w", err)
	}
	return n, nil
}
