// Package queue provides the durable per-entity mutation queue: the ledger
// of local edits awaiting a successful push to the server.
package queue

import (
	"context"
	"time"

	"github.com/scribelab/scribe/internal/client/models"
)

// Repository is the durable mutation queue. At most one entry exists per
// (entity type, entity id); Enqueue replaces any pending entry.
type Repository interface {
	// Enqueue inserts or replaces the pending entry for an entity. A
	// replacement carries a fresh payload and enqueued-at mark and resets
	// the attempt counter (new payload = new intent).
	Enqueue(ctx context.Context, entry *models.QueueEntry) error

	// Snapshot returns the current entries in enqueue order without
	// removing them.
	Snapshot(ctx context.Context) ([]*models.QueueEntry, error)

	// Remove deletes the entry for an entity. Idempotent.
	Remove(ctx context.Context, entityType models.EntityType, entityID string) error

	// RemoveIfUnchanged deletes the entry only if its enqueued-at mark still
	// equals enqueuedAt, i.e. no newer edit replaced it while a push was in
	// flight. Reports whether a row was deleted.
	RemoveIfUnchanged(ctx context.Context, entityType models.EntityType, entityID string, enqueuedAt time.Time) (bool, error)

	// IncrementAttempts bumps the attempt counter after a transient failure.
	IncrementAttempts(ctx context.Context, entityType models.EntityType, entityID string) error

	// Count returns the number of pending entries.
	Count(ctx context.Context) (int, error)
}
