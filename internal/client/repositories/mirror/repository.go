// Package mirror provides the server-mirror cache: the last canonical state
// of every entity as confirmed by the server. The orchestrator stamps
// outgoing pushes with versions read from this cache and merges pull results
// and push responses back into it.
package mirror

import (
	"context"
	"time"

	"github.com/scribelab/scribe/internal/client/models"
)

type Repository interface {
	// Upsert stores the canonical entity state.
	Upsert(ctx context.Context, entity *models.CachedEntity) error

	// Get returns the cached entity or common.ErrNotFound.
	Get(ctx context.Context, entityType models.EntityType, entityID string) (*models.CachedEntity, error)

	// Version returns the cached sync version, or 0 when the entity has
	// never been confirmed by the server.
	Version(ctx context.Context, entityType models.EntityType, entityID string) (int64, error)

	// MarkDeleted writes a tombstone so a racing pull cannot resurrect the
	// entity. Idempotent.
	MarkDeleted(ctx context.Context, entityType models.EntityType, entityID string, deletedAt time.Time) error

	// Delete removes the row entirely. Idempotent.
	Delete(ctx context.Context, entityType models.EntityType, entityID string) error

	// List returns all cached rows of a type, tombstones included.
	List(ctx context.Context, entityType models.EntityType) ([]*models.CachedEntity, error)
}
