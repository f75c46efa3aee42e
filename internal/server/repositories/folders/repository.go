package folders

import (
	"context"
	"time"

	"github.com/scribelab/scribe/internal/server/models"
)

// Repository is the canonical folder store, with the same
// optimistic-concurrency rule as the document repository.
type Repository interface {
	Upsert(ctx context.Context, folder *models.Folder, expectedVersion int64) (*models.Folder, error)
	Get(ctx context.Context, ownerID, id string) (*models.Folder, error)
	SelectUpdatedSince(ctx context.Context, ownerID string, since time.Time) ([]*models.Folder, error)
	Delete(ctx context.Context, ownerID, id string) (*models.Folder, error)
}
