package documents

import (
	"context"
	"time"

	"github.com/scribelab/scribe/internal/server/models"
)

// Repository is the canonical document store. Upsert applies the
// optimistic-concurrency rule: a write carrying expectedVersion is accepted
// when expectedVersion >= the stored version, and the stored version then
// advances by one.
type Repository interface {
	Upsert(ctx context.Context, doc *models.Document, expectedVersion int64) (*models.Document, error)
	Get(ctx context.Context, ownerID, id string) (*models.Document, error)
	SelectUpdatedSince(ctx context.Context, ownerID string, since time.Time) ([]*models.Document, error)
	Delete(ctx context.Context, ownerID, id string) (*models.Document, error)
}
