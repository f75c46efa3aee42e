package documents

import (
	"context"
	"sync"
	"time"

	"github.com/scribelab/scribe/internal/common"
	"github.com/scribelab/scribe/internal/server/models"
)

// InMemoryRepository applies the same acceptance rule as the Postgres
// implementation. Used in tests and local development.
type InMemoryRepository struct {
	mu   sync.Mutex
	rows map[string]*models.Document
	now  func() time.Time
}

func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{rows: make(map[string]*models.Document), now: time.Now}
}

func (r *InMemoryRepository) Upsert(ctx context.Context, doc *models.Document, expectedVersion int64) (*models.Document, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, exists := r.rows[doc.ID]
	if exists && (current.OwnerID != doc.OwnerID || expectedVersion < current.SyncVersion) {
		return nil, common.ErrVersionConflict
	}

	stored := *doc
	stored.SyncVersion = 1
	if exists {
		stored.SyncVersion = current.SyncVersion + 1
	}
	stored.UpdatedAt = r.now().UTC()
	stored.DeletedAt = nil
	r.rows[doc.ID] = &stored

	result := stored
	return &result, nil
}

func (r *InMemoryRepository) Get(ctx context.Context, ownerID, id string) (*models.Document, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	doc, ok := r.rows[id]
	if !ok || doc.OwnerID != ownerID {
		return nil, common.ErrNotFound
	}
	result := *doc
	return &result, nil
}

func (r *InMemoryRepository) SelectUpdatedSince(ctx context.Context, ownerID string, since time.Time) ([]*models.Document, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var result []*models.Document
	for _, doc := range r.rows {
		if doc.OwnerID == ownerID && doc.UpdatedAt.After(since) {
			copied := *doc
			result = append(result, &copied)
		}
	}
	return result, nil
}

func (r *InMemoryRepository) Delete(ctx context.Context, ownerID, id string) (*models.Document, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	doc, ok := r.rows[id]
	if !ok || doc.OwnerID != ownerID || doc.DeletedAt != nil {
		return nil, common.ErrNotFound
	}
	now := r.now().UTC()
	doc.DeletedAt = &now
	doc.UpdatedAt = now
	doc.SyncVersion++

	result := *doc
	return &result, nil
}
