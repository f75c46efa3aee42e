package folders

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
	rows map[string]*models.Folder
	now  func() time.Time
}

func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{rows: make(map[string]*models.Folder), now: time.Now}
}

func (r *InMemoryRepository) Upsert(ctx context.Context, folder *models.Folder, expectedVersion int64) (*models.Folder, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, exists := r.rows[folder.ID]
	if exists && (current.OwnerID != folder.OwnerID || expectedVersion < current.SyncVersion) {
		return nil, common.ErrVersionConflict
	}

	stored := *folder
	stored.SyncVersion = 1
	if exists {
		stored.SyncVersion = current.SyncVersion + 1
	}
	stored.UpdatedAt = r.now().UTC()
	stored.DeletedAt = nil
	r.rows[folder.ID] = &stored

	result := stored
	return &result, nil
}

func (r *InMemoryRepository) Get(ctx context.Context, ownerID, id string) (*models.Folder, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	folder, ok := r.rows[id]
	if !ok || folder.OwnerID != ownerID {
		return nil, common.ErrNotFound
	}
	result := *folder
	return &result, nil
}

func (r *InMemoryRepository) SelectUpdatedSince(ctx context.Context, ownerID string, since time.Time) ([]*models.Folder, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var result []*models.Folder
	for _, folder := range r.rows {
		if folder.OwnerID == ownerID && folder.UpdatedAt.After(since) {
			copied := *folder
			result = append(result, &copied)
		}
	}
	return result, nil
}

func (r *InMemoryRepository) Delete(ctx context.Context, ownerID, id string) (*models.Folder, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	folder, ok := r.rows[id]
	if !ok || folder.OwnerID != ownerID || folder.DeletedAt != nil {
		return nil, common.ErrNotFound
	}
	now := r.now().UTC()
	folder.DeletedAt = &now
	folder.UpdatedAt = now
	folder.SyncVersion++

	result := *folder
	return &result, nil
}
