package sync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/scribelab/scribe/internal/client/models"
	"github.com/scribelab/scribe/internal/common"
)

const (
	checkpointDocuments = "checkpoint:document"
	checkpointFolders   = "checkpoint:folder"
)

// pull fetches entities changed since the last checkpoint and merges them
// into the server mirror. The checkpoint only advances after the whole page
// merged successfully.
func (o *Orchestrator) pull(ctx context.Context) error {
	if err := o.pullDocuments(ctx); err != nil {
		return err
	}
	return o.pullFolders(ctx)
}

func (o *Orchestrator) pullDocuments(ctx context.Context) error {
	since, err := o.checkpoint(ctx, checkpointDocuments)
	if err != nil {
		return err
	}

	page, err := o.api.FetchDocuments(ctx, since)
	if err != nil {
		return fmt.Errorf("failed to fetch documents: %w", err)
	}

	for i := range page.Documents {
		doc := &page.Documents[i]
		payload, err := json.Marshal(doc)
		if err != nil {
			return fmt.Errorf("failed to encode pulled document: %w", err)
		}
		entity := &models.CachedEntity{
			EntityID:    doc.ID,
			EntityType:  models.EntityTypeDocument,
			SyncVersion: doc.SyncVersion,
			UpdatedAt:   doc.UpdatedAt,
			DeletedAt:   doc.DeletedAt,
			Payload:     payload,
		}
		if err := o.mergePulled(ctx, entity); err != nil {
			return err
		}
	}

	return o.advanceCheckpoint(ctx, checkpointDocuments, page.SyncedAt)
}

func (o *Orchestrator) pullFolders(ctx context.Context) error {
	since, err := o.checkpoint(ctx, checkpointFolders)
	if err != nil {
		return err
	}

	page, err := o.api.FetchFolders(ctx, since)
	if err != nil {
		return fmt.Errorf("failed to fetch folders: %w", err)
	}

	for i := range page.Folders {
		folder := &page.Folders[i]
		payload, err := json.Marshal(folder)
		if err != nil {
			return fmt.Errorf("failed to encode pulled folder: %w", err)
		}
		entity := &models.CachedEntity{
			EntityID:    folder.ID,
			EntityType:  models.EntityTypeFolder,
			SyncVersion: folder.SyncVersion,
			UpdatedAt:   folder.UpdatedAt,
			DeletedAt:   folder.DeletedAt,
			Payload:     payload,
		}
		if err := o.mergePulled(ctx, entity); err != nil {
			return err
		}
	}

	return o.advanceCheckpoint(ctx, checkpointFolders, page.SyncedAt)
}

// mergePulled merges one pulled entity into the mirror. A local tombstone
// suppresses resurrection: when a delete raced the pulled edit the later
// writer wins, with deletes winning ties.
func (o *Orchestrator) mergePulled(ctx context.Context, entity *models.CachedEntity) error {
	existing, err := o.mirror.Get(ctx, entity.EntityType, entity.EntityID)
	if err != nil && !errors.Is(err, common.ErrNotFound) {
		return err
	}

	if existing != nil && existing.DeletedAt != nil && entity.DeletedAt == nil {
		if !entity.UpdatedAt.After(*existing.DeletedAt) {
			return nil
		}
	}

	if err := o.mirror.Upsert(ctx, entity); err != nil {
		return fmt.Errorf("failed to merge pulled entity: %w", err)
	}
	return nil
}

func (o *Orchestrator) checkpoint(ctx context.Context, key string) (*time.Time, error) {
	raw, err := o.meta.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, nil
	}
	ts, err := time.Parse(time.RFC3339Nano, string(raw))
	if err != nil {
		return nil, fmt.Errorf("corrupt checkpoint %s: %w", key, err)
	}
	return &ts, nil
}

func (o *Orchestrator) advanceCheckpoint(ctx context.Context, key string, syncedAt time.Time) error {
	if err := o.meta.Set(ctx, key, []byte(syncedAt.UTC().Format(time.RFC3339Nano))); err != nil {
		return fmt.Errorf("failed to advance checkpoint %s: %w", key, err)
	}
	return nil
}
