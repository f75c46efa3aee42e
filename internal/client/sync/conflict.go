package sync

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/scribelab/scribe/internal/client/models"
	"github.com/scribelab/scribe/internal/client/repositories/mirror"
	"github.com/scribelab/scribe/internal/client/repositories/queue"
)

// CompareResult orders two entity snapshots.
type CompareResult int

const (
	// First means a is newer.
	First CompareResult = iota
	// Second means b is newer.
	Second
	// Equal means the snapshots are equivalent for sync purposes.
	Equal
)

// Detect reports a genuine lost-update risk: the client holds edits the
// server doesn't have (local modified after the server snapshot) and the
// server has already moved past the version the client last saw. A merely
// stale read (same version gap but no newer local edit) is not a conflict.
func Detect(localUpdatedAt time.Time, lastKnownVersion int64, server models.Stamp) bool {
	return server.SyncVersion > lastKnownVersion && localUpdatedAt.After(server.UpdatedAt)
}

// Compare orders two stamps. Version takes precedence; ties are broken by
// the modification time.
func Compare(a, b models.Stamp) CompareResult {
	switch {
	case a.SyncVersion > b.SyncVersion:
		return First
	case a.SyncVersion < b.SyncVersion:
		return Second
	case a.UpdatedAt.After(b.UpdatedAt):
		return First
	case a.UpdatedAt.Before(b.UpdatedAt):
		return Second
	default:
		return Equal
	}
}

// Resolver applies the three user-mediated resolution strategies to a
// detected conflict. Every strategy first adopts the server snapshot into
// the mirror so subsequent pushes stamp against reality.
type Resolver struct {
	queue  queue.Repository
	mirror mirror.Repository
	now    func() time.Time
}

func NewResolver(q queue.Repository, m mirror.Repository, now func() time.Time) *Resolver {
	if now == nil {
		now = time.Now
	}
	return &Resolver{queue: q, mirror: m, now: now}
}

// ResolveLocal re-enqueues the local content stamped with serverVersion+1 so
// it wins the next push. The deliberate stamp is the one case where a client
// self-assigns a version.
func (r *Resolver) ResolveLocal(ctx context.Context, c *models.Conflict) error {
	if err := r.adoptServer(ctx, c); err != nil {
		return err
	}

	payload, err := restampPayload(c.EntityType, c.LocalPayload, c.ServerVersion+1)
	if err != nil {
		return err
	}

	err = r.queue.Enqueue(ctx, &models.QueueEntry{
		EntityID:   c.EntityID,
		EntityType: c.EntityType,
		Operation:  models.OperationUpsert,
		Payload:    payload,
		EnqueuedAt: r.now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("failed to requeue local content: %w", err)
	}

	c.Resolution = models.ResolvedLocal
	return nil
}

// ResolveServer discards the local edits and adopts the server snapshot as
// canonical. Nothing is requeued.
func (r *Resolver) ResolveServer(ctx context.Context, c *models.Conflict) error {
	if err := r.adoptServer(ctx, c); err != nil {
		return err
	}
	c.Resolution = models.ResolvedServer
	return nil
}

// ResolveBoth keeps the server snapshot canonical under the original id and
// clones the local content into a new entity with a disambiguated name, so
// nothing is silently lost. Returns the clone's id.
func (r *Resolver) ResolveBoth(ctx context.Context, c *models.Conflict) (string, error) {
	if err := r.adoptServer(ctx, c); err != nil {
		return "", err
	}

	cloneID := uuid.NewString()
	payload, err := clonePayload(c.EntityType, c.LocalPayload, cloneID, r.now().UTC())
	if err != nil {
		return "", err
	}

	err = r.queue.Enqueue(ctx, &models.QueueEntry{
		EntityID:   cloneID,
		EntityType: c.EntityType,
		Operation:  models.OperationUpsert,
		Payload:    payload,
		EnqueuedAt: r.now().UTC(),
	})
	if err != nil {
		return "", fmt.Errorf("failed to enqueue conflict clone: %w", err)
	}

	c.Resolution = models.ResolvedBoth
	return cloneID, nil
}

func (r *Resolver) adoptServer(ctx context.Context, c *models.Conflict) error {
	err := r.mirror.Upsert(ctx, &models.CachedEntity{
		EntityID:    c.EntityID,
		EntityType:  c.EntityType,
		SyncVersion: c.ServerVersion,
		UpdatedAt:   c.ServerUpdatedAt,
		Payload:     c.ServerPayload,
	})
	if err != nil {
		return fmt.Errorf("failed to adopt server snapshot: %w", err)
	}
	return nil
}

// restampPayload rewrites the sync version of a JSON entity payload.
func restampPayload(entityType models.EntityType, payload json.RawMessage, version int64) (json.RawMessage, error) {
	switch entityType {
	case models.EntityTypeDocument:
		var doc models.Document
		if err := json.Unmarshal(payload, &doc); err != nil {
			return nil, fmt.Errorf("failed to decode document payload: %w", err)
		}
		doc.SyncVersion = version
		return json.Marshal(doc)
	case models.EntityTypeFolder:
		var folder models.Folder
		if err := json.Unmarshal(payload, &folder); err != nil {
			return nil, fmt.Errorf("failed to decode folder payload: %w", err)
		}
		folder.SyncVersion = version
		return json.Marshal(folder)
	default:
		return nil, fmt.Errorf("unknown entity type %q", entityType)
	}
}

// clonePayload copies a local payload into a fresh unsynced entity with a
// disambiguated name.
func clonePayload(entityType models.EntityType, payload json.RawMessage, cloneID string, now time.Time) (json.RawMessage, error) {
	switch entityType {
	case models.EntityTypeDocument:
		var doc models.Document
		if err := json.Unmarshal(payload, &doc); err != nil {
			return nil, fmt.Errorf("failed to decode document payload: %w", err)
		}
		doc.ID = cloneID
		doc.Name = conflictCopyName(doc.Name)
		doc.SyncVersion = 0
		doc.SyncedAt = nil
		doc.UpdatedAt = now
		return json.Marshal(doc)
	case models.EntityTypeFolder:
		var folder models.Folder
		if err := json.Unmarshal(payload, &folder); err != nil {
			return nil, fmt.Errorf("failed to decode folder payload: %w", err)
		}
		folder.ID = cloneID
		folder.Name = conflictCopyName(folder.Name)
		folder.SyncVersion = 0
		folder.SyncedAt = nil
		folder.UpdatedAt = now
		return json.Marshal(folder)
	default:
		return nil, fmt.Errorf("unknown entity type %q", entityType)
	}
}

func conflictCopyName(name string) string {
	return name + " (conflicted copy)"
}
