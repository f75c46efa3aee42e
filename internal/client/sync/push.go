package sync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/scribelab/scribe/internal/client/api"
	"github.com/scribelab/scribe/internal/client/models"
	"github.com/scribelab/scribe/internal/common"
)

// push drains a snapshot of the mutation queue in enqueue order. It reports
// whether another cycle should follow (an entry was superseded mid-flight)
// and the last entry-level error that should surface as sync-error state.
// Entry failures never halt the loop; remaining entries still process.
func (o *Orchestrator) push(ctx context.Context) (again bool, err error) {
	snapshot, err := o.queue.Snapshot(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to snapshot queue: %w", err)
	}

	var lastErr error
	for _, entry := range snapshot {
		followUp, entryErr := o.pushEntry(ctx, entry)
		if followUp {
			again = true
		}
		if entryErr != nil {
			lastErr = entryErr
		}
	}
	return again, lastErr
}

// pushEntry processes one queued mutation. followUp reports that the entry
// was superseded mid-flight and an immediate extra cycle should run.
func (o *Orchestrator) pushEntry(ctx context.Context, entry *models.QueueEntry) (followUp bool, err error) {
	if entry.Attempts >= o.cfg.RetryCeiling {
		o.logger.Error(ctx, "retry budget exhausted, dropping entry",
			"entity_type", entry.EntityType, "entity_id", entry.EntityID, "attempts", entry.Attempts)
		if err := o.queue.Remove(ctx, entry.EntityType, entry.EntityID); err != nil {
			return false, err
		}
		return false, fmt.Errorf("%s %s: %w", entry.EntityType, entry.EntityID, common.ErrRetryBudgetExhausted)
	}

	switch entry.Operation {
	case models.OperationDelete:
		return o.pushDelete(ctx, entry)
	default:
		return o.pushUpsert(ctx, entry)
	}
}

func (o *Orchestrator) pushUpsert(ctx context.Context, entry *models.QueueEntry) (bool, error) {
	var (
		canonical *models.CachedEntity
		err       error
	)
	switch entry.EntityType {
	case models.EntityTypeDocument:
		canonical, err = o.pushDocument(ctx, entry)
	case models.EntityTypeFolder:
		canonical, err = o.pushFolder(ctx, entry)
	default:
		err = fmt.Errorf("%w: unknown entity type %q", common.ErrValidation, entry.EntityType)
	}
	if err != nil {
		return o.handlePushFailure(ctx, entry, err)
	}

	if err := o.mirror.Upsert(ctx, canonical); err != nil {
		return false, err
	}

	// A newer edit that arrived mid-flight keeps the entry queued; the
	// follow-up cycle pushes it with the fresh mirror version.
	removed, err := o.queue.RemoveIfUnchanged(ctx, entry.EntityType, entry.EntityID, entry.EnqueuedAt)
	if err != nil {
		return false, err
	}

	o.relay.PostSyncComplete(canonical.EntityID, canonical.SyncVersion, canonical.UpdatedAt)
	return !removed, nil
}

func (o *Orchestrator) pushDocument(ctx context.Context, entry *models.QueueEntry) (*models.CachedEntity, error) {
	var doc models.Document
	if err := json.Unmarshal(entry.Payload, &doc); err != nil {
		return nil, fmt.Errorf("%w: bad document payload: %v", common.ErrValidation, err)
	}
	if err := o.stampVersion(ctx, entry, doc.UpdatedAt, &doc.SyncVersion); err != nil {
		return nil, err
	}

	canonical, err := o.api.UpsertDocument(ctx, &doc)
	if err != nil {
		return nil, err
	}

	payload, err := json.Marshal(canonical)
	if err != nil {
		return nil, err
	}
	return &models.CachedEntity{
		EntityID:    canonical.ID,
		EntityType:  models.EntityTypeDocument,
		SyncVersion: canonical.SyncVersion,
		UpdatedAt:   canonical.UpdatedAt,
		DeletedAt:   canonical.DeletedAt,
		Payload:     payload,
	}, nil
}

func (o *Orchestrator) pushFolder(ctx context.Context, entry *models.QueueEntry) (*models.CachedEntity, error) {
	var folder models.Folder
	if err := json.Unmarshal(entry.Payload, &folder); err != nil {
		return nil, fmt.Errorf("%w: bad folder payload: %v", common.ErrValidation, err)
	}
	if err := o.stampVersion(ctx, entry, folder.UpdatedAt, &folder.SyncVersion); err != nil {
		return nil, err
	}

	canonical, err := o.api.UpsertFolder(ctx, &folder)
	if err != nil {
		return nil, err
	}

	payload, err := json.Marshal(canonical)
	if err != nil {
		return nil, err
	}
	return &models.CachedEntity{
		EntityID:    canonical.ID,
		EntityType:  models.EntityTypeFolder,
		SyncVersion: canonical.SyncVersion,
		UpdatedAt:   canonical.UpdatedAt,
		DeletedAt:   canonical.DeletedAt,
		Payload:     payload,
	}, nil
}

// stampVersion aligns the payload's version with the server mirror at send
// time, not the version captured at enqueue time. Several rapid edits queued
// before the first push completes would otherwise raise false conflicts. Two
// cases never stamp forward: a payload already stamped past the mirror (a
// deliberate conflict win) keeps its stamp, and a mirror holding a server
// edit the payload was not based on fails with a version conflict carrying
// the mirrored snapshot, sending the unseen edit to the resolver instead of
// overwriting it.
func (o *Orchestrator) stampVersion(ctx context.Context, entry *models.QueueEntry, localUpdatedAt time.Time, version *int64) error {
	cached, err := o.mirror.Get(ctx, entry.EntityType, entry.EntityID)
	if errors.Is(err, common.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	if Detect(localUpdatedAt, *version, cached.Stamp()) {
		return &api.VersionConflictError{
			EntityType:      entry.EntityType,
			EntityID:        entry.EntityID,
			ServerVersion:   cached.SyncVersion,
			ServerUpdatedAt: cached.UpdatedAt,
			ServerPayload:   cached.Payload,
		}
	}

	if *version < cached.SyncVersion {
		*version = cached.SyncVersion
	}
	return nil
}

func (o *Orchestrator) pushDelete(ctx context.Context, entry *models.QueueEntry) (bool, error) {
	var err error
	switch entry.EntityType {
	case models.EntityTypeDocument:
		err = o.api.DeleteDocument(ctx, entry.EntityID)
	case models.EntityTypeFolder:
		err = o.api.DeleteFolder(ctx, entry.EntityID)
	default:
		err = fmt.Errorf("%w: unknown entity type %q", common.ErrValidation, entry.EntityType)
	}
	if err != nil {
		return o.handlePushFailure(ctx, entry, err)
	}

	// Tombstone, not removal: a pull racing this delete must not resurrect
	// the entity.
	if err := o.mirror.MarkDeleted(ctx, entry.EntityType, entry.EntityID, o.now().UTC()); err != nil {
		return false, err
	}

	removed, err := o.queue.RemoveIfUnchanged(ctx, entry.EntityType, entry.EntityID, entry.EnqueuedAt)
	if err != nil {
		return false, err
	}
	return !removed, nil
}

// payloadUpdatedAt returns the edit time recorded in the queued payload,
// falling back to the enqueue time for payloads that carry none.
func payloadUpdatedAt(entry *models.QueueEntry) time.Time {
	var stamp struct {
		UpdatedAt time.Time `json:"updated_at"`
	}
	if err := json.Unmarshal(entry.Payload, &stamp); err != nil || stamp.UpdatedAt.IsZero() {
		return entry.EnqueuedAt
	}
	return stamp.UpdatedAt
}

// handlePushFailure routes an entry failure per the error taxonomy:
// conflicts go to the resolver path, validation drops the entry, anything
// transient increments attempts and schedules a backoff retry.
func (o *Orchestrator) handlePushFailure(ctx context.Context, entry *models.QueueEntry, pushErr error) (bool, error) {
	var vc *api.VersionConflictError
	if errors.As(pushErr, &vc) {
		conflict := &models.Conflict{
			EntityID:        entry.EntityID,
			EntityType:      entry.EntityType,
			LocalPayload:    entry.Payload,
			LocalUpdatedAt:  payloadUpdatedAt(entry),
			ServerPayload:   vc.ServerPayload,
			ServerVersion:   vc.ServerVersion,
			ServerUpdatedAt: vc.ServerUpdatedAt,
			DetectedAt:      o.now().UTC(),
			Resolution:      models.ResolutionPending,
		}
		// A resolution may re-enqueue; the conflicting entry itself is done.
		if err := o.queue.Remove(ctx, entry.EntityType, entry.EntityID); err != nil {
			return false, err
		}
		o.logger.Warn(ctx, "version conflict detected",
			"entity_type", entry.EntityType, "entity_id", entry.EntityID, "server_version", vc.ServerVersion)
		o.reportConflict(conflict)
		return false, nil
	}

	if errors.Is(pushErr, common.ErrValidation) {
		o.logger.Error(ctx, "invalid entry dropped",
			"entity_type", entry.EntityType, "entity_id", entry.EntityID, "error", pushErr)
		if err := o.queue.Remove(ctx, entry.EntityType, entry.EntityID); err != nil {
			return false, err
		}
		return false, pushErr
	}

	// Transient: persist the attempt and retry after backoff. The entry
	// stays queued but does not warrant an immediate follow-up cycle; the
	// retry timer owns the reschedule.
	if err := o.queue.IncrementAttempts(ctx, entry.EntityType, entry.EntityID); err != nil {
		return false, err
	}
	delay := backoffDelay(entry.Attempts+1, o.cfg.BackoffBase, o.cfg.BackoffCap)
	o.logger.Warn(ctx, "push failed, scheduling retry",
		"entity_type", entry.EntityType, "entity_id", entry.EntityID,
		"attempt", entry.Attempts+1, "delay", delay, "error", pushErr)
	o.scheduleRetry(delay)
	return false, pushErr
}
