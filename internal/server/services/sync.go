// Package services implements the sync business rules on top of the
// repositories: write validation, optimistic-concurrency acceptance and the
// conflict payload returned to stale writers.
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/scribelab/scribe/internal/common"
	"github.com/scribelab/scribe/internal/logging"
	"github.com/scribelab/scribe/internal/server/models"
	"github.com/scribelab/scribe/internal/server/repositories/documents"
	"github.com/scribelab/scribe/internal/server/repositories/folders"
)

// ConflictError is returned on a stale write. It carries the current
// canonical entity so the client resolver needs no second round trip.
type ConflictError struct {
	Entity      any
	SyncVersion int64
	UpdatedAt   time.Time
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("version conflict, server at v%d", e.SyncVersion)
}

func (e *ConflictError) Unwrap() error {
	return common.ErrVersionConflict
}

// SyncService owns the canonical document and folder stores.
type SyncService struct {
	documents documents.Repository
	folders   folders.Repository
	logger    logging.Logger
}

func NewSyncService(d documents.Repository, f folders.Repository, logger logging.Logger) *SyncService {
	return &SyncService{
		documents: d,
		folders:   f,
		logger:    logger.With("module", "sync-service"),
	}
}

// UpsertDocument applies a client write. The expected version is the one the
// client last saw (doc.SyncVersion); the stored version advances by one on
// acceptance.
func (s *SyncService) UpsertDocument(ctx context.Context, ownerID string, doc *models.Document) (*models.Document, error) {
	if doc.ID == "" || doc.Name == "" {
		return nil, fmt.Errorf("%w: document id and name are required", common.ErrValidation)
	}
	doc.OwnerID = ownerID

	stored, err := s.documents.Upsert(ctx, doc, doc.SyncVersion)
	if err != nil {
		if errors.Is(err, common.ErrVersionConflict) {
			return nil, s.documentConflict(ctx, ownerID, doc.ID)
		}
		return nil, err
	}
	return stored, nil
}

// ListDocuments returns the owner's documents changed after since, tombstones
// included. A nil since selects everything.
func (s *SyncService) ListDocuments(ctx context.Context, ownerID string, since *time.Time) ([]*models.Document, error) {
	var from time.Time
	if since != nil {
		from = *since
	}
	return s.documents.SelectUpdatedSince(ctx, ownerID, from)
}

// DeleteDocument tombstones the document. ErrNotFound passes through for the
// transport to map.
func (s *SyncService) DeleteDocument(ctx context.Context, ownerID, id string) (*models.Document, error) {
	return s.documents.Delete(ctx, ownerID, id)
}

func (s *SyncService) UpsertFolder(ctx context.Context, ownerID string, folder *models.Folder) (*models.Folder, error) {
	if folder.ID == "" || folder.Name == "" {
		return nil, fmt.Errorf("%w: folder id and name are required", common.ErrValidation)
	}
	folder.OwnerID = ownerID

	stored, err := s.folders.Upsert(ctx, folder, folder.SyncVersion)
	if err != nil {
		if errors.Is(err, common.ErrVersionConflict) {
			return nil, s.folderConflict(ctx, ownerID, folder.ID)
		}
		return nil, err
	}
	return stored, nil
}

func (s *SyncService) ListFolders(ctx context.Context, ownerID string, since *time.Time) ([]*models.Folder, error) {
	var from time.Time
	if since != nil {
		from = *since
	}
	return s.folders.SelectUpdatedSince(ctx, ownerID, from)
}

func (s *SyncService) DeleteFolder(ctx context.Context, ownerID, id string) (*models.Folder, error) {
	return s.folders.Delete(ctx, ownerID, id)
}

func (s *SyncService) documentConflict(ctx context.Context, ownerID, id string) error {
	current, err := s.documents.Get(ctx, ownerID, id)
	if err != nil {
		// The row exists under another owner; expose nothing about it.
		return common.ErrVersionConflict
	}
	s.logger.Info(ctx, "rejected stale document write",
		"document_id", id, "server_version", current.SyncVersion)
	return &ConflictError{Entity: current, SyncVersion: current.SyncVersion, UpdatedAt: current.UpdatedAt}
}

func (s *SyncService) folderConflict(ctx context.Context, ownerID, id string) error {
	current, err := s.folders.Get(ctx, ownerID, id)
	if err != nil {
		return common.ErrVersionConflict
	}
	s.logger.Info(ctx, "rejected stale folder write",
		"folder_id", id, "server_version", current.SyncVersion)
	return &ConflictError{Entity: current, SyncVersion: current.SyncVersion, UpdatedAt: current.UpdatedAt}
}
