package services

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/scribelab/scribe/internal/common"
	"github.com/scribelab/scribe/internal/logging"
	"github.com/scribelab/scribe/internal/server/models"
	"github.com/scribelab/scribe/internal/server/repositories/documents"
	"github.com/scribelab/scribe/internal/server/repositories/folders"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService() *SyncService {
	logger := logging.NewSlogLogger(slog.New(slog.DiscardHandler))
	return NewSyncService(documents.NewInMemoryRepository(), folders.NewInMemoryRepository(), logger)
}

func TestUpsertDocument_AssignsMonotonicVersions(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	first, err := svc.UpsertDocument(ctx, "u1", &models.Document{ID: "d1", Name: "notes", Content: "a"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), first.SyncVersion)

	second, err := svc.UpsertDocument(ctx, "u1", &models.Document{ID: "d1", Name: "notes", Content: "b", SyncVersion: first.SyncVersion})
	require.NoError(t, err)
	assert.Equal(t, int64(2), second.SyncVersion)
}

func TestUpsertDocument_StaleWriteCarriesCurrentEntity(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	_, err := svc.UpsertDocument(ctx, "u1", &models.Document{ID: "d1", Name: "notes", Content: "v1"})
	require.NoError(t, err)
	latest, err := svc.UpsertDocument(ctx, "u1", &models.Document{ID: "d1", Name: "notes", Content: "v2", SyncVersion: 1})
	require.NoError(t, err)

	// A write still expecting version 1 is stale now.
	_, err = svc.UpsertDocument(ctx, "u1", &models.Document{ID: "d1", Name: "notes", Content: "stale", SyncVersion: 1})
	require.Error(t, err)
	require.ErrorIs(t, err, common.ErrVersionConflict)

	var conflict *ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, latest.SyncVersion, conflict.SyncVersion)
	current, ok := conflict.Entity.(*models.Document)
	require.True(t, ok)
	assert.Equal(t, "v2", current.Content)
}

func TestUpsertDocument_DeliberateWinningStampAccepted(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	_, err := svc.UpsertDocument(ctx, "u1", &models.Document{ID: "d1", Name: "notes", Content: "v1"})
	require.NoError(t, err)
	_, err = svc.UpsertDocument(ctx, "u1", &models.Document{ID: "d1", Name: "notes", Content: "v2", SyncVersion: 1})
	require.NoError(t, err)

	// A resolver that chose the local side stamps past the server version.
	won, err := svc.UpsertDocument(ctx, "u1", &models.Document{ID: "d1", Name: "notes", Content: "mine", SyncVersion: 3})
	require.NoError(t, err)
	assert.Equal(t, int64(3), won.SyncVersion)
	assert.Equal(t, "mine", won.Content)
}

func TestUpsertDocument_RejectsMissingFields(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	_, err := svc.UpsertDocument(ctx, "u1", &models.Document{ID: "", Name: "notes"})
	assert.ErrorIs(t, err, common.ErrValidation)

	_, err = svc.UpsertDocument(ctx, "u1", &models.Document{ID: "d1", Name: ""})
	assert.ErrorIs(t, err, common.ErrValidation)
}

func TestUpsertDocument_ForeignOwnerLooksLikeBareConflict(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	_, err := svc.UpsertDocument(ctx, "u1", &models.Document{ID: "d1", Name: "notes"})
	require.NoError(t, err)

	_, err = svc.UpsertDocument(ctx, "u2", &models.Document{ID: "d1", Name: "hijack", SyncVersion: 99})
	require.ErrorIs(t, err, common.ErrVersionConflict)

	var conflict *ConflictError
	assert.False(t, errors.As(err, &conflict), "foreign rows must not leak through the conflict payload")
}

func TestDeleteDocument_TombstonesAndListsIt(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	_, err := svc.UpsertDocument(ctx, "u1", &models.Document{ID: "d1", Name: "notes"})
	require.NoError(t, err)

	gone, err := svc.DeleteDocument(ctx, "u1", "d1")
	require.NoError(t, err)
	require.NotNil(t, gone.DeletedAt)
	assert.Equal(t, int64(2), gone.SyncVersion)

	listed, err := svc.ListDocuments(ctx, "u1", nil)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.NotNil(t, listed[0].DeletedAt, "tombstones must reach delta pulls")
}

func TestDeleteDocument_MissingReturnsNotFound(t *testing.T) {
	svc := newTestService()

	_, err := svc.DeleteDocument(context.Background(), "u1", "missing")
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestUpsertFolder_ConflictCarriesCurrentFolder(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	_, err := svc.UpsertFolder(ctx, "u1", &models.Folder{ID: "f1", Name: "projects"})
	require.NoError(t, err)
	_, err = svc.UpsertFolder(ctx, "u1", &models.Folder{ID: "f1", Name: "projects renamed", SyncVersion: 1})
	require.NoError(t, err)

	_, err = svc.UpsertFolder(ctx, "u1", &models.Folder{ID: "f1", Name: "stale", SyncVersion: 1})
	var conflict *ConflictError
	require.ErrorAs(t, err, &conflict)
	current, ok := conflict.Entity.(*models.Folder)
	require.True(t, ok)
	assert.Equal(t, "projects renamed", current.Name)
}
