// Package api defines the remote sync API collaborator and its HTTP
// implementation. The server is the canonical store; every write is an
// optimistic-concurrency upsert that either returns the canonical entity or
// fails with a version conflict carrying the current server state.
package api

import (
	"context"
	"time"

	"github.com/scribelab/scribe/internal/client/models"
)

// DocumentsPage is a delta-fetch result for documents.
type DocumentsPage struct {
	Documents []models.Document `json:"documents"`
	SyncedAt  time.Time         `json:"synced_at"`
}

// FoldersPage is a delta-fetch result for folders.
type FoldersPage struct {
	Folders  []models.Folder `json:"folders"`
	SyncedAt time.Time       `json:"synced_at"`
}

// Client is the remote sync API. since == nil requests the full set.
//
// Upserts return the canonical entity with the server-assigned version, or a
// *VersionConflictError carrying the full current server entity so the
// resolver needs no second round trip.
type Client interface {
	FetchDocuments(ctx context.Context, since *time.Time) (*DocumentsPage, error)
	FetchFolders(ctx context.Context, since *time.Time) (*FoldersPage, error)
	UpsertDocument(ctx context.Context, doc *models.Document) (*models.Document, error)
	UpsertFolder(ctx context.Context, folder *models.Folder) (*models.Folder, error)
	DeleteDocument(ctx context.Context, id string) error
	DeleteFolder(ctx context.Context, id string) error
	Ping(ctx context.Context) error
}
