// Package models defines client-side data models used by the Scribe sync
// engine: synced entities, queued mutations, and detected conflicts.
package models

import "time"

// EntityType discriminates the kinds of entities subject to synchronization.
type EntityType string

const (
	EntityTypeDocument EntityType = "document"
	EntityTypeFolder   EntityType = "folder"
)

// Stamp is the pair of sync metadata fields used for optimistic
// concurrency decisions.
type Stamp struct {
	// SyncVersion is the server-assigned monotonic version. Clients never
	// self-assign it except when deliberately winning a conflict.
	SyncVersion int64

	// UpdatedAt is the last local modification time in UTC.
	UpdatedAt time.Time
}

// Document is a synced markdown document.
type Document struct {
	ID          string     `json:"id"`
	OwnerID     string     `json:"owner_id"`
	FolderID    *string    `json:"folder_id,omitempty"` // nil = root level
	Name        string     `json:"name"`
	Content     string     `json:"content"`
	SyncVersion int64      `json:"sync_version"`
	UpdatedAt   time.Time  `json:"updated_at"`
	SyncedAt    *time.Time `json:"synced_at,omitempty"`
	DeletedAt   *time.Time `json:"deleted_at,omitempty"`
}

// Stamp returns the document's sync metadata.
func (d *Document) Stamp() Stamp {
	return Stamp{SyncVersion: d.SyncVersion, UpdatedAt: d.UpdatedAt}
}

// Folder is a synced folder.
type Folder struct {
	ID          string     `json:"id"`
	OwnerID     string     `json:"owner_id"`
	ParentID    *string    `json:"parent_id,omitempty"` // nil = root level
	Name        string     `json:"name"`
	SyncVersion int64      `json:"sync_version"`
	UpdatedAt   time.Time  `json:"updated_at"`
	SyncedAt    *time.Time `json:"synced_at,omitempty"`
	DeletedAt   *time.Time `json:"deleted_at,omitempty"`
}

// Stamp returns the folder's sync metadata.
func (f *Folder) Stamp() Stamp {
	return Stamp{SyncVersion: f.SyncVersion, UpdatedAt: f.UpdatedAt}
}
