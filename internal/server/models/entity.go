// Package models defines the canonical server-side rows for synced entities.
package models

import "time"

// Document is the canonical server copy of a document. SyncVersion is
// assigned by the server and increases by one on every accepted write.
type Document struct {
	ID          string     `json:"id"`
	OwnerID     string     `json:"owner_id"`
	FolderID    *string    `json:"folder_id,omitempty"` // nil = root level
	Name        string     `json:"name"`
	Content     string     `json:"content"`
	SyncVersion int64      `json:"sync_version"`
	UpdatedAt   time.Time  `json:"updated_at"`
	DeletedAt   *time.Time `json:"deleted_at,omitempty"`
}

// Folder is the canonical server copy of a folder.
type Folder struct {
	ID          string     `json:"id"`
	OwnerID     string     `json:"owner_id"`
	ParentID    *string    `json:"parent_id,omitempty"` // nil = root level
	Name        string     `json:"name"`
	SyncVersion int64      `json:"sync_version"`
	UpdatedAt   time.Time  `json:"updated_at"`
	DeletedAt   *time.Time `json:"deleted_at,omitempty"`
}
