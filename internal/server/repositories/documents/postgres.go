// Package documents provides the PostgreSQL-backed repository for canonical
// document storage and sync queries.
package documents

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/scribelab/scribe/internal/common"
	"github.com/scribelab/scribe/internal/dbx"
	"github.com/scribelab/scribe/internal/server/models"
)

// PostgresRepository implements document storage over a dbx.DBTX (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Upsert inserts a new document at version 1 or, when the caller's expected
// version is not behind the stored one, updates it and advances the version
// by one. A stale expected version, or a row owned by another user, updates
// nothing and returns ErrVersionConflict.
func (r *PostgresRepository) Upsert(ctx context.Context, doc *models.Document, expectedVersion int64) (*models.Document, error) {
	query := `
		INSERT INTO documents (id, owner_id, folder_id, name, content, sync_version, updated_at, deleted_at)
		VALUES ($1, $2, $3, $4, $5, 1, now(), NULL)
		ON CONFLICT (id)
		DO UPDATE SET
			folder_id = EXCLUDED.folder_id,
			name = EXCLUDED.name,
			content = EXCLUDED.content,
			sync_version = documents.sync_version + 1,
			updated_at = now(),
			deleted_at = NULL
			WHERE documents.owner_id = EXCLUDED.owner_id AND $6 >= documents.sync_version
		RETURNING id, owner_id, folder_id, name, content, sync_version, updated_at, deleted_at;
	`
	row := r.db.QueryRowContext(ctx, query,
		doc.ID, doc.OwnerID, doc.FolderID, doc.Name, doc.Content, expectedVersion)

	stored, err := scanDocument(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrVersionConflict
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return stored, nil
}

// Get returns the document by id for the given owner.
func (r *PostgresRepository) Get(ctx context.Context, ownerID, id string) (*models.Document, error) {
	query := `
		SELECT id, owner_id, folder_id, name, content, sync_version, updated_at, deleted_at
		FROM documents WHERE id=$1 AND owner_id=$2
	`
	doc, err := scanDocument(r.db.QueryRowContext(ctx, query, id, ownerID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return doc, nil
}

// SelectUpdatedSince returns all of the owner's documents changed strictly
// after since, tombstones included. The zero time selects everything.
func (r *PostgresRepository) SelectUpdatedSince(ctx context.Context, ownerID string, since time.Time) ([]*models.Document, error) {
	query := `
		SELECT id, owner_id, folder_id, name, content, sync_version, updated_at, deleted_at
		FROM documents WHERE owner_id=$1 AND updated_at > $2
	`
	rows, err := r.db.QueryContext(ctx, query, ownerID, since)
	if err != nil {
		return nil, fmt.Errorf("failed to select documents: %w", err)
	}
	defer rows.Close()

	var result []*models.Document
	for rows.Next() {
		var item models.Document
		if err := rows.Scan(
			&item.ID, &item.OwnerID, &item.FolderID, &item.Name, &item.Content,
			&item.SyncVersion, &item.UpdatedAt, &item.DeletedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, &item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// Delete tombstones the document: deleted_at is set and the version advances
// so the tombstone reaches other devices through delta pulls. Deleting a
// missing or already-deleted document returns ErrNotFound.
func (r *PostgresRepository) Delete(ctx context.Context, ownerID, id string) (*models.Document, error) {
	query := `
		UPDATE documents
		SET deleted_at = now(), updated_at = now(), sync_version = sync_version + 1
		WHERE id=$1 AND owner_id=$2 AND deleted_at IS NULL
		RETURNING id, owner_id, folder_id, name, content, sync_version, updated_at, deleted_at;
	`
	doc, err := scanDocument(r.db.QueryRowContext(ctx, query, id, ownerID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return doc, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (*models.Document, error) {
	var doc models.Document
	err := row.Scan(
		&doc.ID, &doc.OwnerID, &doc.FolderID, &doc.Name, &doc.Content,
		&doc.SyncVersion, &doc.UpdatedAt, &doc.DeletedAt,
	)
	if err != nil {
		return nil, err
	}
	return &doc, nil
}
