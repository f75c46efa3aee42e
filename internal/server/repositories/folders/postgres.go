// Package folders provides the PostgreSQL-backed repository for canonical
// folder storage and sync queries.
package folders

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

// PostgresRepository implements folder storage over a dbx.DBTX (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Upsert(ctx context.Context, folder *models.Folder, expectedVersion int64) (*models.Folder, error) {
	query := `
		INSERT INTO folders (id, owner_id, parent_id, name, sync_version, updated_at, deleted_at)
		VALUES ($1, $2, $3, $4, 1, now(), NULL)
		ON CONFLICT (id)
		DO UPDATE SET
			parent_id = EXCLUDED.parent_id,
			name = EXCLUDED.name,
			sync_version = folders.sync_version + 1,
			updated_at = now(),
			deleted_at = NULL
			WHERE folders.owner_id = EXCLUDED.owner_id AND $5 >= folders.sync_version
		RETURNING id, owner_id, parent_id, name, sync_version, updated_at, deleted_at;
	`
	row := r.db.QueryRowContext(ctx, query,
		folder.ID, folder.OwnerID, folder.ParentID, folder.Name, expectedVersion)

	stored, err := scanFolder(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrVersionConflict
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return stored, nil
}

func (r *PostgresRepository) Get(ctx context.Context, ownerID, id string) (*models.Folder, error) {
	query := `
		SELECT id, owner_id, parent_id, name, sync_version, updated_at, deleted_at
		FROM folders WHERE id=$1 AND owner_id=$2
	`
	folder, err := scanFolder(r.db.QueryRowContext(ctx, query, id, ownerID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return folder, nil
}

func (r *PostgresRepository) SelectUpdatedSince(ctx context.Context, ownerID string, since time.Time) ([]*models.Folder, error) {
	query := `
		SELECT id, owner_id, parent_id, name, sync_version, updated_at, deleted_at
		FROM folders WHERE owner_id=$1 AND updated_at > $2
	`
	rows, err := r.db.QueryContext(ctx, query, ownerID, since)
	if err != nil {
		return nil, fmt.Errorf("failed to select folders: %w", err)
	}
	defer rows.Close()

	var result []*models.Folder
	for rows.Next() {
		var item models.Folder
		if err := rows.Scan(
			&item.ID, &item.OwnerID, &item.ParentID, &item.Name,
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

func (r *PostgresRepository) Delete(ctx context.Context, ownerID, id string) (*models.Folder, error) {
	query := `
		UPDATE folders
		SET deleted_at = now(), updated_at = now(), sync_version = sync_version + 1
		WHERE id=$1 AND owner_id=$2 AND deleted_at IS NULL
		RETURNING id, owner_id, parent_id, name, sync_version, updated_at, deleted_at;
	`
	folder, err := scanFolder(r.db.QueryRowContext(ctx, query, id, ownerID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return folder, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanFolder(row rowScanner) (*models.Folder, error) {
	var folder models.Folder
	err := row.Scan(
		&folder.ID, &folder.OwnerID, &folder.ParentID, &folder.Name,
		&folder.SyncVersion, &folder.UpdatedAt, &folder.DeletedAt,
	)
	if err != nil {
		return nil, err
	}
	return &folder, nil
}
