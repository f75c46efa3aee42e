package mirror

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/scribelab/scribe/internal/client/models"
	"github.com/scribelab/scribe/internal/common"
	"github.com/scribelab/scribe/internal/dbx"
)

// SQLiteRepository implements Repository using a DBTX (either *sql.DB or *sql.Tx).
type SQLiteRepository struct {
	db dbx.DBTX
}

// NewSQLiteRepository returns a new SQLiteRepository bound to the given DBTX.
func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) Upsert(ctx context.Context, entity *models.CachedEntity) error {
	var deletedAt sql.NullInt64
	if entity.DeletedAt != nil {
		deletedAt = sql.NullInt64{Int64: entity.DeletedAt.UnixNano(), Valid: true}
	}
	query := ` INSERT INTO server_mirror (entity_type, entity_id, sync_version, updated_at, deleted_at, payload)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT(entity_type, entity_id) DO UPDATE SET sync_version = excluded.sync_version,
				updated_at = excluded.updated_at,
				deleted_at = excluded.deleted_at,
				payload = excluded.payload
	`
	_, err := r.db.ExecContext(ctx, query,
		string(entity.EntityType), entity.EntityID, entity.SyncVersion,
		entity.UpdatedAt.UnixNano(), deletedAt, []byte(entity.Payload))
	if err != nil {
		return fmt.Errorf("failed to upsert mirror entity: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) Get(ctx context.Context, entityType models.EntityType, entityID string) (*models.CachedEntity, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT entity_type, entity_id, sync_version, updated_at, deleted_at, payload
			FROM server_mirror WHERE entity_type = ? AND entity_id = ?`,
		string(entityType), entityID)
	entity, err := scanEntity(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get mirror entity: %w", err)
	}
	return entity, nil
}

func (r *SQLiteRepository) Version(ctx context.Context, entityType models.EntityType, entityID string) (int64, error) {
	var version int64
	err := r.db.QueryRowContext(ctx,
		`SELECT sync_version FROM server_mirror WHERE entity_type = ? AND entity_id = ?`,
		string(entityType), entityID).Scan(&version)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get mirror version: %w", err)
	}
	return version, nil
}

func (r *SQLiteRepository) MarkDeleted(ctx context.Context, entityType models.EntityType, entityID string, deletedAt time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE server_mirror SET deleted_at = ? WHERE entity_type = ? AND entity_id = ?`,
		deletedAt.UnixNano(), string(entityType), entityID)
	if err != nil {
		return fmt.Errorf("failed to mark mirror entity deleted: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) Delete(ctx context.Context, entityType models.EntityType, entityID string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM server_mirror WHERE entity_type = ? AND entity_id = ?`,
		string(entityType), entityID)
	if err != nil {
		return fmt.Errorf("failed to delete mirror entity: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) List(ctx context.Context, entityType models.EntityType) ([]*models.CachedEntity, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT entity_type, entity_id, sync_version, updated_at, deleted_at, payload
			FROM server_mirror WHERE entity_type = ? ORDER BY entity_id`,
		string(entityType))
	if err != nil {
		return nil, fmt.Errorf("failed to list mirror entities: %w", err)
	}
	defer rows.Close()

	var result []*models.CachedEntity
	for rows.Next() {
		entity, err := scanEntity(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan mirror row: %w", err)
		}
		result = append(result, entity)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate mirror rows: %w", err)
	}
	return result, nil
}

func scanEntity(scan func(dest ...any) error) (*models.CachedEntity, error) {
	var (
		item       models.CachedEntity
		entityType string
		updatedAt  int64
		deletedAt  sql.NullInt64
	)
	if err := scan(&entityType, &item.EntityID, &item.SyncVersion, &updatedAt, &deletedAt, &item.Payload); err != nil {
		return nil, err
	}
	item.EntityType = models.EntityType(entityType)
	item.UpdatedAt = time.Unix(0, updatedAt).UTC()
	if deletedAt.Valid {
		ts := time.Unix(0, deletedAt.Int64).UTC()
		item.DeletedAt = &ts
	}
	return &item, nil
}
