package queue

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/scribelab/scribe/internal/client/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "modernc.org/sqlite"
)

func setupDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.Exec(`
CREATE TABLE mutation_queue (
  entity_type TEXT NOT NULL,
  entity_id   TEXT NOT NULL,
  operation   TEXT NOT NULL,
  payload     BLOB,
  enqueued_at INTEGER NOT NULL,
  attempts    INTEGER NOT NULL DEFAULT 0,
  PRIMARY KEY (entity_type, entity_id)
);
`)
	require.NoError(t, err)

	return db
}

func entry(id string, enqueuedAt time.Time, payload string) *models.QueueEntry {
	return &models.QueueEntry{
		EntityID:   id,
		EntityType: models.EntityTypeDocument,
		Operation:  models.OperationUpsert,
		Payload:    []byte(payload),
		EnqueuedAt: enqueuedAt,
	}
}

func TestEnqueue_SecondEditCollapsesToLatestPayload(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	ctx := context.Background()

	t0 := time.Now().UTC()
	require.NoError(t, r.Enqueue(ctx, entry("d1", t0, `{"content":"one"}`)))
	require.NoError(t, r.Enqueue(ctx, entry("d1", t0.Add(time.Second), `{"content":"two"}`)))

	snap, err := r.Snapshot(ctx)
	require.NoError(t, err)
	require.Len(t, snap, 1)
	assert.Equal(t, "d1", snap[0].EntityID)
	assert.JSONEq(t, `{"content":"two"}`, string(snap[0].Payload))
	assert.Equal(t, t0.Add(time.Second).UnixNano(), snap[0].EnqueuedAt.UnixNano())
}

func TestEnqueue_ReplacementResetsAttempts(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	ctx := context.Background()

	t0 := time.Now().UTC()
	require.NoError(t, r.Enqueue(ctx, entry("d1", t0, `{}`)))
	require.NoError(t, r.IncrementAttempts(ctx, models.EntityTypeDocument, "d1"))
	require.NoError(t, r.IncrementAttempts(ctx, models.EntityTypeDocument, "d1"))

	require.NoError(t, r.Enqueue(ctx, entry("d1", t0.Add(time.Second), `{}`)))

	snap, err := r.Snapshot(ctx)
	require.NoError(t, err)
	require.Len(t, snap, 1)
	assert.Equal(t, 0, snap[0].Attempts)
}

func TestSnapshot_OrderedByEnqueueTime(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	ctx := context.Background()

	t0 := time.Now().UTC()
	require.NoError(t, r.Enqueue(ctx, entry("d2", t0.Add(time.Second), `{}`)))
	require.NoError(t, r.Enqueue(ctx, entry("d1", t0, `{}`)))

	snap, err := r.Snapshot(ctx)
	require.NoError(t, err)
	require.Len(t, snap, 2)
	assert.Equal(t, "d1", snap[0].EntityID)
	assert.Equal(t, "d2", snap[1].EntityID)
}

func TestRemove_Idempotent(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	ctx := context.Background()

	require.NoError(t, r.Enqueue(ctx, entry("d1", time.Now().UTC(), `{}`)))
	require.NoError(t, r.Remove(ctx, models.EntityTypeDocument, "d1"))
	require.NoError(t, r.Remove(ctx, models.EntityTypeDocument, "d1"))

	n, err := r.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestRemoveIfUnchanged_KeepsEntrySupersededMidFlight(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	ctx := context.Background()

	t0 := time.Now().UTC()
	require.NoError(t, r.Enqueue(ctx, entry("d1", t0, `{"content":"first"}`)))

	// Snapshot taken here; a second edit lands while the push is in flight.
	require.NoError(t, r.Enqueue(ctx, entry("d1", t0.Add(time.Second), `{"content":"second"}`)))

	removed, err := r.RemoveIfUnchanged(ctx, models.EntityTypeDocument, "d1", t0)
	require.NoError(t, err)
	assert.False(t, removed)

	snap, err := r.Snapshot(ctx)
	require.NoError(t, err)
	require.Len(t, snap, 1)
	assert.JSONEq(t, `{"content":"second"}`, string(snap[0].Payload))
}

func TestRemoveIfUnchanged_RemovesUntouchedEntry(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	ctx := context.Background()

	t0 := time.Now().UTC()
	require.NoError(t, r.Enqueue(ctx, entry("d1", t0, `{}`)))

	removed, err := r.RemoveIfUnchanged(ctx, models.EntityTypeDocument, "d1", t0)
	require.NoError(t, err)
	assert.True(t, removed)

	n, err := r.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestQueue_SeparateEntriesPerEntityType(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	ctx := context.Background()

	t0 := time.Now().UTC()
	require.NoError(t, r.Enqueue(ctx, entry("x1", t0, `{}`)))
	require.NoError(t, r.Enqueue(ctx, &models.QueueEntry{
		EntityID:   "x1",
		EntityType: models.EntityTypeFolder,
		Operation:  models.OperationDelete,
		EnqueuedAt: t0,
	}))

	n, err := r.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}
