package sync

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/scribelab/scribe/internal/client/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetect_TruthTable(t *testing.T) {
	t0 := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name           string
		localUpdatedAt time.Time
		lastKnown      int64
		server         models.Stamp
		want           bool
	}{
		{
			name:           "server moved ahead and local edited after server",
			localUpdatedAt: t0.Add(2 * time.Second),
			lastKnown:      1,
			server:         models.Stamp{SyncVersion: 2, UpdatedAt: t0.Add(time.Second)},
			want:           true,
		},
		{
			name:           "same version gap but local not newer is a stale read",
			localUpdatedAt: t0.Add(time.Second),
			lastKnown:      1,
			server:         models.Stamp{SyncVersion: 2, UpdatedAt: t0.Add(time.Second)},
			want:           false,
		},
		{
			name:           "server has not moved",
			localUpdatedAt: t0.Add(time.Hour),
			lastKnown:      2,
			server:         models.Stamp{SyncVersion: 2, UpdatedAt: t0},
			want:           false,
		},
		{
			name:           "offline device B edited after device A synced",
			localUpdatedAt: t0.Add(3 * time.Second), // T3
			lastKnown:      1,
			server:         models.Stamp{SyncVersion: 2, UpdatedAt: t0.Add(2 * time.Second)}, // v2 at T2
			want:           true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := Detect(tc.localUpdatedAt, tc.lastKnown, tc.server)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestCompare_VersionTakesPrecedence(t *testing.T) {
	t0 := time.Now().UTC()

	assert.Equal(t, First, Compare(
		models.Stamp{SyncVersion: 3, UpdatedAt: t0},
		models.Stamp{SyncVersion: 2, UpdatedAt: t0.Add(time.Hour)},
	))
	assert.Equal(t, Second, Compare(
		models.Stamp{SyncVersion: 1, UpdatedAt: t0.Add(time.Hour)},
		models.Stamp{SyncVersion: 2, UpdatedAt: t0},
	))
}

func TestCompare_TiesBrokenByUpdatedAt(t *testing.T) {
	t0 := time.Now().UTC()

	assert.Equal(t, First, Compare(
		models.Stamp{SyncVersion: 2, UpdatedAt: t0.Add(time.Second)},
		models.Stamp{SyncVersion: 2, UpdatedAt: t0},
	))
	assert.Equal(t, Equal, Compare(
		models.Stamp{SyncVersion: 2, UpdatedAt: t0},
		models.Stamp{SyncVersion: 2, UpdatedAt: t0},
	))
}

func newConflict(t *testing.T) *models.Conflict {
	t.Helper()
	local, err := json.Marshal(models.Document{ID: "d1", Name: "notes", Content: "local text", SyncVersion: 1})
	require.NoError(t, err)
	server, err := json.Marshal(models.Document{ID: "d1", Name: "notes", Content: "server text", SyncVersion: 2})
	require.NoError(t, err)

	return &models.Conflict{
		EntityID:        "d1",
		EntityType:      models.EntityTypeDocument,
		LocalPayload:    local,
		LocalUpdatedAt:  time.Now().UTC(),
		ServerPayload:   server,
		ServerVersion:   2,
		ServerUpdatedAt: time.Now().UTC().Add(-time.Minute),
		Resolution:      models.ResolutionPending,
	}
}

func TestResolveLocal_RequeuesWithWinningStamp(t *testing.T) {
	db := setupSyncDB(t)
	q, m := newRepos(db)
	r := NewResolver(q, m, nil)
	ctx := context.Background()

	c := newConflict(t)
	require.NoError(t, r.ResolveLocal(ctx, c))
	assert.Equal(t, models.ResolvedLocal, c.Resolution)

	// Mirror adopted the server snapshot.
	v, err := m.Version(ctx, models.EntityTypeDocument, "d1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), v)

	// Local content requeued stamped serverVersion+1.
	snap, err := q.Snapshot(ctx)
	require.NoError(t, err)
	require.Len(t, snap, 1)
	var doc models.Document
	require.NoError(t, json.Unmarshal(snap[0].Payload, &doc))
	assert.Equal(t, int64(3), doc.SyncVersion)
	assert.Equal(t, "local text", doc.Content)
}

func TestResolveServer_DiscardsLocalEdits(t *testing.T) {
	db := setupSyncDB(t)
	q, m := newRepos(db)
	r := NewResolver(q, m, nil)
	ctx := context.Background()

	c := newConflict(t)
	require.NoError(t, r.ResolveServer(ctx, c))
	assert.Equal(t, models.ResolvedServer, c.Resolution)

	snap, err := q.Snapshot(ctx)
	require.NoError(t, err)
	assert.Empty(t, snap)

	got, err := m.Get(ctx, models.EntityTypeDocument, "d1")
	require.NoError(t, err)
	var doc models.Document
	require.NoError(t, json.Unmarshal(got.Payload, &doc))
	assert.Equal(t, "server text", doc.Content)
}

func TestResolveBoth_ClonesLocalContentUnderNewID(t *testing.T) {
	db := setupSyncDB(t)
	q, m := newRepos(db)
	r := NewResolver(q, m, nil)
	ctx := context.Background()

	c := newConflict(t)
	cloneID, err := r.ResolveBoth(ctx, c)
	require.NoError(t, err)
	require.NotEmpty(t, cloneID)
	assert.NotEqual(t, "d1", cloneID)
	assert.Equal(t, models.ResolvedBoth, c.Resolution)

	// Server snapshot canonical under the original id.
	v, err := m.Version(ctx, models.EntityTypeDocument, "d1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), v)

	// Clone queued as a fresh unsynced entity with a disambiguated name.
	snap, err := q.Snapshot(ctx)
	require.NoError(t, err)
	require.Len(t, snap, 1)
	assert.Equal(t, cloneID, snap[0].EntityID)

	var doc models.Document
	require.NoError(t, json.Unmarshal(snap[0].Payload, &doc))
	assert.Equal(t, cloneID, doc.ID)
	assert.Equal(t, "notes (conflicted copy)", doc.Name)
	assert.Equal(t, "local text", doc.Content)
	assert.Equal(t, int64(0), doc.SyncVersion)
}
