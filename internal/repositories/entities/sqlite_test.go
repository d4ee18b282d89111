package entities

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/dmitrijs2005/aircater/internal/common"
	"github.com/dmitrijs2005/aircater/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "modernc.org/sqlite"
)

func setupDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	for _, table := range []string{"orders", "clients", "airports"} {
		_, err = db.Exec(fmt.Sprintf(`
CREATE TABLE %s (
  local_id TEXT PRIMARY KEY,
  payload TEXT NOT NULL,
  sync_status TEXT NOT NULL DEFAULT 'synced',
  version INTEGER NOT NULL DEFAULT 0,
  pending_changes TEXT,
  server_version TEXT,
  last_synced_at INTEGER,
  updated_at INTEGER NOT NULL
);
`, table))
		require.NoError(t, err)
	}

	return db
}

func orderEntity(id string, status models.SyncStatus) *models.Entity {
	return &models.Entity{
		Kind:       models.KindOrder,
		LocalID:    id,
		Payload:    map[string]any{"id": id, "client_id": "c-1", "total": float64(150), "version": float64(4)},
		SyncStatus: status,
		Version:    1,
		UpdatedAt:  time.Now(),
	}
}

func TestPutGet_RoundTrip(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	ctx := context.Background()

	e := orderEntity("o-1", models.StatusPendingUpdate)
	e.PendingChanges = map[string]any{"total": float64(200)}
	e.LastSyncedAt = time.Now().Add(-time.Hour)
	require.NoError(t, r.Put(ctx, e))

	got, err := r.Get(ctx, models.KindOrder, "o-1")
	require.NoError(t, err)
	assert.Equal(t, "o-1", got.LocalID)
	assert.Equal(t, models.StatusPendingUpdate, got.SyncStatus)
	assert.Equal(t, int64(1), got.Version)
	assert.Equal(t, float64(150), got.Payload["total"])
	assert.Equal(t, map[string]any{"total": float64(200)}, got.PendingChanges)
	assert.Nil(t, got.ServerVersion)
	assert.False(t, got.LastSyncedAt.IsZero())
}

func TestPut_UpsertsByLocalID(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	ctx := context.Background()

	require.NoError(t, r.Put(ctx, orderEntity("o-1", models.StatusPendingCreate)))

	e := orderEntity("o-1", models.StatusSynced)
	e.Version = 2
	require.NoError(t, r.Put(ctx, e))

	got, err := r.Get(ctx, models.KindOrder, "o-1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusSynced, got.SyncStatus)
	assert.Equal(t, int64(2), got.Version)

	all, err := r.GetAll(ctx, models.KindOrder)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestGet_NotFound(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)

	_, err := r.Get(context.Background(), models.KindOrder, "nope")
	require.ErrorIs(t, err, common.ErrorNotFound)
}

func TestGet_UnknownKind(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)

	_, err := r.Get(context.Background(), models.Kind("invoice"), "x")
	require.ErrorIs(t, err, ErrUnknownKind)
}

func TestListOrdered_ByName(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	ctx := context.Background()

	for _, name := range []string{"Zulu Air", "Alpha Jets", "Mike Aviation"} {
		e := &models.Entity{
			Kind:       models.KindClient,
			LocalID:    name,
			Payload:    map[string]any{"name": name},
			SyncStatus: models.StatusSynced,
			UpdatedAt:  time.Now(),
		}
		require.NoError(t, r.Put(ctx, e))
	}

	got, err := r.ListOrdered(ctx, models.KindClient, "name")
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "Alpha Jets", got[0].Payload["name"])
	assert.Equal(t, "Mike Aviation", got[1].Payload["name"])
	assert.Equal(t, "Zulu Air", got[2].Payload["name"])

	_, err = r.ListOrdered(ctx, models.KindClient, "payload); DROP TABLE clients;--")
	require.Error(t, err)
}

func TestListByStatus(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	ctx := context.Background()

	require.NoError(t, r.Put(ctx, orderEntity("s-1", models.StatusSynced)))
	require.NoError(t, r.Put(ctx, orderEntity("c-1", models.StatusConflict)))
	require.NoError(t, r.Put(ctx, orderEntity("c-2", models.StatusConflict)))

	got, err := r.ListByStatus(ctx, models.KindOrder, models.StatusConflict)
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestRekey_ReplacesTemporaryID(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	ctx := context.Background()

	require.NoError(t, r.Put(ctx, orderEntity("tmp_abc", models.StatusPendingCreate)))

	e := orderEntity("o-42", models.StatusSynced)
	require.NoError(t, r.Rekey(ctx, models.KindOrder, "tmp_abc", e))

	_, err := r.Get(ctx, models.KindOrder, "tmp_abc")
	require.ErrorIs(t, err, common.ErrorNotFound)

	got, err := r.Get(ctx, models.KindOrder, "o-42")
	require.NoError(t, err)
	assert.Equal(t, models.StatusSynced, got.SyncStatus)
}

func TestDelete_MissingRowIsNotAnError(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)

	require.NoError(t, r.Delete(context.Background(), models.KindOrder, "nope"))
}

func TestPruneSynced(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	ctx := context.Background()

	put := func(id string, status models.SyncStatus) {
		t.Helper()
		e := &models.Entity{
			Kind:       models.KindAirport,
			LocalID:    id,
			Payload:    map[string]any{"icao": id},
			SyncStatus: status,
			UpdatedAt:  time.Now(),
		}
		if status.Pending() {
			e.PendingChanges = map[string]any{"icao": id}
		}
		require.NoError(t, r.Put(ctx, e))
	}

	put("KTEB", models.StatusSynced)
	put("KJFK", models.StatusSynced)
	put("tmp_x", models.StatusPendingCreate)

	require.NoError(t, r.PruneSynced(ctx, models.KindAirport, []string{"KTEB"}))

	all, err := r.GetAll(ctx, models.KindAirport)
	require.NoError(t, err)

	ids := make(map[string]struct{})
	for _, e := range all {
		ids[e.LocalID] = struct{}{}
	}
	// KJFK evicted, KTEB kept, unsynced row untouched
	assert.Equal(t, map[string]struct{}{"KTEB": {}, "tmp_x": {}}, ids)
}

func TestPruneSynced_RefusesOrders(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)

	require.Error(t, r.PruneSynced(context.Background(), models.KindOrder, nil))
}
