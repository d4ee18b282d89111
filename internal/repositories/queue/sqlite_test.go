package queue

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/dmitrijs2005/aircater/internal/common"
	"github.com/dmitrijs2005/aircater/internal/models"
	"github.com/google/uuid"
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
CREATE TABLE sync_queue (
  id TEXT PRIMARY KEY,
  operation TEXT NOT NULL,
  entity_kind TEXT NOT NULL,
  entity_id TEXT NOT NULL,
  payload TEXT,
  created_at INTEGER NOT NULL,
  attempts INTEGER NOT NULL DEFAULT 0,
  last_attempt_at INTEGER,
  last_error TEXT,
  failed INTEGER NOT NULL DEFAULT 0
);
`)
	require.NoError(t, err)

	return db
}

func item(op models.Operation, kind models.Kind, entityID string, at time.Time) *models.QueueItem {
	return &models.QueueItem{
		ID:        uuid.NewString(),
		Operation: op,
		Kind:      kind,
		EntityID:  entityID,
		Payload:   map[string]any{"client_id": "c-1"},
		CreatedAt: at,
	}
}

func TestEnqueue_ListPending_FIFO(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	ctx := context.Background()

	base := time.Now()
	first := item(models.OpCreate, models.KindOrder, "tmp_a", base)
	second := item(models.OpUpdate, models.KindOrder, "tmp_a", base.Add(time.Millisecond))
	third := item(models.OpCreate, models.KindClient, "tmp_b", base.Add(2*time.Millisecond))

	// enqueue out of order; listing must come back by created_at
	require.NoError(t, r.Enqueue(ctx, third))
	require.NoError(t, r.Enqueue(ctx, first))
	require.NoError(t, r.Enqueue(ctx, second))

	got, err := r.ListPending(ctx)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, first.ID, got[0].ID)
	assert.Equal(t, second.ID, got[1].ID)
	assert.Equal(t, third.ID, got[2].ID)
}

func TestGetByID_RoundTrip(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	ctx := context.Background()

	it := item(models.OpUpdate, models.KindOrder, "o-1", time.Now())
	require.NoError(t, r.Enqueue(ctx, it))

	got, err := r.GetByID(ctx, it.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OpUpdate, got.Operation)
	assert.Equal(t, models.KindOrder, got.Kind)
	assert.Equal(t, "o-1", got.EntityID)
	assert.Equal(t, map[string]any{"client_id": "c-1"}, got.Payload)
	assert.Zero(t, got.Attempts)
	assert.False(t, got.Failed)
	assert.True(t, got.LastAttemptAt.IsZero())

	_, err = r.GetByID(ctx, "missing")
	require.ErrorIs(t, err, common.ErrorNotFound)
}

func TestEnqueue_DeletePayloadIsNull(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	ctx := context.Background()

	it := item(models.OpDelete, models.KindOrder, "o-1", time.Now())
	it.Payload = nil
	require.NoError(t, r.Enqueue(ctx, it))

	got, err := r.GetByID(ctx, it.ID)
	require.NoError(t, err)
	assert.Nil(t, got.Payload)
}

func TestRecordFailure_And_MarkTerminal(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	ctx := context.Background()

	it := item(models.OpCreate, models.KindOrder, "tmp_a", time.Now())
	require.NoError(t, r.Enqueue(ctx, it))

	at := time.Now()
	require.NoError(t, r.RecordFailure(ctx, it.ID, "connection refused", at))
	require.NoError(t, r.RecordFailure(ctx, it.ID, "connection refused", at.Add(time.Second)))

	got, err := r.GetByID(ctx, it.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.Attempts)
	assert.Equal(t, "connection refused", got.LastError)
	assert.False(t, got.Failed)

	require.NoError(t, r.MarkTerminal(ctx, it.ID, "connection refused", at.Add(2*time.Second)))

	got, err = r.GetByID(ctx, it.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, got.Attempts)
	assert.True(t, got.Failed)

	// terminal items leave the pending list but are not dropped
	pending, err := r.ListPending(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)

	failed, err := r.ListFailed(ctx)
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, it.ID, failed[0].ID)
}

func TestResetForRetry(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	ctx := context.Background()

	it := item(models.OpCreate, models.KindOrder, "tmp_a", time.Now())
	require.NoError(t, r.Enqueue(ctx, it))
	require.NoError(t, r.MarkTerminal(ctx, it.ID, "boom", time.Now()))

	require.NoError(t, r.ResetForRetry(ctx, it.ID))

	got, err := r.GetByID(ctx, it.ID)
	require.NoError(t, err)
	assert.Zero(t, got.Attempts)
	assert.False(t, got.Failed)
	assert.Empty(t, got.LastError)

	require.ErrorIs(t, r.ResetForRetry(ctx, "missing"), common.ErrorNotFound)
}

func TestUpdatePayload_And_EntityID(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	ctx := context.Background()

	it := item(models.OpUpdate, models.KindOrder, "tmp_a", time.Now())
	require.NoError(t, r.Enqueue(ctx, it))

	require.NoError(t, r.UpdatePayload(ctx, it.ID, map[string]any{"client_id": "c-42"}))
	require.NoError(t, r.UpdateEntityID(ctx, it.ID, "o-42"))

	got, err := r.GetByID(ctx, it.ID)
	require.NoError(t, err)
	assert.Equal(t, "o-42", got.EntityID)
	assert.Equal(t, map[string]any{"client_id": "c-42"}, got.Payload)
}

func TestCancelEntity_LeavesOtherEntitiesAndTerminalItems(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	ctx := context.Background()

	a1 := item(models.OpCreate, models.KindOrder, "tmp_a", time.Now())
	a2 := item(models.OpUpdate, models.KindOrder, "tmp_a", time.Now().Add(time.Millisecond))
	b := item(models.OpCreate, models.KindOrder, "tmp_b", time.Now())
	require.NoError(t, r.Enqueue(ctx, a1))
	require.NoError(t, r.Enqueue(ctx, a2))
	require.NoError(t, r.Enqueue(ctx, b))

	require.NoError(t, r.CancelEntity(ctx, models.KindOrder, "tmp_a"))

	pending, err := r.ListPending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, b.ID, pending[0].ID)
}

func TestListForEntity(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	ctx := context.Background()

	base := time.Now()
	a1 := item(models.OpCreate, models.KindOrder, "tmp_a", base)
	a2 := item(models.OpUpdate, models.KindOrder, "tmp_a", base.Add(time.Millisecond))
	other := item(models.OpCreate, models.KindClient, "tmp_a", base)
	require.NoError(t, r.Enqueue(ctx, a1))
	require.NoError(t, r.Enqueue(ctx, a2))
	require.NoError(t, r.Enqueue(ctx, other))

	got, err := r.ListForEntity(ctx, models.KindOrder, "tmp_a")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, a1.ID, got[0].ID)
	assert.Equal(t, a2.ID, got[1].ID)
}
