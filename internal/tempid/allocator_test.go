package tempid

import (
	"context"
	"database/sql"
	"testing"

	"github.com/dmitrijs2005/aircater/internal/models"
	"github.com/dmitrijs2005/aircater/internal/repositories/metadata"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "modernc.org/sqlite"
)

func setupAllocator(t *testing.T) (*Allocator, *sql.DB) {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.Exec(`CREATE TABLE metadata (key TEXT PRIMARY KEY, value BLOB);`)
	require.NoError(t, err)

	a, err := NewAllocator(context.Background(), metadata.NewSQLiteRepository(db))
	require.NoError(t, err)
	return a, db
}

func TestGenerate_IsTempAndUnique(t *testing.T) {
	a := Generate()
	b := Generate()

	assert.True(t, IsTemp(a))
	assert.True(t, IsTemp(b))
	assert.NotEqual(t, a, b)
	assert.False(t, IsTemp("o-42"))
	assert.False(t, IsTemp(""))
}

func TestRecordMapping_ResolveIsStable(t *testing.T) {
	a, _ := setupAllocator(t)
	ctx := context.Background()

	tmp := Generate()
	_, ok := a.Resolve(tmp)
	require.False(t, ok)

	require.NoError(t, a.RecordMapping(ctx, models.KindOrder, tmp, "o-42"))

	got, ok := a.Resolve(tmp)
	require.True(t, ok)
	assert.Equal(t, "o-42", got)

	// same pair again is a no-op, a different real id is refused
	require.NoError(t, a.RecordMapping(ctx, models.KindOrder, tmp, "o-42"))
	require.Error(t, a.RecordMapping(ctx, models.KindOrder, tmp, "o-43"))

	got, ok = a.Resolve(tmp)
	require.True(t, ok)
	assert.Equal(t, "o-42", got)
}

func TestRecordMapping_RejectsBadArguments(t *testing.T) {
	a, _ := setupAllocator(t)
	ctx := context.Background()

	require.Error(t, a.RecordMapping(ctx, models.KindOrder, "o-1", "o-2"))
	require.Error(t, a.RecordMapping(ctx, models.KindOrder, Generate(), ""))
	require.Error(t, a.RecordMapping(ctx, models.KindOrder, Generate(), Generate()))
}

func TestMappings_SurviveReload(t *testing.T) {
	a, db := setupAllocator(t)
	ctx := context.Background()

	tmp := Generate()
	require.NoError(t, a.RecordMapping(ctx, models.KindClient, tmp, "c-7"))

	reloaded, err := NewAllocator(ctx, metadata.NewSQLiteRepository(db))
	require.NoError(t, err)

	got, ok := reloaded.Resolve(tmp)
	require.True(t, ok)
	assert.Equal(t, "c-7", got)
}

func TestRewritePayload(t *testing.T) {
	a, _ := setupAllocator(t)
	ctx := context.Background()

	resolved := Generate()
	pending := Generate()
	require.NoError(t, a.RecordMapping(ctx, models.KindClient, resolved, "c-7"))

	payload := map[string]any{
		"client_id": resolved,
		"fbo_id":    pending,
		"items": []any{
			map[string]any{"menu_item_id": resolved, "quantity": float64(2)},
		},
		"total": float64(80),
	}

	out, unresolved := a.RewritePayload(payload)

	assert.Equal(t, "c-7", out["client_id"])
	assert.Equal(t, pending, out["fbo_id"])
	items := out["items"].([]any)
	assert.Equal(t, "c-7", items[0].(map[string]any)["menu_item_id"])
	assert.Equal(t, []string{pending}, unresolved)

	// input untouched
	assert.Equal(t, resolved, payload["client_id"])
}

func TestReferences(t *testing.T) {
	x := Generate()
	y := Generate()

	payload := map[string]any{
		"client_id": x,
		"notes":     "plain",
		"items":     []any{map[string]any{"menu_item_id": y}},
	}

	refs := References(payload)
	assert.ElementsMatch(t, []string{x, y}, refs)
	assert.Empty(t, References(map[string]any{"a": "b"}))
}
