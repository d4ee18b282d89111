package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServerRevision(t *testing.T) {
	tests := []struct {
		name    string
		payload map[string]any
		want    int64
	}{
		{"float64 from json", map[string]any{"version": float64(5)}, 5},
		{"int64", map[string]any{"version": int64(7)}, 7},
		{"int", map[string]any{"version": 3}, 3},
		{"absent", map[string]any{"total": 150}, 0},
		{"non numeric", map[string]any{"version": "five"}, 0},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ServerRevision(tc.payload))
		})
	}
}

func TestToMap_RoundTripsThroughJSON(t *testing.T) {
	o := Order{
		ClientID:   "c-1",
		CatererID:  "k-1",
		AirportID:  "KTEB",
		TailNumber: "N123AB",
		DeliveryAt: "2026-09-01T10:00:00Z",
		Items:      []OrderItem{{MenuItemID: "m-1", Quantity: 2, Price: 40}},
		Total:      80,
		Version:    4,
	}

	m, err := ToMap(o)
	require.NoError(t, err)

	assert.Equal(t, "c-1", m["client_id"])
	// json numbers come back as float64, same as a SQLite read-back
	assert.Equal(t, float64(80), m["total"])
	assert.Equal(t, int64(4), ServerRevision(m))
	_, hasID := m["id"]
	assert.False(t, hasID, "omitempty id should not appear")
}

func TestCloneMap(t *testing.T) {
	assert.Nil(t, CloneMap(nil))

	m := map[string]any{"a": 1}
	c := CloneMap(m)
	c["a"] = 2
	assert.Equal(t, 1, m["a"])
}

func TestSyncStatus_Pending(t *testing.T) {
	assert.True(t, StatusPendingCreate.Pending())
	assert.True(t, StatusPendingUpdate.Pending())
	assert.True(t, StatusConflict.Pending())
	assert.False(t, StatusSynced.Pending())
	assert.False(t, StatusPendingDelete.Pending())
}

func TestKind_Valid(t *testing.T) {
	for _, k := range Kinds {
		assert.True(t, k.Valid(), string(k))
	}
	assert.False(t, Kind("invoice").Valid())
}
