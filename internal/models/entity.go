package models

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// Entity is the local mirror of a server record plus sync metadata.
//
// Invariants:
//   - exactly one Entity exists per logical domain object per local store;
//   - PendingChanges is non-nil iff SyncStatus is pending_create,
//     pending_update or conflict;
//   - ServerVersion (the server's full snapshot) is retained only while
//     SyncStatus == conflict, to support side-by-side resolution.
type Entity struct {
	Kind    Kind
	LocalID string

	// Payload is the server field set with any local edits applied. The
	// server's own revision counter travels inside it under "version".
	Payload map[string]any

	SyncStatus SyncStatus

	// Version is the local revision counter, incremented on every local
	// mutation. Independent of the server revision in Payload["version"].
	Version int64

	// PendingChanges holds the fields mutated locally since the last
	// successful sync. Nil when fully synced.
	PendingChanges map[string]any

	// ServerVersion is the server's entity as last observed, kept only in
	// conflict state.
	ServerVersion map[string]any

	LastSyncedAt time.Time
	UpdatedAt    time.Time
}

// ServerRevision extracts the server revision counter from a payload map.
// Returns 0 when the field is absent or not numeric.
func ServerRevision(payload map[string]any) int64 {
	v, ok := payload["version"]
	if !ok {
		return 0
	}
	switch n := v.(type) {
	case float64:
		return int64(n)
	case int64:
		return n
	case int:
		return int64(n)
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			return 0
		}
		return i
	}
	return 0
}

// PayloadID extracts the entity id from a payload map. Server ids can come
// back numeric; they are normalized to their decimal string form.
func PayloadID(payload map[string]any) string {
	v, ok := payload["id"]
	if !ok {
		return ""
	}
	switch id := v.(type) {
	case string:
		return id
	case float64:
		return strconv.FormatInt(int64(id), 10)
	case int64:
		return strconv.FormatInt(id, 10)
	case json.Number:
		return id.String()
	}
	return ""
}

// ToMap converts a typed domain struct to the generic payload form used by
// the store and the wire, going through JSON so numbers normalize the same
// way they do when read back from SQLite.
func ToMap(v any) (map[string]any, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("failed to unmarshal payload: %w", err)
	}
	return m, nil
}

// CloneMap returns a shallow copy of m; nil stays nil.
func CloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
