// Package tempid generates placeholder identities for entities created while
// offline and keeps the process-wide map from temporary id to the
// server-assigned id once sync succeeds.
package tempid

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/dmitrijs2005/aircater/internal/models"
	"github.com/dmitrijs2005/aircater/internal/repositories/metadata"
	"github.com/google/uuid"
)

// Prefix distinguishes client-generated ids from server-issued ones.
const Prefix = "tmp_"

const metaKeyPrefix = "tempid:"

// Generate returns a fresh collision-resistant temporary id.
func Generate() string {
	return Prefix + uuid.NewString()
}

// IsTemp reports whether id is a temporary identity. Pure predicate.
func IsTemp(id string) bool {
	return strings.HasPrefix(id, Prefix)
}

// Allocator maintains the temp-id → real-id table. Mappings are persisted
// through the metadata repository so resolution survives restarts; once
// recorded a mapping never changes and a temp id is never reused.
type Allocator struct {
	mu      sync.RWMutex
	meta    metadata.Repository
	mapping map[string]string
}

// NewAllocator loads previously persisted mappings and returns the allocator.
func NewAllocator(ctx context.Context, meta metadata.Repository) (*Allocator, error) {
	persisted, err := meta.ListPrefix(ctx, metaKeyPrefix)
	if err != nil {
		return nil, fmt.Errorf("failed to load temp-id mappings: %w", err)
	}

	mapping := make(map[string]string, len(persisted))
	for key, value := range persisted {
		mapping[strings.TrimPrefix(key, metaKeyPrefix)] = string(value)
	}

	return &Allocator{meta: meta, mapping: mapping}, nil
}

// RecordMapping stores the server-assigned id for a temp id. Recording the
// same pair twice is a no-op; remapping to a different id is an error.
func (a *Allocator) RecordMapping(ctx context.Context, kind models.Kind, tempID, realID string) error {
	if !IsTemp(tempID) {
		return fmt.Errorf("%q is not a temporary id", tempID)
	}
	if realID == "" || IsTemp(realID) {
		return fmt.Errorf("invalid server id %q for %s %s", realID, kind, tempID)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if existing, ok := a.mapping[tempID]; ok {
		if existing != realID {
			return fmt.Errorf("temp id %s already resolved to %s, refusing remap to %s", tempID, existing, realID)
		}
		return nil
	}

	if err := a.meta.Set(ctx, metaKeyPrefix+tempID, []byte(realID)); err != nil {
		return fmt.Errorf("failed to persist temp-id mapping: %w", err)
	}
	a.mapping[tempID] = realID
	return nil
}

// Resolve returns the server-assigned id for a temp id, if recorded.
func (a *Allocator) Resolve(tempID string) (string, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	realID, ok := a.mapping[tempID]
	return realID, ok
}

// RewritePayload returns a copy of payload with every resolvable temp id
// replaced by its real id, walking nested maps and slices (order items carry
// foreign keys too). The second result lists temp ids that remain
// unresolved, sorted; a non-empty list means the payload is not sendable yet.
func (a *Allocator) RewritePayload(payload map[string]any) (map[string]any, []string) {
	unresolved := make(map[string]struct{})
	out, _ := a.rewriteValue(payload, unresolved)

	keys := make([]string, 0, len(unresolved))
	for k := range unresolved {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	m, _ := out.(map[string]any)
	return m, keys
}

func (a *Allocator) rewriteValue(v any, unresolved map[string]struct{}) (any, bool) {
	switch value := v.(type) {
	case string:
		if !IsTemp(value) {
			return value, false
		}
		if realID, ok := a.Resolve(value); ok {
			return realID, true
		}
		unresolved[value] = struct{}{}
		return value, false
	case map[string]any:
		out := make(map[string]any, len(value))
		changed := false
		for k, item := range value {
			rewritten, ch := a.rewriteValue(item, unresolved)
			out[k] = rewritten
			changed = changed || ch
		}
		return out, changed
	case []any:
		out := make([]any, len(value))
		changed := false
		for i, item := range value {
			rewritten, ch := a.rewriteValue(item, unresolved)
			out[i] = rewritten
			changed = changed || ch
		}
		return out, changed
	default:
		return v, false
	}
}

// References reports the set of temp ids referenced anywhere in payload,
// resolved or not. Used to build the pending foreign-key dependency index.
func References(payload map[string]any) []string {
	refs := make(map[string]struct{})
	collectRefs(payload, refs)

	keys := make([]string, 0, len(refs))
	for k := range refs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func collectRefs(v any, refs map[string]struct{}) {
	switch value := v.(type) {
	case string:
		if IsTemp(value) {
			refs[value] = struct{}{}
		}
	case map[string]any:
		for _, item := range value {
			collectRefs(item, refs)
		}
	case []any:
		for _, item := range value {
			collectRefs(item, refs)
		}
	}
}
