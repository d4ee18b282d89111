// Package cache implements the freshness policy for the read-through entity
// caches and the refresh path that repopulates them from the server.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dmitrijs2005/aircater/internal/models"
	"github.com/dmitrijs2005/aircater/internal/repositories/metadata"
)

// Per-kind time-to-live. Orders additionally always prefer a live fetch when
// online; their cache is a fallback, not a source of truth.
var ttls = map[models.Kind]time.Duration{
	models.KindClient:   24 * time.Hour,
	models.KindCaterer:  24 * time.Hour,
	models.KindFBO:      24 * time.Hour,
	models.KindAirport:  7 * 24 * time.Hour,
	models.KindMenuItem: 12 * time.Hour,
	models.KindOrder:    time.Hour,
}

// TTL returns the cache time-to-live for a kind.
func TTL(kind models.Kind) time.Duration {
	return ttls[kind]
}

const metaKeyPrefix = "cache:"

type freshness struct {
	LastUpdated time.Time `json:"last_updated"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// Policy answers "can this read trust the local cache" from the
// {lastUpdated, expiresAt} pair stored in the metadata table. It never
// blocks and never triggers network activity itself.
type Policy struct {
	meta metadata.Repository
	now  func() time.Time
}

func NewPolicy(meta metadata.Repository) *Policy {
	return &Policy{meta: meta, now: time.Now}
}

// IsFresh reports whether the cache for kind is within its TTL. A kind that
// was never refreshed is stale.
func (p *Policy) IsFresh(ctx context.Context, kind models.Kind) (bool, error) {
	value, err := p.meta.Get(ctx, metaKeyPrefix+string(kind))
	if err != nil {
		return false, err
	}
	if value == nil {
		return false, nil
	}

	var f freshness
	if err := json.Unmarshal(value, &f); err != nil {
		return false, fmt.Errorf("corrupt cache metadata for %s: %w", kind, err)
	}
	return p.now().Before(f.ExpiresAt), nil
}

// MarkRefreshed records a successful refresh of kind at the current time.
func (p *Policy) MarkRefreshed(ctx context.Context, kind models.Kind) error {
	now := p.now()
	value, err := json.Marshal(freshness{
		LastUpdated: now,
		ExpiresAt:   now.Add(TTL(kind)),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal cache metadata: %w", err)
	}
	return p.meta.Set(ctx, metaKeyPrefix+string(kind), value)
}

// LastUpdated returns when kind was last refreshed; zero if never.
func (p *Policy) LastUpdated(ctx context.Context, kind models.Kind) (time.Time, error) {
	value, err := p.meta.Get(ctx, metaKeyPrefix+string(kind))
	if err != nil || value == nil {
		return time.Time{}, err
	}
	var f freshness
	if err := json.Unmarshal(value, &f); err != nil {
		return time.Time{}, fmt.Errorf("corrupt cache metadata for %s: %w", kind, err)
	}
	return f.LastUpdated, nil
}
