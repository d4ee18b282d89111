package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/aircater/internal/common"
	"github.com/dmitrijs2005/aircater/internal/logging"
	"github.com/dmitrijs2005/aircater/internal/models"
	"github.com/dmitrijs2005/aircater/internal/repositories/entities"
	"golang.org/x/sync/errgroup"
)

// Fetcher is the slice of the remote client the refresher needs.
type Fetcher interface {
	FetchAll(ctx context.Context, kind models.Kind) ([]map[string]any, error)
}

// Refresher repopulates stale caches from the server. Rows holding unsynced
// local work are never overwritten or evicted by a refresh.
type Refresher struct {
	fetcher  Fetcher
	entities entities.Repository
	policy   *Policy
	log      logging.Logger
	now      func() time.Time
}

func NewRefresher(fetcher Fetcher, repo entities.Repository, policy *Policy, log logging.Logger) *Refresher {
	return &Refresher{fetcher: fetcher, entities: repo, policy: policy, log: log, now: time.Now}
}

// Refresh fetches the given kinds concurrently and replaces their synced
// rows. A failed kind fails the whole call but kinds already stored stay
// stored; freshness is marked per kind only after its rows land.
func (r *Refresher) Refresh(ctx context.Context, kinds ...models.Kind) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, kind := range kinds {
		kind := kind
		g.Go(func() error {
			return r.refreshKind(ctx, kind)
		})
	}
	return g.Wait()
}

func (r *Refresher) refreshKind(ctx context.Context, kind models.Kind) error {
	records, err := r.fetcher.FetchAll(ctx, kind)
	if err != nil {
		return fmt.Errorf("failed to fetch %s records: %w", kind, err)
	}

	now := r.now()
	seen := make([]string, 0, len(records))

	for _, record := range records {
		id := models.PayloadID(record)
		if id == "" {
			r.log.Warn(ctx, "skipping fetched record without id", "kind", kind)
			continue
		}
		seen = append(seen, id)

		existing, err := r.entities.Get(ctx, kind, id)
		if err != nil && !errors.Is(err, common.ErrorNotFound) {
			return fmt.Errorf("failed to read cached %s %s: %w", kind, id, err)
		}
		if existing != nil && existing.SyncStatus != models.StatusSynced {
			// local pending work wins until it syncs
			continue
		}

		e := &models.Entity{
			Kind:         kind,
			LocalID:      id,
			Payload:      record,
			SyncStatus:   models.StatusSynced,
			LastSyncedAt: now,
			UpdatedAt:    now,
		}
		if existing != nil {
			e.Version = existing.Version
		}
		if err := r.entities.Put(ctx, e); err != nil {
			return fmt.Errorf("failed to store fetched %s: %w", kind, err)
		}
	}

	if kind != models.KindOrder {
		if err := r.entities.PruneSynced(ctx, kind, seen); err != nil {
			return fmt.Errorf("failed to prune %s cache: %w", kind, err)
		}
	}

	if err := r.policy.MarkRefreshed(ctx, kind); err != nil {
		return fmt.Errorf("failed to mark %s cache fresh: %w", kind, err)
	}

	r.log.Debug(ctx, "cache refreshed", "kind", kind, "records", len(records))
	return nil
}
