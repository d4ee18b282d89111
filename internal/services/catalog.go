package services

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dmitrijs2005/aircater/internal/cache"
	"github.com/dmitrijs2005/aircater/internal/logging"
	"github.com/dmitrijs2005/aircater/internal/models"
	"github.com/dmitrijs2005/aircater/internal/repositories"
	"github.com/go-playground/validator/v10"
)

// CatalogService serves the reference-data kinds (clients, caterers,
// airports, FBOs, menu items) read-through: reads hit the local cache,
// refreshing it first when it has gone stale and the server is reachable.
// Offline, stale data is still served but flagged as such.
type CatalogService struct {
	writer
	repos     *repositories.Repositories
	policy    *cache.Policy
	refresher *cache.Refresher
	validate  *validator.Validate
	online    func() bool
}

func NewCatalogService(db *sql.DB, repos *repositories.Repositories, policy *cache.Policy,
	refresher *cache.Refresher, log logging.Logger, online func() bool, kick func()) *CatalogService {

	return &CatalogService{
		writer:    writer{db: db, log: log.With("service", "catalog"), now: time.Now, kick: kick},
		repos:     repos,
		policy:    policy,
		refresher: refresher,
		validate:  validator.New(),
		online:    online,
	}
}

func catalogKind(kind models.Kind) error {
	for _, k := range models.CatalogKinds {
		if k == kind {
			return nil
		}
	}
	return fmt.Errorf("%q is not a catalog kind", kind)
}

// List returns all cached entities of a catalog kind. The second result
// reports whether the data may be outdated: true when the cache is past its
// TTL and could not be refreshed.
func (s *CatalogService) List(ctx context.Context, kind models.Kind) ([]models.Entity, bool, error) {
	if err := catalogKind(kind); err != nil {
		return nil, false, err
	}

	stale, err := s.ensureFresh(ctx, kind)
	if err != nil {
		return nil, false, err
	}

	rows, err := s.repos.Entities.ListOrdered(ctx, kind, "name")
	if err != nil {
		return nil, false, err
	}
	return rows, stale, nil
}

// Get returns one catalog entity from the cache, refreshing the kind first
// when needed.
func (s *CatalogService) Get(ctx context.Context, kind models.Kind, id string) (*models.Entity, bool, error) {
	if err := catalogKind(kind); err != nil {
		return nil, false, err
	}

	stale, err := s.ensureFresh(ctx, kind)
	if err != nil {
		return nil, false, err
	}

	ent, err := s.repos.Entities.Get(ctx, kind, id)
	if err != nil {
		return nil, false, err
	}
	return ent, stale, nil
}

// ensureFresh refreshes the kind when its TTL lapsed and we are online.
// Returns whether the caller is about to read stale data.
func (s *CatalogService) ensureFresh(ctx context.Context, kind models.Kind) (bool, error) {
	fresh, err := s.policy.IsFresh(ctx, kind)
	if err != nil {
		return false, err
	}
	if fresh {
		return false, nil
	}

	if s.online == nil || !s.online() {
		s.log.Debug(ctx, "serving stale cache, offline", "kind", kind)
		return true, nil
	}

	if err := s.refresher.Refresh(ctx, kind); err != nil {
		// refresh failure degrades to stale data rather than failing the read
		s.log.Warn(ctx, "cache refresh failed, serving stale data", "kind", kind, "error", err)
		return true, nil
	}
	return false, nil
}

// RefreshAll force-refreshes every catalog kind, regardless of TTL.
func (s *CatalogService) RefreshAll(ctx context.Context) error {
	return s.refresher.Refresh(ctx, models.CatalogKinds...)
}

// LastUpdated reports when a kind's cache was last refreshed; zero if never.
func (s *CatalogService) LastUpdated(ctx context.Context, kind models.Kind) (time.Time, error) {
	return s.policy.LastUpdated(ctx, kind)
}

// Create validates the typed record (one of models.Client, models.Caterer,
// models.Airport, models.FBO, models.MenuItem) and stores it locally under a
// temporary id for background sync.
func (s *CatalogService) Create(ctx context.Context, kind models.Kind, record any) (*models.Entity, error) {
	if err := catalogKind(kind); err != nil {
		return nil, err
	}
	if err := s.validate.Struct(record); err != nil {
		return nil, fmt.Errorf("invalid %s: %w", kind, err)
	}

	payload, err := models.ToMap(record)
	if err != nil {
		return nil, err
	}
	return s.createEntity(ctx, kind, payload)
}

// Update applies a partial field change to a catalog entity.
func (s *CatalogService) Update(ctx context.Context, kind models.Kind, id string, changes map[string]any) (*models.Entity, error) {
	if err := catalogKind(kind); err != nil {
		return nil, err
	}
	return s.updateEntity(ctx, kind, id, changes)
}

// Delete removes a catalog entity, queueing the server-side deletion when the
// record has already synced.
func (s *CatalogService) Delete(ctx context.Context, kind models.Kind, id string) error {
	if err := catalogKind(kind); err != nil {
		return err
	}
	return s.deleteEntity(ctx, kind, id)
}
