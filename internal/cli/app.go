// Package cli is the interactive terminal front end: a small REPL over the
// order and catalog services, with sync running in the background.
package cli

import (
	"bufio"
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"

	"github.com/dmitrijs2005/aircater/internal/cache"
	"github.com/dmitrijs2005/aircater/internal/config"
	"github.com/dmitrijs2005/aircater/internal/logging"
	"github.com/dmitrijs2005/aircater/internal/remote"
	"github.com/dmitrijs2005/aircater/internal/repositories"
	"github.com/dmitrijs2005/aircater/internal/services"
	"github.com/dmitrijs2005/aircater/internal/syncer"
	"github.com/dmitrijs2005/aircater/internal/tempid"
)

type App struct {
	config  *config.Config
	db      *sql.DB
	repos   *repositories.Repositories
	remote  remote.Client
	watcher *remote.Watcher
	engine  *syncer.Engine
	bus     *syncer.Bus
	orders  *services.OrderService
	catalog *services.CatalogService
	log     logging.Logger
	reader  *bufio.Reader

	// wake feeds the engine loop: connectivity regained or new work enqueued
	wake chan struct{}
}

func NewApp(c *config.Config) (*App, error) {
	ctx := context.Background()

	log := logging.NewSlogLogger(slog.New(slog.NewTextHandler(os.Stderr,
		&slog.HandlerOptions{Level: slog.LevelWarn})))

	db, repos, err := repositories.InitDatabase(ctx, c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("error initializing database: %w", err)
	}

	session := remote.NewSession(c.ServerEndpointAddr+"/api/v1/auth/refresh", nil,
		c.AccessToken, c.RefreshToken)
	apiClient := remote.NewHTTPClient(c.ServerEndpointAddr, session)

	watcher := remote.NewWatcher(apiClient, c.OnlineCheckInterval, log)

	alloc, err := tempid.NewAllocator(ctx, repos.Metadata)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	bus := syncer.NewBus()
	engine := syncer.NewEngine(db, repos, apiClient, alloc, bus, log, c.BaseRetryDelay)
	engine.Online = watcher.Online

	wake := make(chan struct{}, 1)
	kick := func() {
		select {
		case wake <- struct{}{}:
		default:
		}
	}

	policy := cache.NewPolicy(repos.Metadata)
	refresher := cache.NewRefresher(apiClient, repos.Entities, policy, log)

	app := &App{
		config:  c,
		db:      db,
		repos:   repos,
		remote:  apiClient,
		watcher: watcher,
		engine:  engine,
		bus:     bus,
		orders:  services.NewOrderService(db, repos, apiClient, log, watcher.Online, kick),
		catalog: services.NewCatalogService(db, repos, policy, refresher, log, watcher.Online, kick),
		log:     log,
		reader:  bufio.NewReader(os.Stdin),
		wake:    wake,
	}
	return app, nil
}

// Run starts the connectivity watcher and the background sync loop, then
// hands the terminal to the REPL. Returns when the user exits.
func (a *App) Run(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	defer a.Close()

	go a.watcher.Run(ctx)

	reconnects := a.watcher.Notify()
	go func() {
		for {
			select {
			case <-reconnects:
				select {
				case a.wake <- struct{}{}:
				default:
				}
			case <-ctx.Done():
				return
			}
		}
	}()
	go a.engine.RunLoop(ctx, a.config.SyncInterval, a.wake)

	// drain any backlog from a previous session; a no-op while offline
	select {
	case a.wake <- struct{}{}:
	default:
	}

	a.Root(ctx)
}

func (a *App) Close() {
	_ = a.remote.Close()
	_ = a.db.Close()
}

func (a *App) getStatus() string {
	if a.watcher.Online() {
		return "(online)"
	}
	return "(offline)"
}
