package cli

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/aircater/internal/models"
	"github.com/dmitrijs2005/aircater/internal/syncer"
)

func (a *App) Sync(ctx context.Context) error {
	if !a.watcher.Online() {
		printlnFn("Offline; queued changes will sync when the server is reachable.")
		return nil
	}
	if err := a.engine.Drain(ctx); err != nil {
		return err
	}
	n, err := a.orders.PendingCount(ctx)
	if err != nil {
		return err
	}
	printlnFn(fmt.Sprintf("Sync finished, %d item(s) still pending.", n))
	return nil
}

func (a *App) Queue(ctx context.Context) error {
	items, err := a.repos.Queue.ListPending(ctx)
	if err != nil {
		return err
	}
	if len(items) == 0 {
		printlnFn("Queue is empty.")
		return nil
	}
	for _, it := range items {
		printlnFn(fmt.Sprintf("%-38s %-6s %-9s %-40s attempts=%d", it.ID, it.Operation, it.Kind, it.EntityID, it.Attempts))
	}
	return nil
}

func (a *App) Cancel(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: cancel <item>")
	}
	if err := a.orders.CancelQueued(ctx, args[0]); err != nil {
		return err
	}
	printlnFn("Item cancelled before transmission.")
	return nil
}

func (a *App) Failed(ctx context.Context) error {
	items, err := a.repos.Queue.ListFailed(ctx)
	if err != nil {
		return err
	}
	if len(items) == 0 {
		printlnFn("No failed items.")
		return nil
	}
	for _, it := range items {
		printlnFn(fmt.Sprintf("%-38s %-6s %-9s %-40s %s", it.ID, it.Operation, it.Kind, it.EntityID, it.LastError))
	}
	printlnFn("Use 'retry <item>' or 'discard <item>'.")
	return nil
}

func (a *App) Retry(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: retry <item>")
	}
	if err := a.engine.RetryFailed(ctx, args[0]); err != nil {
		return err
	}
	printlnFn("Item queued for retry.")
	return a.Sync(ctx)
}

func (a *App) Discard(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: discard <item>")
	}
	if err := a.engine.DiscardFailed(ctx, args[0]); err != nil {
		return err
	}
	printlnFn("Item discarded; the local change was abandoned.")
	return nil
}

func (a *App) Conflicts(ctx context.Context) error {
	rows, err := a.orders.ListConflicted(ctx)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		printlnFn("No conflicts.")
		return nil
	}
	for _, e := range rows {
		fields := syncer.ConflictingFields(e.PendingChanges, e.ServerVersion)
		printlnFn(fmt.Sprintf("%-40s conflicting fields: %v", e.LocalID, fields))
		for _, f := range fields {
			printlnFn(fmt.Sprintf("  %-12s local=%v server=%v", f, e.PendingChanges[f], e.ServerVersion[f]))
		}
	}
	printlnFn("Use 'resolve <id> local|server'.")
	return nil
}

func (a *App) Resolve(ctx context.Context, args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("usage: resolve <id> <local|server>")
	}
	id := args[0]

	var res syncer.Resolution
	switch args[1] {
	case "local":
		res = syncer.ResolutionLocal
	case "server":
		res = syncer.ResolutionServer
	default:
		return fmt.Errorf("unknown verdict %q (want local or server)", args[1])
	}

	if err := a.engine.ResolveConflict(ctx, models.KindOrder, id, res, nil); err != nil {
		return err
	}
	printlnFn("Conflict resolved.")
	return a.Sync(ctx)
}
