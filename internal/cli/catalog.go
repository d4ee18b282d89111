package cli

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/aircater/internal/models"
)

var catalogAliases = map[string]models.Kind{
	"clients":  models.KindClient,
	"caterers": models.KindCaterer,
	"airports": models.KindAirport,
	"fbos":     models.KindFBO,
	"menu":     models.KindMenuItem,
}

func (a *App) Catalog(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: catalog <clients|caterers|airports|fbos|menu>")
	}
	kind, ok := catalogAliases[args[0]]
	if !ok {
		return fmt.Errorf("unknown catalog %q", args[0])
	}

	rows, stale, err := a.catalog.List(ctx, kind)
	if err != nil {
		return err
	}

	if stale {
		last, _ := a.catalog.LastUpdated(ctx, kind)
		if last.IsZero() {
			printlnFn("Warning: this data was never refreshed from the server.")
		} else {
			printlnFn(fmt.Sprintf("Warning: data may be outdated (last refreshed %s).", last.Format("2006-01-02 15:04")))
		}
	}

	if len(rows) == 0 {
		printlnFn("No records.")
		return nil
	}
	for _, e := range rows {
		printlnFn(fmt.Sprintf("%-40s %v", e.LocalID, e.Payload["name"]))
	}
	return nil
}

func (a *App) Refresh(ctx context.Context) error {
	if err := a.catalog.RefreshAll(ctx); err != nil {
		return err
	}
	printlnFn("Catalog caches refreshed.")
	return nil
}
