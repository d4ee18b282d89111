package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/dmitrijs2005/aircater/internal/models"
)

func (a *App) Orders(ctx context.Context) error {
	rows, err := a.orders.List(ctx, "delivery_at")
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		printlnFn("No orders.")
		return nil
	}
	for _, e := range rows {
		printlnFn(fmt.Sprintf("%-40s %-14s total=%v delivery=%v",
			e.LocalID, e.SyncStatus, e.Payload["total"], e.Payload["delivery_at"]))
	}
	return nil
}

func (a *App) ShowOrder(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: show <id>")
	}
	ent, err := a.orders.Get(ctx, args[0])
	if err != nil {
		return err
	}

	b, err := json.MarshalIndent(ent.Payload, "", "  ")
	if err != nil {
		return err
	}
	printlnFn(string(b))
	printlnFn(fmt.Sprintf("sync status: %s", ent.SyncStatus))

	if ent.SyncStatus == models.StatusConflict {
		printlnFn("Unresolved conflict; use 'resolve " + ent.LocalID + " local|server'.")
	}
	return nil
}

// NewOrder walks the user through the required order fields. Catalog ids can
// be temporary ones for records created offline in this session.
func (a *App) NewOrder(ctx context.Context) error {
	ask := func(prompt string) (string, error) {
		return GetSimpleText(a.reader, prompt, os.Stdout)
	}

	clientID, err := ask("Client id")
	if err != nil {
		return err
	}
	catererID, err := ask("Caterer id")
	if err != nil {
		return err
	}
	airportID, err := ask("Airport id")
	if err != nil {
		return err
	}
	tail, err := ask("Tail number")
	if err != nil {
		return err
	}
	deliveryAt, err := ask("Delivery time (RFC3339)")
	if err != nil {
		return err
	}

	var items []models.OrderItem
	for {
		menuItemID, err := ask("Menu item id (empty to finish)")
		if err != nil {
			return err
		}
		if menuItemID == "" {
			break
		}
		qtyStr, err := ask("Quantity")
		if err != nil {
			return err
		}
		qty, err := strconv.Atoi(qtyStr)
		if err != nil {
			return fmt.Errorf("invalid quantity %q", qtyStr)
		}
		priceStr, err := ask("Unit price")
		if err != nil {
			return err
		}
		price, err := strconv.ParseFloat(priceStr, 64)
		if err != nil {
			return fmt.Errorf("invalid price %q", priceStr)
		}
		items = append(items, models.OrderItem{MenuItemID: menuItemID, Quantity: qty, Price: price})
	}

	ent, err := a.orders.Create(ctx, &models.Order{
		ClientID:   clientID,
		CatererID:  catererID,
		AirportID:  airportID,
		TailNumber: tail,
		DeliveryAt: deliveryAt,
		Items:      items,
	})
	if err != nil {
		return err
	}

	printlnFn("Order created locally as " + ent.LocalID + "; it will sync in the background.")
	return nil
}

func (a *App) EditOrder(ctx context.Context, args []string) error {
	if len(args) < 3 {
		return fmt.Errorf("usage: edit <id> <field> <value>")
	}
	id, field := args[0], args[1]
	raw := strings.Join(args[2:], " ")

	// numbers go through as numbers so validation and diffs behave
	var value any = raw
	if n, err := strconv.ParseFloat(raw, 64); err == nil {
		value = n
	}

	ent, err := a.orders.Update(ctx, id, map[string]any{field: value})
	if err != nil {
		return err
	}
	printlnFn(fmt.Sprintf("Order %s updated locally (status %s).", ent.LocalID, ent.SyncStatus))
	return nil
}

func (a *App) DeleteOrder(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: delete <id>")
	}
	if err := a.orders.Delete(ctx, args[0]); err != nil {
		return err
	}
	printlnFn("Order deleted locally; the server copy goes next sync.")
	return nil
}
