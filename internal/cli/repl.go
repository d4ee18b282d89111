package cli

import (
	"bufio"
	"context"
	"fmt"
	"strings"
)

// printlnFn is a test seam for user-facing output. In tests, replace it with a stub.
var printlnFn = fmt.Println

// execIface defines the minimal command surface the REPL needs to operate.
// The real App type satisfies this interface; tests can provide a lightweight stub.
type execIface interface {
	Orders(ctx context.Context) error
	ShowOrder(ctx context.Context, args []string) error
	NewOrder(ctx context.Context) error
	EditOrder(ctx context.Context, args []string) error
	DeleteOrder(ctx context.Context, args []string) error
	Catalog(ctx context.Context, args []string) error
	Refresh(ctx context.Context) error
	Sync(ctx context.Context) error
	Queue(ctx context.Context) error
	Cancel(ctx context.Context, args []string) error
	Failed(ctx context.Context) error
	Retry(ctx context.Context, args []string) error
	Discard(ctx context.Context, args []string) error
	Conflicts(ctx context.Context) error
	Resolve(ctx context.Context, args []string) error
}

// runREPL starts a simple read-eval-print loop for the AirCater CLI.
//
// It reads a line from the provided scanner, parses the first token as the
// command, and dispatches to methods on 'a'. Unknown commands are reported
// back to the user. The loop exits on scanner EOF or when the user types
// "exit" or "quit".
//
// Commands:
//
//	orders                  — list cached orders
//	show <id>               — show one order (live when online)
//	neworder                — create an order interactively
//	edit <id> <field> <v>   — change one order field
//	delete <id>             — delete an order
//	catalog <kind>          — list clients/caterers/airports/fbos/menu
//	refresh                 — force-refresh every catalog cache
//	sync                    — drain the sync queue now
//	queue                   — show pending sync items
//	cancel <item>           — withdraw a not-yet-sent item
//	failed                  — show terminally failed items
//	retry <item>            — put a failed item back into rotation
//	discard <item>          — drop a failed item
//	conflicts               — list orders awaiting conflict resolution
//	resolve <id> <verdict>  — resolve a conflict (local|server)
//	exit | quit             — leave the program
//
// Any errors returned by command handlers are printed and the loop continues;
// a handler error never terminates the session.
func runREPL(ctx context.Context, a execIface, statusFn func() string, scanner *bufio.Scanner) {
	for {
		printlnFn(fmt.Sprintf("ac %s> ", statusFn()))
		if !scanner.Scan() {
			return
		}
		line := scanner.Text()
		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}
		cmd := parts[0]
		args := parts[1:]

		var err error
		switch cmd {
		case "help":
			printlnFn("Available commands: orders, show, neworder, edit, delete, catalog, refresh, sync, queue, cancel, failed, retry, discard, conflicts, resolve, exit")
		case "orders", "o":
			err = a.Orders(ctx)
		case "show":
			err = a.ShowOrder(ctx, args)
		case "neworder", "new":
			err = a.NewOrder(ctx)
		case "edit":
			err = a.EditOrder(ctx, args)
		case "delete", "del":
			err = a.DeleteOrder(ctx, args)
		case "catalog", "cat":
			err = a.Catalog(ctx, args)
		case "refresh":
			err = a.Refresh(ctx)
		case "sync":
			err = a.Sync(ctx)
		case "queue", "q":
			err = a.Queue(ctx)
		case "cancel":
			err = a.Cancel(ctx, args)
		case "failed":
			err = a.Failed(ctx)
		case "retry":
			err = a.Retry(ctx, args)
		case "discard":
			err = a.Discard(ctx, args)
		case "conflicts":
			err = a.Conflicts(ctx)
		case "resolve":
			err = a.Resolve(ctx, args)
		case "exit", "quit":
			return
		default:
			printlnFn("Unknown command: " + cmd + " (type 'help' for commands)")
		}

		if err != nil {
			printlnFn("Error: " + err.Error())
		}
	}
}
