package cli

import (
	"bufio"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

// stubExec records which commands the REPL dispatched.
type stubExec struct {
	calls []string
}

func (s *stubExec) note(name string, args ...string) error {
	s.calls = append(s.calls, strings.Join(append([]string{name}, args...), " "))
	return nil
}

func (s *stubExec) Orders(ctx context.Context) error    { return s.note("orders") }
func (s *stubExec) NewOrder(ctx context.Context) error  { return s.note("neworder") }
func (s *stubExec) Refresh(ctx context.Context) error   { return s.note("refresh") }
func (s *stubExec) Sync(ctx context.Context) error      { return s.note("sync") }
func (s *stubExec) Queue(ctx context.Context) error     { return s.note("queue") }
func (s *stubExec) Failed(ctx context.Context) error    { return s.note("failed") }
func (s *stubExec) Conflicts(ctx context.Context) error { return s.note("conflicts") }

func (s *stubExec) ShowOrder(ctx context.Context, args []string) error {
	return s.note("show", args...)
}
func (s *stubExec) EditOrder(ctx context.Context, args []string) error {
	return s.note("edit", args...)
}
func (s *stubExec) DeleteOrder(ctx context.Context, args []string) error {
	return s.note("delete", args...)
}
func (s *stubExec) Catalog(ctx context.Context, args []string) error {
	return s.note("catalog", args...)
}
func (s *stubExec) Cancel(ctx context.Context, args []string) error {
	return s.note("cancel", args...)
}
func (s *stubExec) Retry(ctx context.Context, args []string) error {
	return s.note("retry", args...)
}
func (s *stubExec) Discard(ctx context.Context, args []string) error {
	return s.note("discard", args...)
}
func (s *stubExec) Resolve(ctx context.Context, args []string) error {
	return s.note("resolve", args...)
}

func runScript(t *testing.T, script string) (*stubExec, []string) {
	t.Helper()

	var out []string
	orig := printlnFn
	printlnFn = func(a ...any) (int, error) {
		for _, v := range a {
			if s, ok := v.(string); ok {
				out = append(out, s)
			}
		}
		return 0, nil
	}
	t.Cleanup(func() { printlnFn = orig })

	stub := &stubExec{}
	scanner := bufio.NewScanner(strings.NewReader(script))
	runREPL(context.Background(), stub, func() string { return "(offline)" }, scanner)
	return stub, out
}

func TestREPL_DispatchesCommands(t *testing.T) {
	stub, _ := runScript(t, strings.Join([]string{
		"orders",
		"show o-1",
		"catalog clients",
		"sync",
		"queue",
		"resolve o-1 local",
		"exit",
	}, "\n"))

	assert.Equal(t, []string{
		"orders",
		"show o-1",
		"catalog clients",
		"sync",
		"queue",
		"resolve o-1 local",
	}, stub.calls)
}

func TestREPL_UnknownCommandReported(t *testing.T) {
	stub, out := runScript(t, "frobnicate\nexit\n")

	assert.Empty(t, stub.calls)

	found := false
	for _, line := range out {
		if strings.Contains(line, "Unknown command") {
			found = true
		}
	}
	assert.True(t, found)
}

func TestREPL_EmptyLinesAndEOF(t *testing.T) {
	stub, _ := runScript(t, "\n\norders\n")
	assert.Equal(t, []string{"orders"}, stub.calls)
}

func TestREPL_AliasesDispatch(t *testing.T) {
	stub, _ := runScript(t, "o\nq\ncat menu\nquit\n")
	assert.Equal(t, []string{"orders", "queue", "catalog menu"}, stub.calls)
}
