package remote

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dmitrijs2005/aircater/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePinger struct {
	up atomic.Bool
}

func (p *fakePinger) Ping(ctx context.Context) error {
	if p.up.Load() {
		return nil
	}
	return errors.New("connection refused")
}

func watcherLogger() logging.Logger {
	return logging.NewSlogLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError})))
}

func TestWatcher_NotifiesOnReconnect(t *testing.T) {
	p := &fakePinger{}
	p.up.Store(true)

	w := NewWatcher(p, time.Hour, watcherLogger())
	ch := w.Notify()
	ctx := context.Background()

	w.check(ctx)
	require.True(t, w.Online())

	// the first probe only establishes the baseline
	select {
	case <-ch:
		t.Fatal("unexpected notification on the initial probe")
	default:
	}

	// online→online: no signal
	w.check(ctx)
	select {
	case <-ch:
		t.Fatal("unexpected notification without a transition")
	default:
	}

	p.up.Store(false)
	w.check(ctx)
	require.False(t, w.Online())

	p.up.Store(true)
	w.check(ctx)
	require.True(t, w.Online())

	select {
	case <-ch:
	case <-time.After(time.Second):
		t.Fatal("expected a notification after reconnect")
	}
}

func TestWatcher_StartsOffline(t *testing.T) {
	w := NewWatcher(&fakePinger{}, time.Hour, watcherLogger())
	assert.False(t, w.Online())
}
