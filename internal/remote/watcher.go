package remote

import (
	"context"
	"sync"
	"time"

	"github.com/dmitrijs2005/aircater/internal/logging"
	"github.com/sethvargo/go-retry"
)

// Pinger is the slice of Client the watcher needs.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Watcher probes server reachability on an interval and notifies subscribers
// when connectivity comes back, which is the sync engine's cue to drain.
type Watcher struct {
	pinger   Pinger
	interval time.Duration
	log      logging.Logger

	mu     sync.Mutex
	known  bool
	online bool
	subs   []chan struct{}
}

func NewWatcher(pinger Pinger, interval time.Duration, log logging.Logger) *Watcher {
	return &Watcher{pinger: pinger, interval: interval, log: log}
}

// Online reports the last observed connectivity state.
func (w *Watcher) Online() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.online
}

// Notify returns a channel that receives a value on every offline→online
// transition. The first probe only establishes the baseline and never
// signals. The channel is buffered; a slow consumer misses coalesced
// signals, not transitions that matter.
func (w *Watcher) Notify() <-chan struct{} {
	ch := make(chan struct{}, 1)
	w.mu.Lock()
	w.subs = append(w.subs, ch)
	w.mu.Unlock()
	return ch
}

// Run probes until ctx is cancelled. Each probe tolerates short blips with a
// capped exponential backoff before declaring the server unreachable.
func (w *Watcher) Run(ctx context.Context) {
	w.check(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			w.check(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (w *Watcher) check(ctx context.Context) {
	probe := func(ctx context.Context) error {
		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		defer cancel()
		if err := w.pinger.Ping(pingCtx); err != nil {
			return retry.RetryableError(err)
		}
		return nil
	}

	backoff := retry.WithMaxRetries(2, retry.NewExponential(500*time.Millisecond))
	err := retry.Do(ctx, backoff, probe)

	w.setOnline(ctx, err == nil)
}

func (w *Watcher) setOnline(ctx context.Context, online bool) {
	w.mu.Lock()
	first := !w.known
	changed := w.known && w.online != online
	w.known = true
	w.online = online
	var subs []chan struct{}
	if changed && online {
		subs = append(subs, w.subs...)
	}
	w.mu.Unlock()

	if first {
		if online {
			w.log.Info(ctx, "server reachable")
		} else {
			w.log.Warn(ctx, "server unreachable, starting in offline mode")
		}
		return
	}
	if !changed {
		return
	}

	if online {
		w.log.Info(ctx, "connectivity restored")
		for _, ch := range subs {
			select {
			case ch <- struct{}{}:
			default:
			}
		}
	} else {
		w.log.Warn(ctx, "server unreachable, switching to offline mode")
	}
}
