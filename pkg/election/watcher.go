package election

import (
	"context"
	"time"

	"github.com/clawster/clawster/pkg/log"
)

// Watcher drives the election on a periodic loop: followers attempt
// acquisition every tick, the leader renews once the lease has consumed
// half its TTL. The loop runs independently of gossip; a slow store call
// here never stalls a gossip round.
type Watcher struct {
	election *Election
	interval time.Duration
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// NewWatcher creates a watcher for the given election. The tick interval
// defaults to a third of the lock TTL so a healthy leader always renews
// well before expiry.
func NewWatcher(e *Election, opts ...WatcherOption) *Watcher {
	w := &Watcher{
		election: e,
		interval: e.LockTTL() / 3,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithInterval overrides the tick interval.
func WithInterval(interval time.Duration) WatcherOption {
	return func(w *Watcher) { w.interval = interval }
}

// Start begins the election loop.
func (w *Watcher) Start(ctx context.Context) {
	go w.run(ctx)
}

// Stop stops the election loop and waits for it to exit.
func (w *Watcher) Stop() {
	close(w.stopCh)
	<-w.doneCh
}

func (w *Watcher) run(ctx context.Context) {
	defer close(w.doneCh)

	// Contend immediately rather than waiting out the first tick.
	w.tick(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			w.tick(ctx)
		case <-w.stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}

// tick performs one election step. Store errors are logged and absorbed;
// the next tick retries naturally, and Renew itself demotes this node once
// the lease window has fully elapsed without a successful extension.
func (w *Watcher) tick(ctx context.Context) {
	if w.election.IsLeader() {
		if w.election.sinceExtended() < w.election.LockTTL()/2 {
			return
		}
		if _, err := w.election.Renew(ctx); err != nil {
			log.WithComponent("election").Error().Err(err).Msg("Lease renewal failed")
		}
		return
	}

	if _, err := w.election.TryAcquire(ctx); err != nil {
		log.WithComponent("election").Error().Err(err).Msg("Lease acquisition failed")
	}
}
