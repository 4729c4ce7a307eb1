package gossip

import (
	"context"
	"time"

	"github.com/clawster/clawster/pkg/log"
)

// Runner drives gossip rounds on a fixed interval. It is scheduled
// independently of the election loop; a slow round never stalls lease
// renewal and vice versa.
type Runner struct {
	protocol *Protocol
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// NewRunner creates a runner for the given protocol.
func NewRunner(p *Protocol) *Runner {
	return &Runner{
		protocol: p,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start begins the round loop.
func (r *Runner) Start(ctx context.Context) {
	go r.run(ctx)
}

// Stop stops the round loop and waits for the in-flight round to finish.
func (r *Runner) Stop() {
	close(r.stopCh)
	<-r.doneCh
}

func (r *Runner) run(ctx context.Context) {
	defer close(r.doneCh)

	ticker := time.NewTicker(r.protocol.Interval())
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if _, err := r.protocol.Round(ctx); err != nil {
				log.WithComponent("gossip").Error().Err(err).Msg("Round failed")
			}
		case <-r.stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}
