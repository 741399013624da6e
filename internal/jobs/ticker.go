package jobs

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// TickerRunner runs the sweeps in-process on fixed intervals. It is used
// with SQLite, where River has no driver.
type TickerRunner struct {
	sweeps Sweeps
	every  Intervals

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func NewTickerRunner(sweeps Sweeps, every Intervals) *TickerRunner {
	return &TickerRunner{sweeps: sweeps, every: every.withDefaults()}
}

// Start runs both sweeps once, then keeps running them until Stop.
func (r *TickerRunner) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancel != nil {
		return nil
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	r.cancel = cancel
	r.done = make(chan struct{})
	go r.loop(runCtx)
	return nil
}

func (r *TickerRunner) loop(ctx context.Context) {
	defer close(r.done)
	log := zerolog.Ctx(ctx).With().Str("component", "jobs").Logger()

	followUps := time.NewTicker(r.every.FollowUp)
	defer followUps.Stop()
	archive := time.NewTicker(r.every.Archive)
	defer archive.Stop()

	run := func(name string, fn func(context.Context) error) {
		if err := fn(ctx); err != nil && ctx.Err() == nil {
			log.Error().Err(err).Str("sweep", name).Msg("sweep failed")
		}
	}

	run("follow_up", r.sweeps.followUps)
	run("archive", r.sweeps.archive)
	for {
		select {
		case <-ctx.Done():
			return
		case <-followUps.C:
			run("follow_up", r.sweeps.followUps)
		case <-archive.C:
			run("archive", r.sweeps.archive)
		}
	}
}

// Stop ends the loop and waits for a running sweep to finish or ctx to expire.
func (r *TickerRunner) Stop(ctx context.Context) error {
	r.mu.Lock()
	cancel, done := r.cancel, r.done
	r.cancel = nil
	r.mu.Unlock()
	if cancel == nil {
		return nil
	}

	cancel()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
