// Package jobs runs the periodic follow-up and idle-archive sweeps.
package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	followupsvc "github.com/matti-app/matti/backend/internal/service/followup"
)

// FollowUpSweeper delivers due follow-ups.
type FollowUpSweeper interface {
	Sweep(ctx context.Context) (followupsvc.SweepResult, error)
}

// IdleArchiver archives conversations nobody touched for a while.
type IdleArchiver interface {
	ArchiveIdle(ctx context.Context) (int, error)
}

// Runner runs the sweeps in the background until stopped.
type Runner interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// Intervals sets how often each sweep runs.
type Intervals struct {
	FollowUp time.Duration
	Archive  time.Duration
}

func (i Intervals) withDefaults() Intervals {
	if i.FollowUp <= 0 {
		i.FollowUp = 15 * time.Minute
	}
	if i.Archive <= 0 {
		i.Archive = 5 * time.Minute
	}
	return i
}

// Sweeps bundles the work every runner performs.
type Sweeps struct {
	FollowUps FollowUpSweeper
	Archiver  IdleArchiver
}

func (s Sweeps) followUps(ctx context.Context) error {
	res, err := s.FollowUps.Sweep(ctx)
	if err != nil {
		return fmt.Errorf("follow-up sweep: %w", err)
	}
	zerolog.Ctx(ctx).Debug().
		Str("component", "jobs").
		Int("sent", res.Sent).
		Int("skipped", res.Skipped).
		Int("failed", res.Failed).
		Msg("follow-up sweep ran")
	return nil
}

func (s Sweeps) archive(ctx context.Context) error {
	n, err := s.Archiver.ArchiveIdle(ctx)
	if err != nil {
		return fmt.Errorf("idle archive: %w", err)
	}
	zerolog.Ctx(ctx).Debug().Str("component", "jobs").Int("archived", n).Msg("idle archive ran")
	return nil
}

// RunOnce performs both sweeps a single time.
func (s Sweeps) RunOnce(ctx context.Context) error {
	if err := s.followUps(ctx); err != nil {
		return err
	}
	return s.archive(ctx)
}
