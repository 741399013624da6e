package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"
	"github.com/riverqueue/river/rivermigrate"
	"github.com/rs/zerolog"
)

// FollowUpSweepArgs triggers one follow-up sweep.
type FollowUpSweepArgs struct{}

func (FollowUpSweepArgs) Kind() string { return "follow_up_sweep" }

// IdleArchiveArgs triggers one idle-conversation sweep.
type IdleArchiveArgs struct{}

func (IdleArchiveArgs) Kind() string { return "idle_archive" }

// FollowUpSweepWorker runs FollowUpSweepArgs jobs.
type FollowUpSweepWorker struct {
	river.WorkerDefaults[FollowUpSweepArgs]
	sweeps Sweeps
}

func (w *FollowUpSweepWorker) Work(ctx context.Context, _ *river.Job[FollowUpSweepArgs]) error {
	return w.sweeps.followUps(ctx)
}

func (w *FollowUpSweepWorker) Timeout(*river.Job[FollowUpSweepArgs]) time.Duration {
	return 5 * time.Minute
}

// IdleArchiveWorker runs IdleArchiveArgs jobs.
type IdleArchiveWorker struct {
	river.WorkerDefaults[IdleArchiveArgs]
	sweeps Sweeps
}

func (w *IdleArchiveWorker) Work(ctx context.Context, _ *river.Job[IdleArchiveArgs]) error {
	return w.sweeps.archive(ctx)
}

// RiverRunner schedules the sweeps as River periodic jobs on PostgreSQL so
// only one instance runs each sweep.
type RiverRunner struct {
	client *river.Client[pgx.Tx]
	pool   *pgxpool.Pool
}

// NewRiverRunner connects to databaseURL and prepares the River client.
func NewRiverRunner(ctx context.Context, databaseURL string, sweeps Sweeps, every Intervals) (*RiverRunner, error) {
	every = every.withDefaults()

	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}

	workers := river.NewWorkers()
	river.AddWorker(workers, &FollowUpSweepWorker{sweeps: sweeps})
	river.AddWorker(workers, &IdleArchiveWorker{sweeps: sweeps})

	client, err := river.NewClient(riverpgxv5.New(pool), &river.Config{
		Queues: map[string]river.QueueConfig{
			river.QueueDefault: {MaxWorkers: 2},
		},
		Workers:      workers,
		PeriodicJobs: periodicJobs(every),
	})
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("create River client: %w", err)
	}

	return &RiverRunner{client: client, pool: pool}, nil
}

func periodicJobs(every Intervals) []*river.PeriodicJob {
	return []*river.PeriodicJob{
		river.NewPeriodicJob(
			river.PeriodicInterval(every.FollowUp),
			func() (river.JobArgs, *river.InsertOpts) {
				return FollowUpSweepArgs{}, &river.InsertOpts{MaxAttempts: 3}
			},
			&river.PeriodicJobOpts{RunOnStart: true},
		),
		river.NewPeriodicJob(
			river.PeriodicInterval(every.Archive),
			func() (river.JobArgs, *river.InsertOpts) {
				return IdleArchiveArgs{}, &river.InsertOpts{MaxAttempts: 3}
			},
			&river.PeriodicJobOpts{RunOnStart: true},
		),
	}
}

func (r *RiverRunner) Start(ctx context.Context) error {
	zerolog.Ctx(ctx).Info().Str("component", "jobs").Msg("starting River workers")
	return r.client.Start(ctx)
}

func (r *RiverRunner) Stop(ctx context.Context) error {
	defer r.pool.Close()
	return r.client.Stop(ctx)
}

// MigrateRiver creates or upgrades River's tables.
func MigrateRiver(ctx context.Context, databaseURL string) error {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return fmt.Errorf("create connection pool: %w", err)
	}
	defer pool.Close()

	migrator, err := rivermigrate.New(riverpgxv5.New(pool), nil)
	if err != nil {
		return fmt.Errorf("create River migrator: %w", err)
	}
	res, err := migrator.Migrate(ctx, rivermigrate.DirectionUp, nil)
	if err != nil {
		return fmt.Errorf("migrate River: %w", err)
	}
	for _, v := range res.Versions {
		zerolog.Ctx(ctx).Info().Str("component", "jobs").Int("version", v.Version).Msg("River migration applied")
	}
	return nil
}
