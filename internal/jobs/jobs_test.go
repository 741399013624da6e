package jobs

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	followupsvc "github.com/matti-app/matti/backend/internal/service/followup"
)

type countingSweeper struct {
	calls atomic.Int32
	err   error
}

func (s *countingSweeper) Sweep(context.Context) (followupsvc.SweepResult, error) {
	s.calls.Add(1)
	return followupsvc.SweepResult{Sent: 1}, s.err
}

type countingArchiver struct{ calls atomic.Int32 }

func (a *countingArchiver) ArchiveIdle(context.Context) (int, error) {
	a.calls.Add(1)
	return 0, nil
}

func TestRunOnce(t *testing.T) {
	sweeper, archiver := &countingSweeper{}, &countingArchiver{}
	sweeps := Sweeps{FollowUps: sweeper, Archiver: archiver}

	require.NoError(t, sweeps.RunOnce(context.Background()))
	assert.Equal(t, int32(1), sweeper.calls.Load())
	assert.Equal(t, int32(1), archiver.calls.Load())

	sweeper.err = errors.New("db down")
	err := sweeps.RunOnce(context.Background())
	assert.ErrorContains(t, err, "follow-up sweep")
	assert.Equal(t, int32(1), archiver.calls.Load())
}

func TestTickerRunnerRunsUntilStopped(t *testing.T) {
	sweeper, archiver := &countingSweeper{}, &countingArchiver{}
	r := NewTickerRunner(Sweeps{FollowUps: sweeper, Archiver: archiver}, Intervals{
		FollowUp: 10 * time.Millisecond,
		Archive:  10 * time.Millisecond,
	})

	require.NoError(t, r.Start(context.Background()))
	assert.Eventually(t, func() bool {
		return sweeper.calls.Load() >= 3 && archiver.calls.Load() >= 3
	}, time.Second, 5*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, r.Stop(ctx))

	after := sweeper.calls.Load()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, after, sweeper.calls.Load())
	require.NoError(t, r.Stop(ctx))
}

func TestIntervalsDefaults(t *testing.T) {
	got := Intervals{}.withDefaults()
	assert.Equal(t, 15*time.Minute, got.FollowUp)
	assert.Equal(t, 5*time.Minute, got.Archive)

	jobs := periodicJobs(got)
	assert.Len(t, jobs, 2)
}
