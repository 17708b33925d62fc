package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type countingRoller struct {
	calls atomic.Int32
	err   error
	panic bool
}

func (r *countingRoller) RolloverAll(ctx context.Context) error {
	r.calls.Add(1)
	if r.panic {
		panic("boom")
	}
	if _, ok := ctx.Deadline(); !ok {
		return errors.New("rollover context has no deadline")
	}
	return r.err
}

func TestScheduler_RunRollover(t *testing.T) {
	t.Parallel()

	r := &countingRoller{}
	s := New(r, "0 0 * * *", time.UTC)
	s.RunRollover()
	require.Equal(t, int32(1), r.calls.Load())

	r.err = errors.New("archive unavailable")
	require.NotPanics(t, s.RunRollover)
	require.Equal(t, int32(2), r.calls.Load())
}

func TestScheduler_InvalidSpec(t *testing.T) {
	t.Parallel()

	s := New(&countingRoller{}, "not a cron spec", time.UTC)
	require.Error(t, s.Start())
}

func TestScheduler_FiresOnSchedule(t *testing.T) {
	t.Parallel()

	r := &countingRoller{}
	s := New(r, "@every 1s", time.UTC)
	require.NoError(t, s.Start())
	t.Cleanup(func() { <-s.Stop().Done() })

	require.Eventually(t, func() bool { return r.calls.Load() >= 1 }, 5*time.Second, 50*time.Millisecond)
}

func TestScheduler_RecoversFromPanics(t *testing.T) {
	t.Parallel()

	r := &countingRoller{panic: true}
	s := New(r, "@every 1s", time.UTC)
	require.NoError(t, s.Start())
	t.Cleanup(func() { <-s.Stop().Done() })

	require.Eventually(t, func() bool { return r.calls.Load() >= 2 }, 5*time.Second, 50*time.Millisecond)
}
