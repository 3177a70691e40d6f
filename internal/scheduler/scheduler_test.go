package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/couchcryptid/lst-anomaly-etl/internal/observability"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestScheduler(timeout time.Duration) *Scheduler {
	return New(timeout, observability.DiscardLogger(), observability.NewMetricsForTesting())
}

func TestAdd_RejectsDuplicateAndBadSpec(t *testing.T) {
	s := newTestScheduler(time.Second)
	noop := func(context.Context) error { return nil }

	require.NoError(t, s.Add("threshold", "0 6 * * *", noop))
	err := s.Add("threshold", "0 7 * * *", noop)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already scheduled")

	err = s.Add("score", "not a spec", noop)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "schedule job score")
}

func TestNext(t *testing.T) {
	s := newTestScheduler(time.Second)
	require.NoError(t, s.Add("threshold", "0 6 * * *", func(context.Context) error { return nil }))

	_, ok := s.Next("missing")
	assert.False(t, ok)

	s.Start()
	defer func() { _ = s.Stop(context.Background()) }()
	next, ok := s.Next("threshold")
	require.True(t, ok)
	assert.Equal(t, 6, next.UTC().Hour())
	assert.Equal(t, 0, next.UTC().Minute())
}

func TestRunNow_AppliesTimeout(t *testing.T) {
	s := newTestScheduler(20 * time.Millisecond)
	err := s.RunNow("slow", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRunNow_PropagatesError(t *testing.T) {
	s := newTestScheduler(time.Second)
	boom := errors.New("boom")
	assert.ErrorIs(t, s.RunNow("x", func(context.Context) error { return boom }), boom)
}

func TestStartStop_TracksAliveGauge(t *testing.T) {
	m := observability.NewMetricsForTesting()
	s := New(time.Second, observability.DiscardLogger(), m)

	s.Start()
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SchedulerAlive))

	require.NoError(t, s.Stop(context.Background()))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.SchedulerAlive))
}

func TestStop_CancelsRunningJobContext(t *testing.T) {
	s := newTestScheduler(0)
	started := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- s.RunNow("long", func(ctx context.Context) error {
			close(started)
			<-ctx.Done()
			return ctx.Err()
		})
	}()
	<-started
	require.NoError(t, s.Stop(context.Background()))
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("job was not cancelled")
	}
}
