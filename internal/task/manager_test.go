package task

import (
	"context"
	"io"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/hwmon/monitor/logger"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newTestManager(t *testing.T, clock clockwork.Clock) *Manager {
	t.Helper()
	mgr := NewManager(context.Background(), logger.New(logger.WithOutput(io.Discard)), clock)
	t.Cleanup(func() {
		mgr.Stop()
		mgr.Wait()
	})

	return mgr
}

func TestManager_StartStopsOnFalse(t *testing.T) {
	mgr := newTestManager(t, nil)

	var runs atomic.Int32
	exited := make(chan struct{})
	err := mgr.Start("counter", func() bool {
		return runs.Add(1) < 3
	}, func() { close(exited) })
	require.NoError(t, err)

	select {
	case <-exited:
	case <-time.After(time.Second):
		t.Fatal("task did not exit")
	}
	assert.Equal(t, int32(3), runs.Load())
}

func TestManager_GoReceivesCancellation(t *testing.T) {
	mgr := NewManager(context.Background(), logger.New(logger.WithOutput(io.Discard)), nil)

	started := make(chan struct{})
	require.NoError(t, mgr.Go("blocker", func(ctx context.Context) {
		close(started)
		<-ctx.Done()
	}))
	<-started
	assert.Equal(t, 1, mgr.TaskCount())

	mgr.Stop()
	mgr.Wait()
	assert.Equal(t, 0, mgr.TaskCount())
}

func TestManager_StartAfterStop(t *testing.T) {
	mgr := NewManager(context.Background(), logger.New(logger.WithOutput(io.Discard)), nil)
	mgr.Stop()

	err := mgr.Go("late", func(context.Context) {})
	require.ErrorIs(t, err, ErrStopped)

	mgr.Wait()
	require.NoError(t, mgr.Go("rearmed", func(context.Context) {}))
	mgr.Stop()
	mgr.Wait()
}

func TestManager_PanicIsRecovered(t *testing.T) {
	mgr := newTestManager(t, nil)

	exited := make(chan struct{})
	require.NoError(t, mgr.Start("panicky", func() bool {
		panic("boom")
	}, func() { close(exited) }))

	select {
	case <-exited:
	case <-time.After(time.Second):
		t.Fatal("panicking task did not exit")
	}
}

func TestManager_StartInterval(t *testing.T) {
	clock := clockwork.NewFakeClock()
	mgr := newTestManager(t, clock)

	ticks := make(chan struct{}, 10)
	err := mgr.StartInterval("tick", func() bool {
		ticks <- struct{}{}
		return true
	}, time.Second, true)
	require.NoError(t, err)

	// runNow executes synchronously
	require.Len(t, ticks, 1)
	<-ticks

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, clock.BlockUntilContext(ctx, 1))

	clock.Advance(time.Second)
	select {
	case <-ticks:
	case <-time.After(time.Second):
		t.Fatal("interval did not fire")
	}

	err = mgr.StartInterval("tick", func() bool { return true }, time.Second, false)
	require.ErrorIs(t, err, ErrIntervalExists)
}

func TestManager_InvalidInterval(t *testing.T) {
	mgr := newTestManager(t, nil)

	err := mgr.StartInterval("bad", func() bool { return true }, 0, false)
	require.Error(t, err)
}
