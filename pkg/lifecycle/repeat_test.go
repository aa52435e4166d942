package lifecycle

import (
	"context"
	"errors"
	"math/rand/v2"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	flowerrors "github.com/go-drift/flowstate/pkg/errors"
	"github.com/go-drift/flowstate/pkg/stream"
	flowtest "github.com/go-drift/flowstate/pkg/testing"
)

const (
	waitFor = 2 * time.Second
	tick    = 5 * time.Millisecond
)

type runCounter struct {
	starts  atomic.Int32
	stops   atomic.Int32
	running atomic.Int32
	overlap atomic.Bool
}

func (c *runCounter) block(ctx context.Context) error {
	if c.running.Add(1) > 1 {
		c.overlap.Store(true)
	}
	c.starts.Add(1)
	<-ctx.Done()
	time.Sleep(time.Millisecond)
	c.running.Add(-1)
	c.stops.Add(1)
	return ctx.Err()
}

func repeatAsync(ctx context.Context, signal Signal, threshold State, block func(context.Context) error) <-chan error {
	done := make(chan error, 1)
	go func() { done <- RepeatOnLifecycle(ctx, signal, threshold, block) }()
	return done
}

func TestRepeatOnLifecycleFollowsThreshold(t *testing.T) {
	reg := NewRegistry()
	var c runCounter
	done := repeatAsync(context.Background(), reg, Started, c.block)

	require.NoError(t, reg.SetState(Created))
	require.NoError(t, reg.SetState(Started))
	require.Eventually(t, func() bool { return c.starts.Load() == 1 }, waitFor, tick)

	require.NoError(t, reg.SetState(Resumed))
	require.NoError(t, reg.SetState(Started))
	require.NoError(t, reg.SetState(Created))
	require.Eventually(t, func() bool { return c.stops.Load() == 1 }, waitFor, tick)

	require.NoError(t, reg.SetState(Resumed))
	require.Eventually(t, func() bool { return c.starts.Load() == 2 }, waitFor, tick)

	require.NoError(t, reg.SetState(Destroyed))
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(waitFor):
		t.Fatal("RepeatOnLifecycle did not return on Destroyed")
	}
	assert.Equal(t, int32(2), c.stops.Load())
	assert.False(t, c.overlap.Load())
	assert.Zero(t, reg.ObserverCount())
}

func TestRepeatOnLifecycleInvalidThreshold(t *testing.T) {
	reg := NewRegistry()
	for _, threshold := range []State{Initialized, Destroyed, State(42)} {
		err := RepeatOnLifecycle(context.Background(), reg, threshold, func(context.Context) error { return nil })
		assert.ErrorIs(t, err, ErrInvalidThreshold)
	}
	assert.Zero(t, reg.ObserverCount())
}

func TestRepeatOnLifecycleReturnsBlockError(t *testing.T) {
	reg := NewRegistry()
	boom := errors.New("boom")
	done := repeatAsync(context.Background(), reg, Created, func(context.Context) error { return boom })
	require.NoError(t, reg.SetState(Created))

	select {
	case err := <-done:
		assert.ErrorIs(t, err, boom)
	case <-time.After(waitFor):
		t.Fatal("block failure was not returned")
	}
}

func TestRepeatOnLifecycleRecoversPanic(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.SetState(Resumed))
	err := RepeatOnLifecycle(context.Background(), reg, Resumed, func(context.Context) error { panic("bad block") })

	var perr *flowerrors.PanicError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "bad block", perr.Value)
}

func TestRepeatOnLifecycleCompletedBlockWaitsForNextCrossing(t *testing.T) {
	reg := NewRegistry()
	var runs atomic.Int32
	ctx, cancel := context.WithCancel(context.Background())
	done := repeatAsync(ctx, reg, Started, func(context.Context) error {
		runs.Add(1)
		return nil
	})

	require.NoError(t, reg.SetState(Started))
	require.Eventually(t, func() bool { return runs.Load() == 1 }, waitFor, tick)
	require.NoError(t, reg.SetState(Resumed))
	require.NoError(t, reg.SetState(Started))
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int32(1), runs.Load())

	require.NoError(t, reg.SetState(Created))
	require.NoError(t, reg.SetState(Started))
	require.Eventually(t, func() bool { return runs.Load() == 2 }, waitFor, tick)

	cancel()
	require.NoError(t, <-done)
}

func TestRepeatOnLifecycleCancelStopsRun(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.SetState(Started))
	var c runCounter
	ctx, cancel := context.WithCancel(context.Background())
	done := repeatAsync(ctx, reg, Started, c.block)
	require.Eventually(t, func() bool { return c.starts.Load() == 1 }, waitFor, tick)

	cancel()
	require.NoError(t, <-done)
	assert.Equal(t, int32(1), c.stops.Load())
	assert.Zero(t, reg.ObserverCount())
}

func TestWithLifecycleGatesSource(t *testing.T) {
	reg := NewRegistry()
	src := flowtest.NewRecordingSource[int]()
	gated := WithLifecycle[int](src, reg, Started)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var got atomic.Int32
	completed := make(chan error, 1)
	gated.Observe(ctx, func(v int) { got.Add(int32(v)) }, func(err error) { completed <- err })

	require.NoError(t, reg.SetState(Created))
	assert.Zero(t, src.Subscribes())

	require.NoError(t, reg.SetState(Started))
	require.Eventually(t, func() bool { return src.Active() == 1 }, waitFor, tick)
	src.Emit(5)

	require.NoError(t, reg.SetState(Created))
	require.Eventually(t, func() bool { return src.Active() == 0 }, waitFor, tick)
	assert.Zero(t, src.Emit(100))

	require.NoError(t, reg.SetState(Destroyed))
	require.NoError(t, <-completed)
	assert.Equal(t, int32(5), got.Load())
	assert.Equal(t, 1, src.Subscribes())
}

func TestWithLifecycleInvalidThreshold(t *testing.T) {
	_, err := stream.ToSlice(context.Background(), WithLifecycle(stream.Just(1), NewRegistry(), Initialized))
	assert.ErrorIs(t, err, ErrInvalidThreshold)
}

// Drives a random trajectory and checks that the source is observed
// exactly when the signal is at or above the threshold, and that
// subscriptions match crossings one for one.
func TestWithLifecycleRandomTrajectory(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 11))
	states := []State{Created, Started, Resumed}

	for _, threshold := range states {
		reg := NewRegistry()
		src := flowtest.NewRecordingSource[int]()
		ctx, cancel := context.WithCancel(context.Background())
		completed := make(chan error, 1)
		WithLifecycle[int](src, reg, threshold).Observe(ctx, func(int) {}, func(err error) { completed <- err })

		var up, down int
		above := false
		for range 40 {
			next := states[rng.IntN(len(states))]
			require.NoError(t, reg.SetState(next))
			nowAbove := next.IsAtLeast(threshold)
			if nowAbove && !above {
				up++
			}
			if !nowAbove && above {
				down++
			}
			above = nowAbove

			want := 0
			if above {
				want = 1
			}
			require.Eventually(t, func() bool { return src.Active() == want }, waitFor, tick,
				"threshold %s state %s", threshold, next)
			require.Eventually(t, func() bool { return src.Subscribes() == up }, waitFor, tick)
		}
		assert.Equal(t, up, src.Subscribes())
		assert.Equal(t, down, src.Unsubscribes())

		cancel()
		assert.ErrorIs(t, <-completed, context.Canceled)
	}
}
