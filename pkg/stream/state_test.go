package stream

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMutableStateReplaysCurrentValue(t *testing.T) {
	state := NewMutableState("a")
	state.Set("b")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	r := newRecorder[string]()
	r.observe(ctx, state)
	state.Set("c")

	assert.Equal(t, []string{"b", "c"}, r.Values())
	assert.Equal(t, "c", state.Value())
}

func TestMutableStateDeliversEveryChangeInOrder(t *testing.T) {
	state := NewMutableState(0)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	r := newRecorder[int]()
	r.observe(ctx, state)

	for i := 1; i <= 100; i++ {
		state.Set(i)
	}
	values := r.Values()
	require.Len(t, values, 101)
	for i, v := range values {
		assert.Equal(t, i, v)
	}
}

func TestMutableStateEquality(t *testing.T) {
	state := NewMutableStateWithEquality(1, func(a, b int) bool { return a == b })
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	r := newRecorder[int]()
	r.observe(ctx, state)

	state.Set(1)
	state.Set(2)
	state.Update(func(v int) int { return v })
	assert.Equal(t, []int{1, 2}, r.Values())
}

func TestMutableStateCancelRemovesObserver(t *testing.T) {
	state := NewMutableState(0)
	ctx, cancel := context.WithCancel(context.Background())
	r := newRecorder[int]()
	r.observe(ctx, state)
	require.Equal(t, 1, state.SubscriptionCount())

	cancel()
	assert.ErrorIs(t, <-r.done, context.Canceled)
	assert.Zero(t, state.SubscriptionCount())

	state.Set(5)
	assert.Equal(t, []int{0}, r.Values())
}

func TestMutableStateObserveCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r := newRecorder[int]()
	r.observe(ctx, NewMutableState(3))
	assert.ErrorIs(t, <-r.done, context.Canceled)
	assert.Empty(t, r.Values())
}

func TestMutableStateConcurrentUpdates(t *testing.T) {
	state := NewMutableState(0)
	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			state.Update(func(v int) int { return v + 1 })
		}()
	}
	wg.Wait()
	assert.Equal(t, 50, state.Value())
}
