package saved

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-drift/flowstate/pkg/core"
	flowerrors "github.com/go-drift/flowstate/pkg/errors"
	"github.com/go-drift/flowstate/pkg/stream"
	flowtest "github.com/go-drift/flowstate/pkg/testing"
)

func TestStateInRoundTripAcrossCells(t *testing.T) {
	h := NewHandle(NewMemoryStore())

	scope1 := core.NewScope(context.Background())
	src := flowtest.NewRecordingSource[int]()
	first, err := StateIn[int](scope1, h, "counter", src, 0, WithStarted(stream.Eagerly()))
	require.NoError(t, err)
	require.Eventually(t, func() bool { return src.Active() == 1 }, waitFor, tick)
	src.Emit(1)
	src.Emit(2)
	src.Emit(3)
	assert.Equal(t, 3, first.Value())
	scope1.Close()

	second, err := StateIn(newScope(t), h, "counter", stream.Pending[int](), -1)
	require.NoError(t, err)
	assert.Equal(t, 3, second.Value())
	assert.Equal(t, "counter", second.Key())
}

func TestStateInAbsentValueIsNotWritten(t *testing.T) {
	store := NewMemoryStore()
	h := NewHandle(store)
	cell, err := StateIn(newScope(t), h, "k", stream.Pending[string](), "init")
	require.NoError(t, err)

	assert.Equal(t, "init", cell.Value())
	assert.Zero(t, store.Len())
	_, ok, err := cell.Stored()
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStateInWritesBeforePublishing(t *testing.T) {
	h := NewHandle(NewMemoryStore())
	src := flowtest.NewRecordingSource[string]()
	cell, err := StateIn[string](newScope(t), h, "word", src, "init")
	require.NoError(t, err)
	assert.Equal(t, stream.WhileSubscribed(DefaultStopTimeout, stream.Never), cell.Started())

	var seen collected[string]
	var storedAtDelivery collected[string]
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	cell.Observe(ctx, func(v string) {
		seen.add(v)
		if stored, ok, _ := cell.Stored(); ok {
			storedAtDelivery.add(stored)
		}
	}, func(error) {})

	require.Eventually(t, func() bool { return src.Active() == 1 }, waitFor, tick)
	src.Emit("a")
	src.Emit("b")
	src.Emit("c")

	assert.Equal(t, []string{"init", "a", "b", "c"}, seen.get())
	assert.Equal(t, []string{"a", "b", "c"}, storedAtDelivery.get())
	stored, ok, err := cell.Stored()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "c", stored)
}

func TestStateInWriteFailureStopsSharing(t *testing.T) {
	store := newFlakyStore()
	sink := newErrorSink()
	h := NewHandle(store)
	src := flowtest.NewRecordingSource[int]()
	cell, err := StateIn[int](newScope(t, core.Config{ErrorHandler: sink}), h, "n", src, 0)
	require.NoError(t, err)

	var seen collected[int]
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	cell.Observe(ctx, seen.add, func(error) {})
	require.Eventually(t, func() bool { return src.Active() == 1 }, waitFor, tick)

	src.Emit(1)
	store.broken.Store(true)
	src.Emit(2)

	fe := sink.next(t)
	assert.Equal(t, flowerrors.KindStore, fe.Kind)
	assert.ErrorIs(t, fe, errDiskFull)
	require.Eventually(t, func() bool { return src.Active() == 0 }, waitFor, tick)

	assert.Equal(t, []int{0, 1, 2}, seen.get())
	stored, _, err := cell.Stored()
	require.NoError(t, err)
	assert.Equal(t, 1, stored)
}

func TestStateInDecodeFailure(t *testing.T) {
	store := NewMemoryStore()
	require.NoError(t, store.Set("n", []byte("{not: [an int")))
	cell, err := StateIn(newScope(t), NewHandle(store), "n", stream.Pending[int](), 0)
	assert.Nil(t, cell)
	assert.Equal(t, flowerrors.KindCodec, flowerrors.KindOf(err))
}

func TestStateInResetPolicies(t *testing.T) {
	tests := []struct {
		name   string
		policy ResetPolicy
		want   int
	}{
		{name: "stored", policy: ResetToStored, want: 99},
		{name: "initial", policy: ResetToInitial, want: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clk := flowtest.NewFakeClock()
			h := NewHandle(NewMemoryStore())
			src := flowtest.NewRecordingSource[int]()
			cell, err := StateIn[int](newScope(t, core.Config{Clock: clk}), h, "n", src, 1,
				WithStarted(stream.WhileSubscribed(0, 10*time.Second)),
				WithReset(tt.policy))
			require.NoError(t, err)

			ctx, cancel := context.WithCancel(context.Background())
			cell.Observe(ctx, func(int) {}, func(error) {})
			require.Eventually(t, func() bool { return src.Active() == 1 }, waitFor, tick)
			src.Emit(5)
			cancel()
			require.Eventually(t, func() bool { return cell.SubscriptionCount() == 0 }, waitFor, tick)

			require.NoError(t, Set(h, "n", 99))
			assert.Equal(t, 5, cell.Value())
			clk.Advance(10 * time.Second)
			assert.Equal(t, tt.want, cell.Value())
		})
	}
}

func TestResetPolicyParse(t *testing.T) {
	for _, p := range []ResetPolicy{ResetToStored, ResetToInitial} {
		parsed, err := ParseResetPolicy(p.String())
		require.NoError(t, err)
		assert.Equal(t, p, parsed)
	}
	_, err := ParseResetPolicy("latest")
	assert.Error(t, err)
}
