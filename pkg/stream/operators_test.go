package stream

import (
	"context"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMapFilterOnEach(t *testing.T) {
	var peeked []int
	src := Map(
		OnEach(Filter(Just(1, 2, 3, 4), func(v int) bool { return v%2 == 0 }), func(v int) { peeked = append(peeked, v) }),
		strconv.Itoa,
	)
	got, err := ToSlice(context.Background(), src)
	require.NoError(t, err)
	assert.Equal(t, []string{"2", "4"}, got)
	assert.Equal(t, []int{2, 4}, peeked)
}

func TestDistinctDropsConsecutiveDuplicates(t *testing.T) {
	got, err := ToSlice(context.Background(), Distinct(Just(1, 1, 2, 2, 1, 3, 3)))
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 1, 3}, got)
}

func TestTake(t *testing.T) {
	got, err := ToSlice(context.Background(), Take(Just(1, 2, 3, 4), 2))
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, got)

	got, err = ToSlice(context.Background(), Take(Just(1, 2), 0))
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestTakeCancelsUpstream(t *testing.T) {
	state := NewMutableState(0)
	got, err := ToSlice(context.Background(), Take[int](state, 1))
	require.NoError(t, err)
	assert.Equal(t, []int{0}, got)
	assert.Eventually(t, func() bool { return state.SubscriptionCount() == 0 }, waitFor, tick)
}
