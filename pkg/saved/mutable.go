package saved

import (
	"context"
	"sync"

	"github.com/go-drift/flowstate/pkg/stream"
)

// MutableSaved is a settable hot state saved under a key. A value is
// published only after it has been written.
type MutableSaved[T any] struct {
	handle *Handle
	key    string
	state  *stream.MutableState[T]

	mu sync.Mutex // orders writes with publishes
}

var _ stream.StateSource[int] = (*MutableSaved[int])(nil)

// MutableStateIn returns a settable state starting from the value saved
// under key, or from initial when none is saved.
func MutableStateIn[T any](h *Handle, key string, initial T) (*MutableSaved[T], error) {
	v, ok, err := Get[T](h, key)
	if err != nil {
		return nil, err
	}
	if !ok {
		v = initial
	}
	return &MutableSaved[T]{
		handle: h,
		key:    key,
		state:  stream.NewMutableState(v),
	}, nil
}

// Key returns the key values are saved under, without namespace.
func (m *MutableSaved[T]) Key() string { return m.key }

// Value returns the current value.
func (m *MutableSaved[T]) Value() T { return m.state.Value() }

// Observe implements stream.Source.
func (m *MutableSaved[T]) Observe(ctx context.Context, next func(T), complete func(error)) {
	m.state.Observe(ctx, next, complete)
}

// SubscriptionCount returns the number of active observers.
func (m *MutableSaved[T]) SubscriptionCount() int { return m.state.SubscriptionCount() }

// Set writes v, then publishes it. On error nothing is published and the
// current value is unchanged.
func (m *MutableSaved[T]) Set(v T) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.setLocked(v)
}

// Update sets the value to fn(current).
func (m *MutableSaved[T]) Update(fn func(T) T) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.setLocked(fn(m.state.Value()))
}

func (m *MutableSaved[T]) setLocked(v T) error {
	if err := Set(m.handle, m.key, v); err != nil {
		return err
	}
	m.state.Set(v)
	return nil
}
