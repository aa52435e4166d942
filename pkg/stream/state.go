package stream

import (
	"context"
	"slices"
	"sync"
)

// MutableState is a hot source holding one current value. Observers
// receive the current value when they subscribe, then every change in the
// order it was made; no change is skipped.
//
// Values are delivered synchronously by Set, one observer after the other.
// Observers must not call Set on the same state from their callback.
type MutableState[T any] struct {
	deliver sync.Mutex // serializes replay and delivery
	mu      sync.RWMutex
	value   T
	subs    map[uint64]*stateObserver[T]
	nextID  uint64
	equal   func(a, b T) bool
}

type stateObserver[T any] struct {
	next   func(T)
	closed bool
}

// NewMutableState creates a state holding initial.
func NewMutableState[T any](initial T) *MutableState[T] {
	return &MutableState[T]{value: initial}
}

// NewMutableStateWithEquality creates a state that ignores a Set of a
// value equal to the current one.
func NewMutableStateWithEquality[T any](initial T, equal func(a, b T) bool) *MutableState[T] {
	return &MutableState[T]{value: initial, equal: equal}
}

// Value returns the current value.
func (s *MutableState[T]) Value() T {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.value
}

// Set replaces the current value and delivers it to every observer.
func (s *MutableState[T]) Set(v T) {
	s.deliver.Lock()
	defer s.deliver.Unlock()
	s.setLocked(v)
}

// Update replaces the current value with transform(current).
func (s *MutableState[T]) Update(transform func(T) T) {
	s.deliver.Lock()
	defer s.deliver.Unlock()
	s.setLocked(transform(s.Value()))
}

func (s *MutableState[T]) setLocked(v T) {
	s.mu.Lock()
	if s.equal != nil && s.equal(s.value, v) {
		s.mu.Unlock()
		return
	}
	s.value = v
	observers := s.snapshot()
	s.mu.Unlock()

	for _, o := range observers {
		if !o.closed {
			o.next(v)
		}
	}
}

// Observe replays the current value to next, then delivers every change
// until ctx is cancelled. A state never completes on its own.
func (s *MutableState[T]) Observe(ctx context.Context, next func(T), complete func(error)) {
	if err := ctx.Err(); err != nil {
		complete(err)
		return
	}

	obs := &stateObserver[T]{next: next}
	s.deliver.Lock()
	s.mu.Lock()
	if s.subs == nil {
		s.subs = make(map[uint64]*stateObserver[T])
	}
	id := s.nextID
	s.nextID++
	s.subs[id] = obs
	current := s.value
	s.mu.Unlock()
	next(current)
	s.deliver.Unlock()

	context.AfterFunc(ctx, func() {
		s.deliver.Lock()
		obs.closed = true
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
		s.deliver.Unlock()
		complete(ctx.Err())
	})
}

// SubscriptionCount returns the number of active observers.
func (s *MutableState[T]) SubscriptionCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.subs)
}

// snapshot must be called with s.mu held.
func (s *MutableState[T]) snapshot() []*stateObserver[T] {
	if len(s.subs) == 0 {
		return nil
	}
	ids := make([]uint64, 0, len(s.subs))
	for id := range s.subs {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	out := make([]*stateObserver[T], len(ids))
	for i, id := range ids {
		out[i] = s.subs[id]
	}
	return out
}
