package core

import (
	"slices"
	"sync"
)

// Observable holds a value and notifies listeners when it changes.
// All methods are safe for concurrent use. Listeners are called on the
// goroutine that calls Set, outside the internal lock, in registration
// order.
type Observable[T any] struct {
	mu        sync.RWMutex
	value     T
	listeners map[uint64]func(T)
	nextID    uint64
	equal     func(a, b T) bool
}

// NewObservable creates an observable that notifies on every Set.
func NewObservable[T any](initial T) *Observable[T] {
	return &Observable[T]{value: initial}
}

// NewObservableWithEquality creates an observable that skips notification
// when equal reports the new value as unchanged.
func NewObservableWithEquality[T any](initial T, equal func(a, b T) bool) *Observable[T] {
	return &Observable[T]{value: initial, equal: equal}
}

// Value returns the current value.
func (o *Observable[T]) Value() T {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.value
}

// Set stores value and notifies listeners.
func (o *Observable[T]) Set(value T) {
	o.mu.Lock()
	if o.equal != nil && o.equal(o.value, value) {
		o.mu.Unlock()
		return
	}
	o.value = value
	listeners := o.snapshot()
	o.mu.Unlock()

	for _, l := range listeners {
		l(value)
	}
}

// SetIf stores value and notifies listeners only if ok, evaluated under the
// observable's lock, returns true. It reports whether value was accepted.
func (o *Observable[T]) SetIf(value T, ok func() bool) bool {
	o.mu.Lock()
	if !ok() {
		o.mu.Unlock()
		return false
	}
	if o.equal != nil && o.equal(o.value, value) {
		o.mu.Unlock()
		return true
	}
	o.value = value
	listeners := o.snapshot()
	o.mu.Unlock()

	for _, l := range listeners {
		l(value)
	}
	return true
}

// Update applies transform to the current value and stores the result.
func (o *Observable[T]) Update(transform func(T) T) {
	o.mu.Lock()
	next := transform(o.value)
	if o.equal != nil && o.equal(o.value, next) {
		o.mu.Unlock()
		return
	}
	o.value = next
	listeners := o.snapshot()
	o.mu.Unlock()

	for _, l := range listeners {
		l(next)
	}
}

// AddListener registers fn and returns a function that removes it.
func (o *Observable[T]) AddListener(fn func(T)) func() {
	if fn == nil {
		return func() {}
	}
	o.mu.Lock()
	if o.listeners == nil {
		o.listeners = make(map[uint64]func(T))
	}
	id := o.nextID
	o.nextID++
	o.listeners[id] = fn
	o.mu.Unlock()

	return func() {
		o.mu.Lock()
		delete(o.listeners, id)
		o.mu.Unlock()
	}
}

// ListenerCount returns the number of registered listeners.
func (o *Observable[T]) ListenerCount() int {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return len(o.listeners)
}

// snapshot must be called with o.mu held.
func (o *Observable[T]) snapshot() []func(T) {
	if len(o.listeners) == 0 {
		return nil
	}
	ids := make([]uint64, 0, len(o.listeners))
	for id := range o.listeners {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	out := make([]func(T), len(ids))
	for i, id := range ids {
		out[i] = o.listeners[id]
	}
	return out
}
