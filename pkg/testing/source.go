package testing

import (
	"context"
	"slices"
	"sync"
)

// RecordingSource is a controllable value source that records every
// subscription made to it. It has no replay: observers receive only values
// emitted while they are subscribed. It satisfies stream.Source.
type RecordingSource[T any] struct {
	emit sync.Mutex // serializes delivery against completion
	mu   sync.Mutex

	observers    map[uint64]*recordingObserver[T]
	nextID       uint64
	subscribes   int
	unsubscribes int
	deliveries   int
	changed      chan struct{}
}

type recordingObserver[T any] struct {
	next     func(T)
	complete func(error)
	closed   bool
}

// NewRecordingSource creates an idle source.
func NewRecordingSource[T any]() *RecordingSource[T] {
	return &RecordingSource[T]{
		observers: make(map[uint64]*recordingObserver[T]),
		changed:   make(chan struct{}, 1),
	}
}

// Observe registers an observer until ctx is cancelled.
func (s *RecordingSource[T]) Observe(ctx context.Context, next func(T), complete func(error)) {
	obs := &recordingObserver[T]{next: next, complete: complete}
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.observers[id] = obs
	s.subscribes++
	s.mu.Unlock()
	s.notify()

	context.AfterFunc(ctx, func() {
		if s.close(id, obs) {
			complete(ctx.Err())
		}
	})
}

// close must not be called with s.mu held.
func (s *RecordingSource[T]) close(id uint64, obs *recordingObserver[T]) bool {
	s.emit.Lock()
	defer s.emit.Unlock()
	s.mu.Lock()
	defer s.mu.Unlock()
	if obs.closed {
		return false
	}
	obs.closed = true
	delete(s.observers, id)
	s.unsubscribes++
	s.notify()
	return true
}

// Emit delivers v to every current observer and returns how many
// received it.
func (s *RecordingSource[T]) Emit(v T) int {
	s.emit.Lock()
	defer s.emit.Unlock()
	observers := s.snapshot()
	for _, o := range observers {
		o.next(v)
	}
	s.mu.Lock()
	s.deliveries += len(observers)
	s.mu.Unlock()
	return len(observers)
}

// Fail completes every current observer with err.
func (s *RecordingSource[T]) Fail(err error) {
	s.emit.Lock()
	s.mu.Lock()
	var failed []*recordingObserver[T]
	for id, o := range s.observers {
		o.closed = true
		delete(s.observers, id)
		s.unsubscribes++
		failed = append(failed, o)
	}
	s.mu.Unlock()
	s.emit.Unlock()
	s.notify()
	for _, o := range failed {
		o.complete(err)
	}
}

// Active returns the number of current observers.
func (s *RecordingSource[T]) Active() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.observers)
}

// Subscribes returns how many times Observe has been called.
func (s *RecordingSource[T]) Subscribes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.subscribes
}

// Unsubscribes returns how many observations have ended.
func (s *RecordingSource[T]) Unsubscribes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.unsubscribes
}

// Deliveries returns the total number of values handed to observers.
func (s *RecordingSource[T]) Deliveries() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deliveries
}

// Changed returns a channel signalled after every subscribe or unsubscribe.
func (s *RecordingSource[T]) Changed() <-chan struct{} {
	return s.changed
}

func (s *RecordingSource[T]) notify() {
	select {
	case s.changed <- struct{}{}:
	default:
	}
}

func (s *RecordingSource[T]) snapshot() []*recordingObserver[T] {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]uint64, 0, len(s.observers))
	for id := range s.observers {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	out := make([]*recordingObserver[T], len(ids))
	for i, id := range ids {
		out[i] = s.observers[id]
	}
	return out
}
