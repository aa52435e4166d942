package stream

import (
	"context"
	"slices"
	"sync"
	"time"
)

const (
	waitFor = 2 * time.Second
	tick    = 5 * time.Millisecond
)

type recorder[T any] struct {
	mu     sync.Mutex
	values []T
	done   chan error
}

func newRecorder[T any]() *recorder[T] {
	return &recorder[T]{done: make(chan error, 1)}
}

func (r *recorder[T]) next(v T) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.values = append(r.values, v)
}

func (r *recorder[T]) complete(err error) { r.done <- err }

func (r *recorder[T]) Values() []T {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.values)
}

func (r *recorder[T]) observe(ctx context.Context, src Source[T]) {
	src.Observe(ctx, r.next, r.complete)
}
