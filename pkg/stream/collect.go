package stream

import (
	"context"
	"sync"
)

// Collect observes src and calls fn for each value, blocking until the
// stream completes. It returns the stream's completion error, or fn's
// error if fn fails, which also cancels the observation.
func Collect[T any](ctx context.Context, src Source[T], fn func(T) error) error {
	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	done := make(chan error, 1)
	var once sync.Once
	var stopped bool
	var fnErr error

	src.Observe(ctx, func(v T) {
		if stopped {
			return
		}
		if err := fn(v); err != nil {
			stopped = true
			fnErr = err
			cancel(err)
		}
	}, func(err error) {
		once.Do(func() { done <- err })
	})

	err := <-done
	if fnErr != nil {
		return fnErr
	}
	return err
}

// ToSlice collects every value of a finite source.
func ToSlice[T any](ctx context.Context, src Source[T]) ([]T, error) {
	var out []T
	err := Collect(ctx, src, func(v T) error {
		out = append(out, v)
		return nil
	})
	return out, err
}

// First returns the first value delivered by src. It returns the
// completion error if src completes without a value.
func First[T any](ctx context.Context, src Source[T]) (T, error) {
	var (
		out T
		got bool
	)
	err := Collect(ctx, src, func(v T) error {
		out = v
		got = true
		return errFirstFound
	})
	if got {
		return out, nil
	}
	if err == nil {
		err = ErrNoValue
	}
	return out, err
}
