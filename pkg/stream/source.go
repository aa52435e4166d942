package stream

import (
	"context"
	"time"

	flowerrors "github.com/go-drift/flowstate/pkg/errors"
)

// Source delivers a sequence of values to observers.
type Source[T any] interface {
	// Observe a stream of values as long as ctx is valid. next is called
	// for each value, and complete is called exactly once when the stream
	// ends: with nil on normal completion, with the failure otherwise, and
	// with ctx's error after cancellation.
	//
	// Implementations may call next and complete from any goroutine, but
	// never concurrently, and never call next after complete.
	Observe(ctx context.Context, next func(T), complete func(error))
}

// StateSource is a hot source that holds a current value. New observers
// receive the current value first.
type StateSource[T any] interface {
	Source[T]
	Value() T
}

// SourceFunc implements Source with a function.
type SourceFunc[T any] func(ctx context.Context, next func(T), complete func(error))

// Observe calls f.
func (f SourceFunc[T]) Observe(ctx context.Context, next func(T), complete func(error)) {
	f(ctx, next, complete)
}

// Generate returns a cold source that runs produce on a new goroutine for
// every observer. produce emits values through emit and returns when done;
// its error completes the stream. A panic in produce completes the stream
// with a *errors.PanicError.
func Generate[T any](produce func(ctx context.Context, emit func(T)) error) Source[T] {
	return SourceFunc[T](func(ctx context.Context, next func(T), complete func(error)) {
		go func() {
			var err error
			defer func() {
				if r := recover(); r != nil {
					err = &flowerrors.PanicError{
						Op:         "stream.Generate",
						Value:      r,
						StackTrace: flowerrors.CaptureStack(),
						Timestamp:  time.Now(),
					}
				}
				if err == nil {
					err = ctx.Err()
				}
				complete(err)
			}()
			err = produce(ctx, func(v T) {
				if ctx.Err() == nil {
					next(v)
				}
			})
		}()
	})
}

// FromSlice returns a cold source delivering values in order, then completing.
func FromSlice[T any](values []T) Source[T] {
	return SourceFunc[T](func(ctx context.Context, next func(T), complete func(error)) {
		for _, v := range values {
			if err := ctx.Err(); err != nil {
				complete(err)
				return
			}
			next(v)
		}
		complete(ctx.Err())
	})
}

// Just returns a cold source delivering the given values.
func Just[T any](values ...T) Source[T] {
	return FromSlice(values)
}

// Empty returns a source that completes without values.
func Empty[T any]() Source[T] {
	return FromSlice[T](nil)
}

// Fail returns a source that completes immediately with err.
func Fail[T any](err error) Source[T] {
	return SourceFunc[T](func(_ context.Context, _ func(T), complete func(error)) {
		complete(err)
	})
}

// Pending returns a source that delivers nothing and completes only when
// its context is cancelled.
func Pending[T any]() Source[T] {
	return SourceFunc[T](func(ctx context.Context, _ func(T), complete func(error)) {
		context.AfterFunc(ctx, func() { complete(ctx.Err()) })
	})
}
