package stream

import (
	"context"
	"sync"
)

// Map returns a source applying fn to every value of src.
func Map[T, R any](src Source[T], fn func(T) R) Source[R] {
	return SourceFunc[R](func(ctx context.Context, next func(R), complete func(error)) {
		src.Observe(ctx, func(v T) { next(fn(v)) }, complete)
	})
}

// Filter returns a source delivering only the values of src for which
// keep returns true.
func Filter[T any](src Source[T], keep func(T) bool) Source[T] {
	return SourceFunc[T](func(ctx context.Context, next func(T), complete func(error)) {
		src.Observe(ctx, func(v T) {
			if keep(v) {
				next(v)
			}
		}, complete)
	})
}

// OnEach returns a source calling fn for every value before delivering it.
func OnEach[T any](src Source[T], fn func(T)) Source[T] {
	return SourceFunc[T](func(ctx context.Context, next func(T), complete func(error)) {
		src.Observe(ctx, func(v T) {
			fn(v)
			next(v)
		}, complete)
	})
}

// DistinctFunc drops values equal to the previously delivered one.
func DistinctFunc[T any](src Source[T], equal func(a, b T) bool) Source[T] {
	return SourceFunc[T](func(ctx context.Context, next func(T), complete func(error)) {
		var (
			last T
			seen bool
		)
		src.Observe(ctx, func(v T) {
			if seen && equal(last, v) {
				return
			}
			last, seen = v, true
			next(v)
		}, complete)
	})
}

// Distinct drops consecutive duplicate values.
func Distinct[T comparable](src Source[T]) Source[T] {
	return DistinctFunc(src, func(a, b T) bool { return a == b })
}

// Take delivers at most n values of src, then cancels it and completes.
func Take[T any](src Source[T], n int) Source[T] {
	return SourceFunc[T](func(ctx context.Context, next func(T), complete func(error)) {
		if n <= 0 {
			complete(ctx.Err())
			return
		}
		ctx, cancel := context.WithCancel(ctx)
		var (
			once  sync.Once
			count int
		)
		finish := func(err error) {
			once.Do(func() {
				cancel()
				complete(err)
			})
		}
		src.Observe(ctx, func(v T) {
			if count >= n {
				return
			}
			count++
			next(v)
			if count == n {
				finish(nil)
			}
		}, finish)
	})
}
