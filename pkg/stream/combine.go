package stream

import (
	"context"
	"slices"
	"sync"
)

type erased func(ctx context.Context, next func(any), complete func(error))

func erase[T any](src Source[T]) erased {
	return func(ctx context.Context, next func(any), complete func(error)) {
		src.Observe(ctx, func(v T) { next(v) }, complete)
	}
}

func as[T any](v any) T {
	t, _ := v.(T)
	return t
}

// combineLatest observes every source and, once each has delivered a value,
// emits the projection of the latest values whenever any of them changes.
// It completes when all sources complete, when a source completes without
// ever delivering, or on the first failure.
func combineLatest[R any](sources []erased, project func([]any) R) Source[R] {
	n := len(sources)
	return SourceFunc[R](func(ctx context.Context, next func(R), complete func(error)) {
		ctx, cancel := context.WithCancel(ctx)
		var (
			mu        sync.Mutex
			values    = make([]any, n)
			have      = make([]bool, n)
			ready     int
			remaining = n
			finished  bool
		)
		finish := func(err error) {
			if finished {
				return
			}
			finished = true
			cancel()
			complete(err)
		}
		for i, src := range sources {
			src(ctx, func(v any) {
				mu.Lock()
				defer mu.Unlock()
				if finished {
					return
				}
				if !have[i] {
					have[i] = true
					ready++
				}
				values[i] = v
				if ready == n {
					next(project(slices.Clone(values)))
				}
			}, func(err error) {
				mu.Lock()
				defer mu.Unlock()
				remaining--
				switch {
				case err != nil:
					finish(err)
				case !have[i]:
					finish(nil)
				case remaining == 0:
					finish(nil)
				}
			})
		}
	})
}

// Combine2 combines the latest values of two sources.
func Combine2[A, B, R any](a Source[A], b Source[B], fn func(A, B) R) Source[R] {
	return combineLatest([]erased{erase(a), erase(b)}, func(v []any) R {
		return fn(as[A](v[0]), as[B](v[1]))
	})
}

// Combine3 combines the latest values of three sources.
func Combine3[A, B, C, R any](a Source[A], b Source[B], c Source[C], fn func(A, B, C) R) Source[R] {
	return combineLatest([]erased{erase(a), erase(b), erase(c)}, func(v []any) R {
		return fn(as[A](v[0]), as[B](v[1]), as[C](v[2]))
	})
}

// Combine4 combines the latest values of four sources.
func Combine4[A, B, C, D, R any](a Source[A], b Source[B], c Source[C], d Source[D], fn func(A, B, C, D) R) Source[R] {
	return combineLatest([]erased{erase(a), erase(b), erase(c), erase(d)}, func(v []any) R {
		return fn(as[A](v[0]), as[B](v[1]), as[C](v[2]), as[D](v[3]))
	})
}

// Combine5 combines the latest values of five sources.
func Combine5[A, B, C, D, E, R any](a Source[A], b Source[B], c Source[C], d Source[D], e Source[E], fn func(A, B, C, D, E) R) Source[R] {
	return combineLatest([]erased{erase(a), erase(b), erase(c), erase(d), erase(e)}, func(v []any) R {
		return fn(as[A](v[0]), as[B](v[1]), as[C](v[2]), as[D](v[3]), as[E](v[4]))
	})
}
