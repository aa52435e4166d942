// Package stream defines value sources and the operators used to combine
// and share them.
//
// A [Source] delivers values to an observer until its context is cancelled
// or the source completes:
//
//	src.Observe(ctx, func(v int) {
//	    fmt.Println(v)
//	}, func(err error) {
//	    // called exactly once, last
//	})
//
// Cold sources ([Generate], [FromSlice], [Just]) restart their computation
// for every observer. Hot sources ([MutableState], [State]) hold one current
// value, replay it to each new observer, then deliver every change in the
// order it was made.
//
// [StateIn] turns a cold source into a hot one shared within a scope. Its
// [Started] policy decides when the upstream observation starts and stops:
//
//	shared := stream.StateIn(scope, ticks, 0, stream.WhileSubscribed(5*time.Second, stream.Never))
package stream
