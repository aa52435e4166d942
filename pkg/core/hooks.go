package core

// Disposable is implemented by resources a scope can release.
type Disposable interface {
	Dispose()
}

// UseController creates a controller and registers it for disposal.
// The controller is disposed when the scope is cancelled.
//
// Example:
//
//	loop := core.UseController(scope, core.NewLoopDispatcher)
func UseController[C Disposable](s *Scope, create func() C) C {
	controller := create()
	s.OnDispose(controller.Dispose)
	return controller
}

// UseObservable subscribes onChange to obs for the lifetime of the scope.
// The listener is removed when the scope is cancelled.
//
// Example:
//
//	selected := core.NewObservable("")
//	core.UseObservable(scope, selected, func(id string) {
//	    render(id)
//	})
func UseObservable[T any](s *Scope, obs *Observable[T], onChange func(T)) {
	unsub := obs.AddListener(onChange)
	s.OnDispose(unsub)
}
