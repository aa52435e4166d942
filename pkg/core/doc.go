// Package core provides the owning scope and the small runtime pieces every
// bridge and cell is built on.
//
// A [Scope] bounds the lifetime of subscriptions. It carries a cancellation
// context, a [Dispatcher] deciding where values are delivered, an
// [Executor] running managed work, a [Clock], a logger, a metrics
// collector and an error handler. Cancelling the scope cancels every piece
// of work launched in it and runs its disposers in reverse order:
//
//	scope := core.NewScope(ctx, core.Config{Name: "profile-screen"})
//	defer scope.Close()
//
//	scope.Launch("refresh", func(ctx context.Context) error {
//	    return refresh(ctx)
//	})
//
// # Configuration
//
// Scopes are configured with [Config] values combined by [Merge]. For each
// field the rightmost non-zero value wins, so a child scope can override the
// dispatcher of its parent and keep everything else:
//
//	child := scope.Child(core.Config{Dispatcher: loop})
//
// # Observable
//
// [Observable] is a thread-safe value holder with change listeners. Cells
// returned by the bridge package are built on it:
//
//	counter := core.NewObservable(0)
//	unsub := counter.AddListener(func(v int) { fmt.Println(v) })
//	counter.Set(5)
//	unsub()
//
// # Dispatchers
//
// [Immediate] runs callbacks on the calling goroutine. [NewLoopDispatcher]
// runs them one at a time, in submission order, on a dedicated goroutine,
// which is how a UI thread is modelled.
package core
