// Package bridge connects value streams to lifecycle-aware owners.
//
// CollectAsState observes a source only while a lifecycle Signal is at or
// above a threshold and exposes the most recent value as a Cell:
//
//	scope := core.NewScope(ctx, core.Config{Dispatcher: ui})
//	defer scope.Close()
//
//	cell := bridge.CollectAsState(scope, prices, 0.0, screen,
//		bridge.WithThreshold(lifecycle.Started))
//	cell.AddListener(func(p float64) { render(p) })
//
// The cell starts at its initial value, keeps its last value while the
// owner is below the threshold, and stops changing once the scope is torn
// down.
package bridge
