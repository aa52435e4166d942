package lifecycle

// Observer receives lifecycle states.
type Observer func(State)

// Signal is an observable activity state.
type Signal interface {
	// CurrentState returns the latest state.
	CurrentState() State
	// AddObserver calls o synchronously with the current state, then with
	// every later state in order. The returned function removes o; calling
	// it more than once is harmless. Once it returns, no new call to o
	// starts.
	AddObserver(o Observer) (remove func())
}
