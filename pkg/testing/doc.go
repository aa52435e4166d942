// Package testing provides test doubles for flowstate code.
//
// FakeClock implements core.Clock with manually advanced time, so sharing
// timeouts and replay expirations can be exercised without sleeping:
//
//	clk := flowtest.NewFakeClock()
//	scope := core.NewScope(ctx, core.Config{Clock: clk})
//	...
//	clk.Advance(5 * time.Second) // fires the stop timeout
//
// RecordingSource is a push-driven stream.Source that counts
// subscriptions, which makes "exactly one upstream subscription" style
// assertions straightforward.
//
// Import it under an alias to avoid clashing with the standard library:
//
//	import flowtest "github.com/go-drift/flowstate/pkg/testing"
package testing
