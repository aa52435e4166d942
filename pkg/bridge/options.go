package bridge

import (
	"github.com/go-drift/flowstate/pkg/core"
	"github.com/go-drift/flowstate/pkg/lifecycle"
)

// Option configures a bridge.
type Option func(*options)

type options struct {
	name       string
	threshold  lifecycle.State
	dispatcher core.Dispatcher
}

// WithThreshold sets the lowest state at which the source is observed. The
// default is lifecycle.Started.
func WithThreshold(s lifecycle.State) Option {
	return func(o *options) { o.threshold = s }
}

// WithDispatcher delivers values through d instead of the scope's
// dispatcher.
func WithDispatcher(d core.Dispatcher) Option {
	return func(o *options) { o.dispatcher = d }
}

// WithName labels the cell in logs and metrics.
func WithName(name string) Option {
	return func(o *options) { o.name = name }
}

func buildOptions(scope *core.Scope, opts []Option) options {
	o := options{
		name:      "cell",
		threshold: lifecycle.Started,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.dispatcher == nil {
		o.dispatcher = scope.Dispatcher()
	}
	return o
}
