package core

import (
	"github.com/rs/zerolog"

	flowerrors "github.com/go-drift/flowstate/pkg/errors"
	"github.com/go-drift/flowstate/pkg/metrics"
)

// FailurePolicy decides what a scope does when launched work fails.
type FailurePolicy int

const (
	// FailReport reports the failure and keeps the scope and its other
	// work running.
	FailReport FailurePolicy = iota
	// FailCancel reports the failure and cancels the scope.
	FailCancel
)

func (p FailurePolicy) String() string {
	switch p {
	case FailCancel:
		return "cancel"
	default:
		return "report"
	}
}

// Config configures a Scope. Zero fields mean "inherit" when configs are
// merged and "default" when a scope is created.
type Config struct {
	// Name labels logs and metrics produced in the scope.
	Name string
	// Dispatcher is the execution context values are delivered on.
	// Defaults to Immediate.
	Dispatcher Dispatcher
	// Executor runs launched work. Defaults to Goroutines.
	Executor Executor
	// Clock drives timeouts. Defaults to SystemClock.
	Clock Clock
	// Logger receives debug output. Defaults to a disabled logger.
	Logger *zerolog.Logger
	// Metrics receives subscription and store events. Defaults to metrics.Noop.
	Metrics metrics.Collector
	// ErrorHandler receives failures. Defaults to the process-wide handler.
	ErrorHandler flowerrors.ErrorHandler
	// FailurePolicy decides whether a failure cancels the scope.
	FailurePolicy FailurePolicy
}

// Merge combines configurations left to right. For every field, the
// rightmost config with a non-zero value wins. Because FailReport is the
// zero FailurePolicy, it never overrides FailCancel; start a fresh scope
// to drop a cancel policy.
func Merge(cfgs ...Config) Config {
	var out Config
	for _, c := range cfgs {
		if c.Name != "" {
			out.Name = c.Name
		}
		if c.Dispatcher != nil {
			out.Dispatcher = c.Dispatcher
		}
		if c.Executor != nil {
			out.Executor = c.Executor
		}
		if c.Clock != nil {
			out.Clock = c.Clock
		}
		if c.Logger != nil {
			out.Logger = c.Logger
		}
		if c.Metrics != nil {
			out.Metrics = c.Metrics
		}
		if c.ErrorHandler != nil {
			out.ErrorHandler = c.ErrorHandler
		}
		if c.FailurePolicy != FailReport {
			out.FailurePolicy = c.FailurePolicy
		}
	}
	return out
}

func (c Config) withDefaults() Config {
	if c.Dispatcher == nil {
		c.Dispatcher = Immediate()
	}
	if c.Executor == nil {
		c.Executor = Goroutines()
	}
	if c.Clock == nil {
		c.Clock = SystemClock()
	}
	if c.Logger == nil {
		nop := zerolog.Nop()
		c.Logger = &nop
	}
	if c.Metrics == nil {
		c.Metrics = metrics.Noop()
	}
	return c
}
