package bridge

import (
	"context"

	"github.com/go-drift/flowstate/pkg/core"
	flowerrors "github.com/go-drift/flowstate/pkg/errors"
	"github.com/go-drift/flowstate/pkg/lifecycle"
	"github.com/go-drift/flowstate/pkg/stream"
)

// CollectAsState returns a cell holding initial and then the latest value
// of src, observed only while signal is at or above the threshold. It
// returns immediately; the first observation starts on the scope's
// executor.
//
// Each upward crossing of the threshold starts a new observation of src and
// each downward crossing cancels it. The cell keeps its value in between.
// The bridge ends when the scope is torn down, when signal reaches
// Destroyed, or when src fails; a failure is routed through scope.Fail.
func CollectAsState[T any](scope *core.Scope, src stream.Source[T], initial T, signal lifecycle.Signal, opts ...Option) *Cell[T] {
	o := buildOptions(scope, opts)
	cell := newCell(scope, o.name, initial)
	op := "bridge.CollectAsState(" + o.name + ")"

	if !lifecycle.ValidThreshold(o.threshold) {
		scope.Fail(op, &flowerrors.FlowError{
			Op:   op,
			Kind: flowerrors.KindMisuse,
			Err:  lifecycle.ErrInvalidThreshold,
		})
		close(cell.done)
		return cell
	}

	run := func(ctx context.Context) error {
		return lifecycle.RepeatOnLifecycle(ctx, signal, o.threshold, func(runCtx context.Context) error {
			return observe(runCtx, scope, cell, o, src)
		})
	}
	start(scope, cell, op, run)
	return cell
}

// CollectStateAsState is CollectAsState starting from the current value of
// a hot source.
func CollectStateAsState[T any](scope *core.Scope, st stream.StateSource[T], signal lifecycle.Signal, opts ...Option) *Cell[T] {
	return CollectAsState(scope, stream.Source[T](st), st.Value(), signal, opts...)
}

// Collect returns a cell holding the latest value of src, observed for the
// whole lifetime of the scope.
func Collect[T any](scope *core.Scope, src stream.Source[T], initial T, opts ...Option) *Cell[T] {
	o := buildOptions(scope, opts)
	cell := newCell(scope, o.name, initial)
	start(scope, cell, "bridge.Collect("+o.name+")", func(ctx context.Context) error {
		return observe(ctx, scope, cell, o, src)
	})
	return cell
}

func start[T any](scope *core.Scope, cell *Cell[T], op string, run func(ctx context.Context) error) {
	scope.OnDispose(cell.tearDown)
	err := scope.Launch(op, func(ctx context.Context) error {
		defer close(cell.done)
		return run(ctx)
	})
	if err != nil {
		cell.tearDown()
		close(cell.done)
	}
}

func observe[T any](ctx context.Context, scope *core.Scope, cell *Cell[T], o options, src stream.Source[T]) error {
	m := scope.Config().Metrics
	m.SubscriptionStarted(o.name)
	cell.setPhase(PhaseActive)
	defer func() {
		cell.setPhase(PhaseIdle)
		m.SubscriptionStopped(o.name)
	}()
	return stream.Collect(ctx, src, func(v T) error {
		cell.deliver(o.dispatcher, v)
		return nil
	})
}
