package bridge

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/go-drift/flowstate/pkg/core"
	flowerrors "github.com/go-drift/flowstate/pkg/errors"
)

// Phase is the state of the bridge feeding a cell.
type Phase int32

const (
	// PhaseIdle means no observation is running. The cell keeps its value.
	PhaseIdle Phase = iota
	// PhaseActive means the source is being observed.
	PhaseActive
	// PhaseTornDown is terminal: the owning scope is gone and the cell will
	// not change again.
	PhaseTornDown
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseActive:
		return "active"
	case PhaseTornDown:
		return "torn-down"
	default:
		return fmt.Sprintf("Phase(%d)", int32(p))
	}
}

// Cell holds the latest value delivered by a bridge. It equals the initial
// value until the first delivery. Only the bridge writes to it.
type Cell[T any] struct {
	name    string
	value   *core.Observable[T]
	phase   atomic.Int32
	done    chan struct{}
	logger  *zerolog.Logger
	handler flowerrors.ErrorHandler

	// teardown serializes the move to PhaseTornDown with value writes.
	teardown sync.Mutex
}

func newCell[T any](scope *core.Scope, name string, initial T) *Cell[T] {
	return &Cell[T]{
		name:    name,
		value:   core.NewObservable(initial),
		done:    make(chan struct{}),
		logger:  scope.Logger(),
		handler: scope.Config().ErrorHandler,
	}
}

// Name returns the label given with WithName.
func (c *Cell[T]) Name() string { return c.name }

// Value returns the latest value.
func (c *Cell[T]) Value() T { return c.value.Value() }

// AddListener registers fn to be called with every new value, on the
// bridge's dispatcher. It returns a function removing fn.
//
// A torn-down cell never changes again: fn is not registered, the misuse is
// reported with ErrTornDown and the returned function does nothing.
func (c *Cell[T]) AddListener(fn func(T)) func() {
	if err := c.Err(); err != nil {
		flowerrors.ReportTo(c.handler, &flowerrors.FlowError{
			Op:   "bridge.Cell(" + c.name + ").AddListener",
			Kind: flowerrors.KindMisuse,
			Err:  err,
		})
		return func() {}
	}
	return c.value.AddListener(fn)
}

// Err returns ErrTornDown once the owning scope has torn the cell down, and
// nil before.
func (c *Cell[T]) Err() error {
	if c.Phase() == PhaseTornDown {
		return flowerrors.ErrTornDown
	}
	return nil
}

// Phase returns the current bridge phase.
func (c *Cell[T]) Phase() Phase { return Phase(c.phase.Load()) }

// Done is closed once the bridge has stopped for good: after teardown,
// after the signal reached Destroyed, or after a source failure.
func (c *Cell[T]) Done() <-chan struct{} { return c.done }

func (c *Cell[T]) setPhase(p Phase) {
	for {
		cur := c.phase.Load()
		if Phase(cur) == PhaseTornDown || Phase(cur) == p {
			return
		}
		if c.phase.CompareAndSwap(cur, int32(p)) {
			c.logger.Debug().Str("cell", c.name).Stringer("from", Phase(cur)).Stringer("to", p).Msg("cell phase")
			return
		}
	}
}

func (c *Cell[T]) tearDown() {
	c.teardown.Lock()
	defer c.teardown.Unlock()
	c.setPhase(PhaseTornDown)
}

// write stores v unless the cell is torn down. Listeners run after both
// locks are released, so a listener may tear the owning scope down.
func (c *Cell[T]) write(v T) {
	c.value.SetIf(v, func() bool {
		c.teardown.Lock()
		defer c.teardown.Unlock()
		return c.Phase() != PhaseTornDown
	})
}

func (c *Cell[T]) deliver(d core.Dispatcher, v T) {
	if c.Phase() == PhaseTornDown {
		return
	}
	if !d.Dispatch(func() { c.write(v) }) {
		c.logger.Debug().Str("cell", c.name).Msg("dispatcher rejected value")
	}
}
