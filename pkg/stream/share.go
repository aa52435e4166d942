package stream

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/go-drift/flowstate/pkg/core"
)

// Never is a replay expiration that keeps the last value forever.
const Never time.Duration = math.MaxInt64

type startMode int

const (
	startEagerly startMode = iota
	startLazily
	startWhileSubscribed
)

// Started decides when a shared state observes its upstream.
type Started struct {
	mode             startMode
	stopTimeout      time.Duration
	replayExpiration time.Duration
}

// Eagerly starts the upstream observation immediately and keeps it for the
// lifetime of the scope.
func Eagerly() Started { return Started{mode: startEagerly} }

// Lazily starts the upstream observation on the first observer and keeps it
// for the lifetime of the scope.
func Lazily() Started { return Started{mode: startLazily} }

// WhileSubscribed starts the upstream observation when the first observer
// arrives and stops it stopTimeout after the last observer leaves. Once
// stopped, the replayed value is reset after replayExpiration; pass Never
// to keep the last value, or zero to reset as soon as the upstream stops.
// A returning observer restarts the upstream from the beginning.
func WhileSubscribed(stopTimeout, replayExpiration time.Duration) Started {
	if stopTimeout < 0 {
		stopTimeout = 0
	}
	if replayExpiration < 0 {
		replayExpiration = 0
	}
	return Started{
		mode:             startWhileSubscribed,
		stopTimeout:      stopTimeout,
		replayExpiration: replayExpiration,
	}
}

// StopTimeout returns the grace delay before an unobserved upstream stops.
func (s Started) StopTimeout() time.Duration { return s.stopTimeout }

// ReplayExpiration returns how long the last value survives a stop.
func (s Started) ReplayExpiration() time.Duration { return s.replayExpiration }

func (s Started) String() string {
	switch s.mode {
	case startLazily:
		return "Lazily"
	case startWhileSubscribed:
		exp := "Never"
		if s.replayExpiration != Never {
			exp = s.replayExpiration.String()
		}
		return fmt.Sprintf("WhileSubscribed(%s, %s)", s.stopTimeout, exp)
	default:
		return "Eagerly"
	}
}

// ShareOption configures StateIn.
type ShareOption[T any] func(*shareOptions[T])

type shareOptions[T any] struct {
	name         string
	reset        func() T
	writeThrough func(T) error
	equal        func(a, b T) bool
}

// WithName labels the shared state in logs and metrics.
func WithName[T any](name string) ShareOption[T] {
	return func(o *shareOptions[T]) { o.name = name }
}

// WithReset sets the function producing the value restored when the replay
// expires. The default restores the initial value.
func WithReset[T any](reset func() T) ShareOption[T] {
	return func(o *shareOptions[T]) { o.reset = reset }
}

// WithWriteThrough sets a hook called with every upstream value before it
// is published. A hook failure does not prevent the publish, but it stops
// the upstream observation and is reported through the scope.
func WithWriteThrough[T any](hook func(T) error) ShareOption[T] {
	return func(o *shareOptions[T]) { o.writeThrough = hook }
}

// WithEquality drops upstream values equal to the current one.
func WithEquality[T any](equal func(a, b T) bool) ShareOption[T] {
	return func(o *shareOptions[T]) { o.equal = equal }
}

// State is a hot source sharing one upstream observation between all of its
// observers, within a scope.
type State[T any] struct {
	scope   *core.Scope
	src     Source[T]
	state   *MutableState[T]
	started Started
	opts    shareOptions[T]

	mu          sync.Mutex
	subscribers int
	epoch       uint64
	run         *shareRun
	last        *shareRun
	startedOnce bool
	stopTimer   core.Timer
	resetTimer  core.Timer
}

type shareRun struct {
	ctx    context.Context
	cancel context.CancelFunc
	prev   *shareRun
	done   chan struct{}
}

// StateIn shares src within scope as a hot source starting from initial.
// The upstream observation never outlives the scope.
func StateIn[T any](scope *core.Scope, src Source[T], initial T, started Started, opts ...ShareOption[T]) *State[T] {
	st := &State[T]{
		scope:   scope,
		src:     src,
		started: started,
	}
	for _, opt := range opts {
		opt(&st.opts)
	}
	if st.opts.name == "" {
		st.opts.name = "state"
	}
	if st.opts.reset == nil {
		st.opts.reset = func() T { return initial }
	}
	if st.opts.equal != nil {
		st.state = NewMutableStateWithEquality(initial, st.opts.equal)
	} else {
		st.state = NewMutableState(initial)
	}
	scope.OnDispose(st.shutdown)

	if started.mode == startEagerly {
		st.mu.Lock()
		run := st.startLocked()
		st.mu.Unlock()
		st.launch(run)
	}
	return st
}

// Value returns the current value.
func (st *State[T]) Value() T { return st.state.Value() }

// Started returns the sharing policy.
func (st *State[T]) Started() Started { return st.started }

// SubscriptionCount returns the number of active observers.
func (st *State[T]) SubscriptionCount() int {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.subscribers
}

// Active reports whether the upstream is currently being observed.
func (st *State[T]) Active() bool {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.run != nil
}

// Observe replays the current value and delivers every later value until
// ctx is cancelled.
func (st *State[T]) Observe(ctx context.Context, next func(T), complete func(error)) {
	if err := ctx.Err(); err != nil {
		complete(err)
		return
	}
	st.mu.Lock()
	st.subscribers++
	first := st.subscribers == 1
	if first {
		st.epoch++
		st.stopTimers()
	}
	st.mu.Unlock()

	st.state.Observe(ctx, next, func(err error) {
		st.release()
		complete(err)
	})

	if first {
		var run *shareRun
		st.mu.Lock()
		switch st.started.mode {
		case startLazily:
			if !st.startedOnce {
				run = st.startLocked()
			}
		case startWhileSubscribed:
			if st.subscribers > 0 {
				run = st.startLocked()
			}
		}
		st.mu.Unlock()
		st.launch(run)
	}
}

func (st *State[T]) release() {
	st.mu.Lock()
	st.subscribers--
	if st.subscribers > 0 || st.started.mode != startWhileSubscribed {
		st.mu.Unlock()
		return
	}
	epoch := st.epoch
	if st.started.stopTimeout == 0 {
		resetNow := st.stopLocked()
		st.mu.Unlock()
		if resetNow {
			st.resetIfIdle(epoch)
		}
		return
	}
	st.stopTimer = st.scope.Clock().AfterFunc(st.started.stopTimeout, func() {
		st.mu.Lock()
		if st.epoch != epoch || st.subscribers > 0 {
			st.mu.Unlock()
			return
		}
		resetNow := st.stopLocked()
		st.mu.Unlock()
		if resetNow {
			st.resetIfIdle(epoch)
		}
	})
	st.mu.Unlock()
}

// startLocked must be called with st.mu held. It registers a new run and
// returns it for launch, or nil when a run is already registered.
func (st *State[T]) startLocked() *shareRun {
	if st.run != nil || st.scope.IsDisposed() {
		return nil
	}
	ctx, cancel := context.WithCancel(st.scope.Context())
	run := &shareRun{ctx: ctx, cancel: cancel, prev: st.last, done: make(chan struct{})}
	st.run = run
	st.last = run
	st.startedOnce = true
	st.scope.Config().Metrics.SubscriptionStarted(st.opts.name)
	st.scope.Logger().Debug().Str("state", st.opts.name).Str("started", st.started.String()).Msg("upstream started")
	return run
}

// launch runs the upstream observation for run. It must be called without
// st.mu held. A run starts only after the previous run has returned, so a
// value from a cancelled run can never land after a newer one.
func (st *State[T]) launch(run *shareRun) {
	if run == nil {
		return
	}
	op := "stream.StateIn(" + st.opts.name + ")"
	err := st.scope.Launch(op, func(context.Context) error {
		defer st.finish(run)
		ctx := run.ctx
		if run.prev != nil {
			select {
			case <-run.prev.done:
			case <-ctx.Done():
				return nil
			}
			run.prev = nil
		}
		err := Collect(ctx, st.src, func(v T) error {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			var hookErr error
			if st.opts.writeThrough != nil {
				hookErr = st.opts.writeThrough(v)
			}
			if ctx.Err() != nil {
				// Cancelled mid-write; a newer run owns publishing now.
				if hookErr != nil {
					return hookErr
				}
				return ctx.Err()
			}
			st.state.Set(v)
			return hookErr
		})
		if ctx.Err() != nil && errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
	if err != nil {
		st.finish(run)
	}
}

func (st *State[T]) finish(run *shareRun) {
	run.cancel()
	st.mu.Lock()
	if st.run == run {
		st.run = nil
	}
	if st.last == run {
		st.last = nil
	}
	st.mu.Unlock()
	close(run.done)
	st.scope.Config().Metrics.SubscriptionStopped(st.opts.name)
	st.scope.Logger().Debug().Str("state", st.opts.name).Msg("upstream stopped")
}

// stopLocked must be called with st.mu held. It cancels the upstream and
// schedules the replay reset, returning true when the reset is due now.
func (st *State[T]) stopLocked() bool {
	if st.run != nil {
		st.run.cancel()
		st.run = nil
	}
	expiration := st.started.replayExpiration
	switch expiration {
	case Never:
		return false
	case 0:
		return true
	}
	epoch := st.epoch
	st.resetTimer = st.scope.Clock().AfterFunc(expiration, func() {
		st.resetIfIdle(epoch)
	})
	return false
}

func (st *State[T]) resetIfIdle(epoch uint64) {
	st.mu.Lock()
	idle := st.epoch == epoch && st.subscribers == 0 && st.run == nil
	st.mu.Unlock()
	if !idle {
		return
	}
	st.state.Set(st.opts.reset())
	st.scope.Logger().Debug().Str("state", st.opts.name).Msg("replay expired")
}

// stopTimers must be called with st.mu held.
func (st *State[T]) stopTimers() {
	if st.stopTimer != nil {
		st.stopTimer.Stop()
		st.stopTimer = nil
	}
	if st.resetTimer != nil {
		st.resetTimer.Stop()
		st.resetTimer = nil
	}
}

func (st *State[T]) shutdown() {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.stopTimers()
	if st.run != nil {
		st.run.cancel()
	}
}
