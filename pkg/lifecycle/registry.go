package lifecycle

import (
	"errors"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	flowerrors "github.com/go-drift/flowstate/pkg/errors"
	"github.com/go-drift/flowstate/pkg/metrics"
)

var (
	// ErrDestroyed is returned when a destroyed registry is asked to move.
	ErrDestroyed = errors.New("lifecycle: registry destroyed")
	// ErrInvalidTransition is returned for a move back to Initialized.
	ErrInvalidTransition = errors.New("lifecycle: invalid transition")
)

// Registry is a Signal driven by explicit transitions. It starts
// Initialized. Observers are notified one state at a time: a move from
// Initialized to Resumed is observed as Created, Started, Resumed.
//
// Observers are called on the goroutine performing the transition and must
// not call SetState or HandleEvent themselves.
type Registry struct {
	name    string
	metrics metrics.Collector
	logger  zerolog.Logger
	handler flowerrors.ErrorHandler

	notify sync.Mutex // serializes transitions and registrations

	mu        sync.RWMutex
	state     State
	observers map[uint64]*registryObserver
	nextID    uint64
}

type registryObserver struct {
	fn      Observer
	removed atomic.Bool
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithName labels the registry in logs and metrics.
func WithName(name string) RegistryOption {
	return func(r *Registry) { r.name = name }
}

// WithMetrics records every transition on c.
func WithMetrics(c metrics.Collector) RegistryOption {
	return func(r *Registry) { r.metrics = c }
}

// WithLogger logs transitions at debug level.
func WithLogger(l *zerolog.Logger) RegistryOption {
	return func(r *Registry) {
		if l != nil {
			r.logger = *l
		}
	}
}

// WithErrorHandler receives misuse reports instead of the process-wide
// handler.
func WithErrorHandler(h flowerrors.ErrorHandler) RegistryOption {
	return func(r *Registry) { r.handler = h }
}

// NewRegistry creates an Initialized registry.
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		name:      "lifecycle",
		metrics:   metrics.Noop(),
		logger:    zerolog.Nop(),
		state:     Initialized,
		observers: make(map[uint64]*registryObserver),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// CurrentState returns the latest state.
func (r *Registry) CurrentState() State {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state
}

// AddObserver implements Signal.
func (r *Registry) AddObserver(o Observer) func() {
	obs := &registryObserver{fn: o}

	r.notify.Lock()
	r.mu.Lock()
	id := r.nextID
	r.nextID++
	r.observers[id] = obs
	current := r.state
	r.mu.Unlock()
	o(current)
	r.notify.Unlock()

	return func() {
		if obs.removed.Swap(true) {
			return
		}
		r.mu.Lock()
		delete(r.observers, id)
		r.mu.Unlock()
	}
}

// ObserverCount returns the number of registered observers.
func (r *Registry) ObserverCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.observers)
}

// HandleEvent moves the registry to e's target state.
func (r *Registry) HandleEvent(e Event) error {
	return r.SetState(e.TargetState())
}

// SetState moves the registry to target through every state in between,
// notifying observers at each step. Setting the current state is a no-op.
func (r *Registry) SetState(target State) error {
	r.notify.Lock()
	defer r.notify.Unlock()

	current := r.CurrentState()
	switch {
	case current == target:
		return nil
	case current == Destroyed:
		r.report(flowerrors.KindMisuse, ErrDestroyed)
		return ErrDestroyed
	case target == Initialized, target < Destroyed, target > Resumed:
		r.report(flowerrors.KindLifecycle, ErrInvalidTransition)
		return ErrInvalidTransition
	}

	for current != target {
		next, event := step(current, target)
		r.mu.Lock()
		r.state = next
		observers := r.snapshot()
		r.mu.Unlock()

		r.logger.Debug().Str("owner", r.name).Stringer("event", event).Stringer("state", next).Msg("lifecycle transition")
		r.metrics.LifecycleTransition(r.name, next.String())
		for _, o := range observers {
			if !o.removed.Load() {
				o.fn(next)
			}
		}
		current = next
	}
	return nil
}

// step returns the state adjacent to current in the direction of target,
// and the event producing it.
func step(current, target State) (State, Event) {
	if target > current {
		next := current + 1
		ev, _ := UpTo(next)
		return next, ev
	}
	if current == Initialized || current == Created {
		return Destroyed, OnDestroy
	}
	ev, _ := DownFrom(current)
	return current - 1, ev
}

func (r *Registry) report(kind flowerrors.ErrorKind, err error) {
	flowerrors.ReportTo(r.handler, &flowerrors.FlowError{
		Op:   "lifecycle.Registry.SetState(" + r.name + ")",
		Kind: kind,
		Err:  err,
	})
}

// snapshot must be called with r.mu held.
func (r *Registry) snapshot() []*registryObserver {
	ids := make([]uint64, 0, len(r.observers))
	for id := range r.observers {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	out := make([]*registryObserver, len(ids))
	for i, id := range ids {
		out[i] = r.observers[id]
	}
	return out
}
