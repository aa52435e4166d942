package saved

import (
	"fmt"
	"time"

	"github.com/go-drift/flowstate/pkg/core"
	"github.com/go-drift/flowstate/pkg/stream"
)

// DefaultStopTimeout is the grace period of the default restart policy.
const DefaultStopTimeout = 5 * time.Second

// ResetPolicy selects the value restored when a persisted state's replay
// expires.
type ResetPolicy int

const (
	// ResetToStored restores the value currently in the store, read at
	// reset time, falling back to the effective initial value.
	ResetToStored ResetPolicy = iota
	// ResetToInitial restores the effective initial value chosen at
	// construction.
	ResetToInitial
)

func (p ResetPolicy) String() string {
	switch p {
	case ResetToStored:
		return "stored"
	case ResetToInitial:
		return "initial"
	default:
		return fmt.Sprintf("ResetPolicy(%d)", int(p))
	}
}

// ParseResetPolicy parses "stored" or "initial".
func ParseResetPolicy(s string) (ResetPolicy, error) {
	switch s {
	case "stored", "":
		return ResetToStored, nil
	case "initial":
		return ResetToInitial, nil
	}
	return 0, fmt.Errorf("saved: unknown reset policy %q", s)
}

// PersistOption configures StateIn.
type PersistOption func(*persistOptions)

type persistOptions struct {
	started stream.Started
	reset   ResetPolicy
}

// WithStarted sets the restart policy. The default is
// stream.WhileSubscribed(DefaultStopTimeout, stream.Never).
func WithStarted(s stream.Started) PersistOption {
	return func(o *persistOptions) { o.started = s }
}

// WithReset sets the reset policy. The default is ResetToStored.
func WithReset(p ResetPolicy) PersistOption {
	return func(o *persistOptions) { o.reset = p }
}

// Persisted is a shared state whose values are written to a store.
type Persisted[T any] struct {
	*stream.State[T]
	handle *Handle
	key    string
}

// StateIn shares src within scope, saving every value under key before
// publishing it. A value already saved under key replaces initial; when
// none is saved, initial is used and nothing is written until src
// delivers.
//
// A failed write does not withhold the value from observers, but it stops
// the upstream observation and is reported through the scope.
func StateIn[T any](scope *core.Scope, h *Handle, key string, src stream.Source[T], initial T, opts ...PersistOption) (*Persisted[T], error) {
	o := persistOptions{
		started: stream.WhileSubscribed(DefaultStopTimeout, stream.Never),
		reset:   ResetToStored,
	}
	for _, opt := range opts {
		opt(&o)
	}

	effective := initial
	stored, ok, err := Get[T](h, key)
	if err != nil {
		return nil, err
	}
	if ok {
		effective = stored
	}

	reset := func() T { return effective }
	if o.reset == ResetToStored {
		reset = func() T {
			v, ok, err := Get[T](h, key)
			if err != nil {
				scope.Fail("saved.StateIn("+key+").reset", err)
				return effective
			}
			if !ok {
				return effective
			}
			return v
		}
	}

	st := stream.StateIn(scope, src, effective, o.started,
		stream.WithName[T]("saved:"+h.fullKey(key)),
		stream.WithReset(reset),
		stream.WithWriteThrough(func(v T) error { return Set(h, key, v) }),
	)
	scope.Logger().Debug().Str("key", h.fullKey(key)).Bool("restored", ok).Str("started", o.started.String()).Msg("persisted state created")
	return &Persisted[T]{State: st, handle: h, key: key}, nil
}

// Key returns the key values are saved under, without namespace.
func (p *Persisted[T]) Key() string { return p.key }

// Stored decodes the value currently saved under the key.
func (p *Persisted[T]) Stored() (T, bool, error) {
	return Get[T](p.handle, p.key)
}
