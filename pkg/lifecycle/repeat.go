package lifecycle

import (
	"context"
	"errors"
	"sync"
	"time"

	flowerrors "github.com/go-drift/flowstate/pkg/errors"
	"github.com/go-drift/flowstate/pkg/stream"
)

// ErrInvalidThreshold is returned for a threshold that can never be crossed
// both ways: Initialized and Destroyed.
var ErrInvalidThreshold = errors.New("lifecycle: invalid threshold")

// ValidThreshold reports whether t can gate work.
func ValidThreshold(t State) bool {
	return t >= Created && t <= Resumed
}

// mailbox conflates signal notifications: the runner only ever needs the
// latest state.
type mailbox struct {
	mu    sync.Mutex
	state State
	wake  chan struct{}
}

func newMailbox() *mailbox {
	return &mailbox{wake: make(chan struct{}, 1)}
}

func (m *mailbox) put(s State) {
	m.mu.Lock()
	m.state = s
	m.mu.Unlock()
	select {
	case m.wake <- struct{}{}:
	default:
	}
}

func (m *mailbox) latest() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// RepeatOnLifecycle runs block each time signal rises to threshold or
// above, and cancels it when signal falls below. A new run never starts
// before the previous one has returned. A run that returns on its own is
// not restarted until the next upward crossing.
//
// RepeatOnLifecycle blocks until ctx is done or signal reaches Destroyed,
// returning nil, or until a run fails, returning its error. It always waits
// for the current run to return.
func RepeatOnLifecycle(ctx context.Context, signal Signal, threshold State, block func(ctx context.Context) error) error {
	if !ValidThreshold(threshold) {
		return ErrInvalidThreshold
	}

	box := newMailbox()
	remove := signal.AddObserver(box.put)
	defer remove()

	var (
		above     bool
		runCancel context.CancelFunc
		runDone   chan error
	)
	stop := func() {
		if runCancel == nil {
			return
		}
		runCancel()
		<-runDone
		runCancel, runDone = nil, nil
	}
	defer stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case err := <-runDone:
			runCancel()
			runCancel, runDone = nil, nil
			if err != nil && !errors.Is(err, context.Canceled) {
				return err
			}

		case <-box.wake:
			state := box.latest()
			switch {
			case state == Destroyed:
				return nil
			case state.IsAtLeast(threshold):
				if !above {
					above = true
					if runCancel == nil {
						runCancel, runDone = launch(ctx, block)
					}
				}
			default:
				above = false
				stop()
			}
		}
	}
}

func launch(ctx context.Context, block func(ctx context.Context) error) (context.CancelFunc, chan error) {
	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan error, 1)
	go func() {
		var err error
		defer func() {
			if r := recover(); r != nil {
				err = &flowerrors.PanicError{
					Op:         "lifecycle.RepeatOnLifecycle",
					Value:      r,
					StackTrace: flowerrors.CaptureStack(),
					Timestamp:  time.Now(),
				}
			}
			done <- err
		}()
		err = block(runCtx)
	}()
	return cancel, done
}

// WithLifecycle returns a source that observes src only while signal is at
// or above threshold. Every upward crossing starts a new observation of
// src. The returned source completes when signal reaches Destroyed, when
// src fails, or when the observation is cancelled.
func WithLifecycle[T any](src stream.Source[T], signal Signal, threshold State) stream.Source[T] {
	return stream.SourceFunc[T](func(ctx context.Context, next func(T), complete func(error)) {
		if !ValidThreshold(threshold) {
			complete(ErrInvalidThreshold)
			return
		}
		go func() {
			err := RepeatOnLifecycle(ctx, signal, threshold, func(runCtx context.Context) error {
				return stream.Collect(runCtx, src, func(v T) error {
					next(v)
					return nil
				})
			})
			if err == nil {
				err = ctx.Err()
			}
			complete(err)
		}()
	})
}
