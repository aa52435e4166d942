package core

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	flowerrors "github.com/go-drift/flowstate/pkg/errors"
)

// Scope is the owning scope of bridges and cells: a UI component, a view
// model, or any other owner with a bounded lifetime.
//
// Cancelling the scope cancels its context, which stops every piece of
// work launched in it, and runs the registered disposers in reverse order.
// A scope is cancelled by Cancel, Close, a failure under FailCancel, or
// cancellation of its parent context.
type Scope struct {
	ctx    context.Context
	cancel context.CancelCauseFunc
	cfg    Config
	logger zerolog.Logger

	mu        sync.Mutex
	disposers []func()
	children  []*Scope
	disposed  bool
	wg        sync.WaitGroup
}

// NewScope creates a scope whose context derives from parent.
func NewScope(parent context.Context, cfgs ...Config) *Scope {
	if parent == nil {
		parent = context.Background()
	}
	cfg := Merge(cfgs...).withDefaults()
	ctx, cancel := context.WithCancelCause(parent)
	s := &Scope{
		ctx:    ctx,
		cancel: cancel,
		cfg:    cfg,
	}
	logCtx := cfg.Logger.With()
	if cfg.Name != "" {
		logCtx = logCtx.Str("scope", cfg.Name)
	}
	s.logger = logCtx.Logger()
	context.AfterFunc(ctx, s.dispose)
	return s
}

// Child creates a scope cancelled together with s. cfgs are merged over
// the parent's configuration.
func (s *Scope) Child(cfgs ...Config) *Scope {
	child := NewScope(s.ctx, append([]Config{s.cfg}, cfgs...)...)
	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		child.Cancel()
		return child
	}
	s.children = append(s.children, child)
	s.mu.Unlock()
	return child
}

// Context returns the scope's context. It is done once the scope is cancelled.
func (s *Scope) Context() context.Context { return s.ctx }

// Name returns the configured scope name.
func (s *Scope) Name() string { return s.cfg.Name }

// Config returns the effective configuration, defaults applied.
func (s *Scope) Config() Config { return s.cfg }

// Dispatcher returns the scope's execution context for value delivery.
func (s *Scope) Dispatcher() Dispatcher { return s.cfg.Dispatcher }

// Clock returns the scope's clock.
func (s *Scope) Clock() Clock { return s.cfg.Clock }

// Logger returns the scope's logger.
func (s *Scope) Logger() *zerolog.Logger { return &s.logger }

// Err returns nil while the scope is live, and the cancellation cause after.
func (s *Scope) Err() error {
	if s.ctx.Err() == nil {
		return nil
	}
	return context.Cause(s.ctx)
}

// OnDispose registers a cleanup function to be called when the scope is
// cancelled. Returns an unregister function that can be called to remove
// the disposer. The cleanup function will only be called once.
func (s *Scope) OnDispose(cleanup func()) func() {
	if cleanup == nil {
		return func() {}
	}

	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		cleanup()
		return func() {}
	}
	index := len(s.disposers)
	s.disposers = append(s.disposers, cleanup)
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if index < len(s.disposers) {
			s.disposers[index] = nil
		}
	}
}

// IsDisposed returns true once the scope has been cancelled.
func (s *Scope) IsDisposed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.disposed
}

// Launch runs fn on the scope's executor with the scope's context. A
// non-nil error other than the scope's own cancellation is passed to Fail.
// Launch returns ErrDisposed if the scope is already cancelled.
func (s *Scope) Launch(op string, fn func(ctx context.Context) error) error {
	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		s.misuse(op, flowerrors.ErrDisposed)
		return flowerrors.ErrDisposed
	}
	s.wg.Add(1)
	s.mu.Unlock()

	err := s.cfg.Executor.Submit(func() {
		defer s.wg.Done()
		defer s.recoverLaunch(op)
		if err := fn(s.ctx); err != nil {
			if s.ctx.Err() != nil && errors.Is(err, context.Canceled) {
				return
			}
			s.Fail(op, err)
		}
	})
	if err != nil {
		// Reported only; cancelling here would re-enter callers that
		// launch while holding their own locks.
		s.wg.Done()
		flowerrors.ReportTo(s.cfg.ErrorHandler, &flowerrors.FlowError{Op: op, Err: err})
		return err
	}
	return nil
}

func (s *Scope) recoverLaunch(op string) {
	r := recover()
	if r == nil {
		return
	}
	flowerrors.ReportPanicTo(s.cfg.ErrorHandler, &flowerrors.PanicError{
		Op:         op,
		Value:      r,
		StackTrace: flowerrors.CaptureStack(),
		Timestamp:  time.Now(),
	})
	if s.cfg.FailurePolicy == FailCancel {
		s.CancelCause(&flowerrors.PanicError{Op: op, Value: r})
	}
}

// Fail routes a failure through the scope: it is reported to the scope's
// error handler and, under FailCancel, cancels the scope. Errors that are
// not already a *FlowError are reported as KindUpstream.
func (s *Scope) Fail(op string, err error) {
	if err == nil {
		return
	}
	var fe *flowerrors.FlowError
	if !errors.As(err, &fe) {
		fe = &flowerrors.FlowError{Op: op, Kind: flowerrors.KindUpstream, Err: err}
	}
	s.logger.Debug().Str("op", op).Err(err).Msg("scope failure")
	flowerrors.ReportTo(s.cfg.ErrorHandler, fe)
	if s.cfg.FailurePolicy == FailCancel {
		s.CancelCause(fe)
	}
}

func (s *Scope) misuse(op string, err error) {
	flowerrors.ReportTo(s.cfg.ErrorHandler, &flowerrors.FlowError{
		Op:   op,
		Kind: flowerrors.KindMisuse,
		Err:  err,
	})
}

// Cancel cancels the scope and runs its disposers. It does not wait for
// launched work to return; use Close for that.
func (s *Scope) Cancel() {
	s.CancelCause(flowerrors.ErrDisposed)
}

// CancelCause is like Cancel but records cause as the context's cause.
func (s *Scope) CancelCause(cause error) {
	s.cancel(cause)
	s.dispose()
}

// Wait blocks until all work launched in the scope and its children has
// returned.
func (s *Scope) Wait() {
	s.wg.Wait()
	s.mu.Lock()
	children := append([]*Scope(nil), s.children...)
	s.mu.Unlock()
	for _, c := range children {
		c.Wait()
	}
}

// Close cancels the scope and waits for its work to return. Close must not
// be called from work launched in the scope itself.
func (s *Scope) Close() {
	s.Cancel()
	s.Wait()
}

// dispose executes all registered disposers in reverse order.
func (s *Scope) dispose() {
	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		return
	}
	s.disposed = true
	disposers := s.disposers
	s.disposers = nil
	children := s.children
	s.mu.Unlock()

	for _, c := range children {
		c.Cancel()
	}
	for i := len(disposers) - 1; i >= 0; i-- {
		if disposers[i] != nil {
			s.runDisposer(disposers[i])
		}
	}
	s.logger.Debug().Msg("scope disposed")
}

func (s *Scope) runDisposer(fn func()) {
	defer flowerrors.Recover("core.Scope.dispose")
	fn()
}
