package saved

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-drift/flowstate/pkg/core"
	flowerrors "github.com/go-drift/flowstate/pkg/errors"
)

const (
	waitFor = 2 * time.Second
	tick    = 5 * time.Millisecond
)

var errDiskFull = errors.New("disk full")

// flakyStore fails writes while broken is set.
type flakyStore struct {
	*MemoryStore
	broken atomic.Bool
}

func newFlakyStore() *flakyStore {
	return &flakyStore{MemoryStore: NewMemoryStore()}
}

func (s *flakyStore) Set(key string, value []byte) error {
	if s.broken.Load() {
		return errDiskFull
	}
	return s.MemoryStore.Set(key, value)
}

type errorSink struct {
	errs chan *flowerrors.FlowError
}

func newErrorSink() *errorSink {
	return &errorSink{errs: make(chan *flowerrors.FlowError, 8)}
}

func (s *errorSink) HandleError(err *flowerrors.FlowError) { s.errs <- err }
func (s *errorSink) HandlePanic(*flowerrors.PanicError)    {}

func (s *errorSink) next(t *testing.T) *flowerrors.FlowError {
	t.Helper()
	select {
	case err := <-s.errs:
		return err
	case <-time.After(waitFor):
		t.Fatal("no error reported")
		return nil
	}
}

func newScope(t *testing.T, cfgs ...core.Config) *core.Scope {
	t.Helper()
	scope := core.NewScope(context.Background(), cfgs...)
	t.Cleanup(scope.Close)
	return scope
}

type collected[T any] struct {
	mu     sync.Mutex
	values []T
}

func (c *collected[T]) add(v T) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.values = append(c.values, v)
}

func (c *collected[T]) get() []T {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]T(nil), c.values...)
}

type writeRecorder struct {
	mu     sync.Mutex
	writes map[string]int
	failed int
}

func (r *writeRecorder) SubscriptionStarted(string)         {}
func (r *writeRecorder) SubscriptionStopped(string)         {}
func (r *writeRecorder) LifecycleTransition(string, string) {}
func (r *writeRecorder) StoreWrite(key string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.writes == nil {
		r.writes = make(map[string]int)
	}
	r.writes[key]++
	if err != nil {
		r.failed++
	}
}
