package core

import (
	"sync"

	"github.com/Workiva/go-datastructures/queue"

	flowerrors "github.com/go-drift/flowstate/pkg/errors"
)

// Dispatcher schedules callbacks on an execution context. Implementations
// must run callbacks in the order they were dispatched.
type Dispatcher interface {
	// Dispatch schedules callback. It returns false if the callback was not
	// scheduled, because it is nil or the dispatcher is shut down.
	Dispatch(callback func()) bool
}

// DispatcherFunc adapts a function to the Dispatcher interface.
type DispatcherFunc func(callback func())

// Dispatch calls f(callback).
func (f DispatcherFunc) Dispatch(callback func()) bool {
	if f == nil || callback == nil {
		return false
	}
	f(callback)
	return true
}

type immediateDispatcher struct{}

func (immediateDispatcher) Dispatch(callback func()) bool {
	if callback == nil {
		return false
	}
	callback()
	return true
}

// Immediate returns a dispatcher that runs callbacks synchronously on the
// calling goroutine.
func Immediate() Dispatcher { return immediateDispatcher{} }

// LoopDispatcher runs callbacks one at a time on a single goroutine, in
// submission order. Callbacks still queued when the loop is disposed are
// dropped.
type LoopDispatcher struct {
	queue *queue.Queue
	done  chan struct{}
	once  sync.Once
}

// loopBatch bounds how many callbacks are taken from the queue per wakeup.
const loopBatch = 32

// NewLoopDispatcher starts a dispatcher loop. Call Dispose to stop it.
func NewLoopDispatcher() *LoopDispatcher {
	d := &LoopDispatcher{
		queue: queue.New(loopBatch),
		done:  make(chan struct{}),
	}
	go d.run()
	return d
}

func (d *LoopDispatcher) run() {
	defer close(d.done)
	for {
		items, err := d.queue.Get(loopBatch)
		if err != nil {
			return
		}
		for _, item := range items {
			if cb, ok := item.(func()); ok {
				d.invoke(cb)
			}
		}
	}
}

func (d *LoopDispatcher) invoke(cb func()) {
	defer flowerrors.Recover("core.LoopDispatcher")
	cb()
}

// Dispatch queues callback for the loop goroutine.
func (d *LoopDispatcher) Dispatch(callback func()) bool {
	if callback == nil {
		return false
	}
	return d.queue.Put(callback) == nil
}

// Flush blocks until every callback dispatched before the call has run.
// It returns immediately once the loop is disposed.
func (d *LoopDispatcher) Flush() {
	marker := make(chan struct{})
	if !d.Dispatch(func() { close(marker) }) {
		return
	}
	select {
	case <-marker:
	case <-d.done:
	}
}

// Dispose stops the loop and waits for the callback in progress to return.
func (d *LoopDispatcher) Dispose() {
	d.once.Do(func() {
		d.queue.Dispose()
	})
	<-d.done
}
