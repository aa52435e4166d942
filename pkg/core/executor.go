package core

import (
	"time"

	"github.com/panjf2000/ants/v2"

	flowerrors "github.com/go-drift/flowstate/pkg/errors"
)

// Executor runs work launched in a scope.
type Executor interface {
	Submit(task func()) error
}

type goroutineExecutor struct{}

func (goroutineExecutor) Submit(task func()) error {
	go task()
	return nil
}

// Goroutines returns an executor that starts one goroutine per task.
func Goroutines() Executor { return goroutineExecutor{} }

// PoolExecutor runs tasks on a reusable goroutine pool.
//
// Scope work is usually long-lived (a collector runs as long as its
// subscription), so a bounded pool must be sized for the number of
// concurrent subscriptions. Submit never blocks: it fails with
// ants.ErrPoolOverload while every worker is busy.
type PoolExecutor struct {
	pool *ants.Pool
}

// NewPoolExecutor creates a pool with the given capacity. A size of zero
// or less creates an unbounded pool.
func NewPoolExecutor(size int) (*PoolExecutor, error) {
	if size <= 0 {
		size = -1
	}
	pool, err := ants.NewPool(size,
		ants.WithExpiryDuration(10*time.Second),
		ants.WithNonblocking(true),
		ants.WithPanicHandler(func(r any) {
			flowerrors.ReportPanic(&flowerrors.PanicError{
				Op:        "core.PoolExecutor",
				Value:     r,
				Timestamp: time.Now(),
			})
		}),
	)
	if err != nil {
		return nil, err
	}
	return &PoolExecutor{pool: pool}, nil
}

// Submit schedules task on the pool.
func (p *PoolExecutor) Submit(task func()) error {
	return p.pool.Submit(task)
}

// Running returns the number of tasks currently executing.
func (p *PoolExecutor) Running() int {
	return p.pool.Running()
}

// Dispose releases the pool. Running tasks are not interrupted.
func (p *PoolExecutor) Dispose() {
	p.pool.Release()
}
