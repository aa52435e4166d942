package config

import (
	"github.com/rs/zerolog"

	"github.com/go-drift/flowstate/pkg/core"
	"github.com/go-drift/flowstate/pkg/metrics"
)

// ScopeConfig builds the scope configuration described by r. The returned
// function releases the dispatcher loop and worker pool it created; call it
// after the scopes using them are closed.
func (r *Resolved) ScopeConfig(name string, logger *zerolog.Logger, collector metrics.Collector) (core.Config, func(), error) {
	cfg := core.Config{
		Name:    name,
		Logger:  logger,
		Metrics: collector,
	}
	var cleanups []func()
	release := func() {
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i]()
		}
	}

	if r.DispatchMode == DispatchLoop {
		loop := core.NewLoopDispatcher()
		cfg.Dispatcher = loop
		cleanups = append(cleanups, loop.Dispose)
	}
	if r.PoolSize > 0 {
		pool, err := core.NewPoolExecutor(r.PoolSize)
		if err != nil {
			release()
			return core.Config{}, nil, err
		}
		cfg.Executor = pool
		cleanups = append(cleanups, pool.Dispose)
	}
	return cfg, release, nil
}
