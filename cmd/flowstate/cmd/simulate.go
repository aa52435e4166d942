package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/go-drift/flowstate/pkg/bridge"
	"github.com/go-drift/flowstate/pkg/core"
	flowerrors "github.com/go-drift/flowstate/pkg/errors"
	"github.com/go-drift/flowstate/pkg/lifecycle"
	"github.com/go-drift/flowstate/pkg/metrics"
	"github.com/go-drift/flowstate/pkg/saved"
	"github.com/go-drift/flowstate/pkg/stream"
)

type simulateOptions struct {
	states      string
	threshold   string
	key         string
	interval    time.Duration
	dwell       int
	metricsAddr string
}

func newSimulateCommand(global *globalOptions) *cobra.Command {
	opts := &simulateOptions{}
	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Drive a lifecycle trajectory over a gated, persisted counter",
		Long: `simulate moves a lifecycle registry through --states. A counter ticking
every --interval is persisted under --key and collected into a cell that is
only fed while the registry is at or above --threshold. Every state change
prints the cell's value and phase.

The counter resumes from the stored value, so repeated runs keep counting.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := global.load()
			if err != nil {
				return err
			}
			return runSimulate(cmd.Context(), cmd, e, opts)
		},
	}
	cmd.Flags().StringVar(&opts.states, "states", "created,started,resumed,started,created", "comma separated lifecycle trajectory")
	cmd.Flags().StringVar(&opts.threshold, "threshold", "started", "lowest state at which the counter is collected")
	cmd.Flags().StringVar(&opts.key, "key", "counter", "store key of the counter")
	cmd.Flags().DurationVar(&opts.interval, "interval", 50*time.Millisecond, "counter tick interval")
	cmd.Flags().IntVar(&opts.dwell, "dwell", 3, "ticks spent in each state")
	cmd.Flags().StringVar(&opts.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address, overrides metrics.addr")
	return cmd
}

func parseTrajectory(s string) ([]lifecycle.State, error) {
	var states []lifecycle.State
	for _, part := range strings.Split(s, ",") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		st, err := lifecycle.ParseState(part)
		if err != nil {
			return nil, err
		}
		states = append(states, st)
	}
	if len(states) == 0 {
		return nil, errors.New("empty trajectory")
	}
	return states, nil
}

// ticker counts up from the stored value every interval.
func ticker(h *saved.Handle, key string, interval time.Duration) stream.Source[int] {
	return stream.Generate(func(ctx context.Context, emit func(int)) error {
		n, _, err := saved.Get[int](h, key)
		if err != nil {
			return err
		}
		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-t.C:
				n++
				emit(n)
			}
		}
	})
}

func runSimulate(ctx context.Context, cmd *cobra.Command, e *env, opts *simulateOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if opts.interval <= 0 {
		return fmt.Errorf("--interval must be positive")
	}
	trajectory, err := parseTrajectory(opts.states)
	if err != nil {
		return err
	}
	threshold, err := lifecycle.ParseState(opts.threshold)
	if err != nil {
		return err
	}
	if !lifecycle.ValidThreshold(threshold) {
		return fmt.Errorf("--threshold: %w", lifecycle.ErrInvalidThreshold)
	}

	registry := prometheus.NewRegistry()
	collector, err := metrics.NewPrometheusCollector(registry)
	if err != nil {
		return err
	}
	addr := e.resolved.MetricsAddr
	if opts.metricsAddr != "" {
		addr = opts.metricsAddr
	}
	if addr != "" {
		stop := serveMetrics(addr, registry, &e.logger)
		defer stop()
	}

	h, err := e.openHandle(saved.WithMetrics(collector))
	if err != nil {
		return err
	}

	scopeCfg, release, err := e.resolved.ScopeConfig("simulate", &e.logger, collector)
	if err != nil {
		return err
	}
	defer release()
	scopeCfg.ErrorHandler = flowerrors.NewLogHandler(&e.logger)
	scope := core.NewScope(ctx, scopeCfg)
	defer scope.Close()

	counter, err := saved.StateIn(scope, h, opts.key, ticker(h, opts.key, opts.interval), 0,
		saved.WithStarted(e.resolved.Started),
		saved.WithReset(e.resolved.Reset))
	if err != nil {
		return err
	}

	owner := lifecycle.NewRegistry(
		lifecycle.WithName("simulate"),
		lifecycle.WithMetrics(collector),
		lifecycle.WithLogger(&e.logger),
	)
	cell := bridge.CollectStateAsState(scope, stream.StateSource[int](counter), owner,
		bridge.WithThreshold(threshold),
		bridge.WithName(opts.key))
	cell.AddListener(func(v int) {
		e.logger.Debug().Str("key", opts.key).Int("value", v).Msg("cell updated")
	})

	out := cmd.OutOrStdout()
	dwell := time.Duration(max(opts.dwell, 1)) * opts.interval
	for _, state := range trajectory {
		if err := owner.SetState(state); err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-scope.Context().Done():
			return context.Cause(scope.Context())
		case <-time.After(dwell):
		}
		fmt.Fprintf(out, "state=%s value=%d phase=%s\n", state, cell.Value(), cell.Phase())
	}

	if err := owner.SetState(lifecycle.Destroyed); err != nil && !errors.Is(err, lifecycle.ErrDestroyed) {
		return err
	}
	scope.Close()

	stored, _, err := counter.Stored()
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "final value=%d stored=%d\n", cell.Value(), stored)
	return nil
}

func serveMetrics(addr string, reg *prometheus.Registry, logger *zerolog.Logger) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Str("addr", addr).Msg("metrics server failed")
		}
	}()
	logger.Info().Str("addr", addr).Msg("serving metrics")
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}
