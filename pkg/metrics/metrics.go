// Package metrics exposes counters and gauges describing subscription,
// lifecycle and persistence activity.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Collector captures events emitted by bridges, sharing policies and saved
// state. Implementations are called inline on delivery paths and must be
// cheap and safe for concurrent use.
type Collector interface {
	SubscriptionStarted(name string)
	SubscriptionStopped(name string)
	LifecycleTransition(owner, state string)
	StoreWrite(key string, err error)
}

type noopCollector struct{}

// Noop returns a collector that discards all metrics.
func Noop() Collector {
	return noopCollector{}
}

func (noopCollector) SubscriptionStarted(string)         {}
func (noopCollector) SubscriptionStopped(string)         {}
func (noopCollector) LifecycleTransition(string, string) {}
func (noopCollector) StoreWrite(string, error)           {}

// PrometheusCollector exposes flowstate metrics via Prometheus.
type PrometheusCollector struct {
	active      *prometheus.GaugeVec
	started     *prometheus.CounterVec
	transitions *prometheus.CounterVec
	writes      *prometheus.CounterVec
}

// registerMu serializes registration so concurrent constructors resolve to
// the same vectors.
var registerMu sync.Mutex

// NewPrometheusCollector registers the flowstate metrics with reg. Calling
// it again with a registry that already holds the metrics reuses them.
func NewPrometheusCollector(reg prometheus.Registerer) (*PrometheusCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	registerMu.Lock()
	defer registerMu.Unlock()

	active, err := registerGaugeVec(reg, prometheus.GaugeOpts{
		Name: "flowstate_subscriptions_active",
		Help: "Number of upstream observations currently held by a bridge or shared state.",
	}, "name")
	if err != nil {
		return nil, err
	}
	started, err := registerCounterVec(reg, prometheus.CounterOpts{
		Name: "flowstate_subscriptions_started_total",
		Help: "Number of upstream observations started.",
	}, "name")
	if err != nil {
		return nil, err
	}
	transitions, err := registerCounterVec(reg, prometheus.CounterOpts{
		Name: "flowstate_lifecycle_transitions_total",
		Help: "Number of lifecycle state changes per owner and target state.",
	}, "owner", "state")
	if err != nil {
		return nil, err
	}
	writes, err := registerCounterVec(reg, prometheus.CounterOpts{
		Name: "flowstate_store_writes_total",
		Help: "Number of saved-state writes per key and result.",
	}, "key", "result")
	if err != nil {
		return nil, err
	}

	return &PrometheusCollector{
		active:      active,
		started:     started,
		transitions: transitions,
		writes:      writes,
	}, nil
}

func registerCounterVec(reg prometheus.Registerer, opts prometheus.CounterOpts, labels ...string) (*prometheus.CounterVec, error) {
	counter := prometheus.NewCounterVec(opts, labels)
	if err := reg.Register(counter); err != nil {
		if already, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := already.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
		}
		return nil, err
	}
	return counter, nil
}

func registerGaugeVec(reg prometheus.Registerer, opts prometheus.GaugeOpts, labels ...string) (*prometheus.GaugeVec, error) {
	gauge := prometheus.NewGaugeVec(opts, labels)
	if err := reg.Register(gauge); err != nil {
		if already, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := already.ExistingCollector.(*prometheus.GaugeVec); ok {
				return existing, nil
			}
		}
		return nil, err
	}
	return gauge, nil
}

// SubscriptionStarted records the start of an upstream observation.
func (p *PrometheusCollector) SubscriptionStarted(name string) {
	if p == nil {
		return
	}
	p.active.WithLabelValues(name).Inc()
	p.started.WithLabelValues(name).Inc()
}

// SubscriptionStopped records the end of an upstream observation.
func (p *PrometheusCollector) SubscriptionStopped(name string) {
	if p == nil {
		return
	}
	p.active.WithLabelValues(name).Dec()
}

// LifecycleTransition counts a lifecycle state change.
func (p *PrometheusCollector) LifecycleTransition(owner, state string) {
	if p == nil {
		return
	}
	p.transitions.WithLabelValues(owner, state).Inc()
}

// StoreWrite counts a saved-state write, labelled by outcome.
func (p *PrometheusCollector) StoreWrite(key string, err error) {
	if p == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	p.writes.WithLabelValues(key, result).Inc()
}
