package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"syswatch/internal/logger"
)

// Metrics holds the monitor's Prometheus collectors. A nil *Metrics is a
// valid no-op recorder.
type Metrics struct {
	registry *prometheus.Registry

	Iterations        prometheus.Counter
	IterationDuration prometheus.Histogram
	Samples           *prometheus.CounterVec
	SamplingFailures  *prometheus.CounterVec
	Events            *prometheus.CounterVec
	WriteFailures     prometheus.Counter
	Suppressed        prometheus.Counter
	Evicted           prometheus.Counter
	CooldownEntries   prometheus.Gauge
	KnownConnections  prometheus.Gauge
}

// New registers the collectors on a private registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		Iterations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "syswatch",
			Name:      "iterations_total",
			Help:      "Completed sampling iterations.",
		}),
		IterationDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "syswatch",
			Name:      "iteration_duration_seconds",
			Help:      "Processing time of one iteration, excluding the sleep.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
		Samples: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "syswatch",
			Name:      "samples_total",
			Help:      "Parsed samples per source.",
		}, []string{"source"}),
		SamplingFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "syswatch",
			Name:      "sampling_failures_total",
			Help:      "Failed tool invocations per source.",
		}, []string{"source"}),
		Events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "syswatch",
			Name:      "events_total",
			Help:      "Emitted records per kind.",
		}, []string{"kind"}),
		WriteFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "syswatch",
			Name:      "write_failures_total",
			Help:      "Sink write errors.",
		}),
		Suppressed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "syswatch",
			Name:      "cpu_alerts_suppressed_total",
			Help:      "Above-threshold samples held back by the cooldown.",
		}),
		Evicted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "syswatch",
			Name:      "cooldown_evictions_total",
			Help:      "Cooldown entries removed by cleanup.",
		}),
		CooldownEntries: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "syswatch",
			Name:      "cooldown_entries",
			Help:      "Keys currently held in the cooldown table.",
		}),
		KnownConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "syswatch",
			Name:      "known_connections",
			Help:      "Connections observed in the previous iteration.",
		}),
	}
	m.registry.MustRegister(
		m.Iterations,
		m.IterationDuration,
		m.Samples,
		m.SamplingFailures,
		m.Events,
		m.WriteFailures,
		m.Suppressed,
		m.Evicted,
		m.CooldownEntries,
		m.KnownConnections,
	)
	return m
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveIteration records a finished iteration.
func (m *Metrics) ObserveIteration(elapsed time.Duration, cooldownEntries, knownConnections int) {
	if m == nil {
		return
	}
	m.Iterations.Inc()
	m.IterationDuration.Observe(elapsed.Seconds())
	m.CooldownEntries.Set(float64(cooldownEntries))
	m.KnownConnections.Set(float64(knownConnections))
}

// AddSamples counts parsed samples for a source.
func (m *Metrics) AddSamples(source string, n int) {
	if m == nil {
		return
	}
	m.Samples.WithLabelValues(source).Add(float64(n))
}

// SamplingFailed counts a failed invocation.
func (m *Metrics) SamplingFailed(source string) {
	if m == nil {
		return
	}
	m.SamplingFailures.WithLabelValues(source).Inc()
}

// EventEmitted counts one emitted record.
func (m *Metrics) EventEmitted(kind string) {
	if m == nil {
		return
	}
	m.Events.WithLabelValues(kind).Inc()
}

// WriteFailed counts a sink error.
func (m *Metrics) WriteFailed() {
	if m == nil {
		return
	}
	m.WriteFailures.Inc()
}

// CooldownOutcome records suppression and eviction counts of one decision pass.
func (m *Metrics) CooldownOutcome(suppressed, evicted int) {
	if m == nil {
		return
	}
	m.Suppressed.Add(float64(suppressed))
	m.Evicted.Add(float64(evicted))
}

// Serve exposes /metrics on addr until ctx is cancelled.
func (m *Metrics) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warnf("Metrics server shutdown: %v", err)
		}
	}()

	logger.Infof("Metrics listening on %s", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
