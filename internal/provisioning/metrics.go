package provisioning

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics records bootstrap metrics. A nil *Metrics records nothing.
type Metrics struct {
	phaseDuration *prometheus.HistogramVec
	remoteCalls   *prometheus.CounterVec
	secretRetries *prometheus.CounterVec
	instances     *prometheus.GaugeVec
	requiredNodes prometheus.Gauge
}

// NewMetrics creates the bootstrap collectors and registers them on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		phaseDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "ledgerlab",
				Subsystem: "bootstrap",
				Name:      "phase_duration_seconds",
				Help:      "Duration of bootstrap phases in seconds by result",
				Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12), // 100ms to ~7min
			},
			[]string{"phase", "result"},
		),
		remoteCalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "ledgerlab",
				Subsystem: "bootstrap",
				Name:      "remote_calls_total",
				Help:      "Total number of remote calls by operation and result",
			},
			[]string{"operation", "result"},
		),
		secretRetries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "ledgerlab",
				Subsystem: "secrets",
				Name:      "init_retries_total",
				Help:      "Total number of retried secret-store initializations by slot",
			},
			[]string{"slot"},
		),
		instances: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "ledgerlab",
				Subsystem: "cluster",
				Name:      "instances",
				Help:      "Number of spawned instances by role",
			},
			[]string{"role"},
		),
		requiredNodes: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "ledgerlab",
				Subsystem: "cluster",
				Name:      "required_nodes",
				Help:      "Number of nodes the topology requires",
			},
		),
	}

	if reg != nil {
		reg.MustRegister(m.phaseDuration, m.remoteCalls, m.secretRetries, m.instances, m.requiredNodes)
	}
	return m
}

// ObservePhase records a finished phase.
func (m *Metrics) ObservePhase(phase string, d time.Duration, err error) {
	if m == nil {
		return
	}
	m.phaseDuration.WithLabelValues(phase, result(err)).Observe(d.Seconds())
}

// RemoteCall records the outcome of a remote call.
func (m *Metrics) RemoteCall(operation string, err error) {
	if m == nil {
		return
	}
	m.remoteCalls.WithLabelValues(operation, result(err)).Inc()
}

// SecretInitRetry records a retried secret-store initialization.
func (m *Metrics) SecretInitRetry(slot string) {
	if m == nil {
		return
	}
	m.secretRetries.WithLabelValues(slot).Inc()
}

// SetInstances records the spawned instance count for role.
func (m *Metrics) SetInstances(role Role, n int) {
	if m == nil {
		return
	}
	m.instances.WithLabelValues(string(role)).Set(float64(n))
}

// SetRequiredNodes records the node count the topology requires.
func (m *Metrics) SetRequiredNodes(n int) {
	if m == nil {
		return
	}
	m.requiredNodes.Set(float64(n))
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
