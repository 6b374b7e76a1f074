// SPDX-License-Identifier: MPL-2.0

package live

import (
	"github.com/cmdtree/cmdtree/pkg/cmdtree"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "cmdtree"

// Metrics records reload outcomes. A nil *Metrics records nothing.
type Metrics struct {
	reloads     *prometheus.CounterVec
	duration    prometheus.Histogram
	diagnostics *prometheus.CounterVec
	nodes       prometheus.Gauge
	unbound     prometheus.Gauge
	generation  prometheus.Gauge
	documents   prometheus.Gauge
}

// NewMetrics creates the reload metrics and registers them with reg.
// A nil reg leaves them unregistered, which is convenient in tests.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		reloads: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "reloads_total",
			Help:      "Reload attempts by result (success, rejected, error).",
		}, []string{"result"}),
		duration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "reload_duration_seconds",
			Help:      "Time from reload start to swap or rejection.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 14),
		}),
		diagnostics: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "reload_diagnostics_total",
			Help:      "Diagnostics reported by rejected reloads, by error kind.",
		}, []string{"kind"}),
		nodes: f.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "tree_nodes",
			Help:      "Nodes in the live tree, excluding the root.",
		}),
		unbound: f.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "tree_unbound_executables",
			Help:      "Executable nodes of the live tree without a handler.",
		}),
		generation: f.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "tree_generation",
			Help:      "Generation number of the live tree.",
		}),
		documents: f.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "tree_documents",
			Help:      "Documents that contributed to the live tree.",
		}),
	}
}

func (m *Metrics) observe(r *Report) {
	if m == nil {
		return
	}
	m.reloads.WithLabelValues(r.Result()).Inc()
	m.duration.Observe(r.Duration.Seconds())
	for _, d := range r.Diagnostics {
		m.diagnostics.WithLabelValues(string(d.Kind)).Inc()
	}
	if r.Err != nil {
		return
	}
	m.nodes.Set(float64(r.Nodes))
	m.unbound.Set(float64(len(r.Unbound)))
	m.generation.Set(float64(r.Generation))
	m.documents.Set(float64(r.Documents))
}

// init touches every label so the series exist before the first reload.
func (m *Metrics) init() {
	if m == nil {
		return
	}
	for _, res := range []string{resultSuccess, resultRejected, resultError} {
		m.reloads.WithLabelValues(res)
	}
	for _, k := range cmdtree.Kinds() {
		if k.ReloadTime() {
			m.diagnostics.WithLabelValues(string(k))
		}
	}
}
