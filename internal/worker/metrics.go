package worker

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type metrics struct {
	registry           *prometheus.Registry
	invocationsTotal   *prometheus.CounterVec
	invocationDuration *prometheus.HistogramVec
	activeInvocations  prometheus.Gauge
	artifactsTotal     *prometheus.CounterVec
	webhookDeliveries  *prometheus.CounterVec
}

func newMetrics() *metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &metrics{
		registry: registry,
		invocationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "curveflow_worker_invocations_total",
			Help: "Total worker invocations by node and final status.",
		}, []string{"node", "status"}),
		invocationDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "curveflow_worker_invocation_duration_seconds",
			Help:    "Processing duration of each worker invocation.",
			Buckets: prometheus.ExponentialBuckets(0.001, 4, 8),
		}, []string{"node", "status"}),
		activeInvocations: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "curveflow_worker_active_invocations",
			Help: "Invocations currently executing in the worker.",
		}),
		artifactsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "curveflow_worker_artifacts_total",
			Help: "Artifacts written by the worker.",
		}, []string{"artifact"}),
		webhookDeliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "curveflow_worker_webhook_deliveries_total",
			Help: "Webhook deliveries by event and outcome.",
		}, []string{"event", "outcome"}),
	}

	registry.MustRegister(
		m.invocationsTotal,
		m.invocationDuration,
		m.activeInvocations,
		m.artifactsTotal,
		m.webhookDeliveries,
	)
	return m
}

func (m *metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
