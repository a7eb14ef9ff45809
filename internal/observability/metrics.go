package observability

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Metrics exposes engine counters and gauges to Prometheus. A nil *Metrics is
// safe to use everywhere; recording methods become no-ops.
type Metrics struct {
	syncAttempts  *prometheus.CounterVec
	recordsTotal  *prometheus.CounterVec
	bulkImported  prometheus.Counter
	circuitState  prometheus.Gauge
	slaEvals      prometheus.Counter
	notifications *prometheus.CounterVec

	server *http.Server
}

// NewMetrics registers engine metrics on the provided registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		syncAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "engine",
			Name:      "sync_attempts_total",
			Help:      "Sync tick attempts by result",
		}, []string{"result"}),
		recordsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "engine",
			Name:      "records_ingested_total",
			Help:      "Remote records processed by outcome",
		}, []string{"outcome"}),
		bulkImported: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "engine",
			Name:      "bulk_imported_total",
			Help:      "Records imported by bulk runs",
		}),
		circuitState: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "engine",
			Name:      "circuit_open",
			Help:      "1 when the sync circuit breaker is open",
		}),
		slaEvals: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "engine",
			Name:      "sla_evaluations_total",
			Help:      "SLA evaluation ticks",
		}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "engine",
			Name:      "notifications_total",
			Help:      "Notifications emitted by severity",
		}, []string{"severity"}),
	}

	reg.MustRegister(m.syncAttempts, m.recordsTotal, m.bulkImported,
		m.circuitState, m.slaEvals, m.notifications)
	return m
}

// RecordSyncAttempt counts a tick outcome ("success", "failure", "skipped").
func (m *Metrics) RecordSyncAttempt(result string) {
	if m == nil {
		return
	}
	m.syncAttempts.WithLabelValues(result).Inc()
}

// RecordIngested counts a record outcome ("saved", "updated", "unchanged", "error").
func (m *Metrics) RecordIngested(outcome string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.recordsTotal.WithLabelValues(outcome).Add(float64(n))
}

// RecordBulkImported counts records imported by a bulk run.
func (m *Metrics) RecordBulkImported(n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.bulkImported.Add(float64(n))
}

// SetCircuitOpen reflects the breaker state.
func (m *Metrics) SetCircuitOpen(open bool) {
	if m == nil {
		return
	}
	if open {
		m.circuitState.Set(1)
	} else {
		m.circuitState.Set(0)
	}
}

// RecordSLAEvaluation counts an evaluation tick.
func (m *Metrics) RecordSLAEvaluation() {
	if m == nil {
		return
	}
	m.slaEvals.Inc()
}

// RecordNotification counts an emitted notification.
func (m *Metrics) RecordNotification(severity string) {
	if m == nil {
		return
	}
	m.notifications.WithLabelValues(severity).Inc()
}

// Serve exposes /metrics on a dedicated listener.
func (m *Metrics) Serve(addr string, logger *zap.Logger) {
	if m == nil || addr == "" {
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	m.server = &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	go func() {
		if err := m.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics listener failed", zap.Error(err))
		}
	}()
}

// Shutdown stops the metrics listener.
func (m *Metrics) Shutdown(ctx context.Context) {
	if m == nil || m.server == nil {
		return
	}
	_ = m.server.Shutdown(ctx)
}
