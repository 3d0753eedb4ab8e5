package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the engine's Prometheus collectors. A nil *Metrics is valid
// and records nothing, which keeps unit tests free of registry setup.
type Metrics struct {
	LoansCreated       *prometheus.CounterVec
	Transitions        *prometheus.CounterVec
	IllegalTransitions *prometheus.CounterVec
	Verifications      *prometheus.CounterVec
	JournalAppend      prometheus.Histogram
	// Dashboard gauges, fed by the scheduled refresher
	DashboardValue     *prometheus.GaugeVec
	DashboardRecords   *prometheus.GaugeVec
	DashboardRefreshed prometheus.Gauge
}

// New registers every collector on reg (prometheus.DefaultRegisterer in the server).
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		LoansCreated: f.NewCounterVec(prometheus.CounterOpts{
			Name: "ledger_loans_created_total",
			Help: "Loan records appended to the ledger",
		}, []string{"kind", "asset"}),
		Transitions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "ledger_transitions_total",
			Help: "Status transitions applied",
		}, []string{"from", "to"}),
		IllegalTransitions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "ledger_illegal_transitions_total",
			Help: "Status transitions refused by the status graph",
		}, []string{"from", "to"}),
		Verifications: f.NewCounterVec(prometheus.CounterOpts{
			Name: "ledger_verifications_total",
			Help: "Verification requests by mode and verdict",
		}, []string{"mode", "verdict", "reason"}),
		JournalAppend: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "ledger_journal_append_seconds",
			Help:    "Latency of durable journal appends",
			Buckets: prometheus.DefBuckets,
		}),
		DashboardValue: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "ledger_dashboard_value",
			Help: "Dashboard aggregates per asset at the last refresh",
		}, []string{"metric", "asset"}),
		DashboardRecords: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "ledger_dashboard_records",
			Help: "Record counts per kind and status at the last refresh",
		}, []string{"kind", "status"}),
		DashboardRefreshed: f.NewGauge(prometheus.GaugeOpts{
			Name: "ledger_dashboard_refreshed_timestamp_seconds",
			Help: "Unix time of the last dashboard refresh",
		}),
	}
}

func (m *Metrics) LoanCreated(kind, asset string) {
	if m == nil {
		return
	}
	m.LoansCreated.WithLabelValues(kind, asset).Inc()
}

func (m *Metrics) Transitioned(from, to string) {
	if m == nil {
		return
	}
	m.Transitions.WithLabelValues(from, to).Inc()
}

func (m *Metrics) TransitionRefused(from, to string) {
	if m == nil {
		return
	}
	m.IllegalTransitions.WithLabelValues(from, to).Inc()
}

func (m *Metrics) Verified(mode, verdict, reason string) {
	if m == nil {
		return
	}
	m.Verifications.WithLabelValues(mode, verdict, reason).Inc()
}

func (m *Metrics) ObserveAppend(d time.Duration) {
	if m == nil {
		return
	}
	m.JournalAppend.Observe(d.Seconds())
}
