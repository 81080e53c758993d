package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Event metrics
	EventsHandledTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "slurm_client_events_handled_total",
			Help: "Total number of relation events handled by relation and kind",
		},
		[]string{"relation", "kind"},
	)

	// Reconciliation metrics
	ReconcilePassesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "slurm_client_reconcile_passes_total",
			Help: "Total number of reconciliation passes by result",
		},
		[]string{"result"},
	)

	ReconcileDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "slurm_client_reconcile_duration_seconds",
			Help:    "Reconciliation pass duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Daemon metrics
	ConfigWritesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "slurm_client_config_writes_total",
			Help: "Total number of daemon configuration writes by daemon",
		},
		[]string{"daemon"},
	)

	ServiceRestartsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "slurm_client_service_restarts_total",
			Help: "Total number of daemon service restarts by daemon",
		},
		[]string{"daemon"},
	)

	// Status metrics
	UnitStatus = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "slurm_client_unit_status",
			Help: "Current unit readiness (1 for the active kind, 0 otherwise)",
		},
		[]string{"kind"},
	)

	FactsPublishedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "slurm_client_facts_published_total",
			Help: "Total number of outbound fact publications",
		},
	)
)

func init() {
	prometheus.MustRegister(EventsHandledTotal)
	prometheus.MustRegister(ReconcilePassesTotal)
	prometheus.MustRegister(ReconcileDuration)
	prometheus.MustRegister(ConfigWritesTotal)
	prometheus.MustRegister(ServiceRestartsTotal)
	prometheus.MustRegister(UnitStatus)
	prometheus.MustRegister(FactsPublishedTotal)
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// SetUnitStatus sets the readiness gauge: 1 for the current kind, 0 for the rest.
func SetUnitStatus(kind string) {
	for _, k := range []string{"blocked", "waiting", "active"} {
		v := 0.0
		if k == kind {
			v = 1.0
		}
		UnitStatus.WithLabelValues(k).Set(v)
	}
}
