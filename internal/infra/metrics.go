package infra

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	JobsCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "veo_jobs_created_total",
		Help: "Generation jobs admitted, by mode",
	}, []string{"mode"})

	JobsFinished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "veo_jobs_finished_total",
		Help: "Generation jobs that reached a terminal state, by mode and status",
	}, []string{"mode", "status"})

	JobsInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "veo_jobs_in_flight",
		Help: "Detached generation tasks currently calling the provider",
	})

	AdmissionRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "veo_admission_rejections_total",
		Help: "Requests rejected before job creation, by reason",
	}, []string{"reason"})

	JanitorEvictions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "veo_janitor_evictions_total",
		Help: "Entries removed by the janitor, by ledger",
	}, []string{"ledger"})

	ProviderLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "veo_provider_seconds",
		Help:    "Provider call latency in seconds, by outcome",
		Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
	}, []string{"outcome"})
)
