package pipeline

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

type Metrics struct {
	Registry *prometheus.Registry

	runs          *prometheus.CounterVec
	runDuration   prometheus.Histogram
	sourceResults *prometheus.CounterVec
	items         *prometheus.GaugeVec
	enrichments   *prometheus.CounterVec
}

func NewMetrics() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "newsflash",
			Name:      "rebuilds_total",
			Help:      "Rebuild runs by outcome.",
		}, []string{"outcome"}),
		runDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "newsflash",
			Name:      "rebuild_duration_seconds",
			Help:      "Duration of rebuild runs.",
			Buckets:   prometheus.ExponentialBuckets(0.5, 2, 10),
		}),
		sourceResults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "newsflash",
			Name:      "source_fetches_total",
			Help:      "Per-source fetch results.",
		}, []string{"source", "result"}),
		items: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "newsflash",
			Name:      "items",
			Help:      "Item counts of the last run by stage.",
		}, []string{"stage"}),
		enrichments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "newsflash",
			Name:      "enrichments_total",
			Help:      "Enrichment requests by outcome.",
		}, []string{"outcome"}),
	}

	m.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.runs,
		m.runDuration,
		m.sourceResults,
		m.items,
		m.enrichments,
	)

	return m
}
