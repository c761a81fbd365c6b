package ane

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	channelsLive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ane_channels_live",
		Help: "Channels currently allocated and mapped, control channels included",
	})

	submitTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ane_submit_total",
		Help: "Jobs submitted to the engine",
	})

	submitErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ane_submit_errors_total",
		Help: "Jobs the engine reported as failed",
	})

	submitDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "ane_submit_duration_seconds",
		Help:    "Time spent blocked in job submission",
		Buckets: []float64{0.0001, 0.00025, 0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.5},
	})

	transferBytes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ane_transfer_bytes_total",
		Help: "Bytes copied between caller buffers and channels",
	}, []string{"direction"})

	indexViolations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ane_index_violations_total",
		Help: "Port lookups rejected in strict mode",
	}, []string{"table"})
)
