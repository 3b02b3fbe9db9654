package view

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// pointerEvents counts pointer events delivered to views.
	// Labels: type, outcome (applied, ignored, stale)
	pointerEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ringscope",
		Subsystem: "view",
		Name:      "pointer_events_total",
		Help:      "Pointer events delivered to views",
	}, []string{"type", "outcome"})

	// projectedElements observes the size of each projection rendered.
	projectedElements = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "ringscope",
		Subsystem: "view",
		Name:      "projected_elements",
		Help:      "Nodes plus edges in each rendered projection",
		Buckets:   prometheus.ExponentialBuckets(8, 4, 7),
	})

	// openViews tracks views held by registries.
	openViews = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "ringscope",
		Subsystem: "view",
		Name:      "open",
		Help:      "Views currently open",
	})
)
