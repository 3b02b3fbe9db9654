package session

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// liveInstances tracks engine instances currently bound to a surface.
	liveInstances = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "ringscope",
		Subsystem: "session",
		Name:      "live_instances",
		Help:      "Engine instances currently bound to a surface",
	})

	// rebuilds counts reconstruction attempts.
	// Labels: status (ok, error, skipped)
	rebuilds = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ringscope",
		Subsystem: "session",
		Name:      "rebuilds_total",
		Help:      "Total engine instance reconstructions",
	}, []string{"status"})

	// rebuildDuration measures release plus construction time.
	rebuildDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "ringscope",
		Subsystem: "session",
		Name:      "rebuild_duration_seconds",
		Help:      "Time to release and reconstruct an engine instance",
		Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
	})

	// releases counts destroyed instances.
	releases = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "ringscope",
		Subsystem: "session",
		Name:      "releases_total",
		Help:      "Total engine instances released",
	})
)
