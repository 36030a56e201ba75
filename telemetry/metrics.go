package telemetry

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	tickDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "flock_tick_duration_seconds",
		Help:    "Wall time of one simulation step.",
		Buckets: prometheus.ExponentialBuckets(0.0001, 2, 14),
	})

	phaseDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "flock_phase_duration_seconds",
		Help:    "Wall time of each step phase.",
		Buckets: prometheus.ExponentialBuckets(0.00005, 2, 14),
	}, []string{"phase"})

	indexBuilds = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "flock_obstacle_index_builds_total",
		Help: "Obstacle index builds by outcome.",
	}, []string{"status"})

	agentsGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "flock_agents",
		Help: "Number of simulated agents.",
	})

	probesGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "flock_obstacle_probes",
		Help: "Number of indexed obstacle probes.",
	})

	polarizationGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "flock_polarization",
		Help: "Length of the mean heading at the last stats window.",
	})

	evasionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "flock_evasions_total",
		Help: "Agents whose forward sweep was blocked.",
	})

	bookmarksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "flock_bookmarks_total",
		Help: "Detected flock bookmarks by type.",
	}, []string{"type"})
)

// phaseObservers resolves the phase label children once.
var phaseObservers = func() (obs [numPhases]prometheus.Observer) {
	for _, p := range Phases {
		obs[p] = phaseDuration.WithLabelValues(p.String())
	}
	return obs
}()

// ObserveTick records one step and its phase breakdown.
func ObserveTick(total time.Duration, phases PhaseTimes) {
	tickDuration.Observe(total.Seconds())
	for p, d := range phases {
		phaseObservers[p].Observe(d.Seconds())
	}
}

// ObserveIndexBuild records an index build outcome and the resulting probe count.
func ObserveIndexBuild(err error, probes int) {
	if err != nil {
		indexBuilds.WithLabelValues("error").Inc()
		return
	}
	indexBuilds.WithLabelValues("ok").Inc()
	probesGauge.Set(float64(probes))
}

// ObserveWindow publishes the gauges derived from window stats.
func ObserveWindow(s WindowStats) {
	agentsGauge.Set(float64(s.Agents))
	polarizationGauge.Set(s.Polarization)
}

// ObserveEvasions adds to the evasion counter.
func ObserveEvasions(n int) {
	if n > 0 {
		evasionsTotal.Add(float64(n))
	}
}

// ObserveBookmark counts a detected bookmark.
func ObserveBookmark(b Bookmark) {
	bookmarksTotal.WithLabelValues(string(b.Type)).Inc()
}

// MetricsHandler serves the default Prometheus registry.
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
