package telemetry

import (
	"log/slog"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// WindowStats holds aggregated flock statistics for a time window.
type WindowStats struct {
	WindowStartTick int32   `csv:"-"`
	WindowEndTick   int32   `csv:"window_end"`
	SimTimeSec      float64 `csv:"sim_time"`

	// Population and obstacle field at window end
	Agents        int `csv:"agents"`
	Probes        int `csv:"probes"`
	OccupiedCells int `csv:"occupied_cells"`

	// Speed distribution (sampled at window end)
	SpeedMean float64 `csv:"speed_mean"`
	SpeedStd  float64 `csv:"speed_std"`
	SpeedP10  float64 `csv:"speed_p10"`
	SpeedP50  float64 `csv:"speed_p50"`
	SpeedP90  float64 `csv:"speed_p90"`

	// Flock structure (sampled at window end)
	Polarization   float64 `csv:"polarization"` // |mean forward|, 1 = fully aligned
	Spread         float64 `csv:"spread"`       // mean distance to centroid
	MeanFlockmates float64 `csv:"mean_flockmates"`
	Isolated       int     `csv:"isolated"`
	MeanObstacles  float64 `csv:"mean_obstacles"`

	// Events during window
	ProbeContacts int `csv:"probe_contacts"`
	Evasions      int `csv:"evasions"`
	IndexBuilds   int `csv:"index_builds"`
}

// Distribution summarizes a sample with gonum's empirical quantiles.
// Returns zeros for an empty sample.
func Distribution(values []float64) (mean, std, p10, p50, p90 float64) {
	n := len(values)
	if n == 0 {
		return 0, 0, 0, 0, 0
	}
	if n == 1 {
		v := values[0]
		return v, 0, v, v, v
	}

	mean, std = stat.MeanStdDev(values, nil)

	sorted := make([]float64, n)
	copy(sorted, values)
	sort.Float64s(sorted)

	p10 = stat.Quantile(0.10, stat.Empirical, sorted, nil)
	p50 = stat.Quantile(0.50, stat.Empirical, sorted, nil)
	p90 = stat.Quantile(0.90, stat.Empirical, sorted, nil)
	return mean, std, p10, p50, p90
}

// LogValue implements slog.LogValuer for structured logging.
func (s WindowStats) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int("window_start", int(s.WindowStartTick)),
		slog.Int("window_end", int(s.WindowEndTick)),
		slog.Float64("sim_time", s.SimTimeSec),
		slog.Int("agents", s.Agents),
		slog.Int("probes", s.Probes),
		slog.Int("occupied_cells", s.OccupiedCells),
		slog.Float64("speed_mean", s.SpeedMean),
		slog.Float64("speed_std", s.SpeedStd),
		slog.Float64("speed_p10", s.SpeedP10),
		slog.Float64("speed_p50", s.SpeedP50),
		slog.Float64("speed_p90", s.SpeedP90),
		slog.Float64("polarization", s.Polarization),
		slog.Float64("spread", s.Spread),
		slog.Float64("mean_flockmates", s.MeanFlockmates),
		slog.Int("isolated", s.Isolated),
		slog.Float64("mean_obstacles", s.MeanObstacles),
		slog.Int("probe_contacts", s.ProbeContacts),
		slog.Int("evasions", s.Evasions),
		slog.Int("index_builds", s.IndexBuilds),
	)
}

// LogStats logs the window stats using slog.
func (s WindowStats) LogStats() {
	slog.Info("stats",
		"window_end", s.WindowEndTick,
		"sim_time", s.SimTimeSec,
		"agents", s.Agents,
		"speed_mean", s.SpeedMean,
		"speed_p10", s.SpeedP10,
		"speed_p90", s.SpeedP90,
		"polarization", s.Polarization,
		"spread", s.Spread,
		"mean_flockmates", s.MeanFlockmates,
		"isolated", s.Isolated,
		"mean_obstacles", s.MeanObstacles,
		"probe_contacts", s.ProbeContacts,
		"evasions", s.Evasions,
		"index_builds", s.IndexBuilds,
	)
}
