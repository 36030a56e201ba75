package telemetry

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// Collector accumulates events within time windows and produces WindowStats.
type Collector struct {
	windowDurationTicks int32
	dt                  float64

	// Current window tracking
	windowStartTick int32

	// Event counters for current window
	probeContacts int
	evasions      int
	indexBuilds   int
}

// NewCollector creates a new stats collector.
// windowDurationSec: how long each stats window lasts in simulation seconds
// dt: seconds per tick (used for tick-to-time conversion)
func NewCollector(windowDurationSec, dt float64) *Collector {
	ticksPerWindow := int32(windowDurationSec / dt)
	if ticksPerWindow < 1 {
		ticksPerWindow = 1
	}
	return &Collector{
		windowDurationTicks: ticksPerWindow,
		dt:                  dt,
	}
}

// RecordProbeContacts adds agents found inside their bounds radius of a probe.
func (c *Collector) RecordProbeContacts(n int) { c.probeContacts += n }

// RecordEvasions adds agents whose forward sweep was blocked this tick.
func (c *Collector) RecordEvasions(n int) { c.evasions += n }

// RecordIndexBuild counts an obstacle index (re)build.
func (c *Collector) RecordIndexBuild() { c.indexBuilds++ }

// ShouldFlush returns true if enough ticks have passed to flush the window.
func (c *Collector) ShouldFlush(currentTick int32) bool {
	return currentTick-c.windowStartTick >= c.windowDurationTicks
}

// FlockSample is the state sampled at the end of a window.
type FlockSample struct {
	Positions     []r3.Vec
	Forwards      []r3.Vec
	Speeds        []float64
	Flockmates    []int32
	Obstacles     []int32
	Probes        int
	OccupiedCells int
}

// Flush produces a WindowStats and resets counters for the next window.
func (c *Collector) Flush(currentTick int32, sample FlockSample) WindowStats {
	stats := WindowStats{
		WindowStartTick: c.windowStartTick,
		WindowEndTick:   currentTick,
		SimTimeSec:      float64(currentTick) * c.dt,
		Agents:          len(sample.Positions),
		Probes:          sample.Probes,
		OccupiedCells:   sample.OccupiedCells,
		ProbeContacts:   c.probeContacts,
		Evasions:        c.evasions,
		IndexBuilds:     c.indexBuilds,
	}
	stats.SpeedMean, stats.SpeedStd, stats.SpeedP10, stats.SpeedP50, stats.SpeedP90 = Distribution(sample.Speeds)
	stats.Polarization = Polarization(sample.Forwards)
	stats.Spread = Spread(sample.Positions)

	if n := len(sample.Flockmates); n > 0 {
		var sum int
		for _, m := range sample.Flockmates {
			sum += int(m)
			if m == 0 {
				stats.Isolated++
			}
		}
		stats.MeanFlockmates = float64(sum) / float64(n)
	}
	if n := len(sample.Obstacles); n > 0 {
		var sum int
		for _, m := range sample.Obstacles {
			sum += int(m)
		}
		stats.MeanObstacles = float64(sum) / float64(n)
	}

	// Reset for next window
	c.windowStartTick = currentTick
	c.probeContacts = 0
	c.evasions = 0
	c.indexBuilds = 0

	return stats
}

// WindowDurationTicks returns the number of ticks per window.
func (c *Collector) WindowDurationTicks() int32 {
	return c.windowDurationTicks
}

// Polarization is the length of the mean heading: 1 when every agent faces
// the same way, near 0 for random headings.
func Polarization(forwards []r3.Vec) float64 {
	if len(forwards) == 0 {
		return 0
	}
	var sum r3.Vec
	for _, f := range forwards {
		sum = r3.Add(sum, f)
	}
	return r3.Norm(sum) / float64(len(forwards))
}

// Spread is the mean distance of positions to their centroid.
func Spread(positions []r3.Vec) float64 {
	n := len(positions)
	if n == 0 {
		return 0
	}
	var centroid r3.Vec
	for _, p := range positions {
		centroid = r3.Add(centroid, p)
	}
	centroid = r3.Scale(1/float64(n), centroid)
	var sum float64
	for _, p := range positions {
		sum += r3.Norm(r3.Sub(p, centroid))
	}
	if math.IsNaN(sum) {
		return 0
	}
	return sum / float64(n)
}
