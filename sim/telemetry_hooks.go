package sim

import (
	"log/slog"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/flock/telemetry"
)

// publishFrame hands the tick's records to the observer sink.
func (s *Simulation) publishFrame() {
	if s.sink == nil {
		return
	}
	s.sink.Publish(s.tick, s.simTime, s.records)
}

// recordTrajectory writes every trajectory_every-th tick.
func (s *Simulation) recordTrajectory() {
	if s.trajectory == nil || int(s.tick)%s.cfg.Telemetry.TrajectoryEvery != 0 {
		return
	}
	frame := telemetry.TrajectoryFrame{
		Tick:   s.tick,
		Time:   s.simTime,
		Agents: make([][6]float32, len(s.intents)),
	}
	for i := range s.intents {
		p, f := s.intents[i].State.Position, s.intents[i].State.Forward
		frame.Agents[i] = [6]float32{
			float32(p.X), float32(p.Y), float32(p.Z),
			float32(f.X), float32(f.Y), float32(f.Z),
		}
	}
	if err := s.trajectory.Write(frame); err != nil {
		slog.Error("failed to write trajectory", "error", err)
	}
}

// flushTelemetry checks if the stats window should be flushed.
func (s *Simulation) flushTelemetry() {
	if !s.collector.ShouldFlush(s.tick) {
		return
	}

	stats := s.collector.Flush(s.tick, s.sampleFlock())
	perfStats := s.perf.Stats()
	telemetry.ObserveWindow(stats)

	// Call stats callback if provided
	if s.statsCallback != nil {
		s.statsCallback(stats)
	}

	// Log stats if enabled (console output)
	if s.logStats {
		stats.LogStats()
		perfStats.LogStats()
	}

	for _, b := range s.bookmarks.Check(stats) {
		telemetry.ObserveBookmark(b)
		b.LogBookmark()
		if s.output != nil {
			if err := s.output.WriteBookmark(b); err != nil {
				slog.Error("failed to write bookmark", "error", err)
			}
		}
	}

	// Write to CSV if output manager is enabled
	if s.output != nil {
		if err := s.output.WriteTelemetry(stats); err != nil {
			slog.Error("failed to write telemetry", "error", err)
		}
		if err := s.output.WritePerf(perfStats, stats.WindowEndTick); err != nil {
			slog.Error("failed to write perf", "error", err)
		}
	}
}

// sampleFlock collects the post-integration state of the current tick.
func (s *Simulation) sampleFlock() telemetry.FlockSample {
	n := len(s.intents)
	sample := telemetry.FlockSample{
		Positions:  make([]r3.Vec, n),
		Forwards:   make([]r3.Vec, n),
		Speeds:     make([]float64, n),
		Flockmates: make([]int32, n),
		Obstacles:  make([]int32, n),
	}
	for i := range s.intents {
		st := &s.intents[i].State
		sample.Positions[i] = st.Position
		sample.Forwards[i] = st.Forward
		sample.Speeds[i] = r3.Norm(st.Velocity)
		sample.Flockmates[i] = s.records[i].Flockmates
		sample.Obstacles[i] = s.records[i].Obstacles
	}
	if ix := s.index.Load(); ix != nil {
		sample.Probes = ix.ProbeCount()
		sample.OccupiedCells = ix.OccupiedCells()
	}
	return sample
}
