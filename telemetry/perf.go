package telemetry

import (
	"log/slog"
	"time"
)

// Phase is one stage of a simulation step.
type Phase int

// Step phases in execution order.
const (
	PhaseObstacleIndex Phase = iota
	PhaseMarshal
	PhasePerception
	PhaseIntegrate
	PhaseApply
	PhaseTelemetry

	numPhases
)

var phaseNames = [numPhases]string{
	"obstacle_index", "marshal", "perception", "integrate", "apply", "telemetry",
}

func (p Phase) String() string {
	if p < 0 || p >= numPhases {
		return "unknown"
	}
	return phaseNames[p]
}

// Phases lists the step phases in execution order.
var Phases = [numPhases]Phase{
	PhaseObstacleIndex, PhaseMarshal, PhasePerception,
	PhaseIntegrate, PhaseApply, PhaseTelemetry,
}

// PhaseTimes holds one duration per phase, indexed by Phase.
type PhaseTimes [numPhases]time.Duration

type tickSample struct {
	total  time.Duration
	phases PhaseTimes
}

// StepTimer times the phases of each step and keeps the last window of
// ticks. It does not allocate after construction. Not safe for concurrent
// use; the step loop owns it.
type StepTimer struct {
	ring   []tickSample
	next   int
	filled int

	cur        tickSample
	tickStart  time.Time
	phaseStart time.Time
	phase      Phase // -1 between phases

	now func() time.Time
}

// NewStepTimer creates a timer averaging over window ticks.
func NewStepTimer(window int) *StepTimer {
	if window < 1 {
		window = 60
	}
	return &StepTimer{
		ring:  make([]tickSample, window),
		phase: -1,
		now:   time.Now,
	}
}

// StartTick begins timing a step.
func (t *StepTimer) StartTick() {
	t.tickStart = t.now()
	t.cur = tickSample{}
	t.phase = -1
}

// StartPhase closes the running phase, if any, and opens p.
func (t *StepTimer) StartPhase(p Phase) {
	now := t.now()
	t.closePhase(now)
	t.phase = p
	t.phaseStart = now
}

func (t *StepTimer) closePhase(now time.Time) {
	if t.phase >= 0 && t.phase < numPhases {
		t.cur.phases[t.phase] += now.Sub(t.phaseStart)
	}
	t.phase = -1
}

// EndTick closes the step, stores it in the window and returns its timings.
func (t *StepTimer) EndTick() (time.Duration, PhaseTimes) {
	now := t.now()
	t.closePhase(now)
	t.cur.total = now.Sub(t.tickStart)

	t.ring[t.next] = t.cur
	t.next = (t.next + 1) % len(t.ring)
	if t.filled < len(t.ring) {
		t.filled++
	}
	return t.cur.total, t.cur.phases
}

// StepStats summarises the timer window.
type StepStats struct {
	Ticks          int
	AvgTick        time.Duration
	MaxTick        time.Duration
	TicksPerSecond float64
	Phase          PhaseTimes // average per phase
}

// Stats averages the current window.
func (t *StepTimer) Stats() StepStats {
	s := StepStats{Ticks: t.filled}
	if t.filled == 0 {
		return s
	}
	var total time.Duration
	var sum PhaseTimes
	for _, smp := range t.ring[:t.filled] {
		total += smp.total
		s.MaxTick = max(s.MaxTick, smp.total)
		for p, d := range smp.phases {
			sum[p] += d
		}
	}
	n := time.Duration(t.filled)
	s.AvgTick = total / n
	for p := range sum {
		s.Phase[p] = sum[p] / n
	}
	if s.AvgTick > 0 {
		s.TicksPerSecond = float64(time.Second) / float64(s.AvgTick)
	}
	return s
}

// Share returns the percentage of the average tick spent in p.
func (s StepStats) Share(p Phase) float64 {
	if s.AvgTick <= 0 || p < 0 || p >= numPhases {
		return 0
	}
	return 100 * float64(s.Phase[p]) / float64(s.AvgTick)
}

// Dominant returns the phase with the largest average duration.
func (s StepStats) Dominant() Phase {
	best := PhaseObstacleIndex
	for _, p := range Phases {
		if s.Phase[p] > s.Phase[best] {
			best = p
		}
	}
	return best
}

// LogValue implements slog.LogValuer for structured logging.
func (s StepStats) LogValue() slog.Value {
	attrs := make([]slog.Attr, 0, 4+len(Phases))
	attrs = append(attrs,
		slog.Int64("avg_tick_us", s.AvgTick.Microseconds()),
		slog.Int64("max_tick_us", s.MaxTick.Microseconds()),
		slog.Int("ticks_per_sec", int(s.TicksPerSecond)),
		slog.String("dominant", s.Dominant().String()),
	)
	for _, p := range Phases {
		if pct := s.Share(p); pct > 0.1 {
			attrs = append(attrs, slog.Float64(p.String()+"_pct", float64(int(pct*10))/10))
		}
	}
	return slog.GroupValue(attrs...)
}

// LogStats logs the window at info level.
func (s StepStats) LogStats() {
	slog.Info("perf", "step", s)
}

// StepStatsCSV is one perf.csv row.
type StepStatsCSV struct {
	WindowEnd        int32   `csv:"window_end"`
	AvgTickUS        int64   `csv:"avg_tick_us"`
	MaxTickUS        int64   `csv:"max_tick_us"`
	TicksPerSec      float64 `csv:"ticks_per_sec"`
	ObstacleIndexPct float64 `csv:"obstacle_index_pct"`
	MarshalPct       float64 `csv:"marshal_pct"`
	PerceptionPct    float64 `csv:"perception_pct"`
	IntegratePct     float64 `csv:"integrate_pct"`
	ApplyPct         float64 `csv:"apply_pct"`
	TelemetryPct     float64 `csv:"telemetry_pct"`
}

// CSVRow flattens the stats for the window ending at windowEnd.
func (s StepStats) CSVRow(windowEnd int32) StepStatsCSV {
	return StepStatsCSV{
		WindowEnd:        windowEnd,
		AvgTickUS:        s.AvgTick.Microseconds(),
		MaxTickUS:        s.MaxTick.Microseconds(),
		TicksPerSec:      s.TicksPerSecond,
		ObstacleIndexPct: s.Share(PhaseObstacleIndex),
		MarshalPct:       s.Share(PhaseMarshal),
		PerceptionPct:    s.Share(PhasePerception),
		IntegratePct:     s.Share(PhaseIntegrate),
		ApplyPct:         s.Share(PhaseApply),
		TelemetryPct:     s.Share(PhaseTelemetry),
	}
}
