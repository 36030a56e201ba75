package telemetry

import (
	"testing"
	"time"
)

// fakeClock advances only when told to.
type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestTimer(window int) (*StepTimer, *fakeClock) {
	clk := &fakeClock{t: time.Unix(0, 0)}
	st := NewStepTimer(window)
	st.now = clk.now
	return st, clk
}

func TestStepTimerPhases(t *testing.T) {
	st, clk := newTestTimer(10)

	st.StartTick()
	st.StartPhase(PhaseMarshal)
	clk.advance(100 * time.Microsecond)
	st.StartPhase(PhasePerception)
	clk.advance(300 * time.Microsecond)
	st.StartPhase(PhaseIntegrate)
	clk.advance(100 * time.Microsecond)
	total, phases := st.EndTick()

	if total != 500*time.Microsecond {
		t.Errorf("total = %v, want 500us", total)
	}
	want := PhaseTimes{
		PhaseMarshal:    100 * time.Microsecond,
		PhasePerception: 300 * time.Microsecond,
		PhaseIntegrate:  100 * time.Microsecond,
	}
	if phases != want {
		t.Errorf("phases = %v, want %v", phases, want)
	}

	stats := st.Stats()
	if stats.Ticks != 1 || stats.AvgTick != total || stats.MaxTick != total {
		t.Errorf("stats = %+v", stats)
	}
	if got := stats.Share(PhasePerception); got != 60 {
		t.Errorf("perception share = %v, want 60", got)
	}
	if got := stats.Dominant(); got != PhasePerception {
		t.Errorf("dominant = %v, want perception", got)
	}
	if got := stats.TicksPerSecond; got != 2000 {
		t.Errorf("ticks/s = %v, want 2000", got)
	}
}

func TestStepTimerRollingWindow(t *testing.T) {
	st, clk := newTestTimer(5)

	// Five slow ticks then five fast ones; only the fast ones stay.
	for i := 0; i < 10; i++ {
		d := 10 * time.Millisecond
		if i >= 5 {
			d = time.Millisecond
		}
		st.StartTick()
		st.StartPhase(PhaseApply)
		clk.advance(d)
		st.EndTick()
	}

	stats := st.Stats()
	if stats.Ticks != 5 {
		t.Errorf("ticks = %d, want 5", stats.Ticks)
	}
	if stats.AvgTick != time.Millisecond || stats.MaxTick != time.Millisecond {
		t.Errorf("avg %v max %v, want 1ms both", stats.AvgTick, stats.MaxTick)
	}
	if stats.Phase[PhaseApply] != time.Millisecond {
		t.Errorf("apply avg = %v", stats.Phase[PhaseApply])
	}
}

func TestStepTimerEndWithoutPhase(t *testing.T) {
	st, clk := newTestTimer(3)
	st.StartTick()
	clk.advance(time.Millisecond)
	total, phases := st.EndTick()
	if total != time.Millisecond || phases != (PhaseTimes{}) {
		t.Errorf("got %v %v", total, phases)
	}
}

func TestStepTimerEmptyStats(t *testing.T) {
	stats := NewStepTimer(10).Stats()
	if stats.Ticks != 0 || stats.AvgTick != 0 || stats.TicksPerSecond != 0 {
		t.Errorf("stats = %+v, want zero", stats)
	}
	if got := stats.Share(PhasePerception); got != 0 {
		t.Errorf("share on empty stats = %v", got)
	}
}

func TestStepTimerDoesNotAllocate(t *testing.T) {
	st, _ := newTestTimer(8)
	allocs := testing.AllocsPerRun(50, func() {
		st.StartTick()
		for _, p := range Phases {
			st.StartPhase(p)
		}
		st.EndTick()
	})
	if allocs != 0 {
		t.Errorf("step timing allocated %v times, want 0", allocs)
	}
}

func TestPhaseString(t *testing.T) {
	if got := PhaseObstacleIndex.String(); got != "obstacle_index" {
		t.Errorf("got %q", got)
	}
	if got := Phase(42).String(); got != "unknown" {
		t.Errorf("got %q", got)
	}
}

func TestStepStatsCSVRow(t *testing.T) {
	stats := StepStats{AvgTick: 2 * time.Millisecond}
	stats.Phase[PhasePerception] = 1200 * time.Microsecond
	stats.Phase[PhaseIntegrate] = 600 * time.Microsecond

	row := stats.CSVRow(120)
	if row.WindowEnd != 120 {
		t.Errorf("window end: got %d, want 120", row.WindowEnd)
	}
	if row.AvgTickUS != 2000 {
		t.Errorf("avg tick: got %d us, want 2000", row.AvgTickUS)
	}
	if row.PerceptionPct != 60 || row.IntegratePct != 30 || row.MarshalPct != 0 {
		t.Errorf("phase pct: got perception=%v integrate=%v marshal=%v", row.PerceptionPct, row.IntegratePct, row.MarshalPct)
	}
}
