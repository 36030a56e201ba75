package sim

import (
	"fmt"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/flock/systems"
	"github.com/pthm-cable/flock/telemetry"
)

// Step advances the flock by dt seconds. A non-positive dt uses sim.dt.
// If the perception backend fails, the tick is abandoned and no agent
// state is written.
func (s *Simulation) Step(dt float64) error {
	if s.disposed {
		return ErrDisposed
	}
	if !s.built {
		return ErrNotBuilt
	}
	if !(dt > 0) {
		dt = s.cfg.Sim.DT
	}

	s.perf.StartTick()

	// Phase 1: swap in a reloaded obstacle set at the tick boundary
	s.perf.StartPhase(telemetry.PhaseObstacleIndex)
	s.applyPending()
	ix := s.index.Load()

	// Phase 2: snapshot agents into records (single-threaded)
	s.perf.StartPhase(telemetry.PhaseMarshal)
	s.marshalAgents()
	n := len(s.snapshots)

	// Phase 3: perception over all records (barrier)
	s.perf.StartPhase(telemetry.PhasePerception)
	if err := s.backend.Perceive(s.records, ix, s.params); err != nil {
		s.perf.EndTick()
		return fmt.Errorf("perception backend %s: %w", s.backend.Name(), err)
	}

	// Phase 4: steering and integration into intents (barrier)
	s.perf.StartPhase(telemetry.PhaseIntegrate)
	if cap(s.intents) < n {
		s.intents = make([]intent, n)
	}
	s.intents = s.intents[:n]
	s.pool.run(n, func(start, end, _ int) {
		s.integrateChunk(start, end, ix, dt)
	})

	// Phase 5: apply intents (single-threaded, preserves determinism)
	s.perf.StartPhase(telemetry.PhaseApply)
	evasions, contacts := s.applyIntents()

	s.tick++
	s.simTime += dt

	// Phase 6: telemetry and observers
	s.perf.StartPhase(telemetry.PhaseTelemetry)
	s.collector.RecordEvasions(evasions)
	s.collector.RecordProbeContacts(contacts)
	telemetry.ObserveEvasions(evasions)
	s.publishFrame()
	s.recordTrajectory()
	s.flushTelemetry()

	telemetry.ObserveTick(s.perf.EndTick())
	return nil
}

// marshalAgents fills snapshots and the input half of records.
func (s *Simulation) marshalAgents() {
	s.snapshots = s.snapshots[:0]

	query := s.agentFilter.Query()
	for query.Next() {
		pos, vel, fwd, target, _ := query.Get()
		goal, hasGoal := s.goalPosition(target.Goal)
		s.snapshots = append(s.snapshots, agentSnapshot{
			Entity: query.Entity(),
			State: systems.AgentState{
				Position:  pos.Vec,
				Forward:   fwd.Vec,
				Velocity:  vel.Vec,
				Target:    goal,
				HasTarget: hasGoal,
			},
		})
	}

	n := len(s.snapshots)
	if cap(s.records) < n {
		s.records = make([]systems.AgentRecord, n)
	}
	s.records = s.records[:n]
	for i := range s.snapshots {
		s.records[i] = systems.AgentRecord{
			Position:  s.snapshots[i].State.Position,
			Direction: s.snapshots[i].State.Forward,
		}
	}
}

// integrateChunk steers and integrates agents [i0, i1). It reads only
// snapshots, records and the index, and writes only intents[i].
func (s *Simulation) integrateChunk(i0, i1 int, ix *systems.ObstacleIndex, dt float64) {
	bounds := s.cfg.Boids.BoundsRadius
	mask := s.cfg.Boids.ObstacleMask
	for i := i0; i < i1; i++ {
		state, forces := s.steering.Step(s.snapshots[i].State, &s.records[i], ix, dt)
		s.intents[i] = intent{
			State:    state,
			Collided: forces.Collided,
			Contact:  touchesProbe(ix, state.Position, bounds, mask),
		}
	}
}

// touchesProbe reports whether a masked probe lies within radius of p.
func touchesProbe(ix *systems.ObstacleIndex, p r3.Vec, radius float64, mask uint32) bool {
	if ix == nil || radius <= 0 {
		return false
	}
	for i := range ix.ProbesNear(p, radius) {
		if ix.Layer(i)&mask != 0 {
			return true
		}
	}
	return false
}

// applyIntents writes computed results back to the ECS world.
func (s *Simulation) applyIntents() (evasions, contacts int) {
	for i, snap := range s.snapshots {
		in := &s.intents[i]

		pos, vel, fwd, _, _ := s.agentMapper.Get(snap.Entity)

		pos.Vec = in.State.Position
		vel.Vec = in.State.Velocity
		fwd.Vec = in.State.Forward

		if in.Collided {
			evasions++
		}
		if in.Contact {
			contacts++
		}
	}
	return evasions, contacts
}
