package systems

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/flock/config"
)

// AgentState is the integrator's view of one agent.
type AgentState struct {
	Position  r3.Vec
	Forward   r3.Vec
	Velocity  r3.Vec
	Target    r3.Vec
	HasTarget bool
}

// Forces holds each weighted steering term of one agent for one tick.
type Forces struct {
	Target     r3.Vec
	Alignment  r3.Vec
	Cohesion   r3.Vec
	Separation r3.Vec
	Obstacle   r3.Vec
	Collision  r3.Vec
	// Collided is set when the forward sweep was blocked.
	Collided bool
}

// Sum returns the total acceleration.
func (f Forces) Sum() r3.Vec {
	a := r3.Add(f.Target, f.Alignment)
	a = r3.Add(a, f.Cohesion)
	a = r3.Add(a, f.Separation)
	a = r3.Add(a, f.Obstacle)
	return r3.Add(a, f.Collision)
}

// Steering turns perception sums into accelerations and integrates motion.
// It holds its own copy of the settings.
type Steering struct {
	s config.BoidSettings
}

// NewSteering creates an integrator for the given settings.
func NewSteering(s config.BoidSettings) Steering {
	return Steering{s: s}
}

// Settings returns the settings the integrator was built with.
func (st Steering) Settings() config.BoidSettings { return st.s }

// SteerTowards returns the steering force that turns velocity towards v at
// max speed, limited to the max steer force. Degenerate v yields zero.
func (st Steering) SteerTowards(v, velocity r3.Vec) r3.Vec {
	v = safeDirection(v, r3.Vec{})
	if v == (r3.Vec{}) {
		return r3.Vec{}
	}
	return clampMagnitude(r3.Sub(r3.Scale(st.s.MaxSpeed, v), velocity), st.s.MaxSteerForce)
}

// Forces computes the weighted steering terms for one agent. The index is
// only consulted for the reactive sweep and may be nil.
func (st Steering) Forces(a AgentState, rec *AgentRecord, ix *ObstacleIndex) Forces {
	var f Forces
	s := st.s

	if a.HasTarget {
		f.Target = r3.Scale(s.TargetWeight, st.SteerTowards(r3.Sub(a.Target, a.Position), a.Velocity))
	}

	if rec.Flockmates > 0 {
		centre := r3.Scale(1/float64(rec.Flockmates), rec.FlockCentre)
		offset := r3.Sub(centre, a.Position)
		f.Alignment = r3.Scale(s.AlignWeight, st.SteerTowards(rec.FlockHeading, a.Velocity))
		f.Cohesion = r3.Scale(s.CohesionWeight, st.SteerTowards(offset, a.Velocity))
		f.Separation = r3.Scale(s.SeperateWeight, st.SteerTowards(rec.Avoidance, a.Velocity))
	}

	if s.ObstacleAvoidanceWeight == 0 {
		return f
	}
	if rec.Obstacles > 0 {
		f.Obstacle = r3.Scale(s.ObstacleAvoidanceWeight, st.SteerTowards(rec.ObstacleAvoidance, a.Velocity))
	}
	if s.RaycastAvoidance && ix.SweepSphere(a.Position, a.Forward, s.BoundsRadius, s.CollisionAvoidDst, s.ObstacleMask) {
		f.Collided = true
		dir := ix.ClearDirection(a.Position, a.Forward, s.BoundsRadius, s.CollisionAvoidDst, s.ObstacleMask)
		f.Collision = r3.Scale(s.ObstacleAvoidanceWeight, st.SteerTowards(dir, a.Velocity))
	}
	return f
}

// Integrate advances one agent by dt under acceleration accel. The result
// always has minSpeed <= |Velocity| <= maxSpeed and a unit Forward.
func (st Steering) Integrate(a AgentState, accel r3.Vec, dt float64) AgentState {
	v := r3.Add(a.Velocity, r3.Scale(dt, accel))
	dir := safeDirection(v, a.Forward)
	if dir == (r3.Vec{}) {
		dir = r3.Vec{Z: 1}
	}

	speed := r3.Norm(v)
	if math.IsNaN(speed) || math.IsInf(speed, 0) {
		speed = st.s.MaxSpeed
	}
	speed = math.Max(st.s.MinSpeed, math.Min(speed, st.s.MaxSpeed))

	a.Velocity = r3.Scale(speed, dir)
	a.Position = r3.Add(a.Position, r3.Scale(dt, a.Velocity))
	a.Forward = dir
	return a
}

// Step computes forces and integrates in one call.
func (st Steering) Step(a AgentState, rec *AgentRecord, ix *ObstacleIndex, dt float64) (AgentState, Forces) {
	f := st.Forces(a, rec, ix)
	return st.Integrate(a, f.Sum(), dt), f
}

// safeDirection normalizes v. Infinite components dominate; NaN and
// near-zero input returns fallback normalized (or zero).
func safeDirection(v, fallback r3.Vec) r3.Vec {
	if hasNaN(v) {
		return unitOrZero(fallback)
	}
	if math.IsInf(v.X, 0) || math.IsInf(v.Y, 0) || math.IsInf(v.Z, 0) {
		return r3.Unit(r3.Vec{X: infSign(v.X), Y: infSign(v.Y), Z: infSign(v.Z)})
	}
	// Rescale before normalizing so huge components cannot overflow.
	m := math.Max(math.Abs(v.X), math.Max(math.Abs(v.Y), math.Abs(v.Z)))
	if m*m <= degenerateEps {
		return unitOrZero(fallback)
	}
	return r3.Unit(r3.Scale(1/m, v))
}

func unitOrZero(v r3.Vec) r3.Vec {
	if hasNaN(v) || !finite(v) {
		return r3.Vec{}
	}
	m := math.Max(math.Abs(v.X), math.Max(math.Abs(v.Y), math.Abs(v.Z)))
	if m == 0 {
		return r3.Vec{}
	}
	return r3.Unit(r3.Scale(1/m, v))
}

func infSign(x float64) float64 {
	switch {
	case math.IsInf(x, 1):
		return 1
	case math.IsInf(x, -1):
		return -1
	}
	return 0
}

func hasNaN(v r3.Vec) bool {
	return math.IsNaN(v.X) || math.IsNaN(v.Y) || math.IsNaN(v.Z)
}

func clampMagnitude(v r3.Vec, maxLen float64) r3.Vec {
	n2 := r3.Norm2(v)
	if n2 <= maxLen*maxLen {
		return v
	}
	return r3.Scale(maxLen/math.Sqrt(n2), v)
}
