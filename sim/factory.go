package sim

import (
	"math"

	"github.com/mlange-42/ark/ecs"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/flock/components"
)

// spawnInitialFlock creates sim.agents boids inside the spawn sphere.
func (s *Simulation) spawnInitialFlock() {
	center := s.cfg.Sim.SpawnCenter.R3()
	for i := 0; i < s.cfg.Sim.Agents; i++ {
		p := r3.Add(center, r3.Scale(s.cfg.Sim.SpawnRadius, s.randomInBall()))
		s.SpawnAgent(p, s.randomUnit())
	}
}

// SpawnAgent creates one boid at p heading along forward at the mean of
// the speed limits. A degenerate forward is replaced by +Z.
func (s *Simulation) SpawnAgent(p, forward r3.Vec) ecs.Entity {
	if n := r3.Norm(forward); n > 0 && !math.IsInf(n, 0) && !math.IsNaN(n) {
		forward = r3.Scale(1/n, forward)
	} else {
		forward = r3.Vec{Z: 1}
	}
	speed := (s.cfg.Boids.MinSpeed + s.cfg.Boids.MaxSpeed) / 2

	id := s.nextID
	s.nextID++

	pos := components.Position{Vec: p}
	vel := components.Velocity{Vec: r3.Scale(speed, forward)}
	fwd := components.Forward{Vec: forward}
	target := components.Target{}
	boid := components.Boid{ID: id}
	return s.agentMapper.NewEntity(&pos, &vel, &fwd, &target, &boid)
}

// randomUnit returns a uniformly distributed unit vector.
func (s *Simulation) randomUnit() r3.Vec {
	z := s.rng.Float64()*2 - 1
	phi := s.rng.Float64() * 2 * math.Pi
	r := math.Sqrt(1 - z*z)
	return r3.Vec{X: r * math.Cos(phi), Y: r * math.Sin(phi), Z: z}
}

// randomInBall returns a uniformly distributed point in the unit ball.
func (s *Simulation) randomInBall() r3.Vec {
	return r3.Scale(math.Cbrt(s.rng.Float64()), s.randomUnit())
}
