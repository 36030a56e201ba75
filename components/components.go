// Package components defines ECS components for the simulation.
package components

import (
	"github.com/mlange-42/ark/ecs"
	"gonum.org/v1/gonum/spatial/r3"
)

// Position represents an entity's world position.
type Position struct {
	r3.Vec
}

// Velocity represents an agent's velocity. Only the integrator writes it.
type Velocity struct {
	r3.Vec
}

// Forward is an agent's unit heading.
type Forward struct {
	r3.Vec
}

// Target weakly references a goal entity. A zero or dead goal means no target.
type Target struct {
	Goal ecs.Entity
}

// Boid tags an agent and carries its stable spawn index.
type Boid struct {
	ID uint32
}

// Goal tags an entity that agents can steer towards.
type Goal struct{}
