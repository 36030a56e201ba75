// Package renderer draws the flock volume with raylib.
package renderer

import (
	rl "github.com/gen2brain/raylib-go/raylib"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/flock/camera"
	"github.com/pthm-cable/flock/systems"
)

// Background is the clear colour of the 3D view.
var Background = rl.Color{R: 12, G: 16, B: 22, A: 255}

// vec converts a simulation vector to raylib's float32 form.
func vec(v r3.Vec) rl.Vector3 {
	return rl.NewVector3(float32(v.X), float32(v.Y), float32(v.Z))
}

// Camera3D converts the orbit camera into a raylib perspective camera.
func Camera3D(c *camera.Camera) rl.Camera3D {
	return rl.Camera3D{
		Position:   vec(c.Position()),
		Target:     vec(c.Target),
		Up:         rl.NewVector3(0, 1, 0),
		Fovy:       float32(c.FovY),
		Projection: rl.CameraPerspective,
	}
}

// Scene draws one frame of the volume: bounds, obstacles and agents.
type Scene struct {
	Agents    *AgentRenderer
	Obstacles *ObstacleRenderer
}

// NewScene creates a scene with default renderers.
func NewScene() *Scene {
	return &Scene{
		Agents:    NewAgentRenderer(),
		Obstacles: NewObstacleRenderer(),
	}
}

// Begin clears the frame and enters 3D mode.
func (s *Scene) Begin(c *camera.Camera) {
	rl.ClearBackground(Background)
	rl.BeginMode3D(Camera3D(c))
}

// End leaves 3D mode.
func (s *Scene) End() {
	rl.EndMode3D()
}

// DrawBounds outlines the grid volume.
func (s *Scene) DrawBounds(g *systems.Grid) {
	if g == nil {
		return
	}
	e := g.Extent()
	rl.DrawCubeWires(vec(g.Center()), float32(2*e.X), float32(2*e.Y), float32(2*e.Z), rl.Color{R: 70, G: 90, B: 110, A: 255})
}

// DrawFloor draws a reference grid on the bottom face of g.
func (s *Scene) DrawFloor(g *systems.Grid) {
	if g == nil {
		return
	}
	min := g.Min()
	c := g.Center()
	span := 2 * max(g.Extent().X, g.Extent().Z)
	slices := int32(span / g.VoxelSize())
	rl.PushMatrix()
	rl.Translatef(float32(c.X), float32(min.Y), float32(c.Z))
	rl.DrawGrid(slices, float32(g.VoxelSize()))
	rl.PopMatrix()
}

// DrawGoal marks a steering goal.
func (s *Scene) DrawGoal(p r3.Vec) {
	rl.DrawSphereWires(vec(p), 0.15, 6, 8, rl.Color{R: 120, G: 230, B: 140, A: 255})
}
