package game

import (
	rl "github.com/gen2brain/raylib-go/raylib"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/flock/camera"
	"github.com/pthm-cable/flock/ui"
)

// pickRadius is the distance from the mouse ray that still selects an agent.
const pickRadius = 0.2

// selectAtMouse selects the agent nearest the camera along the mouse ray.
func (g *Game) selectAtMouse() {
	mouse := rl.GetMousePosition()
	origin, dir := g.cam.ScreenRay(float64(mouse.X), float64(mouse.Y), float64(g.screenWidth), float64(g.screenHeight))

	agents := g.sim.Agents()
	points := make([]r3.Vec, len(agents))
	for i, a := range agents {
		points[i] = a.Position
	}
	idx := camera.Pick(origin, dir, points, pickRadius)
	if idx < 0 {
		g.hasSelected = false
		return
	}
	g.selected = agents[idx].Entity
	g.hasSelected = true
}

// selectedIndex returns the selected agent's index into Agents and Records,
// or -1.
func (g *Game) selectedIndex() int {
	if !g.hasSelected {
		return -1
	}
	for i, a := range g.sim.Agents() {
		if a.Entity == g.selected {
			return i
		}
	}
	g.hasSelected = false
	return -1
}

func (g *Game) selectedPosition() (r3.Vec, bool) {
	idx := g.selectedIndex()
	if idx < 0 {
		return r3.Vec{}, false
	}
	return g.sim.Agents()[idx].Position, true
}

// selectedDetail builds the inspector view of the selected agent.
func (g *Game) selectedDetail(idx int) *ui.AgentDetail {
	agents := g.sim.Agents()
	records := g.sim.Records()
	if idx < 0 || idx >= len(agents) {
		return nil
	}
	a := agents[idx]
	d := &ui.AgentDetail{
		ID:       a.ID,
		Position: a.Position,
		Forward:  a.Forward,
		Speed:    a.Speed,
		MinSpeed: g.cfg.Boids.MinSpeed,
		MaxSpeed: g.cfg.Boids.MaxSpeed,
	}
	if idx < len(records) {
		d.Record = records[idx]
	}
	return d
}
