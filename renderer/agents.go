package renderer

import (
	"math"

	rl "github.com/gen2brain/raylib-go/raylib"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/flock/systems"
)

// AgentRenderer draws agents as cones pointing along their heading.
type AgentRenderer struct {
	Length float64
	Radius float64

	// Crowd is the flockmate count at which the colour saturates.
	Crowd int32
}

// NewAgentRenderer creates an agent renderer with default sizes.
func NewAgentRenderer() *AgentRenderer {
	return &AgentRenderer{Length: 0.3, Radius: 0.08, Crowd: 12}
}

// Draw renders every record. selected < 0 highlights nothing.
func (a *AgentRenderer) Draw(records []systems.AgentRecord, selected int) {
	for i := range records {
		r := &records[i]
		tip := r3.Add(r.Position, r3.Scale(a.Length/2, r.Direction))
		tail := r3.Sub(r.Position, r3.Scale(a.Length/2, r.Direction))
		color := CrowdColor(r.Flockmates, a.Crowd)
		if r.Obstacles > 0 {
			color = rl.Color{R: 240, G: 110, B: 70, A: 255}
		}
		if i == selected {
			color = rl.Yellow
		}
		rl.DrawCylinderEx(vec(tail), vec(tip), float32(a.Radius), 0, 6, color)
	}
}

// DrawHeadings draws each agent's smoothed flock heading.
func (a *AgentRenderer) DrawHeadings(records []systems.AgentRecord) {
	for i := range records {
		r := &records[i]
		if r.Flockmates == 0 || r3.Norm2(r.FlockHeading) == 0 {
			continue
		}
		end := r3.Add(r.Position, r3.Scale(a.Length*2, r3.Unit(r.FlockHeading)))
		rl.DrawLine3D(vec(r.Position), vec(end), rl.Color{R: 120, G: 200, B: 255, A: 160})
	}
}

// DrawPerception draws the perception and avoidance spheres of one agent
// and a line to its perceived flock centre.
func (a *AgentRenderer) DrawPerception(r systems.AgentRecord, perception, avoidance float64) {
	rl.DrawSphereWires(vec(r.Position), float32(perception), 8, 12, rl.Color{R: 120, G: 200, B: 255, A: 90})
	rl.DrawSphereWires(vec(r.Position), float32(avoidance), 6, 10, rl.Color{R: 255, G: 140, B: 90, A: 110})
	if r.Flockmates > 0 {
		centre := r3.Scale(1/float64(r.Flockmates), r.FlockCentre)
		rl.DrawLine3D(vec(r.Position), vec(centre), rl.Color{R: 180, G: 255, B: 160, A: 200})
	}
}

// CrowdColor maps a flockmate count to a hue from blue (alone) to green
// (count >= crowd).
func CrowdColor(flockmates, crowd int32) rl.Color {
	t := 0.0
	if crowd > 0 {
		t = math.Min(float64(flockmates)/float64(crowd), 1)
	}
	return rl.ColorFromHSV(float32(210-90*t), 0.6, 0.95)
}
