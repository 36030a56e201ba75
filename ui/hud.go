package ui

import (
	"fmt"
	"time"

	rl "github.com/gen2brain/raylib-go/raylib"

	"github.com/pthm-cable/flock/telemetry"
)

// HUDData holds all the data needed to render the main HUD.
type HUDData struct {
	Title     string
	Agents    int
	Probes    int
	Occupied  int
	Tick      int32
	SimTime   float64
	Speed     int
	FPS       int32
	Paused    bool
	Backend   string
	Observers int
}

// HUD renders the main heads-up display.
type HUD struct{}

// NewHUD creates a new HUD renderer.
func NewHUD() *HUD { return &HUD{} }

// Draw renders the HUD.
func (h *HUD) Draw(data HUDData) {
	rl.DrawText(data.Title, 10, 10, 20, rl.White)

	rl.DrawText(
		fmt.Sprintf("Agents: %d | Probes: %d | Voxels: %d", data.Agents, data.Probes, data.Occupied),
		10, 35, 16, rl.LightGray,
	)

	rl.DrawText(
		fmt.Sprintf("Tick: %d | t=%.1fs | Speed: %dx | FPS: %d", data.Tick, data.SimTime, data.Speed, data.FPS),
		10, 55, 16, rl.LightGray,
	)

	info := "Backend: " + data.Backend
	if data.Observers > 0 {
		info += fmt.Sprintf(" | Observers: %d", data.Observers)
	}
	rl.DrawText(info, 10, 75, 14, rl.Gray)

	if data.Paused {
		rl.DrawText("PAUSED", 10, 93, 16, rl.Yellow)
	}
}

// DrawControls renders the control legend at the bottom of the screen.
func (h *HUD) DrawControls(screenWidth, screenHeight int32, controls string) {
	rl.DrawText(controls, 10, screenHeight-25, 14, rl.Gray)
}

// PerfPanel renders the step phase timing panel.
type PerfPanel struct {
	renderer *Renderer
	x, y     int32
	width    int32
}

// NewPerfPanel creates a new performance panel.
func NewPerfPanel(x, y int32) *PerfPanel {
	r := NewRenderer()
	r.Theme.LabelWidth = 100
	return &PerfPanel{
		renderer: r,
		x:        x,
		y:        y,
		width:    280,
	}
}

// SetPosition updates the panel position.
func (p *PerfPanel) SetPosition(x, y int32) {
	p.x = x
	p.y = y
}

// Draw renders each phase's share of the average tick. The dominant phase
// is drawn in the header colour.
func (p *PerfPanel) Draw(stats telemetry.StepStats) {
	r := p.renderer
	pad := r.Theme.Padding
	rows := int32(len(telemetry.Phases))
	r.DrawPanel(p.x, p.y, p.width, pad*2+r.Theme.LineHeight*2+(r.Theme.LineHeight+2)*rows)

	x, y := p.x+pad, p.y+pad
	y = r.DrawSectionHeader(x, y, "Step Timing")
	y = r.textRow(x, y, "Tick", fmt.Sprintf("%s (%.0f/s)", stats.AvgTick.Round(time.Microsecond), stats.TicksPerSecond))

	dominant := stats.Dominant()
	for _, phase := range telemetry.Phases {
		fill := r.Theme.BarFill
		if phase == dominant && stats.Ticks > 0 {
			fill = r.Theme.SectionHeader
		}
		y = r.bandRow(x, y, phase.String(), stats.Share(phase), 0, 100, "%.1f%%", p.width-pad*2, fill)
	}
}
