package game

import (
	rl "github.com/gen2brain/raylib-go/raylib"

	"github.com/pthm-cable/flock/ui"
)

const controlsLegend = "Space: Pause | </>: Speed | RMB: Orbit | Shift+RMB: Pan | Wheel: Zoom | " +
	"Home: Reset | LMB: Select | G: Goal | M: Move goal | R: Reload | Tab: Overlays"

// Draw renders the scene and UI.
func (g *Game) Draw() {
	rl.BeginDrawing()

	records := g.sim.Records()
	grid := g.sim.Grid()
	ix := g.sim.Index()
	sel := g.selectedIndex()
	if sel >= len(records) {
		sel = -1
	}

	g.scene.Begin(g.cam)

	if g.overlays.IsEnabled(ui.OverlayFloor) {
		g.scene.DrawFloor(grid)
	}
	if g.overlays.IsEnabled(ui.OverlayBounds) {
		g.scene.DrawBounds(grid)
	}
	if ix != nil {
		if g.overlays.IsEnabled(ui.OverlayVoxelUsage) {
			g.scene.Obstacles.DrawUsage(ix)
		}
		if g.overlays.IsEnabled(ui.OverlayProbes) {
			g.scene.Obstacles.DrawProbes(ix)
		}
	}

	g.scene.Agents.Draw(records, sel)
	if g.overlays.IsEnabled(ui.OverlayHeadings) {
		g.scene.Agents.DrawHeadings(records)
	}
	if sel >= 0 && g.overlays.IsEnabled(ui.OverlayPerception) {
		g.scene.Agents.DrawPerception(records[sel], g.cfg.Boids.PerceptionRadius, g.cfg.Boids.AvoidanceRadius)
	}
	if g.hasGoal {
		g.scene.DrawGoal(g.goalPos)
	}

	g.scene.End()

	g.drawUI(sel)

	rl.EndDrawing()
}

// drawUI renders the 2D panels over the scene.
func (g *Game) drawUI(sel int) {
	data := ui.HUDData{
		Title:   g.title,
		Agents:  len(g.sim.Records()),
		Tick:    g.sim.Tick(),
		SimTime: g.sim.SimTime(),
		Speed:   g.state.StepsPerUpdate,
		FPS:     rl.GetFPS(),
		Paused:  g.state.Paused,
		Backend: g.sim.BackendName(),
	}
	if ix := g.sim.Index(); ix != nil {
		data.Probes = ix.ProbeCount()
		data.Occupied = ix.OccupiedCells()
	}
	if g.observers != nil {
		data.Observers = g.observers()
	}
	g.hud.Draw(data)

	if g.overlays.IsEnabled(ui.OverlayPerf) {
		g.perfPanel.Draw(g.sim.Perf().Stats())
	}

	g.controls.Draw(g.overlays)
	g.applyAction(g.simPanel.Draw(&g.state))

	if sel >= 0 {
		if d := g.selectedDetail(sel); d != nil {
			g.inspector.Draw(d)
		}
	}

	g.hud.DrawControls(int32(g.screenWidth), int32(g.screenHeight), controlsLegend)
}
