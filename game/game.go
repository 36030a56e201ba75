// Package game runs the interactive flock viewer on top of a simulation.
package game

import (
	"log/slog"

	rl "github.com/gen2brain/raylib-go/raylib"
	"github.com/mlange-42/ark/ecs"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/flock/camera"
	"github.com/pthm-cable/flock/config"
	"github.com/pthm-cable/flock/probes"
	"github.com/pthm-cable/flock/renderer"
	"github.com/pthm-cable/flock/sim"
	"github.com/pthm-cable/flock/ui"
)

// Options configures the viewer.
type Options struct {
	Title          string
	StepsPerUpdate int
	// Reload produces a fresh obstacle set for the Reload Probes button.
	Reload func() (probes.Set, error)
	// Observers reports the number of connected stream subscribers.
	Observers func() int
}

// Game holds the viewer state around a running simulation.
type Game struct {
	sim *sim.Simulation
	cfg config.Config

	cam   *camera.Camera
	scene *renderer.Scene

	// UI
	hud       *ui.HUD
	perfPanel *ui.PerfPanel
	controls  *ui.ControlsPanel
	simPanel  *ui.SimPanel
	inspector *ui.Inspector
	overlays  *ui.OverlayRegistry

	state ui.SimState
	title string

	selected    ecs.Entity
	hasSelected bool
	goal        ecs.Entity
	goalPos     r3.Vec
	hasGoal     bool

	reload    func() (probes.Set, error)
	observers func() int

	screenWidth, screenHeight float32
}

// NewGame creates a viewer for s. The raylib window must already be open.
func NewGame(s *sim.Simulation, opts Options) *Game {
	g := &Game{
		sim:          s,
		cfg:          s.Config(),
		scene:        renderer.NewScene(),
		hud:          ui.NewHUD(),
		overlays:     ui.NewOverlayRegistry(),
		title:        opts.Title,
		reload:       opts.Reload,
		observers:    opts.Observers,
		screenWidth:  float32(rl.GetScreenWidth()),
		screenHeight: float32(rl.GetScreenHeight()),
	}
	if g.title == "" {
		g.title = "Flock"
	}
	g.state.StepsPerUpdate = max(1, opts.StepsPerUpdate)

	grid := s.Grid()
	g.cam = camera.New(grid.Center(), r3.Norm(grid.Extent())*2)
	g.cam.Frame(grid.Min(), grid.Max())

	g.overlays.SetEnabled(ui.OverlayBounds, true)
	g.overlays.SetEnabled(ui.OverlayProbes, true)

	g.perfPanel = ui.NewPerfPanel(10, 120)
	g.controls = ui.NewControlsPanel(0, 10, 200)
	g.simPanel = ui.NewSimPanel(0, 0, 200)
	g.inspector = ui.NewInspector(0, 0, 240)
	g.layout()
	return g
}

// layout positions the side panels for the current window size.
func (g *Game) layout() {
	w := int32(g.screenWidth)
	h := int32(g.screenHeight)
	g.controls.SetPosition(w-210, 10)
	g.simPanel.SetPosition(w-210, h-190)
	g.inspector.SetPosition(10, h-300)
}

// Tick returns the simulation tick.
func (g *Game) Tick() int32 { return g.sim.Tick() }

// Update handles input and advances the simulation.
func (g *Game) Update() {
	g.handleInput()

	if g.state.Paused {
		return
	}
	g.step(g.state.StepsPerUpdate)
}

func (g *Game) step(n int) {
	for i := 0; i < n; i++ {
		if err := g.sim.Step(g.cfg.Sim.DT); err != nil {
			slog.Error("step failed", "tick", g.sim.Tick(), "error", err)
			g.state.Paused = true
			return
		}
	}
	if g.state.Follow {
		if p, ok := g.selectedPosition(); ok {
			g.cam.Follow(p)
		}
	}
}

// applyAction runs the one-shot buttons of the sim panel.
func (g *Game) applyAction(act ui.SimAction) {
	if act.StepOnce {
		g.state.Paused = true
		g.step(1)
	}
	if act.ResetCamera {
		g.cam.Reset()
	}
	if act.Reload {
		g.reloadProbes()
	}
}

func (g *Game) reloadProbes() {
	if g.reload == nil {
		return
	}
	set, err := g.reload()
	if err != nil {
		slog.Error("probe reload failed", "error", err)
		return
	}
	g.sim.SetObstacles(set)
	slog.Info("probes reloaded", "probes", set.Len())
}

// toggleGoal places a goal at the camera target and steers every agent to
// it, or removes the current goal.
func (g *Game) toggleGoal() {
	if g.hasGoal {
		if err := g.sim.RemoveGoal(g.goal); err != nil {
			slog.Warn("remove goal", "error", err)
		}
		g.hasGoal = false
		return
	}
	g.goalPos = g.cam.Target
	g.goal = g.sim.AddGoal(g.goalPos)
	g.hasGoal = true
	if err := g.sim.SetTargetAll(g.goal); err != nil {
		slog.Warn("set target", "error", err)
	}
}

// moveGoal drags the current goal to the camera target.
func (g *Game) moveGoal() {
	if !g.hasGoal {
		return
	}
	if err := g.sim.MoveGoal(g.goal, g.cam.Target); err != nil {
		slog.Warn("move goal", "error", err)
		g.hasGoal = false
		return
	}
	g.goalPos = g.cam.Target
}
