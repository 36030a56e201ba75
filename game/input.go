package game

import (
	rl "github.com/gen2brain/raylib-go/raylib"
)

// Camera sensitivities.
const (
	orbitSpeed = 0.005 // radians per pixel
	panSpeed   = 0.0015
	keyOrbit   = 0.03
)

// handleInput processes keyboard and mouse input.
func (g *Game) handleInput() {
	// Window resize propagation
	g.handleResize()

	// Fullscreen toggle
	if rl.IsKeyPressed(rl.KeyF11) {
		rl.ToggleFullscreen()
	}

	if rl.IsKeyPressed(rl.KeySpace) {
		g.state.Paused = !g.state.Paused
	}

	// Steps-per-update control with < > keys (comma and period)
	if rl.IsKeyPressed(rl.KeyComma) && g.state.StepsPerUpdate > 1 {
		g.state.StepsPerUpdate--
	}
	if rl.IsKeyPressed(rl.KeyPeriod) && g.state.StepsPerUpdate < g.simPanel.MaxSteps {
		g.state.StepsPerUpdate++
	}

	if rl.IsKeyPressed(rl.KeyTab) {
		g.controls.Toggle()
	}
	if rl.IsKeyPressed(rl.KeyR) {
		g.reloadProbes()
	}
	if rl.IsKeyPressed(rl.KeyG) {
		g.toggleGoal()
	}
	if rl.IsKeyDown(rl.KeyM) {
		g.moveGoal()
	}

	// Overlay toggles
	if key := rl.GetKeyPressed(); key != 0 {
		g.overlays.HandleKeyPress(key)
	}

	g.handleCameraInput()

	if rl.IsMouseButtonPressed(rl.MouseButtonLeft) && !g.overPanel(rl.GetMousePosition()) {
		g.selectAtMouse()
	}
}

// handleResize checks for window resize and propagates new dimensions.
func (g *Game) handleResize() {
	if !rl.IsWindowResized() {
		return
	}
	w := float32(rl.GetScreenWidth())
	h := float32(rl.GetScreenHeight())
	if w == g.screenWidth && h == g.screenHeight {
		return
	}
	g.screenWidth = w
	g.screenHeight = h
	g.layout()
}

// handleCameraInput processes orbit, pan and zoom controls.
func (g *Game) handleCameraInput() {
	if g.cam == nil {
		return
	}

	// Right drag orbits, shift+right or middle drag pans
	delta := rl.GetMouseDelta()
	shift := rl.IsKeyDown(rl.KeyLeftShift) || rl.IsKeyDown(rl.KeyRightShift)
	switch {
	case rl.IsMouseButtonDown(rl.MouseButtonMiddle),
		shift && rl.IsMouseButtonDown(rl.MouseButtonRight):
		g.cam.Pan(-float64(delta.X)*panSpeed, float64(delta.Y)*panSpeed)
	case rl.IsMouseButtonDown(rl.MouseButtonRight):
		g.cam.Orbit(-float64(delta.X)*orbitSpeed, float64(delta.Y)*orbitSpeed)
	}

	// Arrow keys orbit
	if rl.IsKeyDown(rl.KeyRight) {
		g.cam.Orbit(keyOrbit, 0)
	}
	if rl.IsKeyDown(rl.KeyLeft) {
		g.cam.Orbit(-keyOrbit, 0)
	}
	if rl.IsKeyDown(rl.KeyUp) {
		g.cam.Orbit(0, keyOrbit)
	}
	if rl.IsKeyDown(rl.KeyDown) {
		g.cam.Orbit(0, -keyOrbit)
	}

	// Zoom controls: mouse wheel or +/- keys
	if wheel := rl.GetMouseWheelMove(); wheel != 0 {
		g.cam.ZoomBy(1 + float64(wheel)*0.1)
	}
	if rl.IsKeyPressed(rl.KeyEqual) || rl.IsKeyPressed(rl.KeyKpAdd) {
		g.cam.ZoomBy(1.25)
	}
	if rl.IsKeyPressed(rl.KeyMinus) || rl.IsKeyPressed(rl.KeyKpSubtract) {
		g.cam.ZoomBy(0.8)
	}

	// Home key to reset camera
	if rl.IsKeyPressed(rl.KeyHome) {
		g.cam.Reset()
	}
}

// overPanel reports whether p lies over the sim panel, where clicks belong
// to raygui.
func (g *Game) overPanel(p rl.Vector2) bool {
	return p.X >= g.screenWidth-210 && p.Y >= g.screenHeight-190
}
