package ui

import (
	"fmt"

	gui "github.com/gen2brain/raylib-go/raygui"
	rl "github.com/gen2brain/raylib-go/raylib"
)

// ControlsPanel renders the left-side controls panel with overlay toggles.
type ControlsPanel struct {
	renderer *Renderer
	x, y     int32
	width    int32
	visible  bool
}

// NewControlsPanel creates a new controls panel.
func NewControlsPanel(x, y, width int32) *ControlsPanel {
	return &ControlsPanel{
		renderer: NewRenderer(),
		x:        x,
		y:        y,
		width:    width,
		visible:  false,
	}
}

// SetPosition updates the panel position.
func (c *ControlsPanel) SetPosition(x, y int32) {
	c.x = x
	c.y = y
}

// SetVisible shows or hides the panel.
func (c *ControlsPanel) SetVisible(visible bool) {
	c.visible = visible
}

// IsVisible returns whether the panel is shown.
func (c *ControlsPanel) IsVisible() bool {
	return c.visible
}

// Toggle switches panel visibility.
func (c *ControlsPanel) Toggle() bool {
	c.visible = !c.visible
	return c.visible
}

// Draw renders the controls panel.
func (c *ControlsPanel) Draw(overlays *OverlayRegistry) int32 {
	if !c.visible {
		return c.y
	}

	r := c.renderer
	padding := r.Theme.Padding
	lineHeight := r.Theme.LineHeight

	// Calculate panel height based on content
	categories := overlays.Categories()
	totalItems := 0
	for _, cat := range categories {
		totalItems += len(overlays.ByCategory(cat)) + 1 // +1 for category header
	}
	panelHeight := int32(totalItems)*lineHeight + padding*3 + lineHeight // Extra for title

	// Draw panel background
	r.DrawPanel(c.x, c.y, c.width, panelHeight)

	y := c.y + padding

	// Title
	rl.DrawText("Overlays", c.x+padding, y, 16, rl.White)
	y += lineHeight + 4

	// Draw overlays by category
	for _, category := range categories {
		// Category header
		catLabel := categoryLabel(category)
		rl.DrawText(catLabel, c.x+padding, y, r.Theme.HeaderFontSize, r.Theme.SectionHeader)
		y += lineHeight

		// Overlays in this category
		for _, desc := range overlays.ByCategory(category) {
			enabled := overlays.IsEnabled(desc.ID)
			c.drawToggle(c.x+padding, y, desc, enabled, c.width-padding*2)
			y += lineHeight
		}

		y += 4 // Gap between categories
	}

	return y
}

// drawToggle draws a single overlay toggle line.
func (c *ControlsPanel) drawToggle(x, y int32, desc OverlayDescriptor, enabled bool, width int32) {
	r := c.renderer

	// Status indicator
	statusColor := rl.Color{R: 80, G: 80, B: 80, A: 255}
	if enabled {
		statusColor = rl.Color{R: 100, G: 200, B: 100, A: 255}
	}
	rl.DrawRectangle(x, y+2, 8, 8, statusColor)

	// Name
	nameColor := r.Theme.LabelColor
	if enabled {
		nameColor = rl.White
	}
	rl.DrawText(desc.Name, x+14, y, r.Theme.FontSize, nameColor)

	// Key binding (right aligned)
	if desc.KeyLabel != "" {
		keyText := fmt.Sprintf("[%s]", desc.KeyLabel)
		keyWidth := rl.MeasureText(keyText, r.Theme.FontSize)
		rl.DrawText(keyText, x+width-keyWidth, y, r.Theme.FontSize, rl.Color{R: 150, G: 150, B: 150, A: 255})
	}
}

// categoryLabel returns a display label for a category.
func categoryLabel(cat string) string {
	switch cat {
	case "scene":
		return "Scene"
	case "perception":
		return "Perception"
	case "debug":
		return "Debug"
	default:
		return cat
	}
}

// SimState is the run state the sim panel edits in place.
type SimState struct {
	Paused         bool
	StepsPerUpdate int
	Follow         bool
}

// SimAction reports one-shot buttons pressed this frame.
type SimAction struct {
	StepOnce    bool
	ResetCamera bool
	Reload      bool
}

// SimPanel renders raygui run controls.
type SimPanel struct {
	renderer *Renderer
	x, y     int32
	width    int32
	MaxSteps int
}

// NewSimPanel creates a run control panel.
func NewSimPanel(x, y, width int32) *SimPanel {
	return &SimPanel{
		renderer: NewRenderer(),
		x:        x,
		y:        y,
		width:    width,
		MaxSteps: 16,
	}
}

// SetPosition updates the panel position.
func (p *SimPanel) SetPosition(x, y int32) {
	p.x = x
	p.y = y
}

// Draw renders the panel, applies edits to state and returns the pressed buttons.
func (p *SimPanel) Draw(state *SimState) SimAction {
	r := p.renderer
	padding := r.Theme.Padding
	rowH := float32(24)
	panelHeight := int32(rowH)*4 + padding*3 + r.Theme.LineHeight

	r.DrawPanel(p.x, p.y, p.width, panelHeight)

	x := float32(p.x + padding)
	y := float32(p.y + padding)
	w := float32(p.width - padding*2)
	half := (w - 6) / 2

	rl.DrawText("Run", int32(x), int32(y), 16, rl.White)
	y += float32(r.Theme.LineHeight) + 4

	var act SimAction
	if gui.Button(rl.Rectangle{X: x, Y: y, Width: half, Height: rowH - 4}, toggleText(state.Paused, "Resume", "Pause")) {
		state.Paused = !state.Paused
	}
	if gui.Button(rl.Rectangle{X: x + half + 6, Y: y, Width: half, Height: rowH - 4}, "Step") {
		act.StepOnce = true
	}
	y += rowH

	steps := gui.SliderBar(
		rl.Rectangle{X: x + 40, Y: y, Width: w - 80, Height: rowH - 8},
		"Speed", fmt.Sprintf("%dx", state.StepsPerUpdate),
		float32(state.StepsPerUpdate), 1, float32(p.MaxSteps),
	)
	state.StepsPerUpdate = max(1, int(steps+0.5))
	y += rowH

	state.Follow = gui.CheckBox(rl.Rectangle{X: x, Y: y + 2, Width: 14, Height: 14}, "Follow selected", state.Follow)
	y += rowH

	if gui.Button(rl.Rectangle{X: x, Y: y, Width: half, Height: rowH - 4}, "Reset View") {
		act.ResetCamera = true
	}
	if gui.Button(rl.Rectangle{X: x + half + 6, Y: y, Width: half, Height: rowH - 4}, "Reload Probes") {
		act.Reload = true
	}
	return act
}

func toggleText(on bool, onText, offText string) string {
	if on {
		return onText
	}
	return offText
}
