// Package ui provides a descriptor-driven UI system for the simulation.
// Panels are defined through field metadata so new readouts can be added
// alongside the data they display.
package ui

import (
	rl "github.com/gen2brain/raylib-go/raylib"
	"gonum.org/v1/gonum/spatial/r3"
)

// WidgetType specifies how a field should be rendered.
type WidgetType int

const (
	WidgetText   WidgetType = iota // Text, or Value through Format
	WidgetBand                     // Value placed between per-row Bounds
	WidgetSigned                   // Value centred on zero, scaled by Range
	WidgetVec                      // Per-axis direction of Vec plus its length
	WidgetSpacer                   // Vertical spacing
)

// FieldDescriptor defines how to display a single piece of data. Only the
// getter matching Widget is consulted.
type FieldDescriptor struct {
	Label   string
	Widget  WidgetType
	Format  string  // Printf format for Value (e.g., "%.2f")
	Range   float64 // Half-width of a WidgetSigned bar
	Visible func(any) bool
	Value   func(any) float64
	Text    func(any) string
	Vec     func(any) r3.Vec
	Bounds  func(any) (lo, hi float64)
}

// SectionDescriptor defines a group of fields with a header.
type SectionDescriptor struct {
	Title   string
	Fields  []FieldDescriptor
	Visible func(any) bool
}

// Theme holds UI styling constants.
type Theme struct {
	PanelBg         rl.Color
	PanelBorder     rl.Color
	SectionHeader   rl.Color
	LabelColor      rl.Color
	ValueColor      rl.Color
	BarBg           rl.Color
	BarFill         rl.Color
	BarFillNegative rl.Color
	BarFillPositive rl.Color
	AxisColors      [3]rl.Color
	Padding         int32
	LineHeight      int32
	LabelWidth      int32
	BarHeight       int32
	FontSize        int32
	HeaderFontSize  int32
}

// axisColors tint X, Y and Z components.
var axisColors = [3]rl.Color{
	{R: 220, G: 90, B: 90, A: 255},
	{R: 90, G: 200, B: 90, A: 255},
	{R: 90, G: 140, B: 230, A: 255},
}

// DefaultTheme returns the default UI theme.
func DefaultTheme() Theme {
	return Theme{
		PanelBg:         rl.Color{R: 20, G: 25, B: 30, A: 240},
		PanelBorder:     rl.Color{R: 60, G: 70, B: 80, A: 255},
		SectionHeader:   rl.Yellow,
		LabelColor:      rl.LightGray,
		ValueColor:      rl.LightGray,
		BarBg:           rl.Color{R: 40, G: 40, B: 40, A: 255},
		BarFill:         rl.Color{R: 100, G: 150, B: 200, A: 255},
		BarFillNegative: rl.Color{R: 200, G: 100, B: 100, A: 255},
		BarFillPositive: rl.Color{R: 100, G: 200, B: 100, A: 255},
		AxisColors:      axisColors,
		Padding:         10,
		LineHeight:      16,
		LabelWidth:      80,
		BarHeight:       12,
		FontSize:        12,
		HeaderFontSize:  14,
	}
}
