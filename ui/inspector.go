package ui

import (
	"fmt"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/flock/systems"
)

// AgentDetail is the inspector's view of one agent.
type AgentDetail struct {
	ID       uint32
	Position r3.Vec
	Forward  r3.Vec
	Speed    float64
	MinSpeed float64
	MaxSpeed float64
	Record   systems.AgentRecord
}

func detail(data any) *AgentDetail { return data.(*AgentDetail) }

func vecText(v r3.Vec) string {
	return fmt.Sprintf("%.2f %.2f %.2f", v.X, v.Y, v.Z)
}

// mean divides an accumulated record sum by the flockmate count.
func (a *AgentDetail) mean(sum r3.Vec) r3.Vec {
	if a.Record.Flockmates == 0 {
		return r3.Vec{}
	}
	return r3.Scale(1/float64(a.Record.Flockmates), sum)
}

// meanHeading is the mean flockmate heading.
func (a *AgentDetail) meanHeading() r3.Vec { return a.mean(a.Record.FlockHeading) }

// toCentre is the offset from the agent to its flockmates' centre.
func (a *AgentDetail) toCentre() r3.Vec {
	return r3.Sub(a.mean(a.Record.FlockCentre), a.Position)
}

func hasMates(d any) bool { return detail(d).Record.Flockmates > 0 }

var agentSections = []SectionDescriptor{
	{
		Title: "Motion",
		Fields: []FieldDescriptor{
			{Label: "Position", Widget: WidgetText, Text: func(d any) string { return vecText(detail(d).Position) }},
			{Label: "Heading", Widget: WidgetVec, Vec: func(d any) r3.Vec { return detail(d).Forward }},
			{
				Label:  "Speed",
				Widget: WidgetBand,
				Format: "%.2f",
				Value:  func(d any) float64 { return detail(d).Speed },
				Bounds: func(d any) (float64, float64) { return detail(d).MinSpeed, detail(d).MaxSpeed },
			},
			{Label: "Climb", Widget: WidgetSigned, Range: 1, Value: func(d any) float64 { return detail(d).Forward.Y }},
		},
	},
	{
		Title: "Perception",
		Fields: []FieldDescriptor{
			{Label: "Flockmates", Widget: WidgetText, Format: "%.0f", Value: func(d any) float64 { return float64(detail(d).Record.Flockmates) }},
			{
				Label:   "Align",
				Widget:  WidgetVec,
				Visible: hasMates,
				Vec:     func(d any) r3.Vec { return detail(d).meanHeading() },
			},
			{
				Label:   "To centre",
				Widget:  WidgetVec,
				Visible: hasMates,
				Vec:     func(d any) r3.Vec { return detail(d).toCentre() },
			},
			{Label: "Separation", Widget: WidgetVec, Vec: func(d any) r3.Vec { return detail(d).Record.Avoidance }},
			{Label: "Obstacles", Widget: WidgetText, Format: "%.0f", Value: func(d any) float64 { return float64(detail(d).Record.Obstacles) }},
			{
				Label:   "Repulsion",
				Widget:  WidgetVec,
				Visible: func(d any) bool { return detail(d).Record.Obstacles > 0 },
				Vec:     func(d any) r3.Vec { return detail(d).Record.ObstacleAvoidance },
			},
		},
	},
}

// Inspector renders the selected agent panel.
type Inspector struct {
	renderer *Renderer
	x, y     int32
	width    int32
}

// NewInspector creates a new inspector panel.
func NewInspector(x, y, width int32) *Inspector {
	return &Inspector{
		renderer: NewRenderer(),
		x:        x,
		y:        y,
		width:    width,
	}
}

// SetPosition updates the inspector position.
func (ins *Inspector) SetPosition(x, y int32) {
	ins.x = x
	ins.y = y
}

// Draw renders the inspector panel for the given agent.
func (ins *Inspector) Draw(a *AgentDetail) int32 {
	r := ins.renderer
	padding := r.Theme.Padding
	contentWidth := ins.width - padding*2

	r.DrawPanel(ins.x, ins.y, ins.width, 260)

	y := ins.y + padding
	y = r.DrawSectionHeader(ins.x+padding, y, fmt.Sprintf("Agent #%d", a.ID))
	y = r.DrawSpacer(y, 4)
	for _, sd := range agentSections {
		y = r.DrawSection(ins.x+padding, y, sd, a, contentWidth)
	}
	return y
}
