package ui

import (
	"fmt"
	"math"

	rl "github.com/gen2brain/raylib-go/raylib"
	"gonum.org/v1/gonum/spatial/r3"
)

// Renderer draws panels and descriptor rows with one theme.
type Renderer struct {
	Theme Theme
}

// NewRenderer creates a renderer with the default theme.
func NewRenderer() *Renderer {
	return &Renderer{Theme: DefaultTheme()}
}

// DrawPanel draws a panel background with border.
func (r *Renderer) DrawPanel(x, y, width, height int32) {
	rl.DrawRectangle(x, y, width, height, r.Theme.PanelBg)
	rl.DrawRectangleLines(x, y, width, height, r.Theme.PanelBorder)
}

// DrawSectionHeader draws a section header and returns the new Y position.
func (r *Renderer) DrawSectionHeader(x, y int32, title string) int32 {
	rl.DrawText(title, x, y, r.Theme.HeaderFontSize, r.Theme.SectionHeader)
	return y + r.Theme.LineHeight
}

// DrawSpacer adds vertical space and returns new Y.
func (r *Renderer) DrawSpacer(y int32, amount int32) int32 {
	return y + amount
}

func (r *Renderer) label(x, y int32, text string) {
	rl.DrawText(text+":", x, y, r.Theme.FontSize, r.Theme.LabelColor)
}

// barArea is the horizontal span left for a bar after the label and a
// trailing value column.
func (r *Renderer) barArea(x, width int32) (int32, int32) {
	return x + r.Theme.LabelWidth, width - r.Theme.LabelWidth - 50
}

func (r *Renderer) trailing(x, y int32, text string) {
	rl.DrawText(text, x+5, y, r.Theme.FontSize, r.Theme.ValueColor)
}

// centred fills a bar from its midpoint by frac in [-1, 1].
func (r *Renderer) centred(x, y, w int32, frac float64, pos, neg rl.Color) {
	h := r.Theme.BarHeight
	rl.DrawRectangle(x, y+2, w, h, r.Theme.BarBg)
	mid := x + w/2
	rl.DrawLine(mid, y+2, mid, y+2+h, rl.Color{R: 80, G: 80, B: 80, A: 255})
	if math.IsNaN(frac) {
		return
	}
	frac = math.Max(-1, math.Min(1, frac))
	fill := int32(float64(w/2) * math.Abs(frac))
	if frac < 0 {
		rl.DrawRectangle(mid-fill, y+2, fill, h, neg)
		return
	}
	rl.DrawRectangle(mid, y+2, fill, h, pos)
}

func (r *Renderer) textRow(x, y int32, label, value string) int32 {
	r.label(x, y, label)
	rl.DrawText(value, x+r.Theme.LabelWidth, y, r.Theme.FontSize, r.Theme.ValueColor)
	return y + r.Theme.LineHeight
}

// bandRow places v between lo and hi with tick marks at both ends. Values
// outside the band pin to the nearest end and draw in the negative colour.
func (r *Renderer) bandRow(x, y int32, label string, v, lo, hi float64, format string, width int32, fill rl.Color) int32 {
	r.label(x, y, label)
	bx, bw := r.barArea(x, width)
	h := r.Theme.BarHeight
	rl.DrawRectangle(bx, y+2, bw, h, r.Theme.BarBg)

	frac := 1.0
	if hi > lo {
		frac = (v - lo) / (hi - lo)
	}
	if frac < 0 || frac > 1 {
		fill = r.Theme.BarFillNegative
	}
	frac = math.Max(0, math.Min(1, frac))
	rl.DrawRectangle(bx, y+2, int32(float64(bw)*frac), h, fill)
	rl.DrawLine(bx, y, bx, y+4+h, r.Theme.LabelColor)
	rl.DrawLine(bx+bw, y, bx+bw, y+4+h, r.Theme.LabelColor)

	r.trailing(bx+bw, y, fmt.Sprintf(format, v))
	return y + r.Theme.LineHeight + 2
}

func (r *Renderer) signedRow(x, y int32, label string, v, halfWidth float64, width int32) int32 {
	r.label(x, y, label)
	bx, bw := r.barArea(x, width)
	frac := 0.0
	if halfWidth > 0 {
		frac = v / halfWidth
	}
	r.centred(bx, y, bw, frac, r.Theme.BarFillPositive, r.Theme.BarFillNegative)
	r.trailing(bx+bw, y, fmt.Sprintf("%+.2f", v))
	return y + r.Theme.LineHeight + 2
}

// vecRow splits the bar area into one centred bar per axis showing the
// direction cosine of v, followed by its length. A zero vector leaves the
// bars empty.
func (r *Renderer) vecRow(x, y int32, label string, v r3.Vec, width int32) int32 {
	r.label(x, y, label)
	bx, bw := r.barArea(x, width)
	cw := bw / 3
	n := r3.Norm(v)
	for a, c := range [3]float64{v.X, v.Y, v.Z} {
		frac := 0.0
		if n > 0 {
			frac = c / n
		}
		col := r.Theme.AxisColors[a]
		r.centred(bx+int32(a)*cw, y, cw-2, frac, col, col)
	}
	r.trailing(bx+bw, y, fmt.Sprintf("%.2f", n))
	return y + r.Theme.LineHeight + 2
}

// DrawField renders a field based on its descriptor.
func (r *Renderer) DrawField(x, y int32, fd FieldDescriptor, data any, width int32) int32 {
	value := func() float64 {
		if fd.Value == nil {
			return 0
		}
		return fd.Value(data)
	}

	switch fd.Widget {
	case WidgetText:
		var text string
		if fd.Text != nil {
			text = fd.Text(data)
		} else {
			text = fmt.Sprintf(fd.Format, value())
		}
		return r.textRow(x, y, fd.Label, text)

	case WidgetBand:
		var lo, hi float64
		if fd.Bounds != nil {
			lo, hi = fd.Bounds(data)
		}
		return r.bandRow(x, y, fd.Label, value(), lo, hi, fd.Format, width, r.Theme.BarFill)

	case WidgetSigned:
		return r.signedRow(x, y, fd.Label, value(), fd.Range, width)

	case WidgetVec:
		var v r3.Vec
		if fd.Vec != nil {
			v = fd.Vec(data)
		}
		return r.vecRow(x, y, fd.Label, v, width)

	case WidgetSpacer:
		return r.DrawSpacer(y, 6)
	}

	return y
}

// DrawSection renders a section with header and fields.
func (r *Renderer) DrawSection(x, y int32, sd SectionDescriptor, data any, width int32) int32 {
	if sd.Visible != nil && !sd.Visible(data) {
		return y
	}
	if sd.Title != "" {
		y = r.DrawSectionHeader(x, y, sd.Title)
	}
	for _, fd := range sd.Fields {
		if fd.Visible != nil && !fd.Visible(data) {
			continue
		}
		y = r.DrawField(x, y, fd, data, width)
	}
	return y + 4
}
