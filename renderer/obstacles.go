package renderer

import (
	"math/bits"

	rl "github.com/gen2brain/raylib-go/raylib"

	"github.com/pthm-cable/flock/systems"
)

// ObstacleRenderer draws probe points and voxel occupancy.
type ObstacleRenderer struct {
	ProbeSize float32

	// cached per index
	ix       *systems.ObstacleIndex
	maxUsage int32
}

// NewObstacleRenderer creates an obstacle renderer.
func NewObstacleRenderer() *ObstacleRenderer {
	return &ObstacleRenderer{ProbeSize: 0.06}
}

func (o *ObstacleRenderer) sync(ix *systems.ObstacleIndex) {
	if ix == o.ix {
		return
	}
	o.ix = ix
	o.maxUsage = 0
	if ix == nil {
		return
	}
	for _, c := range ix.Cells() {
		o.maxUsage = max(o.maxUsage, c.Usage)
	}
}

// DrawProbes draws every probe as a small cube coloured by its lowest layer bit.
func (o *ObstacleRenderer) DrawProbes(ix *systems.ObstacleIndex) {
	o.sync(ix)
	if ix == nil {
		return
	}
	s := o.ProbeSize
	for i, p := range ix.Probes() {
		rl.DrawCube(vec(p), s, s, s, LayerColor(ix.Layer(i)))
	}
}

// DrawUsage outlines occupied voxels, brighter for fuller cells.
func (o *ObstacleRenderer) DrawUsage(ix *systems.ObstacleIndex) {
	o.sync(ix)
	if ix == nil || o.maxUsage == 0 {
		return
	}
	g := ix.Grid()
	size := float32(g.VoxelSize())
	for cell, head := range ix.Cells() {
		if head.Usage == 0 {
			continue
		}
		a := uint8(40 + 200*head.Usage/o.maxUsage)
		rl.DrawCubeWires(vec(g.CellCenter(g.Coord(cell))), size, size, size, rl.Color{R: 255, G: 200, B: 80, A: a})
	}
}

var layerPalette = [...]rl.Color{
	{R: 200, G: 200, B: 210, A: 255},
	{R: 230, G: 120, B: 90, A: 255},
	{R: 110, G: 200, B: 130, A: 255},
	{R: 120, G: 150, B: 240, A: 255},
	{R: 220, G: 190, B: 90, A: 255},
	{R: 190, G: 120, B: 220, A: 255},
}

// LayerColor picks a palette colour from the lowest set bit of mask.
func LayerColor(mask uint32) rl.Color {
	if mask == 0 {
		return layerPalette[0]
	}
	return layerPalette[bits.TrailingZeros32(mask)%len(layerPalette)]
}
