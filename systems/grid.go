// Package systems holds the per-tick simulation kernels: the voxel grid, the
// obstacle hash index, perception and steering.
package systems

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

var (
	ErrInvalidVoxelSize = errors.New("voxel size must be positive and finite")
	ErrZeroResolution   = errors.New("grid resolves to zero cells on an axis")
)

// CellCoord is an integer voxel coordinate.
type CellCoord struct {
	X, Y, Z int
}

// Grid is an axis-aligned box of cubic voxels centred on Center with
// half-size Extent. Positions outside the box clamp to the nearest edge cell.
type Grid struct {
	center    r3.Vec
	extent    r3.Vec
	min       r3.Vec
	voxelSize float64
	invVoxel  float64
	res       [3]int
}

// NewGrid creates a grid covering [center-extent, center+extent].
func NewGrid(center, extent r3.Vec, voxelSize float64) (*Grid, error) {
	if !(voxelSize > 0) || math.IsInf(voxelSize, 0) {
		return nil, fmt.Errorf("%w: %v", ErrInvalidVoxelSize, voxelSize)
	}
	g := &Grid{
		center:    center,
		extent:    extent,
		min:       r3.Sub(center, extent),
		voxelSize: voxelSize,
		invVoxel:  1 / voxelSize,
	}
	for a, e := range [3]float64{extent.X, extent.Y, extent.Z} {
		n := math.Ceil(2*e/voxelSize - 1e-9)
		if !(n >= 1) || math.IsInf(n, 0) {
			return nil, fmt.Errorf("%w: axis %d extent %v voxel %v", ErrZeroResolution, a, e, voxelSize)
		}
		g.res[a] = int(n)
	}
	return g, nil
}

// Resolution returns the cell count per axis.
func (g *Grid) Resolution() [3]int { return g.res }

// TotalCells returns Rx*Ry*Rz.
func (g *Grid) TotalCells() int { return g.res[0] * g.res[1] * g.res[2] }

// VoxelSize returns the cell edge length.
func (g *Grid) VoxelSize() float64 { return g.voxelSize }

// Center returns the grid center.
func (g *Grid) Center() r3.Vec { return g.center }

// Extent returns the half-size of the grid.
func (g *Grid) Extent() r3.Vec { return g.extent }

// Min returns the lower corner.
func (g *Grid) Min() r3.Vec { return g.min }

// Max returns the upper corner.
func (g *Grid) Max() r3.Vec { return r3.Add(g.center, g.extent) }

// cellSpan returns how many cells either side of a cell a radius reaches.
// It is at least 1 and never more than the largest resolution, which already
// covers the whole grid.
func (g *Grid) cellSpan(radius float64) int {
	limit := max(g.res[0], g.res[1], g.res[2])
	s := math.Ceil(radius * g.invVoxel)
	if !(s < float64(limit)) {
		return limit
	}
	return max(1, int(s))
}

// Contains reports whether p lies inside the grid box.
func (g *Grid) Contains(p r3.Vec) bool {
	mx := g.Max()
	return p.X >= g.min.X && p.X <= mx.X &&
		p.Y >= g.min.Y && p.Y <= mx.Y &&
		p.Z >= g.min.Z && p.Z <= mx.Z
}

// CellCoord returns the clamped voxel coordinate of p.
func (g *Grid) CellCoord(p r3.Vec) CellCoord {
	return CellCoord{
		X: g.axis(p.X-g.min.X, 0),
		Y: g.axis(p.Y-g.min.Y, 1),
		Z: g.axis(p.Z-g.min.Z, 2),
	}
}

func (g *Grid) axis(d float64, a int) int {
	f := math.Floor(d * g.invVoxel)
	if !(f > 0) { // also catches NaN
		return 0
	}
	if f >= float64(g.res[a]-1) {
		return g.res[a] - 1
	}
	return int(f)
}

// CellIndex returns the flat cell index of p, always in [0, TotalCells).
func (g *Grid) CellIndex(p r3.Vec) int {
	return g.Index(g.CellCoord(p))
}

// Index flattens a coordinate: x + y*Rx + z*Rx*Ry.
func (g *Grid) Index(c CellCoord) int {
	return c.X + c.Y*g.res[0] + c.Z*g.res[0]*g.res[1]
}

// Coord is the inverse of Index.
func (g *Grid) Coord(i int) CellCoord {
	plane := g.res[0] * g.res[1]
	z := i / plane
	rem := i - z*plane
	y := rem / g.res[0]
	return CellCoord{X: rem - y*g.res[0], Y: y, Z: z}
}

// InRange reports whether c addresses a cell of this grid.
func (g *Grid) InRange(c CellCoord) bool {
	return c.X >= 0 && c.X < g.res[0] &&
		c.Y >= 0 && c.Y < g.res[1] &&
		c.Z >= 0 && c.Z < g.res[2]
}

// CellCenter returns the world-space center of a cell.
func (g *Grid) CellCenter(c CellCoord) r3.Vec {
	return r3.Vec{
		X: g.min.X + (float64(c.X)+0.5)*g.voxelSize,
		Y: g.min.Y + (float64(c.Y)+0.5)*g.voxelSize,
		Z: g.min.Z + (float64(c.Z)+0.5)*g.voxelSize,
	}
}
