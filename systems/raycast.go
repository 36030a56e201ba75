package systems

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// NumViewDirections is the size of the avoidance direction table.
const NumViewDirections = 300

// ViewDirections holds unit directions spiralling out from +Z in local
// space, evenly spread over the sphere by the golden angle. Index 0 is
// straight ahead.
var ViewDirections = goldenSpiral(NumViewDirections)

func goldenSpiral(n int) []r3.Vec {
	goldenRatio := (1 + math.Sqrt(5)) / 2
	angleIncrement := math.Pi * 2 * goldenRatio
	dirs := make([]r3.Vec, n)
	for i := range dirs {
		t := float64(i) / float64(n)
		inclination := math.Acos(1 - 2*t)
		azimuth := angleIncrement * float64(i)
		dirs[i] = r3.Vec{
			X: math.Sin(inclination) * math.Cos(azimuth),
			Y: math.Sin(inclination) * math.Sin(azimuth),
			Z: math.Cos(inclination),
		}
	}
	return dirs
}

// Frame is an orthonormal basis with Forward as local +Z.
type Frame struct {
	Right, Up, Forward r3.Vec
}

// NewFrame builds a frame around a unit forward vector.
func NewFrame(forward r3.Vec) Frame {
	ref := r3.Vec{Y: 1}
	if math.Abs(r3.Dot(forward, ref)) > 0.99 {
		ref = r3.Vec{X: 1}
	}
	right := r3.Unit(r3.Cross(ref, forward))
	return Frame{Right: right, Up: r3.Cross(forward, right), Forward: forward}
}

// ToWorld rotates a local direction into world space.
func (f Frame) ToWorld(local r3.Vec) r3.Vec {
	return r3.Add(r3.Add(r3.Scale(local.X, f.Right), r3.Scale(local.Y, f.Up)), r3.Scale(local.Z, f.Forward))
}

// SweepSphere reports whether a sphere of the given radius moving from
// origin along unit dir for maxDist touches any probe whose layer matches
// mask. Probes are treated as points.
func (ix *ObstacleIndex) SweepSphere(origin, dir r3.Vec, radius, maxDist float64, mask uint32) bool {
	if ix == nil || len(ix.probes) == 0 || mask == 0 || !(maxDist > 0) {
		return false
	}
	r2 := radius * radius
	hit := false
	check := func(cell int) bool {
		for n := ix.cells[cell].Top; n != NoNode; n = ix.nodes[n].Next {
			if ix.layers[n]&mask == 0 {
				continue
			}
			if segmentDist2(origin, dir, maxDist, ix.probes[n]) <= r2 {
				hit = true
				return false
			}
		}
		return true
	}

	// March sample points one voxel apart; each sample covers the cells
	// within reach of half a step plus the sweep radius.
	step := ix.grid.voxelSize
	reach := radius + step/2
	n := math.Ceil(maxDist / step)
	if !(n <= float64(ix.grid.TotalCells())) {
		// Longer than a march through every cell: test each probe directly.
		for i, q := range ix.probes {
			if ix.layers[i]&mask != 0 && segmentDist2(origin, dir, maxDist, q) <= r2 {
				return true
			}
		}
		return false
	}
	steps := int(n)
	for s := 0; s <= steps && !hit; s++ {
		t := math.Min(float64(s)*step, maxDist)
		ix.visitCells(r3.Add(origin, r3.Scale(t, dir)), reach, check)
	}
	return hit
}

// segmentDist2 is the squared distance from q to the segment origin + t*dir, t in [0, length].
func segmentDist2(origin, dir r3.Vec, length float64, q r3.Vec) float64 {
	d := r3.Sub(q, origin)
	t := r3.Dot(d, dir)
	switch {
	case t < 0:
		t = 0
	case t > length:
		t = length
	}
	return r3.Norm2(r3.Sub(d, r3.Scale(t, dir)))
}

// ClearDirection returns the first spiral direction, rotated into the frame
// of forward, along which the sweep is unobstructed. It returns forward when
// every direction is blocked.
func (ix *ObstacleIndex) ClearDirection(origin, forward r3.Vec, radius, maxDist float64, mask uint32) r3.Vec {
	frame := NewFrame(forward)
	for _, local := range ViewDirections {
		dir := frame.ToWorld(local)
		if !ix.SweepSphere(origin, dir, radius, maxDist, mask) {
			return dir
		}
	}
	return forward
}
