package probes

import (
	"errors"
	"fmt"
	"math"

	"github.com/ojrac/opensimplex-go"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/flock/config"
)

// maxLatticePoints bounds a single shape so a typo in spacing cannot
// exhaust memory.
const maxLatticePoints = 8_000_000

var ErrBadSpacing = errors.New("probe spacing must be positive")

// Generate samples one configured shape on a lattice of the given spacing.
func Generate(shape config.ShapeConfig, spacing float64) (Set, error) {
	if !(spacing > 0) {
		return Set{}, ErrBadSpacing
	}
	c := shape.Center.R3()
	switch shape.Kind {
	case "sphere":
		return Sphere(c, shape.Radius, spacing, shape.Layer)
	case "shell":
		return Shell(c, shape.Radius, spacing, shape.Layer)
	case "box":
		return Box(c, r3.Scale(0.5, shape.Size.R3()), spacing, shape.Layer)
	case "noise":
		return NoiseField(c, r3.Scale(0.5, shape.Size.R3()), spacing, shape.Scale, shape.Threshold, shape.Seed, shape.Layer)
	}
	return Set{}, fmt.Errorf("unknown shape kind %q", shape.Kind)
}

// lattice calls fn for every lattice point in the box center±half.
func lattice(center, half r3.Vec, spacing float64, fn func(p r3.Vec)) error {
	n := [3]int{
		int(math.Floor(2*half.X/spacing)) + 1,
		int(math.Floor(2*half.Y/spacing)) + 1,
		int(math.Floor(2*half.Z/spacing)) + 1,
	}
	if n[0] <= 0 || n[1] <= 0 || n[2] <= 0 {
		return nil
	}
	if float64(n[0])*float64(n[1])*float64(n[2]) > maxLatticePoints {
		return fmt.Errorf("lattice of %dx%dx%d points exceeds %d", n[0], n[1], n[2], maxLatticePoints)
	}
	// Centre the lattice inside the box.
	start := r3.Vec{
		X: center.X - float64(n[0]-1)*spacing/2,
		Y: center.Y - float64(n[1]-1)*spacing/2,
		Z: center.Z - float64(n[2]-1)*spacing/2,
	}
	for k := 0; k < n[2]; k++ {
		for j := 0; j < n[1]; j++ {
			for i := 0; i < n[0]; i++ {
				fn(r3.Vec{
					X: start.X + float64(i)*spacing,
					Y: start.Y + float64(j)*spacing,
					Z: start.Z + float64(k)*spacing,
				})
			}
		}
	}
	return nil
}

// Sphere fills a solid ball.
func Sphere(center r3.Vec, radius, spacing float64, layer uint32) (Set, error) {
	var s Set
	r2 := radius * radius
	half := r3.Vec{X: radius, Y: radius, Z: radius}
	err := lattice(center, half, spacing, func(p r3.Vec) {
		if r3.Norm2(r3.Sub(p, center)) <= r2 {
			s.Add(p, layer)
		}
	})
	return s, err
}

// Shell samples the surface of a ball to within half a spacing.
func Shell(center r3.Vec, radius, spacing float64, layer uint32) (Set, error) {
	var s Set
	band := spacing / 2
	half := r3.Vec{X: radius + band, Y: radius + band, Z: radius + band}
	err := lattice(center, half, spacing, func(p r3.Vec) {
		if math.Abs(r3.Norm(r3.Sub(p, center))-radius) <= band {
			s.Add(p, layer)
		}
	})
	return s, err
}

// Box fills an axis-aligned box with half-size half.
func Box(center, half r3.Vec, spacing float64, layer uint32) (Set, error) {
	var s Set
	err := lattice(center, half, spacing, func(p r3.Vec) {
		s.Add(p, layer)
	})
	return s, err
}

// NoiseField keeps the lattice points of a box where normalized simplex
// noise exceeds threshold, giving a cave-like field of blobs.
func NoiseField(center, half r3.Vec, spacing, scale, threshold float64, seed int64, layer uint32) (Set, error) {
	if scale <= 0 {
		scale = 1
	}
	noise := opensimplex.NewNormalized(seed)
	var s Set
	err := lattice(center, half, spacing, func(p r3.Vec) {
		if noise.Eval3(p.X/scale, p.Y/scale, p.Z/scale) > threshold {
			s.Add(p, layer)
		}
	})
	return s, err
}
