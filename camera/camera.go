// Package camera provides an orbit camera for viewing the flock volume.
package camera

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// maxPitch keeps the camera off the poles where the up vector degenerates.
const maxPitch = 89 * math.Pi / 180

// Camera orbits a target point at a given distance.
// Yaw rotates around +Y, pitch tilts towards +Y.
type Camera struct {
	// Target is the point the camera looks at
	Target r3.Vec

	// Yaw and Pitch in radians
	Yaw, Pitch float64

	// Distance from target
	Distance float64

	// FovY is the vertical field of view in degrees
	FovY float64

	// Distance constraints
	MinDistance, MaxDistance float64

	home r3.Vec
}

// New creates a camera looking at target from distance, slightly above the
// horizon.
func New(target r3.Vec, distance float64) *Camera {
	c := &Camera{
		Target:      target,
		FovY:        45,
		MinDistance: distance * 0.05,
		MaxDistance: distance * 8,
		home:        target,
	}
	c.reset(distance)
	return c
}

func (c *Camera) reset(distance float64) {
	c.Target = c.home
	c.Yaw = math.Pi / 4
	c.Pitch = math.Pi / 8
	c.Distance = clamp(distance, c.MinDistance, c.MaxDistance)
}

// Offset returns the unit vector from the target to the camera.
func (c *Camera) Offset() r3.Vec {
	cp := math.Cos(c.Pitch)
	return r3.Vec{
		X: cp * math.Sin(c.Yaw),
		Y: math.Sin(c.Pitch),
		Z: cp * math.Cos(c.Yaw),
	}
}

// Position returns the camera's world position.
func (c *Camera) Position() r3.Vec {
	return r3.Add(c.Target, r3.Scale(c.Distance, c.Offset()))
}

// Forward returns the unit view direction.
func (c *Camera) Forward() r3.Vec {
	return r3.Scale(-1, c.Offset())
}

// Right returns the unit screen-right direction.
func (c *Camera) Right() r3.Vec {
	return r3.Unit(r3.Cross(c.Forward(), r3.Vec{Y: 1}))
}

// Up returns the unit screen-up direction.
func (c *Camera) Up() r3.Vec {
	return r3.Cross(c.Right(), c.Forward())
}

// Orbit rotates the camera around the target. Pitch is clamped short of
// the poles.
func (c *Camera) Orbit(dYaw, dPitch float64) {
	c.Yaw = math.Mod(c.Yaw+dYaw, 2*math.Pi)
	c.Pitch = clamp(c.Pitch+dPitch, -maxPitch, maxPitch)
}

// Pan moves the target in the view plane. dx and dy are fractions of the
// current distance.
func (c *Camera) Pan(dx, dy float64) {
	d := r3.Add(r3.Scale(dx*c.Distance, c.Right()), r3.Scale(dy*c.Distance, c.Up()))
	c.Target = r3.Add(c.Target, d)
}

// SetDistance sets the orbit distance, clamped to min/max.
func (c *Camera) SetDistance(d float64) {
	c.Distance = clamp(d, c.MinDistance, c.MaxDistance)
}

// ZoomBy divides the distance by factor; factor > 1 moves closer.
func (c *Camera) ZoomBy(factor float64) {
	if factor <= 0 {
		return
	}
	c.SetDistance(c.Distance / factor)
}

// Follow moves the target to p, keeping the orbit angles.
func (c *Camera) Follow(p r3.Vec) {
	c.Target = p
}

// Frame centres the camera on the box [min, max] and backs off until the
// bounding sphere fits the vertical field of view.
func (c *Camera) Frame(min, max r3.Vec) {
	c.home = r3.Scale(0.5, r3.Add(min, max))
	radius := r3.Norm(r3.Sub(max, min)) / 2
	half := c.FovY * math.Pi / 360
	d := radius / math.Sin(half)
	c.MinDistance = d * 0.05
	c.MaxDistance = d * 8
	c.reset(d)
}

// Reset returns the camera to its home target and default angles.
func (c *Camera) Reset() {
	c.reset(c.Distance)
}

// IsVisible returns true if a sphere at p could be inside the view cone
// (conservative check for culling). aspect is viewport width over height.
func (c *Camera) IsVisible(p r3.Vec, radius, aspect float64) bool {
	rel := r3.Sub(p, c.Position())
	depth := r3.Dot(rel, c.Forward())
	if depth < -radius {
		return false
	}
	tanY := math.Tan(c.FovY * math.Pi / 360)
	tanX := tanY * math.Max(aspect, 1)
	lateral := math.Abs(r3.Dot(rel, c.Right()))
	vertical := math.Abs(r3.Dot(rel, c.Up()))
	slack := radius * math.Sqrt(1+tanX*tanX)
	return lateral <= depth*tanX+slack && vertical <= depth*tanY+slack
}

// clamp restricts a value to a range.
func clamp(x, min, max float64) float64 {
	if x < min {
		return min
	}
	if x > max {
		return max
	}
	return x
}

// ScreenRay returns the world-space ray through screen pixel (sx, sy) of a
// width x height viewport. dir is unit length.
func (c *Camera) ScreenRay(sx, sy, width, height float64) (origin, dir r3.Vec) {
	tanY := math.Tan(c.FovY * math.Pi / 360)
	aspect := width / height
	nx := (2*sx/width - 1) * tanY * aspect
	ny := (1 - 2*sy/height) * tanY
	dir = r3.Add(c.Forward(), r3.Add(r3.Scale(nx, c.Right()), r3.Scale(ny, c.Up())))
	return c.Position(), r3.Unit(dir)
}

// Pick returns the index of the point nearest the ray origin among those
// within radius of the ray, or -1.
func Pick(origin, dir r3.Vec, points []r3.Vec, radius float64) int {
	best, bestT := -1, math.Inf(1)
	r2 := radius * radius
	for i, p := range points {
		rel := r3.Sub(p, origin)
		t := r3.Dot(rel, dir)
		if t < 0 {
			continue
		}
		if r3.Norm2(r3.Sub(rel, r3.Scale(t, dir))) > r2 {
			continue
		}
		if t < bestT {
			best, bestT = i, t
		}
	}
	return best
}
