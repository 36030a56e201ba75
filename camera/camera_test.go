package camera

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/spatial/r3"
)

const tol = 1e-9

func vecNear(a, b r3.Vec, eps float64) bool {
	return r3.Norm(r3.Sub(a, b)) <= eps
}

func TestNew(t *testing.T) {
	cam := New(r3.Vec{X: 1, Y: 2, Z: 3}, 10)

	if cam.Target != (r3.Vec{X: 1, Y: 2, Z: 3}) {
		t.Errorf("expected target (1,2,3), got %v", cam.Target)
	}
	got := r3.Norm(r3.Sub(cam.Position(), cam.Target))
	if math.Abs(got-10) > tol {
		t.Errorf("expected distance 10, got %f", got)
	}
}

func TestBasisOrthonormal(t *testing.T) {
	cam := New(r3.Vec{}, 5)
	cam.Orbit(0.7, -0.3)

	f, r, u := cam.Forward(), cam.Right(), cam.Up()
	for name, v := range map[string]r3.Vec{"forward": f, "right": r, "up": u} {
		if math.Abs(r3.Norm(v)-1) > tol {
			t.Errorf("%s not unit: %f", name, r3.Norm(v))
		}
	}
	if math.Abs(r3.Dot(f, r)) > tol || math.Abs(r3.Dot(f, u)) > tol || math.Abs(r3.Dot(r, u)) > tol {
		t.Errorf("basis not orthogonal: f=%v r=%v u=%v", f, r, u)
	}
	if u.Y <= 0 {
		t.Errorf("up should point above the horizon, got %v", u)
	}
}

func TestForwardLooksAtTarget(t *testing.T) {
	cam := New(r3.Vec{X: 4}, 8)
	toTarget := r3.Unit(r3.Sub(cam.Target, cam.Position()))
	if !vecNear(toTarget, cam.Forward(), 1e-9) {
		t.Errorf("forward %v should point at target %v", cam.Forward(), toTarget)
	}
}

func TestOrbitClampsPitch(t *testing.T) {
	cam := New(r3.Vec{}, 5)

	cam.Orbit(0, 10)
	if math.Abs(cam.Pitch-maxPitch) > tol {
		t.Errorf("expected pitch clamped to %f, got %f", maxPitch, cam.Pitch)
	}
	cam.Orbit(0, -20)
	if math.Abs(cam.Pitch+maxPitch) > tol {
		t.Errorf("expected pitch clamped to %f, got %f", -maxPitch, cam.Pitch)
	}
}

func TestOrbitKeepsDistance(t *testing.T) {
	cam := New(r3.Vec{Y: 1}, 6)
	for i := 0; i < 50; i++ {
		cam.Orbit(0.3, 0.05)
		d := r3.Norm(r3.Sub(cam.Position(), cam.Target))
		if math.Abs(d-6) > 1e-9 {
			t.Fatalf("orbit step %d changed distance to %f", i, d)
		}
	}
}

func TestPanMovesTargetInViewPlane(t *testing.T) {
	cam := New(r3.Vec{}, 10)
	before := cam.Target
	cam.Pan(0.1, 0)

	moved := r3.Sub(cam.Target, before)
	if math.Abs(r3.Norm(moved)-1) > tol {
		t.Errorf("expected pan of 1 unit, got %f", r3.Norm(moved))
	}
	if math.Abs(r3.Dot(moved, cam.Forward())) > tol {
		t.Errorf("pan should not move along the view axis, got %v", moved)
	}
}

func TestZoomClamp(t *testing.T) {
	cam := New(r3.Vec{}, 10)

	cam.ZoomBy(1000)
	if math.Abs(cam.Distance-cam.MinDistance) > tol {
		t.Errorf("expected distance clamped to %f, got %f", cam.MinDistance, cam.Distance)
	}
	cam.ZoomBy(0.0001)
	if math.Abs(cam.Distance-cam.MaxDistance) > tol {
		t.Errorf("expected distance clamped to %f, got %f", cam.MaxDistance, cam.Distance)
	}
	d := cam.Distance
	cam.ZoomBy(0)
	if cam.Distance != d {
		t.Errorf("zero factor should be ignored")
	}
}

func TestFrameFitsBounds(t *testing.T) {
	cam := New(r3.Vec{}, 1)
	min, max := r3.Vec{X: -10, Y: -10, Z: -10}, r3.Vec{X: 10, Y: 10, Z: 10}
	cam.Frame(min, max)

	if !vecNear(cam.Target, r3.Vec{}, tol) {
		t.Errorf("expected target at box centre, got %v", cam.Target)
	}
	radius := math.Sqrt(300)
	for _, corner := range []r3.Vec{min, max, {X: -10, Y: 10, Z: -10}, {X: 10, Y: -10, Z: 10}} {
		if !cam.IsVisible(corner, 0, 1) {
			t.Errorf("corner %v should be visible after framing", corner)
		}
	}
	if cam.Distance < radius {
		t.Errorf("camera inside bounding sphere: distance %f radius %f", cam.Distance, radius)
	}
}

func TestIsVisible(t *testing.T) {
	cam := New(r3.Vec{}, 10)

	if !cam.IsVisible(cam.Target, 0.1, 16.0/9) {
		t.Error("target should be visible")
	}
	behind := r3.Add(cam.Position(), r3.Scale(5, cam.Offset()))
	if cam.IsVisible(behind, 0.1, 16.0/9) {
		t.Error("point behind the camera should not be visible")
	}
	far := r3.Add(cam.Target, r3.Scale(100, cam.Right()))
	if cam.IsVisible(far, 0.1, 16.0/9) {
		t.Error("point far to the side should not be visible")
	}
	if !cam.IsVisible(far, 200, 16.0/9) {
		t.Error("large sphere overlapping the view should be visible")
	}
}

func TestReset(t *testing.T) {
	cam := New(r3.Vec{X: 1}, 10)
	yaw, pitch := cam.Yaw, cam.Pitch
	cam.Orbit(1, 0.4)
	cam.Pan(0.5, 0.5)

	cam.Reset()

	if !vecNear(cam.Target, r3.Vec{X: 1}, tol) {
		t.Errorf("expected target (1,0,0), got %v", cam.Target)
	}
	if math.Abs(cam.Yaw-yaw) > tol || math.Abs(cam.Pitch-pitch) > tol {
		t.Errorf("expected angles (%f,%f), got (%f,%f)", yaw, pitch, cam.Yaw, cam.Pitch)
	}
}

func TestScreenRayCentre(t *testing.T) {
	cam := New(r3.Vec{X: 1, Y: 2}, 10)
	origin, dir := cam.ScreenRay(400, 300, 800, 600)

	if !vecNear(origin, cam.Position(), tol) {
		t.Errorf("ray should start at the camera, got %v", origin)
	}
	if !vecNear(dir, cam.Forward(), 1e-9) {
		t.Errorf("centre ray %v should match forward %v", dir, cam.Forward())
	}
}

func TestScreenRayEdges(t *testing.T) {
	cam := New(r3.Vec{}, 10)
	_, top := cam.ScreenRay(400, 0, 800, 600)
	_, right := cam.ScreenRay(800, 300, 800, 600)

	half := cam.FovY * math.Pi / 360
	if got := math.Acos(r3.Dot(top, cam.Forward())); math.Abs(got-half) > 1e-9 {
		t.Errorf("top edge angle %f, want %f", got, half)
	}
	if r3.Dot(top, cam.Up()) <= 0 {
		t.Error("top edge ray should tilt up")
	}
	if r3.Dot(right, cam.Right()) <= 0 {
		t.Error("right edge ray should tilt right")
	}
}

func TestPick(t *testing.T) {
	points := []r3.Vec{
		{X: 0.05, Z: 5},  // near the ray, far
		{X: -0.05, Z: 2}, // near the ray, closer
		{X: 3, Z: 1},     // off the ray
		{Z: -2},          // behind the origin
	}
	if got := Pick(r3.Vec{}, r3.Vec{Z: 1}, points, 0.1); got != 1 {
		t.Errorf("expected closest hit 1, got %d", got)
	}
	if got := Pick(r3.Vec{}, r3.Vec{X: 1}, points, 0.1); got != -1 {
		t.Errorf("expected no hit, got %d", got)
	}
}
