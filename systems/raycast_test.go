package systems

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/spatial/r3"
)

func TestViewDirectionsUnit(t *testing.T) {
	if len(ViewDirections) != NumViewDirections {
		t.Fatalf("got %d directions, want %d", len(ViewDirections), NumViewDirections)
	}
	if !vecNear(ViewDirections[0], r3.Vec{Z: 1}, tol) {
		t.Errorf("first direction: got %v, want +Z", ViewDirections[0])
	}
	for i, d := range ViewDirections {
		if math.Abs(r3.Norm(d)-1) > 1e-12 {
			t.Fatalf("direction %d not unit: %v", i, d)
		}
	}
	// Spiral moves away from forward.
	if ViewDirections[10].Z >= ViewDirections[1].Z {
		t.Errorf("directions should diverge from forward: %v then %v", ViewDirections[1], ViewDirections[10])
	}
}

func TestFrameOrthonormal(t *testing.T) {
	for _, f := range []r3.Vec{{Z: 1}, {Y: 1}, {Y: -1}, r3.Unit(r3.Vec{X: 1, Y: 2, Z: -3})} {
		fr := NewFrame(f)
		if math.Abs(r3.Dot(fr.Right, fr.Up)) > tol || math.Abs(r3.Dot(fr.Right, fr.Forward)) > tol || math.Abs(r3.Dot(fr.Up, fr.Forward)) > tol {
			t.Errorf("frame for %v not orthogonal: %+v", f, fr)
		}
		if !vecNear(fr.ToWorld(r3.Vec{Z: 1}), f, tol) {
			t.Errorf("local +Z should map to forward %v", f)
		}
	}
}

func TestSweepSphere(t *testing.T) {
	g, _ := NewGrid(r3.Vec{}, r3.Vec{X: 8, Y: 8, Z: 8}, 0.5)
	ix, _ := BuildObstacleIndex(g, []r3.Vec{{Z: 3}}, IndexOptions{ExpectedCount: 1, Layers: []uint32{2}})

	tests := []struct {
		name   string
		origin r3.Vec
		dir    r3.Vec
		dist   float64
		mask   uint32
		want   bool
	}{
		{"straight hit", r3.Vec{}, r3.Vec{Z: 1}, 5, math.MaxUint32, true},
		{"too short", r3.Vec{}, r3.Vec{Z: 1}, 2.5, math.MaxUint32, false},
		{"grazing within radius", r3.Vec{X: 0.2}, r3.Vec{Z: 1}, 5, math.MaxUint32, true},
		{"passes beside", r3.Vec{X: 0.4}, r3.Vec{Z: 1}, 5, math.MaxUint32, false},
		{"pointing away", r3.Vec{}, r3.Vec{Z: -1}, 5, math.MaxUint32, false},
		{"masked out", r3.Vec{}, r3.Vec{Z: 1}, 5, 1, false},
		{"matching mask", r3.Vec{}, r3.Vec{Z: 1}, 5, 2, true},
		{"huge distance", r3.Vec{}, r3.Vec{Z: 1}, 1e300, math.MaxUint32, true},
		{"unbounded distance", r3.Vec{}, r3.Vec{Z: 1}, math.Inf(1), math.MaxUint32, true},
		{"unbounded distance away", r3.Vec{}, r3.Vec{Z: -1}, math.Inf(1), math.MaxUint32, false},
		{"unbounded distance masked", r3.Vec{}, r3.Vec{Z: 1}, math.Inf(1), 1, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ix.SweepSphere(tt.origin, tt.dir, 0.27, tt.dist, tt.mask); got != tt.want {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}

	var empty *ObstacleIndex
	if empty.SweepSphere(r3.Vec{}, r3.Vec{Z: 1}, 1, 10, math.MaxUint32) {
		t.Error("nil index should never hit")
	}
}

func TestClearDirectionAvoidsProbe(t *testing.T) {
	g, _ := NewGrid(r3.Vec{}, r3.Vec{X: 8, Y: 8, Z: 8}, 0.5)
	ix, _ := BuildObstacleIndex(g, []r3.Vec{{Z: 2}}, IndexOptions{ExpectedCount: 1})
	dir := ix.ClearDirection(r3.Vec{}, r3.Vec{Z: 1}, 0.27, 5, math.MaxUint32)
	if ix.SweepSphere(r3.Vec{}, dir, 0.27, 5, math.MaxUint32) {
		t.Errorf("returned direction %v is blocked", dir)
	}
	if dir.Z <= 0 {
		t.Errorf("expected a mostly forward escape, got %v", dir)
	}
}
