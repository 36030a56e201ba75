package compute

import (
	"math"
	"strings"
	"testing"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/flock/systems"
)

func TestFlattenNilIndex(t *testing.T) {
	d := flattenIndex(nil)
	if d.probeCount != 0 {
		t.Errorf("probeCount = %d, want 0", d.probeCount)
	}
	if len(d.probes) == 0 || len(d.cells) == 0 || len(d.nodes) == 0 {
		t.Error("device buffers must never be empty")
	}
	if d.cells[1] != systems.NoNode {
		t.Errorf("empty cell top = %d, want NoNode", d.cells[1])
	}
}

func TestFlattenIndexMatchesChains(t *testing.T) {
	g, err := systems.NewGrid(r3.Vec{}, r3.Vec{X: 2, Y: 2, Z: 2}, 1)
	if err != nil {
		t.Fatal(err)
	}
	probes := []r3.Vec{{X: 0.5, Y: 0.5, Z: 0.5}, {X: 0.6, Y: 0.4, Z: 0.5}, {X: -1.5, Y: 1.5, Z: -0.5}}
	ix, err := systems.BuildObstacleIndex(g, probes, systems.IndexOptions{ExpectedCount: -1})
	if err != nil {
		t.Fatal(err)
	}

	d := flattenIndex(ix)
	if d.probeCount != 3 {
		t.Fatalf("probeCount = %d, want 3", d.probeCount)
	}
	if d.res != [3]int32{4, 4, 4} {
		t.Errorf("res = %v, want [4 4 4]", d.res)
	}
	if d.min != [3]float32{-2, -2, -2} || d.invVoxel != 1 {
		t.Errorf("min = %v inv = %v", d.min, d.invVoxel)
	}

	// Walk every chain in device layout and count each probe once.
	seen := make([]int, len(probes))
	for c := 0; c < len(d.cells)/2; c++ {
		count := 0
		for n := d.cells[2*c+1]; n != systems.NoNode; n = d.nodes[2*n+1] {
			seen[n]++
			count++
			if int(d.nodes[2*n]) != c {
				t.Errorf("node %d records cell %d, found in %d", n, d.nodes[2*n], c)
			}
		}
		if int32(count) != d.cells[2*c] {
			t.Errorf("cell %d usage %d, chain length %d", c, d.cells[2*c], count)
		}
	}
	for i, s := range seen {
		if s != 1 {
			t.Errorf("probe %d reached %d times", i, s)
		}
		p := probes[i]
		got := [3]float32{d.probes[4*i], d.probes[4*i+1], d.probes[4*i+2]}
		if got != [3]float32{float32(p.X), float32(p.Y), float32(p.Z)} {
			t.Errorf("probe %d = %v, want %v", i, got, p)
		}
	}
}

func TestKernelParams(t *testing.T) {
	kp := newKernelParams(systems.PerceptionParams{PerceptionRadius: 2, AvoidanceRadius: 1e30, ObstacleRadius: 1.5})
	if kp.view2 != 4 || kp.obstacleRadius != 1.5 {
		t.Errorf("params = %+v", kp)
	}
	if kp.avoid2 != math.MaxFloat32 {
		t.Errorf("avoid2 = %v, want clamped to MaxFloat32", kp.avoid2)
	}
}

func TestKernelSourceLayout(t *testing.T) {
	if recordLanes != 20 {
		t.Fatalf("recordLanes = %d, want 20", recordLanes)
	}
	for _, want := range []string{"__kernel void perceive", "#define LANES 20", "as_float(mates)"} {
		if !strings.Contains(perceiveKernelSource, want) {
			t.Errorf("kernel source missing %q", want)
		}
	}
}
