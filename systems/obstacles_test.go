package systems

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"testing"

	"gonum.org/v1/gonum/spatial/r3"
)

func testGrid(t testing.TB) *Grid {
	t.Helper()
	g, err := NewGrid(r3.Vec{}, r3.Vec{X: 4, Y: 4, Z: 4}, 1)
	if err != nil {
		t.Fatalf("NewGrid: %v", err)
	}
	return g
}

func randomProbes(n int, seed int64, spread float64) []r3.Vec {
	rng := rand.New(rand.NewSource(seed))
	out := make([]r3.Vec, n)
	for i := range out {
		out[i] = r3.Vec{
			X: (rng.Float64()*2 - 1) * spread,
			Y: (rng.Float64()*2 - 1) * spread,
			Z: (rng.Float64()*2 - 1) * spread,
		}
	}
	return out
}

func checkChains(t *testing.T, ix *ObstacleIndex) {
	t.Helper()
	seen := make([]int, ix.ProbeCount())
	var total int32
	for cell := range ix.Cells() {
		n := int32(0)
		for p := range ix.CellProbes(cell) {
			seen[p]++
			n++
			if got := ix.Node(p).Cell; got != int32(cell) {
				t.Errorf("probe %d: node cell %d, chain cell %d", p, got, cell)
			}
			if got := ix.Grid().CellIndex(ix.Probe(p)); got != cell {
				t.Errorf("probe %d hashed to %d, found in %d", p, got, cell)
			}
		}
		if n != ix.Usage(cell) {
			t.Errorf("cell %d: chain length %d, usage %d", cell, n, ix.Usage(cell))
		}
		if ix.Usage(cell) == 0 && ix.Top(cell) != NoNode {
			t.Errorf("empty cell %d has top %d", cell, ix.Top(cell))
		}
		total += ix.Usage(cell)
	}
	if int(total) != ix.ProbeCount() {
		t.Errorf("usage sum: got %d, want %d", total, ix.ProbeCount())
	}
	for p, n := range seen {
		if n != 1 {
			t.Errorf("probe %d reached %d times, want 1", p, n)
		}
	}
}

func TestBuildObstacleIndexChains(t *testing.T) {
	// Spread past the bounds so clamping is exercised.
	probes := randomProbes(2000, 1, 5)
	ix, err := BuildObstacleIndex(testGrid(t), probes, IndexOptions{ExpectedCount: len(probes)})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	checkChains(t, ix)
}

func TestBuildObstacleIndexParallel(t *testing.T) {
	probes := randomProbes(5000, 2, 4)
	g := testGrid(t)

	seq, err := BuildObstacleIndex(g, probes, IndexOptions{ExpectedCount: -1})
	if err != nil {
		t.Fatalf("sequential build: %v", err)
	}
	par, err := BuildObstacleIndex(g, probes, IndexOptions{ExpectedCount: -1, Workers: 8})
	if err != nil {
		t.Fatalf("parallel build: %v", err)
	}
	checkChains(t, par)

	a, b := seq.UsageCounts(), par.UsageCounts()
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("cell %d usage: sequential %d, parallel %d", i, a[i], b[i])
		}
	}
}

func TestBuildObstacleIndexTwiceSameUsage(t *testing.T) {
	probes := randomProbes(500, 3, 3)
	g := testGrid(t)
	first, _ := BuildObstacleIndex(g, probes, IndexOptions{ExpectedCount: -1})
	second, _ := BuildObstacleIndex(g, probes, IndexOptions{ExpectedCount: -1})
	a, b := first.UsageCounts(), second.UsageCounts()
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("cell %d usage differs: %d vs %d", i, a[i], b[i])
		}
	}
}

func TestBuildObstacleIndexErrors(t *testing.T) {
	g := testGrid(t)
	probes := randomProbes(10, 4, 1)

	if _, err := BuildObstacleIndex(g, probes, IndexOptions{ExpectedCount: 11}); !errors.Is(err, ErrProbeCountMismatch) {
		t.Errorf("count mismatch: got %v", err)
	}
	if _, err := BuildObstacleIndex(g, probes, IndexOptions{ExpectedCount: -1, Layers: []uint32{1}}); !errors.Is(err, ErrLayerCountMismatch) {
		t.Errorf("layer mismatch: got %v", err)
	}
	bad := append([]r3.Vec{{X: math.NaN()}}, probes...)
	if _, err := BuildObstacleIndex(g, bad, IndexOptions{ExpectedCount: -1}); !errors.Is(err, ErrNonFiniteProbe) {
		t.Errorf("nan probe: got %v", err)
	}
	if _, err := BuildObstacleIndex(nil, probes, IndexOptions{ExpectedCount: -1}); !errors.Is(err, ErrNilGrid) {
		t.Errorf("nil grid: got %v", err)
	}
}

func TestProbesNearEmpty(t *testing.T) {
	ix, err := BuildObstacleIndex(testGrid(t), nil, IndexOptions{ExpectedCount: 0})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	for _, p := range []r3.Vec{{}, {X: 3.5, Y: -3.5}, {X: 100}} {
		for range ix.ProbesNear(p, 10) {
			t.Fatalf("query at %v yielded a probe from an empty index", p)
		}
	}
	if ix.OccupiedCells() != 0 {
		t.Errorf("occupied cells: got %d, want 0", ix.OccupiedCells())
	}
}

func TestCellProbesEmptyCell(t *testing.T) {
	probes := []r3.Vec{{X: 0.5, Y: 0.5, Z: 0.5}}
	ix, _ := BuildObstacleIndex(testGrid(t), probes, IndexOptions{ExpectedCount: 1})
	empty := ix.Grid().CellIndex(r3.Vec{X: -3.5, Y: -3.5, Z: -3.5})
	for range ix.CellProbes(empty) {
		t.Fatal("empty cell yielded a probe")
	}
	for range ix.CellProbes(-1) {
		t.Fatal("out of range cell yielded a probe")
	}
}

func TestProbesNearMatchesBruteForce(t *testing.T) {
	probes := randomProbes(3000, 5, 4.5)
	ix, _ := BuildObstacleIndex(testGrid(t), probes, IndexOptions{ExpectedCount: -1})
	queries := randomProbes(50, 6, 5)

	for _, radius := range []float64{0.3, 1, 2.5} {
		for _, q := range queries {
			want := map[int]bool{}
			for i, p := range probes {
				if r3.Norm2(r3.Sub(p, q)) <= radius*radius {
					want[i] = true
				}
			}
			got := map[int]bool{}
			for i, p := range ix.ProbesNear(q, radius) {
				if got[i] {
					t.Fatalf("probe %d yielded twice", i)
				}
				if p != probes[i] {
					t.Fatalf("probe %d position mismatch", i)
				}
				got[i] = true
			}
			if len(got) != len(want) {
				t.Fatalf("radius %v at %v: got %d probes, want %d", radius, q, len(got), len(want))
			}
			for i := range want {
				if !got[i] {
					t.Fatalf("radius %v at %v: missing probe %d", radius, q, i)
				}
			}
		}
	}
}

func TestProbesNearHugeRadius(t *testing.T) {
	g, err := NewGrid(r3.Vec{}, r3.Vec{X: 8, Y: 8, Z: 8}, 1)
	if err != nil {
		t.Fatal(err)
	}
	ix, _ := BuildObstacleIndex(g, []r3.Vec{{X: -7}, {X: 7}}, IndexOptions{ExpectedCount: 2})
	for _, r := range []float64{100, 1e20, math.MaxFloat64, math.Inf(1)} {
		t.Run(fmt.Sprint(r), func(t *testing.T) {
			n := 0
			for range ix.ProbesNear(r3.Vec{}, r) {
				n++
			}
			if n != 2 {
				t.Errorf("found %d probes, want 2", n)
			}
		})
	}
}

func TestGridCellSpan(t *testing.T) {
	g := testGrid(t)
	tests := []struct {
		radius float64
		want   int
	}{
		{0, 1},
		{0.5, 1},
		{2.5, 3},
		{8, 8},
		{1e20, 8},
		{math.Inf(1), 8},
		{math.NaN(), 8},
	}
	for _, tt := range tests {
		if got := g.cellSpan(tt.radius); got != tt.want {
			t.Errorf("cellSpan(%v) = %d, want %d", tt.radius, got, tt.want)
		}
	}
}

func TestProbesNearRestartable(t *testing.T) {
	probes := randomProbes(200, 7, 1)
	ix, _ := BuildObstacleIndex(testGrid(t), probes, IndexOptions{ExpectedCount: -1})
	seq := ix.ProbesNear(r3.Vec{}, 1)

	count := func() int {
		n := 0
		for range seq {
			n++
		}
		return n
	}
	first := count()
	if first == 0 {
		t.Fatal("expected probes near origin")
	}
	if second := count(); second != first {
		t.Errorf("second pass: got %d, want %d", second, first)
	}

	// Early termination.
	n := 0
	for range seq {
		n++
		if n == 3 {
			break
		}
	}
	if n != 3 {
		t.Errorf("early break: got %d", n)
	}
}

func BenchmarkBuildObstacleIndex(b *testing.B) {
	probes := randomProbes(100000, 8, 4)
	g := testGrid(b)
	for _, workers := range []int{1, 8} {
		b.Run(fmt.Sprintf("workers=%d", workers), func(b *testing.B) {
			for i := 0; i < b.N; i++ {
				if _, err := BuildObstacleIndex(g, probes, IndexOptions{ExpectedCount: -1, Workers: workers}); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}
