package systems

import (
	"math"
	"math/rand"
	"testing"

	"gonum.org/v1/gonum/spatial/r3"
)

const tol = 1e-9

func vecNear(a, b r3.Vec, eps float64) bool {
	return math.Abs(a.X-b.X) <= eps && math.Abs(a.Y-b.Y) <= eps && math.Abs(a.Z-b.Z) <= eps
}

func randomRecords(n int, seed int64, spread float64) []AgentRecord {
	rng := rand.New(rand.NewSource(seed))
	recs := make([]AgentRecord, n)
	for i := range recs {
		recs[i].Position = r3.Vec{
			X: (rng.Float64()*2 - 1) * spread,
			Y: (rng.Float64()*2 - 1) * spread,
			Z: (rng.Float64()*2 - 1) * spread,
		}
		recs[i].Direction = r3.Unit(r3.Vec{X: rng.NormFloat64(), Y: rng.NormFloat64(), Z: rng.NormFloat64()})
	}
	return recs
}

var testParams = PerceptionParams{PerceptionRadius: 2.5, AvoidanceRadius: 1, ObstacleRadius: 1.5}

func TestPerceiveIsolatedAgent(t *testing.T) {
	recs := []AgentRecord{
		{Position: r3.Vec{}, Direction: r3.Vec{Z: 1}},
		{Position: r3.Vec{X: 10}, Direction: r3.Vec{X: 1}},
	}
	Perceive(recs, 0, nil, nil, testParams)
	r := recs[0]
	if r.Flockmates != 0 || r.Obstacles != 0 {
		t.Errorf("counts: got (%d, %d), want (0, 0)", r.Flockmates, r.Obstacles)
	}
	zero := r3.Vec{}
	if r.FlockHeading != zero || r.FlockCentre != zero || r.Avoidance != zero || r.ObstacleAvoidance != zero {
		t.Errorf("expected zero sums, got %+v", r)
	}
}

func TestPerceivePair(t *testing.T) {
	recs := []AgentRecord{
		{Position: r3.Vec{}, Direction: r3.Vec{Z: 1}},
		{Position: r3.Vec{X: 0.5}, Direction: r3.Vec{Y: 1}},
	}
	Perceive(recs, 0, nil, nil, testParams)
	r := recs[0]
	if r.Flockmates != 1 {
		t.Fatalf("flockmates: got %d, want 1", r.Flockmates)
	}
	if !vecNear(r.FlockHeading, r3.Vec{Y: 1}, tol) {
		t.Errorf("heading: got %v", r.FlockHeading)
	}
	if !vecNear(r.FlockCentre, r3.Vec{X: 0.5}, tol) {
		t.Errorf("centre: got %v", r.FlockCentre)
	}
	// Away from the neighbour, weighted by 1/d: (-0.5)/0.25 = -2.
	if !vecNear(r.Avoidance, r3.Vec{X: -2}, tol) {
		t.Errorf("avoidance: got %v, want (-2, 0, 0)", r.Avoidance)
	}
}

func TestPerceiveCoincidentAgents(t *testing.T) {
	recs := []AgentRecord{
		{Position: r3.Vec{X: 1}, Direction: r3.Vec{Z: 1}},
		{Position: r3.Vec{X: 1}, Direction: r3.Vec{Z: 1}},
	}
	Perceive(recs, 0, nil, nil, testParams)
	if recs[0].Flockmates != 1 {
		t.Errorf("flockmates: got %d, want 1", recs[0].Flockmates)
	}
	if hasNaN(recs[0].Avoidance) || recs[0].Avoidance != (r3.Vec{}) {
		t.Errorf("avoidance: got %v, want zero", recs[0].Avoidance)
	}
}

func TestPerceiveObstacles(t *testing.T) {
	g, _ := NewGrid(r3.Vec{}, r3.Vec{X: 4, Y: 4, Z: 4}, 1)
	ix, err := BuildObstacleIndex(g, []r3.Vec{{X: 1}, {X: 3}}, IndexOptions{ExpectedCount: 2})
	if err != nil {
		t.Fatal(err)
	}
	recs := []AgentRecord{{Direction: r3.Vec{Z: 1}}}
	Perceive(recs, 0, ix, nil, testParams)
	if recs[0].Obstacles != 1 {
		t.Fatalf("obstacles: got %d, want 1", recs[0].Obstacles)
	}
	// Unit away-vector (-1, 0, 0) weighted by 1/d^2 with d = 1.
	if !vecNear(recs[0].ObstacleAvoidance, r3.Vec{X: -1}, tol) {
		t.Errorf("obstacle avoidance: got %v", recs[0].ObstacleAvoidance)
	}

	recs[0].Position = r3.Vec{X: 2.5}
	Perceive(recs, 0, ix, nil, testParams)
	if recs[0].Obstacles != 2 {
		t.Fatalf("obstacles: got %d, want 2", recs[0].Obstacles)
	}
	// (1/2.25) from the probe behind, -(1/0.25) from the probe ahead.
	want := r3.Vec{X: 1/2.25 - 1/0.25}
	if !vecNear(recs[0].ObstacleAvoidance, want, tol) {
		t.Errorf("obstacle avoidance: got %v, want %v", recs[0].ObstacleAvoidance, want)
	}
}

func TestPerceiveBucketsMatchBruteForce(t *testing.T) {
	brute := randomRecords(600, 1, 8)
	bucketed := append([]AgentRecord(nil), brute...)

	var b AgentBuckets
	if !b.Rebuild(bucketed, testParams.PerceptionRadius) {
		t.Fatal("rebuild failed")
	}
	PerceiveRange(brute, 0, len(brute), nil, nil, testParams)
	PerceiveRange(bucketed, 0, len(bucketed), nil, &b, testParams)

	for i := range brute {
		a, c := brute[i], bucketed[i]
		if a.Flockmates != c.Flockmates {
			t.Fatalf("agent %d flockmates: brute %d, buckets %d", i, a.Flockmates, c.Flockmates)
		}
		if !vecNear(a.FlockHeading, c.FlockHeading, 1e-9) ||
			!vecNear(a.FlockCentre, c.FlockCentre, 1e-9) ||
			!vecNear(a.Avoidance, c.Avoidance, 1e-6) {
			t.Fatalf("agent %d sums differ:\nbrute   %+v\nbuckets %+v", i, a, c)
		}
	}
}

func TestAgentBucketsRejectsNonFinite(t *testing.T) {
	recs := randomRecords(4, 2, 1)
	recs[2].Position.Y = math.Inf(1)
	var b AgentBuckets
	if b.Rebuild(recs, 1) {
		t.Error("expected rebuild to fail on non-finite position")
	}
	if b.Valid() {
		t.Error("buckets should be invalid")
	}
}

func BenchmarkPerceive(b *testing.B) {
	recs := randomRecords(2000, 3, 10)
	var buckets AgentBuckets
	b.Run("brute", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			PerceiveRange(recs, 0, len(recs), nil, nil, testParams)
		}
	})
	b.Run("buckets", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			buckets.Rebuild(recs, testParams.PerceptionRadius)
			PerceiveRange(recs, 0, len(recs), nil, &buckets, testParams)
		}
	})
}
