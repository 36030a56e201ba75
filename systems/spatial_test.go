package systems

import (
	"testing"

	"gonum.org/v1/gonum/spatial/r3"
)

func bucketRecords(ps []r3.Vec) []AgentRecord {
	recs := make([]AgentRecord, len(ps))
	for i, p := range ps {
		recs[i].Position = p
	}
	return recs
}

func checkBuckets(t *testing.T, b *AgentBuckets, n int) {
	t.Helper()
	seen := make([]int, n)
	cells := b.res[0] * b.res[1] * b.res[2]
	for c := 0; c < cells; c++ {
		for _, j := range b.order[b.start[c]:b.start[c+1]] {
			seen[j]++
			if b.cellOf[j] != int32(c) {
				t.Errorf("record %d binned in %d, listed under %d", j, b.cellOf[j], c)
			}
		}
	}
	for j, k := range seen {
		if k != 1 {
			t.Errorf("record %d listed %d times, want 1", j, k)
		}
	}
}

func TestAgentBucketsRebuildReuses(t *testing.T) {
	wide := bucketRecords(randomProbes(200, 3, 6))
	narrow := bucketRecords(randomProbes(50, 4, 1))

	var b AgentBuckets
	if !b.Rebuild(wide, 0.5) {
		t.Fatal("Rebuild failed")
	}
	checkBuckets(t, &b, len(wide))

	// Shrinking must not leave stale cursors from the larger layout.
	if !b.Rebuild(narrow, 0.5) {
		t.Fatal("Rebuild failed")
	}
	checkBuckets(t, &b, len(narrow))

	if !b.Rebuild(wide, 0.5) {
		t.Fatal("Rebuild failed")
	}
	checkBuckets(t, &b, len(wide))

	allocs := testing.AllocsPerRun(20, func() {
		b.Rebuild(wide, 0.5)
	})
	if allocs != 0 {
		t.Errorf("steady-state Rebuild allocated %v times, want 0", allocs)
	}
}
