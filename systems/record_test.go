package systems

import (
	"testing"

	"gonum.org/v1/gonum/spatial/r3"
)

func TestEncodeRecordsLayout(t *testing.T) {
	recs := []AgentRecord{
		{
			Position:          r3.Vec{X: 1, Y: 2, Z: 3},
			Direction:         r3.Vec{Z: 1},
			FlockHeading:      r3.Vec{X: -0.5},
			FlockCentre:       r3.Vec{Y: 4},
			Avoidance:         r3.Vec{Z: 0.25},
			ObstacleAvoidance: r3.Vec{X: 8},
			Flockmates:        7,
			Obstacles:         -1,
		},
		{Position: r3.Vec{X: 9}},
	}
	buf := EncodeRecords(recs)
	if len(buf) != 2*AgentRecordStride {
		t.Fatalf("encoded length: got %d, want %d", len(buf), 2*AgentRecordStride)
	}
	// Flockmates sits right after the six vectors.
	if buf[72] != 7 || buf[73] != 0 {
		t.Errorf("flockmates bytes: got %v", buf[72:76])
	}

	back, err := DecodeRecords(buf)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	for i := range recs {
		if back[i] != recs[i] {
			t.Errorf("record %d: got %+v, want %+v", i, back[i], recs[i])
		}
	}

	if _, err := DecodeRecords(buf[:79]); err == nil {
		t.Error("expected error for truncated buffer")
	}
}

func TestPackFloat32Outputs(t *testing.T) {
	recs := []AgentRecord{{Position: r3.Vec{X: 1}, FlockHeading: r3.Vec{Y: 2}, Flockmates: 3, Obstacles: 4}}
	lanes := PackFloat32(nil, recs)
	if len(lanes) != AgentRecordStride/4 {
		t.Fatalf("lanes: got %d", len(lanes))
	}

	out := []AgentRecord{{Position: r3.Vec{X: 5}}}
	UnpackOutputs(out, lanes)
	if out[0].Position.X != 5 {
		t.Error("unpack must not touch inputs")
	}
	if out[0].FlockHeading.Y != 2 || out[0].Flockmates != 3 || out[0].Obstacles != 4 {
		t.Errorf("unpacked outputs: got %+v", out[0])
	}
}
