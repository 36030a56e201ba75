package telemetry

import (
	"os"
	"path/filepath"
	"testing"
)

func TestTrajectoryRecorder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "traj", "run.jsonl.zst")
	rec, err := NewTrajectoryRecorder(path)
	if err != nil {
		t.Fatalf("NewTrajectoryRecorder: %v", err)
	}
	for tick := int32(0); tick < 3; tick++ {
		frame := TrajectoryFrame{
			Tick:   tick,
			Time:   float64(tick) * 0.5,
			Agents: [][6]float32{{float32(tick), 0, 0, 0, 0, 1}},
		}
		if err := rec.Write(frame); err != nil {
			t.Fatalf("Write: %v", err)
		}
	}
	if err := rec.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	frames, err := ReadTrajectory(f)
	if err != nil {
		t.Fatalf("ReadTrajectory: %v", err)
	}
	if len(frames) != 3 {
		t.Fatalf("got %d frames, want 3", len(frames))
	}
	if frames[2].Tick != 2 || frames[2].Agents[0][0] != 2 || frames[2].Time != 1 {
		t.Errorf("last frame = %+v", frames[2])
	}
}

func TestTrajectoryRecorderNil(t *testing.T) {
	rec, err := NewTrajectoryRecorder("")
	if err != nil || rec != nil {
		t.Fatalf("got (%v, %v), want (nil, nil)", rec, err)
	}
	if err := rec.Write(TrajectoryFrame{}); err != nil {
		t.Errorf("Write on nil: %v", err)
	}
	if err := rec.Close(); err != nil {
		t.Errorf("Close on nil: %v", err)
	}
}
