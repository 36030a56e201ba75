package sim

import (
	"log/slog"

	"github.com/pthm-cable/flock/compute"
	"github.com/pthm-cable/flock/systems"
)

// PerceptionBackend fills the output half of every record from the input
// half of all records and the obstacle index. Implementations must write
// only output fields and must not retain records after returning.
type PerceptionBackend interface {
	Name() string
	Perceive(records []systems.AgentRecord, ix *systems.ObstacleIndex, p systems.PerceptionParams) error
	Close() error
}

// cpuBackend runs the kernel on the worker pool.
type cpuBackend struct {
	pool    *workerPool
	buckets systems.AgentBuckets
}

func newCPUBackend(pool *workerPool) *cpuBackend {
	return &cpuBackend{pool: pool}
}

func (b *cpuBackend) Name() string { return "cpu" }

func (b *cpuBackend) Perceive(records []systems.AgentRecord, ix *systems.ObstacleIndex, p systems.PerceptionParams) error {
	var buckets *systems.AgentBuckets
	if b.buckets.Rebuild(records, p.PerceptionRadius) {
		buckets = &b.buckets
	}
	b.pool.run(len(records), func(start, end, _ int) {
		systems.PerceiveRange(records, start, end, ix, buckets, p)
	})
	return nil
}

func (b *cpuBackend) Close() error { return nil }

// newBackend selects the configured backend, falling back to the CPU when
// the GPU one cannot be created.
func newBackend(name string, pool *workerPool) PerceptionBackend {
	if name == "opencl" {
		cl, err := compute.NewOpenCL()
		if err == nil {
			slog.Info("perception backend", "backend", cl.Name())
			return cl
		}
		slog.Warn("opencl backend unavailable, using cpu", "error", err)
	}
	return newCPUBackend(pool)
}
