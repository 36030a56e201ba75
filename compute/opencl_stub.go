//go:build !opencl

package compute

import "github.com/pthm-cable/flock/systems"

// OpenCL is unavailable in this build.
type OpenCL struct{}

// NewOpenCL always fails without the opencl build tag.
func NewOpenCL() (*OpenCL, error) {
	return nil, ErrUnavailable
}

func (c *OpenCL) Name() string { return "opencl" }

func (c *OpenCL) Perceive([]systems.AgentRecord, *systems.ObstacleIndex, systems.PerceptionParams) error {
	return ErrUnavailable
}

func (c *OpenCL) Close() error { return nil }

func (c *OpenCL) DeviceName() string { return "" }
