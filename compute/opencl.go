//go:build opencl

package compute

import (
	"errors"
	"fmt"
	"strings"
	"unsafe"

	"github.com/jgillich/go-opencl/cl"

	"github.com/pthm-cable/flock/systems"
)

// OpenCL runs the perception kernel on a GPU (or CPU) OpenCL device. The
// obstacle index is uploaded once per index and reused until it changes.
type OpenCL struct {
	context *cl.Context
	queue   *cl.CommandQueue
	program *cl.Program
	kernel  *cl.Kernel

	inBuf     *cl.MemObject
	outBuf    *cl.MemObject
	recordCap int

	probeBuf *cl.MemObject
	cellBuf  *cl.MemObject
	nodeBuf  *cl.MemObject
	index    *systems.ObstacleIndex
	dev      deviceIndex
	uploaded bool

	host       []float32
	out        []float32
	deviceName string
}

// NewOpenCL picks the first GPU device, falling back to a CPU device, and
// compiles the kernel.
func NewOpenCL() (*OpenCL, error) {
	platforms, err := cl.GetPlatforms()
	if err != nil {
		msg := "querying OpenCL platforms"
		if strings.Contains(err.Error(), "-1001") {
			msg += ": no ICD loader reported any platforms"
		}
		return nil, fmt.Errorf("%s: %w", msg, err)
	}
	if len(platforms) == 0 {
		return nil, errors.New("no OpenCL platforms available")
	}
	var device *cl.Device
	for _, kind := range []cl.DeviceType{cl.DeviceTypeGPU, cl.DeviceTypeCPU} {
		for _, p := range platforms {
			devices, derr := p.GetDevices(kind)
			if derr != nil && derr != cl.ErrDeviceNotFound {
				continue
			}
			if len(devices) > 0 {
				device = devices[0]
				break
			}
		}
		if device != nil {
			break
		}
	}
	if device == nil {
		return nil, errors.New("no suitable OpenCL devices found")
	}

	c := &OpenCL{deviceName: device.Name()}
	c.context, err = cl.CreateContext([]*cl.Device{device})
	if err != nil {
		return nil, fmt.Errorf("creating OpenCL context: %w", err)
	}
	c.queue, err = c.context.CreateCommandQueue(device, 0)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("creating OpenCL command queue: %w", err)
	}
	c.program, err = c.context.CreateProgramWithSource([]string{perceiveKernelSource})
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("creating OpenCL program: %w", err)
	}
	if err := c.program.BuildProgram([]*cl.Device{device}, ""); err != nil {
		c.Close()
		if buildErr, ok := err.(cl.BuildError); ok {
			return nil, fmt.Errorf("building OpenCL program: %s", string(buildErr))
		}
		return nil, fmt.Errorf("building OpenCL program: %w", err)
	}
	c.kernel, err = c.program.CreateKernel("perceive")
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("creating OpenCL kernel: %w", err)
	}
	return c, nil
}

func (c *OpenCL) Name() string { return "opencl" }

// DeviceName reports the selected device.
func (c *OpenCL) DeviceName() string { return c.deviceName }

// Perceive uploads the record inputs, runs one work item per agent and
// reads the outputs back into records.
func (c *OpenCL) Perceive(records []systems.AgentRecord, ix *systems.ObstacleIndex, p systems.PerceptionParams) error {
	n := len(records)
	if n == 0 {
		return nil
	}
	if err := c.ensureRecordBuffers(n); err != nil {
		return err
	}
	if err := c.syncIndex(ix); err != nil {
		return err
	}

	c.host = systems.PackFloat32(c.host, records)
	if _, err := c.queue.EnqueueWriteBufferFloat32(c.inBuf, false, 0, c.host, nil); err != nil {
		return fmt.Errorf("writing record buffer: %w", err)
	}

	kp := newKernelParams(p)
	d := &c.dev
	if err := c.kernel.SetArgs(
		int32(n),
		kp.view2,
		kp.avoid2,
		kp.obstacleRadius,
		int32(d.probeCount),
		d.res[0], d.res[1], d.res[2],
		d.min[0], d.min[1], d.min[2],
		d.invVoxel,
		c.inBuf,
		c.outBuf,
		c.probeBuf,
		c.cellBuf,
		c.nodeBuf,
	); err != nil {
		return fmt.Errorf("setting kernel arguments: %w", err)
	}
	if _, err := c.queue.EnqueueNDRangeKernel(c.kernel, nil, []int{n}, nil, nil); err != nil {
		return fmt.Errorf("enqueueing kernel: %w", err)
	}

	if cap(c.out) < len(c.host) {
		c.out = make([]float32, len(c.host))
	}
	c.out = c.out[:len(c.host)]
	if _, err := c.queue.EnqueueReadBufferFloat32(c.outBuf, true, 0, c.out, nil); err != nil {
		return fmt.Errorf("reading record buffer: %w", err)
	}
	systems.UnpackOutputs(records, c.out)
	return nil
}

// ensureRecordBuffers grows the record buffers to hold n agents.
func (c *OpenCL) ensureRecordBuffers(n int) error {
	if n <= c.recordCap {
		return nil
	}
	releaseBuf(&c.inBuf)
	releaseBuf(&c.outBuf)
	capacity := max(n, 2*c.recordCap)
	size := capacity * systems.AgentRecordStride
	var err error
	if c.inBuf, err = c.context.CreateEmptyBuffer(cl.MemReadOnly, size); err != nil {
		return fmt.Errorf("allocating record input buffer: %w", err)
	}
	if c.outBuf, err = c.context.CreateEmptyBuffer(cl.MemWriteOnly, size); err != nil {
		releaseBuf(&c.inBuf)
		return fmt.Errorf("allocating record output buffer: %w", err)
	}
	c.recordCap = capacity
	return nil
}

// syncIndex uploads ix when it differs from the last uploaded index.
func (c *OpenCL) syncIndex(ix *systems.ObstacleIndex) error {
	if c.uploaded && ix == c.index {
		return nil
	}
	c.dev = flattenIndex(ix)
	releaseBuf(&c.probeBuf)
	releaseBuf(&c.cellBuf)
	releaseBuf(&c.nodeBuf)

	var err error
	if c.probeBuf, err = c.context.CreateEmptyBuffer(cl.MemReadOnly, 4*len(c.dev.probes)); err != nil {
		return fmt.Errorf("allocating probe buffer: %w", err)
	}
	if c.cellBuf, err = c.context.CreateEmptyBuffer(cl.MemReadOnly, 4*len(c.dev.cells)); err != nil {
		return fmt.Errorf("allocating cell buffer: %w", err)
	}
	if c.nodeBuf, err = c.context.CreateEmptyBuffer(cl.MemReadOnly, 4*len(c.dev.nodes)); err != nil {
		return fmt.Errorf("allocating node buffer: %w", err)
	}
	if _, err := c.queue.EnqueueWriteBufferFloat32(c.probeBuf, false, 0, c.dev.probes, nil); err != nil {
		return fmt.Errorf("writing probe buffer: %w", err)
	}
	if err := writeInt32(c.queue, c.cellBuf, c.dev.cells); err != nil {
		return fmt.Errorf("writing cell buffer: %w", err)
	}
	if err := writeInt32(c.queue, c.nodeBuf, c.dev.nodes); err != nil {
		return fmt.Errorf("writing node buffer: %w", err)
	}
	c.index = ix
	c.uploaded = true
	return nil
}

func writeInt32(q *cl.CommandQueue, buf *cl.MemObject, data []int32) error {
	ptr := unsafe.Pointer(&data[0])
	byteLen := len(data) * int(unsafe.Sizeof(int32(0)))
	// Blocking so data stays valid for the copy.
	_, err := q.EnqueueWriteBuffer(buf, true, 0, byteLen, ptr, nil)
	return err
}

func releaseBuf(b **cl.MemObject) {
	if *b != nil {
		(*b).Release()
		*b = nil
	}
}

// Close releases every device object.
func (c *OpenCL) Close() error {
	releaseBuf(&c.inBuf)
	releaseBuf(&c.outBuf)
	releaseBuf(&c.probeBuf)
	releaseBuf(&c.cellBuf)
	releaseBuf(&c.nodeBuf)
	c.recordCap = 0
	c.uploaded = false
	if c.kernel != nil {
		c.kernel.Release()
		c.kernel = nil
	}
	if c.program != nil {
		c.program.Release()
		c.program = nil
	}
	if c.queue != nil {
		c.queue.Release()
		c.queue = nil
	}
	if c.context != nil {
		c.context.Release()
		c.context = nil
	}
	return nil
}
