// Package compute holds the OpenCL perception backend. The device path is
// compiled only with the opencl build tag; without it NewOpenCL reports
// ErrUnavailable and the simulation runs the kernel on the CPU.
package compute

import (
	"errors"
	"math"

	"github.com/pthm-cable/flock/systems"
)

// ErrUnavailable is returned when the binary was built without OpenCL.
var ErrUnavailable = errors.New("OpenCL support is not enabled; rebuild with -tags opencl")

// recordLanes is the float32 width of one packed agent record.
const recordLanes = systems.AgentRecordStride / 4

// perceiveKernelSource mirrors systems.Perceive: all-pairs flock sums and
// a walk of the obstacle chains in the block of cells around each agent.
const perceiveKernelSource = `
#define LANES 20
#define EPS 1e-12f
#define NO_NODE -1

int axis_cell(float d, float inv_voxel, int res) {
    if (isnan(d)) {
        return 0;
    }
    float c = floor(d * inv_voxel);
    if (c < 0.0f) {
        return 0;
    }
    if (c > (float)(res - 1)) {
        return res - 1;
    }
    return (int)c;
}

__kernel void perceive(
    const int n,
    const float view2,
    const float avoid2,
    const float obstacle_radius,
    const int probe_count,
    const int rx,
    const int ry,
    const int rz,
    const float min_x,
    const float min_y,
    const float min_z,
    const float inv_voxel,
    __global const float* in_records,
    __global float* out_records,
    __global const float* probes,
    __global const int* cells,
    __global const int* nodes)
{
    int i = get_global_id(0);
    if (i >= n) {
        return;
    }
    __global const float* self = in_records + i * LANES;
    float3 pos = (float3)(self[0], self[1], self[2]);

    float3 heading = (float3)(0.0f);
    float3 centre = (float3)(0.0f);
    float3 avoid = (float3)(0.0f);
    float3 away_sum = (float3)(0.0f);
    int mates = 0;
    int obstacles = 0;

    for (int j = 0; j < n; j++) {
        if (j == i) {
            continue;
        }
        __global const float* other = in_records + j * LANES;
        float3 op = (float3)(other[0], other[1], other[2]);
        float3 offset = op - pos;
        float d2 = dot(offset, offset);
        if (!(d2 < view2)) {
            continue;
        }
        mates++;
        heading += (float3)(other[3], other[4], other[5]);
        centre += op;
        if (d2 < avoid2 && d2 > EPS) {
            avoid -= offset / d2;
        }
    }

    if (probe_count > 0 && obstacle_radius >= 0.0f) {
        float r2 = obstacle_radius * obstacle_radius;
        float reach = fmin(ceil(obstacle_radius * inv_voxel), (float)max(rx, max(ry, rz)));
        int span = max(1, (int)reach);
        int cx = axis_cell(pos.x - min_x, inv_voxel, rx);
        int cy = axis_cell(pos.y - min_y, inv_voxel, ry);
        int cz = axis_cell(pos.z - min_z, inv_voxel, rz);
        for (int z = max(cz - span, 0); z <= min(cz + span, rz - 1); z++) {
            for (int y = max(cy - span, 0); y <= min(cy + span, ry - 1); y++) {
                for (int x = max(cx - span, 0); x <= min(cx + span, rx - 1); x++) {
                    int cell = x + y * rx + z * rx * ry;
                    if (cells[cell * 2] == 0) {
                        continue;
                    }
                    for (int p = cells[cell * 2 + 1]; p != NO_NODE; p = nodes[p * 2 + 1]) {
                        float3 q = (float3)(probes[p * 4], probes[p * 4 + 1], probes[p * 4 + 2]);
                        float3 away = pos - q;
                        float d2 = dot(away, away);
                        if (d2 > r2) {
                            continue;
                        }
                        obstacles++;
                        if (d2 > EPS) {
                            away_sum += away / (d2 * sqrt(d2));
                        }
                    }
                }
            }
        }
    }

    __global float* out = out_records + i * LANES;
    for (int k = 0; k < 6; k++) {
        out[k] = self[k];
    }
    out[6] = heading.x;   out[7] = heading.y;   out[8] = heading.z;
    out[9] = centre.x;    out[10] = centre.y;   out[11] = centre.z;
    out[12] = avoid.x;    out[13] = avoid.y;    out[14] = avoid.z;
    out[15] = away_sum.x; out[16] = away_sum.y; out[17] = away_sum.z;
    out[18] = as_float(mates);
    out[19] = as_float(obstacles);
}
`

// deviceIndex is the flattened form of an obstacle index as uploaded to
// the device. Every slice holds at least one element so buffers are never
// empty.
type deviceIndex struct {
	probeCount int
	probes     []float32 // xyz + pad per probe
	cells      []int32   // usage, top per cell
	nodes      []int32   // cell, next per probe
	res        [3]int32
	min        [3]float32
	invVoxel   float32
}

// flattenIndex converts ix into device layout. A nil index yields an empty
// one-cell layout with probeCount 0.
func flattenIndex(ix *systems.ObstacleIndex) deviceIndex {
	d := deviceIndex{
		probes:   make([]float32, 4),
		cells:    []int32{0, systems.NoNode},
		nodes:    []int32{0, systems.NoNode},
		res:      [3]int32{1, 1, 1},
		invVoxel: 1,
	}
	if ix == nil {
		return d
	}

	g := ix.Grid()
	res := g.Resolution()
	lo := g.Min()
	d.res = [3]int32{int32(res[0]), int32(res[1]), int32(res[2])}
	d.min = [3]float32{float32(lo.X), float32(lo.Y), float32(lo.Z)}
	d.invVoxel = float32(1 / g.VoxelSize())

	cells := ix.Cells()
	d.cells = make([]int32, 2*len(cells))
	for i, c := range cells {
		d.cells[2*i] = c.Usage
		d.cells[2*i+1] = c.Top
	}

	d.probeCount = ix.ProbeCount()
	if d.probeCount == 0 {
		return d
	}
	d.probes = make([]float32, 4*d.probeCount)
	for i, p := range ix.Probes() {
		d.probes[4*i] = float32(p.X)
		d.probes[4*i+1] = float32(p.Y)
		d.probes[4*i+2] = float32(p.Z)
	}
	nodes := ix.Nodes()
	d.nodes = make([]int32, 2*len(nodes))
	for i, n := range nodes {
		d.nodes[2*i] = n.Cell
		d.nodes[2*i+1] = n.Next
	}
	return d
}

// kernelParams are the scalar kernel arguments derived from perception radii.
type kernelParams struct {
	view2, avoid2, obstacleRadius float32
}

func newKernelParams(p systems.PerceptionParams) kernelParams {
	clampF32 := func(v float64) float32 {
		if v > math.MaxFloat32 {
			return math.MaxFloat32
		}
		return float32(v)
	}
	return kernelParams{
		view2:          clampF32(p.PerceptionRadius * p.PerceptionRadius),
		avoid2:         clampF32(p.AvoidanceRadius * p.AvoidanceRadius),
		obstacleRadius: clampF32(p.ObstacleRadius),
	}
}
