package systems

import (
	"encoding/binary"
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// AgentRecordStride is the packed size of an AgentRecord: 18 float32 and 2 int32.
const AgentRecordStride = 80

// AgentRecord is the per-agent perception record. Position and Direction
// are inputs; the remaining fields are raw sums written by the kernel.
// Field order matches the packed layout.
type AgentRecord struct {
	Position          r3.Vec
	Direction         r3.Vec
	FlockHeading      r3.Vec
	FlockCentre       r3.Vec
	Avoidance         r3.Vec
	ObstacleAvoidance r3.Vec
	Flockmates        int32
	Obstacles         int32
}

// ResetOutputs clears the kernel outputs.
func (r *AgentRecord) ResetOutputs() {
	r.FlockHeading = r3.Vec{}
	r.FlockCentre = r3.Vec{}
	r.Avoidance = r3.Vec{}
	r.ObstacleAvoidance = r3.Vec{}
	r.Flockmates = 0
	r.Obstacles = 0
}

// AppendRecord appends the little-endian packed form of r to dst.
func AppendRecord(dst []byte, r *AgentRecord) []byte {
	for _, v := range [6]r3.Vec{r.Position, r.Direction, r.FlockHeading, r.FlockCentre, r.Avoidance, r.ObstacleAvoidance} {
		dst = binary.LittleEndian.AppendUint32(dst, math.Float32bits(float32(v.X)))
		dst = binary.LittleEndian.AppendUint32(dst, math.Float32bits(float32(v.Y)))
		dst = binary.LittleEndian.AppendUint32(dst, math.Float32bits(float32(v.Z)))
	}
	dst = binary.LittleEndian.AppendUint32(dst, uint32(r.Flockmates))
	dst = binary.LittleEndian.AppendUint32(dst, uint32(r.Obstacles))
	return dst
}

// EncodeRecords packs records back to back.
func EncodeRecords(records []AgentRecord) []byte {
	buf := make([]byte, 0, len(records)*AgentRecordStride)
	for i := range records {
		buf = AppendRecord(buf, &records[i])
	}
	return buf
}

// DecodeRecords unpacks a buffer produced by EncodeRecords.
func DecodeRecords(buf []byte) ([]AgentRecord, error) {
	if len(buf)%AgentRecordStride != 0 {
		return nil, fmt.Errorf("record buffer length %d is not a multiple of %d", len(buf), AgentRecordStride)
	}
	out := make([]AgentRecord, len(buf)/AgentRecordStride)
	for i := range out {
		b := buf[i*AgentRecordStride:]
		var vecs [6]r3.Vec
		for k := range vecs {
			vecs[k] = r3.Vec{
				X: float64(math.Float32frombits(binary.LittleEndian.Uint32(b[k*12:]))),
				Y: float64(math.Float32frombits(binary.LittleEndian.Uint32(b[k*12+4:]))),
				Z: float64(math.Float32frombits(binary.LittleEndian.Uint32(b[k*12+8:]))),
			}
		}
		out[i] = AgentRecord{
			Position:          vecs[0],
			Direction:         vecs[1],
			FlockHeading:      vecs[2],
			FlockCentre:       vecs[3],
			Avoidance:         vecs[4],
			ObstacleAvoidance: vecs[5],
			Flockmates:        int32(binary.LittleEndian.Uint32(b[72:])),
			Obstacles:         int32(binary.LittleEndian.Uint32(b[76:])),
		}
	}
	return out, nil
}

// PackFloat32 writes records into a float32 slice of 20 lanes per record,
// with the two counts bit-cast into the last lanes. It is the device buffer
// layout of the GPU backend.
func PackFloat32(dst []float32, records []AgentRecord) []float32 {
	const lanes = AgentRecordStride / 4
	if cap(dst) < len(records)*lanes {
		dst = make([]float32, len(records)*lanes)
	}
	dst = dst[:len(records)*lanes]
	for i := range records {
		r := &records[i]
		o := dst[i*lanes : (i+1)*lanes]
		for k, v := range [6]r3.Vec{r.Position, r.Direction, r.FlockHeading, r.FlockCentre, r.Avoidance, r.ObstacleAvoidance} {
			o[k*3] = float32(v.X)
			o[k*3+1] = float32(v.Y)
			o[k*3+2] = float32(v.Z)
		}
		o[18] = math.Float32frombits(uint32(r.Flockmates))
		o[19] = math.Float32frombits(uint32(r.Obstacles))
	}
	return dst
}

// UnpackOutputs copies the kernel outputs from a float32 device buffer back
// into records. Inputs are left untouched.
func UnpackOutputs(records []AgentRecord, src []float32) {
	const lanes = AgentRecordStride / 4
	for i := range records {
		o := src[i*lanes : (i+1)*lanes]
		vec := func(k int) r3.Vec {
			return r3.Vec{X: float64(o[k*3]), Y: float64(o[k*3+1]), Z: float64(o[k*3+2])}
		}
		r := &records[i]
		r.FlockHeading = vec(2)
		r.FlockCentre = vec(3)
		r.Avoidance = vec(4)
		r.ObstacleAvoidance = vec(5)
		r.Flockmates = int32(math.Float32bits(o[18]))
		r.Obstacles = int32(math.Float32bits(o[19]))
	}
}
