package systems

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/flock/config"
)

// degenerateEps is the squared length below which vectors carry no direction.
const degenerateEps = 1e-12

// PerceptionParams are the radii the kernel uses.
type PerceptionParams struct {
	PerceptionRadius float64
	AvoidanceRadius  float64
	ObstacleRadius   float64
}

// PerceptionParamsFrom extracts kernel radii from boid settings.
func PerceptionParamsFrom(s config.BoidSettings) PerceptionParams {
	return PerceptionParams{
		PerceptionRadius: s.PerceptionRadius,
		AvoidanceRadius:  s.AvoidanceRadius,
		ObstacleRadius:   s.ObstacleRadius,
	}
}

// Perceive computes the outputs of record i from every record's inputs and
// the obstacle index. Only record i is written. A nil index means no
// obstacles; nil buckets means all pairs are tested.
func Perceive(records []AgentRecord, i int, ix *ObstacleIndex, buckets *AgentBuckets, p PerceptionParams) {
	self := &records[i]
	self.ResetOutputs()
	pos := self.Position

	view2 := p.PerceptionRadius * p.PerceptionRadius
	avoid2 := p.AvoidanceRadius * p.AvoidanceRadius

	visit := func(j int) {
		if j == i {
			return
		}
		other := &records[j]
		offset := r3.Sub(other.Position, pos)
		d2 := r3.Norm2(offset)
		if d2 >= view2 {
			return
		}
		self.Flockmates++
		self.FlockHeading = r3.Add(self.FlockHeading, other.Direction)
		self.FlockCentre = r3.Add(self.FlockCentre, other.Position)
		if d2 < avoid2 && d2 > degenerateEps {
			self.Avoidance = r3.Sub(self.Avoidance, r3.Scale(1/d2, offset))
		}
	}
	if buckets.Valid() {
		buckets.forEachNear(pos, visit)
	} else {
		for j := range records {
			visit(j)
		}
	}

	if ix == nil {
		return
	}
	for _, q := range ix.ProbesNear(pos, p.ObstacleRadius) {
		self.Obstacles++
		away := r3.Sub(pos, q)
		d2 := r3.Norm2(away)
		if d2 <= degenerateEps {
			continue
		}
		self.ObstacleAvoidance = r3.Add(self.ObstacleAvoidance, r3.Scale(1/(d2*math.Sqrt(d2)), away))
	}
}

// PerceiveRange runs Perceive for records [start, end).
func PerceiveRange(records []AgentRecord, start, end int, ix *ObstacleIndex, buckets *AgentBuckets, p PerceptionParams) {
	for i := start; i < end; i++ {
		Perceive(records, i, ix, buckets, p)
	}
}
