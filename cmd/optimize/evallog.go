package main

import (
	"math"
	"time"
)

// EvalRecord is one optimize_log.csv row. The parameter columns follow
// NewParamVector's order.
type EvalRecord struct {
	Eval                    int     `csv:"eval"`
	Fitness                 float64 `csv:"fitness"`
	Quality                 float64 `csv:"quality"`
	Error                   string  `csv:"error"`
	AlignWeight             float64 `csv:"align_weight"`
	CohesionWeight          float64 `csv:"cohesion_weight"`
	SeperateWeight          float64 `csv:"seperate_weight"`
	ObstacleAvoidanceWeight float64 `csv:"obstacle_avoidance_weight"`
	PerceptionRadius        float64 `csv:"perception_radius"`
	AvoidanceRadius         float64 `csv:"avoidance_radius"`
	ObstacleRadius          float64 `csv:"obstacle_radius"`
	MaxSteerForce           float64 `csv:"max_steer_force"`
}

func (r *EvalRecord) params() []*float64 {
	return []*float64{
		&r.AlignWeight,
		&r.CohesionWeight,
		&r.SeperateWeight,
		&r.ObstacleAvoidanceWeight,
		&r.PerceptionRadius,
		&r.AvoidanceRadius,
		&r.ObstacleRadius,
		&r.MaxSteerForce,
	}
}

func newEvalRecord(eval int, fitness, quality float64, err error, values []float64) EvalRecord {
	r := EvalRecord{Eval: eval, Fitness: fitness, Quality: quality}
	if err != nil {
		r.Error = err.Error()
	}
	for i, f := range r.params() {
		*f = values[i]
	}
	return r
}

// tracker follows the best evaluation and the remaining time budget.
type tracker struct {
	maxEvals int
	start    time.Time
	evals    int
	best     EvalRecord
	bestX    []float64
}

func newTracker(maxEvals int, start time.Time) *tracker {
	return &tracker{maxEvals: maxEvals, start: start, best: EvalRecord{Fitness: math.Inf(1)}}
}

// observe records an evaluation and reports whether it is the new best.
// Failed evaluations never become best.
func (t *tracker) observe(r EvalRecord, values []float64) bool {
	t.evals++
	if r.Error != "" || !(r.Fitness < t.best.Fitness) {
		return false
	}
	t.best = r
	t.bestX = append(t.bestX[:0], values...)
	return true
}

// eta extrapolates the mean evaluation time over the remaining budget.
func (t *tracker) eta(now time.Time) time.Duration {
	if t.evals == 0 {
		return 0
	}
	per := now.Sub(t.start) / time.Duration(t.evals)
	return time.Duration(max(t.maxEvals-t.evals, 0)) * per
}
