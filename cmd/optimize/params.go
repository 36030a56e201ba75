// Package main provides CMA-ES optimization for flock steering parameters.
package main

import (
	"github.com/pthm-cable/flock/config"
)

// ParamSpec defines a single optimizable parameter.
type ParamSpec struct {
	Name    string  // Human-readable name
	Path    string  // Config path for logging
	Min     float64 // Lower bound
	Max     float64 // Upper bound
	Default float64 // Default value
}

// ParamVector holds the set of all optimizable parameters.
type ParamVector struct {
	Specs []ParamSpec
}

// NewParamVector creates the standard set of optimizable parameters.
func NewParamVector() *ParamVector {
	return &ParamVector{
		Specs: []ParamSpec{
			// Rule weights
			{Name: "align_weight", Path: "boids.align_weight", Min: 0, Max: 4, Default: 1},
			{Name: "cohesion_weight", Path: "boids.cohesion_weight", Min: 0, Max: 4, Default: 1},
			{Name: "seperate_weight", Path: "boids.seperate_weight", Min: 0, Max: 4, Default: 1},
			{Name: "obstacle_avoidance_weight", Path: "boids.obstacle_avoidance_weight", Min: 0, Max: 30, Default: 10},
			// Radii
			{Name: "perception_radius", Path: "boids.perception_radius", Min: 0.5, Max: 5, Default: 2.5},
			{Name: "avoidance_radius", Path: "boids.avoidance_radius", Min: 0.2, Max: 2, Default: 1},
			{Name: "obstacle_radius", Path: "boids.obstacle_radius", Min: 0.3, Max: 3, Default: 1.5},
			// Dynamics (speeds stay fixed so runs are comparable)
			{Name: "max_steer_force", Path: "boids.max_steer_force", Min: 0.5, Max: 8, Default: 3},
		},
	}
}

// Dim returns the number of parameters.
func (pv *ParamVector) Dim() int {
	return len(pv.Specs)
}

// DefaultVector returns the default parameter values as a slice.
func (pv *ParamVector) DefaultVector() []float64 {
	v := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		v[i] = spec.Default
	}
	return v
}

// Normalize converts raw parameter values to [0,1] range.
func (pv *ParamVector) Normalize(raw []float64) []float64 {
	normalized := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		normalized[i] = (raw[i] - spec.Min) / (spec.Max - spec.Min)
	}
	return normalized
}

// Denormalize converts [0,1] values back to raw parameter values.
func (pv *ParamVector) Denormalize(normalized []float64) []float64 {
	raw := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		raw[i] = spec.Min + normalized[i]*(spec.Max-spec.Min)
	}
	return raw
}

// Clamp ensures all values are within bounds.
func (pv *ParamVector) Clamp(v []float64) []float64 {
	clamped := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		clamped[i] = min(max(v[i], spec.Min), spec.Max)
	}
	return clamped
}

// fields returns pointers to the tuned settings in Specs order.
func fields(b *config.BoidSettings) []*float64 {
	return []*float64{
		&b.AlignWeight,
		&b.CohesionWeight,
		&b.SeperateWeight,
		&b.ObstacleAvoidanceWeight,
		&b.PerceptionRadius,
		&b.AvoidanceRadius,
		&b.ObstacleRadius,
		&b.MaxSteerForce,
	}
}

// ApplyToConfig writes clamped parameter values into cfg.
func (pv *ParamVector) ApplyToConfig(cfg *config.Config, values []float64) {
	clamped := pv.Clamp(values)
	for i, f := range fields(&cfg.Boids) {
		*f = clamped[i]
	}
}

// ExtractFromConfig reads current parameter values from cfg.
func (pv *ParamVector) ExtractFromConfig(cfg *config.Config) []float64 {
	fs := fields(&cfg.Boids)
	out := make([]float64, len(fs))
	for i, f := range fs {
		out[i] = *f
	}
	return out
}
