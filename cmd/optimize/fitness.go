package main

import (
	"fmt"
	"math"
	"sync"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/stat"

	"github.com/pthm-cable/flock/config"
	"github.com/pthm-cable/flock/probes"
	"github.com/pthm-cable/flock/sim"
	"github.com/pthm-cable/flock/telemetry"
)

// FitnessEvaluator runs headless simulations and computes fitness.
type FitnessEvaluator struct {
	params     *ParamVector
	maxTicks   int32
	seeds      []int64
	baseConfig config.Config
	obstacles  probes.Set

	mu          sync.Mutex
	lastQuality float64
	lastErr     error
}

// NewFitnessEvaluator creates a new evaluator. The obstacle set is built
// once from the base config and shared read-only by every run.
func NewFitnessEvaluator(params *ParamVector, maxTicks int32, seeds []int64, baseCfg *config.Config) (*FitnessEvaluator, error) {
	set, err := probes.FromConfig(baseCfg.Obstacles)
	if err != nil {
		return nil, fmt.Errorf("loading obstacles: %w", err)
	}
	cfg := *baseCfg
	cfg.Obstacles.TotalObstacleCount = -1
	// one worker per run; seeds run concurrently
	cfg.Compute.Workers = 1
	cfg.Compute.Backend = "cpu"
	cfg.Telemetry.Trajectory = ""
	return &FitnessEvaluator{
		params:     params,
		maxTicks:   maxTicks,
		seeds:      seeds,
		baseConfig: cfg,
		obstacles:  set,
	}, nil
}

// LastQuality returns the quality score from the most recent evaluation.
func (fe *FitnessEvaluator) LastQuality() float64 {
	fe.mu.Lock()
	defer fe.mu.Unlock()
	return fe.lastQuality
}

// LastErr returns the error of the most recent evaluation, if any run failed.
func (fe *FitnessEvaluator) LastErr() error {
	fe.mu.Lock()
	defer fe.mu.Unlock()
	return fe.lastErr
}

// failedFitness is returned for parameter vectors whose runs error out.
const failedFitness = 1.0

// Evaluate computes fitness for a parameter vector (lower = better).
// Fitness is the negated mean flock quality across seeds.
func (fe *FitnessEvaluator) Evaluate(x []float64) float64 {
	qualities := make([]float64, len(fe.seeds))

	var g errgroup.Group
	for i, seed := range fe.seeds {
		g.Go(func() error {
			windows, err := fe.runSimulation(x, seed)
			if err != nil {
				return fmt.Errorf("seed %d: %w", seed, err)
			}
			qualities[i] = computeQuality(windows)
			return nil
		})
	}
	err := g.Wait()

	quality := stat.Mean(qualities, nil)
	fe.mu.Lock()
	fe.lastQuality = quality
	fe.lastErr = err
	fe.mu.Unlock()

	if err != nil {
		return failedFitness
	}
	return -quality
}

// runSimulation executes a single headless run and returns its windows.
func (fe *FitnessEvaluator) runSimulation(x []float64, seed int64) ([]telemetry.WindowStats, error) {
	cfg := fe.baseConfig
	cfg.Sim.Seed = seed
	fe.params.ApplyToConfig(&cfg, x)

	var windows []telemetry.WindowStats
	s, err := sim.New(&cfg, sim.Options{
		StatsCallback: func(w telemetry.WindowStats) {
			windows = append(windows, w)
		},
	})
	if err != nil {
		return nil, err
	}
	defer s.Dispose()

	if err := s.Build(fe.obstacles); err != nil {
		return nil, err
	}
	for s.Tick() < fe.maxTicks {
		if err := s.Step(cfg.Sim.DT); err != nil {
			return nil, err
		}
	}
	return windows, nil
}

// Quality component weights.
const (
	qualityWeightAlignment = 0.35
	qualityWeightCohesion  = 0.25
	qualityWeightSafety    = 0.25
	qualityWeightSpacing   = 0.15

	qualityWarmupWindows = 1 // skip first N windows (flock forming)
	targetFlockmates     = 6.0
)

// computeQuality scores flock behaviour in [0, 1] from window stats.
// Aligned, connected flocks that keep clear of obstacles score highest.
func computeQuality(windows []telemetry.WindowStats) float64 {
	if len(windows) <= qualityWarmupWindows {
		return 0
	}
	valid := windows[qualityWarmupWindows:]

	align := make([]float64, 0, len(valid))
	cohesion := make([]float64, 0, len(valid))
	safety := make([]float64, 0, len(valid))
	spacing := make([]float64, 0, len(valid))
	for _, w := range valid {
		if w.Agents == 0 {
			continue
		}
		n := float64(w.Agents)
		align = append(align, w.Polarization)
		cohesion = append(cohesion, 1-float64(w.Isolated)/n)
		safety = append(safety, math.Exp(-float64(w.ProbeContacts)/n))
		d := (w.MeanFlockmates - targetFlockmates) / targetFlockmates
		spacing = append(spacing, math.Exp(-d*d))
	}
	if len(align) == 0 {
		return 0
	}

	quality := qualityWeightAlignment*stat.Mean(align, nil) +
		qualityWeightCohesion*stat.Mean(cohesion, nil) +
		qualityWeightSafety*stat.Mean(safety, nil) +
		qualityWeightSpacing*stat.Mean(spacing, nil)
	return clamp01(quality)
}

// clamp01 clamps x to [0, 1].
func clamp01(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}
