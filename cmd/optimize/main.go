// Command optimize searches steering parameters with CMA-ES for aligned,
// cohesive flocks that keep clear of obstacles.
package main

import (
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"time"

	"gonum.org/v1/gonum/optimize"

	"github.com/pthm-cable/flock/config"
	"github.com/pthm-cable/flock/telemetry"
)

type options struct {
	configPath string
	outputDir  string
	maxTicks   int
	seeds      int
	maxEvals   int
	population int
	stepSize   float64
	runtime    time.Duration
}

func main() {
	var opts options
	flag.StringVar(&opts.configPath, "config", "", "Base config YAML file (empty = use defaults)")
	flag.StringVar(&opts.outputDir, "output", "", "Output directory for results")
	flag.IntVar(&opts.maxTicks, "max-ticks", 3600, "Simulation length per run in ticks")
	flag.IntVar(&opts.seeds, "seeds", 3, "Number of seeds per evaluation")
	flag.IntVar(&opts.maxEvals, "max-evals", 200, "Maximum number of evaluations")
	flag.IntVar(&opts.population, "population", 0, "CMA-ES population size (0 = 4 + 3 ln dim)")
	flag.Float64Var(&opts.stepSize, "step-size", 0.3, "Initial CMA-ES step size in normalised units")
	flag.DurationVar(&opts.runtime, "runtime", 0, "Wall-clock limit (0 = none)")
	flag.Parse()

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, nil)))

	if err := run(opts); err != nil {
		slog.Error("optimize failed", "error", err)
		os.Exit(1)
	}
}

func run(opts options) error {
	if opts.outputDir == "" {
		return errors.New("--output is required")
	}
	if err := os.MkdirAll(opts.outputDir, 0755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}

	baseCfg, err := config.Load(opts.configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	params := NewParamVector()
	seeds := make([]int64, opts.seeds)
	for i := range seeds {
		seeds[i] = int64(i*1000 + 42)
	}
	evaluator, err := NewFitnessEvaluator(params, int32(opts.maxTicks), seeds, baseCfg)
	if err != nil {
		return err
	}

	evalLog := telemetry.NewCSVTable(filepath.Join(opts.outputDir, "optimize_log.csv"))
	defer evalLog.Close()

	pop := opts.population
	if pop <= 0 {
		pop = 4 + int(3*math.Log(float64(params.Dim())))
	}
	track := newTracker(opts.maxEvals, time.Now())

	problem := optimize.Problem{
		Func: func(x []float64) float64 {
			values := params.Clamp(params.Denormalize(x))
			fitness := evaluator.Evaluate(values)
			rec := newEvalRecord(track.evals+1, fitness, evaluator.LastQuality(), evaluator.LastErr(), values)
			if err := evalLog.Append([]EvalRecord{rec}); err != nil {
				slog.Error("failed to write eval log", "error", err)
			}

			if track.observe(rec, values) {
				slog.Info("new best", "eval", rec.Eval, "quality", rec.Quality)
			}
			if rec.Error != "" {
				slog.Warn("evaluation failed", "eval", rec.Eval, "error", rec.Error)
			} else {
				slog.Info("evaluation",
					"eval", rec.Eval,
					"of", opts.maxEvals,
					"quality", rec.Quality,
					"best", track.best.Quality,
					"eta", track.eta(time.Now()).Round(time.Second),
				)
			}
			return fitness
		},
	}

	slog.Info("starting CMA-ES",
		"params", params.Dim(),
		"population", pop,
		"max_evals", opts.maxEvals,
		"seeds", opts.seeds,
		"ticks", opts.maxTicks,
	)
	settings := &optimize.Settings{
		FuncEvaluations: opts.maxEvals,
		Runtime:         opts.runtime,
		Concurrent:      0, // seeds already run in parallel
	}
	method := &optimize.CmaEsChol{InitStepSize: opts.stepSize, Population: pop}
	initX := params.Normalize(params.ExtractFromConfig(baseCfg))

	result, err := optimize.Minimize(problem, initX, settings, method)
	if err != nil {
		slog.Warn("optimization ended early", "error", err)
	}

	best := track.bestX
	if best == nil && result != nil {
		best = params.Clamp(params.Denormalize(result.X))
	}
	if best == nil {
		return errors.New("no evaluation completed")
	}

	attrs := []any{"evals", track.evals, "elapsed", time.Since(track.start).Round(time.Second), "quality", track.best.Quality}
	for i, spec := range params.Specs {
		attrs = append(attrs, spec.Name, best[i])
	}
	slog.Info("optimization complete", attrs...)

	bestCfg := *baseCfg
	params.ApplyToConfig(&bestCfg, best)
	out := filepath.Join(opts.outputDir, "best_config.yaml")
	if err := bestCfg.WriteYAML(out); err != nil {
		return fmt.Errorf("writing best config: %w", err)
	}
	slog.Info("best config saved", "path", out)
	return nil
}
