package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	rl "github.com/gen2brain/raylib-go/raylib"
	"golang.org/x/sync/errgroup"

	"github.com/pthm-cable/flock/config"
	"github.com/pthm-cable/flock/game"
	"github.com/pthm-cable/flock/observer"
	"github.com/pthm-cable/flock/probes"
	"github.com/pthm-cable/flock/sim"
	"github.com/pthm-cable/flock/telemetry"
)

func main() {
	// CLI flags
	configPath := flag.String("config", "", "Path to config.yaml (empty = use defaults)")
	headless := flag.Bool("headless", false, "Run without graphics")
	logStats := flag.Bool("log-stats", false, "Output stats via slog")
	statsWindow := flag.Float64("stats-window", 0, "Stats window size in seconds (0 = use config)")
	outputDir := flag.String("output-dir", "", "Output directory for CSV logs and config snapshot")
	seed := flag.Int64("seed", 0, "RNG seed (0 = config, then time-based)")
	maxTicks := flag.Int("max-ticks", 0, "Stop after N ticks (0 = unlimited)")
	stepsPerUpdate := flag.Int("steps-per-update", 1, "Simulation ticks per update call (higher = faster headless runs)")
	probeFile := flag.String("probes", "", "Probe CSV file (overrides obstacles.file)")
	watchProbes := flag.Bool("watch-probes", false, "Reload the probe file when it changes")
	backend := flag.String("backend", "", "Perception backend: cpu or opencl (empty = config)")
	observerAddr := flag.String("observer-addr", "", "Observer websocket address (empty = config)")
	metricsAddr := flag.String("metrics-addr", "", "Prometheus metrics address (empty = config)")
	trajectory := flag.String("trajectory", "", "Trajectory output file, .zst for compression (empty = config)")

	flag.Parse()

	// Set up slog (JSON to stdout for structured logging)
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	applyOverrides(cfg, overrides{
		seed:         *seed,
		statsWindow:  *statsWindow,
		probeFile:    *probeFile,
		watchProbes:  *watchProbes,
		backend:      *backend,
		observerAddr: *observerAddr,
		metricsAddr:  *metricsAddr,
		trajectory:   *trajectory,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, runOptions{
		headless:       *headless,
		logStats:       *logStats,
		outputDir:      *outputDir,
		maxTicks:       *maxTicks,
		stepsPerUpdate: max(1, *stepsPerUpdate),
	}); err != nil {
		slog.Error("run failed", "error", err)
		os.Exit(1)
	}
}

type overrides struct {
	seed         int64
	statsWindow  float64
	probeFile    string
	watchProbes  bool
	backend      string
	observerAddr string
	metricsAddr  string
	trajectory   string
}

// applyOverrides folds non-zero CLI values into cfg.
func applyOverrides(cfg *config.Config, o overrides) {
	if o.seed != 0 {
		cfg.Sim.Seed = o.seed
	}
	if cfg.Sim.Seed == 0 {
		cfg.Sim.Seed = time.Now().UnixNano()
	}
	if o.statsWindow > 0 {
		cfg.Telemetry.StatsWindow = o.statsWindow
	}
	if o.probeFile != "" {
		cfg.Obstacles.File = o.probeFile
	}
	if o.watchProbes {
		cfg.Obstacles.Watch = true
	}
	if o.backend != "" {
		cfg.Compute.Backend = o.backend
	}
	if o.observerAddr != "" {
		cfg.Observer.Addr = o.observerAddr
	}
	if o.metricsAddr != "" {
		cfg.Metrics.Addr = o.metricsAddr
	}
	if o.trajectory != "" {
		cfg.Telemetry.Trajectory = o.trajectory
	}
	cfg.Recompute()
}

type runOptions struct {
	headless       bool
	logStats       bool
	outputDir      string
	maxTicks       int
	stepsPerUpdate int
}

func run(ctx context.Context, cfg *config.Config, opts runOptions) error {
	set, err := probes.FromConfig(cfg.Obstacles)
	if err != nil {
		return err
	}

	var hub *observer.Hub
	simOpts := sim.Options{
		LogStats:  opts.logStats,
		OutputDir: opts.outputDir,
	}
	if cfg.Observer.Addr != "" {
		hub = observer.NewHub()
		defer hub.Close()
		simOpts.Sink = hub
	}

	s, err := sim.New(cfg, simOpts)
	if err != nil {
		return err
	}
	defer s.Dispose()
	if err := s.Build(set); err != nil {
		return err
	}

	slog.Info("simulation built",
		"run_id", s.RunID(),
		"seed", cfg.Sim.Seed,
		"agents", cfg.Sim.Agents,
		"probes", set.Len(),
		"backend", s.BackendName(),
	)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)

	if hub != nil {
		srv := observer.NewServer(hub, s, cfg.Observer.MaxHz)
		g.Go(func() error {
			slog.Info("observer listening", "addr", cfg.Observer.Addr)
			return observer.ListenAndServe(gctx, cfg.Observer.Addr, srv.Handler())
		})
	}
	if cfg.Metrics.Addr != "" {
		g.Go(func() error {
			slog.Info("metrics listening", "addr", cfg.Metrics.Addr)
			return observer.ListenAndServe(gctx, cfg.Metrics.Addr, telemetry.MetricsHandler())
		})
	}
	if cfg.Obstacles.Watch && cfg.Obstacles.File != "" {
		shapesOnly := cfg.Obstacles
		shapesOnly.File = ""
		w, err := probes.NewWatcher(cfg.Obstacles.File, 0, func(loaded probes.Set) {
			shapes, err := probes.FromConfig(shapesOnly)
			if err != nil {
				slog.Error("probe reload failed", "error", err)
				return
			}
			loaded.Append(shapes)
			s.SetObstacles(loaded)
		})
		if err != nil {
			return err
		}
		if err := w.Start(gctx); err != nil {
			return err
		}
		defer w.Stop()
	}

	var loopErr error
	if opts.headless {
		loopErr = runHeadless(gctx, s, cfg.Sim.DT, opts)
	} else {
		loopErr = runWindow(gctx, s, cfg, hub, opts)
	}
	cancel()
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return loopErr
}

// runHeadless steps the simulation until ctx ends or max ticks is reached.
func runHeadless(ctx context.Context, s *sim.Simulation, dt float64, opts runOptions) error {
	slog.Info("starting headless simulation",
		"max_ticks", opts.maxTicks,
		"steps_per_update", opts.stepsPerUpdate,
	)
	for {
		select {
		case <-ctx.Done():
			slog.Info("interrupted", "tick", s.Tick())
			return nil
		default:
		}
		for i := 0; i < opts.stepsPerUpdate; i++ {
			if err := s.Step(dt); err != nil {
				return err
			}
		}
		if opts.maxTicks > 0 && int(s.Tick()) >= opts.maxTicks {
			slog.Info("max ticks reached", "tick", s.Tick())
			return nil
		}
	}
}

// runWindow drives the interactive viewer.
func runWindow(ctx context.Context, s *sim.Simulation, cfg *config.Config, hub *observer.Hub, opts runOptions) error {
	rl.SetConfigFlags(rl.FlagWindowResizable | rl.FlagMsaa4xHint)
	rl.InitWindow(int32(cfg.Screen.Width), int32(cfg.Screen.Height), "Flock")
	defer rl.CloseWindow()

	rl.SetTargetFPS(int32(cfg.Screen.TargetFPS))

	gopts := game.Options{
		StepsPerUpdate: opts.stepsPerUpdate,
		Reload: func() (probes.Set, error) {
			return probes.FromConfig(cfg.Obstacles)
		},
	}
	if hub != nil {
		gopts.Observers = hub.Subscribers
	}
	g := game.NewGame(s, gopts)

	for !rl.WindowShouldClose() && ctx.Err() == nil {
		g.Update()
		g.Draw()

		if opts.maxTicks > 0 && int(g.Tick()) >= opts.maxTicks {
			break
		}
	}
	return nil
}
