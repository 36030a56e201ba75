// Package sim drives the flock: it owns the ECS world, the obstacle index
// and the per-tick pipeline of perception, steering and write-back.
package sim

import (
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/mlange-42/ark/ecs"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/flock/components"
	"github.com/pthm-cable/flock/config"
	"github.com/pthm-cable/flock/probes"
	"github.com/pthm-cable/flock/systems"
	"github.com/pthm-cable/flock/telemetry"
)

var (
	ErrNotBuilt = errors.New("simulation has no obstacle index; call Build first")
	ErrDisposed = errors.New("simulation has been disposed")
	ErrNotGoal  = errors.New("entity is not a live goal")
	ErrNotAgent = errors.New("entity is not a live agent")
)

// FrameSink receives the perception records of every tick. Publish must not
// block and must copy records if it keeps them.
type FrameSink interface {
	Publish(tick int32, simTime float64, records []systems.AgentRecord)
}

// Options configures a Simulation beyond the loaded config.
type Options struct {
	LogStats      bool
	OutputDir     string
	StatsCallback func(telemetry.WindowStats)
	Sink          FrameSink
	// Backend overrides the perception backend chosen from config.
	Backend PerceptionBackend
}

// AgentView is the read-only public view of one agent.
type AgentView struct {
	Entity   ecs.Entity
	ID       uint32
	Position r3.Vec
	Forward  r3.Vec
	Speed    float64
}

// agentSnapshot captures read-only state for the parallel passes.
type agentSnapshot struct {
	Entity ecs.Entity
	State  systems.AgentState
}

// intent captures computed outputs to apply after the parallel phase.
type intent struct {
	State    systems.AgentState
	Collided bool
	Contact  bool
}

// Simulation is a flock of boids steering around a static obstacle set.
// Build must be called before Step; Dispose releases workers and outputs.
// A Simulation is driven from one goroutine; only SetObstacles may be
// called concurrently.
type Simulation struct {
	cfg      config.Config
	steering systems.Steering
	params   systems.PerceptionParams
	rng      *rand.Rand
	runID    string

	world *ecs.World

	agentMapper *ecs.Map5[
		components.Position,
		components.Velocity,
		components.Forward,
		components.Target,
		components.Boid,
	]
	agentFilter *ecs.Filter5[
		components.Position,
		components.Velocity,
		components.Forward,
		components.Target,
		components.Boid,
	]
	goalMapper *ecs.Map2[components.Position, components.Goal]

	// Individual component mappers for lookups
	posMap    *ecs.Map1[components.Position]
	goalMap   *ecs.Map1[components.Goal]
	targetMap *ecs.Map1[components.Target]
	boidMap   *ecs.Map1[components.Boid]

	grid  *systems.Grid
	index atomic.Pointer[systems.ObstacleIndex]

	pendingMu sync.Mutex
	pending   *probes.Set

	pool      *workerPool
	backend   PerceptionBackend
	snapshots []agentSnapshot
	records   []systems.AgentRecord
	intents   []intent

	tick     int32
	simTime  float64
	nextID   uint32
	built    bool
	disposed bool

	// Telemetry
	logStats      bool
	statsCallback func(telemetry.WindowStats)
	sink          FrameSink
	collector     *telemetry.Collector
	bookmarks     *telemetry.BookmarkDetector
	perf          *telemetry.StepTimer
	output        *telemetry.OutputManager
	trajectory    *telemetry.TrajectoryRecorder
}

// New creates a simulation and spawns its agents. The config is copied.
func New(cfg *config.Config, opts Options) (*Simulation, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	c := *cfg
	c.Recompute()

	world := ecs.NewWorld()
	s := &Simulation{
		cfg:      c,
		steering: systems.NewSteering(c.Boids),
		params:   systems.PerceptionParamsFrom(c.Boids),
		rng:      rand.New(rand.NewSource(c.Sim.Seed)),
		runID:    uuid.NewString(),
		world:    world,
		agentMapper: ecs.NewMap5[
			components.Position,
			components.Velocity,
			components.Forward,
			components.Target,
			components.Boid,
		](world),
		agentFilter: ecs.NewFilter5[
			components.Position,
			components.Velocity,
			components.Forward,
			components.Target,
			components.Boid,
		](world),
		goalMapper:    ecs.NewMap2[components.Position, components.Goal](world),
		posMap:        ecs.NewMap1[components.Position](world),
		goalMap:       ecs.NewMap1[components.Goal](world),
		targetMap:     ecs.NewMap1[components.Target](world),
		boidMap:       ecs.NewMap1[components.Boid](world),
		logStats:      opts.LogStats,
		statsCallback: opts.StatsCallback,
		sink:          opts.Sink,
		collector:     telemetry.NewCollector(c.Telemetry.StatsWindow, c.Sim.DT),
		bookmarks:     telemetry.NewBookmarkDetector(10),
		perf:          telemetry.NewStepTimer(c.Telemetry.PerfCollectorWindow),
	}

	s.pool = newWorkerPool(c.Compute.Workers, c.Compute.ParallelThreshold)
	s.backend = opts.Backend
	if s.backend == nil {
		s.backend = newBackend(c.Compute.Backend, s.pool)
	}

	output, err := telemetry.NewOutputManager(opts.OutputDir)
	if err != nil {
		s.pool.stopWorkers()
		return nil, err
	}
	s.output = output
	if err := s.output.WriteConfig(&s.cfg); err != nil {
		slog.Error("failed to write config", "error", err)
	}

	s.trajectory, err = telemetry.NewTrajectoryRecorder(c.Telemetry.Trajectory)
	if err != nil {
		s.pool.stopWorkers()
		_ = s.output.Close()
		return nil, err
	}

	s.spawnInitialFlock()
	return s, nil
}

// Build creates the grid and obstacle index from set. The probe count is
// checked against obstacles.total_obstacle_count.
func (s *Simulation) Build(set probes.Set) error {
	if s.disposed {
		return ErrDisposed
	}
	if s.grid == nil {
		grid, err := systems.NewGrid(s.cfg.Derived.GridCenter, s.cfg.Derived.GridExtent, s.cfg.Grid.VoxelSize)
		if err != nil {
			return fmt.Errorf("building grid: %w", err)
		}
		s.grid = grid
	}
	if err := s.buildIndex(set, s.cfg.Obstacles.TotalObstacleCount); err != nil {
		return err
	}
	s.built = true
	return nil
}

// buildIndex hashes set into a new index and swaps it in on success.
func (s *Simulation) buildIndex(set probes.Set, expected int) error {
	start := time.Now()
	ix, err := systems.BuildObstacleIndex(s.grid, set.Positions, systems.IndexOptions{
		ExpectedCount: expected,
		Layers:        set.Layers,
		Workers:       s.cfg.Compute.BuildWorkers,
	})
	telemetry.ObserveIndexBuild(err, set.Len())
	if err != nil {
		return fmt.Errorf("building obstacle index: %w", err)
	}
	s.index.Store(ix)
	s.collector.RecordIndexBuild()
	slog.Info("obstacle index built",
		"run", s.runID,
		"probes", ix.ProbeCount(),
		"cells", s.grid.TotalCells(),
		"occupied", ix.OccupiedCells(),
		"duration", time.Since(start),
	)
	return nil
}

// SetObstacles queues a new obstacle set. It is hashed at the start of the
// next Step; the declared obstacle count is not enforced for reloads.
// Safe to call from any goroutine.
func (s *Simulation) SetObstacles(set probes.Set) {
	s.pendingMu.Lock()
	s.pending = &set
	s.pendingMu.Unlock()
}

// applyPending rebuilds the index from a queued set, keeping the old index
// when the new set is rejected.
func (s *Simulation) applyPending() {
	s.pendingMu.Lock()
	set := s.pending
	s.pending = nil
	s.pendingMu.Unlock()

	if set == nil {
		return
	}
	if err := s.buildIndex(*set, -1); err != nil {
		slog.Error("obstacle reload rejected, keeping previous index", "error", err)
	}
}

// Dispose stops workers, closes the backend and flushes outputs. The
// simulation cannot be stepped afterwards.
func (s *Simulation) Dispose() {
	if s.disposed {
		return
	}
	s.disposed = true
	s.pool.stopWorkers()
	if err := s.backend.Close(); err != nil {
		slog.Error("failed to close perception backend", "error", err)
	}
	if err := s.trajectory.Close(); err != nil {
		slog.Error("failed to close trajectory", "error", err)
	}
	if err := s.output.Close(); err != nil {
		slog.Error("failed to close output", "error", err)
	}
}

// Tick returns the number of completed steps.
func (s *Simulation) Tick() int32 { return s.tick }

// SimTime returns elapsed simulated seconds.
func (s *Simulation) SimTime() float64 { return s.simTime }

// RunID identifies this simulation in logs and outputs.
func (s *Simulation) RunID() string { return s.runID }

// Config returns a copy of the simulation config.
func (s *Simulation) Config() config.Config { return s.cfg }

// Grid returns the voxel grid, nil before Build.
func (s *Simulation) Grid() *systems.Grid { return s.grid }

// Index returns the current obstacle index, nil before Build.
func (s *Simulation) Index() *systems.ObstacleIndex { return s.index.Load() }

// BackendName reports the active perception backend.
func (s *Simulation) BackendName() string { return s.backend.Name() }

// Perf returns the step timing collector.
func (s *Simulation) Perf() *telemetry.StepTimer { return s.perf }

// Records returns the perception records of the last tick. The slice is
// reused by the next Step.
func (s *Simulation) Records() []systems.AgentRecord { return s.records }

// Agents returns a snapshot of every agent.
func (s *Simulation) Agents() []AgentView {
	views := make([]AgentView, 0, len(s.snapshots))
	query := s.agentFilter.Query()
	for query.Next() {
		pos, vel, fwd, _, boid := query.Get()
		views = append(views, AgentView{
			Entity:   query.Entity(),
			ID:       boid.ID,
			Position: pos.Vec,
			Forward:  fwd.Vec,
			Speed:    r3.Norm(vel.Vec),
		})
	}
	return views
}

// AddGoal creates a goal entity at p.
func (s *Simulation) AddGoal(p r3.Vec) ecs.Entity {
	return s.goalMapper.NewEntity(&components.Position{Vec: p}, &components.Goal{})
}

// MoveGoal relocates a goal.
func (s *Simulation) MoveGoal(goal ecs.Entity, p r3.Vec) error {
	if !s.isGoal(goal) {
		return ErrNotGoal
	}
	s.posMap.Get(goal).Vec = p
	return nil
}

// RemoveGoal deletes a goal. Agents targeting it lose their target.
func (s *Simulation) RemoveGoal(goal ecs.Entity) error {
	if !s.isGoal(goal) {
		return ErrNotGoal
	}
	s.world.RemoveEntity(goal)
	return nil
}

// SetTarget points agent at goal. A zero goal clears the target.
func (s *Simulation) SetTarget(agent, goal ecs.Entity) error {
	if agent.IsZero() || !s.world.Alive(agent) || !s.boidMap.HasAll(agent) {
		return ErrNotAgent
	}
	if !goal.IsZero() && !s.isGoal(goal) {
		return ErrNotGoal
	}
	s.targetMap.Get(agent).Goal = goal
	return nil
}

// SetTargetAll points every agent at goal.
func (s *Simulation) SetTargetAll(goal ecs.Entity) error {
	if !goal.IsZero() && !s.isGoal(goal) {
		return ErrNotGoal
	}
	query := s.agentFilter.Query()
	for query.Next() {
		_, _, _, target, _ := query.Get()
		target.Goal = goal
	}
	return nil
}

func (s *Simulation) isGoal(e ecs.Entity) bool {
	return !e.IsZero() && s.world.Alive(e) && s.goalMap.HasAll(e)
}

// goalPosition resolves a weak goal reference.
func (s *Simulation) goalPosition(e ecs.Entity) (r3.Vec, bool) {
	if !s.isGoal(e) {
		return r3.Vec{}, false
	}
	return s.posMap.Get(e).Vec, true
}
