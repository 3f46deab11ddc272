package engine

import (
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
	"gonum.org/v1/gonum/floats"

	"furnace/heatsource"
	"furnace/material"
	"furnace/mesh"
	"furnace/model"
	"furnace/solver"
)

// Engine owns exactly one run: mesh, material, source model, solver buffers
// and the mutable RunState. Concurrent runs use independent Engine
// instances; nothing here is process-global.

// Options are runtime limits shared by all runs of a Registry.
type Options struct {
	MaxNodes        int        // mesh node ceiling, 0 = default
	Workers         int        // sweep workers per run, 0 = NumCPU
	ProgressRate    rate.Limit // progress emissions per second, 0 = default
	ConvectionCoeff float64    // wall film coefficient, 0 = default
}

const (
	defaultMaxNodes     = 4_000_000
	defaultProgressRate = rate.Limit(10)
)

func (o Options) withDefaults() Options {
	if o.MaxNodes <= 0 {
		o.MaxNodes = defaultMaxNodes
	}
	if o.ProgressRate <= 0 {
		o.ProgressRate = defaultProgressRate
	}
	return o
}

type Engine struct {
	ID  string
	cfg model.SimulationConfig

	mesh *mesh.Mesh
	mat  *material.Material
	src  *heatsource.Model
	sol  *solver.Solver

	mu        sync.Mutex
	state     model.RunState
	progress  model.Progress
	snapshots []model.Snapshot
	failure   string
	minT      float64
	maxT      float64

	// Cooperative cancellation flag owned by this run; checked once per
	// full timestep boundary, never mid-step.
	cancelMu  sync.Mutex
	cancelled bool

	limiter *rate.Limiter
	started time.Time
	done    chan struct{}
}

// New validates the configuration and assembles a run. Any problem is
// reported synchronously as a ConfigError or ResourceLimitError; no
// computation has happened yet.
func New(cfg model.SimulationConfig, lib *material.Library, opts Options) (*Engine, error) {
	opts = opts.withDefaults()

	if err := validate(cfg); err != nil {
		return nil, err
	}

	nr, nz, err := mesh.Resolve(cfg.Mesh)
	if err != nil {
		return nil, err
	}
	if nr*nz > opts.MaxNodes {
		return nil, &model.ResourceLimitError{Nodes: nr * nz, Limit: opts.MaxNodes}
	}
	m, err := mesh.Build(cfg.Geometry.Radius, cfg.Geometry.Height, nr, nz)
	if err != nil {
		return nil, err
	}
	for n, t := range cfg.Torches {
		if !m.Contains(t.Position.R, t.Position.Z) {
			return nil, model.NewConfigError("torches", "torch %d at (%g, %g) lies outside the furnace", n, t.Position.R, t.Position.Z)
		}
	}

	mat, err := lib.Get(cfg.Material.Name)
	if err != nil {
		return nil, err
	}

	src := heatsource.New(cfg.Torches, opts.ConvectionCoeff, cfg.Boundary.AmbientTemperature)
	sol := solver.New(m, mat, src, cfg.Simulation, cfg.Boundary, opts.Workers)

	return &Engine{
		cfg:     cfg,
		mesh:    m,
		mat:     mat,
		src:     src,
		sol:     sol,
		state:   model.StateIdle,
		minT:    cfg.Boundary.InitialTemperature,
		maxT:    cfg.Boundary.InitialTemperature,
		limiter: rate.NewLimiter(opts.ProgressRate, 1),
		done:    make(chan struct{}),
	}, nil
}

func validate(cfg model.SimulationConfig) error {
	if len(cfg.Torches) == 0 {
		return model.NewConfigError("torches", "at least one torch is required")
	}
	for n, t := range cfg.Torches {
		if t.PowerKW <= 0 {
			return model.NewConfigError("torches", "torch %d power must be > 0 kW, got %g", n, t.PowerKW)
		}
		if t.Efficiency < 0 || t.Efficiency > 1 {
			return model.NewConfigError("torches", "torch %d efficiency must be in [0,1], got %g", n, t.Efficiency)
		}
		if t.Sigma <= 0 {
			return model.NewConfigError("torches", "torch %d sigma must be > 0 m, got %g", n, t.Sigma)
		}
	}
	sim := cfg.Simulation
	if sim.TotalTime <= 0 {
		return model.NewConfigError("simulation.total_time", "must be > 0 s, got %g", sim.TotalTime)
	}
	if sim.CFLFactor <= 0 || sim.CFLFactor > 1 {
		return model.NewConfigError("simulation.cfl_factor", "must be in (0,1], got %g", sim.CFLFactor)
	}
	if sim.OutputInterval <= 0 {
		return model.NewConfigError("simulation.output_interval", "must be > 0 s, got %g", sim.OutputInterval)
	}
	if sim.MaxStep < 0 {
		return model.NewConfigError("simulation.max_step", "must be >= 0 s, got %g", sim.MaxStep)
	}
	b := cfg.Boundary
	if b.InitialTemperature < 0 || b.AmbientTemperature < 0 {
		return model.NewConfigError("boundary", "temperatures must be >= 0 K")
	}
	return nil
}

// Start launches the run loop in the background.
func (e *Engine) Start() {
	go e.Run()
}

// Done closes when the run reaches a terminal state.
func (e *Engine) Done() <-chan struct{} { return e.done }

// Run executes the stepping loop to a terminal state. It captures the
// initial field as snapshot zero, then one snapshot per output interval of
// simulated time; dt is clamped so steps land exactly on output boundaries
// and on the total time.
func (e *Engine) Run() {
	defer close(e.done)
	defer e.sol.Close()

	e.mu.Lock()
	e.state = model.StateRunning
	e.started = time.Now()
	e.mu.Unlock()

	logger := log.WithFields(log.Fields{
		"run":      e.ID,
		"material": e.cfg.Material.Name,
		"nr":       e.mesh.NR,
		"nz":       e.mesh.NZ,
	})
	logger.Info("run started")

	total := e.cfg.Simulation.TotalTime
	interval := e.cfg.Simulation.OutputInterval
	// epsilon keeps float accumulation from skipping a boundary snapshot
	eps := total * 1e-12

	e.takeSnapshot()
	nextOutput := interval

	for e.sol.Time() < total-eps {
		if e.isCancelled() {
			e.finish(model.StateCancelled, "")
			logger.WithField("time", e.sol.Time()).Info("run cancelled")
			return
		}

		dt, err := e.sol.StableDt()
		if err != nil {
			e.finish(model.StateFailed, err.Error())
			logger.WithError(err).Error("run failed")
			return
		}
		if remaining := total - e.sol.Time(); dt > remaining {
			dt = remaining
		}
		if toOutput := nextOutput - e.sol.Time(); nextOutput < total && dt > toOutput {
			dt = toOutput
		}

		if err := e.sol.Step(dt); err != nil {
			e.finish(model.StateFailed, err.Error())
			logger.WithError(err).WithField("time", e.sol.Time()).Error("run failed")
			return
		}

		if e.sol.Time() >= nextOutput-eps && nextOutput <= total+eps {
			e.takeSnapshot()
			nextOutput += interval
		}
		e.updateProgress(total)
	}

	// capture the final field when the last interval was partial
	if last := e.snapshots[len(e.snapshots)-1].Time; last < total-eps {
		e.takeSnapshot()
	}

	e.finish(model.StateCompleted, "")
	logger.WithFields(log.Fields{
		"steps":     e.sol.Steps(),
		"snapshots": len(e.snapshots),
	}).Info("run completed")
}

// Cancel requests a cooperative stop. Idempotent; takes effect at the next
// timestep boundary.
func (e *Engine) Cancel() {
	e.cancelMu.Lock()
	e.cancelled = true
	e.cancelMu.Unlock()
}

func (e *Engine) isCancelled() bool {
	e.cancelMu.Lock()
	defer e.cancelMu.Unlock()
	return e.cancelled
}

func (e *Engine) takeSnapshot() {
	grid := e.sol.Grid()
	minT, maxT := e.minT, e.maxT
	for _, row := range grid {
		if v := floats.Min(row); v < minT {
			minT = v
		}
		if v := floats.Max(row); v > maxT {
			maxT = v
		}
	}
	e.mu.Lock()
	e.snapshots = append(e.snapshots, model.Snapshot{Time: e.sol.Time(), Grid: grid})
	e.minT, e.maxT = minT, maxT
	e.mu.Unlock()

	if energy, err := e.sol.TotalEnergy(); err == nil {
		log.WithFields(log.Fields{
			"run":      e.ID,
			"time":     e.sol.Time(),
			"energy_j": energy,
		}).Debug("snapshot taken")
	}
}

// updateProgress refreshes the polled progress at a bounded cadence so a
// fine mesh with micro-steps does not flood the caller.
func (e *Engine) updateProgress(total float64) {
	if !e.limiter.Allow() {
		return
	}
	e.setProgress(total)
}

func (e *Engine) setProgress(total float64) {
	t := e.sol.Time()
	percent := 100 * t / total
	if percent > 100 {
		percent = 100
	}
	var remaining float64
	if percent > 0 {
		elapsed := time.Since(e.started).Seconds()
		remaining = elapsed * (100 - percent) / percent
	}
	e.mu.Lock()
	e.progress = model.Progress{
		Percent:            percent,
		CurrentTime:        t,
		EstimatedRemaining: remaining,
	}
	e.mu.Unlock()
}

func (e *Engine) finish(state model.RunState, failure string) {
	if state == model.StateCompleted {
		e.setProgress(e.cfg.Simulation.TotalTime)
	}
	e.mu.Lock()
	e.state = state
	e.failure = failure
	e.mu.Unlock()
}

// Progress returns the last-known progress and state. Safe at any time.
func (e *Engine) Progress() (model.Progress, model.RunState) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.progress, e.state
}

// Result assembles the terminal output. ErrResultPending until the run
// reaches a terminal state; failed and cancelled runs keep their partial
// snapshot series.
func (e *Engine) Result() (*model.SimulationResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.state.Terminal() {
		return nil, model.ErrResultPending
	}
	snaps := make([]model.Snapshot, len(e.snapshots))
	copy(snaps, e.snapshots)
	return &model.SimulationResult{
		State:     e.state,
		Snapshots: snaps,
		Failure:   e.failure,
		Metadata: model.ResultMetadata{
			Material:       e.cfg.Material.Name,
			Torches:        e.cfg.Torches,
			Geometry:       e.cfg.Geometry,
			MinTemperature: e.minT,
			MaxTemperature: e.maxT,
			NR:             e.mesh.NR,
			NZ:             e.mesh.NZ,
			StepsCompleted: e.sol.Steps(),
		},
	}, nil
}
