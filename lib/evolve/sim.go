/*package evolve advances a coupled gas/particle simulation through time.

A Sim owns the grid hierarchy, the embedded boundary, the gas fields and the
particles, and holds one instance of every component which acts on them.
Step performs one strictly ordered time step and Run drives steps until a
termination condition is met, writing checkpoints and diagnostics on the
way. Nothing in this package uses process-wide state: hooks and observers
are handed the *Sim they act on.
*/
package evolve

import (
	"context"
	"fmt"
	"strings"

	"github.com/phil-mansfield/cfdem/lib/catio"
	"github.com/phil-mansfield/cfdem/lib/checkpoint"
	"github.com/phil-mansfield/cfdem/lib/config"
	"github.com/phil-mansfield/cfdem/lib/coupling"
	"github.com/phil-mansfield/cfdem/lib/eb"
	"github.com/phil-mansfield/cfdem/lib/fields"
	"github.com/phil-mansfield/cfdem/lib/fluid"
	"github.com/phil-mansfield/cfdem/lib/grid"
	"github.com/phil-mansfield/cfdem/lib/output"
	"github.com/phil-mansfield/cfdem/lib/particles"
	"github.com/phil-mansfield/cfdem/lib/regrid"
	"github.com/phil-mansfield/cfdem/lib/solver"
	"github.com/phil-mansfield/cfdem/lib/timestep"
)

// Hook is a user function called at the start of every step, before any
// regrid. Returning an error stops the run.
type Hook func(ctx context.Context, sim *Sim) error

// Option configures a Sim in New.
type Option func(*Sim)

// WithObserver adds an observer. Several observers may be added.
func WithObserver(o Observer) Option {
	return func(sim *Sim) { sim.observers = append(sim.observers, o) }
}

// WithHook adds a per-step hook. Hooks run in the order they were added.
func WithHook(h Hook) Option {
	return func(sim *Sim) { sim.hooks = append(sim.hooks, h) }
}

// WithProvider replaces the in-process grid provider built from the [Amr]
// section.
func WithProvider(p grid.Provider) Option {
	return func(sim *Sim) { sim.P = p }
}

// Sim is the live state of a simulation and the components which advance
// it.
type Sim struct {
	Config *config.Config
	P      grid.Provider

	Fields    *fields.State
	EB        *eb.Store
	Particles *particles.Container
	Scalars   checkpoint.Scalars

	// Restarted is true if the state was read from a checkpoint.
	Restarted bool
	// layoutKept is true if a restart reproduced the checkpoint's boxes
	// and owners, which the startup regrid then leaves alone.
	layoutKept bool
	// Steady is true for steady-state runs.
	Steady bool
	// Removed counts the particles removed for leaving the domain.
	Removed int

	Coupling   *coupling.Operator
	Kernels    fluid.Kernels
	TimeStep   *timestep.Controller
	Regridder  *regrid.Manager
	Integrator particles.Integrator
	MAC        solver.Config
	Nodal      solver.Config
	Diffusion  solver.Config

	Checkpoints *checkpoint.Writer
	Catalog     *checkpoint.Catalog
	Output      *output.Writer

	schedules map[OutputKind]output.Schedule
	// last is the last step each kind of output was written for.
	last map[OutputKind]int

	hooks     []Hook
	observers []Observer
	obs       Observer

	// consistent is set once a committed state exists.
	consistent bool
	// saved holds the particles of the last committed state when
	// emergency checkpoints are enabled.
	saved       []particles.Particle
	savedNextID int64
}

// New builds a simulation from a validated configuration: either a fresh
// state with the configured initial conditions or the state of a
// checkpoint. The hierarchy is regridded once, unless a restart kept the
// checkpoint's layout, and the initial projections are performed before New
// returns.
func New(cfg *config.Config, opts ...Option) (*Sim, error) {
	sim := &Sim{
		Config: cfg,
		Steady: cfg.Run.SteadyState,
		last:   map[OutputKind]int{},
	}
	for _, opt := range opts {
		opt(sim)
	}
	sim.obs = NewCompositeObserver(sim.observers...)
	if sim.P == nil {
		sim.P = grid.NewLocal(cfg.Amr.Ranks,
			grid.ParseLoadBalance(cfg.Amr.LoadBalanceType))
	}

	if err := sim.setup(); err != nil {
		sim.Close()
		return nil, err
	}

	geom, err := Geometry(cfg)
	if err != nil {
		sim.Close()
		return nil, err
	}
	if cfg.Run.Restart == "" {
		err = sim.initFresh(geom)
	} else {
		err = sim.initRestart(geom)
	}
	if err != nil {
		sim.Close()
		return nil, err
	}

	ctx := context.Background()
	if !sim.layoutKept {
		if err := sim.regrid(ctx); err != nil {
			sim.Close()
			return nil, err
		}
	}
	if err := sim.postInit(); err != nil {
		sim.Close()
		return nil, err
	}
	sim.consistent = true
	sim.saveParticles()
	return sim, nil
}

// setup creates every component which doesn't depend on the state.
func (sim *Sim) setup() error {
	cfg := sim.Config
	var err error
	sim.Coupling, err = coupling.New(&cfg.Drag, cfg.GP0())
	if err != nil {
		return err
	}
	sim.Kernels = fluid.Kernels{
		Gravity: cfg.Gravity(), GP0: cfg.GP0(),
		ExplicitViscosity: strings.EqualFold(cfg.Run.Diffusion, "explicit"),
	}
	sim.TimeStep = timestep.New(&cfg.TimeStep)
	sim.MAC = solver.NewConfig(&cfg.MacProjection)
	sim.Nodal = solver.NewConfig(&cfg.NodalProjection)
	sim.Diffusion = solver.NewConfig(&cfg.Diffusion)
	sim.Integrator = particles.Integrator{
		Wall: particles.NewWallModel(&cfg.Particles), Gravity: cfg.Gravity(),
	}

	builder := eb.NewLevelSetBuilder(sim.P, cfg.Geometry.LevelSetRefinement,
		cfg.Geometry.LevelSetPad)
	sim.Regridder = regrid.New(sim.P, builder, &cfg.Amr, &cfg.Regrid)

	out := &cfg.Output
	if out.CatalogFile != "" {
		sim.Catalog, err = checkpoint.OpenCatalog(out.CatalogFile)
		if err != nil {
			return fmt.Errorf("could not open checkpoint catalogue: %w", err)
		}
	}
	sim.Checkpoints = checkpoint.NewWriter(out.CheckFile, sim.Catalog)
	sim.Output = output.New(cfg)
	return sim.setupSchedules()
}

func (sim *Sim) setupSchedules() error {
	out := &sim.Config.Output
	sim.schedules = map[OutputKind]output.Schedule{}
	specs := []struct {
		kind     OutputKind
		interval int
		steps    string
		key      string
	}{
		{CheckpointOutput, out.CheckInt, out.CheckSteps, "CheckSteps"},
		{PlotOutput, out.PlotInt, out.PlotSteps, "PlotSteps"},
		{AsciiOutput, out.ParAsciiInt, "", "ParAsciiInt"},
		{AverageOutput, out.AvgInt, "", "AvgInt"},
	}
	for _, sp := range specs {
		s, err := output.NewSchedule(sp.interval, sp.steps)
		if err != nil {
			return fmt.Errorf("[Output] %s: %w", sp.key, err)
		}
		sim.schedules[sp.kind] = s
	}
	if len(sim.Output.Regions) == 0 {
		sim.schedules[AverageOutput] = output.Schedule{}
	}
	return nil
}

// Geometry returns the level 0 geometry described by the configuration.
// Faces along periodic dimensions are periodic regardless of their
// configured type.
func Geometry(cfg *config.Config) (grid.Geometry, error) {
	var faces [3][2]grid.BC
	periodic := cfg.Periodic()
	names := cfg.Faces()
	for d := 0; d < 3; d++ {
		for side := 0; side < 2; side++ {
			if periodic[d] {
				faces[d][side] = grid.Periodic
				continue
			}
			bc, ok := grid.ParseBC(names[d][side])
			if !ok || bc == grid.Periodic {
				return grid.Geometry{}, fmt.Errorf("face %d/%d of the "+
					"domain has boundary type '%s'", d, side, names[d][side])
			}
			faces[d][side] = bc
		}
	}
	geom := grid.NewGeometry(cfg.NCell(), cfg.ProbLo(), cfg.ProbHi(), faces)
	geom.InflowVelocity = cfg.Domain.InflowVelocity
	return geom, nil
}

// Hierarchy returns the live grid hierarchy.
func (sim *Sim) Hierarchy() *grid.Hierarchy { return sim.Fields.Hierarchy() }

// VolFrac returns the level 0 fluid volume fraction, or nil if there are no
// embedded walls.
func (sim *Sim) VolFrac() *grid.MultiFab {
	if !sim.EB.HasWalls() {
		return nil
	}
	return sim.EB.Fluid[0].VolFrac
}

// buildEB builds the embedded boundary on the current hierarchy.
func (sim *Sim) buildEB() {
	g := &sim.Config.Geometry
	fluidShape := eb.FromConfig(g)
	lev0 := sim.Hierarchy().Levels[0]
	partShape := eb.ParticleShape(fluidShape, &lev0.Geom, g.InflowWalls)
	sim.EB = eb.Build(sim.Regridder.Builder, sim.Hierarchy(),
		fluidShape, partShape)
	sim.wire()
}

// wire points the components which hold geometry at the current hierarchy
// and embedded boundary.
func (sim *Sim) wire() {
	sim.Coupling.Frac = nil
	if sim.EB.HasWalls() {
		sim.Coupling.Frac = sim.EB.CellFraction
	}
	lev0 := sim.Hierarchy().Levels[0]
	sim.Integrator.Geom = lev0.Geom
	sim.Integrator.Walls = nil
	if _, none := sim.EB.ParticleShape.(eb.NoWalls); !none {
		sim.Integrator.Walls = sim.EB.Particle[0]
	}
}

func (sim *Sim) initFresh(geom grid.Geometry) error {
	amr := &sim.Config.Amr
	h := grid.NewHierarchy(sim.P, geom, amr.MaxGridSize, amr.BlockingFactor,
		amr.RefRatio, amr.MaxLevel)
	sim.Fields = fields.New(sim.P, h)
	sim.buildEB()

	if err := sim.initParticles(); err != nil {
		return err
	}
	return sim.initFields()
}

// initParticles creates the initial particles from an input deck or the
// lattice generator.
func (sim *Sim) initParticles() error {
	pc := &sim.Config.Particles
	sim.Particles = particles.NewContainer(sim.P.Comm(), pc.RemoveOutOfRange)
	if !sim.Config.Run.SolveDEM {
		return nil
	}

	lev0 := sim.Hierarchy().Levels[0]
	var ps []particles.Particle
	switch strings.ToLower(pc.InitType) {
	case "file":
		var err error
		ps, err = catio.ReadParticleFile(pc.InputFile)
		if err != nil {
			return fmt.Errorf("could not read particle input: %w", err)
		}
	case "auto":
		ps = particles.NewGenerator(pc).Generate(&lev0.Geom,
			sim.EB.Particle[0])
	}
	for i := range ps {
		sim.Particles.Add(0, ps[i])
	}

	removed, err := sim.Particles.Redistribute(
		particles.NewBoxLocator(lev0), &lev0.Geom)
	if err != nil {
		return fmt.Errorf("could not distribute initial particles: %w", err)
	}
	sim.Removed += removed
	return nil
}

// initFields sets the initial conditions of the gas.
func (sim *Sim) initFields() error {
	run := &sim.Config.Run
	ls := sim.Fields.Levels[0]
	for d, u := range [3]float64{run.IcU, run.IcV, run.IcW} {
		ls.New[fields.VelG].SetComp(d, u)
	}
	ls.New[fields.RoG].SetVal(run.RoG)
	ls.New[fields.MuG].SetVal(run.MuG)
	ls.New[fields.EpG].SetVal(1)
	ls.New[fields.PG].SetVal(0)
	ls.New[fields.GradP].SetVal(0)
	ls.New[fields.Trac].SetVal(0)

	if sim.coupled() {
		if err := sim.Coupling.DepositVolume(sim.P, sim.Fields,
			sim.Particles); err != nil {
			return err
		}
	}
	sim.Fields.SyncFine()
	sim.Fields.FillAll()
	sim.Fields.Commit()
	return nil
}

func (sim *Sim) initRestart(geom grid.Geometry) error {
	cfg := sim.Config
	dir, err := checkpoint.Resolve(cfg.Run.Restart, sim.Catalog)
	if err != nil {
		return err
	}
	policy, err := checkpoint.ParsePolicy(cfg.Domain.ReplicationBCPolicy)
	if err != nil {
		return err
	}
	snap, err := checkpoint.Restart(dir, sim.P, checkpoint.Options{
		Expect:           &geom,
		Replication:      cfg.Replication(),
		Policy:           policy,
		RemoveOutOfRange: cfg.Particles.RemoveOutOfRange,
	})
	if err != nil {
		return err
	}

	sim.Fields, sim.Particles = snap.Fields, snap.Particles
	sim.Scalars = snap.Scalars
	sim.Restarted = true
	sim.layoutKept = snap.LayoutKept
	// Level sets are never read from checkpoints, so replicated and
	// plain restarts both build them here.
	sim.buildEB()
	return nil
}

// coupled returns true if drag between the phases must be computed.
func (sim *Sim) coupled() bool {
	return sim.Config.Run.SolveDEM && sim.Particles.Len() > 0
}

// postInit performs the initial projection and pressure iterations of a
// fresh run.
func (sim *Sim) postInit() error {
	run := &sim.Config.Run
	if !run.SolveFluid || sim.Restarted {
		return nil
	}
	if run.DoInitialProj {
		if err := sim.initialProjection(); err != nil {
			return fmt.Errorf("initial projection failed: %w", err)
		}
	}
	for it := 0; it < run.InitialIterations; it++ {
		if err := sim.initialIteration(); err != nil {
			return fmt.Errorf("initial iteration %d failed: %w", it, err)
		}
	}
	sim.Fields.Commit()
	return nil
}

// initialProjection makes the initial velocity divergence free. The
// potential of this projection isn't a pressure, so p_g and gp stay zero.
func (sim *Sim) initialProjection() error {
	a := fluid.Gather(sim.Fields, sim.VolFrac())
	_, err := solver.NodalProject(a.Dom, solver.NodalInput{
		Vel: a.Vel, Ep: a.Ep, Ro: a.Ro, VolFrac: a.VolFrac,
	}, sim.Nodal)
	if err != nil {
		return err
	}
	for c := range a.P {
		a.P[c] = 0
	}
	for d := 0; d < 3; d++ {
		for c := range a.Gp[d] {
			a.Gp[d][c] = 0
		}
	}
	a.Scatter(sim.Fields)
	sim.Fields.SyncFine()
	sim.Fields.FillAll()
	return sim.Fields.CheckFinite()
}

// initialIteration performs one gas step to find a pressure consistent
// with the initial velocity, then restores everything but the pressure.
func (sim *Sim) initialIteration() error {
	dt, err := sim.computeDt()
	if err != nil {
		return err
	}
	keep := fluid.Gather(sim.Fields, sim.VolFrac())
	var st StepStats
	if err := sim.advanceGas(dt, &st); err != nil {
		return err
	}
	got := fluid.Gather(sim.Fields, sim.VolFrac())
	keep.P, keep.Gp = got.P, got.Gp
	keep.Scatter(sim.Fields)
	sim.Fields.SyncFine()
	sim.Fields.FillAll()
	return nil
}

// regrid moves the state onto a new hierarchy.
func (sim *Sim) regrid(ctx context.Context) error {
	res, err := sim.Regridder.Regrid(regrid.Input{
		Fields: sim.Fields, EB: sim.EB, Particles: sim.Particles,
	})
	if err != nil {
		return fmt.Errorf("regrid at step %d failed: %w", sim.Scalars.Step, err)
	}
	sim.Fields, sim.EB = res.Fields, res.EB
	sim.wire()
	sim.Removed += res.Stats.Removed
	sim.obs.OnRegrid(ctx, sim, res.Stats)
	return nil
}

// Close releases the files held by the simulation.
func (sim *Sim) Close() error {
	var first error
	if sim.Output != nil {
		first = sim.Output.Close()
	}
	if sim.Catalog != nil {
		if err := sim.Catalog.Close(); err != nil && first == nil {
			first = err
		}
		sim.Catalog = nil
	}
	return first
}
