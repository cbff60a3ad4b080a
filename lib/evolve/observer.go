package evolve

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/phil-mansfield/cfdem/lib/errs"
	"github.com/phil-mansfield/cfdem/lib/regrid"
)

// Observer receives callbacks from a Sim for logging and metrics.
//
// Callbacks run on the stepping goroutine between stages, so they should
// return quickly.
type Observer interface {
	// OnRunStart is called once by Run, after the initial outputs.
	OnRunStart(ctx context.Context, sim *Sim)
	// OnRunFinished is called when Run terminates normally.
	OnRunFinished(ctx context.Context, sim *Sim, sum Summary)
	// OnRunFailed is called when Run stops on a fatal error.
	OnRunFailed(ctx context.Context, sim *Sim, err error)

	// OnStepStart is called before the stages of a step, after any hooks
	// and regrid.
	OnStepStart(ctx context.Context, sim *Sim, step int)
	// OnStepCompleted is called after a step has been committed or has
	// failed (err != nil).
	OnStepCompleted(ctx context.Context, sim *Sim, st StepStats, err error)

	OnRegrid(ctx context.Context, sim *Sim, st regrid.Stats)
	// OnOutput is called after an output of the given kind was written.
	OnOutput(ctx context.Context, sim *Sim, kind OutputKind, path string)
	// OnParticlesRemoved is called when particles left the domain during a
	// step and were removed.
	OnParticlesRemoved(ctx context.Context, sim *Sim, v *errs.DomainViolation)
}

// OutputKind names the kinds of output a Sim writes.
type OutputKind string

const (
	CheckpointOutput OutputKind = "checkpoint"
	PlotOutput       OutputKind = "plot"
	AsciiOutput      OutputKind = "particle_ascii"
	AverageOutput    OutputKind = "average_regions"
	// EmergencyOutput is a checkpoint of the last committed state written
	// after a fatal error.
	EmergencyOutput OutputKind = "emergency_checkpoint"
)

// NoopObserver is an Observer that does nothing. It's the default.
type NoopObserver struct{}

func (NoopObserver) OnRunStart(ctx context.Context, sim *Sim)                 {}
func (NoopObserver) OnRunFinished(ctx context.Context, sim *Sim, sum Summary) {}
func (NoopObserver) OnRunFailed(ctx context.Context, sim *Sim, err error)     {}
func (NoopObserver) OnStepStart(ctx context.Context, sim *Sim, step int)      {}
func (NoopObserver) OnRegrid(ctx context.Context, sim *Sim, st regrid.Stats)  {}
func (NoopObserver) OnOutput(ctx context.Context, sim *Sim, kind OutputKind, path string) {
}
func (NoopObserver) OnStepCompleted(ctx context.Context, sim *Sim, st StepStats, err error) {
}
func (NoopObserver) OnParticlesRemoved(ctx context.Context, sim *Sim, v *errs.DomainViolation) {
}

// CompositeObserver fans events out to several observers.
type CompositeObserver struct {
	observers []Observer
}

// NewCompositeObserver creates an Observer which forwards events to each
// non-nil observer in obs.
func NewCompositeObserver(obs ...Observer) Observer {
	filtered := make([]Observer, 0, len(obs))
	for _, o := range obs {
		if o != nil {
			filtered = append(filtered, o)
		}
	}
	if len(filtered) == 0 {
		return NoopObserver{}
	}
	if len(filtered) == 1 {
		return filtered[0]
	}
	return &CompositeObserver{observers: filtered}
}

func (c *CompositeObserver) OnRunStart(ctx context.Context, sim *Sim) {
	for _, o := range c.observers {
		o.OnRunStart(ctx, sim)
	}
}

func (c *CompositeObserver) OnRunFinished(ctx context.Context, sim *Sim, sum Summary) {
	for _, o := range c.observers {
		o.OnRunFinished(ctx, sim, sum)
	}
}

func (c *CompositeObserver) OnRunFailed(ctx context.Context, sim *Sim, err error) {
	for _, o := range c.observers {
		o.OnRunFailed(ctx, sim, err)
	}
}

func (c *CompositeObserver) OnStepStart(ctx context.Context, sim *Sim, step int) {
	for _, o := range c.observers {
		o.OnStepStart(ctx, sim, step)
	}
}

func (c *CompositeObserver) OnStepCompleted(ctx context.Context, sim *Sim, st StepStats, err error) {
	for _, o := range c.observers {
		o.OnStepCompleted(ctx, sim, st, err)
	}
}

func (c *CompositeObserver) OnRegrid(ctx context.Context, sim *Sim, st regrid.Stats) {
	for _, o := range c.observers {
		o.OnRegrid(ctx, sim, st)
	}
}

func (c *CompositeObserver) OnOutput(ctx context.Context, sim *Sim, kind OutputKind, path string) {
	for _, o := range c.observers {
		o.OnOutput(ctx, sim, kind, path)
	}
}

func (c *CompositeObserver) OnParticlesRemoved(ctx context.Context, sim *Sim, v *errs.DomainViolation) {
	for _, o := range c.observers {
		o.OnParticlesRemoved(ctx, sim, v)
	}
}

// LoggingObserver writes structured logs with log/slog. Per-step events are
// logged at Debug level unless Verbose is set.
type LoggingObserver struct {
	Logger  *slog.Logger
	Verbose bool
}

// NewLoggingObserver creates a LoggingObserver. If logger is nil,
// slog.Default() is used.
func NewLoggingObserver(logger *slog.Logger, verbose bool) Observer {
	if logger == nil {
		logger = slog.Default()
	}
	return &LoggingObserver{Logger: logger, Verbose: verbose}
}

func (o *LoggingObserver) stepLevel() slog.Level {
	if o.Verbose {
		return slog.LevelInfo
	}
	return slog.LevelDebug
}

func (o *LoggingObserver) OnRunStart(ctx context.Context, sim *Sim) {
	o.Logger.InfoContext(ctx, "run_start",
		slog.Int("step", sim.Scalars.Step),
		slog.Float64("time", sim.Scalars.Time),
		slog.Bool("restarted", sim.Restarted),
		slog.Bool("steady_state", sim.Steady),
		slog.Int("levels", sim.Hierarchy().NumLevels()),
		slog.Int("particles", sim.Particles.Len()),
		slog.Int("ranks", sim.P.Ranks()),
	)
}

func (o *LoggingObserver) OnRunFinished(ctx context.Context, sim *Sim, sum Summary) {
	o.Logger.InfoContext(ctx, "run_finished",
		slog.Int("step", sum.Step),
		slog.Float64("time", sum.Time),
		slog.Int("steps_taken", sum.Steps),
		slog.String("reason", string(sum.Reason)),
		slog.Int("particles_removed", sum.Removed),
		slog.Duration("duration", sum.Duration),
	)
}

func (o *LoggingObserver) OnRunFailed(ctx context.Context, sim *Sim, err error) {
	o.Logger.ErrorContext(ctx, "run_failed",
		slog.Int("step", sim.Scalars.Step),
		slog.Float64("time", sim.Scalars.Time),
		slog.Any("error", err),
	)
}

func (o *LoggingObserver) OnStepStart(ctx context.Context, sim *Sim, step int) {
	o.Logger.DebugContext(ctx, "step_start",
		slog.Int("step", step),
		slog.Float64("time", sim.Scalars.Time),
	)
}

func (o *LoggingObserver) OnStepCompleted(ctx context.Context, sim *Sim, st StepStats, err error) {
	level := o.stepLevel()
	if err != nil {
		level = slog.LevelError
	}
	o.Logger.Log(ctx, level, "step_completed",
		slog.Int("step", st.Step),
		slog.Float64("time", st.Time),
		slog.Float64("dt", st.Dt),
		slog.Int("mac_iterations", st.MAC.Iterations),
		slog.Int("nodal_iterations", st.Nodal.Iterations),
		slog.Int("diffusion_iterations", st.Diffusion.Iterations),
		slog.Float64("drag_residual", st.Balance.Residual()),
		slog.Int("dem_substeps", st.DEM.Substeps),
		slog.Float64("velocity_change", st.VelocityChange),
		slog.Duration("duration", st.Duration),
		slog.Any("error", err),
	)
}

func (o *LoggingObserver) OnRegrid(ctx context.Context, sim *Sim, st regrid.Stats) {
	o.Logger.InfoContext(ctx, "regrid",
		slog.Int("step", sim.Scalars.Step),
		slog.Any("levels", st.Levels),
		slog.Any("boxes", st.Boxes),
		slog.Float64("max_rel_diff", st.Before.MaxRelDiff(st.After)),
		slog.Int("particles_removed", st.Removed),
	)
}

func (o *LoggingObserver) OnOutput(ctx context.Context, sim *Sim, kind OutputKind, path string) {
	o.Logger.InfoContext(ctx, "output",
		slog.String("kind", string(kind)),
		slog.Int("step", sim.Scalars.Step),
		slog.String("path", path),
	)
}

func (o *LoggingObserver) OnParticlesRemoved(ctx context.Context, sim *Sim, v *errs.DomainViolation) {
	o.Logger.WarnContext(ctx, "particles_removed",
		slog.Int("step", v.Step),
		slog.Int("removed", v.Removed),
		slog.Int("total_removed", sim.Removed),
	)
}

// Counters counts run events. It implements Observer and can be combined
// with a LoggingObserver through NewCompositeObserver.
type Counters struct {
	NoopObserver

	steps       atomic.Int64
	failedSteps atomic.Int64
	regrids     atomic.Int64
	checkpoints atomic.Int64
	plots       atomic.Int64
	removed     atomic.Int64
	stepTime    atomic.Int64 // nanoseconds
}

// CountersSnapshot is an immutable copy of Counters.
type CountersSnapshot struct {
	Steps, FailedSteps int64
	Regrids            int64
	Checkpoints, Plots int64
	Removed            int64
	AvgStepDuration    time.Duration
}

func (c *Counters) OnStepCompleted(ctx context.Context, sim *Sim, st StepStats, err error) {
	if err != nil {
		c.failedSteps.Add(1)
		return
	}
	c.steps.Add(1)
	c.stepTime.Add(st.Duration.Nanoseconds())
}

func (c *Counters) OnRegrid(ctx context.Context, sim *Sim, st regrid.Stats) {
	c.regrids.Add(1)
}

func (c *Counters) OnOutput(ctx context.Context, sim *Sim, kind OutputKind, path string) {
	switch kind {
	case CheckpointOutput, EmergencyOutput:
		c.checkpoints.Add(1)
	case PlotOutput:
		c.plots.Add(1)
	}
}

func (c *Counters) OnParticlesRemoved(ctx context.Context, sim *Sim, v *errs.DomainViolation) {
	c.removed.Add(int64(v.Removed))
}

// Snapshot returns the current counts.
func (c *Counters) Snapshot() CountersSnapshot {
	steps := c.steps.Load()
	var avg time.Duration
	if steps > 0 {
		avg = time.Duration(c.stepTime.Load() / steps)
	}
	return CountersSnapshot{
		Steps: steps, FailedSteps: c.failedSteps.Load(),
		Regrids: c.regrids.Load(), Checkpoints: c.checkpoints.Load(),
		Plots: c.plots.Load(), Removed: c.removed.Load(),
		AvgStepDuration: avg,
	}
}
