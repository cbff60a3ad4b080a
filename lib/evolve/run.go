package evolve

import (
	"context"
	"fmt"
	"time"

	"github.com/phil-mansfield/cfdem/lib/errs"
	"github.com/phil-mansfield/cfdem/lib/output"
)

// Reason is why a run stopped.
type Reason string

const (
	MaxStepReached     Reason = "max_step"
	StopTimeReached    Reason = "stop_time"
	SteadyStateReached Reason = "steady_state"
	// NotEvolved means the configuration asked for no steps at all.
	NotEvolved Reason = "not_evolved"
	Canceled   Reason = "canceled"
)

// Summary describes a finished run.
type Summary struct {
	// Step and Time are the final scalar state. Steady-state runs report
	// step 1.
	Step int
	Time float64
	// Steps is the number of steps (or steady-state iterations) taken.
	Steps  int
	Reason Reason
	// Removed is the total number of particles removed for leaving the
	// domain.
	Removed        int
	VelocityChange float64
	Duration       time.Duration
}

// Run writes the initial output, steps until the run terminates and writes
// the final output. The context is checked between steps; if it's
// canceled, the final output is still written and the context's error is
// returned.
//
// When a step fails with a fatal error and CheckpointOnFailure is set, the
// last committed state is written as an emergency checkpoint before the
// error is returned.
func (sim *Sim) Run(ctx context.Context) (Summary, error) {
	start := time.Now()
	sum := Summary{}
	if err := sim.writeInitial(ctx); err != nil {
		return sim.fail(ctx, sum, err)
	}
	sim.obs.OnRunStart(ctx, sim)

	var ctxErr error
	if sim.doNotEvolve() {
		sum.Reason = NotEvolved
	}
	for sum.Reason == "" {
		if ctxErr = ctx.Err(); ctxErr != nil {
			sum.Reason = Canceled
			break
		}

		st, err := sim.Step(ctx)
		if err != nil {
			return sim.fail(ctx, sum, err)
		}
		sum.Steps++
		sum.VelocityChange = st.VelocityChange

		if sim.Steady {
			run := &sim.Config.Run
			if st.VelocityChange < run.SteadyStateTol {
				sum.Reason = SteadyStateReached
			} else if sum.Steps >= run.SteadyStateMaxIter {
				return sim.fail(ctx, sum, &errs.ConvergenceError{
					Solver: "steady state", Residual: st.VelocityChange,
					Target: run.SteadyStateTol, Iterations: sum.Steps,
				})
			}
			continue
		}
		sum.Reason = sim.finished()
	}

	if sim.Steady {
		sim.Scalars.Step = 1
	}
	if err := sim.writeFinal(ctx); err != nil {
		return sim.fail(ctx, sum, err)
	}

	sum.Step, sum.Time = sim.Scalars.Step, sim.Scalars.Time
	sum.Removed = sim.Removed
	sum.Duration = time.Since(start)
	sim.obs.OnRunFinished(ctx, sim, sum)
	return sum, ctxErr
}

// doNotEvolve returns true if the configuration asks for no steps: a zero
// step limit, a stop time which has already passed, or neither limit set.
func (sim *Sim) doNotEvolve() bool {
	run := &sim.Config.Run
	if sim.Steady {
		return false
	}
	return run.MaxStep == 0 ||
		(run.StopTime >= 0 && sim.Scalars.Time > run.StopTime) ||
		(run.StopTime <= 0 && run.MaxStep <= 0)
}

// finished returns the reason a time-dependent run should stop after the
// current step, or "" if it should continue. The stop time is reached once
// it is within a tenth of a step.
func (sim *Sim) finished() Reason {
	run := &sim.Config.Run
	sc := &sim.Scalars
	switch {
	case run.StopTime >= 0 && sc.Time+0.1*sc.Dt >= run.StopTime:
		return StopTimeReached
	case run.MaxStep >= 0 && sc.Step >= run.MaxStep:
		return MaxStepReached
	}
	return ""
}

// fail reports err and, if possible, writes an emergency checkpoint.
func (sim *Sim) fail(ctx context.Context, sum Summary, err error) (Summary, error) {
	sim.obs.OnRunFailed(ctx, sim, err)
	sum.Step, sum.Time, sum.Removed = sim.Scalars.Step, sim.Scalars.Time, sim.Removed
	if !sim.Config.Run.CheckpointOnFailure || !sim.consistent ||
		!errs.IsFatal(err) {
		return sum, err
	}
	dir, cerr := sim.emergencyCheckpoint()
	if cerr != nil {
		return sum, fmt.Errorf("%w (emergency checkpoint failed: %v)", err, cerr)
	}
	sim.obs.OnOutput(ctx, sim, EmergencyOutput, dir)
	return sum, err
}

// emergencyCheckpoint writes the last committed state.
func (sim *Sim) emergencyCheckpoint() (string, error) {
	if err := sim.restoreCommitted(); err != nil {
		return "", err
	}
	return sim.Checkpoints.Write(sim.Fields, sim.Particles, sim.Scalars)
}

// outputOrder is the order outputs are written in when several are due.
var outputOrder = []OutputKind{
	PlotOutput, CheckpointOutput, AsciiOutput, AverageOutput,
}

// writeInitial writes the output of the initial state. Plots are written
// for fresh runs, or on restart if PlotfileOnRestart is set. Checkpoints
// are only written for fresh runs.
func (sim *Sim) writeInitial(ctx context.Context) error {
	step := sim.Scalars.Step
	for _, kind := range outputOrder {
		s := sim.schedules[kind]
		if s.Int <= 0 && !s.Steps.Contains(step) {
			continue
		}
		switch {
		case kind == PlotOutput && sim.Restarted &&
			!sim.Config.Output.PlotfileOnRestart:
			continue
		case kind == CheckpointOutput && sim.Restarted:
			continue
		}
		if err := sim.write(ctx, kind); err != nil {
			return err
		}
	}
	return nil
}

// writeDue writes every output scheduled for the current step.
func (sim *Sim) writeDue(ctx context.Context) error {
	for _, kind := range outputOrder {
		if sim.schedules[kind].Due(sim.Scalars.Step) {
			if err := sim.write(ctx, kind); err != nil {
				return err
			}
		}
	}
	return nil
}

// writeFinal writes the checkpoint, plot and particle dump of the final
// state unless they were already written for the final step.
func (sim *Sim) writeFinal(ctx context.Context) error {
	for _, kind := range []OutputKind{
		CheckpointOutput, PlotOutput, AsciiOutput,
	} {
		if sim.schedules[kind].Int <= 0 {
			continue
		}
		if last, ok := sim.last[kind]; ok && last == sim.Scalars.Step {
			continue
		}
		if err := sim.write(ctx, kind); err != nil {
			return err
		}
	}
	return nil
}

// Frame returns the state handed to the output writers.
func (sim *Sim) Frame() output.Frame {
	return output.Frame{
		Step: sim.Scalars.Step, Time: sim.Scalars.Time, Dt: sim.Scalars.Dt,
		Fields: sim.Fields, Particles: sim.Particles, VolFrac: sim.VolFrac(),
	}
}

// write writes one kind of output for the current step.
func (sim *Sim) write(ctx context.Context, kind OutputKind) error {
	var (
		path string
		err  error
	)
	switch kind {
	case CheckpointOutput:
		path, err = sim.Checkpoints.Write(sim.Fields, sim.Particles, sim.Scalars)
	case PlotOutput:
		path, err = sim.Output.WritePlot(sim.Frame())
	case AsciiOutput:
		path, err = sim.Output.WriteParticleAscii(sim.Frame())
	case AverageOutput:
		err = sim.Output.WriteAverages(sim.Frame())
		path = sim.Config.Output.AvgFile
	default:
		return fmt.Errorf("unknown output kind '%s'", kind)
	}
	if err != nil {
		return fmt.Errorf("could not write %s for step %d: %w",
			kind, sim.Scalars.Step, err)
	}
	sim.last[kind] = sim.Scalars.Step
	sim.obs.OnOutput(ctx, sim, kind, path)
	return nil
}
