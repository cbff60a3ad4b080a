package evolve

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/phil-mansfield/cfdem/lib/coupling"
	"github.com/phil-mansfield/cfdem/lib/errs"
	"github.com/phil-mansfield/cfdem/lib/fluid"
	"github.com/phil-mansfield/cfdem/lib/particles"
	"github.com/phil-mansfield/cfdem/lib/solver"
	"github.com/phil-mansfield/cfdem/lib/timestep"
)

// StepStats describes one step.
type StepStats struct {
	// Step and Time are the scalar state after the step.
	Step     int
	Time, Dt float64

	MAC, Nodal, Diffusion solver.Stats
	Balance               coupling.Balance
	DEM                   particles.AdvanceStats
	// Removed is the number of particles which left the domain.
	Removed int
	// VelocityChange is the relative change of the gas velocity over the
	// step, the norm monitored by steady-state runs.
	VelocityChange float64
	Duration       time.Duration
}

// Step performs one time step: hooks, a regrid if one is due, the time
// step size, coupling and the gas predictor, the MAC projection, advection
// and diffusion, the nodal projection, the particle update, the commit and
// finally any output due at the new step. Each stage completes before the
// next begins.
//
// Steady-state runs don't regrid, write output, or advance the step
// counter and time.
func (sim *Sim) Step(ctx context.Context) (StepStats, error) {
	for i, h := range sim.hooks {
		if err := h(ctx, sim); err != nil {
			return StepStats{}, fmt.Errorf("hook %d failed before step %d: %w",
				i, sim.Scalars.Step+1, err)
		}
	}
	if !sim.Steady && sim.Regridder.Due(sim.Scalars.Step) {
		if err := sim.regrid(ctx); err != nil {
			return StepStats{}, err
		}
	}

	sim.obs.OnStepStart(ctx, sim, sim.Scalars.Step+1)
	start := time.Now()
	st, err := sim.advance(ctx)
	st.Duration = time.Since(start)
	sim.obs.OnStepCompleted(ctx, sim, st, err)
	if err != nil {
		return st, err
	}

	if !sim.Steady {
		if err := sim.writeDue(ctx); err != nil {
			return st, err
		}
	}
	return st, nil
}

// advance performs the physics of a step and commits it.
func (sim *Sim) advance(ctx context.Context) (StepStats, error) {
	st := StepStats{Step: sim.Scalars.Step, Time: sim.Scalars.Time}
	dt, err := sim.computeDt()
	if err != nil {
		return st, err
	}
	st.Dt = dt

	run := &sim.Config.Run
	if run.SolveFluid {
		if err := sim.advanceGas(dt, &st); err != nil {
			return st, err
		}
	} else if sim.coupled() {
		// The particles still feel the frozen gas.
		st.Balance, err = sim.Coupling.Compute(sim.P, sim.Fields,
			sim.Particles, dt)
		if err != nil {
			return st, fmt.Errorf("drag computation failed: %w", err)
		}
	}
	if sim.coupled() {
		if err := sim.advanceParticles(ctx, dt, &st); err != nil {
			return st, err
		}
	}

	sim.Fields.Commit()
	if !sim.Steady {
		sim.Scalars.Step++
		sim.Scalars.Time += dt
	}
	sim.Scalars.Dt = dt
	st.Step, st.Time = sim.Scalars.Step, sim.Scalars.Time
	sim.saveParticles()
	return st, nil
}

// computeDt asks the Time-Step Controller for the next step size.
func (sim *Sim) computeDt() (float64, error) {
	a := fluid.Gather(sim.Fields, sim.VolFrac())
	h := sim.Hierarchy()
	in := timestep.Input{
		Vmax: a.MaxSpeed(), MaxNu: a.MaxNu(), MinRo: a.MinRo(),
		MaxGradP: a.MaxGradP(), Gravity: sim.Config.Gravity(),
		Dx:   h.Levels[h.Finest()].Geom.CellSize(),
		Time: sim.Scalars.Time, StopTime: sim.Config.Run.StopTime,
	}
	if sim.Steady {
		in.StopTime = -1
	}
	return sim.TimeStep.Compute(in)
}

// advanceGas performs stages 4 to 7 of a step on the level 0 gas and
// copies the result to the finer levels.
//
// The gas kernels only run on level 0. Finer levels hold injected copies of
// the level 0 solution and are never advanced on their own.
func (sim *Sim) advanceGas(dt float64, st *StepStats) error {
	vf := sim.VolFrac()
	coupled := sim.coupled()
	if coupled {
		bal, err := sim.Coupling.Compute(sim.P, sim.Fields, sim.Particles, dt)
		if err != nil {
			return fmt.Errorf("drag computation failed: %w", err)
		}
		st.Balance = bal
	}

	a := fluid.Gather(sim.Fields, vf)
	u0 := a.CopyVel()
	ro0 := append([]float64(nil), a.Ro...)
	trac0 := append([]float64(nil), a.Trac...)

	sim.Kernels.Predict(a, u0, dt)
	if coupled {
		a.Scatter(sim.Fields)
		sim.Coupling.Apply(sim.Fields, dt)
		a = fluid.Gather(sim.Fields, vf)
	}

	mac, err := solver.MACProject(a.Dom, solver.MACInput{
		Vel: a.Vel, Ep: a.Ep, Ro: a.Ro, VolFrac: a.VolFrac,
	}, sim.MAC)
	if err != nil {
		return fmt.Errorf("MAC projection failed: %w", err)
	}
	st.MAC = mac.Stats
	for d := 0; d < 3; d++ {
		if err := checkArray(a, "MAC face velocity", mac.Face[d], false); err != nil {
			return err
		}
	}

	fluid.Advect(a, mac, u0, ro0, trac0, dt)
	if !sim.Kernels.ExplicitViscosity {
		st.Diffusion, err = solver.DiffuseImplicit(a.Dom, solver.DiffusionInput{
			Vel: a.Vel, Ep: a.Ep, Ro: a.Ro, Mu: a.Mu, VolFrac: a.VolFrac,
			Dt: dt,
		}, sim.Diffusion)
		if err != nil {
			return fmt.Errorf("diffusion solve failed: %w", err)
		}
	}

	nodal, err := solver.NodalProject(a.Dom, solver.NodalInput{
		Vel: a.Vel, Ep: a.Ep, Ro: a.Ro, VolFrac: a.VolFrac,
	}, sim.Nodal)
	if err != nil {
		return fmt.Errorf("nodal projection failed: %w", err)
	}
	st.Nodal = nodal.Stats
	for d := 0; d < 3; d++ {
		for c := range a.Gp[d] {
			a.Gp[d][c] += nodal.Grad[d][c] / dt
		}
	}
	for c := range a.P {
		a.P[c] += nodal.Cell[c] / dt
	}
	for d := 0; d < 3; d++ {
		if err := checkArray(a, "vel_g", a.Vel[d], true); err != nil {
			return err
		}
	}
	if err := checkArray(a, "p_g", a.P, true); err != nil {
		return err
	}

	st.VelocityChange = fluid.VelocityChange(a.Vel, u0)
	a.Scatter(sim.Fields)
	sim.Fields.SyncFine()
	sim.Fields.FillAll()
	return sim.Fields.CheckFinite()
}

// checkArray returns a NumericalError for the first non-finite value of x.
// Cell arrays report their cell index.
func checkArray(a *fluid.Arrays, quantity string, x []float64, cells bool) error {
	n := a.Dom.N
	for i, v := range x {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			continue
		}
		e := &errs.NumericalError{Quantity: quantity, Level: 0, Box: -1,
			Value: v}
		if cells {
			e.Cell = [3]int{i % n[0], (i / n[0]) % n[1], i / (n[0] * n[1])}
		}
		return e
	}
	return nil
}

// advanceParticles performs stage 8: move the particles, remove those
// which left the domain, move them to their owners and update ep_g.
func (sim *Sim) advanceParticles(
	ctx context.Context, dt float64, st *StepStats,
) error {
	adv, err := sim.Integrator.Advance(sim.Particles, dt)
	st.DEM = adv
	if err != nil {
		return fmt.Errorf("particle update failed: %w", err)
	}

	lev0 := sim.Hierarchy().Levels[0]
	removed, err := sim.Particles.Redistribute(
		particles.NewBoxLocator(lev0), &lev0.Geom)
	if err != nil {
		return fmt.Errorf("could not redistribute particles: %w", err)
	}
	if removed > 0 {
		st.Removed = removed
		sim.Removed += removed
		sim.obs.OnParticlesRemoved(ctx, sim, &errs.DomainViolation{
			Step: sim.Scalars.Step + 1, Removed: removed,
		})
	}

	if sim.Config.Run.SolveFluid {
		err := sim.Coupling.DepositVolume(sim.P, sim.Fields, sim.Particles)
		if err != nil {
			return err
		}
		sim.Fields.SyncFine()
		sim.Fields.FillAll()
	}
	return nil
}

// saveParticles remembers the particles of the committed state for
// emergency checkpoints.
func (sim *Sim) saveParticles() {
	if !sim.Config.Run.CheckpointOnFailure {
		return
	}
	sim.saved = sim.Particles.All()
	sim.savedNextID = sim.Particles.NextID()
}

// restoreCommitted discards a partially completed step.
func (sim *Sim) restoreCommitted() error {
	sim.Fields.Rollback()
	sim.Particles.SetAll(sim.saved)
	sim.Particles.SetNextID(sim.savedNextID)
	lev0 := sim.Hierarchy().Levels[0]
	_, err := sim.Particles.Redistribute(
		particles.NewBoxLocator(lev0), &lev0.Geom)
	return err
}
