/*package coupling exchanges momentum between the gas and the particles.

Every coupling step is evaluated against a frozen gas field: particles
interpolate the gas state with cloud-in-cell weights, compute their drag
force with a drag.Law, and the negated force is deposited back onto the gas
with the same weights.
*/
package coupling

import (
	"fmt"
	"math"
	"strings"

	"github.com/phil-mansfield/cfdem/lib/config"
	"github.com/phil-mansfield/cfdem/lib/drag"
	"github.com/phil-mansfield/cfdem/lib/fields"
	"github.com/phil-mansfield/cfdem/lib/grid"
	"github.com/phil-mansfield/cfdem/lib/particles"
)

// Mode is the time discretisation of the drag source on the gas.
type Mode int

const (
	// Explicit applies the deposited force directly.
	Explicit Mode = iota
	// Implicit treats the drag on the gas implicitly in the gas velocity.
	Implicit
)

func (m Mode) String() string {
	if m == Implicit {
		return "implicit"
	}
	return "explicit"
}

// Operator computes the drag between the gas and the particles on level 0.
type Operator struct {
	Law  drag.Law
	Mode Mode
	// MinEpg is the floor on gas volume fractions.
	MinEpg float64
	// GP0 is the imposed background pressure gradient.
	GP0 [3]float64
	// Frac returns the fluid fraction of a level 0 cell. May be nil.
	Frac FracFunc
}

// New creates an Operator from the [Drag] section.
func New(c *config.DragConfig, gp0 [3]float64) (*Operator, error) {
	law, err := drag.Lookup(c.Type)
	if err != nil {
		return nil, err
	}
	mode := Explicit
	if strings.EqualFold(c.Coupling, "implicit") {
		mode = Implicit
	}
	return &Operator{Law: law, Mode: mode, MinEpg: c.MinVolumeFraction,
		GP0: gp0}, nil
}

// Balance is the momentum exchanged during one coupling step.
type Balance struct {
	// Particle is dt times the total drag force on the particles.
	Particle [3]float64
	// Field is dt times the total deposited momentum source on the gas.
	// In implicit mode it's computed from the gas velocity before the
	// update.
	Field [3]float64
}

// Residual returns the largest component of Particle + Field.
func (b Balance) Residual() float64 {
	r := 0.0
	for d := 0; d < 3; d++ {
		r = math.Max(r, math.Abs(b.Particle[d]+b.Field[d]))
	}
	return r
}

// Scale returns the largest component of Particle, for building relative
// tolerances.
func (b Balance) Scale() float64 {
	s := 0.0
	for d := 0; d < 3; d++ {
		s = math.Max(s, math.Abs(b.Particle[d]))
	}
	return s
}

// Compute evaluates the drag on every active particle against the current
// level 0 gas state, stores the drag and pressure forces on the particles
// and rebuilds the level 0 drag field. The gas velocity isn't changed; see
// Apply.
func (op *Operator) Compute(
	p grid.Provider, s *fields.State, ps *particles.Container, dt float64,
) (Balance, error) {
	lev := s.Hierarchy().Levels[0]
	geom := &lev.Geom
	for _, v := range []fields.Var{
		fields.VelG, fields.EpG, fields.RoG, fields.MuG, fields.GradP,
	} {
		s.FillPatch(0, v)
	}

	ls := s.Levels[0]
	vel, ep := ls.New[fields.VelG], ls.New[fields.EpG]
	ro, mu, gp := ls.New[fields.RoG], ls.New[fields.MuG], ls.New[fields.GradP]
	dragMF := ls.Drag
	dragMF.SetVal(0)
	vcell := geom.CellVolume()

	bal := Balance{}
	partial := make([][3]float64, ps.NumRanks())
	var err error

	ps.ForEach(func(rank int, part *particles.Particle) {
		if err != nil {
			return
		}
		if part.State != particles.Active {
			part.Drag, part.PressureForce = [3]float64{}, [3]float64{}
			return
		}
		st, ok := NewStencil(geom, lev.BA, part.Pos, op.Frac)
		if !ok {
			err = fmt.Errorf("particle %d at %v is outside every level 0 "+
				"box", part.ID, part.Pos)
			return
		}
		b := st.Box

		epg := math.Max(st.Interpolate(ep.FABs[b], 0), op.MinEpg)
		rog := st.Interpolate(ro.FABs[b], 0)
		mug := st.Interpolate(mu.FABs[b], 0)
		var ug, slip, gradp [3]float64
		for d := 0; d < 3; d++ {
			ug[d] = st.Interpolate(vel.FABs[b], d)
			slip[d] = ug[d] - part.Vel[d]
			gradp[d] = st.Interpolate(gp.FABs[b], d) + op.GP0[d]
		}

		beta := drag.Beta(op.Law, mug, rog, epg, part.Diameter(), slip)
		if beta != beta || math.IsInf(beta, 0) {
			err = fmt.Errorf("drag coefficient of particle %d is %g "+
				"(ep_g = %g, mu_g = %g, ro_g = %g)", part.ID, beta, epg,
				mug, rog)
			return
		}

		for d := 0; d < 3; d++ {
			part.Drag[d] = beta * slip[d]
			part.PressureForce[d] = -part.Volume * gradp[d]
			partial[rank][d] += dt * part.Drag[d]
		}

		f := dragMF.FABs[b]
		switch op.Mode {
		case Explicit:
			for d := 0; d < 3; d++ {
				st.Deposit(f, d, -part.Drag[d]/vcell)
			}
		case Implicit:
			for d := 0; d < 3; d++ {
				st.Deposit(f, fields.DragBetaVX+d, beta*part.Vel[d]/vcell)
			}
			st.Deposit(f, fields.DragBeta, beta/vcell)
		}
	})
	if err != nil {
		return bal, err
	}
	p.SumBoundary(dragMF, geom)

	comm := ps.Comm()
	for d := 0; d < 3; d++ {
		x := make([]float64, ps.NumRanks())
		for r := range x {
			x[r] = partial[r][d]
		}
		bal.Particle[d] = comm.Allreduce_sum(x)
	}
	bal.Field = op.fieldSource(p, s, dt)
	return bal, nil
}

// fieldSource integrates the momentum source of the drag field over the
// domain. In implicit mode the source is evaluated with the current gas
// velocity.
func (op *Operator) fieldSource(
	p grid.Provider, s *fields.State, dt float64,
) [3]float64 {
	ls := s.Levels[0]
	geom := &s.Hierarchy().Levels[0].Geom
	vcell := geom.CellVolume()
	var out [3]float64

	if op.Mode == Explicit {
		for d := 0; d < 3; d++ {
			out[d] = dt * vcell * p.ReduceSum(ls.Drag, d)
		}
		return out
	}

	src := p.Alloc(ls.Drag.BA, ls.Drag.DM, 3, 0)
	for b, f := range ls.Drag.FABs {
		u, g := ls.New[fields.VelG].FABs[b], src.FABs[b]
		f.Valid.ForEach(func(i, j, k int) {
			beta := f.Get(i, j, k, fields.DragBeta)
			for d := 0; d < 3; d++ {
				g.Set(i, j, k, d, f.Get(i, j, k, fields.DragBetaVX+d)-
					beta*u.Get(i, j, k, d))
			}
		})
	}
	for d := 0; d < 3; d++ {
		out[d] = dt * vcell * p.ReduceSum(src, d)
	}
	return out
}

// Apply updates the level 0 gas velocity with the drag field built by the
// last Compute. Explicit mode adds dt F / (ro ep). Implicit mode sets
// u = (ro ep u + dt sum(beta v_p)/V) / (ro ep + dt sum(beta)/V).
func (op *Operator) Apply(s *fields.State, dt float64) {
	ls := s.Levels[0]
	vel, ep, ro := ls.New[fields.VelG], ls.New[fields.EpG], ls.New[fields.RoG]
	for b, f := range ls.Drag.FABs {
		u, e, r := vel.FABs[b], ep.FABs[b], ro.FABs[b]
		f.Valid.ForEach(func(i, j, k int) {
			m := r.Get(i, j, k, 0) * e.Get(i, j, k, 0)
			if op.Mode == Explicit {
				for d := 0; d < 3; d++ {
					u.Add(i, j, k, d, dt*f.Get(i, j, k, d)/m)
				}
				return
			}
			den := m + dt*f.Get(i, j, k, fields.DragBeta)
			for d := 0; d < 3; d++ {
				num := m*u.Get(i, j, k, d) + dt*f.Get(i, j, k, fields.DragBetaVX+d)
				u.Set(i, j, k, d, num/den)
			}
		})
	}
}

// DepositVolume recomputes the level 0 gas volume fraction,
// ep_g = 1 - sum(V_p w) / V_fluid, clamped below at the floor. Exiting
// particles are ignored.
func (op *Operator) DepositVolume(
	p grid.Provider, s *fields.State, ps *particles.Container,
) error {
	lev := s.Hierarchy().Levels[0]
	geom := &lev.Geom
	solid := p.Alloc(lev.BA, lev.DM, 1, 1)

	var err error
	ps.ForEach(func(rank int, part *particles.Particle) {
		if err != nil || part.State == particles.Exiting {
			return
		}
		st, ok := NewStencil(geom, lev.BA, part.Pos, op.Frac)
		if !ok {
			err = fmt.Errorf("particle %d at %v is outside every level 0 "+
				"box", part.ID, part.Pos)
			return
		}
		st.Deposit(solid.FABs[st.Box], 0, part.Volume)
	})
	if err != nil {
		return err
	}
	p.SumBoundary(solid, geom)

	vcell := geom.CellVolume()
	ep := s.Levels[0].New[fields.EpG]
	for b, f := range solid.FABs {
		e := ep.FABs[b]
		f.Valid.ForEach(func(i, j, k int) {
			vf := 1.0
			if op.Frac != nil {
				vf = op.Frac(i, j, k)
			}
			x := 1.0
			if vf > 0 {
				x = 1 - f.Get(i, j, k, 0)/(vcell*vf)
			}
			e.Set(i, j, k, 0, math.Max(x, op.MinEpg))
		})
	}
	return nil
}
