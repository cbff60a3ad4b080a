/*package fluid contains the default gas-phase kernels: explicit forcing and
viscosity, upwind advection with MAC velocities, and diagnostics. Kernels
work on level 0 fields gathered into flat arrays spanning the domain, which
is the layout the projections in lib/solver use.*/
package fluid

import (
	"math"

	"github.com/phil-mansfield/cfdem/lib/fields"
	"github.com/phil-mansfield/cfdem/lib/grid"
	"github.com/phil-mansfield/cfdem/lib/solver"
)

// Arrays is the level 0 gas state in flat arrays indexed by
// solver.CellIdx.
type Arrays struct {
	Dom     solver.Domain
	Box     grid.Box
	Vel, Gp [3][]float64
	Ep, P   []float64
	Ro      []float64
	Trac    []float64
	Mu      []float64
	// VolFrac is nil when there are no embedded walls.
	VolFrac []float64
}

// Gather copies the new level 0 fields of s into flat arrays. vf is the
// fluid volume fraction of level 0 and may be nil.
func Gather(s *fields.State, vf *grid.MultiFab) *Arrays {
	geom := &s.Hierarchy().Levels[0].Geom
	a := &Arrays{Dom: solver.DomainOf(geom), Box: geom.Domain}
	n := a.Dom.Cells()
	get := func(v fields.Var, c int) []float64 {
		out := make([]float64, n)
		s.Get(0, v).Gather(a.Box, c, out)
		return out
	}
	for d := 0; d < 3; d++ {
		a.Vel[d] = get(fields.VelG, d)
		a.Gp[d] = get(fields.GradP, d)
	}
	a.Ep, a.P = get(fields.EpG, 0), get(fields.PG, 0)
	a.Ro, a.Trac = get(fields.RoG, 0), get(fields.Trac, 0)
	a.Mu = get(fields.MuG, 0)
	if vf != nil {
		a.VolFrac = make([]float64, n)
		vf.Gather(a.Box, 0, a.VolFrac)
	}
	return a
}

// Scatter writes the arrays back into the new level 0 fields of s.
func (a *Arrays) Scatter(s *fields.State) {
	put := func(v fields.Var, c int, x []float64) {
		s.Get(0, v).Scatter(a.Box, c, x)
	}
	for d := 0; d < 3; d++ {
		put(fields.VelG, d, a.Vel[d])
		put(fields.GradP, d, a.Gp[d])
	}
	put(fields.EpG, 0, a.Ep)
	put(fields.PG, 0, a.P)
	put(fields.RoG, 0, a.Ro)
	put(fields.Trac, 0, a.Trac)
	put(fields.MuG, 0, a.Mu)
}

// CopyVel returns a deep copy of the velocity arrays.
func (a *Arrays) CopyVel() [3][]float64 {
	var out [3][]float64
	for d := 0; d < 3; d++ {
		out[d] = append([]float64(nil), a.Vel[d]...)
	}
	return out
}

// Open returns true if cell c contains fluid.
func (a *Arrays) Open(c int) bool { return a.VolFrac == nil || a.VolFrac[c] > 0 }

// MaxSpeed returns the largest velocity component magnitude over open
// cells.
func (a *Arrays) MaxSpeed() float64 {
	max := 0.0
	for d := 0; d < 3; d++ {
		for c, u := range a.Vel[d] {
			if a.Open(c) {
				max = math.Max(max, math.Abs(u))
			}
		}
	}
	return max
}

// MaxNu returns the largest kinematic viscosity mu / ro.
func (a *Arrays) MaxNu() float64 {
	max := 0.0
	for c := range a.Mu {
		if a.Open(c) && a.Ro[c] > 0 {
			max = math.Max(max, a.Mu[c]/a.Ro[c])
		}
	}
	return max
}

// MinRo returns the smallest gas density.
func (a *Arrays) MinRo() float64 {
	min := math.Inf(+1)
	for c := range a.Ro {
		if a.Open(c) {
			min = math.Min(min, a.Ro[c])
		}
	}
	return min
}

// MaxGradP returns the largest magnitude of each pressure gradient
// component.
func (a *Arrays) MaxGradP() [3]float64 {
	var out [3]float64
	for d := 0; d < 3; d++ {
		for c, g := range a.Gp[d] {
			if a.Open(c) {
				out[d] = math.Max(out[d], math.Abs(g))
			}
		}
	}
	return out
}

// VelocityChange returns max|u - old| / max(max|u|, tiny), the norm used to
// detect steady state.
func VelocityChange(u, old [3][]float64) float64 {
	diff, mag := 0.0, 0.0
	for d := 0; d < 3; d++ {
		for c := range u[d] {
			diff = math.Max(diff, math.Abs(u[d][c]-old[d][c]))
			mag = math.Max(mag, math.Abs(u[d][c]))
		}
	}
	return diff / math.Max(mag, 1e-300)
}
