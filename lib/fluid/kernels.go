package fluid

import (
	"math"

	"github.com/phil-mansfield/cfdem/lib/grid"
	"github.com/phil-mansfield/cfdem/lib/solver"
)

// Kernels are the explicit parts of a gas time step.
type Kernels struct {
	Gravity, GP0 [3]float64
	// ExplicitViscosity adds the viscous term in Predict. Otherwise it's
	// left to an implicit diffusion solve.
	ExplicitViscosity bool
}

// Predict advances the velocity by dt under gravity, the pressure gradient
// and, if enabled, explicit viscosity. The forcing is evaluated at u, which
// is normally the velocity at the start of the step.
func (k *Kernels) Predict(a *Arrays, u [3][]float64, dt float64) {
	var visc [3][]float64
	if k.ExplicitViscosity {
		visc = Viscous(a, u)
	}
	for d := 0; d < 3; d++ {
		for c := range a.Vel[d] {
			if !a.Open(c) {
				a.Vel[d][c] = 0
				continue
			}
			f := k.Gravity[d] - (a.Gp[d][c]+k.GP0[d])/a.Ro[c]
			if visc[d] != nil {
				f += visc[d][c]
			}
			a.Vel[d][c] += dt * f
		}
	}
}

// Viscous returns div(ep mu grad u) / (ro ep) for each component of u.
func Viscous(a *Arrays, u [3][]float64) [3][]float64 {
	op := solver.DiffusionOperator(a.Dom, a.Ep, a.Ro, a.Mu, a.VolFrac, 1, false)
	n := a.Dom.Cells()
	var out [3][]float64
	au := make([]float64, n)
	for c := 0; c < 3; c++ {
		out[c] = make([]float64, n)
		op.Apply(u[c], au)
		lift := solver.DirichletLift(a.Dom, op, c)
		for i := range au {
			if !a.Open(i) || a.Ep[i] <= 0 {
				continue
			}
			out[c][i] = (lift[i] - au[i]) / (a.Ro[i] * a.Ep[i])
		}
	}
	return out
}

// Inflow returns the value a transported quantity has in gas entering the
// domain through face (d, side), given the value in the adjacent cell.
type Inflow func(d, side int, cell float64) float64

// Adjacent is an Inflow which uses the adjacent cell's value.
func Adjacent(d, side int, cell float64) float64 { return cell }

// VelocityInflow returns the Inflow of velocity component c.
func VelocityInflow(dom solver.Domain, c int) Inflow {
	return func(d, side int, cell float64) float64 {
		if dom.Faces[d][side] == grid.Inflow {
			return dom.BoundaryVelocity(d, side, c)
		}
		return cell
	}
}

// Convection returns -(u . grad) q using first order upwinding of the MAC
// face fluxes: -(div(F q_up) - q div(F)) / (ep vf).
func Convection(
	a *Arrays, mac *solver.MACResult, q []float64, inflow Inflow,
) []float64 {
	dom := a.Dom
	n := dom.N
	out := make([]float64, dom.Cells())

	for k := 0; k < n[2]; k++ {
		for j := 0; j < n[1]; j++ {
			for i := 0; i < n[0]; i++ {
				c := solver.CellIdx(n, i, j, k)
				if !a.Open(c) {
					continue
				}
				idx := [3]int{i, j, k}
				sum := 0.0
				for d := 0; d < 3; d++ {
					lo, hi := idx, idx
					hi[d]++
					fl := solver.FaceIdx(n, d, lo[0], lo[1], lo[2])
					fh := solver.FaceIdx(n, d, hi[0], hi[1], hi[2])

					ql := upwind(a, mac, q, d, fl, idx, 0, inflow)
					qh := upwind(a, mac, q, d, fh, idx, 1, inflow)
					Fl, Fh := mac.Flux[d][fl], mac.Flux[d][fh]
					sum += (Fh*qh - Fl*ql - q[c]*(Fh-Fl)) / dom.Dx[d]
				}
				ev := a.Ep[c]
				if a.VolFrac != nil {
					ev *= a.VolFrac[c]
				}
				out[c] = -sum / ev
			}
		}
	}
	return out
}

// upwind returns the upwind value of q on the side face of cell idx normal
// to d.
func upwind(
	a *Arrays, mac *solver.MACResult, q []float64,
	d, face int, idx [3]int, side int, inflow Inflow,
) float64 {
	n := a.Dom.N
	c := solver.CellIdx(n, idx[0], idx[1], idx[2])
	u := mac.Face[d][face]
	// Flow leaves cell idx through this face.
	if (side == 1 && u >= 0) || (side == 0 && u <= 0) {
		return q[c]
	}

	nb := idx
	if side == 1 {
		nb[d]++
	} else {
		nb[d]--
	}
	if nb[d] < 0 || nb[d] >= n[d] {
		if a.Dom.Faces[d][0] != grid.Periodic {
			return inflow(d, side, q[c])
		}
		nb[d] = (nb[d] + n[d]) % n[d]
	}
	return q[solver.CellIdx(n, nb[0], nb[1], nb[2])]
}

// Advect moves the velocity, density and tracer by dt using the convection
// of the start-of-step state u0, ro0 and trac0.
func Advect(
	a *Arrays, mac *solver.MACResult, u0 [3][]float64, ro0, trac0 []float64,
	dt float64,
) {
	for c := 0; c < 3; c++ {
		conv := Convection(a, mac, u0[c], VelocityInflow(a.Dom, c))
		for i := range conv {
			a.Vel[c][i] += dt * conv[i]
		}
	}
	conv := Convection(a, mac, ro0, Adjacent)
	for i := range conv {
		a.Ro[i] = ro0[i] + dt*conv[i]
	}
	conv = Convection(a, mac, trac0, func(d, side int, cell float64) float64 {
		return 0
	})
	for i := range conv {
		a.Trac[i] = trac0[i] + dt*conv[i]
	}
}

// Vorticity returns the magnitude of the curl of the velocity, computed
// with central differences. One-sided differences are used next to
// non-periodic faces.
func Vorticity(a *Arrays) []float64 {
	n := a.Dom.N
	out := make([]float64, a.Dom.Cells())
	for k := 0; k < n[2]; k++ {
		for j := 0; j < n[1]; j++ {
			for i := 0; i < n[0]; i++ {
				idx := [3]int{i, j, k}
				var g [3][3]float64 // g[c][d] = du_c/dx_d
				for c := 0; c < 3; c++ {
					for d := 0; d < 3; d++ {
						g[c][d] = derivative(a, a.Vel[c], idx, d)
					}
				}
				wx := g[2][1] - g[1][2]
				wy := g[0][2] - g[2][0]
				wz := g[1][0] - g[0][1]
				out[solver.CellIdx(n, i, j, k)] = math.Sqrt(wx*wx + wy*wy + wz*wz)
			}
		}
	}
	return out
}

// Divergence returns the cell-centred divergence of ep u computed with
// central differences.
func Divergence(a *Arrays) []float64 {
	n := a.Dom.N
	out := make([]float64, a.Dom.Cells())
	var flux [3][]float64
	for d := 0; d < 3; d++ {
		flux[d] = make([]float64, len(a.Ep))
		for c := range flux[d] {
			flux[d][c] = a.Ep[c] * a.Vel[d][c]
		}
	}
	for k := 0; k < n[2]; k++ {
		for j := 0; j < n[1]; j++ {
			for i := 0; i < n[0]; i++ {
				idx := [3]int{i, j, k}
				sum := 0.0
				for d := 0; d < 3; d++ {
					sum += derivative(a, flux[d], idx, d)
				}
				out[solver.CellIdx(n, i, j, k)] = sum
			}
		}
	}
	return out
}

func derivative(a *Arrays, x []float64, idx [3]int, d int) float64 {
	n := a.Dom.N
	lo, hi := idx, idx
	lo[d]--
	hi[d]++
	h := 2 * a.Dom.Dx[d]
	periodic := a.Dom.Faces[d][0] == grid.Periodic
	if lo[d] < 0 {
		if periodic {
			lo[d] += n[d]
		} else {
			lo[d], h = idx[d], a.Dom.Dx[d]
		}
	}
	if hi[d] >= n[d] {
		if periodic {
			hi[d] -= n[d]
		} else {
			hi[d], h = idx[d], a.Dom.Dx[d]
		}
	}
	if lo[d] == hi[d] {
		return 0
	}
	xl := x[solver.CellIdx(n, lo[0], lo[1], lo[2])]
	xh := x[solver.CellIdx(n, hi[0], hi[1], hi[2])]
	return (xh - xl) / h
}
