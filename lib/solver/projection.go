package solver

import (
	"github.com/phil-mansfield/cfdem/lib/grid"
)

// Domain describes the layout of the flat arrays given to the projections:
// one value per level 0 cell, with x varying fastest.
type Domain struct {
	N              [3]int
	Dx             [3]float64
	Faces          [3][2]grid.BC
	InflowVelocity float64
}

// DomainOf returns the Domain of a level's geometry.
func DomainOf(geom *grid.Geometry) Domain {
	return Domain{geom.Domain.Width, geom.CellSize(), geom.Faces,
		geom.InflowVelocity}
}

// Cells returns the number of cells in the domain.
func (dom Domain) Cells() int { return dom.N[0] * dom.N[1] * dom.N[2] }

// PotentialBC maps boundary types onto the conditions of a pressure-like
// potential: outflow faces hold it at zero and every other wall is
// Neumann.
func PotentialBC(faces [3][2]grid.BC) [3][2]FaceBC {
	var bc [3][2]FaceBC
	for d := 0; d < 3; d++ {
		for s := 0; s < 2; s++ {
			switch faces[d][s] {
			case grid.Periodic:
				bc[d][s] = PeriodicFace
			case grid.Outflow:
				bc[d][s] = Dirichlet
			default:
				bc[d][s] = Neumann
			}
		}
	}
	return bc
}

// VelocityBC maps boundary types onto the conditions of a velocity
// component: walls and inflow faces prescribe it and outflow faces are
// Neumann.
func VelocityBC(faces [3][2]grid.BC) [3][2]FaceBC {
	var bc [3][2]FaceBC
	for d := 0; d < 3; d++ {
		for s := 0; s < 2; s++ {
			switch faces[d][s] {
			case grid.Periodic:
				bc[d][s] = PeriodicFace
			case grid.Outflow:
				bc[d][s] = Neumann
			default:
				bc[d][s] = Dirichlet
			}
		}
	}
	return bc
}

// BoundaryVelocity returns component c of the gas velocity prescribed on
// face (d, side).
func (dom Domain) BoundaryVelocity(d, side, c int) float64 {
	if dom.Faces[d][side] != grid.Inflow || c != d {
		return 0
	}
	if side == 0 {
		return dom.InflowVelocity
	}
	return -dom.InflowVelocity
}

// faceCells returns the cells on either side of face f normal to d. Either
// may be -1 on a non-periodic boundary.
func (dom Domain) faceCells(d int, f [3]int) (lo, hi int) {
	n := dom.N
	periodic := dom.Faces[d][0] == grid.Periodic
	l, h := f, f
	l[d]--
	lo, hi = -1, -1
	if l[d] < 0 && periodic {
		l[d] += n[d]
	}
	if h[d] >= n[d] && periodic {
		h[d] -= n[d]
	}
	if l[d] >= 0 {
		lo = CellIdx(n, l[0], l[1], l[2])
	}
	if h[d] < n[d] {
		hi = CellIdx(n, h[0], h[1], h[2])
	}
	return lo, hi
}

// forEachFace calls f on every face normal to d. Along periodic
// dimensions the last face is the same as the first and is skipped.
func (dom Domain) forEachFace(d int, f func(face int, idx [3]int, lo, hi int)) {
	fn := dom.N
	if dom.Faces[d][0] != grid.Periodic {
		fn[d]++
	}
	for k := 0; k < fn[2]; k++ {
		for j := 0; j < fn[1]; j++ {
			for i := 0; i < fn[0]; i++ {
				idx := [3]int{i, j, k}
				lo, hi := dom.faceCells(d, idx)
				f(FaceIdx(dom.N, d, i, j, k), idx, lo, hi)
			}
		}
	}
}

func faceAverage(x []float64, lo, hi int) float64 {
	switch {
	case lo >= 0 && hi >= 0:
		return 0.5 * (x[lo] + x[hi])
	case lo >= 0:
		return x[lo]
	default:
		return x[hi]
	}
}

// aperture is the open fraction of a face: the smaller of the volume
// fractions of its cells.
func aperture(vf []float64, lo, hi int) float64 {
	if vf == nil {
		return 1
	}
	a := 1.0
	if lo >= 0 && vf[lo] < a {
		a = vf[lo]
	}
	if hi >= 0 && vf[hi] < a {
		a = vf[hi]
	}
	return a
}

// MACInput is the cell-centred state projected onto faces.
type MACInput struct {
	Vel    [3][]float64
	Ep, Ro []float64
	// VolFrac may be nil if there are no embedded walls.
	VolFrac []float64
}

// MACResult holds the projected face velocities.
type MACResult struct {
	// Face[d] holds the velocities normal to d, indexed by FaceIdx.
	Face [3][]float64
	// Flux[d] is Face[d] multiplied by the face's open gas fraction.
	Flux  [3][]float64
	Phi   []float64
	Stats Stats
}

// MACProject interpolates cell velocities onto faces and removes the
// divergence of the gas flux ep u across them.
func MACProject(dom Domain, in MACInput, cfg Config) (*MACResult, error) {
	res := &MACResult{}
	var b, epf [3][]float64
	for d := 0; d < 3; d++ {
		nf := FaceCount(dom.N, d)
		res.Face[d], res.Flux[d] = make([]float64, nf), make([]float64, nf)
		b[d], epf[d] = make([]float64, nf), make([]float64, nf)

		dom.forEachFace(d, func(f int, idx [3]int, lo, hi int) {
			a := aperture(in.VolFrac, lo, hi)
			if a == 0 {
				return
			}
			ep := a * faceAverage(in.Ep, lo, hi)
			ro := faceAverage(in.Ro, lo, hi)
			epf[d][f] = ep
			b[d][f] = ep / ro

			switch {
			case lo >= 0 && hi >= 0:
				res.Face[d][f] = faceAverage(in.Vel[d], lo, hi)
			case dom.Faces[d][boundarySide(lo)] == grid.Outflow:
				res.Face[d][f] = faceAverage(in.Vel[d], lo, hi)
			default:
				res.Face[d][f] = dom.BoundaryVelocity(d, boundarySide(lo), d)
			}
		})
	}

	rhs := make([]float64, dom.Cells())
	macDivergence(dom, res.Face, epf, rhs)
	for i := range rhs {
		rhs[i] = -rhs[i]
	}

	op := NewCellOperator(dom.N, dom.Dx, PotentialBC(dom.Faces), nil, b)
	mg := NewMG("mac", op, cfg)
	mg.Krylov = true
	res.Phi = make([]float64, dom.Cells())
	stats, err := mg.Solve(res.Phi, rhs)
	res.Stats = stats
	if err != nil {
		return res, err
	}

	for d := 0; d < 3; d++ {
		inv := 1 / dom.Dx[d]
		dom.forEachFace(d, func(f int, idx [3]int, lo, hi int) {
			if b[d][f] == 0 {
				return
			}
			var grad float64
			switch {
			case lo >= 0 && hi >= 0:
				grad = (res.Phi[hi] - res.Phi[lo]) * inv
			case op.BC[d][boundarySide(lo)] != Dirichlet:
				grad = 0
			case lo >= 0:
				grad = -2 * res.Phi[lo] * inv
			default:
				grad = 2 * res.Phi[hi] * inv
			}
			res.Face[d][f] -= b[d][f] / epf[d][f] * grad
			res.Flux[d][f] = epf[d][f] * res.Face[d][f]
		})
		if dom.Faces[d][0] == grid.Periodic {
			copyPeriodicFaces(dom.N, d, res.Face[d])
			copyPeriodicFaces(dom.N, d, res.Flux[d])
		}
	}
	return res, nil
}

// copyPeriodicFaces copies the first face normal to d onto the last.
func copyPeriodicFaces(n [3]int, d int, x []float64) {
	o1, o2 := (d+1)%3, (d+2)%3
	for a := 0; a < n[o1]; a++ {
		for b := 0; b < n[o2]; b++ {
			var lo, hi [3]int
			lo[o1], lo[o2] = a, b
			hi = lo
			hi[d] = n[d]
			x[FaceIdx(n, d, hi[0], hi[1], hi[2])] =
				x[FaceIdx(n, d, lo[0], lo[1], lo[2])]
		}
	}
}

// boundarySide returns the side of the domain a boundary face is on,
// given the index of the cell below it.
func boundarySide(lo int) int {
	if lo < 0 {
		return 0
	}
	return 1
}

// macDivergence writes the cell-centred divergence of epf * u.
func macDivergence(dom Domain, u, epf [3][]float64, out []float64) {
	for i := range out {
		out[i] = 0
	}
	for d := 0; d < 3; d++ {
		inv := 1 / dom.Dx[d]
		dom.forEachFace(d, func(f int, idx [3]int, lo, hi int) {
			flux := epf[d][f] * u[d][f] * inv
			if lo >= 0 {
				out[lo] += flux
			}
			if hi >= 0 {
				out[hi] -= flux
			}
		})
	}
}

// MACDivergence returns the cell-centred divergence of the face fluxes of
// a MAC projection.
func MACDivergence(dom Domain, res *MACResult) []float64 {
	out := make([]float64, dom.Cells())
	one := [3][]float64{}
	for d := 0; d < 3; d++ {
		one[d] = make([]float64, len(res.Flux[d]))
		for i := range one[d] {
			one[d][i] = 1
		}
	}
	macDivergence(dom, res.Flux, one, out)
	return out
}

// NodalInput is the cell-centred state being projected.
type NodalInput struct {
	// Vel is overwritten with the projected velocity.
	Vel     [3][]float64
	Ep, Ro  []float64
	VolFrac []float64
}

// NodalResult holds the potential of a nodal projection.
type NodalResult struct {
	Phi []float64
	// Grad is the cell-centred gradient of Phi and Cell is its cell
	// average.
	Grad  [3][]float64
	Cell  []float64
	Stats Stats
}

// nodalOperator returns the operator of a nodal projection.
func nodalOperator(dom Domain, in *NodalInput) *NodeOperator {
	sigma := make([]float64, dom.Cells())
	for c := range sigma {
		sigma[c] = in.Ep[c] / in.Ro[c]
		if in.VolFrac != nil {
			sigma[c] *= in.VolFrac[c]
		}
	}
	return NewNodeOperator(dom.N, dom.Dx, PotentialBC(dom.Faces), sigma)
}

// NodalDivergence returns the node-centred divergence of ep u, including
// the gas entering through inflow faces. Nodes fixed by outflow faces are
// zero.
func NodalDivergence(dom Domain, in *NodalInput) []float64 {
	return nodalDivergence(dom, in, nodalOperator(dom, in))
}

func nodalDivergence(dom Domain, in *NodalInput, op *NodeOperator) []float64 {
	n := dom.Cells()
	var flux [3][]float64
	for d := 0; d < 3; d++ {
		flux[d] = make([]float64, n)
		for c := 0; c < n; c++ {
			flux[d][c] = in.Ep[c] * in.Vel[d][c]
			if in.VolFrac != nil {
				flux[d][c] *= in.VolFrac[c]
			}
		}
	}
	div := make([]float64, op.Size())
	op.Divergence(flux, div)

	// Inflow faces carry a known flux which the cell velocities don't
	// see.
	for d := 0; d < 3; d++ {
		for side := 0; side < 2; side++ {
			if dom.Faces[d][side] != grid.Inflow {
				continue
			}
			inward := dom.InflowVelocity
			forEachBoundaryCell(dom.N, d, side, func(c [3]int) {
				idx := CellIdx(dom.N, c[0], c[1], c[2])
				ep := in.Ep[idx]
				if in.VolFrac != nil {
					ep *= in.VolFrac[idx]
				}
				term := -inward * ep / (4 * dom.Dx[d])
				for a := 0; a < 4; a++ {
					node := c
					node[d] += side
					o1, o2 := (d+1)%3, (d+2)%3
					node[o1] += a & 1
					node[o2] += (a >> 1) & 1
					div[op.NodeIdx(node[0], node[1], node[2])] += term
				}
			})
		}
	}

	for i := range div {
		if op.Fixed(i) {
			div[i] = 0
		}
	}
	return div
}

// forEachBoundaryCell calls f on every cell touching face (d, side).
func forEachBoundaryCell(n [3]int, d, side int, f func(c [3]int)) {
	o1, o2 := (d+1)%3, (d+2)%3
	for a := 0; a < n[o1]; a++ {
		for b := 0; b < n[o2]; b++ {
			var c [3]int
			c[o1], c[o2] = a, b
			if side == 1 {
				c[d] = n[d] - 1
			}
			f(c)
		}
	}
}

// NodalProject removes the divergence of ep u from the cell velocities by
// subtracting grad(phi) / ro, where phi lives on nodes. The projection is
// approximate: see NodeOperator. On return, in.Vel holds the projected
// velocity.
func NodalProject(dom Domain, in NodalInput, cfg Config) (*NodalResult, error) {
	op := nodalOperator(dom, &in)
	rhs := nodalDivergence(dom, &in, op)
	for i := range rhs {
		rhs[i] = -rhs[i]
	}

	res := &NodalResult{Phi: make([]float64, op.Size())}
	mg := NewMG("nodal", op, cfg)
	mg.Krylov = true
	stats, err := mg.Solve(res.Phi, rhs)
	res.Stats = stats
	if err != nil {
		return res, err
	}

	n := dom.Cells()
	for d := 0; d < 3; d++ {
		res.Grad[d] = make([]float64, n)
	}
	op.Gradient(res.Phi, res.Grad)
	res.Cell = make([]float64, n)
	op.CellAverage(res.Phi, res.Cell)
	for d := 0; d < 3; d++ {
		for c := 0; c < n; c++ {
			if in.VolFrac != nil && in.VolFrac[c] == 0 {
				in.Vel[d][c] = 0
				continue
			}
			in.Vel[d][c] -= res.Grad[d][c] / in.Ro[c]
		}
	}
	return res, nil
}

// DiffusionInput describes an implicit viscous solve.
type DiffusionInput struct {
	// Vel holds u* on entry and the diffused velocity on return.
	Vel        [3][]float64
	Ep, Ro, Mu []float64
	VolFrac    []float64
	Dt         float64
}

// DiffusionOperator returns the operator alpha u - div(b grad u) with
// alpha = ro ep and b = scale * ep * mu on open faces. If alpha is false
// the operator is the pure viscous term.
func DiffusionOperator(
	dom Domain, ep, ro, mu, vf []float64, scale float64, alpha bool,
) *CellOperator {
	var b [3][]float64
	for d := 0; d < 3; d++ {
		b[d] = make([]float64, FaceCount(dom.N, d))
		dom.forEachFace(d, func(f int, idx [3]int, lo, hi int) {
			a := aperture(vf, lo, hi)
			b[d][f] = scale * a * faceAverage(ep, lo, hi) *
				faceAverage(mu, lo, hi)
		})
	}
	var al []float64
	if alpha {
		al = make([]float64, dom.Cells())
		for c := range al {
			al[c] = ro[c] * ep[c]
			if vf != nil && vf[c] == 0 {
				al[c] = 0
			}
		}
	}
	return NewCellOperator(dom.N, dom.Dx, VelocityBC(dom.Faces), al, b)
}

// DirichletLift returns the contribution of prescribed boundary values of
// velocity component c to A u, which moves to the right hand side of a
// solve.
func DirichletLift(dom Domain, op *CellOperator, c int) []float64 {
	lift := make([]float64, dom.Cells())
	for d := 0; d < 3; d++ {
		inv := 1 / (dom.Dx[d] * dom.Dx[d])
		for side := 0; side < 2; side++ {
			if op.BC[d][side] != Dirichlet {
				continue
			}
			vb := dom.BoundaryVelocity(d, side, c)
			if vb == 0 {
				continue
			}
			forEachBoundaryCell(dom.N, d, side, func(cell [3]int) {
				f := cell
				f[d] += side
				b := op.B[d][FaceIdx(dom.N, d, f[0], f[1], f[2])]
				lift[CellIdx(dom.N, cell[0], cell[1], cell[2])] +=
					2 * inv * b * vb
			})
		}
	}
	return lift
}

// DiffuseImplicit solves (ro ep - dt div(ep mu grad)) u = ro ep u* for
// every velocity component.
func DiffuseImplicit(dom Domain, in DiffusionInput, cfg Config) (Stats, error) {
	op := DiffusionOperator(dom, in.Ep, in.Ro, in.Mu, in.VolFrac, in.Dt, true)
	mg := NewMG("diffusion", op, cfg)

	var total Stats
	rhs := make([]float64, dom.Cells())
	for c := 0; c < 3; c++ {
		lift := DirichletLift(dom, op, c)
		for i := range rhs {
			rhs[i] = op.Alpha[i]*in.Vel[c][i] + lift[i]
		}
		stats, err := mg.Solve(in.Vel[c], rhs)
		total.Iterations += stats.Iterations
		total.Residual = stats.Residual
		total.Target, total.Levels = stats.Target, stats.Levels
		if err != nil {
			return total, err
		}
	}
	return total, nil
}
