package coupling

import (
	"math"

	"github.com/phil-mansfield/cfdem/lib/grid"
)

// Stencil is the set of cells a particle interpolates from and deposits
// onto, all addressed within the FAB of the box containing the particle.
type Stencil struct {
	Box    int
	Cells  [8][3]int
	Weight [8]float64
}

// FracFunc returns the fluid volume fraction of a cell inside the domain.
type FracFunc func(i, j, k int) float64

// NewStencil returns the cloud-in-cell stencil of a particle at x. Along
// non-periodic dimensions, cells outside the domain are folded onto the
// boundary cell, so weights always sum to one. Cells along periodic
// dimensions may lie outside the domain; they're ghost cells of the box.
// If frac is non-nil, cells with no fluid get no weight and the rest are
// renormalised. ok is false if no box contains x.
func NewStencil(
	geom *grid.Geometry, ba grid.BoxArray, x [3]float64, frac FracFunc,
) (s Stencil, ok bool) {
	c := geom.CellIndex(x)
	s.Box = ba.Locate(c[0], c[1], c[2])
	if s.Box < 0 {
		return s, false
	}

	dx := geom.CellSize()
	lo, hi := geom.Domain.Origin, geom.Domain.Hi()
	var i0 [3]int
	var t [3]float64
	for d := 0; d < 3; d++ {
		u := (x[d]-geom.ProbLo[d])/dx[d] - 0.5
		fl := math.Floor(u)
		i0[d], t[d] = int(fl)+lo[d], u-fl
	}

	n := 0
	for dk := 0; dk < 2; dk++ {
		for dj := 0; dj < 2; dj++ {
			for di := 0; di < 2; di++ {
				off := [3]int{di, dj, dk}
				w := 1.0
				var cell [3]int
				for d := 0; d < 3; d++ {
					cell[d] = i0[d] + off[d]
					if off[d] == 0 {
						w *= 1 - t[d]
					} else {
						w *= t[d]
					}
					if !geom.IsPeriodic(d) {
						if cell[d] < lo[d] {
							cell[d] = lo[d]
						} else if cell[d] >= hi[d] {
							cell[d] = hi[d] - 1
						}
					}
				}
				s.Cells[n], s.Weight[n] = cell, w
				n++
			}
		}
	}

	if frac != nil {
		sum := 0.0
		for n := range s.Cells {
			w := wrapCell(geom, s.Cells[n])
			if frac(w[0], w[1], w[2]) <= 0 {
				s.Weight[n] = 0
			}
			sum += s.Weight[n]
		}
		if sum > 0 {
			for n := range s.Weight {
				s.Weight[n] /= sum
			}
		}
	}
	return s, true
}

// Interpolate returns the weighted sum of component c of f over the
// stencil. f's ghost cells must be filled.
func (s *Stencil) Interpolate(f *grid.FAB, c int) float64 {
	sum := 0.0
	for n := range s.Cells {
		if s.Weight[n] == 0 {
			continue
		}
		sum += s.Weight[n] * f.Get(s.Cells[n][0], s.Cells[n][1], s.Cells[n][2], c)
	}
	return sum
}

// Deposit adds x times each weight to component c of f. Deposits into ghost
// cells must be moved onto their owners with SumBoundary.
func (s *Stencil) Deposit(f *grid.FAB, c int, x float64) {
	for n := range s.Cells {
		if s.Weight[n] == 0 {
			continue
		}
		f.Add(s.Cells[n][0], s.Cells[n][1], s.Cells[n][2], c, s.Weight[n]*x)
	}
}

// wrapCell maps a cell index back into the domain along periodic
// dimensions.
func wrapCell(geom *grid.Geometry, c [3]int) [3]int {
	lo, w := geom.Domain.Origin, geom.Domain.Width
	for d := 0; d < 3; d++ {
		if geom.IsPeriodic(d) {
			c[d] = lo[d] + ((c[d]-lo[d])%w[d]+w[d])%w[d]
		}
	}
	return c
}
