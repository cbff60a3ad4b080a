package grid

import (
	"math"
	"strings"
)

// BC is the boundary type of one face of the domain.
type BC int

const (
	Periodic BC = iota
	// Wall is a no-slip wall.
	Wall
	// Inflow is a face with a prescribed inward gas velocity.
	Inflow
	// Outflow is a face with a prescribed (zero) pressure.
	Outflow
)

func (bc BC) String() string {
	switch bc {
	case Periodic:
		return "periodic"
	case Wall:
		return "wall"
	case Inflow:
		return "inflow"
	case Outflow:
		return "outflow"
	}
	return "unknown"
}

// ParseBC converts a configuration name into a BC.
func ParseBC(name string) (BC, bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "periodic":
		return Periodic, true
	case "wall":
		return Wall, true
	case "inflow":
		return Inflow, true
	case "outflow":
		return Outflow, true
	}
	return Wall, false
}

// Geometry maps a box of cell indices onto a physical region.
type Geometry struct {
	Domain         Box
	ProbLo, ProbHi [3]float64
	// Faces[d][0] and Faces[d][1] are the lower and upper faces along d.
	Faces [3][2]BC
	// InflowVelocity is the speed of gas entering through Inflow faces.
	InflowVelocity float64
}

// NewGeometry creates a geometry with n cells covering [lo, hi).
func NewGeometry(n [3]int, lo, hi [3]float64, faces [3][2]BC) Geometry {
	return Geometry{NewBox([3]int{}, n), lo, hi, faces, 0}
}

// IsPeriodic returns true if the domain is periodic along dimension d.
func (g *Geometry) IsPeriodic(d int) bool { return g.Faces[d][0] == Periodic }

// Periodicity returns the periodicity of every dimension.
func (g *Geometry) Periodicity() [3]bool {
	return [3]bool{g.IsPeriodic(0), g.IsPeriodic(1), g.IsPeriodic(2)}
}

// Length returns the physical width of the domain.
func (g *Geometry) Length() [3]float64 {
	return [3]float64{g.ProbHi[0] - g.ProbLo[0], g.ProbHi[1] - g.ProbLo[1],
		g.ProbHi[2] - g.ProbLo[2]}
}

// CellSize returns the physical width of a cell.
func (g *Geometry) CellSize() [3]float64 {
	L := g.Length()
	var dx [3]float64
	for d := 0; d < 3; d++ {
		dx[d] = L[d] / float64(g.Domain.Width[d])
	}
	return dx
}

// MinCellSize returns the smallest cell width.
func (g *Geometry) MinCellSize() float64 {
	dx := g.CellSize()
	return math.Min(dx[0], math.Min(dx[1], dx[2]))
}

// CellVolume returns the physical volume of a cell.
func (g *Geometry) CellVolume() float64 {
	dx := g.CellSize()
	return dx[0] * dx[1] * dx[2]
}

// CellCenter returns the physical location of the center of a cell.
func (g *Geometry) CellCenter(i, j, k int) [3]float64 {
	dx := g.CellSize()
	idx := [3]int{i, j, k}
	var x [3]float64
	for d := 0; d < 3; d++ {
		x[d] = g.ProbLo[d] + (float64(idx[d])+0.5)*dx[d]
	}
	return x
}

// CellIndex returns the cell containing a physical point. The point is not
// required to be inside the domain.
func (g *Geometry) CellIndex(x [3]float64) [3]int {
	dx := g.CellSize()
	var c [3]int
	for d := 0; d < 3; d++ {
		c[d] = int(math.Floor((x[d] - g.ProbLo[d]) / dx[d]))
	}
	return c
}

// InDomain returns true if x is inside the physical domain.
func (g *Geometry) InDomain(x [3]float64) bool {
	for d := 0; d < 3; d++ {
		if x[d] < g.ProbLo[d] || x[d] >= g.ProbHi[d] {
			return false
		}
	}
	return true
}

// Wrap maps x back into the domain along periodic dimensions.
func (g *Geometry) Wrap(x [3]float64) [3]float64 {
	L := g.Length()
	for d := 0; d < 3; d++ {
		if !g.IsPeriodic(d) {
			continue
		}
		for x[d] < g.ProbLo[d] {
			x[d] += L[d]
		}
		for x[d] >= g.ProbHi[d] {
			x[d] -= L[d]
		}
	}
	return x
}

// Refine returns the geometry of the same region with r times as many cells.
func (g *Geometry) Refine(r int) Geometry {
	out := *g
	out.Domain = g.Domain.Refine(r)
	return out
}

// PeriodicShifts returns every translation (in cells) by which periodic
// images of the domain are offset, including the zero shift.
func (g *Geometry) PeriodicShifts() [][3]int {
	shifts := [][3]int{{0, 0, 0}}
	for d := 0; d < 3; d++ {
		if !g.IsPeriodic(d) {
			continue
		}
		n := len(shifts)
		for s := 0; s < n; s++ {
			for _, sign := range []int{-1, +1} {
				sh := shifts[s]
				sh[d] += sign * g.Domain.Width[d]
				shifts = append(shifts, sh)
			}
		}
	}
	return shifts
}
