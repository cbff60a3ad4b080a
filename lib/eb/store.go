package eb

import (
	"math"

	"github.com/phil-mansfield/cfdem/lib/grid"
)

// Level is the embedded boundary of a single grid level. It's immutable
// once built.
type Level struct {
	Shape Shape
	// Geom is the geometry of the level set grid, which may be finer than
	// the level it belongs to.
	Geom grid.Geometry
	// Refinement is the ratio between the level set grid and the level.
	Refinement int
	// Phi is the signed distance sampled at the centres of the level set
	// grid, ghost cells included.
	Phi *grid.MultiFab
	// VolFrac is the fraction of each level cell which is fluid.
	VolFrac *grid.MultiFab
}

// Builder creates the embedded boundary of a level.
type Builder interface {
	Build(
		geom grid.Geometry, ba grid.BoxArray, dm grid.DistributionMap,
		shape Shape,
	) *Level
}

// LevelSetBuilder samples shapes onto level set grids.
type LevelSetBuilder struct {
	P grid.Provider
	// Refinement is the ratio between level set cells and grid cells.
	Refinement int
	// Pad is the number of ghost cells around each level set box.
	Pad int
	// Samples is the number of sub-cell samples along each dimension used
	// to estimate volume fractions.
	Samples int
}

var _ Builder = &LevelSetBuilder{}

// NewLevelSetBuilder returns a builder with the given refinement and
// padding. Values below one are raised to one.
func NewLevelSetBuilder(p grid.Provider, refinement, pad int) *LevelSetBuilder {
	if refinement < 1 {
		refinement = 1
	}
	if pad < 1 {
		pad = 1
	}
	return &LevelSetBuilder{p, refinement, pad, 4}
}

func (b *LevelSetBuilder) Build(
	geom grid.Geometry, ba grid.BoxArray, dm grid.DistributionMap, shape Shape,
) *Level {
	lsGeom := geom.Refine(b.Refinement)
	lev := &Level{
		Shape: shape, Geom: lsGeom, Refinement: b.Refinement,
		Phi:     b.P.Alloc(ba.Refine(b.Refinement), dm, 1, b.Pad),
		VolFrac: b.P.Alloc(ba, dm, 1, 1),
	}

	grid.ParallelFor(len(lev.Phi.FABs), func(n int) {
		f := lev.Phi.FABs[n]
		f.Box.ForEach(func(i, j, k int) {
			f.Set(i, j, k, 0, shape.SignedDistance(lsGeom.CellCenter(i, j, k)))
		})
	})

	dx := geom.CellSize()
	s := b.Samples
	grid.ParallelFor(len(lev.VolFrac.FABs), func(n int) {
		f := lev.VolFrac.FABs[n]
		f.Box.ForEach(func(i, j, k int) {
			c := geom.CellCenter(i, j, k)
			// Cells far from every wall are skipped.
			phi := shape.SignedDistance(c)
			halfDiag := 0.5 * math.Sqrt(dx[0]*dx[0]+dx[1]*dx[1]+dx[2]*dx[2])
			if phi >= halfDiag {
				f.Set(i, j, k, 0, 1)
				return
			} else if phi <= -halfDiag {
				f.Set(i, j, k, 0, 0)
				return
			}

			in := 0
			for si := 0; si < s; si++ {
				for sj := 0; sj < s; sj++ {
					for sk := 0; sk < s; sk++ {
						x := [3]float64{
							c[0] + dx[0]*((float64(si)+0.5)/float64(s)-0.5),
							c[1] + dx[1]*((float64(sj)+0.5)/float64(s)-0.5),
							c[2] + dx[2]*((float64(sk)+0.5)/float64(s)-0.5),
						}
						if shape.SignedDistance(x) > 0 {
							in++
						}
					}
				}
			}
			f.Set(i, j, k, 0, float64(in)/float64(s*s*s))
		})
	})

	return lev
}

// Distance returns the interpolated signed distance at x and the unit
// normal pointing into the fluid. Points outside the level set grid fall
// back to the shape itself.
func (lev *Level) Distance(x [3]float64) (phi float64, normal [3]float64) {
	dx := lev.Geom.CellSize()
	var lo [3]int
	var t [3]float64
	for d := 0; d < 3; d++ {
		u := (x[d]-lev.Geom.ProbLo[d])/dx[d] - 0.5
		fl := math.Floor(u)
		lo[d], t[d] = int(fl), u-fl
	}

	f := lev.stencilFAB(lo)
	if f == nil {
		return lev.shapeDistance(x, dx)
	}

	var corner [2][2][2]float64
	for a := 0; a < 2; a++ {
		for b := 0; b < 2; b++ {
			for c := 0; c < 2; c++ {
				corner[a][b][c] = f.Get(lo[0]+a, lo[1]+b, lo[2]+c, 0)
			}
		}
	}

	w := func(t float64, a int) float64 {
		if a == 0 {
			return 1 - t
		}
		return t
	}
	dw := func(a int) float64 {
		if a == 0 {
			return -1
		}
		return 1
	}

	var grad [3]float64
	for a := 0; a < 2; a++ {
		for b := 0; b < 2; b++ {
			for c := 0; c < 2; c++ {
				v := corner[a][b][c]
				phi += w(t[0], a) * w(t[1], b) * w(t[2], c) * v
				grad[0] += dw(a) * w(t[1], b) * w(t[2], c) * v / dx[0]
				grad[1] += w(t[0], a) * dw(b) * w(t[2], c) * v / dx[1]
				grad[2] += w(t[0], a) * w(t[1], b) * dw(c) * v / dx[2]
			}
		}
	}
	return phi, unit(grad)
}

// stencilFAB returns a FAB containing the 2x2x2 stencil starting at lo.
func (lev *Level) stencilFAB(lo [3]int) *grid.FAB {
	for _, f := range lev.Phi.FABs {
		if f.Box.Contains(lo[0], lo[1], lo[2]) &&
			f.Box.Contains(lo[0]+1, lo[1]+1, lo[2]+1) {
			return f
		}
	}
	return nil
}

func (lev *Level) shapeDistance(x, dx [3]float64) (float64, [3]float64) {
	phi := lev.Shape.SignedDistance(x)
	var grad [3]float64
	for d := 0; d < 3; d++ {
		xp, xm := x, x
		xp[d] += dx[d] / 2
		xm[d] -= dx[d] / 2
		grad[d] = (lev.Shape.SignedDistance(xp) -
			lev.Shape.SignedDistance(xm)) / dx[d]
	}
	return phi, unit(grad)
}

func unit(v [3]float64) [3]float64 {
	n := math.Sqrt(v[0]*v[0] + v[1]*v[1] + v[2]*v[2])
	if n == 0 {
		return [3]float64{}
	}
	return [3]float64{v[0] / n, v[1] / n, v[2] / n}
}

// Store holds the fluid and particle views of the embedded boundary on
// every level. A Store is shared by reference and replaced, never edited,
// when the hierarchy changes.
type Store struct {
	FluidShape, ParticleShape Shape
	Fluid, Particle           []*Level
	valid                     bool
}

// Build creates the store for every level of h.
func Build(b Builder, h *grid.Hierarchy, fluid, particle Shape) *Store {
	s := &Store{FluidShape: fluid, ParticleShape: particle, valid: true}
	s.Fluid = make([]*Level, h.NumLevels())
	s.Particle = make([]*Level, h.NumLevels())
	for l, lev := range h.Levels {
		s.Fluid[l] = b.Build(lev.Geom, lev.BA, lev.DM, fluid)
		if sameShape(fluid, particle) {
			s.Particle[l] = s.Fluid[l]
		} else {
			s.Particle[l] = b.Build(lev.Geom, lev.BA, lev.DM, particle)
		}
	}
	return s
}

func sameShape(a, b Shape) bool {
	if _, ok := a.(Intersection); ok {
		return false
	}
	return a == b
}

// Valid returns false once the store has been invalidated.
func (s *Store) Valid() bool { return s != nil && s.valid }

// Invalidate marks the store as out of date with the hierarchy.
func (s *Store) Invalidate() { s.valid = false }

// HasWalls returns true if the fluid view contains an embedded boundary.
func (s *Store) HasWalls() bool {
	_, none := s.FluidShape.(NoWalls)
	return !none
}

// CellFraction returns the fluid volume fraction of a level 0 cell.
func (s *Store) CellFraction(i, j, k int) float64 {
	for _, f := range s.Fluid[0].VolFrac.FABs {
		if f.Valid.Contains(i, j, k) {
			return f.Get(i, j, k, 0)
		}
	}
	return 1
}
