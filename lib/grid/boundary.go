package grid

// GhostCell describes a ghost cell which lies outside the domain along at
// least one non-periodic dimension.
type GhostCell struct {
	Cell [3]int
	// Clamp is the nearest cell inside the domain and Mirror is the cell
	// reflected across every crossed face. Both are inside the FAB's box.
	Clamp, Mirror [3]int
	// Crossed[d] is -1 or +1 if the cell is below or above the domain
	// along d, and 0 otherwise.
	Crossed [3]int
}

// ForEachDomainGhost calls fn on every cell of f's box which is outside the
// domain along a non-periodic dimension.
func ForEachDomainGhost(f *FAB, geom *Geometry, fn func(g GhostCell)) {
	lo, hi := geom.Domain.Origin, geom.Domain.Hi()
	blo, bhi := f.Box.Origin, f.Box.Hi()

	f.Box.ForEach(func(i, j, k int) {
		g := GhostCell{Cell: [3]int{i, j, k}}
		outside := false
		for d := 0; d < 3; d++ {
			x := g.Cell[d]
			g.Clamp[d], g.Mirror[d] = x, x
			if geom.IsPeriodic(d) {
				continue
			}
			if x < lo[d] {
				g.Crossed[d] = -1
				g.Clamp[d], g.Mirror[d] = lo[d], 2*lo[d]-1-x
			} else if x >= hi[d] {
				g.Crossed[d] = +1
				g.Clamp[d], g.Mirror[d] = hi[d]-1, 2*hi[d]-1-x
			} else {
				continue
			}
			outside = true
			if g.Mirror[d] < blo[d] {
				g.Mirror[d] = blo[d]
			} else if g.Mirror[d] >= bhi[d] {
				g.Mirror[d] = bhi[d] - 1
			}
		}
		if outside {
			fn(g)
		}
	})
}

// Extrapolate fills every out-of-domain ghost cell with the value of the
// nearest cell inside the domain.
func Extrapolate(mf *MultiFab, geom *Geometry) {
	for _, f := range mf.FABs {
		ForEachDomainGhost(f, geom, func(g GhostCell) {
			for c := 0; c < f.NComp; c++ {
				f.Set(g.Cell[0], g.Cell[1], g.Cell[2], c,
					f.Get(g.Clamp[0], g.Clamp[1], g.Clamp[2], c))
			}
		})
	}
}
