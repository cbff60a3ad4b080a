/*package fields holds the gas-phase field state of every level of the grid
hierarchy. Each persisted field has a "new" copy, which is written during a
step, and an "old" copy holding the last committed state. Commit is the only
thing which moves new data into the old copies.
*/
package fields

import (
	"fmt"

	"github.com/phil-mansfield/cfdem/lib/grid"
)

// NGhost is the number of ghost cells carried by every persisted field.
const NGhost = 4

// Var enumerates the persisted fields. The order is the order they're
// written to checkpoints.
type Var int

const (
	VelG Var = iota
	GradP
	EpG
	PG
	RoG
	Trac
	MuG
	NumVars
)

var varNames = [NumVars]string{"vel_g", "gp", "ep_g", "p_g", "ro_g", "trac",
	"mu_g"}
var varComps = [NumVars]int{3, 3, 1, 1, 1, 1, 1}

func (v Var) String() string { return varNames[v] }

// NComp returns the number of components of the field.
func (v Var) NComp() int { return varComps[v] }

// ParseVar returns the Var with the given name.
func ParseVar(name string) (Var, error) {
	for v := Var(0); v < NumVars; v++ {
		if varNames[v] == name {
			return v, nil
		}
	}
	return 0, fmt.Errorf("'%s' is not a field name", name)
}

// Drag field components: the deposited beta * v_p and beta sums.
const (
	DragBetaVX = iota
	DragBetaVY
	DragBetaVZ
	DragBeta
	DragComps
)

// LevelState is the field state of a single level.
type LevelState struct {
	New, Old [NumVars]*grid.MultiFab
	// Drag is rebuilt every coupling step and never persisted.
	Drag *grid.MultiFab
	// Vort and Diveu are diagnostics.
	Vort, Diveu *grid.MultiFab
}

func newLevelState(p grid.Provider, lev *grid.Level) *LevelState {
	ls := &LevelState{}
	for v := Var(0); v < NumVars; v++ {
		ls.New[v] = p.Alloc(lev.BA, lev.DM, v.NComp(), NGhost)
		ls.Old[v] = p.Alloc(lev.BA, lev.DM, v.NComp(), NGhost)
	}
	ls.Drag = p.Alloc(lev.BA, lev.DM, DragComps, 1)
	ls.Vort = p.Alloc(lev.BA, lev.DM, 1, 0)
	ls.Diveu = p.Alloc(lev.BA, lev.DM, 1, 0)
	return ls
}

// State is the field state of the whole hierarchy.
type State struct {
	Levels []*LevelState
	p      grid.Provider
	h      *grid.Hierarchy
}

// New allocates zeroed fields on every level of h.
func New(p grid.Provider, h *grid.Hierarchy) *State {
	s := &State{make([]*LevelState, h.NumLevels()), p, h}
	for l, lev := range h.Levels {
		s.Levels[l] = newLevelState(p, lev)
	}
	return s
}

// Hierarchy returns the hierarchy the fields are defined on.
func (s *State) Hierarchy() *grid.Hierarchy { return s.h }

// Get returns the new copy of a field.
func (s *State) Get(lev int, v Var) *grid.MultiFab { return s.Levels[lev].New[v] }

// Old returns the old copy of a field.
func (s *State) Old(lev int, v Var) *grid.MultiFab { return s.Levels[lev].Old[v] }

// Commit copies every new field into its old copy.
func (s *State) Commit() {
	for _, ls := range s.Levels {
		for v := Var(0); v < NumVars; v++ {
			ls.Old[v].CopyFrom(ls.New[v])
		}
	}
}

// Rollback discards the new copies, restoring the last committed state.
func (s *State) Rollback() {
	for _, ls := range s.Levels {
		for v := Var(0); v < NumVars; v++ {
			ls.New[v].CopyFrom(ls.Old[v])
		}
	}
}

// CheckFinite returns an errs.NumericalError for the first non-finite value
// in any new field.
func (s *State) CheckFinite() error {
	for l, ls := range s.Levels {
		for v := Var(0); v < NumVars; v++ {
			if err := ls.New[v].CheckFinite(v.String(), l); err != nil {
				return err
			}
		}
	}
	return nil
}

// FillPatch fills every ghost cell of the new copy of v on level lev:
// from the coarser level where the level has no data, from neighbouring
// boxes, and from the boundary conditions outside the domain.
func (s *State) FillPatch(lev int, v Var) {
	mf := s.Levels[lev].New[v]
	geom := &s.h.Levels[lev].Geom
	if lev > 0 {
		fillGhostsFromCoarse(mf, s.Levels[lev-1].New[v], s.h.RefRatio, geom)
	}
	s.p.FillBoundary(mf, geom)
	if v == VelG {
		fillVelocityBC(mf, geom)
	} else {
		grid.Extrapolate(mf, geom)
	}
}

// FillAll calls FillPatch on every field of every level.
func (s *State) FillAll() {
	for l := range s.Levels {
		for v := Var(0); v < NumVars; v++ {
			s.FillPatch(l, v)
		}
	}
}

// fillVelocityBC applies no-slip walls, prescribed inflow and zero-gradient
// outflow to the ghost cells of a velocity field.
func fillVelocityBC(mf *grid.MultiFab, geom *grid.Geometry) {
	for _, f := range mf.FABs {
		grid.ForEachDomainGhost(f, geom, func(g grid.GhostCell) {
			for c := 0; c < 3; c++ {
				x := f.Get(g.Mirror[0], g.Mirror[1], g.Mirror[2], c)
				for d := 0; d < 3; d++ {
					if g.Crossed[d] == 0 {
						continue
					}
					side := 0
					if g.Crossed[d] > 0 {
						side = 1
					}
					switch geom.Faces[d][side] {
					case grid.Wall:
						x = -x
					case grid.Inflow:
						if c == d {
							// Inflow points into the domain.
							vin := -float64(g.Crossed[d]) * geom.InflowVelocity
							x = 2*vin - x
						} else {
							x = -x
						}
					case grid.Outflow:
						x = f.Get(g.Clamp[0], g.Clamp[1], g.Clamp[2], c)
					}
				}
				f.Set(g.Cell[0], g.Cell[1], g.Cell[2], c, x)
			}
		})
	}
}

// fillGhostsFromCoarse copies the coarse value under every in-domain ghost
// cell of fine. Ghost cells which overlap fine boxes are overwritten by
// FillBoundary afterwards.
func fillGhostsFromCoarse(
	fine, coarse *grid.MultiFab, ratio int, geom *grid.Geometry,
) {
	cdomain := geom.Domain.Coarsen(ratio)
	for _, f := range fine.FABs {
		f.Box.ForEach(func(i, j, k int) {
			if f.Valid.Contains(i, j, k) || !geom.Domain.Contains(i, j, k) {
				return
			}
			ci := [3]int{floorDiv(i, ratio), floorDiv(j, ratio),
				floorDiv(k, ratio)}
			if !cdomain.Contains(ci[0], ci[1], ci[2]) {
				return
			}
			for _, cf := range coarse.FABs {
				if cf.Valid.Contains(ci[0], ci[1], ci[2]) {
					for c := 0; c < f.NComp; c++ {
						f.Set(i, j, k, c, cf.Get(ci[0], ci[1], ci[2], c))
					}
					return
				}
			}
		})
	}
}

// InterpolateFromCoarse overwrites the valid cells of fine with the coarse
// value covering them.
func InterpolateFromCoarse(fine, coarse *grid.MultiFab, ratio int) {
	for _, f := range fine.FABs {
		for _, cf := range coarse.FABs {
			region, ok := f.Valid.Intersect(cf.Valid.Refine(ratio))
			if !ok {
				continue
			}
			region.ForEach(func(i, j, k int) {
				for c := 0; c < f.NComp; c++ {
					f.Set(i, j, k, c, cf.Get(floorDiv(i, ratio),
						floorDiv(j, ratio), floorDiv(k, ratio), c))
				}
			})
		}
	}
}

// SyncFine makes every finer level consistent with level 0 by injecting
// coarse values. The gas phase is only advanced on level 0.
func (s *State) SyncFine() {
	for l := 1; l < len(s.Levels); l++ {
		for v := Var(0); v < NumVars; v++ {
			InterpolateFromCoarse(s.Levels[l].New[v], s.Levels[l-1].New[v],
				s.h.RefRatio)
		}
	}
}

// Remap builds the field state of a new hierarchy. Valid data on each level
// is copied exactly where old and new boxes overlap. New cells on levels
// above 0 are filled from the new coarser level. Both the new and old
// copies are remapped.
func (s *State) Remap(h *grid.Hierarchy) *State {
	out := New(s.p, h)
	for l := range out.Levels {
		for v := Var(0); v < NumVars; v++ {
			if l > 0 {
				InterpolateFromCoarse(out.Levels[l].New[v],
					out.Levels[l-1].New[v], h.RefRatio)
				InterpolateFromCoarse(out.Levels[l].Old[v],
					out.Levels[l-1].Old[v], h.RefRatio)
			}
			if l < len(s.Levels) {
				n := v.NComp()
				out.Levels[l].New[v].ParallelCopy(s.Levels[l].New[v], 0, 0, n)
				out.Levels[l].Old[v].ParallelCopy(s.Levels[l].Old[v], 0, 0, n)
			}
		}
	}
	out.FillAll()
	return out
}

// Equal returns true if the valid cells of every new field of two states
// are bitwise identical.
func (s *State) Equal(o *State) bool {
	if len(s.Levels) != len(o.Levels) {
		return false
	}
	for l := range s.Levels {
		for v := Var(0); v < NumVars; v++ {
			if !s.Levels[l].New[v].Equal(o.Levels[l].New[v]) {
				return false
			}
		}
	}
	return true
}

func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}
