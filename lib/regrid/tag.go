package regrid

import (
	"math"
	"sort"

	"github.com/phil-mansfield/cfdem/lib/eb"
	"github.com/phil-mansfield/cfdem/lib/fields"
	"github.com/phil-mansfield/cfdem/lib/grid"
)

// tagger decides which cells need refinement. Solids fractions are read
// from level 0, which is where the gas is advanced.
type tagger struct {
	solids    []float64
	domain    grid.Box
	threshold float64

	wall     *eb.Level
	wallDist float64
}

func newTagger(m *Manager, s *fields.State, store *eb.Store) *tagger {
	domain := s.Hierarchy().Levels[0].Geom.Domain
	tg := &tagger{domain: domain, threshold: m.TagSolidsFraction}

	if tg.threshold >= 0 {
		tg.solids = make([]float64, domain.Volume())
		s.Get(0, fields.EpG).Gather(domain, 0, tg.solids)
		for i := range tg.solids {
			tg.solids[i] = 1 - tg.solids[i]
		}
	}
	if m.TagWallDistance > 0 && store.Valid() && store.HasWalls() {
		tg.wall, tg.wallDist = store.Fluid[0], m.TagWallDistance
	}
	return tg
}

// tagged returns true if cell (i, j, k) of a level refined by ratio
// relative to level 0 should be refined.
func (tg *tagger) tagged(geom *grid.Geometry, ratio, i, j, k int) bool {
	if tg.solids != nil {
		c := tg.domain.Idx(floorDiv(i, ratio), floorDiv(j, ratio),
			floorDiv(k, ratio))
		if tg.solids[c] > tg.threshold {
			return true
		}
	}
	if tg.wall != nil {
		phi, _ := tg.wall.Distance(geom.CellCenter(i, j, k))
		if math.Abs(phi) < tg.wallDist*geom.MinCellSize() {
			return true
		}
	}
	return false
}

// blocks returns the size^3 blocks of lev, aligned to the domain corner,
// which contain at least one tagged cell. Blocks are sorted.
func (tg *tagger) blocks(lev *grid.Level, ratio, size int) []grid.Box {
	o := lev.Geom.Domain.Origin
	set := map[[3]int]bool{}
	for _, b := range lev.BA {
		b.ForEach(func(i, j, k int) {
			key := [3]int{floorDiv(i-o[0], size), floorDiv(j-o[1], size),
				floorDiv(k-o[2], size)}
			if set[key] {
				return
			}
			if tg.tagged(&lev.Geom, ratio, i, j, k) {
				set[key] = true
			}
		})
	}

	keys := make([][3]int, 0, len(set))
	for key := range set {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(a, b int) bool {
		for d := 2; d >= 0; d-- {
			if keys[a][d] != keys[b][d] {
				return keys[a][d] < keys[b][d]
			}
		}
		return false
	})

	out := make([]grid.Box, len(keys))
	for n, key := range keys {
		var lo, hi [3]int
		for d := 0; d < 3; d++ {
			lo[d] = o[d] + key[d]*size
			hi[d] = lo[d] + size
		}
		out[n] = grid.NewBox(lo, hi)
	}
	return out
}

func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}
